// Command overlay renders one display instance in a window, drawing the
// frames the server streams over MQTT.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/matt-g-everett/shuffler/stream"
	"gopkg.in/yaml.v2"
)

type overlay struct {
	instance string
	topics   stream.Topics
	client   mqtt.Client
	fetcher  *fetcher
	hud      bool
	started  time.Time

	mu            sync.Mutex
	frame         *stream.Frame
	frames        int
	width, height int

	textures map[string]*ebiten.Image
	pending  map[string]bool
	loaded   chan loadedImage
}

func newOverlay(instance, server string, topics stream.Topics, hud bool) *overlay {
	o := new(overlay)
	o.instance = instance
	o.topics = topics
	o.fetcher = newFetcher(server, instance)
	o.hud = hud
	o.started = time.Now()
	o.textures = make(map[string]*ebiten.Image)
	o.pending = make(map[string]bool)
	o.loaded = make(chan loadedImage, 16)
	return o
}

func (o *overlay) handleOnConnect(client mqtt.Client) {
	log.Println("Connected")
	token := client.Subscribe(o.topics.FrameTopic(o.instance), 0, o.handleFrame)
	if token.Wait() && token.Error() != nil {
		log.Printf("Subscribe failed: %v", token.Error())
	}
	o.mu.Lock()
	w, h := o.width, o.height
	o.mu.Unlock()
	if w > 0 {
		o.sendResize(w, h)
	}
}

func (o *overlay) handleFrame(client mqtt.Client, msg mqtt.Message) {
	f := new(stream.Frame)
	if err := f.UnmarshalBinary(msg.Payload()); err != nil {
		log.Printf("Dropping frame: %v", err)
		return
	}

	o.mu.Lock()
	if o.frame == nil || f.Seq != o.frame.Seq {
		o.frame = f
		o.frames++
	}
	o.mu.Unlock()
}

func (o *overlay) sendResize(w, h int) {
	if o.client == nil || !o.client.IsConnected() {
		return
	}
	payload, err := json.Marshal(stream.Command{Type: stream.Resize, Width: w, Height: h})
	if err != nil {
		return
	}
	o.client.Publish(o.topics.CommandTopic(o.instance), 1, false, payload)
}

func (o *overlay) current() (*stream.Frame, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frame, o.frames
}

func (o *overlay) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		o.hud = !o.hud
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}

drain:
	for {
		select {
		case l := <-o.loaded:
			if l.err != nil {
				log.Printf("Using placeholder for %s: %v", l.name, l.err)
			}
			o.textures[l.name] = ebiten.NewImageFromImage(l.img)
			delete(o.pending, l.name)
		default:
			break drain
		}
	}

	frame, _ := o.current()
	if frame == nil {
		return nil
	}
	for _, s := range frame.Sprites {
		if _, ok := o.textures[s.Image]; ok || o.pending[s.Image] {
			continue
		}
		o.pending[s.Image] = true
		go func(name string) {
			o.loaded <- o.fetcher.fetch(name)
		}(s.Image)
	}
	return nil
}

func (o *overlay) Draw(screen *ebiten.Image) {
	frame, received := o.current()
	if frame == nil {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("Waiting for frames on %s", o.topics.FrameTopic(o.instance)))
		return
	}

	screen.Fill(frame.Background.Clamped())
	elapsed := time.Since(o.started)

	for _, s := range frame.Sprites {
		if !s.ContentVisible || s.Opacity <= 0 {
			continue
		}
		o.drawSprite(screen, s, elapsed)
	}

	if o.hud {
		msg := fmt.Sprintf("instance %s  seq %d  sprites %d  frames %d  fps %.1f",
			o.instance, frame.Seq, len(frame.Sprites), received, ebiten.ActualFPS())
		ebitenutil.DebugPrintAt(screen, msg, 12, 12)
	}
}

func (o *overlay) drawSprite(screen *ebiten.Image, s stream.SpriteState, elapsed time.Duration) {
	size := s.Size * s.Decoration.Scale
	if s.Decoration.Scale <= 0 {
		size = s.Size
	}
	radius := size / 2
	cx := s.X + s.Size/2
	cy := s.Y

	if tex, ok := o.textures[s.Image]; ok {
		opts := &ebiten.DrawImageOptions{}
		scale := size / float64(tex.Bounds().Dx())
		opts.GeoM.Scale(scale, scale)
		opts.GeoM.Translate(cx-radius, cy-radius)
		opts.ColorScale.ScaleAlpha(float32(s.Opacity))
		opts.Filter = ebiten.FilterLinear
		screen.DrawImage(tex, opts)
	}

	r, ok := ringFor(s.Decoration, elapsed)
	if !ok {
		return
	}
	if r.Glow > 0 {
		for i := 3; i >= 1; i-- {
			spread := float64(i) * r.Width
			vector.StrokeCircle(screen, float32(cx), float32(cy), float32(radius+spread/2),
				float32(spread), withAlpha(r.Outer, r.Glow*s.Opacity/float64(i+1)), true)
		}
	}
	vector.StrokeCircle(screen, float32(cx), float32(cy), float32(radius), float32(r.Width),
		withAlpha(r.Outer, s.Opacity), true)
	vector.StrokeCircle(screen, float32(cx), float32(cy), float32(radius-r.Width/2), 1,
		withAlpha(r.Inner, s.Opacity), true)
}

func (o *overlay) Layout(outsideWidth, outsideHeight int) (int, int) {
	o.mu.Lock()
	changed := outsideWidth != o.width || outsideHeight != o.height
	o.width, o.height = outsideWidth, outsideHeight
	o.mu.Unlock()
	if changed {
		go o.sendResize(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}

func readConfig(path string) stream.Config {
	var c stream.Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &c); err != nil {
			log.Fatalf("Bad config %s: %v", path, err)
		}
	}
	return c.WithDefaults()
}

func main() {
	mqtt.ERROR = log.New(os.Stdout, "", 0)

	configPath := flag.String("config", "config.yaml", "YAML config file.")
	instance := flag.String("instance", "1", "Display instance to render.")
	server := flag.String("server", "http://localhost:3000", "Base URL of the image API.")
	hud := flag.Bool("hud", false, "Show the performance overlay.")
	fullscreen := flag.Bool("fullscreen", false, "Start fullscreen.")
	flag.Parse()

	cfg := readConfig(*configPath)
	o := newOverlay(*instance, *server, cfg.Mqtt.Topics, *hud)

	options := mqtt.NewClientOptions().
		AddBroker(cfg.Mqtt.URL).
		SetClientID("overlay-" + uuid.NewString()[:8]).
		SetUsername(cfg.Mqtt.Username).
		SetPassword(cfg.Mqtt.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetOnConnectHandler(o.handleOnConnect)
	o.client = mqtt.NewClient(options)
	if token := o.client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect failed: %v", token.Error())
	}
	defer o.client.Disconnect(250)

	ebiten.SetWindowSize(cfg.Display.Width/2, cfg.Display.Height/2)
	ebiten.SetWindowTitle(fmt.Sprintf("Image Shuffler - instance %s", *instance))
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetFullscreen(*fullscreen)

	if err := ebiten.RunGame(o); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal(err)
	}
}
