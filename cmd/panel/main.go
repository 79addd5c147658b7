// Command panel is a terminal admin panel for the running display instances.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/matt-g-everett/shuffler/stream"
	"github.com/ncruces/zenity"
	"gopkg.in/yaml.v2"
)

const help = "tab/↑↓ select  r reset  a assets  s start  x stop  +/- speed  ]/[ count  w/W wait  f frame  p preset  e export  i import  q quit"

type result struct {
	msg string
	err error

	// A loaded preset, remembered so the next press moves on from it.
	instance, preset string
}

type panel struct {
	screen   tcell.Screen
	client   *client
	selected int
	presets  map[string]string
	results  chan result
	message  result
}

func newPanel(c *client) (*panel, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	p := &panel{
		screen:  screen,
		client:  c,
		presets: make(map[string]string),
		results: make(chan result, 8),
	}
	return p, nil
}

func (p *panel) current() (string, bool) {
	ids := p.client.instances()
	if len(ids) == 0 {
		return "", false
	}
	p.selected = (p.selected%len(ids) + len(ids)) % len(ids)
	return ids[p.selected], true
}

// async runs fn off the UI loop and reports its outcome in the message line.
func (p *panel) async(fn func() (string, error)) {
	go func() {
		msg, err := fn()
		p.results <- result{msg: msg, err: err}
	}()
}

func (p *panel) command(id string, cmd stream.Command, done string) {
	p.async(func() (string, error) {
		return done, p.client.send(id, cmd)
	})
}

func (p *panel) nudge(id string, k knob, dir int) {
	p.async(func() (string, error) {
		current, err := p.client.settings(id)
		if err != nil {
			return "", err
		}
		patch, v, err := nudge(current, k, dir)
		if err != nil {
			return "", err
		}
		err = p.client.send(id, stream.Command{Type: stream.ApplySettings, Settings: patch})
		return fmt.Sprintf("%s %s = %v", id, k.key, v), err
	})
}

func (p *panel) toggle(id, key string) {
	p.async(func() (string, error) {
		current, err := p.client.settings(id)
		if err != nil {
			return "", err
		}
		patch, v, err := toggle(current, key)
		if err != nil {
			return "", err
		}
		err = p.client.send(id, stream.Command{Type: stream.ApplySettings, Settings: patch})
		return fmt.Sprintf("%s %s = %v", id, key, v), err
	})
}

func (p *panel) cyclePreset(id string) {
	last := p.presets[id]
	go func() {
		names, err := p.client.presets()
		if err != nil {
			p.results <- result{err: err}
			return
		}
		name := nextPreset(names, last)
		if name == "" {
			p.results <- result{msg: "no presets"}
			return
		}
		if err := p.client.send(id, stream.Command{Type: stream.LoadPreset, Preset: name}); err != nil {
			p.results <- result{err: err}
			return
		}
		p.results <- result{msg: fmt.Sprintf("%s preset %s", id, name), instance: id, preset: name}
	}()
}

func (p *panel) export() {
	p.async(func() (string, error) {
		path, err := zenity.SelectFileSave(
			zenity.Title("Export Settings"),
			zenity.Filename("shuffler-settings.json"),
			zenity.ConfirmOverwrite(),
			zenity.FileFilters{{Name: "JSON", Patterns: []string{"*.json"}}},
		)
		if errors.Is(err, zenity.ErrCanceled) {
			return "export cancelled", nil
		}
		if err != nil {
			return "", err
		}
		if err := p.client.exportTo(path); err != nil {
			return "", err
		}
		return "exported to " + path, nil
	})
}

func (p *panel) importBundle() {
	p.async(func() (string, error) {
		path, err := zenity.SelectFile(
			zenity.Title("Import Settings"),
			zenity.FileFilters{{Name: "JSON", Patterns: []string{"*.json"}}},
		)
		if errors.Is(err, zenity.ErrCanceled) {
			return "import cancelled", nil
		}
		if err != nil {
			return "", err
		}
		ids, err := p.client.importFrom(path)
		if err != nil {
			return "", err
		}
		return "imported " + strings.Join(ids, ", "), nil
	})
}

func (p *panel) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
			(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
			return false
		}
		switch ev.Key() {
		case tcell.KeyTab, tcell.KeyDown:
			p.selected++
			return true
		case tcell.KeyBacktab, tcell.KeyUp:
			p.selected--
			return true
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}

		switch ev.Rune() {
		case 'e':
			p.export()
			return true
		case 'i':
			p.importBundle()
			return true
		}

		id, ok := p.current()
		if !ok {
			return true
		}
		switch ev.Rune() {
		case 'r':
			p.command(id, stream.Command{Type: stream.ResetQueue}, id+" queue reset")
		case 'a':
			p.command(id, stream.Command{Type: stream.RefreshAssets}, id+" assets refreshing")
		case 's':
			p.command(id, stream.Command{Type: stream.Start}, id+" started")
		case 'x':
			p.command(id, stream.Command{Type: stream.Stop}, id+" stopped")
		case '+', '=':
			p.nudge(id, speedKnob, 1)
		case '-':
			p.nudge(id, speedKnob, -1)
		case ']':
			p.nudge(id, countKnob, 1)
		case '[':
			p.nudge(id, countKnob, -1)
		case 'w':
			p.nudge(id, waitKnob, 1)
		case 'W':
			p.nudge(id, waitKnob, -1)
		case 'f':
			p.toggle(id, "frameEnabled")
		case 'p':
			p.cyclePreset(id)
		}

	case *tcell.EventResize:
		p.screen.Sync()
	}
	return true
}

func (p *panel) print(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		p.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func ratingStyle(rating string) tcell.Style {
	switch rating {
	case "Excellent":
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case "Good":
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case "Fair":
		return tcell.StyleDefault.Foreground(tcell.ColorOrange)
	}
	return tcell.StyleDefault.Foreground(tcell.ColorRed)
}

func (p *panel) draw() {
	p.screen.Clear()
	bold := tcell.StyleDefault.Bold(true)
	dim := tcell.StyleDefault.Foreground(tcell.ColorGray)

	p.print(1, 0, bold, "Image Shuffler")
	ids := p.client.instances()
	if len(ids) == 0 {
		p.print(1, 2, dim, "waiting for status from the server...")
	}

	sel, _ := p.current()
	for i, id := range ids {
		st, seen, _ := p.client.status(id)
		y := 2 + i*3

		marker, style := "  ", tcell.StyleDefault
		if id == sel {
			marker, style = "▶ ", bold
		}
		state := "stopped"
		if st.Running {
			state = "running"
		}
		p.print(1, y, style, fmt.Sprintf("%sinstance %s  %s  folder %s  (%.1fs ago)",
			marker, id, state, st.Folder, time.Since(seen).Seconds()))

		q := st.Queue
		perf := st.Performance
		p.print(5, y+1, tcell.StyleDefault, fmt.Sprintf(
			"cycle %d  used %d/%d  queued %d  active %d  visible %d  hidden %d",
			q.CurrentCycle, q.UsedInCycle, q.TotalImages, q.RemainingInQueue,
			perf.TotalActive, perf.VisibleContent, perf.HiddenContent))

		line := fmt.Sprintf("fps %.1f/%.0f  frame %.1fms  dropped %d/%d  ",
			perf.ActualFPS, perf.TargetFPS, perf.AvgFrameTime, perf.DroppedFrames, perf.TotalFrames)
		p.print(5, y+2, tcell.StyleDefault, line)
		p.print(5+len(line), y+2, ratingStyle(perf.Rating), perf.Rating)
	}

	_, h := p.screen.Size()
	if p.message.err != nil {
		p.print(1, h-2, tcell.StyleDefault.Foreground(tcell.ColorRed), "error: "+p.message.err.Error())
	} else if p.message.msg != "" {
		p.print(1, h-2, tcell.StyleDefault.Foreground(tcell.ColorGreen), p.message.msg)
	}
	p.print(1, h-1, dim, help)
	p.screen.Show()
}

func (p *panel) run() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- p.screen.PollEvent()
		}
	}()

	p.draw()
	for {
		select {
		case ev := <-eventChan:
			if ev == nil || !p.handleInput(ev) {
				return
			}
			p.draw()

		case r := <-p.results:
			p.message = r
			if r.preset != "" {
				p.presets[r.instance] = r.preset
			}
			p.draw()

		case <-ticker.C:
			p.draw()
		}
	}
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
	configPath := flag.String("config", "config.yaml", "YAML config file.")
	server := flag.String("server", "http://localhost:3000", "Base URL of the server API.")
	flag.Parse()

	cfg := readConfig(*configPath)
	c := newClient(*server, cfg.Mqtt.Topics)

	options := mqtt.NewClientOptions().
		AddBroker(cfg.Mqtt.URL).
		SetClientID("panel-" + uuid.NewString()[:8]).
		SetUsername(cfg.Mqtt.Username).
		SetPassword(cfg.Mqtt.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetOnConnectHandler(c.handleOnConnect)
	c.mqtt = mqtt.NewClient(options)
	if token := c.mqtt.Connect(); token.Wait() && token.Error() != nil {
		fmt.Fprintf(os.Stderr, "MQTT connect failed: %v\n", token.Error())
		os.Exit(1)
	}
	defer c.mqtt.Disconnect(250)

	p, err := newPanel(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer p.screen.Fini()

	p.run()
}
