package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/matt-g-everett/shuffler/api"
	"github.com/matt-g-everett/shuffler/assets"
	"github.com/matt-g-everett/shuffler/queue"
	"github.com/matt-g-everett/shuffler/store"
	"github.com/matt-g-everett/shuffler/stream"
	"gopkg.in/yaml.v2"
)

type app struct {
	Config     stream.Config
	Client     mqtt.Client
	Store      *store.Store
	Lister     *assets.Lister
	Streamers  []*stream.Streamer
	processors map[string]*assets.Processor
}

func newApp() *app {
	a := new(app)
	a.processors = make(map[string]*assets.Processor)
	return a
}

func (a *app) handleOnConnect(client mqtt.Client) {
	log.Println("Connected")
	for _, s := range a.Streamers {
		if err := s.Subscribe(); err != nil {
			log.Printf("[Streamer %s] Subscribe failed: %v", s.Instance(), err)
		}
	}
}

func (a *app) readConfig(configPath string) {
	f, err := os.Open(configPath)
	if os.IsNotExist(err) {
		log.Printf("No config at %s, using defaults", configPath)
		a.Config = a.Config.WithDefaults()
		return
	}
	if err != nil {
		panic(err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(&a.Config)
	if err != nil {
		panic(err)
	}
	a.Config = a.Config.WithDefaults()
}

func (a *app) newStreamer(id string, seed int64) *stream.Streamer {
	rng := rand.New(rand.NewSource(seed))

	s := a.Store.LoadSettings(id)
	q := queue.New(rng)
	if st, ok := a.Store.LoadQueue(id); ok {
		q.Restore(st)
		log.Printf("[Streamer %s] Restored queue at cycle %d", id, st.Cycle)
	}

	e := stream.NewEngine(id, s, q, a.Config.TargetFPS, a.Config.Display.Width, a.Config.Display.Height, rng)
	e.SetSaver(a.Store)
	return stream.NewStreamer(e, a.Client, a.Config.Mqtt.Topics, a.Lister, a.Store)
}

// processImages keeps the scaled variants of every instance folder current and
// tells instances when their folder gained images.
func (a *app) processImages(ctx context.Context) {
	interval := time.Duration(a.Config.Assets.ScanIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.scanFolders(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *app) scanFolders(ctx context.Context) {
	byFolder := make(map[string][]*stream.Streamer)
	for _, s := range a.Streamers {
		folder := s.Settings().ImagesFolder
		byFolder[folder] = append(byFolder[folder], s)
	}

	for folder, streamers := range byFolder {
		p, ok := a.processors[folder]
		if !ok {
			p = assets.NewProcessor(a.Lister, folder, a.Config.Assets.MaxHeight, a.Config.Assets.Workers)
			a.processors[folder] = p
		}

		result, err := p.ScanAndProcess()
		if err != nil {
			log.Printf("[Scaler %s] Background processing error: %v", folder, err)
			continue
		}
		if _, err := p.CleanupOrphaned(); err != nil {
			log.Printf("[Scaler %s] Cleanup error: %v", folder, err)
		}
		if !result.HasNewImages {
			continue
		}

		log.Printf("[Scaler %s] %d new images processed, refreshing", folder, result.Processed)
		for _, s := range streamers {
			if err := s.Send(ctx, stream.Command{Type: stream.RefreshAssets}); err != nil {
				log.Printf("[Streamer %s] Refresh not sent: %v", s.Instance(), err)
			}
		}
	}
}

func (a *app) mqttOptions() *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(a.Config.Mqtt.URL).
		SetClientID("shuffler-" + uuid.NewString()[:8]).
		SetUsername(a.Config.Mqtt.Username).
		SetPassword(a.Config.Mqtt.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(a.handleOnConnect)
}

// connect starts the MQTT connection. A broker that is down is logged and
// retried in the background.
func (a *app) connect(wait time.Duration) {
	token := a.Client.Connect()
	if !token.WaitTimeout(wait) {
		log.Printf("[MQTT] Broker %s not reachable yet, retrying in background", a.Config.Mqtt.URL)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("[MQTT] Connect failed: %v", err)
	}
}

func (a *app) run(ctx context.Context) {
	a.connect(5 * time.Second)
	defer a.Client.Disconnect(250)

	var wg sync.WaitGroup
	for _, s := range a.Streamers {
		wg.Add(1)
		go func(s *stream.Streamer) {
			defer wg.Done()
			s.Run(ctx)
		}(s)
	}

	displays := make([]api.Display, len(a.Streamers))
	for i, s := range a.Streamers {
		displays[i] = s
	}
	server := api.NewApi(a.Config.HTTP.Addr, a.Config.HTTP.Static, a.Lister, a.Store, displays...)
	go func() {
		if err := server.Serve(ctx); err != nil {
			log.Printf("HTTP server failed: %v", err)
		}
	}()

	go a.processImages(ctx)

	<-ctx.Done()
	log.Println("Shutting down...")
	wg.Wait()
}

func main() {
	// mqtt.DEBUG = log.New(os.Stdout, "", 0)
	mqtt.ERROR = log.New(os.Stdout, "", 0)

	// Parse command line parameters
	configPath := flag.String("config", "config.yaml", "YAML config file.")
	flag.Parse()

	// Read the config
	a := newApp()
	a.readConfig(*configPath)
	log.Printf("Config: %+v", a.Config)

	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("No home directory: %v", err)
	}
	a.Lister = assets.NewLister(a.Config.Assets.Root, home)
	a.Store = store.Open(a.Config.Store.AppName)

	a.Client = mqtt.NewClient(a.mqttOptions())

	seed := time.Now().UnixNano()
	for i, id := range a.Config.Instances {
		if !store.ValidInstance(id) {
			log.Fatalf("Invalid instance id %q", id)
		}
		a.Streamers = append(a.Streamers, a.newStreamer(id, seed+int64(i)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.run(ctx)
}
