package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
	"github.com/matt-g-everett/shuffler/assets"
	"github.com/matt-g-everett/shuffler/queue"
	"github.com/matt-g-everett/shuffler/settings"
)

const statusInterval = time.Second

// AssetLister discovers the images of a folder.
type AssetLister interface {
	List(folder string) ([]string, error)
}

// Backend persists queue state and resolves custom presets.
type Backend interface {
	SaveQueue(instance string, st queue.State) error
	Presets() map[string]settings.Preset
}

type assetResult struct {
	folder string
	images []string
}

// Streamer drives one Engine: it ticks it at the paced frame interval,
// publishes frames and status over MQTT, fans frames out to local watchers
// and feeds commands into the engine. The engine is only touched from Run.
type Streamer struct {
	client  mqtt.Client
	topics  Topics
	engine  *Engine
	lister  AssetLister
	backend Backend

	commands   chan Command
	assets     chan assetResult
	queueSaves chan queue.State

	status   atomic.Pointer[Status]
	settings atomic.Pointer[settings.Settings]

	mu       sync.Mutex
	watchers map[chan []byte]struct{}
}

// NewStreamer creates a Streamer. client may be nil, in which case frames are
// only delivered to watchers.
func NewStreamer(engine *Engine, client mqtt.Client, topics Topics, lister AssetLister, backend Backend) *Streamer {
	s := new(Streamer)
	s.client = client
	s.topics = topics
	s.engine = engine
	s.lister = lister
	s.backend = backend
	s.commands = make(chan Command, 16)
	s.assets = make(chan assetResult, 1)
	s.queueSaves = make(chan queue.State, 1)
	s.watchers = make(map[chan []byte]struct{})

	engine.queue.OnChange(s.queueChanged)
	s.snapshot()
	return s
}

// Instance is the display instance this streamer drives.
func (s *Streamer) Instance() string {
	return s.engine.instance
}

// Subscribe listens for commands on the instance's command topic.
func (s *Streamer) Subscribe() error {
	if s.client == nil {
		return nil
	}
	topic := s.topics.CommandTopic(s.Instance())
	token := s.client.Subscribe(topic, 1, s.handleCommandMessage)
	token.Wait()
	return token.Error()
}

func (s *Streamer) handleCommandMessage(client mqtt.Client, msg mqtt.Message) {
	cmd, err := ParseCommand(msg.Payload())
	if err != nil {
		log.Printf("[Streamer %s] Ignoring message on %s: %v", s.Instance(), msg.Topic(), err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Send(ctx, cmd); err != nil {
		log.Printf("[Streamer %s] Dropped %s command: %v", s.Instance(), cmd.Type, err)
	}
}

// Send queues a command for the run loop.
func (s *Streamer) Send(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	select {
	case s.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the most recent status snapshot.
func (s *Streamer) Status() Status {
	return *s.status.Load()
}

// Settings returns the most recent settings snapshot.
func (s *Streamer) Settings() settings.Settings {
	return *s.settings.Load()
}

// Watch registers a receiver of encoded frames. Slow receivers miss frames
// rather than stall the loop. Call the returned function to unregister.
func (s *Streamer) Watch() (<-chan []byte, func()) {
	ch := make(chan []byte, 4)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
}

// Run animates until ctx is cancelled. On return every sprite has been
// despawned and the final queue state persisted.
func (s *Streamer) Run(ctx context.Context) {
	saverDone := make(chan struct{})
	go s.saveQueues(ctx, saverDone)

	s.refreshAssets(ctx)
	s.engine.Start(time.Now())
	s.snapshot()
	s.publishStatus()

	interval := s.engine.FrameInterval()
	frameTimer := time.NewTicker(interval)
	defer frameTimer.Stop()
	statusTimer := time.NewTicker(statusInterval)
	defer statusTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.engine.Stop()
			s.publishFrame(s.engine.Tick(time.Now()))
			s.snapshot()
			<-saverDone
			return

		case now := <-frameTimer.C:
			s.publishFrame(s.engine.Tick(now))
			if next := s.engine.FrameInterval(); next != interval {
				interval = next
				frameTimer.Reset(interval)
			}

		case <-statusTimer.C:
			s.snapshot()
			s.publishStatus()

		case cmd := <-s.commands:
			s.handle(ctx, cmd, time.Now())
			s.snapshot()
			s.publishStatus()

		case result := <-s.assets:
			if result.folder != s.engine.Settings().ImagesFolder {
				continue
			}
			s.engine.SetImages(result.images)
			log.Printf("[Streamer %s] %d images in %s", s.Instance(), len(result.images), result.folder)
		}
	}
}

func (s *Streamer) handle(ctx context.Context, cmd Command, now time.Time) {
	folder := s.engine.Settings().ImagesFolder

	switch cmd.Type {
	case ApplySettings:
		if err := s.engine.ApplySettings(cmd.Settings); err != nil {
			log.Printf("[Streamer %s] Ignoring settings: %v", s.Instance(), err)
			return
		}
	case LoadPreset:
		preset, err := settings.Lookup(s.backend.Presets(), cmd.Preset)
		if err != nil {
			log.Printf("[Streamer %s] Cannot load preset %q: %v", s.Instance(), cmd.Preset, err)
			return
		}
		if err := s.engine.ApplySettings(preset); err != nil {
			log.Printf("[Streamer %s] Preset %q: %v", s.Instance(), cmd.Preset, err)
			return
		}
	case ResetQueue:
		s.engine.ResetQueue()
	case RefreshAssets:
		s.refreshAssets(ctx)
	case Resize:
		s.engine.Resize(cmd.Width, cmd.Height)
	case Start:
		s.engine.Start(now)
	case Stop:
		s.engine.Stop()
	}

	if s.engine.Settings().ImagesFolder != folder {
		s.refreshAssets(ctx)
	}
}

// refreshAssets lists the current folder off the render loop. A failed
// listing degrades to placeholder names so the display keeps moving.
func (s *Streamer) refreshAssets(ctx context.Context) {
	folder := s.engine.Settings().ImagesFolder
	go func() {
		images, err := s.lister.List(folder)
		if err != nil {
			log.Printf("[Streamer %s] Cannot list %s: %v (using placeholders)", s.Instance(), folder, err)
			images = assets.Placeholders()
		}
		select {
		case s.assets <- assetResult{folder: folder, images: images}:
		case <-ctx.Done():
		}
	}()
}

// queueChanged keeps only the latest queue state for the saver.
func (s *Streamer) queueChanged(st queue.State) {
	select {
	case <-s.queueSaves:
	default:
	}
	s.queueSaves <- st
}

func (s *Streamer) saveQueues(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	save := func(st queue.State) {
		if err := s.backend.SaveQueue(s.Instance(), st); err != nil {
			log.Printf("[Streamer %s] Warning: failed to persist queue: %v", s.Instance(), err)
		}
	}

	for {
		select {
		case st := <-s.queueSaves:
			save(st)
		case <-ctx.Done():
			select {
			case st := <-s.queueSaves:
				save(st)
			default:
			}
			return
		}
	}
}

func (s *Streamer) snapshot() {
	st := s.engine.Status()
	s.status.Store(&st)
	v := s.engine.Settings()
	s.settings.Store(&v)
}

// publishFrame sends a frame to MQTT and every watcher.
func (s *Streamer) publishFrame(f *Frame) {
	b, err := f.MarshalBinary()
	if err != nil {
		log.Printf("[Streamer %s] Cannot encode frame: %v", s.Instance(), err)
		return
	}

	if s.client != nil && s.client.IsConnectionOpen() {
		s.client.Publish(s.topics.FrameTopic(s.Instance()), 0, false, b)
	}

	s.mu.Lock()
	for ch := range s.watchers {
		select {
		case ch <- b:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Streamer) publishStatus() {
	if s.client == nil || !s.client.IsConnectionOpen() {
		return
	}
	b, err := json.Marshal(s.Status())
	if err != nil {
		return
	}
	s.client.Publish(s.topics.StatusTopic(s.Instance()), 1, true, b)
}
