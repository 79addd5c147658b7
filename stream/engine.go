package stream

import (
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/matt-g-everett/shuffler/queue"
	"github.com/matt-g-everett/shuffler/settings"
	"github.com/matt-g-everett/shuffler/util"
)

const (
	// Sprites are not stepped more often than this.
	minStep = 8 * time.Millisecond
	// Off-screen sprites are stepped at roughly 30 fps.
	offscreenStep = 33 * time.Millisecond
)

// SettingsSaver persists settings after a live update.
type SettingsSaver interface {
	SaveSettings(instance string, s settings.Settings) error
}

// Performance summarises frame pacing and sprite counts.
type Performance struct {
	TargetFPS      float64 `json:"targetFPS"`
	ActualFPS      float64 `json:"actualFPS"`
	AvgFrameTime   float64 `json:"avgFrameTime"`
	FrameInterval  float64 `json:"frameInterval"`
	DroppedFrames  int     `json:"droppedFrames"`
	TotalFrames    int     `json:"totalFrames"`
	TotalActive    int     `json:"totalActive"`
	VisibleContent int     `json:"visibleContent"`
	HiddenContent  int     `json:"hiddenContent"`
	Rating         string  `json:"performanceRating"`
}

// Status is the externally visible state of one engine.
type Status struct {
	Instance    string       `json:"instance"`
	Session     string       `json:"session"`
	Running     bool         `json:"running"`
	Folder      string       `json:"imagesFolder"`
	Queue       queue.Status `json:"queue"`
	Performance Performance  `json:"performance"`
}

// Engine animates the sprites of one display instance. All methods must be
// called from a single goroutine; the Streamer run loop is that goroutine.
type Engine struct {
	instance  string
	targetFPS float64
	rng       *rand.Rand

	live  settings.Settings
	saver SettingsSaver
	queue *queue.Queue
	pacer *Pacer

	width, height float64

	sprites []*Sprite
	nextID  uint32
	seq     uint32

	running   bool
	session   string
	lastTick  time.Time
	nextSpawn time.Time

	onSpawn func(*Sprite)
}

// NewEngine creates a stopped engine.
func NewEngine(instance string, s settings.Settings, q *queue.Queue, targetFPS float64,
	width, height int, rng *rand.Rand) *Engine {

	e := new(Engine)
	e.instance = instance
	e.targetFPS = targetFPS
	e.rng = rng
	e.live = s
	e.live.Sanitize(instance)
	e.queue = q
	e.pacer = NewPacer(targetFPS)
	e.Resize(width, height)
	return e
}

// SetSaver installs the persistence used by ApplySettings.
func (e *Engine) SetSaver(saver SettingsSaver) {
	e.saver = saver
}

// OnSpawn registers a hook called for every new sprite.
func (e *Engine) OnSpawn(fn func(*Sprite)) {
	e.onSpawn = fn
}

// Start begins animating. The first spawn check happens on the next tick.
func (e *Engine) Start(now time.Time) {
	if e.running {
		return
	}
	e.running = true
	e.session = uuid.NewString()
	e.pacer.Reset(now)
	e.lastTick = now
	e.nextSpawn = now
}

// Stop despawns every sprite and cancels the pending spawn check.
func (e *Engine) Stop() {
	for _, s := range e.sprites {
		s.despawn()
	}
	e.sprites = nil
	e.running = false
	e.nextSpawn = time.Time{}
	e.lastTick = time.Time{}
}

// Running reports whether the engine is animating.
func (e *Engine) Running() bool {
	return e.running
}

// Tick advances the animation to now and returns the resulting frame.
func (e *Engine) Tick(now time.Time) *Frame {
	if !e.running {
		return e.frame()
	}

	if dt := now.Sub(e.lastTick); dt > 0 {
		e.pacer.Observe(dt)
	}
	e.lastTick = now

	if e.pacer.Due(now) && e.pacer.Adjust(now) {
		log.Printf("[Engine %s] frame interval now %v (%.1f fps achieved)",
			e.instance, e.pacer.Interval(), e.pacer.FPS())
	}

	e.advance(now)

	if !now.Before(e.nextSpawn) {
		e.runSpawner(now)
	}

	return e.frame()
}

// advance steps every sprite that is due and drops the despawned ones.
func (e *Engine) advance(now time.Time) {
	offscreen := max(e.pacer.Interval(), offscreenStep)

	live := e.sprites[:0]
	for _, s := range e.sprites {
		elapsed := now.Sub(s.lastAdvance)
		due := elapsed >= minStep && (s.InView() || elapsed >= offscreen)
		if due {
			s.Advance(elapsed, now)
		}
		if s.Phase != Despawned {
			live = append(live, s)
		}
	}
	for i := len(live); i < len(e.sprites); i++ {
		e.sprites[i] = nil
	}
	e.sprites = live
}

// Sprites returns the active set. The slice must not be modified.
func (e *Engine) Sprites() []*Sprite {
	return e.sprites
}

// VisibleCount is the number of sprites whose content is on screen.
func (e *Engine) VisibleCount() int {
	n := 0
	for _, s := range e.sprites {
		if s.ContentVisible {
			n++
		}
	}
	return n
}

// Settings returns the live settings.
func (e *Engine) Settings() settings.Settings {
	return e.live
}

// ApplySettings merges a partial settings object into the live settings and
// persists them. Sprites keep the motion they spawned with; only their
// decoration and the background follow the update.
func (e *Engine) ApplySettings(partial []byte) error {
	merged, err := e.live.Merge(partial)
	if err != nil {
		return err
	}
	e.live = merged

	for _, s := range e.sprites {
		s.decoration = decorate(e.rng, merged)
	}

	if e.saver != nil {
		if err := e.saver.SaveSettings(e.instance, merged); err != nil {
			log.Printf("[Engine %s] Warning: failed to persist settings: %v", e.instance, err)
		}
	}
	return nil
}

// ResetQueue starts a fresh image cycle.
func (e *Engine) ResetQueue() {
	e.queue.Reset()
}

// SetImages installs a newly discovered image set.
func (e *Engine) SetImages(images []string) {
	e.queue.SetImages(images)
}

// Resize sets the viewport used for new sprites. Sizes are clamped to
// [1, MaxViewport].
func (e *Engine) Resize(width, height int) {
	e.width = util.Clamp(float64(width), 1, MaxViewport)
	e.height = util.Clamp(float64(height), 1, MaxViewport)
}

// Viewport returns the current viewport size.
func (e *Engine) Viewport() (int, int) {
	return int(e.width), int(e.height)
}

// FrameInterval is how often the driver should call Tick.
func (e *Engine) FrameInterval() time.Duration {
	return e.pacer.Interval()
}

// Status reports queue progress and frame pacing.
func (e *Engine) Status() Status {
	stats := e.pacer.Stats()
	fps := e.pacer.FPS()
	visible := e.VisibleCount()

	return Status{
		Instance: e.instance,
		Session:  e.session,
		Running:  e.running,
		Folder:   e.live.ImagesFolder,
		Queue:    e.queue.Status(),
		Performance: Performance{
			TargetFPS:      e.pacer.TargetFPS(),
			ActualFPS:      math.Round(fps*10) / 10,
			AvgFrameTime:   math.Round(stats.AvgFrameTime*100) / 100,
			FrameInterval:  float64(e.pacer.Interval()) / float64(time.Millisecond),
			DroppedFrames:  stats.DroppedFrames,
			TotalFrames:    stats.FrameCount,
			TotalActive:    len(e.sprites),
			VisibleContent: visible,
			HiddenContent:  len(e.sprites) - visible,
			Rating:         e.pacer.Rating(fps),
		},
	}
}

func (e *Engine) frame() *Frame {
	e.seq++
	f := &Frame{
		Seq:        e.seq,
		Width:      int(e.width),
		Height:     int(e.height),
		Background: e.live.Background(),
		Sprites:    make([]SpriteState, 0, len(e.sprites)),
	}
	for _, s := range e.sprites {
		f.Sprites = append(f.Sprites, SpriteState{
			ID:             s.ID,
			Image:          s.Image,
			X:              s.X,
			Y:              s.Y,
			Size:           s.profile.Size,
			Opacity:        s.Opacity,
			ContentVisible: s.ContentVisible,
			Phase:          s.Phase,
			Decoration:     s.decoration,
		})
	}
	return f
}
