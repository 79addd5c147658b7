package stream

import (
	"math"
	"math/rand"
	"time"

	"github.com/fogleman/ease"
	"github.com/matt-g-everett/shuffler/settings"
	"github.com/matt-g-everett/shuffler/util"
)

// Phase is a step of a sprite's journey up the screen.
type Phase uint8

const (
	Rising Phase = iota
	ApproachingPark
	ParkedWaiting
	Exiting
	Fading
	Despawned
)

var phaseNames = [...]string{"rising", "approaching-park", "parked-waiting", "exiting", "fading", "despawned"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

const (
	// Zone widths in progress units (fractions of the full journey).
	parkZoneRadius   = 0.08
	approachZoneSize = 0.12

	// Exit acceleration grows from exitAccelBase to exitAccelBase+exitAccelRange
	// over the first exitAccelDistance of progress past the park center.
	exitAccelBase     = 1.2
	exitAccelRange    = 2.0
	exitAccelDistance = 0.25

	speedSmoothingMs   = 100.0
	baselineFrameMs    = 1000.0 / 60
	maxFrameMultiplier = 2.0

	safetyFraction = 0.2
	driftRange     = 10.0
)

// Profile holds everything about a sprite's motion that is fixed when it
// spawns. Later settings changes do not reach it.
type Profile struct {
	Size         float64
	BaseSpeed    float64 // pixels per 60 Hz frame
	MinParkSpeed float64
	Easing       float64
	ParkWait     time.Duration
	ParkTargetY  float64
	BottomOffset float64
	TopOffset    float64
}

// NewProfile draws the per-sprite variations from s for a viewport of the
// given height. targetFPS scales the base speed the way the display loop
// expects it.
func NewProfile(rng *rand.Rand, s settings.Settings, viewHeight, targetFPS float64) Profile {
	center := util.Clamp(s.DisplayCenter+util.Jitter(rng, s.OnTimeVariation), 10, 90)
	parkY := viewHeight*(center/100) + s.ParkZoneOffset

	speed := s.Speed * util.VariationFactor(rng, s.SpeedVariation)

	return Profile{
		Size:         s.ImageScale,
		BaseSpeed:    speed * (targetFPS / 60),
		MinParkSpeed: s.MinParkSpeed,
		Easing:       s.EasingStrength,
		ParkWait:     time.Duration(s.ParkWaitTime * float64(time.Millisecond)),
		ParkTargetY:  parkY,
		BottomOffset: s.BottomOffset,
		TopOffset:    s.TopOffset,
	}
}

// A Sprite is one image drifting up the display. Y is the vertical center in
// viewport pixels, X the left edge.
type Sprite struct {
	ID    uint32
	Image string

	Phase          Phase
	StartX, X, Y   float64
	Opacity        float64
	ContentVisible bool

	profile    Profile
	decoration Decoration
	viewHeight float64

	startY, endY       float64
	parkCenterProgress float64
	drift              float64
	speed              float64

	parked    bool
	parkStart time.Time
	waited    bool

	fadeStarted  bool
	fadeStart    time.Time
	fadeStartY   float64
	fadeDistance float64

	lastAdvance time.Time
}

func newSprite(id uint32, image string, x float64, p Profile, viewHeight float64,
	drift float64, decoration Decoration, now time.Time) *Sprite {

	s := new(Sprite)
	s.ID = id
	s.Image = image
	s.profile = p
	s.decoration = decoration
	s.viewHeight = viewHeight

	radius := p.Size / 2
	margin := radius * safetyFraction
	s.startY = viewHeight + p.BottomOffset + radius + margin
	s.endY = -(radius + margin + p.TopOffset)
	s.fadeDistance = (radius + margin + p.TopOffset) / 2
	s.parkCenterProgress = (s.startY - p.ParkTargetY) / (s.startY - s.endY)

	s.StartX = x
	s.X = x
	s.Y = s.startY
	s.drift = drift
	s.speed = p.BaseSpeed
	s.Opacity = 1
	s.Phase = Rising
	s.lastAdvance = now

	s.updateVisibility()
	return s
}

// Profile returns the motion parameters fixed at spawn.
func (s *Sprite) Profile() Profile {
	return s.profile
}

// Decoration returns the current frame decoration.
func (s *Sprite) Decoration() Decoration {
	return s.decoration
}

// Waited reports whether the one-shot park wait has completed.
func (s *Sprite) Waited() bool {
	return s.waited
}

// FadeStart reports when and where the fade began.
func (s *Sprite) FadeStart() (time.Time, float64, bool) {
	return s.fadeStart, s.fadeStartY, s.fadeStarted
}

// Progress is the fraction of the journey covered, 0 at spawn and 1 at exit.
func (s *Sprite) Progress() float64 {
	return (s.startY - s.Y) / (s.startY - s.endY)
}

// InView reports whether any part of the sprite's circle, widened by the
// safety margin, overlaps the viewport.
func (s *Sprite) InView() bool {
	radius := s.profile.Size / 2
	margin := radius * safetyFraction
	return s.Y+radius >= -margin && s.Y-radius <= s.viewHeight+margin
}

func (s *Sprite) updateVisibility() {
	s.ContentVisible = s.Phase != Despawned && s.InView()
}

// targetSpeed picks the phase for the current progress and the speed the
// sprite should be heading towards.
func (s *Sprite) targetSpeed(now time.Time) (Phase, float64) {
	base := s.profile.BaseSpeed
	minPark := s.profile.MinParkSpeed
	progress := s.Progress()
	center := s.parkCenterProgress

	switch {
	case progress < center-approachZoneSize:
		return Rising, base

	case progress < center-parkZoneRadius:
		easing := s.profile.Easing
		if easing <= 0 {
			easing = 2
		}
		p := (progress - (center - approachZoneSize)) / (approachZoneSize - parkZoneRadius)
		decel := math.Pow(1-p, 1/easing)
		return ApproachingPark, base * (minPark + (1-minPark)*decel)

	case math.Abs(progress-center) <= parkZoneRadius && !s.waited:
		if !s.parked {
			s.parked = true
			s.parkStart = now
		}
		if now.Sub(s.parkStart) >= s.profile.ParkWait {
			s.waited = true
		}
		return ParkedWaiting, base * minPark

	default:
		exit := math.Max(0, progress-center)
		accel := exitAccelBase + exitAccelRange*ease.InQuad(math.Min(1, exit/exitAccelDistance))
		return Exiting, base * accel
	}
}

// Advance moves the sprite by dt of wall-clock time ending at now.
func (s *Sprite) Advance(dt time.Duration, now time.Time) {
	if s.Phase == Despawned {
		return
	}

	dtMs := float64(dt) / float64(time.Millisecond)
	multiplier := math.Min(maxFrameMultiplier, dtMs/baselineFrameMs)

	phase, target := s.targetSpeed(now)

	// Low-pass the speed so phase boundaries never jerk.
	s.speed += (target - s.speed) * math.Min(1, dtMs/speedSmoothingMs)
	s.Y -= s.speed * multiplier
	s.X = s.StartX + s.drift*s.Progress()*0.05
	s.lastAdvance = now

	if !s.fadeStarted && s.Y <= 0 {
		s.fadeStarted = true
		s.fadeStart = now
		s.fadeStartY = s.Y
	}
	if s.fadeStarted {
		phase = Fading
		s.Opacity = 1 - math.Min(1, math.Abs(s.Y)/s.fadeDistance)
	} else {
		s.Opacity = 1
	}

	if s.Y <= s.endY {
		s.Phase = Despawned
		s.Opacity = 0
		s.ContentVisible = false
		return
	}

	s.Phase = phase
	s.updateVisibility()
}

// despawn ends the sprite's life immediately.
func (s *Sprite) despawn() {
	s.Phase = Despawned
	s.Opacity = 0
	s.ContentVisible = false
}

func newDrift(rng *rand.Rand) float64 {
	return util.Jitter(rng, driftRange/2)
}
