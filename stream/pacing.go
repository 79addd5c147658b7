package stream

import (
	"math"
	"time"
)

const (
	pacerSettle       = 2 * time.Second
	pacerPeriod       = 5 * time.Second
	droppedFactor     = 1.5
	relaxThreshold    = 0.8
	tightenThreshold  = 1.05
	relaxStep         = 1.1
	tightenStep       = 0.95
	maxIntervalFactor = 1.25
)

// PerformanceStats are rolling frame counters since the last reset.
type PerformanceStats struct {
	FrameCount    int
	DroppedFrames int
	AvgFrameTime  float64 // milliseconds, exponentially smoothed
}

// Pacer watches frame cadence and nudges the frame interval. It never
// skips work; it only changes how often frames are requested.
type Pacer struct {
	targetFPS float64
	nominal   time.Duration
	max       time.Duration
	interval  time.Duration

	stats      PerformanceStats
	nextAdjust time.Time
}

// NewPacer creates a Pacer aiming at targetFPS.
func NewPacer(targetFPS float64) *Pacer {
	p := new(Pacer)
	p.targetFPS = targetFPS
	p.nominal = time.Duration(float64(time.Second) / targetFPS)
	p.max = time.Duration(float64(p.nominal) * maxIntervalFactor)
	p.interval = p.nominal
	return p
}

// Reset clears the statistics and schedules the first adjustment after the
// settle delay.
func (p *Pacer) Reset(now time.Time) {
	p.stats = PerformanceStats{}
	p.nextAdjust = now.Add(pacerSettle)
}

// Observe records one frame interval.
func (p *Pacer) Observe(dt time.Duration) {
	ms := float64(dt) / float64(time.Millisecond)
	p.stats.FrameCount++
	p.stats.AvgFrameTime = p.stats.AvgFrameTime*0.9 + ms*0.1

	if float64(dt) > float64(p.interval)*droppedFactor {
		p.stats.DroppedFrames++
	}
}

// Due reports whether an adjustment is scheduled at or before now.
func (p *Pacer) Due(now time.Time) bool {
	return !p.nextAdjust.IsZero() && !now.Before(p.nextAdjust)
}

// Adjust compares the achieved frame rate with the target and moves the
// interval: up (capped) when falling behind, back towards nominal when well
// ahead. It reports whether the interval changed.
func (p *Pacer) Adjust(now time.Time) bool {
	p.nextAdjust = now.Add(pacerPeriod)

	fps := p.FPS()
	before := p.interval
	if fps < p.targetFPS*relaxThreshold {
		p.interval = min(time.Duration(float64(p.interval)*relaxStep), p.max)
	} else if fps > p.targetFPS*tightenThreshold && p.interval > p.nominal {
		p.interval = max(time.Duration(float64(p.interval)*tightenStep), p.nominal)
	}
	return p.interval != before
}

// Interval is the current minimum frame interval.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// TargetFPS is the frame rate the pacer aims for.
func (p *Pacer) TargetFPS() float64 {
	return p.targetFPS
}

// Stats returns a copy of the counters.
func (p *Pacer) Stats() PerformanceStats {
	return p.stats
}

// FPS derives the achieved frame rate from the smoothed frame time.
func (p *Pacer) FPS() float64 {
	if p.stats.FrameCount == 0 {
		return 0
	}
	return 1000 / math.Max(p.stats.AvgFrameTime, 1)
}

// Rating grades fps against the target.
func (p *Pacer) Rating(fps float64) string {
	switch {
	case fps >= p.targetFPS*0.95:
		return "Excellent"
	case fps >= p.targetFPS*0.85:
		return "Good"
	case fps >= p.targetFPS*0.70:
		return "Fair"
	}
	return "Poor"
}
