package stream

import (
	"math/rand"
	"time"

	"github.com/matt-g-everett/shuffler/util"
)

// Spawn checks run on a jittered schedule so sprites never arrive in
// lockstep: quickly while the screen is under-filled, lazily once it is full.
const (
	fillDelayMin = 300 * time.Millisecond
	fillDelayMax = 1300 * time.Millisecond
	idleDelayMin = 1000 * time.Millisecond
	idleDelayMax = 3000 * time.Millisecond
)

// canSpawn admits a sprite while fewer than maxImages are visible and the
// whole active set, including sprites still rising off-screen or fading out,
// stays under twice that.
func canSpawn(visible, active, maxImages int) bool {
	return visible < maxImages && active < maxImages*2
}

func spawnDelay(rng *rand.Rand, visible, maxImages int) time.Duration {
	if visible >= maxImages {
		return util.RandomDuration(rng, idleDelayMin, idleDelayMax)
	}
	return util.RandomDuration(rng, fillDelayMin, fillDelayMax)
}

// runSpawner performs one scheduled spawn check.
func (e *Engine) runSpawner(now time.Time) {
	visible := e.VisibleCount()
	if canSpawn(visible, len(e.sprites), e.live.MaxImages) {
		e.spawn(now)
	}
	e.nextSpawn = now.Add(spawnDelay(e.rng, visible, e.live.MaxImages))
}

// spawn creates one sprite from the next queued image. An empty image set is
// not an error; the next check simply tries again.
func (e *Engine) spawn(now time.Time) *Sprite {
	image, ok := e.queue.Next()
	if !ok {
		return nil
	}

	others := make([]float64, len(e.sprites))
	for i, s := range e.sprites {
		others[i] = s.X
	}

	s := e.live
	x := PickX(e.rng, others, e.width, s.ImageScale, s.MinSpacing, s.MaxImages)
	profile := NewProfile(e.rng, s, e.height, e.targetFPS)

	e.nextID++
	sprite := newSprite(e.nextID, image, x, profile, e.height, newDrift(e.rng), decorate(e.rng, s), now)
	e.sprites = append(e.sprites, sprite)

	if e.onSpawn != nil {
		e.onSpawn(sprite)
	}
	return sprite
}
