package stream

import (
	"testing"
	"time"
)

func testProfile() Profile {
	return Profile{
		Size:         100,
		BaseSpeed:    2,
		MinParkSpeed: 0.1,
		Easing:       2,
		ParkWait:     500 * time.Millisecond,
		ParkTargetY:  300,
		BottomOffset: 50,
		TopOffset:    50,
	}
}

type journey struct {
	phases     []Phase
	firstPark  time.Time
	firstExit  time.Time
	visibility []bool
}

// fly advances a sprite in fixed steps until it despawns.
func fly(t *testing.T, s *Sprite, start time.Time, step time.Duration) journey {
	t.Helper()

	var j journey
	now := start
	lastY := s.Y
	lastOpacity := 1.0
	j.visibility = append(j.visibility, s.ContentVisible)

	for i := 0; i < 100000 && s.Phase != Despawned; i++ {
		now = now.Add(step)
		s.Advance(step, now)

		if s.Y >= lastY {
			t.Fatalf("step %d: y did not decrease (%f -> %f)", i, lastY, s.Y)
		}
		lastY = s.Y

		if n := len(j.phases); n == 0 || j.phases[n-1] != s.Phase {
			if n > 0 && s.Phase < j.phases[n-1] {
				t.Fatalf("phase went backwards: %v -> %v", j.phases[n-1], s.Phase)
			}
			j.phases = append(j.phases, s.Phase)
		}
		if s.Phase == ParkedWaiting && j.firstPark.IsZero() {
			j.firstPark = now
		}
		if s.Phase == Exiting && j.firstExit.IsZero() {
			j.firstExit = now
		}

		if s.Opacity < 0 || s.Opacity > 1 {
			t.Fatalf("opacity %f out of range", s.Opacity)
		}
		if s.Phase == Fading {
			if s.Opacity > lastOpacity {
				t.Fatalf("opacity rose while fading: %f -> %f", lastOpacity, s.Opacity)
			}
			lastOpacity = s.Opacity
		}

		if v := j.visibility[len(j.visibility)-1]; v != s.ContentVisible {
			j.visibility = append(j.visibility, s.ContentVisible)
		}
	}

	if s.Phase != Despawned {
		t.Fatalf("sprite never despawned, stuck at y=%f in %v", s.Y, s.Phase)
	}
	return j
}

func TestSpriteJourney(t *testing.T) {
	start := time.Unix(1000, 0)
	p := testProfile()
	s := newSprite(1, "a.jpg", 200, p, 600, 0, Decoration{}, start)

	if s.Y != 710 {
		t.Fatalf("start y = %f, want 710", s.Y)
	}
	if s.ContentVisible {
		t.Fatal("sprite visible at spawn")
	}

	j := fly(t, s, start, 20*time.Millisecond)

	want := []Phase{Rising, ApproachingPark, ParkedWaiting, Exiting, Fading}
	if len(j.phases) != len(want) {
		t.Fatalf("phases = %v, want %v", j.phases, want)
	}
	for i := range want {
		if j.phases[i] != want[i] {
			t.Fatalf("phases = %v, want %v", j.phases, want)
		}
	}

	if waited := j.firstExit.Sub(j.firstPark); waited < p.ParkWait {
		t.Errorf("parked for %v, want at least %v", waited, p.ParkWait)
	}
	if !s.Waited() {
		t.Error("park wait not recorded")
	}

	// Hidden off the bottom, shown while crossing, hidden again above the top.
	if len(j.visibility) != 3 || j.visibility[0] || !j.visibility[1] || j.visibility[2] {
		t.Errorf("visibility transitions = %v, want [false true false]", j.visibility)
	}
	if s.Opacity != 0 {
		t.Errorf("despawned opacity = %f", s.Opacity)
	}
}

func TestSpriteFadeStartsAtTop(t *testing.T) {
	start := time.Unix(1000, 0)
	s := newSprite(1, "a.jpg", 0, testProfile(), 600, 0, Decoration{}, start)

	now := start
	for s.Phase != Fading && s.Phase != Despawned {
		now = now.Add(16 * time.Millisecond)
		s.Advance(16*time.Millisecond, now)
	}

	at, y, ok := s.FadeStart()
	if !ok {
		t.Fatal("fade never started")
	}
	if !at.Equal(now) {
		t.Errorf("fade start %v, want %v", at, now)
	}
	if y > 0 {
		t.Errorf("fade started at y=%f, want <= 0", y)
	}
}

func TestSpriteDriftFollowsProgress(t *testing.T) {
	start := time.Unix(1000, 0)
	s := newSprite(1, "a.jpg", 100, testProfile(), 600, 5, Decoration{}, start)

	now := start
	for i := 0; i < 50; i++ {
		now = now.Add(20 * time.Millisecond)
		s.Advance(20*time.Millisecond, now)
	}

	want := s.StartX + 5*s.Progress()*0.05
	if s.X != want {
		t.Errorf("x = %f, want %f", s.X, want)
	}
}

func TestDespawnedSpriteIsInert(t *testing.T) {
	start := time.Unix(1000, 0)
	s := newSprite(1, "a.jpg", 0, testProfile(), 600, 0, Decoration{}, start)
	s.despawn()

	y := s.Y
	s.Advance(time.Second, start.Add(time.Second))
	if s.Y != y || s.Phase != Despawned || s.ContentVisible {
		t.Fatalf("despawned sprite changed: %+v", s)
	}
}

func TestZeroEasingDoesNotStall(t *testing.T) {
	start := time.Unix(1000, 0)
	p := testProfile()
	p.Easing = 0
	s := newSprite(1, "a.jpg", 0, p, 600, 0, Decoration{}, start)
	fly(t, s, start, 20*time.Millisecond)
}
