package queue

import (
	"math/rand"
	"sort"
	"testing"
)

func newTestQueue(seed int64, images ...string) *Queue {
	q := New(rand.New(rand.NewSource(seed)))
	q.SetImages(images)
	return q
}

// checkCoverage asserts that queue and used partition the image set.
func checkCoverage(t *testing.T, q *Queue) {
	t.Helper()
	s := q.State()
	seen := make(map[string]int)
	for _, name := range s.Queue {
		seen[name]++
	}
	for _, name := range s.Used {
		seen[name]++
	}
	images := q.Images()
	if len(s.Queue) == 0 && len(s.Used) == 0 {
		return
	}
	for _, name := range images {
		if seen[name] != 1 {
			t.Fatalf("image %q appears %d times in {queue, used}: %+v", name, seen[name], s)
		}
	}
	if len(seen) != len(images) {
		t.Fatalf("unknown names in state: %+v", s)
	}
}

func TestNextCoversCycleOnce(t *testing.T) {
	images := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}
	q := newTestQueue(42, images...)

	var got []string
	for range images {
		name, ok := q.Next()
		if !ok {
			t.Fatal("Next reported no image")
		}
		got = append(got, name)
		checkCoverage(t, q)
	}

	sorted := append([]string(nil), got...)
	sort.Strings(sorted)
	for i := range images {
		if sorted[i] != images[i] {
			t.Fatalf("cycle returned %v, want each of %v once", got, images)
		}
	}

	if c := q.Status().CurrentCycle; c != 2 {
		t.Errorf("cycle after draining = %d, want 2", c)
	}

	// The next draw starts a fresh cycle with a cleared used-set.
	if _, ok := q.Next(); !ok {
		t.Fatal("Next after drain reported no image")
	}
	st := q.Status()
	if st.UsedInCycle != 1 || st.RemainingInQueue != len(images)-1 {
		t.Errorf("status after refill = %+v", st)
	}
	if st.CurrentCycle != 2 {
		t.Errorf("refill must not bump the cycle, got %d", st.CurrentCycle)
	}
}

func TestCoverageAcrossManyCycles(t *testing.T) {
	q := newTestQueue(3, "1", "2", "3", "4", "5", "6", "7")
	for i := 0; i < 100; i++ {
		if _, ok := q.Next(); !ok {
			t.Fatal("Next failed")
		}
		checkCoverage(t, q)
	}
}

func TestOrderVariesBetweenCycles(t *testing.T) {
	images := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	q := newTestQueue(11, images...)

	draw := func() string {
		var s string
		for range images {
			name, _ := q.Next()
			s += name
		}
		return s
	}

	first := draw()
	differs := false
	for i := 0; i < 10; i++ {
		if draw() != first {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("every cycle produced the same order")
	}
}

func TestEmptySet(t *testing.T) {
	q := newTestQueue(1)
	if name, ok := q.Next(); ok {
		t.Errorf("Next on empty set returned %q", name)
	}
}

func TestReset(t *testing.T) {
	q := newTestQueue(5, "a", "b", "c")
	q.Next()
	q.Next()

	q.Reset()
	s := q.State()
	if len(s.Queue) != 0 || len(s.Used) != 0 || s.Cycle != 1 {
		t.Fatalf("state after reset = %+v", s)
	}

	q.Next()
	st := q.Status()
	if st.UsedInCycle != 1 || st.RemainingInQueue != 2 {
		t.Errorf("reset queue did not reshuffle the full set: %+v", st)
	}
}

func TestOnChangeReceivesState(t *testing.T) {
	q := newTestQueue(9, "a", "b")
	var last State
	calls := 0
	q.OnChange(func(s State) {
		last = s
		calls++
	})

	name, _ := q.Next()
	if calls != 1 {
		t.Fatalf("OnChange called %d times", calls)
	}
	if len(last.Used) != 1 || last.Used[0] != name {
		t.Errorf("persisted state = %+v", last)
	}
}

func TestRestoreReconcilesDiscoveredSet(t *testing.T) {
	q := New(rand.New(rand.NewSource(2)))
	q.Restore(State{
		Queue: []string{"c", "gone", "d"},
		Used:  []string{"a", "b", "b"},
		Cycle: 4,
	})
	q.SetImages([]string{"a", "b", "c", "d", "new"})

	checkCoverage(t, q)
	st := q.Status()
	if st.CurrentCycle != 4 {
		t.Errorf("cycle = %d, want 4", st.CurrentCycle)
	}
	if st.UsedInCycle != 2 || st.RemainingInQueue != 3 {
		t.Errorf("status = %+v", st)
	}

	// The rest of the cycle only yields images not yet shown.
	for i := 0; i < 3; i++ {
		name, _ := q.Next()
		if name == "a" || name == "b" {
			t.Fatalf("resumed cycle repeated %q", name)
		}
	}
}

func TestRestoreFinishesFilteredCycle(t *testing.T) {
	q := New(rand.New(rand.NewSource(2)))
	q.Restore(State{Queue: []string{"gone"}, Used: []string{"a"}, Cycle: 1})
	q.SetImages([]string{"a", "b", "c"})

	checkCoverage(t, q)
	for i := 0; i < 2; i++ {
		if name, _ := q.Next(); name == "a" {
			t.Fatal("image a repeated within its cycle")
		}
		if i == 0 && q.Status().CurrentCycle != 1 {
			t.Fatalf("cycle = %d mid-cycle, want 1", q.Status().CurrentCycle)
		}
	}
	if got := q.Status().CurrentCycle; got != 2 {
		t.Errorf("cycle = %d after finishing, want 2", got)
	}
}

func TestRestoreFilteredCycleWithNothingLeft(t *testing.T) {
	q := New(rand.New(rand.NewSource(2)))
	q.Restore(State{Queue: []string{"gone"}, Used: []string{"a", "b"}, Cycle: 3})
	q.SetImages([]string{"a", "b"})

	if got := q.Status().CurrentCycle; got != 4 {
		t.Fatalf("cycle = %d, want 4", got)
	}
	q.Next()
	if got := q.Status().CurrentCycle; got != 4 {
		t.Errorf("cycle = %d after first draw of the new cycle, want 4", got)
	}
}

func TestRestoreDrainedCycle(t *testing.T) {
	q := New(rand.New(rand.NewSource(2)))
	q.Restore(State{Used: []string{"a"}, Cycle: 2})
	q.SetImages([]string{"a", "b", "c"})

	checkCoverage(t, q)
	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		name, _ := q.Next()
		if seen[name] {
			t.Fatalf("image %q repeated within cycle 2", name)
		}
		seen[name] = true
		if i < 2 && q.Status().CurrentCycle != 2 {
			t.Fatalf("cycle = %d after draw %d, want 2", q.Status().CurrentCycle, i+1)
		}
	}
	if got := q.Status().CurrentCycle; got != 3 {
		t.Errorf("cycle = %d, want 3", got)
	}
}

func TestImageAddedAfterDrainJoinsNextCycle(t *testing.T) {
	q := newTestQueue(5, "a", "b", "c")
	for i := 0; i < 3; i++ {
		q.Next()
	}
	if got := q.Status().CurrentCycle; got != 2 {
		t.Fatalf("cycle = %d after draining, want 2", got)
	}

	q.SetImages([]string{"a", "b", "c", "d"})
	checkCoverage(t, q)
	if got := q.Status().CurrentCycle; got != 2 {
		t.Fatalf("cycle = %d after adding d, want 2", got)
	}

	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		name, _ := q.Next()
		if seen[name] {
			t.Fatalf("image %q drawn twice in cycle 2", name)
		}
		seen[name] = true
		if i < 3 && q.Status().CurrentCycle != 2 {
			t.Fatalf("cycle = %d after draw %d, want 2", q.Status().CurrentCycle, i+1)
		}
	}
	if !seen["d"] {
		t.Error("d never drawn in cycle 2")
	}
	if got := q.Status().CurrentCycle; got != 3 {
		t.Errorf("cycle = %d after cycle 2, want 3", got)
	}
}
