// Package queue hands out images in shuffled cycles: every discovered image is
// shown once before any image repeats.
package queue

import (
	"math/rand"
)

// State is the persisted part of a Queue.
type State struct {
	Queue []string `json:"queue" yaml:"queue"`
	Used  []string `json:"used" yaml:"used"`
	Cycle int      `json:"cycle" yaml:"cycle"`
}

// Status summarises the current cycle.
type Status struct {
	CurrentCycle     int `json:"currentCycle"`
	TotalImages      int `json:"totalImages"`
	UsedInCycle      int `json:"usedInCycle"`
	RemainingInQueue int `json:"remainingInQueue"`
	RemainingInCycle int `json:"remainingInCycle"`
}

// Queue is a non-repeating rotation over a set of filenames. It is not safe
// for concurrent use; the engine owns it.
type Queue struct {
	rng      *rand.Rand
	images   []string
	state    State
	onChange func(State)

	// drained is set once the pending queue empties and the cycle counter has
	// moved on; the used list then belongs to the finished cycle.
	drained bool
}

// New creates an empty Queue at cycle 1.
func New(rng *rand.Rand) *Queue {
	q := new(Queue)
	q.rng = rng
	q.state.Cycle = 1
	return q
}

// OnChange registers a hook called with a copy of the state after every
// mutation.
func (q *Queue) OnChange(fn func(State)) {
	q.onChange = fn
}

// Restore replaces the in-memory state with a persisted one. Call SetImages
// afterwards to reconcile it with the discovered set.
func (q *Queue) Restore(s State) {
	q.state = State{
		Queue: append([]string(nil), s.Queue...),
		Used:  append([]string(nil), s.Used...),
		Cycle: s.Cycle,
	}
	if q.state.Cycle < 1 {
		q.state.Cycle = 1
	}
	q.drained = len(s.Queue) == 0 && len(s.Used) > 0
}

// SetImages installs the discovered image set. Pending and used entries that
// are no longer discovered are dropped, duplicates are removed and newly
// discovered images are slotted into the pending queue at random positions,
// so that every image is in exactly one of {queue, used}.
func (q *Queue) SetImages(images []string) {
	q.images = dedupe(images)

	known := make(map[string]bool, len(q.images))
	for _, name := range q.images {
		known[name] = true
	}

	seen := make(map[string]bool, len(q.images))
	keep := func(list []string) []string {
		out := list[:0]
		for _, name := range list {
			if known[name] && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
		return out
	}
	q.state.Used = keep(q.state.Used)
	q.state.Queue = keep(q.state.Queue)

	switch {
	case len(q.state.Queue) > 0:
		// A cycle in progress absorbs new images at random positions.
		for _, name := range q.images {
			if seen[name] {
				continue
			}
			i := q.rng.Intn(len(q.state.Queue) + 1)
			q.state.Queue = append(q.state.Queue, "")
			copy(q.state.Queue[i+1:], q.state.Queue[i:])
			q.state.Queue[i] = name
		}
	case q.drained:
		// The cycle already finished and was counted. New images join the
		// refill on the next draw.
		q.state.Used = nil
	case len(q.state.Used) > 0:
		// Filtering emptied the pending part of an uncounted cycle: finish it
		// with the images not yet shown, or close it if none are left.
		for _, name := range q.images {
			if !seen[name] {
				q.state.Queue = append(q.state.Queue, name)
			}
		}
		if len(q.state.Queue) == 0 {
			q.state.Cycle++
			q.drained = true
			break
		}
		q.rng.Shuffle(len(q.state.Queue), func(i, j int) {
			q.state.Queue[i], q.state.Queue[j] = q.state.Queue[j], q.state.Queue[i]
		})
	}

	q.changed()
}

// Images returns the discovered image set.
func (q *Queue) Images() []string {
	return append([]string(nil), q.images...)
}

// Next pops the next image of the cycle. When the pending queue is empty a
// new shuffled cycle is started from the full set. It reports false only when
// no images are known at all.
func (q *Queue) Next() (string, bool) {
	if len(q.state.Queue) == 0 {
		if len(q.images) == 0 {
			return "", false
		}
		q.refill()
	}

	selected := q.state.Queue[0]
	q.state.Queue = q.state.Queue[1:]
	q.state.Used = append(q.state.Used, selected)

	// The cycle counter moves as soon as the queue drains, not at refill.
	if len(q.state.Queue) == 0 {
		q.state.Cycle++
		q.drained = true
	}

	q.changed()
	return selected, true
}

// Reset clears the cycle back to its initial state. The next draw reshuffles
// the full set.
func (q *Queue) Reset() {
	q.state = State{Cycle: 1}
	q.drained = false
	q.changed()
}

// State returns a copy of the persisted state.
func (q *Queue) State() State {
	return State{
		Queue: append([]string(nil), q.state.Queue...),
		Used:  append([]string(nil), q.state.Used...),
		Cycle: q.state.Cycle,
	}
}

// Status reports progress through the current cycle.
func (q *Queue) Status() Status {
	return Status{
		CurrentCycle:     q.state.Cycle,
		TotalImages:      len(q.images),
		UsedInCycle:      len(q.state.Used),
		RemainingInQueue: len(q.state.Queue),
		RemainingInCycle: len(q.images) - len(q.state.Used),
	}
}

func (q *Queue) refill() {
	shuffled := append([]string(nil), q.images...)
	q.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	q.state.Queue = shuffled
	q.state.Used = nil
	q.drained = false
}

func (q *Queue) changed() {
	if q.onChange != nil {
		q.onChange(q.State())
	}
}

func dedupe(images []string) []string {
	seen := make(map[string]bool, len(images))
	out := make([]string, 0, len(images))
	for _, name := range images {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
