package stream

import (
	"math"
	"math/rand"

	"github.com/matt-g-everett/shuffler/util"
)

const laneAttempts = 20

// PickX chooses a left edge for a new sprite of the given size. It samples up
// to laneAttempts random positions and takes the first one at least
// minSpacing away from every position in others. If none qualifies it falls
// back to one of maxImages+1 evenly spaced slots, indexed by how many sprites
// are active.
//
// others are current positions, not predicted ones: two sprites can still
// cross paths vertically.
func PickX(rng *rand.Rand, others []float64, width, size, minSpacing float64, maxImages int) float64 {
	span := math.Max(0, width-size)

	for attempt := 0; attempt < laneAttempts; attempt++ {
		candidate := rng.Float64() * span
		clear := true
		for _, x := range others {
			if math.Abs(candidate-x) < minSpacing {
				clear = false
				break
			}
		}
		if clear {
			return candidate
		}
	}

	slotWidth := width / float64(maxImages+1)
	slot := slotWidth*float64(len(others)+1) - size/2
	return util.Clamp(slot, 0, span)
}
