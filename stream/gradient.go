package stream

import (
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// GradientTable is a hue look-up table indexed by position in [0, 1].
type GradientTable []struct {
	Hue float64
	Pos float64
}

// RainbowGradient drives the rainbow frame style.
var RainbowGradient = GradientTable{
	{0.0, 0.0},
	{6.0, 0.04},   // Pink
	{87.0, 0.14},  // Red
	{88.0, 0.28},  // Orange
	{98.0, 0.42},  // Yellow
	{180.0, 0.56}, // Green
	{190.0, 0.70}, // Turquoise
	{320.0, 0.84}, // Blue
	{328.0, 0.91}, // Violet
	{360.0, 1.0},  // Pink wrap
}

// GetColor blends the hues either side of t.
func (g GradientTable) GetColor(t, c, l float64) colorful.Color {
	for i := 0; i < len(g)-1; i++ {
		c1 := g[i]
		c2 := g[i+1]
		if c1.Pos <= t && t <= c2.Pos {
			h := (((t - c1.Pos) / (c2.Pos - c1.Pos)) * (c2.Hue - c1.Hue)) + c1.Hue
			return colorful.Hcl(h, c, l)
		}
	}

	return colorful.Hcl(g[len(g)-1].Hue, c, l)
}

// At samples the gradient cyclically over period, offset by delay.
func (g GradientTable) At(elapsed, delay, period time.Duration) colorful.Color {
	t := math.Mod(float64(elapsed+delay)/float64(period), 1)
	return g.GetColor(t, 0.8, 0.65).Clamped()
}
