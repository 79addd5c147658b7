package main

import (
	"image/color"
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/matt-g-everett/shuffler/stream"
)

const (
	rainbowPeriod = 3 * time.Second
	pulsePeriod   = 2 * time.Second
)

var (
	fireOuter = mustHex("#ff4500")
	fireInner = mustHex("#ffd700")
	iceOuter  = mustHex("#00bfff")
	iceInner  = mustHex("#e0ffff")
	goldOuter = mustHex("#b8860b")
	goldInner = mustHex("#ffd700")
	black     = mustHex("#111111")
	electric  = mustHex("#7df9ff")
	plasma    = mustHex("#ff00ff")
	cosmic    = mustHex("#4b0082")
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ring is how one sprite's frame is stroked.
type ring struct {
	Outer, Inner colorful.Color
	Width        float64
	Glow         float64
}

// ringFor resolves a decoration into concrete colours at elapsed time. ok is
// false when nothing should be drawn.
func ringFor(d stream.Decoration, elapsed time.Duration) (ring, bool) {
	if d.Style == stream.StyleNone || d.Width <= 0 {
		return ring{}, false
	}

	r := ring{Outer: d.Primary, Inner: d.Secondary, Width: d.Width, Glow: d.Glow}

	switch d.Style {
	case stream.StyleFire:
		r.Outer, r.Inner = fireOuter, fireInner
	case stream.StyleIce:
		r.Outer, r.Inner = iceOuter, iceInner
	case stream.StyleGold:
		r.Outer, r.Inner = goldOuter, goldInner
	case stream.StyleBlack:
		r.Outer, r.Inner, r.Glow = black, black, 0
	case stream.StyleElectric:
		r.Inner = electric
	case stream.StylePlasma:
		r.Inner = plasma
	case stream.StyleCosmic:
		r.Outer = cosmic
	case stream.StyleRainbow:
		r.Outer = stream.RainbowGradient.At(elapsed, d.Delay, rainbowPeriod)
		r.Inner = stream.RainbowGradient.At(elapsed, d.Delay+rainbowPeriod/2, rainbowPeriod)
	case stream.StyleClassic:
		r.Glow = 0
	}

	if d.Animated && d.Style != stream.StyleRainbow {
		phase := float64((elapsed+d.Delay)%pulsePeriod) / float64(pulsePeriod)
		r.Glow *= 0.8 + 0.2*math.Sin(phase*2*math.Pi)
	}
	return r, true
}

// withAlpha converts c to a colour carrying alpha a in [0, 1].
func withAlpha(c colorful.Color, a float64) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(math.Max(0, math.Min(1, a)) * 255))}
}
