package stream

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/matt-g-everett/shuffler/settings"
	"github.com/matt-g-everett/shuffler/util"
)

// FrameStyle names the decorative ring drawn around a sprite.
type FrameStyle uint8

const (
	StyleNone FrameStyle = iota
	StyleDefault
	StyleClassic
	StyleNeon
	StylePlasma
	StyleCosmic
	StyleFire
	StyleIce
	StyleRainbow
	StyleElectric
	StyleGold
	StyleBlack
)

var styleNames = [...]string{"none", "default", "classic", "neon", "plasma", "cosmic",
	"fire", "ice", "rainbow", "electric", "gold", "black"}

// randomStyles are the styles picked from when frame variation is on.
var randomStyles = []FrameStyle{StyleClassic, StyleNeon, StylePlasma, StyleCosmic,
	StyleFire, StyleIce, StyleRainbow, StyleElectric}

func (f FrameStyle) String() string {
	if int(f) < len(styleNames) {
		return styleNames[f]
	}
	return "unknown"
}

// ParseFrameStyle maps a style name onto a FrameStyle. Unknown names fall
// back to StyleDefault.
func ParseFrameStyle(name string) FrameStyle {
	name = strings.ToLower(name)
	for i, n := range styleNames {
		if n == name {
			return FrameStyle(i)
		}
	}
	return StyleDefault
}

// Decoration is the per-sprite frame look. It is re-derived whenever the
// settings change, so it is the one part of a sprite that follows live
// updates.
type Decoration struct {
	Style     FrameStyle
	Width     float64
	Primary   colorful.Color
	Secondary colorful.Color
	Glow      float64 // opacity of the glow, 0..1
	Scale     float64
	Blur      float64
	Animated  bool
	Delay     time.Duration
}

const maxFrameWidth = 6

func decorate(rng *rand.Rand, s settings.Settings) Decoration {
	d := Decoration{Style: StyleNone, Scale: 1, Blur: s.BlurAmount}
	if !s.FrameEnabled {
		return d
	}

	d.Style = ParseFrameStyle(s.FrameStyle)
	if s.FrameVariation {
		d.Style = randomStyles[rng.Intn(len(randomStyles))]
	}

	d.Primary = brandColor(rng, s)
	d.Secondary = brandColor(rng, s)

	effect := s.EffectIntensity / 100
	d.Width = math.Min(s.FrameWidth, maxFrameWidth)
	d.Glow = util.Clamp((s.GlowIntensity/100)*effect, 0, 1)

	if s.FrameAnimation {
		d.Animated = true
		d.Delay = time.Duration(rng.Float64() * float64(time.Second))
	}
	if s.FrameVariation {
		d.Scale = util.RandomRange(rng, 0.95, 1.05)
	}
	return d
}

// brandColor picks one of the two brand colours, varied when enabled.
func brandColor(rng *rand.Rand, s settings.Settings) colorful.Color {
	hex := s.BrandColor1
	if rng.Float64() > 0.5 {
		hex = s.BrandColor2
	}
	base, err := colorful.Hex(hex)
	if err != nil {
		base, _ = colorful.Hex(settings.Defaults("1").BrandColor1)
	}

	if s.FrameVariation && s.ColorVariation > 0 {
		return varyColor(rng, base, s.ColorVariation)
	}
	return base
}

// varyColor shifts hue, saturation and lightness by amounts proportional to
// variation (a percentage). Lightness stays within [0.1, 0.9].
func varyColor(rng *rand.Rand, base colorful.Color, variation float64) colorful.Color {
	amount := variation / 100
	h, s, l := base.Hsl()

	h = math.Mod(h+util.Jitter(rng, amount*0.15)*360+360, 360)
	s = util.Clamp(s+util.Jitter(rng, amount*0.2), 0, 1)
	l = util.Clamp(l+util.Jitter(rng, amount*0.25), 0.1, 0.9)

	return colorful.Hsl(h, s, l).Clamped()
}
