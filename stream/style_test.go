package stream

import (
	"math/rand"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/matt-g-everett/shuffler/settings"
)

func TestParseFrameStyle(t *testing.T) {
	tests := map[string]FrameStyle{
		"neon":    StyleNeon,
		"GOLD":    StyleGold,
		"none":    StyleNone,
		"sparkly": StyleDefault,
	}
	for name, want := range tests {
		if got := ParseFrameStyle(name); got != want {
			t.Errorf("ParseFrameStyle(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDecorate(t *testing.T) {
	rng := rand.New(rand.NewSource(9))

	s := settings.Defaults("1")
	s.FrameEnabled = false
	if d := decorate(rng, s); d.Style != StyleNone || d.Blur != s.BlurAmount {
		t.Errorf("disabled frame = %+v", d)
	}

	s = settings.Defaults("1")
	s.FrameVariation = false
	s.FrameAnimation = false
	s.FrameStyle = "gold"
	d := decorate(rng, s)
	if d.Style != StyleGold || d.Animated || d.Scale != 1 {
		t.Errorf("fixed frame = %+v", d)
	}
	if h := d.Primary.Hex(); h != s.BrandColor1 && h != s.BrandColor2 {
		t.Errorf("unvaried colour %s is not a brand colour", h)
	}

	s = settings.Defaults("1")
	for i := 0; i < 200; i++ {
		d := decorate(rng, s)
		if d.Style == StyleNone || d.Style == StyleDefault {
			t.Fatalf("random style picked %v", d.Style)
		}
		if d.Scale < 0.95 || d.Scale > 1.05 || d.Delay >= time.Second {
			t.Fatalf("varied frame = %+v", d)
		}
		if d.Width > maxFrameWidth || d.Glow < 0 || d.Glow > 1 {
			t.Fatalf("frame metrics = %+v", d)
		}
	}
}

func TestVaryColorKeepsLightness(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	base, _ := colorful.Hex("#667eea")
	for i := 0; i < 500; i++ {
		c := varyColor(rng, base, 100)
		if _, _, l := c.Hsl(); l < 0.1-1e-9 || l > 0.9+1e-9 {
			t.Fatalf("lightness %f out of range", l)
		}
	}
}

func TestRainbowGradientCycles(t *testing.T) {
	g := RainbowGradient
	a := g.At(0, 0, 3*time.Second)
	b := g.At(3*time.Second, 0, 3*time.Second)
	if a.Hex() != b.Hex() {
		t.Errorf("gradient not periodic: %s vs %s", a.Hex(), b.Hex())
	}
	if c := g.At(time.Second, 0, 3*time.Second); c.Hex() == a.Hex() {
		t.Error("gradient did not move")
	}
}
