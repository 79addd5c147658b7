package main

import (
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/matt-g-everett/shuffler/stream"
)

func TestRoundMask(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			src.Set(x, y, color.RGBA{200, 10, 10, 255})
		}
	}

	m := roundMask(src, 64)
	if m.Bounds().Dx() != 64 || m.Bounds().Dy() != 64 {
		t.Fatalf("mask size %v", m.Bounds())
	}
	if a := m.NRGBAAt(0, 0).A; a != 0 {
		t.Errorf("corner alpha = %d, want 0", a)
	}
	if c := m.NRGBAAt(32, 32); c.A != 255 || c.R < 190 {
		t.Errorf("centre = %+v", c)
	}
}

func TestPlaceholderIsStable(t *testing.T) {
	a := placeholder("image3.jpg", 32)
	b := placeholder("image3.jpg", 32)
	c := placeholder("image4.jpg", 32)

	if a.NRGBAAt(16, 16) != b.NRGBAAt(16, 16) {
		t.Error("same name produced different placeholders")
	}
	if a.NRGBAAt(16, 16) == c.NRGBAAt(16, 16) {
		t.Error("different names produced the same placeholder")
	}
	if a.NRGBAAt(0, 0).A != 0 {
		t.Error("placeholder corner not transparent")
	}
}

func TestFetchFallsBackToPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/instances/1/images/ok.png":
			img := image.NewRGBA(image.Rect(0, 0, 10, 10))
			png.Encode(w, img)
		case "/api/instances/1/images/garbage.png":
			w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newFetcher(srv.URL, "1")
	if l := f.fetch("ok.png"); l.err != nil || l.img.Bounds().Dx() != textureSize {
		t.Errorf("fetch ok.png = %v, %v", l.img.Bounds(), l.err)
	}
	for _, name := range []string{"garbage.png", "missing.png"} {
		l := f.fetch(name)
		if l.err == nil || l.img == nil {
			t.Errorf("fetch %s = %v, want a placeholder and an error", name, l.err)
		}
	}
}

func TestRingFor(t *testing.T) {
	primary, _ := colorful.Hex("#667eea")

	if _, ok := ringFor(stream.Decoration{Style: stream.StyleNone, Width: 4}, 0); ok {
		t.Error("none style drew a ring")
	}

	r, ok := ringFor(stream.Decoration{Style: stream.StyleFire, Width: 4, Primary: primary, Glow: 0.5}, 0)
	if !ok || r.Outer != fireOuter || r.Glow != 0.5 {
		t.Errorf("fire ring = %+v", r)
	}

	d := stream.Decoration{Style: stream.StyleRainbow, Width: 2}
	a, _ := ringFor(d, 0)
	b, _ := ringFor(d, time.Second)
	if a.Outer == b.Outer {
		t.Error("rainbow ring did not change over time")
	}
}
