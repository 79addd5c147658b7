package assets

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func sorted(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

func TestListPrefersScaled(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "images", "a.jpg"))
	touch(t, filepath.Join(root, "images", "b.PNG"))
	touch(t, filepath.Join(root, "images", "notes.txt"))
	touch(t, filepath.Join(root, "images-scaled", "a.jpg"))

	l := NewLister(root, "")
	got, err := l.List("images")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a.jpg", "b.PNG"}; len(got) != 2 || sorted(got)[0] != want[0] || sorted(got)[1] != want[1] {
		t.Errorf("List = %v, want %v", got, want)
	}

	path, err := l.Resolve("images", "a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(filepath.Dir(path)) != "images-scaled" {
		t.Errorf("Resolve picked %s, want the scaled variant", path)
	}
	path, err = l.Resolve("images", "b.PNG")
	if err != nil || filepath.Base(filepath.Dir(path)) != "images" {
		t.Errorf("Resolve = %s, %v, want the original", path, err)
	}
}

func TestListFallsBackToHome(t *testing.T) {
	root, home := t.TempDir(), t.TempDir()
	touch(t, filepath.Join(home, "images2", "c.webp"))

	l := NewLister(root, home)
	got, err := l.List("images2")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "c.webp" {
		t.Errorf("List = %v", got)
	}
	if _, err := l.Resolve("images2", "c.webp"); err != nil {
		t.Errorf("Resolve from home: %v", err)
	}
}

func TestListMissingFolderIsEmpty(t *testing.T) {
	l := NewLister(t.TempDir(), "")
	got, err := l.List("nothing")
	if err != nil || len(got) != 0 {
		t.Errorf("List = %v, %v", got, err)
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "images", "a.jpg"))
	l := NewLister(root, "")

	tests := []struct {
		folder, file string
		want         error
	}{
		{"images", "../secret.jpg", ErrForbidden},
		{"..", "a.jpg", ErrForbidden},
		{"images", "sub/a.jpg", ErrForbidden},
		{"images", "", ErrForbidden},
		{"images", "missing.jpg", ErrNotFound},
	}
	for _, tt := range tests {
		if _, err := l.Resolve(tt.folder, tt.file); !errors.Is(err, tt.want) {
			t.Errorf("Resolve(%q, %q) = %v, want %v", tt.folder, tt.file, err, tt.want)
		}
	}
	if _, err := l.List("../etc"); !errors.Is(err, ErrForbidden) {
		t.Errorf("List outside root = %v", err)
	}
}

func TestPlaceholders(t *testing.T) {
	p := Placeholders()
	if len(p) != 10 || p[0] != "image1.jpg" || p[9] != "image10.jpg" {
		t.Errorf("Placeholders = %v", p)
	}
}

func TestProcessorScalesTallImages(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "images", "tall.png"), 100, 800)
	writePNG(t, filepath.Join(root, "images", "small.png"), 40, 100)

	l := NewLister(root, "")
	p := NewProcessor(l, "images", 200, 2)

	res, err := p.ScanAndProcess()
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 || res.Processed != 2 || !res.HasNewImages {
		t.Fatalf("first scan = %+v", res)
	}

	f, err := os.Open(filepath.Join(root, "images-scaled", "tall.png"))
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 25 || cfg.Height != 200 {
		t.Errorf("scaled to %dx%d, want 25x200", cfg.Width, cfg.Height)
	}

	small, err := os.ReadFile(filepath.Join(root, "images", "small.png"))
	if err != nil {
		t.Fatal(err)
	}
	copied, err := os.ReadFile(filepath.Join(root, "images-scaled", "small.png"))
	if err != nil || string(copied) != string(small) {
		t.Errorf("small image not copied verbatim: %v", err)
	}

	res, err = p.ScanAndProcess()
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 0 || res.Skipped != 2 || res.HasNewImages {
		t.Errorf("second scan = %+v", res)
	}

	if s := p.Stats(); s.ProcessedCount != 2 {
		t.Errorf("stats = %+v", s)
	}

	// Tracking survives a restart.
	again := NewProcessor(l, "images", 200, 1)
	if s := again.Stats(); s.ProcessedCount != 2 {
		t.Errorf("reloaded stats = %+v", s)
	}
}

func TestProcessorRedoesChangedImages(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "images", "a.png")
	writePNG(t, src, 10, 10)

	p := NewProcessor(NewLister(root, ""), "images", 200, 1)
	if _, err := p.ScanAndProcess(); err != nil {
		t.Fatal(err)
	}

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(src, later, later); err != nil {
		t.Fatal(err)
	}
	res, err := p.ScanAndProcess()
	if err != nil || res.Processed != 1 {
		t.Errorf("rescan after change = %+v, %v", res, err)
	}

	if err := os.Remove(filepath.Join(root, "images-scaled", "a.png")); err != nil {
		t.Fatal(err)
	}
	res, err = p.ScanAndProcess()
	if err != nil || res.Processed != 1 {
		t.Errorf("rescan after losing the scaled file = %+v, %v", res, err)
	}
}

func TestCleanupOrphaned(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "images", "keep.png"), 10, 10)
	writePNG(t, filepath.Join(root, "images", "gone.png"), 10, 10)

	p := NewProcessor(NewLister(root, ""), "images", 200, 2)
	if _, err := p.ScanAndProcess(); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(root, "images", "gone.png")); err != nil {
		t.Fatal(err)
	}

	n, err := p.CleanupOrphaned()
	if err != nil || n != 1 {
		t.Fatalf("CleanupOrphaned = %d, %v", n, err)
	}
	if _, err := os.Stat(filepath.Join(root, "images-scaled", "gone.png")); !os.IsNotExist(err) {
		t.Error("orphan still present")
	}
	if s := p.Stats(); s.ProcessedCount != 1 {
		t.Errorf("stats after cleanup = %+v", s)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5 MB"},
		{-2048, "-2 KB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
