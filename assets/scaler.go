package assets

import (
	"encoding/json"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 85

// Record tracks one processed image.
type Record struct {
	SourceModified     time.Time `json:"sourceModified"`
	SourceSize         int64     `json:"sourceSize"`
	ScaledSize         int64     `json:"scaledSize"`
	ProcessedAt        time.Time `json:"processedAt"`
	OriginalDimensions string    `json:"originalDimensions"`
	ScaledDimensions   string    `json:"scaledDimensions"`
}

// Result summarises one scan.
type Result struct {
	Total        int  `json:"total"`
	Processed    int  `json:"processed"`
	Skipped      int  `json:"skipped"`
	Failed       int  `json:"failed"`
	HasNewImages bool `json:"hasNewImages"`
}

// Stats summarises every image processed so far.
type Stats struct {
	ProcessedCount   int     `json:"processedCount"`
	TotalSaved       int64   `json:"totalSaved"`
	AvgSavingPercent float64 `json:"avgSavingPercent"`
}

// Processor keeps a folder's scaled variants in step with its originals.
// Images taller than maxHeight are resized keeping their aspect ratio; the
// rest are copied unchanged.
type Processor struct {
	folder    string
	sourceDir string
	scaledDir string
	tracking  string
	maxHeight int
	workers   int

	mu      sync.Mutex
	records map[string]Record
}

// NewProcessor creates a Processor for folder as resolved by lister.
func NewProcessor(lister *Lister, folder string, maxHeight, workers int) *Processor {
	p := new(Processor)
	p.folder = folder
	p.sourceDir = lister.SourceDir(folder)
	p.scaledDir = lister.scaledDir(folder)
	p.tracking = filepath.Join(lister.Root(), fmt.Sprintf("processed-%s.json", folder))
	p.maxHeight = maxHeight
	p.workers = max(1, workers)
	p.records = p.loadRecords()
	return p
}

func (p *Processor) loadRecords() map[string]Record {
	records := make(map[string]Record)
	data, err := os.ReadFile(p.tracking)
	if err != nil {
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil {
		log.Printf("[Scaler %s] Ignoring corrupt tracking file: %v", p.folder, err)
		return make(map[string]Record)
	}
	return records
}

func (p *Processor) saveRecords() error {
	p.mu.Lock()
	data, err := json.MarshalIndent(p.records, "", "  ")
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(p.tracking, data, 0644)
}

func (p *Processor) needsProcessing(name string, info os.FileInfo) bool {
	p.mu.Lock()
	rec, ok := p.records[name]
	p.mu.Unlock()

	if !ok || !rec.SourceModified.Equal(info.ModTime()) {
		return true
	}
	_, err := os.Stat(filepath.Join(p.scaledDir, name))
	return err != nil
}

// ScanAndProcess processes every image that is new, changed, or missing its
// scaled variant.
func (p *Processor) ScanAndProcess() (Result, error) {
	var result Result

	names, err := readImages(p.sourceDir)
	if err != nil {
		return result, err
	}
	if err := os.MkdirAll(p.scaledDir, 0755); err != nil {
		return result, fmt.Errorf("failed to create %s: %w", p.scaledDir, err)
	}
	result.Total = len(names)

	var work []string
	for _, name := range names {
		info, err := os.Stat(filepath.Join(p.sourceDir, name))
		if err != nil {
			continue
		}
		if p.needsProcessing(name, info) {
			work = append(work, name)
		} else {
			result.Skipped++
		}
	}
	if len(work) == 0 {
		return result, nil
	}

	var processed, failed atomic.Int64
	jobs := make(chan string, p.workers*2)
	var wg sync.WaitGroup

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				rec, err := p.processImage(name)
				if err != nil {
					log.Printf("[Scaler %s] Error processing %s: %v", p.folder, name, err)
					failed.Add(1)
					continue
				}
				p.mu.Lock()
				p.records[name] = rec
				p.mu.Unlock()
				processed.Add(1)
				log.Printf("[Scaler %s] Processed %s: %s -> %s, %s saved",
					p.folder, name, rec.OriginalDimensions, rec.ScaledDimensions,
					FormatBytes(rec.SourceSize-rec.ScaledSize))
			}
		}()
	}

	for _, name := range work {
		jobs <- name
	}
	close(jobs)
	wg.Wait()

	result.Processed = int(processed.Load())
	result.Failed = int(failed.Load())
	result.HasNewImages = result.Processed > 0

	if result.Processed > 0 {
		if err := p.saveRecords(); err != nil {
			return result, fmt.Errorf("failed to save tracking: %w", err)
		}
	}
	return result, nil
}

func (p *Processor) processImage(name string) (Record, error) {
	src := filepath.Join(p.sourceDir, name)
	dst := filepath.Join(p.scaledDir, name)

	info, err := os.Stat(src)
	if err != nil {
		return Record{}, err
	}

	f, err := os.Open(src)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Record{}, fmt.Errorf("unreadable image: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Record{}, err
	}

	width, height := cfg.Width, cfg.Height
	if cfg.Height <= p.maxHeight {
		err = writeAtomic(dst, func(w io.Writer) error {
			_, err := io.Copy(w, f)
			return err
		})
	} else {
		img, _, derr := image.Decode(f)
		if derr != nil {
			return Record{}, fmt.Errorf("failed to decode: %w", derr)
		}
		height = p.maxHeight
		width = max(1, int(math.Round(float64(p.maxHeight)*float64(cfg.Width)/float64(cfg.Height))))
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

		err = writeAtomic(dst, func(w io.Writer) error {
			return encode(w, scaled, filepath.Ext(name))
		})
	}
	if err != nil {
		return Record{}, err
	}

	out, err := os.Stat(dst)
	if err != nil {
		return Record{}, err
	}

	return Record{
		SourceModified:     info.ModTime(),
		SourceSize:         info.Size(),
		ScaledSize:         out.Size(),
		ProcessedAt:        time.Now(),
		OriginalDimensions: fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		ScaledDimensions:   fmt.Sprintf("%dx%d", width, height),
	}, nil
}

// encode writes img in the format implied by ext.
func encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case ".png":
		return png.Encode(w, img)
	case ".gif":
		return gif.Encode(w, img, nil)
	case ".webp":
		return nativewebp.Encode(w, img, nil)
	case ".bmp":
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("unsupported format %q", ext)
}

// writeAtomic writes through a temporary file so readers never see a
// partial image.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".scaling-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Stats reports the processed count and the space saved.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var s Stats
	var percent float64
	for _, rec := range p.records {
		s.ProcessedCount++
		s.TotalSaved += rec.SourceSize - rec.ScaledSize
		if rec.SourceSize > 0 {
			percent += float64(rec.SourceSize-rec.ScaledSize) / float64(rec.SourceSize) * 100
		}
	}
	if s.ProcessedCount > 0 {
		s.AvgSavingPercent = math.Round(percent/float64(s.ProcessedCount)*10) / 10
	}
	return s
}

// CleanupOrphaned removes scaled variants whose original is gone.
func (p *Processor) CleanupOrphaned() (int, error) {
	scaled, err := readImages(p.scaledDir)
	if err != nil {
		return 0, err
	}
	sources, err := readImages(p.sourceDir)
	if err != nil {
		return 0, err
	}

	present := make(map[string]bool, len(sources))
	for _, name := range sources {
		present[name] = true
	}

	var removed []string
	for _, name := range scaled {
		if present[name] {
			continue
		}
		if err := os.Remove(filepath.Join(p.scaledDir, name)); err != nil {
			log.Printf("[Scaler %s] Cannot remove %s: %v", p.folder, name, err)
			continue
		}
		p.mu.Lock()
		delete(p.records, name)
		p.mu.Unlock()
		removed = append(removed, name)
	}

	if len(removed) > 0 {
		sort.Strings(removed)
		log.Printf("[Scaler %s] Removed %d orphaned images: %s", p.folder, len(removed), strings.Join(removed, ", "))
		if err := p.saveRecords(); err != nil {
			return len(removed), err
		}
	}
	return len(removed), nil
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	if n == 0 {
		return "0 B"
	}
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	units := []string{"B", "KB", "MB", "GB"}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	return sign + s + " " + units[i]
}
