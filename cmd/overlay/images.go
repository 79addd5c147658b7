package main

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// textureSize is the side of the square textures sprites are drawn from.
const textureSize = 256

type loadedImage struct {
	name string
	img  image.Image
	err  error
}

type fetcher struct {
	base     string
	instance string
	client   *http.Client
}

func newFetcher(base, instance string) *fetcher {
	return &fetcher{
		base:     base,
		instance: instance,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// fetch downloads and round-masks one image. On any failure the result
// carries a generated placeholder alongside the error.
func (f *fetcher) fetch(name string) loadedImage {
	img, err := f.download(name)
	if err != nil {
		return loadedImage{name: name, img: placeholder(name, textureSize), err: err}
	}
	return loadedImage{name: name, img: roundMask(img, textureSize)}
}

func (f *fetcher) download(name string) (image.Image, error) {
	u := fmt.Sprintf("%s/api/instances/%s/images/%s", f.base, url.PathEscape(f.instance), url.PathEscape(name))
	res, err := f.client.Get(u)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u, res.Status)
	}
	img, _, err := image.Decode(res.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// roundMask crops the centre square of src, scales it to size and clears
// everything outside the inscribed circle.
func roundMask(src image.Image, size int) *image.NRGBA {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	crop := image.Rect(0, 0, side, side).Add(image.Pt(
		b.Min.X+(b.Dx()-side)/2,
		b.Min.Y+(b.Dy()-side)/2,
	))

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)

	applyCircle(dst)
	return dst
}

// applyCircle fades alpha to zero outside the inscribed circle with a one
// pixel soft edge.
func applyCircle(img *image.NRGBA) {
	size := img.Bounds().Dx()
	r := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-r, float64(y)+0.5-r)
			cover := math.Max(0, math.Min(1, r-d))
			if cover >= 1 {
				continue
			}
			i := img.PixOffset(x, y)
			img.Pix[i+3] = uint8(float64(img.Pix[i+3]) * cover)
		}
	}
}

// placeholder draws a shaded disc whose hue is derived from name, so the
// same missing image always looks the same.
func placeholder(name string, size int) *image.NRGBA {
	h := fnv.New32a()
	h.Write([]byte(name))
	hue := float64(h.Sum32() % 360)

	inner := colorful.Hsv(hue, 0.45, 0.95)
	outer := colorful.Hsv(math.Mod(hue+40, 360), 0.7, 0.6)

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	r := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-r, float64(y)+0.5-r) / r
			c := inner.BlendLab(outer, math.Min(1, d)).Clamped()
			cr, cg, cb := c.RGB255()
			img.SetNRGBA(x, y, color.NRGBA{cr, cg, cb, 255})
		}
	}
	applyCircle(img)
	return img
}
