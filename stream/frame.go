package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	frameMagic   = "SF"
	frameVersion = 1

	flagContentVisible = 1 << 0
	flagAnimated       = 1 << 1
)

// ErrBadFrame is returned when decoding data that is not a frame.
var ErrBadFrame = errors.New("bad frame")

// SpriteState is what a renderer needs to draw one sprite.
type SpriteState struct {
	ID             uint32
	Image          string
	X, Y           float64
	Size           float64
	Opacity        float64
	ContentVisible bool
	Phase          Phase
	Decoration     Decoration
}

// Frame is a snapshot of one display instance, streamed to renderers.
type Frame struct {
	Seq        uint32
	Width      int
	Height     int
	Background colorful.Color
	Sprites    []SpriteState
}

type frameHeader struct {
	Magic   [2]byte
	Version uint8
	Seq     uint32
	Width   uint16
	Height  uint16
	Back    [3]uint8
	Count   uint16
}

type spriteRecord struct {
	ID        uint32
	X, Y      float32
	Size      float32
	Opacity   float32
	Flags     uint8
	Phase     uint8
	Style     uint8
	Width     uint8
	Primary   [3]uint8
	Secondary [3]uint8
	Glow      uint8
	Scale     uint8
	Blur      uint8
	DelayMs   uint16
	NameLen   uint16
}

// MaxViewport is the largest viewport side a frame header can carry.
const MaxViewport = math.MaxUint16

// MarshalBinary encodes the frame little-endian.
func (f *Frame) MarshalBinary() (data []byte, err error) {
	buf := new(bytes.Buffer)
	buf.Grow(16 + len(f.Sprites)*64)

	h := frameHeader{
		Version: frameVersion,
		Seq:     f.Seq,
		Width:   uint16(f.Width),
		Height:  uint16(f.Height),
		Back:    rgb(f.Background),
		Count:   uint16(len(f.Sprites)),
	}
	copy(h.Magic[:], frameMagic)
	if err := binary.Write(buf, binary.LittleEndian, &h); err != nil {
		return nil, err
	}

	for _, s := range f.Sprites {
		var flags uint8
		if s.ContentVisible {
			flags |= flagContentVisible
		}
		if s.Decoration.Animated {
			flags |= flagAnimated
		}
		r := spriteRecord{
			ID:        s.ID,
			X:         float32(s.X),
			Y:         float32(s.Y),
			Size:      float32(s.Size),
			Opacity:   float32(s.Opacity),
			Flags:     flags,
			Phase:     uint8(s.Phase),
			Style:     uint8(s.Decoration.Style),
			Width:     uint8(math.Round(s.Decoration.Width)),
			Primary:   rgb(s.Decoration.Primary),
			Secondary: rgb(s.Decoration.Secondary),
			Glow:      uint8(math.Round(s.Decoration.Glow * 255)),
			Scale:     uint8(math.Round(s.Decoration.Scale * 100)),
			Blur:      uint8(math.Min(255, math.Round(s.Decoration.Blur))),
			DelayMs:   uint16(s.Decoration.Delay.Milliseconds()),
			NameLen:   uint16(len(s.Image)),
		}
		if err := binary.Write(buf, binary.LittleEndian, &r); err != nil {
			return nil, err
		}
		buf.WriteString(s.Image)
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a frame produced by MarshalBinary.
func (f *Frame) UnmarshalBinary(data []byte) error {
	rd := bytes.NewReader(data)

	var h frameHeader
	if err := binary.Read(rd, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("%w: header: %v", ErrBadFrame, err)
	}
	if string(h.Magic[:]) != frameMagic || h.Version != frameVersion {
		return fmt.Errorf("%w: magic %q version %d", ErrBadFrame, h.Magic[:], h.Version)
	}

	f.Seq = h.Seq
	f.Width = int(h.Width)
	f.Height = int(h.Height)
	f.Background = fromRGB(h.Back)
	f.Sprites = make([]SpriteState, 0, h.Count)

	for i := 0; i < int(h.Count); i++ {
		var r spriteRecord
		if err := binary.Read(rd, binary.LittleEndian, &r); err != nil {
			return fmt.Errorf("%w: sprite %d: %v", ErrBadFrame, i, err)
		}
		name := make([]byte, r.NameLen)
		if _, err := io.ReadFull(rd, name); err != nil {
			return fmt.Errorf("%w: sprite %d name: %v", ErrBadFrame, i, err)
		}

		f.Sprites = append(f.Sprites, SpriteState{
			ID:             r.ID,
			Image:          string(name),
			X:              float64(r.X),
			Y:              float64(r.Y),
			Size:           float64(r.Size),
			Opacity:        float64(r.Opacity),
			ContentVisible: r.Flags&flagContentVisible != 0,
			Phase:          Phase(r.Phase),
			Decoration: Decoration{
				Style:     FrameStyle(r.Style),
				Width:     float64(r.Width),
				Primary:   fromRGB(r.Primary),
				Secondary: fromRGB(r.Secondary),
				Glow:      float64(r.Glow) / 255,
				Scale:     float64(r.Scale) / 100,
				Blur:      float64(r.Blur),
				Animated:  r.Flags&flagAnimated != 0,
				Delay:     time.Duration(r.DelayMs) * time.Millisecond,
			},
		})
	}

	return nil
}

func rgb(c colorful.Color) [3]uint8 {
	r, g, b := c.Clamped().RGB255()
	return [3]uint8{r, g, b}
}

func fromRGB(v [3]uint8) colorful.Color {
	return colorful.Color{R: float64(v[0]) / 255, G: float64(v[1]) / 255, B: float64(v[2]) / 255}
}
