// Package settings holds the tunable parameters of a display instance.
package settings

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/matt-g-everett/shuffler/util"
)

// Settings is the flat parameter set of one display instance. Field names on
// the wire match the admin surface.
type Settings struct {
	MaxImages    int     `json:"maxImages" yaml:"maxImages"`
	Speed        float64 `json:"speed" yaml:"speed"`
	BottomOffset float64 `json:"bottomOffset" yaml:"bottomOffset"`
	TopOffset    float64 `json:"topOffset" yaml:"topOffset"`
	ImageScale   float64 `json:"imageScale" yaml:"imageScale"`
	BlurAmount   float64 `json:"blurAmount" yaml:"blurAmount"`

	FrameEnabled    bool    `json:"frameEnabled" yaml:"frameEnabled"`
	FrameStyle      string  `json:"frameStyle" yaml:"frameStyle"`
	FrameWidth      float64 `json:"frameWidth" yaml:"frameWidth"`
	GlowIntensity   float64 `json:"glowIntensity" yaml:"glowIntensity"`
	FrameVariation  bool    `json:"frameVariation" yaml:"frameVariation"`
	FrameAnimation  bool    `json:"frameAnimation" yaml:"frameAnimation"`
	EffectIntensity float64 `json:"effectIntensity" yaml:"effectIntensity"`
	BrandColor1     string  `json:"brandColor1" yaml:"brandColor1"`
	BrandColor2     string  `json:"brandColor2" yaml:"brandColor2"`
	ColorVariation  float64 `json:"colorVariation" yaml:"colorVariation"`
	BackgroundColor string  `json:"backgroundColor" yaml:"backgroundColor"`

	CenterZoneStart float64 `json:"centerZoneStart" yaml:"centerZoneStart"`
	CenterZoneEnd   float64 `json:"centerZoneEnd" yaml:"centerZoneEnd"`
	EasingStrength  float64 `json:"easingStrength" yaml:"easingStrength"`
	OnTimeVariation float64 `json:"onTimeVariation" yaml:"onTimeVariation"`
	DisplayCenter   float64 `json:"displayCenter" yaml:"displayCenter"`
	MinSpacing      float64 `json:"minSpacing" yaml:"minSpacing"`
	ParkWaitTime    float64 `json:"parkWaitTime" yaml:"parkWaitTime"` // milliseconds
	ParkAreaHeight  float64 `json:"parkAreaHeight" yaml:"parkAreaHeight"`
	MinParkSpeed    float64 `json:"minParkSpeed" yaml:"minParkSpeed"`
	ParkZoneOffset  float64 `json:"parkZoneOffset" yaml:"parkZoneOffset"`
	SpeedVariation  float64 `json:"speedVariation" yaml:"speedVariation"`

	ImagesFolder string `json:"imagesFolder" yaml:"imagesFolder"`
}

// Defaults returns the settings a fresh instance starts with.
func Defaults(instance string) Settings {
	folder := "images2"
	if instance == "1" {
		folder = "images"
	}

	return Settings{
		MaxImages:       3,
		Speed:           2,
		BottomOffset:    100,
		TopOffset:       100,
		ImageScale:      150,
		BlurAmount:      5,
		FrameEnabled:    true,
		FrameStyle:      "neon",
		FrameWidth:      4,
		GlowIntensity:   50,
		FrameVariation:  true,
		FrameAnimation:  true,
		EffectIntensity: 100,
		BrandColor1:     "#667eea",
		BrandColor2:     "#764ba2",
		ColorVariation:  25,
		BackgroundColor: "#667eea",
		CenterZoneStart: 20,
		CenterZoneEnd:   80,
		EasingStrength:  2.0,
		OnTimeVariation: 15,
		DisplayCenter:   50,
		MinSpacing:      200,
		ParkWaitTime:    2000,
		ParkAreaHeight:  100,
		MinParkSpeed:    0.1,
		ParkZoneOffset:  0,
		SpeedVariation:  30,
		ImagesFolder:    folder,
	}
}

// paramNames maps short URL/form parameter names onto settings keys.
var paramNames = map[string]string{
	"maxImages":   "maxImages",
	"speed":       "speed",
	"scale":       "imageScale",
	"blur":        "blurAmount",
	"frame":       "frameEnabled",
	"frameStyle":  "frameStyle",
	"frameWidth":  "frameWidth",
	"glow":        "glowIntensity",
	"variation":   "frameVariation",
	"animation":   "frameAnimation",
	"effect":      "effectIntensity",
	"color1":      "brandColor1",
	"color2":      "brandColor2",
	"colorVar":    "colorVariation",
	"bg":          "backgroundColor",
	"centerStart": "centerZoneStart",
	"centerEnd":   "centerZoneEnd",
	"spacing":     "minSpacing",
	"parkWait":    "parkWaitTime",
	"parkHeight":  "parkAreaHeight",
	"parkSpeed":   "minParkSpeed",
	"parkOffset":  "parkZoneOffset",
	"speedVar":    "speedVariation",
}

// Merge overlays a partial JSON object onto a copy of s. Keys absent from the
// partial keep their current value. The result is sanitized; an invalid
// folder keeps the current one.
func (s Settings) Merge(partial []byte) (Settings, error) {
	merged := s
	if err := json.Unmarshal(partial, &merged); err != nil {
		return s, fmt.Errorf("failed to merge settings: %w", err)
	}
	merged.clamp()
	if !validFolder(merged.ImagesFolder) {
		merged.ImagesFolder = s.ImagesFolder
	}
	if !validFolder(merged.ImagesFolder) {
		merged.ImagesFolder = Defaults("1").ImagesFolder
	}
	return merged, nil
}

// ApplyParams overlays URL or form parameters using their short names.
func (s Settings) ApplyParams(params url.Values) (Settings, error) {
	patch, err := s.ParamsPatch(params)
	if err != nil || patch == nil {
		return s, err
	}
	return s.Merge(patch)
}

// ParamsPatch converts URL or form parameters into a partial settings object.
// Values are parsed according to the type of the setting they target;
// unparsable values are skipped. It returns nil when no parameter applies.
func (s Settings) ParamsPatch(params url.Values) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var current map[string]interface{}
	if err := json.Unmarshal(raw, &current); err != nil {
		return nil, err
	}

	partial := make(map[string]interface{})
	for param, key := range paramNames {
		if !params.Has(param) {
			continue
		}
		value := params.Get(param)
		switch current[key].(type) {
		case bool:
			partial[key] = strings.ToLower(value) == "true"
		case float64:
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			if key == "maxImages" {
				partial[key] = int(f)
			} else {
				partial[key] = f
			}
		default:
			partial[key] = value
		}
	}

	if len(partial) == 0 {
		return nil, nil
	}
	return json.Marshal(partial)
}

// Sanitize clamps every field into the range the motion engine relies on:
// positive speeds, bounded variations and valid colours. An invalid folder
// falls back to the instance's default.
func (s *Settings) Sanitize(instance string) {
	s.clamp()
	if !validFolder(s.ImagesFolder) {
		s.ImagesFolder = Defaults(instance).ImagesFolder
	}
}

func validFolder(name string) bool {
	return name != "" && name == filepath.Base(name) && !strings.Contains(name, "..")
}

func (s *Settings) clamp() {
	d := Defaults("1")

	if s.MaxImages < 1 {
		s.MaxImages = 1
	} else if s.MaxImages > 50 {
		s.MaxImages = 50
	}
	s.Speed = util.Clamp(s.Speed, 0.05, 50)
	s.ImageScale = util.Clamp(s.ImageScale, 10, 2000)
	s.BottomOffset = util.Clamp(s.BottomOffset, 0, 5000)
	s.TopOffset = util.Clamp(s.TopOffset, 0, 5000)
	s.BlurAmount = util.Clamp(s.BlurAmount, 0, 50)
	s.FrameWidth = util.Clamp(s.FrameWidth, 0, 6)
	s.GlowIntensity = util.Clamp(s.GlowIntensity, 0, 100)
	s.EffectIntensity = util.Clamp(s.EffectIntensity, 0, 200)
	s.ColorVariation = util.Clamp(s.ColorVariation, 0, 100)
	s.CenterZoneStart = util.Clamp(s.CenterZoneStart, 0, 100)
	s.CenterZoneEnd = util.Clamp(s.CenterZoneEnd, s.CenterZoneStart, 100)
	s.EasingStrength = util.Clamp(s.EasingStrength, 1, 4)
	s.OnTimeVariation = util.Clamp(s.OnTimeVariation, 0, 40)
	s.DisplayCenter = util.Clamp(s.DisplayCenter, 10, 90)
	s.MinSpacing = util.Clamp(s.MinSpacing, 0, 5000)
	s.ParkWaitTime = util.Clamp(s.ParkWaitTime, 0, 60000)
	s.ParkAreaHeight = util.Clamp(s.ParkAreaHeight, 0, 2000)
	s.MinParkSpeed = util.Clamp(s.MinParkSpeed, 0.01, 1)
	s.ParkZoneOffset = util.Clamp(s.ParkZoneOffset, -2000, 2000)
	s.SpeedVariation = util.Clamp(s.SpeedVariation, 0, 90)

	s.BrandColor1 = validHex(s.BrandColor1, d.BrandColor1)
	s.BrandColor2 = validHex(s.BrandColor2, d.BrandColor2)
	s.BackgroundColor = validHex(s.BackgroundColor, d.BackgroundColor)

	if s.FrameStyle == "" {
		s.FrameStyle = d.FrameStyle
	}
}

// Background parses the background colour.
func (s Settings) Background() colorful.Color {
	c, err := colorful.Hex(s.BackgroundColor)
	if err != nil {
		c, _ = colorful.Hex(Defaults("1").BackgroundColor)
	}
	return c
}

func validHex(value, fallback string) string {
	if _, err := colorful.Hex(value); err != nil {
		return fallback
	}
	return value
}
