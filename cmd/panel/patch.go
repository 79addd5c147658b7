package main

import (
	"math"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// A knob is a numeric setting the panel can nudge.
type knob struct {
	key      string
	step     float64
	min, max float64
	integer  bool
}

var (
	speedKnob = knob{key: "speed", step: 0.25, min: 0.05, max: 50}
	countKnob = knob{key: "maxImages", step: 1, min: 1, max: 50, integer: true}
	waitKnob  = knob{key: "parkWaitTime", step: 500, min: 0, max: 30000, integer: true}
)

// nudge reads the knob from the current settings document and returns a
// partial settings object moving it by dir steps.
func nudge(current []byte, k knob, dir int) ([]byte, float64, error) {
	v := gjson.GetBytes(current, k.key).Float()
	v += float64(dir) * k.step
	v = math.Max(k.min, math.Min(k.max, v))
	if k.integer {
		v = math.Round(v)
	} else {
		v = math.Round(v*100) / 100
	}

	patch, err := sjson.SetBytes([]byte(`{}`), k.key, v)
	return patch, v, err
}

// toggle returns a partial flipping a boolean setting.
func toggle(current []byte, key string) ([]byte, bool, error) {
	v := !gjson.GetBytes(current, key).Bool()
	patch, err := sjson.SetBytes([]byte(`{}`), key, v)
	return patch, v, err
}

// nextPreset returns the name after current in names, wrapping around.
func nextPreset(names []string, current string) string {
	if len(names) == 0 {
		return ""
	}
	for i, n := range names {
		if n == current {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}
