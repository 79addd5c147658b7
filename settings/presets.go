package settings

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/tidwall/sjson"
)

// ErrUnknownPreset is returned when a preset name resolves to nothing.
var ErrUnknownPreset = errors.New("unknown preset")

// A Preset is a partial settings object applied with Merge.
type Preset = json.RawMessage

var builtinPresets = map[string]Preset{
	"default": Preset(`{"maxImages":3,"speed":2,"displayCenter":50,"parkWaitTime":2000,"minParkSpeed":0.1,` +
		`"minSpacing":200,"imageScale":150,"blurAmount":5,"frameEnabled":true,"frameStyle":"default","backgroundColor":"#667eea"}`),
	"fast": Preset(`{"maxImages":5,"speed":4,"displayCenter":50,"parkWaitTime":1000,"minParkSpeed":0.3,` +
		`"minSpacing":150,"imageScale":120,"blurAmount":3,"frameEnabled":false,"frameStyle":"default","backgroundColor":"#ff6b6b"}`),
	"slow": Preset(`{"maxImages":2,"speed":1,"displayCenter":50,"parkWaitTime":4000,"minParkSpeed":0.05,` +
		`"minSpacing":300,"imageScale":200,"blurAmount":8,"frameEnabled":true,"frameStyle":"gold","backgroundColor":"#4ecdc4"}`),
	"showcase": Preset(`{"maxImages":1,"speed":1.5,"displayCenter":50,"parkWaitTime":6000,"minParkSpeed":0.02,` +
		`"minSpacing":400,"imageScale":250,"blurAmount":10,"frameEnabled":true,"frameStyle":"black","backgroundColor":"#2d3748"}`),
}

// PresetName normalises a user supplied preset name.
func PresetName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsBuiltin reports whether name is one of the shipped presets.
func IsBuiltin(name string) bool {
	_, ok := builtinPresets[PresetName(name)]
	return ok
}

// Builtin returns the shipped preset with the given name.
func Builtin(name string) (Preset, bool) {
	p, ok := builtinPresets[PresetName(name)]
	return p, ok
}

// BuiltinNames lists the shipped presets in a stable order.
func BuiltinNames() []string {
	return []string{"default", "fast", "slow", "showcase"}
}

// PresetFrom captures s as a preset. The images folder belongs to the
// instance, so it is left out.
func PresetFrom(s Settings) (Preset, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	data, err = sjson.DeleteBytes(data, "imagesFolder")
	if err != nil {
		return nil, err
	}
	return Preset(data), nil
}

// Lookup resolves name against custom presets first, then the built-ins.
func Lookup(custom map[string]Preset, name string) (Preset, error) {
	name = PresetName(name)
	if p, ok := custom[name]; ok {
		return p, nil
	}
	if p, ok := builtinPresets[name]; ok {
		return p, nil
	}
	return nil, ErrUnknownPreset
}

// Names returns built-in names followed by sorted custom names.
func Names(custom map[string]Preset) []string {
	names := BuiltinNames()
	extra := make([]string, 0, len(custom))
	for name := range custom {
		if !IsBuiltin(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
