package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const bundlePrefix = "instance_"

// ErrInvalidBundle is returned for import data that is not a JSON object.
var ErrInvalidBundle = errors.New("invalid settings bundle")

// Export writes the settings of every instance into one JSON document keyed
// "instance_<id>".
func Export(all map[string]Settings) ([]byte, error) {
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []byte("{}")
	for _, id := range ids {
		raw, err := json.Marshal(all[id])
		if err != nil {
			return nil, err
		}
		out, err = sjson.SetRawBytes(out, bundlePrefix+escapeKey(id), raw)
		if err != nil {
			return nil, err
		}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		return nil, err
	}
	return pretty.Bytes(), nil
}

// Import splits a bundle into per-instance partial settings. Keys without the
// instance prefix are ignored.
func Import(data []byte) (map[string][]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidBundle
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, ErrInvalidBundle
	}

	out := make(map[string][]byte)
	doc.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if !strings.HasPrefix(name, bundlePrefix) || !value.IsObject() {
			return true
		}
		id := strings.TrimPrefix(name, bundlePrefix)
		if id != "" {
			out[id] = []byte(value.Raw)
		}
		return true
	})
	return out, nil
}

// escapeKey protects sjson path syntax characters in an instance id.
func escapeKey(id string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(id)
}
