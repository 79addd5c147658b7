// Package store persists per-instance settings, queue state and custom
// presets through gdata.
package store

import (
	"fmt"
	"log"
	"regexp"
	"sync"

	"github.com/matt-g-everett/shuffler/queue"
	"github.com/matt-g-everett/shuffler/settings"
	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"
)

const (
	settingsProperty = "settings"
	queueProperty    = "queue"
	presetsObject    = "presets"
	presetsProperty  = "custom"
)

var instancePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store reads and writes display state. A nil gdata manager puts the store in
// memory-only mode: nothing survives a restart but every call still works.
type Store struct {
	manager *gdata.Manager

	mu     sync.Mutex
	memory map[string][]byte

	// presetsMu serialises read-modify-write of the shared presets record.
	presetsMu sync.Mutex
}

// Open creates a gdata backed store for appName. If the platform storage is
// unavailable the store falls back to memory-only mode.
func Open(appName string) *Store {
	manager, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		log.Printf("[Store] Warning: gdata unavailable: %v (state will not persist)", err)
		manager = nil
	}
	return New(manager)
}

// New wraps an existing manager, which may be nil.
func New(manager *gdata.Manager) *Store {
	s := new(Store)
	s.manager = manager
	s.memory = make(map[string][]byte)
	return s
}

// Persistent reports whether writes reach disk.
func (s *Store) Persistent() bool {
	return s.manager != nil
}

// ValidInstance reports whether id can be used as a storage key.
func ValidInstance(id string) bool {
	return instancePattern.MatchString(id)
}

func instanceObject(id string) string {
	return "instance_" + id
}

// LoadSettings returns the stored settings of an instance, or the defaults if
// nothing usable is stored. A corrupt record is logged and ignored.
func (s *Store) LoadSettings(instance string) settings.Settings {
	defaults := settings.Defaults(instance)

	data := s.raw(instanceObject(instance), settingsProperty)
	if data == nil {
		return defaults
	}

	// Decoding over the defaults keeps fields added since the record was
	// written.
	merged := defaults
	if err := yaml.Unmarshal(data, &merged); err != nil {
		log.Printf("[Store] Warning: failed to load settings for %s: %v (using defaults)", instance, err)
		return defaults
	}
	merged.Sanitize(instance)
	return merged
}

// SaveSettings persists the settings of an instance.
func (s *Store) SaveSettings(instance string, v settings.Settings) error {
	return s.save(instanceObject(instance), settingsProperty, v)
}

// LoadQueue returns the stored queue state of an instance.
func (s *Store) LoadQueue(instance string) (queue.State, bool) {
	var st queue.State
	found, err := s.load(instanceObject(instance), queueProperty, &st)
	if err != nil {
		log.Printf("[Store] Warning: failed to load queue for %s: %v (starting fresh)", instance, err)
		return queue.State{Cycle: 1}, false
	}
	if !found {
		return queue.State{Cycle: 1}, false
	}
	return st, true
}

// SaveQueue persists the queue state of an instance.
func (s *Store) SaveQueue(instance string, st queue.State) error {
	return s.save(instanceObject(instance), queueProperty, st)
}

// Presets returns the custom presets shared by every instance.
func (s *Store) Presets() map[string]settings.Preset {
	var stored map[string]string
	found, err := s.load(presetsObject, presetsProperty, &stored)
	if err != nil {
		log.Printf("[Store] Warning: failed to load presets: %v", err)
	}
	out := make(map[string]settings.Preset, len(stored))
	if !found {
		return out
	}
	for name, raw := range stored {
		out[name] = settings.Preset(raw)
	}
	return out
}

// SavePreset stores a custom preset. Built-in names cannot be overwritten.
func (s *Store) SavePreset(name string, p settings.Preset) error {
	name = settings.PresetName(name)
	if name == "" || settings.IsBuiltin(name) {
		return fmt.Errorf("cannot save preset %q", name)
	}

	s.presetsMu.Lock()
	defer s.presetsMu.Unlock()

	stored := make(map[string]string)
	for k, v := range s.Presets() {
		stored[k] = string(v)
	}
	stored[name] = string(p)
	return s.save(presetsObject, presetsProperty, stored)
}

func (s *Store) load(object, property string, out interface{}) (bool, error) {
	data := s.raw(object, property)
	if data == nil {
		return false, nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s/%s: %w", object, property, err)
	}
	return true, nil
}

func (s *Store) raw(object, property string) []byte {
	if s.manager == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.memory[object+"/"+property]
	}

	if !s.manager.ObjectPropExists(object, property) {
		return nil
	}
	data, err := s.manager.LoadObjectProp(object, property)
	if err != nil {
		log.Printf("[Store] Warning: failed to read %s/%s: %v", object, property, err)
		return nil
	}
	return data
}

func (s *Store) save(object, property string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", object, property, err)
	}

	if s.manager == nil {
		s.mu.Lock()
		s.memory[object+"/"+property] = data
		s.mu.Unlock()
		return nil
	}

	if err := s.manager.SaveObjectProp(object, property, data); err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", object, property, err)
	}
	return nil
}
