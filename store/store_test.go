package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matt-g-everett/shuffler/queue"
	"github.com/matt-g-everett/shuffler/settings"
	"github.com/quasilyte/gdata/v2"
)

// createTestManager opens a throwaway gdata manager, or returns nil when the
// platform has no usable data directory.
func createTestManager(t *testing.T, testName string) *gdata.Manager {
	appName := fmt.Sprintf("shuffler_test_%s_%d", testName, time.Now().UnixNano())
	manager, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil
	}

	t.Cleanup(func() {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			os.RemoveAll(filepath.Join(homeDir, ".local", "share", appName))
		}
	})
	return manager
}

func TestMemoryModeRoundTrip(t *testing.T) {
	s := New(nil)
	if s.Persistent() {
		t.Fatal("nil manager should not be persistent")
	}

	v := settings.Defaults("1")
	v.Speed = 3
	if err := s.SaveSettings("1", v); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if got := s.LoadSettings("1"); got.Speed != 3 {
		t.Errorf("speed = %v, want 3", got.Speed)
	}

	if got := s.LoadSettings("2"); got != settings.Defaults("2") {
		t.Errorf("unknown instance should load defaults, got %+v", got)
	}
}

func TestQueueState(t *testing.T) {
	s := New(nil)
	if st, ok := s.LoadQueue("1"); ok || st.Cycle != 1 {
		t.Fatalf("empty store returned %+v, %v", st, ok)
	}

	want := queue.State{Queue: []string{"b"}, Used: []string{"a"}, Cycle: 3}
	if err := s.SaveQueue("1", want); err != nil {
		t.Fatalf("SaveQueue: %v", err)
	}
	got, ok := s.LoadQueue("1")
	if !ok || got.Cycle != 3 || len(got.Queue) != 1 || got.Used[0] != "a" {
		t.Errorf("LoadQueue = %+v, %v", got, ok)
	}
}

func TestCorruptRecordsFallBack(t *testing.T) {
	s := New(nil)
	s.memory[instanceObject("1")+"/"+settingsProperty] = []byte("speed: [unterminated")
	s.memory[instanceObject("1")+"/"+queueProperty] = []byte("queue: {")

	if got := s.LoadSettings("1"); got != settings.Defaults("1") {
		t.Errorf("corrupt settings should load defaults, got %+v", got)
	}
	if st, ok := s.LoadQueue("1"); ok || st.Cycle != 1 {
		t.Errorf("corrupt queue should load fresh state, got %+v", st)
	}
}

func TestPresets(t *testing.T) {
	s := New(nil)
	if err := s.SavePreset("Calm", settings.Preset(`{"speed":0.5}`)); err != nil {
		t.Fatalf("SavePreset: %v", err)
	}
	if err := s.SavePreset("fast", settings.Preset(`{}`)); err == nil {
		t.Error("overwriting a built-in preset should fail")
	}

	presets := s.Presets()
	if string(presets["calm"]) != `{"speed":0.5}` {
		t.Errorf("presets = %v", presets)
	}
}

func TestConcurrentPresetSavesKeepEveryPreset(t *testing.T) {
	s := New(nil)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("custom%d", i)
			if err := s.SavePreset(name, settings.Preset(`{"speed":1}`)); err != nil {
				t.Errorf("SavePreset(%s): %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(s.Presets()); got != n {
		t.Errorf("stored %d presets, want %d", got, n)
	}
}

func TestGdataPersistence(t *testing.T) {
	manager := createTestManager(t, "persist")
	if manager == nil {
		t.Skip("Cannot create gdata manager for testing")
	}

	s := New(manager)
	v := settings.Defaults("1")
	v.MaxImages = 7
	if err := s.SaveSettings("1", v); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	reopened := New(manager)
	if got := reopened.LoadSettings("1"); got.MaxImages != 7 {
		t.Errorf("maxImages = %d, want 7", got.MaxImages)
	}
}

func TestValidInstance(t *testing.T) {
	for _, id := range []string{"1", "stage-left", "obs_2"} {
		if !ValidInstance(id) {
			t.Errorf("%q should be valid", id)
		}
	}
	for _, id := range []string{"", "../1", "a/b", "a b"} {
		if ValidInstance(id) {
			t.Errorf("%q should be invalid", id)
		}
	}
}
