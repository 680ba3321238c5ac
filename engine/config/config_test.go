package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/ffbridge/engine/core"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "ffbridge.toml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadOverlaysDefaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), `
[device]
width = 1024
height = 768

[cache]
pipeline_capacity = 64
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Device.Width != 1024 || cfg.Device.Height != 768 {
		t.Errorf("extent = %dx%d", cfg.Device.Width, cfg.Device.Height)
	}
	if cfg.Cache.PipelineCapacity != 64 {
		t.Errorf("pipeline capacity = %d", cfg.Cache.PipelineCapacity)
	}
	if cfg.Stream.QueueSize != Default().Stream.QueueSize {
		t.Errorf("queue size default lost: %d", cfg.Stream.QueueSize)
	}
	if cfg.Device.AppName != "ffbridge" {
		t.Errorf("app name default lost: %q", cfg.Device.AppName)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != *Default() {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero width", "[device]\nwidth = 0\n"},
		{"negative capacity", "[cache]\nsampler_capacity = -1\n"},
		{"zero queue", "[stream]\nqueue_size = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, t.TempDir(), tt.body))
			if !errors.Is(err, core.ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestLoadSyntaxError(t *testing.T) {
	if _, err := Load(writeFile(t, t.TempDir(), "[device\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.toml")
	cfg := Default()
	cfg.Log.Level = "debug"
	if err := cfg.Save(p); err != nil {
		t.Fatal(err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if got.Log.Level != "debug" {
		t.Fatalf("level = %q", got.Log.Level)
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "[log]\nlevel = \"info\"\n")
	w, err := NewWatcher(p)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	got := make(chan string, 16)
	w.OnReload(func(c *Config) {
		select {
		case got <- c.Log.Level:
		default:
		}
	})
	writeFile(t, dir, "[log]\nlevel = \"debug\"\n")

	// a truncating write may surface an intermediate reload first
	deadline := time.After(5 * time.Second)
	for {
		select {
		case lvl := <-got:
			if lvl == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestReloadCallbacksMayRegister(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "[log]\nlevel = \"warn\"\n")
	w, err := NewWatcher(p)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	var first, second int
	w.OnReload(func(*Config) {
		first++
		if first == 1 {
			w.OnReload(func(*Config) { second++ })
		}
	})
	w.reload()
	w.reload()
	if first != 2 || second != 1 {
		t.Fatalf("first = %d, second = %d", first, second)
	}
}
