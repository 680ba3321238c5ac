package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/ffbridge/engine/core"
)

type Config struct {
	Log    LogConfig    `toml:"log"`
	Device DeviceConfig `toml:"device"`
	Cache  CacheConfig  `toml:"cache"`
	Stream StreamConfig `toml:"stream"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	Compress   bool   `toml:"compress"`
}

type DeviceConfig struct {
	AppName    string `toml:"app_name"`
	Width      uint32 `toml:"width"`
	Height     uint32 `toml:"height"`
	Validation bool   `toml:"validation"`
	// Pending draws that trigger an automatic flush. 0 disables it.
	MaxPendingDraws int `toml:"max_pending_draws"`
}

// CacheConfig bounds the translation caches. A capacity of 0 means unbounded.
type CacheConfig struct {
	PipelineCapacity int    `toml:"pipeline_capacity"`
	SamplerCapacity  int    `toml:"sampler_capacity"`
	ResourceCapacity int    `toml:"resource_capacity"`
	BlobDir          string `toml:"blob_dir"`
}

type StreamConfig struct {
	QueueSize int `toml:"queue_size"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Device: DeviceConfig{
			AppName:         "ffbridge",
			Width:           640,
			Height:          480,
			MaxPendingDraws: 4096,
		},
		Cache: CacheConfig{
			ResourceCapacity: 1024,
		},
		Stream: StreamConfig{
			QueueSize: 256,
		},
	}
}

// Load overlays the TOML file at path onto the defaults. A missing file is
// not an error and yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			core.LogWarn("config file %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Device.Width == 0 || c.Device.Height == 0 {
		return fmt.Errorf("device extent %dx%d: %w", c.Device.Width, c.Device.Height, core.ErrInvalidParameter)
	}
	if c.Cache.PipelineCapacity < 0 || c.Cache.SamplerCapacity < 0 || c.Cache.ResourceCapacity < 0 {
		return fmt.Errorf("negative cache capacity: %w", core.ErrInvalidParameter)
	}
	if c.Stream.QueueSize < 1 {
		return fmt.Errorf("stream queue size %d: %w", c.Stream.QueueSize, core.ErrInvalidParameter)
	}
	return nil
}

func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Logging converts the [log] section for core.ConfigureLogging.
func (c *Config) Logging() core.LogConfig {
	return core.LogConfig{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		Compress:   c.Log.Compress,
	}
}
