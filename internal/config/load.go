package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ErrInvalid reports a setting outside its allowed range.
var ErrInvalid = errors.New("invalid config")

// Load builds the config from the process command line.
func Load() (*Config, error) {
	return LoadWith(cli)
}

// LoadWith layers defaults, then the config file, then the flags in f.
// The file is f.ConfigPath, or the first config.yaml found in the working
// directory or ConfigDir.
func LoadWith(f *Flags) (*Config, error) {
	cfg := Default()

	path := f.ConfigPath
	if path == "" {
		path = findConfigFile(".", ConfigDir())
	}
	if path != "" {
		if err := cfg.merge(path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges the renderer relies on.
func (c *Config) Validate() error {
	g, p, r := c.Graphics, c.Passes, c.Resources
	var bad string
	switch {
	case g.Width <= 0 || g.Height <= 0:
		bad = fmt.Sprintf("window size %dx%d", g.Width, g.Height)
	case g.SampleCount < 1:
		bad = fmt.Sprintf("sample_count %d", g.SampleCount)
	case p.ShadowMaps < 0:
		bad = fmt.Sprintf("shadow_maps %d", p.ShadowMaps)
	case p.ShadowMaps > 0 && p.ShadowMapSize <= 0:
		bad = fmt.Sprintf("shadow_map_size %d", p.ShadowMapSize)
	case r.FramesInFlight < 1:
		bad = fmt.Sprintf("frames_in_flight %d", r.FramesInFlight)
	case r.RingRegionKB < 1:
		bad = fmt.Sprintf("ring_region_kb %d", r.RingRegionKB)
	case c.Scene.Animation < -1 || c.Scene.Camera < -1:
		bad = fmt.Sprintf("animation %d, camera %d", c.Scene.Animation, c.Scene.Camera)
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, bad)
}

func findConfigFile(dirs ...string) string {
	for _, dir := range dirs {
		path := filepath.Join(dir, "config.yaml")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user config directory.
func ConfigDir() string {
	const app = "gltf-frame"
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, app)
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, app)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", app)
}

// merge overlays the YAML file at path onto c. Keys the file omits keep
// their current values.
func (c *Config) merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}
