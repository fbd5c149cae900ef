package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// parse builds Flags from args on a private flag set.
func parse(t *testing.T, args ...string) *Flags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := NewFlags(fs)
	require.NoError(t, f.Parse(fs, args))
	return f
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1280, cfg.Graphics.Width)
	assert.Equal(t, 720, cfg.Graphics.Height)
	assert.True(t, cfg.Graphics.VSync)
	assert.Equal(t, 1, cfg.Graphics.SampleCount)

	assert.Equal(t, -1, cfg.Scene.Camera, "orbit camera")
	assert.Equal(t, float32(1), cfg.Scene.AnimationSpeed)

	assert.Equal(t, ".glsl", cfg.Shaders.Ext)
	assert.False(t, cfg.Shaders.Watch)

	assert.True(t, cfg.Passes.Lighting)
	assert.Equal(t, 4, cfg.Passes.ShadowMaps)
	assert.True(t, cfg.Passes.Sun)
	assert.Equal(t, float32(45), cfg.Passes.SunLongitude)
	assert.Equal(t, float32(50), cfg.Passes.SunLatitude)

	assert.Equal(t, 3, cfg.Resources.FramesInFlight)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.LogFile)
}

func TestMerge(t *testing.T) {
	path := writeYAML(t, t.TempDir(), `
graphics:
  width: 1920
  fullscreen: true
  sample_count: 4
  inverse_depth: true
scene:
  path: models/fox.glb
  animation: 2
  animation_speed: 0.5
  camera: 0
shaders:
  dir: build/shaders
  ext: .cso
  watch: true
passes:
  lighting: false
  shadow_maps: 0
  motion_vectors: true
resources:
  ring_region_kb: 4096
logging:
  log_file: viewer.log
`)
	cfg := Default()
	require.NoError(t, cfg.merge(path))

	want := Default()
	want.Graphics.Width = 1920
	want.Graphics.Fullscreen = true
	want.Graphics.SampleCount = 4
	want.Graphics.InverseDepth = true
	want.Scene = SceneConfig{Path: "models/fox.glb", Animation: 2, AnimationSpeed: 0.5, Camera: 0}
	want.Shaders = ShadersConfig{Dir: "build/shaders", Ext: ".cso", Watch: true}
	want.Passes.Lighting = false
	want.Passes.ShadowMaps = 0
	want.Passes.MotionVectors = true
	want.Resources.RingRegionKB = 4096
	want.Logging.LogFile = "viewer.log"
	assert.Equal(t, want, cfg)
}

func TestMergeErrors(t *testing.T) {
	bad := writeYAML(t, t.TempDir(), "graphics:\n  width: [1, 2\n")
	assert.Error(t, Default().merge(bad))
	assert.Error(t, Default().merge(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"zero width":               func(c *Config) { c.Graphics.Width = 0 },
		"no samples":               func(c *Config) { c.Graphics.SampleCount = 0 },
		"negative shadow maps":     func(c *Config) { c.Passes.ShadowMaps = -1 },
		"shadow maps without size": func(c *Config) { c.Passes.ShadowMapSize = 0 },
		"no frames in flight":      func(c *Config) { c.Resources.FramesInFlight = 0 },
		"empty ring":               func(c *Config) { c.Resources.RingRegionKB = 0 },
		"bad animation":            func(c *Config) { c.Scene.Animation = -5 },
		"bad camera":               func(c *Config) { c.Scene.Camera = -2 },
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	cfg := Default()
	cfg.Passes.ShadowMaps = 0
	cfg.Passes.ShadowMapSize = 0
	assert.NoError(t, cfg.Validate(), "shadow map size is unused without shadow maps")
}

func TestFindConfigFile(t *testing.T) {
	empty, full := t.TempDir(), t.TempDir()
	assert.Empty(t, findConfigFile(empty))

	path := writeYAML(t, full, "graphics:\n  width: 800\n")
	assert.Equal(t, path, findConfigFile(empty, full))

	// A directory named config.yaml does not count.
	require.NoError(t, os.Mkdir(filepath.Join(empty, "config.yaml"), 0o755))
	assert.Equal(t, path, findConfigFile(empty, full))
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir := ConfigDir()
	assert.Equal(t, "gltf-frame", filepath.Base(dir))
	assert.True(t, filepath.IsAbs(dir), dir)
}

func TestSaveToThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Scene.Path = "scene.gltf"
	cfg.Passes.MotionVectors = true
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadWith(parse(t, "-config", path))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want func(*Config)
	}{
		{"debug", []string{"-debug"}, func(c *Config) { c.Logging.Level = "debug" }},
		{"scene and shaders", []string{"-scene", "box.gltf", "-shaders", "out/shaders", "-watch"}, func(c *Config) {
			c.Scene.Path = "box.gltf"
			c.Shaders.Dir = "out/shaders"
			c.Shaders.Watch = true
		}},
		{"positional scene", []string{"duck.glb"}, func(c *Config) { c.Scene.Path = "duck.glb" }},
		{"scene flag wins over positional", []string{"-scene", "a.glb", "b.glb"}, func(c *Config) { c.Scene.Path = "a.glb" }},
		{"no animation", []string{"-animation", "-1"}, func(c *Config) { c.Scene.Animation = -1 }},
		{"scene camera", []string{"-camera", "1"}, func(c *Config) { c.Scene.Camera = 1 }},
		{"fullscreen", []string{"-fullscreen"}, func(c *Config) { c.Graphics.Fullscreen = true }},
		{"size and samples", []string{"-width", "2560", "-height", "1440", "-samples", "4"}, func(c *Config) {
			c.Graphics.Width = 2560
			c.Graphics.Height = 1440
			c.Graphics.SampleCount = 4
		}},
		{"unset flags change nothing", nil, func(*Config) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := Default()
			tt.want(want)

			cfg := Default()
			parse(t, tt.args...).apply(cfg)
			assert.Equal(t, want, cfg)
		})
	}
}

func TestWindowedOverridesFile(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "graphics:\n  fullscreen: true\n")
	cfg, err := LoadWith(parse(t, "-config", path, "-windowed"))
	require.NoError(t, err)
	assert.False(t, cfg.Graphics.Fullscreen)
}

func TestLoadPriority(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "graphics:\n  width: 1600\n  height: 900\n")
	cfg, err := LoadWith(parse(t, "-config", path, "-width", "1920"))
	require.NoError(t, err)

	assert.Equal(t, 1920, cfg.Graphics.Width, "flag beats file")
	assert.Equal(t, 900, cfg.Graphics.Height, "file beats default")
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "resources:\n  frames_in_flight: 0\n")
	_, err := LoadWith(parse(t, "-config", path))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = LoadWith(parse(t, "-config", filepath.Join(t.TempDir(), "none.yaml")))
	assert.ErrorContains(t, err, "none.yaml")
}

func TestWriteConfigFlag(t *testing.T) {
	f := parse(t, "-write-config", "out.yaml")
	assert.Equal(t, "out.yaml", f.WriteConfig)
}
