// Package config handles viewer and tool configuration loading and management.
package config

// Config holds all settings.
type Config struct {
	Graphics  GraphicsConfig  `yaml:"graphics"`
	Scene     SceneConfig     `yaml:"scene"`
	Shaders   ShadersConfig   `yaml:"shaders"`
	Passes    PassesConfig    `yaml:"passes"`
	Resources ResourcesConfig `yaml:"resources"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width        int  `yaml:"width"`
	Height       int  `yaml:"height"`
	Fullscreen   bool `yaml:"fullscreen"`
	VSync        bool `yaml:"vsync"`
	FPSLimit     int  `yaml:"fps_limit"`
	SampleCount  int  `yaml:"sample_count"`
	InverseDepth bool `yaml:"inverse_depth"`
}

// SceneConfig selects what to show.
type SceneConfig struct {
	Path           string  `yaml:"path"`
	Scene          int     `yaml:"scene"`
	Animation      int     `yaml:"animation"`       // -1 disables playback
	AnimationSpeed float32 `yaml:"animation_speed"` // Playback rate multiplier
	Camera         int     `yaml:"camera"`          // -1 uses the orbit camera
}

// ShadersConfig locates precompiled shader permutations.
type ShadersConfig struct {
	Dir   string `yaml:"dir"`
	Ext   string `yaml:"ext"`
	Watch bool   `yaml:"watch"` // Rebuild pipelines when permutation files change
}

// PassesConfig enables passes and sizes their targets.
type PassesConfig struct {
	Lighting      bool `yaml:"lighting"`
	ShadowMaps    int  `yaml:"shadow_maps"`
	ShadowMapSize int  `yaml:"shadow_map_size"`
	MotionVectors bool `yaml:"motion_vectors"`
	FitShadows    bool `yaml:"fit_shadows"` // Size sun shadows to the scene

	// Sun adds a directional light to scenes that define none.
	Sun          bool    `yaml:"sun"`
	SunLongitude float32 `yaml:"sun_longitude"` // Degrees around +Y
	SunLatitude  float32 `yaml:"sun_latitude"`  // Degrees above the horizon
}

// ResourcesConfig sizes GPU-side allocations.
type ResourcesConfig struct {
	DescriptorCapacity int `yaml:"descriptor_capacity"`
	RingRegionKB       int `yaml:"ring_region_kb"`
	FramesInFlight     int `yaml:"frames_in_flight"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:        1280,
			Height:       720,
			Fullscreen:   false,
			VSync:        true,
			FPSLimit:     0,
			SampleCount:  1,
			InverseDepth: false,
		},
		Scene: SceneConfig{
			Scene:          0,
			Animation:      0,
			AnimationSpeed: 1,
			Camera:         -1,
		},
		Shaders: ShadersConfig{
			Dir: "shaders",
			Ext: ".glsl",
		},
		Passes: PassesConfig{
			Lighting:      true,
			ShadowMaps:    4,
			ShadowMapSize: 1024,
			MotionVectors: false,
			FitShadows:    true,
			Sun:           true,
			SunLongitude:  45,
			SunLatitude:   50,
		},
		Resources: ResourcesConfig{
			DescriptorCapacity: 512,
			RingRegionKB:       1024,
			FramesInFlight:     3,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
