package config

import "flag"

// Flags are the command-line overrides shared by the viewer.
type Flags struct {
	ConfigPath  string
	WriteConfig string

	debug      bool
	scene      string
	shaders    string
	watch      bool
	animation  int
	camera     int
	windowed   bool
	fullscreen bool
	width      int
	height     int
	samples    int

	args []string
}

// NewFlags registers the override flags on fs.
func NewFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.StringVar(&f.WriteConfig, "write-config", "", "Write the effective config to this path and exit")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.scene, "scene", "", "Path to a .gltf or .glb file")
	fs.StringVar(&f.shaders, "shaders", "", "Directory of precompiled shader permutations")
	fs.BoolVar(&f.watch, "watch", false, "Rebuild pipelines when permutation files change")
	fs.IntVar(&f.animation, "animation", -2, "Animation to play, -1 for none")
	fs.IntVar(&f.camera, "camera", -2, "Scene camera to look through, -1 for the orbit camera")
	fs.BoolVar(&f.windowed, "windowed", false, "Run in windowed mode")
	fs.BoolVar(&f.fullscreen, "fullscreen", false, "Run in fullscreen mode")
	fs.IntVar(&f.width, "width", 0, "Window width")
	fs.IntVar(&f.height, "height", 0, "Window height")
	fs.IntVar(&f.samples, "samples", 0, "MSAA sample count")
	return f
}

// Parse parses args and keeps the positional arguments.
func (f *Flags) Parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	f.args = fs.Args()
	return nil
}

var cli = NewFlags(flag.CommandLine)

// ParseFlags parses the process command line. Call this early in main().
func ParseFlags() {
	flag.Parse()
	cli.args = flag.Args()
}

// CommandLine returns the flags parsed by ParseFlags.
func CommandLine() *Flags { return cli }

// apply overrides cfg with every flag that was set. A positional argument
// stands in for -scene.
func (f *Flags) apply(cfg *Config) {
	if f.debug {
		cfg.Logging.Level = "debug"
	}
	switch {
	case f.scene != "":
		cfg.Scene.Path = f.scene
	case len(f.args) > 0:
		cfg.Scene.Path = f.args[0]
	}
	if f.shaders != "" {
		cfg.Shaders.Dir = f.shaders
	}
	if f.watch {
		cfg.Shaders.Watch = true
	}
	if f.animation >= -1 {
		cfg.Scene.Animation = f.animation
	}
	if f.camera >= -1 {
		cfg.Scene.Camera = f.camera
	}
	if f.windowed {
		cfg.Graphics.Fullscreen = false
	}
	if f.fullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if f.width > 0 {
		cfg.Graphics.Width = f.width
	}
	if f.height > 0 {
		cfg.Graphics.Height = f.height
	}
	if f.samples > 0 {
		cfg.Graphics.SampleCount = f.samples
	}
}
