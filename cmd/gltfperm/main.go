// gltfperm lists the shader permutations glTF files need, so they can be
// compiled ahead of running the viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/gpu/record"
	"github.com/Faultbox/gltf-frame/internal/engine/loader"
	"github.com/Faultbox/gltf-frame/internal/engine/renderer"
	"github.com/Faultbox/gltf-frame/internal/engine/resources"
	"github.com/Faultbox/gltf-frame/internal/engine/shader"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// options selects the pass variants to enumerate.
type options struct {
	Lighting      bool
	InverseDepth  bool
	ShadowMaps    int
	MotionVectors bool
	SampleCount   int
	Ext           string
}

func main() {
	var (
		opts     options
		out      = flag.String("out", "", "write the list to `file` instead of stdout")
		level    = flag.String("log", "warn", "log level")
		progress = flag.Bool("progress", true, "show a progress bar on stderr")
	)
	flag.BoolVar(&opts.Lighting, "lighting", true, "enable lighting and shadow maps")
	flag.BoolVar(&opts.InverseDepth, "inverse-depth", false, "use inverse depth")
	flag.IntVar(&opts.ShadowMaps, "shadow-maps", 4, "shadow map slots")
	flag.BoolVar(&opts.MotionVectors, "motion-vectors", true, "include the motion vector pass")
	flag.IntVar(&opts.SampleCount, "samples", 1, "MSAA sample count")
	flag.StringVar(&opts.Ext, "ext", ".glsl", "permutation file extension")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}
	if err := logger.Init(*level, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var bar *progressbar.ProgressBar
	if *progress {
		bar = progressbar.NewOptions(flag.NArg(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("scanning"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	names, err := permutations(context.Background(), flag.Args(), opts, func() {
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `gltfperm - list the shader permutations of glTF files

Usage:
  gltfperm [options] <file.gltf|file.glb>...

Options:`)
	flag.PrintDefaults()
}

// permutations loads every file and returns the sorted union of the
// permutation files its passes request. done is called after each file.
func permutations(ctx context.Context, files []string, opts options, done func()) ([]string, error) {
	var (
		mu  sync.Mutex
		all = make(map[string]struct{})
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			names, err := scan(path, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			logger.Debug("scanned", zap.String("file", path), zap.Int("permutations", len(names)))

			mu.Lock()
			for _, n := range names {
				all[n] = struct{}{}
			}
			mu.Unlock()
			if done != nil {
				done()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(all))
	for n := range all {
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

// scan builds every pass of one file against the recording device.
// Textures are not loaded; they never change a permutation.
func scan(path string, opts options) ([]string, error) {
	file, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	device := record.NewDevice()
	binder, err := resources.New(device, file, &record.Upload{}, record.NewRing(), resources.Options{})
	if err != nil {
		return nil, err
	}

	store := shader.NewCollectingStore()
	_, err = renderer.New(device, binder, renderer.Config{
		ForwardFormat: gpu.FormatR8G8B8A8Unorm,
		SampleCount:   opts.SampleCount,
		InverseDepth:  opts.InverseDepth,
		Lighting:      opts.Lighting,
		ShadowMaps:    opts.ShadowMaps,
		MotionVectors: opts.MotionVectors,
		Store:         store,
		ShaderExt:     opts.Ext,
	})
	if err != nil {
		return nil, err
	}
	return store.Requested(), nil
}
