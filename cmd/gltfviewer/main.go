// gltfviewer renders a glTF file with precompiled shader permutations.
package main

import (
	"fmt"
	"os"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/config"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if out := config.CommandLine().WriteConfig; out != "" {
		if err := cfg.SaveTo(out); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if cfg.Scene.Path == "" {
		path, err := dialog.File().
			Filter("glTF Files", "gltf", "glb").
			Filter("All Files", "*").
			Title("Open glTF File").
			Load()
		if err != nil {
			if err != dialog.ErrCancelled {
				fmt.Fprintf(os.Stderr, "File dialog error: %v\n", err)
			}
			fmt.Fprintln(os.Stderr, "Usage: gltfviewer [options] <file.gltf|file.glb>")
			os.Exit(1)
		}
		cfg.Scene.Path = path
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== glTF viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	v, err := newViewer(cfg)
	if err != nil {
		logger.Error("failed to start viewer", zap.Error(err))
		os.Exit(1)
	}
	defer v.Close()

	if err := v.Run(); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("viewer closed normally")
}
