package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/config"
	"github.com/Faultbox/gltf-frame/internal/engine/camera"
	"github.com/Faultbox/gltf-frame/internal/engine/debug"
	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/gpu/glbackend"
	"github.com/Faultbox/gltf-frame/internal/engine/input"
	"github.com/Faultbox/gltf-frame/internal/engine/lighting"
	"github.com/Faultbox/gltf-frame/internal/engine/loader"
	"github.com/Faultbox/gltf-frame/internal/engine/pass"
	"github.com/Faultbox/gltf-frame/internal/engine/picking"
	"github.com/Faultbox/gltf-frame/internal/engine/renderer"
	"github.com/Faultbox/gltf-frame/internal/engine/resources"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/engine/shader"
	"github.com/Faultbox/gltf-frame/internal/engine/window"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// shadowAtlasSlot is the descriptor reserved for the shadow atlas.
const shadowAtlasSlot = 0

var clearColor = [4]float32{0.1, 0.1, 0.15, 1}

// viewer owns the window, the GL device and the scene being shown.
type viewer struct {
	cfg    *config.Config
	window *window.Window
	input  *input.Input

	device *glbackend.Device
	ring   *glbackend.Ring
	cl     *glbackend.CommandList
	binder *resources.Binder
	file   *scene.File

	renderer   *renderer.Renderer
	rendererOK bool
	watcher    *shader.Watcher

	orbit   *camera.OrbitCamera
	cam     int
	anim    int
	animT   float32
	showMV  bool
	atlas   *glbackend.RenderTarget
	shadows gpu.DescriptorHandle
	motion  *glbackend.RenderTarget

	view        renderer.View
	screenshots *debug.Screenshots
}

func newViewer(cfg *config.Config) (*viewer, error) {
	file, err := loader.Load(cfg.Scene.Path)
	if err != nil {
		return nil, err
	}

	win, err := window.New(window.Config{
		Title:       "glTF viewer - " + filepath.Base(cfg.Scene.Path),
		Width:       cfg.Graphics.Width,
		Height:      cfg.Graphics.Height,
		Fullscreen:  cfg.Graphics.Fullscreen,
		VSync:       cfg.Graphics.VSync,
		SampleCount: cfg.Graphics.SampleCount,
	})
	if err != nil {
		return nil, err
	}

	v := &viewer{
		cfg:         cfg,
		window:      win,
		input:       input.New(),
		device:      glbackend.NewDevice(),
		file:        file,
		orbit:       camera.NewOrbitCamera(),
		cam:         cfg.Scene.Camera,
		anim:        cfg.Scene.Animation,
		screenshots: debug.NewScreenshots("screenshots", "gltfviewer"),
	}
	if err := v.init(); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func (v *viewer) init() error {
	cfg := v.cfg
	var err error
	v.ring, err = v.device.CreateRing(cfg.Resources.RingRegionKB*1024, cfg.Resources.FramesInFlight)
	if err != nil {
		return err
	}
	v.cl = v.device.NewCommandList()

	v.binder, err = resources.New(v.device, v.file, &glbackend.Upload{}, v.ring, resources.Options{
		DescriptorCapacity: cfg.Resources.DescriptorCapacity,
		ReservedSlots:      1,
	})
	if err != nil {
		return err
	}
	if err := v.binder.LoadTextures(context.Background(), os.DirFS(filepath.Dir(cfg.Scene.Path))); err != nil {
		return err
	}

	if v.anim >= len(v.file.Animations) {
		if len(v.file.Animations) > 0 {
			logger.Warn("animation out of range, playback disabled",
				zap.Int("animation", v.anim),
				zap.Int("animations", len(v.file.Animations)))
		}
		v.anim = -1
	}
	if v.cam >= len(v.file.Cameras) {
		logger.Warn("camera out of range, using the orbit camera", zap.Int("camera", v.cam))
		v.cam = -1
	}

	if err := v.file.TransformScene(cfg.Scene.Scene, mgl32.Ident4()); err != nil {
		return err
	}
	box, ok := renderer.Bounds(v.file)
	if ok {
		v.orbit.FitToBounds(box.Min, box.Max)
	}
	if cfg.Passes.Lighting && cfg.Passes.Sun && len(v.file.LightInstances) == 0 {
		// Far enough to keep the whole scene between the shadow clip planes.
		distance := min(box.Radius()*2+1, 50)
		lighting.AddSun(v.file, cfg.Passes.SunLongitude, cfg.Passes.SunLatitude, box.Center(), distance)
		logger.Info("scene has no lights, added a sun",
			zap.Float32("longitude", cfg.Passes.SunLongitude),
			zap.Float32("latitude", cfg.Passes.SunLatitude))
	}

	if cfg.Passes.Lighting && cfg.Passes.ShadowMaps > 0 {
		size := cfg.Passes.ShadowMapSize
		depth, err := v.device.CreateDepthTexture(size*cfg.Passes.ShadowMaps, size)
		if err != nil {
			return err
		}
		if v.atlas, err = v.device.NewRenderTarget(size*cfg.Passes.ShadowMaps, size, nil, depth); err != nil {
			return err
		}
		pile := v.binder.Pile()
		if err := pile.SetTexture(shadowAtlasSlot, depth); err != nil {
			return err
		}
		v.shadows = pile.Handle(shadowAtlasSlot)
	}

	if cfg.Passes.MotionVectors {
		w, h := v.window.DrawableSize()
		v.motion, err = v.device.NewRenderTarget(w, h, []gpu.Format{pass.MotionVectorsFormat}, nil)
		if err != nil {
			return err
		}
	}

	if cfg.Shaders.Watch {
		if v.watcher, err = shader.Watch(cfg.Shaders.Dir, cfg.Shaders.Ext); err != nil {
			return fmt.Errorf("watching %s: %w", cfg.Shaders.Dir, err)
		}
	}

	v.renderer, err = renderer.New(v.device, v.binder, v.rendererConfig())
	switch {
	case err == nil:
		v.rendererOK = true
	case v.watcher != nil && errors.Is(err, shader.ErrPermutationNotFound):
		logger.Warn("waiting for shader permutations", zap.String("dir", cfg.Shaders.Dir), zap.Error(err))
	default:
		return err
	}
	return nil
}

func (v *viewer) rendererConfig() renderer.Config {
	cfg := v.cfg
	return renderer.Config{
		ForwardFormat: gpu.FormatR8G8B8A8Unorm,
		SampleCount:   cfg.Graphics.SampleCount,
		InverseDepth:  cfg.Graphics.InverseDepth,
		Lighting:      cfg.Passes.Lighting,
		ShadowMaps:    cfg.Passes.ShadowMaps,
		MotionVectors: cfg.Passes.MotionVectors,
		FitShadows:    cfg.Passes.FitShadows,
		Store:         shader.NewDirStore(cfg.Shaders.Dir),
		ShaderExt:     cfg.Shaders.Ext,
	}
}

// Run drives the frame loop until the window is closed.
func (v *viewer) Run() error {
	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	var minFrame time.Duration
	if v.cfg.Graphics.FPSLimit > 0 {
		minFrame = time.Second / time.Duration(v.cfg.Graphics.FPSLimit)
	}

	logger.Info("starting frame loop")
	for {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		if v.input.Update() {
			return nil
		}
		if err := v.handleInput(dt); err != nil {
			return err
		}
		if v.watcher != nil && v.watcher.Drain() {
			v.rebuild()
		}

		if err := v.render(dt); err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second && v.rendererOK {
			stats := v.renderer.Stats()
			logger.Debug("fps",
				zap.Int("count", frameCount),
				zap.Int("draws", v.cl.Draws),
				zap.Int("solid", stats.Solid),
				zap.Int("transparent", stats.Transparent),
				zap.Int("shadows", stats.Shadows))
			v.window.SetTitle(fmt.Sprintf("glTF viewer - %s (%d fps)", filepath.Base(v.cfg.Scene.Path), frameCount))
			frameCount = 0
			fpsTimer = time.Now()
		}
		if spent := time.Since(now); spent < minFrame {
			time.Sleep(minFrame - spent)
		}
	}
}

func (v *viewer) handleInput(dt float32) error {
	in := v.input
	if in.DragX != 0 || in.DragY != 0 {
		v.orbit.HandleDrag(in.DragX, in.DragY)
	}
	if in.Wheel != 0 {
		v.orbit.HandleZoom(in.Wheel)
	}

	forward := in.Axis(sdl.SCANCODE_W, sdl.SCANCODE_S)
	right := in.Axis(sdl.SCANCODE_D, sdl.SCANCODE_A)
	up := in.Axis(sdl.SCANCODE_E, sdl.SCANCODE_Q)
	if forward != 0 || right != 0 || up != 0 {
		v.orbit.HandleMovement(forward*dt, right*dt, up*dt)
	}

	if in.IsKeyPressed(sdl.SCANCODE_C) {
		// Cycle through the scene cameras, then back to the orbit camera.
		v.cam++
		if v.cam >= len(v.file.Cameras) {
			v.cam = -1
		}
		logger.Info("camera", zap.Int("index", v.cam))
	}
	if in.IsKeyPressed(sdl.SCANCODE_N) && len(v.file.Animations) > 0 {
		v.anim = (v.anim + 1) % len(v.file.Animations)
		v.animT = 0
		logger.Info("animation", zap.Int("index", v.anim), zap.String("name", v.file.Animations[v.anim].Name))
	}
	if in.IsKeyPressed(sdl.SCANCODE_M) && v.motion != nil {
		v.showMV = !v.showMV
	}
	if in.IsKeyPressed(sdl.SCANCODE_R) {
		v.rebuild()
	}
	if in.Clicked {
		v.pick(in.ClickX, in.ClickY)
	}

	if _, _, ok := in.Resized(); ok && v.motion != nil {
		w, h := v.window.DrawableSize()
		if err := v.motion.Resize(v.device, w, h); err != nil {
			return err
		}
	}
	return nil
}

// rebuild reloads every pipeline from the shader directory.
func (v *viewer) rebuild() {
	if v.renderer == nil {
		r, err := renderer.New(v.device, v.binder, v.rendererConfig())
		if err != nil {
			logger.Warn("shader permutations still incomplete", zap.Error(err))
			return
		}
		v.renderer, v.rendererOK = r, true
		return
	}
	if err := v.renderer.Rebuild(); err != nil {
		logger.Warn("rebuild failed, keeping previous pipelines", zap.Error(err))
	}
}

func (v *viewer) render(dt float32) error {
	w, h := v.window.DrawableSize()
	depthClear := float32(1)
	if v.cfg.Graphics.InverseDepth {
		depthClear = 0
	}
	if !v.rendererOK {
		glbackend.ClearScreen(int32(w), int32(h), clearColor, depthClear)
		return nil
	}

	if v.anim >= 0 {
		v.animT += dt * v.cfg.Scene.AnimationSpeed
	}
	if err := v.renderer.Update(v.cfg.Scene.Scene, v.anim, v.animT); err != nil {
		return err
	}

	aspect := float32(w) / float32(max(h, 1))
	view := renderer.View{
		ViewProj: v.orbit.Projection(aspect, v.cfg.Graphics.InverseDepth).Mul4(v.orbit.ViewMatrix()),
		Eye:      v.orbit.Position(),
	}
	if v.cam >= 0 {
		c, err := v.file.Camera(v.cam)
		if err != nil {
			return err
		}
		proj := camera.Perspective(c.YFov, aspect, c.ZNear, c.ZFar, v.cfg.Graphics.InverseDepth)
		view = renderer.View{ViewProj: proj.Mul4(c.View), Eye: c.Eye}
	}

	v.view = view
	v.renderer.Prepare(view)
	v.cl.ResetStats()

	var shadowAtlas gpu.DescriptorHandle
	if v.atlas != nil && len(v.renderer.Shadows()) > 0 {
		size := int32(v.cfg.Passes.ShadowMapSize)
		v.atlas.Bind()
		v.atlas.Clear(clearColor, 1)
		for _, s := range v.renderer.Shadows() {
			v.atlas.BindViewport(int32(s.Slot)*size, 0, size, size)
			v.renderer.DrawShadow(v.cl, s)
		}
		v.atlas.Unbind()
		shadowAtlas = v.shadows
	}

	if v.motion != nil {
		v.motion.Bind()
		v.motion.Clear([4]float32{}, depthClear)
		v.renderer.DrawMotionVectors(v.cl)
		v.motion.Unbind()
	}

	glbackend.ClearScreen(int32(w), int32(h), clearColor, depthClear)
	v.renderer.DrawScene(v.cl, shadowAtlas)

	if v.showMV {
		v.motion.BlitToScreen(int32(w), int32(h))
	}
	if v.input.IsKeyPressed(sdl.SCANCODE_F12) {
		path, err := v.screenshots.SavePixels(glbackend.ReadScreen(w, h), w, h)
		if err != nil {
			logger.Warn("screenshot failed", zap.Error(err))
		} else {
			logger.Info("screenshot saved", zap.String("path", path))
		}
	}
	return nil
}

// pick logs the node under the window position x, y.
func (v *viewer) pick(x, y int32) {
	ww, wh := v.window.GetSize()
	ray := picking.ScreenToRay(float32(x), float32(y), float32(ww), float32(wh), v.view.ViewProj.Inv(), v.cfg.Graphics.InverseDepth)
	hit, ok := picking.PickNode(v.file, ray)
	if !ok {
		logger.Info("nothing picked")
		return
	}
	node := &v.file.Nodes[hit.Node]
	logger.Info("picked",
		zap.Int("node", hit.Node),
		zap.String("name", node.Name),
		zap.Int("mesh", node.Mesh),
		zap.Int("primitive", hit.Primitive),
		zap.Float32("distance", hit.Distance))
}

// Close releases everything newViewer created.
func (v *viewer) Close() {
	if v.watcher != nil {
		if err := v.watcher.Close(); err != nil {
			logger.Warn("closing shader watcher", zap.Error(err))
		}
	}
	if v.motion != nil {
		v.motion.Destroy()
	}
	if v.atlas != nil {
		v.atlas.Destroy()
	}
	if v.window != nil {
		v.window.Close()
	}
}
