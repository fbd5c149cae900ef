// Package renderer sequences the passes that draw one glTF frame: shadow
// depth, the forward PBR pass and motion vectors.
package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/pass"
	"github.com/Faultbox/gltf-frame/internal/engine/resources"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/engine/shader"
	"github.com/Faultbox/gltf-frame/internal/engine/shadow"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// ShadowFormat is the depth format of the shadow atlas.
const ShadowFormat = gpu.FormatD32Float

// Config holds renderer configuration.
type Config struct {
	ForwardFormat gpu.Format
	DepthFormat   gpu.Format
	SampleCount   int
	InverseDepth  bool

	Lighting      bool
	ShadowMaps    int
	MotionVectors bool
	// FitShadows sizes directional shadow frusta to the scene bounds
	// instead of the fixed box.
	FitShadows bool

	Store     shader.Store
	ShaderExt string
}

// View is the camera of one frame.
type View struct {
	ViewProj mgl32.Mat4
	Eye      mgl32.Vec3
}

// ShadowView is a light that renders into shadow atlas slot Slot.
type ShadowView struct {
	Slot     uint32
	Light    int
	ViewProj mgl32.Mat4
}

// Stats describes the last prepared frame.
type Stats struct {
	Solid       int
	Transparent int
	Shadows     int
	Pipelines   int
	Missing     int
}

// Renderer owns the passes of a scene and the order they run in.
type Renderer struct {
	config Config
	device gpu.Device
	binder *resources.Binder

	pbr    *pass.PBRPass
	depth  *pass.DepthPass
	motion *pass.MotionVectorsPass

	prevViewProj mgl32.Mat4
	hasPrev      bool

	shadows []ShadowView
	stats   Stats
}

// New builds every pass of binder's scene. Textures should already be
// loaded.
func New(device gpu.Device, binder *resources.Binder, cfg Config) (*Renderer, error) {
	if cfg.DepthFormat == gpu.FormatUnknown {
		cfg.DepthFormat = gpu.FormatD32Float
	}
	if !cfg.Lighting {
		cfg.ShadowMaps = 0
	}
	r := &Renderer{
		config: cfg,
		device: device,
		binder: binder,
	}
	if err := r.Rebuild(); err != nil {
		return nil, err
	}
	return r, nil
}

// Rebuild recreates the passes, picking up permutation files written since
// the last build. The old passes stay in use if any pass fails.
func (r *Renderer) Rebuild() error {
	cfg := r.config
	pbr, err := pass.NewPBRPass(r.device, r.binder, pass.PBROptions{
		ForwardFormat: cfg.ForwardFormat,
		DepthFormat:   cfg.DepthFormat,
		SampleCount:   cfg.SampleCount,
		InverseDepth:  cfg.InverseDepth,
		Lighting:      cfg.Lighting,
		Store:         cfg.Store,
		ShaderExt:     cfg.ShaderExt,
	})
	if err != nil {
		return fmt.Errorf("pbr pass: %w", err)
	}

	var depth *pass.DepthPass
	if cfg.ShadowMaps > 0 {
		// Shadow maps are compared with less-equal, so they never use
		// inverse depth.
		depth, err = pass.NewDepthPass(r.device, r.binder, pass.DepthOptions{
			DepthFormat: ShadowFormat,
			SampleCount: 1,
			Store:       cfg.Store,
			ShaderExt:   cfg.ShaderExt,
		})
		if err != nil {
			return fmt.Errorf("shadow pass: %w", err)
		}
	}

	var motion *pass.MotionVectorsPass
	if cfg.MotionVectors {
		motion, err = pass.NewMotionVectorsPass(r.device, r.binder, pass.MotionVectorsOptions{
			DepthFormat:  cfg.DepthFormat,
			InverseDepth: cfg.InverseDepth,
			Store:        cfg.Store,
			ShaderExt:    cfg.ShaderExt,
		})
		if err != nil {
			return fmt.Errorf("motion vectors pass: %w", err)
		}
	}

	r.pbr, r.depth, r.motion = pbr, depth, motion
	logger.Info("passes built",
		zap.Int("pbrPipelines", pbr.Cache().Len()),
		zap.Bool("shadows", depth != nil),
		zap.Bool("motionVectors", motion != nil),
	)
	return nil
}

// Update poses the scene at time t of animation anim and recomputes world
// matrices. A negative anim leaves nodes at rest.
func (r *Renderer) Update(sceneIndex, anim int, t float32) error {
	file := r.binder.File()
	if anim >= 0 {
		if err := file.SetAnimationTime(anim, t); err != nil {
			return err
		}
	}
	return file.TransformScene(sceneIndex, mgl32.Ident4())
}

// Prepare starts a constant ring frame and fills every per-frame and
// per-object constant for view. Call it after Update.
func (r *Renderer) Prepare(view View) Stats {
	file := r.binder.File()
	r.binder.Ring().BeginFrame()

	pf := file.SetPerFrameData(view.ViewProj, view.Eye, r.config.ShadowMaps)
	if r.config.FitShadows {
		r.fitDirectional(pf)
	}
	r.binder.SetPerFrameConstants()
	r.binder.SetSkinningMatricesForSkeletons()

	r.shadows = r.shadows[:0]
	if r.depth != nil {
		for i := 0; i < int(pf.LightCount); i++ {
			l := &pf.Lights[i]
			if l.ShadowMapIndex == shadow.NoSlot {
				continue
			}
			r.shadows = append(r.shadows, ShadowView{
				Slot:     l.ShadowMapIndex,
				Light:    i,
				ViewProj: l.ViewProj,
			})
		}
	}

	solid, transparent := r.pbr.BuildLists(view.ViewProj)

	if r.motion != nil {
		prev := view.ViewProj
		if r.hasPrev {
			prev = r.prevViewProj
		}
		r.motion.SetPerFrameConstants(view.ViewProj, prev)
	}
	r.prevViewProj, r.hasPrev = view.ViewProj, true

	r.stats = Stats{
		Solid:       len(solid),
		Transparent: len(transparent),
		Shadows:     len(r.shadows),
		Pipelines:   r.pbr.Cache().Len(),
		Missing:     len(r.pbr.Cache().Missing()),
	}
	return r.stats
}

func (r *Renderer) fitDirectional(pf *scene.PerFrame) {
	box, ok := Bounds(r.binder.File())
	if !ok {
		return
	}
	for i := 0; i < int(pf.LightCount); i++ {
		l := &pf.Lights[i]
		if l.Type != uint32(scene.LightDirectional) || l.ShadowMapIndex == shadow.NoSlot {
			continue
		}
		// Lights shine down their local -Z.
		l.ViewProj = shadow.FitDirectional(mgl32.Vec3(l.Direction).Mul(-1), box)
	}
}

// Shadows returns the shadow-casting lights of the prepared frame in slot
// order.
func (r *Renderer) Shadows() []ShadowView {
	return r.shadows
}

// DrawShadow records the scene depth as seen by v. The caller binds the
// atlas region of v.Slot first.
func (r *Renderer) DrawShadow(cl gpu.CommandList, v ShadowView) {
	if r.depth == nil {
		return
	}
	r.depth.SetPerFrameConstants(v.ViewProj)
	r.depth.Draw(cl)
}

// DrawScene records the forward pass. shadowAtlas is the atlas descriptor
// table, or zero when no shadows were drawn.
func (r *Renderer) DrawScene(cl gpu.CommandList, shadowAtlas gpu.DescriptorHandle) {
	r.pbr.Draw(cl, shadowAtlas)
}

// DrawMotionVectors records the motion vector pass, if enabled.
func (r *Renderer) DrawMotionVectors(cl gpu.CommandList) {
	if r.motion == nil {
		return
	}
	r.motion.Draw(cl)
}

// Stats returns the statistics of the last Prepare.
func (r *Renderer) Stats() Stats { return r.stats }

// Bounds returns the world space box around every mesh primitive in the
// current snapshot. ok is false for a scene without meshes.
func Bounds(file *scene.File) (box shadow.AABB, ok bool) {
	world := file.Current().World
	for n := range file.Nodes {
		mesh := file.Mesh(file.Nodes[n].Mesh)
		if mesh == nil || n >= len(world) {
			continue
		}
		for _, prim := range mesh.Primitives {
			b := shadow.BoxOf(world[n], prim.Center, prim.Extent)
			if !ok {
				box, ok = b, true
				continue
			}
			box = box.Extend(b.Min).Extend(b.Max)
		}
	}
	return box, ok
}
