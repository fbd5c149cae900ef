package pass

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/shader"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// MotionVectorsPassName prefixes the motion vector permutation files.
const MotionVectorsPassName = "GLTFMotionVectorsPass"

// MotionVectorsFormat is the render target of the motion vector pass.
const MotionVectorsFormat = gpu.FormatR16G16Float

// MotionVectorsOptions configures the motion vector pass. It always renders
// single sampled into MotionVectorsFormat.
type MotionVectorsOptions struct {
	DepthFormat  gpu.Format
	InverseDepth bool

	Store     shader.Store
	ShaderExt string
}

// MotionPerFrame is the b0 block of the motion vector shaders.
type MotionPerFrame struct {
	CurrViewProj mgl32.Mat4
	PrevViewProj mgl32.Mat4
}

type motionPerObject struct {
	CurrWorld mgl32.Mat4
	PrevWorld mgl32.Mat4
}

// MotionVectorsPass writes screen-space motion between the previous and
// the current frame.
type MotionVectorsPass struct {
	res      Resources
	cache    *PipelineCache
	meshes   [][]*drawable
	perFrame gpu.Address
}

// NewMotionVectorsPass prepares a pipeline for every primitive.
func NewMotionVectorsPass(device gpu.Device, res Resources, opts MotionVectorsOptions) (*MotionVectorsPass, error) {
	cache := NewPipelineCache(MotionVectorsPassName, device, opts.Store, opts.ShaderExt)
	meshes, err := buildDepthOnly(res, cache, gpu.PipelineDesc{
		DepthWrite:    true,
		DepthFunc:     depthFunc(opts.InverseDepth),
		RenderTargets: []gpu.Format{MotionVectorsFormat},
		DepthFormat:   orDefault(opts.DepthFormat, gpu.FormatD32Float),
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("motion vectors pass ready", zap.Int("pipelines", cache.Len()))
	return &MotionVectorsPass{res: res, cache: cache, meshes: meshes}, nil
}

// SetPerFrameConstants sets the camera of this frame and of the previous
// one for the next Draw.
func (p *MotionVectorsPass) SetPerFrameConstants(curr, prev mgl32.Mat4) {
	p.perFrame = p.res.Ring().Allocate(gpu.Bytes(MotionPerFrame{CurrViewProj: curr, PrevViewProj: prev}))
}

// Draw records every mesh primitive with its current and previous world
// matrix. Without SetPerFrameConstants the scene camera is used for both
// frames, so only object motion shows.
func (p *MotionVectorsPass) Draw(cl gpu.CommandList) {
	file := p.res.File()
	if p.perFrame == 0 {
		vp := file.PerFrame().CameraViewProj
		p.SetPerFrameConstants(vp, vp)
	}
	perFrame := p.perFrame
	p.perFrame = 0

	curr, prev := file.Current().World, file.Previous().World
	drawDepthOnly(cl, p.res, p.meshes, perFrame, func(node int) []byte {
		return gpu.Bytes(motionPerObject{CurrWorld: curr[node], PrevWorld: prev[node]})
	})
}

// Cache exposes the pass pipeline cache.
func (p *MotionVectorsPass) Cache() *PipelineCache { return p.cache }
