package pass

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/engine/shader"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// DepthPassName prefixes the depth-only permutation files.
const DepthPassName = "GLTFDepthPass"

// DepthOptions configures a depth-only pass.
type DepthOptions struct {
	DepthFormat  gpu.Format
	SampleCount  int
	InverseDepth bool

	Store     shader.Store
	ShaderExt string
}

// DepthPerFrame is the b0 block of the depth shaders. It matches the first
// field of scene.PerFrame, so the scene constants can stand in for it.
type DepthPerFrame struct {
	ViewProj mgl32.Mat4
}

type depthPerObject struct {
	World mgl32.Mat4
}

// DepthPass renders depth only, typically into a shadow map.
type DepthPass struct {
	res      Resources
	cache    *PipelineCache
	meshes   [][]*drawable
	perFrame gpu.Address
}

// NewDepthPass prepares a depth-only pipeline for every primitive.
func NewDepthPass(device gpu.Device, res Resources, opts DepthOptions) (*DepthPass, error) {
	cache := NewPipelineCache(DepthPassName, device, opts.Store, opts.ShaderExt)
	meshes, err := buildDepthOnly(res, cache, gpu.PipelineDesc{
		DepthWrite:  true,
		DepthFunc:   depthFunc(opts.InverseDepth),
		DepthFormat: orDefault(opts.DepthFormat, gpu.FormatD32Float),
		SampleCount: max(opts.SampleCount, 1),
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("depth pass ready", zap.Int("pipelines", cache.Len()))
	return &DepthPass{res: res, cache: cache, meshes: meshes}, nil
}

// SetPerFrameConstants makes the next Draw render from viewProj instead of
// the scene camera, for example from a light.
func (p *DepthPass) SetPerFrameConstants(viewProj mgl32.Mat4) {
	p.perFrame = p.res.Ring().Allocate(gpu.Bytes(DepthPerFrame{ViewProj: viewProj}))
}

// Draw records every mesh primitive of the scene without culling. It uses
// the constants of the last SetPerFrameConstants call since the previous
// Draw, or the scene per-frame constants.
func (p *DepthPass) Draw(cl gpu.CommandList) {
	perFrame := p.perFrame
	if perFrame == 0 {
		perFrame = p.res.PerFrameConstants()
	}
	p.perFrame = 0

	file := p.res.File()
	world := file.Current().World
	drawDepthOnly(cl, p.res, p.meshes, perFrame, func(node int) []byte {
		return gpu.Bytes(depthPerObject{World: world[node]})
	})
}

// Cache exposes the pass pipeline cache.
func (p *DepthPass) Cache() *PipelineCache { return p.cache }

// depthTable is a depth-only material with its alpha-test texture placed.
type depthTable struct {
	DepthMaterial
	table gpu.DescriptorHandle
}

// buildDepthOnly prepares the primitives of a pass that only needs
// positions, skinning and the alpha-test texture. base carries the pass
// state; layout, culling and blending are filled in per primitive.
func buildDepthOnly(res Resources, cache *PipelineCache, base gpu.PipelineDesc) ([][]*drawable, error) {
	file := res.File()
	materials := make(map[int]*depthTable)
	material := func(i int) (*depthTable, error) {
		if i < 0 || i >= len(file.Materials) {
			i = scene.None
		}
		if m, ok := materials[i]; ok {
			return m, nil
		}
		m := &depthTable{DepthMaterial: ProcessDepthMaterial(file.Material(i))}
		if m.BaseColor != scene.None {
			first, err := res.MaterialTable(cache.pass, i, 1)
			if err != nil {
				return nil, err
			}
			if tex := res.TextureByID(m.BaseColor); tex != nil {
				if err := res.Pile().SetTexture(first, tex); err != nil {
					return nil, fmt.Errorf("material %d alpha test texture: %w", i, err)
				}
			}
			m.table = res.Pile().Handle(first)
		}
		materials[i] = m
		return m, nil
	}

	meshes := make([][]*drawable, len(file.Meshes))
	for mi := range file.Meshes {
		prims := file.Meshes[mi].Primitives
		meshes[mi] = make([]*drawable, len(prims))
		skinned := file.FindMeshSkinID(mi) != scene.None
		for i := range prims {
			prim := &prims[i]
			m, err := material(prim.Material)
			if err != nil {
				return nil, err
			}

			required := requiredAttributes(prim, func(name string) bool {
				switch {
				case name == "POSITION",
					strings.HasPrefix(name, "WEIGHTS_"),
					strings.HasPrefix(name, "JOINTS_"):
					return true
				default:
					return UsesTexCoord(m.Defines, name)
				}
			})
			geom, err := res.CreateGeometry(prim, required)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, i, err)
			}

			defines := m.Defines.Merge(geom.Defines)
			if skinned {
				defines["ID_SKINNING_MATRICES"] = skinningRegister
			}

			textures := 0
			var samplers []gpu.SamplerDesc
			if m.BaseColor != scene.None {
				textures = 1
				samplers = []gpu.SamplerDesc{{
					Register: 0,
					Filter:   gpu.FilterMinMagLinearMipPoint,
					Address:  gpu.AddressWrap,
				}}
			}

			desc := base
			desc.InputLayout = geom.Layout
			desc.Cull = cullMode(m.DoubleSided)
			desc.Blend = false
			rs := rootSignature(cache.pass, textures, false, skinned, samplers)
			pipeline, rootSig, hash, err := cache.Get(defines, rs, desc)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, i, err)
			}
			meshes[mi][i] = &drawable{
				geometry:      geom,
				rootSignature: rootSig,
				pipeline:      pipeline,
				hash:          hash,
				textures:      textures,
				table:         m.table,
				skinned:       skinned,
			}
		}
	}
	return meshes, nil
}

// drawDepthOnly records every primitive of every mesh node in node order.
// perObject encodes the b1 block of a node.
func drawDepthOnly(cl gpu.CommandList, res Resources, meshes [][]*drawable, perFrame gpu.Address, perObject func(node int) []byte) {
	file := res.File()
	ring := res.Ring()
	pileSet := false
	for n := range file.Nodes {
		node := &file.Nodes[n]
		if node.Mesh < 0 || node.Mesh >= len(meshes) || len(meshes[node.Mesh]) == 0 {
			continue
		}
		if !pileSet {
			cl.SetDescriptorPile(res.Pile())
			pileSet = true
		}
		object := ring.Allocate(perObject(n))
		for _, d := range meshes[node.Mesh] {
			var skinning gpu.Address
			if d.skinned {
				skinning = res.SkinningMatricesBuffer(skinOf(file, n))
			}
			bind(cl, d, perFrame, object, skinning, 0)
		}
	}
}

func orDefault(f, def gpu.Format) gpu.Format {
	if f == gpu.FormatUnknown {
		return def
	}
	return f
}
