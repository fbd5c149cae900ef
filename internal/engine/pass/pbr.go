package pass

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/engine/shader"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// PBRPassName prefixes the PBR permutation files.
const PBRPassName = "GLTFPbrPass"

// skinningRegister is the constant buffer register of joint matrices.
const skinningRegister = "2"

// PBROptions selects the render targets and state of the forward pass. A
// target with FormatUnknown is not written.
type PBROptions struct {
	ForwardFormat           gpu.Format
	SpecularRoughnessFormat gpu.Format
	DiffuseFormat           gpu.Format
	NormalsFormat           gpu.Format
	DepthFormat             gpu.Format
	SampleCount             int
	InverseDepth            bool
	Lighting                bool

	Store     shader.Store
	ShaderExt string
}

// pbrPerObject is the b1 block of the PBR shaders.
type pbrPerObject struct {
	World  mgl32.Mat4
	Params PBRParams
}

// materialTable is a material with its textures placed in the pile.
type materialTable struct {
	PBRMaterial
	count int
	table gpu.DescriptorHandle
}

// PBRPass renders the scene with metallic-roughness shading into up to
// four render targets.
type PBRPass struct {
	res   Resources
	opts  PBROptions
	cache *PipelineCache

	rtDefines shader.Defines
	targets   []gpu.Format
	materials map[int]*materialTable
	meshes    [][]*drawable

	solid       []BatchList
	transparent []BatchList
}

// NewPBRPass prepares a pipeline for every primitive of res.File(). Textures
// must already be loaded; unloaded ones leave empty descriptors.
func NewPBRPass(device gpu.Device, res Resources, opts PBROptions) (*PBRPass, error) {
	if opts.DepthFormat == gpu.FormatUnknown {
		opts.DepthFormat = gpu.FormatD32Float
	}
	opts.SampleCount = max(opts.SampleCount, 1)

	p := &PBRPass{
		res:       res,
		opts:      opts,
		cache:     NewPipelineCache(PBRPassName, device, opts.Store, opts.ShaderExt),
		rtDefines: make(shader.Defines),
		materials: make(map[int]*materialTable),
	}

	rt := 0
	for _, target := range []struct {
		define string
		format gpu.Format
	}{
		{"HAS_FORWARD_RT", opts.ForwardFormat},
		{"HAS_SPECULAR_ROUGHNESS_RT", opts.SpecularRoughnessFormat},
		{"HAS_DIFFUSE_RT", opts.DiffuseFormat},
		{"HAS_NORMALS_RT", opts.NormalsFormat},
	} {
		if target.format == gpu.FormatUnknown {
			continue
		}
		p.rtDefines[target.define] = strconv.Itoa(rt)
		p.targets = append(p.targets, target.format)
		rt++
	}

	file := res.File()
	p.meshes = make([][]*drawable, len(file.Meshes))
	count := 0
	for m := range file.Meshes {
		mesh := &file.Meshes[m]
		p.meshes[m] = make([]*drawable, len(mesh.Primitives))
		for i := range mesh.Primitives {
			d, err := p.build(m, &mesh.Primitives[i])
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", m, i, err)
			}
			p.meshes[m][i] = d
			count++
		}
	}

	logger.Debug("pbr pass ready",
		zap.Int("primitives", count),
		zap.Int("pipelines", p.cache.Len()),
		zap.Int("targets", len(p.targets)),
	)
	return p, nil
}

// material returns the prepared material i, filling its descriptor table on
// first use. Out of range indices share the default material.
func (p *PBRPass) material(i int) (*materialTable, error) {
	file := p.res.File()
	if i < 0 || i >= len(file.Materials) {
		i = scene.None
	}
	if m, ok := p.materials[i]; ok {
		return m, nil
	}

	m := &materialTable{PBRMaterial: ProcessMaterial(file.Material(i))}
	slots := m.TextureSlots()
	if len(slots) > ShadowMapSlot {
		return nil, fmt.Errorf("%w: %d, at most %d", ErrTooManyTextures, len(slots), ShadowMapSlot)
	}
	m.count = len(slots)
	if m.count > 0 {
		pile := p.res.Pile()
		first, err := p.res.MaterialTable(PBRPassName, i, m.count)
		if err != nil {
			return nil, err
		}
		for n, slot := range slots {
			m.Defines["ID_"+slot] = strconv.Itoa(n)
			tex := p.res.TextureByID(m.Textures[slot])
			if tex == nil {
				continue
			}
			if err := pile.SetTexture(first+n, tex); err != nil {
				return nil, fmt.Errorf("material %d %s: %w", i, slot, err)
			}
		}
		m.table = pile.Handle(first)
	}
	m.Defines["ID_shadowMap"] = strconv.Itoa(ShadowMapSlot)

	p.materials[i] = m
	return m, nil
}

func (p *PBRPass) build(mesh int, prim *scene.Primitive) (*drawable, error) {
	m, err := p.material(prim.Material)
	if err != nil {
		return nil, err
	}

	required := requiredAttributes(prim, func(name string) bool {
		return !strings.HasPrefix(name, "TEXCOORD_") || UsesTexCoord(m.Defines, name)
	})
	geom, err := p.res.CreateGeometry(prim, required)
	if err != nil {
		return nil, err
	}

	defines := p.rtDefines.Merge(m.Defines).Merge(geom.Defines)
	skinned := p.res.File().FindMeshSkinID(mesh) != scene.None
	if skinned {
		defines["ID_SKINNING_MATRICES"] = skinningRegister
	}

	samplers := make([]gpu.SamplerDesc, 0, m.count+1)
	for n := range m.count {
		samplers = append(samplers, gpu.SamplerDesc{
			Register:      n,
			Filter:        gpu.FilterAnisotropic,
			Address:       gpu.AddressWrap,
			MaxAnisotropy: 4,
		})
	}
	if p.opts.Lighting {
		samplers = append(samplers, gpu.SamplerDesc{
			Register: ShadowMapSlot,
			Filter:   gpu.FilterComparisonLinear,
			Address:  gpu.AddressClamp,
			Compare:  gpu.CompareLessEqual,
		})
	}

	rs := rootSignature(PBRPassName, m.count, p.opts.Lighting, skinned, samplers)
	pipeline, rootSig, hash, err := p.cache.Get(defines, rs, gpu.PipelineDesc{
		InputLayout:   geom.Layout,
		Cull:          cullMode(m.DoubleSided),
		Blend:         defines.Has("DEF_alphaMode_BLEND"),
		DepthWrite:    true,
		DepthFunc:     depthFunc(p.opts.InverseDepth),
		RenderTargets: p.targets,
		DepthFormat:   p.opts.DepthFormat,
		SampleCount:   p.opts.SampleCount,
	})
	if err != nil {
		return nil, err
	}

	return &drawable{
		geometry:      geom,
		rootSignature: rootSig,
		pipeline:      pipeline,
		hash:          hash,
		textures:      m.count,
		table:         m.table,
		lighting:      p.opts.Lighting,
		skinned:       skinned,
		blending:      m.Blending,
		params:        m.Params,
	}, nil
}

// BuildLists culls every mesh primitive against viewProj, allocates its
// per-object constants and splits the survivors by blending. Solid draws
// come back grouped by pipeline, transparent ones back to front. The lists
// are also kept for Draw.
func (p *PBRPass) BuildLists(viewProj mgl32.Mat4) (solid, transparent []BatchList) {
	file := p.res.File()
	world := file.Current().World
	ring := p.res.Ring()
	perFrame := p.res.PerFrameConstants()

	solid = p.solid[:0]
	transparent = p.transparent[:0]
	for n := range file.Nodes {
		node := &file.Nodes[n]
		if node.Mesh < 0 || node.Mesh >= len(p.meshes) {
			continue
		}
		mvp := viewProj.Mul4(world[n])
		prims := file.Meshes[node.Mesh].Primitives
		for i, d := range p.meshes[node.Mesh] {
			prim := &prims[i]
			if FrustumCulled(mvp, prim.Center, prim.Extent) {
				continue
			}
			b := BatchList{
				Node:      n,
				Mesh:      node.Mesh,
				Primitive: i,
				Depth:     mvp.Mul4x1(prim.Center.Vec4(1))[3],
				Hash:      d.hash,
				PerFrame:  perFrame,
				PerObject: ring.Allocate(gpu.Bytes(pbrPerObject{World: world[n], Params: d.params})),
				d:         d,
			}
			if d.skinned {
				b.Skinning = p.res.SkinningMatricesBuffer(skinOf(file, n))
			}
			if d.blending {
				transparent = append(transparent, b)
			} else {
				solid = append(solid, b)
			}
		}
	}

	SortSolid(solid)
	SortTransparent(transparent)
	p.solid, p.transparent = solid, transparent
	return solid, transparent
}

// Draw records the lists of the last BuildLists call, solid first.
// shadowAtlas is the table of the shadow map, or zero without one.
func (p *PBRPass) Draw(cl gpu.CommandList, shadowAtlas gpu.DescriptorHandle) {
	if len(p.solid)+len(p.transparent) == 0 {
		return
	}
	cl.SetDescriptorPile(p.res.Pile())
	for _, lists := range [][]BatchList{p.solid, p.transparent} {
		for i := range lists {
			b := &lists[i]
			bind(cl, b.d, b.PerFrame, b.PerObject, b.Skinning, shadowAtlas)
		}
	}
}

// Cache exposes the pass pipeline cache.
func (p *PBRPass) Cache() *PipelineCache { return p.cache }

// skinOf returns the skin applied at node: its own, or the one another node
// pairs with the same mesh.
func skinOf(file *scene.File, node int) int {
	if s := file.Nodes[node].Skin; s != scene.None {
		return s
	}
	return file.FindMeshSkinID(file.Nodes[node].Mesh)
}
