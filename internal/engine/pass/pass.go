// Package pass draws a glTF scene. Each pass (PBR forward, depth, motion
// vectors) prepares one pipeline per primitive at construction and then
// records culled, sorted draws into a gpu.CommandList every frame.
package pass

import (
	"cmp"
	"errors"
	"maps"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/resources"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
)

// ErrTooManyTextures is returned for a material with more textures than
// there are registers below ShadowMapSlot.
var ErrTooManyTextures = errors.New("material uses too many textures")

// Resources is what passes need from the GPU resource binder.
type Resources interface {
	File() *scene.File
	Pile() gpu.DescriptorPile
	MaterialTable(pass string, material, n int) (first int, err error)
	Ring() gpu.ConstantRing
	TextureByID(id int) gpu.Texture
	CreateGeometry(prim *scene.Primitive, required []string) (resources.Geometry, error)
	PerFrameConstants() gpu.Address
	SkinningMatricesBuffer(skin int) gpu.Address
}

// drawable is a primitive ready to be bound.
type drawable struct {
	geometry      resources.Geometry
	rootSignature gpu.RootSignature
	pipeline      gpu.Pipeline
	hash          uint32
	textures      int
	table         gpu.DescriptorHandle
	lighting      bool
	skinned       bool
	blending      bool
	params        PBRParams
}

// BatchList is one visible primitive with its constants for this frame.
// Depth is the clip-space w of the primitive center and Hash identifies its
// pipeline.
type BatchList struct {
	Node      int
	Mesh      int
	Primitive int
	Depth     float32
	Hash      uint32
	PerFrame  gpu.Address
	PerObject gpu.Address
	Skinning  gpu.Address

	d *drawable
}

// SortSolid orders opaque draws by pipeline so state changes are grouped.
// Draws with equal pipelines keep their order.
func SortSolid(list []BatchList) {
	slices.SortStableFunc(list, func(a, b BatchList) int {
		return cmp.Compare(a.Hash, b.Hash)
	})
}

// SortTransparent orders blended draws back to front.
func SortTransparent(list []BatchList) {
	slices.SortStableFunc(list, func(a, b BatchList) int {
		return cmp.Compare(b.Depth, a.Depth)
	})
}

// FrustumCulled reports whether the box center ± extent is entirely
// outside one clip plane after transformation by mvp. Clip space follows
// OpenGL: the near plane is z = -w.
func FrustumCulled(mvp mgl32.Mat4, center, extent mgl32.Vec3) bool {
	var left, right, bottom, top, near int
	for i := range 8 {
		corner := mgl32.Vec3{
			center[0] + sign(i&4)*extent[0],
			center[1] + sign(i&2)*extent[1],
			center[2] + sign(i&1)*extent[2],
		}
		p := mvp.Mul4x1(corner.Vec4(1))
		x, y, z, w := p[0], p[1], p[2], p[3]
		if x < -w {
			left++
		}
		if x > w {
			right++
		}
		if y < -w {
			bottom++
		}
		if y > w {
			top++
		}
		if z < -w {
			near++
		}
	}
	return left == 8 || right == 8 || bottom == 8 || top == 8 || near == 8
}

func sign(bit int) float32 {
	if bit != 0 {
		return -1
	}
	return 1
}

// bind records the state and draw of one primitive. Root parameters follow
// the order the root signature was built in; a missing shadow atlas still
// consumes its slot.
func bind(cl gpu.CommandList, d *drawable, perFrame, perObject, skinning gpu.Address, shadowAtlas gpu.DescriptorHandle) {
	cl.SetIndexBuffer(d.geometry.Index)
	cl.SetVertexBuffers(0, d.geometry.Vertex)
	cl.SetRootSignature(d.rootSignature)

	param := 0
	cl.SetRootConstantBuffer(param, perFrame)
	param++

	if d.textures > 0 {
		cl.SetRootDescriptorTable(param, d.table)
		param++
	}

	if d.lighting {
		if shadowAtlas != 0 {
			cl.SetRootDescriptorTable(param, shadowAtlas)
		}
		param++
	}

	cl.SetRootConstantBuffer(param, perObject)
	param++

	if d.skinned && skinning != 0 {
		cl.SetRootConstantBuffer(param, skinning)
	}

	cl.SetPipeline(d.pipeline)
	cl.DrawIndexed(d.geometry.IndexCount, 1, 0, 0, 0)
}

// rootSignature lays out b0 per frame, the material table, the shadow
// table, b1 per object and b2 skinning, skipping absent ones.
func rootSignature(name string, textures int, lighting, skinned bool, samplers []gpu.SamplerDesc) gpu.RootSignatureDesc {
	desc := gpu.RootSignatureDesc{Name: name, Samplers: samplers}
	desc.Parameters = append(desc.Parameters, gpu.RootParameter{Kind: gpu.ParamConstantBuffer, Register: 0, Visibility: gpu.VisibilityAll})
	if textures > 0 {
		desc.Parameters = append(desc.Parameters, gpu.RootParameter{Kind: gpu.ParamDescriptorTable, Register: 0, Count: textures, Visibility: gpu.VisibilityPixel})
	}
	if lighting {
		desc.Parameters = append(desc.Parameters, gpu.RootParameter{Kind: gpu.ParamDescriptorTable, Register: ShadowMapSlot, Count: 1, Visibility: gpu.VisibilityPixel})
	}
	desc.Parameters = append(desc.Parameters, gpu.RootParameter{Kind: gpu.ParamConstantBuffer, Register: 1, Visibility: gpu.VisibilityAll})
	if skinned {
		desc.Parameters = append(desc.Parameters, gpu.RootParameter{Kind: gpu.ParamConstantBuffer, Register: 2, Visibility: gpu.VisibilityVertex})
	}
	return desc
}

// depthFunc is the depth test for the chosen depth convention.
func depthFunc(inverseDepth bool) gpu.CompareFunc {
	if inverseDepth {
		return gpu.CompareGreaterEqual
	}
	return gpu.CompareLessEqual
}

func cullMode(doubleSided bool) gpu.CullMode {
	if doubleSided {
		return gpu.CullNone
	}
	return gpu.CullBack
}

// requiredAttributes returns the sorted attribute names of prim that keep
// returns true for.
func requiredAttributes(prim *scene.Primitive, keep func(name string) bool) []string {
	var out []string
	for _, name := range slices.Sorted(maps.Keys(prim.Attributes)) {
		if keep(name) {
			out = append(out, name)
		}
	}
	return out
}
