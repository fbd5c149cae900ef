package pass_test

import (
	"testing"
	"testing/fstest"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/gpu/record"
	"github.com/Faultbox/gltf-frame/internal/engine/pass"
	"github.com/Faultbox/gltf-frame/internal/engine/resources"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/engine/shader"
	"github.com/Faultbox/gltf-frame/internal/logger"
	"github.com/Faultbox/gltf-frame/pkg/accessor"
)

// Meshes of the test scene.
const (
	meshSolid   = 0 // three identical textured primitives
	meshGlass   = 1 // blended
	meshSkinned = 2 // default material, JOINTS_0 and WEIGHTS_0
	meshLeaf    = 3 // alpha tested with its second UV set
)

// Nodes every test scene starts with.
const (
	nodeJoint   = 0
	nodeSkinned = 1
	firstExtra  = 2
)

type placed struct {
	mesh int
	at   mgl32.Vec3
}

// camera looks down -z with a 90° field of view, so clip w is -z and x, y
// are unscaled.
var camera = mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100)

func newFile(t *testing.T, extra ...placed) *scene.File {
	t.Helper()
	pos := accessor.MustFromFloats(3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	uv := accessor.MustFromFloats(2, 0, 0, 1, 0, 0, 1)
	joints, err := accessor.New(make([]byte, 12), 3, 4, accessor.UnsignedByte, 0)
	require.NoError(t, err)
	weights := accessor.MustFromFloats(4, 1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0)
	ident := mgl32.Ident4()

	opaque := scene.DefaultMaterial()
	opaque.MetallicRoughness = true
	opaque.BaseColorTexture = scene.TextureRef{Index: 0}

	glass := scene.DefaultMaterial()
	glass.AlphaMode = scene.AlphaBlend
	glass.BaseColorFactor = mgl32.Vec4{1, 1, 1, 0.5}

	leaf := scene.DefaultMaterial()
	leaf.MetallicRoughness = true
	leaf.AlphaMode = scene.AlphaMask
	leaf.AlphaCutoff = 0.25
	leaf.DoubleSided = true
	leaf.BaseColorTexture = scene.TextureRef{Index: 0, TexCoord: 1}

	prim := func(material int, attrs ...string) scene.Primitive {
		p := scene.Primitive{
			Extent:     mgl32.Vec3{1, 1, 0},
			Attributes: map[string]int{"POSITION": 0},
			Indices:    scene.None,
			Material:   material,
		}
		for _, a := range attrs {
			switch a {
			case "TEXCOORD_0", "TEXCOORD_1":
				p.Attributes[a] = 1
			case "JOINTS_0":
				p.Attributes[a] = 2
			case "WEIGHTS_0":
				p.Attributes[a] = 3
			}
		}
		return p
	}
	textured := prim(0, "TEXCOORD_0", "TEXCOORD_1")

	f := &scene.File{
		Accessors: []accessor.Accessor{pos, uv, joints, weights},
		Meshes: []scene.Mesh{
			{Name: "solid", Primitives: []scene.Primitive{textured, textured, textured}},
			{Name: "glass", Primitives: []scene.Primitive{prim(1)}},
			{Name: "skinned", Primitives: []scene.Primitive{prim(scene.None, "JOINTS_0", "WEIGHTS_0")}},
			{Name: "leaf", Primitives: []scene.Primitive{prim(2, "TEXCOORD_0", "TEXCOORD_1")}},
		},
		Materials: []scene.Material{opaque, glass, leaf},
		Textures:  []scene.Texture{{Source: 0}},
		Images:    []scene.Image{{Name: "albedo"}},
		Skins: []scene.Skin{{
			InverseBindMatrices: accessor.MustFromFloats(16, ident[:]...),
			Skeleton:            scene.None,
			Joints:              []int{nodeJoint},
		}},
	}

	skinned := scene.NewNode("skinned")
	skinned.Mesh = meshSkinned
	skinned.Skin = 0
	skinned.Transform.Translation = mgl32.Vec3{0, 0, -2}
	f.Nodes = []scene.Node{scene.NewNode("joint"), skinned}
	for _, p := range extra {
		n := scene.NewNode("")
		n.Mesh = p.mesh
		n.Transform.Translation = p.at
		f.Nodes = append(f.Nodes, n)
	}
	roots := make([]int, len(f.Nodes))
	for i := range roots {
		roots[i] = i
	}
	f.Scenes = []scene.Scene{{Nodes: roots}}
	f.InitTransformedData()
	require.NoError(t, f.TransformScene(0, mgl32.Ident4()))
	return f
}

type fixture struct {
	file   *scene.File
	device *record.Device
	ring   *record.Ring
	binder *resources.Binder
	store  *shader.CollectingStore
}

func newFixture(t *testing.T, extra ...placed) fixture {
	t.Helper()
	fx := fixture{
		file:   newFile(t, extra...),
		device: record.NewDevice(),
		ring:   record.NewRing(),
		store:  shader.NewCollectingStore(),
	}
	b, err := resources.New(fx.device, fx.file, &record.Upload{}, fx.ring, resources.Options{})
	require.NoError(t, err)
	fx.binder = b

	fx.file.SetPerFrameData(camera, mgl32.Vec3{}, 0)
	b.SetPerFrameConstants()
	b.SetSkinningMatricesForSkeletons()
	return fx
}

func (fx fixture) pbrOptions() pass.PBROptions {
	return pass.PBROptions{
		ForwardFormat: gpu.FormatR16G16B16A16Float,
		NormalsFormat: gpu.FormatR10G10B10A2Unorm,
		Lighting:      true,
		Store:         fx.store,
	}
}

// requested reports whether the store was asked for both stages of the
// permutation of defines.
func requested(t *testing.T, store *shader.CollectingStore, passName string, defines shader.Defines) {
	t.Helper()
	hash := defines.Hash()
	names := store.Requested()
	assert.Contains(t, names, shader.PermutationName(passName, shader.Vertex, hash, pass.DefaultShaderExt), defines.String())
	assert.Contains(t, names, shader.PermutationName(passName, shader.Pixel, hash, pass.DefaultShaderExt), defines.String())
}

func TestPBRPassSharesPipelines(t *testing.T) {
	fx := newFixture(t)
	p, err := pass.NewPBRPass(fx.device, fx.binder, fx.pbrOptions())
	require.NoError(t, err)

	// Six primitives, four distinct permutations.
	assert.Equal(t, 4, p.Cache().Misses())
	assert.Equal(t, 2, p.Cache().Hits())
	assert.Equal(t, 4, p.Cache().Len())
	assert.Len(t, fx.device.Pipelines, 4)
	assert.Len(t, fx.device.RootSignatures, 4)
}

func TestRebuildingPassesKeepsPileSize(t *testing.T) {
	fx := newFixture(t)
	pile := fx.binder.Pile()

	build := func() {
		_, err := pass.NewPBRPass(fx.device, fx.binder, fx.pbrOptions())
		require.NoError(t, err)
		_, err = pass.NewDepthPass(fx.device, fx.binder, pass.DepthOptions{Store: fx.store})
		require.NoError(t, err)
		_, err = pass.NewMotionVectorsPass(fx.device, fx.binder, pass.MotionVectorsOptions{Store: fx.store})
		require.NoError(t, err)
	}
	build()
	used := pile.Len()
	for range 100 {
		build()
	}
	assert.Equal(t, used, pile.Len())
}

func TestPBRPassDefines(t *testing.T) {
	fx := newFixture(t)
	_, err := pass.NewPBRPass(fx.device, fx.binder, fx.pbrOptions())
	require.NoError(t, err)

	rt := shader.Defines{"HAS_FORWARD_RT": "0", "HAS_NORMALS_RT": "1", "ID_shadowMap": "9"}

	// The unused second UV set is not bound.
	requested(t, fx.store, pass.PBRPassName, rt.Merge(shader.Defines{
		"DEF_doubleSided":            "0",
		"DEF_alphaCutoff":            "0.500000",
		"DEF_alphaMode_OPAQUE":       "1",
		"MATERIAL_METALLICROUGHNESS": "1",
		"ID_baseTexCoord":            "0",
		"ID_baseColorTexture":        "0",
		"HAS_POSITION":               "1",
		"HAS_TEXCOORD_0":             "1",
	}))

	requested(t, fx.store, pass.PBRPassName, rt.Merge(shader.Defines{
		"DEF_doubleSided":      "0",
		"DEF_alphaCutoff":      "0.500000",
		"DEF_alphaMode_OPAQUE": "1",
		"HAS_POSITION":         "1",
		"HAS_JOINTS_0":         "1",
		"HAS_WEIGHTS_0":        "1",
		"ID_SKINNING_MATRICES": "2",
	}))

	requested(t, fx.store, pass.PBRPassName, rt.Merge(shader.Defines{
		"DEF_doubleSided":            "1",
		"DEF_alphaCutoff":            "0.250000",
		"DEF_alphaMode_MASK":         "1",
		"MATERIAL_METALLICROUGHNESS": "1",
		"ID_baseTexCoord":            "1",
		"ID_baseColorTexture":        "0",
		"HAS_POSITION":               "1",
		"HAS_TEXCOORD_1":             "1",
	}))
}

func TestPBRPassPipelineState(t *testing.T) {
	fx := newFixture(t)
	opts := fx.pbrOptions()
	opts.InverseDepth = true
	_, err := pass.NewPBRPass(fx.device, fx.binder, opts)
	require.NoError(t, err)
	require.Len(t, fx.device.Pipelines, 4)

	solid := fx.device.Pipelines[meshSolid].Desc()
	assert.Equal(t, []gpu.Format{gpu.FormatR16G16B16A16Float, gpu.FormatR10G10B10A2Unorm}, solid.RenderTargets)
	assert.Equal(t, gpu.FormatD32Float, solid.DepthFormat)
	assert.Equal(t, 1, solid.SampleCount)
	assert.Equal(t, gpu.CullBack, solid.Cull)
	assert.Equal(t, gpu.CompareGreaterEqual, solid.DepthFunc)
	assert.False(t, solid.Blend)
	assert.Len(t, solid.InputLayout, 2)
	assert.NotEmpty(t, solid.VS)

	assert.True(t, fx.device.Pipelines[meshGlass].Desc().Blend)
	assert.Equal(t, gpu.CullNone, fx.device.Pipelines[meshLeaf].Desc().Cull)

	rs := solid.RootSignature.Desc()
	assert.Equal(t, []gpu.RootParameter{
		{Kind: gpu.ParamConstantBuffer, Register: 0, Visibility: gpu.VisibilityAll},
		{Kind: gpu.ParamDescriptorTable, Register: 0, Count: 1, Visibility: gpu.VisibilityPixel},
		{Kind: gpu.ParamDescriptorTable, Register: pass.ShadowMapSlot, Count: 1, Visibility: gpu.VisibilityPixel},
		{Kind: gpu.ParamConstantBuffer, Register: 1, Visibility: gpu.VisibilityAll},
	}, rs.Parameters)
	require.Len(t, rs.Samplers, 2)
	assert.Equal(t, gpu.CompareLessEqual, rs.Samplers[1].Compare)

	skinned := fx.device.Pipelines[meshSkinned].Desc().RootSignature.Desc()
	require.Len(t, skinned.Parameters, 4)
	assert.Equal(t, gpu.RootParameter{Kind: gpu.ParamConstantBuffer, Register: 2, Visibility: gpu.VisibilityVertex}, skinned.Parameters[3])
}

func TestBuildListsCullsAndSorts(t *testing.T) {
	fx := newFixture(t,
		placed{meshSolid, mgl32.Vec3{0, 0, -3}},
		placed{meshGlass, mgl32.Vec3{0, 0, -1}},
		placed{meshGlass, mgl32.Vec3{0, 0, -5}},
		placed{meshGlass, mgl32.Vec3{0, 0, -2.5}},
		placed{meshGlass, mgl32.Vec3{0, 0, 5}},    // behind the camera
		placed{meshGlass, mgl32.Vec3{100, 0, -5}}, // far right
	)
	p, err := pass.NewPBRPass(fx.device, fx.binder, fx.pbrOptions())
	require.NoError(t, err)

	solid, transparent := p.BuildLists(camera)

	// Three solid primitives plus the skinned one.
	require.Len(t, solid, 4)
	for i := 1; i < len(solid); i++ {
		assert.LessOrEqual(t, solid[i-1].Hash, solid[i].Hash)
	}

	require.Len(t, transparent, 3)
	var depths []float32
	for _, b := range transparent {
		depths = append(depths, b.Depth)
		assert.Equal(t, meshGlass, b.Mesh)
		assert.NotEqual(t, firstExtra+4, b.Node)
		assert.NotEqual(t, firstExtra+5, b.Node)
	}
	assert.InDeltaSlice(t, []float32{5, 2.5, 1}, depths, 1e-5)

	// World matrix first, then the material factors.
	b := transparent[0]
	data, ok := fx.ring.Lookup(b.PerObject)
	require.True(t, ok)
	require.Len(t, data, 64+48)
	assert.Equal(t, gpu.Bytes(fx.file.Current().World[b.Node]), data[:64])
	assert.Equal(t, gpu.Bytes(mgl32.Vec4{1, 1, 1, 0.5}), data[80:96])
	assert.Equal(t, fx.binder.PerFrameConstants(), b.PerFrame)
}

func TestBuildListsSkinnedGetsJointMatrices(t *testing.T) {
	fx := newFixture(t)
	p, err := pass.NewPBRPass(fx.device, fx.binder, fx.pbrOptions())
	require.NoError(t, err)

	solid, _ := p.BuildLists(camera)
	require.Len(t, solid, 1)
	assert.Equal(t, nodeSkinned, solid[0].Node)
	assert.Equal(t, fx.binder.SkinningMatricesBuffer(0), solid[0].Skinning)
	assert.NotZero(t, solid[0].Skinning)
}

func drawOps(cl *record.CommandList) []string {
	var out []string
	for _, d := range cl.Draws() {
		if d[0].Op == record.OpSetDescriptorPile {
			d = d[1:]
		}
		out = append(out, record.Ops(d))
	}
	return out
}

func TestPBRDrawBindingOrder(t *testing.T) {
	fx := newFixture(t, placed{meshSolid, mgl32.Vec3{0, 0, -3}})
	p, err := pass.NewPBRPass(fx.device, fx.binder, fx.pbrOptions())
	require.NoError(t, err)
	p.BuildLists(camera)

	cl := &record.CommandList{}
	const atlas gpu.DescriptorHandle = 77
	p.Draw(cl, atlas)

	require.NotEmpty(t, cl.Commands)
	assert.Equal(t, record.OpSetDescriptorPile, cl.Commands[0].Op)

	ops := drawOps(cl)
	require.Len(t, ops, 4)
	assert.Contains(t, ops, "SetIndexBuffer SetVertexBuffers SetRootSignature "+
		"SetRootConstantBuffer SetRootDescriptorTable SetRootDescriptorTable SetRootConstantBuffer "+
		"SetPipeline DrawIndexed")
	assert.Contains(t, ops, "SetIndexBuffer SetVertexBuffers SetRootSignature "+
		"SetRootConstantBuffer SetRootDescriptorTable SetRootConstantBuffer SetRootConstantBuffer "+
		"SetPipeline DrawIndexed")

	for _, d := range cl.Draws() {
		for _, c := range d {
			if c.Op == record.OpSetRootDescriptorTable && c.Index == 2 {
				assert.Equal(t, atlas, c.Handle)
			}
			if c.Op == record.OpDrawIndexed {
				assert.Equal(t, 3, c.Index)
			}
		}
	}
}

func TestPBRDrawWithoutShadowAtlasKeepsParameterIndices(t *testing.T) {
	fx := newFixture(t, placed{meshSolid, mgl32.Vec3{0, 0, -3}})
	p, err := pass.NewPBRPass(fx.device, fx.binder, fx.pbrOptions())
	require.NoError(t, err)
	p.BuildLists(camera)

	cl := &record.CommandList{}
	p.Draw(cl, 0)

	textured := 0
	for _, d := range cl.Draws() {
		var tables, buffers []int
		for _, c := range d {
			switch c.Op {
			case record.OpSetRootDescriptorTable:
				tables = append(tables, c.Index)
			case record.OpSetRootConstantBuffer:
				buffers = append(buffers, c.Index)
			}
		}
		if len(tables) == 0 {
			// Skinned: per frame, per object after the shadow slot, joints.
			assert.Equal(t, []int{0, 2, 3}, buffers)
			continue
		}
		textured++
		assert.Equal(t, []int{1}, tables)
		assert.Equal(t, []int{0, 3}, buffers)
	}
	assert.Equal(t, 3, textured)
}

func TestPBRDrawEmptyListsRecordsNothing(t *testing.T) {
	fx := newFixture(t)
	p, err := pass.NewPBRPass(fx.device, fx.binder, fx.pbrOptions())
	require.NoError(t, err)

	cl := &record.CommandList{}
	p.Draw(cl, 0)
	assert.Empty(t, cl.Commands)

	p.BuildLists(mgl32.Translate3D(1000, 0, 0).Mul4(camera))
	p.Draw(cl, 0)
	assert.Empty(t, cl.Commands)
}

func TestMissingPermutationIsLoggedOnce(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	defer logger.Replace(zap.New(core))()

	cache := pass.NewPipelineCache("GLTFTestPass", record.NewDevice(), shader.NewFSStore(fstest.MapFS{}), "")
	defines := shader.Defines{"HAS_POSITION": "1"}

	for range 2 {
		_, _, hash, err := cache.Get(defines, gpu.RootSignatureDesc{}, gpu.PipelineDesc{})
		assert.ErrorIs(t, err, shader.ErrPermutationNotFound)
		assert.Equal(t, defines.Hash(), hash)
	}

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "#define HAS_POSITION 1\n", entry.ContextMap()["defines"])
	assert.Equal(t, "GLTFTestPass", entry.ContextMap()["pass"])
	assert.Equal(t, []uint32{defines.Hash()}, cache.Missing())
	assert.Zero(t, cache.Len())
}

func TestNewPBRPassFailsWithoutBytecode(t *testing.T) {
	fx := newFixture(t)
	opts := fx.pbrOptions()
	opts.Store = shader.NewFSStore(fstest.MapFS{})

	_, err := pass.NewPBRPass(fx.device, fx.binder, opts)
	assert.ErrorIs(t, err, shader.ErrPermutationNotFound)
}

func TestPipelineCacheLoadsBytecode(t *testing.T) {
	defines := shader.Defines{"A": "1"}
	hash := defines.Hash()
	store := shader.NewFSStore(fstest.MapFS{
		shader.PermutationName("P", shader.Vertex, hash, ".spv"): {Data: []byte("vs")},
		shader.PermutationName("P", shader.Pixel, hash, ".spv"):  {Data: []byte("ps")},
	})
	cache := pass.NewPipelineCache("P", record.NewDevice(), store, ".spv")

	pipeline, rs, _, err := cache.Get(defines, gpu.RootSignatureDesc{Name: "rs"}, gpu.PipelineDesc{})
	require.NoError(t, err)
	assert.Equal(t, []byte("vs"), pipeline.Desc().VS)
	assert.Equal(t, []byte("ps"), pipeline.Desc().PS)
	assert.Same(t, rs, pipeline.Desc().RootSignature)
	assert.Equal(t, "rs", rs.Desc().Name)

	again, _, _, err := cache.Get(shader.Defines{"A": "1"}, gpu.RootSignatureDesc{}, gpu.PipelineDesc{})
	require.NoError(t, err)
	assert.Same(t, pipeline, again)
	assert.Equal(t, 1, cache.Hits())
}
