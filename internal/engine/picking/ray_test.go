package picking

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/engine/shadow"
)

func TestScreenToRayCenter(t *testing.T) {
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	for _, inverse := range []bool{false, true} {
		near, far := float32(0.1), float32(100)
		if inverse {
			near, far = far, near
		}
		vp := mgl32.Perspective(mgl32.DegToRad(60), 1, near, far).Mul4(view)
		r := ScreenToRay(50, 50, 100, 100, vp.Inv(), inverse)
		assert.InDelta(t, 4.9, r.Origin[2], 1e-3)
		assert.InDeltaSlice(t, []float32{0, 0, -1}, r.Direction[:], 1e-4)
	}
}

func TestIntersectAABB(t *testing.T) {
	box := shadow.AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}

	d, ok := Ray{Origin: mgl32.Vec3{0, 0, 5}, Direction: mgl32.Vec3{0, 0, -1}}.IntersectAABB(box)
	assert.True(t, ok)
	assert.InDelta(t, 4, d, 1e-6)

	d, ok = Ray{Direction: mgl32.Vec3{1, 0, 0}}.IntersectAABB(box)
	assert.True(t, ok, "inside the box")
	assert.InDelta(t, 1, d, 1e-6)

	_, ok = Ray{Origin: mgl32.Vec3{0, 0, 5}, Direction: mgl32.Vec3{0, 0, 1}}.IntersectAABB(box)
	assert.False(t, ok, "box behind the ray")

	_, ok = Ray{Origin: mgl32.Vec3{3, 0, 5}, Direction: mgl32.Vec3{0, 0, -1}}.IntersectAABB(box)
	assert.False(t, ok, "parallel miss")
}

func TestPickNodeNearest(t *testing.T) {
	f := &scene.File{
		Meshes: []scene.Mesh{{Primitives: []scene.Primitive{{Extent: mgl32.Vec3{1, 1, 1}}}}},
	}
	for _, z := range []float32{-10, -4, 3} {
		n := scene.NewNode("")
		n.Mesh = 0
		n.Transform.Translation = mgl32.Vec3{0, 0, z}
		f.AddNode(n)
	}
	require.NoError(t, f.TransformScene(0, mgl32.Ident4()))

	hit, ok := PickNode(f, Ray{Direction: mgl32.Vec3{0, 0, -1}})
	require.True(t, ok)
	assert.Equal(t, 1, hit.Node)
	assert.InDelta(t, 3, hit.Distance, 1e-5)

	_, ok = PickNode(f, Ray{Origin: mgl32.Vec3{5, 0, 0}, Direction: mgl32.Vec3{0, 0, -1}})
	assert.False(t, ok)
}
