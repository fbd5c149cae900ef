// Package picking casts rays from the screen into a glTF scene.
package picking

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/engine/shadow"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3 // Normalized
}

// ScreenToRay converts pixel coordinates to a world-space ray starting at
// the near plane. invViewProj is the inverse of the camera view-projection.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj mgl32.Mat4, inverseDepth bool) Ray {
	ndcX := 2*screenX/viewportW - 1
	ndcY := 1 - 2*screenY/viewportH // Flip Y

	nearZ, farZ := float32(-1), float32(1)
	if inverseDepth {
		nearZ, farZ = farZ, nearZ
	}
	near := mgl32.TransformCoordinate(mgl32.Vec3{ndcX, ndcY, nearZ}, invViewProj)
	far := mgl32.TransformCoordinate(mgl32.Vec3{ndcX, ndcY, farZ}, invViewProj)

	dir := far.Sub(near)
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	return Ray{Origin: near, Direction: dir}
}

// IntersectAABB tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectAABB(box shadow.AABB) (t float32, hit bool) {
	tmin := float32(-math.MaxFloat32)
	tmax := float32(math.MaxFloat32)

	for axis := range 3 {
		if r.Direction[axis] == 0 {
			if r.Origin[axis] < box.Min[axis] || r.Origin[axis] > box.Max[axis] {
				return 0, false
			}
			continue
		}
		t1 := (box.Min[axis] - r.Origin[axis]) / r.Direction[axis]
		t2 := (box.Max[axis] - r.Origin[axis]) / r.Direction[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// Hit is the nearest mesh primitive along a ray.
type Hit struct {
	Node      int
	Primitive int
	Distance  float32
}

// PickNode returns the mesh node whose primitive bounds the ray enters
// first, using the current world matrices of file.
func PickNode(file *scene.File, r Ray) (Hit, bool) {
	world := file.Current().World
	best := Hit{Node: scene.None, Distance: float32(math.MaxFloat32)}
	for n := range file.Nodes {
		mesh := file.Mesh(file.Nodes[n].Mesh)
		if mesh == nil || n >= len(world) {
			continue
		}
		for i, prim := range mesh.Primitives {
			t, ok := r.IntersectAABB(shadow.BoxOf(world[n], prim.Center, prim.Extent))
			if ok && t < best.Distance {
				best = Hit{Node: n, Primitive: i, Distance: t}
			}
		}
	}
	return best, best.Node != scene.None
}
