// Package shadow computes light view-projection matrices and assigns
// shadow-map slots to lights.
package shadow

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Clip planes used for every shadow-casting light.
const (
	Near = 0.1
	Far  = 100.0
)

// DirectionalHalfSize is the half extent of the orthographic volume used
// for directional lights when no scene bounds are known.
const DirectionalHalfSize = 15.0

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Center returns the center point of the AABB.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Radius returns the distance from center to corner.
func (b AABB) Radius() float32 {
	return b.Max.Sub(b.Min).Mul(0.5).Len()
}

// Extend grows b to contain p.
func (b AABB) Extend(p mgl32.Vec3) AABB {
	for i := range 3 {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
	return b
}

// BoxOf returns the world space box around the local box center ± extent
// placed by m.
func BoxOf(m mgl32.Mat4, center, extent mgl32.Vec3) AABB {
	var box AABB
	for corner := range 8 {
		local := center
		for axis := range 3 {
			if corner&(1<<axis) != 0 {
				local[axis] += extent[axis]
			} else {
				local[axis] -= extent[axis]
			}
		}
		p := m.Mul4x1(local.Vec4(1)).Vec3()
		if corner == 0 {
			box = AABB{Min: p, Max: p}
			continue
		}
		box = box.Extend(p)
	}
	return box
}

// SpotViewProj returns the view-projection of a spot light whose world
// matrix is lightWorld. The frustum covers twice the outer cone angle.
func SpotViewProj(lightWorld mgl32.Mat4, outerCone float32) mgl32.Mat4 {
	proj := mgl32.Perspective(outerCone*2, 1, Near, Far)
	return proj.Mul4(lightWorld.Inv())
}

// DirectionalViewProj returns a fixed-size orthographic view-projection for
// a directional light placed by lightWorld.
func DirectionalViewProj(lightWorld mgl32.Mat4) mgl32.Mat4 {
	proj := mgl32.Ortho(-DirectionalHalfSize, DirectionalHalfSize, -DirectionalHalfSize, DirectionalHalfSize, Near, Far)
	return proj.Mul4(lightWorld.Inv())
}

// FitDirectional computes a view-projection for a light travelling along
// dir that encloses bounds entirely.
func FitDirectional(dir mgl32.Vec3, bounds AABB) mgl32.Mat4 {
	center := bounds.Center()
	radius := bounds.Radius()
	toLight := dir.Mul(-1).Normalize()

	// Far enough back to see the whole box.
	distance := radius * 2
	eye := center.Add(toLight.Mul(distance))

	up := mgl32.Vec3{0, 1, 0}
	if math.Abs(float64(toLight[1])) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(eye, center, up)

	pad := radius * 0.1
	half := radius + pad
	proj := mgl32.Ortho(-half, half, -half, half, Near, distance+radius+pad)
	return proj.Mul4(view)
}
