// Package camera provides the viewer's orbit camera.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	Center mgl32.Vec3

	// Spherical coordinates
	Distance  float32 // Distance from center
	RotationX float32 // Pitch (vertical angle, radians)
	RotationY float32 // Yaw (horizontal angle, radians)

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32

	// Projection
	YFov  float32
	ZNear float32
	ZFar  float32
}

// NewOrbitCamera creates a new orbit camera with defaults sized for scenes
// in meters.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        5.0,
		RotationX:       0.3,
		RotationY:       0.0,
		MinDistance:     0.05,
		MaxDistance:     1000.0,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		YFov:            mgl32.DegToRad(45),
		ZNear:           0.05,
		ZFar:            500.0,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	x := c.Distance * float32(math.Cos(float64(c.RotationX))*math.Sin(float64(c.RotationY)))
	y := c.Distance * float32(math.Sin(float64(c.RotationX)))
	z := c.Distance * float32(math.Cos(float64(c.RotationX))*math.Cos(float64(c.RotationY)))
	return c.Center.Add(mgl32.Vec3{x, y, z})
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Center, mgl32.Vec3{0, 1, 0})
}

// Projection returns the perspective projection for aspect. Inverse depth
// swaps the clip planes so the near plane maps to 1.
func (c *OrbitCamera) Projection(aspect float32, inverseDepth bool) mgl32.Mat4 {
	return Perspective(c.YFov, aspect, c.ZNear, c.ZFar, inverseDepth)
}

// Perspective is mgl32.Perspective with optional inverse depth.
func Perspective(yFov, aspect, near, far float32, inverseDepth bool) mgl32.Mat4 {
	if inverseDepth {
		near, far = far, near
	}
	return mgl32.Perspective(yFov, aspect, near, far)
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX += deltaY * c.DragSensitivity
	c.RotationX = mgl32.Clamp(c.RotationX, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.Distance = mgl32.Clamp(c.Distance, c.MinDistance, c.MaxDistance)
}

// HandleMovement pans the camera center point based on keyboard input.
func (c *OrbitCamera) HandleMovement(forward, right, up float32) {
	// Speed scales with distance for consistent feel
	speed := c.Distance * 0.01

	dirX := float32(math.Sin(float64(c.RotationY)))
	dirZ := float32(math.Cos(float64(c.RotationY)))
	rightX := float32(math.Cos(float64(c.RotationY)))
	rightZ := float32(-math.Sin(float64(c.RotationY)))

	// Negate forward so W moves "into" the scene
	c.Center[0] += (-dirX*forward + rightX*right) * speed
	c.Center[2] += (-dirZ*forward + rightZ*right) * speed
	c.Center[1] += up * speed
}

// FitToBounds centers the camera on a bounding box and backs off until
// the whole box fits the vertical field of view.
func (c *OrbitCamera) FitToBounds(lo, hi mgl32.Vec3) {
	c.Center = lo.Add(hi).Mul(0.5)
	radius := hi.Sub(lo).Len() / 2
	if radius <= 0 {
		radius = 1
	}

	c.Distance = radius / float32(math.Sin(float64(c.YFov)/2))
	c.MaxDistance = max(c.MaxDistance, c.Distance*4)
	c.MinDistance = min(c.MinDistance, radius*0.01)
	c.ZNear = max(radius*0.01, 0.001)
	c.ZFar = c.Distance + radius*4

	c.RotationX = 0.3
	c.RotationY = 0.0
}
