package scene

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera defaults applied when the document leaves them out.
const (
	DefaultYFov  = 0.1
	DefaultZNear = 0.1
	DefaultZFar  = 100.0
)

// CameraView is a glTF camera evaluated against the current snapshot.
type CameraView struct {
	View  mgl32.Mat4
	Eye   mgl32.Vec3
	Yaw   float32
	Pitch float32
	YFov  float32
	ZNear float32
	ZFar  float32
}

// Projection returns the perspective projection for the given aspect ratio.
func (c CameraView) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(c.YFov, aspect, c.ZNear, c.ZFar)
}

// Camera evaluates camera index against the current world matrices.
func (f *File) Camera(index int) (CameraView, error) {
	if index < 0 || index >= len(f.Cameras) {
		return CameraView{}, fmt.Errorf("%w: %d", ErrCameraIndex, index)
	}
	cam := f.Cameras[index]
	if cam.Node < 0 || cam.Node >= len(f.Nodes) {
		return CameraView{}, fmt.Errorf("%w: camera %d is not attached to a node", ErrCameraIndex, index)
	}

	world := f.Current().World[cam.Node]
	z := world.Col(2).Vec3()
	horiz := float32(math.Hypot(float64(z[0]), float64(z[2])))
	return CameraView{
		View:  world.Inv(),
		Eye:   world.Col(3).Vec3(),
		Yaw:   float32(math.Atan2(float64(z[0]), float64(z[2]))),
		Pitch: float32(math.Atan2(float64(z[1]), float64(horiz))),
		YFov:  cam.YFov,
		ZNear: cam.ZNear,
		ZFar:  cam.ZFar,
	}, nil
}
