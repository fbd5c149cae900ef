// Package lighting places fallback lights in scenes that bring none.
package lighting

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/gltf-frame/internal/engine/animation"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
)

// SunDirection converts longitude and latitude in degrees to the unit
// vector pointing towards the sun. Longitude turns around +Y starting at
// +Z; latitude is the elevation above the horizon.
func SunDirection(longitude, latitude float32) mgl32.Vec3 {
	lon := float64(mgl32.DegToRad(longitude))
	lat := float64(mgl32.DegToRad(latitude))
	return mgl32.Vec3{
		float32(math.Cos(lat) * math.Sin(lon)),
		float32(math.Sin(lat)),
		float32(math.Cos(lat) * math.Cos(lon)),
	}
}

// SunTransform places a light distance units from target towards the sun,
// with its -Z axis, the direction light travels, facing target.
func SunTransform(toSun mgl32.Vec3, target mgl32.Vec3, distance float32) animation.Transform {
	toSun = toSun.Normalize()
	tr := animation.Identity()
	tr.Translation = target.Add(toSun.Mul(distance))
	tr.Rotation = mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, toSun.Mul(-1)).Mat4()
	return tr
}

// AddSun adds a white directional light shining from longitude, latitude
// onto target and returns its light instance.
func AddSun(file *scene.File, longitude, latitude float32, target mgl32.Vec3, distance float32) int {
	node := scene.NewNode("sun")
	node.Transform = SunTransform(SunDirection(longitude, latitude), target, distance)
	light := scene.NewLight(scene.LightDirectional)
	light.Name = "sun"
	return file.AddLight(node, light)
}
