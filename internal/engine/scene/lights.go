package scene

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/animation"
	"github.com/Faultbox/gltf-frame/internal/engine/shadow"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// MaxLights is the number of lights the per-frame constants can hold.
const MaxLights = 80

// Light defaults from KHR_lights_punctual and the shading model.
const (
	DefaultRange     = 105.0
	DefaultIntensity = 1.0
	DefaultOuterCone = math.Pi / 4
	DefaultDepthBias = 0.0008
)

// LightType matches the light type codes read by the shaders.
type LightType uint32

// Light types.
const (
	LightDirectional LightType = iota
	LightPoint
	LightSpot
)

func (t LightType) String() string {
	switch t {
	case LightDirectional:
		return "directional"
	case LightPoint:
		return "point"
	case LightSpot:
		return "spot"
	default:
		return fmt.Sprintf("LightType(%d)", uint32(t))
	}
}

// Light is a light definition that any number of nodes can instance.
type Light struct {
	Name      string
	Type      LightType
	Color     mgl32.Vec3
	Range     float32
	Intensity float32
	InnerCone float32
	OuterCone float32
	DepthBias float32
}

// NewLight returns a white light of type t with default parameters.
func NewLight(t LightType) Light {
	return Light{
		Type:      t,
		Color:     mgl32.Vec3{1, 1, 1},
		Range:     DefaultRange,
		Intensity: DefaultIntensity,
		OuterCone: DefaultOuterCone,
		DepthBias: DefaultDepthBias,
	}
}

// LightInstance places a light at a node.
type LightInstance struct {
	Light int
	Node  int
}

// ShaderLight is the GPU layout of one light: four 16-byte rows after the
// view-projection matrix.
type ShaderLight struct {
	ViewProj       mgl32.Mat4
	Direction      [3]float32
	Range          float32
	Color          [3]float32
	Intensity      float32
	Position       [3]float32
	InnerConeCos   float32
	OuterConeCos   float32
	Type           uint32
	DepthBias      float32
	ShadowMapIndex uint32
}

// PerFrame is the GPU layout of the per-frame constants.
type PerFrame struct {
	CameraViewProj        mgl32.Mat4
	InverseCameraViewProj mgl32.Mat4
	CameraPos             [4]float32
	IBLFactor             float32
	EmissiveFactor        float32
	LODBias               float32
	LightCount            uint32
	Lights                [MaxLights]ShaderLight
}

// AddLight creates a node placed by node and instances light at it. It
// returns the light instance index.
func (f *File) AddLight(node Node, light Light) int {
	n := f.AddNode(node)
	f.Lights = append(f.Lights, light)
	f.LightInstances = append(f.LightInstances, LightInstance{Light: len(f.Lights) - 1, Node: n})
	return len(f.LightInstances) - 1
}

// UpdateLightInstanceNode moves the node carrying light instance to tr.
func (f *File) UpdateLightInstanceNode(instance int, tr animation.Transform) error {
	if instance < 0 || instance >= len(f.LightInstances) {
		return fmt.Errorf("%w: %d", ErrLightIndex, instance)
	}
	return f.SetNodeTransform(f.LightInstances[instance].Node, tr)
}

// PerFrame returns the per-frame constants built by the last
// SetPerFrameData call.
func (f *File) PerFrame() *PerFrame {
	return &f.perFrame
}

// SetPerFrameData rebuilds the per-frame constants from the camera and the
// current snapshot. Spot and directional lights receive shadow-map slots in
// instance order until maxShadowMaps are used.
func (f *File) SetPerFrameData(viewProj mgl32.Mat4, cameraPos mgl32.Vec3, maxShadowMaps int) *PerFrame {
	pf := &f.perFrame
	pf.CameraViewProj = viewProj
	pf.InverseCameraViewProj = viewProj.Inv()
	pf.CameraPos = [4]float32{cameraPos[0], cameraPos[1], cameraPos[2], 1}

	count := len(f.LightInstances)
	if count > MaxLights {
		logger.Warn("too many lights, extra instances ignored",
			zap.Int("instances", count),
			zap.Int("max", MaxLights),
		)
		count = MaxLights
	}
	pf.LightCount = uint32(count)

	world := f.Current().World
	slots := shadow.NewSlots(maxShadowMaps)
	for i := 0; i < count; i++ {
		inst := f.LightInstances[i]
		l := f.Lights[inst.Light]
		m := world[inst.Node]

		sl := &pf.Lights[i]
		sl.ViewProj = mgl32.Ident4()
		sl.ShadowMapIndex = shadow.NoSlot
		switch l.Type {
		case LightSpot:
			sl.ViewProj = shadow.SpotViewProj(m, l.OuterCone)
			sl.ShadowMapIndex = slots.Next()
		case LightDirectional:
			sl.ViewProj = shadow.DirectionalViewProj(m)
			sl.ShadowMapIndex = slots.Next()
		}
		sl.Direction = [3]float32(m.Col(2).Vec3())
		sl.Position = [3]float32(m.Col(3).Vec3())
		sl.Range = l.Range
		sl.Color = [3]float32(l.Color)
		sl.Intensity = l.Intensity
		sl.InnerConeCos = float32(math.Cos(float64(l.InnerCone)))
		sl.OuterConeCos = float32(math.Cos(float64(l.OuterCone)))
		sl.Type = uint32(l.Type)
		sl.DepthBias = l.DepthBias
	}
	return pf
}
