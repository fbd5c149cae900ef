// Package scene holds the glTF scene graph and evaluates its transforms,
// skins, lights and cameras every frame.
package scene

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/gltf-frame/internal/engine/animation"
	"github.com/Faultbox/gltf-frame/pkg/accessor"
)

// None marks an absent optional index (mesh, skin, camera, material...).
const None = -1

// Errors returned by scene operations.
var (
	ErrSceneIndex     = errors.New("scene index out of range")
	ErrNodeIndex      = errors.New("node index out of range")
	ErrAnimationIndex = errors.New("animation index out of range")
	ErrLightIndex     = errors.New("light instance out of range")
	ErrCameraIndex    = errors.New("camera index out of range")
)

// Node is one entry of the flat node array.
type Node struct {
	Name      string
	Transform animation.Transform
	Mesh      int
	Skin      int
	Camera    int
	Children  []int
	IsJoint   bool
}

// NewNode returns a node with an identity transform and no attachments.
func NewNode(name string) Node {
	return Node{
		Name:      name,
		Transform: animation.Identity(),
		Mesh:      None,
		Skin:      None,
		Camera:    None,
	}
}

// Scene lists the root nodes of one glTF scene.
type Scene struct {
	Name  string
	Nodes []int
}

// Primitive is a drawable piece of a mesh.
type Primitive struct {
	// Center and Extent bound the POSITION data: center ± extent.
	Center mgl32.Vec3
	Extent mgl32.Vec3

	Attributes map[string]int
	Indices    int
	Material   int
}

// Mesh is an ordered list of primitives.
type Mesh struct {
	Name       string
	Primitives []Primitive
}

// Skin binds joint nodes to their inverse bind matrices.
type Skin struct {
	Name                string
	InverseBindMatrices accessor.Accessor
	Skeleton            int
	Joints              []int
}

// AlphaMode selects how a material treats alpha.
type AlphaMode int

// Alpha modes.
const (
	AlphaOpaque AlphaMode = iota
	AlphaMask
	AlphaBlend
)

func (m AlphaMode) String() string {
	switch m {
	case AlphaMask:
		return "MASK"
	case AlphaBlend:
		return "BLEND"
	default:
		return "OPAQUE"
	}
}

// TextureRef points a material slot at a texture and its UV set.
type TextureRef struct {
	Index    int
	TexCoord int
}

// Valid reports whether the slot references a texture.
func (r TextureRef) Valid() bool {
	return r.Index >= 0
}

// NoTexture is an empty texture slot.
var NoTexture = TextureRef{Index: None}

// Material is the document-level description of a glTF material. Passes
// derive their own shading parameters from it.
type Material struct {
	Name           string
	AlphaMode      AlphaMode
	AlphaCutoff    float32
	DoubleSided    bool
	EmissiveFactor mgl32.Vec3

	MetallicRoughness bool
	BaseColorFactor   mgl32.Vec4
	MetallicFactor    float32
	RoughnessFactor   float32

	BaseColorTexture         TextureRef
	MetallicRoughnessTexture TextureRef
	NormalTexture            TextureRef
	OcclusionTexture         TextureRef
	EmissiveTexture          TextureRef
}

// DefaultMaterial returns the material used by primitives without one.
func DefaultMaterial() Material {
	return Material{
		AlphaCutoff:              0.5,
		BaseColorFactor:          mgl32.Vec4{1, 1, 1, 1},
		MetallicFactor:           1,
		RoughnessFactor:          1,
		BaseColorTexture:         NoTexture,
		MetallicRoughnessTexture: NoTexture,
		NormalTexture:            NoTexture,
		OcclusionTexture:         NoTexture,
		EmissiveTexture:          NoTexture,
	}
}

// Textures returns the referenced texture slots keyed by glTF slot name.
func (m *Material) Textures() map[string]TextureRef {
	out := make(map[string]TextureRef)
	add := func(name string, ref TextureRef) {
		if ref.Valid() {
			out[name] = ref
		}
	}
	add("normalTexture", m.NormalTexture)
	add("emissiveTexture", m.EmissiveTexture)
	add("occlusionTexture", m.OcclusionTexture)
	if m.MetallicRoughness {
		add("baseColorTexture", m.BaseColorTexture)
		add("metallicRoughnessTexture", m.MetallicRoughnessTexture)
	}
	return out
}

// Texture references the image it samples.
type Texture struct {
	Name   string
	Source int
}

// Image is encoded image data, either embedded or referenced by URI.
type Image struct {
	Name     string
	URI      string
	MimeType string
	Data     []byte
}

// Camera is a glTF perspective camera.
type Camera struct {
	Name  string
	YFov  float32
	ZNear float32
	ZFar  float32
	Node  int
}

// File is a loaded glTF document ready to be animated and drawn.
type File struct {
	Path string

	Scenes     []Scene
	Nodes      []Node
	Meshes     []Mesh
	Skins      []Skin
	Materials  []Material
	Textures   []Texture
	Images     []Image
	Cameras    []Camera
	Animations []*animation.Animation
	Accessors  []accessor.Accessor

	Lights         []Light
	LightInstances []LightInstance

	animated    []mgl32.Mat4
	transformed [2]Transformed
	current     int
	frames      int
	perFrame    PerFrame
}

// Accessor returns accessor i and whether it exists.
func (f *File) Accessor(i int) (accessor.Accessor, bool) {
	if i < 0 || i >= len(f.Accessors) {
		return accessor.Accessor{}, false
	}
	return f.Accessors[i], true
}

// Material returns the material for index i, or the default material when
// i is out of range.
func (f *File) Material(i int) Material {
	if i < 0 || i >= len(f.Materials) {
		return DefaultMaterial()
	}
	return f.Materials[i]
}

// Mesh returns mesh i, or nil for geometry-less references.
func (f *File) Mesh(i int) *Mesh {
	if i < 0 || i >= len(f.Meshes) {
		return nil
	}
	return &f.Meshes[i]
}

// FindMeshSkinID returns the skin of the first node that draws mesh, or
// None when no skinned node uses it.
func (f *File) FindMeshSkinID(mesh int) int {
	for i := range f.Nodes {
		if f.Nodes[i].Mesh == mesh && f.Nodes[i].Skin >= 0 {
			return f.Nodes[i].Skin
		}
	}
	return None
}

// InverseBindMatricesBufferSize returns the byte size of the joint matrix
// buffer for skin, or -1 for an unknown skin.
func (f *File) InverseBindMatricesBufferSize(skin int) int {
	if skin < 0 || skin >= len(f.Skins) {
		return -1
	}
	return len(f.Skins[skin].Joints) * 16 * 4
}
