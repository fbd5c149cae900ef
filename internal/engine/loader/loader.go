// Package loader converts glTF 2.0 documents into scene files.
package loader

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/animation"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/logger"
	"github.com/Faultbox/gltf-frame/pkg/accessor"
)

// Errors returned while converting a document.
var (
	ErrUnsupportedVersion = errors.New("unsupported glTF version")
	ErrMalformed          = errors.New("malformed glTF document")
)

// LightsExtension is the extension name of punctual lights.
const LightsExtension = "KHR_lights_punctual"

var supported = mustConstraint("^2.0")

func mustConstraint(c string) *semver.Constraints {
	v, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return v
}

// Load reads a .gltf or .glb file with its buffers. Images referenced by
// URI are left for the resource binder to read.
func Load(path string) (*scene.File, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	file, err := FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	file.Path = path

	logger.Info("scene loaded",
		zap.String("path", path),
		zap.Int("nodes", len(file.Nodes)),
		zap.Int("meshes", len(file.Meshes)),
		zap.Int("animations", len(file.Animations)),
		zap.Int("lights", len(file.LightInstances)),
	)
	return file, nil
}

// FromDocument converts a parsed document whose buffers are loaded.
func FromDocument(doc *gltf.Document) (*scene.File, error) {
	if err := checkVersion(doc.Asset.Version); err != nil {
		return nil, err
	}

	c := converter{doc: doc, file: &scene.File{}}
	steps := []struct {
		name string
		run  func() error
	}{
		{"accessors", c.accessors},
		{"nodes", c.nodes},
		{"scenes", c.scenes},
		{"meshes", c.meshes},
		{"skins", c.skins},
		{"materials", c.materials},
		{"images", c.images},
		{"cameras", c.cameras},
		{"animations", c.animations},
		{"lights", c.lights},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}

	c.file.InitTransformedData()
	return c.file, nil
}

func checkVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, version, err)
	}
	if !supported.Check(v) {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
	}
	return nil
}

type converter struct {
	doc  *gltf.Document
	file *scene.File
}

func (c *converter) accessors() error {
	c.file.Accessors = make([]accessor.Accessor, len(c.doc.Accessors))
	for i, a := range c.doc.Accessors {
		acc, err := c.accessor(a)
		if err != nil {
			return fmt.Errorf("accessor %d: %w", i, err)
		}
		c.file.Accessors[i] = acc
	}
	return nil
}

func (c *converter) accessor(a *gltf.Accessor) (accessor.Accessor, error) {
	ct, ok := componentTypes[a.ComponentType]
	if !ok {
		return accessor.Accessor{}, fmt.Errorf("%w: component type %v", ErrMalformed, a.ComponentType)
	}
	dim := dimension(a.Type)
	count := int(a.Count)
	var (
		data   []byte
		stride int
	)
	if a.BufferView == nil {
		// No view means all zeros.
		data = make([]byte, count*dim*ct.Size())
	} else {
		view, err := c.bufferView(*a.BufferView)
		if err != nil {
			return accessor.Accessor{}, err
		}
		offset := int(a.ByteOffset)
		if offset > len(view) {
			return accessor.Accessor{}, fmt.Errorf("%w: offset %d past view of %d bytes", ErrMalformed, offset, len(view))
		}
		data = view[offset:]
		stride = int(c.doc.BufferViews[*a.BufferView].ByteStride)
	}

	acc, err := accessor.New(data, count, dim, ct, stride)
	if err != nil {
		return accessor.Accessor{}, err
	}
	if a.Sparse != nil {
		if acc, err = c.applySparse(acc, a.Sparse); err != nil {
			return accessor.Accessor{}, fmt.Errorf("sparse: %w", err)
		}
	}
	acc.Normalized = a.Normalized
	for i := 0; i < len(a.Min) && i < len(acc.Min); i++ {
		acc.Min[i] = float32(a.Min[i])
	}
	for i := 0; i < len(a.Max) && i < len(acc.Max); i++ {
		acc.Max[i] = float32(a.Max[i])
	}
	return acc, nil
}

// applySparse returns a packed copy of base with the sparse elements
// substituted. The base buffer is never written.
func (c *converter) applySparse(base accessor.Accessor, sp *gltf.Sparse) (accessor.Accessor, error) {
	ict, ok := componentTypes[sp.Indices.ComponentType]
	if !ok || ict == accessor.Byte || ict == accessor.Short || ict == accessor.Float {
		return accessor.Accessor{}, fmt.Errorf("%w: index component type %v", ErrMalformed, sp.Indices.ComponentType)
	}
	if sp.Count <= 0 || sp.Count > base.Count {
		return accessor.Accessor{}, fmt.Errorf("%w: %d entries for %d elements", ErrMalformed, sp.Count, base.Count)
	}
	indices, err := c.sparseView(sp.Indices.BufferView, sp.Indices.ByteOffset, sp.Count, 1, ict)
	if err != nil {
		return accessor.Accessor{}, err
	}
	values, err := c.sparseView(sp.Values.BufferView, sp.Values.ByteOffset, sp.Count, base.Dimension, base.ComponentType)
	if err != nil {
		return accessor.Accessor{}, err
	}

	elem := base.ElementSize()
	out := make([]byte, base.Count*elem)
	copy(out, base.Bytes())
	for i := 0; i < sp.Count; i++ {
		idx := sparseIndex(indices.Get(i), ict)
		if idx >= base.Count {
			return accessor.Accessor{}, fmt.Errorf("%w: index %d of %d elements", ErrMalformed, idx, base.Count)
		}
		copy(out[idx*elem:(idx+1)*elem], values.Get(i))
	}
	return accessor.New(out, base.Count, base.Dimension, base.ComponentType, 0)
}

func (c *converter) sparseView(view, offset, count, dim int, ct accessor.ComponentType) (accessor.Accessor, error) {
	data, err := c.bufferView(view)
	if err != nil {
		return accessor.Accessor{}, err
	}
	if offset < 0 || offset > len(data) {
		return accessor.Accessor{}, fmt.Errorf("%w: offset %d past view of %d bytes", ErrMalformed, offset, len(data))
	}
	return accessor.New(data[offset:], count, dim, ct, 0)
}

func sparseIndex(b []byte, ct accessor.ComponentType) int {
	switch ct {
	case accessor.UnsignedByte:
		return int(b[0])
	case accessor.UnsignedShort:
		return int(binary.LittleEndian.Uint16(b))
	default:
		return int(binary.LittleEndian.Uint32(b))
	}
}

func (c *converter) bufferView(i int) ([]byte, error) {
	if i < 0 || i >= len(c.doc.BufferViews) {
		return nil, fmt.Errorf("%w: buffer view %d", ErrMalformed, i)
	}
	bv := c.doc.BufferViews[i]
	b := int(bv.Buffer)
	if b < 0 || b >= len(c.doc.Buffers) {
		return nil, fmt.Errorf("%w: buffer %d", ErrMalformed, b)
	}
	data := c.doc.Buffers[b].Data
	start, end := int(bv.ByteOffset), int(bv.ByteOffset)+int(bv.ByteLength)
	if start < 0 || end > len(data) {
		return nil, fmt.Errorf("%w: buffer view %d spans [%d, %d) of %d bytes", ErrMalformed, i, start, end, len(data))
	}
	return data[start:end], nil
}

var componentTypes = map[gltf.ComponentType]accessor.ComponentType{
	gltf.ComponentByte:   accessor.Byte,
	gltf.ComponentUbyte:  accessor.UnsignedByte,
	gltf.ComponentShort:  accessor.Short,
	gltf.ComponentUshort: accessor.UnsignedShort,
	gltf.ComponentUint:   accessor.UnsignedInt,
	gltf.ComponentFloat:  accessor.Float,
}

func dimension(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	default:
		return 1
	}
}

func (c *converter) nodes() error {
	n := len(c.doc.Nodes)
	c.file.Nodes = make([]scene.Node, n)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = scene.None
	}

	for i, gn := range c.doc.Nodes {
		node := scene.NewNode(gn.Name)
		node.Mesh = index(gn.Mesh)
		node.Skin = index(gn.Skin)
		node.Camera = index(gn.Camera)
		node.Transform = transform(gn)
		for _, child := range gn.Children {
			child := int(child)
			if child < 0 || child >= n {
				return fmt.Errorf("%w: node %d has child %d of %d nodes", ErrMalformed, i, child, n)
			}
			if parent[child] != scene.None {
				return fmt.Errorf("%w: node %d is a child of both %d and %d", ErrMalformed, child, parent[child], i)
			}
			if child == i {
				return fmt.Errorf("%w: node %d is its own child", ErrMalformed, i)
			}
			parent[child] = i
			node.Children = append(node.Children, child)
		}
		c.file.Nodes[i] = node
	}
	return checkAcyclic(parent)
}

// checkAcyclic follows every parent chain. With at most one parent per node
// a chain that reaches a node still being walked has closed a cycle.
func checkAcyclic(parent []int) error {
	const (
		unseen = iota
		walking
		done
	)
	state := make([]uint8, len(parent))
	for start := range parent {
		n := start
		for n != scene.None && state[n] == unseen {
			state[n] = walking
			n = parent[n]
		}
		if n != scene.None && state[n] == walking {
			return fmt.Errorf("%w: node %d is part of a cycle", ErrMalformed, n)
		}
		for m := start; m != scene.None && state[m] == walking; m = parent[m] {
			state[m] = done
		}
	}
	return nil
}

var identity = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// transform decomposes a node's matrix, or reads its TRS properties.
func transform(n *gltf.Node) animation.Transform {
	tr := animation.Identity()
	if m := n.MatrixOrDefault(); m != identity {
		var mat mgl32.Mat4
		for i, v := range m {
			mat[i] = float32(v)
		}
		tr.Translation = mat.Col(3).Vec3()
		tr.Rotation = mgl32.Ident4()
		for c := range 3 {
			col := mat.Col(c).Vec3()
			tr.Scale[c] = col.Len()
			if tr.Scale[c] != 0 {
				col = col.Mul(1 / tr.Scale[c])
			}
			tr.Rotation.SetCol(c, col.Vec4(0))
		}
		return tr
	}

	t, r, s := n.TranslationOrDefault(), n.RotationOrDefault(), n.ScaleOrDefault()
	tr.Translation = mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])}
	tr.Scale = mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])}
	q := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	tr.Rotation = q.Normalize().Mat4()
	return tr
}

func (c *converter) scenes() error {
	for i, gs := range c.doc.Scenes {
		s := scene.Scene{Name: gs.Name}
		for _, n := range gs.Nodes {
			if int(n) < 0 || int(n) >= len(c.file.Nodes) {
				return fmt.Errorf("%w: scene %d references node %d", ErrMalformed, i, n)
			}
			s.Nodes = append(s.Nodes, int(n))
		}
		c.file.Scenes = append(c.file.Scenes, s)
	}
	if len(c.file.Scenes) > 0 {
		return nil
	}

	// Without scenes every parentless node is a root.
	child := make([]bool, len(c.file.Nodes))
	for _, n := range c.file.Nodes {
		for _, ch := range n.Children {
			child[ch] = true
		}
	}
	s := scene.Scene{}
	for i, isChild := range child {
		if !isChild {
			s.Nodes = append(s.Nodes, i)
		}
	}
	c.file.Scenes = []scene.Scene{s}
	return nil
}

func (c *converter) meshes() error {
	warned := false
	c.file.Meshes = make([]scene.Mesh, len(c.doc.Meshes))
	for mi, gm := range c.doc.Meshes {
		mesh := scene.Mesh{Name: gm.Name, Primitives: make([]scene.Primitive, len(gm.Primitives))}
		for pi, gp := range gm.Primitives {
			if gp.Mode != gltf.PrimitiveTriangles && !warned {
				logger.Warn("only triangle lists are drawn", zap.Int("mesh", mi), zap.Int("primitive", pi))
				warned = true
			}
			prim := scene.Primitive{
				Attributes: make(map[string]int, len(gp.Attributes)),
				Indices:    index(gp.Indices),
				Material:   index(gp.Material),
			}
			for name, acc := range gp.Attributes {
				if int(acc) < 0 || int(acc) >= len(c.file.Accessors) {
					return fmt.Errorf("%w: mesh %d primitive %d %s uses accessor %d", ErrMalformed, mi, pi, name, acc)
				}
				prim.Attributes[name] = int(acc)
			}
			if prim.Indices >= len(c.file.Accessors) {
				return fmt.Errorf("%w: mesh %d primitive %d indices %d", ErrMalformed, mi, pi, prim.Indices)
			}
			pos, ok := prim.Attributes["POSITION"]
			if !ok {
				return fmt.Errorf("%w: mesh %d primitive %d has no POSITION", ErrMalformed, mi, pi)
			}
			prim.Center, prim.Extent = bounds(c.file.Accessors[pos])
			mesh.Primitives[pi] = prim
		}
		c.file.Meshes[mi] = mesh
	}
	return nil
}

// bounds returns center and half extent of a position accessor, from its
// declared min and max or else from its data.
func bounds(acc accessor.Accessor) (center, extent mgl32.Vec3) {
	lo := mgl32.Vec3{acc.Min[0], acc.Min[1], acc.Min[2]}
	hi := mgl32.Vec3{acc.Max[0], acc.Max[1], acc.Max[2]}
	if lo == hi && acc.Dimension == 3 && acc.ComponentType == accessor.Float {
		lo, hi = acc.Vec3(0), acc.Vec3(0)
		for i := 1; i < acc.Count; i++ {
			p := acc.Vec3(i)
			for c := range 3 {
				lo[c] = min(lo[c], p[c])
				hi[c] = max(hi[c], p[c])
			}
		}
	}
	center = lo.Add(hi).Mul(0.5)
	return center, hi.Sub(center)
}

func (c *converter) skins() error {
	for i, gs := range c.doc.Skins {
		skin := scene.Skin{Name: gs.Name, Skeleton: index(gs.Skeleton)}
		for _, j := range gs.Joints {
			j := int(j)
			if j < 0 || j >= len(c.file.Nodes) {
				return fmt.Errorf("%w: skin %d joint %d", ErrMalformed, i, j)
			}
			skin.Joints = append(skin.Joints, j)
			c.file.Nodes[j].IsJoint = true
		}
		if len(skin.Joints) == 0 {
			return fmt.Errorf("%w: skin %d has no joints", ErrMalformed, i)
		}

		if ibm := index(gs.InverseBindMatrices); ibm != scene.None {
			if ibm >= len(c.file.Accessors) {
				return fmt.Errorf("%w: skin %d inverse bind matrices %d", ErrMalformed, i, ibm)
			}
			acc := c.file.Accessors[ibm]
			if acc.Dimension != 16 || acc.Count < len(skin.Joints) {
				return fmt.Errorf("%w: skin %d needs %d matrices", ErrMalformed, i, len(skin.Joints))
			}
			skin.InverseBindMatrices = acc
		} else {
			ident := mgl32.Ident4()
			vals := make([]float32, 0, 16*len(skin.Joints))
			for range skin.Joints {
				vals = append(vals, ident[:]...)
			}
			skin.InverseBindMatrices = accessor.MustFromFloats(16, vals...)
		}
		c.file.Skins = append(c.file.Skins, skin)
	}
	return nil
}

func (c *converter) materials() error {
	for _, gm := range c.doc.Materials {
		m := scene.DefaultMaterial()
		m.Name = gm.Name
		m.DoubleSided = gm.DoubleSided
		m.AlphaCutoff = float32(gm.AlphaCutoffOrDefault())
		m.EmissiveFactor = mgl32.Vec3{float32(gm.EmissiveFactor[0]), float32(gm.EmissiveFactor[1]), float32(gm.EmissiveFactor[2])}
		switch gm.AlphaMode {
		case gltf.AlphaMask:
			m.AlphaMode = scene.AlphaMask
		case gltf.AlphaBlend:
			m.AlphaMode = scene.AlphaBlend
		default:
			m.AlphaMode = scene.AlphaOpaque
		}

		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			m.MetallicRoughness = true
			f := pbr.BaseColorFactorOrDefault()
			m.BaseColorFactor = mgl32.Vec4{float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3])}
			m.MetallicFactor = float32(pbr.MetallicFactorOrDefault())
			m.RoughnessFactor = float32(pbr.RoughnessFactorOrDefault())
			m.BaseColorTexture = textureInfo(pbr.BaseColorTexture)
			m.MetallicRoughnessTexture = textureInfo(pbr.MetallicRoughnessTexture)
		}
		if t := gm.NormalTexture; t != nil && t.Index != nil {
			m.NormalTexture = scene.TextureRef{Index: int(*t.Index), TexCoord: int(t.TexCoord)}
		}
		if t := gm.OcclusionTexture; t != nil && t.Index != nil {
			m.OcclusionTexture = scene.TextureRef{Index: int(*t.Index), TexCoord: int(t.TexCoord)}
		}
		m.EmissiveTexture = textureInfo(gm.EmissiveTexture)

		for slot, ref := range m.Textures() {
			if ref.Index >= len(c.doc.Textures) {
				return fmt.Errorf("%w: material %q %s uses texture %d", ErrMalformed, m.Name, slot, ref.Index)
			}
		}
		c.file.Materials = append(c.file.Materials, m)
	}
	return nil
}

func textureInfo(t *gltf.TextureInfo) scene.TextureRef {
	if t == nil {
		return scene.NoTexture
	}
	return scene.TextureRef{Index: int(t.Index), TexCoord: int(t.TexCoord)}
}

func (c *converter) images() error {
	for _, gt := range c.doc.Textures {
		c.file.Textures = append(c.file.Textures, scene.Texture{Name: gt.Name, Source: index(gt.Source)})
	}
	for i, gi := range c.doc.Images {
		img := scene.Image{Name: gi.Name, MimeType: gi.MimeType}
		switch {
		case gi.BufferView != nil:
			data, err := c.bufferView(int(*gi.BufferView))
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			img.Data = data
		case gi.IsEmbeddedResource():
			data, err := gi.MarshalData()
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			img.Data = data
		default:
			img.URI = gi.URI
		}
		c.file.Images = append(c.file.Images, img)
	}
	return nil
}

func (c *converter) cameras() error {
	for i, gc := range c.doc.Cameras {
		cam := scene.Camera{
			Name:  gc.Name,
			YFov:  scene.DefaultYFov,
			ZNear: scene.DefaultZNear,
			ZFar:  scene.DefaultZFar,
			Node:  scene.None,
		}
		if p := gc.Perspective; p != nil {
			cam.YFov = float32(p.Yfov)
			cam.ZNear = float32(p.Znear)
			if p.Zfar != nil {
				cam.ZFar = float32(*p.Zfar)
			}
		} else {
			logger.Warn("orthographic camera drawn with default perspective", zap.Int("camera", i))
		}
		c.file.Cameras = append(c.file.Cameras, cam)
	}
	for n, gn := range c.doc.Nodes {
		if cam := index(gn.Camera); cam >= 0 && cam < len(c.file.Cameras) {
			c.file.Cameras[cam].Node = n
		}
	}
	return nil
}

func (c *converter) animations() error {
	for ai, ga := range c.doc.Animations {
		anim := animation.New(ga.Name)
		for ci, ch := range ga.Channels {
			node := index(ch.Target.Node)
			if node == scene.None {
				continue
			}
			if node >= len(c.file.Nodes) {
				return fmt.Errorf("%w: animation %d channel %d targets node %d", ErrMalformed, ai, ci, node)
			}
			si := ch.Sampler
			if si < 0 || si >= len(ga.Samplers) {
				return fmt.Errorf("%w: animation %d channel %d sampler %d", ErrMalformed, ai, ci, si)
			}
			gs := ga.Samplers[si]
			if gs.Interpolation == gltf.InterpolationCubicSpline {
				logger.Warn("cubic spline channel skipped", zap.String("animation", ga.Name), zap.Int("channel", ci))
				continue
			}
			in, out := int(gs.Input), int(gs.Output)
			if in < 0 || in >= len(c.file.Accessors) || out < 0 || out >= len(c.file.Accessors) {
				return fmt.Errorf("%w: animation %d sampler %d accessors", ErrMalformed, ai, si)
			}
			s := &animation.Sampler{Time: c.file.Accessors[in], Value: c.file.Accessors[out]}
			if s.Time.Dimension != 1 || s.Time.ComponentType != accessor.Float || s.Value.Count < s.Time.Count {
				return fmt.Errorf("%w: animation %d sampler %d keyframes", ErrMalformed, ai, si)
			}

			target := anim.Channel(node)
			switch ch.Target.Path {
			case gltf.TRSTranslation:
				target.Translation = s
			case gltf.TRSRotation:
				target.Rotation = s
			case gltf.TRSScale:
				target.Scale = s
			default:
				logger.Debug("animation path ignored", zap.String("animation", ga.Name), zap.Int("channel", ci))
			}
		}
		anim.UpdateDuration()
		c.file.Animations = append(c.file.Animations, anim)
	}
	return nil
}

type lightsJSON struct {
	Lights []lightJSON `json:"lights"`
}

type lightJSON struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Color     *[3]float32 `json:"color"`
	Intensity *float32    `json:"intensity"`
	Range     *float32    `json:"range"`
	Spot      *struct {
		InnerConeAngle *float32 `json:"innerConeAngle"`
		OuterConeAngle *float32 `json:"outerConeAngle"`
	} `json:"spot"`
}

type nodeLightJSON struct {
	Light *int `json:"light"`
}

func (c *converter) lights() error {
	var doc lightsJSON
	if _, err := decodeExtension(c.doc.Extensions, &doc); err != nil {
		return err
	}
	for i, l := range doc.Lights {
		var t scene.LightType
		switch l.Type {
		case "directional":
			t = scene.LightDirectional
		case "point":
			t = scene.LightPoint
		case "spot":
			t = scene.LightSpot
		default:
			return fmt.Errorf("%w: light %d has type %q", ErrMalformed, i, l.Type)
		}
		light := scene.NewLight(t)
		light.Name = l.Name
		if l.Color != nil {
			light.Color = *l.Color
		}
		if l.Intensity != nil {
			light.Intensity = *l.Intensity
		}
		if l.Range != nil && *l.Range > 0 {
			light.Range = *l.Range
		}
		if l.Spot != nil {
			if l.Spot.InnerConeAngle != nil {
				light.InnerCone = *l.Spot.InnerConeAngle
			}
			if l.Spot.OuterConeAngle != nil {
				light.OuterCone = *l.Spot.OuterConeAngle
			}
		}
		c.file.Lights = append(c.file.Lights, light)
	}

	for n, gn := range c.doc.Nodes {
		var ref nodeLightJSON
		ok, err := decodeExtension(gn.Extensions, &ref)
		if err != nil {
			return fmt.Errorf("node %d: %w", n, err)
		}
		if !ok || ref.Light == nil {
			continue
		}
		if *ref.Light < 0 || *ref.Light >= len(c.file.Lights) {
			return fmt.Errorf("%w: node %d uses light %d", ErrMalformed, n, *ref.Light)
		}
		c.file.LightInstances = append(c.file.LightInstances, scene.LightInstance{Light: *ref.Light, Node: n})
	}
	return nil
}

// decodeExtension fills v from the punctual lights extension. The value is
// whatever the glTF decoder stored, raw JSON or a registered type, so it is
// re-encoded first.
func decodeExtension(ext gltf.Extensions, v any) (bool, error) {
	raw, ok := ext[LightsExtension]
	if !ok || raw == nil {
		return false, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", LightsExtension, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrMalformed, LightsExtension, err)
	}
	return true, nil
}

func index(p *int) int {
	if p == nil {
		return scene.None
	}
	return *p
}
