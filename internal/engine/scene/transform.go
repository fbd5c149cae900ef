package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/gltf-frame/internal/engine/animation"
)

// Transformed is one frame's snapshot of world matrices and per-skin joint
// matrices.
type Transformed struct {
	World []mgl32.Mat4
	Skins [][]mgl32.Mat4
}

func (t *Transformed) resize(f *File) {
	for len(t.World) < len(f.Nodes) {
		t.World = append(t.World, mgl32.Ident4())
	}
	t.World = t.World[:len(f.Nodes)]

	if len(t.Skins) != len(f.Skins) {
		t.Skins = make([][]mgl32.Mat4, len(f.Skins))
	}
	for i := range f.Skins {
		if len(t.Skins[i]) != len(f.Skins[i].Joints) {
			t.Skins[i] = make([]mgl32.Mat4, len(f.Skins[i].Joints))
			for j := range t.Skins[i] {
				t.Skins[i][j] = mgl32.Ident4()
			}
		}
	}
}

func (t *Transformed) copyFrom(src *Transformed) {
	copy(t.World, src.World)
	for i := range src.Skins {
		copy(t.Skins[i], src.Skins[i])
	}
}

// InitTransformedData resets animated matrices to every node's rest
// transform and sizes both snapshots. Call it after the node list changes
// outside AddNode.
func (f *File) InitTransformedData() {
	f.animated = make([]mgl32.Mat4, len(f.Nodes))
	for i := range f.Nodes {
		f.animated[i] = f.Nodes[i].Transform.Matrix()
	}
	for i := range f.transformed {
		f.transformed[i] = Transformed{}
		f.transformed[i].resize(f)
	}
	f.current = 0
	f.frames = 0
	f.perFrame.IBLFactor = 1
	f.perFrame.EmissiveFactor = 1
}

// Current returns the snapshot written by the latest TransformScene.
func (f *File) Current() *Transformed {
	return &f.transformed[f.current]
}

// Previous returns the snapshot of the frame before Current.
func (f *File) Previous() *Transformed {
	return &f.transformed[f.current^1]
}

// AnimatedMatrix returns the local matrix node will use in the next
// TransformScene.
func (f *File) AnimatedMatrix(node int) mgl32.Mat4 {
	return f.animated[node]
}

// SetAnimationTime poses every node targeted by animation at time, which
// wraps around the animation's duration.
func (f *File) SetAnimationTime(anim int, time float32) error {
	if anim < 0 || anim >= len(f.Animations) {
		return fmt.Errorf("%w: %d", ErrAnimationIndex, anim)
	}
	a := f.Animations[anim]
	t := a.Wrap(time)
	for node, ch := range a.Channels {
		if node < 0 || node >= len(f.Nodes) {
			continue
		}
		f.animated[node] = ch.Evaluate(t, f.Nodes[node].Transform).Matrix()
	}
	return nil
}

// TransformScene swaps the snapshots and recomputes world matrices for
// every node reachable from the roots of scene, then the joint matrices of
// every skin. world places the whole scene.
func (f *File) TransformScene(scene int, world mgl32.Mat4) error {
	if scene < 0 || scene >= len(f.Scenes) {
		return fmt.Errorf("%w: %d", ErrSceneIndex, scene)
	}
	if len(f.animated) != len(f.Nodes) {
		f.InitTransformedData()
	}

	f.current ^= 1
	cur := &f.transformed[f.current]
	cur.resize(f)

	f.transformNodes(world, f.Scenes[scene].Nodes, cur.World)
	f.computeSkinning(cur)

	// The first frame has no history, so it becomes its own previous frame.
	if f.frames == 0 {
		prev := &f.transformed[f.current^1]
		prev.resize(f)
		prev.copyFrom(cur)
	}
	f.frames++
	return nil
}

func (f *File) transformNodes(parent mgl32.Mat4, nodes []int, out []mgl32.Mat4) {
	for _, n := range nodes {
		if n < 0 || n >= len(f.Nodes) {
			continue
		}
		m := parent.Mul4(f.animated[n])
		out[n] = m
		f.transformNodes(m, f.Nodes[n].Children, out)
	}
}

func (f *File) computeSkinning(t *Transformed) {
	for i := range f.Skins {
		skin := &f.Skins[i]
		joints := t.Skins[i]
		for j, node := range skin.Joints {
			joints[j] = t.World[node].Mul4(skin.InverseBindMatrices.Mat4(j))
		}
	}
}

// AddNode appends node as a root of the first scene and returns its index.
func (f *File) AddNode(node Node) int {
	if len(f.animated) != len(f.Nodes) {
		f.InitTransformedData()
	}
	f.Nodes = append(f.Nodes, node)
	idx := len(f.Nodes) - 1
	f.animated = append(f.animated, node.Transform.Matrix())
	for i := range f.transformed {
		f.transformed[i].resize(f)
	}
	if len(f.Scenes) == 0 {
		f.Scenes = append(f.Scenes, Scene{})
	}
	f.Scenes[0].Nodes = append(f.Scenes[0].Nodes, idx)
	return idx
}

// SetNodeTransform replaces the rest transform of node.
func (f *File) SetNodeTransform(node int, tr animation.Transform) error {
	if node < 0 || node >= len(f.Nodes) {
		return fmt.Errorf("%w: %d", ErrNodeIndex, node)
	}
	if len(f.animated) != len(f.Nodes) {
		f.InitTransformedData()
	}
	f.Nodes[node].Transform = tr
	f.animated[node] = tr.Matrix()
	return nil
}
