// Package animation evaluates glTF keyframe animations.
package animation

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/gltf-frame/pkg/accessor"
)

// Sampler pairs a sorted time accessor with its value accessor.
type Sampler struct {
	Time  accessor.Accessor
	Value accessor.Accessor
}

// SampleLinear finds the keyframes bracketing t and the interpolation
// fraction between them. The fraction is in [0, 1] and is exactly 0 when
// both keys are the same element.
func (s *Sampler) SampleLinear(t float32) (frac float32, curr, next int) {
	curr = s.Time.FindClosestFloatIndex(t)
	next = min(curr+1, s.Time.Count-1)
	if curr == next {
		return 0, curr, next
	}

	t0 := s.Time.Float(curr, 0)
	t1 := s.Time.Float(next, 0)
	if t1 <= t0 {
		return 0, curr, next
	}
	frac = (t - t0) / (t1 - t0)
	return mgl32.Clamp(frac, 0, 1), curr, next
}

// LastTime returns the time of the final keyframe.
func (s *Sampler) LastTime() float32 {
	return s.Time.Float(s.Time.Count-1, 0)
}

// Vec3 interpolates linearly between the bracketing vec3 keys.
func (s *Sampler) Vec3(t float32) mgl32.Vec3 {
	frac, curr, next := s.SampleLinear(t)
	a := s.Value.Vec3(curr)
	b := s.Value.Vec3(next)
	return a.Add(b.Sub(a).Mul(frac))
}

// Quat interpolates spherically between the bracketing rotation keys.
func (s *Sampler) Quat(t float32) mgl32.Quat {
	frac, curr, next := s.SampleLinear(t)
	a := s.Value.Quat(curr)
	if curr == next {
		return a.Normalize()
	}
	return mgl32.QuatSlerp(a.Normalize(), s.Value.Quat(next).Normalize(), frac)
}

// Channel holds the independently timed samplers driving one node. A nil
// sampler leaves that part of the node's rest transform untouched.
type Channel struct {
	Translation *Sampler
	Rotation    *Sampler
	Scale       *Sampler
}

// Animation maps target node indices to their channels.
type Animation struct {
	Name     string
	Duration float32
	Channels map[int]*Channel
}

// New returns an empty animation.
func New(name string) *Animation {
	return &Animation{Name: name, Channels: make(map[int]*Channel)}
}

// Channel returns the channel for node, creating it on first use.
func (a *Animation) Channel(node int) *Channel {
	ch, ok := a.Channels[node]
	if !ok {
		ch = &Channel{}
		a.Channels[node] = ch
	}
	return ch
}

// UpdateDuration extends the duration to cover every sampler's last key.
func (a *Animation) UpdateDuration() {
	for _, ch := range a.Channels {
		for _, s := range []*Sampler{ch.Translation, ch.Rotation, ch.Scale} {
			if s != nil && s.Time.Count > 0 {
				a.Duration = max(a.Duration, s.LastTime())
			}
		}
	}
}

// Wrap folds t into [0, Duration). A zero-length animation always
// evaluates at time 0.
func (a *Animation) Wrap(t float32) float32 {
	if a.Duration <= 0 {
		return 0
	}
	w := float32(math.Mod(float64(t), float64(a.Duration)))
	if w < 0 {
		w += a.Duration
	}
	return w
}

// Transform is a node's decomposed local transform. Rotation is kept as a
// matrix so nodes authored with a full matrix round-trip unchanged.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Mat4
	Scale       mgl32.Vec3
}

// Identity returns the rest transform of a node with no TRS data.
func Identity() Transform {
	return Transform{Rotation: mgl32.Ident4(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Evaluate samples ch at t, starting from rest for missing paths.
func (ch *Channel) Evaluate(t float32, rest Transform) Transform {
	out := rest
	if ch.Translation != nil {
		out.Translation = ch.Translation.Vec3(t)
	}
	if ch.Rotation != nil {
		out.Rotation = ch.Rotation.Quat(t).Mat4()
	}
	if ch.Scale != nil {
		out.Scale = ch.Scale.Vec3(t)
	}
	return out
}

// Matrix composes translation, rotation and scale so points are scaled
// first, then rotated, then translated.
func (tr Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(tr.Translation[0], tr.Translation[1], tr.Translation[2]).
		Mul4(tr.Rotation).
		Mul4(mgl32.Scale3D(tr.Scale[0], tr.Scale[1], tr.Scale[2]))
}
