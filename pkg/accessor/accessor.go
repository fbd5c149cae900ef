// Package accessor provides typed, strided views over glTF buffer bytes.
//
// An Accessor never owns its bytes. The slice it holds is borrowed from the
// document that loaded it and stays valid for as long as that document does.
package accessor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Errors returned when building an accessor.
var (
	ErrEmpty       = errors.New("accessor has no elements")
	ErrOutOfBounds = errors.New("accessor exceeds its buffer")
	ErrBadLayout   = errors.New("accessor layout is invalid")
)

// ComponentType is the glTF component type code.
type ComponentType uint32

// glTF component types.
const (
	Byte          ComponentType = 5120
	UnsignedByte  ComponentType = 5121
	Short         ComponentType = 5122
	UnsignedShort ComponentType = 5123
	UnsignedInt   ComponentType = 5125
	Float         ComponentType = 5126
)

// Size returns the byte size of one component.
func (c ComponentType) Size() int {
	switch c {
	case Byte, UnsignedByte:
		return 1
	case Short, UnsignedShort:
		return 2
	case UnsignedInt, Float:
		return 4
	default:
		return 0
	}
}

func (c ComponentType) String() string {
	switch c {
	case Byte:
		return "BYTE"
	case UnsignedByte:
		return "UNSIGNED_BYTE"
	case Short:
		return "SHORT"
	case UnsignedShort:
		return "UNSIGNED_SHORT"
	case UnsignedInt:
		return "UNSIGNED_INT"
	case Float:
		return "FLOAT"
	default:
		return fmt.Sprintf("ComponentType(%d)", uint32(c))
	}
}

// Accessor is a read-only view of Count elements, each Dimension components
// wide, laid out every Stride bytes in Data.
type Accessor struct {
	Data          []byte
	Count         int
	Stride        int
	Dimension     int
	ComponentType ComponentType
	Normalized    bool
	Min           [4]float32
	Max           [4]float32
}

// New validates the layout and returns a view over data. A zero stride means
// the elements are tightly packed.
func New(data []byte, count, dimension int, ct ComponentType, stride int) (Accessor, error) {
	if count <= 0 {
		return Accessor{}, ErrEmpty
	}
	compSize := ct.Size()
	if compSize == 0 || dimension <= 0 {
		return Accessor{}, fmt.Errorf("%w: %s x %d", ErrBadLayout, ct, dimension)
	}
	elem := compSize * dimension
	if stride == 0 {
		stride = elem
	}
	if stride < elem {
		return Accessor{}, fmt.Errorf("%w: stride %d < element size %d", ErrBadLayout, stride, elem)
	}
	need := (count-1)*stride + elem
	if need > len(data) {
		return Accessor{}, fmt.Errorf("%w: need %d bytes, have %d", ErrOutOfBounds, need, len(data))
	}
	return Accessor{
		Data:          data[:need],
		Count:         count,
		Stride:        stride,
		Dimension:     dimension,
		ComponentType: ct,
	}, nil
}

// ElementSize returns the packed size of one element in bytes.
func (a Accessor) ElementSize() int {
	return a.ComponentType.Size() * a.Dimension
}

// Packed reports whether elements are contiguous without padding.
func (a Accessor) Packed() bool {
	return a.Stride == a.ElementSize()
}

// Get returns the bytes of element i. Indices past the end clamp to the last
// element.
func (a Accessor) Get(i int) []byte {
	if a.Count <= 0 {
		panic("accessor: Get on empty accessor")
	}
	if i >= a.Count {
		i = a.Count - 1
	}
	if i < 0 {
		i = 0
	}
	off := i * a.Stride
	return a.Data[off : off+a.ElementSize()]
}

// Float returns component c of element i as a float32. Integer components are
// converted, and normalized when the accessor is marked normalized.
func (a Accessor) Float(i, c int) float32 {
	b := a.Get(i)
	sz := a.ComponentType.Size()
	b = b[c*sz : (c+1)*sz]
	switch a.ComponentType {
	case Float:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case UnsignedInt:
		return float32(binary.LittleEndian.Uint32(b))
	case UnsignedShort:
		v := float32(binary.LittleEndian.Uint16(b))
		if a.Normalized {
			return v / 65535
		}
		return v
	case Short:
		v := float32(int16(binary.LittleEndian.Uint16(b)))
		if a.Normalized {
			return max(v/32767, -1)
		}
		return v
	case UnsignedByte:
		v := float32(b[0])
		if a.Normalized {
			return v / 255
		}
		return v
	case Byte:
		v := float32(int8(b[0]))
		if a.Normalized {
			return max(v/127, -1)
		}
		return v
	}
	return 0
}

// Vec3 reads element i as three floats.
func (a Accessor) Vec3(i int) mgl32.Vec3 {
	return mgl32.Vec3{a.Float(i, 0), a.Float(i, 1), a.Float(i, 2)}
}

// Vec4 reads element i as four floats.
func (a Accessor) Vec4(i int) mgl32.Vec4 {
	return mgl32.Vec4{a.Float(i, 0), a.Float(i, 1), a.Float(i, 2), a.Float(i, 3)}
}

// Quat reads element i as an (x, y, z, w) quaternion.
func (a Accessor) Quat(i int) mgl32.Quat {
	v := a.Vec4(i)
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
}

// Mat4 reads element i as a column-major 4x4 matrix.
func (a Accessor) Mat4(i int) mgl32.Mat4 {
	var m mgl32.Mat4
	for c := range m {
		m[c] = a.Float(i, c)
	}
	return m
}

// FindClosestFloatIndex returns the greatest index whose scalar value is
// <= v. Values at or past the last element return the last index and values
// before the first element return 0. The accessor must hold sorted scalars.
func (a Accessor) FindClosestFloatIndex(v float32) int {
	if a.Count <= 0 {
		panic("accessor: search on empty accessor")
	}
	i := sort.Search(a.Count, func(i int) bool {
		return a.Float(i, 0) > v
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// Bytes returns the elements tightly packed. When the view is already packed
// the borrowed slice is returned as is.
func (a Accessor) Bytes() []byte {
	elem := a.ElementSize()
	if a.Packed() {
		return a.Data[:a.Count*elem]
	}
	out := make([]byte, 0, a.Count*elem)
	for i := 0; i < a.Count; i++ {
		out = append(out, a.Get(i)...)
	}
	return out
}

// FromFloats builds a tightly packed float accessor owning a copy of vals.
// The number of values must be a non-zero multiple of dimension.
func FromFloats(dimension int, vals ...float32) (Accessor, error) {
	if dimension <= 0 || len(vals)%dimension != 0 {
		return Accessor{}, fmt.Errorf("%w: %d values for dimension %d", ErrBadLayout, len(vals), dimension)
	}
	data := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	a, err := New(data, len(vals)/dimension, dimension, Float, 0)
	if err != nil {
		return Accessor{}, err
	}
	for c := 0; c < dimension && c < 4; c++ {
		a.Min[c], a.Max[c] = vals[c], vals[c]
		for i := c; i < len(vals); i += dimension {
			a.Min[c] = min(a.Min[c], vals[i])
			a.Max[c] = max(a.Max[c], vals[i])
		}
	}
	return a, nil
}

// MustFromFloats is FromFloats that panics on a bad layout.
func MustFromFloats(dimension int, vals ...float32) Accessor {
	a, err := FromFloats(dimension, vals...)
	if err != nil {
		panic(err)
	}
	return a
}
