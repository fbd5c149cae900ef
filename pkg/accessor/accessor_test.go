package accessor

import (
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesLayout(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		count   int
		dim     int
		ct      ComponentType
		stride  int
		wantErr error
	}{
		{"empty", make([]byte, 16), 0, 1, Float, 0, ErrEmpty},
		{"short buffer", make([]byte, 8), 3, 1, Float, 0, ErrOutOfBounds},
		{"stride too small", make([]byte, 64), 2, 3, Float, 8, ErrBadLayout},
		{"unknown component", make([]byte, 64), 2, 3, ComponentType(1), 0, ErrBadLayout},
		{"packed", make([]byte, 24), 2, 3, Float, 0, nil},
		{"interleaved", make([]byte, 44), 2, 3, Float, 32, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.data, tt.count, tt.dim, tt.ct, tt.stride)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.count, a.Count)
			assert.GreaterOrEqual(t, a.Stride, a.ElementSize())
		})
	}
}

func TestGetClampsToLastElement(t *testing.T) {
	a := MustFromFloats(1, 10, 20, 30)

	assert.Equal(t, float32(30), a.Float(2, 0))
	assert.Equal(t, float32(30), a.Float(3, 0))
	assert.Equal(t, float32(30), a.Float(1000, 0))
	assert.Equal(t, a.Get(2), a.Get(99))
}

func TestGetPanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() { Accessor{}.Get(0) })
	assert.Panics(t, func() { Accessor{}.FindClosestFloatIndex(0) })
}

func TestFindClosestFloatIndex(t *testing.T) {
	times := MustFromFloats(1, 0, 1, 2, 3)

	tests := []struct {
		q    float32
		want int
	}{
		{0, 0},
		{0.5, 0},
		{1, 1},
		{1.99, 1},
		{2.5, 2},
		{3, 3},
		{10, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, times.FindClosestFloatIndex(tt.q), "query %v", tt.q)
	}
}

func TestFindClosestFloatIndexBracketsQuery(t *testing.T) {
	times := MustFromFloats(1, 0.1, 0.4, 0.45, 1.2, 3.3, 7.5, 8)

	for q := float32(0.1); q < 9; q += 0.05 {
		i := times.FindClosestFloatIndex(q)
		require.LessOrEqual(t, times.Float(i, 0), q)
		if i < times.Count-1 {
			require.Less(t, q, times.Float(i+1, 0))
		}
	}
}

func TestFindClosestFloatIndexBeforeFirstKey(t *testing.T) {
	times := MustFromFloats(1, 1, 2, 3)

	assert.Equal(t, 0, times.FindClosestFloatIndex(0.5))
	assert.Equal(t, 0, times.FindClosestFloatIndex(-100))
}

func TestFindClosestFloatIndexSingleKey(t *testing.T) {
	times := MustFromFloats(1, 4)

	assert.Equal(t, 0, times.FindClosestFloatIndex(0))
	assert.Equal(t, 0, times.FindClosestFloatIndex(4))
	assert.Equal(t, 0, times.FindClosestFloatIndex(5))
}

func TestNormalizedIntegers(t *testing.T) {
	data := []byte{0, 0, 255, 255, 0x00, 0x80}
	a, err := New(data, 3, 1, UnsignedShort, 0)
	require.NoError(t, err)
	a.Normalized = true

	assert.InDelta(t, 0, a.Float(0, 0), 1e-6)
	assert.InDelta(t, 1, a.Float(1, 0), 1e-6)
	assert.InDelta(t, 32768.0/65535.0, a.Float(2, 0), 1e-6)
}

func TestMat4ReadsColumnMajor(t *testing.T) {
	want := mgl32.Translate3D(1, 2, 3)
	a := MustFromFloats(16, want[:]...)

	assert.Equal(t, want, a.Mat4(0))
}

func TestBytesRepacksInterleaved(t *testing.T) {
	data := make([]byte, 0, 16)
	for _, v := range []uint16{1, 0xffff, 2, 0xffff, 3} {
		data = binary.LittleEndian.AppendUint16(data, v)
	}
	a, err := New(data, 3, 1, UnsignedShort, 4)
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0}, a.Bytes())
}

func TestFromFloatsBounds(t *testing.T) {
	a := MustFromFloats(3, -1, 2, 0, 4, -5, 1)

	assert.Equal(t, [4]float32{-1, -5, 0, 0}, a.Min)
	assert.Equal(t, [4]float32{4, 2, 1, 0}, a.Max)
	_, err := FromFloats(3, 1, 2)
	assert.ErrorIs(t, err, ErrBadLayout)
}
