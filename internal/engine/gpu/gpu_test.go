package gpu_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
)

func TestBytesLayout(t *testing.T) {
	// Lights pack into 16-byte rows after the matrix.
	assert.Len(t, gpu.Bytes(scene.ShaderLight{}), 128)
	assert.Len(t, gpu.Bytes(scene.PerFrame{}), 64+64+16+16+scene.MaxLights*128)

	b := gpu.Bytes(mgl32.Translate3D(1, 2, 3))
	assert.Len(t, b, 64)
	// Translation lives in the fourth column: floats 12..14.
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, b[48:52])
}

func TestBytesPanicsOnVariableSize(t *testing.T) {
	assert.Panics(t, func() { gpu.Bytes([]int{1}) })
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		f    gpu.Format
		want int
	}{
		{gpu.FormatR8Uint, 1},
		{gpu.FormatR16G16Float, 4},
		{gpu.FormatR32G32B32Float, 12},
		{gpu.FormatR16G16B16A16Unorm, 8},
		{gpu.FormatR32G32B32A32Float, 16},
		{gpu.FormatUnknown, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.f.Size(), "format %d", tt.f)
	}
}
