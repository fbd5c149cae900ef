package glbackend

import (
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
)

type textureFormat struct {
	internal int32
	format   uint32
	xtype    uint32
}

var textureFormats = map[gpu.Format]textureFormat{
	gpu.FormatR8G8B8A8Unorm:     {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},
	gpu.FormatR8G8B8A8UnormSRGB: {gl.SRGB8_ALPHA8, gl.RGBA, gl.UNSIGNED_BYTE},
	gpu.FormatR16G16Float:       {gl.RG16F, gl.RG, gl.HALF_FLOAT},
	gpu.FormatR16G16B16A16Float: {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT},
	gpu.FormatR11G11B10Float:    {gl.R11F_G11F_B10F, gl.RGB, gl.FLOAT},
	gpu.FormatR10G10B10A2Unorm:  {gl.RGB10_A2, gl.RGBA, gl.UNSIGNED_INT_2_10_10_10_REV},
	gpu.FormatR32G32B32A32Float: {gl.RGBA32F, gl.RGBA, gl.FLOAT},
	gpu.FormatD32Float:          {gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT},
}

type vertexFormat struct {
	size       int32
	xtype      uint32
	normalized bool
	integer    bool
}

var vertexFormats = map[gpu.Format]vertexFormat{
	gpu.FormatR8Sint:   {1, gl.BYTE, false, true},
	gpu.FormatR8Uint:   {1, gl.UNSIGNED_BYTE, false, true},
	gpu.FormatR8Snorm:  {1, gl.BYTE, true, false},
	gpu.FormatR8Unorm:  {1, gl.UNSIGNED_BYTE, true, false},
	gpu.FormatR16Sint:  {1, gl.SHORT, false, true},
	gpu.FormatR16Uint:  {1, gl.UNSIGNED_SHORT, false, true},
	gpu.FormatR16Snorm: {1, gl.SHORT, true, false},
	gpu.FormatR16Unorm: {1, gl.UNSIGNED_SHORT, true, false},
	gpu.FormatR32Uint:  {1, gl.UNSIGNED_INT, false, true},
	gpu.FormatR32Float: {1, gl.FLOAT, false, false},

	gpu.FormatR8G8Sint:    {2, gl.BYTE, false, true},
	gpu.FormatR8G8Uint:    {2, gl.UNSIGNED_BYTE, false, true},
	gpu.FormatR8G8Snorm:   {2, gl.BYTE, true, false},
	gpu.FormatR8G8Unorm:   {2, gl.UNSIGNED_BYTE, true, false},
	gpu.FormatR16G16Sint:  {2, gl.SHORT, false, true},
	gpu.FormatR16G16Uint:  {2, gl.UNSIGNED_SHORT, false, true},
	gpu.FormatR16G16Snorm: {2, gl.SHORT, true, false},
	gpu.FormatR16G16Unorm: {2, gl.UNSIGNED_SHORT, true, false},
	gpu.FormatR16G16Float: {2, gl.HALF_FLOAT, false, false},
	gpu.FormatR32G32Uint:  {2, gl.UNSIGNED_INT, false, true},
	gpu.FormatR32G32Float: {2, gl.FLOAT, false, false},

	gpu.FormatR32G32B32Uint:  {3, gl.UNSIGNED_INT, false, true},
	gpu.FormatR32G32B32Float: {3, gl.FLOAT, false, false},

	gpu.FormatR8G8B8A8Sint:      {4, gl.BYTE, false, true},
	gpu.FormatR8G8B8A8Uint:      {4, gl.UNSIGNED_BYTE, false, true},
	gpu.FormatR8G8B8A8Snorm:     {4, gl.BYTE, true, false},
	gpu.FormatR8G8B8A8Unorm:     {4, gl.UNSIGNED_BYTE, true, false},
	gpu.FormatR16G16B16A16Sint:  {4, gl.SHORT, false, true},
	gpu.FormatR16G16B16A16Uint:  {4, gl.UNSIGNED_SHORT, false, true},
	gpu.FormatR16G16B16A16Snorm: {4, gl.SHORT, true, false},
	gpu.FormatR16G16B16A16Unorm: {4, gl.UNSIGNED_SHORT, true, false},
	gpu.FormatR16G16B16A16Float: {4, gl.HALF_FLOAT, false, false},
	gpu.FormatR32G32B32A32Uint:  {4, gl.UNSIGNED_INT, false, true},
	gpu.FormatR32G32B32A32Float: {4, gl.FLOAT, false, false},
}

func indexType(f gpu.Format) (xtype uint32, size int) {
	switch f {
	case gpu.FormatR16Uint:
		return gl.UNSIGNED_SHORT, 2
	case gpu.FormatR8Uint:
		return gl.UNSIGNED_BYTE, 1
	default:
		return gl.UNSIGNED_INT, 4
	}
}

func compareFunc(c gpu.CompareFunc) uint32 {
	switch c {
	case gpu.CompareLess:
		return gl.LESS
	case gpu.CompareLessEqual:
		return gl.LEQUAL
	case gpu.CompareGreater:
		return gl.GREATER
	case gpu.CompareGreaterEqual:
		return gl.GEQUAL
	case gpu.CompareAlways:
		return gl.ALWAYS
	default:
		return gl.NEVER
	}
}

func encodeAddress(id uint32, offset int) gpu.Address {
	return gpu.Address(id)<<32 | gpu.Address(uint32(offset))
}

func decodeAddress(a gpu.Address) (id uint32, offset int) {
	return uint32(a >> 32), int(uint32(a))
}

// Handles pack the pile id above a 24-bit slot.
const handleSlotBits = 24

func encodeHandle(pile, slot int) gpu.DescriptorHandle {
	return gpu.DescriptorHandle(pile)<<handleSlotBits | gpu.DescriptorHandle(slot)
}

func decodeHandle(h gpu.DescriptorHandle) (pile, slot int) {
	return int(h >> handleSlotBits), int(h & (1<<handleSlotBits - 1))
}
