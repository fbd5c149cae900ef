package gpu

// Format is a texel or vertex element format.
type Format int

// Formats.
const (
	FormatUnknown Format = iota

	FormatR8Sint
	FormatR8Uint
	FormatR8Snorm
	FormatR8Unorm
	FormatR16Sint
	FormatR16Uint
	FormatR16Snorm
	FormatR16Unorm
	FormatR32Uint
	FormatR32Float

	FormatR8G8Sint
	FormatR8G8Uint
	FormatR8G8Snorm
	FormatR8G8Unorm
	FormatR16G16Sint
	FormatR16G16Uint
	FormatR16G16Snorm
	FormatR16G16Unorm
	FormatR16G16Float
	FormatR32G32Uint
	FormatR32G32Float

	FormatR32G32B32Uint
	FormatR32G32B32Float

	FormatR8G8B8A8Sint
	FormatR8G8B8A8Uint
	FormatR8G8B8A8Snorm
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8UnormSRGB
	FormatR16G16B16A16Sint
	FormatR16G16B16A16Uint
	FormatR16G16B16A16Snorm
	FormatR16G16B16A16Unorm
	FormatR16G16B16A16Float
	FormatR32G32B32A32Uint
	FormatR32G32B32A32Float

	FormatR10G10B10A2Unorm
	FormatR11G11B10Float
	FormatD32Float
)

// Size returns the byte size of one element, or 0 for unknown formats.
func (f Format) Size() int {
	switch f {
	case FormatR8Sint, FormatR8Uint, FormatR8Snorm, FormatR8Unorm:
		return 1
	case FormatR16Sint, FormatR16Uint, FormatR16Snorm, FormatR16Unorm,
		FormatR8G8Sint, FormatR8G8Uint, FormatR8G8Snorm, FormatR8G8Unorm:
		return 2
	case FormatR32Uint, FormatR32Float,
		FormatR16G16Sint, FormatR16G16Uint, FormatR16G16Snorm, FormatR16G16Unorm, FormatR16G16Float,
		FormatR8G8B8A8Sint, FormatR8G8B8A8Uint, FormatR8G8B8A8Snorm, FormatR8G8B8A8Unorm, FormatR8G8B8A8UnormSRGB,
		FormatR10G10B10A2Unorm, FormatR11G11B10Float, FormatD32Float:
		return 4
	case FormatR32G32Uint, FormatR32G32Float,
		FormatR16G16B16A16Sint, FormatR16G16B16A16Uint, FormatR16G16B16A16Snorm, FormatR16G16B16A16Unorm, FormatR16G16B16A16Float:
		return 8
	case FormatR32G32B32Uint, FormatR32G32B32Float:
		return 12
	case FormatR32G32B32A32Uint, FormatR32G32B32A32Float:
		return 16
	default:
		return 0
	}
}

// ParameterKind is the kind of a root signature slot.
type ParameterKind int

// Root parameter kinds.
const (
	ParamConstantBuffer ParameterKind = iota
	ParamDescriptorTable
)

// Visibility restricts a root parameter to shader stages.
type Visibility int

// Shader stage visibility.
const (
	VisibilityAll Visibility = iota
	VisibilityVertex
	VisibilityPixel
)

// RootParameter is one slot of a root signature. Constant buffers bind
// register b<Register>; tables bind Count textures from t<Register>.
type RootParameter struct {
	Kind       ParameterKind
	Register   int
	Count      int
	Visibility Visibility
}

// Filter selects texture filtering.
type Filter int

// Sampler filters.
const (
	FilterAnisotropic Filter = iota
	FilterLinear
	FilterMinMagLinearMipPoint
	FilterComparisonLinear
)

// AddressMode selects texture coordinate wrapping.
type AddressMode int

// Sampler address modes.
const (
	AddressWrap AddressMode = iota
	AddressClamp
	AddressBorder
)

// SamplerDesc is a static sampler bound at register s<Register>.
type SamplerDesc struct {
	Register      int
	Filter        Filter
	Address       AddressMode
	MaxAnisotropy int
	Compare       CompareFunc
}

// RootSignatureDesc lists the parameters in binding order plus static
// samplers.
type RootSignatureDesc struct {
	Name       string
	Parameters []RootParameter
	Samplers   []SamplerDesc
}

// RootSignature is a created root signature.
type RootSignature interface {
	Desc() RootSignatureDesc
}

// InputElement describes one vertex attribute stream.
type InputElement struct {
	Semantic      string
	SemanticIndex int
	Format        Format
	Slot          int
}

// CullMode selects which triangles are discarded.
type CullMode int

// Cull modes.
const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// CompareFunc is a depth or sampler comparison.
type CompareFunc int

// Comparison functions.
const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareLessEqual
	CompareGreater
	CompareGreaterEqual
	CompareAlways
)

// PipelineDesc is everything needed to build a pipeline state object.
type PipelineDesc struct {
	Name          string
	InputLayout   []InputElement
	RootSignature RootSignature
	VS            []byte
	PS            []byte
	Cull          CullMode
	Blend         bool
	DepthWrite    bool
	DepthFunc     CompareFunc
	RenderTargets []Format
	DepthFormat   Format
	SampleCount   int
}

// Pipeline is a compiled pipeline state object.
type Pipeline interface {
	Desc() PipelineDesc
}
