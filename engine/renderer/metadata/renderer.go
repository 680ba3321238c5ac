package metadata

import "github.com/google/uuid"

/** @brief Size of the per-draw push constant block: world-view and projection matrices. */
const PushConstantSize = 128

/** @brief Uniform buffer offsets are aligned to this many bytes. */
const UniformAlignment = 256

/**
 * @brief Identifies a physical device and driver build. Pipeline cache
 * blobs are only valid for the identity that produced them.
 */
type DeviceIdentity struct {
	ID       uuid.UUID
	Name     string
	VendorID uint32
	DeviceID uint32
	Driver   uint32
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type ShaderModuleDesc struct {
	Stage ShaderStage
	Code  []uint32
}

/**
 * @brief Everything the backend needs to build one graphics pipeline.
 * Fixed state not listed here is constant: front face clockwise, depth bias
 * enabled, alpha blending src-alpha/one-minus-src-alpha, depth test and write
 * with less-or-equal, one colour attachment, and dynamic viewport, scissor
 * and depth bias.
 */
type GraphicsPipelineDesc struct {
	Layout         PipelineLayoutHandle
	VertexModule   ShaderModuleHandle
	VertexEntry    string
	FragmentModule ShaderModuleHandle
	FragmentEntry  string
	Topology       Topology
	VertexLayout   VertexLayout
	CullMode       CullMode
	FillMode       FillMode
	// Constant data and its map entries, applied to both stages.
	Specialization        []byte
	SpecializationEntries []SpecializationMapEntry
}

/** @brief Buffer usage flags. */
type BufferUsage uint32

const (
	BufferUsageVertex      BufferUsage = 0x01
	BufferUsageIndex       BufferUsage = 0x02
	BufferUsageUniform     BufferUsage = 0x04
	BufferUsageTransferSrc BufferUsage = 0x08
	BufferUsageTransferDst BufferUsage = 0x10
)

/** @brief Memory property flags. */
type MemoryProperty uint32

const (
	MemoryDeviceLocal  MemoryProperty = 0x01
	MemoryHostVisible  MemoryProperty = 0x02
	MemoryHostCoherent MemoryProperty = 0x04
)

type BufferDesc struct {
	Size   uint64
	Usage  BufferUsage
	Memory MemoryProperty
}

/** @brief A single descriptor update. */
type DescriptorWrite struct {
	Binding      uint32
	ArrayElement uint32
	Kind         DescriptorKind
	Buffer       BufferHandle
	Offset       uint64
	Range        uint64
	Image        ImageHandle
	Sampler      SamplerHandle
}

/**
 * @brief Attachment clear requested for the next render pass. Without
 * Clear the pass keeps the previous contents.
 */
type ClearValues struct {
	Clear   bool
	Color   [4]float32
	Depth   float32
	Stencil uint32
}
