package metadata

// Backend object handles. Zero is never a live handle.
type (
	PipelineHandle            uint64
	PipelineLayoutHandle      uint64
	DescriptorSetLayoutHandle uint64
	DescriptorSetHandle       uint64
	SamplerHandle             uint64
	ShaderModuleHandle        uint64
	BufferHandle              uint64
	MemoryHandle              uint64
	ImageHandle               uint64
)

/** @brief An image together with the sampler it is read through. */
type ImageBinding struct {
	Image   ImageHandle
	Sampler SamplerHandle
}
