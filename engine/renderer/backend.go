package renderer

import "github.com/spaghettifunk/ffbridge/engine/renderer/metadata"

// Backend is the boundary to the modern API. Create calls return an error
// and never a half-built object. Destroy calls take handles the backend
// issued and must be called exactly once per handle.
type Backend interface {
	DeviceIdentity() metadata.DeviceIdentity
	// PipelineCacheData returns the driver's pipeline cache contents for
	// persisting between runs.
	PipelineCacheData() ([]byte, error)

	CreateShaderModule(desc metadata.ShaderModuleDesc) (metadata.ShaderModuleHandle, error)
	DestroyShaderModule(h metadata.ShaderModuleHandle)
	CreateDescriptorSetLayout(bindings metadata.BindingTable) (metadata.DescriptorSetLayoutHandle, error)
	DestroyDescriptorSetLayout(h metadata.DescriptorSetLayoutHandle)
	CreatePipelineLayout(setLayout metadata.DescriptorSetLayoutHandle, push metadata.PushConstantRange) (metadata.PipelineLayoutHandle, error)
	DestroyPipelineLayout(h metadata.PipelineLayoutHandle)
	CreateGraphicsPipeline(desc *metadata.GraphicsPipelineDesc) (metadata.PipelineHandle, error)
	DestroyPipeline(h metadata.PipelineHandle)

	CreateSampler(desc metadata.SamplerDesc) (metadata.SamplerHandle, error)
	DestroySampler(h metadata.SamplerHandle)
	AllocateDescriptorSet(layout metadata.DescriptorSetLayoutHandle) (metadata.DescriptorSetHandle, error)
	UpdateDescriptorSet(set metadata.DescriptorSetHandle, writes []metadata.DescriptorWrite) error
	FreeDescriptorSet(set metadata.DescriptorSetHandle)

	CreateBuffer(desc metadata.BufferDesc) (metadata.BufferHandle, metadata.MemoryHandle, error)
	DestroyBuffer(h metadata.BufferHandle)
	FreeMemory(h metadata.MemoryHandle)
	// WriteBuffer copies data into host-visible memory.
	WriteBuffer(h metadata.BufferHandle, offset uint64, data []byte) error
	// CopyBuffer records one transfer, submits it and waits for completion.
	CopyBuffer(src, dst metadata.BufferHandle, size uint64) error

	CreateImage(desc metadata.ImageDesc) (metadata.ImageHandle, error)
	// UploadImage stages data, transitions the image and copies. It waits
	// for completion.
	UploadImage(h metadata.ImageHandle, data metadata.ImageData) error
	DestroyImage(h metadata.ImageHandle)

	// BeginCommands starts a command buffer inside the offscreen render
	// pass, cleared to clear.
	BeginCommands(clear metadata.ClearValues) (CommandBuffer, error)
	// Submit submits cb and waits on its fence. cb is ended first if the
	// caller has not called End.
	Submit(cb CommandBuffer) error

	WaitIdle() error
	Destroy()
}

// CommandBuffer records draw work. Recording never fails; errors surface
// from End or Submit.
type CommandBuffer interface {
	BindPipeline(p metadata.PipelineHandle)
	BindDescriptorSet(layout metadata.PipelineLayoutHandle, set metadata.DescriptorSetHandle)
	PushConstants(layout metadata.PipelineLayoutHandle, stages metadata.ShaderStage, offset uint32, data []byte)
	SetViewport(vp metadata.Viewport)
	SetScissor(r metadata.Rect)
	SetDepthBias(constant, slope float32)
	BindVertexBuffers(first uint32, buffers []metadata.BufferHandle, offsets []uint64)
	BindIndexBuffer(buffer metadata.BufferHandle, offset uint64, t metadata.IndexType)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	End() error
}
