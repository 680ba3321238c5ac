package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanImage struct {
	Handle    vk.Image
	Memory    vk.DeviceMemory
	View      vk.ImageView
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    vk.Format
	Aspect    vk.ImageAspectFlags
}

// ImageCreate makes a 2D, device-local image with a view over all its
// levels. A failed step releases what was already created.
func ImageCreate(
	context *VulkanContext,
	width, height, mipLevels uint32,
	format vk.Format,
	usage vk.ImageUsageFlags,
	aspect vk.ImageAspectFlags,
) (*VulkanImage, error) {
	image := &VulkanImage{
		Width:     width,
		Height:    height,
		MipLevels: mipLevels,
		Format:    format,
		Aspect:    aspect,
	}
	dev := context.Device.LogicalDevice

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     mipLevels,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if err := check("vkCreateImage", vk.CreateImage(dev, &imageCreateInfo, context.Allocator, &image.Handle)); err != nil {
		return nil, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, image.Handle, &memoryRequirements)
	memory, err := context.allocate(memoryRequirements, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		image.Destroy(context)
		return nil, err
	}
	image.Memory = memory
	if err := check("vkBindImageMemory", vk.BindImageMemory(dev, image.Handle, image.Memory, 0)); err != nil {
		image.Destroy(context)
		return nil, err
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: mipLevels,
			LayerCount: 1,
		},
	}
	if err := check("vkCreateImageView", vk.CreateImageView(dev, &viewCreateInfo, context.Allocator, &image.View)); err != nil {
		image.Destroy(context)
		return nil, err
	}
	return image, nil
}

func (vi *VulkanImage) Destroy(context *VulkanContext) {
	dev := context.Device.LogicalDevice
	if vi.View != nil {
		vk.DestroyImageView(dev, vi.View, context.Allocator)
		vi.View = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(dev, vi.Memory, context.Allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(dev, vi.Handle, context.Allocator)
		vi.Handle = nil
	}
}

// LevelExtent returns the size of a mip level, never below one texel.
func (vi *VulkanImage) LevelExtent(level uint32) (uint32, uint32) {
	w, h := vi.Width>>level, vi.Height>>level
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return w, h
}

// TransitionLayout records a barrier moving levels [base, base+count) from
// oldLayout to newLayout. Only the transitions the backend performs are
// given precise access masks.
func (vi *VulkanImage) TransitionLayout(cb *VulkanCommandBuffer, oldLayout, newLayout vk.ImageLayout, base, count uint32) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:   vi.Aspect,
			BaseMipLevel: base,
			LevelCount:   count,
			LayerCount:   1,
		},
	}

	srcStage := vk.PipelineStageTopOfPipeBit
	dstStage := vk.PipelineStageTransferBit
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		dstStage = vk.PipelineStageFragmentShaderBit
	case newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFragmentShaderBit
	case oldLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageTransferBit
		dstStage = vk.PipelineStageFragmentShaderBit
	}

	vk.CmdPipelineBarrier(
		cb.Handle,
		vk.PipelineStageFlags(srcStage),
		vk.PipelineStageFlags(dstStage),
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier})
}
