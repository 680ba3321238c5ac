package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ffbridge/engine/core"
)

// VulkanContext holds the objects shared by every backend call: the
// instance, the device and the offscreen target it renders into.
type VulkanContext struct {
	// Offscreen target size.
	FramebufferWidth  uint32
	FramebufferHeight uint32

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	debugCallback vk.DebugReportCallback

	Device *VulkanDevice

	ColorTarget *VulkanImage
	DepthTarget *VulkanImage
	// ClearPass starts from cleared attachments, LoadPass keeps the
	// previous contents. Both are compatible with Framebuffer.
	ClearPass   *VulkanRenderpass
	LoadPass    *VulkanRenderpass
	Framebuffer *VulkanFramebuffer

	DescriptorPool vk.DescriptorPool
	PipelineCache  vk.PipelineCache

	Locks *VulkanLockPool
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (memoryProperties.MemoryTypes[i].PropertyFlags&propertyFlags) == propertyFlags {
			return i, nil
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return 0, fmt.Errorf("no memory type with flags %#x: %w", uint32(propertyFlags), core.ErrResourceCreationFailed)
}

// allocate backs reqs with memory of the given properties.
func (vc *VulkanContext) allocate(reqs vk.MemoryRequirements, flags vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	reqs.Deref()
	index, err := vc.FindMemoryIndex(reqs.MemoryTypeBits, flags)
	if err != nil {
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	var memory vk.DeviceMemory
	if err := check("vkAllocateMemory", vk.AllocateMemory(vc.Device.LogicalDevice, &allocInfo, vc.Allocator, &memory)); err != nil {
		return nil, err
	}
	return memory, nil
}
