package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ffbridge/engine/core"
)

// VulkanBuffer is a buffer bound at offset zero to its own allocation.
// The allocation is released separately.
type VulkanBuffer struct {
	Handle      vk.Buffer
	Memory      vk.DeviceMemory
	Size        uint64
	HostVisible bool
}

func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("zero-sized buffer: %w", core.ErrInvalidParameter)
	}
	dev := context.Device.LogicalDevice
	buffer := &VulkanBuffer{
		Size:        size,
		HostVisible: properties&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	if err := check("vkCreateBuffer", vk.CreateBuffer(dev, &bufferInfo, context.Allocator, &buffer.Handle)); err != nil {
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer.Handle, &requirements)
	memory, err := context.allocate(requirements, properties)
	if err != nil {
		vk.DestroyBuffer(dev, buffer.Handle, context.Allocator)
		return nil, err
	}
	buffer.Memory = memory
	if err := check("vkBindBufferMemory", vk.BindBufferMemory(dev, buffer.Handle, memory, 0)); err != nil {
		vk.DestroyBuffer(dev, buffer.Handle, context.Allocator)
		vk.FreeMemory(dev, memory, context.Allocator)
		return nil, err
	}
	return buffer, nil
}

// Destroy releases the buffer object. The memory stays allocated.
func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	if vb.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, vb.Handle, context.Allocator)
		vb.Handle = nil
	}
}

// LoadData maps the buffer memory and copies data in at offset.
func (vb *VulkanBuffer) LoadData(context *VulkanContext, offset uint64, data []byte) error {
	if !vb.HostVisible {
		return fmt.Errorf("write to device-local buffer: %w", core.ErrInvalidParameter)
	}
	if offset+uint64(len(data)) > vb.Size {
		return fmt.Errorf("write of %d bytes at %d overflows %d-byte buffer: %w", len(data), offset, vb.Size, core.ErrInvalidParameter)
	}
	if len(data) == 0 {
		return nil
	}
	dev := context.Device.LogicalDevice
	var mapped unsafe.Pointer
	if err := check("vkMapMemory", vk.MapMemory(dev, vb.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &mapped)); err != nil {
		return err
	}
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(dev, vb.Memory)
	return nil
}

// ReadData maps the buffer memory and copies n bytes out.
func (vb *VulkanBuffer) ReadData(context *VulkanContext, n int) ([]byte, error) {
	if !vb.HostVisible || uint64(n) > vb.Size {
		return nil, fmt.Errorf("read of %d bytes: %w", n, core.ErrInvalidParameter)
	}
	dev := context.Device.LogicalDevice
	var mapped unsafe.Pointer
	if err := check("vkMapMemory", vk.MapMemory(dev, vb.Memory, 0, vk.DeviceSize(n), 0, &mapped)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(mapped), n))
	vk.UnmapMemory(dev, vb.Memory)
	return out, nil
}

// CopyTo records and waits for a size-byte copy into dst.
func (vb *VulkanBuffer) CopyTo(context *VulkanContext, dst *VulkanBuffer, size uint64) error {
	if size > vb.Size || size > dst.Size {
		return fmt.Errorf("copy of %d bytes: %w", size, core.ErrInvalidParameter)
	}
	device := context.Device
	cb, err := AllocateAndBeginSingleUse(context, device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	vk.CmdCopyBuffer(cb.Handle, vb.Handle, dst.Handle, 1, []vk.BufferCopy{{Size: vk.DeviceSize(size)}})
	return cb.EndSingleUse(context, device.GraphicsCommandPool, device.GraphicsQueue)
}
