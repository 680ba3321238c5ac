package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex uint32
	GraphicsQueue      vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	// Features actually enabled on the logical device.
	Anisotropy    bool
	NonSolidFill  bool
	MaxAnisotropy float32
	DepthFormat   vk.Format
	Identity      metadata.DeviceIdentity
}

func DeviceCreate(context *VulkanContext) error {
	device, err := SelectPhysicalDevice(context)
	if err != nil {
		return err
	}
	context.Device = device

	core.LogInfo("Creating logical device...")

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: device.GraphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	// Request only what the device has.
	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if device.Features.SamplerAnisotropy == vk.True {
		deviceFeatures.SamplerAnisotropy = vk.True
		device.Anisotropy = true
	}
	if device.Features.FillModeNonSolid == vk.True {
		deviceFeatures.FillModeNonSolid = vk.True
		device.NonSolidFill = true
	}

	var extensionNames []string
	var availableExtensionCount uint32
	if err := check("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device.PhysicalDevice, "", &availableExtensionCount, nil)); err != nil {
		return err
	}
	if availableExtensionCount != 0 {
		availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
		if err := check("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device.PhysicalDevice, "", &availableExtensionCount, availableExtensions)); err != nil {
			return err
		}
		for i := range availableExtensions {
			availableExtensions[i].Deref()
			if cString(availableExtensions[i].ExtensionName[:]) == "VK_KHR_portability_subset" {
				core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
				extensionNames = append(extensionNames, "VK_KHR_portability_subset")
				break
			}
		}
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	if err := check("vkCreateDevice", vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device.LogicalDevice)); err != nil {
		return err
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(device.LogicalDevice, device.GraphicsQueueIndex, 0, &device.GraphicsQueue)
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := check("vkCreateCommandPool", vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &device.GraphicsCommandPool)); err != nil {
		return err
	}
	core.LogInfo("Graphics command pool created.")

	if !DeviceDetectDepthFormat(device) {
		return fmt.Errorf("no depth attachment format: %w", core.ErrUnsupportedFormat)
	}
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}
	device.GraphicsQueue = nil

	if device.GraphicsCommandPool != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		device.GraphicsCommandPool = nil
	}

	// Destroy logical device
	if device.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
}

func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

// SelectPhysicalDevice picks the best device with a graphics queue.
// Discrete GPUs win over integrated ones, which win over the rest.
func SelectPhysicalDevice(context *VulkanContext) (*VulkanDevice, error) {
	var physicalDeviceCount uint32
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil)); err != nil {
		return nil, err
	}
	if physicalDeviceCount == 0 {
		return nil, fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrUnsupportedFormat)
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices)); err != nil {
		return nil, err
	}

	var best *VulkanDevice
	bestScore := -1
	for _, pd := range physicalDevices {
		family, ok := graphicsQueueFamily(pd)
		if !ok {
			continue
		}
		candidate := &VulkanDevice{PhysicalDevice: pd, GraphicsQueueIndex: family}
		vk.GetPhysicalDeviceProperties(pd, &candidate.Properties)
		candidate.Properties.Deref()
		candidate.Properties.Limits.Deref()
		vk.GetPhysicalDeviceFeatures(pd, &candidate.Features)
		candidate.Features.Deref()
		vk.GetPhysicalDeviceMemoryProperties(pd, &candidate.Memory)
		candidate.Memory.Deref()

		score := 0
		switch candidate.Properties.DeviceType {
		case vk.PhysicalDeviceTypeDiscreteGpu:
			score = 3
		case vk.PhysicalDeviceTypeIntegratedGpu:
			score = 2
		case vk.PhysicalDeviceTypeVirtualGpu:
			score = 1
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no physical device with a graphics queue: %w", core.ErrUnsupportedFormat)
	}

	props := best.Properties
	best.MaxAnisotropy = props.Limits.MaxSamplerAnisotropy
	id, err := uuid.FromBytes(props.PipelineCacheUUID[:])
	if err != nil {
		return nil, err
	}
	best.Identity = metadata.DeviceIdentity{
		ID:       id,
		Name:     cString(props.DeviceName[:]),
		VendorID: props.VendorID,
		DeviceID: props.DeviceID,
		Driver:   props.DriverVersion,
	}

	core.LogInfo("Selected device: '%s'.", best.Identity.Name)
	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(props.DriverVersion).Major(),
		vk.Version(props.DriverVersion).Minor(),
		vk.Version(props.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(props.ApiVersion).Major(),
		vk.Version(props.ApiVersion).Minor(),
		vk.Version(props.ApiVersion).Patch(),
	)
	for j := 0; j < int(best.Memory.MemoryHeapCount); j++ {
		heap := best.Memory.MemoryHeaps[j]
		heap.Deref()
		memorySizeMiB := heap.Size / 1024 / 1024
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %d MiB", memorySizeMiB)
		} else {
			core.LogInfo("Shared System memory: %d MiB", memorySizeMiB)
		}
	}
	return best, nil
}

func graphicsQueueFamily(pd vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}
