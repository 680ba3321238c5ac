package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// Sets the shared pool can hand out before allocation fails.
const maxDescriptorSets = 4096

func DescriptorSetLayoutCreate(context *VulkanContext, table metadata.BindingTable) (vk.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, table.Count)
	for _, b := range table.Slice() {
		if b.Count == 0 {
			return nil, fmt.Errorf("binding %d has no descriptors: %w", b.Binding, core.ErrInvalidParameter)
		}
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorType(b.Kind),
			DescriptorCount: b.Count,
			StageFlags:      shaderStages(b.Stages),
		})
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	err := context.Locks.SafeCall(DescriptorManagement, func() error {
		return check("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout))
	})
	if err != nil {
		return nil, err
	}
	return layout, nil
}

// DescriptorPoolCreate makes the pool every set comes from. Sets are freed
// one at a time as their owners retire.
func DescriptorPoolCreate(context *VulkanContext) (vk.DescriptorPool, error) {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 2 * maxDescriptorSets},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: metadata.MaxSamplers * maxDescriptorSets},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: metadata.MaxTextureStages * maxDescriptorSets},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: metadata.MaxTextureStages * maxDescriptorSets},
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxDescriptorSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := check("vkCreateDescriptorPool", vk.CreateDescriptorPool(context.Device.LogicalDevice, &createInfo, context.Allocator, &pool)); err != nil {
		return nil, err
	}
	return pool, nil
}

func DescriptorSetAllocate(context *VulkanContext, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     context.DescriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	err := context.Locks.SafeCall(DescriptorManagement, func() error {
		return check("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &set))
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func DescriptorSetFree(context *VulkanContext, set vk.DescriptorSet) {
	context.Locks.SafeCall(DescriptorManagement, func() error {
		return check("vkFreeDescriptorSets", vk.FreeDescriptorSets(context.Device.LogicalDevice, context.DescriptorPool, 1, &set))
	})
}

// resolvedWrite is a descriptor write with its handles looked up.
type resolvedWrite struct {
	write   metadata.DescriptorWrite
	buffer  vk.Buffer
	view    vk.ImageView
	sampler vk.Sampler
}

func DescriptorSetUpdate(context *VulkanContext, set vk.DescriptorSet, writes []resolvedWrite) {
	if len(writes) == 0 {
		return
	}
	vkWrites := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		vkWrites[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      w.write.Binding,
			DstArrayElement: w.write.ArrayElement,
			DescriptorCount: 1,
			DescriptorType:  descriptorType(w.write.Kind),
		}
		if w.write.Kind == metadata.DescriptorUniformBuffer {
			vkWrites[i].PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: w.buffer,
				Offset: vk.DeviceSize(w.write.Offset),
				Range:  vk.DeviceSize(w.write.Range),
			}}
			continue
		}
		vkWrites[i].PImageInfo = []vk.DescriptorImageInfo{{
			Sampler:     w.sampler,
			ImageView:   w.view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}}
	}
	context.Locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
		return nil
	})
}

func SamplerCreate(context *VulkanContext, desc metadata.SamplerDesc) (vk.Sampler, error) {
	createInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter(desc.MagFilter),
		MinFilter:               filter(desc.MinFilter),
		MipmapMode:              mipmapMode(desc.MipFilter),
		AddressModeU:            addressMode(desc.AddressU),
		AddressModeV:            addressMode(desc.AddressV),
		AddressModeW:            addressMode(desc.AddressW),
		MipLodBias:              desc.MipLODBias,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  float32(desc.MaxMipLevel),
		MaxLod:                  vk.LodClampNone,
		BorderColor:             borderColor(desc.BorderColor),
		UnnormalizedCoordinates: vk.False,
	}
	// Point mip filtering with no mipmapping samples the base level only.
	if desc.MipFilter == metadata.TEXF_NONE {
		createInfo.MipmapMode = vk.SamplerMipmapModeNearest
		createInfo.MaxLod = createInfo.MinLod + 0.25
	}
	anisotropic := desc.MinFilter == metadata.TEXF_ANISOTROPIC || desc.MagFilter == metadata.TEXF_ANISOTROPIC
	if anisotropic && desc.MaxAnisotropy > 1 && context.Device.Anisotropy {
		createInfo.AnisotropyEnable = vk.True
		createInfo.MaxAnisotropy = float32(math.Min(float64(desc.MaxAnisotropy), float64(context.Device.MaxAnisotropy)))
	}

	var sampler vk.Sampler
	if err := check("vkCreateSampler", vk.CreateSampler(context.Device.LogicalDevice, &createInfo, context.Allocator, &sampler)); err != nil {
		return nil, err
	}
	return sampler, nil
}
