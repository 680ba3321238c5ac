package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// VulkanPipelineConfig is a pipeline description with every handle already
// resolved.
type VulkanPipelineConfig struct {
	Renderpass     *VulkanRenderpass
	Layout         vk.PipelineLayout
	VertexModule   vk.ShaderModule
	FragmentModule vk.ShaderModule
	Desc           *metadata.GraphicsPipelineDesc
}

func ShaderModuleCreate(context *VulkanContext, desc metadata.ShaderModuleDesc) (vk.ShaderModule, error) {
	if len(desc.Code) == 0 {
		return nil, fmt.Errorf("empty shader module: %w", core.ErrInvalidParameter)
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(desc.Code) * 4),
		PCode:    desc.Code,
	}
	var module vk.ShaderModule
	if err := check("vkCreateShaderModule", vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &module)); err != nil {
		return nil, err
	}
	return module, nil
}

func PipelineLayoutCreate(context *VulkanContext, setLayout vk.DescriptorSetLayout, push metadata.PushConstantRange) (vk.PipelineLayout, error) {
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}

	// Push constants
	if push.Size > 0 {
		if push.Offset+push.Size > metadata.PushConstantSize {
			return nil, fmt.Errorf("push constant range %d+%d exceeds %d bytes: %w",
				push.Offset, push.Size, metadata.PushConstantSize, core.ErrInvalidParameter)
		}
		pipelineLayoutCreateInfo.PushConstantRangeCount = 1
		pipelineLayoutCreateInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: shaderStages(push.Stages),
			Offset:     push.Offset,
			Size:       push.Size,
		}}
	}

	var pPipelineLayout vk.PipelineLayout
	err := context.Locks.SafeCall(PipelineManagement, func() error {
		return check("vkCreatePipelineLayout", vk.CreatePipelineLayout(
			context.Device.LogicalDevice,
			&pipelineLayoutCreateInfo,
			context.Allocator,
			&pPipelineLayout))
	})
	if err != nil {
		return nil, err
	}
	return pPipelineLayout, nil
}

// vertexInput translates a layout into one binding per stream it reads.
func vertexInput(layout metadata.VertexLayout) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, error) {
	mask := layout.StreamMask()
	var bindings []vk.VertexInputBindingDescription
	for stream := 0; stream < metadata.MaxStreams; stream++ {
		if mask&(1<<stream) == 0 {
			continue
		}
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   uint32(stream),
			Stride:    uint32(layout.Strides[stream]),
			InputRate: vk.VertexInputRateVertex,
		})
	}

	attributes := make([]vk.VertexInputAttributeDescription, layout.AttributeCount)
	for i := range attributes {
		a := layout.Attributes[i]
		format, err := vertexFormat(a.Type)
		if err != nil {
			return nil, nil, err
		}
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: uint32(a.Location),
			Binding:  uint32(a.Stream),
			Format:   format,
			Offset:   uint32(a.Offset),
		}
	}
	return bindings, attributes, nil
}

func NewGraphicsPipeline(context *VulkanContext, config *VulkanPipelineConfig) (vk.Pipeline, error) {
	desc := config.Desc

	bindings, attributes, err := vertexInput(desc.VertexLayout)
	if err != nil {
		return nil, err
	}
	if polygonMode(desc.FillMode) != vk.PolygonModeFill && !context.Device.NonSolidFill {
		return nil, fmt.Errorf("fill mode %d without fillModeNonSolid: %w", desc.FillMode, core.ErrPipelineCreationFailed)
	}

	// Viewport and scissor are dynamic; only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             polygonMode(desc.FillMode),
		LineWidth:               1.0,
		CullMode:                cullMode(desc.CullMode),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.True,
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.True,
		DepthWriteEnable:  vk.True,
		DepthCompareOp:    vk.CompareOpLessOrEqual,
		StencilTestEnable: vk.False,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateDepthBias,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               primitiveTopology(desc.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	// The same constants feed both stages. The driver reads the data
	// during vkCreateGraphicsPipelines only.
	var pinner runtime.Pinner
	defer pinner.Unpin()
	var specialization []vk.SpecializationInfo
	if len(desc.SpecializationEntries) > 0 && len(desc.Specialization) > 0 {
		entries := make([]vk.SpecializationMapEntry, len(desc.SpecializationEntries))
		for i, e := range desc.SpecializationEntries {
			if uint64(e.Offset)+uint64(e.Size) > uint64(len(desc.Specialization)) {
				return nil, fmt.Errorf("specialization constant %d out of range: %w", e.ConstantID, core.ErrInvalidParameter)
			}
			entries[i] = vk.SpecializationMapEntry{
				ConstantID: e.ConstantID,
				Offset:     e.Offset,
				Size:       uint64(e.Size),
			}
		}
		pinner.Pin(&desc.Specialization[0])
		specialization = []vk.SpecializationInfo{{
			MapEntryCount: uint32(len(entries)),
			PMapEntries:   entries,
			DataSize:      uint64(len(desc.Specialization)),
			PData:         unsafe.Pointer(&desc.Specialization[0]),
		}}
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:               vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:               vk.ShaderStageVertexBit,
			Module:              config.VertexModule,
			PName:               VulkanSafeString(desc.VertexEntry),
			PSpecializationInfo: specialization,
		},
		{
			SType:               vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:               vk.ShaderStageFragmentBit,
			Module:              config.FragmentModule,
			PName:               VulkanSafeString(desc.FragmentEntry),
			PSpecializationInfo: specialization,
		},
	}

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              config.Layout,
		RenderPass:          config.Renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	err = context.Locks.SafeCall(PipelineManagement, func() error {
		return check("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(
			context.Device.LogicalDevice,
			context.PipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pPipelines))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPipelineCreationFailed, err)
	}
	if pPipelines[0] == nil {
		return nil, fmt.Errorf("vulkan pipeline handle is nil: %w", core.ErrPipelineCreationFailed)
	}

	core.LogDebug("Graphics pipeline created!")
	return pPipelines[0], nil
}

// PipelineCacheCreate seeds the driver cache with data from a previous run.
// Data the driver rejects falls back to an empty cache.
func PipelineCacheCreate(context *VulkanContext, initial []byte) (vk.PipelineCache, error) {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	createInfo := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if len(initial) > 0 {
		pinner.Pin(&initial[0])
		createInfo.InitialDataSize = uint64(len(initial))
		createInfo.PInitialData = unsafe.Pointer(&initial[0])
	}
	var cache vk.PipelineCache
	res := vk.CreatePipelineCache(context.Device.LogicalDevice, &createInfo, context.Allocator, &cache)
	if res != vk.Success && len(initial) > 0 {
		core.LogWarn("pipeline cache data rejected (%s), starting empty", VulkanResultString(res))
		createInfo.InitialDataSize = 0
		createInfo.PInitialData = nil
		res = vk.CreatePipelineCache(context.Device.LogicalDevice, &createInfo, context.Allocator, &cache)
	}
	if err := check("vkCreatePipelineCache", res); err != nil {
		return nil, err
	}
	return cache, nil
}

func PipelineCacheData(context *VulkanContext) ([]byte, error) {
	dev := context.Device.LogicalDevice
	var size uint64
	if err := check("vkGetPipelineCacheData", vk.GetPipelineCacheData(dev, context.PipelineCache, &size, nil)); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if err := check("vkGetPipelineCacheData", vk.GetPipelineCacheData(dev, context.PipelineCache, &size, unsafe.Pointer(&data[0]))); err != nil {
		return nil, err
	}
	return data[:size], nil
}
