package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

func imageFormat(f metadata.ImageFormat) (vk.Format, error) {
	switch f {
	case metadata.ImageFormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm, nil
	case metadata.ImageFormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm, nil
	case metadata.ImageFormatR5G6B5Pack16:
		return vk.FormatR5g6b5UnormPack16, nil
	case metadata.ImageFormatA1R5G5B5Pack16:
		return vk.FormatA1r5g5b5UnormPack16, nil
	case metadata.ImageFormatR8Unorm:
		return vk.FormatR8Unorm, nil
	case metadata.ImageFormatBC1:
		return vk.FormatBc1RgbaUnormBlock, nil
	case metadata.ImageFormatBC2:
		return vk.FormatBc2UnormBlock, nil
	case metadata.ImageFormatBC3:
		return vk.FormatBc3UnormBlock, nil
	case metadata.ImageFormatD16:
		return vk.FormatD16Unorm, nil
	case metadata.ImageFormatD24S8:
		return vk.FormatD24UnormS8Uint, nil
	case metadata.ImageFormatD32:
		return vk.FormatD32Sfloat, nil
	}
	return vk.FormatUndefined, fmt.Errorf("image format %d: %w", f, core.ErrUnsupportedFormat)
}

// vertexFormat maps a declaration type onto the attribute format the
// shader reads. D3DCOLOR is stored BGRA in memory.
func vertexFormat(t metadata.DeclType) (vk.Format, error) {
	switch t {
	case metadata.DECLTYPE_FLOAT1:
		return vk.FormatR32Sfloat, nil
	case metadata.DECLTYPE_FLOAT2:
		return vk.FormatR32g32Sfloat, nil
	case metadata.DECLTYPE_FLOAT3:
		return vk.FormatR32g32b32Sfloat, nil
	case metadata.DECLTYPE_FLOAT4:
		return vk.FormatR32g32b32a32Sfloat, nil
	case metadata.DECLTYPE_D3DCOLOR:
		return vk.FormatB8g8r8a8Unorm, nil
	case metadata.DECLTYPE_UBYTE4:
		return vk.FormatR8g8b8a8Uint, nil
	case metadata.DECLTYPE_UBYTE4N:
		return vk.FormatR8g8b8a8Unorm, nil
	case metadata.DECLTYPE_SHORT2:
		return vk.FormatR16g16Sint, nil
	case metadata.DECLTYPE_SHORT4:
		return vk.FormatR16g16b16a16Sint, nil
	case metadata.DECLTYPE_SHORT2N:
		return vk.FormatR16g16Snorm, nil
	case metadata.DECLTYPE_SHORT4N:
		return vk.FormatR16g16b16a16Snorm, nil
	case metadata.DECLTYPE_USHORT2N:
		return vk.FormatR16g16Unorm, nil
	case metadata.DECLTYPE_USHORT4N:
		return vk.FormatR16g16b16a16Unorm, nil
	case metadata.DECLTYPE_FLOAT16_2:
		return vk.FormatR16g16Sfloat, nil
	case metadata.DECLTYPE_FLOAT16_4:
		return vk.FormatR16g16b16a16Sfloat, nil
	}
	return vk.FormatUndefined, fmt.Errorf("declaration type %d: %w", t, core.ErrUnsupportedFormat)
}

func primitiveTopology(t metadata.Topology) vk.PrimitiveTopology {
	switch t {
	case metadata.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	case metadata.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case metadata.TopologyLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case metadata.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.TopologyTriangleFan:
		return vk.PrimitiveTopologyTriangleFan
	}
	return vk.PrimitiveTopologyTriangleList
}

// cullMode assumes clockwise front faces: the legacy default CCW mode
// culls the back.
func cullMode(m metadata.CullMode) vk.CullModeFlags {
	switch m {
	case metadata.CULL_NONE:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.CULL_CW:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	}
	return vk.CullModeFlags(vk.CullModeBackBit)
}

func polygonMode(m metadata.FillMode) vk.PolygonMode {
	switch m {
	case metadata.FILL_POINT:
		return vk.PolygonModePoint
	case metadata.FILL_WIREFRAME:
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}

func filter(f metadata.TextureFilter) vk.Filter {
	if f == metadata.TEXF_LINEAR || f == metadata.TEXF_ANISOTROPIC {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func mipmapMode(f metadata.TextureFilter) vk.SamplerMipmapMode {
	if f == metadata.TEXF_LINEAR || f == metadata.TEXF_ANISOTROPIC {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

// addressMode maps MIRRORONCE to plain mirroring; mirror-clamp needs an
// optional feature.
func addressMode(a metadata.TextureAddress) vk.SamplerAddressMode {
	switch a {
	case metadata.TADDRESS_MIRROR, metadata.TADDRESS_MIRRORONCE:
		return vk.SamplerAddressModeMirroredRepeat
	case metadata.TADDRESS_CLAMP:
		return vk.SamplerAddressModeClampToEdge
	case metadata.TADDRESS_BORDER:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeRepeat
}

// borderColor picks the closest fixed border colour for an ARGB value.
func borderColor(argb uint32) vk.BorderColor {
	switch {
	case argb>>24 < 0x80:
		return vk.BorderColorFloatTransparentBlack
	case argb&0xffffff >= 0x808080:
		return vk.BorderColorFloatOpaqueWhite
	}
	return vk.BorderColorFloatOpaqueBlack
}

func descriptorType(k metadata.DescriptorKind) vk.DescriptorType {
	switch k {
	case metadata.DescriptorCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	case metadata.DescriptorSampledImage:
		return vk.DescriptorTypeSampledImage
	case metadata.DescriptorSampler:
		return vk.DescriptorTypeSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func shaderStages(s metadata.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	if s&metadata.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
	if s&metadata.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	return flags
}

func indexType(t metadata.IndexType) vk.IndexType {
	if t == metadata.IndexTypeUint32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

func bufferUsage(u metadata.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&metadata.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&metadata.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&metadata.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&metadata.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if u&metadata.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(flags)
}

func memoryProperties(m metadata.MemoryProperty) vk.MemoryPropertyFlags {
	var flags vk.MemoryPropertyFlagBits
	if m&metadata.MemoryDeviceLocal != 0 {
		flags |= vk.MemoryPropertyDeviceLocalBit
	}
	if m&metadata.MemoryHostVisible != 0 {
		flags |= vk.MemoryPropertyHostVisibleBit
	}
	if m&metadata.MemoryHostCoherent != 0 {
		flags |= vk.MemoryPropertyHostCoherentBit
	}
	return vk.MemoryPropertyFlags(flags)
}
