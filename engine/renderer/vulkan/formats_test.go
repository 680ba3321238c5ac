package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

func TestResultErrorKinds(t *testing.T) {
	tests := []struct {
		result vk.Result
		want   error
	}{
		{vk.ErrorDeviceLost, core.ErrDeviceLost},
		{vk.ErrorOutOfDeviceMemory, core.ErrResourceCreationFailed},
		{vk.ErrorOutOfHostMemory, core.ErrResourceCreationFailed},
		{vk.ErrorFragmentedPool, core.ErrResourceCreationFailed},
		{vk.ErrorFormatNotSupported, core.ErrUnsupportedFormat},
		{vk.ErrorInitializationFailed, core.ErrUnknown},
	}
	for _, tt := range tests {
		err := check("vkTest", tt.result)
		if !errors.Is(err, tt.want) {
			t.Errorf("check(%s) = %v, want %v", VulkanResultString(tt.result), err, tt.want)
		}
	}
	if err := check("vkTest", vk.Success); err != nil {
		t.Fatalf("success mapped to %v", err)
	}
	if got := core.KindOf(check("vkQueueSubmit", vk.ErrorDeviceLost)); got != core.ErrorKindDeviceLost {
		t.Fatalf("KindOf = %v", got)
	}
}

func TestImageFormat(t *testing.T) {
	tests := []struct {
		in   metadata.ImageFormat
		want vk.Format
	}{
		{metadata.ImageFormatB8G8R8A8Unorm, vk.FormatB8g8r8a8Unorm},
		{metadata.ImageFormatR5G6B5Pack16, vk.FormatR5g6b5UnormPack16},
		{metadata.ImageFormatBC1, vk.FormatBc1RgbaUnormBlock},
		{metadata.ImageFormatBC3, vk.FormatBc3UnormBlock},
		{metadata.ImageFormatD24S8, vk.FormatD24UnormS8Uint},
	}
	for _, tt := range tests {
		got, err := imageFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("imageFormat(%d) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := imageFormat(metadata.ImageFormatUndefined); !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Fatalf("undefined format err = %v", err)
	}
}

func TestVertexFormat(t *testing.T) {
	got, err := vertexFormat(metadata.DECLTYPE_D3DCOLOR)
	if err != nil || got != vk.FormatB8g8r8a8Unorm {
		t.Fatalf("D3DCOLOR = %v, %v", got, err)
	}
	if got, _ := vertexFormat(metadata.DECLTYPE_FLOAT3); got != vk.FormatR32g32b32Sfloat {
		t.Fatalf("FLOAT3 = %v", got)
	}
}

func TestSamplerMappings(t *testing.T) {
	if addressMode(metadata.TADDRESS_MIRRORONCE) != vk.SamplerAddressModeMirroredRepeat {
		t.Error("MIRRORONCE should mirror")
	}
	if addressMode(metadata.TADDRESS_BORDER) != vk.SamplerAddressModeClampToBorder {
		t.Error("BORDER should clamp to border")
	}
	if filter(metadata.TEXF_ANISOTROPIC) != vk.FilterLinear || filter(metadata.TEXF_POINT) != vk.FilterNearest {
		t.Error("filter mapping")
	}

	borders := []struct {
		argb uint32
		want vk.BorderColor
	}{
		{0x00ffffff, vk.BorderColorFloatTransparentBlack},
		{0xffffffff, vk.BorderColorFloatOpaqueWhite},
		{0xff000000, vk.BorderColorFloatOpaqueBlack},
		{0xff202020, vk.BorderColorFloatOpaqueBlack},
	}
	for _, tt := range borders {
		if got := borderColor(tt.argb); got != tt.want {
			t.Errorf("borderColor(%#08x) = %v, want %v", tt.argb, got, tt.want)
		}
	}
}

func TestRasterMappings(t *testing.T) {
	if cullMode(metadata.CULL_NONE) != vk.CullModeFlags(vk.CullModeNone) {
		t.Error("CULL_NONE")
	}
	if cullMode(metadata.CULL_CW) != vk.CullModeFlags(vk.CullModeFrontBit) {
		t.Error("CULL_CW culls front faces under clockwise winding")
	}
	if cullMode(metadata.CULL_CCW) != vk.CullModeFlags(vk.CullModeBackBit) {
		t.Error("CULL_CCW")
	}
	if polygonMode(metadata.FILL_WIREFRAME) != vk.PolygonModeLine || polygonMode(0) != vk.PolygonModeFill {
		t.Error("fill mode mapping")
	}
}

func TestBufferFlags(t *testing.T) {
	usage := bufferUsage(metadata.BufferUsageVertex | metadata.BufferUsageTransferDst)
	want := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit)
	if usage != want {
		t.Fatalf("usage = %#x, want %#x", usage, want)
	}
	mem := memoryProperties(metadata.MemoryHostVisible | metadata.MemoryHostCoherent)
	if mem != vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit) {
		t.Fatalf("memory = %#x", mem)
	}
}

func TestVertexInput(t *testing.T) {
	layout, err := metadata.LayoutFromFVF(metadata.FVF_XYZ|metadata.FVF_DIFFUSE, 0)
	if err != nil {
		t.Fatal(err)
	}
	bindings, attributes, err := vertexInput(layout)
	if err != nil {
		t.Fatal(err)
	}
	if len(bindings) != 1 || bindings[0].Binding != 0 || bindings[0].Stride != 16 {
		t.Fatalf("bindings = %+v", bindings)
	}
	if len(attributes) != 2 || attributes[1].Offset != 12 || attributes[1].Format != vk.FormatB8g8r8a8Unorm {
		t.Fatalf("attributes = %+v", attributes)
	}
}
