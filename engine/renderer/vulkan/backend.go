package vulkan

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ffbridge/engine/config"
	"github.com/spaghettifunk/ffbridge/engine/containers"
	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// The offscreen color target is always RGBA8 so readback needs no swizzle.
const colorTargetFormat = vk.FormatR8g8b8a8Unorm

var (
	loaderOnce sync.Once
	loaderErr  error
)

// initLoader resolves the loader once per process. procAddr may be nil.
func initLoader(procAddr unsafe.Pointer) error {
	loaderOnce.Do(func() {
		if procAddr != nil {
			vk.SetGetInstanceProcAddr(procAddr)
		} else {
			vk.SetDefaultGetInstanceProcAddr()
		}
		loaderErr = vk.Init()
	})
	return loaderErr
}

type Option func(*Backend)

// WithPipelineCacheLoader supplies the bytes a previous run saved for a
// device. The loader sees the identity of the device actually selected.
func WithPipelineCacheLoader(load func(metadata.DeviceIdentity) []byte) Option {
	return func(b *Backend) {
		b.cacheLoader = load
	}
}

// WithInstanceProcAddr uses a vkGetInstanceProcAddr found by the platform
// layer instead of the default loader lookup.
func WithInstanceProcAddr(procAddr unsafe.Pointer) Option {
	return func(b *Backend) {
		b.procAddr = procAddr
	}
}

type vulkanImage struct {
	*VulkanImage
	format metadata.ImageFormat
}

// Backend renders into an offscreen target on one Vulkan device. Every
// object it creates is tracked in a handle table and destroyed with it.
type Backend struct {
	context     *VulkanContext
	cfg         config.DeviceConfig
	cacheLoader func(metadata.DeviceIdentity) []byte
	procAddr    unsafe.Pointer

	frame    *VulkanCommandBuffer
	fence    *VulkanFence
	readback *VulkanBuffer
	rendered bool

	shaderModules   *containers.HandleTable[vk.ShaderModule]
	setLayouts      *containers.HandleTable[vk.DescriptorSetLayout]
	pipelineLayouts *containers.HandleTable[vk.PipelineLayout]
	pipelines       *containers.HandleTable[vk.Pipeline]
	samplers        *containers.HandleTable[vk.Sampler]
	descriptorSets  *containers.HandleTable[vk.DescriptorSet]
	buffers         *containers.HandleTable[*VulkanBuffer]
	memories        *containers.HandleTable[vk.DeviceMemory]
	images          *containers.HandleTable[vulkanImage]
}

var _ renderer.Backend = (*Backend)(nil)
var _ renderer.CommandBuffer = (*VulkanCommandBuffer)(nil)

// New creates the instance, picks a device and builds the offscreen target.
// A failure part way releases everything created so far.
func New(cfg config.DeviceConfig, opts ...Option) (*Backend, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("target size %dx%d: %w", cfg.Width, cfg.Height, core.ErrInvalidParameter)
	}
	b := &Backend{
		cfg: cfg,
		context: &VulkanContext{
			FramebufferWidth:  cfg.Width,
			FramebufferHeight: cfg.Height,
			Locks:             NewVulkanLockPool(),
		},
		shaderModules:   containers.NewHandleTable[vk.ShaderModule](),
		setLayouts:      containers.NewHandleTable[vk.DescriptorSetLayout](),
		pipelineLayouts: containers.NewHandleTable[vk.PipelineLayout](),
		pipelines:       containers.NewHandleTable[vk.Pipeline](),
		samplers:        containers.NewHandleTable[vk.Sampler](),
		descriptorSets:  containers.NewHandleTable[vk.DescriptorSet](),
		buffers:         containers.NewHandleTable[*VulkanBuffer](),
		memories:        containers.NewHandleTable[vk.DeviceMemory](),
		images:          containers.NewHandleTable[vulkanImage](),
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := initLoader(b.procAddr); err != nil {
		return nil, fmt.Errorf("vulkan loader: %w: %w", core.ErrResourceCreationFailed, err)
	}

	if err := b.initialize(); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (b *Backend) initialize() error {
	if err := b.createInstance(); err != nil {
		return err
	}
	if err := DeviceCreate(b.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}
	ctx := b.context
	w, h := ctx.FramebufferWidth, ctx.FramebufferHeight

	var err error
	ctx.ColorTarget, err = ImageCreate(ctx, w, h, 1, colorTargetFormat,
		vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageTransferSrcBit),
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return err
	}
	depthAspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if ctx.Device.DepthFormat != vk.FormatD32Sfloat {
		depthAspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	ctx.DepthTarget, err = ImageCreate(ctx, w, h, 1, ctx.Device.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit), depthAspect)
	if err != nil {
		return err
	}

	if ctx.ClearPass, err = RenderpassCreate(ctx, colorTargetFormat, w, h, false); err != nil {
		return err
	}
	if ctx.LoadPass, err = RenderpassCreate(ctx, colorTargetFormat, w, h, true); err != nil {
		return err
	}
	ctx.Framebuffer, err = FramebufferCreate(ctx, ctx.ClearPass, w, h,
		[]vk.ImageView{ctx.ColorTarget.View, ctx.DepthTarget.View})
	if err != nil {
		return err
	}

	if ctx.DescriptorPool, err = DescriptorPoolCreate(ctx); err != nil {
		return err
	}
	var initial []byte
	if b.cacheLoader != nil {
		initial = b.cacheLoader(ctx.Device.Identity)
	}
	if ctx.PipelineCache, err = PipelineCacheCreate(ctx, initial); err != nil {
		return err
	}

	if b.frame, err = NewVulkanCommandBuffer(ctx, ctx.Device.GraphicsCommandPool); err != nil {
		return err
	}
	b.frame.backend = b
	if b.fence, err = NewFence(ctx, false); err != nil {
		return err
	}
	b.readback, err = BufferCreate(ctx, uint64(w)*uint64(h)*4,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}

	core.LogInfo("Vulkan backend initialized successfully.")
	return nil
}

func (b *Backend) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(b.cfg.AppName),
		PEngineName:        VulkanSafeString("ffbridge"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// No surface: everything renders offscreen.
	var requiredExtensions []string
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	var requiredLayers []string
	if b.cfg.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredLayers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkLayers(requiredLayers); err != nil {
			return err
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	ctx := b.context
	if err := check("vkCreateInstance", vk.CreateInstance(&createInfo, ctx.Allocator, &ctx.Instance)); err != nil {
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(ctx.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if b.cfg.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := check("vkCreateDebugReportCallback", vk.CreateDebugReportCallback(ctx.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError(err.Error())
			return err
		}
		ctx.debugCallback = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func checkLayers(required []string) error {
	var count uint32
	if err := check("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := check("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, available)); err != nil {
		return err
	}
	for _, name := range required {
		core.LogInfo("Searching for layer: %s...", name)
		found := false
		for j := range available {
			available[j].Deref()
			if cString(available[j].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s: %w", name, core.ErrResourceCreationFailed)
		}
	}
	return nil
}

func (b *Backend) DeviceIdentity() metadata.DeviceIdentity {
	return b.context.Device.Identity
}

func (b *Backend) PipelineCacheData() ([]byte, error) {
	return PipelineCacheData(b.context)
}

func (b *Backend) CreateShaderModule(desc metadata.ShaderModuleDesc) (metadata.ShaderModuleHandle, error) {
	module, err := ShaderModuleCreate(b.context, desc)
	if err != nil {
		return 0, err
	}
	return metadata.ShaderModuleHandle(b.shaderModules.Insert(module)), nil
}

func (b *Backend) DestroyShaderModule(h metadata.ShaderModuleHandle) {
	if module, err := b.shaderModules.Remove(uint64(h)); err == nil {
		vk.DestroyShaderModule(b.context.Device.LogicalDevice, module, b.context.Allocator)
	}
}

func (b *Backend) CreateDescriptorSetLayout(bindings metadata.BindingTable) (metadata.DescriptorSetLayoutHandle, error) {
	layout, err := DescriptorSetLayoutCreate(b.context, bindings)
	if err != nil {
		return 0, err
	}
	return metadata.DescriptorSetLayoutHandle(b.setLayouts.Insert(layout)), nil
}

func (b *Backend) DestroyDescriptorSetLayout(h metadata.DescriptorSetLayoutHandle) {
	if layout, err := b.setLayouts.Remove(uint64(h)); err == nil {
		vk.DestroyDescriptorSetLayout(b.context.Device.LogicalDevice, layout, b.context.Allocator)
	}
}

func (b *Backend) CreatePipelineLayout(setLayout metadata.DescriptorSetLayoutHandle, push metadata.PushConstantRange) (metadata.PipelineLayoutHandle, error) {
	set, ok := b.setLayouts.Get(uint64(setLayout))
	if !ok {
		return 0, fmt.Errorf("descriptor set layout %d: %w", setLayout, core.ErrInvalidParameter)
	}
	layout, err := PipelineLayoutCreate(b.context, set, push)
	if err != nil {
		return 0, err
	}
	return metadata.PipelineLayoutHandle(b.pipelineLayouts.Insert(layout)), nil
}

func (b *Backend) DestroyPipelineLayout(h metadata.PipelineLayoutHandle) {
	if layout, err := b.pipelineLayouts.Remove(uint64(h)); err == nil {
		vk.DestroyPipelineLayout(b.context.Device.LogicalDevice, layout, b.context.Allocator)
	}
}

func (b *Backend) CreateGraphicsPipeline(desc *metadata.GraphicsPipelineDesc) (metadata.PipelineHandle, error) {
	layout, ok := b.pipelineLayouts.Get(uint64(desc.Layout))
	if !ok {
		return 0, fmt.Errorf("pipeline layout %d: %w", desc.Layout, core.ErrPipelineCreationFailed)
	}
	vs, ok := b.shaderModules.Get(uint64(desc.VertexModule))
	if !ok {
		return 0, fmt.Errorf("vertex module %d: %w", desc.VertexModule, core.ErrPipelineCreationFailed)
	}
	fs, ok := b.shaderModules.Get(uint64(desc.FragmentModule))
	if !ok {
		return 0, fmt.Errorf("fragment module %d: %w", desc.FragmentModule, core.ErrPipelineCreationFailed)
	}
	pipeline, err := NewGraphicsPipeline(b.context, &VulkanPipelineConfig{
		Renderpass:     b.context.ClearPass,
		Layout:         layout,
		VertexModule:   vs,
		FragmentModule: fs,
		Desc:           desc,
	})
	if err != nil {
		return 0, err
	}
	return metadata.PipelineHandle(b.pipelines.Insert(pipeline)), nil
}

func (b *Backend) DestroyPipeline(h metadata.PipelineHandle) {
	if pipeline, err := b.pipelines.Remove(uint64(h)); err == nil {
		b.context.Locks.SafeCall(PipelineManagement, func() error {
			vk.DestroyPipeline(b.context.Device.LogicalDevice, pipeline, b.context.Allocator)
			return nil
		})
	}
}

func (b *Backend) CreateSampler(desc metadata.SamplerDesc) (metadata.SamplerHandle, error) {
	sampler, err := SamplerCreate(b.context, desc)
	if err != nil {
		return 0, err
	}
	return metadata.SamplerHandle(b.samplers.Insert(sampler)), nil
}

func (b *Backend) DestroySampler(h metadata.SamplerHandle) {
	if sampler, err := b.samplers.Remove(uint64(h)); err == nil {
		vk.DestroySampler(b.context.Device.LogicalDevice, sampler, b.context.Allocator)
	}
}

func (b *Backend) AllocateDescriptorSet(layout metadata.DescriptorSetLayoutHandle) (metadata.DescriptorSetHandle, error) {
	l, ok := b.setLayouts.Get(uint64(layout))
	if !ok {
		return 0, fmt.Errorf("descriptor set layout %d: %w", layout, core.ErrInvalidParameter)
	}
	set, err := DescriptorSetAllocate(b.context, l)
	if err != nil {
		return 0, err
	}
	return metadata.DescriptorSetHandle(b.descriptorSets.Insert(set)), nil
}

// UpdateDescriptorSet resolves every write before touching the set, so a
// bad handle leaves the set unchanged.
func (b *Backend) UpdateDescriptorSet(set metadata.DescriptorSetHandle, writes []metadata.DescriptorWrite) error {
	s, ok := b.descriptorSets.Get(uint64(set))
	if !ok {
		return fmt.Errorf("descriptor set %d: %w", set, core.ErrInvalidParameter)
	}
	resolved := make([]resolvedWrite, len(writes))
	for i, w := range writes {
		r := resolvedWrite{write: w}
		switch w.Kind {
		case metadata.DescriptorUniformBuffer:
			buf, ok := b.buffers.Get(uint64(w.Buffer))
			if !ok {
				return fmt.Errorf("uniform buffer %d at binding %d: %w", w.Buffer, w.Binding, core.ErrInvalidParameter)
			}
			r.buffer = buf.Handle
		default:
			if w.Kind != metadata.DescriptorSampler {
				img, ok := b.images.Get(uint64(w.Image))
				if !ok {
					return fmt.Errorf("image %d at binding %d: %w", w.Image, w.Binding, core.ErrInvalidParameter)
				}
				r.view = img.View
			}
			if w.Kind != metadata.DescriptorSampledImage {
				sampler, ok := b.samplers.Get(uint64(w.Sampler))
				if !ok {
					return fmt.Errorf("sampler %d at binding %d: %w", w.Sampler, w.Binding, core.ErrInvalidParameter)
				}
				r.sampler = sampler
			}
		}
		resolved[i] = r
	}
	DescriptorSetUpdate(b.context, s, resolved)
	return nil
}

func (b *Backend) FreeDescriptorSet(set metadata.DescriptorSetHandle) {
	if s, err := b.descriptorSets.Remove(uint64(set)); err == nil {
		DescriptorSetFree(b.context, s)
	}
}

func (b *Backend) CreateBuffer(desc metadata.BufferDesc) (metadata.BufferHandle, metadata.MemoryHandle, error) {
	buf, err := BufferCreate(b.context, desc.Size, bufferUsage(desc.Usage), memoryProperties(desc.Memory))
	if err != nil {
		return 0, 0, err
	}
	return metadata.BufferHandle(b.buffers.Insert(buf)), metadata.MemoryHandle(b.memories.Insert(buf.Memory)), nil
}

func (b *Backend) DestroyBuffer(h metadata.BufferHandle) {
	if buf, err := b.buffers.Remove(uint64(h)); err == nil {
		buf.Destroy(b.context)
	}
}

func (b *Backend) FreeMemory(h metadata.MemoryHandle) {
	if memory, err := b.memories.Remove(uint64(h)); err == nil {
		vk.FreeMemory(b.context.Device.LogicalDevice, memory, b.context.Allocator)
	}
}

func (b *Backend) WriteBuffer(h metadata.BufferHandle, offset uint64, data []byte) error {
	buf, ok := b.buffers.Get(uint64(h))
	if !ok {
		return fmt.Errorf("buffer %d: %w", h, core.ErrInvalidParameter)
	}
	return buf.LoadData(b.context, offset, data)
}

func (b *Backend) CopyBuffer(src, dst metadata.BufferHandle, size uint64) error {
	s, ok := b.buffers.Get(uint64(src))
	if !ok {
		return fmt.Errorf("source buffer %d: %w", src, core.ErrInvalidParameter)
	}
	d, ok := b.buffers.Get(uint64(dst))
	if !ok {
		return fmt.Errorf("destination buffer %d: %w", dst, core.ErrInvalidParameter)
	}
	return s.CopyTo(b.context, d, size)
}

// CreateImage makes a sampled image and leaves every level in
// ShaderReadOnlyOptimal, so unfilled levels can be bound at once.
func (b *Backend) CreateImage(desc metadata.ImageDesc) (metadata.ImageHandle, error) {
	if desc.Width == 0 || desc.Height == 0 || desc.MipLevels == 0 {
		return 0, fmt.Errorf("image %dx%d with %d levels: %w", desc.Width, desc.Height, desc.MipLevels, core.ErrInvalidParameter)
	}
	if desc.Format.Info().Depth {
		return 0, fmt.Errorf("sampled depth image: %w", core.ErrUnsupportedFormat)
	}
	format, err := imageFormat(desc.Format)
	if err != nil {
		return 0, err
	}
	img, err := ImageCreate(b.context, desc.Width, desc.Height, desc.MipLevels, format,
		vk.ImageUsageFlags(vk.ImageUsageSampledBit|vk.ImageUsageTransferDstBit),
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return 0, err
	}

	device := b.context.Device
	cb, err := AllocateAndBeginSingleUse(b.context, device.GraphicsCommandPool)
	if err != nil {
		img.Destroy(b.context)
		return 0, err
	}
	img.TransitionLayout(cb, vk.ImageLayoutUndefined, vk.ImageLayoutShaderReadOnlyOptimal, 0, desc.MipLevels)
	if err := cb.EndSingleUse(b.context, device.GraphicsCommandPool, device.GraphicsQueue); err != nil {
		img.Destroy(b.context)
		return 0, err
	}
	return metadata.ImageHandle(b.images.Insert(vulkanImage{VulkanImage: img, format: desc.Format})), nil
}

func (b *Backend) UploadImage(h metadata.ImageHandle, data metadata.ImageData) error {
	img, ok := b.images.Get(uint64(h))
	if !ok {
		return fmt.Errorf("image %d: %w", h, core.ErrInvalidParameter)
	}
	if data.Level >= img.MipLevels {
		return fmt.Errorf("level %d of %d: %w", data.Level, img.MipLevels, core.ErrInvalidParameter)
	}
	w, hgt := img.LevelExtent(data.Level)
	if want := img.format.LevelSize(w, hgt); uint64(len(data.Pixels)) != want {
		return fmt.Errorf("level %d is %d bytes, want %d: %w", data.Level, len(data.Pixels), want, core.ErrInvalidParameter)
	}

	ctx := b.context
	staging, err := BufferCreate(ctx, uint64(len(data.Pixels)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	defer func() {
		staging.Destroy(ctx)
		vk.FreeMemory(ctx.Device.LogicalDevice, staging.Memory, ctx.Allocator)
	}()
	if err := staging.LoadData(ctx, 0, data.Pixels); err != nil {
		return err
	}

	device := ctx.Device
	cb, err := AllocateAndBeginSingleUse(ctx, device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	img.TransitionLayout(cb, vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutTransferDstOptimal, data.Level, 1)
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: img.Aspect,
			MipLevel:   data.Level,
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: w, Height: hgt, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb.Handle, staging.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	img.TransitionLayout(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal, data.Level, 1)
	return cb.EndSingleUse(ctx, device.GraphicsCommandPool, device.GraphicsQueue)
}

func (b *Backend) DestroyImage(h metadata.ImageHandle) {
	if img, err := b.images.Remove(uint64(h)); err == nil {
		img.Destroy(b.context)
	}
}

// BeginCommands resets the frame command buffer and opens the render pass.
// The first frame always clears since the targets hold nothing yet.
func (b *Backend) BeginCommands(clear metadata.ClearValues) (renderer.CommandBuffer, error) {
	cb := b.frame
	if cb.State == COMMAND_BUFFER_STATE_RECORDING || cb.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return nil, fmt.Errorf("frame command buffer already recording: %w", core.ErrInvalidParameter)
	}
	if err := cb.Reset(); err != nil {
		return nil, err
	}
	if err := cb.Begin(true); err != nil {
		return nil, err
	}

	ctx := b.context
	pass := ctx.LoadPass
	if clear.Clear || !b.rendered {
		pass = ctx.ClearPass
	}
	pass.RenderpassBegin(cb, ctx.Framebuffer.Handle, clear.Color, clear.Depth, clear.Stencil)
	cb.SetViewport(metadata.Viewport{Width: ctx.FramebufferWidth, Height: ctx.FramebufferHeight, MaxZ: 1})
	cb.SetScissor(metadata.Rect{Right: int32(ctx.FramebufferWidth), Bottom: int32(ctx.FramebufferHeight)})
	return cb, nil
}

// Submit sends the frame command buffer and waits on its fence. cb is
// ended first if the caller has not done so.
func (b *Backend) Submit(cb renderer.CommandBuffer) error {
	vcb, ok := cb.(*VulkanCommandBuffer)
	if !ok || vcb != b.frame {
		return fmt.Errorf("foreign command buffer: %w", core.ErrInvalidParameter)
	}
	if vcb.State != COMMAND_BUFFER_STATE_RECORDING_ENDED {
		if err := vcb.End(); err != nil {
			return err
		}
	}

	ctx := b.context
	if err := b.fence.FenceReset(ctx); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{vcb.Handle},
	}
	err := ctx.Locks.SafeCall(QueueManagement, func() error {
		return check("vkQueueSubmit", vk.QueueSubmit(ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, b.fence.Handle))
	})
	if err != nil {
		return err
	}
	vcb.UpdateSubmitted()
	if err := b.fence.FenceWait(ctx, fenceTimeout); err != nil {
		return err
	}
	b.rendered = true
	return nil
}

func (b *Backend) WaitIdle() error {
	if b.context.Device == nil || b.context.Device.LogicalDevice == nil {
		return nil
	}
	return check("vkDeviceWaitIdle", vk.DeviceWaitIdle(b.context.Device.LogicalDevice))
}

// ReadPixels copies the color target back to host memory.
func (b *Backend) ReadPixels() (*image.RGBA, error) {
	if !b.rendered {
		return nil, fmt.Errorf("nothing rendered yet: %w", core.ErrInvalidParameter)
	}
	ctx := b.context
	device := ctx.Device
	w, h := ctx.FramebufferWidth, ctx.FramebufferHeight

	cb, err := AllocateAndBeginSingleUse(ctx, device.GraphicsCommandPool)
	if err != nil {
		return nil, err
	}
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: w, Height: h, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(cb.Handle, ctx.ColorTarget.Handle, vk.ImageLayoutTransferSrcOptimal, b.readback.Handle, 1, []vk.BufferImageCopy{region})
	if err := cb.EndSingleUse(ctx, device.GraphicsCommandPool, device.GraphicsQueue); err != nil {
		return nil, err
	}

	pixels, err := b.readback.ReadData(ctx, int(w*h*4))
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	copy(img.Pix, pixels)
	return img, nil
}

// Destroy waits for the device and releases everything in reverse order of
// creation, including handles callers never destroyed.
func (b *Backend) Destroy() {
	ctx := b.context
	core.LogDebug("Destroying Vulkan backend...")

	if ctx.Device != nil && ctx.Device.LogicalDevice != nil {
		if err := b.WaitIdle(); err != nil {
			core.LogWarn("wait idle on destroy: %s", err)
		}
		dev := ctx.Device.LogicalDevice

		b.drain()

		if b.readback != nil {
			b.readback.Destroy(ctx)
			vk.FreeMemory(dev, b.readback.Memory, ctx.Allocator)
			b.readback = nil
		}
		if b.fence != nil {
			b.fence.FenceDestroy(ctx)
		}
		if b.frame != nil {
			b.frame.Free(ctx, ctx.Device.GraphicsCommandPool)
		}
		if ctx.PipelineCache != nil {
			vk.DestroyPipelineCache(dev, ctx.PipelineCache, ctx.Allocator)
			ctx.PipelineCache = nil
		}
		if ctx.DescriptorPool != nil {
			vk.DestroyDescriptorPool(dev, ctx.DescriptorPool, ctx.Allocator)
			ctx.DescriptorPool = nil
		}
		if ctx.Framebuffer != nil {
			ctx.Framebuffer.Destroy(ctx)
		}
		for _, pass := range []*VulkanRenderpass{ctx.LoadPass, ctx.ClearPass} {
			if pass != nil {
				pass.RenderpassDestroy(ctx)
			}
		}
		for _, target := range []*VulkanImage{ctx.DepthTarget, ctx.ColorTarget} {
			if target != nil {
				target.Destroy(ctx)
			}
		}
	}
	DeviceDestroy(ctx)

	if ctx.debugCallback != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugCallback, ctx.Allocator)
		ctx.debugCallback = vk.NullDebugReportCallback
	}
	if ctx.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	}
}

// drain destroys every object still in a handle table. Descriptor sets go
// with the pool.
func (b *Backend) drain() {
	ctx := b.context
	dev := ctx.Device.LogicalDevice
	b.pipelines.Each(func(_ uint64, p vk.Pipeline) { vk.DestroyPipeline(dev, p, ctx.Allocator) })
	b.pipelineLayouts.Each(func(_ uint64, l vk.PipelineLayout) { vk.DestroyPipelineLayout(dev, l, ctx.Allocator) })
	b.setLayouts.Each(func(_ uint64, l vk.DescriptorSetLayout) { vk.DestroyDescriptorSetLayout(dev, l, ctx.Allocator) })
	b.shaderModules.Each(func(_ uint64, m vk.ShaderModule) { vk.DestroyShaderModule(dev, m, ctx.Allocator) })
	b.samplers.Each(func(_ uint64, s vk.Sampler) { vk.DestroySampler(dev, s, ctx.Allocator) })
	b.images.Each(func(_ uint64, img vulkanImage) { img.Destroy(ctx) })
	b.buffers.Each(func(_ uint64, buf *VulkanBuffer) { buf.Destroy(ctx) })
	b.memories.Each(func(_ uint64, m vk.DeviceMemory) { vk.FreeMemory(dev, m, ctx.Allocator) })

	b.pipelines = containers.NewHandleTable[vk.Pipeline]()
	b.pipelineLayouts = containers.NewHandleTable[vk.PipelineLayout]()
	b.setLayouts = containers.NewHandleTable[vk.DescriptorSetLayout]()
	b.shaderModules = containers.NewHandleTable[vk.ShaderModule]()
	b.samplers = containers.NewHandleTable[vk.Sampler]()
	b.descriptorSets = containers.NewHandleTable[vk.DescriptorSet]()
	b.images = containers.NewHandleTable[vulkanImage]()
	b.buffers = containers.NewHandleTable[*VulkanBuffer]()
	b.memories = containers.NewHandleTable[vk.DeviceMemory]()
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
