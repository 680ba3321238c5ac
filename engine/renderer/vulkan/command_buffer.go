package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanCommandBuffer is a primary command buffer. Inside a render pass it
// records draw work for the renderer, resolving handles through the
// backend that issued them. The first unknown handle is kept and returned
// by End.
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState

	backend *Backend
	pass    *VulkanRenderpass
	err     error
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	handles := make([]vk.CommandBuffer, 1)
	err := context.Locks.SafeCall(CommandPoolManagement, func() error {
		return check("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles))
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.Handle == nil {
		return
	}
	context.Locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}

	if err := check("vkBeginCommandBuffer", vk.BeginCommandBuffer(v.Handle, &beginInfo)); err != nil {
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	v.err = nil
	return nil
}

// End closes an open render pass and finishes recording.
func (v *VulkanCommandBuffer) End() error {
	if v.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		v.pass.RenderpassEnd(v)
	}
	if err := check("vkEndCommandBuffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return v.err
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() error {
	if err := check("vkResetCommandBuffer", vk.ResetCommandBuffer(v.Handle, 0)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

/**
 * Allocates and begins recording a single use command buffer.
 */
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to and waits for queue operation and frees the provided command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue) error {
	defer v.Free(context, pool)

	if err := v.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	return context.Locks.SafeCall(QueueManagement, func() error {
		if err := check("vkQueueSubmit", vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence)); err != nil {
			return err
		}
		// Wait for it to finish
		return check("vkQueueWaitIdle", vk.QueueWaitIdle(queue))
	})
}

func (v *VulkanCommandBuffer) fail(format string, args ...interface{}) {
	if v.err == nil {
		v.err = fmt.Errorf(format, args...)
	}
}

func (v *VulkanCommandBuffer) BindPipeline(p metadata.PipelineHandle) {
	pipeline, ok := v.backend.pipelines.Get(uint64(p))
	if !ok {
		v.fail("bind pipeline %d: %w", p, core.ErrInvalidParameter)
		return
	}
	vk.CmdBindPipeline(v.Handle, vk.PipelineBindPointGraphics, pipeline)
}

func (v *VulkanCommandBuffer) BindDescriptorSet(layout metadata.PipelineLayoutHandle, set metadata.DescriptorSetHandle) {
	l, ok := v.backend.pipelineLayouts.Get(uint64(layout))
	s, ok2 := v.backend.descriptorSets.Get(uint64(set))
	if !ok || !ok2 {
		v.fail("bind descriptor set %d with layout %d: %w", set, layout, core.ErrInvalidParameter)
		return
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, l, 0, 1, []vk.DescriptorSet{s}, 0, nil)
}

func (v *VulkanCommandBuffer) PushConstants(layout metadata.PipelineLayoutHandle, stages metadata.ShaderStage, offset uint32, data []byte) {
	l, ok := v.backend.pipelineLayouts.Get(uint64(layout))
	if !ok {
		v.fail("push constants with layout %d: %w", layout, core.ErrInvalidParameter)
		return
	}
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(v.Handle, l, shaderStages(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (v *VulkanCommandBuffer) SetViewport(vp metadata.Viewport) {
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{{
		X:        float32(vp.X),
		Y:        float32(vp.Y),
		Width:    float32(vp.Width),
		Height:   float32(vp.Height),
		MinDepth: vp.MinZ,
		MaxDepth: vp.MaxZ,
	}})
}

func (v *VulkanCommandBuffer) SetScissor(r metadata.Rect) {
	left, top := max(r.Left, 0), max(r.Top, 0)
	width, height := max(r.Right-left, 0), max(r.Bottom-top, 0)
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: left, Y: top},
		Extent: vk.Extent2D{Width: uint32(width), Height: uint32(height)},
	}})
}

func (v *VulkanCommandBuffer) SetDepthBias(constant, slope float32) {
	vk.CmdSetDepthBias(v.Handle, constant, 0, slope)
}

func (v *VulkanCommandBuffer) BindVertexBuffers(first uint32, buffers []metadata.BufferHandle, offsets []uint64) {
	handles := make([]vk.Buffer, len(buffers))
	vkOffsets := make([]vk.DeviceSize, len(buffers))
	for i, h := range buffers {
		buf, ok := v.backend.buffers.Get(uint64(h))
		if !ok {
			v.fail("bind vertex buffer %d: %w", h, core.ErrInvalidParameter)
			return
		}
		handles[i] = buf.Handle
		vkOffsets[i] = vk.DeviceSize(offsets[i])
	}
	vk.CmdBindVertexBuffers(v.Handle, first, uint32(len(handles)), handles, vkOffsets)
}

func (v *VulkanCommandBuffer) BindIndexBuffer(buffer metadata.BufferHandle, offset uint64, t metadata.IndexType) {
	buf, ok := v.backend.buffers.Get(uint64(buffer))
	if !ok {
		v.fail("bind index buffer %d: %w", buffer, core.ErrInvalidParameter)
		return
	}
	vk.CmdBindIndexBuffer(v.Handle, buf.Handle, vk.DeviceSize(offset), indexType(t))
}

func (v *VulkanCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(v.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(v.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
