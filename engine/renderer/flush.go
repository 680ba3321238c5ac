package renderer

import (
	"errors"
	"fmt"

	"github.com/goforj/godump"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// FlushStats accumulates over the lifetime of a device.
type FlushStats struct {
	Flushes         uint64
	Submits         uint64
	DrawsSubmitted  uint64
	DrawsDropped    uint64
	DrawsSkipped    uint64
	PipelineBinds   uint64
	DescriptorBinds uint64
	Derivations     uint64
	Snapshots       uint64
	PipelinesCached int
	SamplersCached  int
	ContextsCached  int
	PipelinesBuilt  uint64
	SamplersBuilt   uint64
	ContextsBuilt   uint64
}

// bindState tracks what the command buffer currently has bound.
type bindState struct {
	pipeline metadata.PipelineHandle
	layout   metadata.PipelineLayoutHandle
	set      metadata.DescriptorSetHandle
	dynamic  *dynamicSnapshot
	streams  [metadata.MaxStreams]metadata.BufferHandle
	offsets  [metadata.MaxStreams]uint64
	index    metadata.BufferHandle
}

// Flush records every pending draw in order into one command buffer and
// submits it. An empty batch is a no-op. A draw that cannot be prepared is
// dropped without affecting the others; a failed submit loses the device.
func (d *Device) Flush() error {
	if err := d.usable(); err != nil {
		return err
	}
	if d.batch.Len() == 0 {
		return nil
	}
	return d.submit()
}

func (d *Device) submit() error {
	defer d.finishFlush()
	d.stats.Flushes++

	cb, err := d.backend.BeginCommands(d.clear)
	if err != nil {
		if errors.Is(err, core.ErrDeviceLost) {
			return d.markLost(err)
		}
		return fmt.Errorf("flush: begin commands: %w: %w", core.ErrResourceCreationFailed, err)
	}
	d.clear.Clear = false

	var bound bindState
	for i, ctx := range d.batch.pending {
		if !ctx.args.set {
			d.stats.DrawsSkipped++
			continue
		}
		if err := d.record(cb, ctx, &bound); err != nil {
			d.stats.DrawsDropped++
			core.LogWarn("flush: dropping draw %d: %v", i, err)
			core.LogDebug("flush: dropped draw key: %s", godump.DumpStr(ctx.pipeline.key))
			continue
		}
		d.stats.DrawsSubmitted++
	}

	if err := cb.End(); err != nil {
		return d.markLost(err)
	}
	if err := d.backend.Submit(cb); err != nil {
		return d.markLost(err)
	}
	d.stats.Submits++
	return nil
}

// finishFlush returns the batcher to idle and releases objects that left
// the caches while the batch was recorded. Submit waits for completion, so
// nothing still references them.
func (d *Device) finishFlush() {
	d.batch.reset()
	d.resources.retire(d.state.Generations().Uniform)
	d.graveyard.Drain()
}

func (d *Device) record(cb CommandBuffer, ctx *DrawContext, bound *bindState) error {
	ps := ctx.pipeline
	if !ps.derived {
		ps.entry, ps.err = d.pipelines.GetOrCreate(ps.key)
		ps.derived = true
		d.batch.derivations++
	}
	if ps.err != nil {
		return ps.err
	}
	entry := ps.entry

	mask := entry.Key.Layout.StreamMask()
	for s := 0; s < metadata.MaxStreams; s++ {
		if mask&(1<<s) != 0 && ctx.dynamic.streams[s].Buffer == 0 {
			return fmt.Errorf("stream %d read by the vertex layout has no buffer: %w", s, core.ErrInvalidParameter)
		}
	}

	rc, err := d.resources.acquire(entry, ctx.uniforms, ctx.resources)
	if err != nil {
		return err
	}

	if entry.Pipeline != bound.pipeline {
		cb.BindPipeline(entry.Pipeline)
		bound.pipeline = entry.Pipeline
		d.stats.PipelineBinds++
	}
	if rc.Set != bound.set || entry.Layout != bound.layout {
		cb.BindDescriptorSet(entry.Layout, rc.Set)
		bound.set, bound.layout = rc.Set, entry.Layout
		d.stats.DescriptorBinds++
	}

	dyn := ctx.dynamic
	if dyn != bound.dynamic {
		cb.SetViewport(dyn.viewport)
		cb.SetScissor(dyn.scissor)
		cb.SetDepthBias(dyn.biasConst, dyn.biasSlope)
		bound.dynamic = dyn
	}
	for s := 0; s < metadata.MaxStreams; s++ {
		sb := dyn.streams[s]
		if mask&(1<<s) == 0 || (bound.streams[s] == sb.Buffer && bound.offsets[s] == sb.Offset) {
			continue
		}
		cb.BindVertexBuffers(uint32(s), []metadata.BufferHandle{sb.Buffer}, []uint64{sb.Offset})
		bound.streams[s], bound.offsets[s] = sb.Buffer, sb.Offset
	}

	cb.PushConstants(entry.Layout, metadata.ShaderStageVertex, 0, dyn.push[:])

	a := ctx.args
	if a.indexed {
		if bound.index != dyn.indices.Buffer {
			cb.BindIndexBuffer(dyn.indices.Buffer, 0, dyn.indices.Type)
			bound.index = dyn.indices.Buffer
		}
		cb.DrawIndexed(a.indexCount, 1, a.firstIndex, a.baseVertex, 0)
	} else {
		cb.Draw(a.vertexCount, 1, a.firstVertex, 0)
	}
	return nil
}
