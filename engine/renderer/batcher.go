package renderer

import (
	"fmt"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/cache"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
	"github.com/spaghettifunk/ffbridge/engine/renderer/state"
)

// DrawHandle names one pending draw. It is only valid until the next flush.
type DrawHandle uint64

func makeDrawHandle(epoch uint32, index int) DrawHandle {
	return DrawHandle(uint64(epoch)<<32 | uint64(uint32(index)))
}

func (h DrawHandle) split() (uint32, int) {
	return uint32(h >> 32), int(uint32(h))
}

// pipelineSnapshot is the pipeline-relevant state at capture time. Draws
// captured while the pipeline generation is unchanged share it, so the
// pipeline is derived at most once per snapshot.
type pipelineSnapshot struct {
	gen     uint64
	key     cache.PipelineKey
	derived bool
	entry   *cache.PipelineEntry
	err     error
}

type uniformSnapshot struct {
	gen      uint64
	vertex   []byte
	fragment []byte
}

type resourceSnapshot struct {
	gen      uint64
	textures [metadata.MaxSamplers]metadata.ImageHandle
	samplers [metadata.MaxSamplers]metadata.SamplerDesc
}

type dynamicSnapshot struct {
	gen       uint64
	push      [metadata.PushConstantSize]byte
	viewport  metadata.Viewport
	scissor   metadata.Rect
	biasConst float32
	biasSlope float32
	streams   [metadata.MaxStreams]state.StreamBinding
	indices   state.IndexBinding
}

type drawArgs struct {
	set         bool
	indexed     bool
	vertexCount uint32
	firstVertex uint32
	indexCount  uint32
	firstIndex  uint32
	baseVertex  int32
}

// DrawContext is one pending draw.
type DrawContext struct {
	Primitive metadata.PrimitiveType
	pipeline  *pipelineSnapshot
	uniforms  *uniformSnapshot
	resources *resourceSnapshot
	dynamic   *dynamicSnapshot
	args      drawArgs
}

// Key returns the pipeline key captured for the draw.
func (c *DrawContext) Key() cache.PipelineKey {
	return c.pipeline.key
}

// batcher accumulates draws between flushes. It makes no backend calls.
type batcher struct {
	state   *state.DeviceState
	pending []*DrawContext
	epoch   uint32

	lastPipeline [metadata.PT_TRIANGLEFAN + 1]*pipelineSnapshot
	lastUniforms *uniformSnapshot
	lastRes      *resourceSnapshot
	lastDynamic  *dynamicSnapshot

	captures    uint64
	derivations uint64
}

func newBatcher(s *state.DeviceState) *batcher {
	return &batcher{state: s, epoch: 1}
}

func (b *batcher) Len() int {
	return len(b.pending)
}

// begin appends a new draw capturing the current state. Snapshots whose
// generation did not move since the previous draw are shared.
func (b *batcher) begin(primitive metadata.PrimitiveType) (DrawHandle, error) {
	if !primitive.Valid() {
		return 0, fmt.Errorf("BeginDraw: primitive type %d: %w", primitive, core.ErrInvalidParameter)
	}
	gens := b.state.Generations()

	ps := b.lastPipeline[primitive]
	if ps == nil || ps.gen != gens.Pipeline {
		key, err := b.pipelineKey(primitive)
		if err != nil {
			return 0, err
		}
		ps = &pipelineSnapshot{gen: gens.Pipeline, key: key}
		b.lastPipeline[primitive] = ps
		b.captures++
	}
	if b.lastUniforms == nil || b.lastUniforms.gen != gens.Uniform {
		vertex, fragment := b.state.UniformData()
		b.lastUniforms = &uniformSnapshot{gen: gens.Uniform, vertex: vertex, fragment: fragment}
	}
	if b.lastRes == nil || b.lastRes.gen != gens.Resource {
		v := b.state.Values()
		b.lastRes = &resourceSnapshot{gen: gens.Resource, textures: v.Textures, samplers: v.Samplers}
	}
	if b.lastDynamic == nil || b.lastDynamic.gen != gens.Dynamic {
		v := b.state.Values()
		d := &dynamicSnapshot{gen: gens.Dynamic, viewport: v.Viewport, scissor: v.Scissor, streams: v.Streams, indices: v.Indices}
		d.biasConst, d.biasSlope = b.state.DepthBias()
		b.state.PutTransforms(&d.push)
		b.lastDynamic = d
	}

	b.pending = append(b.pending, &DrawContext{
		Primitive: primitive,
		pipeline:  ps,
		uniforms:  b.lastUniforms,
		resources: b.lastRes,
		dynamic:   b.lastDynamic,
	})
	return makeDrawHandle(b.epoch, len(b.pending)-1), nil
}

func (b *batcher) pipelineKey(primitive metadata.PrimitiveType) (cache.PipelineKey, error) {
	layout, err := b.state.VertexLayout()
	if err != nil {
		return cache.PipelineKey{}, fmt.Errorf("BeginDraw: vertex layout: %w", err)
	}
	v := b.state.Values()
	return cache.PipelineKey{
		Topology:     primitive.Topology(),
		VertexShader: v.VertexShader,
		PixelShader:  v.PixelShader,
		FVF:          v.FVF,
		Layout:       layout,
		Constants:    b.state.SpecializationConstants(layout),
		CullMode:     v.RS.CullMode,
		FillMode:     v.RS.FillMode,
	}, nil
}

func (b *batcher) lookup(h DrawHandle) (*DrawContext, error) {
	epoch, index := h.split()
	if epoch != b.epoch || index >= len(b.pending) {
		return nil, fmt.Errorf("draw handle %#x is stale: %w", uint64(h), core.ErrInvalidParameter)
	}
	return b.pending[index], nil
}

func (b *batcher) drawPrimitive(h DrawHandle, startVertex, vertexCount uint32) error {
	ctx, err := b.lookup(h)
	if err != nil {
		return err
	}
	if vertexCount == 0 {
		return fmt.Errorf("DrawPrimitive: no vertices: %w", core.ErrInvalidParameter)
	}
	ctx.args = drawArgs{set: true, vertexCount: vertexCount, firstVertex: startVertex}
	return nil
}

// drawIndexed records an indexed draw. minIndex and numVertices are range
// hints and are not needed by the modern API.
func (b *batcher) drawIndexed(h DrawHandle, baseVertex int32, minIndex, numVertices, startIndex, indexCount uint32) error {
	ctx, err := b.lookup(h)
	if err != nil {
		return err
	}
	if indexCount == 0 {
		return fmt.Errorf("DrawIndexedPrimitive: no indices: %w", core.ErrInvalidParameter)
	}
	if ctx.dynamic.indices.Buffer == 0 {
		return fmt.Errorf("DrawIndexedPrimitive: no index buffer bound: %w", core.ErrInvalidParameter)
	}
	ctx.args = drawArgs{set: true, indexed: true, indexCount: indexCount, firstIndex: startIndex, baseVertex: baseVertex}
	return nil
}

func (b *batcher) usesShader(id metadata.ShaderID) bool {
	for _, ctx := range b.pending {
		if ctx.pipeline.key.VertexShader == id || ctx.pipeline.key.PixelShader == id {
			return true
		}
	}
	return false
}

// reset returns to idle. Handles from the finished epoch become stale and
// the next draw derives fresh snapshots.
func (b *batcher) reset() {
	clear(b.pending)
	b.pending = b.pending[:0]
	b.epoch++
	b.lastPipeline = [metadata.PT_TRIANGLEFAN + 1]*pipelineSnapshot{}
	b.lastUniforms = nil
	b.lastRes = nil
	b.lastDynamic = nil
}
