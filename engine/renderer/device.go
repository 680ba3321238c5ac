package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"

	"github.com/spaghettifunk/ffbridge/engine/config"
	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/math"
	"github.com/spaghettifunk/ffbridge/engine/renderer/cache"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
	"github.com/spaghettifunk/ffbridge/engine/renderer/state"
)

var errDestroyed = fmt.Errorf("device destroyed: %w", core.ErrDeviceLost)

type Option func(*Device)

// WithTranslator replaces the SPIR-V translator used for client shaders.
func WithTranslator(t ShaderTranslator) Option {
	return func(d *Device) { d.translator = t }
}

// WithShaderCompiler replaces the WGSL compiler of the fixed-function
// shader library.
func WithShaderCompiler(c Compiler) Option {
	return func(d *Device) { d.library = NewShaderLibrary(c) }
}

// WithLostHandler is called once when the device is lost.
func WithLostHandler(fn func(id uuid.UUID, err error)) Option {
	return func(d *Device) { d.onLost = fn }
}

// PixelReader is implemented by backends that can copy the render target
// back to host memory.
type PixelReader interface {
	ReadPixels() (*image.RGBA, error)
}

type bufferRecord struct {
	memory metadata.MemoryHandle
	desc   metadata.BufferDesc
	index  metadata.IndexType
}

// Device is one legacy rendering device translated onto a Backend. It is
// owned by a single worker and is not safe for concurrent use.
type Device struct {
	id         uuid.UUID
	cfg        config.DeviceConfig
	cacheCfg   config.CacheConfig
	backend    Backend
	translator ShaderTranslator
	library    *ShaderLibrary
	onLost     func(uuid.UUID, error)

	state     *state.DeviceState
	batch     *batcher
	graveyard *cache.Graveyard
	pipelines *cache.PipelineCache
	samplers  *cache.SamplerCache
	resources *resourceContexts
	shaders   *core.Registry[Shader]

	buffers  map[metadata.BufferHandle]bufferRecord
	images   map[metadata.ImageHandle]metadata.ImageDesc
	fallback metadata.ImageHandle

	clear   metadata.ClearValues
	inScene bool
	stats   FlushStats
	frames  *core.MetricsState
	clock   *core.Clock
	lost    error
}

// NewDevice builds the translation core on top of backend. The device takes
// ownership of the backend and destroys it in Destroy.
func NewDevice(backend Backend, cfg *config.Config, opts ...Option) (*Device, error) {
	d := &Device{
		id:         uuid.New(),
		cfg:        cfg.Device,
		cacheCfg:   cfg.Cache,
		backend:    backend,
		translator: SPIRVTranslator{},
		state:      state.New(cfg.Device.Width, cfg.Device.Height),
		graveyard:  cache.NewGraveyard(),
		shaders:    core.NewRegistry[Shader](),
		buffers:    make(map[metadata.BufferHandle]bufferRecord),
		images:     make(map[metadata.ImageHandle]metadata.ImageDesc),
		clear:      metadata.ClearValues{Clear: true, Color: [4]float32{0, 0, 0, 1}, Depth: 1},
		frames:     core.NewMetricsState(),
		clock:      core.NewClock(),
	}
	d.clock.Start()
	for _, opt := range opts {
		opt(d)
	}
	if d.library == nil {
		d.library = NewShaderLibrary(nil)
	}
	d.batch = newBatcher(d.state)

	var err error
	builder := &pipelineBuilder{backend: backend, library: d.library, shaders: d.shaders}
	if d.pipelines, err = cache.NewPipelineCache(builder, cfg.Cache.PipelineCapacity, d.graveyard); err != nil {
		return nil, err
	}
	if d.samplers, err = cache.NewSamplerCache(backend, cfg.Cache.SamplerCapacity, d.graveyard); err != nil {
		return nil, err
	}
	if d.resources, err = newResourceContexts(backend, d.samplers, cfg.Cache.ResourceCapacity, d.graveyard); err != nil {
		return nil, err
	}
	// contexts are built on a pipeline's set layout and on cached samplers
	d.pipelines.OnRelease(func(e *cache.PipelineEntry) { d.resources.dropSetLayout(e.SetLayout) })
	d.samplers.OnRelease(func(e *cache.SamplerEntry) { d.resources.dropSampler(e.Handle) })

	if err := d.createFallbackImage(); err != nil {
		return nil, err
	}
	core.LogInfo("device %s created (%dx%d) on %s", d.id, cfg.Device.Width, cfg.Device.Height, backend.DeviceIdentity().Name)
	return d, nil
}

// createFallbackImage makes the opaque white texel read by stages without
// a bound texture.
func (d *Device) createFallbackImage() error {
	h, err := d.CreateTexture(1, 1, 1, metadata.FMT_A8R8G8B8)
	if err != nil {
		return err
	}
	if err := d.WriteTexture(h, 0, []byte{0xff, 0xff, 0xff, 0xff}); err != nil {
		d.ReleaseTexture(h)
		return err
	}
	d.fallback = h
	d.resources.fallback = h
	return nil
}

func (d *Device) ID() uuid.UUID {
	return d.id
}

func (d *Device) Backend() Backend {
	return d.backend
}

// State exposes the device state for inspection.
func (d *Device) State() *state.DeviceState {
	return d.state
}

// Lost returns the error that lost the device, or nil.
func (d *Device) Lost() error {
	return d.lost
}

func (d *Device) usable() error {
	return d.lost
}

func (d *Device) markLost(err error) error {
	if d.lost != nil {
		return d.lost
	}
	if errors.Is(err, core.ErrDeviceLost) {
		d.lost = err
	} else {
		d.lost = fmt.Errorf("%w: %w", core.ErrDeviceLost, err)
	}
	core.LogError("device %s lost: %v", d.id, err)
	if d.onLost != nil {
		d.onLost(d.id, d.lost)
	}
	return d.lost
}

func (d *Device) Stats() FlushStats {
	s := d.stats
	s.Derivations = d.batch.derivations
	s.Snapshots = d.batch.captures
	s.PipelinesCached = d.pipelines.Len()
	s.SamplersCached = d.samplers.Len()
	s.ContextsCached = d.resources.Len()
	s.PipelinesBuilt = d.pipelines.Stats().Created
	s.SamplersBuilt = d.samplers.Stats().Created
	s.ContextsBuilt = d.resources.created
	return s
}

// FrameMetrics returns frames per second and the rolling average frame
// time in milliseconds, measured between presents.
func (d *Device) FrameMetrics() (float64, float64) {
	return d.frames.Frame()
}

// PendingDraws is the number of draws waiting for the next flush.
func (d *Device) PendingDraws() int {
	return d.batch.Len()
}

// WarmUp compiles the fixed-function shaders the current state would use.
func (d *Device) WarmUp(ctx context.Context) error {
	if err := d.usable(); err != nil {
		return err
	}
	layout, err := d.state.VertexLayout()
	if err != nil {
		return err
	}
	c := d.state.SpecializationConstants(layout)
	return d.library.WarmUp(ctx, []Variant{
		{Stage: metadata.ShaderStageVertex, Constants: c, Inputs: layout.LocationMask()},
		{Stage: metadata.ShaderStageFragment, Constants: c},
	})
}

func (d *Device) SetTransform(ts metadata.TransformState, m math.Mat4) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetTransform(ts, m)
}

func (d *Device) GetTransform(ts metadata.TransformState) (math.Mat4, error) {
	if err := d.usable(); err != nil {
		return math.Mat4{}, err
	}
	return d.state.GetTransform(ts)
}

func (d *Device) SetLight(index int, l metadata.Light) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetLight(index, l)
}

func (d *Device) LightEnable(index int, enable bool) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.LightEnable(index, enable)
}

func (d *Device) SetMaterial(m metadata.Material) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetMaterial(m)
}

func (d *Device) SetRenderState(rs metadata.RenderStateType, value uint32) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetRenderState(rs, value)
}

func (d *Device) SetTextureStageState(stage int, t metadata.TextureStageStateType, value uint32) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetTextureStageState(stage, t, value)
}

func (d *Device) SetSamplerState(slot int, t metadata.SamplerStateType, value uint32) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetSamplerState(slot, t, value)
}

func (d *Device) SetTexture(slot int, image metadata.ImageHandle) error {
	if err := d.usable(); err != nil {
		return err
	}
	if _, ok := d.images[image]; image != 0 && !ok {
		return fmt.Errorf("SetTexture: unknown image %d: %w", image, core.ErrInvalidParameter)
	}
	return d.state.SetTexture(slot, image)
}

func (d *Device) SetVertexShader(id metadata.ShaderID) error {
	if err := d.usable(); err != nil {
		return err
	}
	if err := d.checkShader(id, metadata.ShaderStageVertex); err != nil {
		return err
	}
	return d.state.SetVertexShader(id)
}

func (d *Device) SetPixelShader(id metadata.ShaderID) error {
	if err := d.usable(); err != nil {
		return err
	}
	if err := d.checkShader(id, metadata.ShaderStageFragment); err != nil {
		return err
	}
	return d.state.SetPixelShader(id)
}

func (d *Device) SetVertexShaderConstantF(start int, data []math.Vec4) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetVertexShaderConstantF(start, data)
}

func (d *Device) SetPixelShaderConstantF(start int, data []math.Vec4) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetPixelShaderConstantF(start, data)
}

func (d *Device) SetFVF(f metadata.FVF) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetFVF(f)
}

func (d *Device) SetVertexDeclaration(decl []metadata.VertexElement) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetVertexDeclaration(decl)
}

func (d *Device) SetStreamSource(stream int, buffer metadata.BufferHandle, offset uint64, stride uint16) error {
	if err := d.usable(); err != nil {
		return err
	}
	if rec, ok := d.buffers[buffer]; buffer != 0 && (!ok || rec.desc.Usage&metadata.BufferUsageVertex == 0) {
		return fmt.Errorf("SetStreamSource: %d is not a vertex buffer: %w", buffer, core.ErrInvalidParameter)
	}
	return d.state.SetStreamSource(stream, buffer, offset, stride)
}

// SetIndices binds an index buffer created by CreateIndexBuffer.
func (d *Device) SetIndices(buffer metadata.BufferHandle) error {
	if err := d.usable(); err != nil {
		return err
	}
	var t metadata.IndexType
	if buffer != 0 {
		rec, ok := d.buffers[buffer]
		if !ok || rec.desc.Usage&metadata.BufferUsageIndex == 0 {
			return fmt.Errorf("SetIndices: %d is not an index buffer: %w", buffer, core.ErrInvalidParameter)
		}
		t = rec.index
	}
	return d.state.SetIndices(buffer, t)
}

func (d *Device) SetViewport(vp metadata.Viewport) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetViewport(vp)
}

func (d *Device) SetScissorRect(r metadata.Rect) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.state.SetScissorRect(r)
}

// CaptureStateBlock snapshots the whole client state.
func (d *Device) CaptureStateBlock() (*state.StateBlock, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}
	return d.state.Capture()
}

func (d *Device) ApplyStateBlock(sb *state.StateBlock) error {
	if err := d.usable(); err != nil {
		return err
	}
	if sb == nil {
		return fmt.Errorf("ApplyStateBlock: nil block: %w", core.ErrInvalidParameter)
	}
	d.state.Apply(sb)
	d.unbindReleased()
	return nil
}

// unbindReleased clears bindings to objects released after a state block
// was captured.
func (d *Device) unbindReleased() {
	v := d.state.Values()
	for slot, t := range v.Textures {
		if _, ok := d.images[t]; t != 0 && !ok {
			d.state.SetTexture(slot, 0)
		}
	}
	for i, st := range v.Streams {
		if _, ok := d.buffers[st.Buffer]; st.Buffer != 0 && !ok {
			d.state.SetStreamSource(i, 0, 0, st.Stride)
		}
	}
	if _, ok := d.buffers[v.Indices.Buffer]; v.Indices.Buffer != 0 && !ok {
		d.state.SetIndices(0, v.Indices.Type)
	}
	if _, ok := d.shaders.Lookup(uint32(v.VertexShader)); v.VertexShader != metadata.FixedFunctionShader && !ok {
		d.state.SetVertexShader(metadata.FixedFunctionShader)
	}
	if _, ok := d.shaders.Lookup(uint32(v.PixelShader)); v.PixelShader != metadata.FixedFunctionShader && !ok {
		d.state.SetPixelShader(metadata.FixedFunctionShader)
	}
}

// BeginDraw captures the state for a new draw. No backend work happens
// until the batch is flushed.
func (d *Device) BeginDraw(primitive metadata.PrimitiveType) (DrawHandle, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	if limit := d.cfg.MaxPendingDraws; limit > 0 && d.batch.Len() >= limit {
		core.LogDebug("device %s: %d pending draws, flushing", d.id, d.batch.Len())
		if err := d.Flush(); err != nil {
			return 0, err
		}
	}
	return d.batch.begin(primitive)
}

func (d *Device) DrawPrimitive(h DrawHandle, startVertex, vertexCount uint32) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.batch.drawPrimitive(h, startVertex, vertexCount)
}

func (d *Device) DrawIndexedPrimitive(h DrawHandle, baseVertex int32, minIndex, numVertices, startIndex, indexCount uint32) error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.batch.drawIndexed(h, baseVertex, minIndex, numVertices, startIndex, indexCount)
}

func (d *Device) BeginScene() error {
	if err := d.usable(); err != nil {
		return err
	}
	if d.inScene {
		return fmt.Errorf("BeginScene: already in a scene: %w", core.ErrInvalidParameter)
	}
	d.inScene = true
	return nil
}

// EndScene closes the scene and flushes its draws.
func (d *Device) EndScene() error {
	if err := d.usable(); err != nil {
		return err
	}
	if !d.inScene {
		return fmt.Errorf("EndScene: no scene: %w", core.ErrInvalidParameter)
	}
	d.inScene = false
	return d.Flush()
}

// Clear requests the render target be cleared before further draws.
// Pending draws are flushed first so they are not cleared away.
func (d *Device) Clear(color uint32, depth float32, stencil uint32) error {
	if err := d.usable(); err != nil {
		return err
	}
	if !(depth >= 0 && depth <= 1) {
		return fmt.Errorf("Clear: depth %v: %w", depth, core.ErrInvalidParameter)
	}
	if err := d.Flush(); err != nil {
		return err
	}
	c := state.ColorFromARGB(color)
	d.clear = metadata.ClearValues{Clear: true, Color: [4]float32{c.X, c.Y, c.Z, c.W}, Depth: depth, Stencil: stencil}
	return nil
}

// Present flushes the frame. A requested clear with no draws is still
// submitted so the target reflects it.
func (d *Device) Present() error {
	if err := d.usable(); err != nil {
		return err
	}
	var err error
	if d.batch.Len() > 0 || d.clear.Clear {
		err = d.submit()
	}
	frame := d.clock.Lap()
	d.frames.Update(frame)
	core.MetricsUpdate(frame)
	return err
}

// ReadPixels returns the contents of the render target as of the last
// submit.
func (d *Device) ReadPixels() (*image.RGBA, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}
	r, ok := d.backend.(PixelReader)
	if !ok {
		return nil, fmt.Errorf("backend cannot read pixels: %w", core.ErrInvalidParameter)
	}
	return r.ReadPixels()
}

// Destroy waits for the GPU, persists the pipeline cache and releases
// every object the device created, each exactly once.
func (d *Device) Destroy() {
	if errors.Is(d.lost, errDestroyed) {
		return
	}
	if d.lost == nil {
		if err := d.backend.WaitIdle(); err != nil {
			core.LogWarn("device %s: wait idle: %v", d.id, err)
		}
		d.saveBlob()
	}

	d.batch.reset()
	d.resources.purge()
	d.pipelines.Purge()
	d.samplers.Purge()
	d.graveyard.Drain()

	for h, rec := range d.buffers {
		d.backend.DestroyBuffer(h)
		d.backend.FreeMemory(rec.memory)
	}
	clear(d.buffers)
	for h := range d.images {
		d.backend.DestroyImage(h)
	}
	clear(d.images)
	d.shaders.Reset()

	d.backend.Destroy()
	d.lost = errDestroyed
	core.LogInfo("device %s destroyed", d.id)
}

func (d *Device) saveBlob() {
	if d.cacheCfg.BlobDir == "" {
		return
	}
	data, err := d.backend.PipelineCacheData()
	if err != nil {
		core.LogWarn("device %s: pipeline cache data: %v", d.id, err)
		return
	}
	if err := cache.SaveBlob(d.cacheCfg.BlobDir, d.backend.DeviceIdentity(), data); err != nil {
		core.LogWarn("device %s: save pipeline cache: %v", d.id, err)
	}
}
