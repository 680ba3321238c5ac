package renderer

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"

	"github.com/spaghettifunk/ffbridge/engine/config"
	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// mockBackend hands out handles from one counter and tracks every live
// object by kind, so tests can assert each is released exactly once.
type mockBackend struct {
	next  uint64
	live  map[string]map[uint64]bool
	made  map[string]int
	fault []string

	// failPipeline rejects pipelines whose description it matches.
	failPipeline func(desc *metadata.GraphicsPipelineDesc) bool
	failSampler  bool
	failSubmit   error
	failBegin    error
	failCopy     error

	writes    map[metadata.BufferHandle][]byte
	copies    int
	uploads   int
	submitted []*mockCommandBuffer
	clears    []metadata.ClearValues
	destroyed int
	cacheData []byte
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		live:   make(map[string]map[uint64]bool),
		made:   make(map[string]int),
		writes: make(map[metadata.BufferHandle][]byte),
	}
}

func (m *mockBackend) alloc(kind string) uint64 {
	m.next++
	if m.live[kind] == nil {
		m.live[kind] = make(map[uint64]bool)
	}
	m.live[kind][m.next] = true
	m.made[kind]++
	return m.next
}

func (m *mockBackend) free(kind string, h uint64) {
	if !m.live[kind][h] {
		m.fault = append(m.fault, fmt.Sprintf("%s %d released twice or never created", kind, h))
		return
	}
	delete(m.live[kind], h)
}

func (m *mockBackend) count(kind string) int {
	return len(m.live[kind])
}

// verifyReleased fails the test on any double release or leaked object.
func (m *mockBackend) verifyReleased(t *testing.T) {
	t.Helper()
	for _, f := range m.fault {
		t.Error(f)
	}
	var kinds []string
	for k, hs := range m.live {
		if len(hs) > 0 {
			kinds = append(kinds, fmt.Sprintf("%s=%d", k, len(hs)))
		}
	}
	sort.Strings(kinds)
	if len(kinds) > 0 {
		t.Errorf("leaked objects: %v", kinds)
	}
	if m.destroyed != 1 {
		t.Errorf("backend destroyed %d times", m.destroyed)
	}
}

func (m *mockBackend) DeviceIdentity() metadata.DeviceIdentity {
	return metadata.DeviceIdentity{
		ID:       uuid.MustParse("6f1c0a3e-8d4b-4c1e-9a57-2b1f0e9d7c11"),
		Name:     "mock",
		VendorID: 0x10de,
		Driver:   1,
	}
}

func (m *mockBackend) PipelineCacheData() ([]byte, error) { return m.cacheData, nil }

func (m *mockBackend) CreateShaderModule(desc metadata.ShaderModuleDesc) (metadata.ShaderModuleHandle, error) {
	return metadata.ShaderModuleHandle(m.alloc("module")), nil
}

func (m *mockBackend) DestroyShaderModule(h metadata.ShaderModuleHandle) { m.free("module", uint64(h)) }

func (m *mockBackend) CreateDescriptorSetLayout(metadata.BindingTable) (metadata.DescriptorSetLayoutHandle, error) {
	return metadata.DescriptorSetLayoutHandle(m.alloc("set-layout")), nil
}

func (m *mockBackend) DestroyDescriptorSetLayout(h metadata.DescriptorSetLayoutHandle) {
	m.free("set-layout", uint64(h))
}

func (m *mockBackend) CreatePipelineLayout(metadata.DescriptorSetLayoutHandle, metadata.PushConstantRange) (metadata.PipelineLayoutHandle, error) {
	return metadata.PipelineLayoutHandle(m.alloc("pipeline-layout")), nil
}

func (m *mockBackend) DestroyPipelineLayout(h metadata.PipelineLayoutHandle) {
	m.free("pipeline-layout", uint64(h))
}

func (m *mockBackend) CreateGraphicsPipeline(desc *metadata.GraphicsPipelineDesc) (metadata.PipelineHandle, error) {
	if m.failPipeline != nil && m.failPipeline(desc) {
		return 0, errors.New("mock: pipeline rejected")
	}
	return metadata.PipelineHandle(m.alloc("pipeline")), nil
}

func (m *mockBackend) DestroyPipeline(h metadata.PipelineHandle) { m.free("pipeline", uint64(h)) }

func (m *mockBackend) CreateSampler(metadata.SamplerDesc) (metadata.SamplerHandle, error) {
	if m.failSampler {
		return 0, errors.New("mock: sampler rejected")
	}
	return metadata.SamplerHandle(m.alloc("sampler")), nil
}

func (m *mockBackend) DestroySampler(h metadata.SamplerHandle) { m.free("sampler", uint64(h)) }

func (m *mockBackend) AllocateDescriptorSet(metadata.DescriptorSetLayoutHandle) (metadata.DescriptorSetHandle, error) {
	return metadata.DescriptorSetHandle(m.alloc("set")), nil
}

func (m *mockBackend) UpdateDescriptorSet(set metadata.DescriptorSetHandle, writes []metadata.DescriptorWrite) error {
	if !m.live["set"][uint64(set)] {
		return fmt.Errorf("mock: update of dead set %d", set)
	}
	return nil
}

func (m *mockBackend) FreeDescriptorSet(h metadata.DescriptorSetHandle) { m.free("set", uint64(h)) }

func (m *mockBackend) CreateBuffer(desc metadata.BufferDesc) (metadata.BufferHandle, metadata.MemoryHandle, error) {
	b := metadata.BufferHandle(m.alloc("buffer"))
	return b, metadata.MemoryHandle(m.alloc("memory")), nil
}

func (m *mockBackend) DestroyBuffer(h metadata.BufferHandle) {
	m.free("buffer", uint64(h))
	delete(m.writes, h)
}

func (m *mockBackend) FreeMemory(h metadata.MemoryHandle) { m.free("memory", uint64(h)) }

func (m *mockBackend) WriteBuffer(h metadata.BufferHandle, offset uint64, data []byte) error {
	buf := m.writes[h]
	if end := int(offset) + len(data); end > len(buf) {
		buf = append(buf, make([]byte, end-len(buf))...)
	}
	copy(buf[offset:], data)
	m.writes[h] = buf
	return nil
}

func (m *mockBackend) CopyBuffer(src, dst metadata.BufferHandle, size uint64) error {
	if m.failCopy != nil {
		return m.failCopy
	}
	m.copies++
	m.writes[dst] = append([]byte(nil), m.writes[src][:size]...)
	return nil
}

func (m *mockBackend) CreateImage(metadata.ImageDesc) (metadata.ImageHandle, error) {
	return metadata.ImageHandle(m.alloc("image")), nil
}

func (m *mockBackend) UploadImage(metadata.ImageHandle, metadata.ImageData) error {
	m.uploads++
	return nil
}

func (m *mockBackend) DestroyImage(h metadata.ImageHandle) { m.free("image", uint64(h)) }

func (m *mockBackend) BeginCommands(clear metadata.ClearValues) (CommandBuffer, error) {
	if m.failBegin != nil {
		return nil, m.failBegin
	}
	m.clears = append(m.clears, clear)
	return &mockCommandBuffer{}, nil
}

func (m *mockBackend) Submit(cb CommandBuffer) error {
	if m.failSubmit != nil {
		return m.failSubmit
	}
	m.submitted = append(m.submitted, cb.(*mockCommandBuffer))
	return nil
}

func (m *mockBackend) WaitIdle() error { return nil }

func (m *mockBackend) Destroy() { m.destroyed++ }

// mockCommandBuffer records commands as short strings.
type mockCommandBuffer struct {
	ops []string
}

func (c *mockCommandBuffer) add(format string, args ...interface{}) {
	c.ops = append(c.ops, fmt.Sprintf(format, args...))
}

// count returns how many recorded ops start with prefix.
func (c *mockCommandBuffer) count(prefix string) int {
	n := 0
	for _, op := range c.ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (c *mockCommandBuffer) BindPipeline(p metadata.PipelineHandle) { c.add("pipeline %d", p) }

func (c *mockCommandBuffer) BindDescriptorSet(l metadata.PipelineLayoutHandle, s metadata.DescriptorSetHandle) {
	c.add("set %d", s)
}

func (c *mockCommandBuffer) PushConstants(l metadata.PipelineLayoutHandle, stages metadata.ShaderStage, offset uint32, data []byte) {
	c.add("push %d", len(data))
}

func (c *mockCommandBuffer) SetViewport(vp metadata.Viewport) { c.add("viewport") }
func (c *mockCommandBuffer) SetScissor(r metadata.Rect) { c.add("scissor") }
func (c *mockCommandBuffer) SetDepthBias(constant, slope float32) { c.add("bias") }

func (c *mockCommandBuffer) BindVertexBuffers(first uint32, buffers []metadata.BufferHandle, offsets []uint64) {
	c.add("vertex %d %d", first, buffers[0])
}

func (c *mockCommandBuffer) BindIndexBuffer(buffer metadata.BufferHandle, offset uint64, t metadata.IndexType) {
	c.add("index %d", buffer)
}

func (c *mockCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.add("draw %d", vertexCount)
}

func (c *mockCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.add("draw-indexed %d", indexCount)
}

func (c *mockCommandBuffer) End() error { return nil }

// fakeSPIRV stands in for the WGSL compiler: a module header is enough for
// the mock backend.
func fakeSPIRV(string) ([]byte, error) {
	return []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Device.Width, cfg.Device.Height = 64, 64
	return cfg
}

func newTestDevice(t *testing.T, b *mockBackend, opts ...Option) *Device {
	t.Helper()
	return newTestDeviceConfig(t, b, testConfig(), opts...)
}

func newTestDeviceConfig(t *testing.T, b *mockBackend, cfg *config.Config, opts ...Option) *Device {
	t.Helper()
	d, err := NewDevice(b, cfg, append([]Option{WithShaderCompiler(fakeSPIRV)}, opts...)...)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	return d
}

// bindTriangles sets an untransformed position/colour format and binds a
// vertex buffer holding n vertices on stream 0.
func bindTriangles(t *testing.T, d *Device, n int) metadata.BufferHandle {
	t.Helper()
	const format = metadata.FVF_XYZ | metadata.FVF_DIFFUSE
	stride, err := metadata.FVFStride(format)
	if err != nil {
		t.Fatal(err)
	}
	vb, err := d.CreateVertexBuffer(uint64(n) * uint64(stride))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetFVF(format); err != nil {
		t.Fatal(err)
	}
	if err := d.SetStreamSource(0, vb, 0, stride); err != nil {
		t.Fatal(err)
	}
	return vb
}

func draw(t *testing.T, d *Device, pt metadata.PrimitiveType, vertices uint32) DrawHandle {
	t.Helper()
	h, err := d.BeginDraw(pt)
	if err != nil {
		t.Fatalf("BeginDraw: %v", err)
	}
	if err := d.DrawPrimitive(h, 0, vertices); err != nil {
		t.Fatalf("DrawPrimitive: %v", err)
	}
	return h
}

func mustKind(t *testing.T, err error, want core.ErrorKind) {
	t.Helper()
	if got := core.KindOf(err); got != want {
		t.Fatalf("error %v: kind %s, want %s", err, got, want)
	}
}
