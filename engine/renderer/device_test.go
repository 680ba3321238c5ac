package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

func TestFlushBindsPipelineOnlyOnChange(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 6)

	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	draw(t, d, metadata.PT_LINELIST, 2)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}

	if len(b.submitted) != 1 {
		t.Fatalf("submitted %d command buffers, want 1", len(b.submitted))
	}
	cb := b.submitted[0]
	if n := cb.count("pipeline "); n != 2 {
		t.Errorf("pipeline binds = %d, want 2 (%v)", n, cb.ops)
	}
	if n := cb.count("push "); n != 3 {
		t.Errorf("push constant updates = %d, want one per draw", n)
	}
	if n := cb.count("draw "); n != 3 {
		t.Errorf("draws = %d, want 3", n)
	}
	if n := cb.count("vertex "); n != 1 {
		t.Errorf("vertex buffer binds = %d, want 1", n)
	}
	s := d.Stats()
	if s.PipelinesBuilt != 2 || s.DrawsSubmitted != 3 {
		t.Errorf("stats = %+v", s)
	}
}

func TestFlushOfEmptyBatchIsNoOp(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	for i := 0; i < 3; i++ {
		if err := d.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if len(b.clears) != 0 || len(b.submitted) != 0 {
		t.Fatalf("empty flush reached the backend: %d begins, %d submits", len(b.clears), len(b.submitted))
	}
	if s := d.Stats(); s.Flushes != 0 {
		t.Errorf("flushes = %d", s.Flushes)
	}
}

func TestPipelineDerivedOncePerSnapshot(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)

	for i := 0; i < 5; i++ {
		draw(t, d, metadata.PT_TRIANGLELIST, 3)
	}
	// a uniform-only change must not start a new pipeline snapshot
	if err := d.SetRenderState(metadata.RS_TEXTUREFACTOR, 0xff00ff00); err != nil {
		t.Fatal(err)
	}
	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}

	s := d.Stats()
	if s.Snapshots != 1 || s.Derivations != 1 {
		t.Fatalf("snapshots = %d, derivations = %d, want 1 and 1", s.Snapshots, s.Derivations)
	}
	if b.made["pipeline"] != 1 {
		t.Errorf("pipelines created = %d", b.made["pipeline"])
	}
}

func TestEqualStateReusesCachedPipelineAcrossFlushes(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)

	for i := 0; i < 4; i++ {
		draw(t, d, metadata.PT_TRIANGLELIST, 3)
		if err := d.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if b.made["pipeline"] != 1 {
		t.Fatalf("pipelines created = %d, want 1", b.made["pipeline"])
	}
	if s := d.Stats(); s.PipelinesCached != 1 {
		t.Errorf("cached = %d", s.PipelinesCached)
	}
}

func TestFailedPipelineDropsOnlyItsDraws(t *testing.T) {
	b := newMockBackend()
	b.failPipeline = func(desc *metadata.GraphicsPipelineDesc) bool {
		return desc.Topology == metadata.TopologyLineList
	}
	d := newTestDevice(t, b)
	bindTriangles(t, d, 6)

	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	draw(t, d, metadata.PT_LINELIST, 2)
	draw(t, d, metadata.PT_LINELIST, 2)
	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.Flush(); err != nil {
		t.Fatalf("flush with a failing pipeline: %v", err)
	}

	if d.Lost() != nil {
		t.Fatalf("device lost: %v", d.Lost())
	}
	s := d.Stats()
	if s.DrawsSubmitted != 2 || s.DrawsDropped != 2 {
		t.Errorf("submitted %d dropped %d, want 2 and 2", s.DrawsSubmitted, s.DrawsDropped)
	}
	// both line draws share one snapshot, so the failure is derived once
	if s.Derivations != 2 {
		t.Errorf("derivations = %d", s.Derivations)
	}
	if n := b.submitted[0].count("draw "); n != 2 {
		t.Errorf("recorded draws = %d", n)
	}
	// the failed build left no half-built objects behind
	if b.count("pipeline-layout") != 1 || b.count("set-layout") != 1 {
		t.Errorf("layouts alive: %d pipeline, %d set", b.count("pipeline-layout"), b.count("set-layout"))
	}
}

func TestFailedSamplerDropsTexturedDraw(t *testing.T) {
	b := newMockBackend()
	b.failSampler = true
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)
	tex, err := d.CreateTexture(4, 4, 1, metadata.FMT_A8R8G8B8)
	if err != nil {
		t.Fatal(err)
	}

	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.SetTexture(0, tex); err != nil {
		t.Fatal(err)
	}
	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if s := d.Stats(); s.DrawsSubmitted != 1 || s.DrawsDropped != 1 {
		t.Fatalf("submitted %d dropped %d", s.DrawsSubmitted, s.DrawsDropped)
	}
}

func TestMissingStreamDropsDraw(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)
	if err := d.SetStreamSource(0, 0, 0, 16); err != nil {
		t.Fatal(err)
	}
	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if s := d.Stats(); s.DrawsDropped != 1 {
		t.Fatalf("dropped = %d", s.DrawsDropped)
	}
}

func TestSubmitFailureLosesDevice(t *testing.T) {
	b := newMockBackend()
	var lost []uuid.UUID
	d := newTestDevice(t, b, WithLostHandler(func(id uuid.UUID, err error) { lost = append(lost, id) }))
	bindTriangles(t, d, 3)
	b.failSubmit = fmt.Errorf("queue submit: %w", core.ErrDeviceLost)

	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	mustKind(t, d.Flush(), core.ErrorKindDeviceLost)

	if len(lost) != 1 || lost[0] != d.ID() {
		t.Fatalf("lost handler calls = %v", lost)
	}
	mustKind(t, d.SetFVF(metadata.FVF_XYZ), core.ErrorKindDeviceLost)
	_, err := d.BeginDraw(metadata.PT_TRIANGLELIST)
	mustKind(t, err, core.ErrorKindDeviceLost)
	if core.ResultCode(d.Present()) != core.D3DERR_DEVICELOST {
		t.Errorf("present after loss = %#x", core.ResultCode(d.Present()))
	}
	if len(lost) != 1 {
		t.Errorf("lost handler called %d times", len(lost))
	}

	d.Destroy()
	b.verifyReleased(t)
}

func TestBeginCommandsFailureIsNotFatal(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)
	b.failBegin = errors.New("out of command buffers")

	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	mustKind(t, d.Flush(), core.ErrorKindResourceCreationFailed)
	if d.Lost() != nil || d.PendingDraws() != 0 {
		t.Fatalf("lost = %v, pending = %d", d.Lost(), d.PendingDraws())
	}
}

func TestUnfinishedDrawIsSkipped(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)
	if _, err := d.BeginDraw(metadata.PT_TRIANGLELIST); err != nil {
		t.Fatal(err)
	}
	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if s := d.Stats(); s.DrawsSkipped != 1 || s.DrawsSubmitted != 1 {
		t.Fatalf("skipped %d submitted %d", s.DrawsSkipped, s.DrawsSubmitted)
	}
}

func TestDrawHandleIsStaleAfterFlush(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)

	h := draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	mustKind(t, d.DrawPrimitive(h, 0, 3), core.ErrorKindInvalidParameter)
}

func TestIndexedDrawNeedsIndexBuffer(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 4)

	h, err := d.BeginDraw(metadata.PT_TRIANGLELIST)
	if err != nil {
		t.Fatal(err)
	}
	mustKind(t, d.DrawIndexedPrimitive(h, 0, 0, 4, 0, 6), core.ErrorKindInvalidParameter)

	ib, err := d.CreateIndexBuffer(12, metadata.FMT_INDEX16)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetIndices(ib); err != nil {
		t.Fatal(err)
	}
	h, err = d.BeginDraw(metadata.PT_TRIANGLELIST)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.DrawIndexedPrimitive(h, 0, 0, 4, 0, 6); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	cb := b.submitted[0]
	if cb.count("index ") != 1 || cb.count("draw-indexed 6") != 1 {
		t.Fatalf("ops = %v", cb.ops)
	}
}

func TestAutoFlushAtPendingLimit(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	d.cfg.MaxPendingDraws = 2
	bindTriangles(t, d, 3)

	for i := 0; i < 5; i++ {
		draw(t, d, metadata.PT_TRIANGLELIST, 3)
	}
	if len(b.submitted) != 2 || d.PendingDraws() != 1 {
		t.Fatalf("submits = %d, pending = %d", len(b.submitted), d.PendingDraws())
	}
}

func TestClearIsConsumedByNextSubmit(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)

	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if !b.clears[0].Clear || b.clears[1].Clear {
		t.Fatalf("clears = %+v", b.clears)
	}

	if err := d.Present(); err != nil {
		t.Fatal(err)
	}
	if len(b.submitted) != 2 {
		t.Fatalf("present with nothing to do submitted work")
	}
	if err := d.Clear(0xff0000ff, 1, 0); err != nil {
		t.Fatal(err)
	}
	if err := d.Present(); err != nil {
		t.Fatal(err)
	}
	last := b.clears[len(b.clears)-1]
	if len(b.submitted) != 3 || !last.Clear || last.Color != [4]float32{0, 0, 1, 1} {
		t.Fatalf("clear-only present: submits %d, clear %+v", len(b.submitted), last)
	}
}

func TestSamplerSharedAcrossTextures(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)

	for i := 0; i < 3; i++ {
		tex, err := d.CreateTexture(2, 2, 1, metadata.FMT_A8R8G8B8)
		if err != nil {
			t.Fatal(err)
		}
		if err := d.SetTexture(0, tex); err != nil {
			t.Fatal(err)
		}
		draw(t, d, metadata.PT_TRIANGLELIST, 3)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if b.made["sampler"] != 1 {
		t.Fatalf("samplers created = %d, want 1", b.made["sampler"])
	}
	if s := d.Stats(); s.DrawsSubmitted != 3 || s.ContextsBuilt != 3 {
		t.Errorf("stats = %+v", s)
	}
}

func TestStaleResourceContextsRetired(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)

	for i := 0; i < 4; i++ {
		if err := d.SetRenderState(metadata.RS_TEXTUREFACTOR, uint32(i)); err != nil {
			t.Fatal(err)
		}
		draw(t, d, metadata.PT_TRIANGLELIST, 3)
		if err := d.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if n := d.Stats().ContextsCached; n != 1 {
		t.Fatalf("contexts cached = %d, want 1", n)
	}
	if b.count("set") != 1 {
		t.Errorf("descriptor sets alive = %d", b.count("set"))
	}
}

func TestCopyBufferUploadsThroughStaging(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	data := []byte("0123456789abcdef")

	buffersBefore := b.count("buffer")
	dst, err := d.UploadBuffer(metadata.BufferUsageVertex, data)
	if err != nil {
		t.Fatal(err)
	}
	if b.copies != 1 {
		t.Fatalf("copies = %d", b.copies)
	}
	if !bytes.Equal(b.writes[dst], data) {
		t.Fatalf("destination holds %q", b.writes[dst])
	}
	if got := b.count("buffer") - buffersBefore; got != 1 {
		t.Errorf("staging buffer not released: %d new buffers alive", got)
	}

	src, err := d.CreateVertexBuffer(8)
	if err != nil {
		t.Fatal(err)
	}
	mustKind(t, d.CopyBuffer(src, dst, 0), core.ErrorKindInvalidParameter)
	mustKind(t, d.CopyBuffer(src, dst, 64), core.ErrorKindInvalidParameter)
	mustKind(t, d.CopyBuffer(src, 999, 4), core.ErrorKindInvalidParameter)
	mustKind(t, d.WriteBuffer(dst, 0, data), core.ErrorKindInvalidParameter)
}

func TestCreateBufferRejectsEmpty(t *testing.T) {
	d := newTestDevice(t, newMockBackend())
	_, _, err := d.CreateBuffer(0, metadata.BufferUsageVertex, metadata.MemoryHostVisible)
	mustKind(t, err, core.ErrorKindInvalidParameter)
}

func TestCreateTextureFormats(t *testing.T) {
	d := newTestDevice(t, newMockBackend())
	tests := []struct {
		format metadata.Format
		kind   core.ErrorKind
	}{
		{metadata.FMT_A8R8G8B8, core.ErrorKindNone},
		{metadata.FMT_DXT1, core.ErrorKindNone},
		{metadata.FMT_A4R4G4B4, core.ErrorKindUnsupportedFormat},
		{metadata.FMT_D24S8, core.ErrorKindUnsupportedFormat},
	}
	for _, tt := range tests {
		_, err := d.CreateTexture(8, 8, 1, tt.format)
		if got := core.KindOf(err); got != tt.kind {
			t.Errorf("format %#x: kind %s, want %s", uint32(tt.format), got, tt.kind)
		}
	}
}

func TestWriteTextureChecksLevelSize(t *testing.T) {
	d := newTestDevice(t, newMockBackend())
	tex, err := d.CreateTexture(4, 4, 3, metadata.FMT_A8R8G8B8)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteTexture(tex, 1, make([]byte, 2*2*4)); err != nil {
		t.Fatal(err)
	}
	mustKind(t, d.WriteTexture(tex, 0, make([]byte, 4)), core.ErrorKindInvalidParameter)
	mustKind(t, d.WriteTexture(tex, 3, make([]byte, 4)), core.ErrorKindInvalidSlot)
}

func TestReleaseTextureUnbindsSlot(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	tex, err := d.CreateTexture(2, 2, 1, metadata.FMT_A8R8G8B8)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetTexture(3, tex); err != nil {
		t.Fatal(err)
	}
	if err := d.ReleaseTexture(tex); err != nil {
		t.Fatal(err)
	}
	if got := d.State().Values().Textures[3]; got != 0 {
		t.Fatalf("slot 3 still bound to %d", got)
	}
	mustKind(t, d.ReleaseTexture(tex), core.ErrorKindInvalidParameter)
	mustKind(t, d.SetTexture(0, tex), core.ErrorKindInvalidParameter)
	mustKind(t, d.ReleaseTexture(d.fallback), core.ErrorKindInvalidParameter)
}

func TestReleasedBufferOutlivesPendingDraws(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	vb := bindTriangles(t, d, 3)

	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.DestroyBuffer(vb); err != nil {
		t.Fatal(err)
	}
	if !b.live["buffer"][uint64(vb)] {
		t.Fatal("buffer destroyed while a pending draw reads it")
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if b.live["buffer"][uint64(vb)] {
		t.Fatal("buffer still alive after flush")
	}
}

func TestReleasedTextureLeavesNoCachedContext(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)
	tex, err := d.CreateTexture(2, 2, 1, metadata.FMT_A8R8G8B8)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetTexture(0, tex); err != nil {
		t.Fatal(err)
	}

	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.ReleaseTexture(tex); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if s := d.Stats(); s.DrawsSubmitted != 1 || s.ContextsCached != 0 {
		t.Fatalf("stats = %+v", s)
	}
	if b.live["image"][uint64(tex)] {
		t.Error("image alive after flush")
	}
	if n := b.count("set"); n != 0 {
		t.Errorf("%d descriptor sets alive after their image was released", n)
	}
	d.Destroy()
	b.verifyReleased(t)
}

func TestApplyStateBlockUnbindsReleasedObjects(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	vb := bindTriangles(t, d, 3)
	tex, err := d.CreateTexture(2, 2, 1, metadata.FMT_A8R8G8B8)
	if err != nil {
		t.Fatal(err)
	}
	ib, err := d.CreateIndexBuffer(12, metadata.FMT_INDEX32)
	if err != nil {
		t.Fatal(err)
	}
	ps, err := d.CreatePixelShader(newSPIRVModule(execFragment, "main").bytes())
	if err != nil {
		t.Fatal(err)
	}
	for _, err := range []error{d.SetTexture(0, tex), d.SetIndices(ib), d.SetPixelShader(ps)} {
		if err != nil {
			t.Fatal(err)
		}
	}
	sb, err := d.CaptureStateBlock()
	if err != nil {
		t.Fatal(err)
	}

	if err := d.ReleaseTexture(tex); err != nil {
		t.Fatal(err)
	}
	if err := d.DestroyBuffer(vb); err != nil {
		t.Fatal(err)
	}
	if err := d.DestroyBuffer(ib); err != nil {
		t.Fatal(err)
	}
	if err := d.ReleaseShader(ps); err != nil {
		t.Fatal(err)
	}
	if err := d.ApplyStateBlock(sb); err != nil {
		t.Fatal(err)
	}

	v := d.State().Values()
	if v.Textures[0] != 0 || v.Streams[0].Buffer != 0 || v.Indices.Buffer != 0 {
		t.Fatalf("released objects still bound: texture %d stream %d index %d", v.Textures[0], v.Streams[0].Buffer, v.Indices.Buffer)
	}
	if v.PixelShader != metadata.FixedFunctionShader {
		t.Fatalf("released pixel shader %d still bound", v.PixelShader)
	}
	if v.FVF != metadata.FVF_XYZ|metadata.FVF_DIFFUSE {
		t.Errorf("FVF = %#x, block values lost", v.FVF)
	}

	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if s := d.Stats(); s.DrawsDropped != 1 || s.DrawsSubmitted != 0 {
		t.Fatalf("stats = %+v", s)
	}
	d.Destroy()
	b.verifyReleased(t)
}

func TestReleaseShaderFlushesDrawsUsingIt(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)
	bindTriangles(t, d, 3)
	ps, err := d.CreatePixelShader(newSPIRVModule(execFragment, "main").bytes())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetPixelShader(ps); err != nil {
		t.Fatal(err)
	}

	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.ReleaseShader(ps); err != nil {
		t.Fatal(err)
	}
	if len(b.submitted) != 1 || d.Stats().DrawsSubmitted != 1 {
		t.Fatalf("pending draw not flushed before release: %d submits", len(b.submitted))
	}

	// a new shader may take the same id without reaching the old draw
	again, err := d.CreatePixelShader(newSPIRVModule(execFragment, "main").samplers(metadata.BindingFirstImage, 2).bytes())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetPixelShader(again); err != nil {
		t.Fatal(err)
	}
	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if s := d.Stats(); s.DrawsSubmitted != 2 || s.PipelinesBuilt != 2 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestCopyBufferFailureIsNotFatal(t *testing.T) {
	b := newMockBackend()
	d := newTestDevice(t, b)

	b.failCopy = errors.New("mock: no command buffer")
	_, err := d.UploadBuffer(metadata.BufferUsageVertex, make([]byte, 16))
	mustKind(t, err, core.ErrorKindResourceCreationFailed)
	if d.Lost() != nil {
		t.Fatal("transfer failure lost the device")
	}

	b.failCopy = fmt.Errorf("mock: %w", core.ErrDeviceLost)
	_, err = d.UploadBuffer(metadata.BufferUsageVertex, make([]byte, 16))
	mustKind(t, err, core.ErrorKindDeviceLost)
	if d.Lost() == nil {
		t.Fatal("device not lost")
	}
}

func TestShaderStageIsChecked(t *testing.T) {
	d := newTestDevice(t, newMockBackend())
	mustKind(t, d.SetVertexShader(7), core.ErrorKindInvalidParameter)
	mustKind(t, d.SetPixelShader(7), core.ErrorKindInvalidParameter)
	if err := d.SetVertexShader(metadata.FixedFunctionShader); err != nil {
		t.Fatal(err)
	}
}

func TestDestroyReleasesEverythingOnce(t *testing.T) {
	b := newMockBackend()
	b.cacheData = []byte("driver cache")
	d := newTestDevice(t, b)
	bindTriangles(t, d, 6)

	tex, err := d.CreateTexture(2, 2, 1, metadata.FMT_A8R8G8B8)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetTexture(0, tex); err != nil {
		t.Fatal(err)
	}
	if _, err := d.UploadBuffer(metadata.BufferUsageVertex, make([]byte, 64)); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateIndexBuffer(12, metadata.FMT_INDEX32); err != nil {
		t.Fatal(err)
	}
	draw(t, d, metadata.PT_TRIANGLELIST, 3)
	draw(t, d, metadata.PT_LINELIST, 2)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	// leave work pending so teardown has to discard it
	draw(t, d, metadata.PT_POINTLIST, 1)

	d.Destroy()
	d.Destroy()
	b.verifyReleased(t)
	if b.made["pipeline"] != 2 || b.made["sampler"] != 1 {
		t.Errorf("made = %v", b.made)
	}
	mustKind(t, d.Flush(), core.ErrorKindDeviceLost)
}

func TestDestroyWithBoundedCachesReleasesEvictedObjects(t *testing.T) {
	b := newMockBackend()
	cfg := testConfig()
	cfg.Cache.PipelineCapacity = 1
	cfg.Cache.SamplerCapacity = 1
	d := newTestDeviceConfig(t, b, cfg)
	bindTriangles(t, d, 6)

	for _, pt := range []metadata.PrimitiveType{metadata.PT_TRIANGLELIST, metadata.PT_LINELIST, metadata.PT_POINTLIST} {
		draw(t, d, pt, 2)
		if err := d.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if b.count("pipeline") != 1 {
		t.Fatalf("pipelines alive = %d with capacity 1", b.count("pipeline"))
	}
	d.Destroy()
	b.verifyReleased(t)
}
