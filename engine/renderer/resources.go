package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/cache"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// CreateBuffer allocates a buffer and its memory. The device owns both
// until DestroyBuffer or Destroy.
func (d *Device) CreateBuffer(size uint64, usage metadata.BufferUsage, memory metadata.MemoryProperty) (metadata.BufferHandle, metadata.MemoryHandle, error) {
	if err := d.usable(); err != nil {
		return 0, 0, err
	}
	return d.createBuffer(metadata.BufferDesc{Size: size, Usage: usage, Memory: memory}, 0)
}

func (d *Device) createBuffer(desc metadata.BufferDesc, index metadata.IndexType) (metadata.BufferHandle, metadata.MemoryHandle, error) {
	if desc.Size == 0 || desc.Usage == 0 {
		return 0, 0, fmt.Errorf("CreateBuffer: size %d usage %#x: %w", desc.Size, desc.Usage, core.ErrInvalidParameter)
	}
	buf, mem, err := d.backend.CreateBuffer(desc)
	if err != nil {
		return 0, 0, fmt.Errorf("CreateBuffer %d bytes: %w: %w", desc.Size, core.ErrResourceCreationFailed, err)
	}
	d.buffers[buf] = bufferRecord{memory: mem, desc: desc, index: index}
	return buf, mem, nil
}

// DestroyBuffer releases a buffer. Pending draws may still read it, so the
// release waits for the next submit.
func (d *Device) DestroyBuffer(h metadata.BufferHandle) error {
	rec, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("DestroyBuffer: unknown buffer %d: %w", h, core.ErrInvalidParameter)
	}
	delete(d.buffers, h)
	v := d.state.Values()
	for i, s := range v.Streams {
		if s.Buffer == h {
			d.state.SetStreamSource(i, 0, 0, s.Stride)
		}
	}
	if v.Indices.Buffer == h {
		d.state.SetIndices(0, 0)
	}
	d.graveyard.Bury(func() {
		d.backend.DestroyBuffer(h)
		d.backend.FreeMemory(rec.memory)
	})
	if d.batch.Len() == 0 {
		d.graveyard.Drain()
	}
	return nil
}

// WriteBuffer fills host-visible buffer memory.
func (d *Device) WriteBuffer(h metadata.BufferHandle, offset uint64, data []byte) error {
	if err := d.usable(); err != nil {
		return err
	}
	rec, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("WriteBuffer: unknown buffer %d: %w", h, core.ErrInvalidParameter)
	}
	if rec.desc.Memory&metadata.MemoryHostVisible == 0 {
		return fmt.Errorf("WriteBuffer: buffer %d is not host visible: %w", h, core.ErrInvalidParameter)
	}
	if offset+uint64(len(data)) > rec.desc.Size {
		return fmt.Errorf("WriteBuffer: %d bytes at %d exceed %d: %w", len(data), offset, rec.desc.Size, core.ErrInvalidParameter)
	}
	return d.backend.WriteBuffer(h, offset, data)
}

// CopyBuffer copies size bytes from src to dst. It submits one command
// buffer and returns after the copy completed.
func (d *Device) CopyBuffer(src, dst metadata.BufferHandle, size uint64) error {
	if err := d.usable(); err != nil {
		return err
	}
	s, ok := d.buffers[src]
	t, ok2 := d.buffers[dst]
	if !ok || !ok2 {
		return fmt.Errorf("CopyBuffer %d -> %d: unknown buffer: %w", src, dst, core.ErrInvalidParameter)
	}
	if size == 0 || size > s.desc.Size || size > t.desc.Size {
		return fmt.Errorf("CopyBuffer: size %d: %w", size, core.ErrInvalidParameter)
	}
	if s.desc.Usage&metadata.BufferUsageTransferSrc == 0 || t.desc.Usage&metadata.BufferUsageTransferDst == 0 {
		return fmt.Errorf("CopyBuffer: missing transfer usage: %w", core.ErrInvalidParameter)
	}
	if err := d.backend.CopyBuffer(src, dst, size); err != nil {
		return d.transferError("CopyBuffer", err)
	}
	return nil
}

// transferError loses the device only when the backend reports it lost.
func (d *Device) transferError(op string, err error) error {
	if errors.Is(err, core.ErrDeviceLost) {
		return d.markLost(err)
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrResourceCreationFailed, err)
}

// UploadBuffer creates a device-local buffer holding data, staged through
// a host-visible copy.
func (d *Device) UploadBuffer(usage metadata.BufferUsage, data []byte) (metadata.BufferHandle, error) {
	return d.uploadBuffer(usage, data, 0)
}

func (d *Device) uploadBuffer(usage metadata.BufferUsage, data []byte, index metadata.IndexType) (metadata.BufferHandle, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	size := uint64(len(data))
	staging, _, err := d.createBuffer(metadata.BufferDesc{
		Size:   size,
		Usage:  metadata.BufferUsageTransferSrc,
		Memory: metadata.MemoryHostVisible | metadata.MemoryHostCoherent,
	}, 0)
	if err != nil {
		return 0, err
	}
	defer d.DestroyBuffer(staging)
	if err := d.WriteBuffer(staging, 0, data); err != nil {
		return 0, err
	}
	dst, _, err := d.createBuffer(metadata.BufferDesc{
		Size:   size,
		Usage:  usage | metadata.BufferUsageTransferDst,
		Memory: metadata.MemoryDeviceLocal,
	}, index)
	if err != nil {
		return 0, err
	}
	if err := d.CopyBuffer(staging, dst, size); err != nil {
		d.DestroyBuffer(dst)
		return 0, err
	}
	return dst, nil
}

// CreateVertexBuffer creates a host-visible vertex buffer the client fills
// with WriteBuffer.
func (d *Device) CreateVertexBuffer(size uint64) (metadata.BufferHandle, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	h, _, err := d.createBuffer(metadata.BufferDesc{
		Size:   size,
		Usage:  metadata.BufferUsageVertex | metadata.BufferUsageTransferSrc,
		Memory: metadata.MemoryHostVisible | metadata.MemoryHostCoherent,
	}, 0)
	return h, err
}

func (d *Device) CreateIndexBuffer(size uint64, format metadata.Format) (metadata.BufferHandle, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	t, err := metadata.ConvertIndexFormat(format)
	if err != nil {
		return 0, err
	}
	if size%uint64(t.Size()) != 0 {
		return 0, fmt.Errorf("CreateIndexBuffer: %d bytes of %d-byte indices: %w", size, t.Size(), core.ErrInvalidParameter)
	}
	h, _, err := d.createBuffer(metadata.BufferDesc{
		Size:   size,
		Usage:  metadata.BufferUsageIndex | metadata.BufferUsageTransferSrc,
		Memory: metadata.MemoryHostVisible | metadata.MemoryHostCoherent,
	}, t)
	return h, err
}

// UploadIndices creates a device-local index buffer from data.
func (d *Device) UploadIndices(format metadata.Format, data []byte) (metadata.BufferHandle, error) {
	t, err := metadata.ConvertIndexFormat(format)
	if err != nil {
		return 0, err
	}
	return d.uploadBuffer(metadata.BufferUsageIndex, data, t)
}

func (d *Device) CreateTexture(width, height, levels uint32, format metadata.Format) (metadata.ImageHandle, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	f, err := metadata.ConvertFormat(format)
	if err != nil {
		return 0, err
	}
	if f.Info().Depth {
		return 0, fmt.Errorf("CreateTexture: depth format %#x: %w", uint32(format), core.ErrUnsupportedFormat)
	}
	if width == 0 || height == 0 {
		return 0, fmt.Errorf("CreateTexture: %dx%d: %w", width, height, core.ErrInvalidParameter)
	}
	if levels == 0 {
		levels = 1
	}
	desc := metadata.ImageDesc{Width: width, Height: height, MipLevels: levels, Format: f}
	h, err := d.backend.CreateImage(desc)
	if err != nil {
		return 0, fmt.Errorf("CreateTexture: %w: %w", core.ErrResourceCreationFailed, err)
	}
	d.images[h] = desc
	return h, nil
}

// WriteTexture uploads one mip level. It waits for the upload.
func (d *Device) WriteTexture(h metadata.ImageHandle, level uint32, pixels []byte) error {
	if err := d.usable(); err != nil {
		return err
	}
	desc, ok := d.images[h]
	if !ok {
		return fmt.Errorf("WriteTexture: unknown image %d: %w", h, core.ErrInvalidParameter)
	}
	if level >= desc.MipLevels {
		return fmt.Errorf("WriteTexture: level %d of %d: %w", level, desc.MipLevels, core.ErrInvalidSlot)
	}
	w, ht := max(desc.Width>>level, 1), max(desc.Height>>level, 1)
	if want := desc.Format.LevelSize(w, ht); uint64(len(pixels)) != want {
		return fmt.Errorf("WriteTexture: %d bytes, level needs %d: %w", len(pixels), want, core.ErrInvalidParameter)
	}
	if err := d.backend.UploadImage(h, metadata.ImageData{Level: level, Pixels: pixels}); err != nil {
		return d.transferError("WriteTexture", err)
	}
	return nil
}

// ReleaseTexture unbinds and releases an image once no pending draw can
// read it.
func (d *Device) ReleaseTexture(h metadata.ImageHandle) error {
	if _, ok := d.images[h]; !ok || (h == d.fallback && d.fallback != 0) {
		return fmt.Errorf("ReleaseTexture: unknown image %d: %w", h, core.ErrInvalidParameter)
	}
	delete(d.images, h)
	for slot, t := range d.state.Values().Textures {
		if t == h {
			d.state.SetTexture(slot, 0)
		}
	}
	d.resources.dropImage(h)
	// pending draws may still build contexts around the image
	d.graveyard.Bury(func() {
		d.resources.dropImage(h)
		d.backend.DestroyImage(h)
	})
	if d.batch.Len() == 0 {
		d.graveyard.Drain()
	}
	return nil
}

func (d *Device) CreateVertexShader(bytecode []byte) (metadata.ShaderID, error) {
	return d.createShader(metadata.ShaderStageVertex, bytecode)
}

func (d *Device) CreatePixelShader(bytecode []byte) (metadata.ShaderID, error) {
	return d.createShader(metadata.ShaderStageFragment, bytecode)
}

func (d *Device) createShader(stage metadata.ShaderStage, bytecode []byte) (metadata.ShaderID, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	words, err := WordsFromBytes(bytecode)
	if err != nil {
		return 0, err
	}
	t, err := d.translator.Translate(words)
	if err != nil {
		return 0, err
	}
	if t.Stage != stage {
		return 0, fmt.Errorf("create shader: module is stage %d, want %d: %w", t.Stage, stage, core.ErrInvalidParameter)
	}
	s := &Shader{TranslatedShader: t}
	s.ID = metadata.ShaderID(d.shaders.AquireNewID(s))
	return s.ID, nil
}

// ReleaseShader frees a shader id. Ids are reused, so pending draws that
// captured it are flushed first, then pipelines built from it are retired
// and it is unbound.
func (d *Device) ReleaseShader(id metadata.ShaderID) error {
	if _, ok := d.shaders.Lookup(uint32(id)); !ok {
		return fmt.Errorf("ReleaseShader: unknown shader %d: %w", id, core.ErrInvalidParameter)
	}
	if d.batch.usesShader(id) {
		if err := d.Flush(); err != nil {
			core.LogWarn("ReleaseShader %d: flush of pending draws: %v", id, err)
		}
	}
	if err := d.shaders.ReleaseID(uint32(id)); err != nil {
		return err
	}
	v := d.state.Values()
	if v.VertexShader == id {
		d.state.SetVertexShader(metadata.FixedFunctionShader)
	}
	if v.PixelShader == id {
		d.state.SetPixelShader(metadata.FixedFunctionShader)
	}
	d.pipelines.RemoveFunc(func(k cache.PipelineKey) bool {
		return k.VertexShader == id || k.PixelShader == id
	})
	if d.batch.Len() == 0 {
		d.graveyard.Drain()
	}
	return nil
}

func (d *Device) checkShader(id metadata.ShaderID, stage metadata.ShaderStage) error {
	if id == metadata.FixedFunctionShader {
		return nil
	}
	s, ok := d.shaders.Lookup(uint32(id))
	if !ok {
		return fmt.Errorf("shader %d: %w", id, core.ErrInvalidParameter)
	}
	if s.Stage != stage {
		return fmt.Errorf("shader %d is stage %d: %w", id, s.Stage, core.ErrInvalidParameter)
	}
	return nil
}
