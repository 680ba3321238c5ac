package renderer

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/cache"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
	"github.com/spaghettifunk/ffbridge/engine/renderer/state"
)

// Vulkan allows minUniformBufferOffsetAlignment up to 256.
const uniformOffsetAlignment = 256

var (
	fragmentUniformOffset = metadata.GetAligned(state.VertexConstantsSize, uniformOffsetAlignment)
	uniformBufferSize     = fragmentUniformOffset + state.PixelConstantsSize
)

type resourceKey struct {
	SetLayout  metadata.DescriptorSetLayoutHandle
	Images     [metadata.MaxSamplers]metadata.ImageBinding
	UniformGen uint64
}

// ResourceContext is one descriptor set with the images and uniform data a
// draw reads. It owns the set and its uniform buffer.
type ResourceContext struct {
	Key      resourceKey
	Set      metadata.DescriptorSetHandle
	Uniforms metadata.BufferHandle
	Memory   metadata.MemoryHandle
	LastUsed time.Time
}

type resourceContexts struct {
	backend   Backend
	samplers  *cache.SamplerCache
	store     *cache.Store[resourceKey, *ResourceContext]
	graveyard *cache.Graveyard
	fallback  metadata.ImageHandle
	created   uint64
}

func newResourceContexts(backend Backend, samplers *cache.SamplerCache, capacity int, graveyard *cache.Graveyard) (*resourceContexts, error) {
	r := &resourceContexts{backend: backend, samplers: samplers, graveyard: graveyard}
	store, err := cache.NewStore(capacity, func(_ resourceKey, rc *ResourceContext) {
		graveyard.Bury(func() { r.release(rc) })
	})
	if err != nil {
		return nil, err
	}
	r.store = store
	return r, nil
}

func (r *resourceContexts) release(rc *ResourceContext) {
	if rc.Set != 0 {
		r.backend.FreeDescriptorSet(rc.Set)
	}
	if rc.Uniforms != 0 {
		r.backend.DestroyBuffer(rc.Uniforms)
	}
	if rc.Memory != 0 {
		r.backend.FreeMemory(rc.Memory)
	}
}

// acquire returns the context for the pipeline's binding table filled from
// the uniform and resource snapshots, creating it on a miss.
func (r *resourceContexts) acquire(entry *cache.PipelineEntry, u *uniformSnapshot, res *resourceSnapshot) (*ResourceContext, error) {
	key := resourceKey{SetLayout: entry.SetLayout, UniformGen: u.gen}
	for _, b := range entry.Bindings.Slice() {
		if b.Kind == metadata.DescriptorUniformBuffer {
			continue
		}
		for i := uint32(0); i < b.Count; i++ {
			slot := uint32(b.FirstSlot) + i
			img := &key.Images[slot]
			if b.Kind != metadata.DescriptorSampler && img.Image == 0 {
				img.Image = res.textures[slot]
				if img.Image == 0 {
					img.Image = r.fallback
				}
			}
			if b.Kind != metadata.DescriptorSampledImage && img.Sampler == 0 {
				h, err := r.samplers.GetOrCreate(res.samplers[slot])
				if err != nil {
					return nil, err
				}
				img.Sampler = h
			}
		}
	}

	if rc, ok := r.store.Get(key); ok {
		rc.LastUsed = time.Now()
		return rc, nil
	}
	rc, err := r.create(key, entry.Bindings, u)
	if err != nil {
		return nil, fmt.Errorf("resource context: %w: %w", core.ErrResourceCreationFailed, err)
	}
	r.store.Add(key, rc)
	r.created++
	return rc, nil
}

func (r *resourceContexts) create(key resourceKey, bindings metadata.BindingTable, u *uniformSnapshot) (*ResourceContext, error) {
	rc := &ResourceContext{Key: key, LastUsed: time.Now()}
	var err error
	if rc.Set, err = r.backend.AllocateDescriptorSet(key.SetLayout); err != nil {
		return nil, r.abandon(rc, err)
	}
	rc.Uniforms, rc.Memory, err = r.backend.CreateBuffer(metadata.BufferDesc{
		Size:   uniformBufferSize,
		Usage:  metadata.BufferUsageUniform,
		Memory: metadata.MemoryHostVisible | metadata.MemoryHostCoherent,
	})
	if err != nil {
		return nil, r.abandon(rc, err)
	}
	if err = r.backend.WriteBuffer(rc.Uniforms, 0, u.vertex); err != nil {
		return nil, r.abandon(rc, err)
	}
	if err = r.backend.WriteBuffer(rc.Uniforms, fragmentUniformOffset, u.fragment); err != nil {
		return nil, r.abandon(rc, err)
	}

	writes := make([]metadata.DescriptorWrite, 0, 2+metadata.MaxSamplers)
	for _, b := range bindings.Slice() {
		switch b.Binding {
		case metadata.BindingVertexUniforms:
			writes = append(writes, metadata.DescriptorWrite{Binding: b.Binding, Kind: b.Kind, Buffer: rc.Uniforms, Range: uint64(len(u.vertex))})
			continue
		case metadata.BindingFragmentUniforms:
			writes = append(writes, metadata.DescriptorWrite{Binding: b.Binding, Kind: b.Kind, Buffer: rc.Uniforms, Offset: fragmentUniformOffset, Range: uint64(len(u.fragment))})
			continue
		}
		for i := uint32(0); i < b.Count; i++ {
			img := key.Images[uint32(b.FirstSlot)+i]
			w := metadata.DescriptorWrite{Binding: b.Binding, ArrayElement: i, Kind: b.Kind}
			if b.Kind != metadata.DescriptorSampler {
				w.Image = img.Image
			}
			if b.Kind != metadata.DescriptorSampledImage {
				w.Sampler = img.Sampler
			}
			writes = append(writes, w)
		}
	}
	if err = r.backend.UpdateDescriptorSet(rc.Set, writes); err != nil {
		return nil, r.abandon(rc, err)
	}
	return rc, nil
}

func (r *resourceContexts) abandon(rc *ResourceContext, err error) error {
	r.release(rc)
	return err
}

// retire drops contexts built from superseded uniform data. Generations
// only grow, so those contexts can never be hit again.
func (r *resourceContexts) retire(uniformGen uint64) int {
	return r.store.RemoveFunc(func(k resourceKey, _ *ResourceContext) bool { return k.UniformGen != uniformGen })
}

func (r *resourceContexts) dropSetLayout(h metadata.DescriptorSetLayoutHandle) int {
	return r.store.RemoveFunc(func(k resourceKey, _ *ResourceContext) bool { return k.SetLayout == h })
}

func (r *resourceContexts) dropSampler(h metadata.SamplerHandle) int {
	return r.store.RemoveFunc(func(k resourceKey, _ *ResourceContext) bool {
		for _, img := range k.Images {
			if img.Sampler == h {
				return true
			}
		}
		return false
	})
}

func (r *resourceContexts) dropImage(h metadata.ImageHandle) int {
	return r.store.RemoveFunc(func(k resourceKey, _ *ResourceContext) bool {
		for _, img := range k.Images {
			if img.Image == h {
				return true
			}
		}
		return false
	})
}

func (r *resourceContexts) Len() int {
	return r.store.Len()
}

func (r *resourceContexts) purge() {
	r.store.Purge()
}
