package cache

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// PipelineKey is every input that changes generated shader code or fixed
// pipeline configuration. Two draws share a pipeline only if their keys
// are equal field by field.
type PipelineKey struct {
	Topology     metadata.Topology
	VertexShader metadata.ShaderID
	PixelShader  metadata.ShaderID
	FVF          metadata.FVF
	Layout       metadata.VertexLayout
	Constants    metadata.SpecializationConstants
	CullMode     metadata.CullMode
	FillMode     metadata.FillMode
}

// PipelineObjects are the backend objects built for one key.
type PipelineObjects struct {
	Pipeline  metadata.PipelineHandle
	Layout    metadata.PipelineLayoutHandle
	SetLayout metadata.DescriptorSetLayoutHandle
	Bindings  metadata.BindingTable
}

type PipelineEntry struct {
	PipelineObjects
	Key      PipelineKey
	LastUsed time.Time
}

// PipelineBuilder creates and destroys the objects behind a key.
// BuildPipeline must release anything it created before failing.
type PipelineBuilder interface {
	BuildPipeline(key PipelineKey) (PipelineObjects, error)
	ReleasePipeline(objs PipelineObjects)
}

type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Created uint64
	Failed  uint64
	Evicted uint64
}

// PipelineCache owns every pipeline it creates. Entries leaving the cache
// are handed to the graveyard, so a pipeline recorded into a command buffer
// stays alive until that buffer completed.
type PipelineCache struct {
	builder   PipelineBuilder
	store     *Store[PipelineKey, *PipelineEntry]
	graveyard *Graveyard
	stats     CacheStats
	onRelease []func(*PipelineEntry)
	now       func() time.Time
}

func NewPipelineCache(builder PipelineBuilder, capacity int, graveyard *Graveyard) (*PipelineCache, error) {
	c := &PipelineCache{
		builder:   builder,
		graveyard: graveyard,
		now:       time.Now,
	}
	store, err := NewStore(capacity, c.evict)
	if err != nil {
		return nil, err
	}
	c.store = store
	return c, nil
}

// OnRelease registers fn to run just before an entry's objects are
// destroyed. Dependent caches use it to drop objects built on the entry's
// descriptor-set layout.
func (c *PipelineCache) OnRelease(fn func(*PipelineEntry)) {
	c.onRelease = append(c.onRelease, fn)
}

func (c *PipelineCache) evict(_ PipelineKey, e *PipelineEntry) {
	c.stats.Evicted++
	c.graveyard.Bury(func() {
		for _, fn := range c.onRelease {
			fn(e)
		}
		c.builder.ReleasePipeline(e.PipelineObjects)
	})
}

// GetOrCreate returns the entry for key, building it on a miss. A failed
// build leaves the cache unchanged.
func (c *PipelineCache) GetOrCreate(key PipelineKey) (*PipelineEntry, error) {
	if e, ok := c.store.Get(key); ok {
		c.stats.Hits++
		e.LastUsed = c.now()
		return e, nil
	}
	c.stats.Misses++
	objs, err := c.builder.BuildPipeline(key)
	if err != nil {
		c.stats.Failed++
		return nil, fmt.Errorf("%w: %w", core.ErrPipelineCreationFailed, err)
	}
	e := &PipelineEntry{PipelineObjects: objs, Key: key, LastUsed: c.now()}
	c.store.Add(key, e)
	c.stats.Created++
	return e, nil
}

func (c *PipelineCache) Len() int {
	return c.store.Len()
}

func (c *PipelineCache) Stats() CacheStats {
	return c.stats
}

// RemoveFunc retires every entry whose key matches.
func (c *PipelineCache) RemoveFunc(match func(PipelineKey) bool) int {
	return c.store.RemoveFunc(func(k PipelineKey, _ *PipelineEntry) bool { return match(k) })
}

// Purge moves every entry to the graveyard.
func (c *PipelineCache) Purge() {
	c.store.Purge()
}
