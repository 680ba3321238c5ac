package cache

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

type SamplerBuilder interface {
	CreateSampler(desc metadata.SamplerDesc) (metadata.SamplerHandle, error)
	DestroySampler(h metadata.SamplerHandle)
}

type SamplerEntry struct {
	Handle   metadata.SamplerHandle
	Desc     metadata.SamplerDesc
	LastUsed time.Time
}

// SamplerCache deduplicates samplers by their exact description. It is
// independent of the pipeline cache since one sampler is typically read
// by many pipelines.
type SamplerCache struct {
	builder   SamplerBuilder
	store     *Store[metadata.SamplerDesc, *SamplerEntry]
	graveyard *Graveyard
	stats     CacheStats
	onRelease []func(*SamplerEntry)
	now       func() time.Time
}

func NewSamplerCache(builder SamplerBuilder, capacity int, graveyard *Graveyard) (*SamplerCache, error) {
	c := &SamplerCache{
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

func (c *SamplerCache) OnRelease(fn func(*SamplerEntry)) {
	c.onRelease = append(c.onRelease, fn)
}

func (c *SamplerCache) evict(_ metadata.SamplerDesc, e *SamplerEntry) {
	c.stats.Evicted++
	c.graveyard.Bury(func() {
		for _, fn := range c.onRelease {
			fn(e)
		}
		c.builder.DestroySampler(e.Handle)
	})
}

func (c *SamplerCache) GetOrCreate(desc metadata.SamplerDesc) (metadata.SamplerHandle, error) {
	if e, ok := c.store.Get(desc); ok {
		c.stats.Hits++
		e.LastUsed = c.now()
		return e.Handle, nil
	}
	c.stats.Misses++
	h, err := c.builder.CreateSampler(desc)
	if err != nil {
		c.stats.Failed++
		return 0, fmt.Errorf("sampler: %w: %w", core.ErrResourceCreationFailed, err)
	}
	c.store.Add(desc, &SamplerEntry{Handle: h, Desc: desc, LastUsed: c.now()})
	c.stats.Created++
	return h, nil
}

func (c *SamplerCache) Len() int {
	return c.store.Len()
}

func (c *SamplerCache) Stats() CacheStats {
	return c.stats
}

func (c *SamplerCache) Purge() {
	c.store.Purge()
}
