package cache

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

type fakeSamplers struct {
	next      metadata.SamplerHandle
	created   int
	destroyed map[metadata.SamplerHandle]int
	err       error
}

func (f *fakeSamplers) CreateSampler(desc metadata.SamplerDesc) (metadata.SamplerHandle, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.next++
	f.created++
	return f.next, nil
}

func (f *fakeSamplers) DestroySampler(h metadata.SamplerHandle) {
	f.destroyed[h]++
}

func TestSamplerCacheReusesEqualDescriptions(t *testing.T) {
	f := &fakeSamplers{destroyed: map[metadata.SamplerHandle]int{}}
	c, _ := NewSamplerCache(f, 0, NewGraveyard())

	desc := metadata.DefaultSamplerDesc()
	a, err := c.GetOrCreate(desc)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.GetOrCreate(metadata.DefaultSamplerDesc())
	if a != b || f.created != 1 {
		t.Fatalf("equal descriptions created %d samplers", f.created)
	}

	desc.MagFilter = metadata.TEXF_LINEAR
	d, _ := c.GetOrCreate(desc)
	if d == a || f.created != 2 {
		t.Fatal("different description reused a sampler")
	}
}

func TestSamplerCacheFailureIsResourceCreation(t *testing.T) {
	f := &fakeSamplers{destroyed: map[metadata.SamplerHandle]int{}, err: errors.New("out of memory")}
	c, _ := NewSamplerCache(f, 0, NewGraveyard())
	if _, err := c.GetOrCreate(metadata.DefaultSamplerDesc()); !errors.Is(err, core.ErrResourceCreationFailed) {
		t.Fatalf("err = %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("failed sampler cached")
	}
}

func TestSamplerCachePurgeDestroysEachOnce(t *testing.T) {
	f := &fakeSamplers{destroyed: map[metadata.SamplerHandle]int{}}
	g := NewGraveyard()
	c, _ := NewSamplerCache(f, 0, g)
	desc := metadata.DefaultSamplerDesc()
	c.GetOrCreate(desc)
	desc.AddressU = metadata.TADDRESS_CLAMP
	c.GetOrCreate(desc)

	c.Purge()
	c.Purge()
	g.Drain()
	if len(f.destroyed) != 2 {
		t.Fatalf("destroyed %v", f.destroyed)
	}
	for h, n := range f.destroyed {
		if n != 1 {
			t.Fatalf("sampler %d destroyed %d times", h, n)
		}
	}
}
