package cache

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

type fakeBuilder struct {
	next     uint64
	built    int
	released map[metadata.PipelineHandle]int
	fail     bool
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{released: make(map[metadata.PipelineHandle]int)}
}

func (b *fakeBuilder) BuildPipeline(key PipelineKey) (PipelineObjects, error) {
	if b.fail {
		return PipelineObjects{}, errors.New("driver rejected pipeline")
	}
	b.next++
	b.built++
	return PipelineObjects{
		Pipeline:  metadata.PipelineHandle(b.next),
		Layout:    metadata.PipelineLayoutHandle(b.next),
		SetLayout: metadata.DescriptorSetLayoutHandle(b.next),
	}, nil
}

func (b *fakeBuilder) ReleasePipeline(objs PipelineObjects) {
	b.released[objs.Pipeline]++
}

func key(topology metadata.Topology, fvf metadata.FVF) PipelineKey {
	return PipelineKey{Topology: topology, FVF: fvf, CullMode: metadata.CULL_CCW, FillMode: metadata.FILL_SOLID}
}

func TestPipelineCacheReturnsSameEntryForEqualKeys(t *testing.T) {
	b := newFakeBuilder()
	c, err := NewPipelineCache(b, 0, NewGraveyard())
	if err != nil {
		t.Fatal(err)
	}
	k := key(metadata.TopologyTriangleList, metadata.FVF_XYZ)
	first, err := c.GetOrCreate(k)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.GetOrCreate(key(metadata.TopologyTriangleList, metadata.FVF_XYZ))
	if err != nil {
		t.Fatal(err)
	}
	if first.Pipeline != second.Pipeline || b.built != 1 {
		t.Fatalf("equal keys built %d pipelines", b.built)
	}

	other, err := c.GetOrCreate(key(metadata.TopologyTriangleStrip, metadata.FVF_XYZ))
	if err != nil {
		t.Fatal(err)
	}
	if other.Pipeline == first.Pipeline {
		t.Fatal("different keys share a pipeline")
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 2 || st.Created != 2 || c.Len() != 2 {
		t.Fatalf("stats = %+v len=%d", st, c.Len())
	}
}

func TestPipelineCacheKeysDifferingInOneField(t *testing.T) {
	base := key(metadata.TopologyTriangleList, metadata.FVF_XYZ)
	tests := []struct {
		name   string
		modify func(k *PipelineKey)
	}{
		{"topology", func(k *PipelineKey) { k.Topology = metadata.TopologyLineList }},
		{"fvf", func(k *PipelineKey) { k.FVF |= metadata.FVF_DIFFUSE }},
		{"vertex shader", func(k *PipelineKey) { k.VertexShader = 3 }},
		{"pixel shader", func(k *PipelineKey) { k.PixelShader = 4 }},
		{"cull mode", func(k *PipelineKey) { k.CullMode = metadata.CULL_NONE }},
		{"fill mode", func(k *PipelineKey) { k.FillMode = metadata.FILL_WIREFRAME }},
		{"constants", func(k *PipelineKey) { k.Constants.LightCount = 2 }},
		{"texture count", func(k *PipelineKey) { k.Constants.TextureCount = 1 }},
		{"layout stride", func(k *PipelineKey) { k.Layout.Strides[0] = 12 }},
		{"layout attribute", func(k *PipelineKey) {
			k.Layout.AttributeCount = 1
			k.Layout.Attributes[0] = metadata.VertexAttribute{Type: metadata.DECLTYPE_FLOAT3}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBuilder()
			c, err := NewPipelineCache(b, 0, NewGraveyard())
			if err != nil {
				t.Fatal(err)
			}
			first, err := c.GetOrCreate(base)
			if err != nil {
				t.Fatal(err)
			}
			k := base
			tt.modify(&k)
			second, err := c.GetOrCreate(k)
			if err != nil {
				t.Fatal(err)
			}
			if second.Pipeline == first.Pipeline || b.built != 2 || c.Len() != 2 {
				t.Fatalf("built %d pipelines, cached %d", b.built, c.Len())
			}
			again, err := c.GetOrCreate(k)
			if err != nil {
				t.Fatal(err)
			}
			if again.Pipeline != second.Pipeline || b.built != 2 {
				t.Fatalf("equal key rebuilt: %d pipelines", b.built)
			}
		})
	}
}

func TestPipelineCacheFailureLeavesCacheUnchanged(t *testing.T) {
	b := newFakeBuilder()
	c, _ := NewPipelineCache(b, 0, NewGraveyard())
	b.fail = true
	_, err := c.GetOrCreate(key(metadata.TopologyTriangleList, metadata.FVF_XYZ))
	if !errors.Is(err, core.ErrPipelineCreationFailed) {
		t.Fatalf("err = %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed build was cached")
	}
	b.fail = false
	if _, err := c.GetOrCreate(key(metadata.TopologyTriangleList, metadata.FVF_XYZ)); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestPipelineCacheEvictionReleasesOnceAfterDrain(t *testing.T) {
	b := newFakeBuilder()
	g := NewGraveyard()
	c, _ := NewPipelineCache(b, 2, g)
	var hooked []metadata.PipelineHandle
	c.OnRelease(func(e *PipelineEntry) { hooked = append(hooked, e.Pipeline) })

	first, _ := c.GetOrCreate(key(metadata.TopologyPointList, metadata.FVF_XYZ))
	c.GetOrCreate(key(metadata.TopologyLineList, metadata.FVF_XYZ))
	c.GetOrCreate(key(metadata.TopologyTriangleList, metadata.FVF_XYZ))

	if c.Len() != 2 {
		t.Fatalf("len = %d", c.Len())
	}
	if len(b.released) != 0 {
		t.Fatal("evicted pipeline destroyed before drain")
	}
	if n := g.Drain(); n != 1 {
		t.Fatalf("drained %d", n)
	}
	if b.released[first.Pipeline] != 1 || len(hooked) != 1 || hooked[0] != first.Pipeline {
		t.Fatalf("released = %v hooked = %v", b.released, hooked)
	}

	c.Purge()
	g.Drain()
	for h, n := range b.released {
		if n != 1 {
			t.Fatalf("pipeline %d released %d times", h, n)
		}
	}
	if len(b.released) != 3 {
		t.Fatalf("released %d of 3", len(b.released))
	}
}
