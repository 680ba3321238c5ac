package renderer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

func texturedConstants(textures int) metadata.SpecializationConstants {
	c := metadata.SpecializationConstants{HasDiffuse: 1, TextureCount: int32(textures)}
	for i := 0; i < textures; i++ {
		c.StageColorOp[i] = int32(metadata.TOP_MODULATE)
		c.StageColorArg1[i] = int32(metadata.TA_TEXTURE)
		c.StageColorArg2[i] = int32(metadata.TA_CURRENT)
		c.StageAlphaOp[i] = int32(metadata.TOP_SELECTARG1)
		c.StageAlphaArg1[i] = int32(metadata.TA_TEXTURE)
	}
	return c
}

func TestFragmentSourceBindsOnePairPerTexture(t *testing.T) {
	l := NewShaderLibrary(fakeSPIRV)
	src, err := l.Source(Variant{Stage: metadata.ShaderStageFragment, Constants: texturedConstants(2)})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"@binding(1) var<uniform> ff",
		"@binding(2) var t0: texture_2d<f32>",
		"@binding(3) var s0: sampler",
		"@binding(4) var t1: texture_2d<f32>",
		"@binding(5) var s1: sampler",
		"(tex1.rgb * current.rgb)",
		"fn fs_main",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("source lacks %q:\n%s", want, src)
		}
	}
	if strings.Contains(src, "var t2") || strings.Contains(src, "discard") {
		t.Errorf("unexpected texture or alpha test:\n%s", src)
	}
}

func TestFragmentSourceAlphaTestAndFallbackOp(t *testing.T) {
	c := texturedConstants(1)
	c.AlphaTestEnabled = 1
	c.AlphaFunc = int32(metadata.CMP_GREATER)
	c.StageColorOp[0] = int32(metadata.TOP_DOTPRODUCT3)
	src, err := NewShaderLibrary(fakeSPIRV).Source(Variant{Stage: metadata.ShaderStageFragment, Constants: c})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(src, "discard") {
		t.Errorf("alpha test missing:\n%s", src)
	}
	// no translation for the dot product: the first argument passes through
	if !strings.Contains(src, "current = vec4<f32>(tex0.rgb, tex0.a)") {
		t.Errorf("fallback op not arg1:\n%s", src)
	}
}

func TestVertexSourceUnrollsEnabledLights(t *testing.T) {
	c := metadata.SpecializationConstants{LightingEnabled: 1, LightCount: 2, HasNormal: 1}
	inputs := uint32(1)<<metadata.LocationPosition | uint32(1)<<metadata.LocationNormal
	src, err := NewShaderLibrary(fakeSPIRV).Source(Variant{Stage: metadata.ShaderStageVertex, Constants: c, Inputs: inputs})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"lights.light[0]", "lights.light[1]", "@location(1) normal", "fn vs_main"} {
		if !strings.Contains(src, want) {
			t.Errorf("source lacks %q", want)
		}
	}
	if strings.Contains(src, "lights.light[2]") || strings.Contains(src, "color0") {
		t.Errorf("unexpected light or colour input:\n%s", src)
	}
}

func TestCodeCompilesEachVariantOnce(t *testing.T) {
	var compiles atomic.Int32
	l := NewShaderLibrary(func(src string) ([]byte, error) {
		compiles.Add(1)
		return fakeSPIRV(src)
	})
	frag := Variant{Stage: metadata.ShaderStageFragment, Constants: texturedConstants(1)}
	for _, inputs := range []uint32{0, 1, 0xff} {
		frag.Inputs = inputs
		code, err := l.Code(frag)
		if err != nil {
			t.Fatal(err)
		}
		if code[0] != spirvMagic {
			t.Fatalf("code = %#x", code)
		}
	}
	// vertex inputs do not select fragment variants
	if compiles.Load() != 1 || l.Len() != 1 {
		t.Fatalf("compiled %d times, %d cached", compiles.Load(), l.Len())
	}
}

func TestWarmUpCompilesAllVariants(t *testing.T) {
	var compiles atomic.Int32
	l := NewShaderLibrary(func(src string) ([]byte, error) {
		compiles.Add(1)
		return fakeSPIRV(src)
	})
	var variants []Variant
	for i := 0; i < 4; i++ {
		variants = append(variants,
			Variant{Stage: metadata.ShaderStageFragment, Constants: texturedConstants(i)},
			Variant{Stage: metadata.ShaderStageVertex, Constants: metadata.SpecializationConstants{TexCoordCount: int32(i)}, Inputs: 1},
		)
	}
	if err := l.WarmUp(context.Background(), variants); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 8 || compiles.Load() != 8 {
		t.Fatalf("cached %d, compiled %d", l.Len(), compiles.Load())
	}
}

func TestCompileErrorIsReturned(t *testing.T) {
	boom := errors.New("wgsl: unexpected token")
	l := NewShaderLibrary(func(string) ([]byte, error) { return nil, boom })
	_, err := l.Code(Variant{Stage: metadata.ShaderStageVertex})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("failed variant cached")
	}
	if _, err := l.Source(Variant{Stage: metadata.ShaderStageAll}); err == nil {
		t.Error("combined stage rendered")
	}
}
