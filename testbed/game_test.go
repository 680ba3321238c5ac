package testbed

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/spaghettifunk/ffbridge/engine/math"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

func TestPackVerticesMatchesFVFLayout(t *testing.T) {
	for _, tt := range []struct {
		fvf      metadata.FVF
		stride   int
		textured bool
	}{
		{colorFVF, colorStride, false},
		{texturedFVF, texturedStride, true},
	} {
		stride, err := metadata.FVFStride(tt.fvf)
		if err != nil || int(stride) != tt.stride {
			t.Fatalf("fvf %#x stride = %d, %v; want %d", uint32(tt.fvf), stride, err, tt.stride)
		}

		data := packVertices([]vertex{{pos: math.NewVec3(1, 2, 3), color: 0xff112233, u: 0.5, v: 1}}, tt.textured)
		if len(data) != tt.stride {
			t.Fatalf("packed %d bytes, want %d", len(data), tt.stride)
		}
		if y := gomath.Float32frombits(binary.LittleEndian.Uint32(data[4:])); y != 2 {
			t.Fatalf("y = %v", y)
		}
		// D3DCOLOR lands in memory as B, G, R, A
		if data[12] != 0x33 || data[15] != 0xff {
			t.Fatalf("color bytes = % x", data[12:16])
		}
	}
}

func TestCheckerboard(t *testing.T) {
	px := checkerboard(2, 0xffffffff, 0xff000000)
	if len(px) != 16 {
		t.Fatalf("len = %d", len(px))
	}
	if binary.LittleEndian.Uint32(px[4:]) != 0xff000000 || binary.LittleEndian.Uint32(px[12:]) != 0xffffffff {
		t.Fatalf("texels = % x", px)
	}
	if uint64(len(px)) != metadata.ImageFormatB8G8R8A8Unorm.LevelSize(2, 2) {
		t.Fatal("checkerboard does not fill a 2x2 level")
	}
}
