package metadata

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/ffbridge/engine/core"
)

func TestConvertFormat(t *testing.T) {
	tests := []struct {
		in   Format
		want ImageFormat
	}{
		{FMT_A8R8G8B8, ImageFormatB8G8R8A8Unorm},
		{FMT_X8R8G8B8, ImageFormatB8G8R8A8Unorm},
		{FMT_A8B8G8R8, ImageFormatR8G8B8A8Unorm},
		{FMT_R5G6B5, ImageFormatR5G6B5Pack16},
		{FMT_L8, ImageFormatR8Unorm},
		{FMT_DXT1, ImageFormatBC1},
		{FMT_DXT5, ImageFormatBC3},
		{FMT_D24S8, ImageFormatD24S8},
	}
	for _, tt := range tests {
		got, err := ConvertFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ConvertFormat(%#x) = %v, %v; want %v", uint32(tt.in), got, err, tt.want)
		}
	}
	for _, f := range []Format{FMT_UNKNOWN, FMT_R8G8B8, FMT_A4R4G4B4, FMT_INDEX16} {
		if _, err := ConvertFormat(f); !errors.Is(err, core.ErrUnsupportedFormat) {
			t.Errorf("ConvertFormat(%#x) err = %v", uint32(f), err)
		}
	}
}

func TestConvertIndexFormat(t *testing.T) {
	if it, err := ConvertIndexFormat(FMT_INDEX16); err != nil || it != IndexTypeUint16 || it.Size() != 2 {
		t.Errorf("INDEX16 = %v, %v", it, err)
	}
	if it, err := ConvertIndexFormat(FMT_INDEX32); err != nil || it != IndexTypeUint32 || it.Size() != 4 {
		t.Errorf("INDEX32 = %v, %v", it, err)
	}
	if _, err := ConvertIndexFormat(FMT_A8R8G8B8); !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Errorf("err = %v", err)
	}
}

func TestLevelSize(t *testing.T) {
	if got := ImageFormatB8G8R8A8Unorm.LevelSize(4, 2); got != 32 {
		t.Errorf("rgba 4x2 = %d", got)
	}
	// partial blocks round up
	if got := ImageFormatBC1.LevelSize(5, 5); got != 4*8 {
		t.Errorf("bc1 5x5 = %d", got)
	}
}
