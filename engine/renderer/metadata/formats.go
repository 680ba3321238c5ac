package metadata

import (
	"fmt"

	"github.com/spaghettifunk/ffbridge/engine/core"
)

/** @brief Legacy surface and buffer formats. */
type Format uint32

func makeFourCC(a, b, c, d byte) Format {
	return Format(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

var (
	FMT_DXT1 = makeFourCC('D', 'X', 'T', '1')
	FMT_DXT3 = makeFourCC('D', 'X', 'T', '3')
	FMT_DXT5 = makeFourCC('D', 'X', 'T', '5')
)

const (
	FMT_UNKNOWN  Format = 0
	FMT_R8G8B8   Format = 20
	FMT_A8R8G8B8 Format = 21
	FMT_X8R8G8B8 Format = 22
	FMT_R5G6B5   Format = 23
	FMT_X1R5G5B5 Format = 24
	FMT_A1R5G5B5 Format = 25
	FMT_A4R4G4B4 Format = 26
	FMT_A8       Format = 28
	FMT_A8B8G8R8 Format = 32
	FMT_X8B8G8R8 Format = 33
	FMT_L8       Format = 50
	FMT_D32      Format = 71
	FMT_D24S8    Format = 75
	FMT_D24X8    Format = 77
	FMT_D16      Format = 80
	FMT_INDEX16  Format = 101
	FMT_INDEX32  Format = 102
)

/** @brief API-neutral image formats understood by the backend. */
type ImageFormat uint8

const (
	ImageFormatUndefined ImageFormat = iota
	ImageFormatB8G8R8A8Unorm
	ImageFormatR8G8B8A8Unorm
	ImageFormatR5G6B5Pack16
	ImageFormatA1R5G5B5Pack16
	ImageFormatR8Unorm
	ImageFormatBC1
	ImageFormatBC2
	ImageFormatBC3
	ImageFormatD16
	ImageFormatD24S8
	ImageFormatD32
)

/** @brief Size information for one format. Block formats report 4x4 blocks. */
type FormatInfo struct {
	BlockBytes  uint32
	BlockWidth  uint32
	BlockHeight uint32
	Depth       bool
}

var formatInfos = map[ImageFormat]FormatInfo{
	ImageFormatB8G8R8A8Unorm:  {4, 1, 1, false},
	ImageFormatR8G8B8A8Unorm:  {4, 1, 1, false},
	ImageFormatR5G6B5Pack16:   {2, 1, 1, false},
	ImageFormatA1R5G5B5Pack16: {2, 1, 1, false},
	ImageFormatR8Unorm:        {1, 1, 1, false},
	ImageFormatBC1:            {8, 4, 4, false},
	ImageFormatBC2:            {16, 4, 4, false},
	ImageFormatBC3:            {16, 4, 4, false},
	ImageFormatD16:            {2, 1, 1, true},
	ImageFormatD24S8:          {4, 1, 1, true},
	ImageFormatD32:            {4, 1, 1, true},
}

func (f ImageFormat) Info() FormatInfo {
	return formatInfos[f]
}

/** @brief Byte size of a width x height level in format f. */
func (f ImageFormat) LevelSize(width, height uint32) uint64 {
	info := f.Info()
	if info.BlockBytes == 0 {
		return 0
	}
	bw := (width + info.BlockWidth - 1) / info.BlockWidth
	bh := (height + info.BlockHeight - 1) / info.BlockHeight
	return uint64(bw) * uint64(bh) * uint64(info.BlockBytes)
}

/**
 * @brief Converts a legacy texture or depth format into its modern equivalent.
 * Formats with no equivalent fail with ErrUnsupportedFormat.
 */
func ConvertFormat(f Format) (ImageFormat, error) {
	switch f {
	case FMT_A8R8G8B8, FMT_X8R8G8B8:
		return ImageFormatB8G8R8A8Unorm, nil
	case FMT_A8B8G8R8, FMT_X8B8G8R8:
		return ImageFormatR8G8B8A8Unorm, nil
	case FMT_R5G6B5:
		return ImageFormatR5G6B5Pack16, nil
	case FMT_A1R5G5B5, FMT_X1R5G5B5:
		return ImageFormatA1R5G5B5Pack16, nil
	case FMT_L8, FMT_A8:
		return ImageFormatR8Unorm, nil
	case FMT_DXT1:
		return ImageFormatBC1, nil
	case FMT_DXT3:
		return ImageFormatBC2, nil
	case FMT_DXT5:
		return ImageFormatBC3, nil
	case FMT_D16:
		return ImageFormatD16, nil
	case FMT_D24S8, FMT_D24X8:
		return ImageFormatD24S8, nil
	case FMT_D32:
		return ImageFormatD32, nil
	}
	return ImageFormatUndefined, fmt.Errorf("format %#x: %w", uint32(f), core.ErrUnsupportedFormat)
}

/** @brief Width of an index element. */
type IndexType uint8

const (
	IndexTypeUint16 IndexType = iota
	IndexTypeUint32
)

func (t IndexType) Size() uint32 {
	if t == IndexTypeUint32 {
		return 4
	}
	return 2
}

/** @brief Maps an index buffer format. Only 16 and 32 bit indices exist. */
func ConvertIndexFormat(f Format) (IndexType, error) {
	switch f {
	case FMT_INDEX16:
		return IndexTypeUint16, nil
	case FMT_INDEX32:
		return IndexTypeUint32, nil
	}
	return 0, fmt.Errorf("index format %#x: %w", uint32(f), core.ErrUnsupportedFormat)
}
