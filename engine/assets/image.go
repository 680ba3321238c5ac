package assets

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/ffbridge/engine/core"
)

// Image is decoded pixel data laid out as FMT_A8R8G8B8 texels, ready for
// Device.WriteTexture.
type Image struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// ImageLoader decodes PNG, JPEG, BMP, TIFF and WebP files.
type ImageLoader struct {
	// Relative names are resolved against BasePath.
	BasePath string
	FlipY    bool
}

func (il *ImageLoader) Load(name string) (*Image, error) {
	path := name
	if il.BasePath != "" && !filepath.IsAbs(name) {
		path = filepath.Join(il.BasePath, name)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", path, core.ErrUnsupportedFormat, err)
	}
	core.LogDebug("loaded %s image %s (%dx%d)", format, path, img.Bounds().Dx(), img.Bounds().Dy())
	return FromImage(img, il.FlipY), nil
}

// FromImage converts any image to straight-alpha A8R8G8B8 texels.
func FromImage(src image.Image, flipY bool) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		sy := y
		if flipY {
			sy = h - 1 - y
		}
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+sy)).(color.NRGBA)
			i := (y*w + x) * 4
			out[i], out[i+1], out[i+2], out[i+3] = c.B, c.G, c.R, c.A
		}
	}
	return &Image{Width: uint32(w), Height: uint32(h), Pixels: out}
}
