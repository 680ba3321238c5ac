package assets

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/ffbridge/engine/core"
)

func writeBMP(t *testing.T, dir string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})
	img.Set(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	f, err := os.Create(filepath.Join(dir, "quad.bmp"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := bmp.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestImageLoaderBGRA(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, dir)

	il := &ImageLoader{BasePath: dir}
	img, err := il.Load("quad.bmp")
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 2 || img.Height != 2 || len(img.Pixels) != 16 {
		t.Fatalf("image = %dx%d, %d bytes", img.Width, img.Height, len(img.Pixels))
	}
	// red texel stored as B, G, R, A
	if got := img.Pixels[0:4]; got[0] != 0 || got[2] != 255 || got[3] != 255 {
		t.Fatalf("texel 0 = % x", got)
	}

	il.FlipY = true
	flipped, err := il.Load("quad.bmp")
	if err != nil {
		t.Fatal(err)
	}
	// blue moves to the top row
	if got := flipped.Pixels[0:4]; got[0] != 255 || got[2] != 0 {
		t.Fatalf("flipped texel 0 = % x", got)
	}
}

func TestImageLoaderRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "junk.png"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := (&ImageLoader{BasePath: dir}).Load("junk.png")
	if !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Fatalf("err = %v", err)
	}
	if _, err := (&ImageLoader{}).Load(filepath.Join(dir, "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing err = %v", err)
	}
}
