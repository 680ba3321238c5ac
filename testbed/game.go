package testbed

import (
	"context"
	"encoding/binary"
	"fmt"
	gomath "math"
	"os"

	"github.com/goforj/godump"
	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/ffbridge/engine"
	"github.com/spaghettifunk/ffbridge/engine/assets"
	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/math"
	"github.com/spaghettifunk/ffbridge/engine/renderer"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

const (
	colorFVF    = metadata.FVF_XYZ | metadata.FVF_DIFFUSE
	colorStride = 16

	// one 2D texture coordinate set
	texturedFVF    = metadata.FVF_XYZ | metadata.FVF_DIFFUSE | 1<<metadata.FVF_TEXCOUNT_SHIFT
	texturedStride = 24

	checkerSize = 8
)

// TestGame drives a device the way a legacy fixed-function client does: a
// spinning vertex-colored triangle next to a textured quad.
type TestGame struct {
	*engine.Game
}

// Options are the testbed's command-line settings.
type Options struct {
	// Screenshot of the last frame, written on shutdown if set.
	Screenshot string
	// Image shown on the quad instead of the checkerboard.
	Texture string
}

type gameState struct {
	width  uint32
	height uint32
	opts   Options

	angle    float32
	frames   uint64
	triangle metadata.BufferHandle
	quad     metadata.BufferHandle
	checker  metadata.ImageHandle
}

func NewTestGame(cfg *engine.ApplicationConfig, opts Options) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State:             &gameState{opts: opts},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(dev *renderer.Device) error {
	core.LogInfo("initializing testbed...")
	s := g.state()
	vp := dev.State().Values().Viewport
	s.width, s.height = vp.Width, vp.Height

	var err error
	s.triangle, err = dev.UploadBuffer(metadata.BufferUsageVertex, packVertices([]vertex{
		{pos: math.NewVec3(0, 0.6, 0), color: 0xffff0000},
		{pos: math.NewVec3(0.6, -0.5, 0), color: 0xff00ff00},
		{pos: math.NewVec3(-0.6, -0.5, 0), color: 0xff0000ff},
	}, false))
	if err != nil {
		return fmt.Errorf("triangle buffer: %w", err)
	}
	s.quad, err = dev.UploadBuffer(metadata.BufferUsageVertex, packVertices([]vertex{
		{pos: math.NewVec3(-0.5, 0.5, 0), color: 0xffffffff, u: 0, v: 0},
		{pos: math.NewVec3(0.5, 0.5, 0), color: 0xffffffff, u: 1, v: 0},
		{pos: math.NewVec3(-0.5, -0.5, 0), color: 0xffffffff, u: 0, v: 1},
		{pos: math.NewVec3(0.5, -0.5, 0), color: 0xffffffff, u: 1, v: 1},
	}, true))
	if err != nil {
		return fmt.Errorf("quad buffer: %w", err)
	}

	img := &assets.Image{Width: checkerSize, Height: checkerSize, Pixels: checkerboard(checkerSize, 0xffffffff, 0xff202020)}
	if s.opts.Texture != "" {
		if img, err = (&assets.ImageLoader{}).Load(s.opts.Texture); err != nil {
			return err
		}
	}
	s.checker, err = dev.CreateTexture(img.Width, img.Height, 1, metadata.FMT_A8R8G8B8)
	if err != nil {
		return err
	}
	if err := dev.WriteTexture(s.checker, 0, img.Pixels); err != nil {
		return err
	}

	aspect := float32(s.width) / float32(s.height)
	view := math.NewMat4LookAtLH(math.NewVec3(0, 0, -3), math.NewVec3(0, 0, 0), math.NewVec3(0, 1, 0))
	proj := math.NewMat4PerspectiveLH(math.DegToRad(45), aspect, 0.1, 100)
	if err := dev.SetTransform(metadata.TS_VIEW, view); err != nil {
		return err
	}
	if err := dev.SetTransform(metadata.TS_PROJECTION, proj); err != nil {
		return err
	}
	if err := dev.SetRenderState(metadata.RS_LIGHTING, 0); err != nil {
		return err
	}
	if err := dev.SetRenderState(metadata.RS_CULLMODE, uint32(metadata.CULL_NONE)); err != nil {
		return err
	}
	// compile the triangle's shaders before the first frame
	if err := dev.SetFVF(colorFVF); err != nil {
		return err
	}
	return dev.WarmUp(context.Background())
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.angle += float32(deltaTime)
	s.frames++
	return nil
}

func (g *TestGame) Render(dev *renderer.Device, deltaTime float64) error {
	s := g.state()

	if err := dev.Clear(0xff203040, 1, 0); err != nil {
		return err
	}
	if err := dev.BeginScene(); err != nil {
		return err
	}

	world := math.NewMat4EulerZ(s.angle).Mul(math.NewMat4Translation(math.NewVec3(-0.7, 0, 0)))
	if err := g.draw(dev, world, colorFVF, colorStride, s.triangle, 0, metadata.PT_TRIANGLELIST, 1); err != nil {
		return err
	}

	if err := dev.SetSamplerState(0, metadata.SAMP_MINFILTER, uint32(metadata.TEXF_POINT)); err != nil {
		return err
	}
	if err := dev.SetSamplerState(0, metadata.SAMP_MAGFILTER, uint32(metadata.TEXF_POINT)); err != nil {
		return err
	}
	world = math.NewMat4Scale(math.NewVec3(0.8, 0.8, 1)).Mul(math.NewMat4Translation(math.NewVec3(0.7, 0, 0)))
	if err := g.draw(dev, world, texturedFVF, texturedStride, s.quad, s.checker, metadata.PT_TRIANGLESTRIP, 2); err != nil {
		return err
	}

	return dev.EndScene()
}

func (g *TestGame) draw(dev *renderer.Device, world math.Mat4, fvf metadata.FVF, stride uint16, vb metadata.BufferHandle, tex metadata.ImageHandle, pt metadata.PrimitiveType, primitives uint32) error {
	if err := dev.SetTransform(metadata.TS_WORLD, world); err != nil {
		return err
	}
	if err := dev.SetFVF(fvf); err != nil {
		return err
	}
	if err := dev.SetStreamSource(0, vb, 0, stride); err != nil {
		return err
	}
	if err := dev.SetTexture(0, tex); err != nil {
		return err
	}
	h, err := dev.BeginDraw(pt)
	if err != nil {
		return err
	}
	return dev.DrawPrimitive(h, 0, metadata.VertexCount(pt, primitives))
}

func (g *TestGame) Shutdown(dev *renderer.Device) error {
	s := g.state()
	fps, frameMS := dev.FrameMetrics()
	core.LogInfo("testbed ran %d frames, %.1f fps, %.3fms per frame", s.frames, fps, frameMS)
	core.LogDebug("flush stats: %s", godump.DumpStr(dev.Stats()))

	if s.opts.Screenshot != "" && dev.Lost() == nil && s.frames > 0 {
		if err := writeScreenshot(dev, s.opts.Screenshot); err != nil {
			core.LogError("screenshot: %s", err)
		}
	}
	for _, vb := range []metadata.BufferHandle{s.triangle, s.quad} {
		if vb != 0 {
			dev.DestroyBuffer(vb)
		}
	}
	if s.checker != 0 {
		dev.ReleaseTexture(s.checker)
	}
	return nil
}

func writeScreenshot(dev *renderer.Device, path string) error {
	img, err := dev.ReadPixels()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bmp.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	core.LogInfo("wrote %s", path)
	return f.Close()
}

type vertex struct {
	pos   math.Vec3
	color uint32
	u, v  float32
}

func packVertices(vs []vertex, textured bool) []byte {
	stride := colorStride
	if textured {
		stride = texturedStride
	}
	out := make([]byte, len(vs)*stride)
	for i, vx := range vs {
		b := out[i*stride:]
		binary.LittleEndian.PutUint32(b[0:], gomath.Float32bits(vx.pos.X))
		binary.LittleEndian.PutUint32(b[4:], gomath.Float32bits(vx.pos.Y))
		binary.LittleEndian.PutUint32(b[8:], gomath.Float32bits(vx.pos.Z))
		binary.LittleEndian.PutUint32(b[12:], vx.color)
		if textured {
			binary.LittleEndian.PutUint32(b[16:], gomath.Float32bits(vx.u))
			binary.LittleEndian.PutUint32(b[20:], gomath.Float32bits(vx.v))
		}
	}
	return out
}

// checkerboard returns size*size A8R8G8B8 texels.
func checkerboard(size int, a, b uint32) []byte {
	out := make([]byte, size*size*4)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := a
			if (x+y)%2 == 1 {
				c = b
			}
			binary.LittleEndian.PutUint32(out[(y*size+x)*4:], c)
		}
	}
	return out
}
