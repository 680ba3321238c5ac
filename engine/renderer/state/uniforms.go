package state

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/ffbridge/engine/math"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

const (
	lightStride = 7 * 16
	// LightsBlockSize is the size of the fixed-function lights uniform block.
	LightsBlockSize = metadata.MaxLights * lightStride
	// FixedFunctionBlockSize is the size of the material and parameters block.
	FixedFunctionBlockSize = 9 * 16
	VertexConstantsSize    = metadata.MaxVertexShaderConstants * 16
	PixelConstantsSize     = metadata.MaxPixelShaderConstants * 16
)

type blockWriter struct {
	buf []byte
}

func (w *blockWriter) f32(f float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, gomath.Float32bits(f))
}

func (w *blockWriter) vec4(x, y, z, a float32) {
	w.f32(x)
	w.f32(y)
	w.f32(z)
	w.f32(a)
}

func (w *blockWriter) color(c math.Color) {
	w.vec4(c.X, c.Y, c.Z, c.W)
}

// UniformData returns the contents of the two uniform bindings. With a
// vertex shader bound binding 0 carries the vertex constants, otherwise
// the enabled lights. Binding 1 is the pixel constants or the fixed-function
// material block.
func (s *DeviceState) UniformData() (vertex []byte, fragment []byte) {
	v := &s.values
	if v.VertexShader != metadata.FixedFunctionShader {
		vertex = constantBytes(v.VSConstants[:])
	} else {
		vertex = s.lightsBlock()
	}
	if v.PixelShader != metadata.FixedFunctionShader {
		fragment = constantBytes(v.PSConstants[:])
	} else {
		fragment = s.fixedFunctionBlock()
	}
	return vertex, fragment
}

func constantBytes(regs []math.Vec4) []byte {
	w := blockWriter{buf: make([]byte, 0, len(regs)*16)}
	for _, r := range regs {
		w.vec4(r.X, r.Y, r.Z, r.W)
	}
	return w.buf
}

// lightsBlock packs enabled lights first, in index order. Positions and
// directions are moved into view space.
func (s *DeviceState) lightsBlock() []byte {
	w := blockWriter{buf: make([]byte, 0, LightsBlockSize)}
	for _, i := range s.EnabledLights() {
		l := s.values.Lights[i]
		w.color(l.Diffuse)
		w.color(l.Specular)
		w.color(l.Ambient)
		pos := s.values.View.TransformPoint(l.Position)
		w.vec4(pos.X, pos.Y, pos.Z, float32(l.Type))
		dir := s.values.View.TransformDirection(l.Direction).Normalized()
		w.vec4(dir.X, dir.Y, dir.Z, l.Range)
		w.vec4(l.Attenuation0, l.Attenuation1, l.Attenuation2, l.Falloff)
		w.vec4(float32(gomath.Cos(float64(l.Theta/2))), float32(gomath.Cos(float64(l.Phi/2))), 0, 0)
	}
	w.buf = w.buf[:LightsBlockSize]
	return w.buf
}

func (s *DeviceState) fixedFunctionBlock() []byte {
	v := &s.values
	rs := &v.RS
	w := blockWriter{buf: make([]byte, 0, FixedFunctionBlockSize)}
	w.color(v.Material.Diffuse)
	w.color(v.Material.Ambient)
	w.color(v.Material.Specular)
	w.color(v.Material.Emissive)
	w.color(ColorFromARGB(rs.Ambient))
	w.color(ColorFromARGB(rs.FogColor))
	w.color(ColorFromARGB(rs.TextureFactor))
	w.vec4(v.Material.Power, math.Saturate(float32(rs.AlphaRef)/255), rs.FogStart, rs.FogEnd)
	w.vec4(float32(v.Viewport.Width), float32(v.Viewport.Height), rs.PointSize, 0)
	return w.buf
}
