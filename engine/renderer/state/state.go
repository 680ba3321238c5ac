package state

import (
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/math"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// Generations counts successful mutations per category. Consumers remember
// the value they last derived from and compare.
type Generations struct {
	// Anything that feeds the pipeline key.
	Pipeline uint64
	// Lights, material, shader constants and other uniform data.
	Uniform uint64
	// Bound textures and sampler states.
	Resource uint64
	// Transforms, stream bindings, viewport, scissor and depth bias.
	Dynamic uint64
}

type StreamBinding struct {
	Buffer metadata.BufferHandle
	Offset uint64
	Stride uint16
}

type IndexBinding struct {
	Buffer metadata.BufferHandle
	Type   metadata.IndexType
}

// RenderStates holds the translated subset of legacy render states.
type RenderStates struct {
	ZEnable             bool
	ZWriteEnable        bool
	ZFunc               metadata.CmpFunc
	AlphaBlendEnable    bool
	FillMode            metadata.FillMode
	ShadeMode           metadata.ShadeMode
	CullMode            metadata.CullMode
	AlphaTestEnable     bool
	AlphaRef            uint32
	AlphaFunc           metadata.CmpFunc
	FogEnable           bool
	FogColor            uint32
	FogStart            float32
	FogEnd              float32
	SpecularEnable      bool
	TextureFactor       uint32
	Lighting            bool
	Ambient             uint32
	ColorVertex         bool
	NormalizeNormals    bool
	DiffuseSource       metadata.MaterialColorSource
	SpecularSource      metadata.MaterialColorSource
	AmbientSource       metadata.MaterialColorSource
	EmissiveSource      metadata.MaterialColorSource
	PointSize           float32
	DepthBias           float32
	SlopeScaleDepthBias float32
}

// Values is the plain data of the device state. It is what state blocks
// capture and restore.
type Values struct {
	World             [metadata.MaxWorldMatrices]math.Mat4
	View              math.Mat4
	Projection        math.Mat4
	TextureTransforms [metadata.MaxTextureStages]math.Mat4

	Lights       [metadata.MaxLights]metadata.Light
	LightEnabled [metadata.MaxLights]bool
	Material     metadata.Material

	Samplers [metadata.MaxSamplers]metadata.SamplerDesc
	Textures [metadata.MaxSamplers]metadata.ImageHandle
	Stages   [metadata.MaxTextureStages]metadata.TextureStage

	VertexShader metadata.ShaderID
	PixelShader  metadata.ShaderID

	FVF         metadata.FVF
	Declaration []metadata.VertexElement

	Streams [metadata.MaxStreams]StreamBinding
	Indices IndexBinding

	Viewport metadata.Viewport
	Scissor  metadata.Rect

	RS RenderStates

	VSConstants [metadata.MaxVertexShaderConstants]math.Vec4
	PSConstants [metadata.MaxPixelShaderConstants]math.Vec4
}

// DeviceState is the mutable fixed-function state of one device. It is
// owned by the device worker and is not safe for concurrent use. Setters
// do bookkeeping only.
type DeviceState struct {
	values Values
	gens   Generations
}

// New returns the legacy default state for a width x height target.
func New(width, height uint32) *DeviceState {
	s := &DeviceState{}
	s.Reset(width, height)
	return s
}

func (s *DeviceState) Reset(width, height uint32) {
	v := &s.values
	*v = Values{}
	identity := math.NewMat4Identity()
	for i := range v.World {
		v.World[i] = identity
	}
	v.View = identity
	v.Projection = identity
	for i := range v.TextureTransforms {
		v.TextureTransforms[i] = identity
	}
	v.Lights[0] = metadata.DefaultLight()
	v.Material = metadata.DefaultMaterial()
	for i := range v.Samplers {
		v.Samplers[i] = metadata.DefaultSamplerDesc()
	}
	for i := range v.Stages {
		v.Stages[i] = metadata.DefaultTextureStage(i)
	}
	v.FVF = metadata.FVF_XYZ | metadata.FVF_DIFFUSE
	v.Viewport = metadata.Viewport{Width: width, Height: height, MinZ: 0, MaxZ: 1}
	v.Scissor = metadata.Rect{Right: int32(width), Bottom: int32(height)}
	v.RS = RenderStates{
		ZEnable:        true,
		ZWriteEnable:   true,
		ZFunc:          metadata.CMP_LESSEQUAL,
		FillMode:       metadata.FILL_SOLID,
		ShadeMode:      metadata.SHADE_GOURAUD,
		CullMode:       metadata.CULL_CCW,
		AlphaFunc:      metadata.CMP_ALWAYS,
		FogEnd:         1,
		TextureFactor:  0xffffffff,
		Lighting:       true,
		ColorVertex:    true,
		DiffuseSource:  metadata.MCS_COLOR1,
		SpecularSource: metadata.MCS_COLOR2,
		AmbientSource:  metadata.MCS_MATERIAL,
		EmissiveSource: metadata.MCS_MATERIAL,
		PointSize:      1,
	}
	s.bumpAll()
}

// Values exposes the current state for reading. Callers must not modify it.
func (s *DeviceState) Values() *Values {
	return &s.values
}

func (s *DeviceState) Generations() Generations {
	return s.gens
}

func (s *DeviceState) bumpAll() {
	s.gens.Pipeline++
	s.gens.Uniform++
	s.gens.Resource++
	s.gens.Dynamic++
}

func slotError(op string, index, limit int) error {
	return fmt.Errorf("%s: index %d outside [0,%d): %w", op, index, limit, core.ErrInvalidSlot)
}

func paramError(op string, value interface{}) error {
	return fmt.Errorf("%s: unsupported value %v: %w", op, value, core.ErrInvalidParameter)
}

func (s *DeviceState) SetTransform(ts metadata.TransformState, m math.Mat4) error {
	v := &s.values
	switch {
	case ts == metadata.TS_VIEW:
		v.View = m
		// lights are uploaded in view space
		s.gens.Uniform++
	case ts == metadata.TS_PROJECTION:
		v.Projection = m
	case ts >= metadata.TS_TEXTURE0 && ts <= metadata.TS_TEXTURE7:
		v.TextureTransforms[ts-metadata.TS_TEXTURE0] = m
	case ts >= metadata.TS_WORLD && ts <= metadata.TS_WORLD3:
		v.World[ts-metadata.TS_WORLD] = m
	default:
		return fmt.Errorf("SetTransform: state %d: %w", ts, core.ErrInvalidSlot)
	}
	s.gens.Dynamic++
	return nil
}

func (s *DeviceState) GetTransform(ts metadata.TransformState) (math.Mat4, error) {
	v := &s.values
	switch {
	case ts == metadata.TS_VIEW:
		return v.View, nil
	case ts == metadata.TS_PROJECTION:
		return v.Projection, nil
	case ts >= metadata.TS_TEXTURE0 && ts <= metadata.TS_TEXTURE7:
		return v.TextureTransforms[ts-metadata.TS_TEXTURE0], nil
	case ts >= metadata.TS_WORLD && ts <= metadata.TS_WORLD3:
		return v.World[ts-metadata.TS_WORLD], nil
	}
	return math.Mat4{}, fmt.Errorf("GetTransform: state %d: %w", ts, core.ErrInvalidSlot)
}

func (s *DeviceState) SetLight(index int, l metadata.Light) error {
	if index < 0 || index >= metadata.MaxLights {
		return slotError("SetLight", index, metadata.MaxLights)
	}
	if !l.Valid() {
		return paramError("SetLight type", l.Type)
	}
	s.values.Lights[index] = l
	s.gens.Uniform++
	return nil
}

// LightEnable changes the enabled light count, which is a pipeline input.
func (s *DeviceState) LightEnable(index int, enable bool) error {
	if index < 0 || index >= metadata.MaxLights {
		return slotError("LightEnable", index, metadata.MaxLights)
	}
	if s.values.LightEnabled[index] == enable {
		return nil
	}
	s.values.LightEnabled[index] = enable
	s.gens.Pipeline++
	s.gens.Uniform++
	return nil
}

func (s *DeviceState) SetMaterial(m metadata.Material) error {
	s.values.Material = m
	s.gens.Uniform++
	return nil
}

func validCmp(f metadata.CmpFunc) bool {
	return f >= metadata.CMP_NEVER && f <= metadata.CMP_ALWAYS
}

func validSource(src metadata.MaterialColorSource) bool {
	return src <= metadata.MCS_COLOR2
}

func asFloat(value uint32) float32 {
	return gomath.Float32frombits(value)
}

func finite(f float32) bool {
	return !gomath.IsNaN(float64(f)) && !gomath.IsInf(float64(f), 0)
}

// SetRenderState accepts the translated subset of render states. Float
// states carry their value as raw bits, as in the legacy API.
func (s *DeviceState) SetRenderState(state metadata.RenderStateType, value uint32) error {
	rs := &s.values.RS
	pipeline, uniform, dynamic := false, false, false
	switch state {
	// Depth and blend states are validated and kept for state blocks only.
	// Pipelines always test and write depth with LESSEQUAL and blend by
	// source alpha, so these never move a generation.
	case metadata.RS_ZENABLE:
		rs.ZEnable = value != 0
	case metadata.RS_ZWRITEENABLE:
		rs.ZWriteEnable = value != 0
	case metadata.RS_ZFUNC:
		if !validCmp(metadata.CmpFunc(value)) {
			return paramError("RS_ZFUNC", value)
		}
		rs.ZFunc = metadata.CmpFunc(value)
	case metadata.RS_ALPHABLENDENABLE:
		rs.AlphaBlendEnable = value != 0
	case metadata.RS_FILLMODE:
		if value < uint32(metadata.FILL_POINT) || value > uint32(metadata.FILL_SOLID) {
			return paramError("RS_FILLMODE", value)
		}
		rs.FillMode, pipeline = metadata.FillMode(value), true
	case metadata.RS_SHADEMODE:
		if value < uint32(metadata.SHADE_FLAT) || value > uint32(metadata.SHADE_PHONG) {
			return paramError("RS_SHADEMODE", value)
		}
		rs.ShadeMode, pipeline = metadata.ShadeMode(value), true
	case metadata.RS_CULLMODE:
		if value < uint32(metadata.CULL_NONE) || value > uint32(metadata.CULL_CCW) {
			return paramError("RS_CULLMODE", value)
		}
		rs.CullMode, pipeline = metadata.CullMode(value), true
	case metadata.RS_ALPHATESTENABLE:
		rs.AlphaTestEnable, pipeline = value != 0, true
	case metadata.RS_ALPHAFUNC:
		if !validCmp(metadata.CmpFunc(value)) {
			return paramError("RS_ALPHAFUNC", value)
		}
		rs.AlphaFunc, pipeline = metadata.CmpFunc(value), true
	case metadata.RS_ALPHAREF:
		rs.AlphaRef, uniform = value&0xff, true
	case metadata.RS_FOGENABLE:
		rs.FogEnable, pipeline = value != 0, true
	case metadata.RS_FOGCOLOR:
		rs.FogColor, uniform = value, true
	case metadata.RS_FOGSTART:
		if !finite(asFloat(value)) {
			return paramError("RS_FOGSTART", asFloat(value))
		}
		rs.FogStart, uniform = asFloat(value), true
	case metadata.RS_FOGEND:
		if !finite(asFloat(value)) {
			return paramError("RS_FOGEND", asFloat(value))
		}
		rs.FogEnd, uniform = asFloat(value), true
	case metadata.RS_SPECULARENABLE:
		rs.SpecularEnable, pipeline = value != 0, true
	case metadata.RS_TEXTUREFACTOR:
		rs.TextureFactor, uniform = value, true
	case metadata.RS_LIGHTING:
		rs.Lighting, pipeline = value != 0, true
	case metadata.RS_AMBIENT:
		rs.Ambient, uniform = value, true
	case metadata.RS_COLORVERTEX:
		rs.ColorVertex, pipeline = value != 0, true
	case metadata.RS_NORMALIZENORMALS:
		rs.NormalizeNormals, pipeline = value != 0, true
	case metadata.RS_DIFFUSEMATERIALSOURCE, metadata.RS_SPECULARMATERIALSOURCE,
		metadata.RS_AMBIENTMATERIALSOURCE, metadata.RS_EMISSIVEMATERIALSOURCE:
		src := metadata.MaterialColorSource(value)
		if !validSource(src) {
			return paramError("material source", value)
		}
		switch state {
		case metadata.RS_DIFFUSEMATERIALSOURCE:
			rs.DiffuseSource = src
		case metadata.RS_SPECULARMATERIALSOURCE:
			rs.SpecularSource = src
		case metadata.RS_AMBIENTMATERIALSOURCE:
			rs.AmbientSource = src
		default:
			rs.EmissiveSource = src
		}
		pipeline = true
	case metadata.RS_POINTSIZE:
		if !finite(asFloat(value)) {
			return paramError("RS_POINTSIZE", asFloat(value))
		}
		rs.PointSize, uniform = asFloat(value), true
	case metadata.RS_DEPTHBIAS:
		if !finite(asFloat(value)) {
			return paramError("RS_DEPTHBIAS", asFloat(value))
		}
		rs.DepthBias, dynamic = asFloat(value), true
	case metadata.RS_SLOPESCALEDEPTHBIAS:
		if !finite(asFloat(value)) {
			return paramError("RS_SLOPESCALEDEPTHBIAS", asFloat(value))
		}
		rs.SlopeScaleDepthBias, dynamic = asFloat(value), true
	default:
		return fmt.Errorf("SetRenderState: state %d: %w", state, core.ErrInvalidParameter)
	}
	if pipeline {
		s.gens.Pipeline++
	}
	if uniform {
		s.gens.Uniform++
	}
	if dynamic {
		s.gens.Dynamic++
	}
	return nil
}

func validOp(op uint32) bool {
	return op >= uint32(metadata.TOP_DISABLE) && op <= uint32(metadata.TOP_LAST)
}

func validArg(arg uint32) bool {
	a := metadata.TextureArg(arg)
	return a&^(metadata.TA_SELECTMASK|metadata.TA_COMPLEMENT|metadata.TA_ALPHAREPLICATE) == 0 &&
		a&metadata.TA_SELECTMASK <= metadata.TA_CONSTANT
}

func (s *DeviceState) SetTextureStageState(stage int, t metadata.TextureStageStateType, value uint32) error {
	if stage < 0 || stage >= metadata.MaxTextureStages {
		return slotError("SetTextureStageState", stage, metadata.MaxTextureStages)
	}
	st := &s.values.Stages[stage]
	switch t {
	case metadata.TSS_COLOROP, metadata.TSS_ALPHAOP:
		if !validOp(value) {
			return paramError("texture op", value)
		}
		if t == metadata.TSS_COLOROP {
			st.ColorOp = metadata.TextureOp(value)
		} else {
			st.AlphaOp = metadata.TextureOp(value)
		}
	case metadata.TSS_COLORARG1, metadata.TSS_COLORARG2, metadata.TSS_ALPHAARG1, metadata.TSS_ALPHAARG2:
		if !validArg(value) {
			return paramError("texture arg", value)
		}
		arg := metadata.TextureArg(value)
		switch t {
		case metadata.TSS_COLORARG1:
			st.ColorArg1 = arg
		case metadata.TSS_COLORARG2:
			st.ColorArg2 = arg
		case metadata.TSS_ALPHAARG1:
			st.AlphaArg1 = arg
		default:
			st.AlphaArg2 = arg
		}
	case metadata.TSS_TEXCOORDINDEX:
		// the upper half carries generation flags that are not translated
		if value&0xffff >= metadata.MaxTexCoords {
			return paramError("TSS_TEXCOORDINDEX", value)
		}
		st.TexCoordIndex = value & 0xffff
	case metadata.TSS_TEXTURETRANSFORMFLAGS:
		st.TransformFlag = value
	default:
		return fmt.Errorf("SetTextureStageState: type %d: %w", t, core.ErrInvalidParameter)
	}
	if stage < metadata.MaxShaderTextureStages {
		s.gens.Pipeline++
	}
	return nil
}

// SetSamplerState validates and stores one sampler parameter. Anisotropy
// is clamped to the supported range instead of being rejected.
func (s *DeviceState) SetSamplerState(slot int, t metadata.SamplerStateType, value uint32) error {
	if slot < 0 || slot >= metadata.MaxSamplers {
		return slotError("SetSamplerState", slot, metadata.MaxSamplers)
	}
	d := &s.values.Samplers[slot]
	switch t {
	case metadata.SAMP_ADDRESSU, metadata.SAMP_ADDRESSV, metadata.SAMP_ADDRESSW:
		a := metadata.TextureAddress(value)
		if !a.Valid() {
			return paramError("texture address", value)
		}
		switch t {
		case metadata.SAMP_ADDRESSU:
			d.AddressU = a
		case metadata.SAMP_ADDRESSV:
			d.AddressV = a
		default:
			d.AddressW = a
		}
	case metadata.SAMP_BORDERCOLOR:
		d.BorderColor = value
	case metadata.SAMP_MAGFILTER, metadata.SAMP_MINFILTER, metadata.SAMP_MIPFILTER:
		f := metadata.TextureFilter(value)
		if !f.Valid() {
			return paramError("texture filter", value)
		}
		switch t {
		case metadata.SAMP_MAGFILTER:
			d.MagFilter = f
		case metadata.SAMP_MINFILTER:
			d.MinFilter = f
		default:
			d.MipFilter = f
		}
	case metadata.SAMP_MIPMAPLODBIAS:
		bias := asFloat(value)
		if !finite(bias) {
			return paramError("SAMP_MIPMAPLODBIAS", bias)
		}
		d.MipLODBias = bias
	case metadata.SAMP_MAXMIPLEVEL:
		d.MaxMipLevel = value
	case metadata.SAMP_MAXANISOTROPY:
		d.MaxAnisotropy = math.Clamp(value, 1, metadata.MaxAnisotropy)
	default:
		return fmt.Errorf("SetSamplerState: type %d: %w", t, core.ErrInvalidParameter)
	}
	s.gens.Resource++
	return nil
}

// SetTexture binds image to a sampler slot. A zero handle unbinds.
func (s *DeviceState) SetTexture(slot int, image metadata.ImageHandle) error {
	if slot < 0 || slot >= metadata.MaxSamplers {
		return slotError("SetTexture", slot, metadata.MaxSamplers)
	}
	prev := s.values.Textures[slot]
	if prev == image {
		return nil
	}
	s.values.Textures[slot] = image
	s.gens.Resource++
	// bound-texture count is a fixed-function pipeline input
	if slot < metadata.MaxShaderTextureStages && (prev == 0) != (image == 0) {
		s.gens.Pipeline++
	}
	return nil
}

func (s *DeviceState) SetVertexShader(id metadata.ShaderID) error {
	if s.values.VertexShader == id {
		return nil
	}
	s.values.VertexShader = id
	s.gens.Pipeline++
	s.gens.Uniform++
	return nil
}

func (s *DeviceState) SetPixelShader(id metadata.ShaderID) error {
	if s.values.PixelShader == id {
		return nil
	}
	s.values.PixelShader = id
	s.gens.Pipeline++
	s.gens.Uniform++
	return nil
}

func (s *DeviceState) SetVertexShaderConstantF(start int, data []math.Vec4) error {
	if start < 0 || start+len(data) > metadata.MaxVertexShaderConstants {
		return slotError("SetVertexShaderConstantF", start+len(data)-1, metadata.MaxVertexShaderConstants)
	}
	copy(s.values.VSConstants[start:], data)
	s.gens.Uniform++
	return nil
}

func (s *DeviceState) SetPixelShaderConstantF(start int, data []math.Vec4) error {
	if start < 0 || start+len(data) > metadata.MaxPixelShaderConstants {
		return slotError("SetPixelShaderConstantF", start+len(data)-1, metadata.MaxPixelShaderConstants)
	}
	copy(s.values.PSConstants[start:], data)
	s.gens.Uniform++
	return nil
}

func (s *DeviceState) SetFVF(f metadata.FVF) error {
	if _, err := metadata.DeclarationFromFVF(f); err != nil {
		return fmt.Errorf("SetFVF: %w", err)
	}
	if s.values.FVF == f {
		return nil
	}
	s.values.FVF = f
	s.gens.Pipeline++
	return nil
}

// SetVertexDeclaration stores a copy of decl. A nil declaration clears it.
func (s *DeviceState) SetVertexDeclaration(decl []metadata.VertexElement) error {
	if decl != nil {
		if _, err := metadata.LayoutFromDeclaration(decl, s.strides()); err != nil {
			return fmt.Errorf("SetVertexDeclaration: %w", err)
		}
		decl = append([]metadata.VertexElement(nil), decl...)
	}
	s.values.Declaration = decl
	s.gens.Pipeline++
	return nil
}

func (s *DeviceState) SetStreamSource(stream int, buffer metadata.BufferHandle, offset uint64, stride uint16) error {
	if stream < 0 || stream >= metadata.MaxStreams {
		return slotError("SetStreamSource", stream, metadata.MaxStreams)
	}
	b := &s.values.Streams[stream]
	if b.Stride != stride {
		s.gens.Pipeline++
	}
	*b = StreamBinding{Buffer: buffer, Offset: offset, Stride: stride}
	s.gens.Dynamic++
	return nil
}

func (s *DeviceState) SetIndices(buffer metadata.BufferHandle, t metadata.IndexType) error {
	if t != metadata.IndexTypeUint16 && t != metadata.IndexTypeUint32 {
		return paramError("SetIndices type", t)
	}
	s.values.Indices = IndexBinding{Buffer: buffer, Type: t}
	s.gens.Dynamic++
	return nil
}

func (s *DeviceState) SetViewport(vp metadata.Viewport) error {
	if vp.Width == 0 || vp.Height == 0 {
		return paramError("SetViewport extent", fmt.Sprintf("%dx%d", vp.Width, vp.Height))
	}
	if !(vp.MinZ >= 0 && vp.MaxZ <= 1 && vp.MinZ <= vp.MaxZ) {
		return paramError("SetViewport depth range", fmt.Sprintf("[%v,%v]", vp.MinZ, vp.MaxZ))
	}
	s.values.Viewport = vp
	// the fixed-function block carries the viewport extent
	s.gens.Uniform++
	s.gens.Dynamic++
	return nil
}

func (s *DeviceState) SetScissorRect(r metadata.Rect) error {
	if r.Right < r.Left || r.Bottom < r.Top {
		return paramError("SetScissorRect", r)
	}
	s.values.Scissor = r
	s.gens.Dynamic++
	return nil
}

func (s *DeviceState) strides() [metadata.MaxStreams]uint16 {
	var out [metadata.MaxStreams]uint16
	for i, b := range s.values.Streams {
		out[i] = b.Stride
	}
	return out
}
