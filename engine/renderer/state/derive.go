package state

import (
	"github.com/spaghettifunk/ffbridge/engine/math"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// UsesDeclaration reports whether the vertex declaration is authoritative.
// That is the case exactly when a programmable vertex shader is bound.
func (s *DeviceState) UsesDeclaration() bool {
	return s.values.VertexShader != metadata.FixedFunctionShader
}

// VertexLayout resolves the authoritative vertex format against the bound
// stream strides. With a vertex shader bound and no declaration set, the
// declaration equivalent to the FVF is used.
func (s *DeviceState) VertexLayout() (metadata.VertexLayout, error) {
	v := &s.values
	if s.UsesDeclaration() {
		decl := v.Declaration
		if decl == nil {
			var err error
			if decl, err = metadata.DeclarationFromFVF(v.FVF); err != nil {
				return metadata.VertexLayout{}, err
			}
		}
		strides := s.strides()
		if v.Declaration == nil && strides[0] == 0 {
			strides[0], _ = metadata.FVFStride(v.FVF)
		}
		return metadata.LayoutFromDeclaration(decl, strides)
	}
	return metadata.LayoutFromFVF(v.FVF, v.Streams[0].Stride)
}

// EnabledLights returns the indices of enabled lights in ascending order.
func (s *DeviceState) EnabledLights() []int {
	var out []int
	for i, on := range s.values.LightEnabled {
		if on {
			out = append(out, i)
		}
	}
	return out
}

// SpecializationConstants computes the shader-variant flags for the
// current state and vertex layout.
func (s *DeviceState) SpecializationConstants(layout metadata.VertexLayout) metadata.SpecializationConstants {
	v := &s.values
	rs := &v.RS
	var c metadata.SpecializationConstants

	c.PositionTransformed = metadata.B32(!s.UsesDeclaration() && v.FVF&metadata.FVF_POSITION_MASK == metadata.FVF_XYZRHW)
	c.HasNormal = metadata.B32(layout.HasLocation(metadata.LocationNormal))
	c.HasPointSize = metadata.B32(layout.HasLocation(metadata.LocationPointSize))
	c.HasDiffuse = metadata.B32(layout.HasLocation(metadata.LocationColor0))
	c.HasSpecular = metadata.B32(layout.HasLocation(metadata.LocationColor1))
	for i := 0; i < metadata.MaxTexCoords; i++ {
		if layout.HasLocation(metadata.LocationTexCoord0 + uint8(i)) {
			c.TexCoordCount = int32(i + 1)
		}
	}

	// pre-transformed vertices are never lit
	c.LightingEnabled = metadata.B32(rs.Lighting && c.PositionTransformed == 0)
	if c.LightingEnabled != 0 {
		c.LightCount = int32(len(s.EnabledLights()))
	}
	c.ShadeMode = int32(rs.ShadeMode)
	c.ColorVertex = metadata.B32(rs.ColorVertex)
	c.DiffuseSource = int32(rs.DiffuseSource)
	c.AmbientSource = int32(rs.AmbientSource)
	c.SpecularSource = int32(rs.SpecularSource)
	c.EmissiveSource = int32(rs.EmissiveSource)
	c.SpecularEnabled = metadata.B32(rs.SpecularEnable)
	c.NormalizeNormals = metadata.B32(rs.NormalizeNormals)
	c.AlphaTestEnabled = metadata.B32(rs.AlphaTestEnable)
	if rs.AlphaTestEnable {
		c.AlphaFunc = int32(rs.AlphaFunc)
	}
	c.FogEnabled = metadata.B32(rs.FogEnable)

	// stages run until the first disabled colour op
	for i := 0; i < metadata.MaxShaderTextureStages; i++ {
		st := v.Stages[i]
		if st.ColorOp == metadata.TOP_DISABLE {
			break
		}
		c.StageColorOp[i] = int32(st.ColorOp)
		c.StageColorArg1[i] = int32(st.ColorArg1)
		c.StageColorArg2[i] = int32(st.ColorArg2)
		c.StageAlphaOp[i] = int32(st.AlphaOp)
		c.StageAlphaArg1[i] = int32(st.AlphaArg1)
		c.StageAlphaArg2[i] = int32(st.AlphaArg2)
		c.StageTexCoordIndex[i] = int32(st.TexCoordIndex)
		if v.Textures[i] != 0 {
			c.TextureCount = int32(i + 1)
		}
	}
	return c
}

// PutTransforms writes the per-draw push constant block: world*view followed
// by projection, both row-major.
func (s *DeviceState) PutTransforms(dst *[metadata.PushConstantSize]byte) {
	v := &s.values
	v.World[0].Mul(v.View).PutBytes(dst[0:64])
	v.Projection.PutBytes(dst[64:128])
}

// DepthBias returns the constant and slope factors for the dynamic depth
// bias. The legacy constant is a fraction of the depth range; it is scaled
// to units of a 24-bit depth buffer.
func (s *DeviceState) DepthBias() (float32, float32) {
	rs := &s.values.RS
	return rs.DepthBias * float32(1<<24), rs.SlopeScaleDepthBias
}

// ColorFromARGB unpacks a packed legacy colour into normalized RGBA.
func ColorFromARGB(c uint32) math.Color {
	return math.Color{
		X: float32((c>>16)&0xff) / 255,
		Y: float32((c>>8)&0xff) / 255,
		Z: float32(c&0xff) / 255,
		W: float32((c>>24)&0xff) / 255,
	}
}
