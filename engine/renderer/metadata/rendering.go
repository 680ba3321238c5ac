package metadata

/** @brief Legacy transform state slots. */
type TransformState uint32

const (
	TS_VIEW       TransformState = 2
	TS_PROJECTION TransformState = 3
	TS_TEXTURE0   TransformState = 16
	TS_TEXTURE7   TransformState = 23
	TS_WORLD      TransformState = 256
	TS_WORLD3     TransformState = 259
)

/** @brief Number of vertex-blend world matrices tracked. */
const MaxWorldMatrices = 4

/** @brief Legacy primitive types. */
type PrimitiveType uint32

const (
	PT_POINTLIST     PrimitiveType = 1
	PT_LINELIST      PrimitiveType = 2
	PT_LINESTRIP     PrimitiveType = 3
	PT_TRIANGLELIST  PrimitiveType = 4
	PT_TRIANGLESTRIP PrimitiveType = 5
	PT_TRIANGLEFAN   PrimitiveType = 6
)

func (p PrimitiveType) Valid() bool {
	return p >= PT_POINTLIST && p <= PT_TRIANGLEFAN
}

/** @brief Modern primitive topology, part of the pipeline key. */
type Topology uint8

const (
	TopologyPointList Topology = iota
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
	TopologyTriangleFan
)

func (p PrimitiveType) Topology() Topology {
	return Topology(p - PT_POINTLIST)
}

/**
 * @brief Returns the number of vertices consumed by primitiveCount primitives of type p.
 */
func VertexCount(p PrimitiveType, primitiveCount uint32) uint32 {
	if primitiveCount == 0 {
		return 0
	}
	switch p {
	case PT_POINTLIST:
		return primitiveCount
	case PT_LINELIST:
		return primitiveCount * 2
	case PT_LINESTRIP:
		return primitiveCount + 1
	case PT_TRIANGLELIST:
		return primitiveCount * 3
	case PT_TRIANGLESTRIP, PT_TRIANGLEFAN:
		return primitiveCount + 2
	}
	return 0
}

/** @brief Legacy render state identifiers. Only the translated subset is accepted. */
type RenderStateType uint32

const (
	RS_ZENABLE                RenderStateType = 7
	RS_FILLMODE               RenderStateType = 8
	RS_SHADEMODE              RenderStateType = 9
	RS_ZWRITEENABLE           RenderStateType = 14
	RS_ALPHATESTENABLE        RenderStateType = 15
	RS_CULLMODE               RenderStateType = 22
	RS_ZFUNC                  RenderStateType = 23
	RS_ALPHAREF               RenderStateType = 24
	RS_ALPHAFUNC              RenderStateType = 25
	RS_ALPHABLENDENABLE       RenderStateType = 27
	RS_FOGENABLE              RenderStateType = 28
	RS_SPECULARENABLE         RenderStateType = 29
	RS_FOGCOLOR               RenderStateType = 34
	RS_FOGSTART               RenderStateType = 36
	RS_FOGEND                 RenderStateType = 37
	RS_TEXTUREFACTOR          RenderStateType = 60
	RS_LIGHTING               RenderStateType = 137
	RS_AMBIENT                RenderStateType = 139
	RS_COLORVERTEX            RenderStateType = 141
	RS_NORMALIZENORMALS       RenderStateType = 143
	RS_DIFFUSEMATERIALSOURCE  RenderStateType = 145
	RS_SPECULARMATERIALSOURCE RenderStateType = 146
	RS_AMBIENTMATERIALSOURCE  RenderStateType = 147
	RS_EMISSIVEMATERIALSOURCE RenderStateType = 148
	RS_POINTSIZE              RenderStateType = 154
	RS_SLOPESCALEDEPTHBIAS    RenderStateType = 175
	RS_DEPTHBIAS              RenderStateType = 195
)

/** @brief Legacy cull modes. CW culls clockwise faces. */
type CullMode uint32

const (
	CULL_NONE CullMode = 1
	CULL_CW   CullMode = 2
	CULL_CCW  CullMode = 3
)

type FillMode uint32

const (
	FILL_POINT     FillMode = 1
	FILL_WIREFRAME FillMode = 2
	FILL_SOLID     FillMode = 3
)

type ShadeMode uint32

const (
	SHADE_FLAT    ShadeMode = 1
	SHADE_GOURAUD ShadeMode = 2
	SHADE_PHONG   ShadeMode = 3
)

/** @brief Comparison functions used by alpha test and depth test. */
type CmpFunc uint32

const (
	CMP_NEVER        CmpFunc = 1
	CMP_LESS         CmpFunc = 2
	CMP_EQUAL        CmpFunc = 3
	CMP_LESSEQUAL    CmpFunc = 4
	CMP_GREATER      CmpFunc = 5
	CMP_NOTEQUAL     CmpFunc = 6
	CMP_GREATEREQUAL CmpFunc = 7
	CMP_ALWAYS       CmpFunc = 8
)

/** @brief Where a lighting colour is sourced from when colour-vertex is on. */
type MaterialColorSource uint32

const (
	MCS_MATERIAL MaterialColorSource = 0
	MCS_COLOR1   MaterialColorSource = 1
	MCS_COLOR2   MaterialColorSource = 2
)

/** @brief Viewport in pixels with a depth range. */
type Viewport struct {
	X, Y, Width, Height uint32
	MinZ, MaxZ          float32
}

/** @brief Integer rectangle, right and bottom exclusive. */
type Rect struct {
	Left, Top, Right, Bottom int32
}
