package metadata

/** @brief Number of sampler slots and image bindings per resource context. */
const MaxSamplers = 16

/** @brief Number of fixed-function texture stages. */
const MaxTextureStages = 8

/** @brief Texture stages whose ops are baked into the fixed-function shaders. */
const MaxShaderTextureStages = 4

/** @brief Legacy per-stage texture state identifiers. */
type TextureStageStateType uint32

const (
	TSS_COLOROP               TextureStageStateType = 1
	TSS_COLORARG1             TextureStageStateType = 2
	TSS_COLORARG2             TextureStageStateType = 3
	TSS_ALPHAOP               TextureStageStateType = 4
	TSS_ALPHAARG1             TextureStageStateType = 5
	TSS_ALPHAARG2             TextureStageStateType = 6
	TSS_TEXCOORDINDEX         TextureStageStateType = 11
	TSS_TEXTURETRANSFORMFLAGS TextureStageStateType = 24
)

/** @brief Texture stage blend operations. */
type TextureOp uint32

const (
	TOP_DISABLE           TextureOp = 1
	TOP_SELECTARG1        TextureOp = 2
	TOP_SELECTARG2        TextureOp = 3
	TOP_MODULATE          TextureOp = 4
	TOP_MODULATE2X        TextureOp = 5
	TOP_MODULATE4X        TextureOp = 6
	TOP_ADD               TextureOp = 7
	TOP_ADDSIGNED         TextureOp = 8
	TOP_ADDSIGNED2X       TextureOp = 9
	TOP_SUBTRACT          TextureOp = 10
	TOP_ADDSMOOTH         TextureOp = 11
	TOP_BLENDDIFFUSEALPHA TextureOp = 12
	TOP_BLENDTEXTUREALPHA TextureOp = 13
	TOP_BLENDFACTORALPHA  TextureOp = 14
	TOP_BLENDCURRENTALPHA TextureOp = 16
	TOP_DOTPRODUCT3       TextureOp = 24
	TOP_LAST              TextureOp = 26
)

/** @brief Texture stage arguments. Modifier bits may be or'ed in. */
type TextureArg uint32

const (
	TA_DIFFUSE        TextureArg = 0
	TA_CURRENT        TextureArg = 1
	TA_TEXTURE        TextureArg = 2
	TA_TFACTOR        TextureArg = 3
	TA_SPECULAR       TextureArg = 4
	TA_TEMP           TextureArg = 5
	TA_CONSTANT       TextureArg = 6
	TA_SELECTMASK     TextureArg = 0x0f
	TA_COMPLEMENT     TextureArg = 0x10
	TA_ALPHAREPLICATE TextureArg = 0x20
)

/** @brief Per-stage texture operation record. */
type TextureStage struct {
	ColorOp       TextureOp
	ColorArg1     TextureArg
	ColorArg2     TextureArg
	AlphaOp       TextureOp
	AlphaArg1     TextureArg
	AlphaArg2     TextureArg
	TexCoordIndex uint32
	TransformFlag uint32
}

/**
 * @brief Legacy defaults: stage 0 modulates texture with diffuse, the rest are disabled.
 */
func DefaultTextureStage(stage int) TextureStage {
	s := TextureStage{
		ColorOp:       TOP_DISABLE,
		ColorArg1:     TA_TEXTURE,
		ColorArg2:     TA_CURRENT,
		AlphaOp:       TOP_DISABLE,
		AlphaArg1:     TA_TEXTURE,
		AlphaArg2:     TA_CURRENT,
		TexCoordIndex: uint32(stage),
	}
	if stage == 0 {
		s.ColorOp = TOP_MODULATE
		s.AlphaOp = TOP_SELECTARG1
	}
	return s
}

/** @brief Legacy sampler state identifiers. */
type SamplerStateType uint32

const (
	SAMP_ADDRESSU      SamplerStateType = 1
	SAMP_ADDRESSV      SamplerStateType = 2
	SAMP_ADDRESSW      SamplerStateType = 3
	SAMP_BORDERCOLOR   SamplerStateType = 4
	SAMP_MAGFILTER     SamplerStateType = 5
	SAMP_MINFILTER     SamplerStateType = 6
	SAMP_MIPFILTER     SamplerStateType = 7
	SAMP_MIPMAPLODBIAS SamplerStateType = 8
	SAMP_MAXMIPLEVEL   SamplerStateType = 9
	SAMP_MAXANISOTROPY SamplerStateType = 10
)

/** @brief Texture address modes. */
type TextureAddress uint32

const (
	TADDRESS_WRAP       TextureAddress = 1
	TADDRESS_MIRROR     TextureAddress = 2
	TADDRESS_CLAMP      TextureAddress = 3
	TADDRESS_BORDER     TextureAddress = 4
	TADDRESS_MIRRORONCE TextureAddress = 5
)

func (a TextureAddress) Valid() bool {
	return a >= TADDRESS_WRAP && a <= TADDRESS_MIRRORONCE
}

/** @brief Texture filter types. */
type TextureFilter uint32

const (
	TEXF_NONE        TextureFilter = 0
	TEXF_POINT       TextureFilter = 1
	TEXF_LINEAR      TextureFilter = 2
	TEXF_ANISOTROPIC TextureFilter = 3
)

func (f TextureFilter) Valid() bool {
	return f <= TEXF_ANISOTROPIC
}

/** @brief Largest anisotropy accepted before clamping. */
const MaxAnisotropy = 16

/**
 * @brief Value key of a sampler configuration. Two equal descriptions
 * always resolve to the same cached sampler.
 */
type SamplerDesc struct {
	MinFilter     TextureFilter
	MagFilter     TextureFilter
	MipFilter     TextureFilter
	AddressU      TextureAddress
	AddressV      TextureAddress
	AddressW      TextureAddress
	MaxAnisotropy uint32
	MipLODBias    float32
	MaxMipLevel   uint32
	BorderColor   uint32
}

/** @brief WRAP addressing, point min/mag filtering, no mipmapping, anisotropy 1. */
func DefaultSamplerDesc() SamplerDesc {
	return SamplerDesc{
		MinFilter:     TEXF_POINT,
		MagFilter:     TEXF_POINT,
		MipFilter:     TEXF_NONE,
		AddressU:      TADDRESS_WRAP,
		AddressV:      TADDRESS_WRAP,
		AddressW:      TADDRESS_WRAP,
		MaxAnisotropy: 1,
	}
}
