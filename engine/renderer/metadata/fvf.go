package metadata

import (
	"fmt"

	"github.com/spaghettifunk/ffbridge/engine/core"
)

/** @brief Number of vertex streams a device can bind. */
const MaxStreams = 16

/** @brief Number of vertex input locations a layout can describe. */
const MaxVertexAttributes = 16

/** @brief Flexible vertex format bit mask. */
type FVF uint32

const (
	FVF_POSITION_MASK  FVF = 0x400E
	FVF_XYZ            FVF = 0x002
	FVF_XYZRHW         FVF = 0x004
	FVF_NORMAL         FVF = 0x010
	FVF_PSIZE          FVF = 0x020
	FVF_DIFFUSE        FVF = 0x040
	FVF_SPECULAR       FVF = 0x080
	FVF_TEXCOUNT_MASK  FVF = 0xf00
	FVF_TEXCOUNT_SHIFT     = 8
)

/** @brief Maximum number of texture coordinate sets an FVF can carry. */
const MaxTexCoords = 8

func (f FVF) Has(bits FVF) bool {
	return f&bits == bits
}

func (f FVF) TexCount() int {
	return int((f & FVF_TEXCOUNT_MASK) >> FVF_TEXCOUNT_SHIFT)
}

// texCoordComponents decodes the per-set size bits stored above bit 16.
func (f FVF) texCoordComponents(set int) int {
	switch (uint32(f) >> (16 + uint32(set)*2)) & 0x3 {
	case 1:
		return 3
	case 2:
		return 4
	case 3:
		return 1
	}
	return 2
}

/** @brief Vertex element data types. Values match the legacy declaration types. */
type DeclType uint8

const (
	DECLTYPE_FLOAT1    DeclType = 0
	DECLTYPE_FLOAT2    DeclType = 1
	DECLTYPE_FLOAT3    DeclType = 2
	DECLTYPE_FLOAT4    DeclType = 3
	DECLTYPE_D3DCOLOR  DeclType = 4
	DECLTYPE_UBYTE4    DeclType = 5
	DECLTYPE_SHORT2    DeclType = 6
	DECLTYPE_SHORT4    DeclType = 7
	DECLTYPE_UBYTE4N   DeclType = 8
	DECLTYPE_SHORT2N   DeclType = 9
	DECLTYPE_SHORT4N   DeclType = 10
	DECLTYPE_USHORT2N  DeclType = 11
	DECLTYPE_USHORT4N  DeclType = 12
	DECLTYPE_FLOAT16_2 DeclType = 15
	DECLTYPE_FLOAT16_4 DeclType = 16
)

/** @brief Size in bytes of one element of type t. */
func (t DeclType) Size() (uint16, error) {
	switch t {
	case DECLTYPE_FLOAT1, DECLTYPE_D3DCOLOR, DECLTYPE_UBYTE4, DECLTYPE_SHORT2,
		DECLTYPE_UBYTE4N, DECLTYPE_SHORT2N, DECLTYPE_USHORT2N, DECLTYPE_FLOAT16_2:
		return 4, nil
	case DECLTYPE_FLOAT2, DECLTYPE_SHORT4, DECLTYPE_SHORT4N, DECLTYPE_USHORT4N, DECLTYPE_FLOAT16_4:
		return 8, nil
	case DECLTYPE_FLOAT3:
		return 12, nil
	case DECLTYPE_FLOAT4:
		return 16, nil
	}
	return 0, fmt.Errorf("declaration type %d: %w", t, core.ErrUnsupportedFormat)
}

func floatDeclType(components int) DeclType {
	return DeclType(components - 1)
}

/** @brief Vertex element semantics. */
type DeclUsage uint8

const (
	DECLUSAGE_POSITION     DeclUsage = 0
	DECLUSAGE_BLENDWEIGHT  DeclUsage = 1
	DECLUSAGE_BLENDINDICES DeclUsage = 2
	DECLUSAGE_NORMAL       DeclUsage = 3
	DECLUSAGE_PSIZE        DeclUsage = 4
	DECLUSAGE_TEXCOORD     DeclUsage = 5
	DECLUSAGE_TANGENT      DeclUsage = 6
	DECLUSAGE_BINORMAL     DeclUsage = 7
	DECLUSAGE_POSITIONT    DeclUsage = 9
	DECLUSAGE_COLOR        DeclUsage = 10
	DECLUSAGE_FOG          DeclUsage = 11
)

/** @brief Shader input locations assigned to each semantic. */
const (
	LocationPosition     uint8 = 0
	LocationNormal       uint8 = 1
	LocationPointSize    uint8 = 2
	LocationColor0       uint8 = 3
	LocationColor1       uint8 = 4
	LocationTexCoord0    uint8 = 5
	LocationBlendWeight  uint8 = 13
	LocationBlendIndices uint8 = 14
	LocationTangent      uint8 = 15
)

/** @brief Resolves the shader input location of a semantic. */
func UsageLocation(usage DeclUsage, index uint8) (uint8, error) {
	switch {
	case (usage == DECLUSAGE_POSITION || usage == DECLUSAGE_POSITIONT) && index == 0:
		return LocationPosition, nil
	case usage == DECLUSAGE_NORMAL && index == 0:
		return LocationNormal, nil
	case usage == DECLUSAGE_PSIZE && index == 0:
		return LocationPointSize, nil
	case usage == DECLUSAGE_COLOR && index < 2:
		return LocationColor0 + index, nil
	case usage == DECLUSAGE_TEXCOORD && index < MaxTexCoords:
		return LocationTexCoord0 + index, nil
	case usage == DECLUSAGE_BLENDWEIGHT && index == 0:
		return LocationBlendWeight, nil
	case usage == DECLUSAGE_BLENDINDICES && index == 0:
		return LocationBlendIndices, nil
	case usage == DECLUSAGE_TANGENT && index == 0:
		return LocationTangent, nil
	}
	return 0, fmt.Errorf("vertex usage %d index %d: %w", usage, index, core.ErrInvalidParameter)
}

/** @brief A single vertex declaration element. */
type VertexElement struct {
	Stream     uint16
	Offset     uint16
	Type       DeclType
	Usage      DeclUsage
	UsageIndex uint8
}

/**
 * @brief One vertex input attribute. Stream is the bindings-table entry
 * that maps the shader input location to a concrete vertex stream.
 */
type VertexAttribute struct {
	Location uint8
	Stream   uint8
	Type     DeclType
	Offset   uint16
}

/**
 * @brief Comparable description of the vertex input state baked into a pipeline.
 */
type VertexLayout struct {
	AttributeCount uint8
	Attributes     [MaxVertexAttributes]VertexAttribute
	// Stride per stream; zero for streams no attribute reads from.
	Strides [MaxStreams]uint16
}

/** @brief Bit i is set when stream i is read by the layout. */
func (l VertexLayout) StreamMask() uint16 {
	var mask uint16
	for i := 0; i < int(l.AttributeCount); i++ {
		mask |= 1 << l.Attributes[i].Stream
	}
	return mask
}

/** @brief Bit i is set when shader input location i is fed. */
func (l VertexLayout) LocationMask() uint32 {
	var mask uint32
	for i := 0; i < int(l.AttributeCount); i++ {
		mask |= 1 << l.Attributes[i].Location
	}
	return mask
}

func (l VertexLayout) HasLocation(loc uint8) bool {
	for i := 0; i < int(l.AttributeCount); i++ {
		if l.Attributes[i].Location == loc {
			return true
		}
	}
	return false
}

/**
 * @brief Computes the vertex size in bytes described by an FVF.
 */
func FVFStride(f FVF) (uint16, error) {
	decl, err := DeclarationFromFVF(f)
	if err != nil {
		return 0, err
	}
	var stride uint16
	for _, e := range decl {
		sz, err := e.Type.Size()
		if err != nil {
			return 0, err
		}
		stride += sz
	}
	return stride, nil
}

/**
 * @brief Builds the single-stream declaration equivalent to an FVF, packing
 * elements in the legacy order: position, point size, normal, diffuse,
 * specular, texture coordinates.
 */
func DeclarationFromFVF(f FVF) ([]VertexElement, error) {
	var decl []VertexElement
	var offset uint16

	add := func(t DeclType, usage DeclUsage, index uint8) {
		decl = append(decl, VertexElement{Offset: offset, Type: t, Usage: usage, UsageIndex: index})
		sz, _ := t.Size()
		offset += sz
	}

	switch f & FVF_POSITION_MASK {
	case FVF_XYZ:
		add(DECLTYPE_FLOAT3, DECLUSAGE_POSITION, 0)
	case FVF_XYZRHW:
		add(DECLTYPE_FLOAT4, DECLUSAGE_POSITIONT, 0)
	default:
		return nil, fmt.Errorf("fvf %#x position format: %w", uint32(f), core.ErrInvalidParameter)
	}
	if f.Has(FVF_NORMAL) {
		if f&FVF_POSITION_MASK == FVF_XYZRHW {
			return nil, fmt.Errorf("fvf %#x: normals with pre-transformed positions: %w", uint32(f), core.ErrInvalidParameter)
		}
		add(DECLTYPE_FLOAT3, DECLUSAGE_NORMAL, 0)
	}
	if f.Has(FVF_PSIZE) {
		add(DECLTYPE_FLOAT1, DECLUSAGE_PSIZE, 0)
	}
	if f.Has(FVF_DIFFUSE) {
		add(DECLTYPE_D3DCOLOR, DECLUSAGE_COLOR, 0)
	}
	if f.Has(FVF_SPECULAR) {
		add(DECLTYPE_D3DCOLOR, DECLUSAGE_COLOR, 1)
	}
	n := f.TexCount()
	if n > MaxTexCoords {
		return nil, fmt.Errorf("fvf %#x texture count %d: %w", uint32(f), n, core.ErrInvalidParameter)
	}
	for i := 0; i < n; i++ {
		add(floatDeclType(f.texCoordComponents(i)), DECLUSAGE_TEXCOORD, uint8(i))
	}
	return decl, nil
}

/**
 * @brief Resolves a declaration and the bound stream strides into a vertex layout.
 */
func LayoutFromDeclaration(decl []VertexElement, strides [MaxStreams]uint16) (VertexLayout, error) {
	var l VertexLayout
	if len(decl) > MaxVertexAttributes {
		return l, fmt.Errorf("declaration has %d elements: %w", len(decl), core.ErrInvalidParameter)
	}
	var seen uint32
	for _, e := range decl {
		if int(e.Stream) >= MaxStreams {
			return VertexLayout{}, fmt.Errorf("declaration stream %d: %w", e.Stream, core.ErrInvalidSlot)
		}
		if _, err := e.Type.Size(); err != nil {
			return VertexLayout{}, err
		}
		loc, err := UsageLocation(e.Usage, e.UsageIndex)
		if err != nil {
			return VertexLayout{}, err
		}
		if seen&(1<<loc) != 0 {
			return VertexLayout{}, fmt.Errorf("duplicate vertex usage %d index %d: %w", e.Usage, e.UsageIndex, core.ErrInvalidParameter)
		}
		seen |= 1 << loc
		l.Attributes[l.AttributeCount] = VertexAttribute{
			Location: loc,
			Stream:   uint8(e.Stream),
			Type:     e.Type,
			Offset:   e.Offset,
		}
		l.AttributeCount++
		l.Strides[e.Stream] = strides[e.Stream]
	}
	return l, nil
}

/**
 * @brief Layout for FVF vertices read from stream 0. A zero stride uses the FVF size.
 */
func LayoutFromFVF(f FVF, stride uint16) (VertexLayout, error) {
	decl, err := DeclarationFromFVF(f)
	if err != nil {
		return VertexLayout{}, err
	}
	if stride == 0 {
		if stride, err = FVFStride(f); err != nil {
			return VertexLayout{}, err
		}
	}
	var strides [MaxStreams]uint16
	strides[0] = stride
	return LayoutFromDeclaration(decl, strides)
}
