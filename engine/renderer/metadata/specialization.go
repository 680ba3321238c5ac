package metadata

import (
	"encoding/binary"
)

/** @brief Every specialization constant is a 32-bit integer. */
const SpecializationElementSize = 4

/**
 * @brief Small integer flags that select shader behaviour. They are baked
 * into the pipeline at creation time, so they are part of the pipeline key.
 * Field order defines the constant ids.
 */
type SpecializationConstants struct {
	LightingEnabled     int32
	LightCount          int32
	ShadeMode           int32
	PositionTransformed int32
	HasNormal           int32
	HasPointSize        int32
	HasDiffuse          int32
	HasSpecular         int32
	TexCoordCount       int32
	TextureCount        int32
	ColorVertex         int32
	DiffuseSource       int32
	AmbientSource       int32
	SpecularSource      int32
	EmissiveSource      int32
	SpecularEnabled     int32
	NormalizeNormals    int32
	AlphaTestEnabled    int32
	AlphaFunc           int32
	FogEnabled          int32
	StageColorOp        [MaxShaderTextureStages]int32
	StageColorArg1      [MaxShaderTextureStages]int32
	StageColorArg2      [MaxShaderTextureStages]int32
	StageAlphaOp        [MaxShaderTextureStages]int32
	StageAlphaArg1      [MaxShaderTextureStages]int32
	StageAlphaArg2      [MaxShaderTextureStages]int32
	StageTexCoordIndex  [MaxShaderTextureStages]int32
}

/** @brief Number of 32-bit constants in the record. */
func (c SpecializationConstants) Count() int {
	return binary.Size(c) / SpecializationElementSize
}

/** @brief The constant data blob handed to pipeline creation. */
func (c SpecializationConstants) Bytes() []byte {
	out, _ := binary.Append(nil, binary.LittleEndian, c)
	return out
}

func B32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

/** @brief One specialization map entry. */
type SpecializationMapEntry struct {
	ConstantID uint32
	Offset     uint32
	Size       uint32
}

/**
 * @brief Map entries for count consecutive constants: id i lives at i*4.
 */
func SpecializationMapEntries(count int) []SpecializationMapEntry {
	entries := make([]SpecializationMapEntry, count)
	for i := range entries {
		entries[i] = SpecializationMapEntry{
			ConstantID: uint32(i),
			Offset:     uint32(i * SpecializationElementSize),
			Size:       SpecializationElementSize,
		}
	}
	return entries
}
