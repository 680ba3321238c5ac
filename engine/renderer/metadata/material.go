package metadata

import "github.com/spaghettifunk/ffbridge/engine/math"

/** @brief Maximum number of lights the fixed-function path evaluates. */
const MaxLights = 8

type LightType uint32

const (
	LIGHT_POINT       LightType = 1
	LIGHT_SPOT        LightType = 2
	LIGHT_DIRECTIONAL LightType = 3
)

/**
 * @brief A legacy light definition.
 */
type Light struct {
	Type         LightType
	Diffuse      math.Color
	Specular     math.Color
	Ambient      math.Color
	Position     math.Vec3
	Direction    math.Vec3
	Range        float32
	Falloff      float32
	Attenuation0 float32
	Attenuation1 float32
	Attenuation2 float32
	Theta        float32
	Phi          float32
}

func (l Light) Valid() bool {
	return l.Type >= LIGHT_POINT && l.Type <= LIGHT_DIRECTIONAL
}

/** @brief White directional light shining down +Z. */
func DefaultLight() Light {
	return Light{
		Type:      LIGHT_DIRECTIONAL,
		Diffuse:   math.Color{X: 1, Y: 1, Z: 1, W: 1},
		Direction: math.Vec3{X: 0, Y: 0, Z: 1},
		Range:     1e30,
	}
}

/**
 * @brief The active legacy material.
 */
type Material struct {
	Diffuse  math.Color
	Ambient  math.Color
	Specular math.Color
	Emissive math.Color
	Power    float32
}

func DefaultMaterial() Material {
	white := math.Color{X: 1, Y: 1, Z: 1, W: 1}
	return Material{
		Diffuse: white,
		Ambient: white,
	}
}
