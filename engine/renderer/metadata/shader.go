package metadata

/** @brief Identifier of a translated legacy shader. 0 selects the fixed-function path. */
type ShaderID uint32

const FixedFunctionShader ShaderID = 0

/** @brief Pipeline stages a resource is visible to. */
type ShaderStage uint8

const (
	ShaderStageVertex   ShaderStage = 0x1
	ShaderStageFragment ShaderStage = 0x2
	ShaderStageAll      ShaderStage = ShaderStageVertex | ShaderStageFragment
)

/** @brief Register file sizes of the legacy constant banks, in vec4 registers. */
const (
	MaxVertexShaderConstants = 256
	MaxPixelShaderConstants  = 224
)

/** @brief Kind of a descriptor binding. */
type DescriptorKind uint8

const (
	DescriptorUniformBuffer DescriptorKind = iota
	DescriptorCombinedImageSampler
	DescriptorSampledImage
	DescriptorSampler
)

/** @brief Uniform bindings shared by every shader interface. */
const (
	// Lights for fixed function, vertex constants for shaders.
	BindingVertexUniforms uint32 = 0
	// Material and fixed-function parameters, or pixel constants.
	BindingFragmentUniforms uint32 = 1
	// First binding used for textures.
	BindingFirstImage uint32 = 2
)

/**
 * @brief One entry of a shader's resource binding table. Image bindings
 * read FirstSlot..FirstSlot+Count-1 of the device sampler slots.
 */
type DescriptorBinding struct {
	Binding   uint32
	Kind      DescriptorKind
	Count     uint32
	Stages    ShaderStage
	FirstSlot uint8
}

/** @brief Upper bound on bindings in one descriptor set. */
const MaxDescriptorBindings = 16

/**
 * @brief The comparable resource binding table of a shader pair. It fully
 * determines the descriptor-set layout.
 */
type BindingTable struct {
	Count    uint8
	Bindings [MaxDescriptorBindings]DescriptorBinding
}

func (t *BindingTable) Add(b DescriptorBinding) bool {
	if int(t.Count) >= MaxDescriptorBindings {
		return false
	}
	t.Bindings[t.Count] = b
	t.Count++
	return true
}

func (t BindingTable) Slice() []DescriptorBinding {
	return t.Bindings[:t.Count]
}

/** @brief Number of sampler slots read by the table. */
func (t BindingTable) SamplerCount() uint32 {
	var n uint32
	for _, b := range t.Slice() {
		if b.Kind != DescriptorUniformBuffer && b.Kind != DescriptorSampler {
			n += b.Count
		}
	}
	return n
}
