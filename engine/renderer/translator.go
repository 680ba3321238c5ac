package renderer

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// TranslatedShader is a shader ready for module creation together with its
// resource interface.
type TranslatedShader struct {
	Stage      metadata.ShaderStage
	EntryPoint string
	Code       []uint32
	// Number of combined image samplers read through binding 2.
	SamplerCount uint32
	// Uniform block bindings the shader reads.
	ConstantSlots []uint32
}

// ShaderTranslator turns client shader bytecode into module code and its
// binding table.
type ShaderTranslator interface {
	Translate(code []uint32) (*TranslatedShader, error)
}

const (
	spirvMagic = 0x07230203

	opEntryPoint      = 15
	opTypeSampledImg  = 27
	opTypeArray       = 28
	opTypePointer     = 32
	opConstant        = 43
	opVariable        = 59
	opDecorate        = 71
	decorationBinding = 33

	storageUniformConstant = 0
	storageUniform         = 2

	execVertex   = 0
	execFragment = 4
)

// minOperands is the operand count below which a reflected instruction is
// malformed.
var minOperands = map[uint32]int{
	opEntryPoint:     3,
	opTypeSampledImg: 2,
	opTypeArray:      3,
	opTypePointer:    3,
	opVariable:       3,
}

// SPIRVTranslator accepts SPIR-V modules and reflects their interface.
// Samplers must live at binding 2 as a single array, uniform blocks at
// bindings 0 and 1.
type SPIRVTranslator struct{}

func (SPIRVTranslator) Translate(code []uint32) (*TranslatedShader, error) {
	if len(code) < 5 || code[0] != spirvMagic {
		return nil, fmt.Errorf("translate: not a SPIR-V module: %w", core.ErrInvalidParameter)
	}

	type variable struct {
		ptrType uint32
		id      uint32
		storage uint32
	}
	var (
		out       = &TranslatedShader{Code: append([]uint32(nil), code...)}
		pointers  = map[uint32]uint32{}
		arrays    = map[uint32][2]uint32{}
		sampled   = map[uint32]bool{}
		constants = map[uint32]uint32{}
		bindings  = map[uint32]uint32{}
		variables []variable
	)

	for i := 5; i < len(code); {
		count := int(code[i] >> 16)
		op := code[i] & 0xffff
		if count == 0 || i+count > len(code) {
			return nil, fmt.Errorf("translate: truncated instruction at word %d: %w", i, core.ErrInvalidParameter)
		}
		args := code[i+1 : i+count]
		if n, ok := minOperands[op]; ok && len(args) < n {
			return nil, fmt.Errorf("translate: opcode %d at word %d has %d operands, needs %d: %w", op, i, len(args), n, core.ErrInvalidParameter)
		}
		switch op {
		case opEntryPoint:
			if out.EntryPoint == "" {
				switch args[0] {
				case execVertex:
					out.Stage = metadata.ShaderStageVertex
				case execFragment:
					out.Stage = metadata.ShaderStageFragment
				default:
					return nil, fmt.Errorf("translate: execution model %d: %w", args[0], core.ErrInvalidParameter)
				}
				out.EntryPoint = literalString(args[2:])
			}
		case opTypeSampledImg:
			sampled[args[0]] = true
		case opTypeArray:
			arrays[args[0]] = [2]uint32{args[1], args[2]}
		case opTypePointer:
			pointers[args[0]] = args[2]
		case opConstant:
			if len(args) == 3 {
				constants[args[1]] = args[2]
			}
		case opVariable:
			variables = append(variables, variable{ptrType: args[0], id: args[1], storage: args[2]})
		case opDecorate:
			if len(args) == 3 && args[1] == decorationBinding {
				bindings[args[0]] = args[2]
			}
		}
		i += count
	}
	if out.EntryPoint == "" {
		return nil, fmt.Errorf("translate: no entry point: %w", core.ErrInvalidParameter)
	}

	for _, v := range variables {
		binding, bound := bindings[v.id]
		switch v.storage {
		case storageUniform:
			if !bound || binding >= metadata.BindingFirstImage {
				return nil, fmt.Errorf("translate: uniform block at binding %d: %w", binding, core.ErrInvalidParameter)
			}
			out.ConstantSlots = append(out.ConstantSlots, binding)
		case storageUniformConstant:
			t := pointers[v.ptrType]
			n := uint32(1)
			if a, ok := arrays[t]; ok {
				t, n = a[0], constants[a[1]]
			}
			if !sampled[t] {
				continue
			}
			if !bound || binding != metadata.BindingFirstImage || out.SamplerCount != 0 {
				return nil, fmt.Errorf("translate: samplers must be one array at binding %d: %w", metadata.BindingFirstImage, core.ErrInvalidParameter)
			}
			if n == 0 || n > metadata.MaxSamplers {
				return nil, fmt.Errorf("translate: %d samplers: %w", n, core.ErrInvalidSlot)
			}
			out.SamplerCount = n
		}
	}
	return out, nil
}

func literalString(words []uint32) string {
	var b []byte
	for _, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(b)
			}
			b = append(b, c)
		}
	}
	return string(b)
}

// WordsFromBytes reinterprets little-endian bytecode as 32-bit words.
func WordsFromBytes(code []byte) ([]uint32, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("bytecode length %d is not a multiple of 4: %w", len(code), core.ErrInvalidParameter)
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}
