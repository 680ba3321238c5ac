package renderer

import (
	"fmt"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/cache"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// Shader is a client shader after translation.
type Shader struct {
	ID metadata.ShaderID
	*TranslatedShader
}

type stageCode struct {
	code       []uint32
	entry      string
	samplers   uint32
	translated bool
}

// pipelineBuilder derives backend objects for a pipeline key. It is the
// miss path of the pipeline cache.
type pipelineBuilder struct {
	backend Backend
	library *ShaderLibrary
	shaders *core.Registry[Shader]
}

func (b *pipelineBuilder) stage(stage metadata.ShaderStage, id metadata.ShaderID, key cache.PipelineKey) (stageCode, error) {
	if id == metadata.FixedFunctionShader {
		code, err := b.library.Code(Variant{Stage: stage, Constants: key.Constants, Inputs: key.Layout.LocationMask()})
		if err != nil {
			return stageCode{}, err
		}
		entry := vertexEntryPoint
		if stage == metadata.ShaderStageFragment {
			entry = fragmentEntryPoint
		}
		return stageCode{code: code, entry: entry}, nil
	}
	s, ok := b.shaders.Lookup(uint32(id))
	if !ok {
		return stageCode{}, fmt.Errorf("shader %d: %w", id, core.ErrInvalidParameter)
	}
	if s.Stage != stage {
		return stageCode{}, fmt.Errorf("shader %d is stage %d, bound as %d: %w", id, s.Stage, stage, core.ErrInvalidParameter)
	}
	return stageCode{code: s.Code, entry: s.EntryPoint, samplers: s.SamplerCount, translated: true}, nil
}

// bindingTable synthesizes the descriptor-set layout of a shader pair.
func bindingTable(vs, fs stageCode, c metadata.SpecializationConstants) (metadata.BindingTable, error) {
	var t metadata.BindingTable
	t.Add(metadata.DescriptorBinding{Binding: metadata.BindingVertexUniforms, Kind: metadata.DescriptorUniformBuffer, Count: 1, Stages: metadata.ShaderStageAll})
	t.Add(metadata.DescriptorBinding{Binding: metadata.BindingFragmentUniforms, Kind: metadata.DescriptorUniformBuffer, Count: 1, Stages: metadata.ShaderStageAll})
	if vs.samplers != 0 {
		return t, fmt.Errorf("vertex texture fetch: %w", core.ErrInvalidParameter)
	}
	if fs.translated {
		if fs.samplers > 0 {
			t.Add(metadata.DescriptorBinding{
				Binding: metadata.BindingFirstImage,
				Kind:    metadata.DescriptorCombinedImageSampler,
				Count:   fs.samplers,
				Stages:  metadata.ShaderStageFragment,
			})
		}
		return t, nil
	}
	for _, tex := range fixedFunctionTextures(int(c.TextureCount)) {
		t.Add(metadata.DescriptorBinding{Binding: tex.TextureBinding, Kind: metadata.DescriptorSampledImage, Count: 1, Stages: metadata.ShaderStageFragment, FirstSlot: uint8(tex.Index)})
		t.Add(metadata.DescriptorBinding{Binding: tex.SamplerBinding, Kind: metadata.DescriptorSampler, Count: 1, Stages: metadata.ShaderStageFragment, FirstSlot: uint8(tex.Index)})
	}
	return t, nil
}

func (b *pipelineBuilder) BuildPipeline(key cache.PipelineKey) (objs cache.PipelineObjects, err error) {
	vs, err := b.stage(metadata.ShaderStageVertex, key.VertexShader, key)
	if err != nil {
		return objs, err
	}
	fs, err := b.stage(metadata.ShaderStageFragment, key.PixelShader, key)
	if err != nil {
		return objs, err
	}
	if objs.Bindings, err = bindingTable(vs, fs, key.Constants); err != nil {
		return objs, err
	}

	defer func() {
		if err != nil {
			b.ReleasePipeline(objs)
			objs = cache.PipelineObjects{}
		}
	}()

	if objs.SetLayout, err = b.backend.CreateDescriptorSetLayout(objs.Bindings); err != nil {
		return objs, err
	}
	push := metadata.PushConstantRange{Stages: metadata.ShaderStageVertex, Size: metadata.PushConstantSize}
	if objs.Layout, err = b.backend.CreatePipelineLayout(objs.SetLayout, push); err != nil {
		return objs, err
	}

	// modules are only needed while the pipeline is compiled
	vm, err := b.backend.CreateShaderModule(metadata.ShaderModuleDesc{Stage: metadata.ShaderStageVertex, Code: vs.code})
	if err != nil {
		return objs, err
	}
	defer b.backend.DestroyShaderModule(vm)
	fm, err := b.backend.CreateShaderModule(metadata.ShaderModuleDesc{Stage: metadata.ShaderStageFragment, Code: fs.code})
	if err != nil {
		return objs, err
	}
	defer b.backend.DestroyShaderModule(fm)

	desc := &metadata.GraphicsPipelineDesc{
		Layout:                objs.Layout,
		VertexModule:          vm,
		VertexEntry:           vs.entry,
		FragmentModule:        fm,
		FragmentEntry:         fs.entry,
		Topology:              key.Topology,
		VertexLayout:          key.Layout,
		CullMode:              key.CullMode,
		FillMode:              key.FillMode,
		Specialization:        key.Constants.Bytes(),
		SpecializationEntries: metadata.SpecializationMapEntries(key.Constants.Count()),
	}
	objs.Pipeline, err = b.backend.CreateGraphicsPipeline(desc)
	return objs, err
}

func (b *pipelineBuilder) ReleasePipeline(objs cache.PipelineObjects) {
	if objs.Pipeline != 0 {
		b.backend.DestroyPipeline(objs.Pipeline)
	}
	if objs.Layout != 0 {
		b.backend.DestroyPipelineLayout(objs.Layout)
	}
	if objs.SetLayout != 0 {
		b.backend.DestroyDescriptorSetLayout(objs.SetLayout)
	}
}
