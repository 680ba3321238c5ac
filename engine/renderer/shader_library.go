package renderer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"runtime"
	"sync"
	"text/template"

	"github.com/gogpu/naga"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

//go:embed shaders/*.tmpl
var shaderTemplates embed.FS

var fixedFunctionTemplates = template.Must(template.ParseFS(shaderTemplates, "shaders/*.tmpl"))

const (
	vertexEntryPoint   = "vs_main"
	fragmentEntryPoint = "fs_main"
)

// Compiler turns WGSL source into little-endian SPIR-V bytes.
type Compiler func(source string) ([]byte, error)

// Variant selects one fixed-function shader. Inputs is the location mask
// of the vertex layout and only matters for the vertex stage.
type Variant struct {
	Stage     metadata.ShaderStage
	Constants metadata.SpecializationConstants
	Inputs    uint32
}

// ShaderLibrary generates and compiles the fixed-function shader variants.
// Compiled code is kept for the lifetime of the library; modules are not.
type ShaderLibrary struct {
	compile Compiler
	mu      sync.Mutex
	code    map[Variant][]uint32
}

// NewShaderLibrary uses naga when compile is nil.
func NewShaderLibrary(compile Compiler) *ShaderLibrary {
	if compile == nil {
		compile = naga.Compile
	}
	return &ShaderLibrary{compile: compile, code: make(map[Variant][]uint32)}
}

func (l *ShaderLibrary) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.code)
}

// Code returns the SPIR-V for v, compiling it on first use.
func (l *ShaderLibrary) Code(v Variant) ([]uint32, error) {
	if v.Stage == metadata.ShaderStageFragment {
		v.Inputs = 0
	}
	l.mu.Lock()
	code, ok := l.code[v]
	l.mu.Unlock()
	if ok {
		return code, nil
	}

	src, err := l.Source(v)
	if err != nil {
		return nil, err
	}
	spirv, err := l.compile(src)
	if err != nil {
		core.LogDebug("fixed-function source:\n%s", src)
		return nil, fmt.Errorf("compile fixed-function stage %d: %w", v.Stage, err)
	}
	code, err = WordsFromBytes(spirv)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.code[v] = code
	l.mu.Unlock()
	return code, nil
}

// WarmUp compiles variants in parallel ahead of their first draw.
func (l *ShaderLibrary) WarmUp(ctx context.Context, variants []Variant) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, v := range variants {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := l.Code(v)
			return err
		})
	}
	return g.Wait()
}

// Source renders the WGSL for v.
func (l *ShaderLibrary) Source(v Variant) (string, error) {
	var (
		name string
		data interface{}
	)
	switch v.Stage {
	case metadata.ShaderStageVertex:
		name, data = "fixed_function.vert.wgsl.tmpl", newVertexTemplate(v.Constants, v.Inputs)
	case metadata.ShaderStageFragment:
		name, data = "fixed_function.frag.wgsl.tmpl", newFragmentTemplate(v.Constants)
	default:
		return "", fmt.Errorf("fixed-function stage %d: %w", v.Stage, core.ErrInvalidParameter)
	}
	var buf bytes.Buffer
	if err := fixedFunctionTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type texInput struct {
	Location uint8
	Index    int
}

type stageCoord struct {
	Index int
	Expr  string
}

type vertexTemplate struct {
	metadata.SpecializationConstants
	Flat        bool
	TexInputs   []texInput
	Lights      []int
	StageCoords []stageCoord
	MatDiffuse  string
	MatAmbient  string
	MatSpecular string
	MatEmissive string
}

func newVertexTemplate(c metadata.SpecializationConstants, inputs uint32) vertexTemplate {
	t := vertexTemplate{SpecializationConstants: c, Flat: c.ShadeMode == int32(metadata.SHADE_FLAT)}
	for i := 0; i < metadata.MaxTexCoords; i++ {
		loc := metadata.LocationTexCoord0 + uint8(i)
		if inputs&(1<<loc) != 0 {
			t.TexInputs = append(t.TexInputs, texInput{Location: loc, Index: i})
		}
	}
	for i := 0; i < int(c.LightCount); i++ {
		t.Lights = append(t.Lights, i)
	}
	for i := 0; i < metadata.MaxShaderTextureStages; i++ {
		expr := "vec4<f32>(0.0, 0.0, 0.0, 0.0)"
		set := int(c.StageTexCoordIndex[i] & 0xffff)
		if set < metadata.MaxTexCoords && inputs&(1<<(metadata.LocationTexCoord0+uint8(set))) != 0 {
			expr = fmt.Sprintf("in.tex%d", set)
		}
		t.StageCoords = append(t.StageCoords, stageCoord{Index: i, Expr: expr})
	}
	t.MatDiffuse = materialSource(c, c.DiffuseSource, "ff.diffuse")
	t.MatAmbient = materialSource(c, c.AmbientSource, "ff.ambient")
	t.MatSpecular = materialSource(c, c.SpecularSource, "ff.specular")
	t.MatEmissive = materialSource(c, c.EmissiveSource, "ff.emissive")
	return t
}

// materialSource resolves a material colour source. Vertex colours are
// used only when colour-vertex is on and the vertex carries them.
func materialSource(c metadata.SpecializationConstants, src int32, material string) string {
	if c.ColorVertex == 0 {
		return material
	}
	switch metadata.MaterialColorSource(src) {
	case metadata.MCS_COLOR1:
		if c.HasDiffuse != 0 {
			return "in.color0"
		}
	case metadata.MCS_COLOR2:
		if c.HasSpecular != 0 {
			return "in.color1"
		}
	}
	return material
}

type textureBinding struct {
	Index          int
	TextureBinding uint32
	SamplerBinding uint32
}

type stageOps struct {
	Color string
	Alpha string
}

type fragmentTemplate struct {
	metadata.SpecializationConstants
	Flat      bool
	Textures  []textureBinding
	Stages    []stageOps
	AlphaTest string
}

// fixedFunctionTextures returns the image bindings of the fixed-function
// fragment stage: one sampled image and one sampler per textured stage.
func fixedFunctionTextures(textureCount int) []textureBinding {
	out := make([]textureBinding, 0, textureCount)
	for i := 0; i < textureCount; i++ {
		out = append(out, textureBinding{
			Index:          i,
			TextureBinding: metadata.BindingFirstImage + uint32(2*i),
			SamplerBinding: metadata.BindingFirstImage + uint32(2*i) + 1,
		})
	}
	return out
}

func newFragmentTemplate(c metadata.SpecializationConstants) fragmentTemplate {
	t := fragmentTemplate{
		SpecializationConstants: c,
		Flat:                    c.ShadeMode == int32(metadata.SHADE_FLAT),
		Textures:                fixedFunctionTextures(int(c.TextureCount)),
	}
	for i := 0; i < metadata.MaxShaderTextureStages; i++ {
		op := metadata.TextureOp(c.StageColorOp[i])
		if op == 0 || op == metadata.TOP_DISABLE {
			break
		}
		textured := i < int(c.TextureCount)
		arg := func(a int32, alpha bool) string {
			return stageArg(metadata.TextureArg(a), i, textured, alpha)
		}
		t.Stages = append(t.Stages, stageOps{
			Color: stageOp(op, arg(c.StageColorArg1[i], false), arg(c.StageColorArg2[i], false), ".rgb", i, textured),
			Alpha: stageOp(metadata.TextureOp(c.StageAlphaOp[i]), arg(c.StageAlphaArg1[i], true), arg(c.StageAlphaArg2[i], true), ".a", i, textured),
		})
	}
	if c.AlphaTestEnabled != 0 {
		t.AlphaTest = alphaTest(metadata.CmpFunc(c.AlphaFunc))
	}
	return t
}

func stageArg(a metadata.TextureArg, stage int, textured, alpha bool) string {
	var v string
	switch a & metadata.TA_SELECTMASK {
	case metadata.TA_DIFFUSE:
		v = "diffuse"
	case metadata.TA_CURRENT:
		v = "current"
	case metadata.TA_TEXTURE:
		if textured {
			v = fmt.Sprintf("tex%d", stage)
		} else {
			v = "vec4<f32>(1.0, 1.0, 1.0, 1.0)"
		}
	case metadata.TA_TFACTOR:
		v = "tfactor"
	case metadata.TA_SPECULAR:
		v = "specular"
	case metadata.TA_TEMP:
		v = "temp"
	default:
		v = "vec4<f32>(1.0, 1.0, 1.0, 1.0)"
	}
	if a&metadata.TA_ALPHAREPLICATE != 0 && !alpha {
		v = fmt.Sprintf("vec4<f32>(%s.a)", v)
	}
	if a&metadata.TA_COMPLEMENT != 0 {
		v = fmt.Sprintf("(vec4<f32>(1.0) - %s)", v)
	}
	return v
}

// stageOp combines two arguments. Operations without a translation select
// the first argument.
func stageOp(op metadata.TextureOp, a1, a2, sw string, stage int, textured bool) string {
	x, y := a1+sw, a2+sw
	switch op {
	case 0, metadata.TOP_DISABLE:
		return "current" + sw
	case metadata.TOP_SELECTARG2:
		return y
	case metadata.TOP_MODULATE:
		return fmt.Sprintf("(%s * %s)", x, y)
	case metadata.TOP_MODULATE2X:
		return fmt.Sprintf("(%s * %s * 2.0)", x, y)
	case metadata.TOP_MODULATE4X:
		return fmt.Sprintf("(%s * %s * 4.0)", x, y)
	case metadata.TOP_ADD:
		return fmt.Sprintf("(%s + %s)", x, y)
	case metadata.TOP_ADDSIGNED:
		return fmt.Sprintf("(%s + %s - 0.5)", x, y)
	case metadata.TOP_ADDSIGNED2X:
		return fmt.Sprintf("((%s + %s - 0.5) * 2.0)", x, y)
	case metadata.TOP_SUBTRACT:
		return fmt.Sprintf("(%s - %s)", x, y)
	case metadata.TOP_ADDSMOOTH:
		return fmt.Sprintf("(%s + %s - %s * %s)", x, y, x, y)
	case metadata.TOP_BLENDDIFFUSEALPHA:
		return fmt.Sprintf("mix(%s, %s, diffuse.a)", y, x)
	case metadata.TOP_BLENDTEXTUREALPHA:
		if textured {
			return fmt.Sprintf("mix(%s, %s, tex%d.a)", y, x, stage)
		}
		return x
	case metadata.TOP_BLENDFACTORALPHA:
		return fmt.Sprintf("mix(%s, %s, tfactor.a)", y, x)
	case metadata.TOP_BLENDCURRENTALPHA:
		return fmt.Sprintf("mix(%s, %s, current.a)", y, x)
	}
	return x
}

func alphaTest(f metadata.CmpFunc) string {
	const a, ref = "current.a", "ff.params.y"
	switch f {
	case metadata.CMP_NEVER:
		return "false"
	case metadata.CMP_LESS:
		return a + " < " + ref
	case metadata.CMP_EQUAL:
		return a + " == " + ref
	case metadata.CMP_LESSEQUAL:
		return a + " <= " + ref
	case metadata.CMP_GREATER:
		return a + " > " + ref
	case metadata.CMP_NOTEQUAL:
		return a + " != " + ref
	case metadata.CMP_GREATEREQUAL:
		return a + " >= " + ref
	}
	return "true"
}
