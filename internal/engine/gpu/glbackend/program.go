package glbackend

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
)

// stage is one shader object of a program.
type stage struct {
	kind   uint32
	name   string
	source []byte
}

// linkProgram compiles the vertex and pixel stages and links them. GLSL
// permutation files are plain text, so the bytecode is the source.
func linkProgram(vs, ps []byte) (uint32, error) {
	stages := []stage{
		{gl.VERTEX_SHADER, "vertex", vs},
		{gl.FRAGMENT_SHADER, "pixel", ps},
	}
	program := gl.CreateProgram()
	for _, st := range stages {
		sh, err := compileStage(st)
		if err != nil {
			gl.DeleteProgram(program)
			return 0, err
		}
		gl.AttachShader(program, sh)
		// Flagged for deletion; freed with the program.
		gl.DeleteShader(sh)
	}
	gl.LinkProgram(program)

	var ok int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &ok)
	if ok == gl.FALSE {
		msg := infoLog(program, gl.GetProgramiv, gl.GetProgramInfoLog)
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("linking program: %s", msg)
	}
	return program, nil
}

func compileStage(st stage) (uint32, error) {
	if len(st.source) == 0 {
		return 0, fmt.Errorf("%s stage: empty source", st.name)
	}
	sh := gl.CreateShader(st.kind)
	src, free := gl.Strs(string(st.source) + "\x00")
	gl.ShaderSource(sh, 1, src, nil)
	free()
	gl.CompileShader(sh)

	var ok int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &ok)
	if ok == gl.FALSE {
		msg := infoLog(sh, gl.GetShaderiv, gl.GetShaderInfoLog)
		gl.DeleteShader(sh)
		return 0, fmt.Errorf("%s stage: %s", st.name, msg)
	}
	return sh, nil
}

// infoLog reads the compile or link log of a shader or program object.
func infoLog(obj uint32,
	param func(uint32, uint32, *int32),
	read func(uint32, int32, *int32, *uint8),
) string {
	var n int32
	param(obj, gl.INFO_LOG_LENGTH, &n)
	if n <= 1 {
		return "no info log"
	}
	buf := make([]byte, n)
	read(obj, n, nil, &buf[0])
	return strings.TrimRight(string(buf), "\x00\n")
}

// bindRegisters points uniform blocks and sampler uniforms at the binding
// points the root signature registers name. Names the program optimized out
// are skipped.
func bindRegisters(program uint32, rs gpu.RootSignatureDesc) {
	gl.UseProgram(program)
	for _, p := range rs.Parameters {
		switch p.Kind {
		case gpu.ParamConstantBuffer:
			idx := gl.GetUniformBlockIndex(program, gl.Str(blockName(p.Register)+"\x00"))
			if idx != gl.INVALID_INDEX {
				gl.UniformBlockBinding(program, idx, uint32(p.Register))
			}
		case gpu.ParamDescriptorTable:
			for i := range max(p.Count, 1) {
				reg := p.Register + i
				if loc := gl.GetUniformLocation(program, gl.Str(textureName(reg)+"\x00")); loc >= 0 {
					gl.Uniform1i(loc, int32(reg))
				}
			}
		}
	}
	gl.UseProgram(0)
}

func blockName(register int) string   { return fmt.Sprintf("cb%d", register) }
func textureName(register int) string { return fmt.Sprintf("t%d", register) }
