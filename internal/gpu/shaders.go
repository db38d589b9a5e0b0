package gpu

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Embedded WGSL shader sources.

//go:embed shaders/polygon.wgsl
var polygonShaderSource string

//go:embed shaders/rrect.wgsl
var rectShaderSource string

// ShaderSources returns the WGSL sources of every pipeline, keyed by name.
func ShaderSources() map[string]string {
	return map[string]string{
		"polygon": polygonShaderSource,
		"rrect":   rectShaderSource,
	}
}

// CompileSPIRV compiles WGSL source to SPIR-V words.
func CompileSPIRV(wgsl string) ([]uint32, error) {
	if wgsl == "" {
		return nil, errors.New("gpu: shader source is empty")
	}
	spirv, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("compile shader: SPIR-V length %d is not a multiple of 4", len(spirv))
	}
	// SPIR-V is a stream of little-endian 32-bit words.
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words, nil
}

// shaderSource returns the module source for backend. Vulkan receives
// SPIR-V compiled up front; every other backend takes WGSL directly.
func shaderSource(backend gputypes.Backend, wgsl string) (hal.ShaderSource, error) {
	if backend != gputypes.BackendVulkan {
		return hal.ShaderSource{WGSL: wgsl}, nil
	}
	words, err := CompileSPIRV(wgsl)
	if err != nil {
		return hal.ShaderSource{}, err
	}
	return hal.ShaderSource{SPIRV: words}, nil
}
