package gpu

import (
	"fmt"

	"github.com/gogpu/glimmer/scene"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// viewportUniformSize is the size of the Viewport uniform block.
const viewportUniformSize = 16

// PipelineSet is the pair of render pipelines for one target format.
type PipelineSet struct {
	Polygon hal.RenderPipeline
	Rect    hal.RenderPipeline
}

// Pipelines owns the shader modules, layouts, sampler and the render
// pipelines of every target format used so far.
type Pipelines struct {
	device  hal.Device
	backend gputypes.Backend

	polygonShader hal.ShaderModule
	rectShader    hal.ShaderModule

	uniformLayout hal.BindGroupLayout
	textureLayout hal.BindGroupLayout
	polygonLayout hal.PipelineLayout
	rectLayout    hal.PipelineLayout
	sampler       hal.Sampler

	sets map[gputypes.TextureFormat]*PipelineSet
}

// NewPipelines compiles both shaders and creates the shared layouts.
// Pipelines themselves are created on first use of a target format.
func NewPipelines(device hal.Device, backend gputypes.Backend) (*Pipelines, error) {
	p := &Pipelines{
		device:  device,
		backend: backend,
		sets:    make(map[gputypes.TextureFormat]*PipelineSet),
	}
	if err := p.init(); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *Pipelines) init() error {
	var err error
	if p.polygonShader, err = p.createShader("glimmer_polygon_shader", polygonShaderSource); err != nil {
		return err
	}
	if p.rectShader, err = p.createShader("glimmer_rrect_shader", rectShaderSource); err != nil {
		return err
	}

	p.uniformLayout, err = p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "glimmer_viewport_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create viewport layout: %w", err)
	}

	p.textureLayout, err = p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "glimmer_texture_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create texture layout: %w", err)
	}

	p.polygonLayout, err = p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "glimmer_polygon_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout, p.textureLayout},
	})
	if err != nil {
		return fmt.Errorf("create polygon pipeline layout: %w", err)
	}
	p.rectLayout, err = p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "glimmer_rrect_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("create rrect pipeline layout: %w", err)
	}

	p.sampler, err = p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "glimmer_linear_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}
	return nil
}

func (p *Pipelines) createShader(label, wgsl string) (hal.ShaderModule, error) {
	src, err := shaderSource(p.backend, wgsl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	m, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: label, Source: src})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", label, err)
	}
	return m, nil
}

// ForFormat returns the pipelines rendering into format, creating them on
// first use.
func (p *Pipelines) ForFormat(format gputypes.TextureFormat) (*PipelineSet, error) {
	if set, ok := p.sets[format]; ok {
		return set, nil
	}

	polygon, err := p.createPipeline("glimmer_polygon_pipeline", p.polygonLayout, p.polygonShader, polygonVertexLayout(), format)
	if err != nil {
		return nil, err
	}
	rect, err := p.createPipeline("glimmer_rrect_pipeline", p.rectLayout, p.rectShader, rectVertexLayout(), format)
	if err != nil {
		p.device.DestroyRenderPipeline(polygon)
		return nil, err
	}

	set := &PipelineSet{Polygon: polygon, Rect: rect}
	p.sets[format] = set
	slogger().Debug("gpu: render pipelines created", "format", format)
	return set, nil
}

func (p *Pipelines) createPipeline(
	label string,
	layout hal.PipelineLayout,
	shader hal.ShaderModule,
	buffers []gputypes.VertexBufferLayout,
	format gputypes.TextureFormat,
) (hal.RenderPipeline, error) {
	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return pipeline, nil
}

// polygonVertexLayout matches scene.Vertex.
func polygonVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: scene.VertexSize,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
				{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
			},
		},
	}
}

// rectVertexLayout matches scene.RectVertex.
func rectVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: scene.RectVertexSize,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 16, ShaderLocation: 2},
				{Format: gputypes.VertexFormatFloat32x4, Offset: 24, ShaderLocation: 3},
				{Format: gputypes.VertexFormatFloat32x4, Offset: 40, ShaderLocation: 4},
				{Format: gputypes.VertexFormatFloat32x4, Offset: 56, ShaderLocation: 5},
			},
		},
	}
}

// ViewportBindGroup binds the viewport uniform at offset in buf.
func (p *Pipelines) ViewportBindGroup(buf hal.Buffer, offset uint64) (hal.BindGroup, error) {
	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "glimmer_viewport",
		Layout: p.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: buf.NativeHandle(),
				Offset: offset,
				Size:   viewportUniformSize,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create viewport bind group: %w", err)
	}
	return bg, nil
}

// TextureBindGroup binds view and the shared sampler for the polygon
// pipeline.
func (p *Pipelines) TextureBindGroup(view hal.TextureView) (hal.BindGroup, error) {
	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "glimmer_texture",
		Layout: p.textureLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create texture bind group: %w", err)
	}
	return bg, nil
}

// Destroy releases everything in reverse creation order.
func (p *Pipelines) Destroy() {
	if p.device == nil {
		return
	}
	for format, set := range p.sets {
		p.device.DestroyRenderPipeline(set.Rect)
		p.device.DestroyRenderPipeline(set.Polygon)
		delete(p.sets, format)
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.rectLayout != nil {
		p.device.DestroyPipelineLayout(p.rectLayout)
		p.rectLayout = nil
	}
	if p.polygonLayout != nil {
		p.device.DestroyPipelineLayout(p.polygonLayout)
		p.polygonLayout = nil
	}
	if p.textureLayout != nil {
		p.device.DestroyBindGroupLayout(p.textureLayout)
		p.textureLayout = nil
	}
	if p.uniformLayout != nil {
		p.device.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.rectShader != nil {
		p.device.DestroyShaderModule(p.rectShader)
		p.rectShader = nil
	}
	if p.polygonShader != nil {
		p.device.DestroyShaderModule(p.polygonShader)
		p.polygonShader = nil
	}
}
