package gpu

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens a device on the noop backend.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// simQueue is a noop queue whose fence only advances when the test says
// so.
type simQueue struct {
	hal.Queue

	submitted uint64
	completed uint64
	presents  int
	submitErr error
}

func (q *simQueue) Submit(_ []hal.CommandBuffer) (uint64, error) {
	if q.submitErr != nil {
		return 0, q.submitErr
	}
	q.submitted++
	return q.submitted, nil
}

func (q *simQueue) PollCompleted() uint64 { return q.completed }

func (q *simQueue) Present(_ hal.Surface, _ hal.SurfaceTexture, _ []image.Rectangle) error {
	q.presents++
	return nil
}

// completeAll marks every submission so far as finished.
func (q *simQueue) completeAll() { q.completed = q.submitted }

// simDevice is a noop device that hands out distinguishable encoders and
// counts destroyed objects.
type simDevice struct {
	hal.Device

	queue    *simQueue
	encoders []*trackedEncoder

	waitIdles          int
	waitErr            error
	viewsDestroyed     int
	groupsDestroyed    int
	texturesDestroyed  int
	pipelinesCreated   int
	pipelinesDestroyed int
}

func newSim(t *testing.T) (*simDevice, *simQueue) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	q := &simQueue{Queue: queue}
	return &simDevice{Device: device, queue: q}, q
}

func (d *simDevice) CreateCommandEncoder(_ *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc := &trackedEncoder{id: len(d.encoders) + 1}
	d.encoders = append(d.encoders, enc)
	return enc, nil
}

func (d *simDevice) WaitIdle() error {
	d.waitIdles++
	if d.waitErr != nil {
		return d.waitErr
	}
	d.queue.completeAll()
	return nil
}

func (d *simDevice) CreateTextureView(_ hal.Texture, _ *hal.TextureViewDescriptor) (hal.TextureView, error) {
	return &simView{}, nil
}

func (d *simDevice) DestroyTextureView(_ hal.TextureView) { d.viewsDestroyed++ }

func (d *simDevice) DestroyBindGroup(_ hal.BindGroup) { d.groupsDestroyed++ }

func (d *simDevice) DestroyTexture(_ hal.Texture) { d.texturesDestroyed++ }

func (d *simDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.pipelinesCreated++
	return d.Device.CreateRenderPipeline(desc)
}

func (d *simDevice) DestroyRenderPipeline(_ hal.RenderPipeline) { d.pipelinesDestroyed++ }

// simView is a texture view with a distinct address.
type simView struct {
	noop.Resource
	_ byte
}

// trackedEncoder records the calls the code under test makes.
type trackedEncoder struct {
	noop.CommandEncoder

	id       int
	encoding bool
	begins   int
	resets   int
	discards  int
	destroyed int
	barriers  []hal.TextureBarrier
	copies   []hal.BufferTextureCopy
	passes   []*recordingPass
}

func (e *trackedEncoder) BeginEncoding(_ string) error {
	if e.encoding {
		return errors.New("encoder already recording")
	}
	e.encoding = true
	e.begins++
	return nil
}

func (e *trackedEncoder) EndEncoding() (hal.CommandBuffer, error) {
	if !e.encoding {
		return nil, errors.New("encoder not recording")
	}
	e.encoding = false
	return &noop.Resource{}, nil
}

func (e *trackedEncoder) DiscardEncoding() {
	e.encoding = false
	e.discards++
}

func (e *trackedEncoder) ResetAll(_ []hal.CommandBuffer) { e.resets++ }

func (e *trackedEncoder) Destroy() { e.destroyed++ }

func (e *trackedEncoder) TransitionTextures(barriers []hal.TextureBarrier) {
	e.barriers = append(e.barriers, barriers...)
}

func (e *trackedEncoder) CopyBufferToTexture(_ hal.Buffer, _ hal.Texture, regions []hal.BufferTextureCopy) {
	e.copies = append(e.copies, regions...)
}

func (e *trackedEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	p := &recordingPass{desc: desc}
	e.passes = append(e.passes, p)
	return p
}

// recordingPass logs render pass calls as short strings.
type recordingPass struct {
	noop.RenderPassEncoder

	desc  *hal.RenderPassDescriptor
	calls []string
	ended bool
}

func (p *recordingPass) log(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *recordingPass) End() { p.ended = true }

func (p *recordingPass) SetPipeline(pipeline hal.RenderPipeline) {
	p.log("pipeline %s", pipelineName(pipeline))
}

func (p *recordingPass) SetBindGroup(index uint32, _ hal.BindGroup, _ []uint32) {
	p.log("bind %d", index)
}

func (p *recordingPass) SetVertexBuffer(slot uint32, _ hal.Buffer, offset uint64) {
	p.log("vertex %d@%d", slot, offset)
}

func (p *recordingPass) SetIndexBuffer(_ hal.Buffer, _ gputypes.IndexFormat, offset uint64) {
	p.log("index@%d", offset)
}

func (p *recordingPass) SetViewport(_, _, w, h, _, _ float32) {
	p.log("viewport %gx%g", w, h)
}

func (p *recordingPass) SetScissorRect(_, _, w, h uint32) {
	p.log("scissor %dx%d", w, h)
}

func (p *recordingPass) DrawIndexed(count, instances, first uint32, base int32, _ uint32) {
	p.log("draw %d/%d from %d base %d", count, instances, first, base)
}

// namedPipeline lets recorder tests tell pipelines apart.
type namedPipeline struct {
	noop.Resource
	name string
}

func pipelineName(p hal.RenderPipeline) string {
	if n, ok := p.(*namedPipeline); ok {
		return n.name
	}
	return "?"
}

// simSurface is a surface whose acquire results are scripted.
type simSurface struct {
	noop.Surface

	configures   int
	unconfigures int
	discards     int
	acquireErrs  []error
	config       hal.SurfaceConfiguration
}

func (s *simSurface) Configure(_ hal.Device, config *hal.SurfaceConfiguration) error {
	s.configures++
	s.config = *config
	return nil
}

func (s *simSurface) Unconfigure(_ hal.Device) { s.unconfigures++ }

func (s *simSurface) AcquireTexture(_ hal.Fence) (*hal.AcquiredSurfaceTexture, error) {
	if len(s.acquireErrs) > 0 {
		err := s.acquireErrs[0]
		s.acquireErrs = s.acquireErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &hal.AcquiredSurfaceTexture{Texture: &noop.SurfaceTexture{}}, nil
}

func (s *simSurface) DiscardTexture(_ hal.SurfaceTexture) { s.discards++ }
