package glimmer

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// lagQueue is a noop queue whose fence only advances when the test says
// so, which keeps frames in flight.
type lagQueue struct {
	hal.Queue

	submitted uint64
	completed uint64
	presents  int
}

func (q *lagQueue) Submit(_ []hal.CommandBuffer) (uint64, error) {
	q.submitted++
	return q.submitted, nil
}

func (q *lagQueue) PollCompleted() uint64 { return q.completed }

func (q *lagQueue) Present(_ hal.Surface, _ hal.SurfaceTexture, _ []image.Rectangle) error {
	q.presents++
	return nil
}

func (q *lagQueue) completeAll() { q.completed = q.submitted }

// lagDevice counts encoders, bind groups and destroyed textures.
type lagDevice struct {
	hal.Device

	queue    *lagQueue
	encoders []*countingEncoder

	waitIdles         int
	texturesDestroyed int
	bindGroups        int
}

func (d *lagDevice) CreateCommandEncoder(_ *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc := &countingEncoder{id: len(d.encoders) + 1}
	d.encoders = append(d.encoders, enc)
	return enc, nil
}

func (d *lagDevice) WaitIdle() error {
	d.waitIdles++
	d.queue.completeAll()
	return nil
}

func (d *lagDevice) DestroyTexture(_ hal.Texture) { d.texturesDestroyed++ }

func (d *lagDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.bindGroups++
	return d.Device.CreateBindGroup(desc)
}

// countingEncoder is a noop encoder with an identity that records copies
// and render passes.
type countingEncoder struct {
	noop.CommandEncoder

	id     int
	copies []hal.BufferTextureCopy
	passes []*hal.RenderPassDescriptor
}

func (e *countingEncoder) CopyBufferToTexture(_ hal.Buffer, _ hal.Texture, regions []hal.BufferTextureCopy) {
	e.copies = append(e.copies, regions...)
}

func (e *countingEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	e.passes = append(e.passes, desc)
	return &noop.RenderPassEncoder{}
}

// scriptedSurface is a surface that counts configuration calls.
type scriptedSurface struct {
	noop.Surface

	configures   int
	unconfigures int
	discards     int
	config       hal.SurfaceConfiguration
}

func (s *scriptedSurface) Configure(_ hal.Device, config *hal.SurfaceConfiguration) error {
	s.configures++
	s.config = *config
	return nil
}

func (s *scriptedSurface) Unconfigure(_ hal.Device) { s.unconfigures++ }

func (s *scriptedSurface) AcquireTexture(_ hal.Fence) (*hal.AcquiredSurfaceTexture, error) {
	return &hal.AcquiredSurfaceTexture{Texture: &noop.SurfaceTexture{}}, nil
}

func (s *scriptedSurface) DiscardTexture(_ hal.SurfaceTexture) { s.discards++ }

// newLagContext creates a context on a noop device with a lagging fence.
func newLagContext(t *testing.T, opts ...Option) (*Context, *lagDevice, *lagQueue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}

	q := &lagQueue{Queue: open.Queue}
	d := &lagDevice{Device: open.Device, queue: q}
	ctx, err := NewContextFromDevice(d, q, append([]Option{WithBackend("noop")}, opts...)...)
	if err != nil {
		open.Device.Destroy()
		instance.Destroy()
		t.Fatalf("NewContextFromDevice: %v", err)
	}
	t.Cleanup(func() {
		if err := ctx.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
		open.Device.Destroy()
		instance.Destroy()
	})
	return ctx, d, q
}
