package glimmer

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/glimmer/internal/gpu"
	"github.com/gogpu/glimmer/internal/memory"
	"github.com/gogpu/glimmer/internal/pool"
	"github.com/gogpu/glimmer/scene"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// Context renders scene graphs into images on one GPU queue.
//
// Every Draw records a single command buffer. Transient data (vertices,
// indices, uniforms and pixel uploads) is written to a persistently mapped
// ring buffer and reclaimed once the GPU has finished the frame that used
// it. Several frames may be in flight at once.
//
// A Context is not safe for concurrent use.
type Context struct {
	opts    options
	backend gputypes.Backend
	device  hal.Device
	queue   hal.Queue

	// owned is set when the context opened the device itself.
	owned *gpu.Device

	submissions *gpu.SubmissionQueue[memory.FrameMarker]
	heap        *gpu.UploadHeap
	views       *gpu.ViewTable
	pipelines   *gpu.Pipelines
	images      *pool.Pool[*imageEntry]
	white       *imageEntry

	pending   []pendingUpload
	graveyard []tomb
	surfaces  []*Surface

	failed error
	closed bool
}

// pendingUpload is pixel data waiting to be copied into an image by the
// next submission.
type pendingUpload struct {
	entry    *imageEntry
	pix      []byte
	stride   uint32
	rowBytes uint32
}

// tomb is a release that must wait for a submission to complete.
type tomb struct {
	after   gpu.SubmissionID
	release func()

	// surface is set for views of presented swap chain images.
	surface *Surface
}

// halProvider is implemented by device providers that expose their HAL
// objects.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewContext opens a GPU device and creates a context on it.
//
// The backend is picked from the HAL backends linked into the binary
// unless WithBackend names one. Import a backend package such as
// github.com/gogpu/wgpu/hal/allbackends to register them.
func NewContext(opts ...Option) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	dev, err := gpu.OpenDevice(gpu.DeviceConfig{
		Backend:         o.backend,
		PowerPreference: o.powerPreference,
		Debug:           o.debug,
	})
	if err != nil {
		return nil, err
	}
	c, err := newContext(dev.Device, dev.Queue, dev.Backend, dev, o)
	if err != nil {
		dev.Destroy()
		return nil, err
	}
	return c, nil
}

// NewContextFromDevice creates a context on a device owned by the caller.
// The device must outlive the context.
//
// WithBackend tells the context which backend the device belongs to so
// that shaders are compiled for it. Without it shaders are passed as WGSL.
func NewContextFromDevice(device hal.Device, queue hal.Queue, opts ...Option) (*Context, error) {
	if device == nil || queue == nil {
		return nil, errors.New("glimmer: nil device or queue")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	backend := gputypes.BackendEmpty
	if o.backend != "" {
		b, ok := gpu.BackendVariant(o.backend)
		if !ok {
			return nil, fmt.Errorf("%w: %q", gpu.ErrNoBackend, o.backend)
		}
		backend = b
	}
	return newContext(device, queue, backend, nil, o)
}

// NewContextFromProvider creates a context on the device of a host
// application, such as a gogpu window. The provider must expose its HAL
// device and queue through HalDevice() and HalQueue().
//
// Surfaces default to the provider's surface format.
func NewContextFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Context, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrUnsupportedProvider, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrUnsupportedProvider, hp.HalQueue())
	}
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithSurfaceFormat(f)}, opts...)
	}
	return NewContextFromDevice(device, queue, opts...)
}

func newContext(device hal.Device, queue hal.Queue, backend gputypes.Backend, owned *gpu.Device, o options) (*Context, error) {
	heap, err := gpu.NewUploadHeap(device, o.uploadHeapSize)
	if err != nil {
		return nil, err
	}
	pipelines, err := gpu.NewPipelines(device, backend)
	if err != nil {
		heap.Destroy()
		return nil, err
	}
	c := &Context{
		opts:      o,
		backend:   backend,
		device:    device,
		queue:     queue,
		owned:     owned,
		heap:      heap,
		pipelines: pipelines,
		views:     gpu.NewViewTable(device, o.label+"_images", o.maxTextures),
		images:    pool.New[*imageEntry](),
	}
	c.submissions = gpu.NewSubmissionQueue(device, queue, o.label, func(m memory.FrameMarker) {
		c.heap.Ring().FreeFrame(m)
	})

	Logger().Info("glimmer: context created",
		"backend", gpu.BackendName(backend),
		"upload_heap", heap.Size(),
		"max_textures", o.maxTextures)
	return c, nil
}

// Backend returns the backend the context renders with.
func (c *Context) Backend() gputypes.Backend { return c.backend }

// HeapUsed returns the bytes of the upload heap held by frames in flight.
func (c *Context) HeapUsed() uint64 { return c.heap.Ring().Used() }

// FramesInFlight returns the number of submitted frames not yet retired.
func (c *Context) FramesInFlight() int { return c.submissions.Outstanding() }

// Images returns the number of live images, including acquired surface
// images.
func (c *Context) Images() int {
	n := c.images.Len()
	if c.white != nil {
		n--
	}
	return n
}

// Err returns the failure that made the context unusable, if any.
func (c *Context) Err() error { return c.failed }

// CreateImage creates an uninitialized image that can be drawn into and
// sampled.
func (c *Context) CreateImage(width, height int, format Format, space ColorSpace) (Image, error) {
	if err := c.usable(); err != nil {
		return Image{}, err
	}
	if !format.valid() {
		return Image{}, fmt.Errorf("%w: unknown format %v", ErrInvalidImage, format)
	}
	if width <= 0 || height <= 0 {
		return Image{}, fmt.Errorf("%w: %dx%d", gpu.ErrInvalidTextureSize, width, height)
	}

	if c.views.Available() == 0 {
		c.collect()
	}
	if c.views.Available() == 0 {
		return Image{}, fmt.Errorf("create image: %w: all %d image slots in use",
			ErrInsufficientCapacity, c.views.Capacity())
	}

	label := c.opts.label + "_image_" + uuid.NewString()
	tex, err := gpu.CreateTexture(c.device, gpu.TextureConfig{
		Width:  uint32(width),  //nolint:gosec // G115: checked positive
		Height: uint32(height), //nolint:gosec // G115: checked positive
		Format: format.textureFormat(space),
		Label:  label,
	})
	if err != nil {
		return Image{}, err
	}
	// The sampling bind group is created when a draw first samples the
	// image.
	slot, err := c.views.Insert(tex.View, nil)
	if err != nil {
		tex.Destroy(c.device)
		return Image{}, err
	}

	e := &imageEntry{tex: tex, label: label, slot: slot, sampled: true}
	Logger().Debug("glimmer: image created", "label", label, "width", width, "height", height, "format", format)
	return c.wrap(e, format), nil
}

// UploadImage creates an image holding the pixels of img. The pixels are
// converted to 8-bit sRGB RGBA and copied to the GPU by the next Draw or
// Flush.
func (c *Context) UploadImage(img image.Image) (Image, error) {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return c.UploadPixels(PixelBuffer{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Stride:     rgba.Stride,
		Format:     FormatRGBA8,
		ColorSpace: ColorSpaceSRGB,
		Pix:        rgba.Pix,
	})
}

// UploadPixels creates an image from raw pixel data. The data is copied,
// so buf may be reused as soon as UploadPixels returns.
func (c *Context) UploadPixels(buf PixelBuffer) (Image, error) {
	if err := buf.validate(); err != nil {
		return Image{}, err
	}
	if err := c.checkUploadSize(buf); err != nil {
		return Image{}, err
	}
	img, err := c.CreateImage(buf.Width, buf.Height, buf.Format, buf.ColorSpace)
	if err != nil {
		return Image{}, err
	}
	e, _ := c.images.Get(img.handle)
	c.queueUpload(e, buf)
	return img, nil
}

// WritePixels replaces the contents of img. The copy is ordered after
// every frame already submitted, so frames in flight still see the old
// contents.
func (c *Context) WritePixels(img Image, buf PixelBuffer) error {
	e, err := c.entry(img)
	if err != nil {
		return err
	}
	if e.swap != nil {
		return fmt.Errorf("%w: surface images cannot be written", ErrInvalidImage)
	}
	if err := buf.validate(); err != nil {
		return err
	}
	if buf.Width != int(e.tex.Width) || buf.Height != int(e.tex.Height) || buf.Format != img.format {
		return fmt.Errorf("%w: %dx%d %v into %v", gpu.ErrTextureSizeMismatch, buf.Width, buf.Height, buf.Format, img)
	}
	if err := c.checkUploadSize(buf); err != nil {
		return err
	}
	c.queueUpload(e, buf)
	return nil
}

// checkUploadSize rejects uploads that could never fit the upload heap.
func (c *Context) checkUploadSize(buf PixelBuffer) error {
	pitch := (uint64(buf.rowBytes()) + gpu.CopyPitchAlignment - 1) &^ (gpu.CopyPitchAlignment - 1)
	need := pitch*uint64(buf.Height) + gpu.CopyOffsetAlignment
	if need > c.heap.Size() {
		return fmt.Errorf("%w: %dx%d %v image needs %d bytes of a %d byte upload heap",
			ErrInsufficientCapacity, buf.Width, buf.Height, buf.Format, need, c.heap.Size())
	}
	return nil
}

func (c *Context) queueUpload(e *imageEntry, buf PixelBuffer) {
	c.pending = append(c.pending, pendingUpload{
		entry:    e,
		pix:      slices.Clone(buf.Pix),
		stride:   uint32(buf.stride()),   //nolint:gosec // G115: validated
		rowBytes: uint32(buf.rowBytes()), //nolint:gosec // G115: validated
	})
}

// DestroyImage releases img. The texture is destroyed once every frame
// that used it has completed. Surface images are released by Present.
func (c *Context) DestroyImage(img Image) error {
	e, err := c.entry(img)
	if err != nil {
		return err
	}
	if e.swap != nil {
		return fmt.Errorf("%w: surface images are released by Present", ErrInvalidImage)
	}
	c.images.Remove(img.handle)
	c.pending = slices.DeleteFunc(c.pending, func(p pendingUpload) bool { return p.entry == e })
	c.bury(e.lastUse, nil, func() { c.releaseEntry(e) })
	return nil
}

// Draw renders graph into target, clearing it first. The work is submitted
// before Draw returns but runs asynchronously on the GPU.
//
// When the upload heap or a resource table is full the frame is skipped
// and the returned error wraps ErrFrameDropped; drawing may succeed again
// once older frames complete.
func (c *Context) Draw(target Image, graph *scene.Graph) error {
	return c.draw(target, graph, false)
}

// DrawOver renders graph into target on top of its current contents.
func (c *Context) DrawOver(target Image, graph *scene.Graph) error {
	return c.draw(target, graph, true)
}

func (c *Context) draw(target Image, graph *scene.Graph, load bool) error {
	e, err := c.entry(target)
	if err != nil {
		return err
	}
	if graph == nil {
		graph = scene.New()
	}
	if err := c.ensureWhite(); err != nil {
		return err
	}
	return c.submit(e, graph, load)
}

// ensureWhite creates the 1x1 white image sampled by untextured polygon
// draws.
func (c *Context) ensureWhite() error {
	if c.white != nil {
		return nil
	}
	img, err := c.UploadPixels(PixelBuffer{
		Width:      1,
		Height:     1,
		Format:     FormatRGBA8,
		ColorSpace: ColorSpaceLinear,
		Pix:        []byte{0xff, 0xff, 0xff, 0xff},
	})
	if err != nil {
		return fmt.Errorf("create white image: %w", err)
	}
	c.white, _ = c.images.Get(img.handle)
	return nil
}

// stagedUpload is a pending upload that has been written to the heap.
type stagedUpload struct {
	entry *imageEntry
	src   memory.Allocation
	pitch uint32
}

// submit records the pending uploads and, when target is set, one render
// pass drawing graph, and submits them as one frame.
//
// Uploads are staged oldest first until one does not fit; the rest stay
// pending for a later frame. If target or the white image is among them,
// or the graph does not fit, the draw is dropped but the staged uploads
// are still submitted so the next frame has less to carry.
func (c *Context) submit(target *imageEntry, graph *scene.Graph, load bool) error {
	rec, marker, recycled, err := c.submissions.Record()
	if recycled {
		c.heap.Ring().FreeFrame(marker)
	}
	if err != nil {
		return c.fail(err)
	}
	c.collect()

	// Everything that can fail for lack of space is done before the first
	// command is recorded, so a dropped draw leaves no trace.
	frame := c.heap.Ring().BeginFrame()
	uploads, full := c.stageUploads(frame)
	if full != nil && !isCapacity(full) {
		frame.Discard()
		c.submissions.Discard(rec)
		return full
	}

	var (
		bufs     gpu.FrameBuffers
		set      *gpu.PipelineSet
		viewport hal.BindGroup
		white    hal.BindGroup
		dropped  error
	)
	switch {
	case target == nil:
		if len(uploads) == 0 {
			dropped = full
		}
	case c.waitsForUpload(target, len(uploads)):
		dropped = full
	default:
		bufs, set, viewport, err = c.stageGraph(frame, target, graph)
		if err == nil {
			white, err = c.views.EnsureBindGroup(c.white.slot, c.pipelines.TextureBindGroup)
			if err != nil {
				c.device.DestroyBindGroup(viewport)
			}
		}
		if err != nil && !isCapacity(err) {
			frame.Discard()
			c.submissions.Discard(rec)
			return err
		}
		dropped = err
	}
	if dropped != nil {
		Logger().Warn("glimmer: frame dropped",
			"err", dropped,
			"uploads_submitted", len(uploads),
			"uploads_pending", len(c.pending)-len(uploads),
			"heap_used", c.heap.Ring().Used(),
			"in_flight", c.submissions.Outstanding())
		if len(uploads) == 0 {
			frame.Discard()
			c.submissions.Discard(rec)
			return fmt.Errorf("%w: %w", ErrFrameDropped, dropped)
		}
		target = nil
	}

	enc := rec.Encoder
	for _, u := range uploads {
		gpu.RecordTextureUpload(enc, u.entry.tex, c.heap.Buffer(), u.src, u.pitch)
	}
	if target != nil {
		rec.Defer(func() { c.device.DestroyBindGroup(viewport) })
		target.tex.Transition(enc, gputypes.TextureUsageRenderAttachment)
		gpu.RecordGraph(enc, set, graph, bufs, gpu.FrameParams{
			Target: gpu.RenderTarget{
				View:   target.tex.View,
				Width:  target.tex.Width,
				Height: target.tex.Height,
			},
			Clear:    gpuColor(c.opts.clearColor),
			Load:     load,
			Viewport: viewport,
			Texture:  white,
		})
	}

	id, err := c.submissions.Submit(rec, frame.Finish())
	if err != nil {
		return c.fail(err)
	}

	for _, u := range uploads {
		u.entry.lastUse = id
	}
	c.pending = slices.Delete(c.pending, 0, len(uploads))
	if target != nil {
		target.lastUse = id
		c.white.lastUse = id
	}
	if dropped != nil {
		return fmt.Errorf("%w: %w", ErrFrameDropped, dropped)
	}
	return nil
}

// stageUploads writes pending uploads into frame in order and stops at the
// first one that does not fit. The error is the reason staging stopped.
func (c *Context) stageUploads(frame *memory.FrameAllocator) ([]stagedUpload, error) {
	if len(c.pending) == 0 {
		return nil, nil
	}
	staged := make([]stagedUpload, 0, len(c.pending))
	for _, p := range c.pending {
		src, pitch, err := gpu.UploadRows(frame, p.pix, p.stride, p.rowBytes, p.entry.tex.Height)
		if err != nil {
			return staged, fmt.Errorf("%s: %w", p.entry.label, err)
		}
		staged = append(staged, stagedUpload{entry: p.entry, src: src, pitch: pitch})
	}
	return staged, nil
}

// waitsForUpload reports whether target or the white image has an upload
// at or after pending index from.
func (c *Context) waitsForUpload(target *imageEntry, from int) bool {
	for _, p := range c.pending[from:] {
		if p.entry == target || p.entry == c.white {
			return true
		}
	}
	return false
}

func isCapacity(err error) bool {
	return errors.Is(err, ErrOutOfMemory) || errors.Is(err, ErrInsufficientCapacity)
}

func (c *Context) stageGraph(frame *memory.FrameAllocator, target *imageEntry, graph *scene.Graph) (gpu.FrameBuffers, *gpu.PipelineSet, hal.BindGroup, error) {
	bufs, err := gpu.UploadGraph(frame, graph)
	if err != nil {
		return gpu.FrameBuffers{}, nil, nil, err
	}
	bufs.Buffer = c.heap.Buffer()
	vp, err := gpu.UploadViewport(frame, target.tex.Width, target.tex.Height)
	if err != nil {
		return gpu.FrameBuffers{}, nil, nil, err
	}
	set, err := c.pipelines.ForFormat(target.tex.Format)
	if err != nil {
		return gpu.FrameBuffers{}, nil, nil, err
	}
	viewport, err := c.pipelines.ViewportBindGroup(c.heap.Buffer(), vp.HeapOffset)
	if err != nil {
		return gpu.FrameBuffers{}, nil, nil, err
	}
	return bufs, set, viewport, nil
}

// Flush submits pending uploads, waits for the GPU to finish all work and
// releases everything that was waiting on it.
func (c *Context) Flush() error {
	if err := c.usable(); err != nil {
		return err
	}
	// Uploads that do not fit next to the work in flight go out in later
	// submissions; waiting empties the heap, after which at least one fits.
	waited := false
	for len(c.pending) > 0 {
		err := c.submit(nil, nil, false)
		switch {
		case err == nil:
			waited = false
			continue
		case !errors.Is(err, ErrFrameDropped) || waited:
			return err
		}
		if err := c.submissions.Flush(); err != nil {
			return c.fail(err)
		}
		c.collect()
		waited = true
	}
	if err := c.submissions.Flush(); err != nil {
		return c.fail(err)
	}
	c.collect()
	return nil
}

// Close waits for the GPU, destroys surfaces and images and releases the
// device if the context opened it. Close is idempotent.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	var err error
	if c.failed == nil {
		err = c.Flush()
	}

	for _, s := range slices.Clone(c.surfaces) {
		s.destroy()
	}
	for _, t := range c.graveyard {
		t.release()
	}
	c.graveyard = nil
	for _, e := range c.images.All() {
		c.releaseEntry(*e)
	}
	c.images.Clear()
	c.pending = nil
	c.white = nil

	c.submissions.Destroy()
	c.views.Destroy()
	c.pipelines.Destroy()
	c.heap.Destroy()
	if c.owned != nil {
		c.owned.Destroy()
	}
	c.closed = true
	Logger().Debug("glimmer: context closed", "label", c.opts.label)
	return err
}

// entry resolves img.
func (c *Context) entry(img Image) (*imageEntry, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if img.ctx != c {
		return nil, fmt.Errorf("%w: %v belongs to another context", ErrInvalidImage, img)
	}
	e, ok := c.images.Get(img.handle)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, img)
	}
	return e, nil
}

func (c *Context) wrap(e *imageEntry, format Format) Image {
	return Image{
		ctx:    c,
		handle: c.images.Insert(e),
		width:  int(e.tex.Width),
		height: int(e.tex.Height),
		format: format,
	}
}

// releaseEntry destroys the GPU objects of a sampled image.
func (c *Context) releaseEntry(e *imageEntry) {
	if e.swap != nil {
		return
	}
	if e.sampled {
		// The view table owns the view.
		c.views.Remove(e.slot)
		e.tex.View = nil
		e.sampled = false
	}
	e.tex.Destroy(c.device)
}

// bury schedules release to run once submission after has completed.
func (c *Context) bury(after gpu.SubmissionID, s *Surface, release func()) {
	if c.submissions.IsComplete(after) {
		release()
		return
	}
	c.graveyard = append(c.graveyard, tomb{after: after, release: release, surface: s})
}

// collect retires completed submissions and runs the releases that were
// waiting on them.
func (c *Context) collect() {
	c.submissions.ReleaseCompleted()
	live := c.graveyard[:0]
	for _, t := range c.graveyard {
		if c.submissions.IsComplete(t.after) {
			t.release()
			continue
		}
		live = append(live, t)
	}
	clear(c.graveyard[len(live):])
	c.graveyard = live
}

func (c *Context) usable() error {
	if c.closed {
		return ErrContextClosed
	}
	return c.failed
}

// fail records a device failure. Other errors pass through.
func (c *Context) fail(err error) error {
	if errors.Is(err, ErrDeviceLost) && c.failed == nil {
		c.failed = err
		Logger().Warn("glimmer: context failed", "err", err)
	}
	return err
}

func gpuColor(c scene.Color) gputypes.Color {
	return gputypes.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)}
}
