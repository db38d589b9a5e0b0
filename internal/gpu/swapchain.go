package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Swap chain defaults.
const (
	// SwapchainBufferCount is the number of images the presentation engine
	// cycles through.
	SwapchainBufferCount = 2

	// DefaultSurfaceFormat is the format surfaces are configured with
	// unless another one is requested.
	DefaultSurfaceFormat = gputypes.TextureFormatRGBA16Float

	// acquireRetries bounds retries of a not-ready acquire.
	acquireRetries = 3
)

// Swap chain errors.
var (
	ErrSurfaceNotConfigured = errors.New("glimmer: surface is not configured")
	ErrImageAlreadyAcquired = errors.New("glimmer: surface image already acquired")
	ErrNoImageAcquired      = errors.New("glimmer: no surface image acquired")
)

// SwapchainState is the lifecycle state of a Swapchain.
type SwapchainState uint8

const (
	SwapchainUnconfigured SwapchainState = iota
	SwapchainConfigured
	SwapchainAcquired
)

func (s SwapchainState) String() string {
	switch s {
	case SwapchainUnconfigured:
		return "Unconfigured"
	case SwapchainConfigured:
		return "Configured"
	case SwapchainAcquired:
		return "Acquired"
	default:
		return fmt.Sprintf("SwapchainState(%d)", s)
	}
}

// SwapchainConfig describes how a surface is configured.
type SwapchainConfig struct {
	Width       uint32
	Height      uint32
	Format      gputypes.TextureFormat
	PresentMode gputypes.PresentMode
	AlphaMode   gputypes.CompositeAlphaMode
}

func (c *SwapchainConfig) defaults() {
	if c.Format == gputypes.TextureFormatUndefined {
		c.Format = DefaultSurfaceFormat
	}
	if c.PresentMode == 0 {
		c.PresentMode = gputypes.PresentModeFifo
	}
	if c.AlphaMode == 0 {
		c.AlphaMode = gputypes.CompositeAlphaModeOpaque
	}
}

// SwapImage is an image acquired from a swap chain. Its render target view
// lives in a slot of the swap chain's view table until Release.
type SwapImage struct {
	Texture    *Texture
	Slot       ViewSlot
	Suboptimal bool
}

// Swapchain wraps a hal.Surface.
//
// State moves Unconfigured -> Configured on Configure, Configured ->
// Acquired on Acquire, and back to Configured on Present or Discard.
// Render target views are kept in a view table with room for twice the
// buffer count, so views of presented images can outlive the frame that
// drew into them.
type Swapchain struct {
	device  hal.Device
	queue   hal.Queue
	surface hal.Surface
	label   string

	config  SwapchainConfig
	state   SwapchainState
	views   *ViewTable
	current *SwapImage
	stale   bool
}

// NewSwapchain wraps surface. The surface is not configured yet.
func NewSwapchain(device hal.Device, queue hal.Queue, surface hal.Surface, label string) *Swapchain {
	return &Swapchain{
		device:  device,
		queue:   queue,
		surface: surface,
		label:   label,
		views:   NewViewTable(device, label+"_rtv", 2*SwapchainBufferCount),
	}
}

// State returns the lifecycle state.
func (s *Swapchain) State() SwapchainState { return s.state }

// Config returns the active configuration.
func (s *Swapchain) Config() SwapchainConfig { return s.config }

// Available returns the number of free render target view slots.
func (s *Swapchain) Available() uint32 { return s.views.Available() }

// Configure (re)configures the surface. An acquired image is discarded
// first.
func (s *Swapchain) Configure(config SwapchainConfig) error {
	if config.Width == 0 || config.Height == 0 {
		return fmt.Errorf("configure %s: %w", s.label, hal.ErrZeroArea)
	}
	config.defaults()
	if s.state == SwapchainAcquired {
		s.Discard()
	}

	err := s.surface.Configure(s.device, &hal.SurfaceConfiguration{
		Width:       config.Width,
		Height:      config.Height,
		Format:      config.Format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: config.PresentMode,
		AlphaMode:   config.AlphaMode,
	})
	if err != nil {
		return fmt.Errorf("configure %s: %w", s.label, err)
	}
	s.config = config
	s.state = SwapchainConfigured
	s.stale = false
	slogger().Debug("gpu: surface configured",
		"surface", s.label, "width", config.Width, "height", config.Height, "format", config.Format)
	return nil
}

// Acquire returns the next image to render into. It may block until the
// presentation engine releases an image. A lost or outdated surface is
// reconfigured once with the current size before giving up.
func (s *Swapchain) Acquire() (*SwapImage, error) {
	switch s.state {
	case SwapchainUnconfigured:
		return nil, ErrSurfaceNotConfigured
	case SwapchainAcquired:
		return nil, ErrImageAlreadyAcquired
	}
	if s.stale {
		if err := s.Configure(s.config); err != nil {
			return nil, err
		}
	}

	acquired, err := s.acquire()
	if errors.Is(err, hal.ErrSurfaceOutdated) || errors.Is(err, hal.ErrSurfaceLost) {
		slogger().Warn("gpu: surface out of date, reconfiguring", "surface", s.label, "err", err)
		if err := s.Configure(s.config); err != nil {
			return nil, err
		}
		acquired, err = s.acquire()
	}
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", s.label, err)
	}

	tex, err := WrapSurfaceTexture(s.device, acquired.Texture, s.config.Width, s.config.Height, s.config.Format, s.label)
	if err != nil {
		s.surface.DiscardTexture(acquired.Texture)
		return nil, err
	}
	tex.Usage = gputypes.TextureUsageRenderAttachment

	slot, err := s.views.Insert(tex.View, nil)
	if err != nil {
		s.device.DestroyTextureView(tex.View)
		s.surface.DiscardTexture(acquired.Texture)
		return nil, err
	}

	img := &SwapImage{Texture: tex, Slot: slot, Suboptimal: acquired.Suboptimal}
	if acquired.Suboptimal {
		s.stale = true
	}
	s.current = img
	s.state = SwapchainAcquired
	return img, nil
}

func (s *Swapchain) acquire() (*hal.AcquiredSurfaceTexture, error) {
	var err error
	for range acquireRetries {
		var acquired *hal.AcquiredSurfaceTexture
		acquired, err = s.surface.AcquireTexture(nil)
		if err == nil {
			return acquired, nil
		}
		if !errors.Is(err, hal.ErrNotReady) && !errors.Is(err, hal.ErrTimeout) {
			return nil, err
		}
	}
	return nil, err
}

// Current returns the acquired image, or nil.
func (s *Swapchain) Current() *SwapImage { return s.current }

// Present queues the acquired image for presentation and returns it. The
// caller releases its view slot once the GPU has finished the frame.
//
// An outdated surface is not an error here: the swap chain is reconfigured
// on the next Acquire.
func (s *Swapchain) Present() (*SwapImage, error) {
	if s.state != SwapchainAcquired {
		return nil, ErrNoImageAcquired
	}
	img := s.current
	s.current = nil
	s.state = SwapchainConfigured

	err := s.queue.Present(s.surface, img.Texture.Raw, nil)
	switch {
	case err == nil:
	case errors.Is(err, hal.ErrSurfaceOutdated) || errors.Is(err, hal.ErrSurfaceLost):
		slogger().Warn("gpu: present on out of date surface", "surface", s.label, "err", err)
		s.stale = true
	default:
		return img, fmt.Errorf("present %s: %w", s.label, err)
	}
	return img, nil
}

// Discard gives the acquired image back without presenting it and frees
// its view. Nothing may have been submitted against it.
func (s *Swapchain) Discard() {
	if s.state != SwapchainAcquired {
		return
	}
	img := s.current
	s.current = nil
	s.state = SwapchainConfigured
	s.surface.DiscardTexture(img.Texture.Raw)
	s.Release(img)
}

// Release frees the view slot of a presented or discarded image.
func (s *Swapchain) Release(img *SwapImage) {
	if img == nil || img.Texture.View == nil {
		return
	}
	s.views.Remove(img.Slot)
	img.Texture.View = nil
	img.Texture.Raw = nil
}

// Resize reconfigures the surface to width x height. The GPU must be idle:
// every outstanding view is destroyed.
func (s *Swapchain) Resize(width, height uint32) error {
	if s.state == SwapchainAcquired {
		s.Discard()
	}
	s.views.Destroy()
	config := s.config
	config.Width, config.Height = width, height
	return s.Configure(config)
}

// Destroy releases every view and unconfigures the surface. The surface
// itself belongs to the caller.
func (s *Swapchain) Destroy() {
	if s.state == SwapchainAcquired {
		s.Discard()
	}
	s.views.Destroy()
	if s.state != SwapchainUnconfigured {
		s.surface.Unconfigure(s.device)
		s.state = SwapchainUnconfigured
	}
}
