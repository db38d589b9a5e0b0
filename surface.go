package glimmer

import (
	"errors"
	"fmt"

	"github.com/gogpu/glimmer/internal/gpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
	"github.com/google/uuid"
)

// ErrNoWindow is returned by CreateSurface without a window provider.
var ErrNoWindow = errors.New("glimmer: surface needs a window provider")

// Surface presents images to a window.
//
// The window itself is created and driven by the host application; the
// surface only asks it for its size. A surface refers to its context but
// does not own it.
type Surface struct {
	ctx       *Context
	window    gpucontext.WindowProvider
	swapchain *gpu.Swapchain
	label     string
	current   Image
}

// CreateSurface configures surface at the window's current size. The
// hal.Surface belongs to the caller and must outlive the returned Surface.
func (c *Context) CreateSurface(surface hal.Surface, window gpucontext.WindowProvider) (*Surface, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if surface == nil {
		return nil, errors.New("glimmer: nil surface")
	}
	if window == nil {
		return nil, ErrNoWindow
	}

	label := c.opts.label + "_surface_" + uuid.NewString()
	s := &Surface{
		ctx:       c,
		window:    window,
		swapchain: gpu.NewSwapchain(c.device, c.queue, surface, label),
		label:     label,
	}
	w, h := s.size()
	err := s.swapchain.Configure(gpu.SwapchainConfig{
		Width:       w,
		Height:      h,
		Format:      c.opts.surfaceFormat,
		PresentMode: c.opts.presentMode,
	})
	if err != nil {
		return nil, err
	}
	c.surfaces = append(c.surfaces, s)
	return s, nil
}

// Size returns the configured size in pixels.
func (s *Surface) Size() (width, height int) {
	cfg := s.swapchain.Config()
	return int(cfg.Width), int(cfg.Height)
}

// size returns the window size in physical pixels.
func (s *Surface) size() (uint32, uint32) {
	w, h := s.window.Size()
	if scale := s.window.ScaleFactor(); scale > 0 && scale != 1 {
		w = int(float64(w)*scale + 0.5)
		h = int(float64(h)*scale + 0.5)
	}
	return uint32(max(w, 0)), uint32(max(h, 0)) //nolint:gosec // G115: clamped
}

// GetNextImage acquires the image to draw the next frame into. It blocks
// while every swap chain image is still in use by the GPU.
//
// The returned image is valid until Present. Calling GetNextImage twice
// without presenting returns the same image.
func (c *Context) GetNextImage(s *Surface) (Image, error) {
	if err := c.checkSurface(s); err != nil {
		return Image{}, err
	}
	if !s.current.IsZero() {
		return s.current, nil
	}

	c.collect()
	if s.swapchain.Available() == 0 {
		if err := c.waitOldestPresent(s); err != nil {
			return Image{}, err
		}
	}

	sw, err := s.swapchain.Acquire()
	if err != nil {
		return Image{}, err
	}
	format, _ := formatOf(sw.Texture.Format)
	e := &imageEntry{
		tex:     sw.Texture,
		label:   s.label,
		swap:    sw,
		surface: s,
	}
	s.current = c.wrap(e, format)
	return s.current, nil
}

// waitOldestPresent blocks until the oldest presented image of s is free
// and releases it.
func (c *Context) waitOldestPresent(s *Surface) error {
	var oldest gpu.SubmissionID
	found := false
	for _, t := range c.graveyard {
		if t.surface == s && (!found || t.after < oldest) {
			oldest, found = t.after, true
		}
	}
	if !found {
		return fmt.Errorf("%s: %w: no image in flight to wait for", s.label, ErrInsufficientCapacity)
	}
	if err := c.submissions.WaitUntil(oldest); err != nil {
		return c.fail(err)
	}
	c.collect()
	return nil
}

// Present queues the acquired image for display. Its view is released
// once the frames that drew into it have completed.
func (c *Context) Present(s *Surface) error {
	if err := c.checkSurface(s); err != nil {
		return err
	}
	if s.current.IsZero() {
		return gpu.ErrNoImageAcquired
	}
	e, ok := c.images.Remove(s.current.handle)
	s.current = Image{}
	if !ok {
		return gpu.ErrNoImageAcquired
	}

	sw, err := s.swapchain.Present()
	if sw != nil {
		c.bury(e.lastUse, s, func() { s.swapchain.Release(sw) })
	}
	if err != nil {
		return c.fail(err)
	}
	return nil
}

// Resize reconfigures s to the window's current size. It waits for the GPU
// to finish every frame first. An acquired image is dropped.
func (c *Context) Resize(s *Surface) error {
	if err := c.checkSurface(s); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return err
	}
	c.dropCurrent(s)
	w, h := s.size()
	if cfg := s.swapchain.Config(); w == cfg.Width && h == cfg.Height {
		return nil
	}
	Logger().Debug("glimmer: surface resized", "surface", s.label, "width", w, "height", h)
	return s.swapchain.Resize(w, h)
}

// DestroySurface waits for the GPU and unconfigures s. The hal.Surface is
// left to the caller.
func (c *Context) DestroySurface(s *Surface) error {
	if err := c.checkSurface(s); err != nil {
		return err
	}
	err := c.Flush()
	s.destroy()
	return err
}

// destroy releases the swap chain of s. The GPU must be done with it.
func (s *Surface) destroy() {
	c := s.ctx
	c.dropCurrent(s)
	c.graveyard = deleteTombs(c.graveyard, s)
	s.swapchain.Destroy()
	for i, other := range c.surfaces {
		if other == s {
			c.surfaces = append(c.surfaces[:i], c.surfaces[i+1:]...)
			break
		}
	}
	s.ctx = nil
}

// dropCurrent discards the acquired image of s without presenting it.
func (c *Context) dropCurrent(s *Surface) {
	if s.current.IsZero() {
		return
	}
	c.images.Remove(s.current.handle)
	s.current = Image{}
	s.swapchain.Discard()
}

// deleteTombs runs and removes the tombs of s. Only valid once the GPU is
// idle.
func deleteTombs(tombs []tomb, s *Surface) []tomb {
	live := tombs[:0]
	for _, t := range tombs {
		if t.surface == s {
			t.release()
			continue
		}
		live = append(live, t)
	}
	clear(tombs[len(live):])
	return live
}

func (c *Context) checkSurface(s *Surface) error {
	if err := c.usable(); err != nil {
		return err
	}
	if s == nil || s.ctx != c {
		return errors.New("glimmer: surface does not belong to this context")
	}
	return nil
}
