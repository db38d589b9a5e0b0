package glimmer

import (
	"errors"
	"testing"

	"github.com/gogpu/glimmer/internal/gpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// resizableWindow is a window whose size tests can change.
type resizableWindow struct {
	w, h  int
	scale float64
}

func (w *resizableWindow) Size() (int, int)     { return w.w, w.h }
func (w *resizableWindow) ScaleFactor() float64 { return w.scale }
func (w *resizableWindow) RequestRedraw()       {}

var _ gpucontext.WindowProvider = (*resizableWindow)(nil)

func TestCreateSurface(t *testing.T) {
	ctx, _, _ := newLagContext(t, WithPresentMode(gputypes.PresentModeMailbox))
	raw := &scriptedSurface{}

	s, err := ctx.CreateSurface(raw, gpucontext.NullWindowProvider{W: 400, H: 300, SF: 2})
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	if raw.configures != 1 {
		t.Errorf("configures = %d, want 1", raw.configures)
	}
	if raw.config.Width != 800 || raw.config.Height != 600 {
		t.Errorf("configured %dx%d, want physical 800x600", raw.config.Width, raw.config.Height)
	}
	if raw.config.Format != gputypes.TextureFormatRGBA16Float {
		t.Errorf("format = %v, want RGBA16Float", raw.config.Format)
	}
	if raw.config.PresentMode != gputypes.PresentModeMailbox {
		t.Errorf("present mode = %v, want Mailbox", raw.config.PresentMode)
	}
	if w, h := s.Size(); w != 800 || h != 600 {
		t.Errorf("Size = %dx%d", w, h)
	}

	if _, err := ctx.CreateSurface(raw, nil); !errors.Is(err, ErrNoWindow) {
		t.Errorf("nil window: err = %v, want ErrNoWindow", err)
	}
	if _, err := ctx.CreateSurface(&scriptedSurface{}, gpucontext.NullWindowProvider{}); err == nil {
		t.Error("zero-sized window accepted")
	}
}

func TestSurfaceFrame(t *testing.T) {
	ctx, _, q := newLagContext(t)
	s, err := ctx.CreateSurface(&scriptedSurface{}, gpucontext.NullWindowProvider{W: 320, H: 240})
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}

	img, err := ctx.GetNextImage(s)
	if err != nil {
		t.Fatalf("GetNextImage: %v", err)
	}
	if img.Width() != 320 || img.Height() != 240 || img.Format() != FormatRGBA16Float {
		t.Errorf("image = %v", img)
	}
	again, err := ctx.GetNextImage(s)
	if err != nil || again != img {
		t.Errorf("second GetNextImage = %v, %v; want the same image", again, err)
	}
	if err := ctx.DestroyImage(img); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("DestroyImage on surface image: err = %v, want ErrInvalidImage", err)
	}

	if err := ctx.Draw(img, triangles(1)); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := ctx.Present(s); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if q.presents != 1 {
		t.Errorf("presents = %d, want 1", q.presents)
	}
	if err := ctx.Draw(img, triangles(1)); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Draw into presented image: err = %v, want ErrInvalidImage", err)
	}
	if err := ctx.Present(s); !errors.Is(err, ErrNoImageAcquired) {
		t.Errorf("Present without image: err = %v, want ErrNoImageAcquired", err)
	}
}

func TestGetNextImageWaitsForPresentedViews(t *testing.T) {
	ctx, d, _ := newLagContext(t)
	s, err := ctx.CreateSurface(&scriptedSurface{}, gpucontext.NullWindowProvider{W: 64, H: 64})
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}

	// Every presented view stays alive while its frame is in flight.
	frames := 2 * gpu.SwapchainBufferCount
	for i := range frames {
		img, err := ctx.GetNextImage(s)
		if err != nil {
			t.Fatalf("frame %d: GetNextImage: %v", i, err)
		}
		if err := ctx.Draw(img, triangles(1)); err != nil {
			t.Fatalf("frame %d: Draw: %v", i, err)
		}
		if err := ctx.Present(s); err != nil {
			t.Fatalf("frame %d: Present: %v", i, err)
		}
	}
	if s.swapchain.Available() != 0 {
		t.Fatalf("available views = %d, want 0", s.swapchain.Available())
	}
	if d.waitIdles != 0 {
		t.Fatalf("waited %d times before the views ran out", d.waitIdles)
	}

	if _, err := ctx.GetNextImage(s); err != nil {
		t.Fatalf("GetNextImage with all views in flight: %v", err)
	}
	if d.waitIdles != 1 {
		t.Errorf("waitIdles = %d, want 1", d.waitIdles)
	}
	if got := s.swapchain.Available(); got != uint32(frames-1) {
		t.Errorf("available views = %d, want %d", got, frames-1)
	}
}

func TestSurfaceResize(t *testing.T) {
	ctx, d, _ := newLagContext(t)
	raw := &scriptedSurface{}
	win := &resizableWindow{w: 100, h: 100}
	s, err := ctx.CreateSurface(raw, win)
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	if _, err := ctx.GetNextImage(s); err != nil {
		t.Fatalf("GetNextImage: %v", err)
	}

	if err := ctx.Resize(s); err != nil {
		t.Fatalf("Resize to same size: %v", err)
	}
	if raw.configures != 1 {
		t.Errorf("configures = %d, unchanged size should not reconfigure", raw.configures)
	}
	if raw.discards != 1 {
		t.Errorf("discards = %d, acquired image should be dropped", raw.discards)
	}

	win.w, win.h = 200, 150
	waits := d.waitIdles
	if err := ctx.Resize(s); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if d.waitIdles == waits {
		t.Error("Resize did not wait for the GPU")
	}
	if raw.configures != 2 || raw.config.Width != 200 || raw.config.Height != 150 {
		t.Errorf("configures = %d at %dx%d, want 2 at 200x150", raw.configures, raw.config.Width, raw.config.Height)
	}

	img, err := ctx.GetNextImage(s)
	if err != nil {
		t.Fatalf("GetNextImage after resize: %v", err)
	}
	if img.Width() != 200 || img.Height() != 150 {
		t.Errorf("image = %v, want 200x150", img)
	}
}

func TestDestroySurface(t *testing.T) {
	ctx, _, _ := newLagContext(t)
	raw := &scriptedSurface{}
	s, err := ctx.CreateSurface(raw, gpucontext.NullWindowProvider{W: 32, H: 32})
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	img, err := ctx.GetNextImage(s)
	if err != nil {
		t.Fatalf("GetNextImage: %v", err)
	}
	if err := ctx.Draw(img, triangles(1)); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := ctx.Present(s); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if _, err := ctx.GetNextImage(s); err != nil {
		t.Fatalf("GetNextImage: %v", err)
	}

	if err := ctx.DestroySurface(s); err != nil {
		t.Fatalf("DestroySurface: %v", err)
	}
	if raw.unconfigures != 1 {
		t.Errorf("unconfigures = %d, want 1", raw.unconfigures)
	}
	if ctx.Images() != 0 {
		t.Errorf("Images = %d, want 0", ctx.Images())
	}
	if _, err := ctx.GetNextImage(s); err == nil {
		t.Error("GetNextImage on destroyed surface succeeded")
	}
}

func TestCloseDestroysSurfaces(t *testing.T) {
	ctx, _, _ := newLagContext(t)
	raw := &scriptedSurface{}
	s, err := ctx.CreateSurface(raw, gpucontext.NullWindowProvider{W: 32, H: 32})
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	img, err := ctx.GetNextImage(s)
	if err != nil {
		t.Fatalf("GetNextImage: %v", err)
	}
	if err := ctx.Draw(img, triangles(1)); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if raw.unconfigures != 1 || raw.discards != 1 {
		t.Errorf("unconfigures = %d, discards = %d, want 1 and 1", raw.unconfigures, raw.discards)
	}
}
