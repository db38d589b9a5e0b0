package glimmer

import (
	"github.com/gogpu/glimmer/internal/gpu"
	"github.com/gogpu/glimmer/scene"
	"github.com/gogpu/gputypes"
)

// DefaultMaxTextures is the default number of image view slots.
const DefaultMaxTextures = 1024

// Option configures a Context during creation.
//
// Example:
//
//	ctx, err := glimmer.NewContext(
//	    glimmer.WithBackend("vulkan"),
//	    glimmer.WithPowerPreference(gputypes.PowerPreferenceLowPower),
//	)
type Option func(*options)

type options struct {
	backend         string
	powerPreference gputypes.PowerPreference
	debug           bool
	uploadHeapSize  uint64
	maxTextures     uint32
	surfaceFormat   gputypes.TextureFormat
	presentMode     gputypes.PresentMode
	clearColor      scene.Color
	label           string
}

func defaultOptions() options {
	return options{
		uploadHeapSize: gpu.DefaultUploadHeapSize,
		maxTextures:    DefaultMaxTextures,
		surfaceFormat:  gpu.DefaultSurfaceFormat,
		presentMode:    gputypes.PresentModeFifo,
		clearColor:     scene.White,
		label:          "glimmer",
	}
}

// WithBackend selects a HAL backend by name ("vulkan", "metal", "dx12",
// "gl", "noop"). By default the best registered backend is used.
//
// For contexts created from an existing device the name only tells
// glimmer which shader language the device expects.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithPowerPreference chooses between integrated and discrete adapters.
func WithPowerPreference(p gputypes.PowerPreference) Option {
	return func(o *options) {
		o.powerPreference = p
	}
}

// WithDebug enables backend debug and validation layers.
func WithDebug(enabled bool) Option {
	return func(o *options) {
		o.debug = enabled
	}
}

// WithUploadHeapSize sets the size in bytes of the ring buffer used for
// per-frame uploads. Frames whose data does not fit are dropped.
func WithUploadHeapSize(size uint64) Option {
	return func(o *options) {
		if size > 0 {
			o.uploadHeapSize = size
		}
	}
}

// WithMaxTextures sets the number of image view slots.
func WithMaxTextures(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTextures = n
		}
	}
}

// WithSurfaceFormat sets the format surfaces are configured with.
func WithSurfaceFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.surfaceFormat = f
	}
}

// WithPresentMode sets the presentation mode of surfaces.
func WithPresentMode(m gputypes.PresentMode) Option {
	return func(o *options) {
		o.presentMode = m
	}
}

// WithClearColor sets the color targets are cleared to before drawing.
func WithClearColor(c scene.Color) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithLabel sets the prefix of GPU debug labels.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}
