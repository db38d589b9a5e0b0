package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Texture errors.
var (
	// ErrInvalidTextureSize is returned for zero-sized textures.
	ErrInvalidTextureSize = errors.New("glimmer: texture width and height must be positive")

	// ErrTextureSizeMismatch is returned when uploaded data does not match
	// the texture dimensions.
	ErrTextureSizeMismatch = errors.New("glimmer: pixel data size does not match texture")
)

// DefaultTextureUsage is the usage of images created by the context: they
// can be uploaded to, sampled and rendered into.
const DefaultTextureUsage = gputypes.TextureUsageCopyDst |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageRenderAttachment

// TextureConfig describes a texture to create.
type TextureConfig struct {
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Label  string

	// Usage defaults to DefaultTextureUsage.
	Usage gputypes.TextureUsage
}

// Texture is a 2D texture and its full view.
//
// Usage tracks the state the texture was last transitioned to, so that the
// next barrier knows where it starts from.
type Texture struct {
	Raw    hal.Texture
	View   hal.TextureView
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
	Label  string

	owned bool
}

// CreateTexture creates a texture and its view.
func CreateTexture(device hal.Device, config TextureConfig) (*Texture, error) {
	if config.Width == 0 || config.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTextureSize, config.Width, config.Height)
	}
	usage := config.Usage
	if usage == 0 {
		usage = DefaultTextureUsage
	}

	raw, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: config.Label,
		Size: hal.Extent3D{
			Width:              config.Width,
			Height:             config.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        config.Format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", config.Label, err)
	}

	view, err := createView(device, raw, config.Format, config.Label)
	if err != nil {
		device.DestroyTexture(raw)
		return nil, err
	}

	return &Texture{
		Raw:    raw,
		View:   view,
		Width:  config.Width,
		Height: config.Height,
		Format: config.Format,
		Label:  config.Label,
		owned:  true,
	}, nil
}

// WrapSurfaceTexture creates a view for a texture acquired from a surface.
// The surface keeps ownership of the texture itself.
func WrapSurfaceTexture(device hal.Device, st hal.SurfaceTexture, width, height uint32, format gputypes.TextureFormat, label string) (*Texture, error) {
	view, err := createView(device, st, format, label)
	if err != nil {
		return nil, err
	}
	return &Texture{
		Raw:    st,
		View:   view,
		Width:  width,
		Height: height,
		Format: format,
		Label:  label,
	}, nil
}

func createView(device hal.Device, raw hal.Texture, format gputypes.TextureFormat, label string) (hal.TextureView, error) {
	view, err := device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           label + "_view",
		Format:          format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create view for %q: %w", label, err)
	}
	return view, nil
}

// Transition records a barrier moving the texture to usage. It is a no-op
// when the texture is already there.
func (t *Texture) Transition(enc hal.CommandEncoder, usage gputypes.TextureUsage) {
	if t.Usage == usage {
		return
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.Raw,
		Range: hal.TextureRange{
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   1,
			ArrayLayerCount: 1,
		},
		Usage: hal.TextureUsageTransition{
			OldUsage: t.Usage,
			NewUsage: usage,
		},
	}})
	t.Usage = usage
}

// Destroy releases the view, and the texture if this Texture owns it.
// The view may be nil when a view table took ownership of it.
func (t *Texture) Destroy(device hal.Device) {
	if t.View != nil {
		device.DestroyTextureView(t.View)
		t.View = nil
	}
	if t.owned && t.Raw != nil {
		device.DestroyTexture(t.Raw)
	}
	t.Raw = nil
}
