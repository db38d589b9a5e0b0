package glimmer

import (
	"fmt"

	"github.com/gogpu/glimmer/internal/gpu"
	"github.com/gogpu/glimmer/internal/pool"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Format is the pixel format of an image.
type Format uint8

const (
	// FormatRGBA8 stores 8 bits per channel in RGBA order.
	FormatRGBA8 Format = iota

	// FormatBGRA8 stores 8 bits per channel in BGRA order, the usual
	// surface layout on Windows.
	FormatBGRA8

	// FormatR8 is a single 8-bit channel, used for masks.
	FormatR8

	// FormatRGBA16Float stores half floats per channel. Surfaces use it by
	// default.
	FormatRGBA16Float
)

// String returns a human-readable name.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatR8:
		return "R8"
	case FormatRGBA16Float:
		return "RGBA16Float"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// BytesPerPixel returns the size of one pixel.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA8, FormatBGRA8:
		return 4
	case FormatR8:
		return 1
	case FormatRGBA16Float:
		return 8
	default:
		return 0
	}
}

func (f Format) valid() bool { return f <= FormatRGBA16Float }

// textureFormat maps the format to its GPU format. 8-bit formats in the
// sRGB color space use the sRGB texture variants so that sampling and
// blending happen in linear space.
func (f Format) textureFormat(space ColorSpace) gputypes.TextureFormat {
	switch f {
	case FormatRGBA8:
		if space == ColorSpaceSRGB {
			return gputypes.TextureFormatRGBA8UnormSrgb
		}
		return gputypes.TextureFormatRGBA8Unorm
	case FormatBGRA8:
		if space == ColorSpaceSRGB {
			return gputypes.TextureFormatBGRA8UnormSrgb
		}
		return gputypes.TextureFormatBGRA8Unorm
	case FormatR8:
		return gputypes.TextureFormatR8Unorm
	case FormatRGBA16Float:
		return gputypes.TextureFormatRGBA16Float
	default:
		return gputypes.TextureFormatUndefined
	}
}

// formatOf is the inverse of textureFormat.
func formatOf(tf gputypes.TextureFormat) (Format, ColorSpace) {
	switch tf {
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return FormatRGBA8, ColorSpaceSRGB
	case gputypes.TextureFormatBGRA8Unorm:
		return FormatBGRA8, ColorSpaceLinear
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return FormatBGRA8, ColorSpaceSRGB
	case gputypes.TextureFormatR8Unorm:
		return FormatR8, ColorSpaceLinear
	case gputypes.TextureFormatRGBA16Float:
		return FormatRGBA16Float, ColorSpaceLinear
	default:
		return FormatRGBA8, ColorSpaceLinear
	}
}

// ColorSpace tells how the channel values of an image are encoded.
type ColorSpace uint8

const (
	// ColorSpaceSRGB marks gamma-encoded 8-bit data, as produced by image
	// decoders.
	ColorSpaceSRGB ColorSpace = iota

	// ColorSpaceLinear marks data that is already linear.
	ColorSpaceLinear
)

func (s ColorSpace) String() string {
	if s == ColorSpaceLinear {
		return "linear"
	}
	return "sRGB"
}

// PixelBuffer is raw pixel data in CPU memory.
type PixelBuffer struct {
	Width  int
	Height int

	// Stride is the distance in bytes between rows. Zero means tightly
	// packed rows.
	Stride int

	Format     Format
	ColorSpace ColorSpace
	Pix        []byte
}

// rowBytes returns the packed size of one row.
func (b PixelBuffer) rowBytes() int { return b.Width * b.Format.BytesPerPixel() }

func (b PixelBuffer) stride() int {
	if b.Stride == 0 {
		return b.rowBytes()
	}
	return b.Stride
}

// validate checks the dimensions against the pixel data.
func (b PixelBuffer) validate() error {
	if !b.Format.valid() {
		return fmt.Errorf("%w: unknown format %v", ErrInvalidImage, b.Format)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", gpu.ErrInvalidTextureSize, b.Width, b.Height)
	}
	if b.stride() < b.rowBytes() {
		return fmt.Errorf("%w: stride %d shorter than row of %d bytes",
			gpu.ErrTextureSizeMismatch, b.Stride, b.rowBytes())
	}
	if need := b.stride()*(b.Height-1) + b.rowBytes(); len(b.Pix) < need {
		return fmt.Errorf("%w: have %d bytes, need %d",
			gpu.ErrTextureSizeMismatch, len(b.Pix), need)
	}
	return nil
}

// Image is a handle to a texture owned by a Context. It is a small value
// and may be copied freely; copies refer to the same texture.
//
// Images are created by CreateImage, UploadImage and UploadPixels, or
// acquired from a surface with GetNextImage. A handle becomes invalid once
// the image is destroyed or presented. Calls with an invalid handle return
// ErrInvalidImage.
type Image struct {
	ctx    *Context
	handle pool.Handle[*imageEntry]
	width  int
	height int
	format Format
}

var _ gpucontext.Texture = Image{}

// Width returns the image width in pixels.
func (img Image) Width() int { return img.width }

// Height returns the image height in pixels.
func (img Image) Height() int { return img.height }

// Format returns the pixel format.
func (img Image) Format() Format { return img.format }

// IsZero reports whether img is the zero Image.
func (img Image) IsZero() bool { return img.handle.IsZero() }

// String returns a description for debugging.
func (img Image) String() string {
	if img.IsZero() {
		return "Image(nil)"
	}
	return fmt.Sprintf("Image(%v %dx%d %v)", img.handle, img.width, img.height, img.format)
}

// imageEntry is the context-side state of an image.
type imageEntry struct {
	tex   *gpu.Texture
	label string

	// slot holds the sampling view and bind group in the context's view
	// table. Swap chain images are not sampled and have no slot.
	slot    gpu.ViewSlot
	sampled bool

	// lastUse is the newest submission that reads or writes the texture.
	lastUse gpu.SubmissionID

	// swap is set for images acquired from a surface.
	swap    *gpu.SwapImage
	surface *Surface
}
