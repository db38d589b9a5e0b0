package glimmer

import (
	"errors"

	"github.com/gogpu/glimmer/internal/gpu"
	"github.com/gogpu/glimmer/internal/memory"
)

var (
	// ErrFrameDropped wraps capacity errors that caused Draw to skip a
	// frame. Nothing was submitted and the next frame may succeed.
	ErrFrameDropped = errors.New("glimmer: frame dropped")

	// ErrInvalidImage is returned for images that were destroyed, presented
	// or belong to another context.
	ErrInvalidImage = errors.New("glimmer: invalid image")

	// ErrContextClosed is returned by calls on a closed context.
	ErrContextClosed = errors.New("glimmer: context closed")

	// ErrUnsupportedProvider is returned when a device provider does not
	// expose HAL objects.
	ErrUnsupportedProvider = errors.New("glimmer: device provider does not expose a HAL device")

	// ErrDeviceLost reports a failed device or queue. The context cannot be
	// used afterwards and must be recreated.
	ErrDeviceLost = gpu.ErrDeviceLost

	// ErrInvalidSize is returned for images with a zero or negative size.
	ErrInvalidSize = gpu.ErrInvalidTextureSize

	// ErrSizeMismatch is returned when pixel data is shorter than its
	// dimensions require.
	ErrSizeMismatch = gpu.ErrTextureSizeMismatch

	// ErrNoImageAcquired is returned by Present when the surface has no
	// image from GetNextImage.
	ErrNoImageAcquired = gpu.ErrNoImageAcquired

	// ErrOutOfMemory and ErrInsufficientCapacity come from the upload
	// heap and the view table. They arrive wrapped in ErrFrameDropped when
	// raised by Draw.
	ErrOutOfMemory          = memory.ErrOutOfMemory
	ErrInsufficientCapacity = memory.ErrInsufficientCapacity
)
