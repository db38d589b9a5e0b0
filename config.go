package glimmer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gogpu/glimmer/scene"
	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned for config values that cannot be mapped to
// options.
var ErrInvalidConfig = errors.New("glimmer: invalid config")

// Config is the file form of the context options.
//
// Example glimmer.toml:
//
//	backend = "vulkan"
//	power_preference = "high-performance"
//	upload_heap_size = 33554432
//	present_mode = "mailbox"
//	clear_color = "#202020"
//
// Zero values keep the defaults.
type Config struct {
	Backend         string `toml:"backend"`
	PowerPreference string `toml:"power_preference"`
	Debug           bool   `toml:"debug"`
	UploadHeapSize  uint64 `toml:"upload_heap_size"`
	MaxTextures     uint32 `toml:"max_textures"`
	SurfaceFormat   string `toml:"surface_format"`
	PresentMode     string `toml:"present_mode"`
	ClearColor      string `toml:"clear_color"`
	Label           string `toml:"label"`
}

// LoadConfig reads a TOML config file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := ParseConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a TOML config. Unknown keys are an error.
func ParseConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return Config{}, err
	}
	return cfg, nil
}

// Options converts the config to context options.
func (c Config) Options() ([]Option, error) {
	opts := []Option{
		WithDebug(c.Debug),
		WithUploadHeapSize(c.UploadHeapSize),
		WithMaxTextures(c.MaxTextures),
		WithLabel(c.Label),
	}
	if c.Backend != "" {
		opts = append(opts, WithBackend(strings.ToLower(c.Backend)))
	}

	if c.PowerPreference != "" {
		p, err := parsePowerPreference(c.PowerPreference)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithPowerPreference(p))
	}
	if c.SurfaceFormat != "" {
		f, err := parseSurfaceFormat(c.SurfaceFormat)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSurfaceFormat(f))
	}
	if c.PresentMode != "" {
		m, err := parsePresentMode(c.PresentMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithPresentMode(m))
	}
	if c.ClearColor != "" {
		col, err := scene.ParseHex(c.ClearColor)
		if err != nil {
			return nil, fmt.Errorf("%w: clear_color: %w", ErrInvalidConfig, err)
		}
		opts = append(opts, WithClearColor(col))
	}
	return opts, nil
}

func parsePowerPreference(s string) (gputypes.PowerPreference, error) {
	switch strings.ToLower(s) {
	case "none", "default":
		return gputypes.PowerPreferenceNone, nil
	case "low-power", "low":
		return gputypes.PowerPreferenceLowPower, nil
	case "high-performance", "high":
		return gputypes.PowerPreferenceHighPerformance, nil
	}
	return 0, fmt.Errorf("%w: power_preference %q", ErrInvalidConfig, s)
}

var surfaceFormats = map[string]gputypes.TextureFormat{
	"rgba16float":    gputypes.TextureFormatRGBA16Float,
	"rgba8unorm":     gputypes.TextureFormatRGBA8Unorm,
	"rgba8unormsrgb": gputypes.TextureFormatRGBA8UnormSrgb,
	"bgra8unorm":     gputypes.TextureFormatBGRA8Unorm,
	"bgra8unormsrgb": gputypes.TextureFormatBGRA8UnormSrgb,
}

func parseSurfaceFormat(s string) (gputypes.TextureFormat, error) {
	key := strings.ReplaceAll(strings.ToLower(s), "-", "")
	if f, ok := surfaceFormats[key]; ok {
		return f, nil
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("%w: surface_format %q", ErrInvalidConfig, s)
}

func parsePresentMode(s string) (gputypes.PresentMode, error) {
	switch strings.ToLower(s) {
	case "fifo", "vsync":
		return gputypes.PresentModeFifo, nil
	case "fifo-relaxed":
		return gputypes.PresentModeFifoRelaxed, nil
	case "mailbox":
		return gputypes.PresentModeMailbox, nil
	case "immediate":
		return gputypes.PresentModeImmediate, nil
	}
	return gputypes.PresentModeUndefined, fmt.Errorf("%w: present_mode %q", ErrInvalidConfig, s)
}
