package glimmer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/glimmer/scene"
	"github.com/gogpu/gputypes"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`
backend = "Vulkan"
power_preference = "low-power"
debug = true
upload_heap_size = 1048576
max_textures = 64
surface_format = "bgra8unorm-srgb"
present_mode = "mailbox"
clear_color = "#ff0000"
label = "demo"
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	want := options{
		backend:         "vulkan",
		powerPreference: gputypes.PowerPreferenceLowPower,
		debug:           true,
		uploadHeapSize:  1 << 20,
		maxTextures:     64,
		surfaceFormat:   gputypes.TextureFormatBGRA8UnormSrgb,
		presentMode:     gputypes.PresentModeMailbox,
		clearColor:      scene.Red,
		label:           "demo",
	}
	if o != want {
		t.Errorf("options = %+v\nwant      %+v", o, want)
	}
}

func TestParseConfigEmptyKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o != defaultOptions() {
		t.Errorf("empty config changed options: %+v", o)
	}
}

func TestParseConfigUnknownKey(t *testing.T) {
	_, err := ParseConfig(strings.NewReader(`backnd = "vulkan"`))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestConfigOptionsInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"power preference", Config{PowerPreference: "turbo"}},
		{"surface format", Config{SurfaceFormat: "rgb565"}},
		{"present mode", Config{PresentMode: "tearing"}},
		{"clear color", Config{ClearColor: "#zz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.Options(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glimmer.toml")
	if err := os.WriteFile(path, []byte("backend = \"noop\"\nmax_textures = 8\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend != "noop" || cfg.MaxTextures != 8 {
		t.Errorf("cfg = %+v", cfg)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v", err)
	}
}
