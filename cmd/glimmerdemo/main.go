// Command glimmerdemo renders an animated scene offscreen with glimmer.
//
// It runs without a window: frames are drawn into an image and the context
// statistics are logged. With -watch the TOML config is reloaded and the
// context rebuilt whenever the file changes.
//
//	glimmerdemo -config glimmer.toml -frames 600 -watch
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/gogpu/glimmer"
	"github.com/gogpu/glimmer/scene"
	_ "github.com/gogpu/wgpu/hal/allbackends"
	_ "github.com/gogpu/wgpu/hal/noop"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file")
		backend    = flag.String("backend", "", "HAL backend (vulkan, metal, dx12, gl, noop)")
		width      = flag.Int("width", 800, "target width")
		height     = flag.Int("height", 600, "target height")
		frames     = flag.Int("frames", 120, "frames to render, 0 renders until interrupted")
		fps        = flag.Int("fps", 60, "frame rate")
		watch      = flag.Bool("watch", false, "reload the config file when it changes")
		level      = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "glimmer",
	})
	if lvl, err := log.ParseLevel(*level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("unknown log level, using info", "level", *level)
	}
	glimmer.SetLogger(slog.New(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d := &demo{
		log:        logger,
		configPath: *configPath,
		backend:    *backend,
		width:      *width,
		height:     *height,
		frames:     *frames,
		interval:   time.Second / time.Duration(max(*fps, 1)),
	}
	if err := d.run(ctx, *watch); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("demo failed", "err", err)
	}
}

// demo owns the rendering context and rebuilds it on config changes.
type demo struct {
	log        *log.Logger
	configPath string
	backend    string
	width      int
	height     int
	frames     int
	interval   time.Duration

	ctx    *glimmer.Context
	target glimmer.Image
	graphs *scene.GraphPool
}

func (d *demo) run(ctx context.Context, watch bool) error {
	d.graphs = scene.NewGraphPool()
	if err := d.open(); err != nil {
		return err
	}
	defer d.close()

	var reload <-chan struct{}
	if watch && d.configPath != "" {
		ch, err := watchConfig(ctx, d.log, d.configPath)
		if err != nil {
			return err
		}
		reload = ch
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	start := time.Now()
	dropped := 0
	for frame := 0; d.frames == 0 || frame < d.frames; frame++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reload:
			d.log.Info("config changed, rebuilding context")
			d.close()
			if err := d.open(); err != nil {
				return err
			}
		case <-ticker.C:
		}

		g := d.graphs.Get()
		buildFrame(g, float32(time.Since(start).Seconds()), float32(d.width), float32(d.height))
		err := d.ctx.Draw(d.target, g)
		d.graphs.Put(g)
		switch {
		case errors.Is(err, glimmer.ErrFrameDropped):
			dropped++
		case err != nil:
			return fmt.Errorf("frame %d: %w", frame, err)
		}

		if frame%60 == 59 {
			d.log.Info("frames",
				"rendered", frame+1,
				"dropped", dropped,
				"in_flight", d.ctx.FramesInFlight(),
				"heap_used", d.ctx.HeapUsed())
		}
	}
	return d.ctx.Flush()
}

// open creates the context from the config file and flags.
func (d *demo) open() error {
	var opts []glimmer.Option
	if d.configPath != "" {
		cfg, err := glimmer.LoadConfig(d.configPath)
		if err != nil {
			return err
		}
		if opts, err = cfg.Options(); err != nil {
			return err
		}
	}
	if d.backend != "" {
		opts = append(opts, glimmer.WithBackend(d.backend))
	}

	ctx, err := glimmer.NewContext(opts...)
	if err != nil {
		return err
	}
	target, err := ctx.CreateImage(d.width, d.height, glimmer.FormatRGBA8, glimmer.ColorSpaceSRGB)
	if err != nil {
		ctx.Close()
		return err
	}
	d.ctx, d.target = ctx, target
	return nil
}

func (d *demo) close() {
	if d.ctx == nil {
		return
	}
	if err := d.ctx.Close(); err != nil {
		d.log.Warn("close context", "err", err)
	}
	d.ctx = nil
}

// watchConfig signals on the returned channel whenever path is written or
// replaced. The directory is watched so that editors that rename over the
// file are seen too.
func watchConfig(ctx context.Context, logger *log.Logger, path string) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	reload := make(chan struct{}, 1)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				select {
				case reload <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher", "err", err)
			}
		}
	}()
	return reload, nil
}
