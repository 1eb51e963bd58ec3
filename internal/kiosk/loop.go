package kiosk

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"time"
)

const (
	DefaultFrameSkip           = 3
	DefaultScratchReleaseEvery = 30
	DefaultGCEvery             = 100

	reclaimTimeout = 2 * time.Second
)

// Source delivers camera frames. Read blocks until a frame is available.
type Source interface {
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

// Renderer composes the kiosk screen for a view and the raw frame.
type Renderer interface {
	Render(view View, frame image.Image) image.Image
}

// Sink shows composed screens.
type Sink interface {
	Publish(screen image.Image, view View)
	Close() error
}

// Reclaimer releases scratch memory held by the recognition backend.
type Reclaimer interface {
	ReleaseScratch(ctx context.Context) error
}

// LoopOptions set the loop cadences. Zero values use the defaults.
type LoopOptions struct {
	FrameSkip           int
	ScratchReleaseEvery int
	GCEvery             int
}

// Loop reads frames, runs the kiosk on every FrameSkip-th frame and
// publishes the result.
type Loop struct {
	source    Source
	kiosk     *Kiosk
	renderer  Renderer
	sink      Sink
	reclaimer Reclaimer
	opts      LoopOptions
	logger    *slog.Logger

	// Now and FreeMemory can be replaced in tests.
	Now        func() time.Time
	FreeMemory func()

	frames    int
	processed int
}

// NewLoop wires a frame loop. reclaimer may be nil.
func NewLoop(source Source, kiosk *Kiosk, renderer Renderer, sink Sink, reclaimer Reclaimer, opts LoopOptions, logger *slog.Logger) *Loop {
	if opts.FrameSkip <= 0 {
		opts.FrameSkip = DefaultFrameSkip
	}
	if opts.ScratchReleaseEvery <= 0 {
		opts.ScratchReleaseEvery = DefaultScratchReleaseEvery
	}
	if opts.GCEvery <= 0 {
		opts.GCEvery = DefaultGCEvery
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		source:     source,
		kiosk:      kiosk,
		renderer:   renderer,
		sink:       sink,
		reclaimer:  reclaimer,
		opts:       opts,
		logger:     logger,
		Now:        time.Now,
		FreeMemory: debug.FreeOSMemory,
	}
}

// Run processes frames until ctx is canceled or the source fails. A source
// failure is returned, cancellation is not. The source and the sink are
// closed in both cases.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if cerr := l.source.Close(); cerr != nil {
			l.logger.Warn("kiosk: closing frame source failed", "error", cerr)
		}
		if cerr := l.sink.Close(); cerr != nil {
			l.logger.Warn("kiosk: closing display failed", "error", cerr)
		}
		l.logger.Info("kiosk: frame loop stopped", "frames", l.frames, "processed", l.processed)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := l.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to capture frame: %w", err)
		}

		l.frames++
		if l.frames%l.opts.GCEvery == 0 {
			l.FreeMemory()
		}
		if l.frames%l.opts.FrameSkip != 0 {
			continue
		}

		l.processed++
		view := l.kiosk.Step(ctx, frame, l.Now())
		view.Frame = l.processed
		l.sink.Publish(l.renderer.Render(view, frame), view)

		if l.processed%l.opts.ScratchReleaseEvery == 0 {
			l.reclaim(ctx)
		}
	}
}

func (l *Loop) reclaim(ctx context.Context) {
	if l.reclaimer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, reclaimTimeout)
	defer cancel()
	if err := l.reclaimer.ReleaseScratch(ctx); err != nil {
		l.logger.Debug("kiosk: scratch release failed", "error", err)
	}
}

// Frames returns the number of frames read so far.
func (l *Loop) Frames() int { return l.frames }

// Processed returns the number of frames handed to the kiosk so far.
func (l *Loop) Processed() int { return l.processed }
