//go:build !linux

package capture

import (
	"context"
	"image"
	"log/slog"

	"github.com/pkg/errors"
)

// Webcam is only available on Linux.
type Webcam struct{}

// OpenWebcam always fails outside Linux, use a replay directory instead.
func OpenWebcam(device string, _, _ int, _ *slog.Logger) (*Webcam, error) {
	return nil, errors.Errorf("V4L2 capture from %s is only supported on linux", device)
}

func (w *Webcam) Read(context.Context) (image.Image, error) { return nil, ErrClosed }

func (w *Webcam) Close() error { return nil }
