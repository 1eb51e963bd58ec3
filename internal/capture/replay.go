package capture

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kozaktomas/absen-kiosk/internal/fingerprint"
)

var replayExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

// Replay serves the images of a directory in name order and then reports
// io.EOF. It stands in for the camera on machines without one.
type Replay struct {
	files    []string
	next     int
	interval time.Duration
	last     time.Time
	closed   bool
}

// NewReplay lists the images in dir. interval paces the frames, zero serves
// them as fast as they are read.
func NewReplay(dir string, interval time.Duration) (*Replay, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "Can not read replay directory")
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if replayExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images in replay directory %s", dir)
	}
	sort.Strings(files)

	return &Replay{files: files, interval: interval}, nil
}

// Len returns the number of frames in the replay.
func (r *Replay) Len() int { return len(r.files) }

// Read returns the next frame, io.EOF after the last one.
func (r *Replay) Read(ctx context.Context) (image.Image, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.next >= len(r.files) {
		return nil, io.EOF
	}

	if r.interval > 0 && !r.last.IsZero() {
		if wait := r.interval - time.Since(r.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	path := r.files[r.next]
	r.next++
	r.last = time.Now()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the configured replay dir
	if err != nil {
		return nil, errors.Wrapf(err, "Can not read frame %s", path)
	}
	img, err := fingerprint.DecodeImage(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Can not decode frame %s", path)
	}
	return img, nil
}

// Close marks the replay as finished.
func (r *Replay) Close() error {
	r.closed = true
	return nil
}
