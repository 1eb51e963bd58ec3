package capture

import (
	"context"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
)

// mjpegFourCC is V4L2_PIX_FMT_MJPEG.
const mjpegFourCC webcam.PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24

// waitSeconds is how long a single WaitForFrame call blocks.
const waitSeconds = 1

// Webcam streams MJPEG frames from a V4L2 device. A background goroutine keeps
// only the newest frame, so a slow consumer always gets a fresh one.
type Webcam struct {
	cam    *webcam.Webcam
	frame  chan []byte
	done   chan struct{}
	stop   chan struct{}
	once   sync.Once
	err    error
	logger *slog.Logger
}

// OpenWebcam opens device, selects MJPEG at the closest supported size to
// width x height and starts streaming.
func OpenWebcam(device string, width, height int, logger *slog.Logger) (*Webcam, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open device "+device)
	}

	format, ok := findMJPEG(cam.GetSupportedFormats())
	if !ok {
		_ = cam.Close()
		return nil, errors.Errorf("device %s does not support MJPEG", device)
	}

	_, w, h, err := cam.SetImageFormat(format, uint32(width), uint32(height)) //nolint:gosec // sizes come from config
	if err != nil {
		_ = cam.Close()
		return nil, errors.Wrap(err, "Can not set image format")
	}
	logger.Info("capture: camera opened", "device", device, "width", w, "height", h)

	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, errors.Wrap(err, "Can not start streaming")
	}

	wc := &Webcam{
		cam:    cam,
		frame:  make(chan []byte, 1),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
		logger: logger,
	}
	go wc.stream()
	return wc, nil
}

func findMJPEG(formats map[webcam.PixelFormat]string) (webcam.PixelFormat, bool) {
	if _, ok := formats[mjpegFourCC]; ok {
		return mjpegFourCC, true
	}
	for f, name := range formats {
		if strings.Contains(strings.ToUpper(name), "JPEG") {
			return f, true
		}
	}
	return 0, false
}

func (w *Webcam) stream() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		err := w.cam.WaitForFrame(waitSeconds)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			w.logger.Debug("capture: frame wait timed out")
			continue
		default:
			w.err = errors.Wrap(err, "Frame wait failed")
			return
		}

		raw, err := w.cam.ReadFrame()
		if err != nil {
			w.err = errors.Wrap(err, "Read frame failed")
			return
		}
		if len(raw) == 0 {
			continue
		}
		// the mmap buffer is handed back to the driver, keep a copy
		frame := make([]byte, len(raw))
		copy(frame, raw)

		// drop the stale frame, keep the newest
		select {
		case <-w.frame:
		default:
		}
		w.frame <- frame
	}
}

// Read blocks until a new frame is available and decodes it.
func (w *Webcam) Read(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame := <-w.frame:
		return decodeMJPEG(frame)
	case <-w.done:
		if w.err != nil {
			return nil, w.err
		}
		return nil, ErrClosed
	}
}

// Close stops streaming and releases the device.
func (w *Webcam) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		<-w.done
		if serr := w.cam.StopStreaming(); serr != nil {
			w.logger.Debug("capture: stop streaming failed", "error", serr)
		}
		err = w.cam.Close()
	})
	return err
}
