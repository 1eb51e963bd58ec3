// Package capture provides kiosk frame sources: a V4L2 webcam and a directory
// replay used for demos and tests.
package capture

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("frame source closed")

// decodeMJPEG decodes a single MJPEG frame. Some cameras send frames without
// the huffman table, those fail here and are reported to the caller.
func decodeMJPEG(frame []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, errors.Wrap(err, "Can not decode frame")
	}
	return img, nil
}
