// Package facematch holds the face geometry shared by the detector client,
// the identifier and the compositor.
package facematch

// Box is a face bounding box in frame pixel coordinates, [x1, y1, x2, y2].
// Detectors report floating point corners that may lie outside the frame.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection is one face reported by the detector for a single frame.
type Detection struct {
	Box   Box
	Score float64
}

// BoxFromSlice converts a detector bbox [x1, y1, x2, y2] into a Box.
// The second return value is false when the slice is malformed.
func BoxFromSlice(bbox []float64) (Box, bool) {
	if len(bbox) != 4 {
		return Box{}, false
	}
	return Box{X1: bbox[0], Y1: bbox[1], X2: bbox[2], Y2: bbox[3]}, true
}
