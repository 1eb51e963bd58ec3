package facematch

import (
	"image"
	"math"
)

// Area returns (x2-x1)*(y2-y1). Inverted boxes give a negative area.
func (b Box) Area() float64 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Clamp truncates the box corners to integers and limits them to bounds,
// the same way pixel indexing of the frame would. The result may be empty.
func (b Box) Clamp(bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		clampInt(b.X1, bounds.Min.X, bounds.Max.X),
		clampInt(b.Y1, bounds.Min.Y, bounds.Max.Y),
		clampInt(b.X2, bounds.Min.X, bounds.Max.X),
		clampInt(b.Y2, bounds.Min.Y, bounds.Max.Y),
	)
	// image.Rect swaps inverted corners, an inverted box is an empty crop
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return image.Rectangle{Min: r.Min, Max: r.Min}
	}
	return r
}

func clampInt(v float64, lo, hi int) int {
	if math.IsNaN(v) {
		return lo
	}
	t := math.Trunc(v)
	if t < float64(lo) {
		return lo
	}
	if t > float64(hi) {
		return hi
	}
	return int(t)
}

// SelectLargest returns the detection with the largest box area. Ties go to
// the detection seen first. ok is false when there are no detections.
func SelectLargest(detections []Detection) (best Detection, ok bool) {
	if len(detections) == 0 {
		return Detection{}, false
	}
	best = detections[0]
	bestArea := best.Box.Area()
	for _, d := range detections[1:] {
		if area := d.Box.Area(); area > bestArea {
			best, bestArea = d, area
		}
	}
	return best, true
}
