// Package kiosk is the attendance state machine: it debounces identities,
// gates exactly-once attendance submission and drives the display modes.
package kiosk

// Mode is the display mode of the kiosk. The values index the mode panels.
type Mode int

const (
	Scanning Mode = iota
	RecognizedFlash
	Success
	Failure
)

func (m Mode) String() string {
	switch m {
	case Scanning:
		return "scanning"
	case RecognizedFlash:
		return "recognized"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// showsResult reports whether the mode displays a submission outcome.
func (m Mode) showsResult() bool {
	return m == Success || m == Failure
}
