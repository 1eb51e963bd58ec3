package kiosk

import (
	"time"

	"github.com/kozaktomas/absen-kiosk/internal/constants"
)

// DefaultPrintDelay is the minimum time between two announcements.
const DefaultPrintDelay = 1200 * time.Millisecond

// Decision is the outcome of observing one identity.
type Decision struct {
	// Confirmed is set when the identity repeats the previous one.
	Confirmed bool
	// Announce is set when a confirmed identity may trigger a submission.
	Announce bool
}

// Gate requires an identity to be seen on two consecutive processed frames
// before it is confirmed, and spaces announcements by Delay.
type Gate struct {
	Delay time.Duration
}

// Observe records label in state and reports whether it is confirmed and
// whether it should be announced. Announcing advances LastAnnouncedAt.
func (g Gate) Observe(state *SessionState, label string, now time.Time) Decision {
	if label == "" || label != state.LastIdentity || label == constants.UnknownLabel {
		state.LastIdentity = label
		return Decision{}
	}

	d := Decision{Confirmed: true}
	if state.LastAnnouncedAt.IsZero() || now.Sub(state.LastAnnouncedAt) >= g.Delay {
		d.Announce = true
		state.LastAnnouncedAt = now
	}
	return d
}
