package kiosk

import (
	"image"
	"time"
)

// StudentCard is the student shown next to a submission outcome.
type StudentCard struct {
	ID    string
	Name  string
	Class string
}

// SessionState is the mutable state of one kiosk session. It is owned by the
// frame loop goroutine. Zero times mean "never".
type SessionState struct {
	Mode            Mode
	LastIdentity    string
	LastAnnouncedAt time.Time
	ModeEnteredAt   time.Time
	Student         *StudentCard
	Portrait        image.Image
}

func (s *SessionState) resetToScanning() {
	s.Mode = Scanning
	s.ModeEnteredAt = time.Time{}
	s.Student = nil
	s.Portrait = nil
}
