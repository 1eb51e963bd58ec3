package kiosk

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/kozaktomas/absen-kiosk/internal/facematch"
	"github.com/kozaktomas/absen-kiosk/internal/recognition"
	"github.com/kozaktomas/absen-kiosk/internal/schoolapi"
)

const (
	DefaultModeDuration = 2 * time.Second
	DefaultCallTimeout  = 5 * time.Second
)

// Detector finds faces in a frame.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]facematch.Detection, error)
}

// Identifier resolves a face box to a gallery identity.
type Identifier interface {
	Identify(ctx context.Context, frame image.Image, box facematch.Box) (recognition.Result, error)
}

// Directory looks up students and their portraits.
type Directory interface {
	Student(ctx context.Context, identity string) (*schoolapi.Student, error)
	Portrait(ctx context.Context, identity string) (image.Image, error)
}

// Ledger records attendance.
type Ledger interface {
	Submit(ctx context.Context, record schoolapi.AttendanceRecord) error
}

// Options configure a kiosk session.
type Options struct {
	ClassID        int
	AttendanceType string
	Title          string
	PrintDelay     time.Duration
	ModeDuration   time.Duration
	// CallTimeout bounds every detector, identifier, directory, portrait and
	// ledger call.
	CallTimeout time.Duration
}

// View is what the display needs to draw one processed frame.
type View struct {
	Frame      int
	Mode       Mode
	Title      string
	Face       *facematch.Box
	Label      string
	Confidence float64
	Student    *StudentCard
	Portrait   image.Image
}

// Kiosk advances the session state machine one processed frame at a time.
// It is not safe for concurrent use.
type Kiosk struct {
	detector   Detector
	identifier Identifier
	directory  Directory
	ledger     Ledger
	opts       Options
	gate       Gate
	state      SessionState
	logger     *slog.Logger
}

// New creates a kiosk in the scanning mode.
func New(detector Detector, identifier Identifier, directory Directory, ledger Ledger, opts Options, logger *slog.Logger) *Kiosk {
	if opts.PrintDelay <= 0 {
		opts.PrintDelay = DefaultPrintDelay
	}
	if opts.ModeDuration <= 0 {
		opts.ModeDuration = DefaultModeDuration
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Kiosk{
		detector:   detector,
		identifier: identifier,
		directory:  directory,
		ledger:     ledger,
		opts:       opts,
		gate:       Gate{Delay: opts.PrintDelay},
		logger:     logger,
	}
}

// State returns a copy of the session state.
func (k *Kiosk) State() SessionState {
	return k.state
}

// Step processes one frame captured at now and returns what to display.
func (k *Kiosk) Step(ctx context.Context, frame image.Image, now time.Time) View {
	st := &k.state

	if st.Mode.showsResult() && !st.ModeEnteredAt.IsZero() && now.Sub(st.ModeEnteredAt) >= k.opts.ModeDuration {
		k.logger.Debug("kiosk: result shown long enough, scanning again", "mode", st.Mode)
		st.resetToScanning()
	}

	view := View{Title: k.opts.Title}
	confirmed := false
	if st.Mode == Scanning {
		confirmed = k.recognize(ctx, frame, now, &view)
	}

	view.Mode = st.Mode
	// the flash is drawn for the confirming frame only, the session stays scanning
	if confirmed && st.Mode == Scanning {
		view.Mode = RecognizedFlash
	}
	view.Student = st.Student
	view.Portrait = st.Portrait
	return view
}

// recognize runs detection and identification on a scanning frame and
// reports whether the gate confirmed the identity.
func (k *Kiosk) recognize(ctx context.Context, frame image.Image, now time.Time, view *View) bool {
	detections, err := k.detect(ctx, frame)
	if err != nil {
		k.logger.Warn("kiosk: face detection failed", "error", err)
		return false
	}
	face, ok := facematch.SelectLargest(detections)
	if !ok {
		return false
	}

	res, err := k.identify(ctx, frame, face.Box)
	if err != nil {
		if errors.Is(err, recognition.ErrEmptyCrop) {
			k.logger.Debug("kiosk: face box outside frame", "box", face.Box)
		} else {
			k.logger.Warn("kiosk: face identification failed", "error", err)
		}
		return false
	}

	view.Face = &face.Box
	view.Label = res.Label
	view.Confidence = res.Confidence

	if !res.Known() {
		k.state.LastIdentity = res.Label
		return false
	}
	decision := k.gate.Observe(&k.state, res.Label, now)
	if decision.Announce {
		k.announce(ctx, res.Label, now)
	}
	return decision.Confirmed
}

// announce looks up the student, checks the class and submits attendance.
// Any lookup failure abandons the attempt without a mode change.
func (k *Kiosk) announce(ctx context.Context, identity string, now time.Time) {
	logger := k.logger.With("identity", identity)
	logger.Info("kiosk: identity confirmed")

	student, err := k.lookup(ctx, identity)
	if err != nil {
		logger.Warn("kiosk: student lookup failed", "error", err)
		return
	}
	if !student.InClass(k.opts.ClassID) {
		logger.Info("kiosk: student belongs to another class",
			"student_class", int(student.Class.ID), "session_class", k.opts.ClassID)
		return
	}

	portrait, err := k.portrait(ctx, identity)
	if err != nil {
		logger.Warn("kiosk: portrait unavailable", "error", err)
		return
	}

	k.state.Student = &StudentCard{
		ID:    student.ID.String(),
		Name:  student.Name,
		Class: student.Class.Name,
	}
	k.state.Portrait = portrait

	record := schoolapi.NewRecord(int(student.ID), k.opts.ClassID, now, k.opts.AttendanceType)
	if err := k.submit(ctx, record); err != nil {
		logger.Error("kiosk: attendance submission failed", "error", err)
		k.state.Mode = Failure
	} else {
		logger.Info("kiosk: attendance recorded", "type", record.Type, "date", record.Date, "time", record.TimeIn)
		k.state.Mode = Success
	}
	k.state.ModeEnteredAt = now
}

func (k *Kiosk) detect(ctx context.Context, frame image.Image) ([]facematch.Detection, error) {
	ctx, cancel := context.WithTimeout(ctx, k.opts.CallTimeout)
	defer cancel()
	return k.detector.Detect(ctx, frame)
}

func (k *Kiosk) identify(ctx context.Context, frame image.Image, box facematch.Box) (recognition.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, k.opts.CallTimeout)
	defer cancel()
	return k.identifier.Identify(ctx, frame, box)
}

func (k *Kiosk) lookup(ctx context.Context, identity string) (*schoolapi.Student, error) {
	ctx, cancel := context.WithTimeout(ctx, k.opts.CallTimeout)
	defer cancel()
	return k.directory.Student(ctx, identity)
}

func (k *Kiosk) portrait(ctx context.Context, identity string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, k.opts.CallTimeout)
	defer cancel()
	return k.directory.Portrait(ctx, identity)
}

func (k *Kiosk) submit(ctx context.Context, record schoolapi.AttendanceRecord) error {
	ctx, cancel := context.WithTimeout(ctx, k.opts.CallTimeout)
	defer cancel()
	return k.ledger.Submit(ctx, record)
}
