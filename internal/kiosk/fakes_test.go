package kiosk

import (
	"context"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/kozaktomas/absen-kiosk/internal/facematch"
	"github.com/kozaktomas/absen-kiosk/internal/recognition"
	"github.com/kozaktomas/absen-kiosk/internal/schoolapi"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDetector struct {
	detections  []facematch.Detection
	err         error
	calls       int
	hang        bool // wait for the context instead of answering
	sawDeadline bool
}

func (f *fakeDetector) Detect(ctx context.Context, _ image.Image) ([]facematch.Detection, error) {
	f.calls++
	_, f.sawDeadline = ctx.Deadline()
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.detections, f.err
}

type fakeIdentifier struct {
	result      recognition.Result
	err         error
	calls       int
	sawDeadline bool
}

func (f *fakeIdentifier) Identify(ctx context.Context, _ image.Image, _ facematch.Box) (recognition.Result, error) {
	f.calls++
	_, f.sawDeadline = ctx.Deadline()
	return f.result, f.err
}

type fakeDirectory struct {
	students      map[string]*schoolapi.Student
	studentErr    error
	portraitErr   error
	studentCalls  int
	portraitCalls int
	sawDeadline   bool
}

func (f *fakeDirectory) Student(ctx context.Context, identity string) (*schoolapi.Student, error) {
	f.studentCalls++
	_, f.sawDeadline = ctx.Deadline()
	if f.studentErr != nil {
		return nil, f.studentErr
	}
	s, ok := f.students[identity]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return s, nil
}

func (f *fakeDirectory) Portrait(context.Context, string) (image.Image, error) {
	f.portraitCalls++
	if f.portraitErr != nil {
		return nil, f.portraitErr
	}
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

type fakeLedger struct {
	err     error
	records []schoolapi.AttendanceRecord
}

func (f *fakeLedger) Submit(_ context.Context, record schoolapi.AttendanceRecord) error {
	f.records = append(f.records, record)
	return f.err
}

// oneFace is a detector result with a single face.
var oneFace = []facematch.Detection{{Box: facematch.Box{X1: 10, Y1: 10, X2: 110, Y2: 130}, Score: 0.99}}

func known(label string, confidence float64) recognition.Result {
	return recognition.Result{Label: label, Classified: label, Confidence: confidence}
}

func student(id, classID int) *schoolapi.Student {
	return &schoolapi.Student{
		ID:    schoolapi.ID(id),
		Name:  "Siti Aisyah",
		Class: schoolapi.Class{ID: schoolapi.ID(classID), Name: "XII IPA 1"},
	}
}

var t0 = time.Date(2026, 3, 9, 7, 15, 0, 0, time.Local)

func at(d time.Duration) time.Time {
	return t0.Add(d)
}
