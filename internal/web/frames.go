package web

import (
	"image"
	"sync"
	"time"

	"github.com/kozaktomas/absen-kiosk/internal/constants"
	"github.com/kozaktomas/absen-kiosk/internal/facematch"
	"github.com/kozaktomas/absen-kiosk/internal/fingerprint"
	"github.com/kozaktomas/absen-kiosk/internal/kiosk"
)

// Student is the JSON form of the student shown with a result.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

// Snapshot is the published state of the kiosk after a processed frame.
type Snapshot struct {
	Frame      int            `json:"frame"`
	Mode       string         `json:"mode"`
	Title      string         `json:"title"`
	Label      string         `json:"label,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Face       *facematch.Box `json:"face,omitempty"`
	Student    *Student       `json:"student,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func snapshotFromView(v kiosk.View, now time.Time) Snapshot {
	s := Snapshot{
		Frame:      v.Frame,
		Mode:       v.Mode.String(),
		Title:      v.Title,
		Label:      v.Label,
		Confidence: v.Confidence,
		Face:       v.Face,
		UpdatedAt:  now,
	}
	if v.Student != nil {
		s.Student = &Student{ID: v.Student.ID, Name: v.Student.Name, Class: v.Student.Class}
	}
	return s
}

// FrameStore is the display sink of the kiosk loop. It keeps only the newest
// screen and snapshot for the HTTP handlers and fans snapshots out to event
// listeners. The loop never blocks on slow readers.
type FrameStore struct {
	mu        sync.Mutex
	screen    image.Image
	snapshot  Snapshot
	published bool
	// generation counts publishes; jpeg belongs to jpegGen
	generation uint64
	jpeg       []byte
	jpegGen    uint64
	listeners  map[chan Snapshot]struct{}
	closed     bool
	now        func() time.Time
	encode     func(image.Image) ([]byte, error)
}

func NewFrameStore() *FrameStore {
	return &FrameStore{
		listeners: make(map[chan Snapshot]struct{}),
		now:       time.Now,
		encode: func(img image.Image) ([]byte, error) {
			return fingerprint.EncodeJPEG(img, constants.FrameJPEGQuality)
		},
	}
}

// Publish replaces the current screen and notifies listeners.
func (s *FrameStore) Publish(screen image.Image, view kiosk.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.screen = screen
	s.snapshot = snapshotFromView(view, s.now())
	s.published = true
	s.generation++

	for ch := range s.listeners {
		// mailbox: drop the unread snapshot, keep the newest
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.snapshot:
		default:
		}
	}
}

// Close disconnects every listener. Later publishes are ignored.
func (s *FrameStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for ch := range s.listeners {
		close(ch)
		delete(s.listeners, ch)
	}
	return nil
}

// Snapshot returns the latest snapshot and whether anything was published yet.
func (s *FrameStore) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.published
}

// JPEG returns the latest screen encoded as JPEG. The encoding is cached
// until the next publish and runs without holding the lock, so Publish is
// never held up by an HTTP reader.
func (s *FrameStore) JPEG() ([]byte, bool, error) {
	s.mu.Lock()
	screen, gen := s.screen, s.generation
	if screen == nil {
		s.mu.Unlock()
		return nil, false, nil
	}
	if s.jpeg != nil && s.jpegGen == gen {
		data := s.jpeg
		s.mu.Unlock()
		return data, true, nil
	}
	s.mu.Unlock()

	data, err := s.encode(screen)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	if s.generation == gen {
		s.jpeg, s.jpegGen = data, gen
	}
	s.mu.Unlock()
	return data, true, nil
}

// Subscribe registers a listener. The returned channel holds at most one
// pending snapshot and is closed when the store closes.
func (s *FrameStore) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.listeners[ch] = struct{}{}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.listeners[ch]; ok {
			delete(s.listeners, ch)
			close(ch)
		}
	}
}
