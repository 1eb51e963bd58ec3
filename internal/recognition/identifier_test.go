package recognition

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/kozaktomas/absen-kiosk/internal/facematch"
)

type fakeEmbedder struct {
	embedding []float32
	err       error
	calls     int
	lastSize  image.Rectangle
}

func (f *fakeEmbedder) Embed(_ context.Context, face image.Image) ([]float32, error) {
	f.calls++
	f.lastSize = face.Bounds()
	return f.embedding, f.err
}

type fakeClassifier struct {
	label string
	err   error
	calls int
}

func (f *fakeClassifier) Predict([]float32) (string, error) {
	f.calls++
	return f.label, f.err
}

type fakeScorer struct {
	confidence float64
	calls      int
}

func (f *fakeScorer) Confidence([]float32) float64 {
	f.calls++
	return f.confidence
}

func newTestIdentifier(emb *fakeEmbedder, cls *fakeClassifier, sc *fakeScorer) *Identifier {
	return NewIdentifier(emb, cls, sc, NewCache(DefaultCacheSize, nil), DefaultThreshold, DefaultFaceSize)
}

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

func TestIdentify_Known(t *testing.T) {
	emb := &fakeEmbedder{embedding: []float32{0.1, 0.2}}
	cls := &fakeClassifier{label: "1001"}
	sc := &fakeScorer{confidence: 0.92}

	res, err := newTestIdentifier(emb, cls, sc).Identify(context.Background(), testFrame(), facematch.Box{X1: 100, Y1: 100, X2: 200, Y2: 220})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Label != "1001" || res.Confidence != 0.92 || !res.Known() {
		t.Errorf("unexpected result %+v", res)
	}
	if res.CacheHit {
		t.Error("first identification should be a cache miss")
	}
	if emb.lastSize != image.Rect(0, 0, DefaultFaceSize, DefaultFaceSize) {
		t.Errorf("expected face normalized to %dx%d, got %v", DefaultFaceSize, DefaultFaceSize, emb.lastSize)
	}
}

func TestIdentify_BelowThreshold(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		wantLabel  string
	}{
		{"well below", 0.3, UnknownLabel},
		{"just below", 0.6999, UnknownLabel},
		{"exactly threshold", 0.7, "1001"},
		{"above", 0.71, "1001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := newTestIdentifier(&fakeEmbedder{embedding: []float32{1}}, &fakeClassifier{label: "1001"}, &fakeScorer{confidence: tt.confidence})
			res, err := id.Identify(context.Background(), testFrame(), facematch.Box{X1: 0, Y1: 0, X2: 50, Y2: 50})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Label != tt.wantLabel {
				t.Errorf("label = %q, want %q", res.Label, tt.wantLabel)
			}
			if res.Classified != "1001" {
				t.Errorf("classified label should be kept, got %q", res.Classified)
			}
		})
	}
}

func TestIdentify_CacheReusesLabelWithFreshConfidence(t *testing.T) {
	emb := &fakeEmbedder{embedding: []float32{0.5, 0.5}}
	cls := &fakeClassifier{label: "1001"}
	sc := &fakeScorer{confidence: 0.9}
	id := newTestIdentifier(emb, cls, sc)
	box := facematch.Box{X1: 10, Y1: 10, X2: 90, Y2: 90}

	if _, err := id.Identify(context.Background(), testFrame(), box); err != nil {
		t.Fatal(err)
	}

	// the classifier would now answer differently, the cached label wins
	cls.label = "2002"
	sc.confidence = 0.75

	res, err := id.Identify(context.Background(), testFrame(), box)
	if err != nil {
		t.Fatal(err)
	}
	if !res.CacheHit {
		t.Error("expected cache hit for identical embedding")
	}
	if res.Label != "1001" {
		t.Errorf("expected cached label, got %q", res.Label)
	}
	if res.Confidence != 0.75 {
		t.Errorf("expected fresh confidence 0.75, got %v", res.Confidence)
	}
	if cls.calls != 1 {
		t.Errorf("classifier should run once, ran %d times", cls.calls)
	}
	if sc.calls != 2 {
		t.Errorf("confidence should be computed every time, ran %d times", sc.calls)
	}
	if id.CacheLen() != 1 {
		t.Errorf("expected one cached fingerprint, got %d", id.CacheLen())
	}
}

func TestIdentify_CacheHitStillGated(t *testing.T) {
	emb := &fakeEmbedder{embedding: []float32{0.5, 0.5}}
	sc := &fakeScorer{confidence: 0.9}
	id := newTestIdentifier(emb, &fakeClassifier{label: "1001"}, sc)
	box := facematch.Box{X1: 10, Y1: 10, X2: 90, Y2: 90}

	if _, err := id.Identify(context.Background(), testFrame(), box); err != nil {
		t.Fatal(err)
	}
	sc.confidence = 0.2
	res, err := id.Identify(context.Background(), testFrame(), box)
	if err != nil {
		t.Fatal(err)
	}
	if res.Label != UnknownLabel {
		t.Errorf("cache hit below threshold should be Unknown, got %q", res.Label)
	}
}

func TestIdentify_EmptyCrop(t *testing.T) {
	tests := []struct {
		name string
		box  facematch.Box
	}{
		{"outside frame", facematch.Box{X1: 700, Y1: 500, X2: 800, Y2: 600}},
		{"zero width", facematch.Box{X1: 10, Y1: 10, X2: 10, Y2: 50}},
		{"inverted", facematch.Box{X1: 50, Y1: 50, X2: 10, Y2: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &fakeEmbedder{embedding: []float32{1}}
			id := newTestIdentifier(emb, &fakeClassifier{label: "x"}, &fakeScorer{confidence: 1})
			_, err := id.Identify(context.Background(), testFrame(), tt.box)
			if !errors.Is(err, ErrEmptyCrop) {
				t.Errorf("expected ErrEmptyCrop, got %v", err)
			}
			if emb.calls != 0 {
				t.Error("embedder should not run for an empty crop")
			}
		})
	}
}

func TestIdentify_PartiallyOutsideIsClamped(t *testing.T) {
	emb := &fakeEmbedder{embedding: []float32{1}}
	id := newTestIdentifier(emb, &fakeClassifier{label: "1001"}, &fakeScorer{confidence: 1})
	if _, err := id.Identify(context.Background(), testFrame(), facematch.Box{X1: -40, Y1: -40, X2: 30, Y2: 30}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 1 {
		t.Error("expected clamped crop to be embedded")
	}
}

func TestIdentify_CollaboratorErrors(t *testing.T) {
	box := facematch.Box{X1: 0, Y1: 0, X2: 40, Y2: 40}

	id := newTestIdentifier(&fakeEmbedder{err: errors.New("sidecar down")}, &fakeClassifier{label: "x"}, &fakeScorer{})
	if _, err := id.Identify(context.Background(), testFrame(), box); err == nil {
		t.Error("expected embed error")
	}

	cls := &fakeClassifier{err: errors.New("no graph")}
	id = newTestIdentifier(&fakeEmbedder{embedding: []float32{1}}, cls, &fakeScorer{confidence: 1})
	if _, err := id.Identify(context.Background(), testFrame(), box); err == nil {
		t.Error("expected classifier error")
	}
	if id.CacheLen() != 0 {
		t.Error("failed classification must not be cached")
	}
}
