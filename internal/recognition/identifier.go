// Package recognition resolves a detected face to a gallery identity.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kozaktomas/absen-kiosk/internal/constants"
	"github.com/kozaktomas/absen-kiosk/internal/facematch"
	"github.com/kozaktomas/absen-kiosk/internal/fingerprint"
)

const (
	// UnknownLabel is reported for faces below the similarity threshold.
	UnknownLabel = constants.UnknownLabel

	DefaultThreshold = 0.7
	DefaultFaceSize  = 160
)

// ErrEmptyCrop is returned when the face box has no area inside the frame.
var ErrEmptyCrop = errors.New("face crop is empty")

// Embedder computes the embedding of a normalized face image.
type Embedder interface {
	Embed(ctx context.Context, face image.Image) ([]float32, error)
}

// LabelClassifier maps an embedding to the most likely gallery label.
type LabelClassifier interface {
	Predict(embedding []float32) (string, error)
}

// Scorer returns the best similarity between an embedding and the gallery.
type Scorer interface {
	Confidence(embedding []float32) float64
}

// Result is the outcome of identifying one face.
type Result struct {
	Label      string
	Confidence float64
	// Classified is the label before the threshold was applied.
	Classified string
	CacheHit   bool
}

// Known reports whether the face passed the similarity threshold.
func (r Result) Known() bool {
	return r.Label != UnknownLabel
}

// Identifier crops, embeds and classifies faces, memoising the classifier
// per embedding fingerprint.
type Identifier struct {
	embedder   Embedder
	classifier LabelClassifier
	scorer     Scorer
	cache      *Cache
	threshold  float64
	faceSize   int
}

// NewIdentifier wires the collaborators. faceSize falls back to the default
// when not positive.
func NewIdentifier(embedder Embedder, classifier LabelClassifier, scorer Scorer, cache *Cache, threshold float64, faceSize int) *Identifier {
	if cache == nil {
		cache = NewCache(DefaultCacheSize, nil)
	}
	if faceSize <= 0 {
		faceSize = DefaultFaceSize
	}
	return &Identifier{
		embedder:   embedder,
		classifier: classifier,
		scorer:     scorer,
		cache:      cache,
		threshold:  threshold,
		faceSize:   faceSize,
	}
}

// Identify resolves the face inside box. A cached label is reused for a
// known fingerprint, the confidence is always computed fresh.
func (id *Identifier) Identify(ctx context.Context, frame image.Image, box facematch.Box) (Result, error) {
	rect := box.Clamp(frame.Bounds())
	if rect.Empty() {
		return Result{}, ErrEmptyCrop
	}

	face := fingerprint.Normalize(fingerprint.Crop(frame, rect), id.faceSize, id.faceSize)

	embedding, err := id.embedder.Embed(ctx, face)
	if err != nil {
		return Result{}, fmt.Errorf("could not embed face: %w", err)
	}

	key := fingerprint.Key(embedding)
	label, hit := id.cache.Get(key)
	if !hit {
		label, err = id.classifier.Predict(embedding)
		if err != nil {
			return Result{}, fmt.Errorf("could not classify face: %w", err)
		}
		id.cache.Put(key, label)
	}

	res := Result{
		Label:      label,
		Confidence: id.scorer.Confidence(embedding),
		Classified: label,
		CacheHit:   hit,
	}
	if res.Confidence < id.threshold {
		res.Label = UnknownLabel
	}
	return res, nil
}

// CacheLen returns the number of memoised fingerprints.
func (id *Identifier) CacheLen() int {
	return id.cache.Len()
}
