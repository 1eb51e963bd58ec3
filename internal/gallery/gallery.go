// Package gallery holds the pre-trained face gallery: labelled reference
// embeddings, the similarity gate over them and the nearest-neighbour label
// classifier.
package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoGallery is returned when the gallery file is missing or holds no samples.
var ErrNoGallery = errors.New("no gallery available")

// Sample is one labelled reference embedding.
type Sample struct {
	Label     string    `json:"label"`
	Embedding []float32 `json:"embedding"`
}

// File is the on-disk gallery format distributed by the school backend.
type File struct {
	Model   string   `json:"model"`
	Dim     int      `json:"dim"`
	Samples []Sample `json:"samples"`
}

// Gallery is an immutable set of reference embeddings. The embeddings are
// kept as a row-normalised matrix so a single matrix-vector product yields
// the cosine similarity against every sample.
type Gallery struct {
	model   string
	dim     int
	samples []Sample
	labels  []string
	unit    *mat.Dense
}

// Load reads a gallery file from disk.
func Load(path string) (*Gallery, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrNoGallery, path)
		}
		return nil, fmt.Errorf("failed to read gallery: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse gallery %s: %w", path, err)
	}
	return New(f)
}

// New validates a gallery file and prepares it for scoring.
func New(f File) (*Gallery, error) {
	if len(f.Samples) == 0 {
		return nil, ErrNoGallery
	}

	dim := f.Dim
	if dim == 0 {
		dim = len(f.Samples[0].Embedding)
	}
	if dim == 0 {
		return nil, fmt.Errorf("gallery sample 0 has an empty embedding")
	}

	unit := mat.NewDense(len(f.Samples), dim, nil)
	seen := make(map[string]bool)
	var labels []string
	for i, s := range f.Samples {
		if len(s.Embedding) != dim {
			return nil, fmt.Errorf("gallery sample %d has dimension %d, expected %d", i, len(s.Embedding), dim)
		}
		if s.Label == "" {
			return nil, fmt.Errorf("gallery sample %d has no label", i)
		}
		if !seen[s.Label] {
			seen[s.Label] = true
			labels = append(labels, s.Label)
		}

		row := toFloat64(s.Embedding)
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
		unit.SetRow(i, row)
	}
	slices.Sort(labels)

	return &Gallery{
		model:   f.Model,
		dim:     dim,
		samples: f.Samples,
		labels:  labels,
		unit:    unit,
	}, nil
}

// Confidence returns the highest cosine similarity between query and any
// gallery embedding. A query of the wrong dimension or zero norm scores 0.
func (g *Gallery) Confidence(query []float32) float64 {
	if len(query) != g.dim {
		return 0
	}
	q := toFloat64(query)
	norm := floats.Norm(q, 2)
	if norm == 0 || math.IsNaN(norm) {
		return 0
	}
	floats.Scale(1/norm, q)

	var sims mat.VecDense
	sims.MulVec(g.unit, mat.NewVecDense(g.dim, q))
	return floats.Max(sims.RawVector().Data)
}

// Dim returns the embedding dimension.
func (g *Gallery) Dim() int { return g.dim }

// Model returns the name of the embedding model the gallery was built with.
func (g *Gallery) Model() string { return g.model }

// Labels returns the distinct identity labels, sorted.
func (g *Gallery) Labels() []string { return slices.Clone(g.labels) }

// Len returns the number of reference samples.
func (g *Gallery) Len() int { return len(g.samples) }

// SampleCounts returns the number of samples per label.
func (g *Gallery) SampleCounts() map[string]int {
	counts := make(map[string]int, len(g.labels))
	for _, s := range g.samples {
		counts[s.Label]++
	}
	return counts
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
