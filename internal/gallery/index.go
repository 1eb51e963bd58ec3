package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/absen-kiosk/internal/fingerprint"
)

const (
	indexMaxNeighbors    = 16
	indexMetadataVersion = 1
)

// ErrStaleIndex is returned when a persisted index does not match the gallery.
var ErrStaleIndex = errors.New("index does not match gallery")

// IndexMetadata is stored next to the persisted graph to detect staleness.
type IndexMetadata struct {
	SampleCount int       `json:"sample_count"`
	Dim         int       `json:"dim"`
	Model       string    `json:"model"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"`
}

// Index classifies an embedding by a similarity-weighted vote among its
// nearest gallery samples.
type Index struct {
	graph     *hnsw.Graph[int64]
	gallery   *Gallery
	neighbors int
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildIndex builds the nearest-neighbour graph over every gallery sample.
// Node keys are sample positions in the gallery.
func BuildIndex(g *Gallery, neighbors int) *Index {
	graph := newGraph()
	for i, s := range g.samples {
		graph.Add(hnsw.MakeNode(int64(i), s.Embedding))
	}
	return &Index{graph: graph, gallery: g, neighbors: max(neighbors, 1)}
}

// LoadIndex loads a persisted graph and checks it against the gallery.
func LoadIndex(path string, g *Gallery, neighbors int) (*Index, error) {
	meta, err := LoadIndexMetadata(path)
	if err != nil {
		return nil, err
	}
	if meta.Version != indexMetadataVersion || meta.SampleCount != g.Len() || meta.Dim != g.Dim() || meta.Model != g.Model() {
		return nil, ErrStaleIndex
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	if saved.Len() != g.Len() {
		return nil, ErrStaleIndex
	}
	return &Index{graph: saved.Graph, gallery: g, neighbors: max(neighbors, 1)}, nil
}

// OpenIndex loads the persisted index at path, rebuilding and saving it when
// it is missing or stale. An empty path always builds in memory. rebuilt
// reports whether a new graph was built.
func OpenIndex(path string, g *Gallery, neighbors int) (idx *Index, rebuilt bool, err error) {
	if path != "" {
		if idx, err := LoadIndex(path, g, neighbors); err == nil {
			return idx, false, nil
		}
	}

	idx = BuildIndex(g, neighbors)
	if path != "" {
		if err := idx.Save(path); err != nil {
			return idx, true, err
		}
	}
	return idx, true, nil
}

// Save persists the graph and its metadata.
func (idx *Index) Save(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	if err := idx.graph.Export(f); err != nil {
		return fmt.Errorf("failed to export index graph: %w", err)
	}

	meta, err := json.Marshal(IndexMetadata{
		SampleCount: idx.gallery.Len(),
		Dim:         idx.gallery.Dim(),
		Model:       idx.gallery.Model(),
		BuildTime:   time.Now(),
		Version:     indexMetadataVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", meta, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadIndexMetadata loads metadata from the .meta file next to path.
func LoadIndexMetadata(path string) (IndexMetadata, error) {
	var meta IndexMetadata
	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}

// Predict returns the gallery label for an embedding. Every neighbour votes
// for its label with its positive cosine similarity; ties go to the smaller
// label. When no neighbour is similar at all the closest one decides.
func (idx *Index) Predict(embedding []float32) (string, error) {
	if len(embedding) != idx.gallery.Dim() {
		return "", fmt.Errorf("embedding has dimension %d, gallery expects %d", len(embedding), idx.gallery.Dim())
	}

	neighbors := idx.graph.Search(embedding, idx.neighbors)

	votes := make(map[string]float64)
	nearest, nearestSim := "", -2.0
	for _, n := range neighbors {
		if n.Key < 0 || int(n.Key) >= len(idx.gallery.samples) {
			continue
		}
		label := idx.gallery.samples[n.Key].Label
		sim := fingerprint.CosineSimilarity(embedding, n.Value)
		if sim > nearestSim {
			nearest, nearestSim = label, sim
		}
		if sim > 0 {
			votes[label] += sim
		}
	}
	if nearest == "" {
		return "", ErrStaleIndex
	}

	best, bestScore := nearest, 0.0
	for label, score := range votes {
		if score > bestScore || (score == bestScore && label < best) {
			best, bestScore = label, score
		}
	}
	return best, nil
}

// Len returns the number of nodes in the graph.
func (idx *Index) Len() int { return idx.graph.Len() }
