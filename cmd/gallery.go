package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/absen-kiosk/internal/config"
	"github.com/kozaktomas/absen-kiosk/internal/facematch"
	"github.com/kozaktomas/absen-kiosk/internal/fingerprint"
	"github.com/kozaktomas/absen-kiosk/internal/gallery"
	"github.com/kozaktomas/absen-kiosk/internal/recognition"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Recognition gallery commands",
	Long:  `Commands for inspecting the recognition gallery and its classifier index.`,
}

var galleryInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the gallery contents and index status",
	Long: `Load the gallery from the model directory and print its model, dimension
and the number of samples per student.

Examples:
  absen-kiosk gallery info --project-path /opt/absen
  absen-kiosk gallery info --dir ./Model --json`,
	RunE: runGalleryInfo,
}

var galleryIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and save the classifier index",
	Long: `Build the nearest-neighbour classifier index over every gallery sample and
save it next to the gallery. The kiosk rebuilds a stale index on start, this
command does it ahead of time.`,
	RunE: runGalleryIndex,
}

var galleryIdentifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Identify the largest face in an image",
	Long: `Run the kiosk recognition pipeline on a single image: detect faces with
the embedding sidecar, pick the largest one and classify it against the gallery.

Examples:
  absen-kiosk gallery identify snapshot.jpg
  absen-kiosk gallery identify snapshot.jpg --threshold 0.6 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runGalleryIdentify,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryInfoCmd)
	galleryCmd.AddCommand(galleryIndexCmd)
	galleryCmd.AddCommand(galleryIdentifyCmd)

	galleryCmd.PersistentFlags().String("dir", "", "Model directory (overrides KIOSK_MODEL_DIR)")
	galleryCmd.PersistentFlags().String("project-path", ".", "Project directory used for the default model directory")
	galleryCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	galleryIdentifyCmd.Flags().Float64("threshold", -2, "Similarity threshold (default from tuning)")
}

// GalleryInfo is the JSON output of gallery info
type GalleryInfo struct {
	Path    string                `json:"path"`
	Model   string                `json:"model"`
	Dim     int                   `json:"dim"`
	Samples int                   `json:"samples"`
	Classes map[string]int        `json:"classes"`
	Index   *gallery.IndexMetadata `json:"index,omitempty"`
}

// IdentifyResult is the JSON output of gallery identify
type IdentifyResult struct {
	Faces      int            `json:"faces"`
	Box        *facematch.Box `json:"box,omitempty"`
	Label      string         `json:"label,omitempty"`
	Classified string         `json:"classified,omitempty"`
	Confidence float64        `json:"confidence"`
}

func galleryConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dir := mustGetString(cmd, "dir"); dir != "" {
		cfg.Paths.ModelDir = dir
	}
	cfg.Resolve(mustGetString(cmd, "project-path"))
	return cfg, nil
}

func runGalleryInfo(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg, err := galleryConfig(cmd)
	if err != nil {
		return err
	}

	g, err := gallery.Load(cfg.GalleryPath())
	if err != nil {
		return err
	}

	info := GalleryInfo{
		Path:    cfg.GalleryPath(),
		Model:   g.Model(),
		Dim:     g.Dim(),
		Samples: g.Len(),
		Classes: g.SampleCounts(),
	}
	if meta, err := gallery.LoadIndexMetadata(cfg.IndexPath()); err == nil {
		info.Index = &meta
	}

	if jsonOutput {
		return outputJSON(info)
	}

	fmt.Printf("Gallery: %s\n", info.Path)
	fmt.Printf("  Model:    %s\n", info.Model)
	fmt.Printf("  Dim:      %d\n", info.Dim)
	fmt.Printf("  Samples:  %d\n", info.Samples)
	fmt.Printf("  Students: %d\n", len(info.Classes))
	if info.Index != nil {
		stale := info.Index.SampleCount != info.Samples || info.Index.Dim != info.Dim || info.Index.Model != info.Model
		fmt.Printf("  Index:    built %s (%d samples", info.Index.BuildTime.Format(time.DateTime), info.Index.SampleCount)
		if stale {
			fmt.Print(", stale")
		}
		fmt.Println(")")
	} else {
		fmt.Println("  Index:    not built")
	}

	labels := g.Labels()
	sort.Strings(labels)
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tSAMPLES")
	for _, label := range labels {
		fmt.Fprintf(w, "%s\t%d\n", label, info.Classes[label])
	}
	return w.Flush()
}

func runGalleryIndex(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg, err := galleryConfig(cmd)
	if err != nil {
		return err
	}

	g, err := gallery.Load(cfg.GalleryPath())
	if err != nil {
		return err
	}

	start := time.Now()
	idx := gallery.BuildIndex(g, cfg.Tuning.Recognition.ClassifierNeighbors)
	if err := idx.Save(cfg.IndexPath()); err != nil {
		return err
	}
	meta, err := gallery.LoadIndexMetadata(cfg.IndexPath())
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(meta)
	}
	fmt.Printf("Index built with %d nodes in %s\n", idx.Len(), formatDuration(time.Since(start)))
	fmt.Printf("  Saved to: %s\n", cfg.IndexPath())
	return nil
}

func runGalleryIdentify(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg, err := galleryConfig(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	frame, err := fingerprint.DecodeImage(data)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	g, err := gallery.Load(cfg.GalleryPath())
	if err != nil {
		return err
	}
	idx, _, err := gallery.OpenIndex(cfg.IndexPath(), g, cfg.Tuning.Recognition.ClassifierNeighbors)
	if err != nil && !jsonOutput {
		fmt.Fprintf(os.Stderr, "Warning: index not saved: %v\n", err)
	}

	threshold := mustGetFloat64(cmd, "threshold")
	if threshold < -1 {
		threshold = cfg.Tuning.Recognition.Threshold
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	embedder := fingerprint.NewEmbeddingClient(cfg.Embedding.URL, cfg.Embedding.Timeout)
	detections, err := embedder.Detect(ctx, frame)
	if err != nil {
		return fmt.Errorf("face detection failed: %w", err)
	}

	result := IdentifyResult{Faces: len(detections)}
	face, ok := facematch.SelectLargest(detections)
	if ok {
		identifier := recognition.NewIdentifier(embedder, idx, g,
			recognition.NewCache(1, recognition.ClearAll{}), threshold, cfg.Tuning.Recognition.FaceSize)
		res, err := identifier.Identify(ctx, frame, face.Box)
		if err != nil && !errors.Is(err, recognition.ErrEmptyCrop) {
			return fmt.Errorf("identification failed: %w", err)
		}
		result.Box = &face.Box
		result.Label = res.Label
		result.Classified = res.Classified
		result.Confidence = res.Confidence
	}

	if jsonOutput {
		return outputJSON(result)
	}
	if !ok {
		fmt.Println("No face found.")
		return nil
	}
	fmt.Printf("Faces detected: %d\n", result.Faces)
	fmt.Printf("  Largest face: [%.0f, %.0f, %.0f, %.0f]\n", face.Box.X1, face.Box.Y1, face.Box.X2, face.Box.Y2)
	fmt.Printf("  Label:        %s\n", result.Label)
	if result.Classified != "" && result.Classified != result.Label {
		fmt.Printf("  Classified:   %s (below threshold %.2f)\n", result.Classified, threshold)
	}
	fmt.Printf("  Confidence:   %.3f\n", result.Confidence)
	return nil
}
