package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/absen-kiosk/internal/config"
	"github.com/kozaktomas/absen-kiosk/internal/schoolapi"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Model distribution commands",
	Long:  `Commands for downloading the recognition gallery from the school backend.`,
}

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download missing or outdated model files",
	Long: `Download the model files listed by the school backend into the model
directory. Files whose size and modification time match are skipped.

Examples:
  # Sync into {project}/scripts/Model
  absen-kiosk models sync --project-path /opt/absen

  # JSON output for scripting
  absen-kiosk models sync --dir ./Model --json`,
	RunE: runModelsSync,
}

var modelsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep model files in sync on a schedule",
	Long: `Run a model sync immediately and then every MODEL_SYNC_INTERVAL_MINUTES
(or --interval) until interrupted.`,
	RunE: runModelsWatch,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsWatchCmd)

	modelsCmd.PersistentFlags().String("dir", "", "Model directory (overrides KIOSK_MODEL_DIR)")
	modelsCmd.PersistentFlags().String("project-path", ".", "Project directory used for the default model directory")
	modelsSyncCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
	modelsWatchCmd.Flags().Duration("interval", 0, "Sync interval (overrides MODEL_SYNC_INTERVAL_MINUTES)")
}

// ModelsSyncResult represents the result of a model sync
type ModelsSyncResult struct {
	Success    bool     `json:"success"`
	Total      int      `json:"total"`
	Downloaded []string `json:"downloaded"`
	Skipped    []string `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// modelsSetup loads the configuration and returns the school client and the
// target model directory.
func modelsSetup(cmd *cobra.Command) (*schoolapi.Client, string, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", nil, err
	}
	if dir := mustGetString(cmd, "dir"); dir != "" {
		cfg.Paths.ModelDir = dir
	}
	cfg.Resolve(mustGetString(cmd, "project-path"))

	if cfg.School.URL == "" {
		return nil, "", nil, errors.New("APP_URL environment variable is required")
	}
	client, err := schoolapi.NewClientWithCapture(cfg.School.URL, cfg.School.Timeout, captureDir)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create school API client: %w", err)
	}

	dir, err := filepath.Abs(cfg.Paths.ModelDir)
	if err != nil {
		return nil, "", nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, "", nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	return client, dir, cfg, nil
}

func runModelsSync(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	client, dir, _, err := modelsSetup(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	startTime := time.Now()

	if !jsonOutput {
		fmt.Println("Fetching model list...")
	}
	files, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	if len(files) == 0 {
		if jsonOutput {
			return outputJSON(ModelsSyncResult{Success: true, DurationMs: time.Since(startTime).Milliseconds()})
		}
		fmt.Println("No model files published.")
		return nil
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		fmt.Printf("Found %d model files, syncing into %s\n\n", len(files), dir)
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Syncing models"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	res, err := client.SyncFiles(ctx, files, dir, func(schoolapi.ModelFile) {
		if bar != nil {
			bar.Add(1) //nolint:errcheck // progress output only
		}
	})
	if err != nil {
		return fmt.Errorf("model sync failed: %w", err)
	}
	if bar != nil {
		fmt.Println()
	}

	result := ModelsSyncResult{
		Success:    len(res.Errors) == 0,
		Total:      res.Total,
		Downloaded: res.Downloaded,
		Skipped:    res.Skipped,
		DurationMs: time.Since(startTime).Milliseconds(),
	}
	for _, e := range res.Errors {
		result.Errors = append(result.Errors, e.Error())
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println("\nSync complete!")
	fmt.Printf("  Files listed:     %d\n", result.Total)
	fmt.Printf("  Downloaded:       %d\n", len(result.Downloaded))
	fmt.Printf("  Already current:  %d\n", len(result.Skipped))
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors:           %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
		return fmt.Errorf("%d model files failed to download", len(result.Errors))
	}
	fmt.Printf("  Duration:         %s\n", formatDuration(time.Since(startTime)))
	return nil
}

func runModelsWatch(cmd *cobra.Command, args []string) error {
	client, dir, cfg, err := modelsSetup(cmd)
	if err != nil {
		return err
	}
	interval := mustGetDuration(cmd, "interval")
	if interval <= 0 {
		interval = cfg.Models.SyncInterval
	}
	logger := newLogger(false).With("dir", dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := gocron.NewScheduler(time.Local)
	scheduler.SingletonModeAll()

	_, err = scheduler.Every(interval).Do(func() {
		res, err := client.SyncModels(ctx, dir, nil)
		if err != nil {
			logger.Error("model sync failed", "error", err)
			return
		}
		logger.Info("model sync finished",
			"total", res.Total, "downloaded", len(res.Downloaded), "errors", len(res.Errors))
		for _, e := range res.Errors {
			logger.Warn("model download failed", "error", e)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule model sync: %w", err)
	}

	scheduler.StartAsync()
	logger.Info("watching models", "interval", interval)

	<-ctx.Done()
	scheduler.Stop()
	logger.Info("model watch stopped")
	return nil
}
