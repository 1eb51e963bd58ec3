package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/absen-kiosk/internal/capture"
	"github.com/kozaktomas/absen-kiosk/internal/config"
	"github.com/kozaktomas/absen-kiosk/internal/display"
	"github.com/kozaktomas/absen-kiosk/internal/fingerprint"
	"github.com/kozaktomas/absen-kiosk/internal/gallery"
	"github.com/kozaktomas/absen-kiosk/internal/kiosk"
	"github.com/kozaktomas/absen-kiosk/internal/recognition"
	"github.com/kozaktomas/absen-kiosk/internal/schoolapi"
	"github.com/kozaktomas/absen-kiosk/internal/web"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the attendance kiosk",
	Long: `Run the attendance kiosk for one class session.

The session parameters are read as a single JSON line from stdin, the way the
launcher hands them over:

  {"selected_class_id": 7, "selected_class_name": "XII IPA 1",
   "project_path": "/opt/absen", "tipe_absen": "masuk",
   "env_path": "/opt/absen/.env"}

When --class-id is given the parameters are taken from flags instead.

The composed kiosk screen is served on KIOSK_HTTP_ADDR. Stop the kiosk with
Ctrl+C, SIGTERM or POST /api/v1/quit.

Examples:
  # Launcher mode
  echo '{"selected_class_id":7,...}' | absen-kiosk run

  # Manual session
  absen-kiosk run --class-id 7 --class-name "XII IPA 1" \
    --project-path /opt/absen --env-file /opt/absen/.env --type keluar

  # Replay recorded frames instead of the camera
  absen-kiosk run --class-id 7 ... --replay ./frames --replay-interval 33ms`,
	RunE: runKiosk,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("class-id", 0, "Class id of the session (reads stdin when not set)")
	runCmd.Flags().String("class-name", "", "Class name shown in the title")
	runCmd.Flags().String("project-path", "", "Project directory holding scripts/Model and scripts/Resources")
	runCmd.Flags().String("type", "masuk", "Attendance type: masuk or keluar")
	runCmd.Flags().String("env-file", "", "Path of the .env file with APP_URL")
	runCmd.Flags().String("replay", "", "Replay frames from this directory instead of the camera")
	runCmd.Flags().Duration("replay-interval", 0, "Delay between replayed frames")
	runCmd.Flags().String("addr", "", "Status server address (overrides KIOSK_HTTP_ADDR)")
	runCmd.Flags().Bool("debug", false, "Enable debug logging")
}

func readSession(cmd *cobra.Command, stdin io.Reader) (*config.Session, error) {
	if !cmd.Flags().Changed("class-id") {
		return config.ReadSession(stdin)
	}
	s := &config.Session{
		ClassID:        mustGetInt(cmd, "class-id"),
		ClassName:      mustGetString(cmd, "class-name"),
		ProjectPath:    mustGetString(cmd, "project-path"),
		AttendanceType: mustGetString(cmd, "type"),
		EnvPath:        mustGetString(cmd, "env-file"),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runKiosk(cmd *cobra.Command, args []string) error {
	session, err := readSession(cmd, cmd.InOrStdin())
	if err != nil {
		return err
	}

	logger := newLogger(mustGetBool(cmd, "debug")).With(
		"session", uuid.NewString(),
		"class_id", session.ClassID,
	)

	if err := session.LoadEnv(); err != nil {
		logger.Warn("env file not loaded, using the process environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Resolve(session.ProjectPath)
	if replay := mustGetString(cmd, "replay"); replay != "" {
		cfg.Camera.ReplayDir = replay
	}
	if addr := mustGetString(cmd, "addr"); addr != "" {
		cfg.Web.Addr = addr
	}
	if cfg.School.URL == "" {
		return errors.New("APP_URL environment variable is required")
	}
	tuning := cfg.Tuning

	// Recognition
	g, err := gallery.Load(cfg.GalleryPath())
	if err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}
	idx, rebuilt, err := gallery.OpenIndex(cfg.IndexPath(), g, tuning.Recognition.ClassifierNeighbors)
	if err != nil {
		logger.Warn("classifier index not persisted", "error", err)
	}
	logger.Info("gallery loaded",
		"samples", g.Len(), "classes", len(g.Labels()), "dim", g.Dim(), "index_rebuilt", rebuilt)

	embedder := fingerprint.NewEmbeddingClient(cfg.Embedding.URL, cfg.Embedding.Timeout)
	cache := recognition.NewCache(tuning.Recognition.CacheSize, recognition.ClearAll{})
	identifier := recognition.NewIdentifier(embedder, idx, g, cache,
		tuning.Recognition.Threshold, tuning.Recognition.FaceSize)

	// School backend
	school, err := schoolapi.NewClientWithCapture(cfg.School.URL, cfg.School.Timeout, captureDir)
	if err != nil {
		return fmt.Errorf("failed to create school API client: %w", err)
	}

	k := kiosk.New(embedder, identifier, school, school, kiosk.Options{
		ClassID:        session.ClassID,
		AttendanceType: session.AttendanceType,
		Title:          session.Title(),
		PrintDelay:     tuning.Debounce.PrintDelay,
		ModeDuration:   tuning.Display.ModeDuration,
		CallTimeout:    cfg.School.Timeout,
	}, logger)

	// Display
	face, err := display.NewFace()
	if err != nil {
		return err
	}
	resources, err := display.LoadResources(cfg.Paths.ResourcesDir, face, logger)
	if err != nil {
		return fmt.Errorf("failed to load display resources: %w", err)
	}
	compositor := display.NewCompositor(resources, face)

	source, err := openSource(cfg.Camera, mustGetDuration(cmd, "replay-interval"), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := web.NewFrameStore()
	server := web.NewServer(cfg.Web.Addr, store, stop, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("status server failed", "error", err)
		}
	}()

	loop := kiosk.NewLoop(source, k, compositor, store, embedder, kiosk.LoopOptions{
		FrameSkip:           tuning.Loop.FrameSkip,
		ScratchReleaseEvery: tuning.Loop.ScratchReleaseEvery,
		GCEvery:             tuning.Loop.GCEvery,
	}, logger)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("sd_notify failed", "error", err)
	} else if sent {
		logger.Debug("notified systemd")
	}
	logger.Info("kiosk started", "title", session.Title(), "type", session.AttendanceType)

	runErr := loop.Run(ctx)
	logger.Info("kiosk stopped",
		"frames", loop.Frames(), "processed", loop.Processed(), "cached_fingerprints", identifier.CacheLen())

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status server shutdown failed", "error", err)
	}

	if runErr != nil && cfg.Camera.ReplayDir != "" && errors.Is(runErr, io.EOF) {
		logger.Info("replay finished", "frames", loop.Frames(), "processed", loop.Processed())
		return nil
	}
	return runErr
}

func openSource(cam config.CameraConfig, replayInterval time.Duration, logger *slog.Logger) (kiosk.Source, error) {
	if cam.ReplayDir != "" {
		replay, err := capture.NewReplay(cam.ReplayDir, replayInterval)
		if err != nil {
			return nil, err
		}
		logger.Info("replaying frames", "dir", cam.ReplayDir, "frames", replay.Len())
		return replay, nil
	}
	webcam, err := capture.OpenWebcam(cam.Device, cam.Width, cam.Height, logger)
	if err != nil {
		return nil, err
	}
	return webcam, nil
}
