package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	School    SchoolConfig
	Embedding EmbeddingConfig
	Camera    CameraConfig
	Paths     PathsConfig
	Web       WebConfig
	Models    ModelsConfig
	Tuning    TuningConfig
}

type SchoolConfig struct {
	URL     string        // base URL of the school backend (APP_URL)
	Timeout time.Duration // per-call timeout for directory, portrait and submission calls
}

type EmbeddingConfig struct {
	URL     string        // defaults to http://localhost:8000
	Timeout time.Duration // per-request timeout of the face sidecar
}

type CameraConfig struct {
	Device    string // V4L2 device, defaults to /dev/video0
	Width     int
	Height    int
	ReplayDir string // when set, frames are replayed from image files instead of the camera
}

// PathsConfig holds directories that default to locations inside the project
// path handed over by the launcher. Empty values are filled by Resolve.
type PathsConfig struct {
	ModelDir     string
	ResourcesDir string
}

type WebConfig struct {
	Addr string // status surface listen address
}

type ModelsConfig struct {
	SyncInterval time.Duration
}

type TuningConfig struct {
	Recognition RecognitionTuning `yaml:"recognition"`
	Debounce    DebounceTuning    `yaml:"debounce"`
	Display     DisplayTuning     `yaml:"display"`
	Loop        LoopTuning        `yaml:"loop"`
}

type RecognitionTuning struct {
	Threshold           float64 `yaml:"threshold"`
	FaceSize            int     `yaml:"face_size"`
	ClassifierNeighbors int     `yaml:"classifier_neighbors"`
	CacheSize           int     `yaml:"cache_size"`
}

type DebounceTuning struct {
	PrintDelay time.Duration `yaml:"print_delay"`
}

type DisplayTuning struct {
	ModeDuration time.Duration `yaml:"mode_duration"`
}

type LoopTuning struct {
	FrameSkip           int `yaml:"frame_skip"`
	ScratchReleaseEvery int `yaml:"scratch_release_every"`
	GCEvery             int `yaml:"gc_every"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load reads the configuration from the environment. Tuning starts from the
// embedded defaults and is overlaid with KIOSK_TUNING_FILE when set.
func Load() (*Config, error) {
	tuning, err := LoadTuning(os.Getenv("KIOSK_TUNING_FILE"))
	if err != nil {
		return nil, err
	}

	return &Config{
		School: SchoolConfig{
			URL:     os.Getenv("APP_URL"),
			Timeout: time.Duration(envInt("API_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Embedding: EmbeddingConfig{
			URL:     envString("EMBEDDING_URL", "http://localhost:8000"),
			Timeout: time.Duration(envInt("EMBEDDING_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Camera: CameraConfig{
			Device:    envString("CAMERA_DEVICE", "/dev/video0"),
			Width:     envInt("CAMERA_WIDTH", 960),
			Height:    envInt("CAMERA_HEIGHT", 720),
			ReplayDir: os.Getenv("CAMERA_REPLAY_DIR"),
		},
		Paths: PathsConfig{
			ModelDir:     os.Getenv("KIOSK_MODEL_DIR"),
			ResourcesDir: os.Getenv("KIOSK_RESOURCES_DIR"),
		},
		Web: WebConfig{
			Addr: envString("KIOSK_HTTP_ADDR", "127.0.0.1:8090"),
		},
		Models: ModelsConfig{
			SyncInterval: time.Duration(envInt("MODEL_SYNC_INTERVAL_MINUTES", 60)) * time.Minute,
		},
		Tuning: *tuning,
	}, nil
}

// LoadTuning parses the embedded defaults and, if path is not empty, overlays
// the YAML file at path on top of them.
func LoadTuning(path string) (*TuningConfig, error) {
	var tuning TuningConfig
	if err := yaml.Unmarshal(defaultsYAML, &tuning); err != nil {
		// embedded file, this only fails on a broken build
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	if path == "" {
		return &tuning, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("could not read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return nil, fmt.Errorf("could not parse tuning file %s: %w", path, err)
	}
	if err := tuning.validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning file %s: %w", path, err)
	}
	return &tuning, nil
}

func (t *TuningConfig) validate() error {
	switch {
	case t.Recognition.Threshold < -1 || t.Recognition.Threshold > 1:
		return fmt.Errorf("recognition.threshold %v outside [-1, 1]", t.Recognition.Threshold)
	case t.Recognition.FaceSize <= 0:
		return fmt.Errorf("recognition.face_size must be positive")
	case t.Recognition.CacheSize <= 0:
		return fmt.Errorf("recognition.cache_size must be positive")
	case t.Recognition.ClassifierNeighbors <= 0:
		return fmt.Errorf("recognition.classifier_neighbors must be positive")
	case t.Loop.FrameSkip <= 0 || t.Loop.ScratchReleaseEvery <= 0 || t.Loop.GCEvery <= 0:
		return fmt.Errorf("loop cadences must be positive")
	case t.Debounce.PrintDelay < 0 || t.Display.ModeDuration < 0:
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// Resolve fills directory defaults from the launcher's project path.
func (c *Config) Resolve(projectPath string) {
	if c.Paths.ModelDir == "" {
		c.Paths.ModelDir = filepath.Join(projectPath, "scripts", "Model")
	}
	if c.Paths.ResourcesDir == "" {
		c.Paths.ResourcesDir = filepath.Join(projectPath, "scripts", "Resources")
	}
}

// GalleryPath returns the location of the gallery file inside the model directory.
func (c *Config) GalleryPath() string {
	return filepath.Join(c.Paths.ModelDir, "gallery.json")
}

// IndexPath returns the location of the persisted classifier index.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Paths.ModelDir, "gallery.hnsw")
}
