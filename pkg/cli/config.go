package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/vetscan/vetscan/pkg/adapter"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/repository"
	"github.com/vetscan/vetscan/pkg/utils/logging"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	logLevel     string
	settingsPath string

	// Inference endpoint
	geminiAPIKey   string
	geminiProject  string
	geminiLocation string

	// Capture device
	device      string
	jpegQuality int

	// Live monitor
	sampleInterval time.Duration

	// History
	historyPath     string
	historyCapacity int
	firestore       string
	database        string

	// Report export
	bucket string

	// Geolocation, read once at startup
	latitude  float64
	longitude float64
	located   bool
}

// settings is the optional YAML settings file, merged beneath flags
type settings struct {
	Device          string        `yaml:"device"`
	JPEGQuality     int           `yaml:"jpeg_quality"`
	SampleInterval  time.Duration `yaml:"sample_interval"`
	HistoryPath     string        `yaml:"history_path"`
	HistoryCapacity int           `yaml:"history_capacity"`
	Bucket          string        `yaml:"bucket"`
	Latitude        *float64      `yaml:"latitude"`
	Longitude       *float64      `yaml:"longitude"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("VETSCAN_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "settings",
			Usage:       "Path to YAML settings file",
			Sources:     cli.EnvVars("VETSCAN_SETTINGS"),
			Destination: &cfg.settingsPath,
		},
		&cli.StringFlag{
			Name:        "history",
			Usage:       "Path to the history file",
			Sources:     cli.EnvVars("VETSCAN_HISTORY"),
			Destination: &cfg.historyPath,
		},
		&cli.IntFlag{
			Name:        "capacity",
			Usage:       "Retention bound of the history",
			Value:       repository.DefaultCapacity,
			Sources:     cli.EnvVars("VETSCAN_CAPACITY"),
			Destination: &cfg.historyCapacity,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Use Firestore history in this Google Cloud project instead of the local file",
			Sources:     cli.EnvVars("VETSCAN_FIRESTORE_PROJECT"),
			Destination: &cfg.firestore,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("VETSCAN_FIRESTORE_DATABASE"),
			Destination: &cfg.database,
		},
	}
}

// llmFlags returns flags for the inference endpoint with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Vertex AI (alternative to an API key)",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
	}
}

// captureFlags returns flags for the camera device with destination config
func captureFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "device",
			Aliases:     []string{"d"},
			Usage:       "V4L2 capture device",
			Value:       "/dev/video0",
			Sources:     cli.EnvVars("VETSCAN_DEVICE"),
			Destination: &cfg.device,
		},
		&cli.IntFlag{
			Name:        "jpeg-quality",
			Usage:       "JPEG quality factor for sampled frames (0-100)",
			Value:       60,
			Sources:     cli.EnvVars("VETSCAN_JPEG_QUALITY"),
			Destination: &cfg.jpegQuality,
		},
	}
}

// locationFlags returns flags for the one-shot geolocation with destination config
func locationFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{
			Name:        "lat",
			Usage:       "Latitude attached to analysis requests",
			Sources:     cli.EnvVars("VETSCAN_LATITUDE"),
			Destination: &cfg.latitude,
		},
		&cli.FloatFlag{
			Name:        "lng",
			Usage:       "Longitude attached to analysis requests",
			Sources:     cli.EnvVars("VETSCAN_LONGITUDE"),
			Destination: &cfg.longitude,
		},
	}
}

// setup applies the settings file beneath the flags and installs the
// logger on the context. Called at the top of every command action.
func (cfg *config) setup(ctx context.Context, c *cli.Command) (context.Context, error) {
	if err := cfg.loadSettings(c); err != nil {
		return ctx, err
	}

	cfg.located = c.IsSet("lat") || c.IsSet("lng") || cfg.located

	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// loadSettings reads the optional YAML settings file. Flags set
// explicitly on the command line win over file values.
func (cfg *config) loadSettings(c *cli.Command) error {
	path := cfg.settingsPath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(dir, "vetscan", "settings.yml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && cfg.settingsPath == "" {
			return nil
		}
		return goerr.Wrap(err, "failed to read settings file", goerr.V("path", path))
	}

	var s settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return goerr.Wrap(err, "failed to parse settings file", goerr.V("path", path))
	}

	if s.Device != "" && !c.IsSet("device") {
		cfg.device = s.Device
	}
	if s.JPEGQuality > 0 && !c.IsSet("jpeg-quality") {
		cfg.jpegQuality = s.JPEGQuality
	}
	if s.SampleInterval > 0 && !c.IsSet("interval") {
		cfg.sampleInterval = s.SampleInterval
	}
	if s.HistoryPath != "" && !c.IsSet("history") {
		cfg.historyPath = s.HistoryPath
	}
	if s.HistoryCapacity > 0 && !c.IsSet("capacity") {
		cfg.historyCapacity = s.HistoryCapacity
	}
	if s.Bucket != "" && !c.IsSet("bucket") {
		cfg.bucket = s.Bucket
	}
	if s.Latitude != nil && s.Longitude != nil && !c.IsSet("lat") && !c.IsSet("lng") {
		cfg.latitude = *s.Latitude
		cfg.longitude = *s.Longitude
		cfg.located = true
	}

	return nil
}

// location returns the coordinates for this run, or nil when no location
// was configured. It is resolved once at startup and never re-requested.
func (cfg *config) location() *model.Coordinates {
	if !cfg.located {
		return nil
	}
	return &model.Coordinates{
		Latitude:  cfg.latitude,
		Longitude: cfg.longitude,
	}
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiAPIKey != "" {
		return adapter.NewGemini(ctx, cfg.geminiAPIKey)
	}
	if cfg.geminiProject != "" {
		return adapter.NewGeminiVertex(ctx, cfg.geminiProject, cfg.geminiLocation)
	}
	return nil, goerr.New("either gemini-api-key or gemini-project is required")
}

// newCamera creates a new capture device instance
func (cfg *config) newCamera() adapter.Camera {
	return adapter.NewGstCamera(cfg.device, adapter.WithJPEGQuality(cfg.jpegQuality))
}

// newRepository creates the history store, local file by default
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.firestore != "" {
		return repository.NewFirestore(ctx, cfg.firestore, cfg.database, cfg.historyCapacity)
	}

	path := cfg.historyPath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to locate config directory")
		}
		path = filepath.Join(dir, "vetscan", "history.json")
	}

	return repository.NewLocal(path, cfg.historyCapacity), nil
}

// newStorage creates the report export adapter
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}
