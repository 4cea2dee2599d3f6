package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/vytor/ceplayer/internal/estimate"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendGorm   = "gorm"
	BackendFile   = "file"
	BackendMemory = "memory"
)

type Config struct {
	Addr         string `toml:"addr"`
	StoreBackend string `toml:"store-backend"`
	DBPath       string `toml:"db-path"`
	// DatabaseURL selects postgres for the gorm backend; empty means sqlite at DBPath.
	DatabaseURL string `toml:"database-url"`
	StateDir    string `toml:"state-dir"`
	Namespace   string `toml:"namespace"`

	ContentDir string `toml:"content-dir"`
	CourseFile string `toml:"course-file"`

	LogLevel  string `toml:"log-level"`
	LogFormat string `toml:"log-format"`

	HourCount             int           `toml:"hour-count"`
	MinimumSecondsPerHour int           `toml:"minimum-seconds-per-hour"`
	GovernorBufferBP      int           `toml:"governor-buffer-bp"`
	AutoAdvanceBufferBP   int           `toml:"auto-advance-buffer-bp"`
	TickInterval          time.Duration `toml:"tick-interval"`
	DevModeAvailable      bool          `toml:"dev-mode-available"`
	// IdleTimeout suspends a player whose learner has no event stream and sent no request
	// for this long.
	IdleTimeout time.Duration `toml:"idle-timeout"`

	WarmWorkerCount int `toml:"warm-worker-count"`
	WarmQueueSize   int `toml:"warm-queue-size"`

	// TelemetryExporter is none or stdout.
	TelemetryExporter string        `toml:"telemetry-exporter"`
	TelemetryInterval time.Duration `toml:"telemetry-interval"`

	ConfigFile string `toml:"-"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Addr:                  ":8080",
		StoreBackend:          BackendSQLite,
		DBPath:                "file:ceplayer.db",
		StateDir:              ".ceplayer",
		Namespace:             models.DefaultNamespace,
		ContentDir:            "content",
		CourseFile:            "course.yaml",
		LogLevel:              "INFO",
		LogFormat:             string(logger.FormatConsole),
		HourCount:             4,
		MinimumSecondsPerHour: models.MinimumSecondsPerHour,
		GovernorBufferBP:      estimate.DefaultBuffers.GovernorBP,
		AutoAdvanceBufferBP:   estimate.DefaultBuffers.AutoAdvanceBP,
		TickInterval:          time.Second,
		IdleTimeout:           2 * time.Minute,
		WarmWorkerCount:       2,
		WarmQueueSize:         64,
		TelemetryExporter:     "none",
		TelemetryInterval:     time.Minute,
	}
}

// Load reads configuration from a .env file (if present), an optional TOML file named by
// CONFIG_FILE, then environment variables. Later sources win.
func Load() (Config, error) {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	cfg := Defaults()
	cfg.ConfigFile = os.Getenv("CONFIG_FILE")
	if cfg.ConfigFile != "" {
		if err := loadFile(cfg.ConfigFile, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Addr = envOr("ADDR", cfg.Addr)
	cfg.StoreBackend = envOr("STORE_BACKEND", cfg.StoreBackend)
	cfg.DBPath = envOr("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = envOr("DATABASE_URL", cfg.DatabaseURL)
	cfg.StateDir = envOr("STATE_DIR", cfg.StateDir)
	cfg.Namespace = envOr("NAMESPACE", cfg.Namespace)
	cfg.ContentDir = envOr("CONTENT_DIR", cfg.ContentDir)
	cfg.CourseFile = envOr("COURSE_FILE", cfg.CourseFile)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.HourCount = envIntOr("HOUR_COUNT", cfg.HourCount)
	cfg.MinimumSecondsPerHour = envIntOr("MINIMUM_SECONDS_PER_HOUR", cfg.MinimumSecondsPerHour)
	cfg.GovernorBufferBP = envIntOr("GOVERNOR_BUFFER_BP", cfg.GovernorBufferBP)
	cfg.AutoAdvanceBufferBP = envIntOr("AUTO_ADVANCE_BUFFER_BP", cfg.AutoAdvanceBufferBP)
	cfg.TickInterval = envDurationOr("TICK_INTERVAL", cfg.TickInterval)
	cfg.DevModeAvailable = envBoolOr("DEV_MODE_AVAILABLE", cfg.DevModeAvailable)
	cfg.IdleTimeout = envDurationOr("IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.WarmWorkerCount = envIntOr("WARM_WORKER_COUNT", cfg.WarmWorkerCount)
	cfg.WarmQueueSize = envIntOr("WARM_QUEUE_SIZE", cfg.WarmQueueSize)
	cfg.TelemetryExporter = envOr("TELEMETRY_EXPORTER", cfg.TelemetryExporter)
	cfg.TelemetryInterval = envDurationOr("TELEMETRY_INTERVAL", cfg.TelemetryInterval)

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logger.Warn("config file %s: unknown keys %v", path, undecoded)
	}
	return nil
}

// Buffers returns the estimator padding described by the config.
func (c Config) Buffers() estimate.Buffers {
	return estimate.Buffers{GovernorBP: c.GovernorBufferBP, AutoAdvanceBP: c.AutoAdvanceBufferBP}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var problems []string

	if c.Addr == "" {
		problems = append(problems, "ADDR cannot be empty")
	}
	switch c.StoreBackend {
	case BackendSQLite:
		if c.DBPath == "" {
			problems = append(problems, "DB_PATH cannot be empty")
		}
	case BackendGorm:
		if c.DBPath == "" && c.DatabaseURL == "" {
			problems = append(problems, "DB_PATH or DATABASE_URL is required for the gorm backend")
		}
	case BackendFile:
		if c.StateDir == "" {
			problems = append(problems, "STATE_DIR cannot be empty")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORE_BACKEND must be one of sqlite, gorm, file, memory (got %q)", c.StoreBackend))
	}
	if c.Namespace == "" {
		problems = append(problems, "NAMESPACE cannot be empty")
	}
	if c.ContentDir == "" {
		problems = append(problems, "CONTENT_DIR cannot be empty")
	}
	if !logger.ValidLevel(c.LogLevel) {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be DEBUG, INFO, WARN or ERROR (got %q)", c.LogLevel))
	}
	if f := logger.Format(strings.ToLower(c.LogFormat)); f != logger.FormatConsole && f != logger.FormatJSON {
		problems = append(problems, fmt.Sprintf("LOG_FORMAT must be console or json (got %q)", c.LogFormat))
	}
	if c.HourCount < 1 {
		problems = append(problems, "HOUR_COUNT must be at least 1")
	}
	if c.MinimumSecondsPerHour < 1 {
		problems = append(problems, "MINIMUM_SECONDS_PER_HOUR must be positive")
	}
	if err := c.Buffers().Validate(); err != nil {
		problems = append(problems, "GOVERNOR_BUFFER_BP/AUTO_ADVANCE_BUFFER_BP: "+err.Error())
	}
	if c.TickInterval <= 0 {
		problems = append(problems, "TICK_INTERVAL must be positive")
	}
	if c.IdleTimeout <= 0 {
		problems = append(problems, "IDLE_TIMEOUT must be positive")
	}
	if c.WarmWorkerCount < 1 {
		problems = append(problems, "WARM_WORKER_COUNT must be at least 1")
	}
	if c.WarmQueueSize < 1 {
		problems = append(problems, "WARM_QUEUE_SIZE must be at least 1")
	}

	switch c.TelemetryExporter {
	case "none", "stdout":
		if c.TelemetryInterval <= 0 {
			problems = append(problems, "TELEMETRY_INTERVAL must be positive")
		}
	default:
		problems = append(problems, fmt.Sprintf("TELEMETRY_EXPORTER must be none or stdout (got %q)", c.TelemetryExporter))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		logger.Warn("invalid value for %s=%q, using %d", key, v, def)
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		logger.Warn("invalid value for %s=%q, using %t", key, v, def)
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		logger.Warn("invalid value for %s=%q, using %v", key, v, def)
	}
	return def
}
