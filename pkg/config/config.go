// Package config provides configuration loading and validation for reviewfang.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrMissingRepository = errors.New("repository path is required")
	ErrInvalidWorkers    = errors.New("diff workers must be positive")
	ErrInvalidBatchSize  = errors.New("commit batch size must be positive")
	ErrInvalidWindow     = errors.New("window start must precede window end")
	ErrInvalidThresholds = errors.New("cdf thresholds must be ascending")
)

// Default configuration values.
const (
	defaultBatchSize     = 64
	defaultDefaultBranch = "master"
)

// Config holds all configuration for a reviewfang run.
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Output     OutputConfig     `mapstructure:"output"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// RepositoryConfig locates the repository and the analysis window.
// Window bounds are RFC 3339 strings; empty means unbounded on that side.
type RepositoryConfig struct {
	Path          string `mapstructure:"path"`
	DefaultBranch string `mapstructure:"default_branch"`
	WindowStart   string `mapstructure:"window_start"`
	WindowEnd     string `mapstructure:"window_end"`
	PRFile        string `mapstructure:"pr_file"`
	EventFile     string `mapstructure:"event_file"`
}

// Window parses the configured analysis window bounds. Zero times mark
// unbounded sides.
func (r *RepositoryConfig) Window() (start, end time.Time, err error) {
	if r.WindowStart != "" {
		start, err = time.Parse(time.RFC3339, r.WindowStart)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse window_start: %w", err)
		}
	}

	if r.WindowEnd != "" {
		end, err = time.Parse(time.RFC3339, r.WindowEnd)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse window_end: %w", err)
		}
	}

	return start, end, nil
}

// AnalysisConfig tunes the replay pipeline.
type AnalysisConfig struct {
	DiffWorkers     int `mapstructure:"diff_workers"`
	CommitBatchSize int `mapstructure:"commit_batch_size"`
	// LifetimeThresholds are CDF thresholds for line lifetimes, in days.
	LifetimeThresholds []float64 `mapstructure:"lifetime_thresholds"`
	// LatencyThresholds are CDF thresholds for review latency, in hours.
	LatencyThresholds []float64 `mapstructure:"latency_thresholds"`
}

// OutputConfig controls where and how record streams are written.
type OutputConfig struct {
	Directory string `mapstructure:"directory"`
	Compress  bool   `mapstructure:"compress"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`
	Insecure     bool   `mapstructure:"insecure"`
}

// Load reads configuration from an optional file plus REVIEWFANG_* environment
// overrides and applies defaults. Callers run Validate once command-line
// overrides have been applied on top.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("reviewfang")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("/etc/reviewfang")
	}

	viperCfg.SetEnvPrefix("REVIEWFANG")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("repository.default_branch", defaultDefaultBranch)

	viperCfg.SetDefault("analysis.diff_workers", runtime.NumCPU())
	viperCfg.SetDefault("analysis.commit_batch_size", defaultBatchSize)
	viperCfg.SetDefault("analysis.lifetime_thresholds", []float64{1, 7, 30, 90, 365})
	viperCfg.SetDefault("analysis.latency_thresholds", []float64{1, 4, 24, 72, 168})

	viperCfg.SetDefault("output.directory", "reviewfang-out")
	viperCfg.SetDefault("output.compress", false)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
}

// Validate checks configuration invariants.
func Validate(config *Config) error {
	if config.Repository.Path == "" {
		return ErrMissingRepository
	}

	if config.Analysis.DiffWorkers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Analysis.DiffWorkers)
	}

	if config.Analysis.CommitBatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, config.Analysis.CommitBatchSize)
	}

	start, end, windowErr := config.Repository.Window()
	if windowErr != nil {
		return windowErr
	}

	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return ErrInvalidWindow
	}

	for _, thresholds := range [][]float64{
		config.Analysis.LifetimeThresholds,
		config.Analysis.LatencyThresholds,
	} {
		for i := 1; i < len(thresholds); i++ {
			if thresholds[i] <= thresholds[i-1] {
				return fmt.Errorf("%w: %v", ErrInvalidThresholds, thresholds)
			}
		}
	}

	return nil
}
