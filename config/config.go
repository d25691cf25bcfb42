// Package config loads Conduit runtime and logging settings from YAML
// files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/conduit"
)

// File is the root configuration document.
type File struct {
	// Runtime holds the job runtime settings.
	Runtime RuntimeConfig `mapstructure:"runtime"`

	// Log holds logging configuration.
	Log LogConfig `mapstructure:"log"`
}

// RuntimeConfig mirrors conduit.Config.
type RuntimeConfig struct {
	StepTimeout          time.Duration `mapstructure:"step_timeout"`
	JoinTimeout          time.Duration `mapstructure:"join_timeout"`
	OrchestrationWorkers int           `mapstructure:"orchestration_workers"`
	SchedulerWorkers     int           `mapstructure:"scheduler_workers"`
	TaskTimeout          time.Duration `mapstructure:"task_timeout"`
	CompleteTimeout      time.Duration `mapstructure:"complete_timeout"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a File populated with the runtime defaults.
func Default() *File {
	rc := conduit.DefaultConfig()
	return &File{
		Runtime: RuntimeConfig{
			StepTimeout:          rc.StepTimeout,
			JoinTimeout:          rc.JoinTimeout,
			OrchestrationWorkers: rc.OrchestrationWorkers,
			SchedulerWorkers:     rc.SchedulerWorkers,
			TaskTimeout:          rc.TaskTimeout,
			CompleteTimeout:      rc.CompleteTimeout,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/conduit.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Conduit converts the runtime section to a conduit.Config. Unset fields
// keep their defaults.
func (r RuntimeConfig) Conduit() conduit.Config {
	cfg := conduit.DefaultConfig()
	if r.StepTimeout > 0 {
		cfg.StepTimeout = r.StepTimeout
	}
	if r.JoinTimeout > 0 {
		cfg.JoinTimeout = r.JoinTimeout
	}
	if r.OrchestrationWorkers > 0 {
		cfg.OrchestrationWorkers = r.OrchestrationWorkers
	}
	if r.SchedulerWorkers > 0 {
		cfg.SchedulerWorkers = r.SchedulerWorkers
	}
	if r.TaskTimeout > 0 {
		cfg.TaskTimeout = r.TaskTimeout
	}
	if r.CompleteTimeout > 0 {
		cfg.CompleteTimeout = r.CompleteTimeout
	}
	return cfg
}

// Load reads configuration from path (if non-empty), otherwise it searches
// common locations. Environment variables use the prefix CONDUIT with `.`
// and `-` replaced by `_`, e.g. CONDUIT_RUNTIME_STEP_TIMEOUT=5s.
func Load(path string) (*File, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CONDUIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("runtime.step_timeout", cfg.Runtime.StepTimeout)
	v.SetDefault("runtime.join_timeout", cfg.Runtime.JoinTimeout)
	v.SetDefault("runtime.orchestration_workers", cfg.Runtime.OrchestrationWorkers)
	v.SetDefault("runtime.scheduler_workers", cfg.Runtime.SchedulerWorkers)
	v.SetDefault("runtime.task_timeout", cfg.Runtime.TaskTimeout)
	v.SetDefault("runtime.complete_timeout", cfg.Runtime.CompleteTimeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		path = os.Getenv("CONDUIT_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("conduit")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".conduit"))
		}
	}

	// A missing config file is fine; defaults and env still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *File) validate() error {
	switch strings.ToLower(strings.TrimSpace(f.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", f.Log.Level)
	}
	if f.Log.Format == "" {
		f.Log.Format = "console"
	}
	if len(f.Log.Outputs) == 0 {
		f.Log.Outputs = []string{"stderr"}
	}
	if f.Runtime.OrchestrationWorkers < 0 || f.Runtime.SchedulerWorkers < 0 {
		return errors.New("runtime worker counts must not be negative")
	}
	return nil
}
