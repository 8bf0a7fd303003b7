package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and log directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Library lists the directories scanned for media and the extensions accepted.
type Library struct {
	Directories []string `toml:"directories"`
	Extensions  []string `toml:"extensions"`
}

// Probe contains ffprobe invocation settings.
type Probe struct {
	FFprobeBinary  string `toml:"ffprobe_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Sidecars       bool   `toml:"sidecars"`
}

// Validation contains duration classification thresholds.
type Validation struct {
	MinVideoSeconds       float64 `toml:"min_video_seconds"`
	MinAudioSeconds       float64 `toml:"min_audio_seconds"`
	ToleranceRatio        float64 `toml:"tolerance_ratio"`
	ToleranceFloorSeconds float64 `toml:"tolerance_floor_seconds"`
	// ReviewSuspicious routes TOO_SHORT and CORRUPTED verdicts to NEEDS_REVIEW.
	// When false those verdicts are persisted as-is.
	ReviewSuspicious bool `toml:"review_suspicious"`
}

// Pipeline contains worker pool sizing.
type Pipeline struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

// RegistryInstance describes one Sonarr or Radarr server.
type RegistryInstance struct {
	Name              string  `toml:"name"`
	URL               string  `toml:"url"`
	APIKey            string  `toml:"api_key"`
	Active            bool    `toml:"active"`
	DailyLimit        int     `toml:"daily_limit"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// TitleDatabase describes a title-keyed lookup service (OMDb, TMDB).
type TitleDatabase struct {
	Enabled           bool     `toml:"enabled"`
	BaseURL           string   `toml:"base_url"`
	APIKeys           []string `toml:"api_keys"`
	DailyLimit        int      `toml:"daily_limit"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Language          string   `toml:"language"`
}

// Providers groups the external lookup services in query order.
type Providers struct {
	RequestTimeoutSeconds int                `toml:"request_timeout_seconds"`
	Sonarr                []RegistryInstance `toml:"sonarr"`
	Radarr                []RegistryInstance `toml:"radarr"`
	OMDb                  TitleDatabase      `toml:"omdb"`
	TMDB                  TitleDatabase      `toml:"tmdb"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string     `toml:"ntfy_topic"`
	RequestTimeout int        `toml:"request_timeout"`
	Review         bool       `toml:"review"`
	Errors         bool       `toml:"errors"`
	Batch          bool       `toml:"batch"`
	Keys           bool       `toml:"keys"`
	BatchMinFiles  int        `toml:"batch_min_files"`
	QuietHours     QuietHours `toml:"quiet_hours"`
}

// QuietHours suppresses non-critical notifications inside a daily window.
// Start and End use HH:MM and the window may span midnight.
type QuietHours struct {
	Enabled       bool   `toml:"enabled"`
	Start         string `toml:"start"`
	End           string `toml:"end"`
	AllowCritical bool   `toml:"allow_critical"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mediaguard.
//
// Configuration sections by subsystem:
//   - Paths: state database and log locations
//   - Library: scanned directories and media extensions
//   - Probe: ffprobe binary and timeout
//   - Validation: duration floors and tolerance
//   - Pipeline: worker pool sizing
//   - Providers: Sonarr/Radarr registries and title databases
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Library       Library       `toml:"library"`
	Probe         Probe         `toml:"probe"`
	Validation    Validation    `toml:"validation"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Providers     Providers     `toml:"providers"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaguard.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite state database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "mediaguard.db")
}

// LockPath returns the file used to keep a single scan running at a time.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "scan.lock")
}

// FFprobeBinary returns the ffprobe executable used for probing.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Probe.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// ProbeTimeout returns the per-file ffprobe deadline.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the HTTP timeout applied to every provider call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Providers.RequestTimeoutSeconds) * time.Second
}

// HasExtension reports whether name carries one of the configured media extensions.
func (c *Config) HasExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, candidate := range c.Library.Extensions {
		if candidate == ext {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
