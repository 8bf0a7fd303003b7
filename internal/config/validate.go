package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProbe(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProbe() error {
	if strings.TrimSpace(c.Probe.FFprobeBinary) == "" {
		return errors.New("probe.ffprobe_binary must be set")
	}
	if c.Probe.TimeoutSeconds <= 0 {
		return errors.New("probe.timeout_seconds must be positive")
	}
	if len(c.Library.Extensions) == 0 {
		return errors.New("library.extensions must include at least one extension")
	}
	return nil
}

func (c *Config) validateValidation() error {
	v := c.Validation
	if v.MinVideoSeconds < 0 {
		return errors.New("validation.min_video_seconds must be >= 0")
	}
	if v.MinAudioSeconds < 0 {
		return errors.New("validation.min_audio_seconds must be >= 0")
	}
	if v.ToleranceRatio < 0 || v.ToleranceRatio > 1 {
		return errors.New("validation.tolerance_ratio must be between 0 and 1")
	}
	if v.ToleranceFloorSeconds < 0 {
		return errors.New("validation.tolerance_floor_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be positive")
	}
	if c.Pipeline.QueueSize <= 0 {
		return errors.New("pipeline.queue_size must be positive")
	}
	return nil
}

func (c *Config) validateProviders() error {
	if c.Providers.RequestTimeoutSeconds <= 0 {
		return errors.New("providers.request_timeout_seconds must be positive")
	}
	names := make(map[string]string)
	check := func(kind string, list []RegistryInstance) error {
		for i, inst := range list {
			field := fmt.Sprintf("providers.%s[%d]", kind, i)
			if prev, ok := names[inst.Name]; ok {
				return fmt.Errorf("%s.name %q duplicates %s", field, inst.Name, prev)
			}
			names[inst.Name] = field
			if inst.DailyLimit < 0 {
				return fmt.Errorf("%s.daily_limit must be >= 0", field)
			}
			if inst.RequestsPerSecond < 0 {
				return fmt.Errorf("%s.requests_per_second must be >= 0", field)
			}
			if !inst.Active {
				continue
			}
			if inst.URL == "" {
				return fmt.Errorf("%s.url must be set when active is true", field)
			}
			if inst.APIKey == "" {
				return fmt.Errorf("%s.api_key must be set when active is true", field)
			}
		}
		return nil
	}
	if err := check("sonarr", c.Providers.Sonarr); err != nil {
		return err
	}
	if err := check("radarr", c.Providers.Radarr); err != nil {
		return err
	}
	for _, reserved := range []string{"omdb", "tmdb"} {
		if field, ok := names[reserved]; ok {
			return fmt.Errorf("%s.name %q is reserved", field, reserved)
		}
	}
	if c.Providers.OMDb.DailyLimit < 0 {
		return errors.New("providers.omdb.daily_limit must be >= 0")
	}
	if c.Providers.TMDB.DailyLimit < 0 {
		return errors.New("providers.tmdb.daily_limit must be >= 0")
	}
	if c.Providers.OMDb.RequestsPerSecond < 0 || c.Providers.TMDB.RequestsPerSecond < 0 {
		return errors.New("providers requests_per_second must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.BatchMinFiles < 0 {
		return errors.New("notifications.batch_min_files must be >= 0")
	}
	quiet := c.Notifications.QuietHours
	if !quiet.Enabled {
		return nil
	}
	if _, err := time.Parse("15:04", quiet.Start); err != nil {
		return fmt.Errorf("notifications.quiet_hours.start must use HH:MM: %w", err)
	}
	if _, err := time.Parse("15:04", quiet.End); err != nil {
		return fmt.Errorf("notifications.quiet_hours.end must use HH:MM: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
