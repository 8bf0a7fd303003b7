package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLibrary() error {
	dirs := make([]string, 0, len(c.Library.Directories))
	for i, dir := range c.Library.Directories {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(dir))
		if err != nil {
			return fmt.Errorf("library.directories[%d]: %w", i, err)
		}
		dirs = append(dirs, expanded)
	}
	c.Library.Directories = dirs

	exts := make([]string, 0, len(c.Library.Extensions))
	seen := make(map[string]struct{}, len(c.Library.Extensions))
	for _, ext := range c.Library.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	c.Library.Extensions = exts
	return nil
}

func (c *Config) normalizeProviders() {
	for i := range c.Providers.Sonarr {
		normalizeRegistry(&c.Providers.Sonarr[i], "sonarr", i)
	}
	for i := range c.Providers.Radarr {
		normalizeRegistry(&c.Providers.Radarr[i], "radarr", i)
	}

	omdb := &c.Providers.OMDb
	if len(trimKeys(omdb.APIKeys)) == 0 {
		if value, ok := os.LookupEnv("OMDB_API_KEY"); ok {
			omdb.APIKeys = strings.Split(value, ",")
		}
	}
	omdb.APIKeys = trimKeys(omdb.APIKeys)
	omdb.BaseURL = strings.TrimSpace(omdb.BaseURL)
	if omdb.BaseURL == "" {
		omdb.BaseURL = defaultOMDbBaseURL
	}

	tmdb := &c.Providers.TMDB
	if len(trimKeys(tmdb.APIKeys)) == 0 {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			tmdb.APIKeys = strings.Split(value, ",")
		}
	}
	tmdb.APIKeys = trimKeys(tmdb.APIKeys)
	tmdb.BaseURL = strings.TrimRight(strings.TrimSpace(tmdb.BaseURL), "/")
	if tmdb.BaseURL == "" {
		tmdb.BaseURL = defaultTMDBBaseURL
	}
	if strings.TrimSpace(tmdb.Language) == "" {
		tmdb.Language = defaultTMDBLanguage
	}
}

func normalizeRegistry(inst *RegistryInstance, kind string, index int) {
	inst.Name = strings.ToLower(strings.TrimSpace(inst.Name))
	if inst.Name == "" {
		if index == 0 {
			inst.Name = kind
		} else {
			inst.Name = fmt.Sprintf("%s-%d", kind, index+1)
		}
	}
	inst.URL = strings.TrimRight(strings.TrimSpace(inst.URL), "/")
	inst.APIKey = strings.TrimSpace(inst.APIKey)
	if inst.RequestsPerSecond == 0 {
		inst.RequestsPerSecond = defaultRegistryRPS
	}
}

func trimKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
