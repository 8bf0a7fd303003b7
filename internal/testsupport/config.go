package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mediaguard/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Title databases start disabled so tests only talk to the servers they wire.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Library.Directories = []string{filepath.Join(base, "library")}
	cfgVal.Providers.OMDb.Enabled = false
	cfgVal.Providers.OMDb.APIKeys = nil
	cfgVal.Providers.OMDb.RequestsPerSecond = 0
	cfgVal.Providers.TMDB.Enabled = false
	cfgVal.Providers.TMDB.RequestsPerSecond = 0
	cfgVal.Pipeline.Workers = 2
	cfgVal.Pipeline.QueueSize = 4

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithOMDb enables the OMDb provider against baseURL with the given keys.
func WithOMDb(baseURL string, keys ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers.OMDb.Enabled = true
		b.cfg.Providers.OMDb.BaseURL = baseURL
		b.cfg.Providers.OMDb.APIKeys = keys
	}
}

// WithRadarr adds an active Radarr instance.
func WithRadarr(name, baseURL, key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers.Radarr = append(b.cfg.Providers.Radarr, config.RegistryInstance{
			Name: name, URL: baseURL, APIKey: key, Active: true,
		})
	}
}

// WithSonarr adds an active Sonarr instance.
func WithSonarr(name, baseURL, key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers.Sonarr = append(b.cfg.Providers.Sonarr, config.RegistryInstance{
			Name: name, URL: baseURL, APIKey: key, Active: true,
		})
	}
}

// WithStubFFprobe writes an ffprobe stub that prints payload and points the
// config at it.
func WithStubFFprobe(payload string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Probe.FFprobeBinary = WriteFFprobeStub(b.t, filepath.Join(b.baseDir, "bin"), payload)
	}
}

// WriteFFprobeStub writes an executable shell script in dir that prints
// payload on stdout and returns its path.
func WriteFFprobeStub(t testing.TB, dir, payload string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n" + payload + "\nJSON\n"
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// LibraryDir returns the first library directory of the generated config.
func LibraryDir(cfg *config.Config) string {
	return cfg.Library.Directories[0]
}
