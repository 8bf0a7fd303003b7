package lookup

import (
	"fmt"
	"log/slog"
	"strings"

	"mediaguard/internal/config"
	"mediaguard/internal/logging"
	"mediaguard/internal/providers"
	"mediaguard/internal/providers/arr"
	"mediaguard/internal/providers/omdb"
	"mediaguard/internal/providers/tmdb"
)

// NewFromConfig builds a Client with every active registry and every enabled
// title database of cfg, in query order: Sonarr instances, Radarr instances,
// OMDb, TMDB. Title databases without keys are left out.
func NewFromConfig(cfg *config.Config, pool KeyPool, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lookup: config is nil")
	}
	httpClient := providers.NewHTTPClient(cfg.RequestTimeout())
	var built []Option

	registries := []struct {
		kind      arr.Kind
		instances []config.RegistryInstance
	}{
		{arr.KindSonarr, cfg.Providers.Sonarr},
		{arr.KindRadarr, cfg.Providers.Radarr},
	}
	for _, group := range registries {
		for _, inst := range group.instances {
			if !inst.Active {
				continue
			}
			client, err := arr.New(group.kind, inst.Name, inst.URL, arr.WithHTTPClient(httpClient))
			if err != nil {
				return nil, fmt.Errorf("%s instance %q: %w", group.kind, inst.Name, err)
			}
			built = append(built, WithRegistry(client, Credentials{
				Keys:              []string{inst.APIKey},
				DailyLimit:        inst.DailyLimit,
				RequestsPerSecond: inst.RequestsPerSecond,
			}))
		}
	}

	component := logging.NewComponentLogger(logger, "lookup")
	if db := cfg.Providers.OMDb; db.Enabled {
		if len(db.APIKeys) == 0 {
			component.Warn("omdb enabled without api keys; skipping",
				logging.String(logging.FieldProvider, omdb.ProviderName))
		} else {
			built = append(built, WithTitleDatabase(omdb.New(db.BaseURL, omdb.WithHTTPClient(httpClient)), credentialsOf(db)))
		}
	}
	if db := cfg.Providers.TMDB; db.Enabled {
		if len(db.APIKeys) == 0 {
			component.Warn("tmdb enabled without api keys; skipping",
				logging.String(logging.FieldProvider, tmdb.ProviderName))
		} else {
			built = append(built, WithTitleDatabase(tmdb.New(db.BaseURL, db.Language, tmdb.WithHTTPClient(httpClient)), credentialsOf(db)))
		}
	}

	all := append([]Option{WithLogger(logger)}, built...)
	return New(pool, append(all, opts...)...), nil
}

func credentialsOf(db config.TitleDatabase) Credentials {
	keys := make([]string, 0, len(db.APIKeys))
	for _, key := range db.APIKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return Credentials{Keys: keys, DailyLimit: db.DailyLimit, RequestsPerSecond: db.RequestsPerSecond}
}
