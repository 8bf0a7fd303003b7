package config

const (
	defaultConfigPath            = "~/.config/mediaguard/config.toml"
	defaultDataDir               = "~/.local/share/mediaguard"
	defaultLogDir                = "~/.local/share/mediaguard/logs"
	defaultFFprobeBinary         = "ffprobe"
	defaultProbeTimeoutSeconds   = 60
	defaultMinVideoSeconds       = 60
	defaultMinAudioSeconds       = 30
	defaultToleranceRatio        = 0.10
	defaultToleranceFloorSeconds = 300
	defaultWorkers               = 4
	defaultQueueSize             = 64
	defaultRequestTimeoutSeconds = 10
	defaultRegistryRPS           = 5
	defaultOMDbBaseURL           = "https://www.omdbapi.com/"
	defaultOMDbDailyLimit        = 1000
	defaultOMDbRPS               = 2
	defaultTMDBBaseURL           = "https://api.themoviedb.org/3"
	defaultTMDBLanguage          = "en-US"
	defaultTMDBRPS               = 4
	defaultNotifyRequestTimeout  = 10
	defaultNotifyBatchMinFiles   = 1
	defaultQuietStart            = "22:00"
	defaultQuietEnd              = "07:00"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

var defaultExtensions = []string{
	".mkv", ".mp4", ".m4v", ".avi", ".mov", ".wmv", ".ts", ".m2ts", ".webm",
	".mp3", ".flac", ".m4a", ".aac", ".ogg", ".opus", ".wav",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Library: Library{
			Extensions: append([]string(nil), defaultExtensions...),
		},
		Probe: Probe{
			FFprobeBinary:  defaultFFprobeBinary,
			TimeoutSeconds: defaultProbeTimeoutSeconds,
			Sidecars:       true,
		},
		Validation: Validation{
			MinVideoSeconds:       defaultMinVideoSeconds,
			MinAudioSeconds:       defaultMinAudioSeconds,
			ToleranceRatio:        defaultToleranceRatio,
			ToleranceFloorSeconds: defaultToleranceFloorSeconds,
			ReviewSuspicious:      true,
		},
		Pipeline: Pipeline{
			Workers:   defaultWorkers,
			QueueSize: defaultQueueSize,
		},
		Providers: Providers{
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			OMDb: TitleDatabase{
				Enabled:           true,
				BaseURL:           defaultOMDbBaseURL,
				DailyLimit:        defaultOMDbDailyLimit,
				RequestsPerSecond: defaultOMDbRPS,
			},
			TMDB: TitleDatabase{
				Enabled:           false,
				BaseURL:           defaultTMDBBaseURL,
				Language:          defaultTMDBLanguage,
				RequestsPerSecond: defaultTMDBRPS,
			},
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Review:         true,
			Errors:         true,
			Batch:          true,
			Keys:           true,
			BatchMinFiles:  defaultNotifyBatchMinFiles,
			QuietHours: QuietHours{
				Start:         defaultQuietStart,
				End:           defaultQuietEnd,
				AllowCritical: true,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
