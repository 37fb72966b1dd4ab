package config

const (
	defaultDataDir                 = "~/.local/share/shortbox"
	defaultLogDir                  = "~/.local/share/shortbox/logs"
	defaultAPIBind                 = "127.0.0.1:7583"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultUserAgent               = "shortbox/dev"
	defaultComicVineBaseURL        = "https://comicvine.gamespot.com/api"
	defaultMetronBaseURL           = "https://metron.cloud/api"
	defaultGCDBaseURL              = "https://www.comics.org/api"
	defaultMangaDexBaseURL         = "https://api.mangadex.org"
	defaultSourceTimeoutSeconds    = 15
	defaultComicVineRateLimitMs    = 1000
	defaultMetronRateLimitMs       = 2000
	defaultGCDRateLimitMs          = 1000
	defaultMangaDexRateLimitMs     = 250
	defaultAutoMatchThreshold      = 0.95
	defaultHighConfidenceThreshold = 0.8
	defaultCrossSourceConcurrency  = 3
	defaultSearchLimit             = 10
	defaultCacheTTLSeconds         = 600
	defaultRetryAttempts           = 3
	defaultCleanupMode             = "merge"
	defaultNtfyTimeoutSeconds      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Sources: Sources{
			Priority: []string{SourceComicVine, SourceMetron, SourceGCD, SourceMangaDex},
			ComicVine: Source{
				Enabled:         true,
				BaseURL:         defaultComicVineBaseURL,
				UserAgent:       defaultUserAgent,
				TimeoutSeconds:  defaultSourceTimeoutSeconds,
				RateLimitMillis: defaultComicVineRateLimitMs,
			},
			Metron: Source{
				Enabled:         true,
				BaseURL:         defaultMetronBaseURL,
				UserAgent:       defaultUserAgent,
				TimeoutSeconds:  defaultSourceTimeoutSeconds,
				RateLimitMillis: defaultMetronRateLimitMs,
			},
			GCD: Source{
				Enabled:         true,
				BaseURL:         defaultGCDBaseURL,
				UserAgent:       defaultUserAgent,
				TimeoutSeconds:  defaultSourceTimeoutSeconds,
				RateLimitMillis: defaultGCDRateLimitMs,
			},
			MangaDex: Source{
				Enabled:         false,
				BaseURL:         defaultMangaDexBaseURL,
				UserAgent:       defaultUserAgent,
				TimeoutSeconds:  defaultSourceTimeoutSeconds,
				RateLimitMillis: defaultMangaDexRateLimitMs,
			},
		},
		Matching: Matching{
			AutoMatchThreshold:      defaultAutoMatchThreshold,
			HighConfidenceThreshold: defaultHighConfidenceThreshold,
			CrossSourceConcurrency:  defaultCrossSourceConcurrency,
			SourceTimeoutSeconds:    defaultSourceTimeoutSeconds,
			SearchLimit:             defaultSearchLimit,
			CacheTTLSeconds:         defaultCacheTTLSeconds,
			RetryAttempts:           defaultRetryAttempts,
		},
		Apply: Apply{
			CleanupMode:        defaultCleanupMode,
			CreateSeriesMarker: true,
			ConvertZipToCBZ:    true,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
