package config

import (
	"strings"

	"github.com/urfave/cli/v3"
)

// StorageFlags returns the flags selecting the active user and the bundled
// and local blob sources. Shared by every command that opens the stores.
func StorageFlags(cfg *Config) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Category:    "History:",
			Sources:     cli.EnvVars("CHAT_HISTORY_USER_ID"),
			Destination: &cfg.UserID,
			Value:       cfg.UserID,
			Usage:       "Active user whose conversation index is loaded",
		},
	}
	flags = append(flags, sourceFlags("bundled", "Bundled Source:", &cfg.Bundled)...)
	flags = append(flags, sourceFlags("local", "Local Store:", &cfg.Local)...)
	flags = append(flags,
		&cli.BoolFlag{
			Name:        "migrate-at-start",
			Category:    "Local Store:",
			Sources:     cli.EnvVars("CHAT_HISTORY_MIGRATE_AT_START"),
			Destination: &cfg.MigrateAtStart,
			Value:       cfg.MigrateAtStart,
			Usage:       "Create the SQL blob schema before opening sqlite/postgres sources",
		},
	)
	return flags
}

func sourceFlags(role, category string, src *SourceConfig) []cli.Flag {
	env := func(name string) cli.ValueSourceChain {
		return cli.EnvVars("CHAT_HISTORY_" + strings.ToUpper(role) + "_" + name)
	}
	return []cli.Flag{
		&cli.StringFlag{
			Name:        role + "-kind",
			Category:    category,
			Sources:     env("KIND"),
			Destination: &src.Kind,
			Value:       src.Kind,
			Usage:       "Blob store backend (fs|sqlite|postgres|mongo|s3)",
		},
		&cli.StringFlag{
			Name:        role + "-dir",
			Category:    category,
			Sources:     env("DIR"),
			Destination: &src.Dir,
			Value:       src.Dir,
			Usage:       "Root directory for the fs backend",
		},
		&cli.StringFlag{
			Name:        role + "-db-url",
			Category:    category,
			Sources:     env("DB_URL"),
			Destination: &src.DBURL,
			Usage:       "Connection URL for the sqlite, postgres and mongo backends",
		},
		&cli.StringFlag{
			Name:        role + "-db-name",
			Category:    category,
			Sources:     env("DB_NAME"),
			Destination: &src.Database,
			Value:       src.Database,
			Usage:       "Mongo database name",
		},
		&cli.StringFlag{
			Name:        role + "-s3-bucket",
			Category:    category,
			Sources:     env("S3_BUCKET"),
			Destination: &src.S3Bucket,
			Usage:       "S3 bucket for the s3 backend",
		},
		&cli.StringFlag{
			Name:        role + "-s3-prefix",
			Category:    category,
			Sources:     env("S3_PREFIX"),
			Destination: &src.S3Prefix,
			Usage:       "Key prefix inside the S3 bucket",
		},
		&cli.BoolFlag{
			Name:        role + "-s3-use-path-style",
			Category:    category,
			Sources:     env("S3_USE_PATH_STYLE"),
			Destination: &src.S3UsePathStyle,
			Usage:       "Use path-style S3 addressing (MinIO, LocalStack)",
		},
	}
}

// HistoryFlags returns the pagination and cache flags.
func HistoryFlags(cfg *Config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-messages-per-page",
			Category:    "History:",
			Sources:     cli.EnvVars("CHAT_HISTORY_MAX_MESSAGES_PER_PAGE"),
			Destination: &cfg.MaxMessagesPerPage,
			Value:       cfg.MaxMessagesPerPage,
			Usage:       "Messages per page before a new page is started",
		},
		&cli.IntFlag{
			Name:        "min-display-count",
			Category:    "History:",
			Sources:     cli.EnvVars("CHAT_HISTORY_MIN_DISPLAY_COUNT"),
			Destination: &cfg.MinDisplayCount,
			Value:       cfg.MinDisplayCount,
			Usage:       "Minimum number of messages loaded when a conversation is opened",
		},
		&cli.StringFlag{
			Name:        "temp-dir",
			Category:    "History:",
			Sources:     cli.EnvVars("CHAT_HISTORY_TEMP_DIR"),
			Destination: &cfg.TempDir,
			Usage:       "Directory for temporary files; defaults to OS temp directory",
		},

		// ── Cache ─────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "cache-kind",
			Category:    "Cache:",
			Sources:     cli.EnvVars("CHAT_HISTORY_CACHE_KIND"),
			Destination: &cfg.CacheType,
			Value:       cfg.CacheType,
			Usage:       "Blob cache backend (none|memory|redis)",
		},
		&cli.StringFlag{
			Name:        "cache-redis-url",
			Category:    "Cache:",
			Sources:     cli.EnvVars("CHAT_HISTORY_CACHE_REDIS_URL", "CHAT_HISTORY_REDIS_URL"),
			Destination: &cfg.RedisURL,
			Usage:       "Redis URL for the redis cache",
		},
		&cli.DurationFlag{
			Name:        "cache-ttl",
			Category:    "Cache:",
			Sources:     cli.EnvVars("CHAT_HISTORY_CACHE_TTL"),
			Destination: &cfg.CacheTTL,
			Value:       cfg.CacheTTL,
			Usage:       "Time to live of cached documents",
		},
		&cli.Int64Flag{
			Name:        "cache-memory-max-bytes",
			Category:    "Cache:",
			Sources:     cli.EnvVars("CHAT_HISTORY_CACHE_MEMORY_MAX_BYTES"),
			Destination: &cfg.CacheMaxCost,
			Value:       cfg.CacheMaxCost,
			Usage:       "Capacity of the in-process memory cache in bytes",
		},
	}
}
