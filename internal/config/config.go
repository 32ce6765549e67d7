package config

import (
	"context"
	"os"
	"strings"
	"time"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// LocalUserMarker is the sender value used for messages written by the active user.
const LocalUserMarker = "me"

// SourceConfig selects and configures one blob source (bundled or local).
type SourceConfig struct {
	// Kind is the blob store plugin name: "fs", "sqlite", "postgres", "mongo" or "s3".
	Kind string
	// Dir is the root directory for "fs".
	Dir string
	// DBURL is the connection URL for "sqlite", "postgres" and "mongo".
	DBURL string
	// Database is the mongo database name.
	Database string
	// S3 settings.
	S3Bucket       string
	S3Prefix       string
	S3UsePathStyle bool
}

// ListenerConfig configures one HTTP listener. Plaintext and TLS may be
// enabled together; both are then served on the same port.
type ListenerConfig struct {
	Port              int
	EnablePlainText   bool
	EnableTLS         bool
	TLSCertFile       string
	TLSKeyFile        string
	ReadHeaderTimeout time.Duration
}

// Config holds all configuration for the chat history service.
type Config struct {
	// UserID is the active user whose conversation index is loaded.
	UserID string

	// Bundled is the read-only seed dataset shipped with the application.
	Bundled SourceConfig
	// Local is the read-write device-local override store.
	Local SourceConfig

	// Maximum messages per page before the append engine starts a new page.
	MaxMessagesPerPage int
	// Minimum number of messages InitializeChatHistory tries to display.
	MinDisplayCount int

	// Cache backend for bundled/local reads: "none", "memory" or "redis".
	CacheType string
	RedisURL  string
	CacheTTL  time.Duration
	// Maximum bytes held by the "memory" cache.
	CacheMaxCost int64

	// Run SQL blob store migrations before opening the stores.
	MigrateAtStart bool

	// Server
	Listener ListenerConfig
	// ManagementListener serves health and metrics on a dedicated port when
	// ManagementListenerEnabled is set.
	ManagementListener        ListenerConfig
	ManagementListenerEnabled bool
	DrainTimeout              time.Duration
	// AccessLogAll also logs requests to /health, /ready and /metrics.
	AccessLogAll bool
	CORSEnabled  bool
	CORSOrigins  string
	MaxBodySize  int64

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	MetricsLabels string

	// Temporary file directory. Empty uses platform default temp directory.
	TempDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserID: "userid",
		Bundled: SourceConfig{
			Kind:     "fs",
			Dir:      "resources",
			Database: "chat_history_bundled",
		},
		Local: SourceConfig{
			Kind:     "fs",
			Dir:      "data",
			Database: "chat_history",
		},
		MaxMessagesPerPage: 20,
		MinDisplayCount:    20,
		CacheType:          "none",
		CacheTTL:           10 * time.Minute,
		CacheMaxCost:       64 << 20,
		MigrateAtStart:     true,
		Listener: ListenerConfig{
			Port:              8080,
			EnablePlainText:   true,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ManagementListener: ListenerConfig{
			Port:              9090,
			EnablePlainText:   true,
			ReadHeaderTimeout: 5 * time.Second,
		},
		DrainTimeout:  30 * time.Second,
		CORSOrigins:   "*",
		MaxBodySize:   64 << 10,
		MetricsLabels: "service=chat-history",
	}
}

// ResolvedTempDir returns the configured temp directory or the platform default.
func (c *Config) ResolvedTempDir() string {
	if c == nil {
		return os.TempDir()
	}
	if dir := strings.TrimSpace(c.TempDir); dir != "" {
		return dir
	}
	return os.TempDir()
}

// Source returns the SourceConfig for the named role ("bundled" or "local").
func (c *Config) Source(role string) SourceConfig {
	if role == RoleBundled {
		return c.Bundled
	}
	return c.Local
}

const (
	RoleBundled = "bundled"
	RoleLocal   = "local"
)

type roleKey struct{}

// WithRole marks the context with the blob source role being loaded, so
// plugin loaders can pick the matching SourceConfig.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext returns the blob source role, defaulting to local.
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey{}).(string); ok && role != "" {
		return role
	}
	return RoleLocal
}
