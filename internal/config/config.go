// Package config provides configuration loading and validation from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
//
// Secret-valued fields hold the raw setting: either the value itself or a
// "store:<name>" reference resolved later through the encrypted secret store.
type Config struct {
	LogLevel          string // debug, info, warn, error
	ListenAddr        string // API listen address (e.g., ":8080")
	MetricsListenAddr string // Metrics listener address (e.g., "localhost:9090")
	DatabasePath      string // SQLite database path
	EncryptionKey     []byte // 32-byte AES key decoded from ENCRYPTION_KEY
	PublicBaseURL     string // Externally visible base URL, used for NIP-98 u-tag checks

	RelayURL            string // ws(s):// URL of the relay
	RelayManagementPath string // Path appended to the derived management URL
	RelayManagementURL  string // Optional explicit management URL override
	NostrSecretKey      string // hex or nsec; secret

	AllowedOrigins string // comma-separated CORS allow-list

	ZendeskJWTSecret       string // secret
	ZendeskWebhookSecret   string // secret
	ZendeskMobileJWTSecret string // secret
	ZendeskMobileKeyID     string
	ZendeskSubdomain       string
	ZendeskAPIEmail        string
	ZendeskAPIToken        string // secret

	ModerationServiceURL   string
	ModerationServiceToken string // secret

	ModeratorPubkeys  []string // hex pubkeys allowed to use NIP-98 operator auth
	OperatorTokenHash string   // bcrypt hash of the operator bearer token

	VerifyDelay       time.Duration
	RelayRPCTimeout   time.Duration
	PublishTimeout    time.Duration
	FanoutConcurrency int
	FanoutRate        float64 // sub-actions per second
	RecentEventsLimit int
}

// Defaults for optional settings.
const (
	DefaultListenAddr          = ":8080"
	DefaultMetricsListenAddr   = "localhost:9090"
	DefaultDatabasePath        = "/data/relay-admin.db"
	DefaultRelayManagementPath = "/"
	DefaultVerifyDelay         = 2 * time.Second
	DefaultRelayRPCTimeout     = 15 * time.Second
	DefaultPublishTimeout      = 10 * time.Second
	DefaultFanoutConcurrency   = 4
	DefaultFanoutRate          = 10.0
	DefaultRecentEventsLimit   = 100
)

// Load parses configuration from environment variables.
// Malformed numeric and duration values are errors; missing ones take defaults.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		ListenAddr:             getEnv("LISTEN_ADDR", DefaultListenAddr),
		MetricsListenAddr:      getEnv("METRICS_LISTEN_ADDR", DefaultMetricsListenAddr),
		DatabasePath:           getEnv("DATABASE_PATH", DefaultDatabasePath),
		PublicBaseURL:          strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		RelayURL:               os.Getenv("RELAY_URL"),
		RelayManagementPath:    getEnv("RELAY_MANAGEMENT_PATH", DefaultRelayManagementPath),
		RelayManagementURL:     os.Getenv("RELAY_MANAGEMENT_URL"),
		NostrSecretKey:         os.Getenv("NOSTR_SECRET_KEY"),
		AllowedOrigins:         os.Getenv("ALLOWED_ORIGINS"),
		ZendeskJWTSecret:       os.Getenv("ZENDESK_JWT_SECRET"),
		ZendeskWebhookSecret:   os.Getenv("ZENDESK_WEBHOOK_SECRET"),
		ZendeskMobileJWTSecret: os.Getenv("ZENDESK_MOBILE_JWT_SECRET"),
		ZendeskMobileKeyID:     os.Getenv("ZENDESK_MOBILE_KEY_ID"),
		ZendeskSubdomain:       os.Getenv("ZENDESK_SUBDOMAIN"),
		ZendeskAPIEmail:        os.Getenv("ZENDESK_API_EMAIL"),
		ZendeskAPIToken:        os.Getenv("ZENDESK_API_TOKEN"),
		ModerationServiceURL:   strings.TrimRight(os.Getenv("MODERATION_SERVICE_URL"), "/"),
		ModerationServiceToken: os.Getenv("MODERATION_SERVICE_TOKEN"),
		ModeratorPubkeys:       splitList(os.Getenv("MODERATOR_PUBKEYS")),
		OperatorTokenHash:      os.Getenv("OPERATOR_TOKEN_HASH"),
	}

	if raw := os.Getenv("ENCRYPTION_KEY"); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be hex: %w", err)
		}
		cfg.EncryptionKey = key
	}

	var err error
	if cfg.VerifyDelay, err = getDuration("VERIFY_DELAY", DefaultVerifyDelay); err != nil {
		return nil, err
	}
	if cfg.RelayRPCTimeout, err = getDuration("RELAY_RPC_TIMEOUT", DefaultRelayRPCTimeout); err != nil {
		return nil, err
	}
	if cfg.PublishTimeout, err = getDuration("PUBLISH_TIMEOUT", DefaultPublishTimeout); err != nil {
		return nil, err
	}
	if cfg.FanoutConcurrency, err = getInt("FANOUT_CONCURRENCY", DefaultFanoutConcurrency); err != nil {
		return nil, err
	}
	if cfg.RecentEventsLimit, err = getInt("RECENT_EVENTS_LIMIT", DefaultRecentEventsLimit); err != nil {
		return nil, err
	}
	if cfg.FanoutRate, err = getFloat("FANOUT_RATE", DefaultFanoutRate); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if len(c.EncryptionKey) != 32 {
		errs = append(errs, errors.New("ENCRYPTION_KEY must be 64 hex characters (32 bytes)"))
	}

	if c.RelayURL == "" {
		errs = append(errs, errors.New("RELAY_URL environment variable is required"))
	} else if u, err := url.Parse(c.RelayURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("RELAY_URL %q must use ws:// or wss://", c.RelayURL))
	}

	if c.RelayManagementURL != "" {
		if u, err := url.Parse(c.RelayManagementURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("RELAY_MANAGEMENT_URL %q must use http:// or https://", c.RelayManagementURL))
		}
	}

	for _, pk := range c.ModeratorPubkeys {
		if b, err := hex.DecodeString(pk); err != nil || len(b) != 32 {
			errs = append(errs, fmt.Errorf("MODERATOR_PUBKEYS entry %q is not a 64-char hex pubkey", pk))
		}
	}

	if c.FanoutConcurrency < 1 {
		errs = append(errs, errors.New("FANOUT_CONCURRENCY must be at least 1"))
	}
	if c.FanoutRate <= 0 {
		errs = append(errs, errors.New("FANOUT_RATE must be positive"))
	}
	if c.RecentEventsLimit < 1 {
		errs = append(errs, errors.New("RECENT_EVENTS_LIMIT must be at least 1"))
	}

	return errors.Join(errs...)
}

// ZendeskEnabled reports whether ticket notes can be posted.
func (c *Config) ZendeskEnabled() bool {
	return c.ZendeskSubdomain != "" && c.ZendeskAPIEmail != "" && c.ZendeskAPIToken != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, raw, err)
	}
	return f, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
