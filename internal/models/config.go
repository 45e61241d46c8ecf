// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every gate component.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, gate, classifier, proof, etc.)
// - Defaults that are safe to run, except for the signing secret which has none
// - Validation catches misconfiguration at startup, never at request time
// - Configuration is immutable for the lifetime of the process
package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// MinSecretLength is the minimum accepted signing secret length in bytes.
const MinSecretLength = 32

var (
	// ErrMissingSecret is returned when no signing secret was supplied.
	ErrMissingSecret = errors.New("signing secret is required")
	// ErrWeakSecret is returned when the signing secret is shorter than MinSecretLength.
	ErrWeakSecret = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	// ErrInvalidDestination is returned when the destination is not an absolute http(s) URL.
	ErrInvalidDestination = errors.New("destination must be an absolute http or https URL")
)

// Config is the root configuration structure containing all gate settings.
//
// Configuration Structure:
// - Server: HTTP listener settings
// - Gate: destination, signing secret, token parameter
// - Classifier: static denylists and allowlists
// - GeoIP: optional MaxMind databases used when the platform sends no metadata
// - RateLimit: fixed-window throttling per client
// - Proof: proof-of-work difficulty, scoring and fallback timings
// - Token / Session: lifetimes of pass tokens and session markers
// - Storage: backend for rate windows, replay nonces and fingerprints
// - Webhook: optional event collaborator
// - Logging / Metrics / Observability: ambient operational concerns
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Gate          GateConfig          `yaml:"gate" json:"gate"`
	Classifier    ClassifierConfig    `yaml:"classifier" json:"classifier"`
	GeoIP         GeoIPConfig         `yaml:"geoip" json:"geoip"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Proof         ProofConfig         `yaml:"proof" json:"proof"`
	Token         TokenConfig         `yaml:"token" json:"token"`
	Session       SessionConfig       `yaml:"session" json:"session"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Webhook       WebhookConfig       `yaml:"webhook" json:"webhook"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	// MaxBodyBytes bounds the size of a proof submission body.
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// GateConfig holds the protected destination and the signing key material.
// Secret is never serialized back out.
type GateConfig struct {
	Destination string `yaml:"destination" json:"destination"`
	Secret      string `yaml:"secret" json:"-"`
	SecretFile  string `yaml:"secret_file" json:"secret_file,omitempty"`
	TokenParam  string `yaml:"token_param" json:"token_param"`
}

type ClassifierConfig struct {
	UserAgentDenylist []string `yaml:"user_agent_denylist" json:"user_agent_denylist"`
	ParseUserAgent    bool     `yaml:"parse_user_agent" json:"parse_user_agent"`
	ASNDenylist       []string `yaml:"asn_denylist" json:"asn_denylist"`
	CIDRDenylist      []string `yaml:"cidr_denylist" json:"cidr_denylist"`
	AllowedCountries  []string `yaml:"allowed_countries" json:"allowed_countries"`
	BlockHead         bool     `yaml:"block_head" json:"block_head"`
	PreviewPaths      []string `yaml:"preview_paths" json:"preview_paths"`
	CountryHeaders    []string `yaml:"country_headers" json:"country_headers"`
	ASNHeaders        []string `yaml:"asn_headers" json:"asn_headers"`
}

type GeoIPConfig struct {
	CountryDB string `yaml:"country_db" json:"country_db"`
	ASNDB     string `yaml:"asn_db" json:"asn_db"`
}

type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Window          time.Duration `yaml:"window" json:"window"`
	MaxRequests     int           `yaml:"max_requests" json:"max_requests"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// ProofConfig tunes the cost of forging a pass against the latency a human sees.
// Difficulty is counted in leading zero bits of the SHA-256 digest.
type ProofConfig struct {
	Difficulty     int           `yaml:"difficulty" json:"difficulty"`
	Threshold      int           `yaml:"threshold" json:"threshold"`
	ChallengeTTL   time.Duration `yaml:"challenge_ttl" json:"challenge_ttl"`
	MinTimeOnPage  time.Duration `yaml:"min_time_on_page" json:"min_time_on_page"`
	VerdictTimeout time.Duration `yaml:"verdict_timeout" json:"verdict_timeout"`
	FallbackDelay  time.Duration `yaml:"fallback_delay" json:"fallback_delay"`
	FingerprintTTL time.Duration `yaml:"fingerprint_ttl" json:"fingerprint_ttl"`
}

type TokenConfig struct {
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

type SessionConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	CookieName string        `yaml:"cookie_name" json:"cookie_name"`
	TTL        time.Duration `yaml:"ttl" json:"ttl"`
	Secure     bool          `yaml:"secure" json:"secure"`
}

type StorageConfig struct {
	Type      string         `yaml:"type" json:"type"`
	KeyPrefix string         `yaml:"key_prefix" json:"key_prefix"`
	Database  DatabaseConfig `yaml:"database" json:"database"`
	Redis     RedisConfig    `yaml:"redis" json:"redis"`
	// SweepInterval controls how often expired entries are purged from the
	// memory and SQL backends. Redis expires keys on its own.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn" json:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

type WebhookConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	URL           string        `yaml:"url" json:"url"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second" json:"rate_per_second"`
	Burst         int           `yaml:"burst" json:"burst"`
	QueueSize     int           `yaml:"queue_size" json:"queue_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with deployable defaults.
//
// Default Values Rationale:
// - Port 8080: Standard non-privileged HTTP port
// - Difficulty 16 bits: well under a second on a phone
// - Token TTL 40s: outlives the slowest proof, not a second round-trip
// - Session TTL 12h: one working day without repeated challenges
// - Memory storage: no external dependencies for a single instance
//
// Destination and secret are intentionally left empty and must be supplied.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 16 << 10,
		},
		Gate: GateConfig{
			TokenParam: "t",
		},
		Classifier: ClassifierConfig{
			UserAgentDenylist: []string{
				"bot", "crawl", "spider", "slurp", "preview", "curl", "wget",
				"python", "go-http", "httpclient", "headless", "monitor", "uptime",
			},
			ParseUserAgent:   true,
			ASNDenylist:      []string{},
			CIDRDenylist:     []string{},
			AllowedCountries: []string{},
			BlockHead:        true,
			PreviewPaths:     []string{},
			CountryHeaders:   []string{"CF-IPCountry", "X-Country-Code"},
			ASNHeaders:       []string{"X-ASN", "CF-ASN"},
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			Window:          time.Minute,
			MaxRequests:     60,
			CleanupInterval: 5 * time.Minute,
		},
		Proof: ProofConfig{
			Difficulty:     16,
			Threshold:      2,
			ChallengeTTL:   2 * time.Minute,
			MinTimeOnPage:  300 * time.Millisecond,
			VerdictTimeout: 8 * time.Second,
			FallbackDelay:  15 * time.Second,
			FingerprintTTL: 24 * time.Hour,
		},
		Token: TokenConfig{
			TTL: 40 * time.Second,
		},
		Session: SessionConfig{
			Enabled:    true,
			CookieName: "__gate",
			TTL:        12 * time.Hour,
			Secure:     true,
		},
		Storage: StorageConfig{
			Type:          StorageTypeMemory,
			KeyPrefix:     "linkgate:",
			SweepInterval: time.Minute,
			Database: DatabaseConfig{
				MaxOpenConns: 10,
			},
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		Webhook: WebhookConfig{
			Enabled:       false,
			Timeout:       3 * time.Second,
			RatePerSecond: 20,
			Burst:         40,
			QueueSize:     256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "linkgate",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("invalid gate config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if err := c.Proof.Validate(); err != nil {
		return fmt.Errorf("invalid proof config: %w", err)
	}

	if err := c.Token.Validate(); err != nil {
		return fmt.Errorf("invalid token config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Webhook.Validate(); err != nil {
		return fmt.Errorf("invalid webhook config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (gc *GateConfig) Validate() error {
	if gc.Secret == "" {
		return ErrMissingSecret
	}
	if len(gc.Secret) < MinSecretLength {
		return ErrWeakSecret
	}

	u, err := url.Parse(gc.Destination)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidDestination
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return ErrInvalidDestination
	}

	if gc.TokenParam == "" {
		return errors.New("token parameter name cannot be empty")
	}

	return nil
}

func (rc *RateLimitConfig) Validate() error {
	if !rc.Enabled {
		return nil
	}
	if rc.Window <= 0 {
		return errors.New("window must be positive")
	}
	if rc.MaxRequests <= 0 {
		return errors.New("max requests must be positive")
	}
	if rc.CleanupInterval <= 0 {
		return errors.New("cleanup interval must be positive")
	}
	return nil
}

func (pc *ProofConfig) Validate() error {
	if pc.Difficulty < 1 || pc.Difficulty > 32 {
		return errors.New("difficulty must be between 1 and 32 bits")
	}
	if pc.Threshold < 1 || pc.Threshold > 3 {
		return errors.New("threshold must be between 1 and 3")
	}
	if pc.ChallengeTTL <= 0 {
		return errors.New("challenge TTL must be positive")
	}
	if pc.MinTimeOnPage < 0 {
		return errors.New("min time on page cannot be negative")
	}
	if pc.VerdictTimeout <= 0 {
		return errors.New("verdict timeout must be positive")
	}
	if pc.FallbackDelay <= pc.VerdictTimeout {
		return errors.New("fallback delay must be longer than the verdict timeout")
	}
	if pc.FallbackDelay >= pc.ChallengeTTL {
		return errors.New("fallback delay must be shorter than the challenge TTL")
	}
	if pc.FingerprintTTL <= 0 {
		return errors.New("fingerprint TTL must be positive")
	}
	return nil
}

func (tc *TokenConfig) Validate() error {
	if tc.TTL < 5*time.Second || tc.TTL > 5*time.Minute {
		return errors.New("token TTL must be between 5s and 5m")
	}
	return nil
}

func (sc *SessionConfig) Validate() error {
	if !sc.Enabled {
		return nil
	}
	if sc.CookieName == "" {
		return errors.New("cookie name cannot be empty")
	}
	if sc.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if stc.Redis.Addr == "" {
			return errors.New("Redis address is required when storage type is redis")
		}
	case StorageTypeSQLite, StorageTypePostgres:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}

	if stc.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}

	return nil
}

func (wc *WebhookConfig) Validate() error {
	if !wc.Enabled {
		return nil
	}
	u, err := url.Parse(wc.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.New("webhook URL must be absolute")
	}
	if wc.Timeout <= 0 {
		return errors.New("webhook timeout must be positive")
	}
	if wc.RatePerSecond <= 0 || wc.Burst <= 0 {
		return errors.New("webhook rate and burst must be positive")
	}
	if wc.QueueSize <= 0 {
		return errors.New("webhook queue size must be positive")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	if !oneOf(lc.Level, "debug", "info", "warn", "error") {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if !oneOf(lc.Format, "json", "text") {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	if !oneOf(lc.Output, "stdout", "stderr", "file") {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if !oc.Tracing.Enabled {
		return nil
	}
	if !oneOf(oc.Tracing.Exporter, "stdout", "otlp") {
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}
	if oc.Tracing.Exporter == "otlp" && oc.Tracing.OTLPEndpoint == "" {
		return errors.New("OTLP endpoint is required when exporter is otlp")
	}
	return nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
