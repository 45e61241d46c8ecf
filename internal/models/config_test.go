package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := NewDefaultConfig()
	c.Gate.Destination = "https://example.com/landing"
	c.Gate.Secret = strings.Repeat("k", MinSecretLength)
	return c
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, int64(16<<10), config.Server.MaxBodyBytes)
	assert.False(t, config.Server.TLSEnabled)

	assert.Empty(t, config.Gate.Destination)
	assert.Empty(t, config.Gate.Secret)
	assert.Equal(t, "t", config.Gate.TokenParam)

	assert.Contains(t, config.Classifier.UserAgentDenylist, "bot")
	assert.True(t, config.Classifier.BlockHead)
	assert.Empty(t, config.Classifier.AllowedCountries)

	assert.Equal(t, 16, config.Proof.Difficulty)
	assert.Equal(t, 2, config.Proof.Threshold)
	assert.Equal(t, 40*time.Second, config.Token.TTL)
	assert.True(t, config.Session.Enabled)
	assert.True(t, config.Session.Secure)
	assert.Equal(t, StorageTypeMemory, config.Storage.Type)
	assert.False(t, config.Webhook.Enabled)
	assert.Equal(t, "linkgate", config.Observability.ServiceName)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "defaults lack secret", mutate: func(c *Config) { c.Gate.Secret = "" }, errorMsg: "invalid gate config"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = -1 }, errorMsg: "invalid server config"},
		{name: "bad storage", mutate: func(c *Config) { c.Storage.Type = "etcd" }, errorMsg: "invalid storage config"},
		{name: "bad proof", mutate: func(c *Config) { c.Proof.Difficulty = 0 }, errorMsg: "invalid proof config"},
		{name: "bad token", mutate: func(c *Config) { c.Token.TTL = time.Hour }, errorMsg: "invalid token config"},
		{name: "bad session", mutate: func(c *Config) { c.Session.CookieName = "" }, errorMsg: "invalid session config"},
		{name: "bad rate limit", mutate: func(c *Config) { c.RateLimit.MaxRequests = 0 }, errorMsg: "invalid rate limit config"},
		{name: "bad webhook", mutate: func(c *Config) { c.Webhook.Enabled = true }, errorMsg: "invalid webhook config"},
		{name: "bad logging", mutate: func(c *Config) { c.Logging.Level = "loud" }, errorMsg: "invalid logging config"},
		{name: "bad metrics", mutate: func(c *Config) { c.Metrics.Path = "" }, errorMsg: "invalid metrics config"},
		{name: "bad observability", mutate: func(c *Config) { c.Observability.ServiceName = "" }, errorMsg: "invalid observability config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*ServerConfig) {}},
		{name: "port zero", mutate: func(s *ServerConfig) { s.Port = 0 }, wantErr: true},
		{name: "port too high", mutate: func(s *ServerConfig) { s.Port = 70000 }, wantErr: true},
		{name: "empty host", mutate: func(s *ServerConfig) { s.Host = "" }, wantErr: true},
		{name: "negative timeout", mutate: func(s *ServerConfig) { s.ReadTimeout = -time.Second }, wantErr: true},
		{name: "zero body limit", mutate: func(s *ServerConfig) { s.MaxBodyBytes = 0 }, wantErr: true},
		{name: "tls without cert", mutate: func(s *ServerConfig) { s.TLSEnabled = true; s.TLSKeyFile = "key.pem" }, wantErr: true},
		{name: "tls without key", mutate: func(s *ServerConfig) { s.TLSEnabled = true; s.TLSCertFile = "cert.pem" }, wantErr: true},
		{name: "tls complete", mutate: func(s *ServerConfig) {
			s.TLSEnabled = true
			s.TLSCertFile = "cert.pem"
			s.TLSKeyFile = "key.pem"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := NewDefaultConfig().Server
			tt.mutate(&sc)
			if tt.wantErr {
				assert.Error(t, sc.Validate())
			} else {
				assert.NoError(t, sc.Validate())
			}
		})
	}
}

func TestGateConfig_Validate(t *testing.T) {
	secret := strings.Repeat("s", MinSecretLength)
	tests := []struct {
		name    string
		config  GateConfig
		wantErr error
	}{
		{name: "valid https", config: GateConfig{Destination: "https://example.com/x?y=1", Secret: secret, TokenParam: "t"}},
		{name: "valid http", config: GateConfig{Destination: "http://example.com", Secret: secret, TokenParam: "t"}},
		{name: "uppercase scheme", config: GateConfig{Destination: "HTTPS://example.com", Secret: secret, TokenParam: "t"}},
		{name: "missing secret", config: GateConfig{Destination: "https://example.com", TokenParam: "t"}, wantErr: ErrMissingSecret},
		{name: "weak secret", config: GateConfig{Destination: "https://example.com", Secret: "short", TokenParam: "t"}, wantErr: ErrWeakSecret},
		{name: "relative", config: GateConfig{Destination: "/landing", Secret: secret, TokenParam: "t"}, wantErr: ErrInvalidDestination},
		{name: "ftp", config: GateConfig{Destination: "ftp://example.com", Secret: secret, TokenParam: "t"}, wantErr: ErrInvalidDestination},
		{name: "no host", config: GateConfig{Destination: "https://", Secret: secret, TokenParam: "t"}, wantErr: ErrInvalidDestination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("empty token param", func(t *testing.T) {
		gc := GateConfig{Destination: "https://example.com", Secret: secret}
		assert.Error(t, gc.Validate())
	})
}

func TestProofConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ProofConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*ProofConfig) {}},
		{name: "difficulty too high", mutate: func(p *ProofConfig) { p.Difficulty = 33 }, wantErr: true},
		{name: "threshold zero", mutate: func(p *ProofConfig) { p.Threshold = 0 }, wantErr: true},
		{name: "threshold above max score", mutate: func(p *ProofConfig) { p.Threshold = 4 }, wantErr: true},
		{name: "fallback before verdict timeout", mutate: func(p *ProofConfig) { p.FallbackDelay = p.VerdictTimeout }, wantErr: true},
		{name: "fallback after challenge expiry", mutate: func(p *ProofConfig) { p.FallbackDelay = p.ChallengeTTL }, wantErr: true},
		{name: "negative time on page", mutate: func(p *ProofConfig) { p.MinTimeOnPage = -time.Millisecond }, wantErr: true},
		{name: "zero fingerprint ttl", mutate: func(p *ProofConfig) { p.FingerprintTTL = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := NewDefaultConfig().Proof
			tt.mutate(&pc)
			if tt.wantErr {
				assert.Error(t, pc.Validate())
			} else {
				assert.NoError(t, pc.Validate())
			}
		})
	}
}

func TestTokenConfig_Validate(t *testing.T) {
	assert.NoError(t, (&TokenConfig{TTL: 5 * time.Second}).Validate())
	assert.NoError(t, (&TokenConfig{TTL: 5 * time.Minute}).Validate())
	assert.Error(t, (&TokenConfig{TTL: 4 * time.Second}).Validate())
	assert.Error(t, (&TokenConfig{TTL: 6 * time.Minute}).Validate())
}

func TestSessionConfig_Validate(t *testing.T) {
	assert.NoError(t, (&SessionConfig{Enabled: false}).Validate())
	assert.NoError(t, (&SessionConfig{Enabled: true, CookieName: "__gate", TTL: time.Hour}).Validate())
	assert.Error(t, (&SessionConfig{Enabled: true, TTL: time.Hour}).Validate())
	assert.Error(t, (&SessionConfig{Enabled: true, CookieName: "__gate"}).Validate())
}

func TestRateLimitConfig_Validate(t *testing.T) {
	assert.NoError(t, (&RateLimitConfig{Enabled: false}).Validate())
	assert.NoError(t, (&RateLimitConfig{Enabled: true, Window: time.Minute, MaxRequests: 1, CleanupInterval: time.Minute}).Validate())
	assert.Error(t, (&RateLimitConfig{Enabled: true, MaxRequests: 1, CleanupInterval: time.Minute}).Validate())
	assert.Error(t, (&RateLimitConfig{Enabled: true, Window: time.Minute, CleanupInterval: time.Minute}).Validate())
	assert.Error(t, (&RateLimitConfig{Enabled: true, Window: time.Minute, MaxRequests: 1}).Validate())
}

func TestStorageConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		config   StorageConfig
		errorMsg string
	}{
		{name: "memory", config: StorageConfig{Type: StorageTypeMemory, SweepInterval: time.Minute}},
		{name: "redis", config: StorageConfig{Type: StorageTypeRedis, SweepInterval: time.Minute, Redis: RedisConfig{Addr: "localhost:6379"}}},
		{name: "redis without addr", config: StorageConfig{Type: StorageTypeRedis, SweepInterval: time.Minute}, errorMsg: "Redis address is required"},
		{name: "sqlite", config: StorageConfig{Type: StorageTypeSQLite, SweepInterval: time.Minute, Database: DatabaseConfig{DSN: "gate.db"}}},
		{name: "postgres without dsn", config: StorageConfig{Type: StorageTypePostgres, SweepInterval: time.Minute}, errorMsg: "database DSN is required"},
		{name: "unknown type", config: StorageConfig{Type: "json", SweepInterval: time.Minute}, errorMsg: "invalid storage type"},
		{name: "zero sweep", config: StorageConfig{Type: StorageTypeMemory}, errorMsg: "sweep interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestWebhookConfig_Validate(t *testing.T) {
	valid := NewDefaultConfig().Webhook
	valid.Enabled = true
	valid.URL = "https://hooks.example.com/gate"
	assert.NoError(t, valid.Validate())

	relative := valid
	relative.URL = "/hook"
	assert.Error(t, relative.Validate())

	noQueue := valid
	noQueue.QueueSize = 0
	assert.Error(t, noQueue.Validate())

	noRate := valid
	noRate.RatePerSecond = 0
	assert.Error(t, noRate.Validate())

	disabled := WebhookConfig{}
	assert.NoError(t, disabled.Validate())
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  LoggingConfig
		wantErr bool
	}{
		{name: "json stdout", config: LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{name: "text stderr", config: LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}},
		{name: "file with path", config: LoggingConfig{Level: "warn", Format: "json", Output: "file", FilePath: "/var/log/gate.log"}},
		{name: "file without path", config: LoggingConfig{Level: "warn", Format: "json", Output: "file"}, wantErr: true},
		{name: "bad level", config: LoggingConfig{Level: "trace", Format: "json", Output: "stdout"}, wantErr: true},
		{name: "bad format", config: LoggingConfig{Level: "info", Format: "xml", Output: "stdout"}, wantErr: true},
		{name: "bad output", config: LoggingConfig{Level: "info", Format: "json", Output: "syslog"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr {
				assert.Error(t, tt.config.Validate())
			} else {
				assert.NoError(t, tt.config.Validate())
			}
		})
	}
}

func TestMetricsConfig_Validate(t *testing.T) {
	assert.NoError(t, (&MetricsConfig{Enabled: false}).Validate())
	assert.NoError(t, (&MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Port: 9090}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Path: "/metrics"}).Validate())
}

func TestObservabilityConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		config   ObservabilityConfig
		errorMsg string
	}{
		{name: "tracing disabled", config: ObservabilityConfig{ServiceName: "linkgate"}},
		{name: "stdout", config: ObservabilityConfig{ServiceName: "linkgate", Tracing: TracingConfig{Enabled: true, Exporter: "stdout"}}},
		{name: "otlp", config: ObservabilityConfig{ServiceName: "linkgate", Tracing: TracingConfig{Enabled: true, Exporter: "otlp", OTLPEndpoint: "collector:4317"}}},
		{name: "otlp without endpoint", config: ObservabilityConfig{ServiceName: "linkgate", Tracing: TracingConfig{Enabled: true, Exporter: "otlp"}}, errorMsg: "OTLP endpoint"},
		{name: "unknown exporter", config: ObservabilityConfig{ServiceName: "linkgate", Tracing: TracingConfig{Enabled: true, Exporter: "jaeger"}}, errorMsg: "invalid trace exporter"},
		{name: "no service name", config: ObservabilityConfig{}, errorMsg: "service name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}
