package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"linkgate/internal/models"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "LINKGATE_"

// Load builds the configuration from defaults, an optional YAML file and
// LINKGATE_* environment variables, in that order, then validates it.
func Load(configPath string) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := resolveSecret(&config.Gate); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// unsupportedConfig mirrors keys operators tend to carry over from other
// gate products. None of them has an effect here.
type unsupportedConfig struct {
	Gate struct {
		Sitekey  string `yaml:"sitekey"`
		Captcha  any    `yaml:"captcha"`
		Platform any    `yaml:"platform"`
	} `yaml:"gate"`
	Static any `yaml:"static"`
}

// warnUnsupportedKeys logs a warning for each ignored key found in the YAML data.
func warnUnsupportedKeys(data []byte) {
	var u unsupportedConfig
	if err := yaml.Unmarshal(data, &u); err != nil {
		return
	}
	if u.Gate.Sitekey != "" || u.Gate.Captcha != nil {
		slog.Warn("Config key is not supported; the gate uses its own proof-of-work challenge.", "config_key", "gate.captcha")
	}
	if u.Gate.Platform != nil {
		slog.Warn("Config key is not supported; routing belongs to the hosting platform.", "config_key", "gate.platform")
	}
	if u.Static != nil {
		slog.Warn("Config key is not supported; the gate does not serve static assets.", "config_key", "static")
	}
}

func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	warnUnsupportedKeys(data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// resolveSecret reads the signing secret from SecretFile when no inline
// secret was given. Surrounding whitespace, including the trailing newline
// most editors add, is stripped.
func resolveSecret(gc *models.GateConfig) error {
	if gc.Secret != "" || gc.SecretFile == "" {
		return nil
	}
	data, err := os.ReadFile(gc.SecretFile)
	if err != nil {
		return fmt.Errorf("failed to read secret file: %w", err)
	}
	gc.Secret = strings.TrimSpace(string(data))
	return nil
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func envString(name string, dst *string) {
	if v := env(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := env(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v := env(name); v != "" {
		*dst = strings.ToLower(v) == "true"
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := env(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envList(name string, dst *[]string) {
	if v := env(name); v != "" {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
	}
}

// loadFromEnvironment applies LINKGATE_* overrides. Unparsable numbers and
// durations are ignored and leave the previous value in place.
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	envInt("PORT", &config.Server.Port)
	envString("HOST", &config.Server.Host)
	envDuration("READ_TIMEOUT", &config.Server.ReadTimeout)
	envDuration("WRITE_TIMEOUT", &config.Server.WriteTimeout)
	envDuration("IDLE_TIMEOUT", &config.Server.IdleTimeout)
	envBool("TLS_ENABLED", &config.Server.TLSEnabled)
	envString("TLS_CERT_FILE", &config.Server.TLSCertFile)
	envString("TLS_KEY_FILE", &config.Server.TLSKeyFile)

	// Gate configuration
	envString("DESTINATION", &config.Gate.Destination)
	envString("SECRET", &config.Gate.Secret)
	envString("SECRET_FILE", &config.Gate.SecretFile)
	envString("TOKEN_PARAM", &config.Gate.TokenParam)

	// Classifier configuration
	envList("UA_DENYLIST", &config.Classifier.UserAgentDenylist)
	envList("ASN_DENYLIST", &config.Classifier.ASNDenylist)
	envList("CIDR_DENYLIST", &config.Classifier.CIDRDenylist)
	envList("ALLOWED_COUNTRIES", &config.Classifier.AllowedCountries)
	envList("PREVIEW_PATHS", &config.Classifier.PreviewPaths)
	envBool("BLOCK_HEAD", &config.Classifier.BlockHead)

	// GeoIP configuration
	envString("GEOIP_COUNTRY_DB", &config.GeoIP.CountryDB)
	envString("GEOIP_ASN_DB", &config.GeoIP.ASNDB)

	// Rate limiting
	envBool("RATE_LIMIT_ENABLED", &config.RateLimit.Enabled)
	envDuration("RATE_LIMIT_WINDOW", &config.RateLimit.Window)
	envInt("RATE_LIMIT_MAX_REQUESTS", &config.RateLimit.MaxRequests)

	// Proof configuration
	envInt("DIFFICULTY", &config.Proof.Difficulty)
	envInt("THRESHOLD", &config.Proof.Threshold)
	envDuration("CHALLENGE_TTL", &config.Proof.ChallengeTTL)
	envDuration("VERDICT_TIMEOUT", &config.Proof.VerdictTimeout)
	envDuration("FALLBACK_DELAY", &config.Proof.FallbackDelay)

	// Token and session
	envDuration("TOKEN_TTL", &config.Token.TTL)
	envBool("SESSION_ENABLED", &config.Session.Enabled)
	envString("SESSION_COOKIE", &config.Session.CookieName)
	envDuration("SESSION_TTL", &config.Session.TTL)
	envBool("SESSION_SECURE", &config.Session.Secure)

	// Storage configuration
	envString("STORAGE_TYPE", &config.Storage.Type)
	envString("STORAGE_KEY_PREFIX", &config.Storage.KeyPrefix)
	envString("DATABASE_DSN", &config.Storage.Database.DSN)
	envInt("DATABASE_MAX_OPEN_CONNS", &config.Storage.Database.MaxOpenConns)
	envString("REDIS_ADDR", &config.Storage.Redis.Addr)
	envString("REDIS_PASSWORD", &config.Storage.Redis.Password)
	envInt("REDIS_DB", &config.Storage.Redis.DB)
	envInt("REDIS_POOL_SIZE", &config.Storage.Redis.PoolSize)

	// Webhook configuration
	envBool("WEBHOOK_ENABLED", &config.Webhook.Enabled)
	envString("WEBHOOK_URL", &config.Webhook.URL)

	// Logging configuration
	envString("LOG_LEVEL", &config.Logging.Level)
	envString("LOG_FORMAT", &config.Logging.Format)
	envString("LOG_OUTPUT", &config.Logging.Output)
	envString("LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics and tracing
	envBool("METRICS_ENABLED", &config.Metrics.Enabled)
	envString("METRICS_PATH", &config.Metrics.Path)
	envInt("METRICS_PORT", &config.Metrics.Port)
	envBool("TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	envString("TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	envString("OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
}

// SaveExample writes an example configuration file. The secret is left out;
// the example points at a secret file instead.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Gate.Destination = "https://example.com/landing"
	config.Gate.SecretFile = "/run/secrets/linkgate"

	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	config.Webhook.URL = "https://hooks.example.com/linkgate"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
