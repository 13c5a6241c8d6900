package config

import (
	"errors"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	cerrors "github.com/collabmd/collabmd/internal/errors"
	"github.com/collabmd/collabmd/internal/logging"
)

const (
	// EnvPrefix prefixes every variable.
	EnvPrefix = "COLLABMD_"

	// DefaultEnvFile is read by Load when it exists.
	DefaultEnvFile = ".env"

	BrokerMemory = "memory"
	BrokerRedis  = "redis"

	redacted = "REDACTED"
)

// Config is the complete process configuration.
type Config struct {
	Addr      string `env:"ADDR" envDefault:":3000" json:"addr"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" json:"logLevel"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text" json:"logFormat"`

	// AllowedOrigins restricts websocket origins. Empty or "*" allows all.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," json:"allowedOrigins"`

	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE" envDefault:"1048576" json:"maxMessageSize"`
	SendQueueSize     int           `env:"SEND_QUEUE_SIZE" envDefault:"256" json:"sendQueueSize"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s" json:"writeTimeout"`
	KeepAliveInterval time.Duration `env:"KEEPALIVE_INTERVAL" envDefault:"0s" json:"keepAliveInterval"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s" json:"shutdownTimeout"`

	EmptySessionTTL time.Duration `env:"EMPTY_SESSION_TTL" envDefault:"0s" json:"emptySessionTTL"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"30s" json:"cleanupInterval"`

	// WelcomeContent replaces the default initial document when set.
	WelcomeContent string `env:"WELCOME_CONTENT" json:"welcomeContent,omitempty"`

	// Broker selects event fan-out. Session state is never shared between
	// processes, even with redis.
	Broker             string `env:"BROKER" envDefault:"memory" json:"broker"`
	RedisURL           string `env:"REDIS_URL" json:"redisURL,omitempty"`
	RedisChannelPrefix string `env:"REDIS_CHANNEL_PREFIX" envDefault:"collabmd:session:" json:"redisChannelPrefix"`

	Export ExportConfig `envPrefix:"EXPORT_S3_" json:"export"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"collabmd" json:"metricsNamespace"`
}

// ExportConfig configures the S3 exporter. Export is disabled when Bucket
// is empty.
type ExportConfig struct {
	Bucket      string `env:"BUCKET" json:"bucket,omitempty"`
	Prefix      string `env:"PREFIX" json:"prefix,omitempty"`
	Region      string `env:"REGION" json:"region,omitempty"`
	Endpoint    string `env:"ENDPOINT" json:"endpoint,omitempty"`
	AccessKeyID string `env:"ACCESS_KEY_ID" json:"accessKeyId,omitempty"`
	SecretKey   string `env:"SECRET_KEY" json:"secretKey,omitempty"`
}

// Enabled reports whether an export bucket is configured.
func (e ExportConfig) Enabled() bool {
	return e.Bucket != ""
}

// Load reads envFile into the process environment, if it exists, and parses
// the configuration. Variables already set are not overridden.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, cerrors.New("C001").
				WithDetailf("cannot read %s", envFile).
				Wrap(err)
		}
	}
	return Parse(nil)
}

// Parse builds a Config from environ, or from the process environment when
// environ is nil, and validates it.
func Parse(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	})
	if err != nil {
		return nil, cerrors.New("C001").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	var errs []*cerrors.Error

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, cerrors.New("C004").WithDetailf("COLLABMD_LOG_LEVEL=%q", c.LogLevel))
	}
	if !logging.ValidFormat(c.LogFormat) {
		errs = append(errs, cerrors.New("C004").WithDetailf("COLLABMD_LOG_FORMAT=%q", c.LogFormat))
	}

	if c.MaxMessageSize <= 0 {
		errs = append(errs, cerrors.New("C005").WithDetailf("COLLABMD_MAX_MESSAGE_SIZE=%d", c.MaxMessageSize))
	}
	if c.SendQueueSize <= 0 {
		errs = append(errs, cerrors.New("C005").WithDetailf("COLLABMD_SEND_QUEUE_SIZE=%d", c.SendQueueSize))
	}
	for name, d := range map[string]time.Duration{
		"WRITE_TIMEOUT":      c.WriteTimeout,
		"KEEPALIVE_INTERVAL": c.KeepAliveInterval,
		"SHUTDOWN_TIMEOUT":   c.ShutdownTimeout,
		"EMPTY_SESSION_TTL":  c.EmptySessionTTL,
		"CLEANUP_INTERVAL":   c.CleanupInterval,
	} {
		if d < 0 {
			errs = append(errs, cerrors.New("C005").WithDetailf("%s%s=%s", EnvPrefix, name, d))
		}
	}
	if c.EmptySessionTTL > 0 && c.CleanupInterval == 0 {
		errs = append(errs, cerrors.New("C005").
			WithDetail("COLLABMD_CLEANUP_INTERVAL must be positive when COLLABMD_EMPTY_SESSION_TTL is set"))
	}

	switch strings.ToLower(c.Broker) {
	case BrokerMemory:
	case BrokerRedis:
		if c.RedisURL == "" {
			errs = append(errs, cerrors.New("C002").WithDetail("COLLABMD_REDIS_URL is empty"))
		}
	default:
		errs = append(errs, cerrors.New("C003").WithDetailf("COLLABMD_BROKER=%q", c.Broker))
	}

	if (c.Export.AccessKeyID == "") != (c.Export.SecretKey == "") {
		errs = append(errs, cerrors.New("C006"))
	}

	return cerrors.Join(errs...)
}

// UsesRedis reports whether the redis broker is selected.
func (c *Config) UsesRedis() bool {
	return strings.EqualFold(c.Broker, BrokerRedis)
}

// Redacted returns a copy safe to print: the Redis password and the S3
// secret are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)

	if out.RedisURL != "" {
		if u, err := url.Parse(out.RedisURL); err == nil {
			out.RedisURL = u.Redacted()
		} else {
			out.RedisURL = redacted
		}
	}
	if out.Export.SecretKey != "" {
		out.Export.SecretKey = redacted
	}
	return &out
}
