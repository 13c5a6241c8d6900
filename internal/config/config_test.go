package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cerrors "github.com/collabmd/collabmd/internal/errors"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Addr != ":3000" {
		t.Errorf("Addr = %q, want :3000", cfg.Addr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MaxMessageSize != 1<<20 {
		t.Errorf("MaxMessageSize = %d", cfg.MaxMessageSize)
	}
	if cfg.SendQueueSize != 256 {
		t.Errorf("SendQueueSize = %d", cfg.SendQueueSize)
	}
	if cfg.WriteTimeout != 10*time.Second || cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("timeouts = %s/%s", cfg.WriteTimeout, cfg.ShutdownTimeout)
	}
	if cfg.KeepAliveInterval != 0 || cfg.EmptySessionTTL != 0 {
		t.Errorf("keepalive = %s, ttl = %s, want both 0", cfg.KeepAliveInterval, cfg.EmptySessionTTL)
	}
	if cfg.CleanupInterval != 30*time.Second {
		t.Errorf("CleanupInterval = %s", cfg.CleanupInterval)
	}
	if cfg.Broker != BrokerMemory || cfg.UsesRedis() {
		t.Errorf("Broker = %q", cfg.Broker)
	}
	if cfg.RedisChannelPrefix != "collabmd:session:" {
		t.Errorf("RedisChannelPrefix = %q", cfg.RedisChannelPrefix)
	}
	if cfg.MetricsNamespace != "collabmd" {
		t.Errorf("MetricsNamespace = %q", cfg.MetricsNamespace)
	}
	if cfg.Export.Enabled() {
		t.Error("export should be disabled by default")
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"COLLABMD_ADDR":               "127.0.0.1:8080",
		"COLLABMD_LOG_FORMAT":         "json",
		"COLLABMD_ALLOWED_ORIGINS":    "https://a.example,b.example",
		"COLLABMD_KEEPALIVE_INTERVAL": "15s",
		"COLLABMD_EMPTY_SESSION_TTL":  "10m",
		"COLLABMD_BROKER":             "redis",
		"COLLABMD_REDIS_URL":          "redis://localhost:6379/1",
		"COLLABMD_EXPORT_S3_BUCKET":   "docs",
		"COLLABMD_EXPORT_S3_REGION":   "eu-west-1",
		"COLLABMD_WELCOME_CONTENT":    "# Hi",
		"ADDR":                        ":9999",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q; unprefixed variables must be ignored", cfg.Addr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.KeepAliveInterval != 15*time.Second || cfg.EmptySessionTTL != 10*time.Minute {
		t.Errorf("durations = %s/%s", cfg.KeepAliveInterval, cfg.EmptySessionTTL)
	}
	if !cfg.UsesRedis() || cfg.RedisURL != "redis://localhost:6379/1" {
		t.Errorf("redis = %q %q", cfg.Broker, cfg.RedisURL)
	}
	if !cfg.Export.Enabled() || cfg.Export.Region != "eu-west-1" {
		t.Errorf("Export = %+v", cfg.Export)
	}
	if cfg.WelcomeContent != "# Hi" {
		t.Errorf("WelcomeContent = %q", cfg.WelcomeContent)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name     string
		environ  map[string]string
		wantCode string
	}{
		{
			name:     "bad duration",
			environ:  map[string]string{"COLLABMD_WRITE_TIMEOUT": "soon"},
			wantCode: "C001",
		},
		{
			name:     "redis without url",
			environ:  map[string]string{"COLLABMD_BROKER": "redis"},
			wantCode: "C002",
		},
		{
			name:     "unknown broker",
			environ:  map[string]string{"COLLABMD_BROKER": "kafka"},
			wantCode: "C003",
		},
		{
			name:     "unknown log level",
			environ:  map[string]string{"COLLABMD_LOG_LEVEL": "loud"},
			wantCode: "C004",
		},
		{
			name:     "zero send queue",
			environ:  map[string]string{"COLLABMD_SEND_QUEUE_SIZE": "0"},
			wantCode: "C005",
		},
		{
			name:     "negative ttl",
			environ:  map[string]string{"COLLABMD_EMPTY_SESSION_TTL": "-1s"},
			wantCode: "C005",
		},
		{
			name: "ttl without cleanup",
			environ: map[string]string{
				"COLLABMD_EMPTY_SESSION_TTL": "1m",
				"COLLABMD_CLEANUP_INTERVAL":  "0s",
			},
			wantCode: "C005",
		},
		{
			name:     "half credentials",
			environ:  map[string]string{"COLLABMD_EXPORT_S3_ACCESS_KEY_ID": "AKIA"},
			wantCode: "C006",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.environ)
			var ce *cerrors.Error
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *errors.Error", err)
			}
			if ce.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q (%v)", ce.Code, tt.wantCode, err)
			}
			if ce.Category != cerrors.CategoryConfig {
				t.Errorf("Category = %q", ce.Category)
			}
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	cfg.LogFormat = "xml"
	cfg.SendQueueSize = -1

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "LOG_FORMAT") || !strings.Contains(msg, "SEND_QUEUE_SIZE") {
		t.Errorf("error should name both settings: %s", msg)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	data := "COLLABMD_METRICS_NAMESPACE=fromfile\nCOLLABMD_ADDR=:4000\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("COLLABMD_ADDR", ":5000")
	// Registered so the value loaded from the file is cleared afterwards.
	t.Setenv("COLLABMD_METRICS_NAMESPACE", "")
	os.Unsetenv("COLLABMD_METRICS_NAMESPACE")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MetricsNamespace != "fromfile" {
		t.Errorf("MetricsNamespace = %q, want fromfile", cfg.MetricsNamespace)
	}
	if cfg.Addr != ":5000" {
		t.Errorf("Addr = %q; the process environment must win", cfg.Addr)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("a missing env file should be ignored: %v", err)
	}
}

func TestRedacted(t *testing.T) {
	cfg := &Config{
		RedisURL:       "redis://:hunter2@cache:6379/0",
		AllowedOrigins: []string{"a"},
		Export:         ExportConfig{AccessKeyID: "AKIA", SecretKey: "shh"},
	}
	out := cfg.Redacted()

	if strings.Contains(out.RedisURL, "hunter2") {
		t.Errorf("RedisURL not redacted: %q", out.RedisURL)
	}
	if !strings.Contains(out.RedisURL, "cache:6379") {
		t.Errorf("RedisURL lost its host: %q", out.RedisURL)
	}
	if out.Export.SecretKey != redacted {
		t.Errorf("SecretKey = %q", out.Export.SecretKey)
	}
	if cfg.Export.SecretKey != "shh" || cfg.RedisURL != "redis://:hunter2@cache:6379/0" {
		t.Error("Redacted must not modify the receiver")
	}
	out.AllowedOrigins[0] = "b"
	if cfg.AllowedOrigins[0] != "a" {
		t.Error("Redacted must copy AllowedOrigins")
	}
}
