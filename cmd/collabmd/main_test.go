package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/collabmd/collabmd/internal/config"
	"github.com/collabmd/collabmd/internal/logging"
	"github.com/collabmd/collabmd/pkg/export"
)

func testConfig(t *testing.T, environ map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.Parse(environ)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cfg
}

func TestServerConfig(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"COLLABMD_ADDR":              ":8080",
		"COLLABMD_SEND_QUEUE_SIZE":   "32",
		"COLLABMD_EMPTY_SESSION_TTL": "5m",
		"COLLABMD_WELCOME_CONTENT":   "# Notes",
		"COLLABMD_METRICS_NAMESPACE": "md",
	})

	sc := serverConfig(cfg, nil, export.Disabled{}, logging.Discard())
	if sc.Address != ":8080" || sc.SendQueueSize != 32 || sc.MetricsNamespace != "md" {
		t.Errorf("server config = %+v", sc)
	}
	if sc.Store.WelcomeContent != "# Notes" || sc.Store.EmptySessionTTL != 5*time.Minute {
		t.Errorf("store config = %+v", sc.Store)
	}
	if sc.CheckOrigin == nil {
		t.Error("CheckOrigin should be set")
	}
}

func TestBuildServerMemory(t *testing.T) {
	cfg := testConfig(t, map[string]string{})

	srv, err := buildServer(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	defer srv.Shutdown(context.Background())

	snap := srv.Store().GetOrCreate("s")
	if snap.Content == "" {
		t.Error("new session should start with the welcome content")
	}
}

func TestBuildServerRedisUnavailable(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"COLLABMD_BROKER":    "redis",
		"COLLABMD_REDIS_URL": "redis://:secret@127.0.0.1:1/0",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := buildServer(ctx, cfg, logging.Discard())
	if err == nil {
		t.Fatal("expected an error for an unreachable redis")
	}
	if !strings.Contains(err.Error(), "C100") {
		t.Errorf("err = %v, want C100", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("error leaks the password: %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--short"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Errorf("output = %q, want %q", out.String(), version)
	}
}

func TestConfigCmdRedacts(t *testing.T) {
	t.Setenv("COLLABMD_EXPORT_S3_BUCKET", "docs")
	t.Setenv("COLLABMD_EXPORT_S3_ACCESS_KEY_ID", "AKIA")
	t.Setenv("COLLABMD_EXPORT_S3_SECRET_KEY", "topsecret")

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--env-file", ""})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(out.String(), "topsecret") {
		t.Errorf("secret printed:\n%s", out.String())
	}

	var printed config.Config
	if err := json.Unmarshal(out.Bytes(), &printed); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if printed.Export.Bucket != "docs" || printed.Addr != ":3000" {
		t.Errorf("printed = %+v", printed)
	}
}
