package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/collabmd/collabmd/pkg/export"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	if cfg.Address != ":3000" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.MaxMessageSize != 1<<20 {
		t.Errorf("MaxMessageSize = %d", cfg.MaxMessageSize)
	}
	if cfg.SendQueueSize != 256 {
		t.Errorf("SendQueueSize = %d", cfg.SendQueueSize)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %s", cfg.WriteTimeout)
	}
	if cfg.KeepAliveInterval != 0 {
		t.Errorf("KeepAliveInterval = %s, want disabled", cfg.KeepAliveInterval)
	}
	if _, ok := cfg.Exporter.(export.Disabled); !ok {
		t.Errorf("Exporter = %T, want export.Disabled", cfg.Exporter)
	}
}

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	cfg := (&ServerConfig{Address: ":9000"}).withDefaults()

	if cfg.Address != ":9000" {
		t.Errorf("Address = %q, want :9000", cfg.Address)
	}
	if cfg.SendQueueSize != 256 || cfg.MaxMessageSize != 1<<20 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Store == nil || cfg.CheckOrigin == nil || cfg.Exporter == nil || cfg.Logger == nil {
		t.Errorf("collaborators not defaulted: %+v", cfg)
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "empty list allows all", allowed: nil, origin: "https://evil.example", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://any.example", want: true},
		{name: "exact origin", allowed: []string{"https://app.example"}, origin: "https://app.example", want: true},
		{name: "host only", allowed: []string{"app.example"}, origin: "http://app.example", want: true},
		{name: "case insensitive", allowed: []string{"App.Example"}, origin: "https://app.example", want: true},
		{name: "other origin", allowed: []string{"https://app.example"}, origin: "https://evil.example", want: false},
		{name: "no origin header", allowed: []string{"https://app.example"}, origin: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := OriginChecker(tt.allowed)(r); got != tt.want {
				t.Errorf("OriginChecker(%v)(%q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}
