package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hostwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *c.Thresholds.CPU != 25.0 || *c.Thresholds.Memory != 30.0 {
		t.Errorf("thresholds = %v/%v, want 25/30", *c.Thresholds.CPU, *c.Thresholds.Memory)
	}
	if got := c.Collector.IntervalDuration(); got != 5*time.Second {
		t.Errorf("interval = %v, want 5s", got)
	}
	if got := c.Collector.ErrorBackoffDuration(); got != 10*time.Second {
		t.Errorf("backoff = %v, want 10s", got)
	}
	if c.Collector.HistoryCapacity != 100 {
		t.Errorf("capacity = %d, want 100", c.Collector.HistoryCapacity)
	}
	if got := c.Auth.SessionTTLDuration(); got != 24*time.Hour {
		t.Errorf("session ttl = %v, want 24h", got)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "127.0.0.1:9000"
collector:
  interval: 2s
  history_capacity: 10
thresholds:
  cpu: 0
  memory: 75.5
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Listen != "127.0.0.1:9000" {
		t.Errorf("listen = %q", c.Server.Listen)
	}
	if *c.Thresholds.CPU != 0 {
		t.Errorf("explicit zero cpu threshold was replaced by default: %v", *c.Thresholds.CPU)
	}
	if *c.Thresholds.Memory != 75.5 {
		t.Errorf("memory threshold = %v", *c.Thresholds.Memory)
	}
	if c.Collector.IntervalDuration() != 2*time.Second || c.Collector.HistoryCapacity != 10 {
		t.Errorf("collector = %+v", c.Collector)
	}
	if c.Collector.ErrorBackoff != "10s" {
		t.Errorf("unset backoff should default, got %q", c.Collector.ErrorBackoff)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"threshold above range", "thresholds:\n  cpu: 150\n", "thresholds.cpu"},
		{"negative threshold", "thresholds:\n  memory: -1\n", "thresholds.memory"},
		{"bad duration", "collector:\n  interval: soon\n", "collector.interval"},
		{"zero duration", "auth:\n  session_ttl: 0s\n", "auth.session_ttl"},
		{"bcrypt cost too high", "auth:\n  bcrypt_cost: 40\n", "auth.bcrypt_cost"},
		{"bcrypt cost too low", "auth:\n  bcrypt_cost: 2\n", "auth.bcrypt_cost"},
		{"negative bcrypt cost", "auth:\n  bcrypt_cost: -1\n", "auth.bcrypt_cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOSTWATCH_LISTEN", "127.0.0.1:7777")
	t.Setenv("HOSTWATCH_DB", "/tmp/alerts.db")
	t.Setenv("HOSTWATCH_ADMIN_PASSWORD", "s3cret")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Listen != "127.0.0.1:7777" || c.Store.Path != "/tmp/alerts.db" || c.Auth.AdminPassword != "s3cret" {
		t.Errorf("env not applied: %+v %+v %+v", c.Server, c.Store, c.Auth)
	}
}
