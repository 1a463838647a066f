package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalConfig = `
server:
  admin_secret: test-secret
database:
  host: localhost
  dbname: placement
redis:
  addr: localhost:6379
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address != ":8091" {
		t.Errorf("Server.Address = %q, want :8091", cfg.Server.Address)
	}
	if cfg.Database.Port != "5432" {
		t.Errorf("Database.Port = %q, want 5432", cfg.Database.Port)
	}
	if cfg.Placement.MaxLiveInstructions != DefaultMaxLiveInstructions {
		t.Errorf("MaxLiveInstructions = %d, want %d",
			cfg.Placement.MaxLiveInstructions, DefaultMaxLiveInstructions)
	}
	if cfg.Placement.LinkRel != "nofollow" {
		t.Errorf("LinkRel = %q, want nofollow", cfg.Placement.LinkRel)
	}
	if cfg.AI.Timeout != DefaultExternalTimeout {
		t.Errorf("AI.Timeout = %v, want %v", cfg.AI.Timeout, DefaultExternalTimeout)
	}
}

func TestLoad_YAMLValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
placement:
  settle_delay: 7s
  recent_posts: 25
scheduler:
  enabled: true
  cron_spec: "0 */6 * * *"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Placement.SettleDelay != 7*time.Second {
		t.Errorf("SettleDelay = %v, want 7s", cfg.Placement.SettleDelay)
	}
	if cfg.Placement.RecentPosts != 25 {
		t.Errorf("RecentPosts = %d, want 25", cfg.Placement.RecentPosts)
	}
	if !cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled = false, want true")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("ADMIN_SECRET", "env-secret")
	t.Setenv("APP_DEBUG", "yes")
	t.Setenv("ENGINE_PORT", "9000")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Server.AdminSecret != "env-secret" {
		t.Errorf("AdminSecret = %q, want env-secret", cfg.Server.AdminSecret)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("Server.Address = %q, want :9000", cfg.Server.Address)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing admin secret",
			content: `
database:
  host: localhost
  dbname: placement
redis:
  addr: localhost:6379
`,
		},
		{
			name: "missing database host",
			content: `
server:
  admin_secret: s
database:
  dbname: placement
redis:
  addr: localhost:6379
`,
		},
		{
			name: "scheduler enabled without cron spec",
			content: minimalConfig + `
scheduler:
  enabled: true
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() expected error, got nil")
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"0", false},
		{"", false},
		{"banana", false},
	}

	for _, tc := range tests {
		if got := parseBool(tc.in); got != tc.want {
			t.Errorf("parseBool(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
