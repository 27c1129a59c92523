package config

import (
	"os"
	"path/filepath"
	"testing"

	"collabflow/catalog"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	if _, err := catalog.New(cfg.StageDefinitions()); err != nil {
		t.Fatalf("default stages must build a catalog: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "collabflow.toml")

	doc := `
listen = ":9090"

[database]
url = "postgres://test@localhost:5432/collabflow"

[auth]
jwt_secret = "file-secret"
token_ttl_hours = 8

[thresholds]
warning_max_hours = 12.0
critical_max_hours = 48.0

[report]
top_issues = 5

[[stages]]
id = "requested"
order = 0
planned_duration_hours = 24.0
suggested_actions = ["ping requester"]

[[stages]]
id = "done"
order = 1
planned_duration_hours = 6.0
terminal = true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Listen != ":9090" {
		t.Fatalf("expected listen :9090, got %s", cfg.Listen)
	}
	if cfg.Thresholds.WarningMaxHours != 12 || cfg.Thresholds.CriticalMaxHours != 48 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Thresholds)
	}
	if cfg.Report.TopIssues != 5 {
		t.Fatalf("expected top_issues 5, got %d", cfg.Report.TopIssues)
	}
	if len(cfg.Stages) != 2 || cfg.Stages[1].ID != "done" || !cfg.Stages[1].Terminal {
		t.Fatalf("unexpected stages: %+v", cfg.Stages)
	}
	if cfg.Auth.TokenTTL().Hours() != 8 {
		t.Fatalf("expected 8h token ttl, got %v", cfg.Auth.TokenTTL())
	}
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Stages) != 5 {
		t.Fatalf("expected default stage table, got %d stages", len(cfg.Stages))
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no stages", func(c *Config) { c.Stages = nil }},
		{"zero duration", func(c *Config) { c.Stages[0].PlannedDurationHours = 0 }},
		{"empty stage id", func(c *Config) { c.Stages[0].ID = "" }},
		{"inverted thresholds", func(c *Config) { c.Thresholds.CriticalMaxHours = 1 }},
		{"zero top issues", func(c *Config) { c.Report.TopIssues = 0 }},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTLHours = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
