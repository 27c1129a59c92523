package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"collabflow/catalog"
)

// Config is the process configuration, loaded once at startup from TOML.
type Config struct {
	Listen     string          `toml:"listen"`
	Database   DatabaseConfig  `toml:"database"`
	Auth       AuthConfig      `toml:"auth"`
	Thresholds ThresholdConfig `toml:"thresholds"`
	Report     ReportConfig    `toml:"report"`
	Stages     []StageConfig   `toml:"stages"`
}

type DatabaseConfig struct {
	URL string `toml:"url"`
}

type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// TokenTTL is the configured token lifetime as a duration.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// ThresholdConfig holds the warning classifier ceilings in overdue hours.
type ThresholdConfig struct {
	WarningMaxHours  float64 `toml:"warning_max_hours"`
	CriticalMaxHours float64 `toml:"critical_max_hours"`
}

type ReportConfig struct {
	TopIssues int `toml:"top_issues"`
}

// StageConfig is one row of the stage table.
type StageConfig struct {
	ID                   string   `toml:"id"`
	Order                int      `toml:"order"`
	PlannedDurationHours float64  `toml:"planned_duration_hours"`
	Terminal             bool     `toml:"terminal"`
	SuggestedActions     []string `toml:"suggested_actions"`
}

// Default returns the built-in configuration: the standard five-stage
// collaboration workflow and the default warning thresholds.
func Default() Config {
	return Config{
		Listen: ":8080",
		Auth: AuthConfig{
			TokenTTLHours: 24,
		},
		Thresholds: ThresholdConfig{
			WarningMaxHours:  24,
			CriticalMaxHours: 72,
		},
		Report: ReportConfig{
			TopIssues: 3,
		},
		Stages: []StageConfig{
			{ID: "pending_sample", Order: 0, PlannedDurationHours: 24,
				SuggestedActions: []string{"contact operator", "confirm shipping address"}},
			{ID: "sample_sent", Order: 1, PlannedDurationHours: 72,
				SuggestedActions: []string{"check logistics tracking", "nudge creator"}},
			{ID: "content_created", Order: 2, PlannedDurationHours: 48,
				SuggestedActions: []string{"request draft", "escalate to manager"}},
			{ID: "under_review", Order: 3, PlannedDurationHours: 24,
				SuggestedActions: []string{"ping reviewer", "escalate to manager"}},
			{ID: "published", Order: 4, PlannedDurationHours: 12, Terminal: true,
				SuggestedActions: []string{"verify live link"}},
		},
	}
}

// Load reads the TOML file at path on top of the defaults. An empty path or a
// missing file keeps the defaults. DATABASE_URL and JWT_SECRET env vars fill
// in whatever the file leaves empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// fall through to defaults
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run on.
func (c Config) Validate() error {
	if len(c.Stages) == 0 {
		return fmt.Errorf("config: no stages configured")
	}
	for _, s := range c.Stages {
		if s.ID == "" {
			return fmt.Errorf("config: stage with empty id")
		}
		if s.PlannedDurationHours <= 0 {
			return fmt.Errorf("config: stage %s: planned_duration_hours must be positive", s.ID)
		}
	}
	if c.Thresholds.WarningMaxHours <= 0 || c.Thresholds.CriticalMaxHours <= c.Thresholds.WarningMaxHours {
		return fmt.Errorf("config: thresholds must satisfy 0 < warning_max_hours < critical_max_hours")
	}
	if c.Report.TopIssues <= 0 {
		return fmt.Errorf("config: report.top_issues must be positive")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("config: auth.token_ttl_hours must be positive")
	}
	return nil
}

// StageDefinitions converts the configured stage table for the catalog.
func (c Config) StageDefinitions() []catalog.StageDefinition {
	defs := make([]catalog.StageDefinition, 0, len(c.Stages))
	for _, s := range c.Stages {
		defs = append(defs, catalog.StageDefinition{
			ID:                   s.ID,
			Order:                s.Order,
			PlannedDurationHours: s.PlannedDurationHours,
			Terminal:             s.Terminal,
			SuggestedActions:     s.SuggestedActions,
		})
	}
	return defs
}
