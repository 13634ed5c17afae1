package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"churn-insights/internal/records"
)

// SheetConfig points at one sheet. Path wins over URL when both are set.
type SheetConfig struct {
	Path       string
	URL        string
	HeaderRows int
}

type Config struct {
	ServiceID string
	HTTPPort  int
	LogLevel  slog.Level

	Churn         SheetConfig
	Reactivations SheetConfig
	FetchTimeout  time.Duration

	ChurnColumns        records.ColumnMap
	ReactivationColumns records.ColumnMap
	// PinnedChurnColumns and PinnedReactivationColumns hold the fields set
	// explicitly under columns.*; they win over header resolution.
	PinnedChurnColumns        records.ColumnMap
	PinnedReactivationColumns records.ColumnMap
	// ResolveHeaders lets recognizable header names override the default
	// column indexes.
	ResolveHeaders bool

	NarrativeAPIKey   string
	NarrativeModel    string
	NarrativeEndpoint string
	NarrativeTimeout  time.Duration

	DatabaseURL    string
	DatabaseSchema string
	RunTag         string
}

type sheetFile struct {
	Path       string `yaml:"path"`
	URL        string `yaml:"url"`
	HeaderRows *int   `yaml:"header_rows"`
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Sources struct {
		Churn          sheetFile `yaml:"churn"`
		Reactivations  sheetFile `yaml:"reactivations"`
		TimeoutSeconds int       `yaml:"timeout_seconds"`
	} `yaml:"sources"`
	Columns struct {
		ResolveHeaders *bool            `yaml:"resolve_headers"`
		Churn          map[string][]int `yaml:"churn"`
		Reactivations  map[string][]int `yaml:"reactivations"`
	} `yaml:"columns"`
	Narrative struct {
		Endpoint       string `yaml:"endpoint"`
		Model          string `yaml:"model"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"narrative"`
	Database struct {
		URL    string `yaml:"url"`
		Schema string `yaml:"schema"`
		Tag    string `yaml:"tag"`
	} `yaml:"database"`
}

func Default() Config {
	return Config{
		ServiceID:           "churn-insights",
		HTTPPort:            8080,
		LogLevel:            slog.LevelInfo,
		Churn:               SheetConfig{HeaderRows: 1},
		Reactivations:       SheetConfig{HeaderRows: 1},
		FetchTimeout:        20 * time.Second,
		ChurnColumns:        records.DefaultChurnColumns(),
		ReactivationColumns: records.DefaultReactivationColumns(),
		ResolveHeaders:      true,
		NarrativeTimeout:    60 * time.Second,
		DatabaseSchema:      "churn_insights",
	}
}

// Load resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error; an unreadable or malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.applyFile(raw); err != nil {
				return Config{}, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.ID != "" {
		c.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		c.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.LogLevel != "" {
		level, err := parseLevel(f.Service.LogLevel)
		if err != nil {
			return err
		}
		c.LogLevel = level
	}
	applySheet(&c.Churn, f.Sources.Churn)
	applySheet(&c.Reactivations, f.Sources.Reactivations)
	if f.Sources.TimeoutSeconds > 0 {
		c.FetchTimeout = time.Duration(f.Sources.TimeoutSeconds) * time.Second
	}

	if f.Columns.ResolveHeaders != nil {
		c.ResolveHeaders = *f.Columns.ResolveHeaders
	}
	churnCols, err := columnMap(f.Columns.Churn)
	if err != nil {
		return fmt.Errorf("columns.churn: %w", err)
	}
	c.ChurnColumns = c.ChurnColumns.Merge(churnCols)
	c.PinnedChurnColumns = records.ColumnMap{}.Merge(churnCols)
	reactCols, err := columnMap(f.Columns.Reactivations)
	if err != nil {
		return fmt.Errorf("columns.reactivations: %w", err)
	}
	c.ReactivationColumns = c.ReactivationColumns.Merge(reactCols)
	c.PinnedReactivationColumns = records.ColumnMap{}.Merge(reactCols)

	if f.Narrative.Endpoint != "" {
		c.NarrativeEndpoint = f.Narrative.Endpoint
	}
	if f.Narrative.Model != "" {
		c.NarrativeModel = f.Narrative.Model
	}
	if f.Narrative.APIKey != "" {
		c.NarrativeAPIKey = f.Narrative.APIKey
	}
	if f.Narrative.TimeoutSeconds > 0 {
		c.NarrativeTimeout = time.Duration(f.Narrative.TimeoutSeconds) * time.Second
	}
	if f.Database.URL != "" {
		c.DatabaseURL = f.Database.URL
	}
	if f.Database.Schema != "" {
		c.DatabaseSchema = f.Database.Schema
	}
	if f.Database.Tag != "" {
		c.RunTag = f.Database.Tag
	}
	return nil
}

func applySheet(dst *SheetConfig, src sheetFile) {
	if src.Path != "" {
		dst.Path = src.Path
	}
	if src.URL != "" {
		dst.URL = src.URL
	}
	if src.HeaderRows != nil {
		dst.HeaderRows = *src.HeaderRows
	}
}

func (c *Config) applyEnv() {
	c.Churn.Path = envOrDefault("CHURN_SHEET_PATH", c.Churn.Path)
	c.Churn.URL = envOrDefault("CHURN_SHEET_URL", c.Churn.URL)
	c.Reactivations.Path = envOrDefault("REACTIVATION_SHEET_PATH", c.Reactivations.Path)
	c.Reactivations.URL = envOrDefault("REACTIVATION_SHEET_URL", c.Reactivations.URL)
	c.NarrativeAPIKey = envOrDefault("GEMINI_API_KEY", c.NarrativeAPIKey)
	c.NarrativeModel = envOrDefault("NARRATIVE_MODEL", c.NarrativeModel)
	c.HTTPPort = envInt("HTTP_PORT", c.HTTPPort)
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := parseLevel(raw); err == nil {
			c.LogLevel = level
		}
	}
	c.DatabaseURL = envOrDefault("CHURN_INSIGHTS_DB_URL", envOrDefault("DATABASE_URL", c.DatabaseURL))
}

// Validate runs once at process start. The database is optional; both sheets
// are not.
func (c Config) Validate() error {
	var problems []string
	if c.Churn.Path == "" && c.Churn.URL == "" {
		problems = append(problems, "missing churn sheet (CHURN_SHEET_PATH or CHURN_SHEET_URL)")
	}
	if c.Reactivations.Path == "" && c.Reactivations.URL == "" {
		problems = append(problems, "missing reactivation sheet (REACTIVATION_SHEET_PATH or REACTIVATION_SHEET_URL)")
	}
	if c.Churn.HeaderRows < 0 || c.Reactivations.HeaderRows < 0 {
		problems = append(problems, "header_rows must not be negative")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		problems = append(problems, fmt.Sprintf("invalid http port %d", c.HTTPPort))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func columnMap(raw map[string][]int) (records.ColumnMap, error) {
	out := records.ColumnMap{}
	for name, chain := range raw {
		for _, idx := range chain {
			if idx < 0 {
				return nil, fmt.Errorf("field %s: negative column index %d", name, idx)
			}
		}
		out[records.Field(name)] = chain
	}
	return out, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func envOrDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
