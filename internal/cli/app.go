package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"churn-insights/internal/config"
	"churn-insights/internal/narrative"
	"churn-insights/internal/report"
	"churn-insights/internal/sheets"
	"churn-insights/internal/store"
)

var errMissingDatabase = errors.New("database URL missing; set CHURN_INSIGHTS_DB_URL or DATABASE_URL")

// app is everything a command needs after configuration is resolved.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	service *report.Service
}

func loadApp(configPath string, logOutput io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(logOutput, cfg)
	slog.SetDefault(logger)

	service := report.NewService(report.Dependencies{
		ChurnSource:               sheetSource(cfg.Churn, cfg.FetchTimeout),
		ReactivationSource:        sheetSource(cfg.Reactivations, cfg.FetchTimeout),
		ChurnColumns:              cfg.ChurnColumns,
		ReactivationColumns:       cfg.ReactivationColumns,
		PinnedChurnColumns:        cfg.PinnedChurnColumns,
		PinnedReactivationColumns: cfg.PinnedReactivationColumns,
		ResolveHeaders:            cfg.ResolveHeaders,
		Narrative:                 narrativeGenerator(cfg, logger),
		Logger:                    logger,
	})
	return &app{cfg: cfg, logger: logger, service: service}, nil
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel})).With("service", cfg.ServiceID)
}

func sheetSource(sheet config.SheetConfig, timeout time.Duration) sheets.Source {
	if sheet.Path != "" {
		return sheets.FileSource{Path: sheet.Path, HeaderRows: sheet.HeaderRows}
	}
	return sheets.HTTPSource{URL: sheet.URL, HeaderRows: sheet.HeaderRows, Timeout: timeout}
}

func narrativeGenerator(cfg config.Config, logger *slog.Logger) narrative.Generator {
	if cfg.NarrativeAPIKey == "" {
		logger.Info("narrative disabled; GEMINI_API_KEY is not set")
		return narrative.Disabled
	}
	opts := []narrative.Option{narrative.WithHTTPClient(&http.Client{Timeout: cfg.NarrativeTimeout})}
	if cfg.NarrativeEndpoint != "" {
		opts = append(opts, narrative.WithBaseURL(cfg.NarrativeEndpoint))
	}
	return narrative.NewGeminiClient(cfg.NarrativeAPIKey, cfg.NarrativeModel, opts...)
}

// openStore opens and migrates the run store. schema overrides the config
// value when set.
func (a *app) openStore(ctx context.Context, schema string) (*store.Store, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, errMissingDatabase
	}
	if schema == "" {
		schema = a.cfg.DatabaseSchema
	}
	db, err := store.Open(a.cfg.DatabaseURL, schema)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
