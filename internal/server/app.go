package server

import (
	"context"
	"fmt"

	"github.com/cortexai/chatbi/internal/config"
	"github.com/cortexai/chatbi/internal/dashboard"
	"github.com/cortexai/chatbi/internal/insight"
	"github.com/cortexai/chatbi/internal/metrics"
	"github.com/cortexai/chatbi/internal/pipeline"
	"github.com/cortexai/chatbi/internal/service"
	"github.com/cortexai/chatbi/internal/session"
	"github.com/rs/zerolog/log"
)

// App holds the long-lived components behind the HTTP server and the CLI.
type App struct {
	Config     *config.Config
	Executor   service.Executor
	Sessions   *session.Registry
	Dashboards *dashboard.Manager
	Insights   *insight.Chain
	Pipeline   *pipeline.Pipeline
}

// NewApp connects storage and wires the pipeline. seed fills the demo sales
// table first; it only applies to the sqlite backend.
func NewApp(ctx context.Context, cfg *config.Config, seed bool) (*App, error) {
	executor, err := service.NewExecutor(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}
	if err := executor.Connect(ctx); err != nil {
		log.Warn().Err(err).Str("storage", cfg.StorageType).Msg("storage not reachable at startup")
	}

	var history session.HistoryStore
	if sqlite, ok := executor.(*service.SQLiteService); ok {
		db, err := sqlite.DB(ctx)
		if err != nil {
			executor.Close()
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if seed {
			if err := service.SeedSampleData(ctx, db); err != nil {
				executor.Close()
				return nil, fmt.Errorf("seed sample data: %w", err)
			}
		}
		if cfg.EnableQueryLog {
			qlog, err := service.NewQueryLog(ctx, db)
			if err != nil {
				executor.Close()
				return nil, fmt.Errorf("create query log: %w", err)
			}
			history = qlog
		}
	} else if seed {
		log.Warn().Str("storage", cfg.StorageType).Msg("sample data is only seeded into sqlite")
	}

	dashboards := dashboard.NewManager(cfg.SessionTimeoutDuration())
	sessions := session.NewRegistry(session.Options{
		Timeout:         cfg.SessionTimeoutDuration(),
		CleanupInterval: cfg.SessionCleanupDuration(),
		MaxHistory:      cfg.MaxHistoryItems,
		OnEvict: func(id string) {
			dashboards.Forget(id)
			metrics.SessionsEvicted.Inc()
		},
	})
	insights := insight.NewChainFromConfig(cfg)

	p := pipeline.New(cfg, executor, insights, sessions, dashboards, history)
	p.LoadSchemas(ctx)

	// Startup summary so disabled features are visible in the logs
	log.Info().
		Str("storage", cfg.StorageType).
		Str("dialect", executor.Dialect().Name()).
		Strs("insight_generators", insights.Names()).
		Bool("query_log", history != nil).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Bool("data_masking", cfg.EnableDataMasking).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Bool("pii_detection", cfg.EnablePIIDetection).
		Msg("service configuration")

	return &App{
		Config:     cfg,
		Executor:   executor,
		Sessions:   sessions,
		Dashboards: dashboards,
		Insights:   insights,
		Pipeline:   p,
	}, nil
}

// Close releases storage and stops session and dashboard bookkeeping.
func (a *App) Close() error {
	a.Sessions.Close()
	a.Dashboards.Close()
	if err := a.Executor.Close(); err != nil {
		return fmt.Errorf("close %s: %w", a.Config.StorageType, err)
	}
	return nil
}
