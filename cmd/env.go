package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verity-ml/predict-cli/internal/corrections"
	"github.com/verity-ml/predict-cli/internal/events"
	"github.com/verity-ml/predict-cli/internal/ingest"
	"github.com/verity-ml/predict-cli/internal/orchestrator"
	"github.com/verity-ml/predict-cli/internal/registry"
	"github.com/verity-ml/predict-cli/internal/resilience"
	"github.com/verity-ml/predict-cli/internal/store"
	"github.com/verity-ml/predict-cli/pkg/mlserve"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "predict.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPredictor builds the scoring client from config. Watson wins when
// both backends are configured. Returns nil when neither is configured.
func initPredictor() mlserve.Predictor {
	if cfg.Watson.APIKey != "" {
		opts := []mlserve.WatsonOption{}
		if cfg.Watson.IAMURL != "" {
			opts = append(opts, mlserve.WithIAMURL(cfg.Watson.IAMURL))
		}
		if cfg.Watson.RatePerSecond > 0 {
			opts = append(opts, mlserve.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.Watson.RatePerSecond), 1)))
		}
		zap.L().Info("using watson scoring backend", zap.String("endpoint", cfg.Watson.Endpoint))
		return mlserve.NewWatsonClient(cfg.Watson.Endpoint, cfg.Watson.APIKey, opts...)
	}
	if cfg.Anthropic.Key != "" {
		zap.L().Info("using claude scoring backend", zap.String("model", cfg.Anthropic.Model))
		return mlserve.NewClaudeClient(cfg.Anthropic.Key, mlserve.ClaudeOptions{Model: cfg.Anthropic.Model})
	}
	return nil
}

func orchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		PageSize:            cfg.Pipeline.PageSize,
		ScoreBatchSize:      cfg.Pipeline.ScoreBatchSize,
		Concurrency:         cfg.Pipeline.Concurrency,
		ConfidenceThreshold: cfg.Pipeline.ConfidenceThreshold,
		FailFast:            cfg.Pipeline.FailFast,
		Retry: resilience.FromRetryConfig(
			cfg.Pipeline.Retry.MaxAttempts,
			cfg.Pipeline.Retry.InitialBackoffMs,
			cfg.Pipeline.Retry.MaxBackoffMs,
			cfg.Pipeline.Retry.Multiplier,
			cfg.Pipeline.Retry.JitterFraction,
		),
	}
}

// appEnv holds the initialized store, bus, and services shared by the
// ingest/predict/serve commands.
type appEnv struct {
	Store        store.Store
	Bus          *events.Bus
	Registry     *registry.Registry
	Ingest       *ingest.Service
	Orchestrator *orchestrator.Orchestrator
	Corrections  *corrections.Ingestor
	Predictor    mlserve.Predictor
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for the given mode, opens the store, runs
// migrations, and wires the services. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	bus := events.NewBus(true)
	reg := registry.New(st)
	predictor := initPredictor()

	httpFetcher := ingest.NewHTTPFetcher(ingest.HTTPOptions{
		Timeout:   time.Duration(cfg.Ingest.HTTPTimeout) * time.Second,
		UserAgent: cfg.Ingest.HTTPUserAgent,
	})
	ftpFetcher := ingest.NewFTPFetcher(ingest.FTPOptions{
		Timeout: time.Duration(cfg.Ingest.FTPTimeoutSecs) * time.Second,
	})

	env := &appEnv{
		Store:     st,
		Bus:       bus,
		Registry:  reg,
		Predictor: predictor,
		Ingest: ingest.NewService(st, bus, ingest.Options{
			BatchSize: cfg.Ingest.BatchSize,
			HTTP:      httpFetcher,
			FTP:       ftpFetcher,
		}),
		Corrections: corrections.NewIngestor(st),
	}

	if predictor != nil {
		wrapped := orchestrator.NewBreakerPredictor(predictor, resilience.FromCircuitConfig(
			cfg.Pipeline.Circuit.FailureThreshold,
			cfg.Pipeline.Circuit.ResetTimeoutSecs,
		))
		env.Orchestrator = orchestrator.New(st, bus, reg, wrapped, orchestratorConfig())
	}

	return env, nil
}

// newSummaryOrchestrator builds an orchestrator for summary computation
// only. The predictor may be nil; ComputeSummary never scores.
func newSummaryOrchestrator(env *appEnv, ocfg orchestrator.Config) *orchestrator.Orchestrator {
	return orchestrator.New(env.Store, env.Bus, env.Registry, env.Predictor, ocfg)
}
