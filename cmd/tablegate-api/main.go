package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tablegate/tablegate/internal/analysis"
	"github.com/tablegate/tablegate/internal/api"
	"github.com/tablegate/tablegate/internal/archive"
	"github.com/tablegate/tablegate/internal/backend"
	"github.com/tablegate/tablegate/internal/config"
	"github.com/tablegate/tablegate/internal/dialect"
	"github.com/tablegate/tablegate/internal/executor"
	"github.com/tablegate/tablegate/internal/gate"
	"github.com/tablegate/tablegate/internal/gateway"
	"github.com/tablegate/tablegate/internal/llm"
	"github.com/tablegate/tablegate/internal/observability"
	"github.com/tablegate/tablegate/internal/planner"
	"github.com/tablegate/tablegate/internal/session"
	s3store "github.com/tablegate/tablegate/internal/storage/s3"
	"github.com/tablegate/tablegate/internal/table"
)

func main() {
	cfg, err := config.LoadFromEnv("tablegate-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	profile, err := dialect.ForKind(dialect.Kind(cfg.Backend.Kind))
	if err != nil {
		logger.Error("failed to resolve dialect profile", slog.Any("error", err))
		os.Exit(1)
	}

	permitted := table.WasteData()
	if cfg.Gate.TableName != "" {
		permitted.Name = cfg.Gate.TableName
	}

	db, err := backend.Open(context.Background(), profile, backend.Config{
		DSN:             cfg.Backend.DSN,
		MaxOpenConns:    cfg.Backend.MaxOpenConns,
		MaxIdleConns:    cfg.Backend.MaxIdleConns,
		ConnMaxIdleTime: cfg.Backend.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Backend.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open backend", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	generator, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}

	service := &gateway.Service{
		Logger:    logger,
		Planner:   planner.New(generator, profile, permitted),
		Validator: gate.NewValidator(profile, permitted),
		Rewriter:  gate.NewRewriter(profile, permitted, cfg.Gate.RowCap),
		Executor:  executor.New(db, cfg.Backend.QueryTimeout),
		Sessions:  session.NewStore(),
		Composer:  analysis.New(generator),
		Generator: generator,
	}

	if cfg.Archive.Enabled {
		store, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.Archive.Endpoint,
			Region:           cfg.Archive.Region,
			Bucket:           cfg.Archive.Bucket,
			AccessKeyID:      cfg.Archive.AccessKeyID,
			SecretAccessKey:  cfg.Archive.SecretAccessKey,
			UseSSL:           cfg.Archive.UseSSL,
			Prefix:           cfg.Archive.Prefix,
			AutoCreateBucket: cfg.Archive.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize result archive", slog.Any("error", err))
			os.Exit(1)
		}
		service.Archiver = archive.New(store)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Gateway:           service,
		DependencyTimeout: time.Second,
		Readiness: api.CombineReadinessChecks(func(ctx context.Context) error {
			return db.PingContext(ctx)
		}),
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting gateway server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("backend", string(profile.Kind)),
			slog.String("table", permitted.Name),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down gateway server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
