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

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"video-analysis-service/internal/config"
	"video-analysis-service/internal/metadata"
	"video-analysis-service/internal/report"
	"video-analysis-service/internal/repository/postgresql"
	"video-analysis-service/internal/scoring"
	"video-analysis-service/internal/service"
	httptransport "video-analysis-service/internal/transport/http"
	"video-analysis-service/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	// Postgres
	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgresql.EnsureSchema(ctx, pool); err != nil {
		logger.Error("postgres schema", "error", err)
		os.Exit(1)
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis", "error", err)
		os.Exit(1)
	}

	// DI
	repo := postgresql.NewAnalysisRepository(pool)
	queue := service.NewRedisQueue(rdb, cfg.Redis.QueueKey, cfg.Redis.ProcessingKey)
	svc := service.NewAnalysisService(repo, queue, logger)

	scorer, err := scoring.NewClient(scoring.Config{
		BaseURL: cfg.Scoring.BaseURL,
		APIKey:  cfg.Scoring.APIKey,
		Timeout: cfg.Scoring.Timeout,
	}, logger)
	if err != nil {
		logger.Error("scoring client", "error", err)
		os.Exit(1)
	}

	var extractor worker.MetadataExtractor
	if cfg.Metadata.BaseURL != "" {
		extractor, err = metadata.NewExtractor(metadata.Config{
			BaseURL: cfg.Metadata.BaseURL,
			Timeout: cfg.Metadata.Timeout,
		}, logger)
		if err != nil {
			logger.Error("metadata extractor", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("metadata enrichment disabled: METADATA_BASE_URL not set")
	}

	processor := worker.NewProcessor(repo, scorer, extractor, logger)
	workers := worker.NewPool(queue, processor, cfg.Workers, logger)

	h := httptransport.NewHandler(svc, report.NewRenderer(), logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.Routes(h, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting",
		"http_addr", cfg.HTTPAddr,
		"workers", cfg.Workers,
		"redis_addr", cfg.Redis.Addr,
		"queue_key", cfg.Redis.QueueKey,
		"postgres_dsn", config.RedactDSN(cfg.PostgresDSN),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		workers.Run(gctx)
		return nil
	})

	// Reaper: returns analyses stuck in the processing list back to the
	// queue when a worker died between claim and ack.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ReaperInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := queue.RequeueStale(gctx, cfg.ReaperBatch)
				if err != nil {
					logger.Error("requeue stale", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("requeued stale analyses", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
