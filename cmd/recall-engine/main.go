package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-recall/internal/api"
	"github.com/miradorstack/mirador-recall/internal/cache"
	"github.com/miradorstack/mirador-recall/internal/config"
	"github.com/miradorstack/mirador-recall/internal/embedding"
	"github.com/miradorstack/mirador-recall/internal/engine"
	"github.com/miradorstack/mirador-recall/internal/evidence"
	"github.com/miradorstack/mirador-recall/internal/extractors"
	"github.com/miradorstack/mirador-recall/internal/index"
	"github.com/miradorstack/mirador-recall/internal/metrics"
	"github.com/miradorstack/mirador-recall/internal/remediation"
	"github.com/miradorstack/mirador-recall/internal/scoring"
	"github.com/miradorstack/mirador-recall/internal/services"
	"github.com/miradorstack/mirador-recall/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mirador-recall",
		slog.String("address", cfg.Server.Address),
		slog.String("embedding", cfg.Embedding.Provider),
		slog.String("index", cfg.Index.Backend))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled {
		provider, err := cache.NewValkeyProvider(ctx, cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	defer cacheProvider.Close()

	model, err := buildModel(cfg.Embedding, logger)
	if err != nil {
		logger.Error("failed to configure embedding model", slog.Any("error", err))
		os.Exit(1)
	}
	gateway, err := embedding.NewGateway(ctx, model,
		embedding.WithLogger(logger),
		embedding.WithLRUSize(cfg.Embedding.LRUSize),
		embedding.WithSharedCache(cacheProvider, cfg.Cache.EmbeddingTTL),
	)
	if err != nil {
		logger.Error("embedding model unavailable", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := openStore(cfg.Index, logger)
	if err != nil {
		logger.Error("failed to open vector index", slog.Any("error", err))
		os.Exit(1)
	}
	dual := index.NewDualIndex(store, cfg.Index.SemanticCollection, cfg.Index.EntityCollection, logger)
	defer dual.Close()
	if err := dual.EnsureCollections(ctx, gateway.Dimension()); err != nil {
		logger.Error("failed to prepare collections", slog.Any("error", err))
		os.Exit(1)
	}

	checklist, err := remediation.Load(cfg.Remediation.Path, logger)
	if err != nil {
		logger.Error("failed to load remediation checklist", slog.Any("error", err))
		os.Exit(1)
	}

	ingestor, err := engine.NewIngestor(
		extractors.NewNoteExtractor(logger),
		evidence.NewStore(cfg.Evidence.UploadDir),
		gateway,
		dual,
		engine.WithPoolSize(cfg.Ingest.PoolSize),
		engine.WithIngestLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build ingestor", slog.Any("error", err))
		os.Exit(1)
	}
	defer ingestor.Release()

	rankBy, _ := engine.ParseRankMode(cfg.Search.RankBy)
	pipeline := engine.NewPipeline(
		logger,
		dual,
		gateway,
		scoring.NewScorer(scoring.Weights{
			Vector:      cfg.Scoring.VectorWeight,
			Overlap:     cfg.Scoring.OverlapWeight,
			Saturation:  cfg.Scoring.Saturation,
			Systems:     cfg.Scoring.SystemsWeight,
			Vendors:     cfg.Scoring.VendorsWeight,
			Ports:       cfg.Scoring.PortsWeight,
			Protocols:   cfg.Scoring.ProtocolsWeight,
			Observables: cfg.Scoring.ObservablesWeight,
		}),
		checklist,
		engine.SearchOptions{
			DefaultTopK:     cfg.Search.DefaultTopK,
			OverfetchFactor: cfg.Search.OverfetchFactor,
			OverfetchFloor:  cfg.Search.OverfetchFloor,
			MaxTopK:         cfg.Search.MaxTopK,
			RankBy:          rankBy,
		},
	)

	recallService := services.NewRecallService(logger, ingestor, pipeline, dual, gateway.Dimension())

	server, err := api.NewServer(cfg.Server, recallService, logger)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", server.Address()), slog.Int("dim", gateway.Dimension()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("mirador-recall stopped")
}

func buildModel(cfg config.EmbeddingConfig, logger *slog.Logger) (embedding.Model, error) {
	switch cfg.Provider {
	case "openai":
		return embedding.NewOpenAIModel(embedding.OpenAIConfig{
			Host:    cfg.Host,
			Model:   cfg.Model,
			Token:   cfg.Token,
			Timeout: cfg.Timeout,
		}, logger)
	case "hash":
		return embedding.NewHashModel(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func openStore(cfg config.IndexConfig, logger *slog.Logger) (index.Store, error) {
	switch cfg.Backend {
	case "qdrant":
		return index.NewQdrantStore(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Timeout)
	case "badger":
		return index.OpenBadgerStore(cfg.Badger.Path, cfg.Badger.InMemory, logger)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}
