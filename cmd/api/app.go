package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/chatpanel/learning-hub/internal/api/handlers"
	"github.com/chatpanel/learning-hub/internal/api/middleware"
	"github.com/chatpanel/learning-hub/internal/config"
	"github.com/chatpanel/learning-hub/internal/embeddings"
	"github.com/chatpanel/learning-hub/internal/jobs"
	"github.com/chatpanel/learning-hub/internal/observability"
	"github.com/chatpanel/learning-hub/internal/repository"
	"github.com/chatpanel/learning-hub/internal/service"
	"github.com/chatpanel/learning-hub/internal/vectorindex"
	"github.com/chatpanel/learning-hub/internal/workers"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	indexCloser    io.Closer
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

// setupMetrics creates meter provider and learning hub metrics when metrics are enabled.
// When NewMeterProvider returns nil (unsupported or disabled exporter), returns (nil, nil, nil) (metrics disabled).
func setupMetrics(ctx context.Context, cfg *config.Config) (*sdkmetric.MeterProvider, *observability.Metrics, error) {
	mp, err := observability.NewMeterProvider(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		return nil, nil, nil
	}

	metrics, err := observability.NewMetrics(mp.Meter(observability.ServiceName))
	if err != nil {
		err2 := observability.ShutdownProviders(context.Background(), nil, mp)
		if err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, metrics, nil
}

// metricSet unpacks the optional aggregate so each collector is a nil interface when metrics are off.
type metricSet struct {
	cache       observability.CacheMetrics
	api         observability.APIMetrics
	vectorIndex observability.VectorIndexMetrics
	learning    observability.LearningMetrics
	reindex     observability.ReindexMetrics
}

func unpackMetrics(m *observability.Metrics) metricSet {
	if m == nil {
		return metricSet{}
	}

	return metricSet{
		cache:       m.Cache,
		api:         m.API,
		vectorIndex: m.VectorIndex,
		learning:    m.Learning,
		reindex:     m.Reindex,
	}
}

// newEmbedder builds the embedding provider chain: provider, then rate limit, then query cache.
func newEmbedder(ctx context.Context, cfg *config.Config, cacheMetrics observability.CacheMetrics) (embeddings.Client, error) {
	provider, err := embeddings.New(ctx, embeddings.Config{
		Provider:   cfg.EmbeddingProvider,
		Model:      cfg.EmbeddingModel,
		APIKey:     cfg.EmbeddingProviderAPIKey,
		Dimensions: cfg.EmbeddingDimensions,
		OllamaURL:  cfg.OllamaURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}

	var client embeddings.Client = provider
	if cfg.EmbeddingRateLimit > 0 {
		client = embeddings.NewRateLimitedClient(client, cfg.EmbeddingRateLimit)
	}

	cached, err := embeddings.NewCachingClient(client, cfg.EmbeddingCacheSize, cacheMetrics)
	if err != nil {
		return nil, err
	}

	return cached, nil
}

// newVectorIndex builds the configured gateway backend. The returned closer is nil unless the
// backend holds a connection of its own.
func newVectorIndex(
	ctx context.Context, cfg *config.Config, db *pgxpool.Pool, cacheMetrics observability.CacheMetrics,
) (vectorindex.Gateway, io.Closer, error) {
	if cfg.VectorIndexBackend == "" {
		slog.Warn("vector index disabled (VECTOR_INDEX_BACKEND empty or unset)")

		return vectorindex.Disabled{}, nil, nil
	}

	if cfg.VectorIndexBackend == config.VectorIndexBackendHTTP {
		return vectorindex.NewHTTPGateway(vectorindex.HTTPOptions{
			BaseURL:  cfg.VectorIndexURL,
			RetryMax: cfg.VectorIndexRetryMax,
			Timeout:  cfg.VectorIndexTimeout,
		}), nil, nil
	}

	embedder, err := newEmbedder(ctx, cfg, cacheMetrics)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.VectorIndexBackend {
	case config.VectorIndexBackendPgvector:
		store := repository.NewLearningEmbeddingsRepository(db)

		return vectorindex.NewPgvectorGateway(store, embedder, embeddingModelKey(cfg)), nil, nil
	case config.VectorIndexBackendQdrant:
		client, err := vectorindex.NewQdrantClient(vectorindex.QdrantOptions{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			UseTLS: cfg.QdrantAPIKey != "",
			APIKey: cfg.QdrantAPIKey,
		})
		if err != nil {
			return nil, nil, err
		}

		gateway := vectorindex.NewQdrantGateway(client, cfg.QdrantCollection, embedder)
		if err := gateway.EnsureCollection(ctx, cfg.EmbeddingDimensions); err != nil {
			// The index is optional: start degraded and let Store retry the check.
			slog.Warn("qdrant collection check failed; retrying on first store", "error", err)
		}

		return gateway, client, nil
	case config.VectorIndexBackendChromem:
		gateway, err := vectorindex.NewChromemGateway(cfg.ChromemPath, "conversation_learnings", embedder)
		if err != nil {
			return nil, nil, err
		}

		return gateway, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported vector index backend: %s", cfg.VectorIndexBackend)
	}
}

// embeddingModelKey names the model column for pgvector rows; providers without a model name use "default".
func embeddingModelKey(cfg *config.Config) string {
	if cfg.EmbeddingModel == "" {
		return "default"
	}

	return cfg.EmbeddingModel
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	var (
		err           error
		meterProvider *sdkmetric.MeterProvider
		metrics       *observability.Metrics
	)

	if cfg.OtelMetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meterProvider, metrics, err = setupMetrics(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	var tracerProvider *sdktrace.TracerProvider

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(ctx, cfg)
		if err != nil {
			if err2 := observability.ShutdownProviders(context.Background(), nil, meterProvider); err2 != nil {
				slog.Error("shutdown meter provider after tracer provider error", "error", err2)
			}

			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	// Install TraceContextHandler unconditionally so request_id (and trace_id/span_id when tracing is on) appear in logs.
	defaultHandler := slog.Default().Handler()
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(defaultHandler)))

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	m := unpackMetrics(metrics)
	logger := slog.Default()

	failObservability := func(cause error) error {
		if err2 := observability.ShutdownProviders(context.Background(), tracerProvider, meterProvider); err2 != nil {
			slog.Error("shutdown observability after startup error", "error", err2)
		}

		return cause
	}

	backend, indexCloser, err := newVectorIndex(ctx, cfg, db, m.cache)
	if err != nil {
		return nil, failObservability(fmt.Errorf("create vector index: %w", err))
	}

	index := vectorindex.NewBounded(backend, cfg.VectorIndexTimeout, m.vectorIndex)

	learningsRepo := repository.NewLearningRecordsRepository(db)
	feedbackRepo := repository.NewFeedbackRecordsRepository(db)
	dailyStatsRepo := repository.NewDailyStatsRepository(db)
	transactor := repository.NewTransactor(db)

	statsService := service.NewStatsService(service.StatsServiceParams{
		Daily:     dailyStatsRepo,
		Learnings: learningsRepo,
		Feedback:  feedbackRepo,
		Index:     index,
		Days:      cfg.StatsDays,
		Logger:    logger,
	})

	learningsService := service.NewLearningRecordsService(service.LearningRecordsServiceParams{
		Repo:    learningsRepo,
		Tx:      transactor,
		Index:   index,
		Stats:   statsService,
		Metrics: m.learning,
		Logger:  logger,
	})

	feedbackService := service.NewFeedbackService(service.FeedbackServiceParams{
		Repo:      feedbackRepo,
		Learnings: learningsRepo,
		Tx:        transactor,
		Index:     index,
		Stats:     statsService,
		Metrics:   m.learning,
		Logger:    logger,
	})

	retrievalService := service.NewRetrievalService(index, logger)

	var (
		riverClient *river.Client[pgx.Tx]
		reindexer   handlers.Reindexer
	)

	if cfg.RiverEnabled {
		riverWorkers := river.NewWorkers()
		river.AddWorker(riverWorkers, workers.NewLearningIndexWorker(learningsRepo, index, m.reindex, logger))

		riverClient, err = river.NewClient(riverpgxv5.New(db), &river.Config{
			Queues: map[string]river.QueueConfig{
				river.QueueDefault: {MaxWorkers: cfg.ReindexMaxConcurrent},
			},
			Workers:      riverWorkers,
			ErrorHandler: &jobs.ErrorHandler{Logger: logger},
			MaxAttempts:  cfg.ReindexMaxAttempts,
		})
		if err != nil {
			closeIndex(indexCloser)

			return nil, failObservability(fmt.Errorf("create River client: %w", err))
		}

		inserter := jobs.NewRiverJobInserter(riverClient, cfg.ReindexMaxAttempts)
		reindexer = jobs.NewReindexer(learningsRepo, inserter, m.reindex, logger)
	} else {
		slog.Warn("background jobs disabled (RIVER_ENABLED=false); reindex endpoint answers 503")
	}

	server := newHTTPServer(cfg, routes{
		health:    handlers.NewHealthHandler(cfg.VectorIndexBackend),
		learnings: handlers.NewLearningRecordsHandler(learningsService),
		feedback:  handlers.NewFeedbackHandler(feedbackService),
		search:    handlers.NewSearchHandler(retrievalService),
		stats:     handlers.NewStatsHandler(statsService),
		reindex:   handlers.NewReindexHandler(reindexer),
	}, m, meterProvider, tracerProvider)

	return &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		river:          riverClient,
		indexCloser:    indexCloser,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}, nil
}

type routes struct {
	health    *handlers.HealthHandler
	learnings *handlers.LearningRecordsHandler
	feedback  *handlers.FeedbackHandler
	search    *handlers.SearchHandler
	stats     *handlers.StatsHandler
	reindex   *handlers.ReindexHandler
}

// newHTTPServer builds the HTTP server and muxes (no auth on /health, API key on /v1/).
// Handler chain: RequestID -> Metrics -> otelhttp(Logging(MaxBody(mux))) so access logs get trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config,
	h routes,
	m metricSet,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", h.health.Check)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/learning-records", h.learnings.Create)
	protected.HandleFunc("GET /v1/learning-records", h.learnings.List)
	protected.HandleFunc("GET /v1/learning-records/{id}", h.learnings.Get)
	protected.HandleFunc("DELETE /v1/learning-records/{id}", h.learnings.Delete)

	protected.HandleFunc("POST /v1/learning-records/search", h.search.Search)
	protected.HandleFunc("GET /v1/learning-records/search", h.search.SearchQuery)
	protected.HandleFunc("POST /v1/learning-records/reindex", h.reindex.Reindex)

	protected.HandleFunc("POST /v1/feedback", h.feedback.Create)
	protected.HandleFunc("GET /v1/feedback", h.feedback.List)

	protected.HandleFunc("GET /v1/learning-stats", h.stats.Overview)

	protectedWithAuth := middleware.Auth(cfg.APIKey)(protected)
	mux := http.NewServeMux()
	mux.Handle("/v1/", protectedWithAuth)
	mux.Handle("/", public)

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health checks to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	var recorder middleware.RequestBodyTooLargeRecorder
	if m.api != nil {
		recorder = m.api
	}

	// Logging runs inside otelhttp so r.Context() has the span when we log (trace_id/span_id in access logs).
	inner := middleware.Logging(middleware.MaxBody(cfg.MaxRequestBodyBytes, recorder)(mux))
	handler := otelhttp.NewHandler(inner, "learning-hub-api", otelOpts...)
	handler = middleware.Metrics(m.api)(handler)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled (e.g. signal)
// or a component fails. When ctx is cancelled or a component fails, it cancels the internal
// River context so River stops before Run returns. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	if a.river != nil {
		go func() {
			if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
				select {
				case runErr <- fmt.Errorf("river: %w", err):
				default:
				}
			}
		}()
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port, "vector_index", a.cfg.VectorIndexBackend)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

func closeIndex(c io.Closer) {
	if c == nil {
		return
	}

	if err := c.Close(); err != nil {
		slog.Error("close vector index client", "error", err)
	}
}

// Shutdown stops the server and River in order, then releases the vector index client. Call after Run returns.
// Observability is shut down once via defer; its error is returned only when server and River shut down successfully.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer closeIndex(a.indexCloser)

	defer func() {
		obsErr := observability.ShutdownProviders(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if a.river != nil {
			if stopErr := a.river.Stop(ctx); stopErr != nil {
				slog.Error("river stop during server shutdown", "error", stopErr)
			}
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.river == nil {
		return nil
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}
