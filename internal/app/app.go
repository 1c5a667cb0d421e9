// Package app assembles the API from configuration: storage, the remote
// classifier, cache, events, domain services and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"civic-reporting-api/internal/auth"
	"civic-reporting-api/internal/cache"
	"civic-reporting-api/internal/classifier"
	"civic-reporting-api/internal/config"
	"civic-reporting-api/internal/database"
	"civic-reporting-api/internal/events"
	"civic-reporting-api/internal/features"
	"civic-reporting-api/internal/handler"
	"civic-reporting-api/internal/logger"
	"civic-reporting-api/internal/middleware"
	"civic-reporting-api/internal/service"
	"civic-reporting-api/internal/tracing"
	"civic-reporting-api/internal/worker"
)

const redisNamespace = "civic:"

// App owns every long-lived component of a running server.
type App struct {
	Config  *config.Config
	Store   database.Store
	Service *service.Service
	Tokens  *auth.TokenManager
	Events  *events.Manager
	Flags   *features.Manager
	Worker  *worker.Worker
	Router  http.Handler

	limiter  *middleware.RateLimiter
	memCache *cache.InMemoryCache
	redis    *redis.Client
	log     *logrus.Logger
}

// Option overrides a component New would otherwise build from config.
type Option func(*options)

type options struct {
	store      database.Store
	classifier classifier.Classifier
}

// WithStore uses s instead of opening the configured backend.
func WithStore(s database.Store) Option {
	return func(o *options) { o.store = s }
}

// WithClassifier replaces the HTTP classifier client.
func WithClassifier(c classifier.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// New validates cfg and builds the application. Close releases whatever
// New acquired.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get("app")

	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a := &App{
		Config: cfg,
		log:    log,
		Flags: features.NewDefaultManager(features.Defaults{
			Cache:           cfg.Features.CacheEnabled,
			EventHooks:      cfg.Features.EventsEnabled,
			JobWorker:       cfg.Worker.Enabled,
			ReportRateLimit: cfg.RateLimit.ReportsPerDay > 0,
		}),
	}

	store := o.store
	if store == nil {
		var err error
		store, err = database.Open(ctx, database.Options{
			Backend:       cfg.Storage.Backend,
			DataDir:       cfg.Storage.DataDir,
			DSN:           cfg.Storage.DSN,
			MongoURI:      cfg.Storage.MongoURI,
			MongoDatabase: cfg.Storage.MongoDatabase,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
		}
	}
	a.Store = store

	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
	}

	cls := o.classifier
	if cls == nil {
		var err error
		cls, err = a.newClassifier()
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Events = events.NewManager(a.Flags.IsEnabled(features.EventHooksEnabled))
	a.Events.SubscribeAudit(logger.Get("audit"))

	a.Tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	a.Service = service.NewService(service.Deps{
		Store:      store,
		Classifier: cls,
		Tokens:     a.Tokens,
		Events:     a.Events,
		Cache:      a.newCache(),
		Logger:     logger.Get("service"),
	})

	a.Worker = worker.New(a.Service.Jobs, a.Flags, worker.Config{
		Interval:  time.Duration(cfg.Worker.Interval) * time.Second,
		BatchSize: cfg.Worker.BatchSize,
	})

	if cfg.RateLimit.Enabled {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
	}
	a.Router = a.newRouter()

	log.WithFields(logrus.Fields{
		"storage":  cfg.Storage.Backend,
		"redis":    a.redis != nil,
		"features": a.Flags.All(),
	}).Info("application initialized")
	return a, nil
}

func (a *App) newClassifier() (classifier.Classifier, error) {
	cfg := a.Config.Classifier
	metrics, err := classifier.MetricsHook(otel.Meter("civic-reporting-api/classifier"))
	if err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	if cfg.BaseURL == "" {
		a.log.Warn("classifier base URL not set, new reports will be queued for retry")
	}
	return classifier.New(classifier.Config{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		APIKeyHeader:  cfg.APIKeyHeader,
		Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
		ClassifyPath:  cfg.ClassifyPath,
		AllocatePath:  cfg.AllocatePath,
		SelectBidPath: cfg.SelectBidPath,
		HeatmapPath:   cfg.HeatmapPath,
	}, classifier.WithHooks(classifier.LogHook(logger.Get("classifier")), metrics)), nil
}

// newCache prefers Redis when connected. A nil cache disables read caching.
func (a *App) newCache() cache.Cache {
	if !a.Flags.IsEnabled(features.CacheEnabled) {
		return nil
	}
	if a.redis != nil {
		return cache.NewRedisCache(a.redis, redisNamespace+"cache:")
	}
	a.memCache = cache.NewInMemoryCache()
	return a.memCache
}

func (a *App) reportLimit() func(http.Handler) http.Handler {
	if !a.Flags.IsEnabled(features.ReportRateLimitEnabled) {
		return nil
	}
	var counter middleware.ReportCounter = middleware.NewMemoryReportCounter()
	if a.redis != nil {
		counter = middleware.NewRedisReportCounter(a.redis, redisNamespace)
	}
	return middleware.ReportLimit(counter, a.Config.RateLimit.ReportsPerDay, logger.Get("http"))
}

func (a *App) newRouter() http.Handler {
	h := handler.NewHandlerWithOptions(a.Service, a.Tokens, handler.NewHandlerOptions{
		MaxBodySize: a.Config.Server.MaxRequestBodySize,
		ReportLimit: a.reportLimit(),
		Logger:      logger.Get("http"),
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger.Get("http")))
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware(tracing.GetTracer().Name()))
	if a.limiter != nil {
		r.Use(middleware.RateLimitMiddleware(a.limiter))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(a.Config.Server.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-Report-Limit", "X-Report-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Mount("/api", h.Routes())
	r.Mount("/", h.Routes())
	return r
}

func allowedOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// Close stops background components and releases connections.
func (a *App) Close() error {
	var errs []error
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.memCache != nil {
		a.memCache.Stop()
	}
	if a.Events != nil {
		a.Events.Shutdown()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs = append(errs, tracing.Shutdown(ctx))
	errs = append(errs, logger.Close())
	return errors.Join(errs...)
}
