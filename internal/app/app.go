// Package app wires the storefront service together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/cache"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/mail"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/storage/local"
	"github.com/utafrali/storefront/pkg/breaker"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/tracing"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"

	idempotencyTTL = 24 * time.Hour
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	stores         *stores
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	// Document store.
	a.stores, err = openStores(ctx, cfg, reg, logger)
	if err != nil {
		return nil, err
	}

	healthHandler := health.NewHandler()
	if a.stores.ping != nil {
		healthHandler.RegisterCritical(cfg.StoreDriver, a.stores.ping)
	}

	// Redis product cache. Left as a nil interface when disabled so the
	// services skip caching entirely.
	var productCache service.ProductCache
	if cfg.RedisEnabled {
		a.redis, err = database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis.Addr()))
		c := cache.NewProductCache(a.redis, cfg.ProductCacheTTL)
		productCache = c
		healthHandler.RegisterNonCritical("redis", c.Ping)
	}

	// Kafka producer. Events are dropped when Kafka is disabled.
	var (
		publisher    event.Publisher
		kafkaMetrics *pkgkafka.Metrics
	)
	if cfg.KafkaEnabled {
		kafkaMetrics = pkgkafka.NewMetrics(reg)
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers, event.Source), kafkaMetrics, logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Mail.
	var mailer mail.Sender
	if cfg.Mail.Host == "" {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
		mailer = mail.NewLogSender(logger)
	} else {
		mailer = mail.NewSMTPSender(cfg.Mail, breaker.NewMetrics(reg), logger)
	}

	assets, err := local.New(cfg.Assets)
	if err != nil {
		return nil, fmt.Errorf("init asset storage: %w", err)
	}

	// Build the dependency graph.
	m := metrics.New(reg)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	sessions := auth.NewSessionManager(cfg.JWTSecret, cfg.JWTExpire)

	productService := service.NewProductService(a.stores.products, productCache, assets, eventProducer, m, cfg.CatalogPageSize, logger)
	reviewService := service.NewReviewService(a.stores.products, productCache, eventProducer, m, logger)
	orderService := service.NewOrderService(a.stores.orders, a.stores.products, productCache, eventProducer, m, logger)
	userService := service.NewUserService(a.stores.users, hasher, sessions, mailer, assets, eventProducer, m, logger)

	// Kafka event consumers.
	if cfg.KafkaEnabled {
		var idem pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
		if a.redis != nil {
			idem = pkgkafka.NewRedisIdempotencyStore(a.redis, "storefront:notify:processed:", idempotencyTTL)
		}
		a.consumers = notify.NewConsumers(cfg.KafkaBrokers,
			notify.NewConsumerHandler(a.stores.users, mailer, logger),
			logger,
			pkgkafka.WithIdempotency(idem),
			pkgkafka.WithDeadLetterQueue(pkgkafka.NewDeadLetterQueue(a.producer.Writer(), logger)),
			pkgkafka.WithMetrics(kafkaMetrics),
		)
	}

	// HTTP router.
	router := handler.NewRouter(handler.RouterDeps{
		Products: productService,
		Reviews:  reviewService,
		Orders:   orderService,
		Users:    userService,
		Guard:    auth.NewGuard(sessions, a.stores.users, logger),
		Health:   healthHandler,
		Registry: reg,
		Logger:   logger,
	}, handler.RouterOptions{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		PprofEnabled:       cfg.PprofEnabled,
		PprofAllowedCIDRs:  cfg.PprofAllowedIPs,
		Cookie:             handler.CookieSettings{TTL: cfg.CookieTTL(), Secure: !cfg.IsDevelopment()},
		PublicURL:          cfg.PublicURL,
		CatalogMaxAge:      30 * time.Second,
		AssetDir:           assets.Dir(),
		AssetPath:          cfg.Assets.BaseURL,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and Kafka consumers, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	for _, consumer := range a.consumers {
		c := consumer
		go func() {
			if err := c.Start(ctx); err != nil {
				a.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server drains
// first, then consumers, the tracer, Kafka, Redis and the document store.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases everything NewApp opened. It tolerates a partially
// initialized App.
func (a *App) closeResources() error {
	var errs []error

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.stores != nil {
		a.stores.close()
	}
	return errors.Join(errs...)
}
