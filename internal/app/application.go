package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v76"

	"github.com/altarlane/marketplace/internal/cache"
	"github.com/altarlane/marketplace/internal/config"
	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/internal/metrics"
	"github.com/altarlane/marketplace/internal/middleware"
	"github.com/altarlane/marketplace/internal/postgres"
	"github.com/altarlane/marketplace/internal/scheduler"
	bookingapi "github.com/altarlane/marketplace/services/booking/api"
	bookingpostgres "github.com/altarlane/marketplace/services/booking/postgres"
	bookingsupabase "github.com/altarlane/marketplace/services/booking/supabase"
	cartapi "github.com/altarlane/marketplace/services/cart/api"
	cartsupabase "github.com/altarlane/marketplace/services/cart/supabase"
	catalogapi "github.com/altarlane/marketplace/services/catalog/api"
	catalogsupabase "github.com/altarlane/marketplace/services/catalog/supabase"
	checkoutapi "github.com/altarlane/marketplace/services/checkout/api"
	"github.com/altarlane/marketplace/services/checkout/payments"
	checkoutsupabase "github.com/altarlane/marketplace/services/checkout/supabase"
	commonservice "github.com/altarlane/marketplace/services/common/service"
	messagingapi "github.com/altarlane/marketplace/services/messaging/api"
	messagingsupabase "github.com/altarlane/marketplace/services/messaging/supabase"
	onboardingapi "github.com/altarlane/marketplace/services/onboarding/api"
	onboardingsupabase "github.com/altarlane/marketplace/services/onboarding/supabase"
)

const (
	ServiceID   = "gateway"
	ServiceName = "Marketplace Gateway"
	Version     = "1.0.0"

	healthInterval  = 30 * time.Second
	limiterInterval = time.Minute
)

// publicPaths skip authentication. Paths ending in "/" are prefixes.
var publicPaths = []string{
	"/health",
	"/info",
	"/metrics",
	"/v1/vendors",
	"/v1/vendors/",
	"/v1/packages",
	"/v1/packages/",
	"/v1/webhooks/stripe",
}

// Clients are the external connections the application runs on.
type Clients struct {
	Supabase database.RepositoryInterface
	Redis    *redis.Client
	// Postgres moves availability and holds onto a direct connection. Optional.
	Postgres *sqlx.DB
	// StripeBackends overrides the Stripe endpoints. Optional.
	StripeBackends *stripe.Backends
}

// Connect opens the clients described by cfg.
func Connect(ctx context.Context, cfg *config.Config) (*Clients, error) {
	dbClient, err := database.NewClient(database.Config{
		URL:        cfg.SupabaseURL,
		ServiceKey: cfg.SupabaseServiceKey,
	})
	if err != nil {
		return nil, fmt.Errorf("supabase: %w", err)
	}
	rdb, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	clients := &Clients{Supabase: database.NewRepository(dbClient), Redis: rdb}
	if cfg.UsePostgres() {
		db, err := postgres.Open(ctx, postgres.Config{DSN: cfg.DatabaseURL})
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		clients.Postgres = db
	}
	return clients, nil
}

// Close releases the connections.
func (c *Clients) Close() error {
	var firstErr error
	if c.Redis != nil {
		firstErr = c.Redis.Close()
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Application ties the marketplace services together and manages their lifecycle.
type Application struct {
	*commonservice.BaseService
	cfg       *config.Config
	handler   http.Handler
	scheduler *scheduler.Scheduler
	limiter   *middleware.RateLimiter

	Catalog    *catalogapi.Service
	Cart       *cartapi.Service
	Booking    *bookingapi.Service
	Checkout   *checkoutapi.Service
	Messaging  *messagingapi.Service
	Onboarding *onboardingapi.Service
}

// New builds every service on one router. m may be nil.
func New(cfg *config.Config, clients *Clients, logger *logging.Logger, m *metrics.Metrics) (*Application, error) {
	if clients == nil || clients.Supabase == nil || clients.Redis == nil {
		return nil, fmt.Errorf("app: supabase and redis clients are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	router := mux.NewRouter()

	probes := map[string]commonservice.Probe{
		"supabase": clients.Supabase.HealthCheck,
		"redis": func(ctx context.Context) error {
			return clients.Redis.Ping(ctx).Err()
		},
	}
	if clients.Postgres != nil {
		db := clients.Postgres
		probes["postgres"] = func(ctx context.Context) error { return postgres.HealthCheck(ctx, db) }
	}
	a := &Application{
		BaseService: commonservice.NewBase(&commonservice.BaseConfig{
			ID:       ServiceID,
			Name:     ServiceName,
			Version:  Version,
			Logger:   logger,
			Metrics:  m,
			Router:   router,
			Probes:   probes,
			Critical: []string{"supabase", "redis"},
		}),
		cfg:       cfg,
		scheduler: scheduler.New(logger.Named("scheduler"), m),
		limiter:   middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger),
	}

	var err error
	a.Catalog, err = catalogapi.New(catalogapi.Config{
		Store:  catalogsupabase.NewRepository(clients.Supabase, cfg.SupabaseMediaBucket),
		Logger: logger.Named(catalogapi.ServiceID),
		Router: router,
	})
	if err != nil {
		return nil, err
	}

	a.Cart, err = cartapi.New(cartapi.Config{
		Store:   cartapi.NewRedisStore(clients.Redis, cfg.CartTTL),
		Catalog: a.Catalog,
		Promos:  cartsupabase.NewRepository(clients.Supabase),
		Logger:  logger.Named(cartapi.ServiceID),
		Metrics: m,
		Router:  router,
	})
	if err != nil {
		return nil, err
	}

	bookingRepo := bookingsupabase.NewRepository(clients.Supabase)
	var bookingStore bookingapi.Store = bookingRepo
	if clients.Postgres != nil {
		bookingStore = bookingpostgres.NewStore(clients.Postgres)
	}
	a.Booking, err = bookingapi.New(bookingapi.Config{
		Store:    bookingStore,
		Timeline: bookingRepo,
		Wizards:  bookingapi.NewRedisWizardStore(clients.Redis, cfg.WizardTTL),
		Catalog:  a.Catalog,
		Cart:     a.Cart,
		Logger:   logger.Named(bookingapi.ServiceID),
		Metrics:  m,
		Router:   router,
	})
	if err != nil {
		return nil, err
	}

	a.Messaging, err = messagingapi.New(messagingapi.Config{
		Store:          messagingsupabase.NewRepository(clients.Supabase),
		Broker:         messagingapi.NewRedisBroker(clients.Redis),
		Vendors:        a.Catalog,
		Bookings:       a.Booking,
		AllowedOrigins: cfg.Origins(),
		Logger:         logger.Named(messagingapi.ServiceID),
		Metrics:        m,
		Router:         router,
	})
	if err != nil {
		return nil, err
	}

	processor, err := payments.New(payments.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Backends:      clients.StripeBackends,
	})
	if err != nil {
		return nil, err
	}
	a.Checkout, err = checkoutapi.New(checkoutapi.Config{
		Orders:        checkoutsupabase.NewRepository(clients.Supabase),
		Carts:         a.Cart,
		Bookings:      a.Booking,
		Payments:      processor,
		Conversations: a.Messaging,
		Redis:         clients.Redis,
		Currency:      cfg.CheckoutCurrency,
		HoldTTL:       cfg.BookingHoldTTL,
		Logger:        logger.Named(checkoutapi.ServiceID),
		Metrics:       m,
		Router:        router,
	})
	if err != nil {
		return nil, err
	}

	questionnaire, err := onboardingapi.LoadQuestionnaire(cfg.OnboardingQuestionnaire)
	if err != nil {
		return nil, err
	}
	a.Onboarding, err = onboardingapi.New(onboardingapi.Config{
		Store:         onboardingsupabase.NewRepository(clients.Supabase),
		Catalog:       a.Catalog,
		Questionnaire: questionnaire,
		Logger:        logger.Named(onboardingapi.ServiceID),
		Metrics:       m,
		Router:        router,
	})
	if err != nil {
		return nil, err
	}

	if err := a.scheduler.Register(a.Checkout.Job(cfg.OrderExpirySchedule)); err != nil {
		return nil, err
	}

	a.RegisterStandardRoutes()
	if m != nil {
		router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	a.AddTickerWorker("health", healthInterval, func(ctx context.Context) error {
		a.CheckHealth(ctx)
		return nil
	})
	a.AddTickerWorker("ratelimit-cleanup", limiterInterval, func(context.Context) error {
		a.limiter.Cleanup()
		return nil
	})
	a.WithStats(a.stats)

	auth := middleware.NewAuthMiddleware([]byte(cfg.SupabaseJWTSecret), logger, publicPaths)
	router.Use(
		middleware.NewTracingMiddleware(logger).Handler,
		middleware.MetricsMiddleware(ServiceID, m),
		auth.Handler,
		a.limiter.Handler,
	)
	cors := middleware.NewCORSMiddleware(cfg.Origins())
	a.handler = middleware.Recovery(logger)(cors.Handler(router))
	return a, nil
}

// Handler is the root HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Scheduler exposes the maintenance scheduler.
func (a *Application) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Start runs the first health check, background workers and scheduled jobs.
func (a *Application) Start(ctx context.Context) error {
	a.CheckHealth(ctx)
	if err := a.BaseService.Start(ctx); err != nil {
		return err
	}
	a.scheduler.Start()
	return nil
}

// Stop halts scheduled jobs, waiting for running ones up to ctx, and workers.
func (a *Application) Stop(ctx context.Context) error {
	err := a.scheduler.Stop(ctx)
	_ = a.BaseService.Stop()
	return err
}

func (a *Application) stats() map[string]any {
	out := map[string]any{
		"checkout_currency": a.cfg.CheckoutCurrency,
		"postgres_holds":    a.cfg.UsePostgres(),
	}
	job := a.Checkout.Job(a.cfg.OrderExpirySchedule)
	if next, ok := a.scheduler.Next(job.Name); ok && !next.IsZero() {
		out["next_"+job.Name] = next.UTC().Format(time.RFC3339)
	}
	return out
}
