package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/barn/onboarding/internal/application/checkout"
	"github.com/barn/onboarding/internal/application/lead"
	"github.com/barn/onboarding/internal/application/lifecycle"
	"github.com/barn/onboarding/internal/domain/integration"
	"github.com/barn/onboarding/internal/domain/program"
	"github.com/barn/onboarding/internal/domain/shared"
	"github.com/barn/onboarding/internal/infrastructure/attribution"
	"github.com/barn/onboarding/internal/infrastructure/billing"
	"github.com/barn/onboarding/internal/infrastructure/cache"
	"github.com/barn/onboarding/internal/infrastructure/coaching"
	"github.com/barn/onboarding/internal/infrastructure/config"
	"github.com/barn/onboarding/internal/infrastructure/crm"
	"github.com/barn/onboarding/internal/infrastructure/logger"
	"github.com/barn/onboarding/internal/infrastructure/persistence"
	"github.com/barn/onboarding/internal/interfaces/http/handler"
	"github.com/barn/onboarding/internal/interfaces/http/middleware"
	"github.com/barn/onboarding/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting onboarding service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("stripe_test_mode", cfg.Stripe.TestMode),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Identity store
	identityRepo := persistence.NewGormIdentityRepository(db.DB)

	// Program catalog
	catalog := program.NewCatalog(program.Config{
		DefaultSlug: cfg.Programs.DefaultSlug,
		PlatformIDs: cfg.Programs.PlatformIDs,
		CRMTags:     cfg.Programs.CRMTags,
		TierStages:  cfg.Programs.TierStages,
		MemberStage: cfg.Programs.MemberStage,
	})

	// Stripe billing adapter
	stripeConfig := &billing.StripeConfig{
		SecretKey:       cfg.Stripe.SecretKey,
		PublishableKey:  cfg.Stripe.PublishableKey,
		WebhookSecret:   cfg.Stripe.WebhookSecret,
		IsTestMode:      cfg.Stripe.TestMode,
		PriceIDs:        cfg.Stripe.PriceIDs,
		TrialPeriodDays: cfg.Stripe.TrialPeriodDays,
		SuccessURL:      cfg.Stripe.SuccessURL,
		CancelURL:       cfg.Stripe.CancelURL,
	}
	stripeAdapter, err := billing.NewStripeAdapter(stripeConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize Stripe adapter", zap.Error(err))
	}

	// Trainerize coaching platform adapter
	trainerizeAdapter, err := coaching.NewTrainerizeAdapter(&coaching.TrainerizeConfig{
		GroupID:        cfg.Trainerize.GroupID,
		APIToken:       cfg.Trainerize.APIToken,
		APIBaseURL:     cfg.Trainerize.APIBaseURL,
		TimeoutSeconds: cfg.Trainerize.TimeoutSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize Trainerize adapter", zap.Error(err))
	}

	// GoHighLevel CRM adapter
	ghlAdapter, err := crm.NewGHLAdapter(&crm.GHLConfig{
		AccessToken:    cfg.GHL.AccessToken,
		LocationID:     cfg.GHL.LocationID,
		PipelineID:     cfg.GHL.PipelineID,
		StageIDs:       cfg.GHL.StageIDs,
		APIBaseURL:     cfg.GHL.APIBaseURL,
		TimeoutSeconds: cfg.GHL.TimeoutSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize GoHighLevel adapter", zap.Error(err))
	}

	// Meta Conversions API adapter (optional)
	var metaAdapter integration.Attribution
	if cfg.Meta.Enabled {
		adapter, err := attribution.NewMetaAdapter(&attribution.MetaConfig{
			PixelID:        cfg.Meta.PixelID,
			AccessToken:    cfg.Meta.AccessToken,
			TestEventCode:  cfg.Meta.TestEventCode,
			APIBaseURL:     cfg.Meta.APIBaseURL,
			APIVersion:     cfg.Meta.APIVersion,
			TimeoutSeconds: cfg.Meta.TimeoutSeconds,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize Meta adapter", zap.Error(err))
		}
		metaAdapter = adapter
		log.Info("Meta attribution enabled",
			zap.String("pixel_id", cfg.Meta.PixelID),
			zap.Bool("test_events", cfg.Meta.TestEventCode != ""))
	} else {
		log.Info("Meta attribution disabled")
	}

	// Webhook dedupe ledger (Redis with in-memory fallback)
	var idempotencyStore shared.IdempotencyStore
	if cfg.Idempotency.Enabled {
		factory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
		idempotencyStore, err = factory.CreateStore()
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() {
			if err := idempotencyStore.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
	}

	// Reconciliation engine
	engine := lifecycle.NewEngine(lifecycle.EngineConfig{
		Store:       identityRepo,
		Coaching:    trainerizeAdapter,
		CRM:         ghlAdapter,
		Attribution: metaAdapter,
		Catalog:     catalog,
		Logger:      log,
		TrialTag:    cfg.Programs.TrialTag,
		TrialStage:  cfg.Programs.TrialStage,
		LostStage:   cfg.Programs.LostStage,
	})

	// Application services
	webhookService := lifecycle.NewWebhookService(lifecycle.WebhookServiceConfig{
		Config:      stripeConfig,
		Engine:      engine,
		Provider:    stripeAdapter,
		Idempotency: idempotencyStore,
		IdemConfig: shared.IdempotencyConfig{
			Enabled: cfg.Idempotency.Enabled,
			TTL:     cfg.Idempotency.TTL,
		},
		Logger: log,
	})
	leadService := lead.NewService(lead.ServiceConfig{
		Store:  identityRepo,
		Logger: log,
	})
	checkoutService := checkout.NewService(checkout.ServiceConfig{
		Billing: stripeAdapter,
		Store:   identityRepo,
		Catalog: catalog,
		Logger:  log,
	})

	// HTTP handlers
	webhookHandler := handler.NewWebhookHandler(webhookService)
	leadHandler := handler.NewLeadHandler(leadService)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	systemHandler := handler.NewSystemHandler(db)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ginEngine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	ginEngine.Use(middleware.RequestID())
	ginEngine.Use(logger.Recovery(log))
	ginEngine.Use(logger.GinMiddleware(log))
	ginEngine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	ginEngine.Use(middleware.CORSWithConfig(corsConfig))

	ginEngine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		ginEngine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	ginEngine.GET("/healthz", systemHandler.Healthz)

	// Stripe webhook endpoint on the bare engine so the URL registered with
	// Stripe stays stable across API versions
	webhookHandler.RegisterRoutes(ginEngine.Group(""))

	// Versioned API routes
	r := router.New(ginEngine, "v1")
	r.Register(leadHandler, checkoutHandler, systemHandler)
	r.Mount()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
