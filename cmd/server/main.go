package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	financeapp "github.com/shopledger/backend/internal/application/finance"
	"github.com/shopledger/backend/internal/infrastructure/auth"
	"github.com/shopledger/backend/internal/infrastructure/cache"
	"github.com/shopledger/backend/internal/infrastructure/config"
	"github.com/shopledger/backend/internal/infrastructure/event"
	"github.com/shopledger/backend/internal/infrastructure/logger"
	"github.com/shopledger/backend/internal/infrastructure/persistence"
	"github.com/shopledger/backend/internal/infrastructure/telemetry"
	"github.com/shopledger/backend/internal/interfaces/http/handler"
	"github.com/shopledger/backend/internal/interfaces/http/middleware"
	"github.com/shopledger/backend/internal/interfaces/http/router"
	"go.uber.org/zap"

	_ "github.com/shopledger/backend/docs"
)

//	@title			Shop Ledger API
//	@version		1.0
//	@description	Marketplace ledger: invoices, wallets, seller shares, withdrawals and gateway payment verification.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

const version = "1.0.0"

// pinger is implemented by idempotency stores backed by a remote server
type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}

	// The log pipeline needs a logger of its own before the real one exists
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}

	logProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetryCfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log export", zap.Error(err))
	}

	log, err := logger.New(logCfg, logProvider.OTELCore(cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()
	defer func() {
		if err := logProvider.Shutdown(context.Background()); err != nil {
			bootLog.Error("Error shutting down log export", zap.Error(err))
		}
	}()

	log.Info("Starting shop ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	meter := meterProvider.Meter(telemetry.MeterName)

	// Continuous profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeEndpoint,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	sqlDB, err := db.SQLDB()
	if err != nil {
		log.Fatal("Failed to get connection pool", zap.Error(err))
	}
	if _, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB); err != nil {
		log.Warn("Failed to register database pool metrics", zap.Error(err))
	}

	ledgerMetrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{Meter: meter, Logger: log})
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}

	// Initialize repositories and lookups
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	walletRepo := persistence.NewGormWalletAccountRepository(db.DB)
	withdrawalRepo := persistence.NewGormWithdrawalRequestRepository(db.DB)
	settingsQuery := persistence.NewGormSettingsQuery(db.DB)
	sellerLookup := persistence.NewGormSellerLookup(db.DB)
	revenueQuery := persistence.NewGormSellerRevenueQuery(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Callback dedupe and event dedupe share one store
	store, err := cache.NewDedupeStoreOpener(cfg.Redis,
		cache.WithLogger(log),
		cache.RequireRedis(cfg.Ledger.RequireRedis),
	).Open()
	if err != nil {
		log.Fatal("Failed to open dedupe store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	eventBus := event.NewInMemoryEventBus(log)

	retryPolicy := financeapp.RetryPolicy{
		MaxAttempts:     cfg.Ledger.RetryMaxAttempts,
		InitialInterval: cfg.Ledger.RetryInitialInterval,
		Multiplier:      cfg.Ledger.RetryMultiplier,
	}

	// Initialize application services
	walletService := financeapp.NewWalletService(financeapp.WalletServiceConfig{
		Scope:          txScope,
		WalletRepo:     walletRepo,
		EventPublisher: eventBus,
		RetryPolicy:    retryPolicy,
		Metrics:        ledgerMetrics,
		Logger:         log,
	})
	invoiceService := financeapp.NewInvoiceService(financeapp.InvoiceServiceConfig{
		Scope:                 txScope,
		InvoiceRepo:           invoiceRepo,
		Wallets:               walletService,
		PaymentSettings:       settingsQuery,
		EventPublisher:        eventBus,
		RetryPolicy:           retryPolicy,
		InvoiceNumberAttempts: cfg.Ledger.InvoiceNumberAttempts,
		Metrics:               ledgerMetrics,
		Logger:                log,
	})
	withdrawalService := financeapp.NewWithdrawalService(financeapp.WithdrawalServiceConfig{
		Scope:                 txScope,
		WithdrawalRepo:        withdrawalRepo,
		WalletRepo:            walletRepo,
		Revenue:               revenueQuery,
		Withdrawn:             revenueQuery,
		PaymentSettings:       settingsQuery,
		EventPublisher:        eventBus,
		RetryPolicy:           retryPolicy,
		InvoiceNumberAttempts: cfg.Ledger.InvoiceNumberAttempts,
		Metrics:               ledgerMetrics,
		Logger:                log,
	})
	sellerShareService := financeapp.NewSellerShareService(financeapp.SellerShareServiceConfig{
		InvoiceRepo: invoiceRepo,
		Wallets:     walletService,
		Products:    sellerLookup,
		Profiles:    sellerLookup,
		Settings:    settingsQuery,
		Metrics:     ledgerMetrics,
		Logger:      log,
	})
	paymentVerificationService := financeapp.NewPaymentVerificationService(financeapp.PaymentVerificationServiceConfig{
		Scope:          txScope,
		Wallets:        walletService,
		Withdrawals:    withdrawalService,
		CallbackStore:  store,
		CallbackTTL:    cfg.Ledger.CallbackDedupeTTL,
		EventPublisher: eventBus,
		RetryPolicy:    retryPolicy,
		Metrics:        ledgerMetrics,
		Logger:         log,
	})

	// Invoice paid -> seller share
	invoicePaidHandler := event.NewIdempotentHandler(
		financeapp.NewInvoicePaidHandler(sellerShareService, log),
		store,
		log,
	)
	eventBus.Subscribe(invoicePaidHandler)
	log.Info("Event handlers registered",
		zap.Strings("invoice_paid_events", invoicePaidHandler.EventTypes()),
	)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	callbackSecrets, err := auth.NewCallbackSecretVerifier(cfg.Payment.CallbackSecretHash)
	if err != nil {
		log.Fatal("Invalid payment callback secret hash", zap.Error(err))
	}
	if cfg.Payment.CallbackSecretHash == "" {
		log.Warn("Payment callback secret not configured, callbacks are not authenticated")
	}

	healthChecks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if p, ok := store.(pinger); ok {
		healthChecks["redis"] = p.Ping
	}

	middleware.SetupValidator()

	var httpMetrics *middleware.HTTPMetrics
	if cfg.Telemetry.Enabled {
		httpMetrics, err = middleware.NewHTTPMetrics(meter)
		if err != nil {
			log.Fatal("Failed to create HTTP metrics", zap.Error(err))
		}
	}

	adminRole := cfg.JWT.AdminRole
	engine := router.NewEngine(router.EngineConfig{
		HTTP:      cfg.HTTP,
		Swagger:   cfg.Swagger,
		AdminRole: adminRole,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Metrics:          httpMetrics,
		ProfilingEnabled: cfg.Telemetry.ProfilingEnabled,
		Tokens:           auth.NewJWTService(cfg.JWT),
		CallbackSecrets:  callbackSecrets,
		Logger:           log,
	}, router.Handlers{
		Health:          handler.NewHealthHandler(version, healthChecks),
		Invoice:         handler.NewInvoiceHandler(invoiceService, adminRole),
		Wallet:          handler.NewWalletHandler(walletService, invoiceService, adminRole),
		Withdrawal:      handler.NewWithdrawalHandler(withdrawalService, adminRole),
		SellerShare:     handler.NewSellerShareHandler(sellerShareService),
		PaymentCallback: handler.NewPaymentCallbackHandler(paymentVerificationService),
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}
