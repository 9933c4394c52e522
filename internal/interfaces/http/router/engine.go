package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopledger/backend/internal/infrastructure/auth"
	"github.com/shopledger/backend/internal/infrastructure/config"
	"github.com/shopledger/backend/internal/infrastructure/logger"
	"github.com/shopledger/backend/internal/interfaces/http/handler"
	"github.com/shopledger/backend/internal/interfaces/http/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Handlers bundles the HTTP handlers mounted by NewEngine
type Handlers struct {
	Health          *handler.HealthHandler
	Invoice         *handler.InvoiceHandler
	Wallet          *handler.WalletHandler
	Withdrawal      *handler.WithdrawalHandler
	SellerShare     *handler.SellerShareHandler
	PaymentCallback *handler.PaymentCallbackHandler
}

// EngineConfig holds what the middleware stack needs
type EngineConfig struct {
	HTTP      config.HTTPConfig
	Swagger   config.SwaggerConfig
	AdminRole string
	Tracing   middleware.TracingConfig
	// Metrics is optional; nil disables HTTP metrics
	Metrics          *middleware.HTTPMetrics
	ProfilingEnabled bool
	Tokens           middleware.TokenValidator
	CallbackSecrets  *auth.CallbackSecretVerifier
	Logger           *zap.Logger
}

const healthPath = "/health"

// NewEngine builds the gin engine with the middleware stack and every route.
//
// Middleware order:
//  1. Recovery, so panics in any later handler become 500s
//  2. RequestID, before anything that logs or traces
//  3. Tracing, then the request logger which picks up the span
//  4. Secure, CORS, BodyLimit
//  5. HTTP metrics and profiling labels
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	tracing := cfg.Tracing
	tracing.SkipPaths = append([]string{healthPath}, cfg.Tracing.SkipPaths...)

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(tracing)...)
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: cfg.HTTP.CORSAllowMethods,
		AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		MaxAge:       12 * time.Hour,
	}))
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	if cfg.Metrics != nil {
		engine.Use(cfg.Metrics.Middleware())
	}
	engine.Use(middleware.Profiling(cfg.ProfilingEnabled))

	engine.GET(healthPath, h.Health.Health)

	if cfg.Swagger.Enabled {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// The gateway authenticates with a shared secret, not a JWT
	engine.POST("/api/v1/payments/callback",
		middleware.CallbackSecret(cfg.CallbackSecrets, log),
		h.PaymentCallback.HandleCallback,
	)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(middleware.JWTAuth(middleware.JWTConfig{
		Validator: cfg.Tokens,
		Logger:    log,
	}))

	adminOnly := middleware.RequireRole(cfg.AdminRole)

	invoiceRoutes := NewDomainGroup("invoice", "/invoices")
	invoiceRoutes.POST("", h.Invoice.CreateInvoice)
	invoiceRoutes.GET("", h.Invoice.ListInvoices)
	invoiceRoutes.GET("/:id", h.Invoice.GetInvoice)
	invoiceRoutes.POST("/:id/transactions", adminOnly, h.Invoice.SubmitTransaction)
	invoiceRoutes.PUT("/:id/transactions/:txId", adminOnly, h.Invoice.UpdateTransaction)
	invoiceRoutes.POST("/:id/cancel", h.Invoice.CancelInvoice)
	invoiceRoutes.PUT("/:id/shipping-address", h.Invoice.SetShippingAddress)
	invoiceRoutes.POST("/:id/pay-with-wallet", h.Invoice.PayWithWallet)
	invoiceRoutes.POST("/:id/gateway-payments", h.Invoice.StartGatewayPayment)
	r.Register(invoiceRoutes)

	walletRoutes := NewDomainGroup("wallet", "/wallets")
	walletRoutes.POST("/top-ups", h.Wallet.CreateTopUp)
	walletRoutes.GET("/:ownerKind/:ownerId", h.Wallet.GetWallet)
	walletRoutes.POST("/:id/lock", adminOnly, h.Wallet.LockWallet)
	walletRoutes.POST("/:id/unlock", adminOnly, h.Wallet.UnlockWallet)
	r.Register(walletRoutes)

	withdrawalRoutes := NewDomainGroup("withdrawal", "/withdrawals")
	withdrawalRoutes.POST("", h.Withdrawal.CreateWithdrawal)
	withdrawalRoutes.GET("", h.Withdrawal.ListWithdrawals)
	withdrawalRoutes.GET("/:id", h.Withdrawal.GetWithdrawal)
	withdrawalRoutes.POST("/:id/approve", adminOnly, h.Withdrawal.ApproveWithdrawal)
	withdrawalRoutes.POST("/:id/reject", adminOnly, h.Withdrawal.RejectWithdrawal)
	withdrawalRoutes.POST("/:id/process", adminOnly, h.Withdrawal.ProcessWithdrawal)
	r.Register(withdrawalRoutes)

	adminRoutes := NewDomainGroup("admin", "/admin").Use(adminOnly)
	adminRoutes.POST("/invoices/:id/seller-share", h.SellerShare.ChargeSellerShare)
	r.Register(adminRoutes)

	r.Setup()
	return engine
}
