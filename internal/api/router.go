package api

import (
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/api/handler"
	"github.com/ayo6706/wallet-ledger/internal/api/middleware"
	"github.com/ayo6706/wallet-ledger/internal/api/spec"
	"github.com/ayo6706/wallet-ledger/internal/config"
	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/idempotency"
	"github.com/ayo6706/wallet-ledger/internal/receipts"
	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services bundles the application services the router exposes.
type Services struct {
	Accounts       *service.AccountService
	Movement       *service.MovementService
	Settlement     *service.SettlementService
	Products       *service.ProductService
	Reporting      *service.ReportingService
	Reconciliation *service.ReconciliationService
	Webhook        *service.WebhookService
	Receipts       receipts.Uploader
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        handler.Pinger
	idemStore *idempotency.Store
	redis     redis.Cmdable
	svc       Services
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db handler.Pinger, idemStore *idempotency.Store, redis redis.Cmdable, svc Services) *Router {
	if svc.Receipts == nil {
		svc.Receipts = receipts.Disabled{}
	}
	return &Router{cfg: cfg, logger: logger, db: db, idemStore: idemStore, redis: redis, svc: svc}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	// Handlers
	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	authHandler := handler.NewAuthHandler(api.svc.Accounts)
	userHandler := handler.NewUserHandler(api.svc.Accounts)
	accountHandler := handler.NewAccountHandler(api.svc.Accounts)
	movementHandler := handler.NewMovementHandler(api.svc.Movement, api.svc.Accounts)
	settlementHandler := handler.NewSettlementHandler(api.svc.Settlement, api.svc.Accounts)
	productHandler := handler.NewProductHandler(api.svc.Products)
	reportHandler := handler.NewReportHandler(api.svc.Reporting, api.svc.Accounts)
	receiptHandler := handler.NewReceiptHandler(api.svc.Receipts, api.cfg.ReceiptMaxBytes, api.svc.Accounts)
	reconciliationHandler := handler.NewReconciliationHandler(api.svc.Reconciliation)
	webhookHandler := handler.NewWebhookHandler(api.svc.Webhook)

	idempotent := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Operational
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/index.html", http.StatusMovedPermanently)
	})

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/auth/login", authHandler.Login)
		r.Post("/v1/users", userHandler.CreateUser)
		r.Post("/v1/webhooks/deposit", webhookHandler.HandleDepositWebhook)
	})

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/products", productHandler.List)
		r.With(idempotent).Post("/v1/accounts", accountHandler.CreateAccount)

		r.Route("/v1/accounts/{id}", func(r chi.Router) {
			r.Get("/buckets", accountHandler.GetBuckets)
			r.Get("/ledger", accountHandler.GetLedger)
			r.Get("/positions", accountHandler.ListPositions)
			r.Get("/reports/allocation", reportHandler.Allocation)
			r.Get("/reports/flows", reportHandler.Flows)

			r.Group(func(r chi.Router) {
				r.Use(idempotent)
				r.Post("/swaps", movementHandler.Swap)
				r.Post("/investments", movementHandler.InvestStart)
				r.Post("/investments/{positionID}/topup", movementHandler.InvestTopUp)
				r.Post("/investments/{positionID}/withdraw", movementHandler.InvestWithdraw)
				r.Post("/deposits", settlementHandler.ClaimDeposit)
				r.Post("/withdrawals", settlementHandler.ClaimWithdrawal)
			})
			// Receipt bodies are binary and can be large, so they are not
			// recorded for idempotent replay.
			r.Post("/receipts", receiptHandler.Upload)
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Get("/settlements", settlementHandler.ListPending)
			r.Group(func(r chi.Router) {
				r.Use(idempotent)
				r.Post("/positions/{positionID}/pnl", movementHandler.AdjustPnL)
				r.Post("/settlements/{entryID}/approve", settlementHandler.Approve)
				r.Post("/settlements/{entryID}/reject", settlementHandler.Reject)
				r.Post("/products", productHandler.Upsert)
			})
			r.Post("/reconciliation", reconciliationHandler.Run)
		})
	})

	return r
}
