// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockpile/internal/core/numerator"
	"stockpile/internal/domain/alert"
	"stockpile/internal/domain/allocation"
	"stockpile/internal/domain/batch"
	"stockpile/internal/domain/catalogs/location"
	"stockpile/internal/domain/catalogs/product"
	"stockpile/internal/domain/ledger"
	"stockpile/internal/domain/transfer"
	"stockpile/internal/infrastructure/http/v1/handlers"
	"stockpile/internal/infrastructure/http/v1/middleware"
	"stockpile/internal/infrastructure/storage/postgres"
	"stockpile/internal/infrastructure/storage/postgres/alert_repo"
	"stockpile/internal/infrastructure/storage/postgres/batch_repo"
	"stockpile/internal/infrastructure/storage/postgres/catalog_repo"
	"stockpile/internal/infrastructure/storage/postgres/ledger_repo"
	"stockpile/internal/infrastructure/storage/postgres/transfer_repo"
	"stockpile/pkg/logger"
)

// Write operations on stock require this role (admins bypass the check).
const roleManager = "manager"

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// TxManager runs repository operations in transactions
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Numerator for document number generation
	Numerator numerator.Generator

	// Audit records document changes; nil disables auditing
	Audit *postgres.AuditService

	// AlertPolicy tunes alert evaluation thresholds
	AlertPolicy alert.Policy
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Repositories
	productRepo := catalog_repo.NewProductRepo(cfg.TxManager)
	locationRepo := catalog_repo.NewLocationRepo(cfg.TxManager)
	batchRepo := batch_repo.NewBatchRepo(cfg.TxManager)
	stockRepo := ledger_repo.NewStockRepo(cfg.TxManager)
	transferRepo := transfer_repo.NewTransferRepo(cfg.TxManager)
	alertRepo := alert_repo.NewAlertRepo(cfg.TxManager)

	// Services
	productService := product.NewService(productRepo, cfg.TxManager, cfg.Numerator)
	locationService := location.NewService(locationRepo, cfg.TxManager, cfg.Numerator)
	batchService := batch.NewService(batchRepo, productRepo, cfg.TxManager)
	ledgerService := ledger.NewService(stockRepo, productRepo, cfg.TxManager)
	allocEngine := allocation.NewEngine(ledgerService, stockRepo, batchRepo, cfg.TxManager)
	transferService := transfer.NewService(transferRepo, locationRepo, allocEngine, ledgerService, cfg.Numerator, cfg.TxManager)
	alertService := alert.NewService(alertRepo, cfg.TxManager)
	evaluator := alert.NewEvaluator(alertRepo, stockRepo, productRepo, batchRepo, cfg.TxManager, cfg.AlertPolicy)

	// Cross-service wiring
	ledgerService.SetStockEvaluator(evaluator)
	batchService.SetExpiryEvaluator(evaluator)
	if cfg.Audit != nil {
		transferService.SetAuditRecorder(cfg.Audit)
	}

	// API v1 (JWT required)
	baseHandler := handlers.NewBaseHandler()
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	{
		// Catalogs
		catalogs := api.Group("/catalog")
		RegisterCatalogRoutes(catalogs.Group("/products"), handlers.NewProductHandler(baseHandler, productService), roleManager)
		RegisterCatalogRoutes(catalogs.Group("/locations"), handlers.NewLocationHandler(baseHandler, locationService), roleManager)

		// Batches
		batchHandler := handlers.NewBatchHandler(baseHandler, batchService)
		batches := api.Group("/batches")
		{
			batches.GET("", batchHandler.List)
			batches.GET("/:id", batchHandler.Get)
			batches.POST("", middleware.RequireRole(roleManager), batchHandler.Create)
			batches.PUT("/:id", middleware.RequireRole(roleManager), batchHandler.Update)
			batches.DELETE("/:id", middleware.RequireRole(roleManager), batchHandler.Delete)
		}

		// Stock ledger and allocations
		stockHandler := handlers.NewStockHandler(baseHandler, ledgerService, allocEngine)
		stock := api.Group("/stock")
		{
			stock.GET("/cells", stockHandler.ListCells)
			stock.GET("/cells/:id", stockHandler.GetCell)
			stock.POST("/cells", middleware.RequireRole(roleManager), stockHandler.CreateCell)
			stock.DELETE("/cells/:id", middleware.RequireRole(roleManager), stockHandler.DeleteCell)
			stock.POST("/cells/:id/verify", stockHandler.VerifyCell)
			stock.POST("/entries", middleware.RequireRole(roleManager), stockHandler.ApplyDelta)
			stock.POST("/reservations", middleware.RequireRole(roleManager), stockHandler.Reserve)
			stock.POST("/reservations/release", middleware.RequireRole(roleManager), stockHandler.Release)
			stock.GET("/log", stockHandler.ListLog)
			stock.GET("/total", stockHandler.TotalStock)
			stock.POST("/allocations/plan", stockHandler.PlanAllocation)
			stock.POST("/allocations", middleware.RequireRole(roleManager), stockHandler.Allocate)
		}

		// Transfers
		transferHandler := handlers.NewTransferHandler(baseHandler, transferService)
		transfers := api.Group("/transfers")
		{
			transfers.GET("", transferHandler.List)
			transfers.GET("/:id", transferHandler.Get)
			transfers.POST("", middleware.RequireRole(roleManager), transferHandler.Create)
			transfers.POST("/:id/actions", middleware.RequireRole(roleManager), transferHandler.Act)
		}

		// Alerts
		alertHandler := handlers.NewAlertHandler(baseHandler, alertService, evaluator)
		alerts := api.Group("/alerts")
		{
			alerts.GET("", alertHandler.List)
			alerts.GET("/:id", alertHandler.Get)
			alerts.POST("/:id/resolve", alertHandler.Resolve)
			alerts.POST("/:id/dismiss", alertHandler.Dismiss)
			alerts.POST("/evaluate", middleware.RequireRole(roleManager), alertHandler.Evaluate)
		}
	}

	return router
}
