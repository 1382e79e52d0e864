// Package routes wires repositories, services and handlers onto the
// fiber app.
package routes

import (
	"time"

	"payrail/internal/config"
	"payrail/internal/gateway"
	"payrail/internal/handlers"
	"payrail/internal/middleware"
	"payrail/internal/repositories"
	"payrail/internal/services/balance"
	"payrail/internal/services/fees"
	"payrail/internal/services/invoice"
	"payrail/internal/services/payout"
	"payrail/internal/services/sequence"
	"payrail/internal/services/webhook"
	"payrail/internal/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Engine bundles the settlement services for callers outside the HTTP
// layer (the cron worker needs the payout service).
type Engine struct {
	Invoices invoice.Service
	Payouts  payout.Service
	Balances balance.Service
	Webhooks webhook.Service
}

// SetupRoutes builds the settlement engine and registers all routes.
func SetupRoutes(app *fiber.App, db *gorm.DB) *Engine {
	logger := utils.GetLogger()

	// Repositories
	invoiceRepo := repositories.NewInvoiceRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	payoutRepo := repositories.NewPayoutRepository(db)
	balanceRepo := repositories.NewBalanceRepository(db)
	sequenceRepo := repositories.NewSequenceRepository(db)
	tierRepo := repositories.NewTierRepository(db, repositories.CacheService)
	directory := repositories.NewMerchantDirectory(db)
	methodRepo := repositories.NewPayoutMethodRepository(db)

	// External gateway
	gatewayClient := gateway.NewHTTPClient(
		config.GetEnv("GATEWAY_URL", "https://api.gateway.example"),
		config.GetEnv("GATEWAY_SECRET_KEY", ""),
		config.GetDurationEnv("GATEWAY_TIMEOUT", 30*time.Second),
	)

	// Services
	resolver := fees.NewResolver(tierRepo)
	sequencer := sequence.NewService(sequenceRepo)
	balanceService := balance.NewService(balanceRepo, repositories.CacheService, logger)
	invoiceService := invoice.NewService(
		invoiceRepo, directory, resolver, sequencer, gatewayClient, balanceService, logger)
	webhookService := webhook.NewService(
		[]byte(config.GetEnv("GATEWAY_WEBHOOK_SECRET", "")),
		invoiceService, paymentRepo, logger)

	rails := payout.NewRegistry(
		payout.NewBankRail(gatewayClient),
		payout.NewMobileMoneyRail(gatewayClient),
	)
	payoutService := payout.NewService(
		payoutRepo, methodRepo, directory, resolver, sequencer, rails, balanceService, logger)

	// Handlers
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService)
	payoutHandler := handlers.NewPayoutHandler(payoutService)
	merchantHandler := handlers.NewMerchantHandler(balanceService, methodRepo)
	webhookHandler := handlers.NewWebhookHandler(webhookService)

	app.Get("/health", handlers.HealthCheck)

	// Webhooks authenticate by signature, not bearer token.
	app.Post("/api/webhooks/gateway", webhookHandler.HandleGatewayEvent)

	api := app.Group("/api", middleware.Auth())

	api.Post("/invoices", invoiceHandler.CreateInvoice)
	api.Get("/invoices", invoiceHandler.ListInvoices)
	api.Get("/invoices/:id", invoiceHandler.GetInvoice)
	api.Patch("/invoices/:id", invoiceHandler.UpdateInvoice)
	api.Post("/invoices/:id/cancel", invoiceHandler.CancelInvoice)

	api.Get("/balance", merchantHandler.GetBalance)

	api.Get("/payout-methods", merchantHandler.ListPayoutMethods)
	api.Post("/payout-methods", merchantHandler.CreatePayoutMethod)
	api.Post("/payout-methods/:id/default", merchantHandler.SetDefaultPayoutMethod)

	api.Post("/payouts", payoutHandler.CreatePayout)
	api.Get("/payouts", payoutHandler.ListPayouts)
	api.Get("/payouts/:id", payoutHandler.GetPayout)
	api.Post("/payouts/process", payoutHandler.ProcessDue)

	return &Engine{
		Invoices: invoiceService,
		Payouts:  payoutService,
		Balances: balanceService,
		Webhooks: webhookService,
	}
}
