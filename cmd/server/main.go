// Package main is the entry point for the settlement engine.
// It initializes all dependencies, sets up the HTTP server,
// starts the payout scheduler, and serves the API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payrail/internal/config"
	"payrail/internal/repositories"
	"payrail/internal/routes"
	"payrail/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	config.LoadEnv()
	utils.InitializeLogger()
	log := utils.GetLogger()
	defer log.Sync() //nolint:errcheck

	// Initialize databases (PostgreSQL + Redis)
	if err := repositories.InitDB(); err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	defer func() {
		if repositories.DB != nil {
			if sqlDB, err := repositories.DB.DB(); err == nil {
				if err := sqlDB.Close(); err != nil {
					log.Warn("failed to close database connection", zap.Error(err))
				}
			}
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				log.Warn("failed to close redis connection", zap.Error(err))
			}
		}
	}()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName: "payrail",
	})

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Gateway-Signature",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api/invoices", limiter.New(limiter.Config{
		Max:        config.GetIntEnv("INVOICE_RATE_LIMIT", 60),
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	// Routes
	engine := routes.SetupRoutes(app, repositories.DB)

	// Payout scheduler. Sweeps due payouts every minute and reports
	// payouts stuck in PROCESSING so operators can reconcile them.
	stuckTimeout := config.GetDurationEnv("PAYOUT_STUCK_TIMEOUT", 30*time.Minute)
	scheduler := cron.New()
	_, err := scheduler.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()

		results, err := engine.Payouts.ProcessDue(ctx, time.Now().UTC())
		if err != nil {
			log.Error("payout sweep failed", zap.Error(err))
			return
		}
		if len(results) > 0 {
			log.Info("payout sweep finished", zap.Int("processed", len(results)))
		}

		stuck, err := engine.Payouts.StuckProcessing(ctx, stuckTimeout)
		if err != nil {
			log.Error("stuck payout check failed", zap.Error(err))
			return
		}
		for _, p := range stuck {
			log.Warn("payout stuck in processing",
				zap.Uint("payout_id", p.ID),
				zap.String("reference", p.Reference),
				zap.Time("updated_at", p.UpdatedAt))
		}
	})
	if err != nil {
		log.Fatal("failed to schedule payout sweep", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown error", zap.Error(err))
		}
	}()

	addr := ":" + config.GetEnv("PORT", "3000")
	log.Info("starting server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
