package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"

	"train-booking/config"
	"train-booking/events"
	"train-booking/internal/handlers"
	_ "train-booking/migrations"
	"train-booking/monitoring"
	"train-booking/security"
	"train-booking/services"
	"train-booking/store"
	"train-booking/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize the event publisher. Without PubNub keys events are dropped,
	// the booking flow itself does not depend on them.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		publisher = events.NewPubNubPublisher(pubnub.NewPubNub(pnConfig))
	} else {
		slog.Warn("no PubNub keys configured, domain events are dropped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	recordStore := store.New(app)
	inventoryService := services.NewInventoryService(redisClient)
	waitlistService := services.NewWaitlistService(redisClient)
	locker := utils.NewKeyLock(redisClient, cfg.LockTTL, cfg.LockWaitTimeout)
	promotionService := services.NewPromotionService(recordStore, inventoryService, waitlistService, locker, publisher)
	bookingService := services.NewBookingService(
		recordStore, recordStore, recordStore,
		inventoryService, waitlistService, locker, promotionService, publisher,
	)
	transitionService := services.NewTransitionService(
		recordStore, recordStore, recordStore,
		inventoryService, waitlistService, locker, publisher,
		cfg.ConfirmationDelay, cfg.RACHoldDuration, cfg.TransitionPollRate,
	)

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService)
	trainHandler := handlers.NewTrainHandler(recordStore)
	adminHandler := handlers.NewAdminHandler(bookingService, promotionService, transitionService)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.BookingRatePerMinute)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	var metricsServer *http.Server

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		go restoreLedgerState(ctx, bookingService)

		// Start background tasks
		transitionService.Start()
		if cfg.EnableMetrics {
			metricsServer = monitoring.StartMetricsServer(cfg.MetricsPort, redisClient)
			go monitoring.NewMonitor(redisClient).Run(ctx)
		}

		// Booking endpoints
		e.Router.POST("/api/v1/bookings", bookingHandler.CreateBooking).BindFunc(rateLimiter.BookingRateLimit())
		e.Router.GET("/api/v1/bookings", bookingHandler.ListBookings)
		e.Router.GET("/api/v1/bookings/{bookingId}", bookingHandler.GetBooking)
		e.Router.POST("/api/v1/bookings/{bookingId}/cancel", bookingHandler.CancelBooking).BindFunc(rateLimiter.BookingRateLimit())

		// Train endpoints
		e.Router.GET("/api/v1/trains", trainHandler.ListTrains)
		e.Router.GET("/api/v1/trains/{trainId}", trainHandler.GetTrain)
		e.Router.GET("/api/v1/trains/{trainId}/availability", bookingHandler.GetAvailability)

		// Admin endpoints
		e.Router.POST("/api/v1/admin/bookings/{bookingId}/schedule-confirmation", adminHandler.ScheduleConfirmation)
		e.Router.POST("/api/v1/admin/trains/{trainId}/promote", adminHandler.PromoteNext)
		e.Router.GET("/api/v1/admin/trains/{trainId}/waitlist", adminHandler.GetWaitlist)
		e.Router.POST("/api/v1/admin/waitlist/remove", adminHandler.RemoveFromWaitlist)
		e.Router.POST("/api/v1/admin/ledgers/rebuild", adminHandler.RebuildLedgers)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		transitionService.Stop()
		if metricsServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", "error", err)
			}
		}
		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// restoreLedgerState reseeds the Redis counters and waiting lists from the
// database on server restart. Existing ledgers are left as they are.
func restoreLedgerState(ctx context.Context, bookingService *services.BookingService) {
	log.Println("Restoring ledger state from database...")

	restored, err := bookingService.RestoreLedgers(ctx)
	if err != nil {
		log.Printf("Error restoring ledger state: %v", err)
		return
	}

	log.Printf("Ledger state restored for %d journeys", restored)
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
