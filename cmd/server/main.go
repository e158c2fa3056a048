/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the concierge booking engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (development convenience) and environment config
  2. Initialize SQLite store
  3. Wire pricing engine, booking façade, event subscribers
  4. Configure HTTP router
  5. Start server with graceful shutdown

ENVIRONMENT:
  HTTP_ADDR         Listen address (default :8080)
  SQLITE_PATH       SQLite database path (":memory:" for in-memory)
  CORS_ORIGINS      Comma-separated allowed origins
  DEFAULT_CURRENCY  Pricing currency fallback (default USD)
  AMQP_URL          Optional RabbitMQ URL; empty disables publishing
  AMQP_EXCHANGE     Topic exchange for booking events

EVENT WIRING:
  The booking façade publishes a completed event on an in-process bus
  after the terminal transition is persisted. Subscribers attached here:
  - loyalty accrual (idempotent point crediting)
  - metrics counter
  - RabbitMQ publisher (when AMQP_URL is configured)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close broker connection and database
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - booking/service.go: The façade everything routes through
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/concierge-engine/api"
	"github.com/warp/concierge-engine/booking"
	"github.com/warp/concierge-engine/config"
	"github.com/warp/concierge-engine/loyalty"
	"github.com/warp/concierge-engine/metrics"
	"github.com/warp/concierge-engine/mq"
	"github.com/warp/concierge-engine/pricing"
	"github.com/warp/concierge-engine/provider"
	"github.com/warp/concierge-engine/sla"
	"github.com/warp/concierge-engine/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Pricing: provider resolution backed by the store
	resolver := &provider.Resolver{
		Providers:   store.ProviderStore(),
		Assignments: store,
	}
	engine := pricing.NewEngine(resolver, pricing.Config{DefaultCurrency: cfg.DefaultCurrency})

	// Booking façade with the default SLA table; hotels override via
	// PUT /api/hotels/{id}/config.
	bus := booking.NewBus()
	svc := booking.NewService(store, engine, sla.DefaultTable(), bus)

	// Metrics
	m := metrics.New()

	// Loyalty accrual subscriber
	trigger := loyalty.NewTrigger(store.MemberStore(), store.MarkerStore(), store, store)
	bus.Subscribe(func(ctx context.Context, ev booking.CompletedEvent) error {
		res := trigger.OnBookingCompleted(ctx, loyalty.CompletionEvent{
			BookingID:   ev.BookingID,
			GuestID:     ev.GuestID,
			HotelID:     ev.HotelID,
			FinalPrice:  ev.FinalPrice,
			ServiceType: ev.ServiceType,
			Nights:      ev.NumberOfNights,
			CompletedAt: ev.CompletedAt,
		})
		switch {
		case res.Success && res.AlreadyAwarded:
			m.AccrualsTotal.WithLabelValues("duplicate").Inc()
		case res.Success:
			m.AccrualsTotal.WithLabelValues("awarded").Inc()
			log.Printf("booking %s: awarded %d points (tier %s)", ev.BookingID, res.PointsAwarded, res.NewTier)
		default:
			m.AccrualsTotal.WithLabelValues("skipped").Inc()
			log.Printf("booking %s: accrual skipped: %s", ev.BookingID, res.Reason)
		}
		return nil
	})

	// Metrics subscriber
	bus.Subscribe(func(ctx context.Context, ev booking.CompletedEvent) error {
		m.CompletedEvents.Inc()
		return nil
	})

	// Optional broker publisher
	if cfg.AMQPURL != "" {
		publisher, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("Failed to connect to broker: %v", err)
		}
		defer publisher.Close()
		bus.Subscribe(publisher.PublishCompleted)
		log.Printf("Publishing booking events to exchange %q", cfg.AMQPExchange)
	}

	// HTTP layer
	handler := api.NewHandler(svc, store.FeedbackStore(), store.ProviderStore(), store, store.MemberStore(), store)
	handler.Metrics = m
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
