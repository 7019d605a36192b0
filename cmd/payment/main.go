package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/tair/rent-payments/internal/lease/domain"
	"github.com/tair/rent-payments/internal/payment"
	paymentdomain "github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
	"github.com/tair/rent-payments/internal/payment/handler"
	"github.com/tair/rent-payments/internal/payment/usecase/command"
	"github.com/tair/rent-payments/kafka"
	"github.com/tair/rent-payments/pkg/database"
	"github.com/tair/rent-payments/pkg/logger"
	"github.com/tair/rent-payments/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	serviceName := getEnv("OTEL_SERVICE_NAME", "payment-service")
	isDevelopment := getEnv("ENVIRONMENT", "development") == "development"
	logger.Init(serviceName, isDevelopment)

	logLevel := getEnv("LOG_LEVEL", "info")
	logger.SetLevel(logLevel)

	logger.Logger.Info().
		Str("service", serviceName).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Str("log_level", logLevel).
		Msg("Starting payment service")

	// Initialize tracer
	tp, err := tracing.InitTracer(serviceName)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	// Load database configuration
	dbConfig := database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "rentpaymentsdb"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Connect to database
	db, err := database.NewGormConnection(dbConfig)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	// Run migrations
	if err := db.AutoMigrate(&paymentdomain.Payment{}, &paymentdomain.WebhookEvent{}, &domain.Lease{}); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Logger.Info().Msg("Database initialized successfully")

	// Kafka publisher for lifecycle events; the engine runs without a broker.
	// The consumer feeds the audit trail from the same event stream.
	var publisher command.EventPublisher
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		kafkaPublisher, err := kafka.NewPublisher(strings.Split(brokers, ","))
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to connect to Kafka, lifecycle events disabled")
		} else {
			defer kafkaPublisher.Close()
			publisher = kafkaPublisher
			logger.Logger.Info().Str("brokers", brokers).Msg("Kafka publisher initialized")

			consumerCtx, stopConsumer := context.WithCancel(context.Background())
			defer stopConsumer()

			consumer, err := kafka.NewConsumer(strings.Split(brokers, ","), "payment-audit", []string{kafka.TopicPaymentStatusChanged})
			if err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to create Kafka consumer, audit trail disabled")
			} else {
				defer consumer.Close()
				consumer.RegisterHandler(kafka.EventTypePaymentStatusChanged, auditStatusChange)
				if err := consumer.Start(consumerCtx); err != nil {
					logger.Logger.Error().Err(err).Msg("Failed to start Kafka consumer")
				}
			}
		}
	}

	// Payment gateway configuration
	gatewayCfg := gateway.Config{
		BaseURL:         getEnv("GATEWAY_BASE_URL", "http://localhost:9000"),
		APIKey:          getEnv("GATEWAY_API_KEY", "sk_test_dev"),
		WebhookSecret:   getEnv("GATEWAY_WEBHOOK_SECRET", "whsec_dev"),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "EUR"),
	}

	// Initialize handler with Wire DI
	paymentHandler, err := payment.InitializeHandler(db, gatewayCfg, publisher)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize handler")
	}

	logger.Logger.Info().
		Str("gateway_base_url", gatewayCfg.BaseURL).
		Msg("Payment handler initialized")

	// Daily recurring rent generation; the generator is idempotent so
	// re-running it for an already generated period creates nothing.
	if getEnv("RECURRING_GENERATION", "enabled") == "enabled" {
		recurring := payment.ProvideGenerateRecurringHandler(
			payment.ProvidePaymentRepository(db),
			payment.ProvideLeaseRepository(db),
			payment.ProvideInitiateHandler(payment.ProvidePaymentRepository(db), gatewayCfg),
		)
		go runRecurringGeneration(recurring)
	}

	// Start HTTP server
	httpPort := getEnv("HTTP_PORT", "8083")
	go startHTTPServer(paymentHandler, sqlDB, httpPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")
}

// auditStatusChange records every committed lifecycle transition seen on the
// event stream.
func auditStatusChange(ctx context.Context, event kafka.PaymentStatusChangedEvent) error {
	logger.Logger.Info().
		Str("event_id", event.EventID).
		Str("payment_id", event.PaymentID).
		Str("tenant_id", event.TenantID).
		Str("reference", event.Reference).
		Str("from", event.FromStatus).
		Str("to", event.ToStatus).
		Str("amount", event.Amount).
		Str("currency", event.Currency).
		Msg("Payment lifecycle audit")
	return nil
}

func runRecurringGeneration(recurring *command.GenerateRecurringHandler) {
	generate := func() {
		now := time.Now()
		summary, err := recurring.Handle(context.Background(), command.GenerateRecurringCommand{
			Year:  now.Year(),
			Month: now.Month(),
		})
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Recurring generation run failed")
			return
		}
		if summary.Created > 0 {
			logger.Logger.Info().
				Str("period", summary.Period).
				Int("created", summary.Created).
				Msg("Recurring rent payments generated")
		}
	}

	generate()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		generate()
	}
}

func startHTTPServer(paymentHandler *handler.PaymentHandler, db *sql.DB, port string) {
	// Setup router
	router := mux.NewRouter()

	// Register all middlewares using middleware registration system
	handler.RegisterMiddlewares(router, handler.DefaultMiddlewareConfig())

	// Register routes
	paymentHandler.RegisterRoutes(router)

	// Health check endpoint
	paymentHandler.RegisterHealthCheck(router, db)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	logger.Logger.Info().
		Str("port", port).
		Str("metrics_endpoint", "/metrics").
		Msg("HTTP server started")

	if err := http.ListenAndServe(":"+port, c.Handler(router)); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
