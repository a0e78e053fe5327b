package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"payment-gateway/internal/audit"
	"payment-gateway/internal/auth"
	"payment-gateway/internal/eventing"
	eventingrepo "payment-gateway/internal/eventing/infrastructure/postgres"
	"payment-gateway/internal/gateway"
	"payment-gateway/internal/notify"
	"payment-gateway/internal/observability/metrics"
	paymentapp "payment-gateway/internal/payment/application"
	payment "payment-gateway/internal/payment/domain"
	"payment-gateway/internal/payment/infrastructure/memory"
	paymentrepo "payment-gateway/internal/payment/infrastructure/postgres"
	paymentcache "payment-gateway/internal/payment/infrastructure/redis"
	paymentinterfaces "payment-gateway/internal/payment/interfaces"
	paymenthttp "payment-gateway/internal/payment/interfaces/http"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if cfg.JWTSecret == "" && !cfg.AuthDisabled {
		logger.Fatal("AUTH_JWT_SECRET is required unless AUTH_DISABLED=true")
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db open error", zap.Error(err))
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatal("db ping error", zap.Error(err))
		}
	} else {
		logger.Warn("no DATABASE_URL, running in memory demo mode")
	}
	metrics.Init(db, logger)

	var (
		partners    payment.PartnerRepository
		policies    payment.FeePolicyRepository
		payments    payment.PaymentRepository
		outbox      outboxStore
		auditLogger audit.Logger
	)
	if db != nil {
		partners = paymentrepo.NewPartnerRepository(db)
		policies = paymentrepo.NewFeePolicyRepository(db)
		payments = paymentrepo.NewPaymentRepository(db)
		outbox = eventingrepo.NewOutboxStore(db)
		auditLogger = audit.NewRepository(db)
	} else {
		partners = memory.NewPartnerRepository(memory.DemoPartners()...)
		policies = memory.NewFeePolicyRepository(memory.DemoFeePolicies()...)
		payments = memory.NewPaymentRepository()
		outbox = eventing.NewMemoryOutbox()
		auditLogger = audit.NewLogLogger(logger)
	}

	if cfg.RedisAddr != "" {
		client := paymentcache.NewClient(cfg.RedisAddr, cfg.RedisPassword)
		defer client.Close()
		cache, err := paymentcache.NewPartnerCache(client, partners, cfg.RedisPartnerTTL, logger)
		if err != nil {
			logger.Fatal("partner cache error", zap.Error(err))
		}
		partners = cache
	}

	gateways, err := buildGateways(logger)
	if err != nil {
		logger.Fatal("gateway config error", zap.Error(err))
	}

	var sink eventing.Sink = notify.NewLogNotifier(logger)
	if cfg.WebhookURL != "" {
		sink = notify.NewWebhookNotifier(cfg.WebhookURL)
	}
	dispatcher := eventing.NewDispatcher(sink, outbox, logger)
	publisher := paymentinterfaces.NewOutboxPublisher(eventing.NewPublisher(outbox, nil, logger))

	paymentService, err := paymentapp.NewPaymentService(partners, policies, payments, gateways, publisher, paymentapp.SystemClock{}, logger)
	if err != nil {
		logger.Fatal("payment service error", zap.Error(err))
	}
	queryService, err := paymentapp.NewQueryService(payments, logger)
	if err != nil {
		logger.Fatal("query service error", zap.Error(err))
	}
	paymentHandler, err := paymenthttp.NewHandler(paymentService, queryService, auditLogger, logger)
	if err != nil {
		logger.Fatal("payment handler error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go dispatcher.Run(ctx, cfg.DispatchInterval, cfg.DispatchBatch)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(paymenthttp.AccessLog(logger))
	r.Use(middleware.Recoverer)
	if cfg.AuthDisabled {
		logger.Warn("auth disabled")
	} else {
		authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil), auth.WithLogger(logger))
		r.Use(authMiddleware.Wrap)
	}
	paymentHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", zap.Error(err))
		}
	}()

	logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server error", zap.Error(err))
	}
}

type outboxStore interface {
	eventing.OutboxWriter
	eventing.OutboxStore
}

// buildGateways returns the approval chain: TestPG with the simulator
// behind it, or TestPG alone when fallback is disabled.
func buildGateways(logger *zap.Logger) ([]paymentapp.ApprovalGateway, error) {
	gwCfg, err := gateway.LoadConfig()
	if err != nil {
		return nil, err
	}
	cipher := gateway.NewPayloadCipher()
	testPG, err := gateway.NewTestPGGateway(gwCfg.TestPG, cipher, gateway.WithTestPGLogger(logger))
	if err != nil {
		return nil, err
	}
	if !gwCfg.TestPG.FallbackEnabled {
		return []paymentapp.ApprovalGateway{testPG}, nil
	}
	simulator := gateway.NewSimulatorGateway(cipher, gateway.WithSimulatorLogger(logger))
	fallback, err := gateway.NewFallbackGateway(testPG, simulator, logger)
	if err != nil {
		return nil, err
	}
	return []paymentapp.ApprovalGateway{fallback}, nil
}

type config struct {
	DatabaseURL      string
	HTTPAddr         string
	JWTSecret        string
	AuthDisabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisPartnerTTL  time.Duration
	WebhookURL       string
	DispatchInterval time.Duration
	DispatchBatch    int
	LogLevel         string
}

func loadConfig() config {
	return config{
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:        getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		AuthDisabled:     getenvBool("AUTH_DISABLED", false),
		RedisAddr:        getenvDefault("REDIS_ADDR", ""),
		RedisPassword:    getenvDefault("REDIS_PASSWORD", ""),
		RedisPartnerTTL:  getenvDuration("REDIS_PARTNER_TTL", 5*time.Minute),
		WebhookURL:       getenvDefault("PAYMENT_WEBHOOK_URL", ""),
		DispatchInterval: getenvDuration("OUTBOX_DISPATCH_INTERVAL", 5*time.Second),
		DispatchBatch:    getenvIntDefault("OUTBOX_DISPATCH_BATCH", 50),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
	}
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
