package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stewardship-cloud/internal/audit"
	"stewardship-cloud/internal/auth"
	"stewardship-cloud/internal/callback"
	"stewardship-cloud/internal/eventing"
	eventingrepo "stewardship-cloud/internal/eventing/infrastructure/postgres"
	invoicingapp "stewardship-cloud/internal/invoicing/application"
	invoicingrepo "stewardship-cloud/internal/invoicing/infrastructure/postgres"
	invoicinginterfaces "stewardship-cloud/internal/invoicing/interfaces"
	"stewardship-cloud/internal/observability/metrics"
	"stewardship-cloud/internal/payments/adapters/sources"
	paymentsapp "stewardship-cloud/internal/payments/application"
	paymentsrepo "stewardship-cloud/internal/payments/infrastructure/postgres"
	"stewardship-cloud/internal/payments/infrastructure/pricing"
	paymentsinterfaces "stewardship-cloud/internal/payments/interfaces"
	"stewardship-cloud/internal/scheme"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(logger)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db open error", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("db ping error", zap.Error(err))
	}

	rules, err := scheme.LoadConfig(cfg.SchemeConfigPath)
	if err != nil {
		logger.Fatal("scheme config error", zap.String("path", cfg.SchemeConfigPath), zap.Error(err))
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	outboxStore := eventingrepo.NewOutboxStore(db)
	publisher := eventing.NewPublisher(outboxStore)
	notifier := callback.NewWebhookNotifier(callback.WithTimeout(cfg.CallbackTimeout))

	paymentStore := paymentsrepo.NewStore(db)
	referenceData := pricing.NewReferenceDataStore(db)
	registry, err := paymentsapp.NewDefaultRegistry(referenceData, nil, logger.Named("strategy"))
	if err != nil {
		logger.Fatal("strategy registry error", zap.Error(err))
	}
	sourceReader := sources.NewReader(db)
	computeService, err := paymentsapp.NewComputeService(
		paymentStore.Batches(),
		paymentStore,
		sourceReader,
		registry,
		rules,
		logger.Named("payments"),
		paymentsapp.WithBatchPublisher(paymentsinterfaces.NewOutboxPublisher(publisher)),
		paymentsapp.WithResultNotifier(notifier),
	)
	if err != nil {
		logger.Fatal("compute service error", zap.Error(err))
	}
	transitionService, err := paymentsapp.NewTransitionService(paymentStore, logger.Named("transitions"))
	if err != nil {
		logger.Fatal("transition service error", zap.Error(err))
	}
	paymentsHandler, err := paymentsinterfaces.NewHandler(computeService, transitionService, paymentStore.Batches(), auditRepo)
	if err != nil {
		logger.Fatal("payments handler error", zap.Error(err))
	}

	invoiceStore := invoicingrepo.NewStore(db)
	generationService, err := invoicingapp.NewGenerationService(
		paymentStore.Facts(),
		invoiceStore,
		invoiceStore.Documents(),
		invoicingrepo.NewAttributeSource(db),
		invoicingrepo.NewRelationshipSource(db),
		rules,
		logger.Named("invoicing"),
		invoicingapp.WithGenerationPublisher(invoicinginterfaces.NewOutboxPublisher(publisher)),
		invoicingapp.WithResultNotifier(notifier),
	)
	if err != nil {
		logger.Fatal("generation service error", zap.Error(err))
	}
	invoicingHandler, err := invoicinginterfaces.NewHandler(generationService, auditRepo)
	if err != nil {
		logger.Fatal("invoicing handler error", zap.Error(err))
	}
	auditHandler, err := audit.NewHandler(auditRepo)
	if err != nil {
		logger.Fatal("audit handler error", zap.Error(err))
	}

	if cfg.EventSinkURL != "" {
		dispatcher := eventing.NewDispatcher(outboxStore, callback.NewEventSink(cfg.EventSinkURL, cfg.CallbackTimeout), logger.Named("outbox"))
		go dispatcher.Run(context.Background(), cfg.DispatchInterval)
	} else {
		logger.Info("event sink not configured; outbox events stay pending")
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/payments/", paymentsHandler)
	mux.Handle("/api/v1/invoices/", invoicingHandler)
	mux.Handle("/api/v1/audit", auditHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger.Named("http"))}
	logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}

type config struct {
	DatabaseURL      string
	HTTPAddr         string
	JWTSecret        string
	SchemeConfigPath string
	CallbackTimeout  time.Duration
	EventSinkURL     string
	DispatchInterval time.Duration
}

func loadConfig(logger *zap.Logger) config {
	cfg := config{
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:        getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		SchemeConfigPath: getenvDefault("SCHEME_CONFIG", ""),
		CallbackTimeout:  getenvDuration("CALLBACK_TIMEOUT", 10*time.Second),
		EventSinkURL:     getenvDefault("EVENT_SINK_URL", ""),
		DispatchInterval: time.Duration(getenvIntDefault("OUTBOX_DISPATCH_SECONDS", 5)) * time.Second,
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
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

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
