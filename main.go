package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	accountapp "decoder-ledger/internal/accounts/application"
	accounts "decoder-ledger/internal/accounts/domain"
	accountmemory "decoder-ledger/internal/accounts/infrastructure/memory"
	accountrepo "decoder-ledger/internal/accounts/infrastructure/postgres"
	accounthttp "decoder-ledger/internal/accounts/interfaces/http"
	"decoder-ledger/internal/audit"
	"decoder-ledger/internal/auth"
	"decoder-ledger/internal/checkrequest"
	checkrequesthttp "decoder-ledger/internal/checkrequest/interfaces/http"
	"decoder-ledger/internal/config"
	"decoder-ledger/internal/exchangerate"
	"decoder-ledger/internal/expiry"
	inventoryapp "decoder-ledger/internal/inventory/application"
	inventory "decoder-ledger/internal/inventory/domain"
	inventorymemory "decoder-ledger/internal/inventory/infrastructure/memory"
	inventoryrepo "decoder-ledger/internal/inventory/infrastructure/postgres"
	inventoryhttp "decoder-ledger/internal/inventory/interfaces/http"
	"decoder-ledger/internal/logging"
	"decoder-ledger/internal/observability/metrics"
	"decoder-ledger/internal/platform/database"
	"decoder-ledger/internal/ratelimit"
	"decoder-ledger/internal/reminders"
	reportapp "decoder-ledger/internal/reports/application"
	reporthttp "decoder-ledger/internal/reports/interfaces/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	if stores.db != nil {
		defer stores.db.Close()
	}

	state := accountapp.NewState()
	propagator, err := accountapp.NewCutoffPropagator(stores.accounts, stores.ledger, state,
		accountapp.WithPropagatorLogger(logger))
	if err != nil {
		logger.Fatal("propagator init failed", zap.Error(err))
	}
	accountService, err := accountapp.NewService(stores.accounts, state, propagator, accountapp.WithLogger(logger))
	if err != nil {
		logger.Fatal("account service init failed", zap.Error(err))
	}
	if loaded, err := accountService.Refresh(ctx); err != nil {
		logger.Warn("initial account load failed", zap.Error(err))
	} else {
		logger.Info("accounts loaded", zap.Int("accounts", len(loaded)))
	}

	calc, err := expiry.NewCalculator(decimal.NewFromFloat(cfg.DailyRate), expiry.WithLocation(cfg.Location()))
	if err != nil {
		logger.Fatal("calculator init failed", zap.Error(err))
	}
	views, err := reportapp.NewViews(calc, expiry.CardPolicy(cfg.CardSoonDays), expiry.ReportPolicy(cfg.ReportSoonDays), cfg.ReportHorizonDays)
	if err != nil {
		logger.Fatal("views init failed", zap.Error(err))
	}
	reportService, err := reportapp.NewService(accountService, views, calc)
	if err != nil {
		logger.Fatal("report service init failed", zap.Error(err))
	}
	reminderService, err := reminders.NewService(reportService, cfg.ReminderPhone)
	if err != nil {
		logger.Fatal("reminder service init failed", zap.Error(err))
	}

	rates := exchangerate.NewClient(cfg.ExchangeRateURL, cfg.ExchangeRateTimeout, cfg.ExchangeRateTTL,
		exchangerate.WithLogger(logger),
		exchangerate.WithCurrencies(cfg.ForeignCurrency, cfg.LocalCurrency))
	checkService, err := checkrequest.NewService(accountService, rates, cfg.Letterhead,
		checkrequest.WithLogger(logger))
	if err != nil {
		logger.Fatal("check request service init failed", zap.Error(err))
	}

	inventoryService, err := inventoryapp.NewService(stores.inventory, inventoryapp.WithLogger(logger))
	if err != nil {
		logger.Fatal("inventory service init failed", zap.Error(err))
	}

	var auditLogger audit.Logger = audit.NewZapLogger(logger)
	if stores.db != nil {
		auditLogger = audit.NewRepository(stores.db)
	}

	accountHandler, err := accounthttp.NewHandler(accountService, reportService, auditLogger, logger)
	if err != nil {
		logger.Fatal("account handler init failed", zap.Error(err))
	}
	reportHandler, err := reporthttp.NewHandler(reportService, reminderService, auditLogger, logger)
	if err != nil {
		logger.Fatal("report handler init failed", zap.Error(err))
	}
	checkHandler, err := checkrequesthttp.NewHandler(checkService, rates, auditLogger, logger)
	if err != nil {
		logger.Fatal("check request handler init failed", zap.Error(err))
	}
	inventoryHandler, err := inventoryhttp.NewHandler(inventoryService, auditLogger, logger)
	if err != nil {
		logger.Fatal("inventory handler init failed", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/v1/accounts", accountHandler)
	mux.Handle("/api/v1/accounts/", accountHandler)
	mux.Handle("/api/v1/propagations/", accountHandler)
	mux.Handle("/api/v1/views/", reportHandler)
	mux.Handle("/api/v1/reports/", reportHandler)
	mux.Handle("/api/v1/reminders", reportHandler)
	mux.Handle("/api/v1/exchange-rate", checkHandler)
	mux.Handle("/api/v1/check-requests/pdf", checkHandler)
	mux.Handle("/api/v1/inventory", inventoryHandler)
	mux.Handle("/api/v1/inventory/", inventoryHandler)

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil))
	limiter := ratelimit.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	handler := logging.Middleware(limiter.Wrap(authMiddleware.Wrap(mux)), logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server error", zap.Error(err))
	}
}

type stores struct {
	db        *sql.DB
	accounts  accounts.Repository
	ledger    accounts.PropagationLedger
	inventory inventory.Repository
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.Store == config.StoreMemory {
		metrics.Init(nil, logger)
		logger.Warn("using in-memory store; data is lost on restart")
		return stores{
			accounts:  accountmemory.NewAccountRepository(),
			ledger:    accountmemory.NewLedgerRepository(),
			inventory: inventorymemory.NewItemRepository(),
		}, nil
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	metrics.Init(db, logger)
	return stores{
		db:        db,
		accounts:  accountrepo.NewAccountRepository(db, accountrepo.WithAccountLogger(logger)),
		ledger:    accountrepo.NewLedgerRepository(db),
		inventory: inventoryrepo.NewItemRepository(db),
	}, nil
}
