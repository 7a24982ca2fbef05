package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/auth"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/config"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/expenses"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/health"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/httpserver"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/logger"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/marketdata"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/notes"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/positions"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/reports"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/scheduler"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/transactions"

	"github.com/shopspring/decimal"
)

func main() {
	startedAt := time.Now()
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()
	backend := store.Backend(cfg.StoreDSN)
	log.Info().Str("backend", backend).Msg("store ready")

	bus := marketdata.NewBus()
	authSvc := auth.NewService(db, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)
	ledger := positions.NewService(db, bus, log)
	history := marketdata.NewHistoryService(marketdata.NewYahooProvider(cfg.MarketDataBaseURL), db, bus, log)
	limiter := httpserver.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:         auth.NewHandler(authSvc),
		NotesHandler:        notes.NewHandler(notes.NewService(db)),
		ExpensesHandler:     expenses.NewHandler(expenses.NewService(db)),
		TransactionsHandler: transactions.NewHandler(transactions.NewService(db)),
		PositionsHandler:    positions.NewHandler(ledger, log),
		MarketHandler:       marketdata.NewHandler(history, log),
		ReportsHandler:      reports.NewHandler(reports.NewService(ledger, history), log),
		HealthHandler:       health.NewHandler(db, backend, startedAt),
		AuthService:         authSvc,
		WSHandler:           httpserver.NewWSHandler(bus, authSvc, ledger, cfg.WebSocketOrigin, log),
		RateLimiter:         limiter,
		CORSOrigins:         cfg.CORSOrigins,
		Log:                 log,
	})

	sched := scheduler.New(log)
	if cfg.RefreshCron != "" {
		if err := sched.AddJob(cfg.RefreshCron, scheduler.NewHistoryRefreshJob(ledger, history, log)); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.RefreshCron).Msg("invalid MARKETDATA_REFRESH_CRON")
		}
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				limiter.Prune(3 * time.Minute)
			}
		}
	}()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server failed")
	}
}
