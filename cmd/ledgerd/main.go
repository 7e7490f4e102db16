package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmerrifield20/blockledger/internal/auth"
	"github.com/jmerrifield20/blockledger/internal/chain"
	"github.com/jmerrifield20/blockledger/internal/config"
	"github.com/jmerrifield20/blockledger/internal/health"
	"github.com/jmerrifield20/blockledger/internal/ledger/handler"
	"github.com/jmerrifield20/blockledger/internal/ledger/service"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(); err != nil {
		logger.Fatal("ledgerd exited with error", zap.Error(err))
	}
}

func run() error {
	// ── Configuration ────────────────────────────────────────────────────────
	cfg, err := config.Load(config.New(), os.Getenv("LEDGER_CONFIG"))
	if err != nil {
		return err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.FileUsed == "" {
		logger.Warn("no config file found, using defaults and env vars")
	} else {
		logger.Info("config loaded", zap.String("file", cfg.FileUsed))
	}

	// ── Ledger ───────────────────────────────────────────────────────────────
	opts, err := cfg.LedgerOptions()
	if err != nil {
		return err
	}
	svc := service.NewLedgerService(chain.New(opts...), logger)

	// ── Write authorisation ──────────────────────────────────────────────────
	var tokens *auth.TokenIssuer
	if cfg.Server.AuthSecret != "" {
		tokens, err = auth.NewTokenIssuer(cfg.Server.AuthSecret, cfg.Server.TokenTTL)
		if err != nil {
			return fmt.Errorf("token issuer: %w", err)
		}
		logger.Info("write auth enabled")
	} else {
		logger.Warn("write auth disabled; set server.auth_secret to require writer tokens")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Integrity checks ─────────────────────────────────────────────────────
	var checker *health.Checker
	if cfg.Server.AuditInterval > 0 {
		checker = health.New(svc, health.Config{CheckInterval: cfg.Server.AuditInterval}, logger)
		checker.SetMetricsRecord(handler.RecordVerify)
		go checker.Start(ctx)
		logger.Info("integrity checker started", zap.Duration("interval", cfg.Server.AuditInterval))
	}

	router := newRouter(ctx, cfg, svc, tokens, checker, logger)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("ledgerd HTTP listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("ledger_id", svc.ID()),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("HTTP listen: %w", err)
	}
	logger.Info("shutting down ledgerd...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	info := svc.Info(context.Background())
	logger.Info("ledgerd stopped",
		zap.Int("blocks", info.Length),
		zap.String("head", info.Head),
	)
	return nil
}
