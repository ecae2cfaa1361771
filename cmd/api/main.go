package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/akarpov/ledger-service/internal/config"
	"github.com/akarpov/ledger-service/internal/digest"
	"github.com/akarpov/ledger-service/internal/handler"
	"github.com/akarpov/ledger-service/internal/notify"
	"github.com/akarpov/ledger-service/internal/repository"
	"github.com/akarpov/ledger-service/internal/seed"
	"github.com/akarpov/ledger-service/internal/service"
	"github.com/akarpov/ledger-service/internal/token"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Amounts and balances serialize as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	ctx := context.Background()

	// Initialize layers
	repo := repository.NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	if err := seed.Run(ctx, repo, logger); err != nil {
		logger.Fatalf("Failed to seed test user: %v", err)
	}

	tokens := token.NewService(cfg.JWTSecret, cfg.TokenTTL)

	var notifier *notify.Sender
	var svcNotifier service.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewSender(cfg, logger)
		svcNotifier = notifier
	}

	svc := service.NewService(repo, tokens, svcNotifier, logger)
	h := handler.NewHandler(svc)

	// Optional daily digest
	if cfg.DigestCron != "" && notifier != nil {
		job := digest.NewJob(repo, notifier, logger)
		if err := job.Start(cfg.DigestCron); err != nil {
			logger.Fatalf("Failed to schedule digest job: %v", err)
		}
		defer job.Stop()
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Routes(tokens),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}
