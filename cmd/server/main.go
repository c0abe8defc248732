package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subosito/gotenv"
	"github.com/talkoren/invoice-intake/internal/client"
	"github.com/talkoren/invoice-intake/internal/commit"
	"github.com/talkoren/invoice-intake/internal/config"
	"github.com/talkoren/invoice-intake/internal/export"
	"github.com/talkoren/invoice-intake/internal/extraction"
	"github.com/talkoren/invoice-intake/internal/reconcile"
	"github.com/talkoren/invoice-intake/internal/repository"
	"github.com/talkoren/invoice-intake/internal/server"
	"github.com/talkoren/invoice-intake/internal/session"
	"github.com/talkoren/invoice-intake/internal/staging"
	"github.com/talkoren/invoice-intake/pkg/database"
	"github.com/talkoren/invoice-intake/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice intake service",
		zap.Int("port", cfg.Server.Port),
		zap.String("extraction_url", cfg.Extraction.BaseURL))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	suppliers := repository.NewSupplierRepository(db.DB, logger)
	invoices := repository.NewInvoiceRepository(db.DB, logger)
	writer := repository.NewBatchWriter(db, suppliers, invoices, logger)

	store, err := staging.NewStore(cfg.Staging.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize staging store", zap.Error(err))
	}

	extractor := client.NewExtractionClient(client.ExtractionConfig{
		BaseURL: cfg.Extraction.BaseURL,
		Timeout: cfg.Extraction.Timeout,
	}, logger)
	orchestrator := extraction.NewOrchestrator(store, extractor, logger)

	// The persistence endpoints are served by this process. When a separate
	// persistence deployment is configured, commits go over HTTP instead.
	var checker commit.ConflictChecker = writer
	var persister commit.Persister = writer
	if cfg.Intake.PersistenceURL != "" {
		pc := client.NewPersistenceClient(client.PersistenceConfig{
			BaseURL: cfg.Intake.PersistenceURL,
			Timeout: cfg.Intake.CommitTimeout,
		}, logger)
		checker = pc
		persister = pc
	}

	committer := commit.NewCommitter(
		commit.NewGate(checker, logger),
		persister,
		commit.PayloadDefaults{Currency: cfg.Intake.DefaultCurrency},
		logger,
	)

	sessions := session.NewManager(cfg.Intake.DefaultVATRate, logger)

	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.New(
		server.Config{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		sessions,
		store,
		orchestrator,
		reconcile.New(),
		committer,
		export.NewExporter(logger),
		writer,
		invoices,
		logger,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}
