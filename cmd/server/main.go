package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tariproject/payment-processor/internal/api"
	"github.com/tariproject/payment-processor/internal/basenode"
	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/consolewallet"
	"github.com/tariproject/payment-processor/internal/db"
	"github.com/tariproject/payment-processor/internal/logging"
	"github.com/tariproject/payment-processor/internal/pipeline"
	"github.com/tariproject/payment-processor/internal/walletapi"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("payment-processor %s\n", version)
		return
	}

	if err := run(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting payment processor",
		"version", version,
		"instanceID", cfg.WorkerInstanceID,
		"port", cfg.Port,
		"dbPath", cfg.DBPath,
		"logLevel", cfg.LogLevel,
	)

	workerSettings, err := config.LoadWorkerSettings(cfg.WorkersConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load worker settings: %w", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	slog.Info("database opened", "path", cfg.DBPath)

	if err := database.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("database migrations applied")

	walletClient := walletapi.NewClient(&http.Client{Timeout: config.WalletAPITimeout}, cfg.WalletAPIURL, config.WalletAPIRateLimit)
	nodeClient := basenode.NewClient(&http.Client{Timeout: config.BaseNodeTimeout}, cfg.BaseNodeURL)

	var signer consolewallet.Signer = consolewallet.NewExecSigner(cfg.ConsoleWalletCommand)
	signer = consolewallet.NewSerializer(signer, cfg.ConsoleWalletLockfile)

	batchCreator := &pipeline.BatchCreator{
		Store:               database,
		PollInterval:        workerSettings.BatchCreator.PollInterval(),
		MaxPaymentsPerBatch: cfg.MaxPaymentsPerBatch,
	}
	unsignedTxCreator := pipeline.NewUnsignedTxCreator(database, walletClient, cfg.WorkerInstanceID,
		workerSettings.UnsignedTxCreator.PollInterval(), workerSettings.UnsignedTxCreator.ClaimTimeout(),
		cfg.MaxRetries, cfg.MaxCycles)
	confirmationChecker := &pipeline.ConfirmationChecker{
		Store:             database,
		Node:              nodeClient,
		InstanceID:        cfg.WorkerInstanceID,
		PollInterval:      workerSettings.ConfirmationChecker.PollInterval(),
		ConfirmationDepth: cfg.ConfirmationDepth,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go batchCreator.Run(ctx)
	go unsignedTxCreator.Run(ctx)
	go confirmationChecker.Run(ctx)

	for i := 0; i < cfg.SignerConcurrency; i++ {
		signerWorker := pipeline.NewSignerWorker(database, signer, cfg.WorkerInstanceID,
			workerSettings.Signer.PollInterval(), workerSettings.Signer.ClaimTimeout(), cfg.MaxRetries)
		go signerWorker.Run(ctx)
	}

	broadcasterWorker := pipeline.NewBroadcasterWorker(database, nodeClient, cfg.WorkerInstanceID,
		workerSettings.Broadcaster.PollInterval(), workerSettings.Broadcaster.ClaimTimeout(), cfg.MaxRetries)
	go broadcasterWorker.Run(ctx)

	slog.Info("pipeline workers started", "signerConcurrency", cfg.SignerConcurrency)

	router := api.NewRouter(database, cfg)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    config.ServerReadTimeout,
		WriteTimeout:   config.ServerWriteTimeout,
		IdleTimeout:    config.ServerIdleTimeout,
		MaxHeaderBytes: config.ServerMaxHeaderBytes,
	}

	slog.Info("server configured",
		"readTimeout", config.ServerReadTimeout,
		"writeTimeout", config.ServerWriteTimeout,
		"idleTimeout", config.ServerIdleTimeout,
		"maxHeaderBytes", config.ServerMaxHeaderBytes,
	)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	cancel()
	slog.Info("pipeline workers stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
