package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rewired-gh/bandarscope/internal/analysis"
	"github.com/rewired-gh/bandarscope/internal/config"
	"github.com/rewired-gh/bandarscope/internal/httpapi"
	"github.com/rewired-gh/bandarscope/internal/jobs"
	"github.com/rewired-gh/bandarscope/internal/logger"
	"github.com/rewired-gh/bandarscope/internal/stockbit"
	"github.com/rewired-gh/bandarscope/internal/storage"
	"github.com/rewired-gh/bandarscope/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	envPath    = flag.String("env", ".env", "Optional dotenv file loaded before the environment is read")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		log.Printf("Ignoring %s: %v", *envPath, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", *configPath)

	loc, err := cfg.Market.Location()
	if err != nil {
		logger.Fatal("Invalid market timezone: %v", err)
	}

	store, err := storage.New(cfg.Storage.MaxRecords, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	if cfg.Stockbit.Token == "" {
		logger.Warn("stockbit.token is empty; upstream requests will be unauthenticated")
	}
	feed := stockbit.NewClient(
		cfg.Stockbit.BaseURL,
		cfg.Stockbit.Token,
		cfg.Stockbit.Timeout,
		stockbit.ClientConfig{
			MaxRetries:      cfg.Stockbit.MaxRetries,
			RetryDelayBase:  cfg.Stockbit.RetryDelayBase,
			TransactionType: cfg.Stockbit.TransactionType,
			MarketBoard:     cfg.Stockbit.MarketBoard,
			InvestorType:    cfg.Stockbit.InvestorType,
			Limit:           cfg.Stockbit.Limit,
		},
	)

	queue := jobs.New(cfg.Jobs.Workers, cfg.Jobs.QueueSize, cfg.Jobs.Timeout)
	// drained after the HTTP server stops so accepted saves still land
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notifier analysis.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		telegramClient.ListenForCommands(ctx, store)
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	svc := analysis.New(feed, store, queue, notifier, analysis.Config{
		SummarySize: cfg.Stockbit.SummarySize,
		RotateEvery: cfg.Storage.RotateEvery,
		Location:    loc,
	})

	server := httpapi.NewServer(svc, store, httpapi.Config{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server failed: %v", err)
		cancel()
	}
	logger.Info("Service stopped")
}
