package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/trading_simulator/config"
	"github.com/KotFed0t/trading_simulator/data"
	"github.com/KotFed0t/trading_simulator/data/cache"
	"github.com/KotFed0t/trading_simulator/data/repository/memory"
	"github.com/KotFed0t/trading_simulator/data/repository/postgres"
	"github.com/KotFed0t/trading_simulator/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/trading_simulator/internal/externalApi/moexApi"
	"github.com/KotFed0t/trading_simulator/internal/reportGenerator/xlsxGenerator"
	"github.com/KotFed0t/trading_simulator/internal/scheduler"
	"github.com/KotFed0t/trading_simulator/internal/service/priceService"
	"github.com/KotFed0t/trading_simulator/internal/service/reportService"
	"github.com/KotFed0t/trading_simulator/internal/service/simulationService"
	"github.com/KotFed0t/trading_simulator/internal/service/tradingService"
	"github.com/KotFed0t/trading_simulator/internal/tgbot"
	"github.com/KotFed0t/trading_simulator/internal/transport/telegram"
)

type store interface {
	tradingService.Repository
	priceService.Repository
	reportService.Repository
	simulationService.Repository
}

type reportCache interface {
	reportService.Cache
	priceService.Cache
	tradingService.Cache
}

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repo store
	switch cfg.Storage {
	case config.StorageMemory:
		slog.Warn("using in-memory storage, state is lost on exit")
		repo = memory.New()
	default:
		pgClient := data.NewPostgresClient(cfg)
		defer pgClient.Close()
		repo = postgres.NewPostgres(pgClient)
	}

	var boards reportCache
	if redisClient := data.NewRedisClient(ctx, cfg); redisClient != nil {
		defer redisClient.Close()
		boards = cache.NewRedisCache(redisClient, cfg.Cache.ReportExpiration)
	}

	var quotes simulationService.QuoteProvider
	if cfg.API.MoexApi.Url != "" {
		quotes = moexApi.New(cfg)
	}

	var storage reportService.CloudStorage
	driveApi := googleDriveApi.New(ctx, cfg.GoogleDrive)
	if driveApi != nil {
		storage = driveApi
	}

	var rnd *rand.Rand
	if cfg.Simulation.Seed != 0 {
		rnd = rand.New(rand.NewPCG(cfg.Simulation.Seed, cfg.Simulation.Seed))
	}

	sched := scheduler.New()

	tradingSrv := tradingService.New(repo, tradingService.WithCache(boards))
	priceSrv := priceService.New(repo, boards)
	reportSrv := reportService.New(repo, boards, xlsxGenerator.New(), storage, cfg.Telegram.FileLimitInBytes)
	simulationSrv := simulationService.New(tradingSrv, repo, quotes, sched, rnd)

	sched.NewIntervalJob("update stock prices", priceSrv.UpdateStockPrices, cfg.Jobs.PriceUpdateInterval, false)
	if driveApi != nil {
		sched.NewCrontabJob("delete old drive files", driveApi.DeleteOldFiles, cfg.Jobs.DriveCleanupCrontab, false)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Telegram.Token != "" {
		tgController := telegram.NewController(tradingSrv, reportSrv, simulationSrv)

		tgBot := tgbot.New(cfg, tgController)
		tgBot.Start()
		defer tgBot.Stop()
	} else {
		slog.Info("TELEGRAM_TOKEN is empty, bot disabled")
	}

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
