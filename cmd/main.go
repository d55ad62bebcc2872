package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/qqdog1/ws/internal/config"
	"github.com/qqdog1/ws/internal/container"
	httpserver "github.com/qqdog1/ws/internal/presentation/http"
	"github.com/qqdog1/ws/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file, using process environment")
	}

	cfg := config.LoadConfig()

	logConfig := logger.DefaultLogConfig()
	if cfg.Logging.Level != "" {
		logConfig.Level = cfg.Logging.Level
	}
	if cfg.Logging.Format != "" {
		logConfig.Format = cfg.Logging.Format
	}
	logConfig.Dir = cfg.Logging.Dir
	logger.Configure(logConfig)
	logger.InitGlobalLogger()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Println("zap logger:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	c, err := container.NewContainer(ctx, cfg, zapLogger)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to build application")
	}
	defer c.Close()

	if err := c.Notifier.Notify(ctx, fmt.Sprintf("[%s] wallet server start", cfg.Ethereum.Chain)); err != nil {
		logger.GetLogger().WithError(err).Warn("Startup notification failed")
	}

	server := httpserver.NewServer(cfg, c.WalletService)
	if err := server.Start(); err != nil {
		logger.GetLogger().WithError(err).Error("Server stopped with error")
		c.Close()
		os.Exit(1)
	}
}
