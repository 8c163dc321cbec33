package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"metaverse-ledger-go/internal/common"
	"metaverse-ledger-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	principalFlag := flag.String("principal", "", "Principal id to authorize (required)")
	purchaseFlag := flag.Bool("purchase", false, "Also print the currency purchase url")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	if *principalFlag == "" {
		logger.Fatal("-principal is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The console messenger prints the url instead of sending it in-world.
	services, err := common.InitializeServices(ctx, cfg, common.Collaborators{Messenger: common.NewConsoleMessenger(nil)})
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close(ctx)

	if _, err := services.Engine.Authorize(ctx, *principalFlag); err != nil {
		logger.Fatal("Failed to build authorize url", zap.Error(err))
	}

	if *purchaseFlag {
		fmt.Printf("\nBuy currency:\n%s\n", services.Engine.PurchaseURL(*principalFlag))
	}
}
