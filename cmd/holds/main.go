package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"metaverse-ledger-go/internal/common"
	"metaverse-ledger-go/internal/config"
	"metaverse-ledger-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	idFlag := flag.String("id", "", "Transaction id of a single hold")
	buyerFlag := flag.String("buyer", "", "List every hold for this buyer principal id")
	sellerFlag := flag.String("seller", "", "List every hold for this seller principal id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	var field, value string
	switch {
	case *idFlag != "":
		field, value = store.FieldTransactionId, *idFlag
	case *buyerFlag != "":
		field, value = store.FieldBuyerId, *buyerFlag
	case *sellerFlag != "":
		field, value = store.FieldSellerId, *sellerFlag
	default:
		logger.Fatal("one of -id, -buyer or -seller is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	assets, err := dbService.GetAssets(ctx, field, value)
	if err != nil {
		logger.Fatal("Failed to get holds", zap.String("field", field), zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("HOLDS (%s = %s)", field, value), common.DefaultWidth)
	for i, asset := range assets {
		for _, line := range common.HoldLines(asset, i == len(assets)-1) {
			fmt.Println(line)
		}
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d holds", len(assets)), common.DefaultWidth)
}
