/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"metaverse-ledger-go/internal/common"
	"metaverse-ledger-go/internal/config"
	"metaverse-ledger-go/internal/models"

	"go.uber.org/zap"
)

func refreshBalance(ctx context.Context, services *common.Services, principalId string) {
	user, err := services.Identities.Get(ctx, principalId)
	if err != nil {
		zap.L().Error("Failed to look up user", zap.String("principal_id", principalId), zap.Error(err))
		return
	}
	if !user.Authorized() {
		fmt.Printf("%s has not authorized this application (run authorize first)\n", principalId)
		return
	}

	balance, err := services.Engine.BalanceSync(ctx, user)
	if err != nil {
		zap.L().Error("Failed to refresh balance", zap.String("principal_id", principalId), zap.Error(err))
		return
	}
	fmt.Printf("Ledger balance for %s: %s\n", principalId, balance.String())

	if services.Journal != nil {
		journaled, err := services.Journal.AccountBalance(ctx, principalId)
		if err != nil {
			zap.L().Warn("Failed to read journal balance", zap.String("principal_id", principalId), zap.Error(err))
			return
		}
		fmt.Printf("Journal net transfers for %s: %s\n", principalId, journaled.String())
	}
}

func main() {
	principalFlag := flag.String("principal", "", "Only show this principal id (optional)")
	refreshFlag := flag.Bool("refresh", false, "Fetch a fresh balance from the ledger first (requires -principal)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("Starting balance query")

	if *refreshFlag {
		if *principalFlag == "" {
			logger.Fatal("-refresh requires -principal")
		}
		services, err := common.InitializeServices(ctx, cfg, common.Collaborators{})
		if err != nil {
			logger.Fatal("Failed to initialize services", zap.Error(err))
		}
		refreshBalance(ctx, services, *principalFlag)
		services.Close(ctx)
	}

	// Read-only from here on; the snapshot table is enough.
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	var snapshots []models.BalanceSnapshot
	if *principalFlag != "" {
		snapshot, err := dbService.GetBalance(ctx, *principalFlag)
		if err != nil {
			logger.Fatal("Failed to get balance", zap.Error(err))
		}
		if snapshot != nil {
			snapshots = append(snapshots, *snapshot)
		}
	} else {
		snapshots, err = dbService.GetBalances(ctx)
		if err != nil {
			logger.Fatal("Failed to get balances", zap.Error(err))
		}
	}

	common.PrintHeader("CACHED LEDGER BALANCES", common.WideWidth)
	fmt.Printf("%-40s %14s  %-13s %s\n", "PRINCIPAL", "BALANCE", "SOURCE", "UPDATED")
	common.PrintSeparator("-", common.WideWidth)
	for _, snapshot := range snapshots {
		fmt.Println(common.BalanceLine(snapshot))
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d balances", len(snapshots)), common.WideWidth)

	logger.Info("Balance query completed", zap.Int("balances", len(snapshots)))
}
