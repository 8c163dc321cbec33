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

	"go.uber.org/zap"
)

func main() {
	environmentsFlag := flag.String("environments", "", "Path to the ledger environments file (default: LEDGER_ENVIRONMENTS_FILE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *environmentsFlag != "" {
		cfg.Ledger.EnvironmentsFile = *environmentsFlag
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	common.PrintHeader("LEDGER SETUP", common.DefaultWidth)

	// Opening the store creates the schema.
	zap.L().Info("Initializing database", zap.String("driver", cfg.Database.Driver))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	if err := dbService.Ping(ctx); err != nil {
		zap.L().Fatal("Database is not reachable", zap.Error(err))
	}
	fmt.Printf("✓ Database ready (%s)\n", cfg.Database.Driver)

	environments, err := common.LoadLedgerEnvironments(cfg.Ledger.EnvironmentsFile)
	if err != nil {
		zap.L().Warn("Unable to load ledger environments", zap.String("file", cfg.Ledger.EnvironmentsFile), zap.Error(err))
	} else {
		fmt.Printf("✓ %d ledger environments in %s\n", len(environments), cfg.Ledger.EnvironmentsFile)
		for i, env := range environments {
			fmt.Printf("%s%-12s %s\n", common.BoxPrefix(i == len(environments)-1), env.Name, env.BaseURL)
		}
	}

	baseURL, err := common.ResolveLedgerBaseURL(cfg.Ledger)
	if err != nil {
		zap.L().Fatal("Unable to resolve ledger base url", zap.Error(err))
	}
	fmt.Printf("✓ Ledger base url: %s\n", baseURL)

	if cfg.Ledger.AppKey == "" || cfg.Ledger.AppSecret == "" {
		zap.L().Warn("LEDGER_APP_KEY and LEDGER_APP_SECRET are required to talk to the ledger")
	} else {
		fmt.Println("✓ Application credentials present")
	}

	if cfg.Journal.Enabled() {
		fmt.Printf("✓ Settlement journal: %s (ledger %s)\n", cfg.Journal.StackURL, cfg.Journal.LedgerName)
	} else {
		fmt.Println("- Settlement journal disabled (FORMANCE_STACK_URL not set)")
	}

	common.PrintFooter("Setup complete", common.DefaultWidth)
}
