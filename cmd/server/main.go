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
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metaverse-ledger-go/internal/api"
	"metaverse-ledger-go/internal/common"
	"metaverse-ledger-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting ledger callback server")

	services, err := common.InitializeServices(ctx, cfg, common.Collaborators{})
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}

	router := api.NewServer(services.Machine, services.Engine, services.DbService, cfg.Server.PathPrefix, cfg.Server.HandlerTimeout)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("Listening for ledger callbacks",
			zap.String("addr", cfg.Server.Addr),
			zap.String("callback_base_url", cfg.Server.CallbackBaseURL),
			zap.String("path_prefix", cfg.Server.PathPrefix))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, stopping server...")
	case err := <-serverErr:
		zap.L().Error("Server stopped unexpectedly", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	}

	// Callbacks may have queued ledger requests; let them finish.
	services.Close(shutdownCtx)
	zap.L().Info("Server stopped")
}
