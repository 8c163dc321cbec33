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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"metaverse-ledger-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := getEnvDuration("LEDGER_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	handlerTimeout, err := getEnvDuration("SERVER_HANDLER_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	driver := getEnvString("DATABASE_DRIVER", "sqlite3")
	path := getEnvString("DATABASE_PATH", "ledger.db")
	if driver == "pgx" {
		path = getEnvString("DATABASE_URL", "")
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Driver:          driver,
			Path:            path,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Ledger: models.LedgerConfig{
			Environment:      getEnvString("LEDGER_ENVIRONMENT", ""),
			EnvironmentsFile: getEnvString("LEDGER_ENVIRONMENTS_FILE", "environments.yaml"),
			BaseURL:          getEnvString("LEDGER_BASE_URL", ""),
			AppKey:           getEnvString("LEDGER_APP_KEY", ""),
			AppKeyAlias:      getEnvString("LEDGER_APP_KEY_ALIAS", ""),
			AppSecret:        getEnvString("LEDGER_APP_SECRET", ""),
			RequestTimeout:   requestTimeout,
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8080"),
			CallbackBaseURL: getEnvString("CALLBACK_BASE_URL", "http://localhost:8080/"),
			PathPrefix:      getEnvString("CALLBACK_PATH_PREFIX", "/gloebit"),
			HandlerTimeout:  handlerTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
		Journal: models.JournalConfig{
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "metaverse-ledger"),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
