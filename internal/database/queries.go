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

package database

import (
	"fmt"
	"strings"

	"metaverse-ledger-go/internal/store"
)

// Statements accepted by both SQLite and Postgres.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ledger_users (
		principal_id TEXT PRIMARY KEY,
		ledger_id TEXT NOT NULL DEFAULT '',
		token TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_users_ledger_id ON ledger_users(ledger_id)`,

	`CREATE TABLE IF NOT EXISTS ledger_assets (
		transaction_id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		ghost BOOLEAN NOT NULL DEFAULT FALSE,
		part_id TEXT NOT NULL,
		part_name TEXT NOT NULL DEFAULT '',
		category_id TEXT NOT NULL,
		local_id BIGINT NOT NULL DEFAULT 0,
		sale_type INTEGER NOT NULL DEFAULT 0,
		sale_price BIGINT NOT NULL DEFAULT 0,
		buyer_ending_balance BIGINT NOT NULL DEFAULT -1,
		enacted BOOLEAN NOT NULL DEFAULT FALSE,
		consumed BOOLEAN NOT NULL DEFAULT FALSE,
		canceled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		enacted_at TIMESTAMP NULL,
		finished_at TIMESTAMP NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_assets_buyer ON ledger_assets(buyer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_assets_seller ON ledger_assets(seller_id)`,

	`CREATE TABLE IF NOT EXISTS ledger_subscriptions (
		object_id TEXT NOT NULL,
		app_key TEXT NOT NULL,
		api_url TEXT NOT NULL,
		subscription_id TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		object_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (object_id, app_key, api_url)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_subscriptions_sub_id ON ledger_subscriptions(subscription_id, api_url)`,

	`CREATE TABLE IF NOT EXISTS balance_snapshots (
		principal_id TEXT PRIMARY KEY,
		balance TEXT NOT NULL,
		source TEXT NOT NULL,
		transaction_id TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL
	)`,
}

const (
	// User queries
	userColumns = `principal_id, ledger_id, token`

	querySelectUsers = `
		SELECT ` + userColumns + `
		FROM ledger_users`

	queryUpsertUser = `
		INSERT INTO ledger_users (principal_id, ledger_id, token, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (principal_id) DO UPDATE SET
			ledger_id = excluded.ledger_id,
			token = excluded.token,
			updated_at = excluded.updated_at`

	// Asset queries
	assetColumns = `transaction_id, buyer_id, seller_id, ghost, part_id, part_name, category_id,
		local_id, sale_type, sale_price, buyer_ending_balance, enacted, consumed, canceled,
		created_at, enacted_at, finished_at`

	querySelectAssets = `
		SELECT ` + assetColumns + `
		FROM ledger_assets`

	queryUpsertAsset = `
		INSERT INTO ledger_assets (` + assetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (transaction_id) DO UPDATE SET
			buyer_ending_balance = excluded.buyer_ending_balance,
			enacted = excluded.enacted,
			consumed = excluded.consumed,
			canceled = excluded.canceled,
			enacted_at = excluded.enacted_at,
			finished_at = excluded.finished_at`

	// Subscription queries
	subscriptionColumns = `object_id, app_key, api_url, subscription_id, enabled, created_at, object_name, description`

	querySelectSubscriptions = `
		SELECT ` + subscriptionColumns + `
		FROM ledger_subscriptions`

	queryUpsertSubscription = `
		INSERT INTO ledger_subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (object_id, app_key, api_url) DO UPDATE SET
			subscription_id = excluded.subscription_id,
			enabled = excluded.enabled,
			object_name = excluded.object_name,
			description = excluded.description`

	// Balance queries
	queryUpsertBalance = `
		INSERT INTO balance_snapshots (principal_id, balance, source, transaction_id, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (principal_id) DO UPDATE SET
			balance = excluded.balance,
			source = excluded.source,
			transaction_id = excluded.transaction_id,
			updated_at = excluded.updated_at`

	queryGetBalance = `
		SELECT principal_id, balance, source, transaction_id, updated_at
		FROM balance_snapshots
		WHERE principal_id = ?`

	queryGetAllBalances = `
		SELECT principal_id, balance, source, transaction_id, updated_at
		FROM balance_snapshots
		ORDER BY principal_id`
)

// Lookup fields each table accepts, mapped to their columns.
var (
	userLookupColumns = map[string]string{
		store.FieldPrincipalId: "principal_id",
		store.FieldLedgerId:    "ledger_id",
	}

	assetLookupColumns = map[string]string{
		store.FieldTransactionId: "transaction_id",
		store.FieldBuyerId:       "buyer_id",
		store.FieldSellerId:      "seller_id",
	}

	subscriptionLookupColumns = map[string]string{
		store.FieldObjectId:       "object_id",
		store.FieldAppKey:         "app_key",
		store.FieldApiUrl:         "api_url",
		store.FieldSubscriptionId: "subscription_id",
	}
)

// buildLookup appends a WHERE clause for the given fields to a select query.
// Field names are resolved through the table's whitelist so no caller text
// reaches the SQL.
func buildLookup(base string, allowed map[string]string, fields, values []string, orderBy string) (string, []any, error) {
	if len(fields) != len(values) {
		return "", nil, fmt.Errorf("%w: %d fields, %d values", store.ErrFieldMismatch, len(fields), len(values))
	}
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: no lookup fields", store.ErrUnknownField)
	}

	clauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(values))
	for i, field := range fields {
		column, ok := allowed[field]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", store.ErrUnknownField, field)
		}
		clauses = append(clauses, column+" = ?")
		args = append(args, values[i])
	}

	query := base + "\n\t\tWHERE " + strings.Join(clauses, " AND ")
	if orderBy != "" {
		query += "\n\t\tORDER BY " + orderBy
	}
	return query, args, nil
}
