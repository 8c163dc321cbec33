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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"metaverse-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StoreBalance records the latest ledger-reported balance for a user
func (s *Service) StoreBalance(ctx context.Context, snapshot models.BalanceSnapshot) error {
	if snapshot.UpdatedAt.IsZero() {
		snapshot.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(queryUpsertBalance),
		snapshot.PrincipalId, snapshot.Balance.String(), snapshot.Source,
		snapshot.TransactionId, snapshot.UpdatedAt.UTC())
	if err != nil {
		zap.L().Error("Failed to store balance",
			zap.String("principal_id", snapshot.PrincipalId),
			zap.Error(err))
		return fmt.Errorf("failed to store balance: %w", err)
	}

	zap.L().Debug("Stored balance",
		zap.String("principal_id", snapshot.PrincipalId),
		zap.String("balance", snapshot.Balance.String()),
		zap.String("source", snapshot.Source))
	return nil
}

// GetBalance returns the cached balance for a user, or nil if none was recorded
func (s *Service) GetBalance(ctx context.Context, principalId string) (*models.BalanceSnapshot, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(queryGetBalance), principalId)

	snapshot, err := scanBalance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		// No snapshot means the ledger has not reported a balance yet
		return nil, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("principal_id", principalId), zap.Error(err))
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &snapshot, nil
}

// GetBalances returns every cached balance ordered by principal id
func (s *Service) GetBalances(ctx context.Context) ([]models.BalanceSnapshot, error) {
	zap.L().Debug("Getting all balances")

	rows, err := s.db.QueryContext(ctx, queryGetAllBalances)
	if err != nil {
		zap.L().Error("Failed to get all balances", zap.Error(err))
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer closeRows(rows)

	var balances []models.BalanceSnapshot
	for rows.Next() {
		snapshot, err := scanBalance(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, snapshot)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	zap.L().Debug("Retrieved all balances", zap.Int("count", len(balances)))
	return balances, nil
}

func scanBalance(scan func(dest ...any) error) (models.BalanceSnapshot, error) {
	var snapshot models.BalanceSnapshot
	var balanceStr string
	if err := scan(&snapshot.PrincipalId, &balanceStr, &snapshot.Source,
		&snapshot.TransactionId, &snapshot.UpdatedAt); err != nil {
		return models.BalanceSnapshot{}, err
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return models.BalanceSnapshot{}, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
	}
	snapshot.Balance = balance
	return snapshot, nil
}
