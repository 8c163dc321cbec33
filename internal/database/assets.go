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
	"fmt"

	"metaverse-ledger-go/internal/models"

	"go.uber.org/zap"
)

func (s *Service) GetAssets(ctx context.Context, field, value string) ([]models.Asset, error) {
	zap.L().Debug("Querying holds", zap.String("field", field), zap.String("value", value))

	query, args, err := buildLookup(querySelectAssets, assetLookupColumns, []string{field}, []string{value}, "created_at")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		zap.L().Error("Failed to query holds", zap.String("field", field), zap.Error(err))
		return nil, fmt.Errorf("unable to query holds: %w", err)
	}
	defer closeRows(rows)

	var assets []models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			zap.L().Error("Failed to scan hold row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan hold row: %w", err)
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during hold row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating hold rows: %w", err)
	}

	zap.L().Debug("Retrieved holds", zap.String("field", field), zap.Int("count", len(assets)))
	return assets, nil
}

// StoreAsset upserts a hold. Only the mutable columns change on conflict;
// the delivered-item descriptor is fixed at creation.
func (s *Service) StoreAsset(ctx context.Context, asset models.Asset) error {
	zap.L().Debug("Storing hold",
		zap.String("transaction_id", asset.TransactionId.String()),
		zap.String("state", asset.State()))

	_, err := s.db.ExecContext(ctx, s.rebind(queryUpsertAsset),
		asset.TransactionId, asset.BuyerId, asset.SellerId, asset.Ghost,
		asset.PartId, asset.PartName, asset.CategoryId,
		int64(asset.LocalId), asset.SaleType, asset.SalePrice, asset.BuyerEndingBalance,
		asset.Enacted, asset.Consumed, asset.Canceled,
		asset.CreatedAt.UTC(), asset.EnactedAt, asset.FinishedAt)
	if err != nil {
		zap.L().Error("Failed to store hold",
			zap.String("transaction_id", asset.TransactionId.String()),
			zap.Error(err))
		return fmt.Errorf("unable to store hold: %w", err)
	}
	return nil
}

func scanAsset(rows *sql.Rows) (models.Asset, error) {
	var (
		asset      models.Asset
		localId    int64
		enactedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	err := rows.Scan(
		&asset.TransactionId, &asset.BuyerId, &asset.SellerId, &asset.Ghost,
		&asset.PartId, &asset.PartName, &asset.CategoryId,
		&localId, &asset.SaleType, &asset.SalePrice, &asset.BuyerEndingBalance,
		&asset.Enacted, &asset.Consumed, &asset.Canceled,
		&asset.CreatedAt, &enactedAt, &finishedAt)
	if err != nil {
		return models.Asset{}, err
	}

	asset.LocalId = uint32(localId)
	if enactedAt.Valid {
		t := enactedAt.Time
		asset.EnactedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		asset.FinishedAt = &t
	}
	return asset, nil
}
