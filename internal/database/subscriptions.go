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
	"fmt"

	"metaverse-ledger-go/internal/models"

	"go.uber.org/zap"
)

func (s *Service) GetSubscriptions(ctx context.Context, fields, values []string) ([]models.Subscription, error) {
	zap.L().Debug("Querying subscriptions", zap.Strings("fields", fields), zap.Strings("values", values))

	query, args, err := buildLookup(querySelectSubscriptions, subscriptionLookupColumns, fields, values, "created_at")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		zap.L().Error("Failed to query subscriptions", zap.Strings("fields", fields), zap.Error(err))
		return nil, fmt.Errorf("unable to query subscriptions: %w", err)
	}
	defer closeRows(rows)

	var subs []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		err := rows.Scan(&sub.ObjectId, &sub.AppKey, &sub.ApiUrl, &sub.SubscriptionId,
			&sub.Enabled, &sub.CreatedAt, &sub.ObjectName, &sub.Description)
		if err != nil {
			zap.L().Error("Failed to scan subscription row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan subscription row: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during subscription row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}

	return subs, nil
}

func (s *Service) StoreSubscription(ctx context.Context, sub models.Subscription) error {
	zap.L().Debug("Storing subscription",
		zap.String("object_id", sub.ObjectId.String()),
		zap.String("app_key", sub.AppKey),
		zap.String("subscription_id", sub.SubscriptionId.String()))

	_, err := s.db.ExecContext(ctx, s.rebind(queryUpsertSubscription),
		sub.ObjectId, sub.AppKey, sub.ApiUrl, sub.SubscriptionId, sub.Enabled,
		sub.CreatedAt.UTC(), sub.ObjectName, sub.Description)
	if err != nil {
		zap.L().Error("Failed to store subscription",
			zap.String("object_id", sub.ObjectId.String()),
			zap.Error(err))
		return fmt.Errorf("unable to store subscription: %w", err)
	}
	return nil
}
