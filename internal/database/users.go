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
	"time"

	"metaverse-ledger-go/internal/models"

	"go.uber.org/zap"
)

func (s *Service) GetUsers(ctx context.Context, field, value string) ([]models.User, error) {
	zap.L().Debug("Querying users", zap.String("field", field), zap.String("value", value))

	query, args, err := buildLookup(querySelectUsers, userLookupColumns, []string{field}, []string{value}, "principal_id")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		zap.L().Error("Failed to query users", zap.String("field", field), zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.PrincipalId, &user.LedgerId, &user.Token); err != nil {
			zap.L().Error("Failed to scan user row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, user)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	zap.L().Debug("Retrieved users", zap.String("field", field), zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) StoreUser(ctx context.Context, user models.User) error {
	zap.L().Debug("Storing user",
		zap.String("principal_id", user.PrincipalId),
		zap.Bool("has_token", user.Authorized()))

	_, err := s.db.ExecContext(ctx, s.rebind(queryUpsertUser),
		user.PrincipalId, user.LedgerId, user.Token, time.Now().UTC())
	if err != nil {
		zap.L().Error("Failed to store user", zap.String("principal_id", user.PrincipalId), zap.Error(err))
		return fmt.Errorf("unable to store user: %w", err)
	}
	return nil
}
