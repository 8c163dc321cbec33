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

package registry

import (
	"context"
	"fmt"
	"sync"

	"metaverse-ledger-go/internal/models"
	"metaverse-ledger-go/internal/store"

	"go.uber.org/zap"
)

// IdentityCache maps platform principals to their ledger access tokens.
// Only authorized users are cached; everything else is read through to the store.
type IdentityCache struct {
	store store.UserStore

	mu    sync.Mutex
	users map[string]models.User
}

func NewIdentityCache(s store.UserStore) *IdentityCache {
	return &IdentityCache{
		store: s,
		users: make(map[string]models.User),
	}
}

// Get returns the user for principalId. A principal the store has never seen
// comes back unauthorized and is not persisted until a token is issued.
func (c *IdentityCache) Get(ctx context.Context, principalId string) (models.User, error) {
	if user, ok := c.cached(principalId); ok {
		return user, nil
	}

	users, err := c.store.GetUsers(ctx, store.FieldPrincipalId, principalId)
	if err != nil {
		return models.User{}, fmt.Errorf("unable to load user %s: %w", principalId, err)
	}

	found, err := store.Unique(users, "user", principalId)
	if err != nil {
		zap.L().Error("Identity lookup returned duplicate users",
			zap.String("principal_id", principalId),
			zap.Error(err))
		return models.User{}, err
	}

	if found == nil {
		zap.L().Debug("No prior token for principal", zap.String("principal_id", principalId))
		return models.User{PrincipalId: principalId}, nil
	}

	zap.L().Debug("Found stored user",
		zap.String("principal_id", principalId),
		zap.Bool("authorized", found.Authorized()))

	if found.Authorized() {
		c.put(*found)
	}
	return *found, nil
}

// Init records a freshly issued token and persists the user.
func (c *IdentityCache) Init(ctx context.Context, principalId, token string) (models.User, error) {
	user := models.User{PrincipalId: principalId, Token: token}

	if existing, err := c.Get(ctx, principalId); err == nil {
		user.LedgerId = existing.LedgerId
	}

	if err := c.store.StoreUser(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("unable to store user %s: %w", principalId, err)
	}

	c.put(user)

	zap.L().Info("Ledger token issued", zap.String("principal_id", principalId))
	return user, nil
}

// Invalidate clears a token the ledger no longer recognizes, forcing the
// principal through authorization again. Users without a token are left alone.
func (c *IdentityCache) Invalidate(ctx context.Context, user models.User) error {
	zap.L().Info("Invalidating ledger token",
		zap.String("principal_id", user.PrincipalId),
		zap.Bool("had_token", user.Authorized()))

	if !user.Authorized() {
		return nil
	}

	c.evict(user.PrincipalId)

	user.Token = ""
	if err := c.store.StoreUser(ctx, user); err != nil {
		return fmt.Errorf("unable to persist invalidated user %s: %w", user.PrincipalId, err)
	}
	return nil
}

func (c *IdentityCache) cached(principalId string) (models.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.users[principalId]
	return user, ok
}

func (c *IdentityCache) put(user models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.users[user.PrincipalId] = user
}

func (c *IdentityCache) evict(principalId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.users, principalId)
}
