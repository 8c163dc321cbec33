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
	"time"

	"metaverse-ledger-go/internal/models"
	"metaverse-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const guardRetryInterval = 10 * time.Millisecond

// HoldRegistry tracks active (non-terminal) holds and the set of holds with a
// state transition in progress. Terminal holds live only in the store.
type HoldRegistry struct {
	store store.AssetStore

	mu     sync.Mutex
	active map[uuid.UUID]models.Asset

	pendingMu sync.Mutex
	pending   map[uuid.UUID]struct{}
}

func NewHoldRegistry(s store.AssetStore) *HoldRegistry {
	return &HoldRegistry{
		store:   s,
		active:  make(map[uuid.UUID]models.Asset),
		pending: make(map[uuid.UUID]struct{}),
	}
}

// Init persists a new hold and makes it active.
func (r *HoldRegistry) Init(ctx context.Context, asset models.Asset) (models.Asset, error) {
	if asset.TransactionId == uuid.Nil {
		return models.Asset{}, fmt.Errorf("hold requires a transaction id")
	}

	if err := r.store.StoreAsset(ctx, asset); err != nil {
		return models.Asset{}, fmt.Errorf("unable to store hold %s: %w", asset.TransactionId, err)
	}
	r.put(asset)

	zap.L().Info("Hold created",
		zap.String("transaction_id", asset.TransactionId.String()),
		zap.String("buyer_id", asset.BuyerId),
		zap.String("seller_id", asset.SellerId),
		zap.Bool("ghost", asset.Ghost),
		zap.Int("sale_type", asset.SaleType))
	return asset, nil
}

// Get returns a copy of the hold, from the cache or else from the store. A
// store read is never cached here: without the transition guard the row may
// already be stale. A nil result means no such hold.
func (r *HoldRegistry) Get(ctx context.Context, transactionId uuid.UUID) (*models.Asset, error) {
	if asset, ok := r.cached(transactionId); ok {
		return &asset, nil
	}
	return r.fromStore(ctx, transactionId)
}

// Load reads the hold straight from the store and refreshes the cache with
// it. The caller must hold the transition guard for transactionId, so no
// commit can land between the read and the refresh.
func (r *HoldRegistry) Load(ctx context.Context, transactionId uuid.UUID) (*models.Asset, error) {
	found, err := r.fromStore(ctx, transactionId)
	if err != nil {
		return nil, err
	}

	if found == nil || found.Terminal() {
		r.Evict(transactionId)
	} else {
		r.put(*found)
	}
	return found, nil
}

func (r *HoldRegistry) fromStore(ctx context.Context, transactionId uuid.UUID) (*models.Asset, error) {
	id := transactionId.String()
	assets, err := r.store.GetAssets(ctx, store.FieldTransactionId, id)
	if err != nil {
		return nil, fmt.Errorf("unable to load hold %s: %w", id, err)
	}

	found, err := store.Unique(assets, "hold", id)
	if err != nil {
		zap.L().Error("Hold lookup returned duplicates", zap.String("transaction_id", id), zap.Error(err))
		return nil, err
	}
	if found == nil {
		zap.L().Debug("No hold matches transaction", zap.String("transaction_id", id))
	}
	return found, nil
}

// Commit persists the hold and then publishes it: active holds replace the
// cached copy, terminal holds are retired from the cache. On a store error the
// cache is left untouched.
func (r *HoldRegistry) Commit(ctx context.Context, asset models.Asset) error {
	if err := r.store.StoreAsset(ctx, asset); err != nil {
		return fmt.Errorf("unable to store hold %s: %w", asset.TransactionId, err)
	}

	if asset.Terminal() {
		r.Evict(asset.TransactionId)
	} else {
		r.put(asset)
	}
	return nil
}

// RecordEndingBalance stores the buyer balance the ledger reported once the
// transfer for this hold succeeded. It takes the transition guard so a
// concurrent enact or consume cannot be overwritten with a stale copy.
func (r *HoldRegistry) RecordEndingBalance(ctx context.Context, transactionId uuid.UUID, balance int64) error {
	for !r.TryBegin(transactionId) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("unable to record ending balance for %s: %w", transactionId, ctx.Err())
		case <-time.After(guardRetryInterval):
		}
	}
	defer r.Finish(transactionId)

	asset, err := r.Load(ctx, transactionId)
	if err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("%w: %s", store.ErrHoldNotFound, transactionId)
	}

	asset.BuyerEndingBalance = balance
	return r.Commit(ctx, *asset)
}

func (r *HoldRegistry) Evict(transactionId uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.active, transactionId)
}

// Active returns the number of cached, non-terminal holds.
func (r *HoldRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.active)
}

// TryBegin marks a transition as in progress. It returns false when another
// transition already holds the id.
func (r *HoldRegistry) TryBegin(transactionId uuid.UUID) bool {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()

	if _, busy := r.pending[transactionId]; busy {
		return false
	}
	r.pending[transactionId] = struct{}{}
	return true
}

// Finish releases a transition started with TryBegin.
func (r *HoldRegistry) Finish(transactionId uuid.UUID) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()

	delete(r.pending, transactionId)
}

func (r *HoldRegistry) cached(transactionId uuid.UUID) (models.Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, ok := r.active[transactionId]
	return asset, ok
}

func (r *HoldRegistry) put(asset models.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[asset.TransactionId] = asset
}
