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

// SubscriptionRegistry caches subscriptions by (object id, app key, api url),
// so an object keeps independent subscriptions per app and ledger environment.
type SubscriptionRegistry struct {
	store store.SubscriptionStore

	mu   sync.Mutex
	subs map[models.SubscriptionKey]models.Subscription
}

func NewSubscriptionRegistry(s store.SubscriptionStore) *SubscriptionRegistry {
	return &SubscriptionRegistry{
		store: s,
		subs:  make(map[models.SubscriptionKey]models.Subscription),
	}
}

// Init records a subscription the ledger has not issued an id for yet.
func (r *SubscriptionRegistry) Init(ctx context.Context, key models.SubscriptionKey, objectName, description string) (models.Subscription, error) {
	sub := models.Subscription{
		ObjectId:    key.ObjectId,
		AppKey:      key.AppKey,
		ApiUrl:      key.ApiUrl,
		ObjectName:  objectName,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.Store(ctx, sub); err != nil {
		return models.Subscription{}, err
	}

	zap.L().Info("Subscription initialized",
		zap.String("object_id", key.ObjectId.String()),
		zap.String("object_name", objectName))
	return sub, nil
}

// Store persists sub and then caches it.
func (r *SubscriptionRegistry) Store(ctx context.Context, sub models.Subscription) error {
	if err := r.store.StoreSubscription(ctx, sub); err != nil {
		return fmt.Errorf("unable to store subscription for object %s: %w", sub.ObjectId, err)
	}
	r.put(sub)
	return nil
}

// Get returns the subscription for key, or nil when none exists.
func (r *SubscriptionRegistry) Get(ctx context.Context, key models.SubscriptionKey) (*models.Subscription, error) {
	if sub, ok := r.cached(key); ok {
		return &sub, nil
	}

	subs, err := r.store.GetSubscriptions(ctx,
		[]string{store.FieldObjectId, store.FieldAppKey, store.FieldApiUrl},
		[]string{key.ObjectId.String(), key.AppKey, key.ApiUrl})
	if err != nil {
		return nil, fmt.Errorf("unable to load subscription for object %s: %w", key.ObjectId, err)
	}

	found, err := store.Unique(subs, "subscription", key.ObjectId.String())
	if err != nil {
		zap.L().Error("Subscription lookup returned duplicates",
			zap.String("object_id", key.ObjectId.String()),
			zap.String("app_key", key.AppKey),
			zap.String("api_url", key.ApiUrl),
			zap.Error(err))
		return nil, err
	}
	if found == nil {
		return nil, nil
	}

	r.put(*found)
	return found, nil
}

// GetBySubscriptionId resolves a ledger-issued subscription id. When both a
// cached and a stored copy exist the cached one wins; a disagreement between
// them is logged.
func (r *SubscriptionRegistry) GetBySubscriptionId(ctx context.Context, subscriptionId uuid.UUID, apiUrl string) (*models.Subscription, error) {
	id := subscriptionId.String()
	subs, err := r.store.GetSubscriptions(ctx,
		[]string{store.FieldSubscriptionId, store.FieldApiUrl},
		[]string{id, apiUrl})
	if err != nil {
		return nil, fmt.Errorf("unable to load subscription %s: %w", id, err)
	}

	found, err := store.Unique(subs, "subscription", id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		zap.L().Debug("No subscription matches id", zap.String("subscription_id", id), zap.String("api_url", apiUrl))
		return nil, nil
	}

	local, ok := r.putIfAbsent(*found)
	if !ok {
		return found, nil
	}
	if !local.Equal(*found) {
		zap.L().Warn("Cached subscription differs from stored copy",
			zap.String("subscription_id", id),
			zap.String("object_id", local.ObjectId.String()),
			zap.Bool("cached_enabled", local.Enabled),
			zap.Bool("stored_enabled", found.Enabled),
			zap.String("cached_subscription_id", local.SubscriptionId.String()))
	}
	return &local, nil
}

// ListForObject returns every subscription recorded for an object across app
// keys and ledger environments, with cached copies taking precedence.
func (r *SubscriptionRegistry) ListForObject(ctx context.Context, objectId uuid.UUID) ([]models.Subscription, error) {
	stored, err := r.store.GetSubscriptions(ctx, []string{store.FieldObjectId}, []string{objectId.String()})
	if err != nil {
		return nil, fmt.Errorf("unable to list subscriptions for object %s: %w", objectId, err)
	}

	cached := r.cachedForObject(objectId)

	seen := make(map[models.SubscriptionKey]bool, len(stored))
	result := make([]models.Subscription, 0, len(stored)+len(cached))
	for _, sub := range stored {
		key := sub.Key()
		if local, ok := cached[key]; ok {
			sub = local
		}
		seen[key] = true
		result = append(result, sub)
	}
	for key, sub := range cached {
		if !seen[key] {
			result = append(result, sub)
		}
	}

	zap.L().Debug("Listed subscriptions for object",
		zap.String("object_id", objectId.String()),
		zap.Int("stored", len(stored)),
		zap.Int("returned", len(result)))
	return result, nil
}

func (r *SubscriptionRegistry) cached(key models.SubscriptionKey) (models.Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[key]
	return sub, ok
}

func (r *SubscriptionRegistry) cachedForObject(objectId uuid.UUID) map[models.SubscriptionKey]models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[models.SubscriptionKey]models.Subscription)
	for key, sub := range r.subs {
		if key.ObjectId == objectId {
			out[key] = sub
		}
	}
	return out
}

func (r *SubscriptionRegistry) put(sub models.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[sub.Key()] = sub
}

// putIfAbsent caches sub unless the key is already present, in which case the
// existing entry is returned with ok set.
func (r *SubscriptionRegistry) putIfAbsent(sub models.Subscription) (models.Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.subs[sub.Key()]; ok {
		return existing, true
	}
	r.subs[sub.Key()] = sub
	return sub, false
}
