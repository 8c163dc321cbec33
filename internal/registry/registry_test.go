package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"metaverse-ledger-go/internal/database"
	"metaverse-ledger-go/internal/models"
	"metaverse-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupTestDb(t *testing.T) *database.Service {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

type mockAssetStore struct {
	mock.Mock
}

func (m *mockAssetStore) GetAssets(ctx context.Context, field, value string) ([]models.Asset, error) {
	args := m.Called(ctx, field, value)
	assets, _ := args.Get(0).([]models.Asset)
	return assets, args.Error(1)
}

func (m *mockAssetStore) StoreAsset(ctx context.Context, asset models.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) GetUsers(ctx context.Context, field, value string) ([]models.User, error) {
	args := m.Called(ctx, field, value)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUserStore) StoreUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func TestIdentityCache_UnknownPrincipalIsUnauthorized(t *testing.T) {
	db := setupTestDb(t)
	cache := NewIdentityCache(db)

	user, err := cache.Get(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", user.PrincipalId)
	assert.False(t, user.Authorized())

	stored, err := db.GetUsers(context.Background(), store.FieldPrincipalId, "agent-1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestIdentityCache_InitAndInvalidate(t *testing.T) {
	ctx := context.Background()
	db := setupTestDb(t)
	cache := NewIdentityCache(db)

	user, err := cache.Init(ctx, "agent-1", "tok-1")
	require.NoError(t, err)
	assert.True(t, user.Authorized())

	got, err := cache.Get(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.Token)

	// A fresh cache reads the token back from the store.
	reloaded, err := NewIdentityCache(db).Get(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", reloaded.Token)

	require.NoError(t, cache.Invalidate(ctx, got))

	after, err := cache.Get(ctx, "agent-1")
	require.NoError(t, err)
	assert.False(t, after.Authorized())
}

func TestIdentityCache_InvalidateWithoutTokenIsNoop(t *testing.T) {
	users := &mockUserStore{}
	cache := NewIdentityCache(users)

	require.NoError(t, cache.Invalidate(context.Background(), models.User{PrincipalId: "agent-1"}))
	users.AssertNotCalled(t, "StoreUser", mock.Anything, mock.Anything)
}

func TestIdentityCache_DuplicateUsers(t *testing.T) {
	users := &mockUserStore{}
	users.On("GetUsers", mock.Anything, store.FieldPrincipalId, "agent-1").
		Return([]models.User{{PrincipalId: "agent-1"}, {PrincipalId: "agent-1"}}, nil)

	_, err := NewIdentityCache(users).Get(context.Background(), "agent-1")
	assert.ErrorIs(t, err, store.ErrDuplicateRecord)
}

func TestHoldRegistry_GetFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDb(t)

	asset := models.NewAsset(uuid.New(), "buyer", "seller")
	require.NoError(t, db.StoreAsset(ctx, asset))

	holds := NewHoldRegistry(db)
	assert.Equal(t, 0, holds.Active())

	got, err := holds.Get(ctx, asset.TransactionId)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "buyer", got.BuyerId)
	assert.Equal(t, 0, holds.Active(), "unguarded reads are not cached")

	missing, err := holds.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestHoldRegistry_LoadRefreshesCacheFromStore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDb(t)
	holds := NewHoldRegistry(db)

	asset, err := holds.Init(ctx, models.NewAsset(uuid.New(), "buyer", "seller"))
	require.NoError(t, err)

	// The store moves on without the cache seeing it.
	consumed := asset
	consumed.Enacted = true
	consumed.Consumed = true
	require.NoError(t, db.StoreAsset(ctx, consumed))

	cached, err := holds.Get(ctx, asset.TransactionId)
	require.NoError(t, err)
	assert.False(t, cached.Consumed)

	loaded, err := holds.Load(ctx, asset.TransactionId)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.Consumed)
	assert.Equal(t, 0, holds.Active(), "terminal rows are evicted")

	active, err := holds.Init(ctx, models.NewAsset(uuid.New(), "buyer", "seller"))
	require.NoError(t, err)
	holds.Evict(active.TransactionId)
	_, err = holds.Load(ctx, active.TransactionId)
	require.NoError(t, err)
	assert.Equal(t, 1, holds.Active())

	missing, err := holds.Load(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestHoldRegistry_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	holds := NewHoldRegistry(setupTestDb(t))

	asset, err := holds.Init(ctx, models.NewAsset(uuid.New(), "buyer", "seller"))
	require.NoError(t, err)

	got, err := holds.Get(ctx, asset.TransactionId)
	require.NoError(t, err)
	got.Enacted = true

	again, err := holds.Get(ctx, asset.TransactionId)
	require.NoError(t, err)
	assert.False(t, again.Enacted)
}

func TestHoldRegistry_CommitTerminalEvicts(t *testing.T) {
	ctx := context.Background()
	db := setupTestDb(t)
	holds := NewHoldRegistry(db)

	asset, err := holds.Init(ctx, models.NewAsset(uuid.New(), "buyer", "seller"))
	require.NoError(t, err)
	assert.Equal(t, 1, holds.Active())

	asset.Enacted = true
	asset.Consumed = true
	require.NoError(t, holds.Commit(ctx, asset))
	assert.Equal(t, 0, holds.Active())

	// Terminal holds are still readable from the store but are not re-cached.
	got, err := holds.Get(ctx, asset.TransactionId)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Consumed)
	assert.Equal(t, 0, holds.Active())
}

func TestHoldRegistry_CommitFailureLeavesCache(t *testing.T) {
	ctx := context.Background()
	assets := &mockAssetStore{}
	holds := NewHoldRegistry(assets)

	asset := models.NewAsset(uuid.New(), "buyer", "seller")
	assets.On("StoreAsset", mock.Anything, asset).Return(nil).Once()
	_, err := holds.Init(ctx, asset)
	require.NoError(t, err)

	changed := asset
	changed.Enacted = true
	assets.On("StoreAsset", mock.Anything, changed).Return(errors.New("disk full")).Once()
	assert.Error(t, holds.Commit(ctx, changed))

	got, err := holds.Get(ctx, asset.TransactionId)
	require.NoError(t, err)
	assert.False(t, got.Enacted)
	assets.AssertExpectations(t)
}

func TestHoldRegistry_RecordEndingBalance(t *testing.T) {
	ctx := context.Background()
	db := setupTestDb(t)
	holds := NewHoldRegistry(db)

	asset, err := holds.Init(ctx, models.NewAsset(uuid.New(), "buyer", "seller"))
	require.NoError(t, err)

	require.NoError(t, holds.RecordEndingBalance(ctx, asset.TransactionId, 450))

	stored, err := db.GetAssets(ctx, store.FieldTransactionId, asset.TransactionId.String())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(450), stored[0].BuyerEndingBalance)

	err = holds.RecordEndingBalance(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, store.ErrHoldNotFound)
}

func TestHoldRegistry_RecordEndingBalanceWaitsForGuard(t *testing.T) {
	db := setupTestDb(t)
	holds := NewHoldRegistry(db)

	asset, err := holds.Init(context.Background(), models.NewAsset(uuid.New(), "buyer", "seller"))
	require.NoError(t, err)
	require.True(t, holds.TryBegin(asset.TransactionId))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = holds.RecordEndingBalance(ctx, asset.TransactionId, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	holds.Finish(asset.TransactionId)
	require.NoError(t, holds.RecordEndingBalance(context.Background(), asset.TransactionId, 10))
	assert.True(t, holds.TryBegin(asset.TransactionId), "guard released after recording")
}

func TestHoldRegistry_PendingSet(t *testing.T) {
	holds := NewHoldRegistry(&mockAssetStore{})
	id := uuid.New()

	assert.True(t, holds.TryBegin(id))
	assert.False(t, holds.TryBegin(id))
	assert.True(t, holds.TryBegin(uuid.New()))

	holds.Finish(id)
	assert.True(t, holds.TryBegin(id))
}

func TestSubscriptionRegistry_InitAndGet(t *testing.T) {
	ctx := context.Background()
	db := setupTestDb(t)
	subs := NewSubscriptionRegistry(db)

	key := models.SubscriptionKey{ObjectId: uuid.New(), AppKey: "app", ApiUrl: "https://ledger.example.com/"}
	sub, err := subs.Init(ctx, key, "Tip Jar", "tips")
	require.NoError(t, err)
	assert.False(t, sub.Established())

	// Same object under another app key is a distinct subscription.
	other, err := subs.Get(ctx, models.SubscriptionKey{ObjectId: key.ObjectId, AppKey: "other", ApiUrl: key.ApiUrl})
	require.NoError(t, err)
	assert.Nil(t, other)

	reloaded, err := NewSubscriptionRegistry(db).Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, "Tip Jar", reloaded.ObjectName)
}

func TestSubscription_EqualIgnoresCreatedAt(t *testing.T) {
	base := models.Subscription{
		ObjectId:       uuid.New(),
		AppKey:         "app-key",
		ApiUrl:         "https://sandbox.example.com/",
		SubscriptionId: uuid.New(),
		Enabled:        true,
		CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC),
		ObjectName:     "Vendor",
		Description:    "monthly rent",
	}

	restored := base
	restored.CreatedAt = base.CreatedAt.Truncate(time.Second)
	assert.True(t, base.Equal(restored))
	assert.True(t, restored.Equal(base))

	changes := map[string]func(*models.Subscription){
		"enabled":         func(s *models.Subscription) { s.Enabled = false },
		"subscription id": func(s *models.Subscription) { s.SubscriptionId = uuid.New() },
		"object name":     func(s *models.Subscription) { s.ObjectName = "Other" },
		"description":     func(s *models.Subscription) { s.Description = "weekly rent" },
		"api url":         func(s *models.Subscription) { s.ApiUrl = "https://www.example.com/" },
	}
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			other := restored
			change(&other)
			assert.False(t, base.Equal(other))
		})
	}
}

func TestSubscriptionRegistry_GetBySubscriptionIdPrefersCache(t *testing.T) {
	ctx := context.Background()
	db := setupTestDb(t)
	subs := NewSubscriptionRegistry(db)

	key := models.SubscriptionKey{ObjectId: uuid.New(), AppKey: "app", ApiUrl: "https://ledger.example.com/"}
	sub, err := subs.Init(ctx, key, "Tip Jar", "tips")
	require.NoError(t, err)

	sub.SubscriptionId = uuid.New()
	sub.Enabled = true
	require.NoError(t, subs.Store(ctx, sub))

	// Diverge the stored copy behind the registry's back.
	stale := sub
	stale.Enabled = false
	require.NoError(t, db.StoreSubscription(ctx, stale))

	got, err := subs.GetBySubscriptionId(ctx, sub.SubscriptionId, key.ApiUrl)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Enabled)

	fresh, err := NewSubscriptionRegistry(db).GetBySubscriptionId(ctx, sub.SubscriptionId, key.ApiUrl)
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.False(t, fresh.Enabled)

	none, err := subs.GetBySubscriptionId(ctx, uuid.New(), key.ApiUrl)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSubscriptionRegistry_ListForObject(t *testing.T) {
	ctx := context.Background()
	db := setupTestDb(t)
	subs := NewSubscriptionRegistry(db)

	objectId := uuid.New()
	_, err := subs.Init(ctx, models.SubscriptionKey{ObjectId: objectId, AppKey: "app", ApiUrl: "https://sandbox.example.com/"}, "Jar", "")
	require.NoError(t, err)
	_, err = subs.Init(ctx, models.SubscriptionKey{ObjectId: objectId, AppKey: "app", ApiUrl: "https://www.example.com/"}, "Jar", "")
	require.NoError(t, err)
	_, err = subs.Init(ctx, models.SubscriptionKey{ObjectId: uuid.New(), AppKey: "app", ApiUrl: "https://www.example.com/"}, "Other", "")
	require.NoError(t, err)

	list, err := subs.ListForObject(ctx, objectId)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, sub := range list {
		assert.Equal(t, objectId, sub.ObjectId)
	}
}
