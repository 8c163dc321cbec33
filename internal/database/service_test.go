package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"metaverse-ledger-go/internal/models"
	"metaverse-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Driver:       DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 4,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}

	return service, cleanup
}

func TestNewService_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.DatabaseConfig
	}{
		{"empty path", models.DatabaseConfig{MaxOpenConns: 1, PingTimeout: time.Second}},
		{"bad driver", models.DatabaseConfig{Driver: "mysql", Path: "x", MaxOpenConns: 1, PingTimeout: time.Second}},
		{"no conns", models.DatabaseConfig{Path: ":memory:", PingTimeout: time.Second}},
		{"no ping timeout", models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(context.Background(), tt.cfg); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &Service{driver: DriverPostgres}
	got := pg.rebind("SELECT a FROM t WHERE a = ? AND b = ?")
	want := "SELECT a FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	lite := &Service{driver: DriverSQLite}
	if q := lite.rebind("a = ?"); q != "a = ?" {
		t.Errorf("Expected sqlite query unchanged, got %q", q)
	}
}

func TestBuildLookup_RejectsUnknownField(t *testing.T) {
	_, _, err := buildLookup(querySelectUsers, userLookupColumns, []string{"token"}, []string{"x"}, "")
	if !errors.Is(err, store.ErrUnknownField) {
		t.Fatalf("Expected ErrUnknownField, got %v", err)
	}

	_, _, err = buildLookup(querySelectUsers, userLookupColumns, []string{"principal_id"}, nil, "")
	if !errors.Is(err, store.ErrFieldMismatch) {
		t.Fatalf("Expected ErrFieldMismatch, got %v", err)
	}
}

func TestUsers_StoreAndGet(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	user := models.User{PrincipalId: "agent-1", Token: "tok-1"}
	if err := service.StoreUser(ctx, user); err != nil {
		t.Fatalf("StoreUser failed: %v", err)
	}

	users, err := service.GetUsers(ctx, store.FieldPrincipalId, "agent-1")
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("Expected 1 user, got %d", len(users))
	}
	if users[0].Token != "tok-1" {
		t.Errorf("Expected token tok-1, got %s", users[0].Token)
	}

	// Upsert clears the token
	user.Token = ""
	if err := service.StoreUser(ctx, user); err != nil {
		t.Fatalf("StoreUser (clear) failed: %v", err)
	}
	users, err = service.GetUsers(ctx, store.FieldPrincipalId, "agent-1")
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(users) != 1 || users[0].Token != "" {
		t.Errorf("Expected one user with empty token, got %+v", users)
	}
}

func TestAssets_StoreAndGet(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	asset := models.NewAsset(uuid.New(), "buyer-1", "seller-1")
	asset.PartId = uuid.New()
	asset.PartName = "Lamp"
	asset.LocalId = 42
	asset.SalePrice = 100

	if err := service.StoreAsset(ctx, asset); err != nil {
		t.Fatalf("StoreAsset failed: %v", err)
	}

	now := time.Now().UTC()
	asset.Enacted = true
	asset.EnactedAt = &now
	if err := service.StoreAsset(ctx, asset); err != nil {
		t.Fatalf("StoreAsset (enacted) failed: %v", err)
	}

	assets, err := service.GetAssets(ctx, store.FieldTransactionId, asset.TransactionId.String())
	if err != nil {
		t.Fatalf("GetAssets failed: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("Expected 1 hold, got %d", len(assets))
	}

	got := assets[0]
	if got.TransactionId != asset.TransactionId {
		t.Errorf("Expected transaction id %s, got %s", asset.TransactionId, got.TransactionId)
	}
	if !got.Enacted || got.Consumed || got.Canceled {
		t.Errorf("Expected enacted only, got state %s", got.State())
	}
	if got.EnactedAt == nil {
		t.Error("Expected enacted_at to be set")
	}
	if got.FinishedAt != nil {
		t.Errorf("Expected finished_at nil, got %v", got.FinishedAt)
	}
	if got.LocalId != 42 || got.SalePrice != 100 || got.BuyerEndingBalance != -1 {
		t.Errorf("Unexpected descriptor fields: %+v", got)
	}
	if got.PartName != "Lamp" {
		t.Errorf("Expected part name Lamp, got %s", got.PartName)
	}
}

func TestAssets_GetByBuyerReturnsAll(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := service.StoreAsset(ctx, models.NewAsset(uuid.New(), "buyer-1", "seller-1")); err != nil {
			t.Fatalf("StoreAsset failed: %v", err)
		}
	}

	assets, err := service.GetAssets(ctx, store.FieldBuyerId, "buyer-1")
	if err != nil {
		t.Fatalf("GetAssets failed: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("Expected 2 holds, got %d", len(assets))
	}

	if _, err := store.Unique(assets, "hold", "buyer_id=buyer-1"); !errors.Is(err, store.ErrDuplicateRecord) {
		t.Errorf("Expected ErrDuplicateRecord, got %v", err)
	}
}

func TestSubscriptions_CompositeLookup(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	objectId := uuid.New()
	sandbox := models.Subscription{
		ObjectId:    objectId,
		AppKey:      "app",
		ApiUrl:      "https://sandbox.example.com/",
		CreatedAt:   time.Now(),
		ObjectName:  "Vendor",
		Description: "sells lamps",
	}
	production := sandbox
	production.ApiUrl = "https://www.example.com/"

	for _, sub := range []models.Subscription{sandbox, production} {
		if err := service.StoreSubscription(ctx, sub); err != nil {
			t.Fatalf("StoreSubscription failed: %v", err)
		}
	}

	byObject, err := service.GetSubscriptions(ctx, []string{store.FieldObjectId}, []string{objectId.String()})
	if err != nil {
		t.Fatalf("GetSubscriptions failed: %v", err)
	}
	if len(byObject) != 2 {
		t.Fatalf("Expected 2 subscriptions for object, got %d", len(byObject))
	}

	fields := []string{store.FieldObjectId, store.FieldAppKey, store.FieldApiUrl}
	values := []string{objectId.String(), "app", sandbox.ApiUrl}
	subs, err := service.GetSubscriptions(ctx, fields, values)
	if err != nil {
		t.Fatalf("GetSubscriptions failed: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("Expected 1 subscription, got %d", len(subs))
	}
	if !subs[0].Equal(sandbox) {
		t.Errorf("Expected stored subscription to equal original, got %+v", subs[0])
	}

	// Ledger confirms the subscription
	sandbox.SubscriptionId = uuid.New()
	sandbox.Enabled = true
	if err := service.StoreSubscription(ctx, sandbox); err != nil {
		t.Fatalf("StoreSubscription (confirm) failed: %v", err)
	}
	subs, err = service.GetSubscriptions(ctx,
		[]string{store.FieldSubscriptionId, store.FieldApiUrl},
		[]string{sandbox.SubscriptionId.String(), sandbox.ApiUrl})
	if err != nil {
		t.Fatalf("GetSubscriptions by id failed: %v", err)
	}
	if len(subs) != 1 || !subs[0].Enabled {
		t.Errorf("Expected one enabled subscription, got %+v", subs)
	}
}

func TestBalances_StoreAndGet(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	missing, err := service.GetBalance(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil snapshot, got %+v", missing)
	}

	err = service.StoreBalance(ctx, models.BalanceSnapshot{
		PrincipalId: "agent-1",
		Balance:     decimal.NewFromFloat(12.5),
		Source:      "balance",
	})
	if err != nil {
		t.Fatalf("StoreBalance failed: %v", err)
	}
	err = service.StoreBalance(ctx, models.BalanceSnapshot{
		PrincipalId:   "agent-1",
		Balance:       decimal.NewFromInt(7),
		Source:        "transact-u2u",
		TransactionId: "tx-1",
	})
	if err != nil {
		t.Fatalf("StoreBalance (update) failed: %v", err)
	}

	snapshot, err := service.GetBalance(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if snapshot == nil {
		t.Fatal("Expected snapshot, got nil")
	}
	if !snapshot.Balance.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Expected balance 7, got %s", snapshot.Balance.String())
	}
	if snapshot.Source != "transact-u2u" || snapshot.TransactionId != "tx-1" {
		t.Errorf("Unexpected snapshot: %+v", snapshot)
	}

	all, err := service.GetBalances(ctx)
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected 1 balance, got %d", len(all))
	}
}
