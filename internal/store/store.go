package store

import (
	"context"
	"errors"
	"fmt"

	"metaverse-ledger-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrDuplicateRecord = errors.New("duplicate record")
	ErrHoldNotFound    = errors.New("hold not found")
	ErrUnknownField    = errors.New("unknown lookup field")
	ErrFieldMismatch   = errors.New("lookup fields and values differ in length")
)

// Lookup field names accepted by the get-by-field operations.
const (
	FieldPrincipalId    = "principal_id"
	FieldLedgerId       = "ledger_id"
	FieldTransactionId  = "transaction_id"
	FieldBuyerId        = "buyer_id"
	FieldSellerId       = "seller_id"
	FieldObjectId       = "object_id"
	FieldAppKey         = "app_key"
	FieldApiUrl         = "api_url"
	FieldSubscriptionId = "subscription_id"
)

// UserStore persists ledger users keyed by principal id.
type UserStore interface {
	GetUsers(ctx context.Context, field, value string) ([]models.User, error)
	StoreUser(ctx context.Context, user models.User) error
}

// AssetStore persists holds keyed by transaction id.
type AssetStore interface {
	GetAssets(ctx context.Context, field, value string) ([]models.Asset, error)
	StoreAsset(ctx context.Context, asset models.Asset) error
}

// SubscriptionStore persists subscriptions keyed by (object id, app key, api url).
type SubscriptionStore interface {
	GetSubscriptions(ctx context.Context, fields, values []string) ([]models.Subscription, error)
	StoreSubscription(ctx context.Context, sub models.Subscription) error
}

// BalanceStore keeps the latest ledger-reported balance per user.
type BalanceStore interface {
	StoreBalance(ctx context.Context, snapshot models.BalanceSnapshot) error
	GetBalance(ctx context.Context, principalId string) (*models.BalanceSnapshot, error)
	GetBalances(ctx context.Context) ([]models.BalanceSnapshot, error)
}

// Store defines the contract that every backend (SQLite, Postgres, ...) must satisfy.
type Store interface {
	// --- Users ---
	UserStore

	// --- Holds ---
	AssetStore

	// --- Subscriptions ---
	SubscriptionStore

	// --- Balances ---
	BalanceStore

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}

// Unique narrows a lookup on a key that is expected to be unique.
// It returns nil when nothing matched and ErrDuplicateRecord when more than
// one record matched.
func Unique[T any](records []T, kind, key string) (*T, error) {
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return &records[0], nil
	default:
		return nil, fmt.Errorf("%w: %d %s records for %s", ErrDuplicateRecord, len(records), kind, key)
	}
}
