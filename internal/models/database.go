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

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleTypeSubscription marks a hold whose sale is an automated, recurring debit
const SaleTypeSubscription = 100

// User links a platform account to a ledger account and its access token
type User struct {
	PrincipalId string `db:"principal_id"`
	LedgerId    string `db:"ledger_id"`
	Token       string `db:"token"`
}

// Authorized reports whether the user holds a ledger access token
func (u User) Authorized() bool {
	return u.Token != ""
}

// Asset is the hold record for a goods-for-currency transaction
type Asset struct {
	TransactionId      uuid.UUID  `db:"transaction_id"`
	BuyerId            string     `db:"buyer_id"`
	SellerId           string     `db:"seller_id"`
	Ghost              bool       `db:"ghost"`
	PartId             uuid.UUID  `db:"part_id"`
	PartName           string     `db:"part_name"`
	CategoryId         uuid.UUID  `db:"category_id"`
	LocalId            uint32     `db:"local_id"`
	SaleType           int        `db:"sale_type"`
	SalePrice          int64      `db:"sale_price"`
	BuyerEndingBalance int64      `db:"buyer_ending_balance"`
	Enacted            bool       `db:"enacted"`
	Consumed           bool       `db:"consumed"`
	Canceled           bool       `db:"canceled"`
	CreatedAt          time.Time  `db:"created_at"`
	EnactedAt          *time.Time `db:"enacted_at"`
	FinishedAt         *time.Time `db:"finished_at"`
}

// NewAsset allocates a hold in the Created state
func NewAsset(transactionId uuid.UUID, buyerId, sellerId string) Asset {
	return Asset{
		TransactionId:      transactionId,
		BuyerId:            buyerId,
		SellerId:           sellerId,
		BuyerEndingBalance: -1,
		CreatedAt:          time.Now().UTC(),
	}
}

// Terminal reports whether the hold has been consumed or canceled
func (a Asset) Terminal() bool {
	return a.Consumed || a.Canceled
}

// IsSubscription reports whether the sale is an automated, recurring debit
func (a Asset) IsSubscription() bool {
	return a.SaleType == SaleTypeSubscription
}

// State returns a short label for logs and console output
func (a Asset) State() string {
	switch {
	case a.Canceled:
		return "canceled"
	case a.Consumed:
		return "consumed"
	case a.Enacted:
		return "enacted"
	default:
		return "created"
	}
}

// Subscription is a recurring-debit authorization for one in-world object,
// scoped to one application key and one ledger endpoint
type Subscription struct {
	ObjectId       uuid.UUID `db:"object_id"`
	AppKey         string    `db:"app_key"`
	ApiUrl         string    `db:"api_url"`
	SubscriptionId uuid.UUID `db:"subscription_id"`
	Enabled        bool      `db:"enabled"`
	CreatedAt      time.Time `db:"created_at"`
	ObjectName     string    `db:"object_name"`
	Description    string    `db:"description"`
}

// SubscriptionKey is the composite primary key of a Subscription
type SubscriptionKey struct {
	ObjectId uuid.UUID
	AppKey   string
	ApiUrl   string
}

// Key returns the composite key of the subscription
func (s Subscription) Key() SubscriptionKey {
	return SubscriptionKey{ObjectId: s.ObjectId, AppKey: s.AppKey, ApiUrl: s.ApiUrl}
}

// Established reports whether the ledger has issued an id for the subscription
func (s Subscription) Established() bool {
	return s.SubscriptionId != uuid.Nil
}

// Equal compares every field except CreatedAt, which loses sub-second
// precision in storage.
func (s Subscription) Equal(other Subscription) bool {
	return s.ObjectId == other.ObjectId &&
		s.AppKey == other.AppKey &&
		s.ApiUrl == other.ApiUrl &&
		s.ObjectName == other.ObjectName &&
		s.Description == other.Description &&
		s.SubscriptionId == other.SubscriptionId &&
		s.Enabled == other.Enabled
}

// BalanceSnapshot is the most recent ledger-reported balance for a user
type BalanceSnapshot struct {
	PrincipalId   string          `db:"principal_id"`
	Balance       decimal.Decimal `db:"balance"`
	Source        string          `db:"source"` // balance, transact, transact-u2u
	TransactionId string          `db:"transaction_id"`
	UpdatedAt     time.Time       `db:"updated_at"`
}
