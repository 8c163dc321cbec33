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

package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"metaverse-ledger-go/internal/gateway"
	"metaverse-ledger-go/internal/models"
	"metaverse-ledger-go/internal/registry"
	"metaverse-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger endpoints, relative to the ledger base url.
const (
	PathBalance                         = "balance"
	PathTransact                        = "transact"
	PathTransactU2U                     = "transact-u2u"
	PathCreateSubscription              = "create-subscription"
	PathCreateSubscriptionAuthorization = "create-subscription-authorization"
	PathAuthorize                       = "oauth2/authorize"
	PathAccessToken                     = "oauth2/access-token"
	PathPurchase                        = "/purchase"
	PathAuthorizeSubscription           = "authorize-subscription/"
)

const (
	DefaultPathPrefix = "/gloebit"

	apiVersion        = 1
	authScope         = "user balance transact"
	additionalDetails = "no additional details"
)

var (
	// ErrSubscriptionNotReady means an automated transfer was not submitted
	// because its subscription is still being created. Retry later.
	ErrSubscriptionNotReady = errors.New("subscription not yet established with the ledger")

	ErrApplicationKeyMismatch = errors.New("subscription belongs to a different application key")
	ErrMissingPrincipal       = errors.New("principal id is required")
)

// Notifier receives the outcome of every completed asynchronous operation.
type Notifier interface {
	OnTransferCompleted(ctx context.Context, outcome TransferOutcome)
	OnSubscriptionCreated(ctx context.Context, outcome SubscriptionOutcome)
	OnSubscriptionAuthorizationCreated(ctx context.Context, outcome SubscriptionAuthorizationOutcome)
}

// Messenger delivers out-of-band messages to a platform user.
type Messenger interface {
	SendURL(ctx context.Context, principalId, title, body, url string) error
	SendBalance(ctx context.Context, principalId string, balance decimal.Decimal) error
}

type Config struct {
	AppKey      string
	AppKeyAlias string
	AppSecret   string

	// CallbackBaseURL is where the ledger and browsers reach this service.
	CallbackBaseURL string
	PathPrefix      string
}

type Dependencies struct {
	Gateway       *gateway.Gateway
	Identities    *registry.IdentityCache
	Holds         *registry.HoldRegistry
	Subscriptions *registry.SubscriptionRegistry
	Balances      store.BalanceStore
	Notifier      Notifier
	Messenger     Messenger
}

// Submission identifies a request handed to the gateway. Its outcome arrives
// later through the Notifier or the supplied continuation.
type Submission struct {
	TransactionId uuid.UUID
	Endpoint      string
}

type Engine struct {
	cfg           Config
	callbackBase  *url.URL
	gateway       *gateway.Gateway
	identities    *registry.IdentityCache
	holds         *registry.HoldRegistry
	subscriptions *registry.SubscriptionRegistry
	balances      store.BalanceStore
	notifier      Notifier
	messenger     Messenger
	now           func() time.Time
	dispatch      func(context.Context, gateway.Request, gateway.Continuation) error
}

func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.AppKey == "" {
		return nil, errors.New("ledger application key is required")
	}
	if deps.Gateway == nil || deps.Identities == nil || deps.Holds == nil ||
		deps.Subscriptions == nil || deps.Balances == nil {
		return nil, errors.New("ledger engine requires gateway, registries and balance store")
	}

	base, err := url.Parse(cfg.CallbackBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid callback base url %q", cfg.CallbackBaseURL)
	}

	if cfg.PathPrefix == "" {
		cfg.PathPrefix = DefaultPathPrefix
	}
	cfg.PathPrefix = "/" + strings.Trim(cfg.PathPrefix, "/")

	notifier := deps.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	messenger := deps.Messenger
	if messenger == nil {
		messenger = nopMessenger{}
	}

	zap.L().Info("Ledger engine initialized",
		zap.String("api_url", deps.Gateway.BaseURL()),
		zap.String("callback_base_url", base.String()),
		zap.String("path_prefix", cfg.PathPrefix))

	return &Engine{
		cfg:           cfg,
		callbackBase:  base,
		gateway:       deps.Gateway,
		identities:    deps.Identities,
		holds:         deps.Holds,
		subscriptions: deps.Subscriptions,
		balances:      deps.Balances,
		notifier:      notifier,
		messenger:     messenger,
		now:           time.Now,
		dispatch:      deps.Gateway.Dispatch,
	}, nil
}

// ApiUrl is the ledger environment this engine talks to. It is part of every
// subscription key.
func (e *Engine) ApiUrl() string {
	return e.gateway.BaseURL()
}

func (e *Engine) AppKey() string {
	return e.cfg.AppKey
}

// Wait drains in-flight requests and their continuations.
func (e *Engine) Wait(ctx context.Context) error {
	return e.gateway.Wait(ctx)
}

func (e *Engine) baseParams() gateway.Params {
	return gateway.Params{
		"version":         apiVersion,
		"application-key": e.cfg.AppKey,
	}
}

func (e *Engine) requestCreated() int64 {
	return e.now().UTC().Unix()
}

func (e *Engine) recordBalance(ctx context.Context, principalId string, balance decimal.Decimal, source, transactionId string) {
	snapshot := models.BalanceSnapshot{
		PrincipalId:   principalId,
		Balance:       balance,
		Source:        source,
		TransactionId: transactionId,
		UpdatedAt:     e.now().UTC(),
	}
	if err := e.balances.StoreBalance(ctx, snapshot); err != nil {
		zap.L().Warn("Unable to record balance snapshot",
			zap.String("principal_id", principalId),
			zap.String("source", source),
			zap.Error(err))
	}
}

func (e *Engine) sendBalance(ctx context.Context, principalId string, balance decimal.Decimal) {
	if err := e.messenger.SendBalance(ctx, principalId, balance); err != nil {
		zap.L().Warn("Unable to send balance to user",
			zap.String("principal_id", principalId),
			zap.Error(err))
	}
}

func (e *Engine) sendURL(ctx context.Context, principalId, title, body, target string) {
	if err := e.messenger.SendURL(ctx, principalId, title, body, target); err != nil {
		zap.L().Warn("Unable to send url to user",
			zap.String("principal_id", principalId),
			zap.String("title", title),
			zap.Error(err))
	}
}

func (e *Engine) invalidate(ctx context.Context, user models.User) {
	if err := e.identities.Invalidate(ctx, user); err != nil {
		zap.L().Error("Unable to invalidate ledger token",
			zap.String("principal_id", user.PrincipalId),
			zap.Error(err))
	}
}

// responseOf returns the decoded response, or a synthetic failure carrying
// the transport error so callers handle both the same way.
func responseOf(result gateway.Result) gateway.Response {
	if result.Err != nil || result.Response == nil {
		return gateway.Response{"success": false, "reason": ReasonTransportFailure}
	}
	return result.Response
}

// NopNotifier discards every outcome.
type NopNotifier struct{}

func (NopNotifier) OnTransferCompleted(context.Context, TransferOutcome) {}

func (NopNotifier) OnSubscriptionCreated(context.Context, SubscriptionOutcome) {}

func (NopNotifier) OnSubscriptionAuthorizationCreated(context.Context, SubscriptionAuthorizationOutcome) {
}

type nopMessenger struct{}

func (nopMessenger) SendURL(context.Context, string, string, string, string) error { return nil }

func (nopMessenger) SendBalance(context.Context, string, decimal.Decimal) error { return nil }
