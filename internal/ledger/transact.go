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
	"fmt"
	"net/http"

	"metaverse-ledger-go/internal/gateway"
	"metaverse-ledger-go/internal/hold"
	"metaverse-ledger-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactRequest moves currency from a user to the application owner.
type TransactRequest struct {
	Sender      models.User
	SenderName  string
	Amount      decimal.Decimal
	Description string
}

// U2URequest moves currency between two users. When Asset is set, the ledger
// drives the hold through the enact, consume and cancel callbacks.
type U2URequest struct {
	Sender         models.User
	SenderName     string
	Recipient      models.User
	RecipientName  string
	RecipientEmail string
	Amount         decimal.Decimal
	Description    string
	TransactionId  uuid.UUID
	Asset          *models.Asset
	Descriptor     *models.TransactionDescriptor
}

// Transact submits a transfer from the sender to the application owner.
func (e *Engine) Transact(ctx context.Context, req TransactRequest) (Submission, error) {
	if req.Sender.PrincipalId == "" {
		return Submission{}, ErrMissingPrincipal
	}

	transactionId := uuid.New()
	zap.L().Info("Submitting transact",
		zap.String("transaction_id", transactionId.String()),
		zap.String("principal_id", req.Sender.PrincipalId),
		zap.String("amount", req.Amount.String()),
		zap.String("description", req.Description))

	params := e.baseParams()
	params["request-created"] = e.requestCreated()
	params["username-on-application"] = fmt.Sprintf("%s - %s", req.SenderName, req.Sender.PrincipalId)
	params["transaction-id"] = transactionId.String()
	params["gloebit-balance-change"] = req.Amount
	params["asset-code"] = req.Description
	params["asset-quantity"] = 1

	ctx = models.WithTransferContext(ctx, &models.TransferContext{
		TransactionId: transactionId,
		Endpoint:      PathTransact,
		SenderName:    req.SenderName,
		Amount:        req.Amount,
		Description:   req.Description,
	})

	err := e.dispatch(ctx, gateway.Request{
		Path:        PathTransact,
		Method:      http.MethodPost,
		Token:       req.Sender.Token,
		ContentType: gateway.ContentTypeJSON,
		Params:      params,
	}, func(ctx context.Context, result gateway.Result) {
		e.handleTransact(ctx, req.Sender, transactionId, result)
	})
	if err != nil {
		return Submission{}, fmt.Errorf("unable to submit transact: %w", err)
	}
	return Submission{TransactionId: transactionId, Endpoint: PathTransact}, nil
}

func (e *Engine) handleTransact(ctx context.Context, sender models.User, transactionId uuid.UUID, result gateway.Result) {
	resp := responseOf(result)
	success := resp.Success()
	balance := resp.Decimal("balance")

	zap.L().Info("Transact completed",
		zap.String("transaction_id", transactionId.String()),
		zap.Bool("success", success),
		zap.String("balance", balance.String()),
		zap.String("reason", resp.Reason()),
		zap.Error(result.Err))

	// The balance is only meaningful when the transfer went through.
	if !success {
		return
	}
	e.recordBalance(ctx, sender.PrincipalId, balance, PathTransact, transactionId.String())
	e.sendBalance(ctx, sender.PrincipalId, balance)
}

// TransactU2U submits a user-to-user transfer. Automated (subscription) sales
// require an established subscription: if there is none yet, creation is
// started and ErrSubscriptionNotReady is returned without submitting the
// transfer.
func (e *Engine) TransactU2U(ctx context.Context, req U2URequest) (Submission, error) {
	if req.Sender.PrincipalId == "" || req.Recipient.PrincipalId == "" {
		return Submission{}, ErrMissingPrincipal
	}

	transactionId := req.TransactionId
	if transactionId == uuid.Nil && req.Asset != nil {
		transactionId = req.Asset.TransactionId
	}
	if transactionId == uuid.Nil {
		transactionId = uuid.New()
	}

	zap.L().Info("Submitting transact-u2u",
		zap.String("transaction_id", transactionId.String()),
		zap.String("principal_id", req.Sender.PrincipalId),
		zap.String("recipient_id", req.Recipient.PrincipalId),
		zap.String("amount", req.Amount.String()),
		zap.String("description", req.Description))

	params := e.baseParams()
	params["request-created"] = e.requestCreated()
	params["username-on-application"] = req.SenderName
	params["transaction-id"] = transactionId.String()
	params["gloebit-balance-change"] = req.Amount
	params["asset-code"] = req.Description
	params["asset-quantity"] = 1

	params["seller-name-on-application"] = req.RecipientName
	params["seller-id-on-application"] = req.Recipient.PrincipalId
	if req.Recipient.LedgerId != "" {
		params["seller-id-from-gloebit"] = req.Recipient.LedgerId
	}
	if req.RecipientEmail != "" {
		params["seller-email-address"] = req.RecipientEmail
	}
	params["buyer-id-on-application"] = req.Sender.PrincipalId

	if d := req.Descriptor; d != nil {
		params["platform-desc-names"] = d.PlatformNames
		params["platform-desc-values"] = d.PlatformValues
		params["location-desc-names"] = d.LocationNames
		params["location-desc-values"] = d.LocationValues
		params["transaction-desc-names"] = d.TransactionNames
		params["transaction-desc-values"] = d.TransactionValues
	}

	var asset *models.Asset
	var createdHold bool
	if req.Asset != nil {
		a := *req.Asset
		a.TransactionId = transactionId
		asset = &a

		params["asset-enact-hold-url"] = e.HoldURL(transactionId, hold.StateEnact)
		params["asset-consume-hold-url"] = e.HoldURL(transactionId, hold.StateConsume)
		params["asset-cancel-hold-url"] = e.HoldURL(transactionId, hold.StateCancel)

		if asset.IsSubscription() {
			params["automated-transaction"] = true

			subscriptionId, err := e.subscriptionFor(ctx, *asset, req.Descriptor)
			if err != nil {
				return Submission{}, err
			}
			params["subscription-id"] = subscriptionId.String()
		}

		var err error
		createdHold, err = e.ensureHold(ctx, *asset)
		if err != nil {
			return Submission{}, err
		}
	}

	ctx = models.WithTransferContext(ctx, &models.TransferContext{
		TransactionId: transactionId,
		Endpoint:      PathTransactU2U,
		SenderName:    req.SenderName,
		RecipientName: req.RecipientName,
		Amount:        req.Amount,
		Description:   req.Description,
		Descriptor:    req.Descriptor,
	})

	err := e.dispatch(ctx, gateway.Request{
		Path:        PathTransactU2U,
		Method:      http.MethodPost,
		Token:       req.Sender.Token,
		ContentType: gateway.ContentTypeJSON,
		Params:      params,
	}, func(ctx context.Context, result gateway.Result) {
		e.handleTransactU2U(ctx, req.Sender, req.Recipient, transactionId, asset != nil, result)
	})
	if err != nil {
		if createdHold {
			e.retireHold(ctx, *asset)
		}
		return Submission{}, fmt.Errorf("unable to submit transact-u2u: %w", err)
	}
	return Submission{TransactionId: transactionId, Endpoint: PathTransactU2U}, nil
}

// subscriptionFor returns the ledger subscription id for an automated sale.
// A missing subscription is initialized from the object descriptor and
// creation is submitted; either way the caller must retry later.
func (e *Engine) subscriptionFor(ctx context.Context, asset models.Asset, descriptor *models.TransactionDescriptor) (uuid.UUID, error) {
	key := models.SubscriptionKey{ObjectId: asset.PartId, AppKey: e.cfg.AppKey, ApiUrl: e.ApiUrl()}

	sub, err := e.subscriptions.Get(ctx, key)
	if err != nil {
		return uuid.Nil, fmt.Errorf("unable to look up subscription: %w", err)
	}
	if sub != nil && sub.Established() {
		return sub.SubscriptionId, nil
	}

	if sub == nil {
		description, _ := descriptor.TransactionValue(models.DescriptorObjectDescription)
		zap.L().Warn("Automated transfer without a subscription, creating one",
			zap.String("object_id", asset.PartId.String()),
			zap.String("object_name", asset.PartName))

		created, err := e.subscriptions.Init(ctx, key, asset.PartName, description)
		if err != nil {
			return uuid.Nil, fmt.Errorf("unable to initialize subscription: %w", err)
		}
		sub = &created
	}

	if _, err := e.CreateSubscription(ctx, *sub); err != nil {
		zap.L().Error("Unable to submit subscription creation",
			zap.String("object_id", asset.PartId.String()),
			zap.Error(err))
	}
	return uuid.Nil, ErrSubscriptionNotReady
}

// ensureHold registers the hold unless it is already known, so a resubmitted
// transfer never resets a hold the ledger has already moved. It reports
// whether the hold was created by this call.
func (e *Engine) ensureHold(ctx context.Context, asset models.Asset) (bool, error) {
	existing, err := e.holds.Get(ctx, asset.TransactionId)
	if err != nil {
		return false, fmt.Errorf("unable to look up hold: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	if _, err := e.holds.Init(ctx, asset); err != nil {
		return false, fmt.Errorf("unable to create hold: %w", err)
	}
	return true, nil
}

// retireHold cancels a hold whose transfer never reached the ledger. The
// ledger has no callback urls for it, so nothing else can finish it.
func (e *Engine) retireHold(ctx context.Context, asset models.Asset) {
	finishedAt := e.now().UTC()
	asset.Canceled = true
	asset.FinishedAt = &finishedAt

	if err := e.holds.Commit(ctx, asset); err != nil {
		zap.L().Error("Unable to retire unsubmitted hold",
			zap.String("transaction_id", asset.TransactionId.String()),
			zap.Error(err))
		return
	}
	zap.L().Warn("Retired hold for unsubmitted transfer",
		zap.String("transaction_id", asset.TransactionId.String()))
}

func (e *Engine) handleTransactU2U(ctx context.Context, sender, recipient models.User, transactionId uuid.UUID, hasHold bool, result gateway.Result) {
	resp := responseOf(result)
	success := resp.Success()
	balance := resp.Decimal("balance")
	reason := resp.Reason()

	zap.L().Info("Transact-u2u completed",
		zap.String("transaction_id", transactionId.String()),
		zap.Bool("success", success),
		zap.String("balance", balance.String()),
		zap.String("reason", reason),
		zap.Error(result.Err))

	outcome := TransferOutcome{
		Response:  resp,
		Sender:    sender,
		Recipient: recipient,
		Err:       result.Err,
	}

	if success {
		if hasHold {
			if err := e.holds.RecordEndingBalance(ctx, transactionId, balance.IntPart()); err != nil {
				zap.L().Error("Unable to record buyer ending balance",
					zap.String("transaction_id", transactionId.String()),
					zap.Error(err))
			}
		}
		e.recordBalance(ctx, sender.PrincipalId, balance, PathTransactU2U, transactionId.String())
	} else {
		outcome.Failure = ClassifyTransferFailure(reason)
		switch outcome.Failure {
		case FailureUnknownToken:
			e.invalidate(ctx, sender)
		case FailureSubscriptionAuthorization:
			zap.L().Error("Transfer blocked by subscription authorization",
				zap.String("transaction_id", transactionId.String()),
				zap.String("reason", reason))
		default:
			zap.L().Error("Transfer failed",
				zap.String("transaction_id", transactionId.String()),
				zap.String("reason", reason),
				zap.String("failure", string(outcome.Failure)))
		}
	}

	if hasHold {
		if asset, err := e.holds.Get(ctx, transactionId); err == nil && asset != nil {
			outcome.Asset = asset
		}
	}

	e.notifier.OnTransferCompleted(ctx, outcome)
}
