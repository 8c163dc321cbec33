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

package hold

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metaverse-ledger-go/internal/models"
	"metaverse-ledger-go/internal/registry"
	"metaverse-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	StateEnact   = "enact"
	StateConsume = "consume"
	StateCancel  = "cancel"
)

// Messages returned to the ledger. MsgPending tells the ledger to retry and
// must not change.
const (
	MsgPending           = "pending"
	MsgNotFound          = "No matching asset found."
	MsgUnrecognizedState = "Unrecognized state request"
	MsgLookupFailed      = "Unable to load asset."

	msgEnactCanceled     = "Enact: already canceled"
	msgEnactConsumed     = "Enact: already consumed"
	msgEnactEnacted      = "Enact: already enacted"
	msgConsumeCanceled   = "Consume: already canceled"
	msgConsumeNotEnacted = "Consume: not yet enacted"
	msgConsumeConsumed   = "Consume: already consumed"
	msgCancelConsumed    = "Cancel: already consumed"
	msgCancelCanceled    = "Cancel: already canceled"
	msgPersistFailedFmt  = "%s: unable to record state"
	msgDeliveryFailedFmt = "%s: delivery declined"
)

var ErrUnrecognizedState = errors.New("unrecognized state request")

// Delivery performs the goods side of a hold. Each method reports whether
// the step succeeded and a message passed back to the ledger.
type Delivery interface {
	EnactHold(ctx context.Context, asset models.Asset) (bool, string)
	ConsumeHold(ctx context.Context, asset models.Asset) (bool, string)
	CancelHold(ctx context.Context, asset models.Asset) (bool, string)
}

type Machine struct {
	holds    *registry.HoldRegistry
	delivery Delivery
	now      func() time.Time
}

func NewMachine(holds *registry.HoldRegistry, delivery Delivery) *Machine {
	return &Machine{
		holds:    holds,
		delivery: delivery,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ProcessStateRequest applies a ledger callback to the hold identified by
// transactionId. Only one transition per hold runs at a time; a concurrent
// request is answered with MsgPending and changes nothing.
func (m *Machine) ProcessStateRequest(ctx context.Context, transactionId uuid.UUID, state string) (models.HoldStateResult, error) {
	result := models.HoldStateResult{Id: transactionId.String(), State: state}

	asset, err := m.holds.Get(ctx, transactionId)
	if err != nil {
		zap.L().Error("Unable to load hold",
			zap.String("transaction_id", result.Id),
			zap.Error(err))
		result.Reason = MsgLookupFailed
		return result, err
	}
	if asset == nil {
		result.Reason = MsgNotFound
		return result, fmt.Errorf("%w: %s", store.ErrHoldNotFound, transactionId)
	}

	if !m.holds.TryBegin(transactionId) {
		zap.L().Info("Hold transition already in progress",
			zap.String("transaction_id", result.Id),
			zap.String("state", state))
		result.Reason = MsgPending
		return result, nil
	}
	defer m.holds.Finish(transactionId)

	// Re-read from the store under the guard; a transition may have finished
	// since the lookup, and only the store is authoritative.
	asset, err = m.holds.Load(ctx, transactionId)
	if err != nil {
		zap.L().Error("Unable to reload hold",
			zap.String("transaction_id", result.Id),
			zap.Error(err))
		result.Reason = MsgLookupFailed
		return result, err
	}
	if asset == nil {
		result.Reason = MsgNotFound
		return result, fmt.Errorf("%w: %s", store.ErrHoldNotFound, transactionId)
	}

	switch state {
	case StateEnact:
		result.Success, result.Reason, err = m.enact(ctx, *asset)
	case StateConsume:
		result.Success, result.Reason, err = m.consume(ctx, *asset)
	case StateCancel:
		result.Success, result.Reason, err = m.cancel(ctx, *asset)
	default:
		result.Reason = MsgUnrecognizedState
		err = fmt.Errorf("%w: %q", ErrUnrecognizedState, state)
	}

	zap.L().Info("Processed hold state request",
		zap.String("transaction_id", result.Id),
		zap.String("state", state),
		zap.Bool("success", result.Success),
		zap.String("reason", result.Reason))
	return result, err
}

func (m *Machine) enact(ctx context.Context, asset models.Asset) (bool, string, error) {
	switch {
	case asset.Canceled:
		// A delayed enact sent before the cancel.
		return false, msgEnactCanceled, nil
	case asset.Consumed:
		return true, msgEnactConsumed, nil
	case asset.Enacted:
		return true, msgEnactEnacted, nil
	}

	ok, msg := m.delivery.EnactHold(ctx, asset)
	if !ok {
		return false, failureMessage(msg, "Enact"), nil
	}

	enactedAt := m.now()
	asset.Enacted = true
	asset.EnactedAt = &enactedAt

	logAsset("Hold enacted", asset)
	return m.commit(ctx, asset, "Enact", msg)
}

func (m *Machine) consume(ctx context.Context, asset models.Asset) (bool, string, error) {
	switch {
	case asset.Canceled:
		return false, msgConsumeCanceled, nil
	case !asset.Enacted:
		return false, msgConsumeNotEnacted, nil
	case asset.Consumed:
		return true, msgConsumeConsumed, nil
	}

	ok, msg := m.delivery.ConsumeHold(ctx, asset)
	if !ok {
		return false, failureMessage(msg, "Consume"), nil
	}

	finishedAt := m.now()
	asset.Consumed = true
	asset.FinishedAt = &finishedAt

	return m.commit(ctx, asset, "Consume", msg)
}

func (m *Machine) cancel(ctx context.Context, asset models.Asset) (bool, string, error) {
	if asset.Consumed {
		return false, msgCancelConsumed, nil
	}
	if !asset.Enacted {
		// Nothing to undo, but the cancel side effect still runs so the
		// delivery side can release anything it reserved.
		zap.L().Debug("Canceling hold that was never enacted", zap.String("transaction_id", asset.TransactionId.String()))
	}
	if asset.Canceled {
		return true, msgCancelCanceled, nil
	}

	ok, msg := m.delivery.CancelHold(ctx, asset)
	if !ok {
		return false, failureMessage(msg, "Cancel"), nil
	}

	finishedAt := m.now()
	asset.Canceled = true
	asset.FinishedAt = &finishedAt

	return m.commit(ctx, asset, "Cancel", msg)
}

func (m *Machine) commit(ctx context.Context, asset models.Asset, step, msg string) (bool, string, error) {
	if err := m.holds.Commit(ctx, asset); err != nil {
		zap.L().Error("Unable to record hold transition",
			zap.String("transaction_id", asset.TransactionId.String()),
			zap.String("step", step),
			zap.Error(err))
		return false, fmt.Sprintf(msgPersistFailedFmt, step), err
	}
	return true, msg, nil
}

func failureMessage(msg, step string) string {
	if msg != "" {
		return msg
	}
	return fmt.Sprintf(msgDeliveryFailedFmt, step)
}

func logAsset(msg string, asset models.Asset) {
	zap.L().Info(msg,
		zap.String("transaction_id", asset.TransactionId.String()),
		zap.Bool("ghost", asset.Ghost),
		zap.String("buyer_id", asset.BuyerId),
		zap.String("seller_id", asset.SellerId),
		zap.String("part_id", asset.PartId.String()),
		zap.String("part_name", asset.PartName),
		zap.Uint32("local_id", asset.LocalId),
		zap.Int("sale_type", asset.SaleType),
		zap.Int64("sale_price", asset.SalePrice),
		zap.Int64("buyer_ending_balance", asset.BuyerEndingBalance))
}
