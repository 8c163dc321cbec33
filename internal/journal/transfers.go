package journal

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"metaverse-ledger-go/internal/ledger"
	"metaverse-ledger-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// All metadata is set inside the script via set_tx_meta() so the Formance
// transaction is fully self-describing. The buyer may overdraw: the ledger
// service, not the journal, is the authority on funds.
const numscriptTransfer = `vars {
  asset $asset
  number $amount
  account $buyer_id
  account $seller_id
  string $transaction_id
  string $endpoint
  string $description
  string $buyer_name
  string $seller_name
  string $part_id
  string $part_name
  string $sale_type
  string $hold_state
  string $buyer_ending_balance
}

send [$asset $amount] (
  source = @users:$buyer_id allowing unbounded overdraft
  destination = @users:$seller_id
)

set_tx_meta("event_type", "transfer")
set_tx_meta("transaction_id", $transaction_id)
set_tx_meta("endpoint", $endpoint)
set_tx_meta("description", $description)
set_tx_meta("buyer_name", $buyer_name)
set_tx_meta("seller_name", $seller_name)
set_tx_meta("part_id", $part_id)
set_tx_meta("part_name", $part_name)
set_tx_meta("sale_type", $sale_type)
set_tx_meta("hold_state", $hold_state)
set_tx_meta("buyer_ending_balance", $buyer_ending_balance)
`

var errNothingToJournal = errors.New("transfer carries no amount")

// OnTransferCompleted forwards the outcome, then journals it if the ledger
// accepted the transfer.
func (s *Service) OnTransferCompleted(ctx context.Context, outcome ledger.TransferOutcome) {
	s.next.OnTransferCompleted(ctx, outcome)

	if !outcome.Success() {
		return
	}
	if err := s.RecordTransfer(ctx, outcome); err != nil {
		zap.L().Error("Unable to journal transfer",
			zap.String("principal_id", outcome.Sender.PrincipalId),
			zap.String("recipient_id", outcome.Recipient.PrincipalId),
			zap.Error(err))
	}
}

// OnSubscriptionCreated forwards the outcome and tags the object's journal
// account with the ledger subscription.
func (s *Service) OnSubscriptionCreated(ctx context.Context, outcome ledger.SubscriptionOutcome) {
	s.next.OnSubscriptionCreated(ctx, outcome)

	sub := outcome.Subscription
	if outcome.Failure != ledger.FailureNone || !sub.Established() {
		return
	}

	addr := "objects:" + accountSegment(sub.ObjectId.String())
	_, err := s.client.Ledger.V2.AddMetadataToAccount(ctx, operations.V2AddMetadataToAccountRequest{
		Ledger:      s.ledger,
		Address:     addr,
		RequestBody: subscriptionMetadata(sub),
	})
	if err != nil {
		zap.L().Error("Unable to journal subscription",
			zap.String("address", addr),
			zap.String("subscription_id", sub.SubscriptionId.String()),
			zap.Error(err))
	}
}

func (s *Service) OnSubscriptionAuthorizationCreated(ctx context.Context, outcome ledger.SubscriptionAuthorizationOutcome) {
	s.next.OnSubscriptionAuthorizationCreated(ctx, outcome)
}

// RecordTransfer posts a successful transfer to the journal. The ledger
// transaction id is the journal reference, so replays are ignored.
func (s *Service) RecordTransfer(ctx context.Context, outcome ledger.TransferOutcome) error {
	vars, err := transferVars(models.GetTransferContext(ctx), outcome)
	if err != nil {
		return err
	}

	_, err = s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(vars["transaction_id"]),
			Script: &shared.V2PostTransactionScript{
				Plain: numscriptTransfer,
				Vars:  vars,
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("Transfer already journaled", zap.String("transaction_id", vars["transaction_id"]))
			return nil
		}
		return fmt.Errorf("unable to record transfer: %w", err)
	}

	zap.L().Info("Transfer journaled in Formance",
		zap.String("transaction_id", vars["transaction_id"]),
		zap.String("buyer_id", vars["buyer_id"]),
		zap.String("seller_id", vars["seller_id"]),
		zap.String("amount", vars["amount"]))
	return nil
}

// AccountBalance returns the journaled balance of a user account.
func (s *Service) AccountBalance(ctx context.Context, principalId string) (decimal.Decimal, error) {
	addr := "users:" + accountSegment(principalId)

	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: addr,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("unable to get journal account %s: %w", addr, err)
	}

	bal := volumeBalance(resp.V2AccountResponse.Data.Volumes, assetCode())
	return fromUnits(bal), nil
}

// transferVars builds the numscript variables for a transfer. The amount
// comes from the submitted transfer, or from the hold's sale price when the
// submission details are unavailable.
func transferVars(tc *models.TransferContext, outcome ledger.TransferOutcome) (map[string]string, error) {
	vars := map[string]string{
		"asset":                assetCode(),
		"buyer_id":             accountSegment(outcome.Sender.PrincipalId),
		"seller_id":            accountSegment(outcome.Recipient.PrincipalId),
		"endpoint":             ledger.PathTransactU2U,
		"description":          "",
		"buyer_name":           "",
		"seller_name":          "",
		"part_id":              "",
		"part_name":            "",
		"sale_type":            "",
		"hold_state":           "",
		"buyer_ending_balance": "",
	}

	amount := decimal.Zero
	if tc != nil {
		amount = tc.Amount
		vars["transaction_id"] = tc.TransactionId.String()
		vars["endpoint"] = tc.Endpoint
		vars["description"] = tc.Description
		vars["buyer_name"] = tc.SenderName
		vars["seller_name"] = tc.RecipientName
	}

	if a := outcome.Asset; a != nil {
		if amount.IsZero() {
			amount = decimal.NewFromInt(a.SalePrice)
		}
		if vars["transaction_id"] == "" {
			vars["transaction_id"] = a.TransactionId.String()
		}
		vars["part_id"] = a.PartId.String()
		vars["part_name"] = a.PartName
		vars["sale_type"] = strconv.Itoa(a.SaleType)
		vars["hold_state"] = a.State()
		vars["buyer_ending_balance"] = strconv.FormatInt(a.BuyerEndingBalance, 10)
	}

	if vars["transaction_id"] == "" {
		return nil, errors.New("transfer carries no transaction id")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", errNothingToJournal, vars["transaction_id"])
	}
	vars["amount"] = toUnits(amount)
	return vars, nil
}

func subscriptionMetadata(sub models.Subscription) map[string]string {
	return map[string]string{
		"entity_type":     "object",
		"subscription_id": sub.SubscriptionId.String(),
		"app_key":         sub.AppKey,
		"api_url":         sub.ApiUrl,
		"object_name":     sub.ObjectName,
		"enabled":         strconv.FormatBool(sub.Enabled),
	}
}

// assetCode returns the Formance UMN notation, e.g. "GLB/0".
func assetCode() string {
	return fmt.Sprintf("%s/%d", currency, currencyPrecision)
}

// toUnits converts a human amount to the smallest unit as an integer string.
func toUnits(amount decimal.Decimal) string {
	return amount.Shift(currencyPrecision).BigInt().String()
}

// fromUnits converts a *big.Int in smallest-unit to a human-readable decimal.
func fromUnits(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -currencyPrecision)
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// accountSegment maps an id onto the characters Formance allows in an
// account address segment.
func accountSegment(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, id)
}
