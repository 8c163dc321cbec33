package ledger

import (
	"metaverse-ledger-go/internal/gateway"
	"metaverse-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// BalanceResult is the outcome of a balance request. Balance is zero on any
// failure.
type BalanceResult struct {
	PrincipalId string
	Balance     decimal.Decimal
	Success     bool
	Reason      string
	Failure     Failure
	Err         error
}

// TransferOutcome is delivered once per submitted transact-u2u.
type TransferOutcome struct {
	Response  gateway.Response
	Sender    models.User
	Recipient models.User
	Asset     *models.Asset
	Failure   Failure
	Err       error
}

func (o TransferOutcome) Success() bool {
	return o.Err == nil && o.Response.Success()
}

// SubscriptionOutcome is delivered once per submitted create-subscription.
type SubscriptionOutcome struct {
	Response     gateway.Response
	Subscription models.Subscription
	Failure      Failure
	Err          error
}

// SubscriptionAuthorizationOutcome is delivered once per submitted
// create-subscription-authorization.
type SubscriptionAuthorizationOutcome struct {
	Response     gateway.Response
	Subscription models.Subscription
	Sender       models.User
	Failure      Failure
	Err          error
}
