package models

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type transferContextKey struct{}

// TransferContext carries the details of an outbound transfer through the
// response continuation so notifiers (such as the settlement journal) can
// record them without widening the notifier interface.
type TransferContext struct {
	TransactionId uuid.UUID
	Endpoint      string // transact or transact-u2u
	SenderName    string
	RecipientName string
	Amount        decimal.Decimal
	Description   string
	Descriptor    *TransactionDescriptor
}

// WithTransferContext attaches transfer details to a context.
func WithTransferContext(ctx context.Context, tc *TransferContext) context.Context {
	return context.WithValue(ctx, transferContextKey{}, tc)
}

// GetTransferContext retrieves transfer details from context, or nil if absent.
func GetTransferContext(ctx context.Context) *TransferContext {
	tc, _ := ctx.Value(transferContextKey{}).(*TransferContext)
	return tc
}
