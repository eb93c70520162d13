// Package payment defines the capability a connector additionally
// provides when it talks to a payment processor.
package payment

import (
	"context"

	"github.com/taxpoynt/connector-framework/internal/domain/transaction"
)

// Capability is implemented by any connector that can initiate and query
// payment-processor transactions.
type Capability interface {
	Charge(ctx context.Context, amount float64, currency string, narration string) (transaction.Payment, error)
	GetTransaction(ctx context.Context, id string) (transaction.Payment, error)
}
