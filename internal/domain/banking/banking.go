// Package banking defines the capability a connector additionally
// provides when it talks to a bank's transaction/statement API. It is a
// narrow interface composed alongside the base connector capability, not
// a base class a banking connector "extends".
package banking

import (
	"context"

	"github.com/taxpoynt/connector-framework/internal/domain/transaction"
)

// Capability is implemented by any connector that can enumerate banking
// transactions and account balances.
type Capability interface {
	ListTransactions(ctx context.Context, accountID string, from, to string) ([]transaction.Banking, error)
	GetBalance(ctx context.Context, accountID string) (float64, error)
}
