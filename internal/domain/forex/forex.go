// Package forex defines the capability a connector additionally provides
// when it talks to a foreign-exchange system, including the annual-usage
// helpers the PBA/BTA (Personal/Business Travel Allowance) regulatory
// forms require.
package forex

import (
	"context"

	"github.com/taxpoynt/connector-framework/internal/domain/transaction"
)

// Capability is implemented by any connector that can quote and record
// forex transactions.
type Capability interface {
	Quote(ctx context.Context, fromCurrency, toCurrency string, amount float64) (float64, error)
	RecordTransaction(ctx context.Context, tx transaction.Forex) error

	// AnnualUsage sums the forex amount already transacted this year by
	// the given counterparty, resolving Open Question 3: indexed by
	// CounterpartyID rather than a customer_id the base transaction type
	// never defined.
	AnnualUsage(ctx context.Context, counterpartyID string, year int) (float64, error)
}
