// Package accounting defines the capability a connector additionally
// provides when it talks to an accounting system (ledger entries,
// invoices, tax rates).
package accounting

import "context"

// Capability is implemented by any connector that can post and retrieve
// ledger entries.
type Capability interface {
	PostLedgerEntry(ctx context.Context, entry map[string]interface{}) (string, error)
	GetLedgerEntry(ctx context.Context, id string) (map[string]interface{}, error)
}
