// Package inventory defines the capability a connector additionally
// provides when it talks to a stock/inventory system.
package inventory

import "context"

// Capability is implemented by any connector that can query and adjust
// stock levels.
type Capability interface {
	GetStockLevel(ctx context.Context, sku string) (float64, error)
	AdjustStock(ctx context.Context, sku string, delta float64, reason string) error
}
