// Package erp defines the capability a connector additionally provides
// when it talks to an ERP system (inventory, purchase orders, invoices).
package erp

import "context"

// Capability is implemented by any connector that can enumerate ERP
// documents keyed by entity name (e.g. "Invoices", "PurchaseOrders").
type Capability interface {
	ListEntities(ctx context.Context, entitySet string, filters map[string]string) ([]map[string]interface{}, error)
	GetEntity(ctx context.Context, entitySet string, key string) (map[string]interface{}, error)
}
