// Package crm defines the capability a connector additionally provides
// when it talks to a CRM system.
package crm

import "context"

// Capability is implemented by any connector that can look up and update
// customer records.
type Capability interface {
	GetCustomer(ctx context.Context, id string) (map[string]interface{}, error)
	UpsertCustomer(ctx context.Context, customer map[string]interface{}) (string, error)
}
