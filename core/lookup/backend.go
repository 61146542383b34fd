// Package lookup provides the order/customer data backends the bridge runs
// its background queries against.
//
// Backends deliberately return loosely-typed payloads: the speaking layer is
// handed the full record so it can paraphrase without inventing fields, and
// the set of fields is owned by the data source, not by this module.
package lookup

import (
	"context"
	"fmt"
	"strings"
)

// Record is one order or customer payload as the data source shapes it.
type Record = map[string]any

// Backend is the lookup collaborator contract. All operations are fallible
// and must honor ctx; deadlines are enforced by the caller's task timeout,
// not by the backend.
type Backend interface {
	// GetOrderStatus resolves one order by ID. Not-found is not an error:
	// the returned payload carries found=false plus an error message meant
	// for the speaking layer.
	GetOrderStatus(ctx context.Context, orderID string) (Record, error)
	// FindOrdersByCustomerName returns all orders for a customer, matching
	// the name case-insensitively including configured aliases. An unknown
	// customer yields an empty list, not an error.
	FindOrdersByCustomerName(ctx context.Context, customerName string) ([]Record, error)
	// ListOrders returns every order with customer names joined in.
	ListOrders(ctx context.Context) ([]Record, error)
}

// NotFoundRecord builds the found=false payload for a missing order.
func NotFoundRecord(orderID string) Record {
	return Record{"found": false, "error": fmt.Sprintf("Order %s not found.", orderID)}
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}
