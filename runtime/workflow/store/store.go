// Package store defines the persistence interfaces the engine reads through
// and the commerce domain entities backing the built-in inventory and order
// tools. Every query is scoped to an organization; cross-tenant reads and
// writes fail with ErrNotFound so callers cannot distinguish "absent" from
// "not yours".
package store

import (
	"context"
	"errors"
	"time"

	"github.com/loomworks/loom/runtime/workflow/graph"
)

// ErrNotFound reports that an entity does not exist within the caller's
// organization. Decryption failures surface the same way so brittle cipher
// errors never reach clients.
var ErrNotFound = errors.New("store: not found")

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether the status belongs to the closed enum.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type (
	// WorkflowStore loads stored workflow graphs. Identifiers are opaque
	// strings regardless of the backing column type; numeric keys are
	// serialised as decimal strings at this boundary.
	WorkflowStore interface {
		// Workflow returns the named workflow with its nodes and connections.
		Workflow(ctx context.Context, orgID, workflowID string) (*graph.Workflow, error)
	}

	// CredentialStore resolves decrypted secrets by opaque credential
	// identifier, scoped to an organization.
	CredentialStore interface {
		// Secret returns the decrypted value of the credential. Missing
		// credentials, foreign tenants, and undecryptable values all return
		// ErrNotFound.
		Secret(ctx context.Context, orgID, credentialID string) (string, error)
	}

	// Product is a sellable item owned by an organization.
	Product struct {
		ID          string    `json:"id"`
		OrgID       string    `json:"-"`
		Name        string    `json:"name"`
		SKU         string    `json:"sku"`
		Description string    `json:"description,omitempty"`
		PriceCents  int64     `json:"priceCents"`
		Currency    string    `json:"currency"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// Warehouse is a stock location owned by an organization.
	Warehouse struct {
		ID       string `json:"id"`
		OrgID    string `json:"-"`
		Name     string `json:"name"`
		Location string `json:"location,omitempty"`
	}

	// Stock is the quantity of one product held at one warehouse.
	Stock struct {
		ProductID    string `json:"productId"`
		WarehouseID  string `json:"warehouseId"`
		Quantity     int    `json:"quantity"`
		ReorderLevel int    `json:"reorderLevel"`
	}

	// Order is a customer order owned by an organization.
	Order struct {
		ID            string      `json:"id"`
		OrgID         string      `json:"-"`
		CustomerName  string      `json:"customerName"`
		CustomerEmail string      `json:"customerEmail,omitempty"`
		Status        OrderStatus `json:"status"`
		TotalCents    int64       `json:"totalCents"`
		CreatedAt     time.Time   `json:"createdAt"`
		Items         []OrderItem `json:"items,omitempty"`
	}

	// OrderItem is one line of an order.
	OrderItem struct {
		OrderID    string `json:"orderId"`
		ProductID  string `json:"productId"`
		Quantity   int    `json:"quantity"`
		UnitCents  int64  `json:"unitCents"`
	}

	// OrderStats aggregates order counts and revenue by status.
	OrderStats struct {
		Total        int                 `json:"total"`
		ByStatus     map[OrderStatus]int `json:"byStatus"`
		RevenueCents int64               `json:"revenueCents"`
	}

	// ProductQuery narrows a product search. Zero values mean "no filter";
	// Limit zero applies the store default of 20.
	ProductQuery struct {
		Query string
		Limit int
	}

	// OrderQuery narrows an order search. Zero values mean "no filter";
	// Limit zero applies the store default of 20.
	OrderQuery struct {
		Query  string
		Status OrderStatus
		Limit  int
	}

	// CommerceStore backs the read-only inventory tools and the order
	// management tools the agent can expose.
	CommerceStore interface {
		// SearchProducts returns products of the organization matching the
		// query over name and SKU.
		SearchProducts(ctx context.Context, orgID string, q ProductQuery) ([]Product, error)

		// ListWarehouses returns the organization's warehouses.
		ListWarehouses(ctx context.Context, orgID string) ([]Warehouse, error)

		// ProductStock returns stock rows for the organization's products.
		ProductStock(ctx context.Context, orgID string) ([]Stock, error)

		// SearchOrders returns orders of the organization matching the query
		// over id, customer name, and email, optionally filtered by status.
		SearchOrders(ctx context.Context, orgID string, q OrderQuery) ([]Order, error)

		// UpdateOrderStatus transitions one order of the organization to
		// newStatus and returns the updated order. Orders of foreign tenants
		// are indistinguishable from missing ones: both return ErrNotFound.
		UpdateOrderStatus(ctx context.Context, orgID, orderID string, newStatus OrderStatus) (*Order, error)

		// OrderStats aggregates the organization's orders by status.
		OrderStats(ctx context.Context, orgID string) (OrderStats, error)
	}
)

// DefaultQueryLimit caps search results when the caller does not specify a
// limit.
const DefaultQueryLimit = 20
