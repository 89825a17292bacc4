// Package bun implements the engine's persistence interfaces on Postgres
// through the bun ORM. Identifiers are int64 columns serialised as decimal
// strings at the interface boundary so the engine stays agnostic of the
// key type.
package bun

import (
	"time"

	"github.com/uptrace/bun"
)

type (
	workflowRow struct {
		bun.BaseModel `bun:"table:workflows,alias:w"`

		ID          int64  `bun:"id,pk,autoincrement"`
		OrgID       int64  `bun:"organization_id"`
		Name        string `bun:"name"`
		Description string `bun:"description"`
		Status      string `bun:"status"`
	}

	nodeRow struct {
		bun.BaseModel `bun:"table:nodes,alias:n"`

		ID           int64          `bun:"id,pk,autoincrement"`
		WorkflowID   int64          `bun:"workflow_id"`
		Kind         string         `bun:"kind"`
		PositionX    float64        `bun:"position_x"`
		PositionY    float64        `bun:"position_y"`
		Data         map[string]any `bun:"data,type:jsonb"`
		CredentialID *int64         `bun:"credential_id"`
	}

	connectionRow struct {
		bun.BaseModel `bun:"table:connections,alias:c"`

		ID         int64  `bun:"id,pk,autoincrement"`
		WorkflowID int64  `bun:"workflow_id"`
		FromNodeID int64  `bun:"from_node_id"`
		ToNodeID   int64  `bun:"to_node_id"`
		FromOutput string `bun:"from_output"`
		ToInput    string `bun:"to_input"`
	}

	credentialRow struct {
		bun.BaseModel `bun:"table:credentials,alias:cr"`

		ID             int64  `bun:"id,pk,autoincrement"`
		OrgID          int64  `bun:"organization_id"`
		Kind           string `bun:"kind"`
		Name           string `bun:"name"`
		EncryptedValue string `bun:"encrypted_value"`
	}

	// productRow joins the current price columns from product_prices.
	productRow struct {
		bun.BaseModel `bun:"table:products,alias:p"`

		ID          int64     `bun:"id,pk,autoincrement"`
		OrgID       int64     `bun:"organization_id"`
		Name        string    `bun:"name"`
		SKU         string    `bun:"sku"`
		Description string    `bun:"description"`
		PriceCents  int64     `bun:"price_cents,scanonly"`
		Currency    string    `bun:"currency,scanonly"`
		CreatedAt   time.Time `bun:"created_at"`
	}

	warehouseRow struct {
		bun.BaseModel `bun:"table:warehouses,alias:wh"`

		ID       int64  `bun:"id,pk,autoincrement"`
		OrgID    int64  `bun:"organization_id"`
		Name     string `bun:"name"`
		Location string `bun:"location"`
	}

	stockRow struct {
		bun.BaseModel `bun:"table:product_stocks,alias:s"`

		ProductID    int64 `bun:"product_id"`
		WarehouseID  int64 `bun:"warehouse_id"`
		Quantity     int   `bun:"quantity"`
		ReorderLevel int   `bun:"reorder_level"`
	}

	orderRow struct {
		bun.BaseModel `bun:"table:orders,alias:o"`

		ID            int64     `bun:"id,pk,autoincrement"`
		OrgID         int64     `bun:"organization_id"`
		CustomerName  string    `bun:"customer_name"`
		CustomerEmail string    `bun:"customer_email"`
		Status        string    `bun:"status"`
		TotalCents    int64     `bun:"total_cents"`
		CreatedAt     time.Time `bun:"created_at"`
	}

	orderItemRow struct {
		bun.BaseModel `bun:"table:order_items,alias:oi"`

		OrderID   int64 `bun:"order_id"`
		ProductID int64 `bun:"product_id"`
		Quantity  int   `bun:"quantity"`
		UnitCents int64 `bun:"unit_cents"`
	}
)
