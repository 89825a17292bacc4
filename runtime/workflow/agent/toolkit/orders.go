package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loomworks/loom/runtime/workflow/store"
)

// OrderTools exposes order search, status updates, and aggregate stats,
// scoped to the agent's owning organization. Status updates on orders of
// other tenants report the order as not found; no write occurs.
func OrderTools(commerce store.CommerceStore, orgID string) []Tool {
	return []Tool{
		{
			Name:        "search_orders",
			Description: "Search orders by id, customer name, or email, optionally filtered by status.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string"},
					"status": {"type": "string", "enum": ["pending", "processing", "shipped", "delivered", "cancelled"]},
					"limit": {"type": "integer", "minimum": 1, "maximum": 100}
				},
				"additionalProperties": false
			}`),
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				q := store.OrderQuery{
					Query:  argString(args, "query", ""),
					Status: store.OrderStatus(argString(args, "status", "")),
					Limit:  argInt(args, "limit", 0),
				}
				orders, err := commerce.SearchOrders(ctx, orgID, q)
				if err != nil {
					return "", &ToolError{Tool: "search_orders", Message: "order search failed", Cause: err}
				}
				return jsonResult("search_orders", orders)
			},
		},
		{
			Name:        "update_order_status",
			Description: "Transition an order to a new status.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"orderId": {"type": "string"},
					"newStatus": {"type": "string", "enum": ["pending", "processing", "shipped", "delivered", "cancelled"]}
				},
				"required": ["orderId", "newStatus"],
				"additionalProperties": false
			}`),
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				orderID := argString(args, "orderId", "")
				newStatus := store.OrderStatus(argString(args, "newStatus", ""))
				if !newStatus.Valid() {
					return "", &ToolError{Tool: "update_order_status", Message: fmt.Sprintf("status %q is not valid", newStatus)}
				}
				order, err := commerce.UpdateOrderStatus(ctx, orgID, orderID, newStatus)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return "", &ToolError{Tool: "update_order_status", Message: fmt.Sprintf("Order #%s not found", orderID)}
					}
					return "", &ToolError{Tool: "update_order_status", Message: "order update failed", Cause: err}
				}
				return jsonResult("update_order_status", order)
			},
		},
		{
			Name:        "get_order_stats",
			Description: "Aggregate order counts and revenue by status.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {},
				"additionalProperties": false
			}`),
			Execute: func(ctx context.Context, _ map[string]any) (string, error) {
				stats, err := commerce.OrderStats(ctx, orgID)
				if err != nil {
					return "", &ToolError{Tool: "get_order_stats", Message: "stats lookup failed", Cause: err}
				}
				return jsonResult("get_order_stats", stats)
			},
		},
	}
}
