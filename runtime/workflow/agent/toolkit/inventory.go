package toolkit

import (
	"context"
	"encoding/json"

	"github.com/loomworks/loom/runtime/workflow/store"
)

// InventoryTools exposes the read-only product and warehouse lookups,
// scoped to the agent's owning organization.
func InventoryTools(commerce store.CommerceStore, orgID string) []Tool {
	return []Tool{
		{
			Name:        "search_products",
			Description: "Search the product catalog by name or SKU. Returns products with their stock totals.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Text to match against product name or SKU"},
					"limit": {"type": "integer", "minimum": 1, "maximum": 100}
				},
				"additionalProperties": false
			}`),
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				q := store.ProductQuery{
					Query: argString(args, "query", ""),
					Limit: argInt(args, "limit", 0),
				}
				products, err := commerce.SearchProducts(ctx, orgID, q)
				if err != nil {
					return "", &ToolError{Tool: "search_products", Message: "product search failed", Cause: err}
				}
				stock, err := commerce.ProductStock(ctx, orgID)
				if err != nil {
					return "", &ToolError{Tool: "search_products", Message: "stock lookup failed", Cause: err}
				}
				totals := make(map[string]int, len(stock))
				for _, row := range stock {
					totals[row.ProductID] += row.Quantity
				}
				type productWithStock struct {
					store.Product
					TotalStock int `json:"totalStock"`
				}
				out := make([]productWithStock, 0, len(products))
				for _, p := range products {
					out = append(out, productWithStock{Product: p, TotalStock: totals[p.ID]})
				}
				return jsonResult("search_products", out)
			},
		},
		{
			Name:        "list_warehouses",
			Description: "List the organization's warehouses.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {},
				"additionalProperties": false
			}`),
			Execute: func(ctx context.Context, _ map[string]any) (string, error) {
				warehouses, err := commerce.ListWarehouses(ctx, orgID)
				if err != nil {
					return "", &ToolError{Tool: "list_warehouses", Message: "warehouse lookup failed", Cause: err}
				}
				return jsonResult("list_warehouses", warehouses)
			},
		},
	}
}
