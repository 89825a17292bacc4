package bun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/store"
	"github.com/loomworks/loom/runtime/workflow/vault"
)

type (
	// Options configures the Postgres-backed stores.
	Options struct {
		// DB is the bun database handle. Required.
		DB *bun.DB
		// Cipher decrypts stored credentials. Required for Secret.
		Cipher *vault.Cipher
	}

	// Stores implements store.WorkflowStore, store.CredentialStore, and
	// store.CommerceStore on one Postgres database.
	Stores struct {
		db     *bun.DB
		cipher *vault.Cipher
	}
)

// OpenDB connects to Postgres and returns a bun handle. The caller owns the
// connection lifecycle.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// New builds the Postgres-backed stores.
func New(opts Options) (*Stores, error) {
	if opts.DB == nil {
		return nil, errors.New("bun: database handle is required")
	}
	if opts.Cipher == nil {
		return nil, errors.New("bun: vault cipher is required")
	}
	return &Stores{db: opts.DB, cipher: opts.Cipher}, nil
}

// Workflow implements store.WorkflowStore.
func (s *Stores) Workflow(ctx context.Context, orgID, workflowID string) (*graph.Workflow, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	wfID, err := parseID(workflowID)
	if err != nil {
		return nil, store.ErrNotFound
	}

	var wf workflowRow
	err = s.db.NewSelect().Model(&wf).
		Where("w.id = ?", wfID).
		Where("w.organization_id = ?", org).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("bun: load workflow: %w", err)
	}

	var nodes []nodeRow
	if err := s.db.NewSelect().Model(&nodes).
		Where("n.workflow_id = ?", wfID).
		Order("n.id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bun: load nodes: %w", err)
	}

	var conns []connectionRow
	if err := s.db.NewSelect().Model(&conns).
		Where("c.workflow_id = ?", wfID).
		Order("c.id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bun: load connections: %w", err)
	}

	out := &graph.Workflow{
		ID:          formatID(wf.ID),
		OrgID:       formatID(wf.OrgID),
		Name:        wf.Name,
		Description: wf.Description,
		Status:      wf.Status,
	}
	for _, n := range nodes {
		node := graph.Node{
			ID:         formatID(n.ID),
			WorkflowID: formatID(n.WorkflowID),
			Kind:       graph.NodeKind(n.Kind),
			Position:   graph.Position{X: n.PositionX, Y: n.PositionY},
			Data:       n.Data,
		}
		if n.CredentialID != nil {
			node.CredentialID = formatID(*n.CredentialID)
		}
		out.Nodes = append(out.Nodes, node)
	}
	for _, c := range conns {
		out.Connections = append(out.Connections, graph.Connection{
			ID:         formatID(c.ID),
			WorkflowID: formatID(c.WorkflowID),
			FromNodeID: formatID(c.FromNodeID),
			ToNodeID:   formatID(c.ToNodeID),
			FromOutput: c.FromOutput,
			ToInput:    c.ToInput,
		})
	}
	return out, nil
}

// Secret implements store.CredentialStore. Missing rows, foreign tenants,
// and undecryptable values all surface as store.ErrNotFound.
func (s *Stores) Secret(ctx context.Context, orgID, credentialID string) (string, error) {
	org, err := parseID(orgID)
	if err != nil {
		return "", store.ErrNotFound
	}
	credID, err := parseID(credentialID)
	if err != nil {
		return "", store.ErrNotFound
	}

	var cred credentialRow
	err = s.db.NewSelect().Model(&cred).
		Where("cr.id = ?", credID).
		Where("cr.organization_id = ?", org).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("bun: load credential: %w", err)
	}
	plain, err := s.cipher.Decrypt(cred.EncryptedValue)
	if err != nil {
		return "", store.ErrNotFound
	}
	return plain, nil
}

// SearchProducts implements store.CommerceStore.
func (s *Stores) SearchProducts(ctx context.Context, orgID string, q store.ProductQuery) ([]store.Product, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultQueryLimit
	}

	query := s.db.NewSelect().Model((*productRow)(nil)).
		ColumnExpr("p.*").
		ColumnExpr("pr.price_cents").
		ColumnExpr("pr.currency").
		Join("LEFT JOIN product_prices AS pr ON pr.product_id = p.id").
		Where("p.organization_id = ?", org).
		Order("p.name ASC").
		Limit(limit)
	if q.Query != "" {
		pattern := "%" + q.Query + "%"
		query = query.Where("(p.name ILIKE ? OR p.sku ILIKE ?)", pattern, pattern)
	}

	var rows []productRow
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("bun: search products: %w", err)
	}

	out := make([]store.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Product{
			ID:          formatID(r.ID),
			OrgID:       orgID,
			Name:        r.Name,
			SKU:         r.SKU,
			Description: r.Description,
			PriceCents:  r.PriceCents,
			Currency:    r.Currency,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

// ListWarehouses implements store.CommerceStore.
func (s *Stores) ListWarehouses(ctx context.Context, orgID string) ([]store.Warehouse, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var rows []warehouseRow
	if err := s.db.NewSelect().Model(&rows).
		Where("wh.organization_id = ?", org).
		Order("wh.name ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bun: list warehouses: %w", err)
	}
	out := make([]store.Warehouse, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Warehouse{
			ID:       formatID(r.ID),
			OrgID:    orgID,
			Name:     r.Name,
			Location: r.Location,
		})
	}
	return out, nil
}

// ProductStock implements store.CommerceStore. Rows are scoped to the
// organization through the owning product.
func (s *Stores) ProductStock(ctx context.Context, orgID string) ([]store.Stock, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var rows []stockRow
	if err := s.db.NewSelect().Model(&rows).
		Join("JOIN products AS p ON p.id = s.product_id").
		Where("p.organization_id = ?", org).
		Order("s.product_id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bun: list stock: %w", err)
	}
	out := make([]store.Stock, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Stock{
			ProductID:    formatID(r.ProductID),
			WarehouseID:  formatID(r.WarehouseID),
			Quantity:     r.Quantity,
			ReorderLevel: r.ReorderLevel,
		})
	}
	return out, nil
}

// SearchOrders implements store.CommerceStore.
func (s *Stores) SearchOrders(ctx context.Context, orgID string, q store.OrderQuery) ([]store.Order, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultQueryLimit
	}

	query := s.db.NewSelect().Model((*orderRow)(nil)).
		Where("o.organization_id = ?", org).
		Order("o.created_at DESC").
		Limit(limit)
	if q.Status != "" {
		query = query.Where("o.status = ?", string(q.Status))
	}
	if q.Query != "" {
		pattern := "%" + q.Query + "%"
		query = query.Where("(o.id::text = ? OR o.customer_name ILIKE ? OR o.customer_email ILIKE ?)",
			q.Query, pattern, pattern)
	}

	var rows []orderRow
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("bun: search orders: %w", err)
	}
	items, err := s.orderItems(ctx, rows)
	if err != nil {
		return nil, err
	}
	out := make([]store.Order, 0, len(rows))
	for _, r := range rows {
		order := orderFromRow(r, orgID)
		order.Items = items[r.ID]
		out = append(out, order)
	}
	return out, nil
}

// orderItems loads the line items of the given orders in one query.
func (s *Stores) orderItems(ctx context.Context, orders []orderRow) (map[int64][]store.OrderItem, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var rows []orderItemRow
	if err := s.db.NewSelect().Model(&rows).
		Where("oi.order_id IN (?)", bun.In(ids)).
		Order("oi.order_id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bun: load order items: %w", err)
	}
	out := make(map[int64][]store.OrderItem, len(orders))
	for _, r := range rows {
		out[r.OrderID] = append(out[r.OrderID], store.OrderItem{
			OrderID:   formatID(r.OrderID),
			ProductID: formatID(r.ProductID),
			Quantity:  r.Quantity,
			UnitCents: r.UnitCents,
		})
	}
	return out, nil
}

// UpdateOrderStatus implements store.CommerceStore. Foreign-tenant orders
// are indistinguishable from missing ones.
func (s *Stores) UpdateOrderStatus(ctx context.Context, orgID, orderID string, newStatus store.OrderStatus) (*store.Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("bun: invalid order status %q", newStatus)
	}
	org, err := parseID(orgID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	oid, err := parseID(orderID)
	if err != nil {
		return nil, store.ErrNotFound
	}

	var row orderRow
	res, err := s.db.NewUpdate().Model(&row).
		Set("status = ?", string(newStatus)).
		Where("o.id = ?", oid).
		Where("o.organization_id = ?", org).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("bun: update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("bun: update order: %w", err)
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	order := orderFromRow(row, orgID)
	return &order, nil
}

// OrderStats implements store.CommerceStore. Cancelled orders count toward
// the totals but contribute no revenue.
func (s *Stores) OrderStats(ctx context.Context, orgID string) (store.OrderStats, error) {
	org, err := parseID(orgID)
	if err != nil {
		return store.OrderStats{}, store.ErrNotFound
	}

	var rows []struct {
		Status  string `bun:"status"`
		Count   int    `bun:"count"`
		Revenue int64  `bun:"revenue"`
	}
	err = s.db.NewSelect().Model((*orderRow)(nil)).
		ColumnExpr("o.status").
		ColumnExpr("count(*) AS count").
		ColumnExpr("coalesce(sum(o.total_cents), 0) AS revenue").
		Where("o.organization_id = ?", org).
		GroupExpr("o.status").
		Scan(ctx, &rows)
	if err != nil {
		return store.OrderStats{}, fmt.Errorf("bun: order stats: %w", err)
	}

	stats := store.OrderStats{ByStatus: make(map[store.OrderStatus]int)}
	for _, r := range rows {
		st := store.OrderStatus(r.Status)
		stats.Total += r.Count
		stats.ByStatus[st] = r.Count
		if st != store.OrderCancelled {
			stats.RevenueCents += r.Revenue
		}
	}
	return stats, nil
}

func orderFromRow(r orderRow, orgID string) store.Order {
	return store.Order{
		ID:            formatID(r.ID),
		OrgID:         orgID,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		Status:        store.OrderStatus(r.Status),
		TotalCents:    r.TotalCents,
		CreatedAt:     r.CreatedAt,
	}
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
