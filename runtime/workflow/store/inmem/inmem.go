// Package inmem provides in-memory store implementations for tests and
// local development. Data lives in process memory and is lost on exit;
// production deployments use the bun-backed Postgres store.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/store"
	"github.com/loomworks/loom/runtime/workflow/vault"
)

type (
	// WorkflowStore keeps workflows in a map keyed by org and workflow id.
	WorkflowStore struct {
		mu        sync.RWMutex
		workflows map[string]*graph.Workflow
	}

	// CredentialStore keeps encrypted credentials and decrypts through the
	// provided cipher on demand.
	CredentialStore struct {
		mu     sync.RWMutex
		cipher *vault.Cipher
		creds  map[string]graph.Credential
	}

	// CommerceStore keeps products, warehouses, stock, and orders in
	// slices guarded by one lock.
	CommerceStore struct {
		mu         sync.RWMutex
		products   []store.Product
		warehouses []store.Warehouse
		stock      []store.Stock
		orders     []store.Order
	}
)

// NewWorkflowStore returns an empty workflow store.
func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{workflows: make(map[string]*graph.Workflow)}
}

// Put stores or replaces a workflow.
func (s *WorkflowStore) Put(w *graph.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[w.OrgID+"/"+w.ID] = w
}

// Workflow implements store.WorkflowStore.
func (s *WorkflowStore) Workflow(_ context.Context, orgID, workflowID string) (*graph.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[orgID+"/"+workflowID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return w, nil
}

// NewCredentialStore returns an empty credential store decrypting through
// cipher.
func NewCredentialStore(cipher *vault.Cipher) *CredentialStore {
	return &CredentialStore{cipher: cipher, creds: make(map[string]graph.Credential)}
}

// Put encrypts value and stores the credential.
func (s *CredentialStore) Put(cred graph.Credential, value string) error {
	sealed, err := s.cipher.Encrypt(value)
	if err != nil {
		return err
	}
	cred.EncryptedValue = sealed
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.ID] = cred
	return nil
}

// Secret implements store.CredentialStore. Foreign-tenant and undecryptable
// credentials both surface as ErrNotFound.
func (s *CredentialStore) Secret(_ context.Context, orgID, credentialID string) (string, error) {
	s.mu.RLock()
	cred, ok := s.creds[credentialID]
	s.mu.RUnlock()
	if !ok || cred.OrgID != orgID {
		return "", store.ErrNotFound
	}
	plain, err := s.cipher.Decrypt(cred.EncryptedValue)
	if err != nil {
		return "", store.ErrNotFound
	}
	return plain, nil
}

// NewCommerceStore returns an empty commerce store.
func NewCommerceStore() *CommerceStore {
	return &CommerceStore{}
}

// SeedProducts adds products.
func (s *CommerceStore) SeedProducts(products ...store.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, products...)
}

// SeedWarehouses adds warehouses.
func (s *CommerceStore) SeedWarehouses(whs ...store.Warehouse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warehouses = append(s.warehouses, whs...)
}

// SeedStock adds stock rows.
func (s *CommerceStore) SeedStock(rows ...store.Stock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock = append(s.stock, rows...)
}

// SeedOrders adds orders.
func (s *CommerceStore) SeedOrders(orders ...store.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, orders...)
}

// SearchProducts implements store.CommerceStore.
func (s *CommerceStore) SearchProducts(_ context.Context, orgID string, q store.ProductQuery) ([]store.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultQueryLimit
	}
	needle := strings.ToLower(q.Query)
	var out []store.Product
	for _, p := range s.products {
		if p.OrgID != orgID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.SKU), needle) {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListWarehouses implements store.CommerceStore.
func (s *CommerceStore) ListWarehouses(_ context.Context, orgID string) ([]store.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Warehouse
	for _, w := range s.warehouses {
		if w.OrgID == orgID {
			out = append(out, w)
		}
	}
	return out, nil
}

// ProductStock implements store.CommerceStore.
func (s *CommerceStore) ProductStock(_ context.Context, orgID string) ([]store.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := make(map[string]struct{})
	for _, p := range s.products {
		if p.OrgID == orgID {
			owned[p.ID] = struct{}{}
		}
	}
	var out []store.Stock
	for _, row := range s.stock {
		if _, ok := owned[row.ProductID]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// SearchOrders implements store.CommerceStore.
func (s *CommerceStore) SearchOrders(_ context.Context, orgID string, q store.OrderQuery) ([]store.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultQueryLimit
	}
	needle := strings.ToLower(q.Query)
	var out []store.Order
	for _, o := range s.orders {
		if o.OrgID != orgID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(o.ID), needle) &&
			!strings.Contains(strings.ToLower(o.CustomerName), needle) &&
			!strings.Contains(strings.ToLower(o.CustomerEmail), needle) {
			continue
		}
		out = append(out, o)
		if len(out) == limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateOrderStatus implements store.CommerceStore. Orders of foreign
// tenants return ErrNotFound; no write occurs.
func (s *CommerceStore) UpdateOrderStatus(_ context.Context, orgID, orderID string, newStatus store.OrderStatus) (*store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID != orderID {
			continue
		}
		if s.orders[i].OrgID != orgID {
			return nil, store.ErrNotFound
		}
		s.orders[i].Status = newStatus
		updated := s.orders[i]
		return &updated, nil
	}
	return nil, store.ErrNotFound
}

// OrderStats implements store.CommerceStore.
func (s *CommerceStore) OrderStats(_ context.Context, orgID string) (store.OrderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := store.OrderStats{ByStatus: make(map[store.OrderStatus]int)}
	for _, o := range s.orders {
		if o.OrgID != orgID {
			continue
		}
		stats.Total++
		stats.ByStatus[o.Status]++
		if o.Status != store.OrderCancelled {
			stats.RevenueCents += o.TotalCents
		}
	}
	return stats, nil
}
