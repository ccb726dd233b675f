package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderReader loads a mirrored order by id.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (OrderInput, error)
}

// PostgresOrderMirror keeps a copy of submitted orders in PostgreSQL. A
// later save of the same order id replaces the status and payload, which is
// how a pending order becomes paid.
type PostgresOrderMirror struct {
	pool *pgxpool.Pool
}

func NewPostgresOrderMirror(pool *pgxpool.Pool) *PostgresOrderMirror {
	return &PostgresOrderMirror{pool: pool}
}

func (m *PostgresOrderMirror) AddOrder(ctx context.Context, order OrderInput) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order %s: %w", order.ID, err)
	}
	_, err = m.pool.Exec(ctx, `
		INSERT INTO storefront_orders (id, store_id, status, payment_method, total, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, payload = EXCLUDED.payload, updated_at = NOW()
	`, order.ID, order.StoreID, string(order.Status), string(order.Payment.Method),
		order.Price.StringFixed(2), payload, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	return nil
}

// GetOrder loads a mirrored order.
func (m *PostgresOrderMirror) GetOrder(ctx context.Context, id string) (OrderInput, error) {
	var payload []byte
	err := m.pool.QueryRow(ctx, `SELECT payload FROM storefront_orders WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		return OrderInput{}, fmt.Errorf("order %s: %w", id, notFoundOr(err))
	}
	var order OrderInput
	if err := json.Unmarshal(payload, &order); err != nil {
		return OrderInput{}, fmt.Errorf("failed to decode order %s: %w", id, err)
	}
	return order, nil
}

// MemoryOrderMirror is an in-process mirror for development and tests.
type MemoryOrderMirror struct {
	mu     sync.RWMutex
	orders map[string]OrderInput
}

func NewMemoryOrderMirror() *MemoryOrderMirror {
	return &MemoryOrderMirror{orders: make(map[string]OrderInput)}
}

func (m *MemoryOrderMirror) AddOrder(_ context.Context, order OrderInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	return nil
}

func (m *MemoryOrderMirror) GetOrder(_ context.Context, id string) (OrderInput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return OrderInput{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return order, nil
}
