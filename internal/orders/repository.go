package orders

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists orders and their append-only event trail. Mutating
// methods take the event record produced by the same logical operation and
// must apply both writes in one transaction.
type Repository interface {
	EnsureSchema(ctx context.Context) error
	CreateOrder(ctx context.Context, order PurchaseOrder, rec EventRecord) (PurchaseOrder, EventRecord, error)
	SaveItems(ctx context.Context, orderID string, items []OrderItem, rec EventRecord) (PurchaseOrder, EventRecord, error)
	UpdateStatus(ctx context.Context, orderID string, to OrderStatus, rec EventRecord) (PurchaseOrder, EventRecord, error)
	GetOrder(ctx context.Context, orderID string) (PurchaseOrder, error)
	ListOrders(ctx context.Context, limit int) ([]PurchaseOrder, error)
	ListEvents(ctx context.Context, orderID string, limit int) ([]EventRecord, error)
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

const createOrdersTableSQL = `
CREATE TABLE IF NOT EXISTS purchase_orders (
  id text PRIMARY KEY,
  status text NOT NULL,
  supplier text NOT NULL DEFAULT '',
  created_by text NOT NULL,
  items jsonb NOT NULL DEFAULT '[]',
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now()
)`

const createOrderEventsTableSQL = `
CREATE TABLE IF NOT EXISTS order_events (
  event_id text PRIMARY KEY,
  order_id text NOT NULL,
  kind text NOT NULL,
  actor_uid text NOT NULL DEFAULT '',
  actor_name text NOT NULL DEFAULT '',
  actor_email text NOT NULL DEFAULT '',
  from_status text NOT NULL DEFAULT '',
  to_status text NOT NULL DEFAULT '',
  item_id text NOT NULL DEFAULT '',
  product_sku text NOT NULL DEFAULT '',
  quantity double precision NOT NULL DEFAULT 0,
  item_count integer NOT NULL DEFAULT 0,
  reason text NOT NULL DEFAULT '',
  note text NOT NULL DEFAULT '',
  at timestamptz NOT NULL DEFAULT now()
)`

const createOrderEventsIndexSQL = `
CREATE INDEX IF NOT EXISTS order_events_order_id_at_idx
ON order_events (order_id, at DESC)`

const insertEventSQL = `
INSERT INTO order_events (
  event_id, order_id, kind,
  actor_uid, actor_name, actor_email,
  from_status, to_status,
  item_id, product_sku, quantity, item_count,
  reason, note
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING at
`

const selectOrderSQL = `
SELECT id, status, supplier, created_by, items, created_at, updated_at
FROM purchase_orders
WHERE id = $1
`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createOrdersTableSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createOrderEventsTableSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createOrderEventsIndexSQL); err != nil {
		return err
	}
	return nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order PurchaseOrder, rec EventRecord) (PurchaseOrder, EventRecord, error) {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO purchase_orders (id, status, supplier, created_by, items)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		order.ID, order.Status, order.Supplier, order.CreatedBy, itemsJSON,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}

	rec, err = appendEvent(ctx, tx, rec)
	if err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}
	return order, rec, nil
}

func (r *PostgresRepository) SaveItems(ctx context.Context, orderID string, items []OrderItem, rec EventRecord) (PurchaseOrder, EventRecord, error) {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}
	defer tx.Rollback(ctx)

	var order PurchaseOrder
	var rawItems []byte
	err = tx.QueryRow(ctx,
		`UPDATE purchase_orders
		 SET items = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING id, status, supplier, created_by, items, created_at, updated_at`,
		orderID, itemsJSON,
	).Scan(&order.ID, &order.Status, &order.Supplier, &order.CreatedBy, &rawItems, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, EventRecord{}, ErrOrderNotFound
		}
		return PurchaseOrder{}, EventRecord{}, err
	}
	if err := json.Unmarshal(rawItems, &order.Items); err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}

	rec, err = appendEvent(ctx, tx, rec)
	if err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}
	return order, rec, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, orderID string, to OrderStatus, rec EventRecord) (PurchaseOrder, EventRecord, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}
	defer tx.Rollback(ctx)

	var order PurchaseOrder
	var rawItems []byte
	err = tx.QueryRow(ctx,
		`UPDATE purchase_orders
		 SET status = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING id, status, supplier, created_by, items, created_at, updated_at`,
		orderID, to,
	).Scan(&order.ID, &order.Status, &order.Supplier, &order.CreatedBy, &rawItems, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, EventRecord{}, ErrOrderNotFound
		}
		return PurchaseOrder{}, EventRecord{}, err
	}
	if err := json.Unmarshal(rawItems, &order.Items); err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}

	rec, err = appendEvent(ctx, tx, rec)
	if err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PurchaseOrder{}, EventRecord{}, err
	}
	return order, rec, nil
}

func appendEvent(ctx context.Context, tx pgx.Tx, rec EventRecord) (EventRecord, error) {
	err := tx.QueryRow(ctx, insertEventSQL,
		rec.ID, rec.OrderID, rec.Kind,
		rec.Actor.UID, rec.Actor.DisplayName, rec.Actor.Email,
		rec.FromStatus, rec.ToStatus,
		rec.ItemID, rec.ProductSKU, rec.Quantity, rec.ItemCount,
		rec.Reason, rec.Note,
	).Scan(&rec.At)
	if err != nil {
		return EventRecord{}, err
	}
	return rec, nil
}

func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (PurchaseOrder, error) {
	var order PurchaseOrder
	var rawItems []byte
	err := r.Pool.QueryRow(ctx, selectOrderSQL, orderID).Scan(
		&order.ID, &order.Status, &order.Supplier, &order.CreatedBy, &rawItems, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrOrderNotFound
		}
		return PurchaseOrder{}, err
	}
	if err := json.Unmarshal(rawItems, &order.Items); err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

func (r *PostgresRepository) ListOrders(ctx context.Context, limit int) ([]PurchaseOrder, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.Pool.Query(ctx,
		`SELECT id, status, supplier, created_by, items, created_at, updated_at
		 FROM purchase_orders
		 ORDER BY updated_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]PurchaseOrder, 0, limit)
	for rows.Next() {
		var order PurchaseOrder
		var rawItems []byte
		if err := rows.Scan(&order.ID, &order.Status, &order.Supplier, &order.CreatedBy, &rawItems, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawItems, &order.Items); err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListEvents(ctx context.Context, orderID string, limit int) ([]EventRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.Pool.Query(ctx,
		`SELECT event_id, order_id, kind,
		        actor_uid, actor_name, actor_email,
		        from_status, to_status,
		        item_id, product_sku, quantity, item_count,
		        reason, note, at
		 FROM order_events
		 WHERE order_id = $1
		 ORDER BY at DESC, event_id DESC
		 LIMIT $2`,
		orderID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]EventRecord, 0, limit)
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(
			&rec.ID, &rec.OrderID, &rec.Kind,
			&rec.Actor.UID, &rec.Actor.DisplayName, &rec.Actor.Email,
			&rec.FromStatus, &rec.ToStatus,
			&rec.ItemID, &rec.ProductSKU, &rec.Quantity, &rec.ItemCount,
			&rec.Reason, &rec.Note, &rec.At,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
