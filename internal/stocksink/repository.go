package stocksink

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/muraturkgeldi/qrstock/internal/contracts"
)

const createEventLogSQL = `
CREATE TABLE IF NOT EXISTS order_event_log (
  event_id text PRIMARY KEY,
  order_id text NOT NULL,
  kind text NOT NULL,
  actor_uid text NOT NULL DEFAULT '',
  product_sku text NOT NULL DEFAULT '',
  quantity double precision NOT NULL DEFAULT 0,
  stream_seq bigint NOT NULL DEFAULT 0,
  occurred_at timestamptz NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now()
)`

const createStockLevelsSQL = `
CREATE TABLE IF NOT EXISTS stock_levels (
  product_sku text PRIMARY KEY,
  on_hand double precision NOT NULL DEFAULT 0,
  updated_at timestamptz NOT NULL DEFAULT now()
)`

const insertEventLogSQL = `
INSERT INTO order_event_log (event_id, order_id, kind, actor_uid, product_sku, quantity, stream_seq, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (event_id) DO NOTHING
`

const bumpStockLevelSQL = `
INSERT INTO stock_levels (product_sku, on_hand, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (product_sku) DO UPDATE
SET on_hand = stock_levels.on_hand + EXCLUDED.on_hand,
    updated_at = now()
`

type EventRepository struct {
	Pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{Pool: pool}
}

func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createEventLogSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createStockLevelsSQL); err != nil {
		return err
	}
	return nil
}

// ApplyEvent mirrors the event into the reporting log and, for received
// items, bumps the per-SKU on-hand level. The event-id conflict guard makes
// JetStream redelivery a no-op for both writes.
func (r *EventRepository) ApplyEvent(ctx context.Context, event contracts.OrderEventMessage, eventSeq uint64) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, insertEventLogSQL,
		event.EventID,
		event.OrderID,
		event.Kind,
		event.ActorUID,
		event.ProductSKU,
		event.Quantity,
		int64(eventSeq),
		event.At,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() > 0 && event.Kind == "order.item_received" && event.ProductSKU != "" {
		if _, err := tx.Exec(ctx, bumpStockLevelSQL, event.ProductSKU, event.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

type StockLevel struct {
	ProductSKU string  `json:"productSku"`
	OnHand     float64 `json:"onHand"`
}

func (r *EventRepository) ListStockLevels(ctx context.Context, limit int) ([]StockLevel, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.Pool.Query(ctx,
		`SELECT product_sku, on_hand
		 FROM stock_levels
		 ORDER BY product_sku
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]StockLevel, 0, limit)
	for rows.Next() {
		var level StockLevel
		if err := rows.Scan(&level.ProductSKU, &level.OnHand); err != nil {
			return nil, err
		}
		result = append(result, level)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
