package reconcile

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/muraturkgeldi/qrstock/internal/contracts"
	"github.com/muraturkgeldi/qrstock/internal/sharding"
)

// Unapplied events are audit rows the stock sink has not logged yet. The
// grace interval keeps freshly committed events out of the sweep while their
// publish is still in flight.
const listUnappliedEventsSQL = `
SELECT e.event_id, e.order_id, e.kind, e.actor_uid, e.actor_name, e.actor_email,
       e.from_status, e.to_status, e.item_id, e.product_sku, e.quantity,
       e.item_count, e.reason, e.note, e.at
FROM order_events e
LEFT JOIN order_event_log l ON l.event_id = e.event_id
WHERE l.event_id IS NULL AND e.at < now() - $1::interval
ORDER BY e.at ASC
LIMIT $2;`

const countOrphanEventsSQL = `
SELECT count(*)
FROM order_events e
LEFT JOIN purchase_orders o ON o.id = e.order_id
WHERE o.id IS NULL;`

const countSilentOrdersSQL = `
SELECT count(*)
FROM purchase_orders o
WHERE NOT EXISTS (SELECT 1 FROM order_events e WHERE e.order_id = o.id)
  AND o.updated_at < now() - $1::interval;`

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

// ListUnappliedEvents returns events older than grace that the stock sink has
// not recorded, oldest first.
func (r *PostgresRepository) ListUnappliedEvents(ctx context.Context, grace time.Duration, limit int) ([]contracts.OrderEventMessage, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := r.Pool.Query(ctx, listUnappliedEventsSQL, grace.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.OrderEventMessage
	for rows.Next() {
		var msg contracts.OrderEventMessage
		if err := rows.Scan(
			&msg.EventID, &msg.OrderID, &msg.Kind, &msg.ActorUID, &msg.ActorName, &msg.ActorEmail,
			&msg.FromStatus, &msg.ToStatus, &msg.ItemID, &msg.ProductSKU, &msg.Quantity,
			&msg.ItemCount, &msg.Reason, &msg.Note, &msg.At,
		); err != nil {
			return nil, err
		}
		msg.ShardID = sharding.GetShardID(msg.OrderID)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// CountOrphanEvents counts audit rows whose order no longer exists.
func (r *PostgresRepository) CountOrphanEvents(ctx context.Context) (int64, error) {
	var count int64
	err := r.Pool.QueryRow(ctx, countOrphanEventsSQL).Scan(&count)
	return count, err
}

// CountSilentOrders counts orders past the grace interval with no audit
// trail at all. Every mutation appends an event in the same transaction, so
// a non-zero count means manual rows or a schema migration gone wrong.
func (r *PostgresRepository) CountSilentOrders(ctx context.Context, grace time.Duration) (int64, error) {
	var count int64
	err := r.Pool.QueryRow(ctx, countSilentOrdersSQL, grace.String()).Scan(&count)
	return count, err
}
