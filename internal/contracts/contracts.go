package contracts

import "time"

// OrderEventMessage is the order audit event as published to JetStream and
// consumed by the stock sink and the web page-cache invalidator. It is the
// flattened wire form of the domain event variants; optional fields are only
// present for the event kinds that define them.
type OrderEventMessage struct {
	EventID    string    `json:"event_id"`
	OrderID    string    `json:"order_id"`
	Kind       string    `json:"kind"`
	ActorUID   string    `json:"actor_uid"`
	ActorName  string    `json:"actor_name"`
	ActorEmail string    `json:"actor_email"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	ProductSKU string    `json:"product_sku,omitempty"`
	Quantity   float64   `json:"quantity,omitempty"`
	ItemCount  int       `json:"item_count,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Note       string    `json:"note,omitempty"`
	At         time.Time `json:"at"`
	ShardID    int       `json:"shard_id"`
}
