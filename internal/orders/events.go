package orders

import "time"

type EventKind string

const (
	KindOrderCreated  EventKind = "order.created"
	KindItemsUpdated  EventKind = "order.items_updated"
	KindStatusChanged EventKind = "order.status_changed"
	KindItemReceived  EventKind = "order.item_received"
)

// Event is one mutating action taken against an order. The set of variants is
// closed: fields that only apply to one kind live on that kind's struct, so a
// status transition cannot carry item fields and vice versa.
type Event interface {
	Kind() EventKind
}

type OrderCreated struct {
	ItemCount int
}

func (OrderCreated) Kind() EventKind { return KindOrderCreated }

type ItemsUpdated struct {
	ItemCount int
}

func (ItemsUpdated) Kind() EventKind { return KindItemsUpdated }

type StatusChanged struct {
	From   OrderStatus
	To     OrderStatus
	Reason string
}

func (StatusChanged) Kind() EventKind { return KindStatusChanged }

type ItemReceived struct {
	ItemID     string
	ProductSKU string
	Quantity   float64
	Note       string
}

func (ItemReceived) Kind() EventKind { return KindItemReceived }

// EventRecord is the flattened, persisted form of an Event. Records are
// appended once and never updated or deleted. At is assigned by the database
// server clock, not the caller.
type EventRecord struct {
	ID         string      `json:"id"`
	OrderID    string      `json:"orderId"`
	Kind       EventKind   `json:"kind"`
	Actor      Actor       `json:"actor"`
	At         time.Time   `json:"at"`
	FromStatus OrderStatus `json:"fromStatus,omitempty"`
	ToStatus   OrderStatus `json:"toStatus,omitempty"`
	ItemID     string      `json:"itemId,omitempty"`
	ProductSKU string      `json:"productSku,omitempty"`
	Quantity   float64     `json:"quantity,omitempty"`
	ItemCount  int         `json:"itemCount,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Note       string      `json:"note,omitempty"`
}

// newRecord flattens an event variant for storage. The id comes from the
// service's generator; At stays zero until the database assigns it.
func newRecord(id, orderID string, actor Actor, ev Event) EventRecord {
	rec := EventRecord{
		ID:      id,
		OrderID: orderID,
		Kind:    ev.Kind(),
		Actor:   actor,
	}
	switch e := ev.(type) {
	case OrderCreated:
		rec.ItemCount = e.ItemCount
	case ItemsUpdated:
		rec.ItemCount = e.ItemCount
	case StatusChanged:
		rec.FromStatus = e.From
		rec.ToStatus = e.To
		rec.Reason = e.Reason
	case ItemReceived:
		rec.ItemID = e.ItemID
		rec.ProductSKU = e.ProductSKU
		rec.Quantity = e.Quantity
		rec.Note = e.Note
	}
	return rec
}
