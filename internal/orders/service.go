package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"strings"

	"github.com/muraturkgeldi/qrstock/internal/contracts"
	"github.com/muraturkgeldi/qrstock/internal/ids"
	"github.com/muraturkgeldi/qrstock/internal/platform/metrics"
	"github.com/muraturkgeldi/qrstock/internal/sharding"
	"github.com/nats-io/nuid"
)

var (
	ErrUIDMissing        = errors.New("uid is required")
	ErrNoItems           = errors.New("items are required")
	ErrOrderNotFound     = errors.New("order not found")
	ErrItemNotFound      = errors.New("order item not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrQuantityInvalid   = errors.New("quantity must be a positive number")
)

// UserLookup resolves an actor from the identity store. found is false when
// the uid is unknown; that is not an error for draft creation.
type UserLookup interface {
	LookupByUID(ctx context.Context, uid string) (actor Actor, found bool, err error)
}

type PublishFunc func(subject string, payload []byte) error

// Service owns every mutating operation against purchase orders. Each
// mutation overwrites order state and appends exactly one audit event in a
// single repository transaction; the JetStream publish afterwards is
// best-effort and covered by the reconcile sweep.
type Service struct {
	Repo       Repository
	Users      UserLookup
	Publish    PublishFunc
	NewOrderID func() string
	NewEventID func() string
}

func NewService(repo Repository, users UserLookup, publish PublishFunc) *Service {
	return &Service{
		Repo:       repo,
		Users:      users,
		Publish:    publish,
		NewOrderID: nuid.Next,
		NewEventID: ids.New,
	}
}

func (s *Service) CreateDraft(ctx context.Context, actor Actor, supplier string, items []OrderItem) (PurchaseOrder, error) {
	items = NormalizeItems(items)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = s.NewOrderID()
		}
	}

	order := PurchaseOrder{
		ID:        s.NewOrderID(),
		Status:    StatusDraft,
		Supplier:  strings.TrimSpace(supplier),
		CreatedBy: actor.UID,
		Items:     items,
	}
	rec := newRecord(s.NewEventID(), order.ID, actor, OrderCreated{ItemCount: len(items)})

	order, rec, err := s.Repo.CreateOrder(ctx, order, rec)
	if err != nil {
		return PurchaseOrder{}, err
	}
	metrics.OrdersCreated.Inc()
	s.publishEvent(rec)
	return order, nil
}

// BulkCreate creates a draft order on behalf of uid, resolving the actor from
// the identity store and falling back to the caller-supplied user info when
// the uid is unknown there.
func (s *Service) BulkCreate(ctx context.Context, uid string, items []OrderItem, userInfo Actor) (PurchaseOrder, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return PurchaseOrder{}, ErrUIDMissing
	}
	if len(items) == 0 {
		return PurchaseOrder{}, ErrNoItems
	}

	actor, found, err := s.Users.LookupByUID(ctx, uid)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !found {
		actor = userInfo
		actor.UID = uid
	}
	return s.CreateDraft(ctx, actor, "", items)
}

// UpdateItems overwrites the full items array of an order. Concurrent
// overwrites are last-write-wins; no reconciliation between actors.
func (s *Service) UpdateItems(ctx context.Context, actor Actor, orderID string, items []OrderItem) (PurchaseOrder, error) {
	if strings.TrimSpace(orderID) == "" {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	items = NormalizeItems(items)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = s.NewOrderID()
		}
	}

	rec := newRecord(s.NewEventID(), orderID, actor, ItemsUpdated{ItemCount: len(items)})
	order, rec, err := s.Repo.SaveItems(ctx, orderID, items, rec)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.publishEvent(rec)
	return order, nil
}

func (s *Service) ChangeStatus(ctx context.Context, actor Actor, orderID string, to OrderStatus, reason string) (PurchaseOrder, error) {
	if !IsValidStatus(to) {
		return PurchaseOrder{}, ErrInvalidStatus
	}
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !CanTransition(order.Status, to) {
		return PurchaseOrder{}, ErrInvalidTransition
	}

	rec := newRecord(s.NewEventID(), orderID, actor, StatusChanged{
		From:   order.Status,
		To:     to,
		Reason: strings.TrimSpace(reason),
	})
	order, rec, err = s.Repo.UpdateStatus(ctx, orderID, to, rec)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.publishEvent(rec)
	return order, nil
}

func (s *Service) ReceiveItem(ctx context.Context, actor Actor, orderID, itemID string, quantity float64, note string) (PurchaseOrder, error) {
	if quantity <= 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return PurchaseOrder{}, ErrQuantityInvalid
	}
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}

	var sku string
	found := false
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			order.Items[i].ReceivedQuantity += quantity
			sku = order.Items[i].ProductSKU
			found = true
			break
		}
	}
	if !found {
		return PurchaseOrder{}, ErrItemNotFound
	}
	items := NormalizeItems(order.Items)

	rec := newRecord(s.NewEventID(), orderID, actor, ItemReceived{
		ItemID:     itemID,
		ProductSKU: sku,
		Quantity:   quantity,
		Note:       strings.TrimSpace(note),
	})
	order, rec, err = s.Repo.SaveItems(ctx, orderID, items, rec)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.publishEvent(rec)
	return order, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (PurchaseOrder, error) {
	return s.Repo.GetOrder(ctx, orderID)
}

func (s *Service) List(ctx context.Context, limit int) ([]PurchaseOrder, error) {
	return s.Repo.ListOrders(ctx, limit)
}

func (s *Service) ListEvents(ctx context.Context, orderID string, limit int) ([]EventRecord, error) {
	return s.Repo.ListEvents(ctx, orderID, limit)
}

// publishEvent pushes the appended record to JetStream for the stock sink and
// page-cache invalidation. The record is already durable in Postgres; a
// publish failure is logged, not returned.
func (s *Service) publishEvent(rec EventRecord) {
	metrics.EventsAppended.WithLabelValues(string(rec.Kind)).Inc()
	if s.Publish == nil {
		return
	}
	msg := contracts.OrderEventMessage{
		EventID:    rec.ID,
		OrderID:    rec.OrderID,
		Kind:       string(rec.Kind),
		ActorUID:   rec.Actor.UID,
		ActorName:  rec.Actor.DisplayName,
		ActorEmail: rec.Actor.Email,
		FromStatus: string(rec.FromStatus),
		ToStatus:   string(rec.ToStatus),
		ItemID:     rec.ItemID,
		ProductSKU: rec.ProductSKU,
		Quantity:   rec.Quantity,
		ItemCount:  rec.ItemCount,
		Reason:     rec.Reason,
		Note:       rec.Note,
		At:         rec.At,
		ShardID:    sharding.GetShardID(rec.OrderID),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal order event %s: %v", rec.ID, err)
		return
	}
	if err := s.Publish(sharding.EventSubject(rec.OrderID), payload); err != nil {
		log.Printf("publish order event %s: %v", rec.ID, err)
	}
}
