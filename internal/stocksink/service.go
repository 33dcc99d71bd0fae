package stocksink

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/muraturkgeldi/qrstock/internal/contracts"
	"github.com/muraturkgeldi/qrstock/internal/platform/metrics"
)

var ErrInvalidEventPayload = errors.New("invalid event payload")
var ErrUnsupportedEventKind = errors.New("unsupported event kind")

var knownKinds = map[string]bool{
	"order.created":        true,
	"order.items_updated":  true,
	"order.status_changed": true,
	"order.item_received":  true,
}

type Repository interface {
	ApplyEvent(ctx context.Context, event contracts.OrderEventMessage, eventSeq uint64) error
}

// Service feeds the stock read model from the order event stream.
type Service struct {
	Repository Repository
}

func NewService(repository Repository) *Service {
	return &Service{Repository: repository}
}

func (s *Service) Handle(ctx context.Context, payload []byte, eventSeq uint64) error {
	var event contracts.OrderEventMessage
	if err := json.Unmarshal(payload, &event); err != nil {
		return ErrInvalidEventPayload
	}
	if strings.TrimSpace(event.EventID) == "" || strings.TrimSpace(event.OrderID) == "" {
		return ErrInvalidEventPayload
	}
	if !knownKinds[event.Kind] {
		return ErrUnsupportedEventKind
	}
	if err := s.Repository.ApplyEvent(ctx, event, eventSeq); err != nil {
		return err
	}
	metrics.SinkEventsApplied.WithLabelValues(event.Kind).Inc()
	return nil
}
