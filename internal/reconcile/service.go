package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/muraturkgeldi/qrstock/internal/contracts"
	"github.com/muraturkgeldi/qrstock/internal/sharding"
)

// Repository is the read surface the sweep needs.
type Repository interface {
	ListUnappliedEvents(ctx context.Context, grace time.Duration, limit int) ([]contracts.OrderEventMessage, error)
	CountOrphanEvents(ctx context.Context) (int64, error)
	CountSilentOrders(ctx context.Context, grace time.Duration) (int64, error)
}

type PublishFunc func(subject string, payload []byte) error

// Report summarizes one sweep.
type Report struct {
	UnappliedEvents int
	Republished     int
	PublishFailures int
	OrphanEvents    int64
	SilentOrders    int64
}

// Service re-drives events whose best-effort publish was lost. Events are
// durable in Postgres before any publish, so republishing is always safe;
// the sink deduplicates on event id.
type Service struct {
	Repo    Repository
	Publish PublishFunc
	Grace   time.Duration
	Limit   int
}

func NewService(repo Repository, publish PublishFunc) *Service {
	return &Service{
		Repo:    repo,
		Publish: publish,
		Grace:   2 * time.Minute,
		Limit:   500,
	}
}

func (s *Service) Sweep(ctx context.Context) (Report, error) {
	var report Report

	events, err := s.Repo.ListUnappliedEvents(ctx, s.Grace, s.Limit)
	if err != nil {
		return report, fmt.Errorf("list unapplied events: %w", err)
	}
	report.UnappliedEvents = len(events)

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			report.PublishFailures++
			continue
		}
		if err := s.Publish(sharding.EventSubject(event.OrderID), payload); err != nil {
			report.PublishFailures++
			continue
		}
		report.Republished++
	}

	report.OrphanEvents, err = s.Repo.CountOrphanEvents(ctx)
	if err != nil {
		return report, fmt.Errorf("count orphan events: %w", err)
	}
	report.SilentOrders, err = s.Repo.CountSilentOrders(ctx, s.Grace)
	if err != nil {
		return report, fmt.Errorf("count silent orders: %w", err)
	}
	return report, nil
}
