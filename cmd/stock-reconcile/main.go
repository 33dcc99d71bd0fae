package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muraturkgeldi/qrstock/internal/platform/dbpool"
	"github.com/muraturkgeldi/qrstock/internal/platform/env"
	"github.com/muraturkgeldi/qrstock/internal/platform/natsutil"
	"github.com/muraturkgeldi/qrstock/internal/reconcile"
)

// One-shot sweep: republish audit events the stock sink never saw and report
// integrity anomalies. Safe to run from cron; the sink deduplicates.
func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	natsURL := env.String("NATS_URL", env.DefaultNATSURL)
	grace := env.Duration("RECONCILE_GRACE", 2*time.Minute)
	limit := env.Int("RECONCILE_LIMIT", 500)
	timeout := env.Duration("RECONCILE_TIMEOUT", 60*time.Second)

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	client, err := natsutil.ConnectJetStreamWithRetry(natsURL, 20*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	publisher := natsutil.JetStreamPublisher{JS: client.JS}
	service := reconcile.NewService(reconcile.NewPostgresRepository(pool), publisher.Publish)
	service.Grace = grace
	service.Limit = limit

	sweepCtx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()

	report, err := service.Sweep(sweepCtx)
	if err != nil {
		log.Fatalf("reconcile sweep failed: %v", err)
	}

	log.Printf("reconcile sweep: unapplied=%d republished=%d publish_failures=%d orphan_events=%d silent_orders=%d",
		report.UnappliedEvents, report.Republished, report.PublishFailures, report.OrphanEvents, report.SilentOrders)

	if report.PublishFailures > 0 {
		os.Exit(1)
	}
}
