package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/muraturkgeldi/qrstock/internal/contracts"
	"github.com/muraturkgeldi/qrstock/internal/messaging"
	"github.com/muraturkgeldi/qrstock/internal/orders"
	"github.com/muraturkgeldi/qrstock/internal/platform/dbpool"
	"github.com/muraturkgeldi/qrstock/internal/platform/env"
	"github.com/muraturkgeldi/qrstock/internal/platform/metrics"
	"github.com/muraturkgeldi/qrstock/internal/platform/natsutil"
	"github.com/muraturkgeldi/qrstock/internal/stocksink"
	"github.com/muraturkgeldi/qrstock/internal/web"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webAddr := env.String("STOCK_WEB_ADDR", env.DefaultWebAddr)
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	cacheTTL := env.Duration("PAGE_CACHE_TTL", 30*time.Second)
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	metrics.Init()

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	ordersRepo := orders.NewPostgresRepository(pool)
	stockRepo := stocksink.NewEventRepository(pool)
	if err := waitForSchemas(runCtx, pool, 30*time.Second, ordersRepo.EnsureSchema, stockRepo.EnsureSchema); err != nil {
		log.Fatal(err)
	}

	client, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), 20*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	cache := web.NewPageCache(cacheTTL)
	ordersSvc := orders.NewService(ordersRepo, noUserLookup{}, nil)
	server := web.NewServer(ordersSvc, stockRepo, cache)

	// Pages served from cache stay fresh by dropping entries whenever an
	// order event comes through the stream.
	sub, err := client.JS.Subscribe(messaging.EventsSubjectFilter, func(msg *nats.Msg) {
		var event contracts.OrderEventMessage
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return
		}
		cache.InvalidateOrder(event.OrderID)
	}, nats.DeliverNew())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), pool, client.Conn); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", metrics.Instrument(server.Router()))

	httpServer := &http.Server{
		Addr:              webAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Printf("Stock web listening on %s\n", webAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("stock-web graceful shutdown failed: %v", err)
	}
}

// noUserLookup satisfies the order service in a process that never mutates
// orders; the page server only reads.
type noUserLookup struct{}

func (noUserLookup) LookupByUID(ctx context.Context, uid string) (orders.Actor, bool, error) {
	return orders.Actor{}, false, nil
}

func waitForSchemas(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, ensure ...func(context.Context) error) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = pool.Ping(attemptCtx)
		for _, fn := range ensure {
			if lastErr != nil {
				break
			}
			lastErr = fn(attemptCtx)
		}
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for postgres readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkReadiness(ctx context.Context, pool *pgxpool.Pool, conn *nats.Conn) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	if conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", conn.Status().String())
	}

	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
