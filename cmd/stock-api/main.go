package main

import (
	"context"
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

	"github.com/muraturkgeldi/qrstock/internal/httpapi"
	"github.com/muraturkgeldi/qrstock/internal/identity"
	"github.com/muraturkgeldi/qrstock/internal/orders"
	"github.com/muraturkgeldi/qrstock/internal/platform/dbpool"
	"github.com/muraturkgeldi/qrstock/internal/platform/env"
	"github.com/muraturkgeldi/qrstock/internal/platform/metrics"
	"github.com/muraturkgeldi/qrstock/internal/platform/natsutil"
	"github.com/muraturkgeldi/qrstock/internal/stocksink"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiAddr := env.String("STOCK_API_ADDR", env.DefaultAPIAddr)
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	jwtSecret := env.String("JWT_SECRET", "dev-insecure-change-me")
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)
	maxBodyBytes := int64(env.Int("MAX_BODY_BYTES", 1<<20))
	rateBurst := env.Int("RATE_LIMIT_BURST", 40)
	ratePerSecond := env.Int("RATE_LIMIT_PER_SECOND", 20)

	metrics.Init()

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	ordersRepo := orders.NewPostgresRepository(pool)
	identityRepo := identity.NewPostgresRepository(pool)
	stockRepo := stocksink.NewEventRepository(pool)
	if err := waitForSchemas(runCtx, pool, 30*time.Second, ordersRepo.EnsureSchema, identityRepo.EnsureSchema, stockRepo.EnsureSchema); err != nil {
		log.Fatal(err)
	}

	client, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), 20*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	identitySvc := identity.NewService(identityRepo, identity.NewTokenManager(jwtSecret))
	publisher := natsutil.JetStreamPublisher{JS: client.JS}
	ordersSvc := orders.NewService(ordersRepo, identitySvc, publisher.Publish)

	handler := httpapi.NewHandler(ordersSvc, identitySvc, stockRepo, identitySvc.AuthToken)
	handler.HasDatabaseURL = env.IsSet("DATABASE_URL")
	handler.HasJWTSecret = env.IsSet("JWT_SECRET")

	api := httpapi.RequestLog(handler.Router())
	api = httpapi.MaxBodyBytes(api, maxBodyBytes)
	api = httpapi.RateLimit(api, rateBurst, ratePerSecond)
	api = metrics.Instrument(api)

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
	mux.Handle("/", api)

	server := &http.Server{
		Addr:              apiAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Printf("Stock API listening on %s\n", apiAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("stock-api graceful shutdown failed: %v", err)
	}
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
