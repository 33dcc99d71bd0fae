package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/a-h/templ"
	"github.com/muraturkgeldi/qrstock/internal/nav"
	"github.com/muraturkgeldi/qrstock/internal/orders"
	"github.com/muraturkgeldi/qrstock/internal/stocksink"
)

// OrderReader is the read surface the pages need from the order store.
type OrderReader interface {
	List(ctx context.Context, limit int) ([]orders.PurchaseOrder, error)
	Get(ctx context.Context, orderID string) (orders.PurchaseOrder, error)
	ListEvents(ctx context.Context, orderID string, limit int) ([]orders.EventRecord, error)
}

// StockReader exposes the read model maintained by the stock sink.
type StockReader interface {
	ListStockLevels(ctx context.Context, limit int) ([]stocksink.StockLevel, error)
}

// Server renders the HTML pages. Rendered pages go through the cache; order
// events received from the event stream drop the affected entries.
type Server struct {
	Orders OrderReader
	Stock  StockReader
	Cache  *PageCache
}

func NewServer(ordersReader OrderReader, stock StockReader, cache *PageCache) *Server {
	return &Server{Orders: ordersReader, Stock: stock, Cache: cache}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.Handle("GET /login", templ.Handler(LoginPage()))
	mux.HandleFunc("GET /orders", s.handleOrders)
	mux.HandleFunc("GET /orders/{orderID}", s.handleOrder)
	mux.Handle("GET /static/", http.StripPrefix("/static/", StaticHandler()))
	return mux
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, "/", func(ctx context.Context) (templ.Component, error) {
		levels, err := s.Stock.ListStockLevels(ctx, 100)
		if err != nil {
			return nil, err
		}
		return DashboardPage(levels), nil
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, r.URL.Path+queryString(r), func(ctx context.Context) (templ.Component, error) {
		list, err := s.Orders.List(ctx, 50)
		if err != nil {
			return nil, err
		}
		return OrdersPage(list, r.URL.Path+queryString(r)), nil
	})
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	backHref := nav.ReturnPath(r.URL.Query().Get(nav.Param), "/orders")

	// The back link is part of the rendered page, so each resolved return
	// path is its own cache variant.
	cacheKey := "/orders/" + orderID + "|" + backHref
	s.serveCached(w, r, cacheKey, func(ctx context.Context) (templ.Component, error) {
		order, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		events, err := s.Orders.ListEvents(ctx, orderID, 100)
		if err != nil {
			return nil, err
		}
		return OrderPage(order, events, backHref), nil
	})
}

func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string, build func(ctx context.Context) (templ.Component, error)) {
	if s.Cache != nil {
		if html, ok := s.Cache.Get(key); ok {
			writeHTML(w, html)
			return
		}
	}

	component, err := build(r.Context())
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := component.Render(r.Context(), &buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.Cache != nil {
		s.Cache.Set(key, buf.String())
	}
	writeHTML(w, buf.String())
}

func writeHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

// queryString rebuilds the raw query suffix so the orders list can annotate
// outbound links with its full current location.
func queryString(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return ""
	}
	return "?" + r.URL.RawQuery
}
