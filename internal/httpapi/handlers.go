package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/muraturkgeldi/qrstock/internal/identity"
	"github.com/muraturkgeldi/qrstock/internal/orders"
	"github.com/muraturkgeldi/qrstock/internal/platform/auth"
	"github.com/muraturkgeldi/qrstock/internal/stocksink"
)

// StockReader exposes the read model maintained by the stock sink.
type StockReader interface {
	ListStockLevels(ctx context.Context, limit int) ([]stocksink.StockLevel, error)
}

type Handler struct {
	Orders   *orders.Service
	Identity *identity.Service
	Stock    StockReader
	Tokens   auth.Manager

	// Presence of the two credential configuration values; reported by the
	// deployment diagnostics endpoint.
	HasDatabaseURL bool
	HasJWTSecret   bool
}

func NewHandler(ordersSvc *orders.Service, identitySvc *identity.Service, stock StockReader, tokens auth.Manager) *Handler {
	return &Handler{
		Orders:   ordersSvc,
		Identity: identitySvc,
		Stock:    stock,
		Tokens:   tokens,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/_env-check", h.handleEnvCheck)

	r.Post("/api/auth/register", h.handleRegister)
	r.Post("/api/auth/login", h.handleLogin)

	// bulk-create authenticates by uid in the body, not a bearer token; it is
	// the ingestion path for scanner/batch clients.
	r.Post("/api/orders/bulk-create", h.handleBulkCreate)

	r.Get("/api/orders", h.handleListOrders)
	r.Get("/api/orders/{orderID}", h.handleGetOrder)
	r.Get("/api/orders/{orderID}/events", h.handleListEvents)
	r.Get("/api/stock", h.handleListStock)

	r.Group(func(authR chi.Router) {
		authR.Use(h.authMiddleware)
		authR.Put("/api/orders/{orderID}/items", h.handleUpdateItems)
		authR.Post("/api/orders/{orderID}/status", h.handleChangeStatus)
		authR.Post("/api/orders/{orderID}/receive", h.handleReceiveItem)
	})

	return r
}

func (h *Handler) handleEnvCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"hasDatabaseUrl": h.HasDatabaseURL,
		"hasJwtSecret":   h.HasJWTSecret,
	})
}

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	resp, err := h.Identity.Register(r.Context(), req.Username, req.Password, req.DisplayName, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidUsername), errors.Is(err, identity.ErrInvalidPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
				writeError(w, http.StatusConflict, "username already exists")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	resp, err := h.Identity.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type bulkCreateRequest struct {
	UID      string             `json:"uid"`
	Items    []orders.OrderItem `json:"items"`
	UserInfo struct {
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
	} `json:"userInfo"`
}

func (h *Handler) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}

	order, err := h.Orders.BulkCreate(r.Context(), req.UID, req.Items, orders.Actor{
		DisplayName: req.UserInfo.DisplayName,
		Email:       req.UserInfo.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrUIDMissing):
			writeEnvelopeError(w, http.StatusUnauthorized, "UID_MISSING")
		case errors.Is(err, orders.ErrNoItems):
			writeEnvelopeError(w, http.StatusBadRequest, "NO_ITEMS")
		default:
			writeEnvelopeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeEnvelope(w, http.StatusOK, order)
}

type updateItemsRequest struct {
	Items []orders.OrderItem `json:"items"`
}

func (h *Handler) handleUpdateItems(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req updateItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}

	order, err := h.Orders.UpdateItems(r.Context(), actorFromContext(r.Context()), orderID, req.Items)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, order)
}

type changeStatusRequest struct {
	To     string `json:"to"`
	Reason string `json:"reason"`
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}

	order, err := h.Orders.ChangeStatus(r.Context(), actorFromContext(r.Context()), orderID, orders.OrderStatus(req.To), req.Reason)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, order)
}

type receiveItemRequest struct {
	ItemID   string  `json:"itemId"`
	Quantity float64 `json:"quantity"`
	Note     string  `json:"note"`
}

func (h *Handler) handleReceiveItem(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req receiveItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}

	order, err := h.Orders.ReceiveItem(r.Context(), actorFromContext(r.Context()), orderID, req.ItemID, req.Quantity, req.Note)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, order)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	list, err := h.Orders.List(r.Context(), limit)
	if err != nil {
		writeEnvelopeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, list)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, order)
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	events, err := h.Orders.ListEvents(r.Context(), chi.URLParam(r, "orderID"), limit)
	if err != nil {
		writeEnvelopeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, events)
}

func (h *Handler) handleListStock(w http.ResponseWriter, r *http.Request) {
	if h.Stock == nil {
		writeEnvelopeError(w, http.StatusServiceUnavailable, "stock read model is not configured")
		return
	}
	limit := queryInt(r, "limit", 100)
	levels, err := h.Stock.ListStockLevels(r.Context(), limit)
	if err != nil {
		writeEnvelopeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, levels)
}

// writeOrderError maps domain sentinel errors onto the response envelope.
func (h *Handler) writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		writeEnvelopeError(w, http.StatusNotFound, "ORDER_NOT_FOUND")
	case errors.Is(err, orders.ErrItemNotFound):
		writeEnvelopeError(w, http.StatusNotFound, "ITEM_NOT_FOUND")
	case errors.Is(err, orders.ErrInvalidStatus):
		writeEnvelopeError(w, http.StatusBadRequest, "INVALID_STATUS")
	case errors.Is(err, orders.ErrInvalidTransition):
		writeEnvelopeError(w, http.StatusBadRequest, "INVALID_TRANSITION")
	case errors.Is(err, orders.ErrQuantityInvalid):
		writeEnvelopeError(w, http.StatusBadRequest, "QUANTITY_INVALID")
	default:
		writeEnvelopeError(w, http.StatusInternalServerError, err.Error())
	}
}
