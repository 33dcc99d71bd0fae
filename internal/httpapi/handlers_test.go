package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/muraturkgeldi/qrstock/internal/identity"
	"github.com/muraturkgeldi/qrstock/internal/orders"
)

type fakeOrdersRepo struct {
	orders map[string]orders.PurchaseOrder
	events []orders.EventRecord
	now    time.Time
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{
		orders: map[string]orders.PurchaseOrder{},
		now:    time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeOrdersRepo) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeOrdersRepo) CreateOrder(ctx context.Context, order orders.PurchaseOrder, rec orders.EventRecord) (orders.PurchaseOrder, orders.EventRecord, error) {
	order.CreatedAt = f.now
	order.UpdatedAt = f.now
	f.orders[order.ID] = order
	rec.At = f.now
	f.events = append(f.events, rec)
	return order, rec, nil
}

func (f *fakeOrdersRepo) SaveItems(ctx context.Context, orderID string, items []orders.OrderItem, rec orders.EventRecord) (orders.PurchaseOrder, orders.EventRecord, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return orders.PurchaseOrder{}, orders.EventRecord{}, orders.ErrOrderNotFound
	}
	order.Items = items
	order.UpdatedAt = f.now
	f.orders[orderID] = order
	rec.At = f.now
	f.events = append(f.events, rec)
	return order, rec, nil
}

func (f *fakeOrdersRepo) UpdateStatus(ctx context.Context, orderID string, to orders.OrderStatus, rec orders.EventRecord) (orders.PurchaseOrder, orders.EventRecord, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return orders.PurchaseOrder{}, orders.EventRecord{}, orders.ErrOrderNotFound
	}
	order.Status = to
	order.UpdatedAt = f.now
	f.orders[orderID] = order
	rec.At = f.now
	f.events = append(f.events, rec)
	return order, rec, nil
}

func (f *fakeOrdersRepo) GetOrder(ctx context.Context, orderID string) (orders.PurchaseOrder, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return orders.PurchaseOrder{}, orders.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeOrdersRepo) ListOrders(ctx context.Context, limit int) ([]orders.PurchaseOrder, error) {
	out := make([]orders.PurchaseOrder, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrdersRepo) ListEvents(ctx context.Context, orderID string, limit int) ([]orders.EventRecord, error) {
	out := []orders.EventRecord{}
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].OrderID == orderID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

type fakeIdentityRepo struct {
	users map[string]identity.User
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{users: map[string]identity.User{}}
}

func (f *fakeIdentityRepo) EnsureSchema(ctx context.Context) error { return nil }
func (f *fakeIdentityRepo) CreateUser(ctx context.Context, user identity.User) error {
	f.users[user.UID] = user
	return nil
}
func (f *fakeIdentityRepo) FindUserByUsername(ctx context.Context, username string) (identity.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return identity.User{}, identity.ErrNotFound
}
func (f *fakeIdentityRepo) FindUserByUID(ctx context.Context, uid string) (identity.User, error) {
	u, ok := f.users[uid]
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return u, nil
}

type testEnv struct {
	handler      *Handler
	router       http.Handler
	ordersRepo   *fakeOrdersRepo
	identityRepo *fakeIdentityRepo
	identitySvc  *identity.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ordersRepo := newFakeOrdersRepo()
	identityRepo := newFakeIdentityRepo()
	identitySvc := identity.NewService(identityRepo, identity.NewTokenManager("test-secret"))
	ordersSvc := orders.NewService(ordersRepo, identitySvc, nil)

	h := NewHandler(ordersSvc, identitySvc, nil, identitySvc.AuthToken)
	h.HasDatabaseURL = true
	return &testEnv{
		handler:      h,
		router:       h.Router(),
		ordersRepo:   ordersRepo,
		identityRepo: identityRepo,
		identitySvc:  identitySvc,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) registerUser(t *testing.T) identity.AuthResponse {
	t.Helper()
	resp, err := e.identitySvc.Register(context.Background(), "alice", "password123", "Alice Stock", "alice@example.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return resp
}

type envelope struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestEnvCheck(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/_env-check", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body["hasDatabaseUrl"] || body["hasJwtSecret"] {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestBulkCreate_MissingUID(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/orders/bulk-create", "", map[string]any{
		"items": []map[string]any{{"productSku": "SKU-1", "quantity": 1}},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.OK || env.Error != "UID_MISSING" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestBulkCreate_EmptyItems(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/orders/bulk-create", "", map[string]any{
		"uid":   "u1",
		"items": []map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.OK || env.Error != "NO_ITEMS" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestBulkCreate_CreatesDraft(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/orders/bulk-create", "", map[string]any{
		"uid": "u-scanner",
		"items": []map[string]any{
			{"productSku": "SKU-1", "quantity": 3},
		},
		"userInfo": map[string]any{"displayName": "Scanner", "email": "scan@example.com"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.OK {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var order orders.PurchaseOrder
	if err := json.Unmarshal(env.Data, &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if order.Status != orders.StatusDraft || order.CreatedBy != "u-scanner" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if len(e.ordersRepo.events) != 1 || e.ordersRepo.events[0].Kind != orders.KindOrderCreated {
		t.Fatalf("expected one created event, got %+v", e.ordersRepo.events)
	}
}

func TestUpdateItems_RequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPut, "/api/orders/po-1/items", "", map[string]any{"items": []map[string]any{}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestUpdateItems_OverwritesItems(t *testing.T) {
	e := newTestEnv(t)
	user := e.registerUser(t)

	created := e.do(t, http.MethodPost, "/api/orders/bulk-create", "", map[string]any{
		"uid":   user.UID,
		"items": []map[string]any{{"productSku": "SKU-1", "quantity": 1}},
	})
	var createdEnv envelope
	_ = json.Unmarshal(created.Body.Bytes(), &createdEnv)
	var order orders.PurchaseOrder
	_ = json.Unmarshal(createdEnv.Data, &order)

	rec := e.do(t, http.MethodPut, "/api/orders/"+order.ID+"/items", user.Token, map[string]any{
		"items": []map[string]any{
			{"productSku": "SKU-2", "quantity": 10, "receivedQuantity": 4},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var updated orders.PurchaseOrder
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if len(updated.Items) != 1 || updated.Items[0].ProductSKU != "SKU-2" || updated.Items[0].RemainingQuantity != 6 {
		t.Fatalf("unexpected items: %+v", updated.Items)
	}

	last := e.ordersRepo.events[len(e.ordersRepo.events)-1]
	if last.Kind != orders.KindItemsUpdated || last.Actor.UID != user.UID {
		t.Fatalf("unexpected audit event: %+v", last)
	}
}

func TestUpdateItems_UnknownOrder(t *testing.T) {
	e := newTestEnv(t)
	user := e.registerUser(t)
	rec := e.do(t, http.MethodPut, "/api/orders/missing/items", user.Token, map[string]any{
		"items": []map[string]any{},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error != "ORDER_NOT_FOUND" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestChangeStatus_InvalidTransition(t *testing.T) {
	e := newTestEnv(t)
	user := e.registerUser(t)

	created := e.do(t, http.MethodPost, "/api/orders/bulk-create", "", map[string]any{
		"uid":   user.UID,
		"items": []map[string]any{{"productSku": "SKU-1", "quantity": 1}},
	})
	var createdEnv envelope
	_ = json.Unmarshal(created.Body.Bytes(), &createdEnv)
	var order orders.PurchaseOrder
	_ = json.Unmarshal(createdEnv.Data, &order)

	rec := e.do(t, http.MethodPost, "/api/orders/"+order.ID+"/status", user.Token, map[string]any{
		"to": "received",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error != "INVALID_TRANSITION" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestListEvents_NewestFirst(t *testing.T) {
	e := newTestEnv(t)
	user := e.registerUser(t)

	created := e.do(t, http.MethodPost, "/api/orders/bulk-create", "", map[string]any{
		"uid":   user.UID,
		"items": []map[string]any{{"productSku": "SKU-1", "quantity": 1}},
	})
	var createdEnv envelope
	_ = json.Unmarshal(created.Body.Bytes(), &createdEnv)
	var order orders.PurchaseOrder
	_ = json.Unmarshal(createdEnv.Data, &order)

	if rec := e.do(t, http.MethodPost, "/api/orders/"+order.ID+"/status", user.Token, map[string]any{"to": "submitted"}); rec.Code != http.StatusOK {
		t.Fatalf("status change failed: %d %s", rec.Code, rec.Body.String())
	}

	rec := e.do(t, http.MethodGet, "/api/orders/"+order.ID+"/events", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var events []orders.EventRecord
	if err := json.Unmarshal(env.Data, &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != orders.KindStatusChanged || events[1].Kind != orders.KindOrderCreated {
		t.Fatalf("events not newest-first: %+v", events)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/orders/missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
