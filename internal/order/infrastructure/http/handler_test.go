package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/textbook-orders/internal/order/application"
	"github.com/dmehra2102/textbook-orders/internal/order/domain"
	"github.com/dmehra2102/textbook-orders/internal/order/infrastructure/memory"
)

var fixedNow = time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	handler http.Handler
}

type brokenOrders struct{ *memory.Store }

func (brokenOrders) ListExpired(context.Context, time.Time) ([]domain.Order, error) {
	return nil, io.ErrUnexpectedEOF
}

func setupHandler(t *testing.T, opts ...Option) fixture {
	t.Helper()
	return setupWith(t, nil, opts...)
}

func setupWith(t *testing.T, wrap func(*memory.Store) application.OrderRepository, opts ...Option) fixture {
	t.Helper()
	store := memory.NewStore()
	var orders application.OrderRepository = store
	if wrap != nil {
		orders = wrap(store)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := application.NewService(log, application.Deps{
		Orders:        orders,
		Books:         store,
		Notifications: store,
		Audit:         store,
		Ledger:        store,
	}, application.DefaultConfig(), application.WithClock(func() time.Time { return fixedNow }))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithVersion("1.2.3")}, opts...)
	return fixture{store: store, handler: NewHandler(log, svc, opts...).Routes()}
}

func (f fixture) seedPaid(t *testing.T, id, seller string, deadline time.Time) {
	t.Helper()
	o := domain.NewOrder(id, "buyer-"+id, seller, "book-"+id, 4200, nil)
	require.NoError(t, o.MarkPaid(deadline.Add(-domain.DefaultCommitWindow), domain.DefaultCommitWindow, "ref"))
	f.store.Put(o)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Headers"))
}

func TestCommitToSale_Success(t *testing.T) {
	f := setupHandler(t)
	f.seedPaid(t, "o2", "s1", fixedNow.Add(time.Hour))

	w := doJSON(t, f.handler, http.MethodPost, "/commit-to-sale", map[string]string{"orderId": "o2", "sellerId": "s1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assertCORS(t, w)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	order := body["order"].(map[string]any)
	assert.Equal(t, "o2", order["id"])
	assert.Equal(t, "committed", order["status"])
	assert.Equal(t, fixedNow.Format(time.RFC3339), order["committed_at"])

	w = doJSON(t, f.handler, http.MethodPost, "/commit-to-sale", map[string]string{"orderId": "o2", "sellerId": "s1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode(t, w)["error"], "committed")
}

func TestCommitToSale_Errors(t *testing.T) {
	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing seller", map[string]string{"orderId": "o1"}, http.StatusBadRequest},
		{"blank order", map[string]string{"orderId": "  ", "sellerId": "s1"}, http.StatusBadRequest},
		{"wrong types", map[string]any{"orderId": 7, "sellerId": "s1"}, http.StatusBadRequest},
		{"malformed json", "{not json", http.StatusBadRequest},
		{"wrong seller", map[string]string{"orderId": "o1", "sellerId": "s2"}, http.StatusNotFound},
		{"unknown order", map[string]string{"orderId": "zz", "sellerId": "s1"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupHandler(t)
			f.seedPaid(t, "o1", "s1", fixedNow.Add(time.Hour))

			w := doJSON(t, f.handler, http.MethodPost, "/commit-to-sale", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
			assertCORS(t, w)

			o, err := f.store.Get(context.Background(), "o1")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusPaid, o.Status)
		})
	}
}

func TestOptionsPreflight(t *testing.T) {
	f := setupHandler(t)
	for _, path := range []string{"/commit-to-sale", "/auto-expire-commits", "/process-order-reminders"} {
		w := doJSON(t, f.handler, http.MethodOptions, path, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
		assertCORS(t, w)
	}
}

func TestAutoExpireCommits(t *testing.T) {
	f := setupHandler(t)
	f.seedPaid(t, "o1", "s1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f.seedPaid(t, "o2", "s1", fixedNow.Add(time.Hour))

	w := doJSON(t, f.handler, http.MethodPost, "/auto-expire-commits", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assertCORS(t, w)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["expired_count"])
	orders := body["expired_orders"].([]any)
	require.Len(t, orders, 1)
	first := orders[0].(map[string]any)
	assert.Equal(t, "o1", first["order_id"])
	assert.Equal(t, true, first["refund_initiated"])
	assert.NotEmpty(t, body["processed_at"])

	w = doJSON(t, f.handler, http.MethodGet, "/auto-expire-commits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["expired_count"])
}

func TestHealthAction(t *testing.T) {
	f := setupHandler(t)
	for _, path := range []string{"/auto-expire-commits", "/process-order-reminders"} {
		w := doJSON(t, f.handler, http.MethodPost, path, map[string]string{"action": "health"})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "1.2.3", body["version"])
		assert.NotEmpty(t, body["timestamp"])
		assert.NotContains(t, body, "expired_count")
	}
}

func TestTriggerRejectsBadBody(t *testing.T) {
	f := setupHandler(t)
	w := doJSON(t, f.handler, http.MethodPost, "/process-order-reminders", map[string]any{"action": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, f.handler, http.MethodPost, "/auto-expire-commits", "[")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessOrderReminders(t *testing.T) {
	f := setupHandler(t)
	f.seedPaid(t, "o1", "s1", fixedNow.Add(6*time.Hour))

	w := doJSON(t, f.handler, http.MethodPost, "/process-order-reminders", map[string]string{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total_reminders"])
	reminders := body["reminders"].([]any)
	require.Len(t, reminders, 1)
	r := reminders[0].(map[string]any)
	assert.EqualValues(t, 6, r["hours_remaining"])
	assert.Equal(t, "s1", r["user_id"])

	o, _ := f.store.Get(context.Background(), "o1")
	assert.Equal(t, domain.StatusPaid, o.Status)
}

func TestSweepCrashReturns500(t *testing.T) {
	f := setupWith(t, func(s *memory.Store) application.OrderRepository { return brokenOrders{s} })

	w := doJSON(t, f.handler, http.MethodPost, "/auto-expire-commits", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Function crashed", body["error"])
	assert.Contains(t, body["details"], "unexpected EOF")
	assertCORS(t, w)
}

func TestAutoExpireCommits_CancelledRequestStillReports(t *testing.T) {
	f := setupHandler(t)
	f.seedPaid(t, "o1", "s1", fixedNow.Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/auto-expire-commits", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["interrupted"])
	assert.EqualValues(t, 0, body["expired_count"])
	assert.Empty(t, body["expired_orders"])
}

func TestTriggerRateLimit(t *testing.T) {
	f := setupHandler(t, WithTriggerLimit(time.Hour, 1))

	w := doJSON(t, f.handler, http.MethodPost, "/auto-expire-commits", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, f.handler, http.MethodPost, "/auto-expire-commits", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = doJSON(t, f.handler, http.MethodPost, "/commit-to-sale", map[string]string{"orderId": "x", "sellerId": "y"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrder(t *testing.T) {
	f := setupHandler(t)
	f.seedPaid(t, "o1", "s1", fixedNow.Add(time.Hour))

	w := doJSON(t, f.handler, http.MethodGet, "/orders/o1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "paid", body["status"])
	assert.EqualValues(t, 4200, body["amount"])

	w = doJSON(t, f.handler, http.MethodGet, "/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	f := setupHandler(t)
	w := doJSON(t, f.handler, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}
