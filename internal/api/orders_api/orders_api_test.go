package orders_api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/OrderBox/internal/cache/rediscache"
	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/docstore/memdocs"
	"github.com/BearBump/OrderBox/internal/integrations/photos/fake"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/BearBump/OrderBox/internal/services/orders"
	"github.com/BearBump/OrderBox/internal/services/retention"
	"github.com/BearBump/OrderBox/internal/services/synctime"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *httptest.Server
	store *memdocs.Store
	auth  *JWTAuthorizer
	token string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memdocs.New()
	mr := miniredis.RunT(t)
	rm := retention.New(store, nil).WithClock(func() time.Time { return t0 })
	api := New(
		orders.New(store, fake.New("")),
		rm,
		synctime.New(rediscache.New(mr.Addr()), nil),
		NewJWTAuthorizer("s3cret"),
	)
	api.now = func() time.Time { return t0 }

	r := chi.NewRouter()
	api.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	auth := NewJWTAuthorizer("s3cret")
	tok, err := auth.Issue("admin-1", true, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)

	return &testEnv{srv: srv, store: store, auth: auth, token: tok}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (e *testEnv) seed(t *testing.T, coll docstore.Collection, o *models.Order) {
	t.Helper()
	require.NoError(t, e.store.Put(context.Background(), coll, o))
}

func TestOrdersAPI_SoftDeleteRecoverFlow(t *testing.T) {
	e := newTestEnv(t)
	price := decimal.NewFromInt(25000)
	e.seed(t, docstore.Active, &models.Order{
		ID:        "ord-100",
		Status:    models.OrderStatusConfirmed,
		CartItems: []models.CartItem{{Name: "Silla", Quantity: 2, Price: &price}},
	})

	resp, _ := e.do(t, http.MethodPost, "/orders/ord-100/delete", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/orders/ord-100", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/orders/deleted", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deleted []models.Order
	require.NoError(t, json.Unmarshal(body, &deleted))
	require.Len(t, deleted, 1)
	require.Equal(t, "ord-100", deleted[0].OriginalID)
	require.NotNil(t, deleted[0].RetentionDate)
	require.True(t, deleted[0].RetentionDate.Equal(t0.Add(models.RetentionPeriod)))

	resp, _ = e.do(t, http.MethodPost, "/orders/deleted/ord-100/recover", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/orders/ord-100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Order
	require.NoError(t, json.Unmarshal(body, &got))
	require.Nil(t, got.DeletedAt)
	require.Empty(t, got.OriginalID)
	require.NotNil(t, got.RestoredAt)

	resp, body = e.do(t, http.MethodPost, "/orders/deleted/ord-100/recover", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, string(body), "already active")

	resp, body = e.do(t, http.MethodGet, "/orders/ord-100/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v models.OrderView
	require.NoError(t, json.Unmarshal(body, &v))
	require.True(t, v.Total.Equal(decimal.NewFromInt(50000)))
}

func TestOrdersAPI_BulkDeletePartial(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, docstore.Active, &models.Order{ID: "ord-1"})
	e.seed(t, docstore.Active, &models.Order{ID: "ord-3"})

	resp, body := e.do(t, http.MethodPost, "/orders/delete", idsRequest{IDs: []string{"ord-1", "ord-2", "ord-3"}})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)

	var res retention.BulkResult
	require.NoError(t, json.Unmarshal(body, &res))
	require.Equal(t, []string{"ord-1", "ord-3"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	require.Equal(t, "ord-2", res.Failed[0].ID)
	require.Equal(t, "NotFound", res.Failed[0].Reason)

	resp, _ = e.do(t, http.MethodPost, "/orders/delete", idsRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrdersAPI_PurgeNeedsConfirm(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, docstore.Active, &models.Order{ID: "ord-5"})
	resp, _ := e.do(t, http.MethodPost, "/orders/ord-5/delete", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/orders/deleted/ord-5", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 1, e.store.Len(docstore.Deleted))

	resp, body := e.do(t, http.MethodGet, "/orders/deleted/eligible?now="+t0.Add(31*24*time.Hour).Format(time.RFC3339), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var eligible idsRequest
	require.NoError(t, json.Unmarshal(body, &eligible))
	require.Equal(t, []string{"ord-5"}, eligible.IDs)

	resp, _ = e.do(t, http.MethodGet, "/orders/deleted/eligible?now=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/orders/deleted/ord-5?confirm=true", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, 0, e.store.Len(docstore.Deleted))

	resp, _ = e.do(t, http.MethodPost, "/orders/deleted/ord-5/recover", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, "/orders/deleted/purge?confirm=true", idsRequest{IDs: []string{"ord-5"}})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	require.Contains(t, string(body), "NotFound")
}

func TestOrdersAPI_UpdateOrder(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, docstore.Active, &models.Order{ID: "ord-7", Status: "pending"})

	resp, body := e.do(t, http.MethodPatch, "/orders/ord-7", map[string]any{
		"status":    "shipped",
		"labels":    []string{"vip", " vip ", ""},
		"isStarred": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Order
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, models.OrderStatusShipped, got.Status)
	require.Equal(t, []string{"vip"}, got.Labels)
	require.True(t, got.IsStarred)

	resp, _ = e.do(t, http.MethodPatch, "/orders/ord-7", map[string]any{"status": "lost"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPatch, "/orders/nope", map[string]any{"archived": true})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPatch, "/orders/ord-7", map[string]any{"archived": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[]`, string(body))

	resp, body = e.do(t, http.MethodGet, "/orders?archived=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"ord-7"`)
}

func TestOrdersAPI_Sync(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.do(t, http.MethodGet, "/sync", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"products":null,"webphotos":null}`, string(body))

	resp, _ = e.do(t, http.MethodPut, "/sync/products", syncRequest{Timestamp: "2024-06-01T10:00:00Z"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPut, "/sync/stock", syncRequest{Timestamp: "2024-06-01T10:00:00Z"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPut, "/sync/webphotos", syncRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/sync", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"products":"2024-06-01T10:00:00Z","webphotos":null}`, string(body))
}

func TestOrdersAPI_Auth(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, docstore.Active, &models.Order{ID: "ord-9"})

	e.token = ""
	resp, _ := e.do(t, http.MethodPost, "/orders/ord-9/delete", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/orders/deleted", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// чтение активных заказов без токена разрешено
	resp, _ = e.do(t, http.MethodGet, "/orders/ord-9", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	notAdmin, err := e.auth.Issue("clerk", false, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)
	e.token = notAdmin
	resp, _ = e.do(t, http.MethodPost, "/orders/ord-9/delete", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	other, err := NewJWTAuthorizer("another").Issue("admin", true, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)
	e.token = other
	resp, _ = e.do(t, http.MethodPost, "/orders/ord-9/delete", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	require.Equal(t, 1, e.store.Len(docstore.Active))
}

func TestJWTAuthorizer(t *testing.T) {
	a := NewJWTAuthorizer("k")
	ok, err := a.Issue("admin", true, time.Now().Add(time.Minute).Unix())
	require.NoError(t, err)
	require.True(t, a.IsAuthorized(ok))

	expired, err := a.Issue("admin", true, time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)
	require.False(t, a.IsAuthorized(expired))

	require.False(t, a.IsAuthorized(""))
	require.False(t, a.IsAuthorized("garbage"))
	require.False(t, NewJWTAuthorizer("").IsAuthorized(ok))
	require.True(t, AllowAll{}.IsAuthorized(""))
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, http.StatusNotFound, statusOf(&retention.Error{Kind: retention.ErrNotFound}))
	require.Equal(t, http.StatusConflict, statusOf(&retention.Error{Kind: retention.ErrAlreadyActive}))
	require.Equal(t, http.StatusConflict, statusOf(&retention.Error{Kind: retention.ErrNotEligible}))
	require.Equal(t, http.StatusBadRequest, statusOf(&retention.Error{Kind: retention.ErrInvalidID}))
	require.Equal(t, http.StatusBadGateway, statusOf(&retention.Error{Kind: retention.ErrStore}))
	require.Equal(t, http.StatusNotFound, statusOf(orders.ErrNotFound))
	require.Equal(t, http.StatusBadRequest, statusOf(synctime.ErrUnknownType))
}
