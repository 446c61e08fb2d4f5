// Package orders_api: HTTP (JSON) ручки админки заказов поверх сервисов
// orders, retention и synctime. Своего состояния не держит.
package orders_api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/OrderBox/internal/models"
	"github.com/BearBump/OrderBox/internal/services/orders"
	"github.com/BearBump/OrderBox/internal/services/retention"
	"github.com/BearBump/OrderBox/internal/services/synctime"
	"github.com/go-chi/chi/v5"
)

type OrdersAPI struct {
	orders    *orders.Service
	retention *retention.Manager
	sync      *synctime.Store
	auth      Authorizer
	now       func() time.Time
}

func New(osvc *orders.Service, rm *retention.Manager, st *synctime.Store, auth Authorizer) *OrdersAPI {
	if auth == nil {
		auth = AllowAll{}
	}
	return &OrdersAPI{orders: osvc, retention: rm, sync: st, auth: auth, now: time.Now}
}

// Register вешает ручки на роутер. Всё, что меняет данные или читает корзину,
// идёт через Authorizer.
func (a *OrdersAPI) Register(r chi.Router) {
	r.Get("/orders", a.listOrders)
	r.Get("/orders/{id}", a.getOrder)
	r.Get("/orders/{id}/view", a.viewOrder)
	r.Get("/sync", a.getSync)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(a.auth))

		r.Patch("/orders/{id}", a.updateOrder)
		r.Post("/orders/{id}/delete", a.softDelete)
		r.Post("/orders/delete", a.softDeleteBulk)

		r.Get("/orders/deleted", a.listDeleted)
		r.Get("/orders/deleted/eligible", a.listEligible)
		r.Post("/orders/deleted/{id}/recover", a.recoverOrder)
		r.Post("/orders/deleted/recover", a.recoverBulk)
		r.Delete("/orders/deleted/{id}", a.purge)
		r.Post("/orders/deleted/purge", a.purgeBulk)
		r.Post("/orders/reconcile", a.reconcile)

		r.Put("/sync/{type}", a.setSync)
	})
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

type syncRequest struct {
	Timestamp string `json:"timestamp"`
}

func (a *OrdersAPI) listOrders(w http.ResponseWriter, r *http.Request) {
	out, err := a.orders.ListActive(r.Context(), r.URL.Query().Get("archived") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *OrdersAPI) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *OrdersAPI) viewOrder(w http.ResponseWriter, r *http.Request) {
	v, err := a.orders.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *OrdersAPI) updateOrder(w http.ResponseWriter, r *http.Request) {
	var p models.OrderPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	o, err := a.orders.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *OrdersAPI) softDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.retention.SoftDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *OrdersAPI) softDeleteBulk(w http.ResponseWriter, r *http.Request) {
	ids, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	writeBulk(w, a.retention.SoftDeleteBulk(r.Context(), ids))
}

func (a *OrdersAPI) listDeleted(w http.ResponseWriter, r *http.Request) {
	out, err := a.retention.ListDeleted(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *OrdersAPI) listEligible(w http.ResponseWriter, r *http.Request) {
	now := a.now()
	if raw := r.URL.Query().Get("now"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "now must be RFC3339")
			return
		}
		now = t
	}
	ids, err := a.retention.ListEligibleForPurge(r.Context(), now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, idsRequest{IDs: ids})
}

func (a *OrdersAPI) recoverOrder(w http.ResponseWriter, r *http.Request) {
	if err := a.retention.Recover(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *OrdersAPI) recoverBulk(w http.ResponseWriter, r *http.Request) {
	ids, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	writeBulk(w, a.retention.RecoverBulk(r.Context(), ids))
}

func (a *OrdersAPI) purge(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	if err := a.retention.PurgeDeleted(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *OrdersAPI) purgeBulk(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	ids, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	writeBulk(w, a.retention.PurgeDeletedBulk(r.Context(), ids))
}

func (a *OrdersAPI) reconcile(w http.ResponseWriter, r *http.Request) {
	rep, err := a.retention.Reconcile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if len(rep.Failed) > 0 {
		code = http.StatusMultiStatus
	}
	writeJSON(w, code, rep)
}

func (a *OrdersAPI) getSync(w http.ResponseWriter, r *http.Request) {
	ts, err := a.sync.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (a *OrdersAPI) setSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	t := models.SyncType(chi.URLParam(r, "type"))
	if err := a.sync.Set(r.Context(), t, strings.TrimSpace(req.Timestamp)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeIDs(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return nil, false
	}
	if len(req.IDs) == 0 {
		badRequest(w, "ids are required")
		return nil, false
	}
	return req.IDs, true
}

// очистка необратима, без явного confirm=true не идём
func confirmed(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Query().Get("confirm") != "true" {
		badRequest(w, "purge is permanent, pass confirm=true")
		return false
	}
	return true
}

func writeBulk(w http.ResponseWriter, res retention.BulkResult) {
	if res.Succeeded == nil {
		res.Succeeded = []string{}
	}
	if res.Failed == nil {
		res.Failed = []retention.BulkFailure{}
	}
	code := http.StatusOK
	if res.Err() != nil {
		code = http.StatusMultiStatus
	}
	writeJSON(w, code, res)
}
