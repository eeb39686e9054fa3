package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTenantMiddleware(t *testing.T) {
	var seen shared.Actor
	var ok bool
	h := TenantMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, ok = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name    string
		company string
		user    string
		status  int
		ok      bool
		actor   shared.Actor
	}{
		{name: "no headers", status: http.StatusNoContent},
		{name: "company and user", company: "3", user: "9", status: http.StatusNoContent, ok: true, actor: shared.Actor{CompanyID: 3, UserID: 9}},
		{name: "company only", company: " 4 ", status: http.StatusNoContent, ok: true, actor: shared.Actor{CompanyID: 4}},
		{name: "bad company", company: "abc", status: http.StatusBadRequest},
		{name: "zero company", company: "0", status: http.StatusBadRequest},
		{name: "bad user", company: "1", user: "-2", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen, ok = shared.Actor{}, false
			req := httptest.NewRequest(http.MethodGet, "/parties", nil)
			if tc.company != "" {
				req.Header.Set(HeaderCompanyID, tc.company)
			}
			if tc.user != "" {
				req.Header.Set(HeaderUserID, tc.user)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.actor, seen)
		})
	}
}

func newIdempotencyHandler(t *testing.T, status int, calls *int) http.Handler {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := shared.NewIdempotencyStore(client, time.Hour)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if status != 0 {
			w.WriteHeader(status)
		}
	})
	return TenantMiddleware(discardLogger())(IdempotencyMiddleware(store, discardLogger())(inner))
}

func idempotentRequest(method, path, company, key string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if company != "" {
		req.Header.Set(HeaderCompanyID, company)
	}
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	return req
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	calls := 0
	h := newIdempotencyHandler(t, http.StatusCreated, &calls)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, idempotentRequest(http.MethodPost, "/sales/orders", "1", "k-1"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, idempotentRequest(http.MethodPost, "/sales/invoices", "1", "k-1"))
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 1, calls)

	// Same key under another company or another top level route is independent.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, idempotentRequest(http.MethodPost, "/sales/orders", "2", "k-1"))
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, idempotentRequest(http.MethodPost, "/purchases/orders", "1", "k-1"))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 3, calls)
}

func TestIdempotencyReleasesFailedRequests(t *testing.T) {
	calls := 0
	h := newIdempotencyHandler(t, http.StatusUnprocessableEntity, &calls)
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, idempotentRequest(http.MethodPost, "/sales/orders", "1", "retry"))
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReleasesAfterCancellation(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := shared.NewIdempotencyStore(client, time.Hour)

	calls := 0
	var cancel context.CancelFunc
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	h := TenantMiddleware(discardLogger())(IdempotencyMiddleware(store, discardLogger())(inner))

	for i := 0; i < 2; i++ {
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		req := idempotentRequest(http.MethodPost, "/sales/orders", "1", "timed-out").WithContext(ctx)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, srv.Keys())
}

func TestIdempotencySkipsReadsAndKeyless(t *testing.T) {
	calls := 0
	h := newIdempotencyHandler(t, 0, &calls)
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, idempotentRequest(http.MethodGet, "/documents", "1", "read"))
		require.Equal(t, http.StatusOK, rr.Code)
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, idempotentRequest(http.MethodPost, "/documents", "1", ""))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Equal(t, 4, calls)
}

func TestIdempotencyModuleScope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/sales/orders/5/invoice", nil)
	assert.Equal(t, "0:sales", idempotencyModule(req))

	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{CompanyID: 8}))
	assert.Equal(t, "8:sales", idempotencyModule(req))

	assert.Equal(t, "0:root", idempotencyModule(httptest.NewRequest(http.MethodPost, "/", nil)))
}
