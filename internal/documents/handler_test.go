package documents

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maanisingh/Accounting-software-sub001/internal/lifecycle"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

type apiHarness struct {
	t      *testing.T
	store  *memoryStore
	router chi.Router
}

func newAPIHarness(t *testing.T) *apiHarness {
	store := seededStore()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), newTestService(store))
	r := chi.NewRouter()
	r.Route("/sales", h.MountSales)
	r.Route("/purchases", h.MountPurchases)
	r.Route("/documents", h.MountDocuments)
	return &apiHarness{t: t, store: store, router: r}
}

func (a *apiHarness) do(method, path, body string, withActor bool) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if withActor {
		req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeDocument(t *testing.T, rr *httptest.ResponseRecorder) Document {
	t.Helper()
	var doc Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	return doc
}

func TestHandlerRequiresTenant(t *testing.T) {
	api := newAPIHarness(t)
	rr := api.do(http.MethodPost, "/sales/quotations", `{"party_id":100,"lines":[{"product_id":10,"quantity":1}]}`, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandlerQuotationLifecycle(t *testing.T) {
	api := newAPIHarness(t)

	rr := api.do(http.MethodPost, "/sales/quotations", `{"party_id":100,"lines":[{"product_id":10,"quantity":2}]}`, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	quote := decodeDocument(t, rr)
	assert.Equal(t, "QT-0001", quote.Number)
	assertDec(t, "200", quote.Total)
	path := "/documents/" + strconv.FormatInt(quote.ID, 10)

	rr = api.do(http.MethodGet, path, "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeDocument(t, rr).Lines, 1)

	rr = api.do(http.MethodGet, "/documents?kind=quotation", "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	var listed []Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rr = api.do(http.MethodPost, path+"/status", `{"status":"sent"}`, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, lifecycle.StatusSent, decodeDocument(t, rr).Status)

	rr = api.do(http.MethodPost, path+"/status", `{"status":"BOGUS"}`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodPost, "/sales/quotations/"+strconv.FormatInt(quote.ID, 10)+"/convert", "", true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	order := decodeDocument(t, rr)
	assert.Equal(t, "SO-0001", order.Number)
	assert.Equal(t, quote.ID, order.SourceID)

	rr = api.do(http.MethodDelete, "/documents/"+strconv.FormatInt(order.ID, 10), "", true)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = api.do(http.MethodDelete, "/documents/"+strconv.FormatInt(order.ID, 10), "", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerMapsDomainErrors(t *testing.T) {
	api := newAPIHarness(t)
	stockIn(t, api.store, productP1, warehouseW1, 5)

	rr := api.do(http.MethodPost, "/sales/orders", `{"party_id":100,"lines":[{"product_id":10,"quantity":6}]}`, true)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(http.MethodPost, "/sales/orders", `{"party_id":100,"lines":[]}`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodGet, "/documents?kind=nope", "", true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodGet, "/documents/999", "", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(http.MethodPost, "/sales/returns", `{"party_id":100,"reason":"BROKEN","lines":[{"product_id":10,"quantity":1}]}`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerPurchaseReceiptWithoutBody(t *testing.T) {
	api := newAPIHarness(t)

	rr := api.do(http.MethodPost, "/purchases/orders", `{"party_id":200,"lines":[{"product_id":10,"quantity":4}]}`, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	order := decodeDocument(t, rr)

	rr = api.do(http.MethodPost, "/purchases/orders/"+strconv.FormatInt(order.ID, 10)+"/receipts", "", true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "GRN-0001", decodeDocument(t, rr).Number)
	assertDec(t, "4", api.store.quantity(productP1, warehouseW1))
}

func TestHandlerRejectsOrderOfOtherFlow(t *testing.T) {
	api := newAPIHarness(t)

	rr := api.do(http.MethodPost, "/purchases/orders", `{"party_id":200,"lines":[{"product_id":10,"quantity":4}]}`, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	order := decodeDocument(t, rr)
	id := strconv.FormatInt(order.ID, 10)

	for _, path := range []string{"/sales/orders/" + id + "/deliveries", "/sales/orders/" + id + "/invoice"} {
		rr = api.do(http.MethodPost, path, "", true)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.Contains(t, rr.Body.String(), "flow", path)
	}
	assertDec(t, "0", api.store.quantity(productP1, warehouseW1))
	assert.Len(t, api.store.docs, 1)

	rr = api.do(http.MethodPost, "/purchases/orders/999/receipts", "", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
