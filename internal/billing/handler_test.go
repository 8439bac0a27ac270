package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/nvds/salesdesk/testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, store *mockStore) (chi.Router, *Engine) {
	t.Helper()
	engine := NewEngine(store, &mockRenderer{}, EngineConfig{})
	require.NoError(t, engine.Bootstrap(context.Background()))
	h := NewHandler(discardLogger(), engine, nil)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, engine
}

func doJSON(t *testing.T, r chi.Router, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var resp stateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestStateEndpoint(t *testing.T) {
	store := newMockStore()
	store.seed(draft(1, "ABC", 10))
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeState(t, rr)
	require.NotNil(t, resp.State)
	assert.Len(t, resp.State.Displayed, 1)
	assert.InDelta(t, 10.0, resp.State.MainTotal, 1e-9)
}

func TestSubmitLineEndpointValidation(t *testing.T) {
	store := newMockStore()
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/lines", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "customer_input", payload["field"])
	require.Contains(t, payload, "focus")
}

func TestFormAndSubmitFlow(t *testing.T) {
	store := newMockStore()
	store.customers = []Customer{{Code: "ABC", Name: "Abc Stores"}}
	r, _ := newTestRouter(t, store)

	for _, update := range []map[string]string{
		{"field": "customer_input", "value": "abc"},
		{"field": "supplier_code", "value": "s1"},
		{"field": "weight", "value": "10"},
		{"field": "price", "value": "5"},
	} {
		rr := doJSON(t, r, http.MethodPost, "/form", update)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := doJSON(t, r, http.MethodPost, "/lines", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeState(t, rr)
	require.Len(t, resp.State.Displayed, 1)
	assert.Equal(t, "ABC", resp.State.Displayed[0].CustomerCode)
	assert.InDelta(t, 50.0, resp.State.Displayed[0].Total, 1e-9)
	require.NotNil(t, resp.Focus)
	assert.Equal(t, FieldSupplierCode, resp.Focus.Field)
}

func TestUpdateFieldRejectsUnknownField(t *testing.T) {
	store := newMockStore()
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/form", map[string]string{"field": "bogus", "value": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConfirmOnPacksSubmitsLine(t *testing.T) {
	store := newMockStore()
	r, _ := newTestRouter(t, store)

	for _, update := range []map[string]string{
		{"field": "customer_input", "value": "ABC"},
		{"field": "weight", "value": "2"},
		{"field": "price", "value": "10"},
	} {
		rr := doJSON(t, r, http.MethodPost, "/form", update)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := doJSON(t, r, http.MethodPost, "/form/confirm", map[string]string{"field": "packs"})
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeState(t, rr)
	require.Len(t, resp.State.Displayed, 1)
	assert.InDelta(t, 20.0, resp.State.Displayed[0].Total, 1e-9)
}

func TestConfirmOnWeightOnlyAdvancesFocus(t *testing.T) {
	store := newMockStore()
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/form/confirm", map[string]string{"field": "weight"})
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeState(t, rr)
	require.NotNil(t, resp.Focus)
	assert.Equal(t, FieldPrice, resp.Focus.Field)
	assert.Empty(t, resp.State.Displayed)
}

func TestConfirmOnSelfConfirmingFieldIsNoOp(t *testing.T) {
	store := newMockStore()
	r, _ := newTestRouter(t, store)

	// The item dropdown commits its choice on Enter itself; the server must
	// not move focus on top of that.
	for _, field := range []string{"item_select", "customer_select"} {
		rr := doJSON(t, r, http.MethodPost, "/form/confirm", map[string]string{"field": field})
		require.Equal(t, http.StatusOK, rr.Code)

		resp := decodeState(t, rr)
		assert.True(t, resp.NoOp, field)
		assert.Nil(t, resp.Focus, field)
	}
}

func TestSelectEndpointTogglesHeldCustomer(t *testing.T) {
	store := newMockStore()
	store.seed(&SaleLine{ID: 1, CustomerCode: "HLD", Status: StatusHeld, Total: 30,
		CreatedAt: time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)})
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/select", map[string]string{
		"kind": "held", "customer_code": "HLD",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeState(t, rr)
	assert.Equal(t, SelectionHeld, resp.State.Selection.Kind)
	assert.Equal(t, "HLD", resp.State.Form.CustomerCode)

	// Selecting the same customer again deselects.
	rr = doJSON(t, r, http.MethodPost, "/select", map[string]string{
		"kind": "held", "customer_code": "HLD",
	})
	resp = decodeState(t, rr)
	assert.Equal(t, SelectionNone, resp.State.Selection.Kind)
}

func TestSelectEndpointRejectsBadKind(t *testing.T) {
	store := newMockStore()
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/select", map[string]string{
		"kind": "archived", "customer_code": "X",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSelectionEndpointFiltersByKind(t *testing.T) {
	store := newMockStore()
	no := "12"
	store.seed(
		&SaleLine{ID: 1, CustomerCode: "PRN", Status: StatusPrinted, BillNo: &no, Total: 40},
		&SaleLine{ID: 2, CustomerCode: "HLD", Status: StatusHeld, Total: 30},
	)
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodGet, "/selection?kind=printed", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var printed map[string][]PrintedGroup
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &printed))
	require.Len(t, printed["printed"], 1)
	assert.Equal(t, "12", printed["printed"][0].BillNo)

	rr = doJSON(t, r, http.MethodGet, "/selection?kind=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteLineEndpoint(t *testing.T) {
	store := newMockStore()
	store.seed(draft(1, "ABC", 10))
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodDelete, "/lines/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeState(t, rr).State.Displayed)

	rr = doJSON(t, r, http.MethodDelete, "/lines/1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, r, http.MethodDelete, "/lines/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEditLineEndpointRequestsFocus(t *testing.T) {
	store := newMockStore()
	store.seed(draft(1, "ABC", 10))
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/lines/1/edit", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeState(t, rr)
	assert.Equal(t, int64(1), resp.State.EditingID)
	require.NotNil(t, resp.Focus)
	assert.Equal(t, FieldWeight, resp.Focus.Field)
	assert.True(t, resp.Focus.Select)
}

func TestPrintEndpointReturnsReceipt(t *testing.T) {
	store := newMockStore()
	store.seed(&SaleLine{ID: 1, CustomerCode: "ABC", ItemName: "Tomato", Weight: 10, PricePerKg: 20, Total: 200})
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/print", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeState(t, rr)
	require.NotNil(t, resp.Receipt)
	assert.Equal(t, "101", resp.Receipt.BillNo)
	assert.Empty(t, resp.State.Selection.ActiveBillNo)
	assert.Equal(t, SelectionNone, resp.State.Selection.Kind)
}

func TestPrintEndpointFailureReportsBadGateway(t *testing.T) {
	store := newMockStore()
	store.seed(&SaleLine{ID: 1, CustomerCode: "ABC", ItemName: "Tomato", Weight: 10, PricePerKg: 20, Total: 200})
	store.markErr = errors.New("down")
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/print", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "resynchronized")
}

func TestGivenAmountEndpoint(t *testing.T) {
	store := newMockStore()
	store.seed(draft(1, "XYZ", 100), draft(2, "XYZ", 200))
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/form", map[string]string{"field": "given_amount", "value": "500"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, http.MethodPost, "/given-amount", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeState(t, rr)
	for _, l := range resp.State.Displayed {
		require.NotNil(t, l.GivenAmount)
		assert.InDelta(t, 500.0, *l.GivenAmount, 1e-9)
	}
}

func TestHoldAllEndpoint(t *testing.T) {
	store := newMockStore()
	store.seed(draft(1, "ABC", 10), draft(2, "XYZ", 20))
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/hold-all", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeState(t, rr).State.Displayed)
}

func TestResyncEndpoint(t *testing.T) {
	store := newMockStore()
	r, _ := newTestRouter(t, store)

	store.seed(draft(7, "NEW", 70))
	rr := doJSON(t, r, http.MethodPost, "/resync", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeState(t, rr)
	require.Len(t, resp.State.Displayed, 1)
	assert.Equal(t, int64(7), resp.State.Displayed[0].ID)
}

func TestLoanEndpoint(t *testing.T) {
	store := newMockStore()
	store.loans["ABC"] = 150
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodGet, "/loan/ABC", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "ABC", payload["customer_code"])
	assert.InDelta(t, 150.0, payload["loan_amount"].(float64), 1e-9)
}

func TestClearFormEndpointKeepsContinuation(t *testing.T) {
	store := newMockStore()
	no := "9"
	store.seed(&SaleLine{ID: 1, CustomerCode: "PRN", Status: StatusPrinted, BillNo: &no, Total: 40})
	r, _ := newTestRouter(t, store)

	rr := doJSON(t, r, http.MethodPost, "/select", map[string]string{
		"kind": "printed", "customer_code": "PRN", "bill_no": "9",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	// Bare clear keeps the printed continuation context.
	rr = doJSON(t, r, http.MethodPost, "/form/clear", nil)
	resp := decodeState(t, rr)
	assert.Equal(t, "9", resp.State.Selection.ActiveBillNo)
	assert.Empty(t, resp.State.Form.CustomerCode)

	rr = doJSON(t, r, http.MethodPost, "/form/clear", map[string]bool{"drop_bill_context": true})
	resp = decodeState(t, rr)
	assert.Equal(t, SelectionNone, resp.State.Selection.Kind)
	assert.Empty(t, resp.State.Selection.ActiveBillNo)
}
