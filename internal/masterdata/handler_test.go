package masterdata

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvds/salesdesk/internal/platform/httpx"
	_ "github.com/nvds/salesdesk/testing"
)

func newHandlerRouter(repo *mockRepository) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo))
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func doRequest(t *testing.T, r chi.Router, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestGetCustomerEndpointNotFound(t *testing.T) {
	r := newHandlerRouter(newMockRepository())

	rr := doRequest(t, r, http.MethodGet, "/customers/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	p := decodeProblem(t, rr)
	assert.Equal(t, "Not Found", p.Title)
	assert.Equal(t, http.StatusNotFound, p.Status)
}

func TestCreateCustomerEndpointDuplicate(t *testing.T) {
	r := newHandlerRouter(newMockRepository())

	body := map[string]string{"code": "ABC", "name": "Abc Stores"}
	rr := doRequest(t, r, http.MethodPost, "/customers", body)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doRequest(t, r, http.MethodPost, "/customers", body)
	assert.Equal(t, http.StatusConflict, rr.Code)

	p := decodeProblem(t, rr)
	assert.Equal(t, "Duplicate", p.Title)
}

func TestCreateCustomerEndpointValidationProblem(t *testing.T) {
	r := newHandlerRouter(newMockRepository())

	rr := doRequest(t, r, http.MethodPost, "/customers", map[string]string{"code": "ABC"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	p := decodeProblem(t, rr)
	assert.Equal(t, "Validation Failed", p.Title)
	assert.Contains(t, p.Detail, "Name")
}
