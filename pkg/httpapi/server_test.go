package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agenthands/edgecas/internal/testkit"
	"github.com/agenthands/edgecas/pkg/edgecas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenario = `{"version":1,"filter":"","columns":[],"pricingUnit":"usd","costDuration":"hr","region":"us-east-1","reservedTerm":"1yr","compareOn":false,"selected":[],"visibleColumns":[]}`

func newRouter(t *testing.T, maxRequestBytes int64) (http.Handler, edgecas.Store) {
	t.Helper()
	store, err := edgecas.Open(context.Background(), edgecas.Config{
		PublicURL:  "https://edge.test",
		Background: edgecas.BackgroundConfig{Inline: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return InitRouter(NewServer(ServerParams{Store: store, MaxRequestBytes: maxRequestBytes})), store
}

func do(h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostThenGet(t *testing.T) {
	h, _ := newRouter(t, 0)

	rec := do(h, http.MethodPost, "/", []byte(scenario))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	id := rec.Body.String()
	assert.Regexp(t, `^[0-9a-f]{40}$`, id)

	rec = do(h, http.MethodGet, "/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=604800", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, scenario, rec.Body.String())
}

func TestPostRejections(t *testing.T) {
	h, _ := newRouter(t, 0)

	t.Run("InvalidJSON", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/", []byte(`{"version":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, edgecas.ReasonInvalidJSON, rec.Body.String())
	})

	t.Run("Schema", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/", []byte(strings.Replace(scenario, `"version":1`, `"version":2`, 1)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "version")
	})

	t.Run("MissingFieldsJoined", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/", []byte(`{"version":1}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, rec.Body.String())
	})

	t.Run("TooLarge", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/", testkit.SizedDocument(edgecas.DefaultMaxCanonicalBytes+1))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, edgecas.ReasonTooLarge, rec.Body.String())
	})

	t.Run("AtLimit", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/", testkit.SizedDocument(edgecas.DefaultMaxCanonicalBytes))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequestBodyCap(t *testing.T) {
	h, _ := newRouter(t, 64)

	rec := do(h, http.MethodPost, "/", []byte(scenario))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, msgBodyTooLarge, rec.Body.String())
}

func TestBodyReadFailure(t *testing.T) {
	h, _ := newRouter(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/", testkit.NewErrorReader(strings.NewReader(scenario), 10, nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNotFound(t *testing.T) {
	h, _ := newRouter(t, 0)

	for _, path := range []string{
		"/0000000000000000000000000000000000000000",
		"/not-an-id",
		"/abc/def",
	} {
		rec := do(h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, msgNotFound, rec.Body.String(), path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
	}
}

func TestMethodGuard(t *testing.T) {
	h, _ := newRouter(t, 0)

	cases := []struct {
		method, path, allow string
	}{
		{http.MethodPut, "/", http.MethodPost},
		{http.MethodGet, "/", http.MethodPost},
		{http.MethodDelete, "/", http.MethodPost},
		{http.MethodPost, "/0000000000000000000000000000000000000000", http.MethodGet},
		{http.MethodPut, "/anything", http.MethodGet},
	}
	for _, tc := range cases {
		t.Run(tc.method+tc.path, func(t *testing.T) {
			rec := do(h, tc.method, tc.path, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, tc.allow, rec.Header().Get("Allow"))
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	h, store := newRouter(t, 0)
	require.NoError(t, store.Close())

	rec := do(h, http.MethodPost, "/", []byte(scenario))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
