package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shishobooks/longbox/internal/testgen"
	"github.com/shishobooks/longbox/pkg/config"
	"github.com/shishobooks/longbox/pkg/thumbnails"
	"github.com/shishobooks/longbox/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEcho(t *testing.T, environment string) *echo.Echo {
	t.Helper()

	cfg := config.NewForTest()
	cfg.Environment = environment
	cfg.LibraryRoots = []string{testgen.TempLibraryDir(t)}
	cfg.LogoDir = testgen.TempDir(t, "logos-*")
	db := testgen.NewTestDB(t)

	generator := thumbnails.NewGenerator(testgen.TempDir(t, "thumbnails-*"), 60, 80)
	w := worker.NewWithDependencies(cfg, db, generator, nil)

	e, err := newEcho(cfg, db, w)
	require.NoError(t, err)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_Routes(t *testing.T) {
	e := newTestEcho(t, "")

	rec := do(e, http.MethodGet, "/comics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/library?user_id=1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/scans", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"running":false`)

	rec = do(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "longbox_scan_running")

	rec = do(e, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodDelete, "/test/progress", "")
	assert.NotEqual(t, http.StatusOK, rec.Code, "test routes are only mounted in the test environment")
}

func TestServer_TestRoutes(t *testing.T) {
	e := newTestEcho(t, "test")

	rec := do(e, http.MethodPost, "/test/progress", `{"user_id":1,"comic_id":"abc","last_read_page":4,"total_pages":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(e, http.MethodDelete, "/test/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())

	rec = do(e, http.MethodDelete, "/test/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":0}`, rec.Body.String())
}
