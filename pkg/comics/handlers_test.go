package comics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shishobooks/longbox/internal/testgen"
	"github.com/shishobooks/longbox/pkg/binder"
	"github.com/shishobooks/longbox/pkg/errcodes"
	"github.com/shishobooks/longbox/pkg/identity"
	"github.com/shishobooks/longbox/pkg/models"
	"github.com/shishobooks/longbox/pkg/thumbnails"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupTestServer(t *testing.T) (*echo.Echo, *bun.DB, *thumbnails.Generator) {
	t.Helper()

	db := testgen.NewTestDB(t)
	generator := thumbnails.NewGenerator(testgen.TempDir(t, "thumbnails-*"), 60, 80)

	b, err := binder.New()
	require.NoError(t, err)

	e := echo.New()
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	RegisterRoutesWithGroup(e.Group("/comics"), db, generator)
	RegisterThumbnailRoutes(e.Group("/thumbnails"), generator)

	return e, db, generator
}

func serve(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func insertComicFile(t *testing.T, db *bun.DB, dir string) *models.Comic {
	t.Helper()

	path := testgen.GenerateCBZ(t, dir, "Saga 1.cbz", testgen.CBZOptions{PageCount: 2})
	comic := newComic(path, "Image", "Saga")
	require.NoError(t, NewService(db).UpsertComic(context.Background(), comic))
	return comic
}

func TestHandler_List(t *testing.T) {
	e, db, _ := setupTestServer(t)
	insertComicFile(t, db, testgen.TempLibraryDir(t))

	rec := serve(e, "/comics?publisher=Image")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Comics []*models.Comic `json:"comics"`
		Total  int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Comics, 1)
	assert.Equal(t, "Saga", body.Comics[0].Series)

	rec = serve(e, "/comics?limit=1000")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandler_Retrieve(t *testing.T) {
	e, db, _ := setupTestServer(t)
	comic := insertComicFile(t, db, testgen.TempLibraryDir(t))

	rec := serve(e, "/comics/"+comic.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"series":"Saga"`)

	rec = serve(e, "/comics/"+identity.Of("/nope.cbz"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(e, "/comics/not-an-id")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Pages(t *testing.T) {
	e, db, _ := setupTestServer(t)
	comic := insertComicFile(t, db, testgen.TempLibraryDir(t))

	rec := serve(e, "/comics/"+comic.ID+"/pages")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"000.png"`)
	assert.Contains(t, rec.Body.String(), `"001.png"`)

	rec = serve(e, "/comics/"+comic.ID+"/pages/000.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = serve(e, "/comics/"+comic.ID+"/pages/999.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Pages_FileGone(t *testing.T) {
	e, db, _ := setupTestServer(t)
	comic := insertComicFile(t, db, testgen.TempLibraryDir(t))
	require.NoError(t, os.Remove(comic.Path))

	rec := serve(e, "/comics/"+comic.ID+"/pages")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Comic file not found.")
}

func TestHandler_Thumbnail(t *testing.T) {
	e, db, generator := setupTestServer(t)
	comic := insertComicFile(t, db, testgen.TempLibraryDir(t))

	rec := serve(e, "/thumbnails/"+comic.ID+".jpg")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	filename, err := generator.Generate(context.Background(), comic.Path, comic.ID)
	require.NoError(t, err)
	require.NotNil(t, filename)

	rec = serve(e, "/thumbnails/"+*filename)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get(echo.HeaderContentType))

	rec = serve(e, "/thumbnails/"+url.PathEscape(filepath.Base(comic.Path)))
	assert.Equal(t, http.StatusNotFound, rec.Code, "only <id>.jpg names are served")

	rec = serve(e, "/thumbnails/"+identity.Of("/nope.cbz")+".jpg")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
