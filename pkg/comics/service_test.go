package comics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shishobooks/longbox/internal/testgen"
	"github.com/shishobooks/longbox/pkg/errcodes"
	"github.com/shishobooks/longbox/pkg/identity"
	"github.com/shishobooks/longbox/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newComic(path, publisher, series string) *models.Comic {
	return &models.Comic{
		ID:        identity.Of(path),
		Path:      path,
		Publisher: publisher,
		Series:    series,
		Name:      path,
		UpdatedAt: time.Now().Truncate(time.Second),
		Metadata:  models.ComicMetadata{"Series": series},
	}
}

func TestUpsertComic_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testgen.NewTestDB(t))

	comic := newComic("/comics/Marvel/X-Men/1.cbz", "Marvel", "X-Men")
	comic.TotalPages = 20
	require.NoError(t, svc.UpsertComic(ctx, comic))
	createdAt := comic.CreatedAt

	again := newComic("/comics/Marvel/X-Men/1.cbz", "Marvel", "Uncanny X-Men")
	again.TotalPages = 22
	thumb := again.ID + ".jpg"
	again.ThumbnailPath = &thumb
	require.NoError(t, svc.UpsertComic(ctx, again))

	count, err := svc.CountComics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := svc.RetrieveComic(ctx, RetrieveComicOptions{ID: &comic.ID})
	require.NoError(t, err)
	assert.Equal(t, "Uncanny X-Men", got.Series)
	assert.Equal(t, 22, got.TotalPages)
	require.NotNil(t, got.ThumbnailPath)
	assert.Equal(t, thumb, *got.ThumbnailPath)
	assert.Equal(t, "Uncanny X-Men", got.Metadata["Series"])
	assert.WithinDuration(t, createdAt, got.CreatedAt, time.Millisecond, "created_at must survive upserts")
}

func TestRetrieveComic(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testgen.NewTestDB(t))

	comic := newComic("/comics/a.cbz", "Image", "Saga")
	require.NoError(t, svc.UpsertComic(ctx, comic))

	got, err := svc.RetrieveComic(ctx, RetrieveComicOptions{Path: &comic.Path})
	require.NoError(t, err)
	assert.Equal(t, comic.ID, got.ID)

	missing := identity.Of("/comics/missing.cbz")
	_, err = svc.RetrieveComic(ctx, RetrieveComicOptions{ID: &missing})
	assert.ErrorIs(t, err, errcodes.NotFound("Comic"))
}

func TestListComics(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testgen.NewTestDB(t))

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.UpsertComic(ctx, newComic(fmt.Sprintf("/comics/saga-%d.cbz", i), "Image", "Saga")))
	}
	require.NoError(t, svc.UpsertComic(ctx, newComic("/comics/xmen.cbz", "Marvel", "X-Men")))

	publisher := "image"
	comics, total, err := svc.ListComicsWithTotal(ctx, ListComicsOptions{Publisher: &publisher})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, comics, 3)

	limit := 2
	comics, total, err = svc.ListComicsWithTotal(ctx, ListComicsOptions{Limit: &limit})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, comics, 2)

	comics, err = svc.ListComics(ctx, ListComicsOptions{
		IDs:     []string{identity.Of("/comics/xmen.cbz")},
		Columns: []string{"id", "path"},
	})
	require.NoError(t, err)
	require.Len(t, comics, 1)
	assert.Equal(t, "/comics/xmen.cbz", comics[0].Path)
	assert.Empty(t, comics[0].Publisher)
}

func TestDeleteComics(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testgen.NewTestDB(t))

	ids := make([]string, 0)
	for i := 0; i < deleteBatchSize+10; i++ {
		c := newComic(fmt.Sprintf("/comics/%04d.cbz", i), "P", "S")
		require.NoError(t, svc.UpsertComic(ctx, c))
		ids = append(ids, c.ID)
	}

	deleted, err := svc.DeleteComics(ctx, ids[1:])
	require.NoError(t, err)
	assert.Equal(t, len(ids)-1, deleted)

	count, err := svc.CountComics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScanDirs(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testgen.NewTestDB(t))

	_, err := svc.RetrieveScanDir(ctx, "/comics")
	assert.ErrorIs(t, err, errcodes.NotFound("Scan directory"))

	require.NoError(t, svc.UpsertScanDir(ctx, "/comics", 1000))
	require.NoError(t, svc.UpsertScanDir(ctx, "/comics/Marvel", 2000))
	require.NoError(t, svc.UpsertScanDir(ctx, "/comics", 1500))

	sd, err := svc.RetrieveScanDir(ctx, "/comics")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), sd.MtimeNs)

	dirs, err := svc.ListScanDirs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"/comics": 1500, "/comics/Marvel": 2000}, dirs)

	pruned, err := svc.PruneScanDirs(ctx, map[string]struct{}{"/comics": {}})
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	cleared, err := svc.ClearScanDirs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	dirs, err = svc.ListScanDirs(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirs)
}
