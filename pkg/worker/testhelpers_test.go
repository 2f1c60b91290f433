package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/longbox/internal/testgen"
	"github.com/shishobooks/longbox/pkg/comics"
	"github.com/shishobooks/longbox/pkg/config"
	"github.com/shishobooks/longbox/pkg/convert"
	"github.com/shishobooks/longbox/pkg/models"
	"github.com/shishobooks/longbox/pkg/scans"
	"github.com/shishobooks/longbox/pkg/thumbnails"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// fakeExtractor stands in for the external unrar tool. It writes PNG pages
// plus an optional ComicInfo.xml, or fails while fail is set.
type fakeExtractor struct {
	t         *testing.T
	pages     int
	comicInfo *testgen.CBZOptions

	mu    sync.Mutex
	fail  error
	calls int
}

func (f *fakeExtractor) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeExtractor) Extract(_ context.Context, _, dest string) error {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	f.mu.Unlock()

	if fail != nil {
		return fail
	}
	for i := 0; i < f.pages; i++ {
		name := filepath.Join(dest, fmt.Sprintf("%03d.png", i))
		if err := os.WriteFile(name, testgen.GeneratePNG(f.t, 20, 30), 0600); err != nil {
			return err
		}
	}
	if f.comicInfo != nil {
		if err := os.WriteFile(filepath.Join(dest, "ComicInfo.xml"), testgen.ComicInfoXML(*f.comicInfo), 0600); err != nil {
			return err
		}
	}
	return nil
}

// testContext holds a worker wired to an in-memory catalog, one library
// root and a fake extractor.
type testContext struct {
	t            *testing.T
	ctx          context.Context
	db           *bun.DB
	cfg          *config.Config
	root         string
	worker       *Worker
	extractor    *fakeExtractor
	comicService *comics.Service
	scanService  *scans.Service
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()

	db := testgen.NewTestDB(t)
	root := testgen.TempLibraryDir(t)

	cfg := config.NewForTest()
	cfg.LibraryRoots = []string{root}
	cfg.ConversionRoot = root
	cfg.ThumbnailDir = testgen.TempDir(t, "thumbnails-*")
	cfg.TempDir = testgen.TempDir(t, "convert-*")
	cfg.ScanIntervalMinutes = 0
	cfg.DatabaseMaxRetries = 1

	extractor := &fakeExtractor{t: t, pages: 2}
	generator := thumbnails.NewGenerator(cfg.ThumbnailDir, 60, 80)
	converter := convert.NewConverter(cfg.ConversionRoot, cfg.TempDir, cfg.ConvertTimeout, extractor)

	w := NewWithDependencies(cfg, db, generator, converter)
	t.Cleanup(w.cancel)

	return &testContext{
		t:            t,
		ctx:          logger.New().WithContext(context.Background()),
		db:           db,
		cfg:          cfg,
		root:         root,
		worker:       w,
		extractor:    extractor,
		comicService: comics.NewService(db),
		scanService:  scans.NewService(db),
	}
}

func (tc *testContext) runScan(full bool) *models.ScanStats {
	tc.t.Helper()
	stats, err := tc.worker.RunScan(tc.ctx, ScanOptions{Full: full})
	require.NoError(tc.t, err)
	return stats
}

func (tc *testContext) listComics() []*models.Comic {
	tc.t.Helper()
	all, err := tc.comicService.ListComics(tc.ctx, comics.ListComicsOptions{})
	require.NoError(tc.t, err)
	return all
}

func (tc *testContext) comicByPath(path string) *models.Comic {
	tc.t.Helper()
	comic, err := tc.comicService.RetrieveComic(tc.ctx, comics.RetrieveComicOptions{Path: &path})
	require.NoError(tc.t, err)
	return comic
}

func (tc *testContext) thumbnailExists(comic *models.Comic) bool {
	if comic.ThumbnailPath == nil {
		return false
	}
	return testgen.FileExists(filepath.Join(tc.cfg.ThumbnailDir, *comic.ThumbnailPath))
}

func paths(all []*models.Comic) []string {
	out := make([]string, 0, len(all))
	for _, comic := range all {
		out = append(out, comic.Path)
	}
	return out
}
