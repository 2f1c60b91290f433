package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/longbox/pkg/cbz"
	"github.com/shishobooks/longbox/pkg/comics"
	"github.com/shishobooks/longbox/pkg/convert"
	"github.com/shishobooks/longbox/pkg/database"
	"github.com/shishobooks/longbox/pkg/fileutils"
	"github.com/shishobooks/longbox/pkg/identity"
	"github.com/shishobooks/longbox/pkg/metrics"
	"github.com/shishobooks/longbox/pkg/models"
)

type ScanOptions struct {
	// Full clears the directory cache first so every directory is re-read.
	Full    bool
	Trigger string
}

// RunScan runs one cycle synchronously. It returns ErrScanInProgress
// immediately if another cycle is running.
func (w *Worker) RunScan(ctx context.Context, opts ScanOptions) (*models.ScanStats, error) {
	if opts.Trigger == "" {
		opts.Trigger = models.ScanTriggerManual
	}
	if !w.acquire(opts) {
		return nil, errors.WithStack(ErrScanInProgress)
	}
	return w.runAcquired(ctx, opts)
}

// runAcquired runs a cycle for a caller that already holds the scan slot and
// always releases it.
func (w *Worker) runAcquired(ctx context.Context, opts ScanOptions) (*models.ScanStats, error) {
	defer w.running.Store(false)
	metrics.SetRunning(true)
	defer metrics.SetRunning(false)

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	log := w.log.ID(id.String()).Root(logger.Data{"scan_id": id.String(), "full": opts.Full, "trigger": opts.Trigger})
	ctx = log.WithContext(ctx)

	// Bookkeeping writes must land even when the cycle itself was cancelled.
	bookkeeping := context.WithoutCancel(ctx)

	run := &models.ScanRun{Trigger: opts.Trigger, Full: opts.Full}
	if err := w.scanService.CreateRun(bookkeeping, run); err != nil {
		log.Err(err).Warn("failed to record scan run")
		run = nil
	}

	log.Info("starting scan", logger.Data{"roots": w.config.LibraryRoots})
	start := time.Now()

	stats, scanErr := w.scan(ctx, opts)
	duration := time.Since(start)
	stats.DurationMs = duration.Milliseconds()

	status := models.ScanRunStatusCompleted
	if scanErr != nil {
		status = models.ScanRunStatusFailed
		log.Err(scanErr).Error("scan failed")
	} else {
		log.Info("finished scan", logger.Data{
			"duration_ms":       stats.DurationMs,
			"dirs_walked":       stats.DirsWalked,
			"dirs_skipped":      stats.DirsSkipped,
			"files_seen":        stats.FilesSeen,
			"upserted":          stats.Upserted,
			"converted":         stats.Converted,
			"convert_failed":    stats.ConvertFailed,
			"thumbnails_ok":     stats.ThumbnailsOK,
			"thumbnails_failed": stats.ThumbnailsFailed,
			"errors":            stats.Errors,
			"reclaimed":         stats.Reclaimed,
		})
	}
	metrics.RecordScan(status, stats, duration)

	if count, err := w.comicService.CountComics(bookkeeping); err == nil {
		metrics.CatalogComics.Set(float64(count))
	}

	if run != nil {
		if err := w.scanService.FinishRun(bookkeeping, run, stats, scanErr); err != nil {
			log.Err(err).Warn("failed to finish scan run")
		}
	}
	if w.config.ScanRunRetention > 0 {
		n, err := w.scanService.DeleteRunsBefore(bookkeeping, time.Now().Add(-w.config.ScanRunRetention))
		if err != nil {
			log.Err(err).Warn("failed to delete old scan runs")
		} else if n > 0 {
			log.Debug("deleted old scan runs", logger.Data{"count": n})
		}
	}

	return stats, scanErr
}

// scan walks every configured root and then reclaims orphans. A panic
// anywhere below is turned into an error so the scan slot is always released.
func (w *Worker) scan(ctx context.Context, opts ScanOptions) (stats *models.ScanStats, err error) {
	log := logger.FromContext(ctx)
	stats = &models.ScanStats{}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("scan panicked: %v", r)
		}
	}()

	if opts.Full {
		n, err := w.comicService.ClearScanDirs(ctx)
		if err != nil {
			return stats, errors.WithStack(err)
		}
		log.Info("cleared directory cache", logger.Data{"count": n})
	}

	cached, err := w.comicService.ListScanDirs(ctx)
	if err != nil {
		return stats, errors.WithStack(err)
	}
	catalog, err := w.comicService.ListComics(ctx, comics.ListComicsOptions{})
	if err != nil {
		return stats, errors.WithStack(err)
	}
	state := newScanState(catalog, cached)

	for _, root := range w.config.LibraryRoots {
		if err := w.walkRoot(ctx, root, state, stats); err != nil {
			return stats, err
		}
	}

	// Reclaiming with a partial seen set would delete live comics.
	if err := ctx.Err(); err != nil {
		return stats, errors.WithStack(err)
	}

	if err := w.reclaim(ctx, state, stats); err != nil {
		return stats, err
	}

	pruned, err := w.comicService.PruneScanDirs(ctx, state.visited)
	if err != nil {
		log.Err(err).Warn("failed to prune directory cache")
	}
	stats.ScanDirsPruned = pruned

	return stats, nil
}

// walkRoot visits root depth-first with an explicit stack. Only cancellation
// aborts the walk; every other failure is counted and the walk moves on.
func (w *Worker) walkRoot(ctx context.Context, root string, state *scanState, stats *models.ScanStats) error {
	log := logger.FromContext(ctx).Data(logger.Data{"root": root})

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = errors.Errorf("%s is not a directory", root)
		}
		log.Err(err).Error("library root unavailable")
		stats.Errors++
		return nil
	}

	stack := []string{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		subdirs, err := w.visitDir(ctx, dir, state, stats)
		if err != nil {
			if ctx.Err() != nil {
				return errors.WithStack(ctx.Err())
			}
			log.Err(err).Error("failed to scan directory", logger.Data{"dir": dir})
			stats.Errors++
			continue
		}

		// Reverse so the lexically first subdirectory is popped first.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return nil
}

// visitDir processes one directory and returns its subdirectories. When the
// directory's effective mtime is not newer than the cached value, its files
// are not opened; the catalog rows already recorded for it are marked seen.
// Subdirectories are returned either way, since adding a file to a nested
// directory does not touch the parent's mtime.
func (w *Worker) visitDir(ctx context.Context, dir string, state *scanState, stats *models.ScanStats) ([]string, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"dir": dir})

	mtimeNs, err := effectiveMtimeNs(dir, w.config.ScanMarkerFile)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	state.visited[dir] = struct{}{}

	subdirs := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			subdirs = append(subdirs, filepath.Join(dir, entry.Name()))
		}
	}

	if cachedNs, ok := state.cached[dir]; ok && mtimeNs <= cachedNs {
		n := state.markDirSeen(dir)
		stats.DirsSkipped++
		stats.FilesSeen += n
		log.Debug("directory unchanged; skipping", logger.Data{"comics": n})
		return subdirs, nil
	}

	stats.DirsWalked++
	retry := false
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !w.processEntry(ctx, filepath.Join(dir, entry.Name()), state, stats) {
			retry = true
		}
	}

	// A failed conversion leaves the cache behind so the next cycle retries.
	if retry {
		log.Info("leaving directory cache stale for retry")
		return subdirs, nil
	}

	err = database.WithRetry(ctx, w.config.DatabaseMaxRetries, func() error {
		return w.comicService.UpsertScanDir(ctx, dir, mtimeNs)
	})
	if err != nil {
		log.Err(err).Warn("failed to update directory cache")
		stats.Errors++
	}

	return subdirs, nil
}

// processEntry routes one regular file through conversion and the comic
// pipeline. It returns false when the file should be retried next cycle.
func (w *Worker) processEntry(ctx context.Context, path string, state *scanState, stats *models.ScanStats) bool {
	log := logger.FromContext(ctx).Data(logger.Data{"path": path})

	var convertedAt *time.Time
	switch {
	case convert.IsLegacy(path):
		if !w.converter.Allowed(path) {
			log.Debug("legacy archive outside conversion root; skipping")
			return true
		}
		target, err := w.converter.Convert(ctx, path)
		if err != nil {
			log.Err(err).Warn("failed to convert legacy archive")
			stats.ConvertFailed++
			stats.Errors++
			return false
		}
		now := time.Now()
		convertedAt = &now
		stats.Converted++
		path = target
	case !convert.IsCanonical(path):
		return true
	}

	w.processComic(ctx, path, convertedAt, state, stats)
	return true
}

// processComic identifies, thumbnails, reads and upserts one canonical
// archive. Failures of the derived fields fall back to defaults; only an
// unreadable container keeps the comic out of the catalog.
func (w *Worker) processComic(ctx context.Context, path string, convertedAt *time.Time, state *scanState, stats *models.ScanStats) {
	log := logger.FromContext(ctx).Data(logger.Data{"path": path})

	info, err := os.Stat(path)
	if err != nil {
		log.Err(err).Warn("failed to stat comic")
		stats.Errors++
		return
	}

	state.markSeen(path)
	stats.FilesSeen++

	id := identity.Of(path)
	existing := state.byPath[path]

	archive, err := cbz.Open(path)
	if err != nil {
		log.Err(err).Error("failed to open comic archive")
		stats.Errors++
		return
	}
	defer archive.Close()

	thumbnailPath, err := w.thumbnails.GenerateFromArchive(ctx, archive, id)
	if err != nil {
		log.Err(err).Warn("failed to generate thumbnail")
		stats.ThumbnailsFailed++
		thumbnailPath = nil
	} else {
		stats.ThumbnailsOK++
	}

	metadata := archive.Metadata()
	totalPages := len(archive.Images())
	if totalPages == 0 && existing != nil {
		totalPages = existing.TotalPages
	}
	if convertedAt == nil && existing != nil {
		convertedAt = existing.ConvertedAt
	}

	comic := &models.Comic{
		ID:            id,
		Path:          path,
		Publisher:     orDefault(metadata.Get("Publisher"), models.UnknownPublisher),
		Series:        orDefault(metadata.Get("Series"), models.UnknownSeries),
		Name:          orDefault(metadata.Get("Title"), fileutils.NameWithoutExt(path)),
		ThumbnailPath: thumbnailPath,
		Metadata:      metadata,
		TotalPages:    totalPages,
		UpdatedAt:     info.ModTime(),
		ScannedAt:     time.Now(),
		ConvertedAt:   convertedAt,
	}
	if existing != nil {
		comic.CreatedAt = existing.CreatedAt
	}

	err = database.WithRetry(ctx, w.config.DatabaseMaxRetries, func() error {
		return w.comicService.UpsertComic(ctx, comic)
	})
	if err != nil {
		log.Err(err).Error("failed to upsert comic")
		stats.Errors++
		return
	}
	stats.Upserted++

	if existing == nil {
		log.Info("cataloged new comic", logger.Data{"id": id, "publisher": comic.Publisher, "series": comic.Series, "pages": totalPages})
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
