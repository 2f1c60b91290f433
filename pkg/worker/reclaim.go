package worker

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/longbox/pkg/database"
	"github.com/shishobooks/longbox/pkg/models"
)

// reclaim deletes every catalog row the walk did not see, then the rows'
// thumbnails. Thumbnail failures are logged and do not bring rows back.
func (w *Worker) reclaim(ctx context.Context, state *scanState, stats *models.ScanStats) error {
	log := logger.FromContext(ctx)

	orphans := state.unseen()
	if len(orphans) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orphans))
	for _, comic := range orphans {
		ids = append(ids, comic.ID)
	}

	var deleted int
	err := database.WithRetry(ctx, w.config.DatabaseMaxRetries, func() error {
		var err error
		deleted, err = w.comicService.DeleteComics(ctx, ids)
		return err
	})
	if err != nil {
		return errors.WithStack(err)
	}
	stats.Reclaimed = deleted

	for _, comic := range orphans {
		filename := w.thumbnails.Filename(comic.ID)
		if comic.ThumbnailPath != nil {
			filename = *comic.ThumbnailPath
		}
		if err := w.thumbnails.Remove(filename); err != nil {
			log.Err(err).Warn("failed to remove thumbnail", logger.Data{"id": comic.ID, "filename": filename})
		}
		log.Info("reclaimed comic", logger.Data{"id": comic.ID, "path": comic.Path})
	}

	return nil
}
