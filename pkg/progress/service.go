// Package progress is the read side of per-user reading progress. Rows are
// written by the sync layer; the library tree only ever loads one user's rows
// at a time.
package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/longbox/pkg/models"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// ListProgress returns every progress row for the user keyed by comic id.
func (svc *Service) ListProgress(ctx context.Context, userID int) (map[string]*models.ReadingProgress, error) {
	var rows []*models.ReadingProgress
	err := svc.db.
		NewSelect().
		Model(&rows).
		Where("rp.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	progress := make(map[string]*models.ReadingProgress, len(rows))
	for _, row := range rows {
		progress[row.ComicID] = row
	}
	return progress, nil
}

func (svc *Service) UpsertProgress(ctx context.Context, progress *models.ReadingProgress) error {
	if progress.UpdatedAt.IsZero() {
		progress.UpdatedAt = time.Now()
	}
	_, err := svc.db.
		NewInsert().
		Model(progress).
		On("CONFLICT (user_id, comic_id) DO UPDATE").
		Set("last_read_page = EXCLUDED.last_read_page").
		Set("total_pages = EXCLUDED.total_pages").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}

// DeleteProgress removes every progress row, or only the given user's rows
// when userID is set.
func (svc *Service) DeleteProgress(ctx context.Context, userID *int) (int, error) {
	q := svc.db.
		NewDelete().
		Model((*models.ReadingProgress)(nil))
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	} else {
		q = q.Where("1 = 1")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	return int(n), errors.WithStack(err)
}
