package comics

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/longbox/pkg/errcodes"
	"github.com/shishobooks/longbox/pkg/models"
	"github.com/uptrace/bun"
)

// SQLite caps bound parameters per statement, so bulk deletes are chunked.
const deleteBatchSize = 500

type RetrieveComicOptions struct {
	ID   *string
	Path *string
}

type ListComicsOptions struct {
	Limit     *int
	Offset    *int
	IDs       []string
	Publisher *string
	Series    *string
	// Columns limits the selected columns. Empty selects everything.
	Columns []string

	includeTotal bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// UpsertComic inserts the comic or replaces every derived column of the
// existing row with the same id. CreatedAt is kept from the first insert.
func (svc *Service) UpsertComic(ctx context.Context, comic *models.Comic) error {
	now := time.Now()
	if comic.CreatedAt.IsZero() {
		comic.CreatedAt = now
	}
	if comic.ScannedAt.IsZero() {
		comic.ScannedAt = now
	}
	if comic.Metadata == nil {
		comic.Metadata = models.ComicMetadata{}
	}

	_, err := svc.db.
		NewInsert().
		Model(comic).
		On("CONFLICT (id) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Set("scanned_at = EXCLUDED.scanned_at").
		Set("path = EXCLUDED.path").
		Set("publisher = EXCLUDED.publisher").
		Set("series = EXCLUDED.series").
		Set("name = EXCLUDED.name").
		Set("thumbnail_path = EXCLUDED.thumbnail_path").
		Set("metadata = EXCLUDED.metadata").
		Set("total_pages = EXCLUDED.total_pages").
		Set("converted_at = EXCLUDED.converted_at").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveComic(ctx context.Context, opts RetrieveComicOptions) (*models.Comic, error) {
	comic := &models.Comic{}

	q := svc.db.
		NewSelect().
		Model(comic)

	if opts.ID != nil {
		q = q.Where("c.id = ?", *opts.ID)
	}
	if opts.Path != nil {
		q = q.Where("c.path = ?", *opts.Path)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Comic")
		}
		return nil, errors.WithStack(err)
	}

	return comic, nil
}

func (svc *Service) ListComics(ctx context.Context, opts ListComicsOptions) ([]*models.Comic, error) {
	c, _, err := svc.listComicsWithTotal(ctx, opts)
	return c, errors.WithStack(err)
}

func (svc *Service) ListComicsWithTotal(ctx context.Context, opts ListComicsOptions) ([]*models.Comic, int, error) {
	opts.includeTotal = true
	return svc.listComicsWithTotal(ctx, opts)
}

func (svc *Service) listComicsWithTotal(ctx context.Context, opts ListComicsOptions) ([]*models.Comic, int, error) {
	var comics []*models.Comic
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&comics).
		Order("c.publisher ASC", "c.series ASC", "c.path ASC")

	if len(opts.Columns) > 0 {
		q = q.Column(opts.Columns...)
	}
	if len(opts.IDs) > 0 {
		q = q.Where("c.id IN (?)", bun.In(opts.IDs))
	}
	if opts.Publisher != nil {
		q = q.Where("c.publisher = ? COLLATE NOCASE", *opts.Publisher)
	}
	if opts.Series != nil {
		q = q.Where("c.series = ? COLLATE NOCASE", *opts.Series)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return comics, total, nil
}

func (svc *Service) CountComics(ctx context.Context) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.Comic)(nil)).
		Count(ctx)
	return count, errors.WithStack(err)
}

// DeleteComics removes the comics with the given ids and returns how many
// rows were deleted. Progress rows are left alone.
func (svc *Service) DeleteComics(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(ids); start += deleteBatchSize {
			end := min(start+deleteBatchSize, len(ids))
			res, err := tx.NewDelete().
				Model((*models.Comic)(nil)).
				Where("id IN (?)", bun.In(ids[start:end])).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return errors.WithStack(err)
			}
			deleted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return deleted, nil
}
