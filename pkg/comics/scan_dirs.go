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

func (svc *Service) RetrieveScanDir(ctx context.Context, dir string) (*models.ScanDir, error) {
	scanDir := &models.ScanDir{}
	err := svc.db.
		NewSelect().
		Model(scanDir).
		Where("sd.dir = ?", dir).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Scan directory")
		}
		return nil, errors.WithStack(err)
	}
	return scanDir, nil
}

// ListScanDirs returns the cached effective mtime of every directory, keyed
// by directory path.
func (svc *Service) ListScanDirs(ctx context.Context) (map[string]int64, error) {
	var rows []*models.ScanDir
	err := svc.db.
		NewSelect().
		Model(&rows).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	dirs := make(map[string]int64, len(rows))
	for _, row := range rows {
		dirs[row.Dir] = row.MtimeNs
	}
	return dirs, nil
}

func (svc *Service) UpsertScanDir(ctx context.Context, dir string, mtimeNs int64) error {
	scanDir := &models.ScanDir{
		Dir:       dir,
		MtimeNs:   mtimeNs,
		UpdatedAt: time.Now(),
	}
	_, err := svc.db.
		NewInsert().
		Model(scanDir).
		On("CONFLICT (dir) DO UPDATE").
		Set("mtime_ns = EXCLUDED.mtime_ns").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}

// ClearScanDirs forgets every cached directory so the next scan walks all
// files again.
func (svc *Service) ClearScanDirs(ctx context.Context) (int, error) {
	res, err := svc.db.
		NewDelete().
		Model((*models.ScanDir)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	return int(n), errors.WithStack(err)
}

// PruneScanDirs deletes cache rows for directories not in keep.
func (svc *Service) PruneScanDirs(ctx context.Context, keep map[string]struct{}) (int, error) {
	existing, err := svc.ListScanDirs(ctx)
	if err != nil {
		return 0, err
	}

	stale := make([]string, 0)
	for dir := range existing {
		if _, ok := keep[dir]; !ok {
			stale = append(stale, dir)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(stale); start += deleteBatchSize {
			end := min(start+deleteBatchSize, len(stale))
			_, err := tx.NewDelete().
				Model((*models.ScanDir)(nil)).
				Where("dir IN (?)", bun.In(stale[start:end])).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return len(stale), nil
}
