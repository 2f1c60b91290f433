package scans

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/longbox/pkg/errcodes"
	"github.com/shishobooks/longbox/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveRunOptions struct {
	ID *int
}

type ListRunsOptions struct {
	Limit    *int
	Offset   *int
	Statuses []string

	includeTotal bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// CreateRun records the start of a scan cycle.
func (svc *Service) CreateRun(ctx context.Context, run *models.ScanRun) error {
	now := time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = run.CreatedAt
	if run.Status == "" {
		run.Status = models.ScanRunStatusInProgress
	}

	_, err := svc.db.
		NewInsert().
		Model(run).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// FinishRun stores the outcome of a cycle. A nil scanErr marks the run as
// completed, anything else as failed.
func (svc *Service) FinishRun(ctx context.Context, run *models.ScanRun, stats *models.ScanStats, scanErr error) error {
	now := time.Now()
	run.FinishedAt = &now
	run.UpdatedAt = now
	run.Status = models.ScanRunStatusCompleted
	run.Error = nil
	if scanErr != nil {
		run.Status = models.ScanRunStatusFailed
		msg := scanErr.Error()
		run.Error = &msg
	}
	if stats != nil {
		if err := run.MarshalStats(stats); err != nil {
			return errors.WithStack(err)
		}
	}

	_, err := svc.db.
		NewUpdate().
		Model(run).
		Column("finished_at", "updated_at", "status", "stats", "error").
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveRun(ctx context.Context, opts RetrieveRunOptions) (*models.ScanRun, error) {
	run := &models.ScanRun{}

	q := svc.db.
		NewSelect().
		Model(run)

	if opts.ID != nil {
		q = q.Where("sr.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Scan run")
		}
		return nil, errors.WithStack(err)
	}

	if err := run.UnmarshalStats(); err != nil {
		return nil, errors.WithStack(err)
	}

	return run, nil
}

func (svc *Service) ListRuns(ctx context.Context, opts ListRunsOptions) ([]*models.ScanRun, error) {
	r, _, err := svc.listRunsWithTotal(ctx, opts)
	return r, errors.WithStack(err)
}

func (svc *Service) ListRunsWithTotal(ctx context.Context, opts ListRunsOptions) ([]*models.ScanRun, int, error) {
	opts.includeTotal = true
	return svc.listRunsWithTotal(ctx, opts)
}

func (svc *Service) listRunsWithTotal(ctx context.Context, opts ListRunsOptions) ([]*models.ScanRun, int, error) {
	runs := []*models.ScanRun{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&runs).
		Order("sr.created_at DESC", "sr.id DESC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if len(opts.Statuses) > 0 {
		q = q.Where("sr.status IN (?)", bun.In(opts.Statuses))
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	for _, run := range runs {
		if err := run.UnmarshalStats(); err != nil {
			return nil, 0, errors.WithStack(err)
		}
	}

	return runs, total, nil
}

// FailInterruptedRuns marks runs that were left in progress by a previous
// process as failed. Only one process scans a catalog, so any in-progress row
// at startup belongs to a cycle that never finished.
func (svc *Service) FailInterruptedRuns(ctx context.Context) (int, error) {
	now := time.Now()
	msg := "interrupted by shutdown"
	res, err := svc.db.
		NewUpdate().
		Model((*models.ScanRun)(nil)).
		Set("status = ?", models.ScanRunStatusFailed).
		Set("finished_at = ?", now).
		Set("updated_at = ?", now).
		Set("error = ?", msg).
		Where("status = ?", models.ScanRunStatusInProgress).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	return int(n), errors.WithStack(err)
}

// DeleteRunsBefore removes finished runs created before cutoff.
func (svc *Service) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := svc.db.
		NewDelete().
		Model((*models.ScanRun)(nil)).
		Where("created_at < ?", cutoff).
		Where("status != ?", models.ScanRunStatusInProgress).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	return int(n), errors.WithStack(err)
}
