package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE scan_runs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				finished_at TIMESTAMPTZ,
				status TEXT NOT NULL,
				trigger_source TEXT NOT NULL,
				full_scan BOOLEAN NOT NULL DEFAULT FALSE,
				stats TEXT,
				error TEXT
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Index for retention cleanup of old runs
		_, err = db.Exec(`CREATE INDEX ix_scan_runs_created_at ON scan_runs(created_at)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS scan_runs")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
