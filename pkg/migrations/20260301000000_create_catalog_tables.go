package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE comics (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				scanned_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				path TEXT NOT NULL,
				publisher TEXT NOT NULL,
				series TEXT NOT NULL,
				name TEXT NOT NULL,
				thumbnail_path TEXT,
				metadata TEXT NOT NULL DEFAULT '{}',
				total_pages INTEGER NOT NULL DEFAULT 0,
				converted_at TIMESTAMPTZ
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_comics_path ON comics(path)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_comics_publisher_series ON comics(publisher COLLATE NOCASE, series COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE scan_dirs (
				dir TEXT PRIMARY KEY,
				mtime_ns INTEGER NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Progress rows outlive the comics they point at on purpose: a file
		// that disappears and comes back under the same path keeps its history.
		_, err = db.Exec(`
			CREATE TABLE reading_progress (
				user_id INTEGER NOT NULL,
				comic_id TEXT NOT NULL,
				last_read_page INTEGER NOT NULL DEFAULT 0,
				total_pages INTEGER NOT NULL DEFAULT 0,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (user_id, comic_id)
			)
		`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS reading_progress")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS scan_dirs")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS comics")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
