package testutils

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/longbox/pkg/comics"
	"github.com/shishobooks/longbox/pkg/models"
	"github.com/shishobooks/longbox/pkg/progress"
	"github.com/uptrace/bun"
)

type handler struct {
	db *bun.DB
}

// upsertProgressRequest is the request body for seeding reading progress.
type upsertProgressRequest struct {
	UserID       int    `json:"user_id" validate:"min=0"`
	ComicID      string `json:"comic_id" validate:"required"`
	LastReadPage int    `json:"last_read_page" validate:"min=0"`
	TotalPages   int    `json:"total_pages" validate:"min=0"`
}

// upsertProgress seeds a reading progress row.
// POST /test/progress.
func (h *handler) upsertProgress(c echo.Context) error {
	ctx := c.Request().Context()

	var req upsertProgressRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}

	row := &models.ReadingProgress{
		UserID:       req.UserID,
		ComicID:      req.ComicID,
		LastReadPage: req.LastReadPage,
		TotalPages:   req.TotalPages,
	}
	if err := progress.NewService(h.db).UpsertProgress(ctx, row); err != nil {
		return errors.Wrap(err, "failed to upsert progress")
	}

	return errors.WithStack(c.JSON(http.StatusCreated, row))
}

type deletedResponse struct {
	Deleted int `json:"deleted"`
}

// deleteAllProgress removes every user's progress.
// DELETE /test/progress.
func (h *handler) deleteAllProgress(c echo.Context) error {
	ctx := c.Request().Context()

	deleted, err := progress.NewService(h.db).DeleteProgress(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to delete progress")
	}

	return errors.WithStack(c.JSON(http.StatusOK, deletedResponse{Deleted: deleted}))
}

// clearCatalog deletes every comic and the directory cache so the next scan
// starts from nothing.
// DELETE /test/catalog.
func (h *handler) clearCatalog(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.db.NewDelete().
		Model((*models.Comic)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete comics")
	}

	if _, err := comics.NewService(h.db).ClearScanDirs(ctx); err != nil {
		return errors.Wrap(err, "failed to clear scan directories")
	}

	deleted, _ := result.RowsAffected()

	return errors.WithStack(c.JSON(http.StatusOK, deletedResponse{Deleted: int(deleted)}))
}
