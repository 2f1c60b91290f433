package scans

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/longbox/pkg/errcodes"
	"github.com/shishobooks/longbox/pkg/models"
)

// Trigger starts scan cycles. TriggerScan reports false when a cycle is
// already running; the request is dropped rather than queued.
type Trigger interface {
	TriggerScan(full bool) bool
	Running() bool
}

type handler struct {
	scanService *Service
	trigger     Trigger
}

func (h *handler) create(c echo.Context) error {
	params := CreateScanPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	started := h.trigger.TriggerScan(params.Full)

	resp := struct {
		Started bool `json:"started"`
		Full    bool `json:"full"`
	}{started, params.Full}

	return errors.WithStack(c.JSON(http.StatusAccepted, resp))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Scan run")
	}

	run, err := h.scanService.RetrieveRun(ctx, RetrieveRunOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, run))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListScansQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	runs, total, err := h.scanService.ListRunsWithTotal(ctx, ListRunsOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		Statuses: params.Status,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Runs    []*models.ScanRun `json:"runs"`
		Total   int               `json:"total"`
		Running bool              `json:"running"`
	}{runs, total, h.trigger.Running()}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
