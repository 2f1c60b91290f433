package scans

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers scan routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, trigger Trigger) {
	h := &handler{
		scanService: NewService(db),
		trigger:     trigger,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create)
}
