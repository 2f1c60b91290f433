package comics

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/longbox/pkg/thumbnails"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers comic routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, generator *thumbnails.Generator) {
	h := &handler{
		comicService: NewService(db),
		thumbnails:   generator,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.GET("/:id/pages", h.pages)
	g.GET("/:id/pages/*", h.page)
}

// RegisterThumbnailRoutes serves generated thumbnails by filename.
func RegisterThumbnailRoutes(g *echo.Group, generator *thumbnails.Generator) {
	h := &handler{thumbnails: generator}

	g.GET("/:filename", h.thumbnail)
}
