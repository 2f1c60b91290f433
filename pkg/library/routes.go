package library

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers the library tree route on a
// pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, builder *Builder) {
	h := &handler{builder: builder}

	g.GET("", h.tree)
}

// RegisterLogoRoutes serves publisher logo files.
func RegisterLogoRoutes(g *echo.Group, logos *LogoResolver) {
	h := &handler{logos: logos}

	g.GET("/:folder/:file", h.logo)
}
