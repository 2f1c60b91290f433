package library

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/longbox/pkg/cbz"
	"github.com/shishobooks/longbox/pkg/errcodes"
)

type handler struct {
	builder *Builder
	logos   *LogoResolver
}

func (h *handler) tree(c echo.Context) error {
	ctx := c.Request().Context()

	params := TreeQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	tree, err := h.builder.BuildTree(ctx, params.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, tree))
}

func (h *handler) logo(c echo.Context) error {
	if h.logos.Dir() == "" {
		return errcodes.ServiceUnavailable("Logos")
	}

	folder, err := url.PathUnescape(c.Param("folder"))
	if err != nil {
		return errcodes.NotFound("Logo")
	}
	file, err := url.PathUnescape(c.Param("file"))
	if err != nil {
		return errcodes.NotFound("Logo")
	}
	if !safeSegment(folder) || !safeSegment(file) || !cbz.IsImage(file) {
		return errcodes.NotFound("Logo")
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	err = c.File(filepath.Join(h.logos.Dir(), folder, file))
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusNotFound {
			return errcodes.NotFound("Logo")
		}
		return errors.WithStack(err)
	}
	return nil
}

func safeSegment(s string) bool {
	return s != "" && s == filepath.Base(s) && !strings.HasPrefix(s, ".")
}
