package comics

import (
	"io/fs"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/longbox/pkg/cbz"
	"github.com/shishobooks/longbox/pkg/errcodes"
	"github.com/shishobooks/longbox/pkg/identity"
	"github.com/shishobooks/longbox/pkg/thumbnails"
)

type handler struct {
	comicService *Service
	thumbnails   *thumbnails.Generator
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListComicsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	comics, total, err := h.comicService.ListComicsWithTotal(ctx, ListComicsOptions{
		Limit:     &params.Limit,
		Offset:    &params.Offset,
		Publisher: params.Publisher,
		Series:    params.Series,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]any{
		"comics": comics,
		"total":  total,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if !identity.Valid(id) {
		return errcodes.NotFound("Comic")
	}

	comic, err := h.comicService.RetrieveComic(ctx, RetrieveComicOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, comic))
}

func (h *handler) pages(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if !identity.Valid(id) {
		return errcodes.NotFound("Comic")
	}

	comic, err := h.comicService.RetrieveComic(ctx, RetrieveComicOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	pages, err := cbz.ListPages(comic.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errcodes.NotFound("Comic file")
		}
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{
		"comic_id": comic.ID,
		"pages":    pages,
	}))
}

func (h *handler) page(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if !identity.Valid(id) {
		return errcodes.NotFound("Comic")
	}

	name, err := url.PathUnescape(c.Param("*"))
	if err != nil || name == "" {
		return errcodes.NotFound("Page")
	}

	comic, err := h.comicService.RetrieveComic(ctx, RetrieveComicOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	page, err := cbz.OpenPage(comic.Path, name)
	if err != nil {
		if errors.Is(err, cbz.ErrPageNotFound) {
			return errcodes.NotFound("Page")
		}
		if errors.Is(err, fs.ErrNotExist) {
			return errcodes.NotFound("Comic file")
		}
		return errors.WithStack(err)
	}
	defer page.Close()

	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(page.Size, 10))
	c.Response().Header().Set("Cache-Control", "private, max-age=86400")
	return errors.WithStack(c.Stream(http.StatusOK, page.MimeType, page))
}

func (h *handler) thumbnail(c echo.Context) error {
	filename := c.Param("filename")
	id := filename[:max(0, len(filename)-len(".jpg"))]
	if !identity.Valid(id) || h.thumbnails.Filename(id) != filename {
		return errcodes.NotFound("Thumbnail")
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=604800")
	err := c.File(h.thumbnails.Path(filename))
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusNotFound {
			return errcodes.NotFound("Thumbnail")
		}
		return errors.WithStack(err)
	}
	return nil
}
