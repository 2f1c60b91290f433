package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/shishobooks/longbox/pkg/binder"
	"github.com/shishobooks/longbox/pkg/comics"
	"github.com/shishobooks/longbox/pkg/config"
	"github.com/shishobooks/longbox/pkg/errcodes"
	"github.com/shishobooks/longbox/pkg/library"
	"github.com/shishobooks/longbox/pkg/scans"
	"github.com/shishobooks/longbox/pkg/testutils"
	"github.com/shishobooks/longbox/pkg/worker"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, w *worker.Worker) (*http.Server, error) {
	e, err := newEcho(cfg, db, w)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB, w *worker.Worker) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	comics.RegisterRoutesWithGroup(e.Group("/comics"), db, w.Thumbnails())
	comics.RegisterThumbnailRoutes(e.Group("/thumbnails"), w.Thumbnails())
	scans.RegisterRoutesWithGroup(e.Group("/scans"), db, w)

	logos := library.NewLogoResolver(cfg.LogoDir)
	builder := library.NewBuilder(db, cfg.LibraryRoots, logos)
	library.RegisterRoutesWithGroup(e.Group("/library"), builder)
	library.RegisterLogoRoutes(e.Group(library.LogoURLPrefix), logos)

	if cfg.Environment == "test" {
		testutils.RegisterRoutes(e, db)
	}

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
