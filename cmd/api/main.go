package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/shishobooks/longbox/pkg/config"
	"github.com/shishobooks/longbox/pkg/database"
	"github.com/shishobooks/longbox/pkg/migrations"
	"github.com/shishobooks/longbox/pkg/server"
	"github.com/shishobooks/longbox/pkg/version"
	"github.com/shishobooks/longbox/pkg/worker"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting longbox", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}
	if len(cfg.LibraryRoots) == 0 {
		log.Warn("no library roots configured; scans will catalog nothing")
	}

	for _, dir := range []string{cfg.ThumbnailDir, cfg.LogoDir} {
		if err := initDir(dir); err != nil {
			log.Err(err).Fatal("data directory error")
		}
	}
	log.Info("data directories initialized", logger.Data{"thumbnails": cfg.ThumbnailDir, "logos": cfg.LogoDir})

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	wrkr, err := worker.New(cfg, db)
	if err != nil {
		log.Err(err).Fatal("worker error")
	}

	srv, err := server.New(cfg, db, wrkr)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		log.Info("server started", logger.Data{"addr": listener.Addr().String()})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started", logger.Data{"roots": cfg.LibraryRoots, "interval_minutes": cfg.ScanIntervalMinutes})

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// initDir creates dir and verifies it is writable.
func initDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory: %s", dir)
	}

	f, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		return errors.Wrapf(err, "directory is not writable: %s", dir)
	}
	f.Close()

	if err := os.Remove(f.Name()); err != nil {
		return errors.Wrapf(err, "failed to clean up write test file: %s", f.Name())
	}

	return nil
}
