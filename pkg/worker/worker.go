package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/longbox/pkg/comics"
	"github.com/shishobooks/longbox/pkg/config"
	"github.com/shishobooks/longbox/pkg/convert"
	"github.com/shishobooks/longbox/pkg/metrics"
	"github.com/shishobooks/longbox/pkg/models"
	"github.com/shishobooks/longbox/pkg/scans"
	"github.com/shishobooks/longbox/pkg/thumbnails"
	"github.com/uptrace/bun"
)

// ErrScanInProgress is returned by RunScan when another cycle holds the scan
// slot.
var ErrScanInProgress = errors.New("a scan is already running")

// Worker owns the scan cycle. At most one cycle runs at a time; requests that
// arrive while one is running are dropped, not queued.
type Worker struct {
	config *config.Config
	log    logger.Logger

	comicService *comics.Service
	scanService  *scans.Service
	thumbnails   *thumbnails.Generator
	converter    *convert.Converter

	running atomic.Bool

	// ctx is cancelled on shutdown so an in-flight cycle stops between files.
	ctx      context.Context
	cancel   context.CancelFunc
	shutdown chan struct{}
	wg       sync.WaitGroup
}

func New(cfg *config.Config, db *bun.DB) (*Worker, error) {
	converter, err := convert.NewFromConfig(cfg)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	generator := thumbnails.NewGenerator(cfg.ThumbnailDir, cfg.ThumbnailHeight, cfg.ThumbnailQuality)
	return NewWithDependencies(cfg, db, generator, converter), nil
}

// NewWithDependencies builds a worker around an existing thumbnail generator
// and converter so they can be shared with the HTTP layer or replaced in
// tests.
func NewWithDependencies(cfg *config.Config, db *bun.DB, generator *thumbnails.Generator, converter *convert.Converter) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		config: cfg,
		log:    logger.New(),

		comicService: comics.NewService(db),
		scanService:  scans.NewService(db),
		thumbnails:   generator,
		converter:    converter,

		ctx:      ctx,
		cancel:   cancel,
		shutdown: make(chan struct{}),
	}
}

func (w *Worker) Thumbnails() *thumbnails.Generator {
	return w.thumbnails
}

// Start launches the scheduler and, when enabled, the filesystem watcher.
func (w *Worker) Start() {
	n, err := w.scanService.FailInterruptedRuns(w.ctx)
	if err != nil {
		w.log.Err(err).Error("failed to close interrupted scan runs")
	} else if n > 0 {
		w.log.Warn("marked interrupted scan runs as failed", logger.Data{"count": n})
	}

	w.wg.Add(1)
	go w.schedule()

	if w.config.WatchRoots {
		w.wg.Add(1)
		go w.watch()
	}
}

// Shutdown stops the scheduler and watcher, cancels a running cycle, and
// waits for everything to return.
func (w *Worker) Shutdown() {
	close(w.shutdown)
	w.cancel()
	w.wg.Wait()
}

// Running reports whether a scan cycle currently holds the scan slot.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// TriggerScan starts a cycle in the background and reports whether it did.
// It returns false without doing anything when a cycle is already running.
func (w *Worker) TriggerScan(full bool) bool {
	return w.trigger(ScanOptions{Full: full, Trigger: models.ScanTriggerManual})
}

func (w *Worker) trigger(opts ScanOptions) bool {
	if !w.acquire(opts) {
		return false
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		_, _ = w.runAcquired(w.ctx, opts)
	}()
	return true
}

func (w *Worker) acquire(opts ScanOptions) bool {
	if w.running.CompareAndSwap(false, true) {
		return true
	}
	metrics.ScanRejectedTotal.Inc()
	w.log.Info("scan already running; request dropped", logger.Data{"trigger": opts.Trigger, "full": opts.Full})
	return false
}

// schedule runs the startup scan and then the periodic one. The timer is
// re-armed only after a cycle returns, so a slow cycle pushes the next one
// back instead of overlapping it.
func (w *Worker) schedule() {
	defer w.wg.Done()

	if w.config.ScanOnStartup {
		w.scheduledScan(models.ScanTriggerStartup)
	}

	interval := time.Duration(w.config.ScanIntervalMinutes) * time.Minute
	if interval <= 0 {
		w.log.Info("periodic scan disabled")
		<-w.shutdown
		return
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case <-timer.C:
			w.scheduledScan(models.ScanTriggerTimer)
			timer.Reset(interval)
		}
	}
}

func (w *Worker) scheduledScan(trigger string) {
	_, err := w.RunScan(w.ctx, ScanOptions{Trigger: trigger})
	if err != nil && !errors.Is(err, ErrScanInProgress) {
		w.log.Err(err).Error("scheduled scan failed")
	}
}
