package worker

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/longbox/pkg/fileutils"
	"github.com/shishobooks/longbox/pkg/models"
)

// watch turns filesystem events under the library roots into incremental
// scans. Events are debounced so a batch copy produces one cycle. If a cycle
// is already running when the debounce fires, the timer is re-armed so the
// changes are picked up once it finishes.
func (w *Worker) watch() {
	defer w.wg.Done()
	log := w.log.Data(logger.Data{"component": "watcher"})

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Err(err).Error("failed to start watcher")
		return
	}
	defer fw.Close()

	for _, root := range w.config.LibraryRoots {
		if err := addDirsRecursive(fw, root); err != nil {
			log.Err(err).Warn("failed to watch library root", logger.Data{"root": root})
		}
	}
	log.Info("watching library roots", logger.Data{"roots": w.config.LibraryRoots})

	debounce := w.config.WatchDebounce
	if debounce <= 0 {
		debounce = 5 * time.Second
	}

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
			return
		}
		timer.Reset(debounce)
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.shutdown:
			return

		case <-fire:
			if !w.trigger(ScanOptions{Trigger: models.ScanTriggerWatch}) {
				schedule()
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addDirsRecursive(fw, ev.Name); err != nil {
						log.Err(err).Warn("failed to watch new directory", logger.Data{"dir": ev.Name})
					}
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) != 0 {
				schedule()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Err(err).Warn("watcher error")
		}
	}
}

// relevant drops events for dot-files other than the rescan marker.
func (w *Worker) relevant(path string) bool {
	return !fileutils.IsHidden(path) || filepath.Base(path) == w.config.ScanMarkerFile
}

// addDirsRecursive adds root and all its non-hidden subdirectories.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && fileutils.IsHidden(path) {
			return filepath.SkipDir
		}
		return errors.WithStack(fw.Add(path))
	})
}
