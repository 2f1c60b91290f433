package worker

import (
	"path/filepath"

	"github.com/shishobooks/longbox/pkg/models"
)

// scanState is the bookkeeping for one cycle: the catalog as it was when the
// cycle started, the directory cache, and every path and directory the walk
// has accounted for so far. A cycle runs on a single goroutine, so none of
// this is locked.
type scanState struct {
	byPath map[string]*models.Comic
	byDir  map[string][]*models.Comic
	cached map[string]int64

	seen    map[string]struct{}
	visited map[string]struct{}
}

func newScanState(catalog []*models.Comic, cached map[string]int64) *scanState {
	state := &scanState{
		byPath:  make(map[string]*models.Comic, len(catalog)),
		byDir:   make(map[string][]*models.Comic),
		cached:  cached,
		seen:    make(map[string]struct{}, len(catalog)),
		visited: make(map[string]struct{}),
	}
	if state.cached == nil {
		state.cached = map[string]int64{}
	}
	for _, comic := range catalog {
		state.byPath[comic.Path] = comic
		dir := filepath.Dir(comic.Path)
		state.byDir[dir] = append(state.byDir[dir], comic)
	}
	return state
}

func (s *scanState) markSeen(path string) {
	s.seen[path] = struct{}{}
}

// markDirSeen marks every cataloged comic directly inside dir as seen and
// returns how many there were.
func (s *scanState) markDirSeen(dir string) int {
	for _, comic := range s.byDir[dir] {
		s.seen[comic.Path] = struct{}{}
	}
	return len(s.byDir[dir])
}

// unseen returns the catalog rows the walk never accounted for.
func (s *scanState) unseen() []*models.Comic {
	orphans := make([]*models.Comic, 0)
	for path, comic := range s.byPath {
		if _, ok := s.seen[path]; !ok {
			orphans = append(orphans, comic)
		}
	}
	return orphans
}
