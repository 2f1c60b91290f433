// Package library assembles the catalog into the root / publisher / series
// tree the reader UI browses, with one user's reading progress laid over it.
// It only reads catalog rows; nothing here touches the archives.
package library

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/longbox/pkg/cbz"
	"github.com/shishobooks/longbox/pkg/comics"
	"github.com/shishobooks/longbox/pkg/fileutils"
	"github.com/shishobooks/longbox/pkg/metrics"
	"github.com/shishobooks/longbox/pkg/models"
	"github.com/shishobooks/longbox/pkg/progress"
	"github.com/uptrace/bun"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FallbackRoot holds comics whose path is under none of the configured roots.
const FallbackRoot = "Library"

// Tree maps a root directory to its publishers.
type Tree map[string]*RootNode

type RootNode struct {
	Publishers map[string]*PublisherNode `json:"publishers"`
}

type PublisherNode struct {
	LogoURL             *string                  `json:"logo_url"`
	LogoNeedsBackground bool                     `json:"logo_needs_background"`
	Series              map[string][]*ComicEntry `json:"series"`
}

type ComicEntry struct {
	*models.Comic
	ThumbnailURL *string  `json:"thumbnail_url"`
	Progress     Progress `json:"progress"`
}

type Progress struct {
	LastReadPage int `json:"last_read_page"`
	TotalPages   int `json:"total_pages"`
}

// VisibilityFunc decides whether userID may see comic. Access policy lives
// outside this package.
type VisibilityFunc func(ctx context.Context, userID int, comic *models.Comic) bool

// AllVisible lets every user see every comic.
func AllVisible(context.Context, int, *models.Comic) bool {
	return true
}

type Builder struct {
	roots           []string
	comicService    *comics.Service
	progressService *progress.Service
	logos           *LogoResolver
	visible         VisibilityFunc
}

func NewBuilder(db *bun.DB, roots []string, logos *LogoResolver) *Builder {
	return &Builder{
		roots:           roots,
		comicService:    comics.NewService(db),
		progressService: progress.NewService(db),
		logos:           logos,
		visible:         AllVisible,
	}
}

// WithVisibility replaces the visibility predicate.
func (b *Builder) WithVisibility(fn VisibilityFunc) *Builder {
	b.visible = fn
	return b
}

// BuildTree builds the tree for userID from the current catalog. Every
// configured root is present even when it holds no comics.
func (b *Builder) BuildTree(ctx context.Context, userID int) (Tree, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	defer func() {
		metrics.LibraryTreeDuration.Observe(time.Since(start).Seconds())
	}()

	all, err := b.comicService.ListComics(ctx, comics.ListComicsOptions{})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	overlay, err := b.progressService.ListProgress(ctx, userID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	tree := Tree{}
	for _, root := range b.roots {
		tree[root] = &RootNode{Publishers: map[string]*PublisherNode{}}
	}

	for _, comic := range all {
		if !b.visible(ctx, userID, comic) {
			continue
		}

		rootKey := b.rootFor(comic.Path)
		root, ok := tree[rootKey]
		if !ok {
			root = &RootNode{Publishers: map[string]*PublisherNode{}}
			tree[rootKey] = root
		}

		publisher, ok := root.Publishers[comic.Publisher]
		if !ok {
			publisher = &PublisherNode{Series: map[string][]*ComicEntry{}}
			b.attachLogo(ctx, publisher, comic.Publisher)
			root.Publishers[comic.Publisher] = publisher
		}

		publisher.Series[comic.Series] = append(publisher.Series[comic.Series], newEntry(comic, overlay[comic.ID]))
	}

	sorter := newIssueSorter()
	for _, root := range tree {
		for _, publisher := range root.Publishers {
			for _, entries := range publisher.Series {
				sorter.sort(entries)
			}
		}
	}

	log.Debug("built library tree", logger.Data{"user_id": userID, "comics": len(all), "roots": len(tree)})

	return tree, nil
}

// rootFor returns the longest configured root containing path.
func (b *Builder) rootFor(path string) string {
	best := ""
	for _, root := range b.roots {
		if len(root) > len(best) && fileutils.IsWithin(root, path) {
			best = root
		}
	}
	if best == "" {
		return FallbackRoot
	}
	return best
}

// attachLogo fills in the publisher's logo. A logo that can't be read is
// logged and left off; it never fails the tree.
func (b *Builder) attachLogo(ctx context.Context, node *PublisherNode, publisher string) {
	if b.logos == nil {
		return
	}
	logo, err := b.logos.Resolve(publisher)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to resolve publisher logo", logger.Data{"publisher": publisher})
		return
	}
	if logo == nil {
		return
	}
	node.LogoURL = &logo.URL
	node.LogoNeedsBackground = logo.NeedsBackground
}

func newEntry(comic *models.Comic, overlay *models.ReadingProgress) *ComicEntry {
	entry := &ComicEntry{
		Comic:    comic,
		Progress: Progress{LastReadPage: 0, TotalPages: comic.TotalPages},
	}
	if overlay != nil {
		entry.Progress.LastReadPage = overlay.LastReadPage
		if overlay.TotalPages > 0 {
			entry.Progress.TotalPages = overlay.TotalPages
		}
	}
	if comic.ThumbnailPath != nil {
		u := "/thumbnails/" + *comic.ThumbnailPath
		entry.ThumbnailURL = &u
	}
	return entry
}

// issueSorter orders a series by issue number, then by name with numeric
// collation so "Annual 2" sorts before "Annual 10". Comics without an issue
// number go last.
type issueSorter struct {
	collator *collate.Collator
}

func newIssueSorter() *issueSorter {
	return &issueSorter{collator: collate.New(language.English, collate.Loose, collate.Numeric)}
}

func (s *issueSorter) sort(entries []*ComicEntry) {
	numbers := make(map[*ComicEntry]*float64, len(entries))
	for _, e := range entries {
		numbers[e] = cbz.IssueNumber(e.Metadata, fileutils.NameWithoutExt(e.Path))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := numbers[entries[i]], numbers[entries[j]]
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		if c := s.collator.CompareString(entries[i].Name, entries[j].Name); c != 0 {
			return c < 0
		}
		return entries[i].Path < entries[j].Path
	})
}
