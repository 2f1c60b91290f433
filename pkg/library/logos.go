package library

import (
	"image"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/shishobooks/longbox/pkg/cbz"
	"github.com/shishobooks/longbox/pkg/fileutils"

	_ "golang.org/x/image/webp"
)

// LogoURLPrefix is where logo files are served from.
const LogoURLPrefix = "/logos"

type Logo struct {
	Path string
	URL  string
	// NeedsBackground is set when the image has transparent or translucent
	// pixels and so needs a light backing to stay legible.
	NeedsBackground bool
}

// LogoResolver finds publisher logos under dir/<sanitized publisher>/. The
// alpha check decodes the image, so results are cached until the file's
// mtime changes.
type LogoResolver struct {
	dir string

	mu    sync.Mutex
	alpha map[string]alphaEntry
}

type alphaEntry struct {
	modTime         time.Time
	needsBackground bool
}

func NewLogoResolver(dir string) *LogoResolver {
	return &LogoResolver{
		dir:   dir,
		alpha: map[string]alphaEntry{},
	}
}

func (r *LogoResolver) Dir() string {
	return r.dir
}

// Resolve returns the publisher's logo, or nil when there is none. A file
// named logo.* wins; otherwise the first image in the folder is used.
func (r *LogoResolver) Resolve(publisher string) (*Logo, error) {
	if r.dir == "" {
		return nil, nil
	}
	folder := fileutils.SanitizeFolderName(publisher)
	if folder == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(filepath.Join(r.dir, folder))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	var chosen string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || fileutils.IsHidden(name) || !cbz.IsImage(name) {
			continue
		}
		if strings.EqualFold(fileutils.NameWithoutExt(name), "logo") {
			chosen = name
			break
		}
		if chosen == "" {
			chosen = name
		}
	}
	if chosen == "" {
		return nil, nil
	}

	path := filepath.Join(r.dir, folder, chosen)
	needsBackground, err := r.needsBackground(path)
	if err != nil {
		return nil, err
	}

	return &Logo{
		Path:            path,
		URL:             LogoURLPrefix + "/" + url.PathEscape(folder) + "/" + url.PathEscape(chosen),
		NeedsBackground: needsBackground,
	}, nil
}

func (r *LogoResolver) needsBackground(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, errors.WithStack(err)
	}

	r.mu.Lock()
	cached, ok := r.alpha[path]
	r.mu.Unlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.needsBackground, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to decode logo %s", path)
	}
	needs := hasAlpha(img)

	r.mu.Lock()
	r.alpha[path] = alphaEntry{modTime: info.ModTime(), needsBackground: needs}
	r.mu.Unlock()

	return needs, nil
}

// hasAlpha reports whether any pixel of img is not fully opaque.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
