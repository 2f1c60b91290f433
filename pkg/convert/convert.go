// Package convert rewrites legacy .cbr archives as .cbz archives in place.
package convert

import (
	"archive/zip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/longbox/pkg/cbz"
	"github.com/shishobooks/longbox/pkg/config"
	"github.com/shishobooks/longbox/pkg/fileutils"
	"github.com/shishobooks/longbox/pkg/identity"
)

const (
	LegacyExtension    = ".cbr"
	CanonicalExtension = ".cbz"

	ExtractorCommand = "command"
	ExtractorBuiltin = "builtin"
)

var (
	ErrNotLegacy              = errors.New("not a legacy archive")
	ErrOutsideConversionRoot  = errors.New("path is outside the conversion root")
	ErrTargetExists           = errors.New("converted archive already exists")
	ErrExtractionProducedNone = errors.New("extraction produced no images")
)

type Converter struct {
	root      string
	tempDir   string
	timeout   time.Duration
	extractor Extractor
}

// NewConverter returns a converter limited to root. An empty root disables
// conversion: Allowed is false for every path.
func NewConverter(root, tempDir string, timeout time.Duration, extractor Extractor) *Converter {
	return &Converter{
		root:      root,
		tempDir:   tempDir,
		timeout:   timeout,
		extractor: extractor,
	}
}

func NewFromConfig(cfg *config.Config) (*Converter, error) {
	var extractor Extractor
	switch cfg.ConvertExtractor {
	case ExtractorCommand:
		extractor = &CommandExtractor{Command: cfg.ConvertCommand, Args: cfg.ConvertArgs}
	case ExtractorBuiltin:
		extractor = RarExtractor{}
	default:
		return nil, errors.Errorf("unknown convert_extractor %q", cfg.ConvertExtractor)
	}
	return NewConverter(cfg.ConversionRoot, cfg.TempDir, cfg.ConvertTimeout, extractor), nil
}

// IsLegacy reports whether path has the legacy archive extension.
func IsLegacy(path string) bool {
	return strings.EqualFold(filepath.Ext(path), LegacyExtension)
}

// IsCanonical reports whether path has the canonical archive extension.
func IsCanonical(path string) bool {
	return strings.EqualFold(filepath.Ext(path), CanonicalExtension)
}

// TargetPath is where the converted archive for path is written.
func TargetPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + CanonicalExtension
}

// Allowed reports whether path is a legacy archive this converter may
// rewrite.
func (c *Converter) Allowed(path string) bool {
	return IsLegacy(path) && fileutils.IsWithin(c.root, path)
}

// Convert rewrites the legacy archive at path as a store-mode zip next to it
// and removes the original. It returns the new path. On any failure the
// original is left in place and the working directory is removed.
func (c *Converter) Convert(ctx context.Context, path string) (string, error) {
	log := logger.FromContext(ctx)

	if !IsLegacy(path) {
		return "", errors.WithStack(ErrNotLegacy)
	}
	if !fileutils.IsWithin(c.root, path) {
		return "", errors.WithStack(ErrOutsideConversionRoot)
	}

	target := TargetPath(path)
	if fileutils.Exists(target) {
		return "", errors.Wrap(ErrTargetExists, target)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", errors.WithStack(err)
	}

	// Plenty of .cbr files in the wild are zips with the wrong extension.
	if isZip(mtype) {
		if err := fileutils.MoveFile(path, target); err != nil {
			return "", err
		}
		log.Info("renamed zip with legacy extension", logger.Data{"path": path, "target": target})
		return target, nil
	}

	work, err := os.MkdirTemp(c.tempDir, "longbox-convert-"+identity.Of(path)[:16]+"-")
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer func() {
		if err := os.RemoveAll(work); err != nil {
			log.Err(err).Warn("failed to remove conversion directory", logger.Data{"dir": work})
		}
	}()

	extractDir := filepath.Join(work, "pages")
	if err := os.Mkdir(extractDir, 0755); err != nil {
		return "", errors.WithStack(err)
	}

	extractCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := c.extractor.Extract(extractCtx, path, extractDir); err != nil {
		return "", errors.Wrapf(err, "failed to extract %s", filepath.Base(path))
	}

	packed := filepath.Join(work, "packed"+CanonicalExtension)
	images, err := pack(extractDir, packed)
	if err != nil {
		return "", err
	}
	if images == 0 {
		return "", errors.WithStack(ErrExtractionProducedNone)
	}

	if err := fileutils.MoveFile(packed, target); err != nil {
		return "", err
	}

	if err := os.Remove(path); err != nil {
		// Keep exactly one copy: the original.
		os.Remove(target)
		return "", errors.Wrap(err, "failed to remove original archive")
	}

	log.Info("converted archive", logger.Data{
		"path":        path,
		"target":      target,
		"images":      images,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return target, nil
}

func isZip(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

// pack writes every regular file under dir into a store-mode zip at dest and
// returns how many of them are page images.
func pack(dir, dest string) (int, error) {
	out, err := os.Create(dest)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	images := 0

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Store

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}

		if cbz.IsImage(rel) {
			images++
		}
		return nil
	})
	if err != nil {
		return 0, errors.WithStack(err)
	}

	if err := zw.Close(); err != nil {
		return 0, errors.WithStack(err)
	}
	return images, errors.WithStack(out.Sync())
}
