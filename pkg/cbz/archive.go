package cbz

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shishobooks/longbox/pkg/models"
)

const (
	// maxImageSize is the maximum size for a single page image (100 MB).
	// This prevents decompression bombs from consuming excessive memory.
	maxImageSize = 100 * 1024 * 1024

	maxComicInfoSize = 4 * 1024 * 1024
)

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// Archive is an open comic archive. Callers must Close it.
type Archive struct {
	Path string

	f  *os.File
	zr *zip.Reader
}

func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}

	zr, err := zip.NewReader(f, stats.Size())
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "failed to open %s as a zip archive", path)
	}

	return &Archive{Path: path, f: f, zr: zr}, nil
}

func (a *Archive) Close() error {
	return errors.WithStack(a.f.Close())
}

// Images returns the archive's page images sorted by entry name.
func (a *Archive) Images() []*zip.File {
	return ImageEntries(a.zr)
}

// Metadata reads the ComicInfo.xml sidecar. It never fails; an archive
// without a readable sidecar yields an empty record.
func (a *Archive) Metadata() models.ComicMetadata {
	return ReadMetadata(a.zr)
}

// ReadMetadata finds ComicInfo.xml (case-insensitive, at any depth outside
// junk directories) and flattens it. Absence or a parse failure returns an
// empty record.
func ReadMetadata(zr *zip.Reader) models.ComicMetadata {
	for _, file := range zr.File {
		if isJunk(file.Name) || !strings.EqualFold(path.Base(file.Name), ComicInfoFilename) {
			continue
		}
		r, err := file.Open()
		if err != nil {
			return models.ComicMetadata{}
		}
		comicInfo, err := ParseComicInfo(r)
		r.Close()
		if err != nil {
			return models.ComicMetadata{}
		}
		return comicInfo.Metadata()
	}
	return models.ComicMetadata{}
}

// ImageEntries returns the raster image entries of zr sorted by name, which
// is the reading order. Directories, dot-files and __MACOSX resource forks are
// excluded.
func ImageEntries(zr *zip.Reader) []*zip.File {
	var imageFiles []*zip.File
	for _, file := range zr.File {
		if file.FileInfo().IsDir() || isJunk(file.Name) {
			continue
		}
		if !IsImage(file.Name) {
			continue
		}
		imageFiles = append(imageFiles, file)
	}

	sort.Slice(imageFiles, func(i, j int) bool {
		return imageFiles[i].Name < imageFiles[j].Name
	})

	return imageFiles
}

// IsImage reports whether name has a page image extension.
func IsImage(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// MimeType returns the content type for a page image name, or
// application/octet-stream if the extension is unknown.
func MimeType(name string) string {
	if mt, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return "application/octet-stream"
}

func isJunk(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if part == "__MACOSX" || (strings.HasPrefix(part, ".") && part != ".") {
			return true
		}
	}
	return false
}

// OpenImage opens a page entry, capped at maxImageSize bytes.
func OpenImage(file *zip.File) (io.ReadCloser, error) {
	if file.UncompressedSize64 > maxImageSize {
		return nil, errors.Errorf("page %s is too large (%d bytes)", file.Name, file.UncompressedSize64)
	}
	r, err := file.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &limitedReadCloser{Reader: io.LimitReader(r, maxImageSize), closer: r}, nil
}

type limitedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (l *limitedReadCloser) Close() error {
	return l.closer.Close()
}
