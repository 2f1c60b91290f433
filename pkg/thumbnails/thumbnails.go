package thumbnails

import (
	"context"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/longbox/pkg/cbz"

	_ "golang.org/x/image/webp"
)

var ErrNoImage = errors.New("archive contains no usable image")

// Generator writes one JPEG preview per comic, named after the comic's
// identity, into a single directory.
type Generator struct {
	dir     string
	height  int
	quality int
}

func NewGenerator(dir string, height, quality int) *Generator {
	return &Generator{
		dir:     dir,
		height:  height,
		quality: quality,
	}
}

func (g *Generator) Dir() string {
	return g.dir
}

// Filename is the thumbnail filename for a comic identity.
func (g *Generator) Filename(id string) string {
	return id + ".jpg"
}

func (g *Generator) Path(filename string) string {
	return filepath.Join(g.dir, filepath.Base(filename))
}

// Generate returns the thumbnail filename for the archive at path, creating
// the file from the first page if it isn't on disk yet. An existing file is
// returned as-is without opening the archive.
func (g *Generator) Generate(ctx context.Context, path, id string) (*string, error) {
	if filename, ok := g.existing(id); ok {
		return &filename, nil
	}

	a, err := cbz.Open(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	return g.GenerateFromArchive(ctx, a, id)
}

// GenerateFromArchive is Generate for an archive the caller already has open.
func (g *Generator) GenerateFromArchive(ctx context.Context, a *cbz.Archive, id string) (*string, error) {
	filename, ok := g.existing(id)
	if ok {
		return &filename, nil
	}

	img, err := firstPage(a)
	if err != nil {
		return nil, err
	}

	if img.Bounds().Dy() > g.height {
		img = imaging.Resize(img, 0, g.height, imaging.Lanczos)
	}

	if err := g.write(g.Path(filename), img); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("generated thumbnail", logger.Data{"path": a.Path, "thumbnail": filename})

	return &filename, nil
}

func (g *Generator) existing(id string) (string, bool) {
	filename := g.Filename(id)
	_, err := os.Stat(g.Path(filename))
	return filename, err == nil
}

func firstPage(a *cbz.Archive) (image.Image, error) {
	images := a.Images()
	if len(images) == 0 {
		return nil, errors.WithStack(ErrNoImage)
	}

	r, err := cbz.OpenImage(images[0])
	if err != nil {
		return nil, err
	}
	defer r.Close()

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", images[0].Name)
	}
	return img, nil
}

// write encodes into a temp file in the same directory and renames it into
// place so readers never see a partial image.
func (g *Generator) write(dest string, img image.Image) error {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return errors.WithStack(err)
	}

	tmp, err := os.CreateTemp(g.dir, ".thumb-*.jpg")
	if err != nil {
		return errors.WithStack(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(g.quality)); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to encode thumbnail")
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(os.Rename(tmpPath, dest))
}

// Remove deletes a thumbnail file. A file that is already gone is not an
// error.
func (g *Generator) Remove(filename string) error {
	err := os.Remove(g.Path(filename))
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}
