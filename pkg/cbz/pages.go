package cbz

import (
	"io"

	"github.com/pkg/errors"
)

type Page struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// ListPages returns the page images of the archive at path in reading order.
func ListPages(path string) ([]Page, error) {
	a, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	images := a.Images()
	pages := make([]Page, 0, len(images))
	for i, file := range images {
		pages = append(pages, Page{
			Index:    i,
			Name:     file.Name,
			Size:     int64(file.UncompressedSize64),
			MimeType: MimeType(file.Name),
		})
	}
	return pages, nil
}

// CountPages returns the number of page images in the archive at path.
func CountPages(path string) (int, error) {
	a, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer a.Close()
	return len(a.Images()), nil
}

var ErrPageNotFound = errors.New("page not found")

// PageReader streams one page out of an archive. Closing it closes the
// underlying archive as well.
type PageReader struct {
	io.ReadCloser
	Name     string
	Size     int64
	MimeType string

	archive *Archive
}

func (p *PageReader) Close() error {
	err := p.ReadCloser.Close()
	if cerr := p.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenPage opens the page entry called name. Only entries that ListPages
// would return can be opened.
func OpenPage(path, name string) (*PageReader, error) {
	a, err := Open(path)
	if err != nil {
		return nil, err
	}

	for _, file := range a.Images() {
		if file.Name != name {
			continue
		}
		r, err := OpenImage(file)
		if err != nil {
			a.Close()
			return nil, err
		}
		return &PageReader{
			ReadCloser: r,
			Name:       file.Name,
			Size:       int64(file.UncompressedSize64),
			MimeType:   MimeType(file.Name),
			archive:    a,
		}, nil
	}

	a.Close()
	return nil, errors.WithStack(ErrPageNotFound)
}
