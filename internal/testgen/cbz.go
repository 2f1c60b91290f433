package testgen

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

// GenerateCBZ creates a valid CBZ file at the specified path with the given options.
// The generated CBZ contains:
// - ComicInfo.xml (if HasComicInfo is true)
// - Page images (000.png, 001.png, etc.)
func GenerateCBZ(t *testing.T, dir, filename string, opts CBZOptions) string {
	t.Helper()

	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create CBZ file: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	pageCount := opts.PageCount
	if pageCount <= 0 {
		pageCount = 3
	}
	width := opts.PageWidth
	if width <= 0 {
		width = 100
	}
	height := opts.PageHeight
	if height <= 0 {
		height = 150
	}

	if opts.JunkEntries {
		junk := generateImage(t, "image/png", 4, 4, color.Black)
		for _, name := range []string{"__MACOSX/._000.png", ".DS_Store", "._000.png"} {
			if err := writeZipFile(zw, name, junk); err != nil {
				t.Fatalf("failed to write junk entry %s: %v", name, err)
			}
		}
	}

	if opts.HasComicInfo || opts.MalformedComicInfo {
		name := opts.ComicInfoName
		if name == "" {
			name = "ComicInfo.xml"
		}
		content := []byte(generateComicInfo(opts, pageCount))
		if opts.MalformedComicInfo {
			content = []byte("<ComicInfo><Title>broken")
		}
		if err := writeZipFile(zw, name, content); err != nil {
			t.Fatalf("failed to write ComicInfo.xml: %v", err)
		}
	}

	mimeType := "image/png"
	ext := "png"
	if opts.ImageFormat == "jpeg" || opts.ImageFormat == "jpg" {
		mimeType = "image/jpeg"
		ext = "jpg"
	}

	// Pages are written in reverse so container order differs from reading
	// order. The first page is a different color from the rest.
	for i := pageCount - 1; i >= 0; i-- {
		c := color.NRGBA{R: 0, G: 100, B: 200, A: 255}
		if i == 0 {
			c = color.NRGBA{R: 220, G: 40, B: 40, A: 255}
		}
		imgData := generateImage(t, mimeType, width, height, c)
		imgName := fmt.Sprintf("%03d.%s", i, ext)
		if err := writeZipFile(zw, imgName, imgData); err != nil {
			t.Fatalf("failed to write page %s: %v", imgName, err)
		}
	}

	for name, data := range opts.ExtraFiles {
		if err := writeZipFile(zw, name, data); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	return path
}

// ComicInfoXML returns a ComicInfo.xml document for opts, for fixtures that
// build archives some other way (a fake extractor, for one).
func ComicInfoXML(opts CBZOptions) []byte {
	pageCount := opts.PageCount
	if pageCount <= 0 {
		pageCount = 3
	}
	return []byte(generateComicInfo(opts, pageCount))
}

func generateComicInfo(opts CBZOptions, pageCount int) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ComicInfo>
`)

	tag := func(name, value string) {
		if value == "" {
			return
		}
		buf.WriteString(fmt.Sprintf("  <%s>%s</%s>\n", name, escapeXML(value), name))
	}

	tag("Title", opts.Title)
	tag("Series", opts.Series)
	tag("Number", opts.Number)
	tag("Summary", opts.Summary)
	tag("Writer", opts.Writer)
	tag("Penciller", opts.Penciller)
	tag("Publisher", opts.Publisher)
	buf.WriteString(fmt.Sprintf("  <PageCount>%d</PageCount>\n", pageCount))

	buf.WriteString("</ComicInfo>")

	return buf.String()
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// GenerateZip writes a zip archive containing exactly the given entries.
func GenerateZip(t *testing.T, dir, filename string, entries map[string][]byte) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip file: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range entries {
		if err := writeZipFile(zw, name, data); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip file: %v", err)
	}

	return path
}
