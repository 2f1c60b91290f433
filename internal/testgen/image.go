package testgen

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"testing"
)

func generateImage(t *testing.T, mimeType string, width, height int, c color.Color) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	switch mimeType {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("failed to encode JPEG: %v", err)
		}
	default: // image/png
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("failed to encode PNG: %v", err)
		}
	}

	return buf.Bytes()
}

// GenerateLogo writes a PNG logo. Transparent logos have a fully transparent
// top-left quadrant.
func GenerateLogo(t *testing.T, dir, filename string, opts LogoOptions) string {
	t.Helper()

	width := opts.Width
	if width <= 0 {
		width = 32
	}
	height := opts.Height
	if height <= 0 {
		height = 32
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{R: 200, G: 30, B: 30, A: 255}
			if opts.Transparent && x < width/2 && y < height/2 {
				c.A = 0
			}
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode logo: %v", err)
	}

	return WriteFile(t, dir, filepath.Base(filename), buf.Bytes())
}

// GeneratePNG returns the bytes of a solid PNG image.
func GeneratePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	return generateImage(t, "image/png", width, height, color.NRGBA{R: 0, G: 100, B: 200, A: 255})
}

// RarSignature is the RAR 5 magic header. Files starting with it are sniffed
// as RAR archives.
var RarSignature = []byte{'R', 'a', 'r', '!', 0x1A, 0x07, 0x01, 0x00}

// GenerateFakeRar writes a file that sniffs as RAR but holds no real entries.
// It is meant to be paired with a fake extractor.
func GenerateFakeRar(t *testing.T, dir, filename string) string {
	t.Helper()
	content := append(append([]byte{}, RarSignature...), []byte("not really compressed data")...)
	return WriteFile(t, dir, filename, content)
}
