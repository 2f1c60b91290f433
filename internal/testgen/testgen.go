// Package testgen provides utilities for generating comic archives, logos and
// library trees with configurable metadata for testing the scan worker.
package testgen

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// CBZOptions configures the generated CBZ file.
type CBZOptions struct {
	Title       string
	Series      string
	Number      string
	Publisher   string
	Writer      string
	Penciller   string
	Summary     string
	PageCount   int    // defaults to 3
	ImageFormat string // "png" or "jpeg", defaults to "png"
	PageWidth   int    // defaults to 100
	PageHeight  int    // defaults to 150

	HasComicInfo       bool   // whether to include ComicInfo.xml
	ComicInfoName      string // entry name for the sidecar, defaults to "ComicInfo.xml"
	MalformedComicInfo bool   // writes a sidecar that is not valid XML

	// JunkEntries adds __MACOSX resource forks and dot-files that sort before
	// the real pages.
	JunkEntries bool
	// ExtraFiles are written verbatim after the pages.
	ExtraFiles map[string][]byte
}

// LogoOptions configures a generated publisher logo.
type LogoOptions struct {
	Transparent bool
	Width       int // defaults to 32
	Height      int // defaults to 32
}

// TempDir creates a temporary directory for testing and registers cleanup.
// The directory is automatically removed when the test completes.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// TempLibraryDir creates a temporary library root for testing.
func TempLibraryDir(t *testing.T) string {
	t.Helper()
	return TempDir(t, "testgen-library-*")
}

// CreateSubDir creates a subdirectory within the given parent directory.
// Returns the full path to the created subdirectory.
func CreateSubDir(t *testing.T, parent, name string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create subdirectory %s: %v", dir, err)
	}
	return dir
}

// WriteFile creates a file with the given content in the specified directory.
// Returns the full path to the created file.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// GenerateCorrupt writes a file with a comic extension that is not a valid
// archive.
func GenerateCorrupt(t *testing.T, dir, filename string) string {
	t.Helper()
	return WriteFile(t, dir, filename, []byte("this is not a zip archive"))
}

// SetMtime sets both the access and modification time of path.
func SetMtime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime on %s: %v", path, err)
	}
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads and returns the contents of a file.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return data
}
