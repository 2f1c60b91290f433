package fileutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFolderName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Marvel", "Marvel"},
		{"slashes", "AC/DC Comics", "ACDC Comics"},
		{"smart quotes", "Dark Horse’s “Best”", "Dark Horse's Best"},
		{"collapses whitespace", "  Image   Comics  ", "Image Comics"},
		{"trailing dots", "Boom! Studios...", "Boom! Studios"},
		{"control characters", "IDW\x00\x1f", "IDW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFolderName(tt.input))
		})
	}
}

func TestSanitizeFolderName_TruncatesOnRuneBoundary(t *testing.T) {
	// 199 ASCII bytes then a 3-byte rune straddles the limit.
	input := strings.Repeat("a", 199) + "漫画"

	got := SanitizeFolderName(input)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 199), got)
	assert.LessOrEqual(t, len(got), maxFolderNameBytes)
}

func TestIsWithin(t *testing.T) {
	assert.True(t, IsWithin("/comics/incoming", "/comics/incoming/a.cbr"))
	assert.True(t, IsWithin("/comics/incoming/", "/comics/incoming/sub/a.cbr"))
	assert.True(t, IsWithin("/comics/incoming", "/comics/incoming"))
	assert.False(t, IsWithin("/comics/incoming", "/comics/incoming2/a.cbr"))
	assert.False(t, IsWithin("/comics/incoming", "/comics/incoming/../other/a.cbr"))
	assert.False(t, IsWithin("/comics/incoming", "/comics/a.cbr"))
	assert.False(t, IsWithin("", "/comics/a.cbr"))
	assert.True(t, IsWithin("/comics", "/comics/..hidden/a.cbr"))
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.cbz")
	dst := filepath.Join(dir, "sub", "dst.cbz")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	require.NoError(t, MoveFile(src, dst))
	assert.False(t, Exists(src))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestNameHelpers(t *testing.T) {
	assert.True(t, IsHidden("/comics/.rescan"))
	assert.False(t, IsHidden("/comics/issue1.cbz"))
	assert.Equal(t, "issue1", NameWithoutExt("/comics/issue1.cbz"))
}
