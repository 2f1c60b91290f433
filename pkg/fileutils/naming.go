package fileutils

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxFolderNameBytes = 200

var (
	doubleQuotes = regexp.MustCompile(`[“”]`)
	singleQuotes = regexp.MustCompile(`[‘’]`)
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// SanitizeFolderName turns a display name (a publisher, say) into a single
// path segment that is safe on every common filesystem.
func SanitizeFolderName(name string) string {
	name = doubleQuotes.ReplaceAllString(name, `"`)
	name = singleQuotes.ReplaceAllString(name, `'`)

	// Different operating systems have different restrictions, so we'll be conservative
	name = invalidChars.ReplaceAllString(name, "")
	name = whitespace.ReplaceAllString(name, " ")

	// Trim spaces and dots from the ends (Windows doesn't like trailing dots)
	name = strings.Trim(name, " .")

	if len(name) > maxFolderNameBytes {
		cut := maxFolderNameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.Trim(name[:cut], " .")
	}

	return name
}

// IsHidden reports whether the base name of path starts with a dot.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// NameWithoutExt returns the base name of path without its extension.
func NameWithoutExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
