package convert

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shishobooks/longbox/internal/testgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandExtractor_SubstitutesPlaceholders(t *testing.T) {
	dest := t.TempDir()
	archive := testgen.GenerateFakeRar(t, t.TempDir(), "issue.cbr")

	e := &CommandExtractor{
		Command: "sh",
		Args:    []string{"-c", `cp "$1" "$2/copied.bin"`, "sh", "{archive}", "{dest}"},
	}
	require.NoError(t, e.Extract(context.Background(), archive, dest))
	assert.Equal(t, testgen.ReadFile(t, archive), testgen.ReadFile(t, filepath.Join(dest, "copied.bin")))
}

func TestCommandExtractor_Failures(t *testing.T) {
	dest := t.TempDir()

	t.Run("missing tool", func(t *testing.T) {
		e := &CommandExtractor{Command: "longbox-no-such-extractor", Args: []string{"{archive}"}}
		err := e.Extract(context.Background(), "/nope.cbr", dest)
		require.Error(t, err)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		e := &CommandExtractor{Command: "sh", Args: []string{"-c", "echo 'CRC failed' >&2; exit 3"}}
		err := e.Extract(context.Background(), "/nope.cbr", dest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CRC failed")
	})

	t.Run("timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		e := &CommandExtractor{Command: "sleep", Args: []string{"5"}}
		err := e.Extract(ctx, "/nope.cbr", dest)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRarExtractor_RejectsGarbage(t *testing.T) {
	archive := testgen.WriteFile(t, t.TempDir(), "bad.cbr", []byte("definitely not rar"))
	err := RarExtractor{}.Extract(context.Background(), archive, t.TempDir())
	require.Error(t, err)
}

func TestSafeJoin(t *testing.T) {
	dest := "/tmp/extract"

	ok, err := safeJoin(dest, "Scans/001.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "Scans", "001.jpg"), ok)

	ok, err = safeJoin(dest, `Scans\002.jpg`)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "Scans", "002.jpg"), ok)

	for _, name := range []string{"../evil.jpg", "/etc/passwd", "a/../../evil.jpg", ""} {
		_, err := safeJoin(dest, name)
		assert.Error(t, err, name)
	}
}
