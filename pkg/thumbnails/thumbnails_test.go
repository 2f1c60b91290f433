package thumbnails

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/shishobooks/longbox/internal/testgen"
	"github.com/shishobooks/longbox/pkg/cbz"
	"github.com/shishobooks/longbox/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	return NewGenerator(filepath.Join(t.TempDir(), "thumbnails"), 60, 85)
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	g := newTestGenerator(t)
	dir := t.TempDir()
	path := testgen.GenerateCBZ(t, dir, "issue1.cbz", testgen.CBZOptions{
		PageWidth:   100,
		PageHeight:  150,
		JunkEntries: true,
	})
	id := identity.Of(path)

	filename, err := g.Generate(ctx, path, id)
	require.NoError(t, err)
	require.NotNil(t, filename)
	assert.Equal(t, id+".jpg", *filename)

	img, err := imaging.Open(g.Path(*filename))
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dy())
	assert.Equal(t, 40, img.Bounds().Dx())

	// The first page is red, later pages are blue.
	r, _, b, _ := img.At(20, 30).RGBA()
	assert.Greater(t, r, b)
}

func TestGenerateFromArchive_ReadsOpenArchive(t *testing.T) {
	ctx := context.Background()
	g := newTestGenerator(t)
	path := testgen.GenerateCBZ(t, t.TempDir(), "issue1.cbz", testgen.CBZOptions{})

	a, err := cbz.Open(path)
	require.NoError(t, err)
	defer a.Close()

	// With the path gone, only the already-open handle can supply the page.
	require.NoError(t, os.Remove(path))

	filename, err := g.GenerateFromArchive(ctx, a, identity.Of(path))
	require.NoError(t, err)
	require.NotNil(t, filename)
	assert.True(t, testgen.FileExists(g.Path(*filename)))
}

func TestGenerate_NeverUpscales(t *testing.T) {
	g := newTestGenerator(t)
	dir := t.TempDir()
	path := testgen.GenerateCBZ(t, dir, "small.cbz", testgen.CBZOptions{
		PageWidth:  20,
		PageHeight: 30,
	})

	filename, err := g.Generate(context.Background(), path, identity.Of(path))
	require.NoError(t, err)

	img, err := imaging.Open(g.Path(*filename))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 30), img.Bounds())
}

func TestGenerate_Idempotent(t *testing.T) {
	ctx := context.Background()
	g := newTestGenerator(t)
	dir := t.TempDir()
	path := testgen.GenerateCBZ(t, dir, "issue1.cbz", testgen.CBZOptions{})
	id := identity.Of(path)

	first, err := g.Generate(ctx, path, id)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	testgen.SetMtime(t, g.Path(*first), old)

	// Replace the archive with garbage: a second call must not read it.
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	second, err := g.Generate(ctx, path, id)
	require.NoError(t, err)
	assert.Equal(t, *first, *second)

	info, err := os.Stat(g.Path(*second))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))
}

func TestGenerate_Failures(t *testing.T) {
	ctx := context.Background()
	g := newTestGenerator(t)
	dir := t.TempDir()

	t.Run("corrupt archive", func(t *testing.T) {
		path := testgen.GenerateCorrupt(t, dir, "broken.cbz")
		filename, err := g.Generate(ctx, path, identity.Of(path))
		require.Error(t, err)
		assert.Nil(t, filename)
		assert.False(t, testgen.FileExists(g.Path(g.Filename(identity.Of(path)))))
	})

	t.Run("no images", func(t *testing.T) {
		path := testgen.GenerateZip(t, dir, "text-only.cbz", map[string][]byte{
			"ComicInfo.xml": []byte("<ComicInfo><Title>Empty</Title></ComicInfo>"),
			"notes.txt":     []byte("hello"),
		})
		filename, err := g.Generate(ctx, path, identity.Of(path))
		require.ErrorIs(t, err, ErrNoImage)
		assert.Nil(t, filename)
	})

	t.Run("undecodable image", func(t *testing.T) {
		path := testgen.GenerateZip(t, dir, "bad-page.cbz", map[string][]byte{
			"000.png": []byte("not really a png"),
		})
		filename, err := g.Generate(ctx, path, identity.Of(path))
		require.Error(t, err)
		assert.Nil(t, filename)
	})
}

func TestRemove(t *testing.T) {
	g := newTestGenerator(t)
	dir := t.TempDir()
	path := testgen.GenerateCBZ(t, dir, "issue1.cbz", testgen.CBZOptions{})

	filename, err := g.Generate(context.Background(), path, identity.Of(path))
	require.NoError(t, err)

	require.NoError(t, g.Remove(*filename))
	assert.False(t, testgen.FileExists(g.Path(*filename)))

	// Removing again is fine.
	require.NoError(t, g.Remove(*filename))
}
