package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf_Deterministic(t *testing.T) {
	a := Of("/comics/Marvel/X-Men/issue1.cbz")
	b := Of("/comics/Marvel/X-Men/issue1.cbz")
	assert.Equal(t, a, b)
	assert.Len(t, a, Length)
	assert.True(t, Valid(a))
}

func TestOf_DistinctPaths(t *testing.T) {
	seen := map[string]string{}
	paths := []string{
		"/comics/a.cbz",
		"/comics/b.cbz",
		"/comics/A.cbz",
		"/comics/sub/a.cbz",
		"/other/a.cbz",
	}
	for _, p := range paths {
		id := Of(p)
		prev, dup := seen[id]
		assert.False(t, dup, "%s collides with %s", p, prev)
		seen[id] = p
	}
}

func TestOf_CleansPath(t *testing.T) {
	assert.Equal(t, Of("/comics/Marvel/issue1.cbz"), Of("/comics/./Marvel//issue1.cbz"))
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid("abc"))
	assert.False(t, Valid("../../etc/passwd"))
	assert.False(t, Valid(string(make([]byte, Length))))
}
