package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSetGetDel(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(Config{Dir: filepath.Join(dir, "nested")})

	_, ok, err := p.Get(ctx, "cache.square.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Set(ctx, "cache.square.json", []byte(`{"[4]":16}`)))

	b, err := os.ReadFile(filepath.Join(dir, "nested", "cache.square.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"[4]":16}`, string(b))

	got, ok, err := p.Get(ctx, "cache.square.json")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"[4]":16}`), got)

	exists, err := p.Exists(ctx, "cache.square.json")
	require.NoError(t, err)
	assert.True(t, exists)

	existed, err := p.Del(ctx, "cache.square.json")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = p.Del(ctx, "cache.square.json")
	require.NoError(t, err)
	assert.False(t, existed)

	exists, err = p.Exists(ctx, "cache.square.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileSetOverwritesWholeFile(t *testing.T) {
	ctx := context.Background()
	p := New(Config{Dir: t.TempDir()})

	require.NoError(t, p.Set(ctx, "a", []byte("a much longer first value")))
	require.NoError(t, p.Set(ctx, "a", []byte("short")))

	got, ok, err := p.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "short", string(got))
}

func TestFileRejectsPathLikeKeys(t *testing.T) {
	ctx := context.Background()
	p := New(Config{Dir: t.TempDir()})

	for _, k := range []string{"", "..", "../escape", `a\b`, "x/y"} {
		err := p.Set(ctx, k, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", k)
	}
}

func TestFileDefaultsToWorkingDirectory(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, ".", p.Dir())
	path, err := p.Path("cache_property.user.json")
	require.NoError(t, err)
	assert.Equal(t, "cache_property.user.json", path)
}
