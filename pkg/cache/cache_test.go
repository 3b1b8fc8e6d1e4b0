package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"websites-content-system/pkg/models"
)

func sampleTree() models.ProjectTree {
	return models.ProjectTree{
		Name: "ubuntu.com",
		Templates: &models.Page{
			ID:   "root",
			Name: "/",
			Children: []*models.Page{
				{ID: "a", Name: "/a", Children: []*models.Page{}},
			},
		},
	}
}

func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()
	var got models.ProjectTree

	ok, err := c.Get(ctx, "SITE_REPOSITORY_ubuntu.com_main", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "SITE_REPOSITORY_ubuntu.com_main", sampleTree()))
	ok, err = c.Get(ctx, "SITE_REPOSITORY_ubuntu.com_main", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ubuntu.com", got.Name)
	require.Len(t, got.Templates.Children, 1)
	assert.Equal(t, "/a", got.Templates.Children[0].Name)

	require.NoError(t, c.Delete(ctx, "SITE_REPOSITORY_ubuntu.com_main"))
	ok, err = c.Get(ctx, "SITE_REPOSITORY_ubuntu.com_main", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting a missing key is fine
	assert.NoError(t, c.Delete(ctx, "missing"))
	assert.True(t, c.Available())
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemoryCache(time.Minute))
}

func TestFileCache(t *testing.T) {
	fc, err := NewFileCache(t.TempDir(), time.Minute)
	require.NoError(t, err)
	exerciseCache(t, fc)
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", sampleTree()))
	now = now.Add(2 * time.Minute)

	var got models.ProjectTree
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_IsolatesCallers(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()
	tree := sampleTree()
	require.NoError(t, c.Set(ctx, "k", tree))

	tree.Templates.Children[0].Name = "/mutated"

	var got models.ProjectTree
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/a", got.Templates.Children[0].Name)
}

func TestFileCache_Expires(t *testing.T) {
	fc, err := NewFileCache(t.TempDir(), time.Minute)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, fc.Set(ctx, "k", sampleTree()))

	fc.now = func() time.Time { return time.Now().Add(time.Hour) }

	var got models.ProjectTree
	ok, err := fc.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileCache_KeyIsPathSafe(t *testing.T) {
	dir := t.TempDir()
	fc, err := NewFileCache(dir, time.Minute)
	require.NoError(t, err)

	require.NoError(t, fc.Set(context.Background(), "canonical/ubuntu.com", sampleTree()))

	_, err = os.Stat(filepath.Join(dir, "WEBSITES_CONTENT_SYSTEM_canonical_ubuntu.com.json"))
	assert.NoError(t, err)
}

func TestNew_FallsBackToMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	c := New(filepath.Join(blocker, "cache"), 0, zap.NewNop())

	assert.Equal(t, "MemoryCache", c.Kind())
}

func TestNew_UsesFileCache(t *testing.T) {
	c := New(t.TempDir(), time.Minute, zap.NewNop())
	assert.Equal(t, "FileCache", c.Kind())
}
