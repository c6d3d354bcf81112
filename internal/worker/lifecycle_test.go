package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/syncvec/internal/fsync"
	"github.com/ca-srg/syncvec/internal/types"
)

// TestFullLifecycle drives one file through the whole engine with stub
// capabilities: added → processed, content change → reprocessed, rename →
// untouched, removal → purged.
func TestFullLifecycle(t *testing.T) {
	e := newPoolEnv(t)
	ctx := context.Background()

	scanner := fsync.NewScanner(e.root, e.store, []string{".md"}, 1<<20)
	pool := NewPool(e.store, e.orchestrator(nil), 2, 0)

	sync := func() {
		t.Helper()
		_, err := scanner.Run(ctx, false)
		require.NoError(t, err)
		pool.Drain(ctx)
	}

	path := filepath.Join(e.root, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("first version"), 0644))

	// Added → ok with derived units.
	sync()
	rec, err := e.store.GetByPath(ctx, "doc.md")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.StatusOK, rec.Status)
	firstHash := rec.ContentHash

	count, err := e.writer.CountByHash(ctx, firstHash)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Content change → reprocessed under the new hash, old units gone.
	require.NoError(t, os.WriteFile(path, []byte("second version, different"), 0644))
	sync()
	rec, err = e.store.GetByPath(ctx, "doc.md")
	require.NoError(t, err)
	assert.Equal(t, types.StatusOK, rec.Status)
	assert.NotEqual(t, firstHash, rec.ContentHash)

	count, err = e.writer.CountByHash(ctx, rec.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	secondHash := rec.ContentHash

	stale, err := e.writer.CountByHash(ctx, firstHash)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stale, "units under the superseded hash must be purged")

	// Rename → path moves, no reprocessing, units untouched.
	require.NoError(t, os.Rename(path, filepath.Join(e.root, "renamed.md")))
	sync()
	rec, err = e.store.GetByPath(ctx, "renamed.md")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.StatusOK, rec.Status)
	assert.Equal(t, secondHash, rec.ContentHash)
	assert.Equal(t, int64(0), pool.Stats().FilesFailed)

	// Removal → row dropped, units purged.
	require.NoError(t, os.Remove(filepath.Join(e.root, "renamed.md")))
	sync()
	rec, err = e.store.GetByPath(ctx, "renamed.md")
	require.NoError(t, err)
	assert.Nil(t, rec)

	count, err = e.writer.CountByHash(ctx, secondHash)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
