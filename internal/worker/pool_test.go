package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/syncvec/internal/derived"
	"github.com/ca-srg/syncvec/internal/filestate"
	"github.com/ca-srg/syncvec/internal/pipeline"
	"github.com/ca-srg/syncvec/internal/types"
)

type passthroughParser struct{}

func (passthroughParser) Parse(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type anyResolver struct{ parser pipeline.Parser }

func (r anyResolver) Resolve(string) (pipeline.Parser, bool) { return r.parser, true }

type wholeChunker struct{}

func (wholeChunker) Split(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

type fixedEmbedder struct{ err error }

func (e fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 2, 3}, nil
}

type poolEnv struct {
	store  *filestate.Store
	writer *derived.Writer
	root   string
}

func newPoolEnv(t *testing.T) *poolEnv {
	t.Helper()
	store, err := filestate.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	writer, err := derived.NewWriter(store.DB())
	require.NoError(t, err)

	return &poolEnv{store: store, writer: writer, root: t.TempDir()}
}

func (e *poolEnv) orchestrator(embedErr error) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(e.root, e.store, e.writer,
		anyResolver{parser: passthroughParser{}}, wholeChunker{},
		fixedEmbedder{err: embedErr}, pipeline.NewStageLimits(2, 2), pipeline.Options{})
}

func (e *poolEnv) seedFiles(t *testing.T, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		rel := fmt.Sprintf("file-%02d.md", i)
		content := fmt.Sprintf("content of file %d", i)
		require.NoError(t, os.WriteFile(filepath.Join(e.root, rel), []byte(content), 0644))
		require.NoError(t, e.store.InsertAdded(ctx, rel, fmt.Sprintf("hash-%02d", i),
			int64(len(content)), time.Now()))
	}
}

func TestPool_DrainProcessesWholeQueue(t *testing.T) {
	e := newPoolEnv(t)
	e.seedFiles(t, 12)

	pool := NewPool(e.store, e.orchestrator(nil), 4, 10*time.Millisecond)
	pool.Drain(context.Background())

	stats := pool.Stats()
	assert.Equal(t, int64(12), stats.FilesClaimed)
	assert.Equal(t, int64(12), stats.FilesSucceeded)
	assert.Equal(t, int64(0), stats.FilesFailed)

	counts, err := e.store.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), counts[types.StatusOK])
	assert.Equal(t, int64(0), counts[types.StatusClaimed])
}

func TestPool_FailureDoesNotStopTheQueue(t *testing.T) {
	e := newPoolEnv(t)
	e.seedFiles(t, 6)

	pool := NewPool(e.store, e.orchestrator(errors.New("service down")), 2, 10*time.Millisecond)
	pool.Drain(context.Background())

	stats := pool.Stats()
	assert.Equal(t, int64(6), stats.FilesClaimed, "a failed file must not stop the worker loop")
	assert.Equal(t, int64(6), stats.FilesFailed)
	assert.Equal(t, int64(0), stats.FilesSucceeded)

	counts, err := e.store.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(6), counts[types.StatusError])
}

func TestPool_DrainCountsDeletions(t *testing.T) {
	e := newPoolEnv(t)
	ctx := context.Background()

	require.NoError(t, e.store.InsertAdded(ctx, "gone.md", "hash-gone", 10, time.Now()))
	require.NoError(t, e.store.MarkDeleted(ctx, "gone.md"))

	pool := NewPool(e.store, e.orchestrator(nil), 1, 10*time.Millisecond)
	pool.Drain(ctx)

	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.FilesDeleted)
	assert.Equal(t, int64(0), stats.FilesSucceeded)

	rec, err := e.store.GetByPath(ctx, "gone.md")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPool_RunStopsOnCancel(t *testing.T) {
	e := newPoolEnv(t)
	e.seedFiles(t, 3)

	pool := NewPool(e.store, e.orchestrator(nil), 2, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	// Give the loops time to drain the queue, then cancel.
	require.Eventually(t, func() bool {
		return pool.Stats().FilesSucceeded == 3
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}

func TestPool_EmptyQueueDrainReturns(t *testing.T) {
	e := newPoolEnv(t)

	pool := NewPool(e.store, e.orchestrator(nil), 3, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		pool.Drain(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain did not return on an empty queue")
	}
	assert.Equal(t, int64(0), pool.Stats().FilesClaimed)
}
