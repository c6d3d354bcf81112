package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SYNCVEC_WATCH_ROOT", t.TempDir())
	t.Setenv("SYNCVEC_DB_PATH", "/tmp/syncvec-test.db")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.ScanInterval)
	assert.Equal(t, int64(4), cfg.ParseConcurrency)
	assert.Equal(t, int64(8), cfg.EmbedConcurrency)
	assert.Equal(t, 10.0, cfg.EmbedRateLimit)
	assert.Equal(t, 7000, cfg.ChunkMaxTokens)
	assert.Equal(t, 200, cfg.ChunkOverlapTokens)
	assert.True(t, cfg.CleanEnabled)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, "amazon.titan-embed-text-v2:0", cfg.EmbeddingModel)
	assert.Equal(t, []string{".md", ".markdown", ".txt", ".csv", ".pdf"}, cfg.IncludeExtensions)
}

func TestLoad_MissingWatchRootFails(t *testing.T) {
	t.Setenv("SYNCVEC_WATCH_ROOT", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ExtensionsParsing(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNCVEC_EXTENSIONS", "md| TXT |.pdf||rst")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{".md", ".txt", ".pdf", ".rst"}, cfg.IncludeExtensions)
}

func TestLoad_ClampsOutOfRangeValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNCVEC_WORKERS", "500")
	t.Setenv("SYNCVEC_PARSE_CONCURRENCY", "0")
	t.Setenv("SYNCVEC_POLL_INTERVAL", "1ms")
	t.Setenv("SYNCVEC_SCAN_INTERVAL", "1s")
	t.Setenv("SYNCVEC_EMBED_RATE_LIMIT", "-5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Workers)
	assert.Equal(t, int64(1), cfg.ParseConcurrency)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.ScanInterval)
	assert.Equal(t, 10.0, cfg.EmbedRateLimit)
}

func TestLoad_OverlapClampedBelowChunkSize(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNCVEC_CHUNK_MAX_TOKENS", "1000")
	t.Setenv("SYNCVEC_CHUNK_OVERLAP_TOKENS", "5000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.ChunkMaxTokens)
	assert.Equal(t, 100, cfg.ChunkOverlapTokens)
}

func TestLoad_InvalidMaxFileSizeFails(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNCVEC_MAX_FILE_SIZE", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EmptyExtensionListFails(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNCVEC_EXTENSIONS", "| | |")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ExplicitDatabasePathKept(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNCVEC_DB_PATH", "/tmp/custom/state.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom/state.db", cfg.DatabasePath)
}
