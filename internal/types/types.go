package types

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a watched file.
type Status string

const (
	StatusOK      Status = "ok"
	StatusAdded   Status = "added"
	StatusUpdated Status = "updated"
	StatusDeleted Status = "deleted"
	StatusClaimed Status = "claimed"
	StatusError   Status = "error"
)

// Eligible reports whether a file in this status may be claimed for processing.
func (s Status) Eligible() bool {
	return s == StatusAdded || s == StatusUpdated || s == StatusDeleted
}

// FileRecord is one row of the file state store: what the system believes
// is on disk for a single watched path. The content hash, not size or
// mtime, is authoritative for change detection.
type FileRecord struct {
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	Size        int64     `json:"size"`
	ModifiedAt  time.Time `json:"modified_at"`
	Status      Status    `json:"status"`
	PrevStatus  Status    `json:"prev_status"`
	LastChecked time.Time `json:"last_checked"`
}

// DerivedUnit is one segment of parsed, cleaned and vectorized content
// produced from a source file. Units are joined to their FileRecord only
// through FileHash; replacing the units for a hash is a single unit of
// work owned by the derived-data writer.
type DerivedUnit struct {
	ID          string            `json:"id"`
	FileHash    string            `json:"file_hash"`
	Path        string            `json:"path"`
	ChunkIndex  int               `json:"chunk_index"`
	TotalChunks int               `json:"total_chunks"`
	Content     string            `json:"content"`
	Embedding   []float32         `json:"embedding"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ProcessingError represents a stage failure for a single file. Errors are
// local to one file and never abort other in-flight work or the worker loop.
type ProcessingError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	FileHash  string    `json:"file_hash"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface for ProcessingError
func (pe *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s (file: %s)", pe.Type, pe.Message, pe.Path)
}

// NewProcessingError wraps a stage error with file context.
func NewProcessingError(errType ErrorType, path, hash string, err error) *ProcessingError {
	return &ProcessingError{
		Type:      errType,
		Message:   err.Error(),
		Path:      path,
		FileHash:  hash,
		Timestamp: time.Now(),
	}
}

// ErrorType represents the pipeline stage where an error occurred
type ErrorType string

const (
	ErrorTypeFileRead ErrorType = "file_read"
	ErrorTypeParse    ErrorType = "parse"
	ErrorTypeChunk    ErrorType = "chunk"
	ErrorTypeEmbed    ErrorType = "embed"
	ErrorTypePersist  ErrorType = "persist"
	ErrorTypeState    ErrorType = "state_store"
)

// Config represents the syncvec configuration
type Config struct {
	// Watched tree
	WatchRoot            string   `json:"watch_root" env:"SYNCVEC_WATCH_ROOT,required=true"`
	DatabasePath         string   `json:"database_path" env:"SYNCVEC_DB_PATH"`
	IncludeExtensionsStr string   `json:"-" env:"SYNCVEC_EXTENSIONS,default=.md|.markdown|.txt|.csv|.pdf"`
	IncludeExtensions    []string `json:"include_extensions"`
	MaxFileSize          int64    `json:"max_file_size" env:"SYNCVEC_MAX_FILE_SIZE,default=10485760"`

	// Worker pool and scan cadence
	Workers      int           `json:"workers" env:"SYNCVEC_WORKERS,default=4"`
	PollInterval time.Duration `json:"poll_interval" env:"SYNCVEC_POLL_INTERVAL,default=2s"`
	ScanInterval time.Duration `json:"scan_interval" env:"SYNCVEC_SCAN_INTERVAL,default=5m"`

	// Per-stage concurrency limits. Parse is CPU-bound on the host; embed
	// calls a shared throughput-limited model service, so the two are
	// bounded independently and never held at the same time.
	ParseConcurrency int64   `json:"parse_concurrency" env:"SYNCVEC_PARSE_CONCURRENCY,default=4"`
	EmbedConcurrency int64   `json:"embed_concurrency" env:"SYNCVEC_EMBED_CONCURRENCY,default=8"`
	EmbedRateLimit   float64 `json:"embed_rate_limit" env:"SYNCVEC_EMBED_RATE_LIMIT,default=10.0"`
	EmbedRateBurst   int     `json:"embed_rate_burst" env:"SYNCVEC_EMBED_RATE_BURST,default=20"`

	// Pipeline stages
	CleanEnabled bool `json:"clean_enabled" env:"SYNCVEC_CLEAN_ENABLED,default=true"`

	// Chunking
	ChunkMaxTokens     int `json:"chunk_max_tokens" env:"SYNCVEC_CHUNK_MAX_TOKENS,default=7000"`
	ChunkOverlapTokens int `json:"chunk_overlap_tokens" env:"SYNCVEC_CHUNK_OVERLAP_TOKENS,default=200"`

	// AWS Bedrock embedding configuration
	AWSRegion      string `json:"aws_region" env:"AWS_REGION,default=us-east-1"`
	EmbeddingModel string `json:"embedding_model" env:"SYNCVEC_EMBEDDING_MODEL,default=amazon.titan-embed-text-v2:0"`
}
