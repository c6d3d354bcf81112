package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/ca-srg/syncvec/internal/derived"
	"github.com/ca-srg/syncvec/internal/filestate"
	"github.com/ca-srg/syncvec/internal/types"
	"golang.org/x/time/rate"
)

// Orchestrator drives one claimed file through the stage sequence:
// parse, clean, segment, vectorize, persist. Stages run strictly in
// order; any stage failure marks the file "error" and stops. Deleted
// files skip straight to purging their derived data.
type Orchestrator struct {
	root      string
	store     *filestate.Store
	writer    *derived.Writer
	parsers   ParserResolver
	cleaner   Cleaner
	chunker   Chunker
	embedder  Embedder
	limits    *StageLimits
	embedRate *rate.Limiter
}

// Options configures optional orchestrator behavior.
type Options struct {
	// Cleaner is skipped entirely when nil.
	Cleaner Cleaner
	// EmbedRate throttles calls to the embedding service process-wide.
	// Nil disables throttling.
	EmbedRate *rate.Limiter
}

// NewOrchestrator creates an Orchestrator. Paths in file records are
// relative to root.
func NewOrchestrator(
	root string,
	store *filestate.Store,
	writer *derived.Writer,
	parsers ParserResolver,
	chunker Chunker,
	embedder Embedder,
	limits *StageLimits,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		root:      root,
		store:     store,
		writer:    writer,
		parsers:   parsers,
		cleaner:   opts.Cleaner,
		chunker:   chunker,
		embedder:  embedder,
		limits:    limits,
		embedRate: opts.EmbedRate,
	}
}

// Process resolves one claimed file to a terminal status. The returned
// error describes the stage failure for the caller's accounting; the
// file itself has already been marked "error" in the store.
func (o *Orchestrator) Process(ctx context.Context, rec *types.FileRecord) error {
	if rec.Status != types.StatusClaimed {
		return fmt.Errorf("file %s is not claimed (status: %s)", rec.Path, rec.Status)
	}

	// Deletions skip parsing entirely: purge derived data, drop the row.
	if rec.PrevStatus == types.StatusDeleted {
		return o.processDeletion(ctx, rec)
	}

	units, procErr := o.buildUnits(ctx, rec)
	if procErr == nil {
		if err := o.writer.Replace(ctx, rec.ContentHash, units); err != nil {
			procErr = types.NewProcessingError(types.ErrorTypePersist, rec.Path, rec.ContentHash, err)
		}
	}

	if procErr != nil {
		o.resolve(ctx, rec.Path, types.StatusError)
		log.Printf("pipeline: %s failed: %v", rec.Path, procErr)
		return procErr
	}

	if err := o.resolveErr(ctx, rec.Path, types.StatusOK); err != nil {
		return types.NewProcessingError(types.ErrorTypeState, rec.Path, rec.ContentHash, err)
	}

	log.Printf("pipeline: %s processed into %d unit(s)", rec.Path, len(units))
	return nil
}

// buildUnits runs stages 1-4 and returns the vectorized units.
func (o *Orchestrator) buildUnits(ctx context.Context, rec *types.FileRecord) ([]*types.DerivedUnit, *types.ProcessingError) {
	// Stage 1: parse, bounded by the CPU permit.
	text, err := o.parse(ctx, rec)
	if err != nil {
		return nil, types.NewProcessingError(types.ErrorTypeParse, rec.Path, rec.ContentHash, err)
	}

	// Stage 2: clean, best-effort, never aborts the pipeline.
	text = o.clean(text)

	// Stage 3: segment. Nothing to index is a failure.
	segments, err := o.chunker.Split(text)
	if err != nil {
		return nil, types.NewProcessingError(types.ErrorTypeChunk, rec.Path, rec.ContentHash, err)
	}
	if len(segments) == 0 {
		return nil, types.NewProcessingError(types.ErrorTypeChunk, rec.Path, rec.ContentHash,
			fmt.Errorf("no segments produced"))
	}

	// Stage 4: vectorize each segment, bounded by the embed permit and
	// the service rate limiter. The permit is held only for the call
	// itself, never across stages.
	units := make([]*types.DerivedUnit, 0, len(segments))
	for i, segment := range segments {
		embedding, err := o.embed(ctx, segment)
		if err != nil {
			return nil, types.NewProcessingError(types.ErrorTypeEmbed, rec.Path, rec.ContentHash,
				fmt.Errorf("segment %d/%d: %w", i+1, len(segments), err))
		}
		units = append(units, &types.DerivedUnit{
			FileHash:    rec.ContentHash,
			Path:        rec.Path,
			ChunkIndex:  i,
			TotalChunks: len(segments),
			Content:     segment,
			Embedding:   embedding,
			Metadata: map[string]string{
				"file_hash":    rec.ContentHash,
				"path":         rec.Path,
				"chunk_index":  fmt.Sprintf("%d", i),
				"total_chunks": fmt.Sprintf("%d", len(segments)),
			},
			CreatedAt: time.Now(),
		})
	}

	return units, nil
}

func (o *Orchestrator) parse(ctx context.Context, rec *types.FileRecord) (string, error) {
	parser, ok := o.parsers.Resolve(rec.Path)
	if !ok {
		return "", fmt.Errorf("no parser registered for %s", filepath.Ext(rec.Path))
	}

	if err := o.limits.Parse.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("parse permit: %w", err)
	}
	defer o.limits.Parse.Release(1)

	return parser.Parse(ctx, filepath.Join(o.root, filepath.FromSlash(rec.Path)))
}

func (o *Orchestrator) clean(text string) (cleaned string) {
	if o.cleaner == nil {
		return text
	}
	// A cleaner must never abort the pipeline; a panicking implementation
	// yields the input unchanged.
	cleaned = text
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: cleaner panicked, using raw text: %v", r)
			cleaned = text
		}
	}()
	cleaned = o.cleaner.Clean(text)
	return cleaned
}

func (o *Orchestrator) embed(ctx context.Context, segment string) ([]float32, error) {
	if o.embedRate != nil {
		if err := o.embedRate.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embed rate limit: %w", err)
		}
	}

	if err := o.limits.Embed.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("embed permit: %w", err)
	}
	defer o.limits.Embed.Release(1)

	return o.embedder.Embed(ctx, segment)
}

// processDeletion purges derived units for the hash and removes the row.
func (o *Orchestrator) processDeletion(ctx context.Context, rec *types.FileRecord) error {
	deleted, err := o.writer.DeleteByHash(ctx, rec.ContentHash)
	if err != nil {
		procErr := types.NewProcessingError(types.ErrorTypePersist, rec.Path, rec.ContentHash, err)
		o.resolve(ctx, rec.Path, types.StatusError)
		return procErr
	}

	if err := o.store.Remove(ctx, rec.Path); err != nil {
		return types.NewProcessingError(types.ErrorTypeState, rec.Path, rec.ContentHash, err)
	}

	log.Printf("pipeline: %s deleted, purged %d unit(s)", rec.Path, deleted)
	return nil
}

func (o *Orchestrator) resolve(ctx context.Context, path string, status types.Status) {
	if err := o.resolveErr(ctx, path, status); err != nil {
		// The row may have been reclaimed out from under us after a long
		// stall; the reclaimer owns it now.
		log.Printf("pipeline: could not resolve %s to %s: %v", path, status, err)
	}
}

func (o *Orchestrator) resolveErr(ctx context.Context, path string, status types.Status) error {
	return o.store.Resolve(ctx, path, status)
}
