package fsync

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ca-srg/syncvec/internal/filestate"
	"github.com/ca-srg/syncvec/internal/types"
	"golang.org/x/sync/errgroup"
)

// SnapshotEntry is one candidate file observed on disk during a walk.
type SnapshotEntry struct {
	Path    string // relative to the watched root
	Hash    string
	Size    int64
	ModTime time.Time
}

// Change is one planned mutation of the file state store.
type Change struct {
	Type    ChangeType
	Path    string
	NewPath string // set for moves
	Hash    string
	Size    int64
	ModTime time.Time
}

// ChangeType classifies a planned change.
type ChangeType int

const (
	ChangeAdded ChangeType = iota
	ChangeUpdated
	ChangeDeleted
	ChangeMoved
	ChangeUnchanged
)

// String returns the string representation of ChangeType
func (c ChangeType) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	case ChangeMoved:
		return "moved"
	case ChangeUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// ScanResult summarizes one reconciliation pass.
type ScanResult struct {
	FilesScanned int
	Added        int
	Updated      int
	Deleted      int
	Moved        int
	Unchanged    int
	Duration     time.Duration
}

// Scanner walks the watched root, hashes candidate files and reconciles
// the snapshot against the file state store. A scan only ever moves rows
// into added/updated/deleted — never into or out of claimed — so it is
// safe to run concurrently with in-flight processing.
type Scanner struct {
	root        string
	store       *filestate.Store
	extensions  map[string]bool
	maxFileSize int64
	hashWorkers int
}

// NewScanner creates a Scanner for the given root. Extensions filter the
// candidate set; files larger than maxFileSize are skipped.
func NewScanner(root string, store *filestate.Store, extensions []string, maxFileSize int64) *Scanner {
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = true
	}
	return &Scanner{
		root:        root,
		store:       store,
		extensions:  extSet,
		maxFileSize: maxFileSize,
		hashWorkers: 4,
	}
}

// ValidateRoot checks that the watched root exists and is a readable directory.
func (s *Scanner) ValidateRoot() error {
	info, err := os.Stat(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("watched root does not exist: %s", s.root)
		}
		return fmt.Errorf("cannot access watched root %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watched root is not a directory: %s", s.root)
	}
	return nil
}

// Snapshot walks the root and returns a map of relative path to
// (hash, size, mtime) for every candidate file.
func (s *Scanner) Snapshot(ctx context.Context) (map[string]*SnapshotEntry, error) {
	if err := s.ValidateRoot(); err != nil {
		return nil, err
	}

	type candidate struct {
		relPath string
		absPath string
		size    int64
		modTime time.Time
	}

	var candidates []candidate
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip unreadable entries but keep walking
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !s.isCandidate(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > s.maxFileSize {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}

		candidates = append(candidates, candidate{
			relPath: filepath.ToSlash(relPath),
			absPath: path,
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk watched root %s: %w", s.root, err)
	}

	// Hash candidates concurrently; hashing dominates scan time on large trees.
	snapshot := make(map[string]*SnapshotEntry, len(candidates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.hashWorkers)
	for _, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash, err := HashFile(c.absPath)
			if err != nil {
				// A file may vanish between walk and hash; skip it, the
				// next scan will classify the path.
				log.Printf("scan: skipping %s: %v", c.relPath, err)
				return nil
			}
			mu.Lock()
			snapshot[c.relPath] = &SnapshotEntry{
				Path:    c.relPath,
				Hash:    hash,
				Size:    c.size,
				ModTime: c.modTime,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Diff reconciles a snapshot against the current store state and returns
// the planned changes without applying them. Claimed rows are untouched.
//
// A hash known to the store that reappears under a new path while its old
// path is gone is a move: the path is updated in place, no reprocessing.
func (s *Scanner) Diff(ctx context.Context, snapshot map[string]*SnapshotEntry) ([]Change, error) {
	state, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var changes []Change

	// Index snapshot entries by hash for move detection.
	snapByHash := make(map[string][]*SnapshotEntry)
	for _, entry := range snapshot {
		snapByHash[entry.Hash] = append(snapByHash[entry.Hash], entry)
	}

	// Move pass: a db row whose path vanished but whose hash survives at a
	// path the store doesn't know yet.
	movedTo := make(map[string]bool)
	for dbPath, rec := range state {
		if rec.Status == types.StatusClaimed {
			continue
		}
		if _, onDisk := snapshot[dbPath]; onDisk {
			continue
		}
		for _, entry := range snapByHash[rec.ContentHash] {
			if _, known := state[entry.Path]; known || movedTo[entry.Path] {
				continue
			}
			changes = append(changes, Change{
				Type:    ChangeMoved,
				Path:    dbPath,
				NewPath: entry.Path,
				Hash:    entry.Hash,
				Size:    entry.Size,
				ModTime: entry.ModTime,
			})
			movedTo[entry.Path] = true
			// Rewrite the in-memory view so the later passes see the row
			// under its new path.
			moved := *rec
			moved.Path = entry.Path
			state[entry.Path] = &moved
			delete(state, dbPath)
			break
		}
	}

	// Classify every on-disk path against the (move-adjusted) state.
	for path, entry := range snapshot {
		rec, known := state[path]
		if !known {
			changes = append(changes, Change{
				Type:    ChangeAdded,
				Path:    path,
				Hash:    entry.Hash,
				Size:    entry.Size,
				ModTime: entry.ModTime,
			})
			continue
		}
		if rec.Status == types.StatusClaimed {
			continue
		}
		// A reappearing file that is still queued as deleted must be
		// re-queued as updated, or the worker would purge a file that
		// exists again.
		if rec.ContentHash != entry.Hash || rec.Status == types.StatusDeleted {
			changes = append(changes, Change{
				Type:    ChangeUpdated,
				Path:    path,
				Hash:    entry.Hash,
				Size:    entry.Size,
				ModTime: entry.ModTime,
			})
			continue
		}
		changes = append(changes, Change{
			Type: ChangeUnchanged,
			Path: path,
			Hash: entry.Hash,
		})
	}

	// Anything left in the state view with no file behind it is a deletion.
	for dbPath, rec := range state {
		if rec.Status == types.StatusClaimed {
			continue
		}
		if _, onDisk := snapshot[dbPath]; onDisk {
			continue
		}
		if rec.Status == types.StatusDeleted {
			// Already queued for deletion; just refresh it.
			changes = append(changes, Change{Type: ChangeUnchanged, Path: dbPath, Hash: rec.ContentHash})
			continue
		}
		changes = append(changes, Change{
			Type: ChangeDeleted,
			Path: dbPath,
			Hash: rec.ContentHash,
		})
	}

	return changes, nil
}

// Apply writes the planned changes to the store.
func (s *Scanner) Apply(ctx context.Context, changes []Change) (*ScanResult, error) {
	result := &ScanResult{}

	for _, change := range changes {
		var err error
		switch change.Type {
		case ChangeAdded:
			err = s.store.InsertAdded(ctx, change.Path, change.Hash, change.Size, change.ModTime)
			result.Added++
		case ChangeUpdated:
			err = s.store.MarkUpdated(ctx, change.Path, change.Hash, change.Size, change.ModTime)
			result.Updated++
		case ChangeDeleted:
			err = s.store.MarkDeleted(ctx, change.Path)
			result.Deleted++
		case ChangeMoved:
			err = s.store.MovePath(ctx, change.Path, change.NewPath)
			result.Moved++
		case ChangeUnchanged:
			err = s.store.Touch(ctx, change.Path)
			result.Unchanged++
		}
		if err != nil {
			return result, fmt.Errorf("failed to apply %s for %s: %w", change.Type, change.Path, err)
		}
	}

	return result, nil
}

// Run performs one full scan: snapshot, diff and apply. With dryRun set
// the planned changes are computed but not written.
func (s *Scanner) Run(ctx context.Context, dryRun bool) (*ScanResult, error) {
	start := time.Now()

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	changes, err := s.Diff(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	var result *ScanResult
	if dryRun {
		result = &ScanResult{}
		for _, change := range changes {
			switch change.Type {
			case ChangeAdded:
				result.Added++
			case ChangeUpdated:
				result.Updated++
			case ChangeDeleted:
				result.Deleted++
			case ChangeMoved:
				result.Moved++
			case ChangeUnchanged:
				result.Unchanged++
			}
		}
	} else {
		result, err = s.Apply(ctx, changes)
		if err != nil {
			return result, err
		}
	}

	result.FilesScanned = len(snapshot)
	result.Duration = time.Since(start)

	log.Printf("scan: %d files, %d added, %d updated, %d deleted, %d moved, %d unchanged (%v)",
		result.FilesScanned, result.Added, result.Updated, result.Deleted, result.Moved,
		result.Unchanged, result.Duration.Round(time.Millisecond))

	return result, nil
}

// isCandidate applies the extension filter.
func (s *Scanner) isCandidate(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return s.extensions[ext]
}
