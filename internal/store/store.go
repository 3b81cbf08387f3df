// Package store is the single source of truth for job records: an
// in-memory map keyed by identity, persisted as one JSON snapshot with
// write-to-temp-then-rename atomicity.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/khalidmab/jobpress/internal/model"
)

// snapshot is the on-disk layout: the full record set keyed by identity.
type snapshot struct {
	Version int                         `json:"version"`
	SavedAt time.Time                   `json:"saved_at"`
	Records map[string]*model.JobRecord `json:"records"`
}

const snapshotVersion = 1

// Store holds all records. Every mutation is a short read-modify-write
// under the store lock; mutations never span a network call.
type Store struct {
	mu      sync.Mutex
	path    string
	records map[string]*model.JobRecord
	logger  *slog.Logger
}

// Open loads the last persisted snapshot from path. A missing snapshot
// yields an empty store; a corrupt one is sidelined (never silently
// discarded) and an empty store is returned with a warning. Open only
// fails when even an empty store cannot be initialized.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	s := &Store{
		path:    path,
		records: make(map[string]*model.JobRecord),
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("no snapshot found, starting with empty store", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		corrupt := &model.CorruptionError{Path: path, Err: err}
		sidelined := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405Z"))
		if renameErr := os.Rename(path, sidelined); renameErr != nil {
			return nil, fmt.Errorf("sidelining corrupt snapshot: %w (%v)", renameErr, corrupt)
		}
		logger.Warn("snapshot corrupt, sidelined and starting empty",
			"path", path,
			"sidelined", sidelined,
			"error", err,
		)
		return s, nil
	}

	if snap.Records != nil {
		s.records = snap.Records
	}
	logger.Info("snapshot loaded", "path", path, "records", len(s.records))
	return s, nil
}

// Upsert inserts rec if its identity is unknown and reports true. For a
// known identity it merges: populated fields are never overwritten, only
// stage-owned fields (stage, structured, location, publish result,
// failure info) take the caller's value.
func (s *Store) Upsert(rec model.JobRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.Identity]
	if !ok {
		r := rec
		s.records[rec.Identity] = &r
		return true
	}

	merge(existing, rec)
	return false
}

// merge applies the never-overwrite-populated rule onto dst.
func merge(dst *model.JobRecord, src model.JobRecord) {
	if dst.SourceURL == "" {
		dst.SourceURL = src.SourceURL
	}
	if dst.Raw.Description == "" {
		dst.Raw = src.Raw
	}
	if dst.ScrapedAt.IsZero() {
		dst.ScrapedAt = src.ScrapedAt
	}
	if dst.EnrichedAt == nil {
		dst.EnrichedAt = src.EnrichedAt
	}
	if dst.PublishedAt == nil {
		dst.PublishedAt = src.PublishedAt
	}

	// Stage-owned fields: last writer wins when the writer has a value.
	if src.Stage != "" {
		dst.Stage = src.Stage
	}
	if src.Structured != nil {
		dst.Structured = src.Structured
	}
	if src.Location != nil {
		dst.Location = src.Location
	}
	if src.Publish != nil {
		dst.Publish = src.Publish
	}
	if src.Failure != nil {
		dst.Failure = src.Failure
	}
	if len(src.Warnings) > 0 {
		dst.Warnings = append(dst.Warnings, src.Warnings...)
	}
}

// Get returns a copy of the record with the given identity.
func (s *Store) Get(identity string) (model.JobRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identity]
	if !ok {
		return model.JobRecord{}, false
	}
	return *rec, true
}

// Has reports whether identity exists in the store.
func (s *Store) Has(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[identity]
	return ok
}

// Update applies fn to the record under the store lock. fn must be short
// and free of I/O. A missing identity is an error.
func (s *Store) Update(identity string, fn func(*model.JobRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identity]
	if !ok {
		return fmt.Errorf("update: unknown identity %s", identity)
	}
	return fn(rec)
}

// Find returns a lazy sequence of copies of matching records. Each range
// over the sequence scans a snapshot taken when iteration starts, so a
// scan is consistent and restartable.
func (s *Store) Find(pred func(model.JobRecord) bool) iter.Seq[model.JobRecord] {
	return func(yield func(model.JobRecord) bool) {
		s.mu.Lock()
		matched := make([]model.JobRecord, 0, len(s.records))
		for _, rec := range s.records {
			if pred(*rec) {
				matched = append(matched, *rec)
			}
		}
		s.mu.Unlock()

		for _, rec := range matched {
			if !yield(rec) {
				return
			}
		}
	}
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// CountByStage returns record counts per stage.
func (s *Store) CountByStage() map[model.Stage]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[model.Stage]int)
	for _, rec := range s.records {
		counts[rec.Stage]++
	}
	return counts
}

// FailedByKind returns failed-record counts per failure kind, so operators
// can triage without reading logs.
func (s *Store) FailedByKind() map[model.FailureKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[model.FailureKind]int)
	for _, rec := range s.records {
		if rec.Stage == model.StageFailed && rec.Failure != nil {
			counts[rec.Failure.Kind]++
		}
	}
	return counts
}

// Persist writes the full record set to the snapshot path atomically:
// marshal to a temp file in the same directory, then rename over the old
// snapshot. A crash mid-write leaves the previous snapshot intact.
func (s *Store) Persist() error {
	s.mu.Lock()
	snap := snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Records: make(map[string]*model.JobRecord, len(s.records)),
	}
	for id, rec := range s.records {
		r := *rec
		snap.Records[id] = &r
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	s.logger.Debug("snapshot persisted", "path", s.path, "records", len(snap.Records))
	return nil
}
