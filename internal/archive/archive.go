// Package archive persists every direct message the bot receives to an
// append-only, per-author JSON log. Each author identity owns one file
// holding an ordered array of records; files grow monotonically and are
// never pruned or rewritten out of receipt order.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Record is one archived direct message. The JSON field names are the
// on-disk contract; timestamps are RFC 3339 in UTC.
type Record struct {
	Timestamp   string   `json:"timestamp"`
	Author      string   `json:"author"`
	AuthorID    string   `json:"author_id"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
}

// AppendResult reports how an append completed. Recovered is set when the
// prior file content was unparseable and was treated as an empty sequence;
// Records is the number of records in the file after the append.
type AppendResult struct {
	Recovered bool
	Records   int
}

// Store writes per-author DM logs under a base directory. Appends to the
// same author are serialized with a per-author mutex so concurrent DMs
// from one user cannot lose records; distinct authors do not contend.
type Store struct {
	dir    string
	logger *slog.Logger

	// locks holds one mutex per author key and is never evicted: it grows
	// with the number of distinct DM senders over the process lifetime,
	// which stays small enough that eviction is not worth the complexity.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory cannot be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}

	return &Store{
		dir:    dir,
		logger: logger.With("component", "archive"),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Append adds rec to the end of its author's log. A missing file starts an
// empty sequence; an unparseable file is recovered as empty rather than
// failing the whole operation. Only unrecoverable I/O errors are returned.
func (s *Store) Append(ctx context.Context, rec Record) (AppendResult, error) {
	key := partitionKey(rec)
	if key == "" {
		return AppendResult{}, fmt.Errorf("record has neither author id nor author name")
	}

	lock := s.authorLock(key)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(s.dir, key+".json")

	records, recovered, err := s.load(ctx, path)
	if err != nil {
		return AppendResult{}, err
	}
	if recovered {
		s.logger.WarnContext(ctx, "Existing archive file was unparseable, starting a fresh sequence",
			"path", path, "author_id", rec.AuthorID)
	}

	records = append(records, rec)

	if err := writeAtomic(path, records); err != nil {
		return AppendResult{}, fmt.Errorf("failed to write archive for author %s: %w", key, err)
	}

	s.logger.DebugContext(ctx, "Archived direct message",
		"author_id", rec.AuthorID, "records", len(records), "recovered", recovered)
	return AppendResult{Recovered: recovered, Records: len(records)}, nil
}

// Load returns the stored sequence for an author identity, oldest first.
// A missing file yields an empty slice.
func (s *Store) Load(ctx context.Context, authorID string) ([]Record, error) {
	key := sanitizeKey(authorID)
	if key == "" {
		return nil, fmt.Errorf("author id cannot be empty")
	}

	lock := s.authorLock(key)
	lock.Lock()
	defer lock.Unlock()

	records, recovered, err := s.load(ctx, filepath.Join(s.dir, key+".json"))
	if err != nil {
		return nil, err
	}
	if recovered {
		return []Record{}, nil
	}
	return records, nil
}

// load reads and parses an author file. The recovered flag is set when the
// file exists but does not parse as a record array.
func (s *Store) load(ctx context.Context, path string) ([]Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []Record{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read archive file %s: %w", path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return []Record{}, true, nil
	}
	return records, false, nil
}

// writeAtomic writes the full sequence to a temporary file in the same
// directory and renames it over the target, so a reader never observes a
// partially written file.
func writeAtomic(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace archive file: %w", err)
	}
	return nil
}

func (s *Store) authorLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// partitionKey picks the file key for a record: the stable author identity,
// falling back to the display string when the identity is absent. The
// fallback should not occur in practice.
func partitionKey(rec Record) string {
	if key := sanitizeKey(rec.AuthorID); key != "" {
		return key
	}
	return sanitizeKey(rec.Author)
}

// sanitizeKey strips path-hostile characters so an author identity maps to
// a safe file name. Discord snowflake IDs pass through unchanged.
func sanitizeKey(id string) string {
	id = strings.TrimSpace(id)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, id)
}
