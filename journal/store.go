package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/theimaginaryfoundation/reflect-o-bot/journal/fileutils"
)

var (
	// ErrLogWrite marks a failure to append to the main log. Nothing was recorded.
	ErrLogWrite = errors.New("journal log write failed")
	// ErrRetrievalWrite marks a failure to append the retrieval projection after the entry
	// itself was recorded.
	ErrRetrievalWrite = errors.New("retrieval file write failed")
	ErrCorruptLog     = errors.New("journal log corrupt")
)

// CorruptLineError reports a complete log line that does not decode.
type CorruptLineError struct {
	Path string
	Line int
	Err  error
}

func (e *CorruptLineError) Error() string {
	return fmt.Sprintf("%s:%d: corrupt journal line: %v", e.Path, e.Line, e.Err)
}

func (e *CorruptLineError) Unwrap() []error {
	return []error{ErrCorruptLog, e.Err}
}

// Recorder is the persistence surface the presentation layers depend on.
type Recorder interface {
	Save(text string, analysis Analysis, at time.Time) (Entry, error)
	LoadAll() ([]Entry, error)
}

// Store appends entries to a line-delimited JSON log and replays it on demand. It keeps no
// in-memory state between calls; every LoadAll re-reads the file.
type Store struct {
	path          string
	retrievalPath string
	now           func() time.Time
	newID         func() string
}

type StoreOption func(*Store)

// WithRetrievalPath overrides where retrieval records are appended.
func WithRetrievalPath(path string) StoreOption {
	return func(s *Store) { s.retrievalPath = path }
}

// WithoutRetrieval disables the retrieval projection.
func WithoutRetrieval() StoreOption {
	return func(s *Store) { s.retrievalPath = "" }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) { s.newID = newID }
}

// DefaultRetrievalPath places the projection at <dir>/rag/rag_<base>.
func DefaultRetrievalPath(logPath string) string {
	return filepath.Join(filepath.Dir(logPath), "rag", "rag_"+filepath.Base(logPath))
}

func NewStore(path string, opts ...StoreOption) (*Store, error) {
	if path == "" {
		return nil, errors.New("NewStore: empty log path")
	}
	s := &Store{
		path:          path,
		retrievalPath: DefaultRetrievalPath(path),
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Path() string          { return s.path }
func (s *Store) RetrievalPath() string { return s.retrievalPath }

// Save records text with its analysis. A zero at means now. When the retrieval append
// fails the entry is still returned, alongside an error matching ErrRetrievalWrite.
func (s *Store) Save(text string, analysis Analysis, at time.Time) (Entry, error) {
	if at.IsZero() {
		at = s.now()
	}
	entry := Entry{
		ID:        s.newID(),
		Text:      text,
		Analysis:  analysis.normalized(),
		Timestamp: NewTimestamp(at),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("Save: marshal entry: %w", err)
	}
	if err := fileutils.AppendLine(s.path, line); err != nil {
		return Entry{}, fmt.Errorf("Save: %w: %w", ErrLogWrite, err)
	}

	if s.retrievalPath == "" {
		return entry, nil
	}
	rec, err := json.Marshal(retrievalRecordFor(entry))
	if err != nil {
		return entry, fmt.Errorf("Save: %w: marshal: %w", ErrRetrievalWrite, err)
	}
	if err := fileutils.AppendLine(s.retrievalPath, rec); err != nil {
		return entry, fmt.Errorf("Save: %w: %w", ErrRetrievalWrite, err)
	}
	return entry, nil
}

// LoadAll decodes the log in file order. A missing log is empty. Blank lines are skipped.
// A complete line that does not decode fails with *CorruptLineError; an unterminated final
// line that does not decode is an append still in flight and is ignored.
func (s *Store) LoadAll() ([]Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("LoadAll: open: %w", err)
	}
	defer f.Close()

	entries, err := readEntries(f, s.path)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func readEntries(r io.Reader, path string) ([]Entry, error) {
	br := bufio.NewReader(r)
	entries := []Entry{}
	for lineNo := 1; ; lineNo++ {
		raw, readErr := br.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("LoadAll: read %s: %w", path, readErr)
		}
		terminated := readErr == nil

		if line := bytes.TrimSpace(raw); len(line) > 0 {
			var e Entry
			if err := json.Unmarshal(line, &e); err != nil {
				if terminated {
					return nil, &CorruptLineError{Path: path, Line: lineNo, Err: err}
				}
			} else {
				entries = append(entries, e)
			}
		}

		if !terminated {
			return entries, nil
		}
	}
}

// RebuildRetrieval regenerates the retrieval file from the log and returns the number of
// records written.
func (s *Store) RebuildRetrieval() (int, error) {
	if s.retrievalPath == "" {
		return 0, errors.New("RebuildRetrieval: retrieval projection disabled")
	}
	entries, err := s.LoadAll()
	if err != nil {
		return 0, fmt.Errorf("RebuildRetrieval: %w", err)
	}
	records := make([]RetrievalRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, retrievalRecordFor(e))
	}
	if err := fileutils.WriteJSONLinesAtomic(s.retrievalPath, records); err != nil {
		return 0, fmt.Errorf("RebuildRetrieval: %w", err)
	}
	return len(records), nil
}
