// Package journal persists terminal operation records as NDJSON so they
// survive the process, and reads them back for the ops command.
package journal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/iambrandonn/editorgate/internal/editorerr"
	"github.com/iambrandonn/editorgate/internal/ndjson"
	"github.com/iambrandonn/editorgate/internal/tracker"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("journal is closed")

// Journal appends records to an NDJSON file
type Journal struct {
	path    string
	file    *os.File
	encoder *ndjson.Encoder
	logger  *slog.Logger
	mu      sync.Mutex
}

// Open creates the journal file (and its directory) or opens it for
// appending.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &Journal{
		path:    path,
		file:    file,
		encoder: ndjson.NewEncoder(file, logger),
		logger:  logger,
	}, nil
}

// Path returns the journal location.
func (j *Journal) Path() string {
	return j.path
}

// Append writes one record. A record whose result does not fit in a line
// is written without the result.
func (j *Journal) Append(rec tracker.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return ErrClosed
	}

	err := j.encoder.Encode(rec)
	if err == nil || rec.Result == nil {
		return err
	}
	j.logger.Warn("journal record too large, dropping result", "id", rec.ID, "error", err)
	rec.Result = nil
	return j.encoder.Encode(rec)
}

// Observer returns a tracker observer that appends every terminal record.
// Write failures are logged, never propagated to the operation.
func (j *Journal) Observer() tracker.Observer {
	return func(rec tracker.Record) {
		if err := j.Append(rec); err != nil {
			j.logger.Error("failed to journal operation", "id", rec.ID, "error", err)
		}
	}
}

// Close closes the journal file. Safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// Read parses every record in a journal file, in file order.
func Read(path string, logger *slog.Logger) ([]tracker.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	dec := ndjson.NewDecoder(file, logger)
	records := make([]tracker.Record, 0)
	for {
		var rec tracker.Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read journal: %w", err)
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("line %d: record has no id", dec.Line())
		}
		records = append(records, rec)
	}
	return records, nil
}

// Filter selects records by action and status. Empty criteria match
// everything.
func Filter(records []tracker.Record, action string, status tracker.Status) []tracker.Record {
	out := make([]tracker.Record, 0, len(records))
	for _, rec := range records {
		if action != "" && rec.Action != action {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Summary aggregates a set of records.
type Summary struct {
	Total    int                    `json:"total"`
	ByStatus map[tracker.Status]int `json:"by_status"`
	ByKind   map[editorerr.Kind]int `json:"by_error_kind"`
	ByAction map[string]int         `json:"by_action"`
}

// Summarize counts records by status, error kind and action.
func Summarize(records []tracker.Record) Summary {
	s := Summary{
		ByStatus: make(map[tracker.Status]int),
		ByKind:   make(map[editorerr.Kind]int),
		ByAction: make(map[string]int),
	}
	for _, rec := range records {
		s.Total++
		s.ByStatus[rec.Status]++
		s.ByAction[rec.Action]++
		if rec.ErrorKind != "" {
			s.ByKind[rec.ErrorKind]++
		}
	}
	return s
}

// Actions returns the distinct actions in the summary, sorted.
func (s Summary) Actions() []string {
	actions := make([]string, 0, len(s.ByAction))
	for a := range s.ByAction {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	return actions
}
