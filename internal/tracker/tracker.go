// Package tracker keeps the in-memory record of every operation the
// gateway has started, for diagnostics. All mutation goes through the
// four transition methods, each a single critical section.
package tracker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iambrandonn/editorgate/internal/editorerr"
	"github.com/iambrandonn/editorgate/internal/protocol"
)

// Status is the lifecycle state of an operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus maps a status name onto a Status. The empty string is
// returned as is and matches any status in filters.
func ParseStatus(name string) (Status, error) {
	switch s := Status(name); s {
	case "", StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status %q", name)
	}
}

var (
	// ErrUnknownOperation is returned for ids the tracker never issued or
	// has cleared.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrAlreadyFinalized is returned when a terminal transition is
	// applied to a record that already reached a terminal state.
	ErrAlreadyFinalized = errors.New("operation already finalized")
	// ErrInvalidTransition is returned for backward or skipped transitions.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Record is one operation as seen by diagnostics.
type Record struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	ProjectPath string         `json:"project_path"`
	Status      Status         `json:"status"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   editorerr.Kind `json:"error_kind,omitempty"`
}

// Duration returns EndTime-StartTime, or zero while the record is open.
func (r Record) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

func (r *Record) clone() Record {
	cp := *r
	if r.EndTime != nil {
		end := *r.EndTime
		cp.EndTime = &end
	}
	cp.Result = protocol.CloneMap(r.Result)
	return cp
}

// Observer receives a copy of each record as it reaches a terminal state.
type Observer func(Record)

// Option configures a Tracker.
type Option func(*Tracker)

// WithStrict makes a double terminal transition panic instead of
// returning ErrAlreadyFinalized.
func WithStrict(strict bool) Option {
	return func(t *Tracker) { t.strict = strict }
}

// WithObserver registers fn to receive terminal records. fn runs outside
// the tracker lock.
func WithObserver(fn Observer) Option {
	return func(t *Tracker) { t.observer = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker is a concurrency-safe map from operation id to Record.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record

	strict   bool
	observer Observer
	now      func() time.Time
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		records: make(map[string]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewID builds an operation id from the action, the start time and a
// random discriminator, so identical actions started in the same
// nanosecond still differ.
func NewID(action string, at time.Time) string {
	return fmt.Sprintf("%s_%d_%s", action, at.UnixNano(), uuid.New().String()[:8])
}

// Begin records a new pending operation and returns its id.
func (t *Tracker) Begin(action, projectPath string) string {
	now := t.now()
	id := NewID(action, now)

	t.mu.Lock()
	t.records[id] = &Record{
		ID:          id,
		Action:      action,
		ProjectPath: projectPath,
		Status:      StatusPending,
		StartTime:   now,
	}
	t.mu.Unlock()

	return id
}

// MarkRunning moves a pending operation to running.
func (t *Tracker) MarkRunning(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}
	if rec.Status.Terminal() {
		err := fmt.Errorf("%w: %s is %s", ErrAlreadyFinalized, id, rec.Status)
		if t.strict {
			panic("tracker: " + err.Error())
		}
		return err
	}
	if rec.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, rec.Status)
	}
	rec.Status = StatusRunning
	return nil
}

// MarkCompleted finalizes a running operation with its result.
func (t *Tracker) MarkCompleted(id string, result map[string]any) error {
	return t.finish(id, func(rec *Record) error {
		if rec.Status != StatusRunning {
			return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, rec.Status)
		}
		rec.Status = StatusCompleted
		rec.Result = protocol.CloneMap(result)
		return nil
	})
}

// MarkFailed finalizes a pending or running operation with an error.
// The error kind is recorded when err is classified.
func (t *Tracker) MarkFailed(id string, err error) error {
	return t.finish(id, func(rec *Record) error {
		rec.Status = StatusFailed
		rec.Error = "unknown error"
		if err != nil {
			rec.Error = err.Error()
		}
		rec.ErrorKind = editorerr.KindOf(err)
		return nil
	})
}

func (t *Tracker) finish(id string, apply func(*Record) error) error {
	snapshot, err := t.apply(id, apply)
	if err != nil {
		if t.strict && errors.Is(err, ErrAlreadyFinalized) {
			panic("tracker: " + err.Error())
		}
		return err
	}

	if t.observer != nil {
		t.observer(snapshot)
	}
	return nil
}

func (t *Tracker) apply(id string, apply func(*Record) error) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}
	if rec.Status.Terminal() {
		return Record{}, fmt.Errorf("%w: %s is %s", ErrAlreadyFinalized, id, rec.Status)
	}
	if err := apply(rec); err != nil {
		return Record{}, err
	}

	end := t.now()
	if end.Before(rec.StartTime) {
		end = rec.StartTime
	}
	rec.EndTime = &end
	return rec.clone(), nil
}

// Get returns a copy of one record.
func (t *Tracker) Get(id string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Snapshot returns copies of all records ordered by start time.
func (t *Tracker) Snapshot() []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec.clone())
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Len returns the number of records.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Clear drops every record.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.records = make(map[string]*Record)
	t.mu.Unlock()
}
