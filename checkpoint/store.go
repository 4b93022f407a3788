package checkpoint

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("checkpoint: record not found")

	// ErrNotPending is returned when approving or rejecting a record that is already
	// resolved.
	ErrNotPending = errors.New("checkpoint: record is not pending")
)

// Status is the lifecycle state of a checkpoint record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusTimedOut Status = "timed_out"

	// StatusCanceled means the waiting flow's context ended before a decision.
	StatusCanceled Status = "canceled"
)

// Record is one offered checkpoint and its resolution.
type Record struct {
	ID        string
	Name      string
	AgentID   string
	SessionID string

	// Data is the payload offered for review. Stores that serialize records
	// (SQLiteStore) round-trip it through JSON, so numbers come back as float64.
	Data map[string]any

	Status     Status
	CreatedAt  time.Time
	ResolvedAt time.Time // zero while pending

	// Feedback is the reviewer's note on approval, or the reason on rejection.
	Feedback string
}

// Pending reports whether the record still awaits a decision.
func (r Record) Pending() bool { return r.Status == StatusPending }

// Store persists checkpoint records.
type Store interface {
	// Save inserts or replaces the record with the same id.
	Save(ctx context.Context, rec Record) error

	// Get returns the record with id, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// List returns the records with the given status, oldest first.
	List(ctx context.Context, status Status) ([]Record, error)
}

// MemoryStore keeps records in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Data = maps.Clone(rec.Data)
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Data = maps.Clone(rec.Data)
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context, status Status) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.Status == status {
			rec.Data = maps.Clone(rec.Data)
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(recs []Record) {
	slices.SortFunc(recs, func(a, b Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

var _ Store = (*MemoryStore)(nil)
