package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/budget-ledger/internal/jobs"
)

// DefaultRetention is how many run records NewStore keeps.
const DefaultRetention = 100

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// Store keeps classification run records in memory, oldest first. Once
// more than the retention limit are held, the oldest finished runs are
// forgotten. Records do not survive a restart. It is safe for concurrent
// use.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]*jobs.ClassifyJob
	order     []string
	retention int
}

// NewStore creates a store keeping DefaultRetention records.
func NewStore() *Store {
	return NewStoreWithRetention(DefaultRetention)
}

// NewStoreWithRetention creates a store keeping at most n records, or
// every record when n <= 0.
func NewStoreWithRetention(n int) *Store {
	return &Store{byID: make(map[string]*jobs.ClassifyJob), retention: n}
}

// SaveJob stores a copy of job, replacing any record with the same id.
func (s *Store) SaveJob(_ context.Context, job *jobs.ClassifyJob) error {
	if job.JobID == "" {
		return errors.New("save job: job ID is required")
	}

	rec := *job
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.JobID]; !ok {
		s.order = append(s.order, rec.JobID)
	}
	s.byID[rec.JobID] = &rec
	s.evictLocked()
	return nil
}

// evictLocked drops the oldest finished records beyond the retention
// limit. Unfinished runs are never dropped.
func (s *Store) evictLocked() {
	over := len(s.order) - s.retention
	if s.retention <= 0 || over <= 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if over > 0 && s.byID[id].Status.Finished() {
			delete(s.byID, id)
			over--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// GetJob returns a copy of the record.
func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.ClassifyJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	out := *rec
	return &out, nil
}

// ListJobs returns copies of the matching records, most recently saved
// first, after Offset and up to Limit.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.ClassifyJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*jobs.ClassifyJob{}
	skip := filter.Offset
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.byID[s.order[i]]
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		c := *rec
		out = append(out, &c)
	}
	return out, nil
}

// UpdateJobStatus sets the status. StartedAt is stamped the first time the
// run is marked running and CompletedAt the first time it reaches a terminal
// status. A non-empty errorMsg is recorded.
func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	rec.Status = status
	now := time.Now()
	if status == jobs.JobStatusRunning && rec.StartedAt == nil {
		rec.StartedAt = &now
	}
	if status.Finished() && rec.CompletedAt == nil {
		rec.CompletedAt = &now
	}
	if errorMsg != "" {
		rec.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
