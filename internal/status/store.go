// Package status keeps the latest check outcomes in memory for reporting.
package status

import (
	"sync"
	"time"

	"github.com/JakeFAU/phrasewatch/internal/monitor"
)

// Counters tracks how many checks ended in each status.
type Counters struct {
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	URL         string           `json:"url"`
	Phrase      string           `json:"phrase"`
	StartedAt   time.Time        `json:"started_at"`
	Active      bool             `json:"active"`
	FoundAt     *time.Time       `json:"found_at,omitempty"`
	Counters    Counters         `json:"counters"`
	LastOutcome *monitor.Outcome `json:"last_outcome,omitempty"`
}

// Store is an in-memory OutcomeRecorder. It is not persisted.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStore constructs a Store for a target, marking it active.
func NewStore(target monitor.Target, startedAt time.Time) *Store {
	return &Store{
		snapshot: Snapshot{
			URL:       target.URL,
			Phrase:    target.Phrase,
			StartedAt: startedAt,
			Active:    true,
		},
	}
}

// Record stores outcome as the latest and updates counters. The first found
// outcome marks the watch inactive.
func (s *Store) Record(outcome monitor.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome.Status {
	case monitor.StatusFound:
		s.snapshot.Counters.Found++
		if s.snapshot.FoundAt == nil {
			at := outcome.CheckedAt
			s.snapshot.FoundAt = &at
		}
		s.snapshot.Active = false
	case monitor.StatusNotFound:
		s.snapshot.Counters.NotFound++
	case monitor.StatusFailed:
		s.snapshot.Counters.Failed++
	}
	cp := outcome
	s.snapshot.LastOutcome = &cp
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snapshot
	if out.LastOutcome != nil {
		last := *out.LastOutcome
		out.LastOutcome = &last
	}
	if out.FoundAt != nil {
		at := *out.FoundAt
		out.FoundAt = &at
	}
	return out
}
