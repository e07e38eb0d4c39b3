package pipeline

import (
	"sync"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/domain"
)

// Snapshot is an immutable view of the lead collection as of one refetch
type Snapshot struct {
	Leads     []domain.Lead
	FetchedAt time.Time
	Version   uint64
}

// Find returns the lead with the given id
func (s Snapshot) Find(id string) (domain.Lead, bool) {
	for _, l := range s.Leads {
		if l.ID == id {
			return l.Clone(), true
		}
	}
	return domain.Lead{}, false
}

// Rejection describes a fetched lead that was kept out of the store
type Rejection struct {
	LeadID string
	Err    error
}

// Store holds the authoritative lead snapshot. The only write path is
// Replace with the result of a refetch.
type Store struct {
	mu        sync.RWMutex
	snapshot  Snapshot
	issued    uint64
	committed uint64
	stale     bool
}

// NewStore creates an empty store that needs a first fetch
func NewStore() *Store {
	return &Store{stale: true}
}

// BeginFetch hands out a ticket identifying a refetch about to start
func (s *Store) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Replace installs the leads fetched under ticket. A result older than the
// last installed one is discarded and Replace returns false. Leads that break
// the lead invariants are left out and returned as rejections.
func (s *Store) Replace(ticket uint64, leads []domain.Lead, fetchedAt time.Time) (bool, []Rejection) {
	accepted := make([]domain.Lead, 0, len(leads))
	var rejected []Rejection
	seen := make(map[string]struct{}, len(leads))
	for _, l := range leads {
		if err := l.Validate(); err != nil {
			rejected = append(rejected, Rejection{LeadID: l.ID, Err: err})
			continue
		}
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}
		accepted = append(accepted, l.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket <= s.committed {
		return false, rejected
	}
	s.committed = ticket
	s.stale = false
	s.snapshot = Snapshot{Leads: accepted, FetchedAt: fetchedAt, Version: ticket}
	return true, rejected
}

// Snapshot returns the current snapshot. The lead slice is shared and must
// be treated as read-only.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Invalidate marks the snapshot as needing a refetch before its next use
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// IsStale reports whether the snapshot was never fetched or was invalidated
func (s *Store) IsStale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}
