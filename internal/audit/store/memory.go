package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"vettinghub/internal/audit"
	"vettinghub/pkg/domain"
)

// InMemory keeps the trail in a slice per case. Safe for concurrent use.
type InMemory struct {
	mu     sync.RWMutex
	byCase map[domain.CaseID][]audit.Event
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{byCase: make(map[domain.CaseID][]audit.Event)}
}

func (s *InMemory) Append(_ context.Context, e *audit.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Seq = len(s.byCase[e.CaseID]) + 1
	s.byCase[e.CaseID] = append(s.byCase[e.CaseID], *e)
	return nil
}

func (s *InMemory) EventsForCase(_ context.Context, caseID domain.CaseID) ([]*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.byCase[caseID]
	out := make([]*audit.Event, 0, len(events))
	for _, e := range events {
		found := e
		out = append(out, &found)
	}
	sortEvents(out)
	return out, nil
}

func (s *InMemory) Export(_ context.Context, orgID *domain.OrgID, from, to time.Time) ([]*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*audit.Event
	for _, events := range s.byCase {
		for _, e := range events {
			if orgID != nil && e.OrgID != *orgID {
				continue
			}
			if e.OccurredAt.Before(from) || !e.OccurredAt.Before(to) {
				continue
			}
			found := e
			out = append(out, &found)
		}
	}
	sortEvents(out)
	return out, nil
}

func sortEvents(events []*audit.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		if events[i].CaseID != events[j].CaseID {
			return events[i].CaseID < events[j].CaseID
		}
		return events[i].Seq < events[j].Seq
	})
}
