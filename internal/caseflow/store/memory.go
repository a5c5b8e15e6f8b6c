package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"vettinghub/internal/caseflow"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
)

// InMemory keeps cases in a map. The mutex serializes UpdateExpecting, which
// is what gives the optimistic check its one-winner guarantee in-process.
type InMemory struct {
	mu    sync.RWMutex
	cases map[domain.CaseID]caseflow.Case
}

// NewInMemory constructs an empty in-memory backend.
func NewInMemory() *InMemory {
	return &InMemory{cases: make(map[domain.CaseID]caseflow.Case)}
}

func (s *InMemory) Insert(_ context.Context, c *caseflow.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cases[c.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.cases[c.ID] = cloneCase(*c)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgFilter *domain.OrgID, id domain.CaseID) (*caseflow.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok || (orgFilter != nil && c.OrgID != *orgFilter) {
		return nil, sentinel.ErrNotFound
	}
	found := cloneCase(c)
	return &found, nil
}

func (s *InMemory) UpdateExpecting(_ context.Context, c *caseflow.Case, expect ...caseflow.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.cases[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if len(expect) > 0 {
		matched := false
		for _, status := range expect {
			if current.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return sentinel.ErrConflict
		}
	}
	s.cases[c.ID] = cloneCase(*c)
	return nil
}

func (s *InMemory) List(_ context.Context, orgFilter *domain.OrgID, f Filter) ([]*caseflow.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*caseflow.Case
	for _, c := range s.cases {
		if orgFilter != nil && c.OrgID != *orgFilter {
			continue
		}
		if !matches(c, f) {
			continue
		}
		found := cloneCase(c)
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *InMemory) CountByStatus(_ context.Context, orgFilter *domain.OrgID) (map[caseflow.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[caseflow.Status]int)
	for _, c := range s.cases {
		if orgFilter != nil && c.OrgID != *orgFilter {
			continue
		}
		counts[c.Status]++
	}
	return counts, nil
}

func matches(c caseflow.Case, f Filter) bool {
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.InstitutionID != nil && c.InstitutionID != *f.InstitutionID {
		return false
	}
	if f.ReviewerID != nil && (c.ReviewerID == nil || *c.ReviewerID != *f.ReviewerID) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.PatientQuery)); q != "" {
		haystack := strings.ToLower(c.Patient.FirstName + " " + c.Patient.Surname + " " + c.Patient.ReferralID)
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

// cloneCase copies the value and its pointer fields so callers cannot reach
// into stored state.
func cloneCase(c caseflow.Case) caseflow.Case {
	if c.ReviewerID != nil {
		reviewer := *c.ReviewerID
		c.ReviewerID = &reviewer
	}
	if c.VettedAt != nil {
		vetted := *c.VettedAt
		c.VettedAt = &vetted
	}
	return c
}
