package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"vettinghub/internal/institution"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
)

// InMemory keeps institutions in a map. Safe for concurrent use.
type InMemory struct {
	mu    sync.RWMutex
	insts map[domain.InstitutionID]institution.Institution
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{insts: make(map[domain.InstitutionID]institution.Institution)}
}

func (s *InMemory) Create(_ context.Context, inst *institution.Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.insts {
		if existing.OrgID == inst.OrgID && strings.EqualFold(existing.Name, inst.Name) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.insts[inst.ID] = *inst
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID domain.OrgID, id domain.InstitutionID) (*institution.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.insts[id]
	if !ok || inst.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	return &inst, nil
}

func (s *InMemory) ListByOrg(_ context.Context, orgID domain.OrgID) ([]*institution.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*institution.Institution
	for _, inst := range s.insts {
		if inst.OrgID == orgID {
			found := inst
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) Update(_ context.Context, inst *institution.Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.insts[inst.ID]
	if !ok || existing.OrgID != inst.OrgID {
		return sentinel.ErrNotFound
	}
	s.insts[inst.ID] = *inst
	return nil
}
