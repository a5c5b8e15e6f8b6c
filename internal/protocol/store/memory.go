package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"vettinghub/internal/protocol"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
)

// InMemory keeps catalogue entries in a map. Safe for concurrent use.
type InMemory struct {
	mu        sync.RWMutex
	protocols map[domain.ProtocolID]protocol.Protocol
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{protocols: make(map[domain.ProtocolID]protocol.Protocol)}
}

func (s *InMemory) Create(_ context.Context, p *protocol.Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.protocols {
		if existing.OrgID == p.OrgID && strings.EqualFold(existing.Name, p.Name) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.protocols[p.ID] = *p
	return nil
}

func (s *InMemory) FindByName(_ context.Context, orgID domain.OrgID, name string) (*protocol.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.protocols {
		if p.OrgID == orgID && strings.EqualFold(p.Name, name) {
			found := p
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListByOrg(_ context.Context, orgID domain.OrgID, activeOnly bool) ([]*protocol.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*protocol.Protocol
	for _, p := range s.protocols {
		if p.OrgID != orgID || (activeOnly && !p.Active) {
			continue
		}
		found := p
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) Update(_ context.Context, p *protocol.Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.protocols[p.ID]
	if !ok || existing.OrgID != p.OrgID {
		return sentinel.ErrNotFound
	}
	s.protocols[p.ID] = *p
	return nil
}
