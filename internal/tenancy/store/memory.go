package store

import (
	"context"
	"sort"
	"sync"

	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
)

// InMemory keeps tenancy records in maps. Safe for concurrent use.
type InMemory struct {
	mu          sync.RWMutex
	orgs        map[domain.OrgID]tenancy.Organisation
	memberships map[domain.MembershipID]tenancy.Membership
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		orgs:        make(map[domain.OrgID]tenancy.Organisation),
		memberships: make(map[domain.MembershipID]tenancy.Membership),
	}
}

func (s *InMemory) CreateOrganisation(_ context.Context, org *tenancy.Organisation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orgs {
		if existing.Slug == org.Slug {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.orgs[org.ID] = *org
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.OrgID) (*tenancy.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &org, nil
}

func (s *InMemory) FindBySlug(_ context.Context, slug string) (*tenancy.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, org := range s.orgs {
		if org.Slug == slug {
			found := org
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListOrganisations(_ context.Context) ([]*tenancy.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*tenancy.Organisation, 0, len(s.orgs))
	for _, org := range s.orgs {
		found := org
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) UpdateOrganisation(_ context.Context, org *tenancy.Organisation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[org.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.orgs[org.ID] = *org
	return nil
}

func (s *InMemory) CreateMembership(_ context.Context, m *tenancy.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships {
		if existing.OrgID == m.OrgID && existing.UserID == m.UserID {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.memberships[m.ID] = *m
	return nil
}

func (s *InMemory) FindByOrgUser(_ context.Context, orgID domain.OrgID, userID domain.UserID) (*tenancy.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.OrgID == orgID && m.UserID == userID {
			found := m
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListMembers(_ context.Context, orgID domain.OrgID) ([]*tenancy.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*tenancy.Membership
	for _, m := range s.memberships {
		if m.OrgID == orgID {
			found := m
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) UpdateMembership(_ context.Context, m *tenancy.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[m.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.memberships[m.ID] = *m
	return nil
}
