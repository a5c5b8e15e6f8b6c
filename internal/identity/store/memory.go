package store

import (
	"context"
	"strings"
	"sync"

	"vettinghub/internal/identity"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
)

// InMemory keeps users in a map. Safe for concurrent use.
type InMemory struct {
	mu    sync.RWMutex
	users map[domain.UserID]identity.User
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{users: make(map[domain.UserID]identity.User)}
}

func (s *InMemory) Create(_ context.Context, u *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.UserID) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			found := u
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Update(_ context.Context, u *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.users[u.ID] = *u
	return nil
}
