package member

import (
	"context"
	"sync"

	"github.com/poiesic/fansearch/core"
)

// StaticSource is an in-memory Source for tests and seeding.
type StaticSource struct {
	mu      sync.RWMutex
	members map[uint64]Member
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource creates a StaticSource holding the given members.
func NewStaticSource(members ...Member) *StaticSource {
	s := &StaticSource{members: make(map[uint64]Member, len(members))}
	for _, m := range members {
		s.members[m.ID] = m
	}
	return s
}

// Put adds or replaces a member.
func (s *StaticSource) Put(m Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

// Remove deletes a member.
func (s *StaticSource) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, id)
}

// GetMember retrieves one member by ID.
func (s *StaticSource) GetMember(ctx context.Context, id uint64) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, core.Ef(core.KindEntityNotFound, "member.GetMember", "member %d not found", id)
	}
	return &m, nil
}
