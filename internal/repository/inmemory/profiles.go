package inmemory

import (
	"context"
	"sync"

	userdomain "todolist-app-go/internal/domain/user"
)

type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]userdomain.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]userdomain.Profile)}
}

func (s *ProfileStore) UpsertProfile(ctx context.Context, profile *userdomain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *profile
	if existing, ok := s.profiles[profile.UserID]; ok {
		next.CreatedAt = existing.CreatedAt
		if next.Email == nil {
			next.Email = existing.Email
		}
		if next.AvatarURL == nil {
			next.AvatarURL = existing.AvatarURL
		}
	} else {
		next.CreatedAt = profile.LastSeenAt
	}
	next.UpdatedAt = profile.LastSeenAt
	s.profiles[profile.UserID] = next
	return nil
}

func (s *ProfileStore) Get(userID string) (userdomain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	return profile, ok
}
