package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrUserIDRequired = errors.New("user id is required")

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Touch records that user was seen. Empty email and avatar values leave the
// stored ones alone.
func (s *Service) Touch(ctx context.Context, user User) error {
	userID := strings.TrimSpace(user.ID)
	if userID == "" {
		return ErrUserIDRequired
	}

	profile := Profile{
		UserID:     userID,
		Anonymous:  user.Anonymous,
		LastSeenAt: s.now().UTC(),
	}
	if email := strings.TrimSpace(user.Email); email != "" {
		profile.Email = &email
	}
	if avatarURL := strings.TrimSpace(user.AvatarURL); avatarURL != "" {
		profile.AvatarURL = &avatarURL
	}

	return s.repo.UpsertProfile(ctx, &profile)
}
