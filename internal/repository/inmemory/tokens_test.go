package inmemory

import (
	"testing"
	"time"

	userdomain "todolist-app-go/internal/domain/user"
)

func TestTokenCacheExpires(t *testing.T) {
	cache := NewTokenCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("token-1", userdomain.User{ID: "user-1"}, time.Minute)

	user, ok := cache.Get("token-1")
	if !ok || user.ID != "user-1" {
		t.Fatalf("expected cached user, got %+v %v", user, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := cache.Get("token-1"); ok {
		t.Fatalf("expected entry to expire")
	}
	if cache.Len() != 0 {
		t.Fatalf("expected expired entry to be removed")
	}
}

func TestTokenCacheIgnoresNonPositiveTTL(t *testing.T) {
	cache := NewTokenCache()
	cache.Set("token-1", userdomain.User{ID: "user-1"}, time.Minute)
	cache.Set("token-1", userdomain.User{ID: "user-1"}, 0)

	if _, ok := cache.Get("token-1"); ok {
		t.Fatalf("expected zero ttl to drop the entry")
	}
}
