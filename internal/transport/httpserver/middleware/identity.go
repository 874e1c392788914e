package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"todolist-app-go/internal/config"
	userdomain "todolist-app-go/internal/domain/user"
	"todolist-app-go/pkg/logger"

	"github.com/google/uuid"
)

const DeviceIDHeader = "X-Device-ID"

type contextKey int

const (
	userIDKey contextKey = iota
	userKey
)

var errInvalidToken = errors.New("invalid token")

type TokenCache interface {
	Get(token string) (userdomain.User, bool)
	Set(token string, user userdomain.User, ttl time.Duration)
}

type ProfileSaver interface {
	Touch(ctx context.Context, user userdomain.User) error
}

// Identity resolves the owner of a request: the configured mock user, a
// bearer token verified against the auth provider, or an anonymous device id.
type Identity struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	cache          TokenCache
	cacheTTL       time.Duration
	profiles       ProfileSaver
	skipAuth       bool
	allowAnonymous bool
	mockUser       userdomain.User
	log            logger.Logger
}

type userResponse struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Sub          string                 `json:"sub"`
	IsAnonymous  bool                   `json:"is_anonymous"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	User         struct {
		ID  string `json:"id"`
		Sub string `json:"sub"`
	} `json:"user"`
}

func NewIdentity(cfg config.AuthConfig, cache TokenCache, profiles ProfileSaver, log logger.Logger) *Identity {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Identity{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		apiKey:         cfg.PublishableKey,
		client:         &http.Client{Timeout: timeout},
		cache:          cache,
		cacheTTL:       cfg.TokenCacheTTL,
		profiles:       profiles,
		skipAuth:       cfg.SkipAuth,
		allowAnonymous: cfg.AllowAnonymous,
		mockUser: userdomain.User{
			ID:        strings.TrimSpace(cfg.MockUserID),
			Email:     strings.TrimSpace(cfg.MockUserEmail),
			Name:      strings.TrimSpace(cfg.MockUserName),
			AvatarURL: strings.TrimSpace(cfg.MockUserAvatar),
		},
		log: log,
	}
}

func (a *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, status, code, message := a.resolve(r)
		if status != 0 {
			writeError(w, status, code, message)
			return
		}

		if a.profiles != nil {
			if err := a.profiles.Touch(r.Context(), user); err != nil {
				a.log.InternalError("auth.identity: touch profile failed", err, "user_id", user.ID)
			}
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (a *Identity) resolve(r *http.Request) (userdomain.User, int, string, string) {
	if a.skipAuth {
		if a.mockUser.ID == "" {
			return userdomain.User{}, http.StatusInternalServerError, "auth_not_configured", "auth mock user id not configured"
		}
		return a.mockUser, 0, "", ""
	}

	if token, ok := requestToken(r); ok {
		if a.baseURL == "" || a.apiKey == "" {
			return userdomain.User{}, http.StatusInternalServerError, "auth_not_configured", "auth not configured"
		}
		user, err := a.verify(r.Context(), token)
		if err != nil {
			a.log.BusinessError("auth.identity: token rejected", err)
			return userdomain.User{}, http.StatusUnauthorized, "invalid_token", "invalid token"
		}
		return user, 0, "", ""
	}

	if a.allowAnonymous {
		if deviceID, ok := requestDeviceID(r); ok {
			return userdomain.User{ID: deviceID, Anonymous: true}, 0, "", ""
		}
	}

	return userdomain.User{}, http.StatusUnauthorized, "identity_required", "sign in or send a device id"
}

func (a *Identity) verify(ctx context.Context, token string) (userdomain.User, error) {
	if a.cache != nil {
		if user, ok := a.cache.Get(token); ok {
			return user, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return userdomain.User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return userdomain.User{}, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return userdomain.User{}, fmt.Errorf("%w: auth status %d", errInvalidToken, resp.StatusCode)
	}

	var payload userResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return userdomain.User{}, fmt.Errorf("decode auth response: %w", err)
	}

	userID := firstNonEmpty(payload.ID, payload.Sub, payload.User.ID, payload.User.Sub)
	if userID == "" {
		return userdomain.User{}, fmt.Errorf("%w: no user id", errInvalidToken)
	}

	user := userdomain.User{
		ID:        userID,
		Email:     payload.Email,
		Name:      firstNonEmpty(stringFromMap(payload.UserMetadata, "name"), stringFromMap(payload.UserMetadata, "full_name")),
		AvatarURL: stringFromMap(payload.UserMetadata, "avatar_url"),
		Anonymous: payload.IsAnonymous,
	}

	if a.cache != nil {
		a.cache.Set(token, user, a.cacheTTL)
	}
	return user, nil
}

// requestToken also reads the access_token query parameter because
// EventSource clients cannot set headers.
func requestToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
		return token, true
	}
	return "", false
}

func requestDeviceID(r *http.Request) (string, bool) {
	value := strings.TrimSpace(r.Header.Get(DeviceIDHeader))
	if value == "" {
		value = strings.TrimSpace(r.URL.Query().Get("device_id"))
	}
	if value == "" {
		return "", false
	}

	parsed, err := uuid.Parse(value)
	if err != nil || parsed == uuid.Nil {
		return "", false
	}
	return parsed.String(), true
}

func bearerToken(value string) (string, bool) {
	parts := strings.Fields(value)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func WithUser(ctx context.Context, user userdomain.User) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, userIDKey, user.ID)
}

func UserFromContext(ctx context.Context) (userdomain.User, bool) {
	user, ok := ctx.Value(userKey).(userdomain.User)
	if !ok || user.ID == "" {
		return userdomain.User{}, false
	}
	return user, true
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func stringFromMap(values map[string]interface{}, key string) string {
	if values == nil {
		return ""
	}
	parsed, _ := values[key].(string)
	return parsed
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
