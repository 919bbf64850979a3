package http

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"finfeed/internal/config"
	"finfeed/internal/domain"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "finfeed_session"
	userIDKey   = "user_id"
)

type userCtxKey struct{}

// NewCookieStore создает хранилище cookie-сессий по настройкам auth.
func NewCookieStore(cfg config.AuthConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// SessionAuth выдает сессии по API-ключам и охраняет маршруты ленты.
type SessionAuth struct {
	store         sessions.Store
	keys          map[string]string
	signInLimiter *clientLimiter
	log           *slog.Logger
}

// AuthOption настраивает SessionAuth.
type AuthOption func(*SessionAuth)

// WithSignInLimit ограничивает число попыток входа в минуту с одного адреса.
// Неположительное значение снимает ограничение.
func WithSignInLimit(perMinute int) AuthOption {
	return func(a *SessionAuth) {
		if perMinute > 0 {
			a.signInLimiter = newClientLimiter(perMinute)
		}
	}
}

// NewSessionAuth создает охрану. keys сопоставляет API-ключ идентификатору пользователя.
func NewSessionAuth(store sessions.Store, keys map[string]string, log *slog.Logger, opts ...AuthOption) *SessionAuth {
	a := &SessionAuth{
		store: store,
		keys:  keys,
		log:   log.With(slog.String("component", "auth")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RequireAuth пропускает запрос дальше, только если в сессии есть пользователь.
// Иначе отвечает 401.
func (a *SessionAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := a.currentUser(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Sign in required")
			return
		}
		ctx := context.WithValue(r.Context(), userCtxKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SignIn проверяет ключ и записывает пользователя в сессию.
func (a *SessionAuth) SignIn(w http.ResponseWriter, r *http.Request, apiKey string) (string, error) {
	const op = "auth.SignIn"
	userID, ok := a.lookup(apiKey)
	if !ok {
		return "", domain.ErrUnauthorized
	}
	// Поврежденная или чужая cookie не мешает выдать новую сессию.
	session, _ := a.store.Get(r, sessionName)
	session.Values[userIDKey] = userID
	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return userID, nil
}

// SignOut удаляет сессию и возвращает пользователя, который из нее вышел.
func (a *SessionAuth) SignOut(w http.ResponseWriter, r *http.Request) (string, error) {
	const op = "auth.SignOut"
	session, err := a.store.Get(r, sessionName)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	userID, _ := session.Values[userIDKey].(string)
	delete(session.Values, userIDKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return userID, nil
}

func (a *SessionAuth) currentUser(r *http.Request) (string, bool) {
	session, err := a.store.Get(r, sessionName)
	if err != nil {
		a.log.Debug("Invalid session cookie", slog.Any("error", err))
		return "", false
	}
	userID, ok := session.Values[userIDKey].(string)
	return userID, ok && userID != ""
}

func (a *SessionAuth) lookup(apiKey string) (string, bool) {
	if apiKey == "" {
		return "", false
	}
	var found string
	for key, user := range a.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			found = user
		}
	}
	return found, found != ""
}

// UserFromContext возвращает пользователя, установленного RequireAuth.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userCtxKey{}).(string)
	return userID, ok
}
