package http

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedClients ограничивает число адресов, для которых хранятся лимитеры.
const maxTrackedClients = 4096

// clientLimiter выдает отдельный token bucket на каждый адрес клиента.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newClientLimiter(perMinute int) *clientLimiter {
	return &clientLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *clientLimiter) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[client]
	if !ok {
		if len(l.limiters) >= maxTrackedClients {
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[client] = limiter
	}
	return limiter.Allow()
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LimitSignIn ограничивает частоту попыток входа с одного адреса.
// Без WithSignInLimit запросы пропускаются без ограничений.
func (a *SessionAuth) LimitSignIn(next http.Handler) http.Handler {
	if a.signInLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !a.signInLimiter.allow(client) {
			a.log.Warn("Sign in rate limit exceeded",
				slog.String("client", client),
				slog.String("request_id", getRequestID(r.Context())),
			)
			w.Header().Set("Retry-After", "60")
			respondWithError(w, http.StatusTooManyRequests, "Too many sign in attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}
