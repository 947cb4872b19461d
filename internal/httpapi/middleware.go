package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/auth"
)

type ctxKey int

const actorKey ctxKey = iota

// actorFrom returns the authenticated actor stored by requireAuth.
func actorFrom(ctx context.Context) auth.Actor {
	actor, _ := ctx.Value(actorKey).(auth.Actor)
	return actor
}

// requireAuth resolves the Bearer token and stores the actor in the request
// context. Missing or invalid tokens end the request with AUTH_REQUIRED.
func requireAuth(authn auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, r, apperr.New(apperr.CodeAuthRequired, "not signed in"))
				return
			}
			actor, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, r, apperr.New(apperr.CodeAuthRequired, "session expired or invalid"))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

// ipThrottle applies a per-client token bucket in front of the application
// rate limiter. This is transport backpressure, not the submission caps.
type ipThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newIPThrottle(rps float64, burst int) *ipThrottle {
	return &ipThrottle{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (t *ipThrottle) limiterFor(ip string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(t.rps, t.burst)
		t.limiters[ip] = lim
	}
	return lim
}

func (t *ipThrottle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !t.limiterFor(ip).Allow() {
			writeJSON(w, http.StatusTooManyRequests, errEnvelope{
				ErrorCode: "RATE_LIMITED",
				Message:   "too many requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
