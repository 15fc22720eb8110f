package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/HammerMeetNail/plantcare/internal/logging"
)

// fixedWindowScript increments the window counter and arms its expiry on the
// first hit.
const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// CounterStore runs the fixed-window script. services.RedisAdapter satisfies
// it.
type CounterStore interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
}

type RateLimiter struct {
	store  CounterStore
	limit  int64
	window time.Duration
	prefix string
	keyFn  func(r *http.Request) string
	// failOpen lets requests through when the store errors.
	failOpen bool
}

func NewRateLimiter(store CounterStore, limit int64, window time.Duration, prefix string, keyFn func(r *http.Request) string, failOpen bool) *RateLimiter {
	if keyFn == nil {
		keyFn = GetClientIP
	}
	return &RateLimiter{
		store:    store,
		limit:    limit,
		window:   window,
		prefix:   prefix,
		keyFn:    keyFn,
		failOpen: failOpen,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.store == nil || rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		keySuffix := rl.keyFn(r)
		if keySuffix == "" {
			keySuffix = GetClientIP(r)
		}
		key := rl.prefix + keySuffix

		windowSeconds := int64(rl.window.Seconds())
		if windowSeconds < 1 {
			windowSeconds = 1
		}
		result, err := rl.store.Eval(r.Context(), fixedWindowScript, []string{key}, windowSeconds)
		if err != nil {
			logging.Error("Rate limit store error", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			rl.unavailable(w, r, next)
			return
		}

		count, ok := counterValue(result)
		if !ok {
			logging.Error("Rate limit script returned unexpected type", map[string]interface{}{"type": fmt.Sprintf("%T", result)})
			rl.unavailable(w, r, next)
			return
		}

		if count > rl.limit {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", windowSeconds))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) unavailable(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if rl.failOpen {
		next.ServeHTTP(w, r)
		return
	}
	writeError(w, http.StatusServiceUnavailable, "Rate limiting temporarily unavailable")
}

func counterValue(result any) (int64, bool) {
	switch v := result.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
