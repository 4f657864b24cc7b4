package httpx

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mveljko/gatehouse/pkg/slogx"
	"golang.org/x/time/rate"
)

// MemLimitConfig defines parameters for the in-process limiter. This
// limiter protects public page and health endpoints only; auth-sensitive
// actions use the store-backed fixed-window counters instead, which are
// shared across instances and fail closed.
type MemLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window.
	RequestsPerWindow int
	// Window is the time window for rate limiting.
	Window time.Duration
	// Burst allows temporary bursts above the rate limit.
	Burst int
}

// Profiles for the public surface.
var (
	// PublicLimit for unauthenticated read-only pages.
	PublicLimit = MemLimitConfig{RequestsPerWindow: 300, Window: time.Minute, Burst: 300}

	// HealthLimit for liveness probes, which monitoring may poll hard.
	HealthLimit = MemLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
)

// memLimiter manages per-key token buckets.
type memLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func (ml *memLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := ml.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(ml.rate, ml.burst)
	actual, _ := ml.limiters.LoadOrStore(key, limiter)

	ml.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops idle limiters so ephemeral client IPs don't accumulate
// forever. A bucket holding its full burst hasn't been touched recently.
func (ml *memLimiter) maybeCleanup() {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if time.Since(ml.lastCleanup) < 5*time.Minute {
		return
	}
	ml.lastCleanup = time.Now()

	ml.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(ml.burst) {
			ml.limiters.Delete(key)
		}
		return true
	})
}

// MemRateLimit creates an in-process rate limiting link keyed by client IP.
func MemRateLimit(config MemLimitConfig) Gate {
	ml := &memLimiter{
		rate:        rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		burst:       config.Burst,
		lastCleanup: time.Now(),
	}

	return func(w http.ResponseWriter, r *http.Request) bool {
		key := ClientIP(r)
		if key == "" {
			// No identity to limit on; allow but note it.
			slogx.FromContext(r.Context()).Warn("rate limit: unable to extract client ip")
			return false
		}

		limiter := ml.getLimiter(key)
		if limiter.Allow() {
			return false
		}

		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel() // don't actually consume the reservation

		retryAfter := max(int(delay.Seconds()), 1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

		slogx.FromContext(r.Context()).Warn("rate limit exceeded",
			"key", key,
			"endpoint", r.URL.Path,
			"retry_after", retryAfter,
		)

		failure := RateLimitError()
		WriteError(w, r, failure.Status, failure.Message)
		return true
	}
}
