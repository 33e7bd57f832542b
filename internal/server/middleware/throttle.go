package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/time/rate"

	"github.com/rankshop/rankshop/internal/metrics"
)

// ThrottleStore keeps one token bucket per client key and forgets idle ones.
type ThrottleStore struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottleStore allows perMinute requests per key with the given burst.
func NewThrottleStore(perMinute, burst int) *ThrottleStore {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	return &ThrottleStore{
		entries: make(map[string]*throttleEntry),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow consumes one token for key.
func (s *ThrottleStore) Allow(key string) bool {
	now := s.now()

	s.mu.Lock()
	ent, ok := s.entries[key]
	if !ok {
		ent = &throttleEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = ent
	}
	ent.lastSeen = now
	s.mu.Unlock()

	return ent.limiter.AllowN(now, 1)
}

// Cleanup drops buckets idle for longer than the idle TTL.
func (s *ThrottleStore) Cleanup() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (s *ThrottleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Throttle rejects requests over the per-IP budget with 429. kind labels the
// proxy in metrics.
func Throttle(store *ThrottleStore, kind string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || store.Allow(clientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RecordProxyRequest(kind, "throttled")
			envelope := errors.NewErrorEnvelope("RATE_LIMITED", "too many requests, slow down").
				WithCorrelationID(GetRequestID(r.Context()))
			retry := int(math.Ceil(1 / float64(store.limit)))
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
			writeErrorResponse(w, envelope, http.StatusTooManyRequests)
		})
	}
}

// clientIP prefers the address chi's RealIP middleware put in RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
