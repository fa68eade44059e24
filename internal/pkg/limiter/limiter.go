/*
Package limiter provides token-bucket rate limiting keyed by an arbitrary string.

The HTTP layer keys limiters by client IP for login and WebSocket upgrades, and by viewer id for
outbound intents (messages, connection requests) so one chatty session cannot flood the simulator.
Idle buckets are swept periodically to keep memory bounded.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"campusconnect/internal/pkg/errs"
	"campusconnect/internal/pkg/logx"
	"campusconnect/internal/pkg/resp"
)

// sweepInterval is how often full (idle) buckets are dropped.
const sweepInterval = 3 * time.Minute

// KeyFunc extracts the limiter key from a request. An empty key is limited as "unknown".
type KeyFunc func(r *http.Request) string

// KeyedRateLimiter holds one rate.Limiter per key.
type KeyedRateLimiter struct {
	// mu protects the limits map.
	mu sync.RWMutex

	// limits maps a key (IP, viewer id) to its token bucket.
	limits map[string]*rate.Limiter

	// r is the refill rate in events per second.
	r rate.Limit

	// b is the bucket size.
	b int

	stopOnce sync.Once
	stopChan chan struct{}
}

// New creates a KeyedRateLimiter with refill rate r and burst b and starts its sweeper.
func New(r rate.Limit, b int) *KeyedRateLimiter {
	l := &KeyedRateLimiter{
		limits:   make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
		stopChan: make(chan struct{}),
	}

	go l.sweep()

	return l
}

// Get returns the limiter for key, creating it on first use.
func (l *KeyedRateLimiter) Get(key string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limits[key]
	l.mu.RUnlock()

	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok = l.limits[key]; !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limits[key] = lim
	}
	return lim
}

// Allow reports whether one more event for key fits in its bucket.
func (l *KeyedRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	return l.Get(key).Allow()
}

// Stop terminates the sweeper goroutine. Safe to call more than once.
func (l *KeyedRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}

// sweep drops buckets that have refilled completely, i.e. keys idle for a while.
func (l *KeyedRateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, remaining := l.dropIdle(time.Now())
			logx.Debug("Rate limiter sweep finished", "removed", removed, "remaining", remaining)
		case <-l.stopChan:
			return
		}
	}
}

func (l *KeyedRateLimiter) dropIdle(now time.Time) (removed, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, lim := range l.limits {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(l.limits, key)
			removed++
		}
	}
	return removed, len(l.limits)
}

// Middleware rejects requests with ErrRateLimitExceeded once the key's bucket is empty.
func (l *KeyedRateLimiter) Middleware(key KeyFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(key(r)) {
				resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by remote IP, without the port.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
