// Package rate throttles API callers per client key.
package rate

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter *rate.Limiter
	last    time.Time
}

// LimiterMap keeps one token bucket per client key and evicts buckets idle
// for longer than ttl.
type LimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*entry
	every    rate.Limit
	burst    int
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLimiterMap allows rpm requests per minute per key with the given burst.
// A non-positive rpm disables limiting.
func NewLimiterMap(rpm, burst int, ttl time.Duration) *LimiterMap {
	every := rate.Inf
	if rpm > 0 {
		every = rate.Every(time.Minute / time.Duration(rpm))
	}
	if burst < 1 {
		burst = 1
	}
	lm := &LimiterMap{
		limiters: make(map[string]*entry),
		every:    every,
		burst:    burst,
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go lm.reaper()
	return lm
}

func (l *LimiterMap) reaper() {
	t := time.NewTicker(l.ttl)
	defer t.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case now := <-t.C:
			l.evictIdle(now)
		}
	}
}

func (l *LimiterMap) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.limiters {
		if now.Sub(e.last) > l.ttl {
			delete(l.limiters, key)
		}
	}
}

// Stop ends the eviction goroutine. Safe to call more than once.
func (l *LimiterMap) Stop() { l.stopOnce.Do(func() { close(l.stopCh) }) }

// Len reports how many keys currently hold a bucket.
func (l *LimiterMap) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *LimiterMap) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.limiters[key]; ok {
		e.last = now
		return e.limiter
	}
	lim := rate.NewLimiter(l.every, l.burst)
	l.limiters[key] = &entry{limiter: lim, last: now}
	return lim
}

// Allow reports whether a request for key may proceed now.
func (l *LimiterMap) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// Reserve is Allow that also reports, on refusal, how long until the next
// token. A refused request does not consume a token.
func (l *LimiterMap) Reserve(key string) (bool, time.Duration) {
	now := time.Now()
	r := l.get(key, now).ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// IPFromRequest extracts the client IP, preferring the first X-Forwarded-For hop.
func IPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
