// Package ratelimit limits requests per client IP over a one-minute window.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	window = time.Minute
	// idleAfter is how long a client may be silent before cleanup forgets it.
	idleAfter = 10 * time.Minute
)

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// Methods restricts limiting to these HTTP methods. Empty limits all.
	Methods []string
}

// DefaultConfig limits only POSTs, which covers uploads, logins and exports.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		Methods:           []string{http.MethodPost},
	}
}

// counter is one client's fixed window.
type counter struct {
	start time.Time
	seen  time.Time
	n     int
}

// Limiter is a fixed-window limiter keyed by client IP. A background
// goroutine drops idle clients until Stop is called.
type Limiter struct {
	limit    int
	interval time.Duration
	methods  map[string]struct{}
	now      func() time.Time

	mu       sync.Mutex
	clients  map[string]*counter
	rejected int64

	stop     chan struct{}
	stopOnce sync.Once
}

func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	rl := &Limiter{
		limit:    cfg.RequestsPerMinute,
		interval: cfg.CleanupInterval,
		methods:  make(map[string]struct{}, len(cfg.Methods)),
		now:      time.Now,
		clients:  make(map[string]*counter),
		stop:     make(chan struct{}),
	}
	for _, m := range cfg.Methods {
		rl.methods[m] = struct{}{}
	}
	go rl.cleanupLoop()
	return rl
}

// Allow counts one request from ip and reports whether it fits the window.
func (rl *Limiter) Allow(ip string) bool {
	ok, _ := rl.take(ip)
	return ok
}

// take also returns how long until the client's window resets.
func (rl *Limiter) take(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c := rl.clients[ip]
	if c == nil || now.Sub(c.start) >= window {
		c = &counter{start: now}
		rl.clients[ip] = c
	}
	c.n++
	c.seen = now
	if c.n <= rl.limit {
		return true, 0
	}
	rl.rejected++
	return false, c.start.Add(window).Sub(now)
}

func (rl *Limiter) limited(method string) bool {
	if len(rl.methods) == 0 {
		return true
	}
	_, ok := rl.methods[method]
	return ok
}

func (rl *Limiter) cleanupLoop() {
	t := time.NewTicker(rl.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rl.cleanupStaleEntries()
		case <-rl.stop:
			return
		}
	}
}

func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleAfter)
	removed := 0
	for ip, c := range rl.clients {
		if c.seen.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

type Metrics struct {
	Rejected    int64 `json:"rejected"`
	ClientCount int64 `json:"clients"`
}

func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return Metrics{Rejected: rl.rejected, ClientCount: int64(len(rl.clients))}
}

// Middleware rejects over-limit requests with Retry-After set to the seconds
// left in the client's window. onLimit writes the body; nil sends plain text.
func (rl *Limiter) Middleware(clientIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.limited(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := rl.take(clientIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			secs := int((wait + time.Second - 1) / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			if onLimit == nil {
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			onLimit(w, r)
		})
	}
}
