package app

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// AccessCounter keeps process-local request counters and logs a summary at
// a fixed interval. Counters reset after every summary; they are a
// diagnostic aid, not part of any correctness guarantee.
type AccessCounter struct {
	logger   *slog.Logger
	requests atomic.Int64

	mu  sync.Mutex
	ips map[string]struct{}
}

// NewAccessCounter constructs the counter and starts the summary loop.
// The loop stops when the done channel closes.
func NewAccessCounter(logger *slog.Logger, interval time.Duration, done <-chan struct{}) *AccessCounter {
	c := &AccessCounter{logger: logger, ips: make(map[string]struct{})}
	if interval <= 0 {
		interval = time.Hour
	}
	go c.loop(interval, done)
	return c
}

// Middleware records the request before passing it on. RealIP middleware
// must run earlier in the chain so RemoteAddr holds the client address.
func (c *AccessCounter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.requests.Add(1)
		c.mu.Lock()
		c.ips[clientIP(r.RemoteAddr)] = struct{}{}
		c.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// clientIP drops the ephemeral port so one client counts once, whether
// or not RealIP already rewrote RemoteAddr to a bare address.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func (c *AccessCounter) loop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			requests := c.requests.Swap(0)
			c.mu.Lock()
			unique := len(c.ips)
			c.ips = make(map[string]struct{})
			c.mu.Unlock()
			if requests > 0 && c.logger != nil {
				c.logger.Info("access summary",
					slog.Int64("requests", requests),
					slog.Int("unique_ips", unique),
					slog.Duration("window", interval),
				)
			}
		}
	}
}
