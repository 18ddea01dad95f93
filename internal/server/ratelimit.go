package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

// ipLimiter holds one token bucket per client address.
type ipLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*client
	now     func() time.Time
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// newIPLimiter allows perMin requests a minute per address. A non-positive
// rate disables limiting.
func newIPLimiter(perMin, burst int) *ipLimiter {
	l := &ipLimiter{
		limit:   rate.Inf,
		clients: make(map[string]*client),
		now:     time.Now,
	}
	if perMin > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMin))
	}
	if burst <= 0 {
		burst = 1
	}
	l.burst = burst
	return l
}

func (l *ipLimiter) allow(addr string) bool {
	if l.limit == rate.Inf {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[addr]
	if !ok {
		if len(l.clients) >= 1024 {
			l.sweep(now)
		}
		c = &client{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[addr] = c
	}
	c.seen = now
	return c.lim.AllowN(now, 1)
}

// sweep drops clients idle for longer than limiterIdle. Callers hold mu.
func (l *ipLimiter) sweep(now time.Time) {
	for addr, c := range l.clients {
		if now.Sub(c.seen) > limiterIdle {
			delete(l.clients, addr)
		}
	}
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeDetail(w, http.StatusTooManyRequests, "Too many submissions, please retry shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
