package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	cl, ok := s.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[key] = cl
	}
	cl.lastSeen = now
	s.mu.Unlock()
	return cl.limiter.AllowN(now, 1)
}

func (s *limiterSet) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cl := range s.clients {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(s.clients, key)
		}
	}
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size. Idle clients are forgotten after 10 minutes; the sweeper
// stops when ctx is done.
func RateLimiter(ctx context.Context, rps, burst int) gin.HandlerFunc {
	set := &limiterSet{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
	}

	go func() {
		ticker := time.NewTicker(limiterIdleTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				set.sweep(now)
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(c *gin.Context) {
		if !set.allow(c.ClientIP(), time.Now()) {
			if c.Request.Method == http.MethodPost {
				RecordAppendRejected("rate_limited")
			}
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
