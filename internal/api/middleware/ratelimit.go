package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"luxemap/estates/internal/config"
	"luxemap/estates/internal/logging"
)

const (
	limiterIdleTTL         = 30 * time.Minute
	limiterCleanupInterval = 10 * time.Minute
)

type clientLimiter struct {
	soft     *rate.Limiter
	hard     *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware keeps a soft and a hard token bucket per client and
// route. Exceeding the hard bucket is a 429. Exceeding the soft bucket is a
// 418 asking for a captcha, unless the request was verified as human.
type RateLimiterMiddleware struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	soft     config.Bucket
	hard     config.Bucket
	perRoute map[string]config.RouteRateLimit
	now      func() time.Time
}

func NewRateLimiterMiddleware(cfg *config.Config) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		clients:  make(map[string]*clientLimiter),
		soft:     config.Bucket{Size: cfg.RateLimitSoftBucketSize, Rate: cfg.RateLimitSoftRefillRate},
		hard:     config.Bucket{Size: cfg.RateLimitHardBucketSize, Rate: cfg.RateLimitHardRefillRate},
		perRoute: cfg.RateLimitRoutes,
		now:      time.Now,
	}
}

func clientKey(c *gin.Context) string {
	return c.ClientIP() + "|" + c.GetHeader(HeaderFingerprint) + "|" + c.GetHeader(HeaderVisitor)
}

func (rm *RateLimiterMiddleware) bucketsFor(routeKey string) (config.Bucket, config.Bucket) {
	soft, hard := rm.soft, rm.hard
	if o, ok := rm.perRoute[routeKey]; ok {
		if o.Soft != nil {
			soft = *o.Soft
		}
		if o.Hard != nil {
			hard = *o.Hard
		}
	}
	return soft, hard
}

func (rm *RateLimiterMiddleware) limiterFor(client, routeKey string) *clientLimiter {
	key := client + "|" + routeKey

	rm.mu.Lock()
	defer rm.mu.Unlock()

	l, ok := rm.clients[key]
	if !ok {
		soft, hard := rm.bucketsFor(routeKey)
		l = &clientLimiter{
			soft: rate.NewLimiter(rate.Limit(soft.Rate), soft.Size),
			hard: rate.NewLimiter(rate.Limit(hard.Rate), hard.Size),
		}
		rm.clients[key] = l
	}
	l.lastSeen = rm.now()
	return l
}

// Cleanup drops limiters idle for longer than ttl and returns how many.
func (rm *RateLimiterMiddleware) Cleanup(ttl time.Duration) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	removed := 0
	cutoff := rm.now().Add(-ttl)
	for key, l := range rm.clients {
		if l.lastSeen.Before(cutoff) {
			delete(rm.clients, key)
			removed++
		}
	}
	return removed
}

// RunCleanup periodically forgets idle clients until ctx is done.
func (rm *RateLimiterMiddleware) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rm.Cleanup(limiterIdleTTL); n > 0 {
				logging.Logger.Debugf("Rate limiter cleanup removed %d idle clients", n)
			}
		}
	}
}

// Limit returns the Gin handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		routeKey := c.Request.Method + " " + c.FullPath()
		client := clientKey(c)
		l := rm.limiterFor(client, routeKey)

		if !l.hard.Allow() {
			logging.Logger.Infof("Hard rate limit exceeded for %s on %s", client, routeKey)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		if !c.GetBool(ContextKeyIsHumanVerified) && !l.soft.Allow() {
			logging.Logger.Infof("Soft rate limit exceeded for %s on %s", client, routeKey)
			c.AbortWithStatusJSON(http.StatusTeapot, gin.H{"error": "Captcha validation required"})
			return
		}

		c.Next()
	}
}
