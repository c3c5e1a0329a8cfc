package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/buildlog-backend/pkg/clientip"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	blockedIPKeyPrefix = "blocked_ip:"
)

// RedisRateLimiter is a fixed-window per-IP counter shared by every instance.
// An IP that exceeds Max in one window is blocked for BlockFor.
type RedisRateLimiter struct {
	Client   *redis.Client
	Max      int64
	Window   time.Duration
	BlockFor time.Duration
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		Client:   client,
		Max:      120,
		Window:   time.Minute,
		BlockFor: 15 * time.Minute,
	}
}

// Middleware fails open when Redis is unavailable.
func (l *RedisRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := clientip.RealClientIP(r)
		blockedKey := blockedIPKeyPrefix + ip

		blocked, err := l.Client.Exists(ctx, blockedKey).Result()
		if err == nil && blocked > 0 {
			writeError(w, http.StatusTooManyRequests, "Your IP has been temporarily blocked due to excessive requests. Please try again later.")
			return
		}

		key := rateLimitKeyPrefix + ip
		count, err := l.Client.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Msg("rate limit: redis unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			// First request opens the window.
			l.Client.Expire(ctx, key, l.Window)
		}
		if count > l.Max {
			if err := l.Client.Set(ctx, blockedKey, "1", l.BlockFor).Err(); err != nil {
				log.Warn().Err(err).Str("ip", ip).Msg("rate limit: failed to block ip")
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(l.BlockFor.Seconds())))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.Max, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(l.Max-count, 10))
		next.ServeHTTP(w, r)
	})
}
