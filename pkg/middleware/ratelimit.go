package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/cirm-data/portal/pkg/composables"
	"github.com/cirm-data/portal/pkg/configuration"
	"github.com/cirm-data/portal/pkg/httpapi"
)

type RateLimitConfig struct {
	// RequestsPerPeriod is the number of requests allowed per Period.
	RequestsPerPeriod int
	// Period defaults to one second.
	Period time.Duration
	// Store holds the counters. Defaults to an in-memory store.
	Store limiter.Store
	// KeyFunc extracts the client key. Defaults to the real client IP.
	KeyFunc func(r *http.Request) string
}

// NewMemoryStore returns an in-process rate limit counter store.
func NewMemoryStore() limiter.Store {
	return memory.NewStore()
}

// NewRedisStore returns a rate limit counter store shared across instances.
func NewRedisStore(redisURL string) (limiter.Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	return redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "portal:ratelimit",
	})
}

// RateLimit rejects requests over the configured rate with 429. Limiter store
// failures fail open so that a degraded store never takes the API down.
func RateLimit(config RateLimitConfig) mux.MiddlewareFunc {
	period := config.Period
	if period == 0 {
		period = time.Second
	}
	store := config.Store
	if store == nil {
		store = NewMemoryStore()
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		conf := configuration.Use()
		keyFunc = func(r *http.Request) string {
			return getRealIP(r, conf)
		}
	}

	instance := limiter.New(store, limiter.Rate{
		Period: period,
		Limit:  int64(config.RequestsPerPeriod),
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiterCtx, err := instance.Get(r.Context(), keyFunc(r))
			if err != nil {
				if logger, ok := composables.TryUseLogger(r.Context()); ok {
					logger.WithError(err).Warn("rate limit store unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limiterCtx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(limiterCtx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(limiterCtx.Reset, 10))

			if limiterCtx.Reached {
				_ = httpapi.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
