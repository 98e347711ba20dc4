package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewLimiterStore returns a Redis-backed store when a client is given, so
// limits hold across instances, and an in-process store otherwise.
func NewLimiterStore(client *redis.Client, prefix string) limiter.Store {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		logrus.WithError(err).Warn("⚠️ Redis limiter store unavailable, falling back to memory")
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})
	}
	return store
}

// RateLimiter limits requests per client IP.
func RateLimiter(store limiter.Store) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  100,
	}

	instance := limiter.New(store, rate, limiter.WithClientIPHeader("CF-Connecting-IP"))

	return ginlimiter.NewMiddleware(instance)
}
