package utils

import (
	"context"
	"time"

	"github.com/ulule/limiter/v3"
)

// Throttle counts attempts per key (an e-mail address, a phone number) over
// a sliding period.
type Throttle struct {
	lim *limiter.Limiter
}

func NewThrottle(store limiter.Store, limit int64, period time.Duration) *Throttle {
	return &Throttle{lim: limiter.New(store, limiter.Rate{Period: period, Limit: limit})}
}

// Allow consumes one attempt for key and reports whether it was within the limit.
func (t *Throttle) Allow(ctx context.Context, key string) (bool, error) {
	res, err := t.lim.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return !res.Reached, nil
}
