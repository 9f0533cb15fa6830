package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrInvalidRateLimit is returned when the rate limit is not a positive integer.
var ErrInvalidRateLimit = errors.New("rate limit must be a positive number of checks per second")

// Limiter gates the start of checks. It admits at most rps starts in any
// one-second window (rolling, not aligned to wall-clock seconds) by spacing
// starts evenly rather than letting them burst.
//
// It is safe to call Acquire from multiple goroutines concurrently.
type Limiter struct {
	limiter *rate.Limiter
	rps     int
}

// NewLimiter creates a Limiter admitting rps check starts per second.
func NewLimiter(rps int) (*Limiter, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRateLimit, rps)
	}

	// The extra microsecond keeps float rounding in the token math from
	// fitting rps+1 starts into a single second.
	interval := time.Second/time.Duration(rps) + time.Microsecond

	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		rps:     rps,
	}, nil
}

// Acquire blocks until one more check may start or ctx is done. There is
// nothing to release afterwards. Errors always match ctx's error under
// errors.Is; when the next slot falls after ctx's deadline, Acquire returns
// at once with context.DeadlineExceeded.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// Rate returns the configured number of starts per second.
func (l *Limiter) Rate() int {
	return l.rps
}
