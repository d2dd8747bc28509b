package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy retries an operation with multiplicative backoff and randomized
// jitter. It is applied to I/O-edge calls only; pure computation has no
// failure mode and is never retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Jitter      float64 // fraction of the delay, in [0, 1]
}

// DefaultPolicy matches the backoff used for outbound HTTP calls: 3
// attempts at 1s, 2s between them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		Jitter:      0.2,
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, or the context
// is cancelled. The last error is wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(p.delay(i)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}

	d := float64(base) * math.Pow(mult, float64(attempt))
	if p.Jitter > 0 {
		// Spread delays so concurrent retries don't stampede.
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}
