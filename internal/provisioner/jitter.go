package provisioner

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

const (
	DefaultJitterMin = 1 * time.Second
	DefaultJitterMax = 10 * time.Second
)

// Jitter draws a uniformly distributed delay in [Min, Max).
type Jitter struct {
	Min time.Duration
	Max time.Duration

	// Int64N returns a value in [0, n). Defaults to math/rand.
	Int64N func(n int64) int64
	// Sleep blocks for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultJitter returns a Jitter in [1s, 10s).
func DefaultJitter() *Jitter {
	return &Jitter{Min: DefaultJitterMin, Max: DefaultJitterMax}
}

// Validate reports whether the bounds describe a non-empty interval.
func (j *Jitter) Validate() error {
	if j.Min < 0 {
		return fmt.Errorf("jitter minimum %s must not be negative", j.Min)
	}
	if j.Max <= j.Min {
		return fmt.Errorf("jitter maximum %s must be greater than minimum %s", j.Max, j.Min)
	}
	return nil
}

// Delay returns the next delay. Invalid bounds yield Min.
func (j *Jitter) Delay() time.Duration {
	span := int64(j.Max - j.Min)
	if span <= 0 {
		return j.Min
	}
	draw := rand.Int63n
	if j.Int64N != nil {
		draw = j.Int64N
	}
	return j.Min + time.Duration(draw(span))
}

// Wait sleeps for d, returning early with ctx.Err() on cancellation.
func (j *Jitter) Wait(ctx context.Context, d time.Duration) error {
	if j.Sleep != nil {
		return j.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
