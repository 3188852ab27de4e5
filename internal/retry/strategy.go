package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/exp/constraints"
)

// Strategy returns how long to wait before retry number retryCount and
// whether the retry budget is exhausted.
type Strategy interface {
	Sleep(retryCount uint) (time.Duration, bool)
}

type never struct{}

func NewNever() Strategy {
	return never{}
}

func (never) Sleep(uint) (time.Duration, bool) {
	return 0, true
}

// Jitter picks the actual delay in [0, n).
type Jitter func(n int64) int64

type exponentialBackOff struct {
	base       time.Duration
	max        time.Duration
	maxRetries uint
	jitter     Jitter
}

// NewExponentialBackOff doubles base on each retry up to max, with full jitter.
// A nil jitter draws uniformly at random.
func NewExponentialBackOff(base time.Duration, max time.Duration, maxRetries uint, jitter Jitter) Strategy {
	if jitter == nil {
		jitter = rand.Int64N
	}
	return &exponentialBackOff{
		base:       base,
		max:        max,
		maxRetries: maxRetries,
		jitter:     jitter,
	}
}

func (b *exponentialBackOff) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= b.maxRetries {
		return 0, true
	}

	ceiling := int64(b.max)
	if retryCount < 63 && int64(b.base) <= math.MaxInt64>>retryCount {
		ceiling = atMost(int64(b.base)<<retryCount, ceiling)
	}
	if ceiling <= 0 {
		return 0, false
	}
	return time.Duration(b.jitter(ceiling)), false
}

func atMost[T constraints.Integer](v T, limit T) T {
	if v > limit {
		return limit
	}
	return v
}
