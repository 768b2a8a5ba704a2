package push

import (
	"math/rand"
	"time"
)

// Backoff defaults for the reconnect loop.
const (
	DefaultBackoffBase   = 2 * time.Second
	DefaultBackoffMax    = 2 * time.Minute
	DefaultBackoffFactor = 2.0
	DefaultBackoffJitter = 0.2
)

// Backoff produces exponentially growing reconnect delays, capped at
// Max, with additive jitter so many hub instances reconnecting after a
// shared upstream outage do not stampede it at the same instant.
// Not safe for concurrent use; the connection loop owns it.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	// Jitter is the fraction of the delay added at random, e.g. 0.2
	// stretches a 10s delay to anywhere in [10s, 12s).
	Jitter float64

	attempt int
	rng     *rand.Rand
}

// NewBackoff returns a backoff with defaults filled in for zero fields.
func NewBackoff(base, max time.Duration, factor, jitter float64) *Backoff {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if max <= 0 {
		max = DefaultBackoffMax
	}
	if factor < 1 {
		factor = DefaultBackoffFactor
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Backoff{
		Base:   base,
		Max:    max,
		Factor: factor,
		Jitter: jitter,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the next connection attempt and advances
// the schedule. Without jitter the sequence is monotonically
// non-decreasing up to Max.
func (b *Backoff) Next() time.Duration {
	d := float64(b.Base)
	for i := 0; i < b.attempt; i++ {
		d *= b.Factor
		if d >= float64(b.Max) {
			d = float64(b.Max)
			break
		}
	}
	b.attempt++

	if b.Jitter > 0 {
		d += d * b.Jitter * b.rng.Float64()
	}
	return time.Duration(d)
}

// Reset returns the schedule to the base delay, called after the
// connection has streamed healthily for long enough.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns how many delays have been handed out since the last
// reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}
