package feed

import (
	"math"
	"math/rand"
	"time"
)

// Backoff is the delay policy between connection attempts. The zero
// MaxAttempts retries forever.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	Jitter      time.Duration
	MaxAttempts int
}

// DefaultBackoff reconnects every second, forever.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: time.Second, Multiplier: 1}
}

// Delay returns the wait before reconnect attempt n (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(b.Initial) * math.Pow(mult, float64(attempt-1))
	ceiling := b.Max
	if ceiling < b.Initial {
		ceiling = b.Initial
	}
	delay := time.Duration(d)
	if d > float64(ceiling) || delay <= 0 {
		delay = ceiling
	}
	if b.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	return delay
}

// Exhausted reports whether attempt n exceeds MaxAttempts.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt > b.MaxAttempts
}
