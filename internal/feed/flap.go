package feed

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FlapDetector tracks reconnects of the push stream and marks it as flapping
// when threshold reconnects fall within window.
type FlapDetector struct {
	log       zerolog.Logger
	threshold int
	window    time.Duration
	mu        sync.Mutex
	history   []time.Time
	flapping  bool
}

// NewFlapDetector creates a new flap detector.
func NewFlapDetector(log zerolog.Logger, threshold int, window time.Duration) *FlapDetector {
	return &FlapDetector{
		log:       log.With().Str("component", "flap-detector").Logger(),
		threshold: threshold,
		window:    window,
	}
}

// RecordReconnect records a disconnect at now. It returns whether the stream
// is flapping and whether flapping just started.
func (f *FlapDetector) RecordReconnect(now time.Time) (flapping bool, justStarted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.history = append(f.prune(now), now)
	if len(f.history) < f.threshold {
		return f.flapping, false
	}
	if f.flapping {
		return true, false
	}
	f.flapping = true
	f.log.Warn().Int("reconnects", len(f.history)).Dur("window", f.window).Msg("stream flapping detected")
	return true, true
}

// CheckStable clears the flapping mark once fewer than threshold reconnects
// remain in the window. Returns true when flapping just stopped.
func (f *FlapDetector) CheckStable(now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.history = f.prune(now)
	if !f.flapping || len(f.history) >= f.threshold {
		return false
	}
	f.flapping = false
	f.log.Info().Msg("stream flapping stopped")
	return true
}

// IsFlapping returns whether the stream is currently marked as flapping.
func (f *FlapDetector) IsFlapping() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flapping
}

func (f *FlapDetector) prune(now time.Time) []time.Time {
	cutoff := now.Add(-f.window)
	kept := f.history[:0]
	for _, ts := range f.history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
