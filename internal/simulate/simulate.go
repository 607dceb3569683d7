// Package simulate stands in for the CPU-bound processing step. The real
// system does genuine work here; this keeps the two properties that matter:
// cost scales with input size, and cost is capped so the worker stays inside
// its delivery deadline.
package simulate

import (
	"context"
	"time"
	"unicode/utf8"
)

// Defaults match a 0.05s/char cost capped at 55s.
const (
	DefaultDelayPerChar = 50 * time.Millisecond
	DefaultMaxTotal     = 55 * time.Second
)

// Simulator models a per-character processing cost with a hard ceiling.
type Simulator struct {
	DelayPerChar time.Duration
	MaxTotal     time.Duration
}

// New builds a Simulator. A negative delayPerChar falls back to the default;
// an explicit zero is honored and means zero-cost processing. A non-positive
// maxTotal falls back to the default cap.
func New(delayPerChar, maxTotal time.Duration) Simulator {
	if delayPerChar < 0 {
		delayPerChar = DefaultDelayPerChar
	}
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotal
	}
	return Simulator{DelayPerChar: delayPerChar, MaxTotal: maxTotal}
}

// Duration returns min(DelayPerChar * characters, MaxTotal). Characters, not
// bytes: multi-byte runes count once.
func (s Simulator) Duration(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * s.DelayPerChar
	if d > s.MaxTotal {
		d = s.MaxTotal
	}
	return d
}

// Run blocks for Duration(text) or until the context is canceled.
func (s Simulator) Run(ctx context.Context, text string) error {
	d := s.Duration(text)
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
