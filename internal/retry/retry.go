package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/klauver/snatch/internal/config"
	"github.com/klauver/snatch/internal/dlerr"
)

// maxBackoffShift caps the exponent so the shift can never overflow.
const maxBackoffShift = 10

// State tracks the attempt budget for one Download call. It is owned by a
// single call and never shared; it decides how many times and how long to
// wait, never which errors are worth retrying.
type State struct {
	attempt     int
	maxAttempts int
	base        time.Duration
	cap         time.Duration
	exponential bool
	jitter      bool
	lastErr     error
}

// New builds a State from the config. The budget is MaxRetries+1 attempts.
func New(cfg config.Config) *State {
	return &State{
		maxAttempts: cfg.MaxRetries + 1,
		base:        cfg.RetryDelayBase,
		cap:         cfg.RetryDelayCap,
		exponential: cfg.ExponentialBackoff,
		jitter:      cfg.RetryJitter,
	}
}

// CanRetry reports whether another attempt slot remains.
func (s *State) CanRetry() bool {
	return s.attempt < s.maxAttempts
}

// Advance consumes the next attempt slot. It fails with RetriesExhausted
// when the budget is gone.
func (s *State) Advance() error {
	if !s.CanRetry() {
		return dlerr.Wrap(dlerr.KindRetriesExhausted, s.lastErr,
			"download failed after %d attempts", s.attempt)
	}
	s.attempt++
	return nil
}

// Delay returns how long to wait before the attempt Advance just granted.
// The first attempt runs immediately.
func (s *State) Delay() time.Duration {
	i := s.attempt - 1
	if i <= 0 {
		return 0
	}
	d := s.base
	if s.exponential {
		shift := i - 1
		if shift > maxBackoffShift {
			shift = maxBackoffShift
		}
		d = s.base << uint(shift)
	}
	if s.cap > 0 && (d > s.cap || d < 0) {
		d = s.cap
	}
	if s.jitter && d > 0 {
		// +/-25% to avoid synchronized retry storms.
		d += time.Duration((rand.Float64()*0.5 - 0.25) * float64(d))
	}
	return d
}

// Wait sleeps for Delay, returning early if the context is cancelled.
// This is the only blocking point besides network I/O.
func (s *State) Wait(ctx context.Context) error {
	d := s.Delay()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Attempt returns the number of attempts consumed so far.
func (s *State) Attempt() int { return s.attempt }

// SetLastError records the most recent failure for the exhausted report.
func (s *State) SetLastError(err error) { s.lastErr = err }

// LastError returns the most recent recorded failure.
func (s *State) LastError() error { return s.lastErr }
