// Package ratelimit enforces the per-user daily and per-provider annual
// submission caps.
package ratelimit

import (
	"context"
	"time"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/store"
)

// Config holds the submission caps.
type Config struct {
	DailyCap    int           // submissions per submitter per DailyWindow
	DailyWindow time.Duration // rolling, default 24h
	ProviderCap int           // submissions per (submitter, provider) per ProviderWindow
	ProviderWindow time.Duration // rolling, default 365 days
}

// DefaultConfig returns the platform caps: 3 entries per 24 hours, 5 entries
// per provider per year.
func DefaultConfig() Config {
	return Config{
		DailyCap:       3,
		DailyWindow:    24 * time.Hour,
		ProviderCap:    5,
		ProviderWindow: 365 * 24 * time.Hour,
	}
}

// Limiter checks the caps against committed submissions.
type Limiter struct {
	cfg Config
	now func() time.Time
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	if cfg.DailyWindow <= 0 {
		cfg.DailyWindow = 24 * time.Hour
	}
	if cfg.ProviderWindow <= 0 {
		cfg.ProviderWindow = 365 * 24 * time.Hour
	}
	return &Limiter{cfg: cfg, now: time.Now}
}

// SetClock overrides the limiter's clock. Tests only.
func (l *Limiter) SetClock(now func() time.Time) { l.now = now }

// CheckAndReserve verifies both caps inside the caller's transaction. The
// reservation is the transaction itself: the caller inserts the entry under
// the same isolation boundary, so two concurrent submissions cannot both
// pass the check and commit.
func (l *Limiter) CheckAndReserve(ctx context.Context, tx store.Reader, submitterID, providerID string) error {
	now := l.now().UTC()

	if l.cfg.DailyCap > 0 {
		times, err := tx.SubmissionTimesSince(ctx, submitterID, now.Add(-l.cfg.DailyWindow))
		if err != nil {
			return err
		}
		if len(times) >= l.cfg.DailyCap {
			return apperr.RateLimited(apperr.CodeRateLimitDaily, retryAfter(times, l.cfg.DailyCap, l.cfg.DailyWindow, now))
		}
	}

	if l.cfg.ProviderCap > 0 {
		times, err := tx.ProviderSubmissionTimesSince(ctx, submitterID, providerID, now.Add(-l.cfg.ProviderWindow))
		if err != nil {
			return err
		}
		if len(times) >= l.cfg.ProviderCap {
			return apperr.RateLimited(apperr.CodeRateLimitProvider, retryAfter(times, l.cfg.ProviderCap, l.cfg.ProviderWindow, now))
		}
	}

	return nil
}

// retryAfter computes how long until the oldest submission that still counts
// against the cap rolls out of the window.
func retryAfter(times []time.Time, limit int, window time.Duration, now time.Time) time.Duration {
	// times is oldest-first; once len(times)-limit+1 of them expire, a new
	// submission fits.
	idx := len(times) - limit
	if idx < 0 {
		idx = 0
	}
	d := times[idx].Add(window).Sub(now)
	if d < time.Second {
		d = time.Second
	}
	return d
}
