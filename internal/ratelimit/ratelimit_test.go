package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/store"
)

// fakeReader stubs the two submission-time reads. The embedded interface
// covers the rest; nothing else is called.
type fakeReader struct {
	store.Reader
	subTimes  []time.Time
	provTimes []time.Time
}

func (f *fakeReader) SubmissionTimesSince(_ context.Context, _ string, since time.Time) ([]time.Time, error) {
	return after(f.subTimes, since), nil
}

func (f *fakeReader) ProviderSubmissionTimesSince(_ context.Context, _, _ string, since time.Time) ([]time.Time, error) {
	return after(f.provTimes, since), nil
}

func after(times []time.Time, since time.Time) []time.Time {
	var out []time.Time
	for _, tm := range times {
		if tm.After(since) {
			out = append(out, tm)
		}
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCheckAndReserve_UnderCaps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lim := New(DefaultConfig())
	lim.SetClock(fixedClock(now))

	reader := &fakeReader{
		subTimes:  []time.Time{now.Add(-10 * time.Hour), now.Add(-2 * time.Hour)},
		provTimes: []time.Time{now.Add(-100 * 24 * time.Hour)},
	}
	require.NoError(t, lim.CheckAndReserve(context.Background(), reader, "u-1", "p-1"))
}

func TestCheckAndReserve_DailyCapHit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lim := New(DefaultConfig())
	lim.SetClock(fixedClock(now))

	reader := &fakeReader{
		subTimes: []time.Time{
			now.Add(-20 * time.Hour),
			now.Add(-5 * time.Hour),
			now.Add(-1 * time.Hour),
		},
	}
	err := lim.CheckAndReserve(context.Background(), reader, "u-1", "p-1")
	require.Error(t, err)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeRateLimitDaily, ae.Code)
	// The oldest of the three rolls out of the window 4 hours from now.
	assert.Equal(t, 4*time.Hour, ae.RetryAfter)
}

func TestCheckAndReserve_OldSubmissionsRollOff(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lim := New(DefaultConfig())
	lim.SetClock(fixedClock(now))

	reader := &fakeReader{
		subTimes: []time.Time{
			now.Add(-30 * time.Hour), // outside the 24h window
			now.Add(-5 * time.Hour),
			now.Add(-1 * time.Hour),
		},
	}
	require.NoError(t, lim.CheckAndReserve(context.Background(), reader, "u-1", "p-1"))
}

func TestCheckAndReserve_ProviderCapHit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lim := New(DefaultConfig())
	lim.SetClock(fixedClock(now))

	var provTimes []time.Time
	for i := 0; i < 5; i++ {
		provTimes = append(provTimes, now.Add(-time.Duration(i+1)*24*time.Hour))
	}
	reader := &fakeReader{provTimes: provTimes}

	err := lim.CheckAndReserve(context.Background(), reader, "u-1", "p-1")
	require.Error(t, err)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeRateLimitProvider, ae.Code)
	assert.Greater(t, ae.RetryAfter, time.Duration(0))
}

func TestCheckAndReserve_ZeroCapsDisabled(t *testing.T) {
	lim := New(Config{DailyCap: 0, ProviderCap: 0})
	reader := &fakeReader{
		subTimes:  make([]time.Time, 50),
		provTimes: make([]time.Time, 50),
	}
	require.NoError(t, lim.CheckAndReserve(context.Background(), reader, "u-1", "p-1"))
}

func TestRetryAfter_MinimumOneSecond(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{now.Add(-24*time.Hour + time.Millisecond)}
	assert.Equal(t, time.Second, retryAfter(times, 1, 24*time.Hour, now))
}
