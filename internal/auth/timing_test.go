package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Arnold10-web/ishaazi-realtime/internal/auth"
)

func TestTimingDelayWait(t *testing.T) {
	tests := []struct {
		name           string
		delayOnSuccess bool
		success        bool
		wantMin        time.Duration
		wantMax        time.Duration
	}{
		{"failure always pays the delay", false, false, 100 * time.Millisecond, 200 * time.Millisecond},
		{"success skips the delay by default", false, true, 0, 10 * time.Millisecond},
		{"success pays when configured to", true, true, 100 * time.Millisecond, 200 * time.Millisecond},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			timing := auth.NewTimingDelay(auth.TimingConfig{
				BaseDelayMs:    100,
				RandomDelayMs:  50,
				DelayOnSuccess: tc.delayOnSuccess,
			})

			start := time.Now()
			timing.Wait(tc.success)
			elapsed := time.Since(start)

			// Lower bound is the base delay; upper bound allows for the
			// jitter plus scheduler slack
			assert.GreaterOrEqual(t, elapsed, tc.wantMin)
			assert.Less(t, elapsed, tc.wantMax)
		})
	}
}

func TestTimingDelayWaitFrom_TopsUpElapsedWork(t *testing.T) {
	// Jitter off so the target is exactly the base delay
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100})

	start := time.Now()
	time.Sleep(50 * time.Millisecond) // hashing already burned this much
	timing.WaitFrom(start, false)
	elapsed := time.Since(start)

	// WaitFrom tops the total up to the target instead of stacking a
	// full delay on top of the work
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 130*time.Millisecond)
}

func TestTimingDelayWaitFrom_SkipsWhenTargetAlreadyPassed(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 50})

	start := time.Now()
	time.Sleep(100 * time.Millisecond)
	timing.WaitFrom(start, false)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 130*time.Millisecond)
}
