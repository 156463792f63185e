package auth

import (
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig bounds the artificial login delay: a fixed base plus a
// uniform random component, both in milliseconds.
type TimingConfig struct {
	BaseDelayMs    int
	RandomDelayMs  int
	DelayOnSuccess bool
}

// TimingDelay equalizes how long login outcomes take, so response time
// does not reveal whether the account existed or the password matched.
// The floor it puts under every failure also slows guessing loops.
type TimingDelay struct {
	config TimingConfig
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// jitterMs draws a uniform value in [0, max) from crypto/rand. The draw
// must be unpredictable, or an attacker could average the jitter away.
func jitterMs(max int) int {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

func (td *TimingDelay) targetDelay() time.Duration {
	ms := td.config.BaseDelayMs + jitterMs(td.config.RandomDelayMs)
	return time.Duration(ms) * time.Millisecond
}

// Wait sleeps for the configured delay. Successful operations skip the
// wait unless DelayOnSuccess is set.
func (td *TimingDelay) Wait(success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}
	time.Sleep(td.targetDelay())
}

// WaitFrom sleeps only for whatever part of the target the work since
// startTime has not already consumed, so total elapsed time comes out
// the same on every code path.
func (td *TimingDelay) WaitFrom(startTime time.Time, success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}
	if remaining := td.targetDelay() - time.Since(startTime); remaining > 0 {
		time.Sleep(remaining)
	}
}
