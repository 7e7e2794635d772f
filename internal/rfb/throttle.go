package rfb

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttler paces FramebufferUpdate production to at most maxFPS frames per
// second — the session loop's wait_until_next_frame suspension point (spec
// §4.7, §5), implemented as a token-bucket limiter rather than a literal
// sleep so a burst of client-requested updates after an idle period can
// still be served immediately up to the bucket's single-frame burst size.
//
// Grounded on golang.org/x/time/rate, already in go.mod via the teacher's
// domain stack; the original's FPSThrottler (session_manager.py) is a plain
// token bucket, the same shape rate.Limiter already provides.
type Throttler struct {
	limiter  *rate.Limiter
	interval time.Duration
}

func NewThrottler(maxFPS int) *Throttler {
	if maxFPS <= 0 {
		maxFPS = 1
	}
	return &Throttler{
		limiter:  rate.NewLimiter(rate.Limit(maxFPS), 1),
		interval: time.Second / time.Duration(maxFPS),
	}
}

// Allow reports whether a frame's budget is available right now, consuming
// it if so. The frame producer only runs when this returns true.
func (t *Throttler) Allow() bool {
	return t.limiter.Allow()
}

// PollInterval is the read-deadline the session loop polls at while waiting
// for either client input or the next frame's budget, sized to the target
// frame period so the loop neither busy-spins nor overshoots it.
func (t *Throttler) PollInterval() time.Duration {
	return t.interval
}

// SetMaxFPS reconfigures the limiter's rate in place, used when
// configuration changes the frame cap for an already-running session.
func (t *Throttler) SetMaxFPS(maxFPS int) {
	if maxFPS <= 0 {
		maxFPS = 1
	}
	t.limiter.SetLimit(rate.Limit(maxFPS))
	t.interval = time.Second / time.Duration(maxFPS)
}
