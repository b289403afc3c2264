package glyphterm

import "time"

// DefaultBlinkPeriod is the cursor blink half-period.
const DefaultBlinkPeriod = 500 * time.Millisecond

// Clock abstracts the time source so tests can drive blinking and polling.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// BlinkPhase is whether the cursor is currently drawn.
type BlinkPhase bool

const (
	// BlinkOff hides the cursor.
	BlinkOff BlinkPhase = false
	// BlinkOn draws the cursor.
	BlinkOn BlinkPhase = true
)

// blinker derives the blink phase from elapsed time since start.
// Even half-periods are on.
type blinker struct {
	start  time.Time
	period time.Duration
	phase  BlinkPhase
}

func newBlinker(now time.Time, period time.Duration) *blinker {
	if period <= 0 {
		period = DefaultBlinkPeriod
	}
	return &blinker{start: now, period: period, phase: BlinkOn}
}

// update recomputes the phase at now and reports whether it changed.
func (b *blinker) update(now time.Time) bool {
	elapsed := now.Sub(b.start)
	if elapsed < 0 {
		elapsed = 0
	}
	phase := BlinkPhase((elapsed/b.period)%2 == 0)
	if phase == b.phase {
		return false
	}
	b.phase = phase
	return true
}

// reset restarts the cycle in the on phase, so the cursor stays visible while
// the user types.
func (b *blinker) reset(now time.Time) bool {
	b.start = now
	changed := b.phase != BlinkOn
	b.phase = BlinkOn
	return changed
}
