package reducer

import (
	"context"
	"fmt"
	"time"

	"github.com/flowrt/flowrt/pkg/alg/stats"
	"github.com/flowrt/flowrt/pkg/atom"
)

const (
	// BurstDefaultThreshold is the default per-identity count within a
	// window below which a burst is never declared, regardless of how far
	// above baseline the rate sits.
	BurstDefaultThreshold = 10

	// BurstBaselineAlpha is the smoothing factor for each identity's
	// rolling rate baseline.
	BurstBaselineAlpha = 0.3

	// BurstSurgeFactor is how far above its own baseline an identity's
	// rate must climb, once the baseline is established, to count as a
	// burst rather than a normal fluctuation.
	BurstSurgeFactor = 2.0
)

// BurstDetector tracks a rolling per-identity event counter plus an
// exponential moving average of that identity's rate, and reports a burst
// when the count clears Threshold and the current rate surges past the
// identity's own smoothed baseline.
type BurstDetector struct {
	Window    time.Duration
	Threshold int

	events    map[string][]time.Time
	baselines map[string]*stats.EMA
}

// NewBurstDetector returns a detector with the given rolling window and
// count threshold.
func NewBurstDetector(window time.Duration, threshold int) *BurstDetector {
	if threshold <= 0 {
		threshold = BurstDefaultThreshold
	}

	return &BurstDetector{
		Window:    window,
		Threshold: threshold,
		events:    make(map[string][]time.Time),
		baselines: make(map[string]*stats.EMA),
	}
}

// Observe records one event for identity at now and reports whether this
// identity is currently bursting, along with its current rate (events per
// second over the rolling window).
func (b *BurstDetector) Observe(identity string, now time.Time) (isBurst bool, rate float64) {
	times := append(b.events[identity], now)

	kept := times[:0]

	for _, t := range times {
		if now.Sub(t) <= b.Window {
			kept = append(kept, t)
		}
	}

	b.events[identity] = kept

	count := len(kept)
	seconds := b.Window.Seconds()

	if seconds > 0 {
		rate = float64(count) / seconds
	}

	baseline := b.baselineFor(identity)
	hadBaseline := baseline.Initialized()
	priorBaseline := baseline.Value()

	baseline.Update(rate)

	isBurst = count >= b.Threshold && (!hadBaseline || rate > priorBaseline*BurstSurgeFactor)

	return isBurst, rate
}

// baselineFor returns identity's rolling rate baseline, creating it on
// first observation.
func (b *BurstDetector) baselineFor(identity string) *stats.EMA {
	ema, ok := b.baselines[identity]
	if !ok {
		ema = stats.NewEMA(BurstBaselineAlpha)
		b.baselines[identity] = ema
	}

	return ema
}

// Atom adapts the detector into an atom.Executor: each coalesced trigger's
// value is treated as the observed identity (a string), emitting
// "burst.detected", "burst.rate", and "burst.description" when a burst is
// found.
func (b *BurstDetector) Atom(now func() time.Time) atom.Executor {
	if now == nil {
		now = time.Now
	}

	return func(_ context.Context, rc atom.RunContext, in atom.Input) error {
		for _, v := range in.Triggers {
			identity := asText(v)
			if identity == "" {
				continue
			}

			isBurst, rate := b.Observe(identity, now())
			if !isBurst {
				continue
			}

			rc.Emit("burst.detected", identity, 1)
			rc.Emit("burst.rate", rate, 1)
			rc.Emit("burst.description", fmt.Sprintf("%s exceeded %d events in %s", identity, b.Threshold, b.Window), 1)
		}

		return nil
	}
}
