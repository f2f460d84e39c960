// Package meter implements the work-unit meter: a rolling, bucketed budget
// over a sliding window with a monotone throttle curve and hysteresis-armed
// threshold events.
package meter

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is the rolling window W over which work units accrue.
	DefaultWindow = 60 * time.Second
	// DefaultBuckets is the number of discretized buckets B across the window.
	DefaultBuckets = 60
	// DefaultRearmHysteresisPct is the percentage-point gap a threshold must
	// fall below before it can re-arm (fire again on a later rising edge).
	DefaultRearmHysteresisPct = 2.0

	percentDivisor = 100.0
)

// DefaultThresholds is the default set of percentage-of-max crossings that
// fire a threshold event.
func DefaultThresholds() []float64 {
	return []float64{50, 80, 90, 100}
}

// Config configures a Meter.
type Config struct {
	Window             time.Duration
	Buckets            int
	Thresholds         []float64
	RearmHysteresisPct float64
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
	// OnThreshold is invoked on every rising-edge threshold crossing.
	OnThreshold func(event ThresholdEvent)
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}

	if c.Buckets <= 0 {
		c.Buckets = DefaultBuckets
	}

	if c.Thresholds == nil {
		c.Thresholds = DefaultThresholds()
	}

	if c.RearmHysteresisPct <= 0 {
		c.RearmHysteresisPct = DefaultRearmHysteresisPct
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return c
}

// ThresholdEvent describes a single rising-edge crossing of a configured
// utilization percentage.
type ThresholdEvent struct {
	Percent        float64
	CurrentUnits   float64
	MaxUnits       float64
	UtilizationPct float64
	At             time.Time
}

type bucket struct {
	start  time.Time
	amount float64
}

// Meter tracks work-unit consumption in a rolling window of fixed-width
// buckets and derives a throttle factor from current utilization.
type Meter struct {
	cfg         Config
	bucketWidth time.Duration

	mu          sync.Mutex
	buckets     []bucket
	headIdx     int
	headStart   time.Time
	maxUnits    float64
	armed       map[float64]bool
	lastPercent float64
}

// New creates a Meter with the given configuration and an initial MaxUnits.
// MaxUnits is typically supplied by the license manager and updated via
// SetMaxUnits as the license state changes.
func New(cfg Config, maxUnits float64) *Meter {
	cfg = cfg.withDefaults()
	bucketWidth := cfg.Window / time.Duration(cfg.Buckets)

	m := &Meter{
		cfg:         cfg,
		bucketWidth: bucketWidth,
		buckets:     make([]bucket, cfg.Buckets),
		maxUnits:    maxUnits,
		armed:       make(map[float64]bool, len(cfg.Thresholds)),
	}

	now := cfg.Now()
	m.headStart = now.Truncate(bucketWidth)

	for p := range cfg.Thresholds {
		m.armed[cfg.Thresholds[p]] = true
	}

	return m
}

// SetMaxUnits updates the budget ceiling, e.g. on a license tier change.
func (m *Meter) SetMaxUnits(max float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.maxUnits = max
}

// MaxUnits returns the current budget ceiling.
func (m *Meter) MaxUnits() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.maxUnits
}

// rollLocked advances the ring to the current time, zeroing any buckets
// that have aged out of the window. Caller holds m.mu.
func (m *Meter) rollLocked(now time.Time) {
	elapsed := now.Sub(m.headStart)
	if elapsed < m.bucketWidth {
		return
	}

	steps := int(elapsed / m.bucketWidth)
	if steps > len(m.buckets) {
		steps = len(m.buckets)
	}

	for range steps {
		m.headIdx = (m.headIdx + 1) % len(m.buckets)
		m.buckets[m.headIdx] = bucket{}
	}

	m.headStart = m.headStart.Add(time.Duration(steps) * m.bucketWidth)
}

// currentLocked sums all retained buckets. Caller holds m.mu.
func (m *Meter) currentLocked() float64 {
	var sum float64

	for _, b := range m.buckets {
		sum += b.amount
	}

	return sum
}

// Record adds amount to the current bucket and evaluates threshold events.
// typ is an optional classification tag, currently unused beyond call-site
// documentation; reserved for per-type accounting.
func (m *Meter) Record(amount float64, typ string) {
	_ = typ

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	m.rollLocked(now)

	m.buckets[m.headIdx].amount += amount
	m.buckets[m.headIdx].start = now

	m.evaluateThresholdsLocked(now)
}

// CurrentWorkUnits returns the sum of all buckets in the window.
func (m *Meter) CurrentWorkUnits() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollLocked(m.cfg.Now())

	return m.currentLocked()
}

// CanConsume reports whether current + amount would stay within max. This
// check is independent of Record; see CheckAndRecord for atomic admission.
func (m *Meter) CanConsume(amount float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollLocked(m.cfg.Now())

	if m.maxUnits <= 0 {
		return true
	}

	return m.currentLocked()+amount <= m.maxUnits
}

// CheckAndRecord atomically checks admission and records amount if
// admitted, under a single lock acquisition. Returns false without
// recording if admission would exceed the budget.
func (m *Meter) CheckAndRecord(amount float64, typ string) bool {
	_ = typ

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	m.rollLocked(now)

	if m.maxUnits > 0 && m.currentLocked()+amount > m.maxUnits {
		return false
	}

	m.buckets[m.headIdx].amount += amount
	m.buckets[m.headIdx].start = now
	m.evaluateThresholdsLocked(now)

	return true
}

// evaluateThresholdsLocked fires OnThreshold for each configured percentage
// crossed on a rising edge since the last evaluation, and re-arms
// thresholds that have fallen back below percent minus the hysteresis
// margin. Caller holds m.mu.
func (m *Meter) evaluateThresholdsLocked(now time.Time) {
	if m.maxUnits <= 0 {
		return
	}

	current := m.currentLocked()
	utilization := current / m.maxUnits * percentDivisor

	for _, percent := range m.cfg.Thresholds {
		if utilization < percent-m.cfg.RearmHysteresisPct {
			m.armed[percent] = true

			continue
		}

		if utilization >= percent && m.armed[percent] {
			m.armed[percent] = false

			if m.cfg.OnThreshold != nil {
				m.cfg.OnThreshold(ThresholdEvent{
					Percent:        percent,
					CurrentUnits:   current,
					MaxUnits:       m.maxUnits,
					UtilizationPct: utilization,
					At:             now,
				})
			}
		}
	}

	m.lastPercent = utilization
}

const (
	throttleLowUtilization  = 0.5
	throttleMidUtilization  = 0.8
	throttleHighUtilization = 1.0

	throttleFull = 1.0
	throttleMid  = 0.5
	throttleLow  = 0.1
	throttleZero = 0.0
)

// ThrottleFactor returns the monotone non-increasing throttle multiplier
// for utilization u = current/max:
//
//	u < 0.5        -> 1.0
//	0.5 <= u < 0.8 -> linear 1.0 .. 0.5
//	0.8 <= u < 1.0 -> linear 0.5 .. 0.1
//	u >= 1.0       -> 0.0
func (m *Meter) ThrottleFactor() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollLocked(m.cfg.Now())

	if m.maxUnits <= 0 {
		return throttleFull
	}

	u := m.currentLocked() / m.maxUnits

	return ThrottleFactorForUtilization(u)
}

// ThrottleFactorForUtilization computes the throttle curve for an
// already-known utilization ratio u (current/max), exposed standalone for
// callers (e.g. the gate) that have u from elsewhere.
func ThrottleFactorForUtilization(u float64) float64 {
	switch {
	case u >= throttleHighUtilization:
		return throttleZero
	case u >= throttleMidUtilization:
		frac := (u - throttleMidUtilization) / (throttleHighUtilization - throttleMidUtilization)

		return throttleMid - frac*(throttleMid-throttleLow)
	case u >= throttleLowUtilization:
		frac := (u - throttleLowUtilization) / (throttleMidUtilization - throttleLowUtilization)

		return throttleFull - frac*(throttleFull-throttleMid)
	default:
		return throttleFull
	}
}
