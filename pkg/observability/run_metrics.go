package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRunsTotal       = "flowrt.workflow.runs.total"
	metricAtomsTotal      = "flowrt.workflow.atom_invocations.total"
	metricAtomDuration    = "flowrt.workflow.atom_invocation.duration.seconds"
	metricGateHitsTotal   = "flowrt.gate.cache.hits.total"
	metricGateMissesTotal = "flowrt.gate.cache.misses.total"

	attrGate = "gate"
)

// RunMetrics holds OTel instruments for whole-run statistics, as opposed
// to REDMetrics's per-invocation view.
type RunMetrics struct {
	runsTotal     metric.Int64Counter
	atomsTotal    metric.Int64Counter
	atomDuration  metric.Float64Histogram
	gateHits      metric.Int64Counter
	gateMisses    metric.Int64Counter
}

// RunStats holds the statistics for a single completed workflow run,
// decoupled from scheduler types.
type RunStats struct {
	SignalsEmitted      int64
	AtomInvocations     int
	AtomDurations       []time.Duration
	LicenseGateHits     int64
	LicenseGateMisses   int64
	MeterThrottleHits   int64
	MeterThrottleMisses int64
}

// NewRunMetrics creates workflow-run metric instruments from the given meter.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	runs, err := mt.Int64Counter(metricRunsTotal,
		metric.WithDescription("Total workflow runs completed"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunsTotal, err)
	}

	atoms, err := mt.Int64Counter(metricAtomsTotal,
		metric.WithDescription("Total atom invocations across all runs"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAtomsTotal, err)
	}

	atomDur, err := mt.Float64Histogram(metricAtomDuration,
		metric.WithDescription("Per-invocation atom duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAtomDuration, err)
	}

	hits, err := mt.Int64Counter(metricGateHitsTotal,
		metric.WithDescription("Licensed component gate admissions by reason"),
		metric.WithUnit("{admission}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricGateHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricGateMissesTotal,
		metric.WithDescription("Licensed component gate denials/throttles by reason"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricGateMissesTotal, err)
	}

	return &RunMetrics{
		runsTotal:    runs,
		atomsTotal:   atoms,
		atomDuration: atomDur,
		gateHits:     hits,
		gateMisses:   misses,
	}, nil
}

// RecordRun records statistics for a completed workflow run. Safe to call
// on a nil receiver (no-op), so callers can wire this in optionally.
func (rm *RunMetrics) RecordRun(ctx context.Context, stats RunStats) {
	if rm == nil {
		return
	}

	rm.runsTotal.Add(ctx, 1)
	rm.atomsTotal.Add(ctx, int64(stats.AtomInvocations))

	for _, d := range stats.AtomDurations {
		rm.atomDuration.Record(ctx, d.Seconds())
	}

	licenseAttrs := metric.WithAttributes(attribute.String(attrGate, "license"))
	rm.gateHits.Add(ctx, stats.LicenseGateHits, licenseAttrs)
	rm.gateMisses.Add(ctx, stats.LicenseGateMisses, licenseAttrs)

	meterAttrs := metric.WithAttributes(attribute.String(attrGate, "meter"))
	rm.gateHits.Add(ctx, stats.MeterThrottleHits, meterAttrs)
	rm.gateMisses.Add(ctx, stats.MeterThrottleMisses, meterAttrs)
}
