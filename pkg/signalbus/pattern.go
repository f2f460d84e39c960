package signalbus

import (
	"math"
	"sort"
	"time"

	"github.com/flowrt/flowrt/pkg/alg/stats"
)

// PatternKind identifies the shape of a detected pattern.
type PatternKind string

const (
	// PatternBurst marks a short-interval spike in signal arrival rate.
	PatternBurst PatternKind = "burst"
	// PatternPeriodic marks a roughly regular inter-arrival interval.
	PatternPeriodic PatternKind = "periodic"
	// PatternAnomaly marks a numeric value far from the window's mean.
	PatternAnomaly PatternKind = "anomaly"
)

// DetectedPattern is one finding from DetectPatterns.
type DetectedPattern struct {
	Kind       PatternKind
	Confidence float64 // in [0, 1]
	Detail     string
}

const (
	minBurstSamples        = 4
	burstZScoreThreshold   = 2.0
	minPeriodicSamples     = 5
	periodicMinConfidence  = 0.2
	periodicMaxCV          = 0.35 // coefficient of variation ceiling for a "regular" interval
	anomalyMinSamples      = 5
	anomalyZScoreThreshold = 2.5
)

// DetectPatterns inspects a window snapshot's arrival times and numeric
// values and reports burst, periodic, and anomaly findings. entries must be
// ordered oldest first, as returned by Window.WindowQuery.
func DetectPatterns(entries []WindowEntry) []DetectedPattern {
	if len(entries) == 0 {
		return nil
	}

	var out []DetectedPattern

	if p, ok := detectBurst(entries); ok {
		out = append(out, p)
	}

	if p, ok := detectPeriodic(entries); ok {
		out = append(out, p)
	}

	out = append(out, detectAnomalies(entries)...)

	return out
}

func intervals(entries []WindowEntry) []float64 {
	if len(entries) < 2 {
		return nil
	}

	times := make([]time.Time, len(entries))
	for i, e := range entries {
		times[i] = e.Signal.EmittedAt
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	out := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		out = append(out, times[i].Sub(times[i-1]).Seconds())
	}

	return out
}

// detectBurst flags a window whose most recent inter-arrival interval is
// much shorter than the window's mean interval.
func detectBurst(entries []WindowEntry) (DetectedPattern, bool) {
	ivals := intervals(entries)
	if len(ivals) < minBurstSamples {
		return DetectedPattern{}, false
	}

	mean, stddev := stats.MeanStdDev(ivals)
	if stddev == 0 {
		return DetectedPattern{}, false
	}

	last := ivals[len(ivals)-1]
	z := (mean - last) / stddev // positive when last interval is much shorter than average

	if z < burstZScoreThreshold {
		return DetectedPattern{}, false
	}

	confidence := stats.Clamp(z/(z+burstZScoreThreshold), 0, 1)

	return DetectedPattern{
		Kind:       PatternBurst,
		Confidence: confidence,
		Detail:     "arrival rate spike relative to window baseline",
	}, true
}

// detectPeriodic flags a window whose inter-arrival intervals have low
// relative spread, i.e. arrivals occur at a roughly constant cadence.
func detectPeriodic(entries []WindowEntry) (DetectedPattern, bool) {
	ivals := intervals(entries)
	if len(ivals) < minPeriodicSamples {
		return DetectedPattern{}, false
	}

	mean, stddev := stats.MeanStdDev(ivals)
	if mean == 0 {
		return DetectedPattern{}, false
	}

	cv := stddev / mean
	if cv > periodicMaxCV {
		return DetectedPattern{}, false
	}

	confidence := stats.Clamp(1-(cv/periodicMaxCV), 0, 1)
	if confidence < periodicMinConfidence {
		return DetectedPattern{}, false
	}

	return DetectedPattern{
		Kind:       PatternPeriodic,
		Confidence: confidence,
		Detail:     "inter-arrival interval is approximately constant",
	}, true
}

// detectAnomalies flags entries whose numeric Value is a statistical
// outlier relative to the rest of the window.
func detectAnomalies(entries []WindowEntry) []DetectedPattern {
	values := make([]float64, 0, len(entries))
	indices := make([]int, 0, len(entries))

	for i, e := range entries {
		if v, ok := asFloat(e.Signal.Value); ok {
			values = append(values, v)
			indices = append(indices, i)
		}
	}

	if len(values) < anomalyMinSamples {
		return nil
	}

	mean, stddev := stats.MeanStdDev(values)
	if stddev == 0 {
		return nil
	}

	var out []DetectedPattern

	for i, v := range values {
		z := math.Abs(v-mean) / stddev
		if z < anomalyZScoreThreshold {
			continue
		}

		confidence := stats.Clamp(z/(z+anomalyZScoreThreshold), 0, 1)
		out = append(out, DetectedPattern{
			Kind:       PatternAnomaly,
			Confidence: confidence,
			Detail:     entries[indices[i]].Signal.Name,
		})
	}

	return out
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
