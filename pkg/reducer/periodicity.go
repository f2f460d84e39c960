package reducer

import (
	"github.com/flowrt/flowrt/pkg/alg/stats"
)

// PeriodicityDefaultMinConfidence is the minimum autocorrelation peak
// accepted as a genuine periodic signal.
const PeriodicityDefaultMinConfidence = 0.2

// PeriodicityResult reports the dominant period found in a series, if any.
type PeriodicityResult struct {
	Found      bool
	Lag        int
	Confidence float64
}

// PeriodicityDetector searches a numeric series for a dominant period via
// autocorrelation, considering lags up to len(series)/2.
type PeriodicityDetector struct {
	MinConfidence float64
}

// NewPeriodicityDetector returns a detector using the spec default
// minimum confidence (0.2).
func NewPeriodicityDetector() PeriodicityDetector {
	return PeriodicityDetector{MinConfidence: PeriodicityDefaultMinConfidence}
}

// Detect searches series for its dominant period. maxLag caps the lags
// considered; 0 uses len(series)/2.
func (p PeriodicityDetector) Detect(series []float64, maxLag int) PeriodicityResult {
	minConf := p.MinConfidence
	if minConf == 0 {
		minConf = PeriodicityDefaultMinConfidence
	}

	n := len(series)
	if n < 4 {
		return PeriodicityResult{}
	}

	if maxLag <= 0 || maxLag > n/2 {
		maxLag = n / 2
	}

	mean := stats.Mean(series)

	var variance float64

	for _, v := range series {
		d := v - mean
		variance += d * d
	}

	if variance == 0 {
		return PeriodicityResult{}
	}

	bestLag := 0

	var bestACF float64

	for lag := 1; lag <= maxLag; lag++ {
		var cov float64

		for i := 0; i+lag < n; i++ {
			cov += (series[i] - mean) * (series[i+lag] - mean)
		}

		acf := cov / variance

		if acf > bestACF {
			bestACF = acf
			bestLag = lag
		}
	}

	if bestACF <= minConf {
		return PeriodicityResult{}
	}

	return PeriodicityResult{Found: true, Lag: bestLag, Confidence: bestACF}
}
