package stats

import (
	"math"

	"github.com/wastetrack/anomaly-service/internal/models"
)

// MinSamples is the smallest window that gives a usable spread estimate.
const MinSamples = 5

// ZThreshold is the absolute z-score at which a value is flagged. The
// boundary is inclusive: |z| == 2.5 flags.
const ZThreshold = 2.5

// Classify compares a current quantity against its historical window and
// returns a verdict. It is pure and never fails: degenerate inputs (short
// window, zero spread, NaN/Inf samples) fall through to a non-anomalous
// verdict instead of an error.
//
// Mean and std-dev are reported rounded to 2 decimals and z to 3, but the
// threshold comparison uses full precision.
func Classify(current float64, history []float64) models.Verdict {
	vals := filterFinite(history)

	if len(vals) < MinSamples {
		return models.Verdict{}
	}

	mean := meanOf(vals)
	std := sampleStdDev(vals, mean)

	// A constant history makes any deviation undefined; report it as
	// non-anomalous rather than dividing by zero.
	if std == 0 {
		return models.Verdict{Mean: round2(mean)}
	}

	z := (current - mean) / std

	return models.Verdict{
		IsAnomaly: math.Abs(z) >= ZThreshold,
		ZScore:    round3(z),
		Mean:      round2(mean),
		StdDev:    round2(std),
	}
}

// filterFinite drops NaN and Inf samples so malformed history entries never
// abort classification.
func filterFinite(history []float64) []float64 {
	vals := make([]float64, 0, len(history))
	for _, v := range history {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		vals = append(vals, v)
	}
	return vals
}

func meanOf(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// sampleStdDev is the Bessel-corrected standard deviation (divisor n-1).
func sampleStdDev(vals []float64, mean float64) float64 {
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
