package leadmath

import "math"

// RMS returns the root-mean-square of x, 0 for empty input.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// MeanAbs returns the mean absolute value of x, 0 for empty input.
func MeanAbs(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += math.Abs(v)
	}
	return sum / float64(len(x))
}

// SumAbs returns the sum of absolute values of x.
func SumAbs(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += math.Abs(v)
	}
	return sum
}

// NormalizedRMSError returns rms(actual - expected) / rms(actual) over the
// overlapping prefix, clamped to [0, 1]. When either input is absent or the
// denominator is 0, the metric is undefined and DegenerateError is returned.
func NormalizedRMSError(actual, expected []float64) float64 {
	n := overlap(actual, expected)
	if n == 0 {
		return DegenerateError
	}
	denom := RMS(actual[:n])
	if denom == 0 {
		return DegenerateError
	}
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = actual[i] - expected[i]
	}
	return Clamp(RMS(diff)/denom, 0, 1)
}

// Agreement scores how well actual matches predicted over their overlapping
// prefix: 1 means exact agreement, 0 means the residual is as large as the
// prediction itself, and the scale continues below zero for worse mismatches.
// Unlike Pearson correlation it is not invariant under constant baseline
// shifts, so a mis-calibrated lead drags its own hypothesis down even when
// the waveform shape is intact. Degenerate input (no overlap, or a
// zero-energy prediction) yields DegenerateCorrelation.
func Agreement(actual, predicted []float64) float64 {
	n := overlap(actual, predicted)
	if n == 0 {
		return DegenerateCorrelation
	}
	denom := RMS(predicted[:n])
	if denom == 0 {
		return DegenerateCorrelation
	}
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = actual[i] - predicted[i]
	}
	return 1 - RMS(diff)/denom
}

// PearsonCorrelation returns the Pearson correlation coefficient of a and b
// over their overlapping prefix. Inputs shorter than two samples, or with
// zero variance on either side, are degenerate and yield
// DegenerateCorrelation rather than NaN.
func PearsonCorrelation(a, b []float64) float64 {
	n := overlap(a, b)
	if n < 2 {
		return DegenerateCorrelation
	}

	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return DegenerateCorrelation
	}
	return cov / math.Sqrt(varA*varB)
}

// BestLag cross-correlates sig against ref over lags in [-maxLag, +maxLag]
// and returns the lag (in samples) with the strongest correlation magnitude,
// along with the signed correlation at that lag. Magnitude, not sign: leads
// like aVR are anti-correlated with lead II yet perfectly aligned. A positive
// lag means sig runs ahead of ref by that many samples. Degenerate input
// yields lag 0 with DegenerateCorrelation.
func BestLag(ref, sig []float64, maxLag int) (int, float64) {
	if maxLag < 0 {
		maxLag = 0
	}
	n := overlap(ref, sig)
	if n < 2 {
		return 0, DegenerateCorrelation
	}

	bestLag := 0
	bestCorr := 0.0
	found := false
	for lag := -maxLag; lag <= maxLag; lag++ {
		var r, s []float64
		if lag >= 0 {
			if n-lag < 2 {
				continue
			}
			r = ref[lag:n]
			s = sig[:n-lag]
		} else {
			if n+lag < 2 {
				continue
			}
			r = ref[:n+lag]
			s = sig[-lag : n]
		}
		c := PearsonCorrelation(r, s)
		if !found || math.Abs(c) > math.Abs(bestCorr) {
			bestCorr = c
			bestLag = lag
			found = true
		}
	}
	if !found || bestCorr == 0 {
		return 0, DegenerateCorrelation
	}
	return bestLag, bestCorr
}

// NetDeflection returns the mean signed amplitude of x, the quantity used to
// judge dominant polarity. 0 for empty input.
func NetDeflection(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}
