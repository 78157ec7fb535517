// Package leadmath implements the fixed linear relationships between ECG limb
// leads: Einthoven's law, the Goldberger derivations, and the Wilson central
// terminal redundancy. Every function is total — absent or degenerate input
// yields a named sentinel, never a panic or NaN, because validity rather than
// presence is the quantity callers reason about.
package leadmath

// Sentinel values for degenerate input. Exact values matter: downstream
// scoring and the validator's fallback behavior are specified against them.
const (
	// DegenerateError is the normalized RMS error reported when the error
	// metric is undefined (missing input or zero-magnitude reference).
	DegenerateError = 1.0

	// DegenerateCorrelation is the correlation reported when Pearson is
	// undefined (fewer than two overlapping samples, or zero variance).
	DegenerateCorrelation = 0.0
)

// overlap returns the shortest length among the given slices, or 0 when any
// is empty. All lead algebra operates on this overlapping prefix.
func overlap(seqs ...[]float64) int {
	minLen := -1
	for _, s := range seqs {
		if len(s) == 0 {
			return 0
		}
		if minLen < 0 || len(s) < minLen {
			minLen = len(s)
		}
	}
	if minLen < 0 {
		return 0
	}
	return minLen
}

// EinthovenExpectedII computes the expected lead II as I + III elementwise
// over the overlapping prefix. Returns nil when either input is absent.
func EinthovenExpectedII(leadI, leadIII []float64) []float64 {
	n := overlap(leadI, leadIII)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = leadI[i] + leadIII[i]
	}
	return out
}

// GoldbergerAVR computes aVR = -(I + II) / 2.
func GoldbergerAVR(leadI, leadII []float64) []float64 {
	n := overlap(leadI, leadII)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = -(leadI[i] + leadII[i]) / 2
	}
	return out
}

// GoldbergerAVL computes aVL = (I - III) / 2.
func GoldbergerAVL(leadI, leadIII []float64) []float64 {
	n := overlap(leadI, leadIII)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = (leadI[i] - leadIII[i]) / 2
	}
	return out
}

// GoldbergerAVF computes aVF = (II + III) / 2.
func GoldbergerAVF(leadII, leadIII []float64) []float64 {
	n := overlap(leadII, leadIII)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = (leadII[i] + leadIII[i]) / 2
	}
	return out
}

// WilsonResidual computes II - I - III elementwise. For a consistent limb
// set the residual is ~0 everywhere; it re-derives Einthoven through the
// central-terminal construction and serves as an independent numerical
// cross-check.
func WilsonResidual(leadI, leadII, leadIII []float64) []float64 {
	n := overlap(leadI, leadII, leadIII)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = leadII[i] - leadI[i] - leadIII[i]
	}
	return out
}

// Difference computes a - b elementwise over the overlapping prefix.
func Difference(a, b []float64) []float64 {
	n := overlap(a, b)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] - b[i]
	}
	return out
}

// Sum computes a + b elementwise over the overlapping prefix.
func Sum(a, b []float64) []float64 {
	n := overlap(a, b)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] + b[i]
	}
	return out
}

// Scale multiplies every sample by k.
func Scale(a []float64, k float64) []float64 {
	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = v * k
	}
	return out
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
