// Package metricfit maps a scalar uncertainty signal (entropy of a weak
// classifier) to an expected reward-per-send metric, by Gaussian-kernel
// smoothing with bandwidth chosen by split-half validation.
package metricfit

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateInput is returned when fewer than two training samples are
// given, or every entropy value is identical. Fit still returns a usable
// constant MetricMap alongside this error.
var ErrDegenerateInput = errors.New("metricfit: degenerate training input")

// xbinCount is the fixed resolution of the fitted curve (spec-mandated).
const xbinCount = 1000

// chunkSize bounds the smoother's working set so evaluating all xbins
// costs O(chunkSize*N) memory rather than O(xbinCount*N).
const chunkSize = 100

// candidate bandwidth exponents h_k = 2^(-8 + 0.5*k), k in {0, ..., 9},
// each later scaled by the xbins span.
var bandwidthExponents = func() []float64 {
	hs := make([]float64, 10)
	for k := range hs {
		hs[k] = math.Exp2(-8 + 0.5*float64(k))
	}
	return hs
}()

// MetricMap is a piecewise-linear function from entropy to expected
// per-send reward, represented as equal-length, strictly-increasing-in-x
// sample arrays.
type MetricMap struct {
	Xbins []float64
	Ybins []float64
}

// Interp evaluates the map at x by linear interpolation, with flat
// extrapolation below Xbins[0] and above Xbins[len-1].
func (m MetricMap) Interp(x float64) float64 {
	n := len(m.Xbins)
	if n == 0 {
		return 0
	}
	if x <= m.Xbins[0] {
		return m.Ybins[0]
	}
	if x >= m.Xbins[n-1] {
		return m.Ybins[n-1]
	}
	hi := sort.SearchFloat64s(m.Xbins, x)
	if m.Xbins[hi] == x {
		return m.Ybins[hi]
	}
	lo := hi - 1
	t := (x - m.Xbins[lo]) / (m.Xbins[hi] - m.Xbins[lo])
	return m.Ybins[lo] + (m.Ybins[hi]-m.Ybins[lo])*t
}

// Fit fits a mapping from entropy (entrain) to reward (rewtrain) using
// Gaussian-kernel smoothing, selecting the bandwidth by evaluating on an
// odd-indexed held-out split after fitting on the even-indexed split.
// entrain and rewtrain must have equal, positive length; Fit does not sort
// its inputs.
func Fit(entrain, rewtrain []float64) (MetricMap, error) {
	n := len(entrain)
	if n < 2 {
		return constantMap(entrain, rewtrain), ErrDegenerateInput
	}

	lo, hi := floats.Min(entrain), floats.Max(entrain)
	if lo == hi {
		return constantMap(entrain, rewtrain), ErrDegenerateInput
	}

	xbins := make([]float64, xbinCount)
	floats.Span(xbins, lo, hi)

	e0, r0 := evenSplit(entrain), evenSplit(rewtrain)
	e1, r1 := oddSplit(entrain), oddSplit(rewtrain)

	span := xbins[len(xbins)-1] - xbins[0]
	bestH, bestCost := bandwidthExponents[0]*span, math.Inf(1)
	for _, hExp := range bandwidthExponents {
		h := hExp * span
		curve := smooth(xbins, e0, r0, h)
		cost := heldOutMSE(xbins, curve, e1, r1)
		if cost < bestCost {
			bestCost, bestH = cost, h
		}
	}

	ybins := smooth(xbins, entrain, rewtrain, bestH)
	return MetricMap{Xbins: xbins, Ybins: ybins}, nil
}

// smooth evaluates the Gaussian-kernel smoother S_h(x; e, r) for every x in
// xbins, streaming xbins in chunks of chunkSize to bound memory.
func smooth(xbins, e, r []float64, h float64) []float64 {
	out := make([]float64, len(xbins))
	invH2 := 1.0 / (h * h)

	for start := 0; start < len(xbins); start += chunkSize {
		end := min(start+chunkSize, len(xbins))
		for i := start; i < end; i++ {
			out[i] = weightedAverage(xbins[i], e, r, invH2)
		}
	}
	return out
}

// weightedAverage computes sum_j w_j(x)*r_j where w_j(x) is a numerically
// stabilized softmax over -((x-e_j)^2)/h^2.
func weightedAverage(x float64, e, r []float64, invH2 float64) float64 {
	scores := make([]float64, len(e))
	maxScore := math.Inf(-1)
	for j, ej := range e {
		d := x - ej
		scores[j] = -(d * d) * invH2
		if scores[j] > maxScore {
			maxScore = scores[j]
		}
	}

	var sumW, sumWR float64
	for j, s := range scores {
		w := math.Exp(s - maxScore)
		sumW += w
		sumWR += w * r[j]
	}
	return sumWR / sumW
}

// heldOutMSE linearly interpolates the tabulated (xbins, curve) smoother at
// the held-out entropy values e1, compares against the held-out rewards, and
// reduces the squared errors with stat.Mean.
func heldOutMSE(xbins, curve, e1, r1 []float64) float64 {
	m := MetricMap{Xbins: xbins, Ybins: curve}
	sqErr := make([]float64, len(e1))
	for i, x := range e1 {
		d := m.Interp(x) - r1[i]
		sqErr[i] = d * d
	}
	return stat.Mean(sqErr, nil)
}

// constantMap builds a flat MetricMap for degenerate input: xbins still
// spans [min(entrain), max(entrain)] (widened by 1 if that span is zero,
// so Xbins stays strictly increasing), ybins is mean(rewtrain) broadcast.
func constantMap(entrain, rewtrain []float64) MetricMap {
	mean := 0.0
	if len(rewtrain) > 0 {
		mean = floats.Sum(rewtrain) / float64(len(rewtrain))
	}

	lo, hi := 0.0, 1.0
	if len(entrain) > 0 {
		lo, hi = floats.Min(entrain), floats.Max(entrain)
		if lo == hi {
			hi = lo + 1
		}
	}

	xbins := make([]float64, xbinCount)
	floats.Span(xbins, lo, hi)
	ybins := make([]float64, xbinCount)
	for i := range ybins {
		ybins[i] = mean
	}
	return MetricMap{Xbins: xbins, Ybins: ybins}
}

func evenSplit(xs []float64) []float64 {
	out := make([]float64, 0, (len(xs)+1)/2)
	for i := 0; i < len(xs); i += 2 {
		out = append(out, xs[i])
	}
	return out
}

func oddSplit(xs []float64) []float64 {
	out := make([]float64, 0, len(xs)/2)
	for i := 1; i < len(xs); i += 2 {
		out = append(out, xs[i])
	}
	return out
}
