// Package mdp solves the finite-horizon-discounted token-bucket MDP: given
// a rate/depth pair and a calibrated (metric, reward) training sample, it
// computes a threshold policy indexed by bucket occupancy via value
// iteration over the scalar bucket state.
package mdp

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/edgeml/offload-mdp/bucket"
)

// ErrShapeMismatch is returned when TrainingData's Metrics and Rewards
// slices have different lengths.
var ErrShapeMismatch = errors.New("mdp: metrics/rewards length mismatch")

// ErrNonConvergence is returned when value iteration reaches MaxIter
// without the policy stabilizing below tolerance. The last iterate is
// still returned alongside this error.
var ErrNonConvergence = errors.New("mdp: value iteration did not converge")

// TrainingData is a calibrated (metric, reward) training sample. No index
// ordering is required.
type TrainingData struct {
	Metrics []float64
	Rewards []float64
}

// Policy holds one threshold per send-eligible occupancy (length m-p+1).
// When bucket occupancy is n (n >= p) and the current metric >=
// Policy[n-p], the device should send.
type Policy []float64

// SolveOptions configures value iteration. A zero-value SolveOptions is
// replaced with DefaultOptions by Solve.
type SolveOptions struct {
	Discount float64
	MaxIter  int
	Tol      float64
}

// DefaultOptions mirrors the reference implementation's defaults.
func DefaultOptions() SolveOptions {
	return SolveOptions{Discount: 0.9999, MaxIter: 10000, Tol: 1e-6}
}

// SolveStats reports how value iteration terminated.
type SolveStats struct {
	Iterations int
	Converged  bool
}

// Solve computes a threshold Policy for the given (rate, bdepth) token
// bucket and training data. Ties in the per-state argmax are broken
// toward the lowest threshold-candidate index. A non-nil, non-fatal
// ErrNonConvergence is returned (together with the last iterate) if
// MaxIter is reached before the policy stabilizes.
func Solve(rate, bdepth float64, data TrainingData, opts SolveOptions) (Policy, SolveStats, error) {
	if len(data.Metrics) != len(data.Rewards) {
		return nil, SolveStats{}, fmt.Errorf("%w: metrics=%d rewards=%d", ErrShapeMismatch, len(data.Metrics), len(data.Rewards))
	}
	opts = fillDefaults(opts)

	b, err := bucket.GetQPM(rate, bdepth, bucket.DefaultMaxP)
	if err != nil {
		return nil, SolveStats{}, err
	}

	thetaSorted, rewardsSorted := sortByMetricDescending(data.Metrics, data.Rewards)
	n := len(thetaSorted)

	fTheta := make([]float64, n)
	gTheta := make([]float64, n)
	floats.CumSum(gTheta, rewardsSorted)
	for k := 0; k < n; k++ {
		fTheta[k] = float64(k+1) / float64(n)
		gTheta[k] /= float64(n)
	}

	tau := maxAbs(data.Metrics) * opts.Tol

	noSendCount := b.P - b.Q
	sendLen := b.SendEligible()
	value := make([]float64, b.States())
	policy := make(Policy, sendLen)

	stats := SolveStats{}
	converged := false

	for iter := 0; iter < opts.MaxIter; iter++ {
		vprev := append([]float64(nil), value...)
		pprev := append(Policy(nil), policy...)

		for i := int64(0); i < noSendCount; i++ {
			n := b.Q + i
			value[i] = opts.Discount * vhat(vprev, b, n+b.Q)
		}

		for i := int64(0); i < sendLen; i++ {
			n := b.P + i
			vNoSend := vhat(vprev, b, n+b.Q)
			vSend := vhat(vprev, b, n-b.P+b.Q)

			bestVal, bestK := math.Inf(-1), 0
			for k := 0; k < len(fTheta); k++ {
				qk := gTheta[k] + opts.Discount*(fTheta[k]*vSend+(1-fTheta[k])*vNoSend)
				if qk > bestVal {
					bestVal, bestK = qk, k
				}
			}
			value[noSendCount+i] = bestVal
			policy[i] = thetaSorted[bestK]
		}

		stats.Iterations = iter + 1
		if iter > 0 && maxAbsDiff(policy, pprev) < tau {
			converged = true
			break
		}
	}

	stats.Converged = converged
	if !converged {
		return policy, stats, fmt.Errorf("%w: reached MaxIter=%d", ErrNonConvergence, opts.MaxIter)
	}
	return policy, stats, nil
}

func fillDefaults(opts SolveOptions) SolveOptions {
	d := DefaultOptions()
	if opts.Discount == 0 {
		opts.Discount = d.Discount
	}
	if opts.MaxIter == 0 {
		opts.MaxIter = d.MaxIter
	}
	if opts.Tol == 0 {
		opts.Tol = d.Tol
	}
	return opts
}

// vhat evaluates the value-iteration extension of vprev at absolute token
// index nIdx: vprev[nIdx-q] when in range, else the saturated last value.
func vhat(vprev []float64, b bucket.Params, nIdx int64) float64 {
	i := nIdx - b.Q
	if i >= int64(len(vprev)) {
		i = int64(len(vprev)) - 1
	}
	return vprev[i]
}

func sortByMetricDescending(metrics, rewards []float64) (sortedMetrics, sortedRewards []float64) {
	n := len(metrics)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return metrics[idx[a]] > metrics[idx[b]] })

	sortedMetrics = make([]float64, n)
	sortedRewards = make([]float64, n)
	for i, j := range idx {
		sortedMetrics[i] = metrics[j]
		sortedRewards[i] = rewards[j]
	}
	return sortedMetrics, sortedRewards
}

func maxAbs(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func maxAbsDiff(a, b []float64) float64 {
	m := 0.0
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > m {
			m = d
		}
	}
	return m
}
