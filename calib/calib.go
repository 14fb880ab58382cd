// Package calib implements the dataset-loader-adjacent reductions the
// experiment driver needs but that are out of scope for the CORE:
// temperature calibration of logits, entropy computation, and cost
// computation from weak/strong classifier ranks.
package calib

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrEmptyLogits is returned when Calibrate or Entropy are given no rows.
var ErrEmptyLogits = errors.New("calib: empty logits")

// calibRounds is the number of bisection-refinement rounds used to search
// for the cross-entropy-minimizing inverse temperature.
const calibRounds = 6

// calibGridPoints is the number of candidate temperatures evaluated per
// round of the search.
const calibGridPoints = 10

// Calibrate searches for the scalar inverse-temperature tinv that
// minimizes cross-entropy of softmax(tinv*logits) against gt, by
// iteratively narrowing a 10-point linear scan over [lb, ub] for
// calibRounds rounds (ported from the reference implementation's
// bisection-refinement calibration search).
func Calibrate(logits [][]float64, gt []int) (tinv float64, err error) {
	n := len(logits)
	if n == 0 || len(gt) != n {
		return 0, fmt.Errorf("%w: logits=%d gt=%d", ErrEmptyLogits, n, len(gt))
	}

	shifted := make([][]float64, n)
	base := 0.0
	for i, row := range logits {
		mx := maxOf(row)
		s := make([]float64, len(row))
		for j, v := range row {
			s[j] = v - mx
		}
		shifted[i] = s
		base -= s[gt[i]]
	}
	base /= float64(n)

	lb, ub := 0.0, 2.0
	var best float64
	for round := 0; round < calibRounds; round++ {
		grid := linspace(lb, ub, calibGridPoints)
		bestXent, bestT := math.Inf(1), grid[0]

		for _, t := range grid {
			logSumMean := 0.0
			for _, row := range shifted {
				var sum float64
				for _, v := range row {
					sum += math.Exp(t * v)
				}
				logSumMean += math.Log(sum)
			}
			logSumMean /= float64(n)

			xent := base*t + logSumMean
			if xent < bestXent {
				bestXent, bestT = xent, t
			}
		}

		best = bestT
		step := grid[1] - grid[0]
		lb = math.Max(0, best-step)
		ub = best + step
	}

	return best, nil
}

// Entropy computes per-row entropy of softmax(tinv*logits).
func Entropy(logits [][]float64, tinv float64) ([]float64, error) {
	if len(logits) == 0 {
		return nil, ErrEmptyLogits
	}

	out := make([]float64, len(logits))
	for i, row := range logits {
		mx := maxOf(row)
		var pden, numerator float64
		for _, v := range row {
			lnum := tinv * (v - mx)
			e := math.Exp(lnum)
			pden += e
			numerator += e * lnum
		}
		out[i] = -numerator/pden + math.Log(pden)
	}
	return out, nil
}

// CostKind selects how classification cost is derived from a rank.
type CostKind int

const (
	// CostTop1Error is 1 if the ground-truth rank is worse than 1, else 0.
	CostTop1Error CostKind = iota
	// CostTop5Error is 1 if the ground-truth rank is worse than 5, else 0.
	CostTop5Error
	// CostClampedRank10 is min(10, rank).
	CostClampedRank10
)

// Cost computes weak- and strong-classifier costs from ground-truth ranks
// according to kind.
func Cost(wrank, srank []int, kind CostKind) (wcost, scost []float64, err error) {
	if len(wrank) != len(srank) {
		return nil, nil, fmt.Errorf("calib: wrank=%d srank=%d length mismatch", len(wrank), len(srank))
	}

	wcost = make([]float64, len(wrank))
	scost = make([]float64, len(srank))
	for i := range wrank {
		wcost[i] = costOf(wrank[i], kind)
		scost[i] = costOf(srank[i], kind)
	}
	return wcost, scost, nil
}

func costOf(rank int, kind CostKind) float64 {
	switch kind {
	case CostTop1Error:
		if rank > 1 {
			return 1
		}
		return 0
	case CostTop5Error:
		if rank > 5 {
			return 1
		}
		return 0
	default:
		return float64(min(10, rank))
	}
}

func maxOf(xs []float64) float64 {
	return floats.Max(xs)
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	floats.Span(out, lo, hi)
	return out
}
