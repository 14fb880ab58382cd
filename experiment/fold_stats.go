package experiment

import "gonum.org/v1/gonum/stat"

// FoldGainStats summarizes AvgGain across sweep runs that share a fold, for
// repeated-seed stability checks: how much the policy's realized gain
// varies run-to-run on the same held-out data.
type FoldGainStats struct {
	Fold         int
	N            int
	MeanGain     float64
	VarianceGain float64
}

// SummarizeGainByFold groups cfgs/artifacts/errs (as returned by Sweep, same
// index alignment) by RunConfig.Fold and computes the mean and variance of
// AvgGain within each group, skipping runs that errored. A fold with a
// single successful run reports VarianceGain 0.
func SummarizeGainByFold(cfgs []RunConfig, artifacts []Artifact, errs []error) []FoldGainStats {
	gainsByFold := make(map[int][]float64)
	var order []int
	for i, cfg := range cfgs {
		if i >= len(errs) || errs[i] != nil {
			continue
		}
		if _, seen := gainsByFold[cfg.Fold]; !seen {
			order = append(order, cfg.Fold)
		}
		gainsByFold[cfg.Fold] = append(gainsByFold[cfg.Fold], artifacts[i].AvgGain)
	}

	out := make([]FoldGainStats, 0, len(order))
	for _, fold := range order {
		gains := gainsByFold[fold]
		s := FoldGainStats{Fold: fold, N: len(gains), MeanGain: stat.Mean(gains, nil)}
		if len(gains) > 1 {
			s.VarianceGain = stat.Variance(gains, nil)
		}
		out = append(out, s)
	}
	return out
}
