package simulate

import (
	"fmt"

	"github.com/edgeml/offload-mdp/bucket"
	"github.com/edgeml/offload-mdp/mdp"
)

// RateDepth is a (rate, depth) pair identifying one token bucket.
type RateDepth struct {
	Rate  float64
	Depth float64
}

// OccupancyResult holds the multi-device simulation output: the empirical
// occupancy distribution of the shared aggregate bucket.
type OccupancyResult struct {
	// OccupHist has length m_g-q_g+1.
	OccupHist []float64
}

// RunMulti simulates ncam devices, each gated by its own inner bucket
// (rbInner) plus a shared outer bucket (rbOuter), against data for
// shape.T timesteps across shape.R trajectories. Device c of trajectory r
// occupies flat inner-state index r*ncam+c (cameras are the innermost
// dimension). Within a timestep, cameras are processed sequentially in
// order 0..ncam-1 and gate their (already-decided) inner send through the
// outer bucket's current occupancy — earlier cameras can exhaust the
// outer bucket before later ones; this asymmetry models serialized access
// to a shared uplink and is preserved deliberately, not a bug.
func RunMulti(rbInner, rbOuter RateDepth, ncam int, policy mdp.Policy, data mdp.TrainingData, shape Shape, src RandSource) (avgGain float64, result OccupancyResult, err error) {
	if len(data.Metrics) != len(data.Rewards) {
		return 0, OccupancyResult{}, fmt.Errorf("%w: metrics=%d rewards=%d", ErrShapeMismatch, len(data.Metrics), len(data.Rewards))
	}

	bi, err := bucket.GetQPM(rbInner.Rate, rbInner.Depth, bucket.DefaultMaxP)
	if err != nil {
		return 0, OccupancyResult{}, fmt.Errorf("inner bucket: %w", err)
	}
	bg, err := bucket.GetQPM(rbOuter.Rate, rbOuter.Depth, bucket.DefaultMaxP)
	if err != nil {
		return 0, OccupancyResult{}, fmt.Errorf("outer bucket: %w", err)
	}
	if int64(len(policy)) != bi.SendEligible() {
		return 0, OccupancyResult{}, fmt.Errorf("%w: policy length=%d want=%d", ErrShapeMismatch, len(policy), bi.SendEligible())
	}

	n := len(data.Metrics)
	slots := shape.R * ncam

	innerState := make([]int64, slots)
	for i := range innerState {
		innerState[i] = bi.M
	}
	outerState := make([]int64, shape.R)
	for r := range outerState {
		outerState[r] = bg.M
	}

	occupHist := make([]float64, bg.States())
	ifsendInner := make([]bool, slots)
	idxBuf := make([]int, slots)

	for t := 0; t < shape.T; t++ {
		for i := 0; i < slots; i++ {
			idxBuf[i] = src.Intn(n)
		}

		// Inner decision and state update happen immediately, independent
		// of outer-bucket availability.
		for i := 0; i < slots; i++ {
			cur := innerState[i]
			send := cur >= bi.P && data.Metrics[idxBuf[i]] >= policy[cur-bi.P]
			ifsendInner[i] = send

			next := cur + bi.Q
			if send {
				next = cur - bi.P + bi.Q
			}
			if next > bi.M {
				next = bi.M
			}
			innerState[i] = next
		}

		for c := 0; c < ncam; c++ {
			for r := 0; r < shape.R; r++ {
				flat := r*ncam + c
				occupHist[outerState[r]-bg.Q]++

				sendOuter := ifsendInner[flat] && outerState[r] >= bg.P
				if sendOuter {
					avgGain += data.Rewards[idxBuf[flat]]
				}

				next := outerState[r] + bg.Q
				if sendOuter {
					next = outerState[r] - bg.P + bg.Q
				}
				if next > bg.M {
					next = bg.M
				}
				outerState[r] = next
			}
		}
	}

	denom := float64(shape.T * shape.R * ncam)
	avgGain /= denom
	for i := range occupHist {
		occupHist[i] /= denom
	}

	return avgGain, OccupancyResult{OccupHist: occupHist}, nil
}
