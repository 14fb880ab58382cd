// Package simulate runs Monte-Carlo rollouts of a threshold policy against
// empirical (metric, reward) pairs, producing an average gain and
// bucket-occupancy histograms. Two modes are provided: single-device
// (Run) and multi-device hierarchical bucket (RunMulti).
package simulate

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/edgeml/offload-mdp/bucket"
	"github.com/edgeml/offload-mdp/mdp"
)

// ErrShapeMismatch is returned when the policy length doesn't match
// m-p+1, or the dataset's metric/reward arrays have unequal length.
var ErrShapeMismatch = errors.New("simulate: shape mismatch")

// RandSource is an injectable, seedable source of uniform random indices
// in [0, n). *math/rand.Rand satisfies this interface.
type RandSource interface {
	Intn(n int) int
}

// NewRand wraps a seeded math/rand source as a RandSource, for
// reproducible test and production runs alike.
func NewRand(seed int64) RandSource {
	return rand.New(rand.NewSource(seed))
}

// Shape bounds a rollout: T timesteps across R independent replica
// trajectories drawn from a shared sample stream.
type Shape struct {
	T int
	R int
}

// ItemCounts tracks how often a training sample was offered a send
// opportunity and how often it was actually sent.
type ItemCounts struct {
	Sent    int
	Offered int
}

// Result holds the single-device simulation output.
type Result struct {
	// SendPerItem[i] holds counts for the sample that is i-th smallest by
	// metric value (sorted ascending), as required by the spec's output
	// ordering guarantee.
	SendPerItem []ItemCounts
	// SendHist has length m-p+1: empirical fraction of timesteps in each
	// send-eligible state at which a send occurred.
	SendHist []float64
	// OccupHist has length m-q+1: empirical occupancy distribution over
	// all states.
	OccupHist []float64
}

// Run simulates policy against data for shape.T timesteps across
// shape.R replicas, starting every replica's bucket full. Decision,
// accounting, and state update happen in that order per (t, r); the
// occupancy histogram samples the PRE-transition state.
func Run(rate, bdepth float64, policy mdp.Policy, data mdp.TrainingData, shape Shape, src RandSource) (avgGain float64, result Result, err error) {
	if len(data.Metrics) != len(data.Rewards) {
		return 0, Result{}, fmt.Errorf("%w: metrics=%d rewards=%d", ErrShapeMismatch, len(data.Metrics), len(data.Rewards))
	}

	b, err := bucket.GetQPM(rate, bdepth, bucket.DefaultMaxP)
	if err != nil {
		return 0, Result{}, err
	}
	if int64(len(policy)) != b.SendEligible() {
		return 0, Result{}, fmt.Errorf("%w: policy length=%d want=%d", ErrShapeMismatch, len(policy), b.SendEligible())
	}

	n := len(data.Metrics)
	state := make([]int64, shape.R)
	for r := range state {
		state[r] = b.M
	}

	perItem := make([]ItemCounts, n)
	sendHist := make([]float64, b.SendEligible())
	occupHist := make([]float64, b.States())

	for t := 0; t < shape.T; t++ {
		for r := 0; r < shape.R; r++ {
			idx := src.Intn(n)
			cur := state[r]

			send := cur >= b.P && data.Metrics[idx] >= policy[cur-b.P]

			perItem[idx].Offered++
			if send {
				perItem[idx].Sent++
				sendHist[cur-b.P]++
				avgGain += data.Rewards[idx]
			}
			occupHist[cur-b.Q]++

			next := cur + b.Q
			if send {
				next = cur - b.P + b.Q
			}
			if next > b.M {
				next = b.M
			}
			state[r] = next
		}
	}

	denom := float64(shape.T * shape.R)
	avgGain /= denom
	for i := range sendHist {
		sendHist[i] /= denom
	}
	for i := range occupHist {
		occupHist[i] /= denom
	}

	result = Result{
		SendPerItem: reorderByMetricAscending(perItem, data.Metrics),
		SendHist:    sendHist,
		OccupHist:   occupHist,
	}
	return avgGain, result, nil
}

func reorderByMetricAscending(counts []ItemCounts, metrics []float64) []ItemCounts {
	idx := make([]int, len(metrics))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return metrics[idx[a]] < metrics[idx[b]] })

	out := make([]ItemCounts, len(counts))
	for i, j := range idx {
		out[i] = counts[j]
	}
	return out
}
