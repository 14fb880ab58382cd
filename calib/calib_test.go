package calib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibrate_RecoversReasonableTemperature(t *testing.T) {
	logits := [][]float64{
		{3, 1, 0},
		{0, 3, 1},
		{1, 0, 3},
		{3, 0.5, 0.2},
	}
	gt := []int{0, 1, 2, 0}

	tinv, err := Calibrate(logits, gt)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, tinv, 0.0)
	assert.LessOrEqual(t, tinv, 2.0)
}

func TestCalibrate_EmptyInput(t *testing.T) {
	_, err := Calibrate(nil, nil)
	require.Error(t, err)
}

func TestEntropy_UniformLogitsMaximal(t *testing.T) {
	logits := [][]float64{{0, 0, 0, 0}}
	ent, err := Entropy(logits, 1.0)
	require.NoError(t, err)
	require.Len(t, ent, 1)
	assert.InDelta(t, math.Log(4), ent[0], 1e-9)
}

func TestEntropy_PeakedLogitsNearZero(t *testing.T) {
	logits := [][]float64{{100, 0, 0}}
	ent, err := Entropy(logits, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, ent[0], 1e-6)
}

func TestCost_Top1AndTop5AndClamped(t *testing.T) {
	wrank := []int{1, 2, 6, 20}
	srank := []int{1, 1, 1, 1}

	wcost, scost, err := Cost(wrank, srank, CostTop1Error)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 1}, wcost)
	assert.Equal(t, []float64{0, 0, 0, 0}, scost)

	wcost, _, err = Cost(wrank, srank, CostTop5Error)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1}, wcost)

	wcost, _, err = Cost(wrank, srank, CostClampedRank10)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 6, 10}, wcost)
}

func TestCost_LengthMismatch(t *testing.T) {
	_, _, err := Cost([]int{1, 2}, []int{1}, CostTop1Error)
	require.Error(t, err)
}
