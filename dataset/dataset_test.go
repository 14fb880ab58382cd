package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadCSV_ParsesRows(t *testing.T) {
	csvData := "ground_truth,weak_rank,strong_rank,split,logits\n" +
		"0,1,1,0,\"[3.0, 1.0, 0.5]\"\n" +
		"2,6,1,1,\"[0.1, 0.2, 5.0]\"\n"
	path := writeTempCSV(t, csvData)

	ds, err := LoadCSV(path)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, ds.GroundTruthData)
	assert.Equal(t, []int{1, 6}, ds.WeakRankData)
	assert.Equal(t, []int{1, 1}, ds.StrongRankData)
	assert.Equal(t, []int{0, 1}, ds.SplitData)
	assert.Equal(t, [][]float64{{3.0, 1.0, 0.5}, {0.1, 0.2, 5.0}}, ds.LogitsData)
}

func TestLoadCSV_MalformedRow(t *testing.T) {
	path := writeTempCSV(t, "ground_truth,weak_rank,strong_rank,split,logits\n0,1,1\n")
	_, err := LoadCSV(path)
	require.Error(t, err)
}

func TestFold_FiltersBySplit(t *testing.T) {
	ds := &InMemory{
		LogitsData:      [][]float64{{1}, {2}, {3}},
		GroundTruthData: []int{0, 0, 0},
		WeakRankData:    []int{1, 2, 3},
		StrongRankData:  []int{1, 1, 1},
		SplitData:       []int{0, 1, 0},
	}

	fold0 := Fold(ds, 0)
	assert.Equal(t, []int{1, 3}, fold0.WeakRankData)

	fold1 := Fold(ds, 1)
	assert.Equal(t, []int{2}, fold1.WeakRankData)
}
