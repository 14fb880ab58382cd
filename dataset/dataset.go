// Package dataset defines the external dataset-loader interface consumed
// by the experiment driver: logits, ground-truth labels, weak/strong rank
// arrays, and a fold split. This boundary is out of scope for the CORE
// (spec.md §1) but is specified here, with one CSV-backed implementation,
// so the driver is runnable end-to-end.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Dataset supplies the per-sample arrays the experiment driver needs to
// calibrate entropy, compute cost, and fit/evaluate a policy.
type Dataset interface {
	// Logits returns the N x K weak-classifier logits.
	Logits() [][]float64
	// GroundTruth returns the N ground-truth labels.
	GroundTruth() []int
	// WeakRank returns the N ranks of the ground-truth label in the weak
	// classifier's output.
	WeakRank() []int
	// StrongRank returns the N ranks of the ground-truth label in the
	// strong classifier's output.
	StrongRank() []int
	// Split returns the N fold ids, one per sample.
	Split() []int
}

// InMemory is a Dataset backed by plain in-memory slices, useful for
// tests and for experiment.Sweep fixtures.
type InMemory struct {
	LogitsData      [][]float64
	GroundTruthData []int
	WeakRankData    []int
	StrongRankData  []int
	SplitData       []int
}

func (d *InMemory) Logits() [][]float64  { return d.LogitsData }
func (d *InMemory) GroundTruth() []int   { return d.GroundTruthData }
func (d *InMemory) WeakRank() []int      { return d.WeakRankData }
func (d *InMemory) StrongRank() []int    { return d.StrongRankData }
func (d *InMemory) Split() []int         { return d.SplitData }

// LoadCSV reads a Dataset from a CSV file with columns:
//
//	ground_truth, weak_rank, strong_rank, split, logits
//
// where logits is a JSON-encoded array of floats, e.g. "[0.1, 2.3, -1.0]".
// The first row is treated as a header and skipped.
func LoadCSV(path string) (*InMemory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: opening %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only file; close error is not actionable

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("dataset: reading header of %s: %w", path, err)
	}

	ds := &InMemory{}
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: reading row %d: %w", row, err)
		}
		if len(record) < 5 {
			return nil, fmt.Errorf("dataset: row %d has %d columns, expected at least 5", row, len(record))
		}

		gt, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("dataset: invalid ground_truth at row %d: %w", row, err)
		}
		wrank, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, fmt.Errorf("dataset: invalid weak_rank at row %d: %w", row, err)
		}
		srank, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("dataset: invalid strong_rank at row %d: %w", row, err)
		}
		split, err := strconv.Atoi(record[3])
		if err != nil {
			return nil, fmt.Errorf("dataset: invalid split at row %d: %w", row, err)
		}

		var logits []float64
		if err := json.Unmarshal([]byte(record[4]), &logits); err != nil {
			return nil, fmt.Errorf("dataset: invalid logits at row %d: %w", row, err)
		}

		ds.GroundTruthData = append(ds.GroundTruthData, gt)
		ds.WeakRankData = append(ds.WeakRankData, wrank)
		ds.StrongRankData = append(ds.StrongRankData, srank)
		ds.SplitData = append(ds.SplitData, split)
		ds.LogitsData = append(ds.LogitsData, logits)
		row++
	}

	return ds, nil
}

// Fold filters ds down to the samples whose Split() equals fold.
func Fold(ds Dataset, fold int) *InMemory {
	out := &InMemory{}
	logits, gt, wrank, srank, split := ds.Logits(), ds.GroundTruth(), ds.WeakRank(), ds.StrongRank(), ds.Split()
	for i, f := range split {
		if f != fold {
			continue
		}
		out.LogitsData = append(out.LogitsData, logits[i])
		out.GroundTruthData = append(out.GroundTruthData, gt[i])
		out.WeakRankData = append(out.WeakRankData, wrank[i])
		out.StrongRankData = append(out.StrongRankData, srank[i])
		out.SplitData = append(out.SplitData, fold)
	}
	return out
}
