package experiment

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/edgeml/offload-mdp/mdp"
	"github.com/edgeml/offload-mdp/metricfit"
)

// Artifact is the compact, persisted bundle produced by one Run
// invocation: the fitted metric map, the solved policy, and the
// simulator's gain/histogram output. File naming is an experiment-package
// concern, not part of the CORE contract.
type Artifact struct {
	Config RunConfig

	MetricFit  metricfit.MetricMap
	Degenerate bool

	Policy       mdp.Policy
	SolveStats   mdp.SolveStats
	NonConverged bool

	AvgGain   float64
	SendHist  []float64 // nil for multi-device runs
	OccupHist []float64
}

// Save gob-encodes the artifact to path.
func (a Artifact) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("experiment: creating artifact file %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // write errors surface via Encode below

	if err := gob.NewEncoder(file).Encode(a); err != nil {
		return fmt.Errorf("experiment: encoding artifact to %s: %w", path, err)
	}
	return nil
}

// LoadArtifact gob-decodes an Artifact previously written by Save.
func LoadArtifact(path string) (Artifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("experiment: opening artifact file %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only file; close error is not actionable

	var a Artifact
	if err := gob.NewDecoder(file).Decode(&a); err != nil {
		return Artifact{}, fmt.Errorf("experiment: decoding artifact from %s: %w", path, err)
	}
	return a, nil
}
