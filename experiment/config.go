package experiment

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edgeml/offload-mdp/calib"
	"github.com/edgeml/offload-mdp/mdp"
	"github.com/edgeml/offload-mdp/simulate"
)

// RunConfig groups every parameter a single experiment invocation needs:
// which fold and cost kind to train on, the token-bucket rate/depth, the
// MDP solver tolerances, and the simulator's rollout shape and seed.
type RunConfig struct {
	Fold int           `yaml:"fold"`
	Cost calib.CostKind `yaml:"cost"`

	Rate  float64 `yaml:"rate"`
	Depth float64 `yaml:"depth"`

	// NCam > 1 selects the multi-device simulator; OuterRate/OuterDepth
	// then configure the shared aggregate bucket.
	NCam        int     `yaml:"ncam"`
	OuterRate   float64 `yaml:"outer_rate"`
	OuterDepth  float64 `yaml:"outer_depth"`

	Discount float64 `yaml:"discount"`
	MaxIter  int     `yaml:"max_iter"`
	Tol      float64 `yaml:"tol"`

	Shape simulate.Shape `yaml:"shape"`
	Seed  int64          `yaml:"seed"`
}

// SolveOptions extracts the mdp.SolveOptions embedded in this config.
// Zero-valued fields are passed through unchanged; mdp.Solve replaces them
// with its defaults.
func (c RunConfig) SolveOptions() mdp.SolveOptions {
	return mdp.SolveOptions{Discount: c.Discount, MaxIter: c.MaxIter, Tol: c.Tol}
}

// LoadRunConfigs reads a YAML file containing a list of RunConfig, for
// batch parameter-grid sweeps.
func LoadRunConfigs(path string) ([]RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfgs []RunConfig
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return nil, err
	}
	return cfgs, nil
}
