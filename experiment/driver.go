// Package experiment is the pure-coordination driver: load a fold, invoke
// metricfit -> mdp -> simulate, and produce a persistable Artifact. It is
// the only layer (besides cmd) allowed to log; the CORE packages only
// return errors and stats.
package experiment

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/edgeml/offload-mdp/calib"
	"github.com/edgeml/offload-mdp/dataset"
	"github.com/edgeml/offload-mdp/mdp"
	"github.com/edgeml/offload-mdp/metricfit"
	"github.com/edgeml/offload-mdp/simulate"
)

// Run loads cfg.Fold from ds, calibrates entropy and reward, fits a
// metric map, solves the MDP, and evaluates the resulting policy by
// simulation, returning the complete Artifact.
func Run(cfg RunConfig, ds dataset.Dataset) (Artifact, error) {
	fold := dataset.Fold(ds, cfg.Fold)

	tinv, err := calib.Calibrate(fold.Logits(), fold.GroundTruth())
	if err != nil {
		return Artifact{}, fmt.Errorf("experiment: calibrating fold %d: %w", cfg.Fold, err)
	}
	entropy, err := calib.Entropy(fold.Logits(), tinv)
	if err != nil {
		return Artifact{}, fmt.Errorf("experiment: computing entropy for fold %d: %w", cfg.Fold, err)
	}
	wcost, scost, err := calib.Cost(fold.WeakRank(), fold.StrongRank(), cfg.Cost)
	if err != nil {
		return Artifact{}, fmt.Errorf("experiment: computing cost for fold %d: %w", cfg.Fold, err)
	}

	rewards := make([]float64, len(wcost))
	for i := range rewards {
		rewards[i] = wcost[i] - scost[i]
	}

	mm, err := metricfit.Fit(entropy, rewards)
	degenerate := errors.Is(err, metricfit.ErrDegenerateInput)
	if err != nil && !degenerate {
		return Artifact{}, fmt.Errorf("experiment: fitting metric for fold %d: %w", cfg.Fold, err)
	}
	if degenerate {
		logrus.WithField("fold", cfg.Fold).Warn("metricfit: degenerate input, using constant map")
	}

	metricVals := make([]float64, len(entropy))
	for i, e := range entropy {
		metricVals[i] = mm.Interp(e)
	}
	td := mdp.TrainingData{Metrics: metricVals, Rewards: rewards}

	policy, stats, err := mdp.Solve(cfg.Rate, cfg.Depth, td, cfg.SolveOptions())
	nonConverged := errors.Is(err, mdp.ErrNonConvergence)
	if err != nil && !nonConverged {
		return Artifact{}, fmt.Errorf("experiment: solving mdp rate=%v depth=%v: %w", cfg.Rate, cfg.Depth, err)
	}
	if nonConverged {
		logrus.WithFields(logrus.Fields{"rate": cfg.Rate, "depth": cfg.Depth, "iterations": stats.Iterations}).
			Warn("mdp: did not converge within max iterations, using last iterate")
	}

	rng := newPartitionedRNG(cfg.Seed)
	src := rng.forSubsystem(subsystemSimulate)

	artifact := Artifact{
		Config:       cfg,
		MetricFit:    mm,
		Degenerate:   degenerate,
		Policy:       policy,
		SolveStats:   stats,
		NonConverged: nonConverged,
	}

	if cfg.NCam > 1 {
		rbInner := simulate.RateDepth{Rate: cfg.Rate, Depth: cfg.Depth}
		rbOuter := simulate.RateDepth{Rate: cfg.OuterRate, Depth: cfg.OuterDepth}
		gain, occ, err := simulate.RunMulti(rbInner, rbOuter, cfg.NCam, policy, td, cfg.Shape, src)
		if err != nil {
			return Artifact{}, fmt.Errorf("experiment: multi-device simulation: %w", err)
		}
		artifact.AvgGain, artifact.OccupHist = gain, occ.OccupHist
		return artifact, nil
	}

	gain, res, err := simulate.Run(cfg.Rate, cfg.Depth, policy, td, cfg.Shape, src)
	if err != nil {
		return Artifact{}, fmt.Errorf("experiment: single-device simulation: %w", err)
	}
	artifact.AvgGain, artifact.SendHist, artifact.OccupHist = gain, res.SendHist, res.OccupHist
	return artifact, nil
}

// Sweep runs Run for every cfg in cfgs across a bounded pool of workers.
// Each worker only reads ds and writes its own Artifact/error slot; there
// is no shared mutable state between workers and no ordering guarantee
// beyond index alignment with cfgs.
func Sweep(cfgs []RunConfig, ds dataset.Dataset, workers int) ([]Artifact, []error) {
	if workers <= 0 {
		workers = 1
	}

	artifacts := make([]Artifact, len(cfgs))
	errs := make([]error, len(cfgs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				cfg := cfgs[i]
				log := logrus.WithFields(logrus.Fields{
					"rate": cfg.Rate, "depth": cfg.Depth, "ncam": cfg.NCam, "cost": cfg.Cost, "fold": cfg.Fold,
				})
				log.Info("experiment: starting run")

				a, err := Run(cfg, ds)
				if err != nil {
					log.WithError(err).Error("experiment: run failed")
					errs[i] = err
					continue
				}
				log.WithField("avg_gain", a.AvgGain).Info("experiment: run complete")
				artifacts[i] = a
			}
		}()
	}

	for i := range cfgs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return artifacts, errs
}
