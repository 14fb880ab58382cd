// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/edgeml/offload-mdp/calib"
	"github.com/edgeml/offload-mdp/dataset"
	"github.com/edgeml/offload-mdp/experiment"
	"github.com/edgeml/offload-mdp/mdp"
	"github.com/edgeml/offload-mdp/metricfit"
	"github.com/edgeml/offload-mdp/simulate"
)

var (
	datasetPath string
	logLevel    string

	rate  float64
	depth float64
	fold  int
	cost  string

	ncam       int
	outerRate  float64
	outerDepth float64

	discount float64
	maxIter  int
	tol      float64

	horizonSteps int
	replicas     int
	sweepWorkers int
	seed         int64

	outPath string
)

var rootCmd = &cobra.Command{
	Use:   "offload-mdp",
	Short: "Offloading-policy engine for bandwidth-constrained edge inference",
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

func loadFoldAndReward(fold int, kind calib.CostKind) (entropy, rewards []float64, err error) {
	ds, err := dataset.LoadCSV(datasetPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading dataset: %w", err)
	}
	f := dataset.Fold(ds, fold)

	tinv, err := calib.Calibrate(f.Logits(), f.GroundTruth())
	if err != nil {
		return nil, nil, fmt.Errorf("calibrating: %w", err)
	}
	entropy, err = calib.Entropy(f.Logits(), tinv)
	if err != nil {
		return nil, nil, fmt.Errorf("computing entropy: %w", err)
	}
	wcost, scost, err := calib.Cost(f.WeakRank(), f.StrongRank(), kind)
	if err != nil {
		return nil, nil, fmt.Errorf("computing cost: %w", err)
	}
	rewards = make([]float64, len(wcost))
	for i := range rewards {
		rewards[i] = wcost[i] - scost[i]
	}
	return entropy, rewards, nil
}

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Calibrate temperature and fit the entropy-reward metric map for one fold",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		kind, err := parseCostKind(cost)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		entropy, rewards, err := loadFoldAndReward(fold, kind)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		mm, err := metricfit.Fit(entropy, rewards)
		degenerate := err != nil
		if err != nil {
			logrus.WithField("fold", fold).Warn("metricfit: degenerate input, using constant map")
		}

		fmt.Printf("xbins=%d degenerate=%v xbin_range=[%.4f,%.4f]\n",
			len(mm.Xbins), degenerate, mm.Xbins[0], mm.Xbins[len(mm.Xbins)-1])
		logrus.Info("Fit complete.")
	},
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Fit the metric then solve the threshold MDP for (rate, depth)",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		kind, err := parseCostKind(cost)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		entropy, rewards, err := loadFoldAndReward(fold, kind)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		mm, err := metricfit.Fit(entropy, rewards)
		if err != nil {
			logrus.WithField("fold", fold).Warn("metricfit: degenerate input, using constant map")
		}

		metricVals := make([]float64, len(entropy))
		for i, e := range entropy {
			metricVals[i] = mm.Interp(e)
		}
		td := mdp.TrainingData{Metrics: metricVals, Rewards: rewards}

		policy, stats, err := mdp.Solve(rate, depth, td, mdp.SolveOptions{Discount: discount, MaxIter: maxIter, Tol: tol})
		if err != nil {
			logrus.WithFields(logrus.Fields{"rate": rate, "depth": depth, "iterations": stats.Iterations}).
				Warn("mdp: did not converge within max iterations, using last iterate")
		}

		fmt.Printf("policy_len=%d iterations=%d converged=%v\n", len(policy), stats.Iterations, stats.Converged)
		logrus.Info("Solve complete.")
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the full fit -> solve -> simulate pipeline for one (rate, depth, cost) tuple",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		kind, err := parseCostKind(cost)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		cfg := experiment.RunConfig{
			Fold:       fold,
			Cost:       kind,
			Rate:       rate,
			Depth:      depth,
			NCam:       ncam,
			OuterRate:  outerRate,
			OuterDepth: outerDepth,
			Discount:   discount,
			MaxIter:    maxIter,
			Tol:        tol,
			Shape:      simulate.Shape{T: horizonSteps, R: replicas},
			Seed:       seed,
		}

		ds, err := dataset.LoadCSV(datasetPath)
		if err != nil {
			logrus.Fatalf("loading dataset: %v", err)
		}

		logrus.Infof("Starting simulation with fold=%d rate=%.4f depth=%.4f ncam=%d cost=%s", fold, rate, depth, ncam, cost)
		artifact, err := experiment.Run(cfg, ds)
		if err != nil {
			logrus.Fatalf("experiment run failed: %v", err)
		}

		fmt.Printf("avg_gain=%.6f converged=%v degenerate_fit=%v policy_len=%d\n",
			artifact.AvgGain, !artifact.NonConverged, artifact.Degenerate, len(artifact.Policy))

		if outPath != "" {
			if err := artifact.Save(outPath); err != nil {
				logrus.Fatalf("saving artifact: %v", err)
			}
			logrus.Infof("artifact written to %s", outPath)
		}
		logrus.Info("Simulation complete.")
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep [config.yaml]",
	Short: "Run a parameter-grid sweep from a YAML list of RunConfig",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfgs, err := experiment.LoadRunConfigs(args[0])
		if err != nil {
			logrus.Fatalf("loading sweep config %s: %v", args[0], err)
		}
		ds, err := dataset.LoadCSV(datasetPath)
		if err != nil {
			logrus.Fatalf("loading dataset: %v", err)
		}

		artifacts, errs := experiment.Sweep(cfgs, ds, sweepWorkers)
		for i, err := range errs {
			if err != nil {
				logrus.Errorf("sweep entry %d failed: %v", i, err)
				continue
			}
			fmt.Printf("[%d] rate=%.4f depth=%.4f avg_gain=%.6f\n", i, cfgs[i].Rate, cfgs[i].Depth, artifacts[i].AvgGain)
		}

		for _, fs := range experiment.SummarizeGainByFold(cfgs, artifacts, errs) {
			fmt.Printf("fold=%d n=%d mean_gain=%.6f variance_gain=%.6f\n", fs.Fold, fs.N, fs.MeanGain, fs.VarianceGain)
		}
		logrus.Info("Sweep complete.")
	},
}

func parseCostKind(s string) (calib.CostKind, error) {
	switch s {
	case "top1-error":
		return calib.CostTop1Error, nil
	case "top5-error":
		return calib.CostTop5Error, nil
	case "clamped-rank-at-10":
		return calib.CostClampedRank10, nil
	default:
		return 0, fmt.Errorf("unknown cost kind %q; valid: [top1-error, top5-error, clamped-rank-at-10]", s)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&datasetPath, "dataset", "", "Path to a CSV dataset (ground_truth, weak_rank, strong_rank, split, logits)")

	for _, c := range []*cobra.Command{fitCmd, solveCmd, simulateCmd, sweepCmd} {
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (debug, info, warn, error)")
	}

	for _, c := range []*cobra.Command{fitCmd, solveCmd, simulateCmd} {
		c.Flags().IntVar(&fold, "fold", 0, "Dataset fold id to train/evaluate on")
		c.Flags().StringVar(&cost, "cost", "top1-error", "Cost kind: top1-error, top5-error, clamped-rank-at-10")
	}

	for _, c := range []*cobra.Command{solveCmd, simulateCmd} {
		c.Flags().Float64Var(&rate, "rate", 0.25, "Token-bucket rate (tokens/step)")
		c.Flags().Float64Var(&depth, "depth", 1.0, "Token-bucket depth")
		c.Flags().Float64Var(&discount, "discount", 0.9999, "MDP discount factor")
		c.Flags().IntVar(&maxIter, "max-iter", 10000, "MDP value-iteration cap")
		c.Flags().Float64Var(&tol, "tol", 1e-6, "MDP policy-stability convergence tolerance")
	}

	simulateCmd.Flags().IntVar(&ncam, "ncam", 1, "Number of devices (>1 selects the multi-device simulator)")
	simulateCmd.Flags().Float64Var(&outerRate, "outer-rate", 0.25, "Shared aggregate bucket rate (multi-device only)")
	simulateCmd.Flags().Float64Var(&outerDepth, "outer-depth", 1.0, "Shared aggregate bucket depth (multi-device only)")
	simulateCmd.Flags().IntVar(&horizonSteps, "steps", 100000, "Simulator timesteps")
	simulateCmd.Flags().IntVar(&replicas, "replicas", 100, "Simulator replica trajectories")
	simulateCmd.Flags().Int64Var(&seed, "seed", 0, "Simulator RNG seed")
	simulateCmd.Flags().StringVar(&outPath, "out", "", "Optional path to persist the resulting artifact (gob)")

	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 4, "Number of parallel sweep workers")

	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(sweepCmd)
}
