package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulateCmd_DefaultLogLevel_IsWarn(t *testing.T) {
	// GIVEN the simulate command with its registered flags
	flag := simulateCmd.Flags().Lookup("log")

	// WHEN we check the default value
	// THEN it must be "warn": structured logs stay quiet by default and
	// simulation results go to stdout via fmt, not through logrus.
	assert.NotNil(t, flag, "log flag must be registered")
	assert.Equal(t, "warn", flag.DefValue)
}

func TestSimulateCmd_DefaultRateAndDepth(t *testing.T) {
	assert.Equal(t, "0.25", simulateCmd.Flags().Lookup("rate").DefValue)
	assert.Equal(t, "1", simulateCmd.Flags().Lookup("depth").DefValue)
	assert.Equal(t, "1", simulateCmd.Flags().Lookup("ncam").DefValue)
}

func TestFitCmd_DefaultCostKind(t *testing.T) {
	flag := fitCmd.Flags().Lookup("cost")
	assert.NotNil(t, flag)
	assert.Equal(t, "top1-error", flag.DefValue)
}

func TestSweepCmd_RequiresExactlyOneArg(t *testing.T) {
	assert.NoError(t, sweepCmd.Args(sweepCmd, []string{"sweep.yaml"}))
	assert.Error(t, sweepCmd.Args(sweepCmd, []string{}))
	assert.Error(t, sweepCmd.Args(sweepCmd, []string{"a.yaml", "b.yaml"}))
}

func TestParseCostKind(t *testing.T) {
	_, err := parseCostKind("top1-error")
	assert.NoError(t, err)
	_, err = parseCostKind("top5-error")
	assert.NoError(t, err)
	_, err = parseCostKind("clamped-rank-at-10")
	assert.NoError(t, err)
	_, err = parseCostKind("bogus")
	assert.Error(t, err)
}

func TestRootCmd_HasAllSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"fit", "solve", "simulate", "sweep"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
