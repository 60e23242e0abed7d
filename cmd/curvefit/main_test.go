package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedtd/curvefit/config"
	"github.com/ahmedtd/curvefit/history"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.DataCount = 30
	cfg.Epochs = 20
	cfg.TrainingIterations = 2
	cfg.HiddenUnits = 3
	cfg.ChartFormat = "json"
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.HistoryPath = filepath.Join(dir, "history.sqlite3")
	cfg.LogEvery = 0
	return cfg
}

func recentRuns(t *testing.T, cfg *config.Config) []history.Run {
	t.Helper()
	ctx := context.Background()
	store, err := history.Open(ctx, cfg.HistoryPath)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	return runs
}

func TestRandomizeThenTrainThenPredict(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	require.NoError(t, (&RandomizeCommand{cfg: cfg}).executeErr(ctx))
	assert.FileExists(t, cfg.OutputPath(dataFileName))
	assert.FileExists(t, cfg.ChartPath("data"))

	require.NoError(t, (&TrainCommand{cfg: cfg}).executeErr(ctx))
	assert.FileExists(t, cfg.OutputPath(checkpointFileName))
	assert.FileExists(t, cfg.ChartPath("loss"))

	require.NoError(t, (&PredictCommand{cfg: cfg}).executeErr(ctx))

	runs := recentRuns(t, cfg)
	require.Len(t, runs, 2)
	assert.Equal(t, "predict", runs[0].Command)
	assert.Equal(t, "train", runs[1].Command)
	assert.Equal(t, 30, runs[1].DataCount)
	assert.Equal(t, 1, runs[1].Iterations)
}

func TestTrainResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Optimizer = "adam"

	require.NoError(t, (&TrainCommand{cfg: cfg}).executeErr(ctx))

	resume := &TrainCommand{cfg: cfg}
	resume.files.fromCheckpointFile = cfg.OutputPath(checkpointFileName)
	resume.files.outputWeightFile = cfg.OutputPath("resumed.safetensors")
	require.NoError(t, resume.executeErr(ctx))

	s := newSession(cfg)
	require.NoError(t, loadCheckpoint(s, resume.files.outputWeightFile))
	require.NoError(t, s.Train())
	require.NotNil(t, s.LastHistory().Optimizer)
}

func TestPredictNeedsWeights(t *testing.T) {
	cfg := testConfig(t)
	err := (&PredictCommand{cfg: cfg}).executeErr(context.Background())
	assert.Error(t, err)
}

func TestResetRejectsMismatchedWidth(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	require.NoError(t, (&ResetCommand{cfg: cfg}).executeErr(ctx))

	cfg.HiddenUnits = 5
	s := newSession(cfg)
	err := loadCheckpoint(s, cfg.OutputPath(checkpointFileName))
	assert.ErrorContains(t, err, "wrong shape")
}

func TestDemoWritesEverything(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, (&DemoCommand{cfg: cfg}).executeErr(context.Background()))

	for _, name := range []string{"train-loss", "train-data", "cost", "loss", "data"} {
		assert.FileExists(t, cfg.ChartPath(name))
	}

	runs := recentRuns(t, cfg)
	require.Len(t, runs, 2)
	assert.Equal(t, "run", runs[0].Command)
	assert.Equal(t, 2, runs[0].Iterations)
	assert.Greater(t, runs[0].MeanCost, 0.0)
}

func TestRunWithoutHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistoryPath = ""

	require.NoError(t, (&RunCommand{cfg: cfg}).executeErr(context.Background()))
	assert.FileExists(t, cfg.ChartPath("cost"))

	_, err := os.Stat(filepath.Join(filepath.Dir(cfg.OutputDir), "history.sqlite3"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunStopsWhenCancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&RunCommand{cfg: cfg}).executeErr(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWithoutSamplesRecordsNoCost(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataCount = 0

	require.NoError(t, (&RunCommand{cfg: cfg}).executeErr(context.Background()))

	runs := recentRuns(t, cfg)
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].Iterations)
	assert.Equal(t, 0.0, runs[0].MeanCost)
}
