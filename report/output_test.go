package report_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evonet/neat"
	"github.com/baldhumanity/evonet/network"
	"github.com/baldhumanity/evonet/report"
)

func TestDisabledOutput(t *testing.T) {
	om, err := report.NewOutputManager("")
	require.NoError(t, err)
	assert.Nil(t, om)
	assert.NoError(t, om.WriteTraining(report.TrainingRow{}))
	assert.NoError(t, om.WriteGeneration(neat.GenerationStats{}))
	assert.NoError(t, om.Close())
	assert.Empty(t, om.Dir())
}

func TestTrainingRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := report.NewOutputManager(dir)
	require.NoError(t, err)

	want := []report.TrainingRow{
		report.NewTrainingRow(network.ScheduleEvent{Iteration: 100, Error: 0.25}),
		report.NewTrainingRow(network.ScheduleEvent{Iteration: 200, Error: 0.125}),
		report.NewTrainingRow(network.ScheduleEvent{Iteration: 300, Error: 0.0625}),
	}
	for _, row := range want {
		require.NoError(t, om.WriteTraining(row))
	}
	require.NoError(t, om.Close())

	got, err := report.ReadTraining(filepath.Join(dir, report.TrainingFile))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	data, err := os.ReadFile(filepath.Join(dir, report.TrainingFile))
	require.NoError(t, err)
	// The header is written once.
	assert.Equal(t, 1, strings.Count(string(data), "iteration,error"))
	assert.True(t, strings.HasPrefix(string(data), "iteration,error\n"))

	// Nothing was evolved, so no evolution file exists.
	_, err = os.Stat(filepath.Join(dir, report.EvolutionFile))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerationsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	om, err := report.NewOutputManager(dir)
	require.NoError(t, err)

	want := []neat.GenerationStats{
		{Generation: 1, Best: -0.25, Mean: -0.5, Stdev: 0.125, Species: 2, Nodes: 3, Connections: 2},
		{Generation: 2, Best: -0.125, Mean: -0.375, Stdev: 0.0625, Species: 3, Nodes: 4, Connections: 3, Gates: 1},
	}
	for _, s := range want {
		require.NoError(t, om.WriteGeneration(s))
	}
	require.NoError(t, om.Close())

	got, err := report.ReadGenerations(filepath.Join(dir, report.EvolutionFile))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = report.ReadGenerations(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
