package neat_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evonet/methods"
	"github.com/baldhumanity/evonet/neat"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	config := neat.DefaultConfig()
	require.NoError(t, config.Validate())

	mutations, err := config.Mutations()
	require.NoError(t, err)
	assert.Len(t, mutations, len(methods.FeedForwardOnly))
}

func TestLoadConfigINI(t *testing.T) {
	path := writeFile(t, "xor-config", `
[Evolve]
pop_size = 20
elitism  = 2
selection = TOURNAMENT ; inline comment
tournament_size = 3

[Mutation]
operators  = ADD_NODE MOD_WEIGHT # trailing comment
weight_min = -2
weight_max = 2

[Species]
compatibility_threshold = 3.0
`)
	config, err := neat.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 20, config.Evolve.PopSize)
	assert.Equal(t, 2, config.Evolve.Elitism)
	assert.Equal(t, "TOURNAMENT", config.Evolve.Selection)
	assert.Equal(t, 3.0, config.Species.CompatibilityThreshold)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 0.3, config.Evolve.MutationRate)
	assert.Equal(t, 15, config.Stagnation.MaxStagnation)
	assert.Equal(t, "FIXED", config.Train.RatePolicy)

	selection, err := config.SelectionMethod()
	require.NoError(t, err)
	assert.Equal(t, methods.TournamentKind, selection.Kind)
	assert.Equal(t, 3, selection.Size)
	assert.Equal(t, 0.5, selection.Probability)

	mutations, err := config.Mutations()
	require.NoError(t, err)
	require.Len(t, mutations, 2)
	assert.Equal(t, methods.AddNodeKind, mutations[0].Kind)
	assert.Equal(t, methods.ModWeightKind, mutations[1].Kind)
	assert.Equal(t, -2.0, mutations[1].Min)
	assert.Equal(t, 2.0, mutations[1].Max)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
evolve:
  pop_size: 30
  selection: FITNESS_PROPORTIONATE
mutation:
  group: ALL
  keep_gates: false
  activations: [LOGISTIC, TANH]
stagnation:
  max_stagnation: 5
train:
  rate: 0.1
  rate_policy: STEP
`)
	config, err := neat.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 30, config.Evolve.PopSize)
	assert.Equal(t, 5, config.Stagnation.MaxStagnation)
	assert.Equal(t, "mean", config.Stagnation.SpeciesFitnessFunc)

	mutations, err := config.Mutations()
	require.NoError(t, err)
	require.Len(t, mutations, len(methods.All))
	for _, m := range mutations {
		switch m.Kind {
		case methods.SubNodeKind:
			assert.False(t, m.KeepGates)
		case methods.ModActivationKind:
			require.Len(t, m.Allowed, 2)
			assert.True(t, m.Allowed[0].Is(methods.Logistic))
			assert.True(t, m.Allowed[1].Is(methods.Tanh))
		}
	}

	opts, err := config.TrainOptions()
	require.NoError(t, err)
	assert.Equal(t, 0.1, opts.Rate)
	assert.Equal(t, 0.05, opts.Error)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := neat.LoadConfig(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	tests := []struct {
		name    string
		content string
	}{
		{"pop size", "[Evolve]\npop_size = 0\n"},
		{"elitism", "[Evolve]\npop_size = 4\nelitism = 3\nprovenance = 2\n"},
		{"mutation rate", "[Evolve]\nmutation_rate = 1.5\n"},
		{"selection", "[Evolve]\nselection = ROULETTE\n"},
		{"cost", "[Evolve]\ncost = HUBER\n"},
		{"operator", "[Mutation]\noperators = ADD_NODE FLIP\n"},
		{"group", "[Mutation]\ngroup = SOME\n"},
		{"weight range", "[Mutation]\nweight_min = 1\nweight_max = -1\n"},
		{"stat function", "[Stagnation]\nspecies_fitness_func = mode\n"},
		{"dropout", "[Train]\ndropout = 1\n"},
		{"rate policy", "[Train]\nrate_policy = COSINE\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := neat.LoadConfig(writeFile(t, "config.ini", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config error")
		})
	}
}

func TestConfigEvolveOptions(t *testing.T) {
	config := neat.DefaultConfig()
	config.Evolve.Iterations = 7
	config.Evolve.Growth = 0

	opts, err := config.EvolveOptions()
	require.NoError(t, err)
	assert.NotNil(t, opts.Factory)
	assert.Equal(t, 7, opts.Iterations)
	require.NotNil(t, opts.Growth)
	assert.Zero(t, *opts.Growth)
	assert.Equal(t, methods.MSE.Name, opts.Cost.Name)
}
