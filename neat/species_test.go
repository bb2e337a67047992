package neat_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evonet/neat"
	"github.com/baldhumanity/evonet/network"
)

func newNetwork(t *testing.T, seed int64, input, output int) *network.Network {
	t.Helper()
	n, err := network.New(input, output, network.WithRand(rand.New(rand.NewSource(seed))))
	require.NoError(t, err)
	return n
}

// shifted returns a copy of n with every connection weight moved by delta.
func shifted(n *network.Network, delta float64) *network.Network {
	c := n.Clone()
	for _, conn := range c.Connections() {
		conn.Weight += delta
	}
	return c
}

func TestStatFunctions(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.Equal(t, 2.5, neat.Mean(values))
	assert.Equal(t, 10.0, neat.Sum(values))
	assert.Equal(t, 4.0, neat.MaxFloat(values))
	assert.Equal(t, 1.0, neat.MinFloat(values))
	assert.Equal(t, 2.5, neat.Median(values))
	assert.Equal(t, 3.0, neat.Median([]float64{5, 3, 1}))
	assert.InDelta(t, math.Sqrt(5.0/3.0), neat.Stdev(values), 1e-12)

	assert.Zero(t, neat.Mean(nil))
	assert.Zero(t, neat.Stdev([]float64{1}))
	assert.True(t, math.IsInf(neat.MaxFloat(nil), -1))
	assert.True(t, math.IsInf(neat.MinFloat(nil), 1))
	assert.True(t, math.IsNaN(neat.Median(nil)))

	for _, name := range []string{"mean", "stdev", "sum", "max", "min", "median"} {
		assert.Contains(t, neat.StatFunctions, name)
	}
}

func TestDistance(t *testing.T) {
	config := &neat.DefaultConfig().Species
	a := newNetwork(t, 1, 2, 1)

	assert.Zero(t, neat.Distance(a, a.Clone(), config))

	// Both connections match and differ by one.
	b := shifted(a, 1)
	assert.InDelta(t, config.WeightCoefficient*1.0, neat.Distance(a, b, config), 1e-12)

	// A gated copy adds one to the matching gene.
	c := a.Clone()
	require.NoError(t, c.Gate(c.Nodes()[2], c.Connections()[0]))
	assert.InDelta(t, config.WeightCoefficient*0.5, neat.Distance(a, c, config), 1e-12)

	// An extra self-connection is a disjoint gene among three.
	d := a.Clone()
	_, err := d.Connect(d.Nodes()[2], d.Nodes()[2])
	require.NoError(t, err)
	assert.InDelta(t, config.DisjointCoefficient/3, neat.Distance(a, d, config), 1e-12)
	assert.Equal(t, neat.Distance(a, d, config), neat.Distance(d, a, config))
}

func TestSpeciate(t *testing.T) {
	config := &neat.DefaultConfig().Species
	config.CompatibilityThreshold = 1.0
	base := newNetwork(t, 1, 2, 1)

	var population, groupA, groupB []*network.Network
	for range 3 {
		groupA = append(groupA, base.Clone())
		groupB = append(groupB, shifted(base, 10))
	}
	population = append(population, groupA...)
	population = append(population, groupB...)

	ss := neat.NewSpeciesSet(config, nil)
	ss.Speciate(population, 0)
	require.Len(t, ss.Species, 2)

	sidA, ok := ss.GetSpeciesID(groupA[0])
	require.True(t, ok)
	sidB, ok := ss.GetSpeciesID(groupB[0])
	require.True(t, ok)
	assert.NotEqual(t, sidA, sidB)
	for i := range 3 {
		sid, _ := ss.GetSpeciesID(groupA[i])
		assert.Equal(t, sidA, sid)
		sid, _ = ss.GetSpeciesID(groupB[i])
		assert.Equal(t, sidB, sid)
	}
	sp, ok := ss.GetSpecies(groupB[2])
	require.True(t, ok)
	assert.Len(t, sp.Members, 3)

	// A new generation close to the old representatives keeps the keys.
	next := []*network.Network{shifted(base, 0.1), shifted(base, 10.1), base.Clone()}
	ss.Speciate(next, 1)
	require.Len(t, ss.Species, 2)
	sid, _ := ss.GetSpeciesID(next[0])
	assert.Equal(t, sidA, sid)
	sid, _ = ss.GetSpeciesID(next[1])
	assert.Equal(t, sidB, sid)
	assert.Equal(t, 0, ss.Species[sidA].Created)
	assert.Equal(t, 3, ss.Indexer)

	ss.Speciate(nil, 2)
	assert.Empty(t, ss.Species)
}

func TestStagnation(t *testing.T) {
	config := neat.DefaultConfig()
	config.Stagnation.MaxStagnation = 2
	config.Stagnation.SpeciesElitism = 1
	stagnation, err := neat.NewStagnation(&config.Stagnation, nil)
	require.NoError(t, err)

	weak := newNetwork(t, 1, 2, 1)
	weak.Score = -2
	strong := newNetwork(t, 2, 2, 1)
	strong.Score = -1

	ss := neat.NewSpeciesSet(&config.Species, nil)
	ss.Species[1] = neat.NewSpecies(1, 0)
	ss.Species[1].Update(weak, []*network.Network{weak})
	ss.Species[2] = neat.NewSpecies(2, 0)
	ss.Species[2].Update(strong, []*network.Network{strong})

	for generation := range 2 {
		for _, info := range stagnation.Update(ss, generation) {
			assert.False(t, info.IsStagnant, "generation %d", generation)
		}
	}

	infos := stagnation.Update(ss, 2)
	require.Len(t, infos, 2)
	assert.Equal(t, 1, infos[0].SpeciesID)
	assert.True(t, infos[0].IsStagnant)
	// The fittest species is protected by species elitism.
	assert.Equal(t, 2, infos[1].SpeciesID)
	assert.False(t, infos[1].IsStagnant)
	assert.Equal(t, []float64{-1, -1, -1}, ss.Species[2].FitnessHistory)

	config.Stagnation.SpeciesFitnessFunc = "mode"
	_, err = neat.NewStagnation(&config.Stagnation, nil)
	assert.Error(t, err)
}
