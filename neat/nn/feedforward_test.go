package nn_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evonet/architect"
	"github.com/baldhumanity/evonet/methods"
	"github.com/baldhumanity/evonet/neat/nn"
	"github.com/baldhumanity/evonet/network"
)

func TestFeedForwardMatchesNetwork(t *testing.T) {
	n, err := architect.Perceptron([]int{3, 5, 4, 2}, network.WithRand(rand.New(rand.NewSource(3))))
	require.NoError(t, err)
	for range 30 {
		require.NoError(t, n.Mutate(methods.AddConn))
		require.NoError(t, n.Mutate(methods.ModActivation))
	}
	require.NoError(t, n.Mutate(methods.AddNode))

	ff, err := nn.CreateFeedForwardNetwork(n)
	require.NoError(t, err)
	require.Len(t, ff.InputKeys, 3)
	require.Len(t, ff.OutputKeys, 2)

	for _, in := range [][]float64{{0, 0, 0}, {1, -1, 0.5}, {0.2, 0.3, 0.9}} {
		want, err := n.Activate(in)
		require.NoError(t, err)
		got, err := ff.Activate(in)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, got, 1e-12)
	}
}

func TestFeedForwardRejectsRecurrentNetworks(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	selfConn, err := network.New(2, 1, network.WithRand(rng))
	require.NoError(t, err)
	require.NoError(t, selfConn.Mutate(methods.AddNode))
	require.NoError(t, selfConn.Mutate(methods.AddSelfConn))
	_, err = nn.CreateFeedForwardNetwork(selfConn)
	assert.ErrorIs(t, err, nn.ErrNotFeedForward)

	gated, err := network.New(2, 1, network.WithRand(rng))
	require.NoError(t, err)
	require.NoError(t, gated.Mutate(methods.AddNode))
	require.NoError(t, gated.Mutate(methods.AddGate))
	_, err = nn.CreateFeedForwardNetwork(gated)
	assert.ErrorIs(t, err, nn.ErrNotFeedForward)

	back, err := network.New(2, 1, network.WithRand(rng))
	require.NoError(t, err)
	require.NoError(t, back.Mutate(methods.AddNode))
	require.NoError(t, back.Mutate(methods.AddBackConn))
	_, err = nn.CreateFeedForwardNetwork(back)
	assert.ErrorIs(t, err, nn.ErrNotFeedForward)
}

func TestFeedForwardInputSize(t *testing.T) {
	n, err := network.New(2, 1, network.WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)
	ff, err := nn.CreateFeedForwardNetwork(n)
	require.NoError(t, err)

	_, err = ff.Activate([]float64{1})
	assert.ErrorIs(t, err, nn.ErrInputSizeMismatch)
}
