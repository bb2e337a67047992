package methods

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivationDerivativesMatchFiniteDifferences(t *testing.T) {
	const h = 1e-6
	for _, a := range Activations {
		a := a
		t.Run(a.Name, func(t *testing.T) {
			for _, x := range []float64{-0.7, 0.3, 1.2} {
				numeric := (a.Apply(x+h) - a.Apply(x-h)) / (2 * h)
				assert.InDelta(t, numeric, a.Derive(x), 1e-4, "x=%v", x)
			}
		})
	}
}

func TestGetActivation(t *testing.T) {
	a, err := GetActivation("TANH")
	require.NoError(t, err)
	assert.True(t, a.Is(Tanh))
	assert.InDelta(t, math.Tanh(0.5), a.Apply(0.5), 1e-12)

	_, err = GetActivation("NOPE")
	require.ErrorIs(t, err, ErrActivationNotFound)

	_, err = GetActivations([]string{"RELU", "NOPE"})
	require.ErrorIs(t, err, ErrActivationNotFound)
}

func TestActivationCatalogNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range Activations {
		assert.False(t, seen[a.Name], "duplicate %s", a.Name)
		seen[a.Name] = true
	}
	assert.Len(t, seen, 15)
}

func TestCostValues(t *testing.T) {
	target := []float64{1, 0}
	output := []float64{0.5, 0.5}

	tests := []struct {
		cost Cost
		want float64
	}{
		{MSE, 0.25},
		{MAE, 0.5},
		{Binary, 2},
		{Hinge, 0.75},
		{CrossEntropy, math.Log(2)},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tt.cost.Eval(target, output), 1e-9, tt.cost.Name)
	}
}

func TestCrossEntropyGradientCancelsLogisticDerivative(t *testing.T) {
	for _, x := range []float64{-2, -0.1, 0.4, 3} {
		o := Logistic.Apply(x)
		for _, target := range []float64{0, 1} {
			got := CrossEntropy.Gradient(target, o) * Logistic.Derive(x)
			assert.InDelta(t, target-o, got, 1e-9)
		}
	}
}

func TestGetCost(t *testing.T) {
	c, err := GetCost("MSE")
	require.NoError(t, err)
	assert.Equal(t, "MSE", c.Name)

	_, err = GetCost("L7")
	require.ErrorIs(t, err, ErrCostNotFound)
}

func TestRatePolicies(t *testing.T) {
	assert.Equal(t, 0.3, FixedRate().Rate(0.3, 1000))
	assert.InDelta(t, 0.3*0.9, StepRate(0.9, 100).Rate(0.3, 150), 1e-12)
	assert.InDelta(t, 0.3, StepRate(0.9, 100).Rate(0.3, 99), 1e-12)
	assert.InDelta(t, 0.3*math.Pow(0.999, 10), ExpRate(0.999).Rate(0.3, 10), 1e-12)
	assert.InDelta(t, 0.3/math.Pow(1.1, 2), InvRate(0.001, 2).Rate(0.3, 100), 1e-12)

	p, err := GetRatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, "FIXED", p.Name)

	_, err = GetRatePolicy("COSINE")
	require.ErrorIs(t, err, ErrRatePolicyNotFound)

	assert.Equal(t, 0.5, RatePolicy{}.Rate(0.5, 3))
}

func TestMutationLookup(t *testing.T) {
	m, err := GetMutation("SUB_NODE")
	require.NoError(t, err)
	assert.Equal(t, SubNodeKind, m.Kind)
	assert.True(t, m.KeepGates)

	ms, err := GetMutations([]string{"ADD_NODE", "MOD_WEIGHT"})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, -1.0, ms[1].Min)

	_, err = GetMutation("GROW")
	require.ErrorIs(t, err, ErrMutationNotFound)

	group, err := GetMutationGroup("FFW")
	require.NoError(t, err)
	for _, m := range group {
		assert.NotContains(t, []MutationKind{AddGateKind, AddSelfConnKind, AddBackConnKind}, m.Kind)
	}
	assert.Len(t, All, 14)
	assert.Equal(t, "MutationKind(99)", MutationKind(99).String())
}

func TestSelectionLookup(t *testing.T) {
	s, err := GetSelection("TOURNAMENT")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Size)

	_, err = GetSelection("ROULETTE")
	require.ErrorIs(t, err, ErrSelectionNotFound)
}
