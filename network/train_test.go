package network_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evonet/methods"
	"github.com/baldhumanity/evonet/network"
)

var xor = network.Dataset{
	{Input: []float64{0, 0}, Output: []float64{0}},
	{Input: []float64{0, 1}, Output: []float64{1}},
	{Input: []float64{1, 0}, Output: []float64{1}},
	{Input: []float64{1, 1}, Output: []float64{0}},
}

func TestPropagateLearningRule(t *testing.T) {
	n, err := network.New(1, 1, seeded(1))
	require.NoError(t, err)
	c := n.Connections()[0]
	out := n.Nodes()[1]
	c.Weight, out.Bias = 0.5, 0.1

	x, target, rate := 0.8, 1.0, 0.3
	got, err := n.Activate([]float64{x})
	require.NoError(t, err)

	o := methods.Logistic.Apply(0.5)
	require.InDelta(t, o, got[0], 1e-12)
	responsibility := (target - o) * o * (1 - o)

	require.NoError(t, n.Propagate(rate, 0, true, []float64{target}))
	assert.InDelta(t, 0.5+rate*responsibility*x, c.Weight, 1e-12)
	assert.InDelta(t, 0.1+rate*responsibility, out.Bias, 1e-12)
	assert.InDelta(t, responsibility, out.Responsibility(), 1e-12)
}

func TestPropagateAccumulatesUntilUpdate(t *testing.T) {
	n, err := network.New(1, 1, seeded(1))
	require.NoError(t, err)
	c := n.Connections()[0]
	c.Weight = 0.5
	bias := n.Nodes()[1].Bias

	got, err := n.Activate([]float64{1})
	require.NoError(t, err)
	o := got[0]
	delta := 0.1 * (1 - o) * o * (1 - o)

	require.NoError(t, n.Propagate(0.1, 0, false, []float64{1}))
	require.NoError(t, n.Propagate(0.1, 0, false, []float64{1}))
	assert.Equal(t, 0.5, c.Weight)

	require.NoError(t, n.Propagate(0.1, 0, true, []float64{1}))
	assert.InDelta(t, 0.5+3*delta, c.Weight, 1e-12)
	assert.InDelta(t, bias+3*delta, n.Nodes()[1].Bias, 1e-12)
}

func TestTrainXOR(t *testing.T) {
	var (
		res       network.TrainResult
		converged bool
	)
	for seed := int64(1); seed <= 5 && !converged; seed++ {
		n := perceptron(t, seed, 2, 5, 1)
		var err error
		res, err = n.Train(xor, network.TrainOptions{
			Error:      0.05,
			Iterations: 2000,
			Rate:       0.3,
			Momentum:   0.9,
			Shuffle:    true,
		})
		require.NoError(t, err)
		converged = res.Error <= 0.05
	}
	assert.True(t, converged, "no seed converged, last error %f", res.Error)
	assert.Positive(t, res.Iterations)
	assert.LessOrEqual(t, res.Iterations, 2000)
}

func TestTrainRunsAllIterationsWithoutErrorTarget(t *testing.T) {
	n := perceptron(t, 1, 2, 3, 1)

	var events []network.ScheduleEvent
	res, err := n.Train(xor, network.TrainOptions{
		Iterations: 10,
		Schedule: &network.Schedule{
			Iterations: 5,
			Func:       func(e network.ScheduleEvent) { events = append(events, e) },
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Iterations)
	require.Len(t, events, 2)
	assert.Equal(t, 5, events[0].Iteration)
	assert.Equal(t, 10, events[1].Iteration)
	assert.Equal(t, res.Error, events[1].Error)
}

func TestTrainCrossValidate(t *testing.T) {
	n := perceptron(t, 2, 2, 3, 1)
	res, err := n.Train(xor, network.TrainOptions{
		Iterations:    5,
		CrossValidate: &network.CrossValidate{TestSize: 0.25},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Iterations)

	held, err := n.Test(xor[3:], methods.MSE)
	require.NoError(t, err)
	assert.InDelta(t, held.Error, res.Error, 1e-12)
}

func TestTrainDropoutScalesMasks(t *testing.T) {
	n := perceptron(t, 3, 2, 4, 1)
	_, err := n.Train(xor, network.TrainOptions{Iterations: 3, Dropout: 0.5})
	require.NoError(t, err)

	assert.Equal(t, 0.5, n.Dropout)
	for _, node := range n.Nodes() {
		switch node.Type {
		case network.Hidden:
			assert.Equal(t, 0.5, node.Mask())
		default:
			assert.Equal(t, 1.0, node.Mask())
		}
	}
}

func TestTrainErrors(t *testing.T) {
	n := perceptron(t, 1, 2, 2, 1)

	_, err := n.Train(nil, network.TrainOptions{Iterations: 1})
	require.ErrorIs(t, err, network.ErrEmptyDataset)

	_, err = n.Train(xor, network.TrainOptions{Iterations: 1, BatchSize: 5})
	require.ErrorIs(t, err, network.ErrBatchSize)

	_, err = n.Train(network.Dataset{{Input: []float64{1}, Output: []float64{1}}}, network.TrainOptions{Iterations: 1})
	require.ErrorIs(t, err, network.ErrInputSizeMismatch)

	_, err = n.Test(nil, methods.MSE)
	require.ErrorIs(t, err, network.ErrEmptyDataset)
}

func TestTestLeavesWeightsUntouched(t *testing.T) {
	n := perceptron(t, 4, 2, 3, 1)
	before := n.Record()

	res, err := n.Test(xor, methods.MSE)
	require.NoError(t, err)
	assert.Positive(t, res.Error)
	assert.Equal(t, before, n.Record())
}

func TestTrainWithBatchesAndRatePolicy(t *testing.T) {
	or := network.Dataset{
		{Input: []float64{0, 0}, Output: []float64{0}},
		{Input: []float64{0, 1}, Output: []float64{1}},
		{Input: []float64{1, 0}, Output: []float64{1}},
		{Input: []float64{1, 1}, Output: []float64{1}},
	}
	n := perceptron(t, 5, 2, 3, 1)
	initial, err := n.Test(or, methods.MSE)
	require.NoError(t, err)

	res, err := n.Train(or, network.TrainOptions{
		Iterations: 300,
		Rate:       0.5,
		BatchSize:  2,
		Cost:       methods.CrossEntropy,
		RatePolicy: methods.StepRate(0.9, 100),
	})
	require.NoError(t, err)
	assert.Equal(t, 300, res.Iterations)

	after, err := n.Test(or, methods.MSE)
	require.NoError(t, err)
	assert.Less(t, after.Error, initial.Error)
}
