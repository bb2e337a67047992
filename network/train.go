package network

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/baldhumanity/evonet/methods"
)

// Sample is one input/target pair.
type Sample struct {
	Input  []float64 `json:"input"`
	Output []float64 `json:"output"`
}

// Dataset is an ordered list of samples.
type Dataset []Sample

// Activate runs a forward pass and returns the output activations.
func (n *Network) Activate(input []float64) ([]float64, error) {
	return n.activate(input, false)
}

func (n *Network) activate(input []float64, training bool) ([]float64, error) {
	if len(input) != n.Input {
		return nil, fmt.Errorf("activate: got %d values for %d inputs: %w", len(input), n.Input, ErrInputSizeMismatch)
	}
	output := make([]float64, 0, n.Output)
	for i, node := range n.nodes {
		switch node.Type {
		case Input:
			node.ActivateInput(input[i])
		case Output:
			output = append(output, node.Activate())
		default:
			if training {
				node.mask = 1
				if n.rng.Float64() < n.Dropout {
					node.mask = 0
				}
			}
			node.Activate()
		}
	}
	return output, nil
}

// Propagate backpropagates target through the network after an Activate
// call. Weight changes are accumulated and only committed when update is
// true. The output error uses the cost of the last Train call, MSE by
// default.
func (n *Network) Propagate(rate, momentum float64, update bool, target []float64) error {
	if len(target) != n.Output {
		return fmt.Errorf("propagate: got %d targets for %d outputs: %w", len(target), n.Output, ErrTargetSizeMismatch)
	}

	t := len(target)
	for i := len(n.nodes) - 1; i >= len(n.nodes)-n.Output; i-- {
		t--
		n.nodes[i].PropagateTarget(rate, momentum, update, target[t], n.cost)
	}
	for i := len(n.nodes) - n.Output - 1; i >= n.Input; i-- {
		n.nodes[i].Propagate(rate, momentum, update)
	}
	return nil
}

// CrossValidate holds out the tail of the training set.
type CrossValidate struct {
	// TestSize is the held-out fraction, in (0, 1).
	TestSize float64
	// TestError stops training once the held-out error drops to it.
	TestError float64
}

// ScheduleEvent is passed to a schedule callback.
type ScheduleEvent struct {
	Error     float64
	Iteration int
}

// Schedule calls Func every Iterations iterations.
type Schedule struct {
	Iterations int
	Func       func(ScheduleEvent)
}

// TrainOptions configures Train. Zero values select the defaults noted on
// each field.
type TrainOptions struct {
	// Error is the target mean cost. When zero and Iterations is set the
	// full iteration budget is used; when both are zero it defaults to 0.05.
	Error float64
	// Iterations caps the number of epochs; 0 means unbounded.
	Iterations int
	// Rate is the base learning rate (0.3).
	Rate     float64
	Momentum float64
	// BatchSize commits weight updates every BatchSize samples (1).
	BatchSize int
	Shuffle   bool
	// Dropout, when non-zero, replaces the network's dropout rate.
	Dropout float64
	// Clear resets recurrent state after every epoch and after training.
	Clear bool
	// Cost defaults to MSE.
	Cost methods.Cost
	// RatePolicy defaults to a fixed rate.
	RatePolicy    methods.RatePolicy
	CrossValidate *CrossValidate
	Schedule      *Schedule
	// Log writes a progress line every Log iterations.
	Log int
}

// TrainResult summarizes a Train call.
type TrainResult struct {
	Error      float64
	Iterations int
	Elapsed    time.Duration
}

// TestResult summarizes a Test call.
type TestResult struct {
	Error   float64
	Elapsed time.Duration
}

// Train adapts the weights to set by repeated activation and propagation.
func (n *Network) Train(set Dataset, opts TrainOptions) (TrainResult, error) {
	if len(set) == 0 {
		return TrainResult{}, fmt.Errorf("train: %w", ErrEmptyDataset)
	}
	if len(set[0].Input) != n.Input || len(set[0].Output) != n.Output {
		return TrainResult{}, fmt.Errorf("train: dataset shape %dx%d for network %dx%d: %w",
			len(set[0].Input), len(set[0].Output), n.Input, n.Output, ErrInputSizeMismatch)
	}

	targetError := opts.Error
	switch {
	case targetError == 0 && opts.Iterations > 0:
		targetError = -1
	case targetError == 0:
		n.logger.Warn("no error or iteration limit given, training until error <= 0.05")
		targetError = 0.05
	}
	rate := opts.Rate
	if rate == 0 {
		rate = 0.3
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	if batchSize > len(set) {
		return TrainResult{}, fmt.Errorf("train: batch size %d for %d samples: %w", batchSize, len(set), ErrBatchSize)
	}
	cost := opts.Cost
	if cost.Fn == nil {
		cost = methods.MSE
	}
	policy := opts.RatePolicy
	if policy.Fn == nil {
		policy = methods.FixedRate()
	}

	start := time.Now()
	if opts.Dropout != 0 {
		n.Dropout = opts.Dropout
	}
	n.cost = cost

	trainSet, testSet := set, Dataset(nil)
	if cv := opts.CrossValidate; cv != nil {
		numTrain := int(math.Ceil((1 - cv.TestSize) * float64(len(set))))
		trainSet, testSet = set[:numTrain], set[numTrain:]
	}
	if opts.Shuffle {
		trainSet = append(Dataset(nil), trainSet...)
	}

	var (
		iteration  int
		errorValue = 1.0
		testError  = 1.0
	)
	for errorValue > targetError && (opts.Iterations == 0 || iteration < opts.Iterations) {
		if opts.CrossValidate != nil && testError <= opts.CrossValidate.TestError {
			break
		}
		iteration++

		currentRate := policy.Rate(rate, iteration)
		trainError, err := n.trainEpoch(trainSet, batchSize, currentRate, opts.Momentum, cost)
		if err != nil {
			return TrainResult{}, err
		}
		if opts.Clear {
			n.Clear()
		}

		if opts.CrossValidate != nil && len(testSet) > 0 {
			res, err := n.Test(testSet, cost)
			if err != nil {
				return TrainResult{}, err
			}
			testError = res.Error
			if opts.Clear {
				n.Clear()
			}
			errorValue = testError
		} else {
			errorValue = trainError
		}

		if opts.Shuffle {
			n.shuffle(trainSet)
		}
		if opts.Log > 0 && iteration%opts.Log == 0 {
			n.logger.Info("training",
				slog.Int("iteration", iteration),
				slog.Float64("error", errorValue),
				slog.Float64("rate", currentRate))
		}
		if s := opts.Schedule; s != nil && s.Func != nil && s.Iterations > 0 && iteration%s.Iterations == 0 {
			s.Func(ScheduleEvent{Error: errorValue, Iteration: iteration})
		}
	}

	if opts.Clear {
		n.Clear()
	}
	n.applyDropoutScale()

	return TrainResult{
		Error:      errorValue,
		Iterations: iteration,
		Elapsed:    time.Since(start),
	}, nil
}

func (n *Network) trainEpoch(set Dataset, batchSize int, rate, momentum float64, cost methods.Cost) (float64, error) {
	total := 0.0
	for i, sample := range set {
		update := (i+1)%batchSize == 0 || i+1 == len(set)
		output, err := n.activate(sample.Input, true)
		if err != nil {
			return 0, err
		}
		if err := n.Propagate(rate, momentum, update, sample.Output); err != nil {
			return 0, err
		}
		total += cost.Eval(sample.Output, output)
	}
	return total / float64(len(set)), nil
}

// Test computes the mean cost of set without changing any weight.
func (n *Network) Test(set Dataset, cost methods.Cost) (TestResult, error) {
	if len(set) == 0 {
		return TestResult{}, fmt.Errorf("test: %w", ErrEmptyDataset)
	}
	if cost.Fn == nil {
		cost = methods.MSE
	}
	start := time.Now()
	n.applyDropoutScale()

	total := 0.0
	for _, sample := range set {
		output, err := n.Activate(sample.Input)
		if err != nil {
			return TestResult{}, err
		}
		total += cost.Eval(sample.Output, output)
	}
	return TestResult{
		Error:   total / float64(len(set)),
		Elapsed: time.Since(start),
	}, nil
}

// applyDropoutScale scales hidden activations by the keep probability so
// inference sees the same expected input as training did.
func (n *Network) applyDropoutScale() {
	if n.Dropout == 0 {
		return
	}
	for _, node := range n.nodes {
		if node.Type == Hidden || node.Type == Constant {
			node.mask = 1 - n.Dropout
		}
	}
}

// shuffle is an in-place Fisher-Yates shuffle driven by the network's
// random source.
func (n *Network) shuffle(set Dataset) {
	for i := len(set) - 1; i > 0; i-- {
		j := n.rng.Intn(i + 1)
		set[i], set[j] = set[j], set[i]
	}
}
