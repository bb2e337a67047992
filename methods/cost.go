package methods

import (
	"errors"
	"fmt"
	"math"
)

// ErrCostNotFound is returned when a cost name is not registered.
var ErrCostNotFound = errors.New("cost not found")

const costEpsilon = 1e-15

// Cost measures the error of an output vector against its target.
//
// Fn aggregates a whole sample. Gradient is the per-component error signal
// an output node starts backpropagation from; it points from the output
// towards the target, so for MSE it is simply target - output.
type Cost struct {
	Name     string
	Fn       func(target, output []float64) float64
	Gradient func(target, output float64) float64
}

// Eval computes the cost of one sample.
func (c Cost) Eval(target, output []float64) float64 {
	return c.Fn(target, output)
}

var (
	CrossEntropy = Cost{
		Name: "CROSS_ENTROPY",
		Fn: func(target, output []float64) float64 {
			e := 0.0
			for i, o := range output {
				o = clampOpen(o)
				e -= target[i]*math.Log(o) + (1-target[i])*math.Log(1-o)
			}
			return e / float64(len(output))
		},
		Gradient: func(t, o float64) float64 {
			o = clampOpen(o)
			return (t - o) / (o * (1 - o))
		},
	}
	MSE = Cost{
		Name: "MSE",
		Fn: func(target, output []float64) float64 {
			e := 0.0
			for i, o := range output {
				d := target[i] - o
				e += d * d
			}
			return e / float64(len(output))
		},
		Gradient: func(t, o float64) float64 { return t - o },
	}
	Binary = Cost{
		Name: "BINARY",
		Fn: func(target, output []float64) float64 {
			misses := 0.0
			for i, o := range output {
				if math.Round(target[i]*2) != math.Round(o*2) {
					misses++
				}
			}
			return misses
		},
		Gradient: func(t, o float64) float64 { return t - o },
	}
	MAE = Cost{
		Name: "MAE",
		Fn: func(target, output []float64) float64 {
			e := 0.0
			for i, o := range output {
				e += math.Abs(target[i] - o)
			}
			return e / float64(len(output))
		},
		Gradient: func(t, o float64) float64 { return sign(t - o) },
	}
	MAPE = Cost{
		Name: "MAPE",
		Fn: func(target, output []float64) float64 {
			e := 0.0
			for i, o := range output {
				e += math.Abs((o - target[i]) / math.Max(target[i], costEpsilon))
			}
			return e / float64(len(output))
		},
		Gradient: func(t, o float64) float64 {
			return sign(t-o) / math.Max(t, costEpsilon)
		},
	}
	MSLE = Cost{
		Name: "MSLE",
		Fn: func(target, output []float64) float64 {
			e := 0.0
			for i, o := range output {
				d := math.Log(math.Max(target[i], costEpsilon)) - math.Log(math.Max(o, costEpsilon))
				e += d * d
			}
			return e / float64(len(output))
		},
		Gradient: func(t, o float64) float64 {
			o = math.Max(o, costEpsilon)
			return (math.Log(math.Max(t, costEpsilon)) - math.Log(o)) / o
		},
	}
	Hinge = Cost{
		Name: "HINGE",
		Fn: func(target, output []float64) float64 {
			e := 0.0
			for i, o := range output {
				e += math.Max(0, 1-target[i]*o)
			}
			return e / float64(len(output))
		},
		Gradient: func(t, o float64) float64 {
			if t*o < 1 {
				return t
			}
			return 0
		},
	}
)

// Costs lists the built-in cost functions.
var Costs = []Cost{CrossEntropy, MSE, Binary, MAE, MAPE, MSLE, Hinge}

// GetCost retrieves a cost function by name.
func GetCost(name string) (Cost, error) {
	for _, c := range Costs {
		if c.Name == name {
			return c, nil
		}
	}
	return Cost{}, fmt.Errorf("%w: %s", ErrCostNotFound, name)
}

func clampOpen(x float64) float64 {
	return math.Min(math.Max(x, costEpsilon), 1-costEpsilon)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
