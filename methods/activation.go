package methods

import (
	"errors"
	"fmt"
	"math"
)

// ErrActivationNotFound is returned when an activation name is not registered.
var ErrActivationNotFound = errors.New("activation not found")

// Activation is a named squashing function together with its derivative.
// Nodes refer to activations by value and networks serialize them by Name.
type Activation struct {
	Name       string
	Fn         func(x float64) float64
	Derivative func(x float64) float64
}

// Apply evaluates the squashing function.
func (a Activation) Apply(x float64) float64 {
	return a.Fn(x)
}

// Derive evaluates the derivative of the squashing function at x.
func (a Activation) Derive(x float64) float64 {
	return a.Derivative(x)
}

// Is reports whether two activations are the same catalog entry.
func (a Activation) Is(other Activation) bool {
	return a.Name == other.Name
}

const (
	seluAlpha = 1.6732632423543772848170429916717
	seluScale = 1.0507009873554804934193349852946
)

var (
	Logistic = Activation{
		Name: "LOGISTIC",
		Fn:   logistic,
		Derivative: func(x float64) float64 {
			fx := logistic(x)
			return fx * (1 - fx)
		},
	}
	Tanh = Activation{
		Name: "TANH",
		Fn:   math.Tanh,
		Derivative: func(x float64) float64 {
			t := math.Tanh(x)
			return 1 - t*t
		},
	}
	Identity = Activation{
		Name:       "IDENTITY",
		Fn:         func(x float64) float64 { return x },
		Derivative: func(float64) float64 { return 1 },
	}
	Step = Activation{
		Name: "STEP",
		Fn: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
		Derivative: func(float64) float64 { return 0 },
	}
	ReLU = Activation{
		Name: "RELU",
		Fn:   func(x float64) float64 { return math.Max(0, x) },
		Derivative: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}
	Softsign = Activation{
		Name: "SOFTSIGN",
		Fn:   func(x float64) float64 { return x / (1 + math.Abs(x)) },
		Derivative: func(x float64) float64 {
			d := 1 + math.Abs(x)
			return 1 / (d * d)
		},
	}
	Sinusoid = Activation{
		Name:       "SINUSOID",
		Fn:         math.Sin,
		Derivative: math.Cos,
	}
	Gaussian = Activation{
		Name: "GAUSSIAN",
		Fn:   func(x float64) float64 { return math.Exp(-x * x) },
		Derivative: func(x float64) float64 {
			return -2 * x * math.Exp(-x*x)
		},
	}
	BentIdentity = Activation{
		Name: "BENT_IDENTITY",
		Fn: func(x float64) float64 {
			return (math.Sqrt(x*x+1)-1)/2 + x
		},
		Derivative: func(x float64) float64 {
			return x/(2*math.Sqrt(x*x+1)) + 1
		},
	}
	Bipolar = Activation{
		Name: "BIPOLAR",
		Fn: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return -1
		},
		Derivative: func(float64) float64 { return 0 },
	}
	BipolarSigmoid = Activation{
		Name: "BIPOLAR_SIGMOID",
		Fn:   func(x float64) float64 { return 2/(1+math.Exp(-x)) - 1 },
		Derivative: func(x float64) float64 {
			fx := 2/(1+math.Exp(-x)) - 1
			return (1 + fx) * (1 - fx) / 2
		},
	}
	HardTanh = Activation{
		Name: "HARD_TANH",
		Fn:   func(x float64) float64 { return math.Max(-1, math.Min(1, x)) },
		Derivative: func(x float64) float64 {
			if x > -1 && x < 1 {
				return 1
			}
			return 0
		},
	}
	Absolute = Activation{
		Name: "ABSOLUTE",
		Fn:   math.Abs,
		Derivative: func(x float64) float64 {
			if x < 0 {
				return -1
			}
			return 1
		},
	}
	Inverse = Activation{
		Name:       "INVERSE",
		Fn:         func(x float64) float64 { return 1 - x },
		Derivative: func(float64) float64 { return -1 },
	}
	SELU = Activation{
		Name: "SELU",
		Fn: func(x float64) float64 {
			if x > 0 {
				return x * seluScale
			}
			return (seluAlpha*math.Exp(x) - seluAlpha) * seluScale
		},
		Derivative: func(x float64) float64 {
			if x > 0 {
				return seluScale
			}
			return seluAlpha * math.Exp(x) * seluScale
		},
	}
)

// Activations lists every built-in activation in catalog order. It is also
// the default pool for MOD_ACTIVATION.
var Activations = []Activation{
	Logistic, Tanh, Identity, Step, ReLU, Softsign, Sinusoid, Gaussian,
	BentIdentity, Bipolar, BipolarSigmoid, HardTanh, Absolute, Inverse, SELU,
}

// activationRegistry maps catalog names to activations so configuration and
// serialized networks can refer to them by name.
var activationRegistry = func() map[string]Activation {
	m := make(map[string]Activation, len(Activations))
	for _, a := range Activations {
		m[a.Name] = a
	}
	return m
}()

// GetActivation retrieves an activation by name.
func GetActivation(name string) (Activation, error) {
	if a, ok := activationRegistry[name]; ok {
		return a, nil
	}
	return Activation{}, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
}

// GetActivations resolves a list of names, failing on the first unknown one.
func GetActivations(names []string) ([]Activation, error) {
	out := make([]Activation, 0, len(names))
	for _, name := range names {
		a, err := GetActivation(name)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
