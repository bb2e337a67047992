package methods

import (
	"errors"
	"fmt"
	"math"
)

// ErrRatePolicyNotFound is returned when a rate policy name is not registered.
var ErrRatePolicyNotFound = errors.New("rate policy not found")

// RatePolicy derives the learning rate used in a training iteration from the
// base rate.
type RatePolicy struct {
	Name string
	Fn   func(baseRate float64, iteration int) float64
}

// Rate evaluates the policy.
func (p RatePolicy) Rate(baseRate float64, iteration int) float64 {
	if p.Fn == nil {
		return baseRate
	}
	return p.Fn(baseRate, iteration)
}

// FixedRate keeps the base rate for every iteration.
func FixedRate() RatePolicy {
	return RatePolicy{
		Name: "FIXED",
		Fn:   func(base float64, _ int) float64 { return base },
	}
}

// StepRate multiplies the rate by gamma every stepSize iterations.
func StepRate(gamma float64, stepSize int) RatePolicy {
	if stepSize <= 0 {
		stepSize = 1
	}
	return RatePolicy{
		Name: "STEP",
		Fn: func(base float64, iteration int) float64 {
			return base * math.Pow(gamma, math.Floor(float64(iteration)/float64(stepSize)))
		},
	}
}

// ExpRate decays the rate by gamma every iteration.
func ExpRate(gamma float64) RatePolicy {
	return RatePolicy{
		Name: "EXP",
		Fn: func(base float64, iteration int) float64 {
			return base * math.Pow(gamma, float64(iteration))
		},
	}
}

// InvRate decays the rate as base * (1 + gamma*iteration)^-power.
func InvRate(gamma, power float64) RatePolicy {
	return RatePolicy{
		Name: "INV",
		Fn: func(base float64, iteration int) float64 {
			return base * math.Pow(1+gamma*float64(iteration), -power)
		},
	}
}

// GetRatePolicy returns a policy by name using its default parameters.
func GetRatePolicy(name string) (RatePolicy, error) {
	switch name {
	case "", "FIXED":
		return FixedRate(), nil
	case "STEP":
		return StepRate(0.9, 100), nil
	case "EXP":
		return ExpRate(0.999), nil
	case "INV":
		return InvRate(0.001, 2), nil
	}
	return RatePolicy{}, fmt.Errorf("%w: %s", ErrRatePolicyNotFound, name)
}
