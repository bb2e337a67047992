package network

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/baldhumanity/evonet/methods"
)

// FitnessFunc scores a genome; higher is better.
type FitnessFunc func(genome *Network) float64

// Evolver advances a population of networks one generation at a time.
// Evolve returns the fittest genome of the evaluated generation with its
// Score set.
type Evolver interface {
	Evolve() (*Network, error)
	Fittest() *Network
	Generation() int
}

// EvolverFactory builds an Evolver around a template genome. The template
// is a private copy the evolver may keep.
type EvolverFactory func(template *Network, fitness FitnessFunc) (Evolver, error)

// EvolveOptions configures Evolve.
type EvolveOptions struct {
	// Factory builds the evolver. Required.
	Factory EvolverFactory
	// Cost defaults to MSE.
	Cost methods.Cost
	// Amount is the number of test passes averaged per fitness evaluation.
	Amount int
	// Growth is the fitness penalty per node, connection and gate. Nil
	// selects 0.0001.
	Growth *float64
	// Iterations caps the number of generations; 0 means unbounded.
	Iterations int
	// Error is the target mean cost. When zero and Iterations is set all
	// generations run; when both are zero it defaults to 0.005.
	Error float64
	// Clear resets recurrent state before every evaluation.
	Clear    bool
	Log      int
	Schedule *Schedule
}

// EvolveResult summarizes an Evolve call. Error is the mean cost of the
// best genome found.
type EvolveResult struct {
	Error       float64
	Generations int
	Elapsed     time.Duration
}

const defaultGrowth = 0.0001

// Evolve searches for a better topology with a population seeded from n and
// replaces n's structure with the best genome found.
func (n *Network) Evolve(set Dataset, opts EvolveOptions) (EvolveResult, error) {
	if opts.Factory == nil {
		return EvolveResult{}, fmt.Errorf("evolve: %w", ErrNoEvolver)
	}
	if len(set) == 0 {
		return EvolveResult{}, fmt.Errorf("evolve: %w", ErrEmptyDataset)
	}
	if len(set[0].Input) != n.Input || len(set[0].Output) != n.Output {
		return EvolveResult{}, fmt.Errorf("evolve: dataset shape %dx%d for network %dx%d: %w",
			len(set[0].Input), len(set[0].Output), n.Input, n.Output, ErrInputSizeMismatch)
	}

	targetError := opts.Error
	switch {
	case targetError == 0 && opts.Iterations > 0:
		targetError = -1
	case targetError == 0:
		n.logger.Warn("no error or generation limit given, evolving until error <= 0.005")
		targetError = 0.005
	}
	growth := defaultGrowth
	if opts.Growth != nil {
		growth = *opts.Growth
	}
	amount := max(1, opts.Amount)
	cost := opts.Cost
	if cost.Fn == nil {
		cost = methods.MSE
	}

	start := time.Now()
	fitness := func(genome *Network) float64 {
		score := 0.0
		for i := 0; i < amount; i++ {
			if opts.Clear {
				genome.Clear()
			}
			res, err := genome.Test(set, cost)
			if err != nil {
				return math.Inf(-1)
			}
			score -= res.Error
		}
		score -= float64(genome.Size()) * growth
		if math.IsNaN(score) {
			score = math.Inf(-1)
		}
		return score / float64(amount)
	}

	evolver, err := opts.Factory(n.Clone(), fitness)
	if err != nil {
		return EvolveResult{}, fmt.Errorf("evolve: %w", err)
	}

	var (
		current     = math.Inf(-1)
		bestFitness = math.Inf(-1)
		bestError   = math.Inf(1)
		best        *Network
	)
	for current < -targetError && (opts.Iterations == 0 || evolver.Generation() < opts.Iterations) {
		fittest, err := evolver.Evolve()
		if err != nil {
			return EvolveResult{}, fmt.Errorf("evolve generation %d: %w", evolver.Generation(), err)
		}
		penalty := float64(fittest.Size()) * growth / float64(amount)
		current = fittest.Score + penalty
		if fittest.Score > bestFitness || best == nil {
			bestFitness = fittest.Score
			bestError = -current
			best = fittest
		}

		generation := evolver.Generation()
		if opts.Log > 0 && generation%opts.Log == 0 {
			n.logger.Info("evolving",
				slog.Int("generation", generation),
				slog.Float64("fitness", fittest.Score),
				slog.Float64("error", -current),
				slog.Int("size", fittest.Size()))
		}
		if s := opts.Schedule; s != nil && s.Func != nil && s.Iterations > 0 && generation%s.Iterations == 0 {
			s.Func(ScheduleEvent{Error: -current, Iteration: generation})
		}
	}

	if best != nil {
		n.adopt(best.Clone())
	}
	if opts.Clear {
		n.Clear()
	}
	return EvolveResult{
		Error:       bestError,
		Generations: evolver.Generation(),
		Elapsed:     time.Since(start),
	}, nil
}

// adopt takes over the structure of other, which must not be used
// afterwards.
func (n *Network) adopt(other *Network) {
	n.nodes = other.nodes
	n.connections = other.connections
	n.selfConns = other.selfConns
	n.gates = other.gates
	n.Dropout = other.Dropout
	n.Score = other.Score
	n.reindex()
}
