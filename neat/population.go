package neat

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/baldhumanity/evonet/network"
)

// ErrNoFitness is returned when a population has neither a per-genome nor a
// population-wide fitness function.
var ErrNoFitness = errors.New("population requires a fitness function")

// PopulationFitnessFunc scores a whole generation at once by setting the
// Score of every genome.
type PopulationFitnessFunc func(genomes []*network.Network)

// GenerationStats summarizes one evaluated generation.
type GenerationStats struct {
	Generation  int     `csv:"generation"`
	Best        float64 `csv:"best"`
	Mean        float64 `csv:"mean"`
	Stdev       float64 `csv:"stdev"`
	Species     int     `csv:"species"`
	Nodes       int     `csv:"nodes"`
	Connections int     `csv:"connections"`
	Gates       int     `csv:"gates"`
}

// Option configures a Population.
type Option func(*Population)

// WithLogger sets the structured logger. The template's logger is used by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Population) { p.logger = logger }
}

// WithRand sets the random source used for selection and mutation
// decisions. The template's source is used by default.
func WithRand(rng *rand.Rand) Option {
	return func(p *Population) { p.rng = rng }
}

// WithPopulationFitness evaluates whole generations with fn instead of
// scoring genomes one by one.
func WithPopulationFitness(fn PopulationFitnessFunc) Option {
	return func(p *Population) { p.populationFitness = fn }
}

// WithObserver calls fn with the statistics of every evaluated generation.
func WithObserver(fn func(GenerationStats)) Option {
	return func(p *Population) { p.observer = fn }
}

// Population holds the state of the evolutionary process. It implements
// network.Evolver.
type Population struct {
	Config       *Config
	Template     *network.Network
	Genomes      []*network.Network // Current generation
	SpeciesSet   *SpeciesSet        // Nil when speciation is disabled
	Reproduction *Reproduction
	Stagnation   *Stagnation
	BestGenome   *network.Network // Best genome found so far
	History      []GenerationStats

	generation        int
	fittest           *network.Network
	fitness           network.FitnessFunc
	populationFitness PopulationFitnessFunc
	observer          func(GenerationStats)
	rng               *rand.Rand
	logger            *slog.Logger
}

// NewPopulation creates a Population seeded with copies of template.
// fitness may be nil when WithPopulationFitness is given.
func NewPopulation(template *network.Network, config *Config, fitness network.FitnessFunc, opts ...Option) (*Population, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Population{
		Config:   config,
		Template: template,
		fitness:  fitness,
		rng:      template.Rand(),
		logger:   template.Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fitness == nil && p.populationFitness == nil {
		return nil, ErrNoFitness
	}

	stagnation, err := NewStagnation(&config.Stagnation, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create stagnation manager: %w", err)
	}
	reproduction, err := NewReproduction(config, stagnation, p.rng, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create reproduction manager: %w", err)
	}
	p.Stagnation = stagnation
	p.Reproduction = reproduction
	if config.Species.CompatibilityThreshold > 0 {
		p.SpeciesSet = NewSpeciesSet(&config.Species, p.logger)
	}
	p.Genomes = reproduction.CreateNewPopulation(template, config.Evolve.PopSize)
	return p, nil
}

// Factory returns a network.EvolverFactory building populations from config.
func Factory(config *Config, opts ...Option) network.EvolverFactory {
	return func(template *network.Network, fitness network.FitnessFunc) (network.Evolver, error) {
		return NewPopulation(template, config, fitness, opts...)
	}
}

// Generation returns the number of completed generations.
func (p *Population) Generation() int {
	return p.generation
}

// Evolve evaluates the current generation, breeds the next one and returns
// a copy of the fittest genome of the evaluated generation with its Score.
func (p *Population) Evolve() (*network.Network, error) {
	genStartTime := time.Now()

	p.evaluate()
	p.Genomes = sortedByScore(p.Genomes)

	fittest := p.Genomes[0].Clone()
	p.fittest = fittest
	if p.BestGenome == nil || fittest.Score > p.BestGenome.Score {
		p.BestGenome = fittest
		p.logger.Debug("new best genome",
			slog.Int("generation", p.generation+1),
			slog.Float64("score", fittest.Score))
	}

	if p.SpeciesSet != nil {
		p.SpeciesSet.Speciate(p.Genomes, p.generation)
	}
	stats := p.stats()

	newPopulation, err := p.Reproduction.Reproduce(p.Genomes, p.SpeciesSet, p.Template, p.generation)
	if err != nil {
		return nil, fmt.Errorf("reproduction failed in generation %d: %w", p.generation+1, err)
	}
	p.Genomes = newPopulation
	p.generation++

	p.History = append(p.History, stats)
	if p.observer != nil {
		p.observer(stats)
	}
	p.logger.Info("generation",
		slog.Int("generation", stats.Generation),
		slog.Float64("best", stats.Best),
		slog.Float64("mean", stats.Mean),
		slog.Int("species", stats.Species),
		slog.Duration("elapsed", time.Since(genStartTime)))

	return fittest, nil
}

// Fittest returns the fittest genome of the last evaluated generation,
// evaluating the current one if none has been evaluated yet.
func (p *Population) Fittest() *network.Network {
	if p.fittest == nil {
		p.evaluate()
		p.Genomes = sortedByScore(p.Genomes)
		p.fittest = p.Genomes[0].Clone()
	}
	return p.fittest
}

// evaluate scores every genome of the current generation.
func (p *Population) evaluate() {
	if p.populationFitness != nil {
		if p.Config.Evolve.Clear {
			for _, g := range p.Genomes {
				g.Clear()
			}
		}
		p.populationFitness(p.Genomes)
	} else {
		for _, g := range p.Genomes {
			if p.Config.Evolve.Clear {
				g.Clear()
			}
			g.Score = p.fitness(g)
		}
	}
	for _, g := range p.Genomes {
		if math.IsNaN(g.Score) {
			g.Score = math.Inf(-1)
		}
	}
}

func (p *Population) stats() GenerationStats {
	scores := make([]float64, 0, len(p.Genomes))
	for _, g := range p.Genomes {
		if !math.IsInf(g.Score, 0) {
			scores = append(scores, g.Score)
		}
	}
	best := p.Genomes[0]
	s := GenerationStats{
		Generation:  p.generation + 1,
		Best:        best.Score,
		Mean:        Mean(scores),
		Stdev:       Stdev(scores),
		Nodes:       len(best.Nodes()),
		Connections: len(best.Connections()),
		Gates:       len(best.Gates()),
	}
	if p.SpeciesSet != nil {
		s.Species = len(p.SpeciesSet.Species)
	}
	return s
}
