package neat

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/baldhumanity/evonet/methods"
	"github.com/baldhumanity/evonet/network"
)

// Reproduction handles the creation of new genomes, either as copies of the
// template or through selection, crossover and mutation.
type Reproduction struct {
	Config     *EvolveConfig
	Selection  methods.Selection
	Mutations  []methods.Mutation
	Stagnation *Stagnation // Reference to stagnation info for filtering

	// Ancestors maps each genome of the latest generation to its parents.
	// Elites and template copies have none.
	Ancestors map[*network.Network][]*network.Network

	rng    *rand.Rand
	logger *slog.Logger
}

// NewReproduction creates a new reproduction manager.
func NewReproduction(config *Config, stagnation *Stagnation, rng *rand.Rand, logger *slog.Logger) (*Reproduction, error) {
	selection, err := config.SelectionMethod()
	if err != nil {
		return nil, err
	}
	mutations, err := config.Mutations()
	if err != nil {
		return nil, err
	}
	if len(mutations) == 0 {
		return nil, fmt.Errorf("reproduction needs at least one mutation operator")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reproduction{
		Config:     &config.Evolve,
		Selection:  selection,
		Mutations:  mutations,
		Stagnation: stagnation,
		Ancestors:  make(map[*network.Network][]*network.Network),
		rng:        rng,
		logger:     logger,
	}, nil
}

// CreateNewPopulation creates the initial population: popSize copies of the
// template.
func (r *Reproduction) CreateNewPopulation(template *network.Network, popSize int) []*network.Network {
	genomes := make([]*network.Network, popSize)
	for i := range genomes {
		g := template.Clone()
		g.Score = 0
		genomes[i] = g
	}
	clear(r.Ancestors)
	return genomes
}

// Reproduce creates the next generation from an evaluated population sorted
// by descending score. The elites are carried over unchanged; template
// copies and offspring are mutated. When speciesSet is not nil, members of
// stagnant species are excluded from parenthood and mates are drawn from
// the first parent's species.
func (r *Reproduction) Reproduce(population []*network.Network, speciesSet *SpeciesSet, template *network.Network, generation int) ([]*network.Network, error) {
	popSize := r.Config.PopSize

	pool := population
	if speciesSet != nil && r.Stagnation != nil {
		pool = r.eligible(population, speciesSet, generation)
	}

	elitism := min(r.Config.Elitism, len(population))
	elitists := population[:elitism]

	newPopulation := make([]*network.Network, 0, popSize)
	newAncestors := make(map[*network.Network][]*network.Network, popSize)

	for i := 0; i < r.Config.Provenance; i++ {
		g := template.Clone()
		g.Score = 0
		newPopulation = append(newPopulation, g)
	}
	for len(newPopulation) < popSize-elitism {
		parent1, parent2 := r.selectParents(pool, speciesSet)
		child, err := network.CrossOver(parent1, parent2, r.Config.Equal)
		if err != nil {
			return nil, fmt.Errorf("crossover in generation %d: %w", generation, err)
		}
		newPopulation = append(newPopulation, child)
		newAncestors[child] = []*network.Network{parent1, parent2}
	}

	if err := r.mutate(newPopulation); err != nil {
		return nil, fmt.Errorf("mutation in generation %d: %w", generation, err)
	}

	newPopulation = append(newPopulation, elitists...)
	for _, g := range newPopulation {
		g.Score = 0
	}
	r.Ancestors = newAncestors
	return newPopulation, nil
}

// eligible filters out the members of stagnant species. If every species
// is stagnant the whole population stays eligible.
func (r *Reproduction) eligible(population []*network.Network, speciesSet *SpeciesSet, generation int) []*network.Network {
	stagnant := make(map[int]bool)
	for _, info := range r.Stagnation.Update(speciesSet, generation) {
		if info.IsStagnant {
			stagnant[info.SpeciesID] = true
		}
	}
	if len(stagnant) == 0 {
		return population
	}

	pool := make([]*network.Network, 0, len(population))
	for _, g := range population {
		if sid, ok := speciesSet.GetSpeciesID(g); !ok || !stagnant[sid] {
			pool = append(pool, g)
		}
	}
	if len(pool) == 0 {
		r.logger.Warn("all species stagnant, keeping the whole population as parents",
			slog.Int("generation", generation))
		return population
	}
	r.logger.Debug("excluded stagnant species",
		slog.Int("generation", generation),
		slog.Int("species", len(stagnant)),
		slog.Int("parents", len(pool)))
	return pool
}

// selectParents draws two parents. With speciation, the second one comes
// from the first one's species when that species has another member.
func (r *Reproduction) selectParents(pool []*network.Network, speciesSet *SpeciesSet) (*network.Network, *network.Network) {
	parent1 := r.getParent(pool)
	if speciesSet != nil {
		if sp, ok := speciesSet.GetSpecies(parent1); ok && len(sp.Members) > 1 {
			mates := sortedByScore(sp.Members)
			return parent1, r.getParent(mates)
		}
	}
	return parent1, r.getParent(pool)
}

// getParent selects a genome from a population sorted by descending score.
func (r *Reproduction) getParent(pool []*network.Network) *network.Network {
	switch r.Selection.Kind {
	case methods.PowerKind:
		i := int(math.Floor(math.Pow(r.rng.Float64(), r.Selection.Power) * float64(len(pool))))
		return pool[min(i, len(pool)-1)]

	case methods.FitnessProportionateKind:
		// Scores are shifted so the weakest finite score weighs zero.
		minimal := math.Inf(1)
		for _, g := range pool {
			if !math.IsInf(g.Score, 0) && !math.IsNaN(g.Score) {
				minimal = math.Min(minimal, g.Score)
			}
		}
		weights := make([]float64, len(pool))
		total := 0.0
		for i, g := range pool {
			if math.IsInf(minimal, 1) || math.IsInf(g.Score, 0) || math.IsNaN(g.Score) {
				continue
			}
			weights[i] = g.Score - minimal
			total += weights[i]
		}
		if total <= 0 {
			return pool[r.rng.Intn(len(pool))]
		}
		target := r.rng.Float64() * total
		value := 0.0
		for i, w := range weights {
			value += w
			if target < value {
				return pool[i]
			}
		}
		return pool[len(pool)-1]

	case methods.TournamentKind:
		size := max(1, min(r.Selection.Size, len(pool)))
		individuals := make([]*network.Network, size)
		for i := range individuals {
			individuals[i] = pool[r.rng.Intn(len(pool))]
		}
		individuals = sortedByScore(individuals)
		for i, g := range individuals {
			if r.rng.Float64() < r.Selection.Probability || i == size-1 {
				return g
			}
		}
	}
	return pool[r.rng.Intn(len(pool))]
}

// mutate applies MutationAmount random operators to each genome with
// probability MutationRate.
func (r *Reproduction) mutate(genomes []*network.Network) error {
	for _, g := range genomes {
		if r.rng.Float64() > r.Config.MutationRate {
			continue
		}
		for j := 0; j < r.Config.MutationAmount; j++ {
			m, ok := r.selectMutationMethod(g)
			if !ok {
				continue
			}
			if err := g.Mutate(m); err != nil && !errors.Is(err, network.ErrNoCandidate) {
				return err
			}
		}
	}
	return nil
}

// selectMutationMethod picks a random allowed operator. Growth operators
// are refused once the genome reached the matching structural cap.
func (r *Reproduction) selectMutationMethod(g *network.Network) (methods.Mutation, bool) {
	m := r.Mutations[r.rng.Intn(len(r.Mutations))]
	switch m.Kind {
	case methods.AddNodeKind:
		if r.Config.MaxNodes > 0 && len(g.Nodes()) >= r.Config.MaxNodes {
			return m, false
		}
	case methods.AddConnKind, methods.AddBackConnKind:
		if r.Config.MaxConns > 0 && len(g.Connections()) >= r.Config.MaxConns {
			return m, false
		}
	case methods.AddGateKind:
		if r.Config.MaxGates > 0 && len(g.Gates()) >= r.Config.MaxGates {
			return m, false
		}
	}
	return m, true
}

// sortedByScore returns a copy of genomes sorted by descending score.
func sortedByScore(genomes []*network.Network) []*network.Network {
	out := make([]*network.Network, len(genomes))
	copy(out, genomes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
