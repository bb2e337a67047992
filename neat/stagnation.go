package neat

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sort"
	"strings"
)

// Stagnation manages the detection of stagnant species.
type Stagnation struct {
	Config             *StagnationConfig
	SpeciesFitnessFunc func([]float64) float64

	logger *slog.Logger
}

// NewStagnation creates a new stagnation manager.
func NewStagnation(config *StagnationConfig, logger *slog.Logger) (*Stagnation, error) {
	fn, ok := StatFunctions[strings.ToLower(config.SpeciesFitnessFunc)]
	if !ok {
		return nil, fmt.Errorf("invalid species_fitness_func in config: %s", config.SpeciesFitnessFunc)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stagnation{
		Config:             config,
		SpeciesFitnessFunc: fn,
		logger:             logger,
	}, nil
}

// StagnationInfo holds the results of the stagnation update for a single species.
type StagnationInfo struct {
	SpeciesID  int
	Species    *Species
	IsStagnant bool
}

// Update refreshes the fitness and history of every species and reports
// which ones have not improved for MaxStagnation generations. The
// SpeciesElitism fittest species are never stagnant. The result is sorted
// by ascending species fitness.
func (s *Stagnation) Update(speciesSet *SpeciesSet, generation int) []StagnationInfo {
	if len(speciesSet.Species) == 0 {
		return []StagnationInfo{}
	}

	speciesData := make([]*Species, 0, len(speciesSet.Species))
	for _, sid := range slices.Sorted(maps.Keys(speciesSet.Species)) {
		sp := speciesSet.Species[sid]

		previousMaxFitness := MaxFloat(sp.FitnessHistory)

		memberFitnesses := sp.GetFitnesses()
		if len(memberFitnesses) == 0 {
			sp.Fitness = math.Inf(-1)
		} else {
			sp.Fitness = s.SpeciesFitnessFunc(memberFitnesses)
		}
		sp.FitnessHistory = append(sp.FitnessHistory, sp.Fitness)

		if sp.Fitness > previousMaxFitness {
			sp.LastImproved = generation
		}
		speciesData = append(speciesData, sp)
	}

	// Least fit first.
	sort.SliceStable(speciesData, func(i, j int) bool {
		return speciesData[i].Fitness < speciesData[j].Fitness
	})

	result := make([]StagnationInfo, len(speciesData))
	numSpecies := len(speciesData)
	numNonStagnant := numSpecies
	for i, sp := range speciesData {
		stagnantTime := generation - sp.LastImproved
		isStagnant := false
		if numNonStagnant > s.Config.SpeciesElitism {
			isStagnant = stagnantTime >= s.Config.MaxStagnation
		}
		// The last SpeciesElitism entries are the fittest.
		if numSpecies-i <= s.Config.SpeciesElitism {
			if stagnantTime >= s.Config.MaxStagnation {
				s.logger.Debug("species spared from stagnation",
					slog.Int("species", sp.Key), slog.Int("stagnant_for", stagnantTime))
			}
			isStagnant = false
		}
		if isStagnant {
			numNonStagnant--
			s.logger.Debug("species stagnant",
				slog.Int("species", sp.Key), slog.Int("stagnant_for", stagnantTime))
		}

		result[i] = StagnationInfo{
			SpeciesID:  sp.Key,
			Species:    sp,
			IsStagnant: isStagnant,
		}
	}
	return result
}
