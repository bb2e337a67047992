package neat

import (
	"log/slog"
	"maps"
	"math"
	"slices"

	"github.com/baldhumanity/evonet/network"
)

// Species represents a group of genetically similar genomes.
type Species struct {
	Key            int                // Unique identifier for the species.
	Created        int                // Generation number when the species was created.
	LastImproved   int                // Last generation where fitness improved.
	Representative *network.Network   // The representative genome for this species.
	Members        []*network.Network // Genomes belonging to this species.
	Fitness        float64            // Calculated fitness for the species (e.g., mean score of members).
	FitnessHistory []float64          // History of fitness values for stagnation detection.
}

// NewSpecies creates a new species.
func NewSpecies(key, generation int) *Species {
	return &Species{
		Key:            key,
		Created:        generation,
		LastImproved:   generation,
		FitnessHistory: []float64{},
	}
}

// Update adjusts the species' representative and members.
func (s *Species) Update(representative *network.Network, members []*network.Network) {
	s.Representative = representative
	s.Members = members
}

// GetFitnesses returns a slice containing the scores of all members.
func (s *Species) GetFitnesses() []float64 {
	fitnesses := make([]float64, 0, len(s.Members))
	for _, g := range s.Members {
		fitnesses = append(fitnesses, g.Score)
	}
	return fitnesses
}

// --------------------------- Distance ---------------------------

// gene is the part of a connection that takes part in the compatibility
// distance.
type gene struct {
	weight float64
	gated  bool
}

// genes keys the connections of a network by the pairing key of their
// endpoint positions, the same alignment CrossOver uses.
func genes(n *network.Network) map[int]gene {
	out := make(map[int]gene, len(n.Connections())+len(n.SelfConnections()))
	for _, c := range n.Connections() {
		out[c.Key()] = gene{weight: c.Weight, gated: c.Gated()}
	}
	for _, c := range n.SelfConnections() {
		out[c.Key()] = gene{weight: c.Weight, gated: c.Gated()}
	}
	return out
}

// geneDistance compares two matching genes: the weight difference plus one
// when only one of them is gated.
func geneDistance(a, b gene) float64 {
	d := math.Abs(a.weight - b.weight)
	if a.gated != b.gated {
		d += 1.0
	}
	return d
}

// Distance computes the compatibility distance of two genomes:
// disjoint * D / N + weight * W, where D counts genes present in only one
// genome, N is the gene count of the larger genome and W is the average
// distance of the matching genes.
func Distance(a, b *network.Network, config *SpeciesConfig) float64 {
	return geneSetDistance(genes(a), genes(b), config)
}

func geneSetDistance(genes1, genes2 map[int]gene, config *SpeciesConfig) float64 {
	disjointCount := 0
	weightDiffSum := 0.0
	matchingGeneCount := 0

	for key, g1 := range genes1 {
		if g2, exists := genes2[key]; exists {
			weightDiffSum += geneDistance(g1, g2)
			matchingGeneCount++
		} else {
			disjointCount++
		}
	}
	for key := range genes2 {
		if _, exists := genes1[key]; !exists {
			disjointCount++
		}
	}

	// Normalize by the number of genes in the larger genome.
	n := float64(max(len(genes1), len(genes2)))
	if n < 1.0 {
		n = 1.0
	}

	compatibility := config.DisjointCoefficient * float64(disjointCount) / n
	if matchingGeneCount > 0 {
		compatibility += config.WeightCoefficient * weightDiffSum / float64(matchingGeneCount)
	}
	return compatibility
}

// --------------------------- GenomeDistanceCache ---------------------------

type genomePair struct {
	a, b *network.Network
}

// GenomeDistanceCache stores calculated distances between genomes to avoid
// redundant computations within one speciation pass.
type GenomeDistanceCache struct {
	Distances map[genomePair]float64
	Hits      int
	Misses    int
	Config    *SpeciesConfig

	genes map[*network.Network]map[int]gene
}

// NewGenomeDistanceCache creates a new distance cache.
func NewGenomeDistanceCache(config *SpeciesConfig) *GenomeDistanceCache {
	return &GenomeDistanceCache{
		Distances: make(map[genomePair]float64),
		Config:    config,
		genes:     make(map[*network.Network]map[int]gene),
	}
}

// Distance calculates or retrieves the distance between two genomes.
func (dc *GenomeDistanceCache) Distance(genome1, genome2 *network.Network) float64 {
	key := genomePair{genome1, genome2}
	if d, exists := dc.Distances[key]; exists {
		dc.Hits++
		return d
	}
	if d, exists := dc.Distances[genomePair{genome2, genome1}]; exists {
		dc.Hits++
		return d
	}

	dc.Misses++
	d := geneSetDistance(dc.genesOf(genome1), dc.genesOf(genome2), dc.Config)
	dc.Distances[key] = d
	return d
}

func (dc *GenomeDistanceCache) genesOf(n *network.Network) map[int]gene {
	g, ok := dc.genes[n]
	if !ok {
		g = genes(n)
		dc.genes[n] = g
	}
	return g
}

// --------------------------- SpeciesSet ---------------------------

// SpeciesSet manages the collection of species within a population.
type SpeciesSet struct {
	Species         map[int]*Species         // Map species key -> Species
	GenomeToSpecies map[*network.Network]int // Map genome -> species key
	Indexer         int                      // Counter for assigning new species keys (start at 1)
	Config          *SpeciesConfig

	logger *slog.Logger
}

// NewSpeciesSet creates a new species set manager.
func NewSpeciesSet(config *SpeciesConfig, logger *slog.Logger) *SpeciesSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeciesSet{
		Species:         make(map[int]*Species),
		GenomeToSpecies: make(map[*network.Network]int),
		Indexer:         1,
		Config:          config,
		logger:          logger,
	}
}

// Speciate partitions the population into species based on genetic distance.
// Species are visited in key order and genomes in population order so the
// result only depends on the population.
func (ss *SpeciesSet) Speciate(population []*network.Network, generation int) {
	if len(population) == 0 {
		ss.Species = make(map[int]*Species)
		ss.GenomeToSpecies = make(map[*network.Network]int)
		return
	}

	compatibilityThreshold := ss.Config.CompatibilityThreshold
	distanceCache := NewGenomeDistanceCache(ss.Config)

	unspeciated := slices.Clone(population)
	newRepresentatives := make(map[int]*network.Network)
	newMembers := make(map[int][]*network.Network)

	// The genome closest to each old representative becomes the species'
	// new representative.
	for _, sid := range slices.Sorted(maps.Keys(ss.Species)) {
		s := ss.Species[sid]
		if len(unspeciated) == 0 {
			break
		}
		if s.Representative == nil {
			ss.logger.Warn("species has no representative", slog.Int("species", sid))
			continue
		}

		best, minDist := -1, math.Inf(1)
		for i, g := range unspeciated {
			if d := distanceCache.Distance(s.Representative, g); d < minDist {
				best, minDist = i, d
			}
		}
		if best < 0 {
			continue
		}
		newRep := unspeciated[best]
		newRepresentatives[sid] = newRep
		newMembers[sid] = []*network.Network{newRep}
		unspeciated = slices.Delete(unspeciated, best, best+1)
	}

	// Assign the remaining genomes to the closest compatible species or
	// found a new one.
	for _, g := range unspeciated {
		bestSpecies := -1
		minDist := math.Inf(1)
		for _, sid := range slices.Sorted(maps.Keys(newRepresentatives)) {
			d := distanceCache.Distance(newRepresentatives[sid], g)
			if d < compatibilityThreshold && d < minDist {
				minDist = d
				bestSpecies = sid
			}
		}

		if bestSpecies != -1 {
			newMembers[bestSpecies] = append(newMembers[bestSpecies], g)
		} else {
			newSID := ss.Indexer
			ss.Indexer++
			newRepresentatives[newSID] = g
			newMembers[newSID] = []*network.Network{g}
		}
	}

	newSpeciesMap := make(map[int]*Species, len(newRepresentatives))
	newGenomeToSpeciesMap := make(map[*network.Network]int, len(population))
	for sid, representative := range newRepresentatives {
		s := ss.Species[sid]
		if s == nil {
			s = NewSpecies(sid, generation)
			ss.logger.Debug("created species", slog.Int("species", sid), slog.Int("generation", generation))
		}
		for _, g := range newMembers[sid] {
			newGenomeToSpeciesMap[g] = sid
		}
		s.Update(representative, newMembers[sid])
		newSpeciesMap[sid] = s
	}
	for sid := range ss.Species {
		if _, ok := newSpeciesMap[sid]; !ok {
			ss.logger.Debug("species died out", slog.Int("species", sid))
		}
	}

	ss.Species = newSpeciesMap
	ss.GenomeToSpecies = newGenomeToSpeciesMap

	if len(distanceCache.Distances) > 0 {
		allDistances := slices.Collect(maps.Values(distanceCache.Distances))
		ss.logger.Debug("speciated",
			slog.Int("species", len(ss.Species)),
			slog.Float64("mean_distance", Mean(allDistances)),
			slog.Float64("stdev_distance", Stdev(allDistances)))
	}
}

// GetSpeciesID returns the species ID of a genome.
func (ss *SpeciesSet) GetSpeciesID(genome *network.Network) (int, bool) {
	sid, exists := ss.GenomeToSpecies[genome]
	return sid, exists
}

// GetSpecies returns the Species a genome belongs to.
func (ss *SpeciesSet) GetSpecies(genome *network.Network) (*Species, bool) {
	sid, exists := ss.GenomeToSpecies[genome]
	if !exists {
		return nil, false
	}
	s, exists := ss.Species[sid]
	return s, exists
}
