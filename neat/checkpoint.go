package neat

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"

	"github.com/baldhumanity/evonet/network"
)

// genomeSaveData is a genome record together with its score.
type genomeSaveData struct {
	Record network.Record `json:"record"`
	Score  float64        `json:"score"`
}

// speciesSaveData keeps what speciation and stagnation need from a species.
// Members are rebuilt by the next speciation pass.
type speciesSaveData struct {
	Key            int            `json:"key"`
	Created        int            `json:"created"`
	LastImproved   int            `json:"last_improved"`
	FitnessHistory []float64      `json:"fitness_history"`
	Representative network.Record `json:"representative"`
}

// PopulationSaveData is the checkpoint document. The configuration is not
// part of it; it is supplied again when loading.
type PopulationSaveData struct {
	Generation     int               `json:"generation"`
	Template       network.Record    `json:"template"`
	Genomes        []genomeSaveData  `json:"genomes"`
	BestGenome     *genomeSaveData   `json:"best_genome,omitempty"`
	SpeciesIndexer int               `json:"species_indexer"`
	Species        []speciesSaveData `json:"species,omitempty"`
	History        []GenerationStats `json:"history,omitempty"`
}

// SaveCheckpoint saves the current state of the Population to a file.
// Uses gzip compression for smaller file size.
func (p *Population) SaveCheckpoint(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", filePath, err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)

	saveData := PopulationSaveData{
		Generation: p.generation,
		Template:   p.Template.Record(),
		Genomes:    make([]genomeSaveData, 0, len(p.Genomes)),
		History:    p.History,
	}
	for _, g := range p.Genomes {
		saveData.Genomes = append(saveData.Genomes, genomeSaveData{Record: g.Record(), Score: g.Score})
	}
	if p.BestGenome != nil {
		saveData.BestGenome = &genomeSaveData{Record: p.BestGenome.Record(), Score: p.BestGenome.Score}
	}
	if p.SpeciesSet != nil {
		saveData.SpeciesIndexer = p.SpeciesSet.Indexer
		for _, sp := range p.SpeciesSet.Species {
			if sp.Representative == nil {
				continue
			}
			saveData.Species = append(saveData.Species, speciesSaveData{
				Key:            sp.Key,
				Created:        sp.Created,
				LastImproved:   sp.LastImproved,
				FitnessHistory: sp.FitnessHistory,
				Representative: sp.Representative.Record(),
			})
		}
	}

	if err := json.NewEncoder(gzWriter).Encode(saveData); err != nil {
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush checkpoint '%s': %w", filePath, err)
	}

	p.logger.Info("checkpoint saved", "path", filePath, "generation", p.generation)
	return nil
}

// LoadCheckpoint restores a Population from a checkpoint file. The genomes
// are rebuilt with the template options (random source, logger), and the
// population continues with fitness.
func LoadCheckpoint(checkpointPath string, config *Config, fitness network.FitnessFunc, templateOpts []network.Option, opts ...Option) (*Population, error) {
	file, err := os.Open(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", checkpointPath, err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gzReader.Close()

	var saveData PopulationSaveData
	if err := json.NewDecoder(gzReader).Decode(&saveData); err != nil {
		return nil, fmt.Errorf("failed to decode population data from checkpoint: %w", err)
	}

	template, err := network.FromRecord(saveData.Template, templateOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore template: %w", err)
	}
	p, err := NewPopulation(template, config, fitness, opts...)
	if err != nil {
		return nil, err
	}

	restore := func(d genomeSaveData) (*network.Network, error) {
		g, err := network.FromRecord(d.Record, network.WithRand(template.Rand()), network.WithLogger(template.Logger()))
		if err != nil {
			return nil, err
		}
		g.Score = d.Score
		return g, nil
	}

	p.Genomes = p.Genomes[:0]
	for i, d := range saveData.Genomes {
		g, err := restore(d)
		if err != nil {
			return nil, fmt.Errorf("failed to restore genome %d: %w", i, err)
		}
		p.Genomes = append(p.Genomes, g)
	}
	if saveData.BestGenome != nil {
		if p.BestGenome, err = restore(*saveData.BestGenome); err != nil {
			return nil, fmt.Errorf("failed to restore best genome: %w", err)
		}
	}
	if p.SpeciesSet != nil {
		p.SpeciesSet.Indexer = max(1, saveData.SpeciesIndexer)
		for _, d := range saveData.Species {
			rep, err := restore(genomeSaveData{Record: d.Representative})
			if err != nil {
				return nil, fmt.Errorf("failed to restore representative of species %d: %w", d.Key, err)
			}
			sp := NewSpecies(d.Key, d.Created)
			sp.LastImproved = d.LastImproved
			sp.FitnessHistory = d.FitnessHistory
			sp.Representative = rep
			p.SpeciesSet.Species[d.Key] = sp
		}
	}
	p.generation = saveData.Generation
	p.History = saveData.History

	p.logger.Info("checkpoint loaded", "path", checkpointPath, "generation", p.generation)
	return p, nil
}
