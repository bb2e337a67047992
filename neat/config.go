package neat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/baldhumanity/evonet/methods"
	"github.com/baldhumanity/evonet/network"
)

// Config stores the configuration parameters of the evolver and of the
// training runs driven by the CLI.
type Config struct {
	Evolve     EvolveConfig     `yaml:"evolve"`
	Mutation   MutationConfig   `yaml:"mutation"`
	Species    SpeciesConfig    `yaml:"species"`
	Stagnation StagnationConfig `yaml:"stagnation"`
	Train      TrainConfig      `yaml:"train"`
}

// EvolveConfig holds the population loop parameters and the options passed
// to network.Evolve.
type EvolveConfig struct {
	PopSize        int     `ini:"pop_size" yaml:"pop_size"`
	Elitism        int     `ini:"elitism" yaml:"elitism"`
	Provenance     int     `ini:"provenance" yaml:"provenance"` // Template copies added to every generation
	MutationRate   float64 `ini:"mutation_rate" yaml:"mutation_rate"`
	MutationAmount int     `ini:"mutation_amount" yaml:"mutation_amount"`
	Equal          bool    `ini:"equal" yaml:"equal"` // Crossover treats both parents as equally fit
	Clear          bool    `ini:"clear" yaml:"clear"`

	Selection             string  `ini:"selection" yaml:"selection"` // POWER, FITNESS_PROPORTIONATE, TOURNAMENT
	SelectionPower        float64 `ini:"selection_power" yaml:"selection_power"`
	TournamentSize        int     `ini:"tournament_size" yaml:"tournament_size"`
	TournamentProbability float64 `ini:"tournament_probability" yaml:"tournament_probability"`

	// Structural caps, 0 means unbounded.
	MaxNodes int `ini:"max_nodes" yaml:"max_nodes"`
	MaxConns int `ini:"max_conns" yaml:"max_conns"`
	MaxGates int `ini:"max_gates" yaml:"max_gates"`

	Iterations int     `ini:"iterations" yaml:"iterations"`
	Error      float64 `ini:"error" yaml:"error"`
	Growth     float64 `ini:"growth" yaml:"growth"`
	Amount     int     `ini:"amount" yaml:"amount"`
	Cost       string  `ini:"cost" yaml:"cost"`
	Log        int     `ini:"log" yaml:"log"`
	Seed       int64   `ini:"seed" yaml:"seed"` // 0 seeds from the clock
}

// MutationConfig selects the mutation operators and their parameters.
type MutationConfig struct {
	Group        string   `ini:"group" yaml:"group"`                       // ALL, FFW or NO_GATES
	Operators    []string `ini:"operators" delim:" " yaml:"operators"`     // Overrides Group when set
	Activations  []string `ini:"activations" delim:" " yaml:"activations"` // MOD_ACTIVATION pool, empty means all
	WeightMin    float64  `ini:"weight_min" yaml:"weight_min"`
	WeightMax    float64  `ini:"weight_max" yaml:"weight_max"`
	BiasMin      float64  `ini:"bias_min" yaml:"bias_min"`
	BiasMax      float64  `ini:"bias_max" yaml:"bias_max"`
	KeepGates    bool     `ini:"keep_gates" yaml:"keep_gates"`
	MutateOutput bool     `ini:"mutate_output" yaml:"mutate_output"`
}

// SpeciesConfig holds parameters related to speciation. A zero
// compatibility threshold disables speciation.
type SpeciesConfig struct {
	CompatibilityThreshold float64 `ini:"compatibility_threshold" yaml:"compatibility_threshold"`
	DisjointCoefficient    float64 `ini:"disjoint_coefficient" yaml:"disjoint_coefficient"`
	WeightCoefficient      float64 `ini:"weight_coefficient" yaml:"weight_coefficient"`
}

// StagnationConfig holds parameters related to species stagnation.
type StagnationConfig struct {
	SpeciesFitnessFunc string `ini:"species_fitness_func" yaml:"species_fitness_func"`
	MaxStagnation      int    `ini:"max_stagnation" yaml:"max_stagnation"`
	SpeciesElitism     int    `ini:"species_elitism" yaml:"species_elitism"`
}

// TrainConfig holds the gradient training options used by the CLI.
type TrainConfig struct {
	Rate       float64 `ini:"rate" yaml:"rate"`
	Momentum   float64 `ini:"momentum" yaml:"momentum"`
	Iterations int     `ini:"iterations" yaml:"iterations"`
	Error      float64 `ini:"error" yaml:"error"`
	BatchSize  int     `ini:"batch_size" yaml:"batch_size"`
	Shuffle    bool    `ini:"shuffle" yaml:"shuffle"`
	Dropout    float64 `ini:"dropout" yaml:"dropout"`
	Clear      bool    `ini:"clear" yaml:"clear"`
	Cost       string  `ini:"cost" yaml:"cost"`
	RatePolicy string  `ini:"rate_policy" yaml:"rate_policy"`
	Log        int     `ini:"log" yaml:"log"`
}

// DefaultConfig returns the stock settings. Files loaded by LoadConfig only
// override the keys they contain.
func DefaultConfig() *Config {
	return &Config{
		Evolve: EvolveConfig{
			PopSize:               50,
			MutationRate:          0.3,
			MutationAmount:        1,
			Selection:             "POWER",
			SelectionPower:        methods.Power.Power,
			TournamentSize:        methods.Tournament.Size,
			TournamentProbability: methods.Tournament.Probability,
			Growth:                0.0001,
			Amount:                1,
			Cost:                  methods.MSE.Name,
		},
		Mutation: MutationConfig{
			Group:        "FFW",
			WeightMin:    methods.ModWeight.Min,
			WeightMax:    methods.ModWeight.Max,
			BiasMin:      methods.ModBias.Min,
			BiasMax:      methods.ModBias.Max,
			KeepGates:    true,
			MutateOutput: true,
		},
		Species: SpeciesConfig{
			DisjointCoefficient: 1.0,
			WeightCoefficient:   0.5,
		},
		Stagnation: StagnationConfig{
			SpeciesFitnessFunc: "mean",
			MaxStagnation:      15,
			SpeciesElitism:     1,
		},
		Train: TrainConfig{
			Rate:       0.3,
			Iterations: 10000,
			Error:      0.05,
			BatchSize:  1,
			Cost:       methods.MSE.Name,
			RatePolicy: "FIXED",
		},
	}
}

// LoadConfig loads configuration parameters from an INI file, or from a
// YAML file when the extension is .yaml or .yml.
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
		}
		// Unmarshal into the defaults, only keys present in the file change.
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", filePath, err)
		}
	default:
		if err := loadINI(config, filePath); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadINI(config *Config, filePath string) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true, // Allow # comments starting with # or ;
		UnescapeValueCommentSymbols: true, // If # or ; appear in value, treat as value
	}, filePath)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}

	sections := []struct {
		name   string
		target any
	}{
		{"Evolve", &config.Evolve},
		{"Mutation", &config.Mutation},
		{"Species", &config.Species},
		{"Stagnation", &config.Stagnation},
		{"Train", &config.Train},
	}
	for _, s := range sections {
		if err := cfg.Section(s.name).MapTo(s.target); err != nil {
			return fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}

	config.Evolve.Selection = cleanIniString(config.Evolve.Selection)
	config.Evolve.Cost = cleanIniString(config.Evolve.Cost)
	config.Mutation.Group = cleanIniString(config.Mutation.Group)
	config.Stagnation.SpeciesFitnessFunc = cleanIniString(config.Stagnation.SpeciesFitnessFunc)
	config.Train.Cost = cleanIniString(config.Train.Cost)
	config.Train.RatePolicy = cleanIniString(config.Train.RatePolicy)
	config.Mutation.Operators = cleanIniList(config.Mutation.Operators)
	config.Mutation.Activations = cleanIniList(config.Mutation.Activations)
	return nil
}

// Validate checks value ranges and resolves every catalog name.
func (c *Config) Validate() error {
	e := c.Evolve
	if e.PopSize <= 0 {
		return fmt.Errorf("config error: pop_size must be positive")
	}
	if e.Elitism < 0 || e.Provenance < 0 || e.Elitism+e.Provenance > e.PopSize {
		return fmt.Errorf("config error: elitism + provenance must be between 0 and pop_size")
	}
	if e.MutationRate < 0 || e.MutationRate > 1 {
		return fmt.Errorf("config error: mutation_rate must be between 0 and 1")
	}
	if e.MutationAmount < 0 {
		return fmt.Errorf("config error: mutation_amount cannot be negative")
	}
	if e.MaxNodes < 0 || e.MaxConns < 0 || e.MaxGates < 0 {
		return fmt.Errorf("config error: max_nodes, max_conns and max_gates cannot be negative")
	}
	if e.Growth < 0 {
		return fmt.Errorf("config error: growth cannot be negative")
	}
	if e.Iterations < 0 || e.Error < 0 {
		return fmt.Errorf("config error: iterations and error cannot be negative")
	}
	if _, err := c.SelectionMethod(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if _, err := methods.GetCost(e.Cost); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Mutation.WeightMax < c.Mutation.WeightMin {
		return fmt.Errorf("config error: weight_max cannot be less than weight_min")
	}
	if c.Mutation.BiasMax < c.Mutation.BiasMin {
		return fmt.Errorf("config error: bias_max cannot be less than bias_min")
	}
	if _, err := c.Mutations(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Species.CompatibilityThreshold < 0 {
		return fmt.Errorf("config error: compatibility_threshold cannot be negative")
	}
	if c.Species.DisjointCoefficient < 0 || c.Species.WeightCoefficient < 0 {
		return fmt.Errorf("config error: compatibility coefficients cannot be negative")
	}
	if c.Stagnation.MaxStagnation <= 0 {
		return fmt.Errorf("config error: max_stagnation must be positive")
	}
	if _, ok := StatFunctions[strings.ToLower(c.Stagnation.SpeciesFitnessFunc)]; !ok {
		return fmt.Errorf("config error: invalid species_fitness_func '%s'", c.Stagnation.SpeciesFitnessFunc)
	}

	if c.Train.Rate < 0 || c.Train.Momentum < 0 {
		return fmt.Errorf("config error: rate and momentum cannot be negative")
	}
	if c.Train.Dropout < 0 || c.Train.Dropout >= 1 {
		return fmt.Errorf("config error: dropout must be in [0, 1)")
	}
	if _, err := c.TrainOptions(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// SelectionMethod resolves the parent selection strategy.
func (c *Config) SelectionMethod() (methods.Selection, error) {
	s, err := methods.GetSelection(strings.ToUpper(c.Evolve.Selection))
	if err != nil {
		return methods.Selection{}, err
	}
	switch s.Kind {
	case methods.PowerKind:
		if c.Evolve.SelectionPower > 0 {
			s.Power = c.Evolve.SelectionPower
		}
	case methods.TournamentKind:
		if c.Evolve.TournamentSize > 0 {
			s.Size = c.Evolve.TournamentSize
		}
		if c.Evolve.TournamentProbability > 0 {
			s.Probability = c.Evolve.TournamentProbability
		}
	}
	return s, nil
}

// Mutations resolves the allowed operators with the configured parameters
// applied.
func (c *Config) Mutations() ([]methods.Mutation, error) {
	var (
		list []methods.Mutation
		err  error
	)
	if len(c.Mutation.Operators) > 0 {
		list, err = methods.GetMutations(c.Mutation.Operators)
	} else {
		list, err = methods.GetMutationGroup(strings.ToUpper(c.Mutation.Group))
	}
	if err != nil {
		return nil, err
	}
	var allowed []methods.Activation
	if len(c.Mutation.Activations) > 0 {
		if allowed, err = methods.GetActivations(c.Mutation.Activations); err != nil {
			return nil, err
		}
	}

	out := make([]methods.Mutation, len(list))
	for i, m := range list {
		switch m.Kind {
		case methods.ModWeightKind:
			m.Min, m.Max = c.Mutation.WeightMin, c.Mutation.WeightMax
		case methods.ModBiasKind:
			m.Min, m.Max = c.Mutation.BiasMin, c.Mutation.BiasMax
		case methods.SubNodeKind:
			m.KeepGates = c.Mutation.KeepGates
		case methods.ModActivationKind:
			m.MutateOutput = c.Mutation.MutateOutput
			if allowed != nil {
				m.Allowed = allowed
			}
		case methods.SwapNodesKind:
			m.MutateOutput = c.Mutation.MutateOutput
		}
		out[i] = m
	}
	return out, nil
}

// EvolveOptions builds the options for network.Evolve, using this
// configuration's Factory.
func (c *Config) EvolveOptions() (network.EvolveOptions, error) {
	cost, err := methods.GetCost(c.Evolve.Cost)
	if err != nil {
		return network.EvolveOptions{}, err
	}
	growth := c.Evolve.Growth
	return network.EvolveOptions{
		Factory:    Factory(c),
		Cost:       cost,
		Amount:     c.Evolve.Amount,
		Growth:     &growth,
		Iterations: c.Evolve.Iterations,
		Error:      c.Evolve.Error,
		Clear:      c.Evolve.Clear,
		Log:        c.Evolve.Log,
	}, nil
}

// TrainOptions builds the options for network.Train.
func (c *Config) TrainOptions() (network.TrainOptions, error) {
	cost, err := methods.GetCost(c.Train.Cost)
	if err != nil {
		return network.TrainOptions{}, err
	}
	policy, err := methods.GetRatePolicy(strings.ToUpper(c.Train.RatePolicy))
	if err != nil {
		return network.TrainOptions{}, err
	}
	return network.TrainOptions{
		Error:      c.Train.Error,
		Iterations: c.Train.Iterations,
		Rate:       c.Train.Rate,
		Momentum:   c.Train.Momentum,
		BatchSize:  c.Train.BatchSize,
		Shuffle:    c.Train.Shuffle,
		Dropout:    c.Train.Dropout,
		Clear:      c.Train.Clear,
		Cost:       cost,
		RatePolicy: policy,
		Log:        c.Train.Log,
	}, nil
}

// cleanIniString removes inline comments and trims whitespace from a string read from INI.
func cleanIniString(s string) string {
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// cleanIniList drops comments and empty entries from a delimited INI list.
func cleanIniList(values []string) []string {
	out := values[:0]
	for _, v := range values {
		comment := strings.IndexAny(v, "#;")
		if comment != -1 {
			v = v[:comment]
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
		if comment != -1 {
			break
		}
	}
	return out
}
