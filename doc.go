// Package evonet is a neuro-evolution toolkit built around graph-structured
// neural networks that can be trained by backpropagation and evolved by
// mutation and crossover.
//
// The module is split into:
//
//   - network: nodes, connections and gates, activation and propagation,
//     the mutation operators, crossover, training and serialization
//   - methods: catalogs of activations, costs, rate policies, mutations and
//     selection methods
//   - architect: perceptron and random network builders
//   - neat: a speciated population that drives Network.Evolve
//   - neat/nn: a compiled snapshot for fast feed-forward inference
//   - storage and report: persistence of networks and runs, CSV output
//
// Basic usage:
//
//	// Build a template network
//	template, err := architect.Perceptron([]int{2, 4, 1})
//	if err != nil {
//		log.Fatalf("Error creating network: %v", err)
//	}
//
//	// Load configuration and derive evolve options
//	config, err := neat.LoadConfig("path/to/config")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//	opts, err := config.EvolveOptions()
//	if err != nil {
//		log.Fatalf("Error in config: %v", err)
//	}
//
//	// Evolve in place until the error target or iteration budget is hit
//	res, err := template.Evolve(dataset, opts)
//	if err != nil {
//		log.Fatalf("Error evolving: %v", err)
//	}
//	fmt.Println("error:", res.Error, "generations:", res.Generations)
package evonet
