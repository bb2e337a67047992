// Package architect builds common network topologies using only the public
// network API.
package architect

import (
	"errors"
	"fmt"

	"github.com/baldhumanity/evonet/methods"
	"github.com/baldhumanity/evonet/network"
)

// ErrLayers is returned when a perceptron is given fewer than two layers.
var ErrLayers = errors.New("perceptron needs at least an input and an output layer")

// Perceptron builds a layered, fully connected feed-forward network.
// layers lists the layer sizes from input to output.
func Perceptron(layers []int, opts ...network.Option) (*network.Network, error) {
	if len(layers) < 2 {
		return nil, ErrLayers
	}
	input, output := layers[0], layers[len(layers)-1]
	n, err := network.New(input, output, opts...)
	if err != nil {
		return nil, err
	}
	if len(layers) == 2 {
		return n, nil
	}

	nodes := n.Nodes()
	prev := append([]*network.Node(nil), nodes[:input]...)
	outputs := append([]*network.Node(nil), nodes[len(nodes)-output:]...)
	for _, in := range prev {
		for _, out := range outputs {
			if err := n.Disconnect(in, out); err != nil {
				return nil, err
			}
		}
	}

	for l, size := range layers[1 : len(layers)-1] {
		if size <= 0 {
			return nil, fmt.Errorf("hidden layer %d has size %d: %w", l+1, size, ErrLayers)
		}
		layer := make([]*network.Node, size)
		for i := range layer {
			layer[i] = n.InsertHidden(len(n.Nodes()) - output)
		}
		if err := connectAll(n, prev, layer); err != nil {
			return nil, err
		}
		prev = layer
	}
	if err := connectAll(n, prev, outputs); err != nil {
		return nil, err
	}
	return n, nil
}

func connectAll(n *network.Network, from, to []*network.Node) error {
	for _, f := range from {
		for _, t := range to {
			if _, err := n.Connect(f, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// RandomOptions configures Random. Zero Connections means twice the number
// of hidden nodes.
type RandomOptions struct {
	Connections     int
	BackConnections int
	SelfConnections int
	Gates           int
}

// Random grows a network from a minimal one by applying structural
// mutations: hidden nodes first, then connections, back connections,
// self-connections and gates.
func Random(input, hidden, output int, o RandomOptions, opts ...network.Option) (*network.Network, error) {
	n, err := network.New(input, output, opts...)
	if err != nil {
		return nil, err
	}
	connections := o.Connections
	if connections == 0 {
		connections = hidden * 2
	}

	steps := []struct {
		m     methods.Mutation
		times int
	}{
		{methods.AddNode, hidden},
		{methods.AddConn, connections - hidden},
		{methods.AddBackConn, o.BackConnections},
		{methods.AddSelfConn, o.SelfConnections},
		{methods.AddGate, o.Gates},
	}
	for _, step := range steps {
		for i := 0; i < step.times; i++ {
			if err := n.Mutate(step.m); err != nil && !errors.Is(err, network.ErrNoCandidate) {
				return nil, err
			}
		}
	}
	return n, nil
}
