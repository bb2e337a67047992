// Package nn compiles acyclic networks into a flat form that can be
// activated without touching the network's node state.
package nn

import (
	"errors"
	"fmt"
	"slices"

	"github.com/baldhumanity/evonet/methods"
	"github.com/baldhumanity/evonet/network"
)

var (
	// ErrNotFeedForward is returned for networks with self-connections,
	// gates or connections pointing against the activation order.
	ErrNotFeedForward = errors.New("network is not feed-forward")
	// ErrInputSizeMismatch is returned when Activate gets the wrong number
	// of values.
	ErrInputSizeMismatch = errors.New("input size mismatch")
)

// input is one weighted incoming edge of a neuralNode.
type input struct {
	From   int
	Weight float64
}

// neuralNode represents a node during network activation.
// It stores the squash and the scaling left by training.
type neuralNode struct {
	Index  int
	Bias   float64
	Mask   float64
	Squash methods.Activation
	Inputs []input
}

// FeedForwardNetwork is an immutable snapshot of an acyclic network. It is
// safe for concurrent use.
type FeedForwardNetwork struct {
	InputKeys     []int        // Node indices of the inputs
	OutputKeys    []int        // Node indices of the outputs
	NodeEvalOrder []neuralNode // Topologically sorted non-input nodes
	size          int
}

// CreateFeedForwardNetwork builds a runnable feed-forward network from n.
// It performs a topological sort to determine the activation order.
func CreateFeedForwardNetwork(n *network.Network) (*FeedForwardNetwork, error) {
	if len(n.SelfConnections()) > 0 {
		return nil, fmt.Errorf("%d self-connections: %w", len(n.SelfConnections()), ErrNotFeedForward)
	}
	if len(n.Gates()) > 0 {
		return nil, fmt.Errorf("%d gated connections: %w", len(n.Gates()), ErrNotFeedForward)
	}

	nodes := n.Nodes()
	inDegree := make([]int, len(nodes))
	graph := make([][]int, len(nodes)) // node index -> outgoing node indices
	for _, c := range n.Connections() {
		from, to := c.From.Index(), c.To.Index()
		// A backward edge would read the previous activation in
		// Network.Activate, which a stateless snapshot cannot reproduce.
		if from >= to {
			return nil, fmt.Errorf("connection %d -> %d: %w", from, to, ErrNotFeedForward)
		}
		graph[from] = append(graph[from], to)
		inDegree[to]++
	}

	// Kahn's algorithm with a sorted queue for deterministic order.
	queue := []int{}
	for i := range nodes {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	evalOrder := make([]int, 0, len(nodes))
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		evalOrder = append(evalOrder, u)
		for _, v := range graph[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				queue = append(queue, v)
			}
		}
		slices.Sort(queue)
	}
	if len(evalOrder) != len(nodes) {
		return nil, fmt.Errorf("failed topological sort (expected %d nodes, got %d): %w", len(nodes), len(evalOrder), ErrNotFeedForward)
	}

	net := &FeedForwardNetwork{size: len(nodes)}
	for _, i := range evalOrder {
		node := nodes[i]
		switch node.Type {
		case network.Input:
			net.InputKeys = append(net.InputKeys, i)
			continue
		case network.Output:
			net.OutputKeys = append(net.OutputKeys, i)
		}
		nd := neuralNode{
			Index:  i,
			Bias:   node.Bias,
			Mask:   node.Mask(),
			Squash: node.Squash,
			Inputs: make([]input, 0, len(node.Incoming())),
		}
		for _, c := range node.Incoming() {
			nd.Inputs = append(nd.Inputs, input{From: c.From.Index(), Weight: c.Weight})
		}
		net.NodeEvalOrder = append(net.NodeEvalOrder, nd)
	}
	// Inputs and outputs are addressed by position, not by visit order.
	slices.Sort(net.InputKeys)
	slices.Sort(net.OutputKeys)
	return net, nil
}

// Activate computes the network's output for a given slice of input values.
// Output nodes are masked like in Network.Activate; they always carry a mask
// of one.
func (net *FeedForwardNetwork) Activate(inputs []float64) ([]float64, error) {
	if len(inputs) != len(net.InputKeys) {
		return nil, fmt.Errorf("got %d values for %d inputs: %w", len(inputs), len(net.InputKeys), ErrInputSizeMismatch)
	}

	nodeValues := make([]float64, net.size)
	for i, ik := range net.InputKeys {
		nodeValues[ik] = inputs[i]
	}
	for _, node := range net.NodeEvalOrder {
		state := node.Bias
		for _, in := range node.Inputs {
			state += nodeValues[in.From] * in.Weight
		}
		nodeValues[node.Index] = node.Squash.Apply(state) * node.Mask
	}

	outputs := make([]float64, len(net.OutputKeys))
	for i, ok := range net.OutputKeys {
		outputs[i] = nodeValues[ok]
	}
	return outputs, nil
}
