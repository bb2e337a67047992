// Package network implements recurrent, gateable neural networks that can be
// trained with a local backpropagation rule and reshaped with structural
// mutations and crossover.
package network

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/baldhumanity/evonet/methods"
)

// Network owns an ordered list of nodes (the activation order) together with
// its inter-node connections, self-connections and gated connections.
//
// The first Input nodes are inputs and the last Output nodes are outputs.
// A Network is not safe for concurrent use.
type Network struct {
	Input   int
	Output  int
	Dropout float64

	// Score is the fitness assigned by an evolver. CrossOver prefers the
	// parent with the higher score.
	Score float64

	nodes       []*Node
	connections []*Connection
	selfConns   []*Connection
	gates       []*Connection

	rng    *rand.Rand
	logger *slog.Logger
	cost   methods.Cost
}

// Option configures a Network at construction.
type Option func(*Network)

// WithRand sets the random source used for initial weights, mutation and
// shuffling. Networks derived from this one (clones, offspring) share it.
func WithRand(rng *rand.Rand) Option {
	return func(n *Network) { n.rng = rng }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) { n.logger = logger }
}

// WithDropout sets the dropout rate used while training.
func WithDropout(rate float64) Option {
	return func(n *Network) { n.Dropout = rate }
}

func newEmpty(input, output int, opts ...Option) (*Network, error) {
	if input <= 0 || output <= 0 {
		return nil, fmt.Errorf("new network (%d, %d): %w", input, output, ErrMissingSize)
	}
	n := &Network{
		Input:  input,
		Output: output,
		cost:   methods.MSE,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.rng == nil {
		n.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n, nil
}

// New creates a network with input and output nodes where every input is
// connected to every output.
func New(input, output int, opts ...Option) (*Network, error) {
	n, err := newEmpty(input, output, opts...)
	if err != nil {
		return nil, err
	}
	for i := 0; i < input; i++ {
		n.nodes = append(n.nodes, NewNode(Input, n.rng))
	}
	for i := 0; i < output; i++ {
		n.nodes = append(n.nodes, NewNode(Output, n.rng))
	}
	n.reindex()

	scale := float64(input) * math.Sqrt(2/float64(input))
	for i := 0; i < input; i++ {
		for j := input; j < input+output; j++ {
			if _, err := n.ConnectWeight(n.nodes[i], n.nodes[j], n.rng.Float64()*scale); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}

// Nodes returns the nodes in activation order. The slice must not be
// modified.
func (n *Network) Nodes() []*Node { return n.nodes }

// Connections returns the inter-node connections.
func (n *Network) Connections() []*Connection { return n.connections }

// SelfConnections returns the self-connections.
func (n *Network) SelfConnections() []*Connection { return n.selfConns }

// Gates returns the gated connections.
func (n *Network) Gates() []*Connection { return n.gates }

// Rand returns the network's random source.
func (n *Network) Rand() *rand.Rand { return n.rng }

// Logger returns the network's logger.
func (n *Network) Logger() *slog.Logger { return n.logger }

// Size is the growth measure used by Evolve: nodes + connections + gates.
func (n *Network) Size() int {
	return len(n.nodes) + len(n.connections) + len(n.gates)
}

// IndexOf returns the position of node, or -1 if it is not owned by n.
func (n *Network) IndexOf(node *Node) int {
	if !n.owns(node) {
		return -1
	}
	return node.index
}

func (n *Network) owns(node *Node) bool {
	return node != nil && node.index >= 0 && node.index < len(n.nodes) && n.nodes[node.index] == node
}

func (n *Network) ownsConnection(c *Connection) bool {
	if c == nil || !n.owns(c.From) || !n.owns(c.To) {
		return false
	}
	if c.isSelf() {
		return c.From.self == c
	}
	return c.From.connectionTo(c.To) == c
}

func (n *Network) reindex() {
	for i, node := range n.nodes {
		node.index = i
	}
}

// Connect connects from to to with a small random weight. An existing
// connection is returned unchanged.
func (n *Network) Connect(from, to *Node) (*Connection, error) {
	return n.ConnectWeight(from, to, defaultWeight(n.rng))
}

// ConnectWeight is Connect with an explicit weight for new connections.
func (n *Network) ConnectWeight(from, to *Node, weight float64) (*Connection, error) {
	if !n.owns(from) || !n.owns(to) {
		return nil, fmt.Errorf("connect: %w", ErrForeignNode)
	}
	if from == to && from.self != nil {
		return from.self, nil
	}
	if existing := from.connectionTo(to); existing != nil {
		return existing, nil
	}
	c := from.Connect(to, weight)
	if from == to {
		n.selfConns = append(n.selfConns, c)
	} else {
		n.connections = append(n.connections, c)
	}
	return c, nil
}

// Disconnect removes the connection from from to to, ungating it first.
// A missing connection yields ErrConnectionNotFound and changes nothing.
func (n *Network) Disconnect(from, to *Node) error {
	if !n.owns(from) || !n.owns(to) {
		return fmt.Errorf("disconnect: %w", ErrForeignNode)
	}
	var c *Connection
	if from == to {
		c = from.self
	} else {
		c = from.connectionTo(to)
	}
	if c == nil {
		return fmt.Errorf("disconnect %d -> %d: %w", from.index, to.index, ErrConnectionNotFound)
	}
	if c.Gater != nil {
		if err := n.Ungate(c); err != nil {
			return err
		}
	}
	if from == to {
		n.selfConns = removeConnection(n.selfConns, c)
	} else {
		n.connections = removeConnection(n.connections, c)
	}
	return from.Disconnect(to)
}

// Gate makes node the gater of c. Gating an already gated connection is
// logged and reported with ErrGateConflict.
func (n *Network) Gate(node *Node, c *Connection) error {
	if !n.owns(node) {
		return fmt.Errorf("gate: %w", ErrForeignNode)
	}
	if !n.ownsConnection(c) {
		return fmt.Errorf("gate: %w", ErrForeignConnection)
	}
	if c.Gater != nil {
		n.logger.Debug("connection already gated",
			slog.Int("from", c.From.index), slog.Int("to", c.To.index))
		return fmt.Errorf("gate %d -> %d: %w", c.From.index, c.To.index, ErrGateConflict)
	}
	if err := node.Gate(c); err != nil {
		return err
	}
	n.gates = append(n.gates, c)
	return nil
}

// Ungate removes the gater of c.
func (n *Network) Ungate(c *Connection) error {
	if c == nil || !slices.Contains(n.gates, c) {
		return fmt.Errorf("ungate: %w", ErrNotGated)
	}
	n.gates = removeConnection(n.gates, c)
	return c.Gater.Ungate(c)
}

// Remove deletes a hidden or constant node. Its predecessors are bridged to
// its successors and the gaters of its removed connections are handed over
// to the bridging connections.
func (n *Network) Remove(node *Node) error {
	return n.remove(node, methods.SubNode.KeepGates)
}

func (n *Network) remove(node *Node, keepGates bool) error {
	if !n.owns(node) {
		return fmt.Errorf("remove: %w", ErrForeignNode)
	}
	if node.Type == Input || node.Type == Output {
		return fmt.Errorf("remove node %d: %w", node.index, ErrProtectedNode)
	}

	if node.self != nil {
		if err := n.Disconnect(node, node); err != nil {
			return err
		}
	}

	var gaters []*Node

	incoming := slices.Clone(node.in)
	inputs := make([]*Node, 0, len(incoming))
	for i := len(incoming) - 1; i >= 0; i-- {
		c := incoming[i]
		if keepGates && c.Gater != nil && c.Gater != node {
			gaters = append(gaters, c.Gater)
		}
		inputs = append(inputs, c.From)
		if err := n.Disconnect(c.From, node); err != nil {
			return err
		}
	}

	outgoing := slices.Clone(node.out)
	outputs := make([]*Node, 0, len(outgoing))
	for i := len(outgoing) - 1; i >= 0; i-- {
		c := outgoing[i]
		if keepGates && c.Gater != nil && c.Gater != node {
			gaters = append(gaters, c.Gater)
		}
		outputs = append(outputs, c.To)
		if err := n.Disconnect(node, c.To); err != nil {
			return err
		}
	}

	var bridges []*Connection
	for _, in := range inputs {
		for _, out := range outputs {
			if in.IsProjectingTo(out) {
				continue
			}
			c, err := n.Connect(in, out)
			if err != nil {
				return err
			}
			bridges = append(bridges, c)
		}
	}

	for _, gater := range gaters {
		if len(bridges) == 0 {
			break
		}
		i := n.rng.Intn(len(bridges))
		if err := n.Gate(gater, bridges[i]); err != nil {
			return err
		}
		bridges = slices.Delete(bridges, i, i+1)
	}

	for _, c := range slices.Clone(node.gated) {
		if err := n.Ungate(c); err != nil {
			return err
		}
	}

	n.nodes = slices.Delete(n.nodes, node.index, node.index+1)
	node.index = -1
	n.reindex()
	return nil
}

// InsertHidden creates a hidden node at position, clamped so that it lands
// between the inputs and the outputs.
func (n *Network) InsertHidden(position int) *Node {
	position = max(n.Input, min(position, len(n.nodes)-n.Output))
	node := NewNode(Hidden, n.rng)
	n.nodes = slices.Insert(n.nodes, position, node)
	n.reindex()
	return node
}

// Clear resets the recurrent state of every node.
func (n *Network) Clear() {
	for _, node := range n.nodes {
		node.Clear()
	}
}

// SetBias sets the bias of every node.
func (n *Network) SetBias(bias float64) {
	for _, node := range n.nodes {
		node.Bias = bias
	}
}

// SetSquash sets the activation of every node.
func (n *Network) SetSquash(a methods.Activation) {
	for _, node := range n.nodes {
		node.Squash = a
	}
}

// Clone returns a deep copy sharing only the random source and logger.
// Recurrent state and pending deltas are not copied.
func (n *Network) Clone() *Network {
	c := &Network{
		Input:   n.Input,
		Output:  n.Output,
		Dropout: n.Dropout,
		Score:   n.Score,
		rng:     n.rng,
		logger:  n.logger,
		cost:    n.cost,
	}
	c.nodes = make([]*Node, len(n.nodes))
	for i, node := range n.nodes {
		c.nodes[i] = &Node{
			Type:   node.Type,
			Bias:   node.Bias,
			Squash: node.Squash,
			mask:   node.mask,
			index:  i,
		}
	}

	copies := make(map[*Connection]*Connection, len(n.connections)+len(n.selfConns))
	for _, conn := range n.connections {
		cc := c.nodes[conn.From.index].Connect(c.nodes[conn.To.index], conn.Weight)
		c.connections = append(c.connections, cc)
		copies[conn] = cc
	}
	for _, conn := range n.selfConns {
		cc := c.nodes[conn.From.index].Connect(c.nodes[conn.From.index], conn.Weight)
		c.selfConns = append(c.selfConns, cc)
		copies[conn] = cc
	}
	for _, conn := range n.gates {
		cc := copies[conn]
		_ = c.nodes[conn.Gater.index].Gate(cc)
		c.gates = append(c.gates, cc)
	}
	return c
}
