package network

import (
	"fmt"
	"math/rand"

	"github.com/baldhumanity/evonet/methods"
)

// NodeType is the role of a node inside a network.
type NodeType int

const (
	Input NodeType = iota
	Hidden
	Output
	Constant
)

func (t NodeType) String() string {
	switch t {
	case Input:
		return "input"
	case Hidden:
		return "hidden"
	case Output:
		return "output"
	case Constant:
		return "constant"
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// ParseNodeType is the inverse of NodeType.String.
func ParseNodeType(s string) (NodeType, error) {
	switch s {
	case "input":
		return Input, nil
	case "hidden":
		return Hidden, nil
	case "output":
		return Output, nil
	case "constant":
		return Constant, nil
	}
	return 0, fmt.Errorf("unknown node type %q", s)
}

// Node is a single unit of a network. Its connection lists hold pointers to
// the connections it takes part in; the owning Network keeps those lists and
// its own global lists in sync.
type Node struct {
	Type   NodeType
	Bias   float64
	Squash methods.Activation

	index int

	state      float64
	old        float64
	activation float64
	derivative float64
	mask       float64

	responsibility float64
	projected      float64
	gatedError     float64

	previousDeltaBias float64
	totalDeltaBias    float64

	in    []*Connection
	out   []*Connection
	gated []*Connection
	self  *Connection
}

// NewNode creates a detached node. Input nodes start with a zero bias,
// every other type with a small random one.
func NewNode(typ NodeType, rng *rand.Rand) *Node {
	n := &Node{
		Type:   typ,
		Squash: methods.Logistic,
		index:  -1,
		mask:   1,
	}
	if typ != Input {
		n.Bias = rng.Float64()*0.2 - 0.1
	}
	return n
}

// Index is the node's position in its network, or -1 for a detached node.
func (n *Node) Index() int { return n.index }

func (n *Node) Activation() float64 { return n.activation }
func (n *Node) State() float64      { return n.state }
func (n *Node) Derivative() float64 { return n.derivative }
func (n *Node) Mask() float64       { return n.mask }

// Responsibility is the error signal computed by the last propagation.
func (n *Node) Responsibility() float64 { return n.responsibility }

func (n *Node) Incoming() []*Connection { return n.in }
func (n *Node) Outgoing() []*Connection { return n.out }
func (n *Node) Gated() []*Connection    { return n.gated }

// Self returns the self-connection or nil.
func (n *Node) Self() *Connection { return n.self }

// ActivateInput sets the activation directly, bypassing the squash.
func (n *Node) ActivateInput(value float64) float64 {
	n.activation = value
	return value
}

// Activate computes the node's activation from its incoming connections,
// updates the gain of every connection it gates and refreshes the traces
// used by Propagate.
func (n *Node) Activate() float64 {
	n.old = n.state

	selfFactor := 0.0
	if n.self != nil {
		selfFactor = n.self.Gain * n.self.Weight
	}
	n.state = selfFactor*n.state + n.Bias
	for _, c := range n.in {
		n.state += c.From.activation * c.Weight * c.Gain
	}

	n.activation = n.Squash.Apply(n.state) * n.mask
	n.derivative = n.Squash.Derive(n.state)

	var (
		influenced []*Node
		influences []float64
	)
	for _, c := range n.gated {
		to := c.To
		i := nodeIndex(influenced, to)
		if i >= 0 {
			influences[i] += c.Weight * c.From.activation
		} else {
			influence := c.Weight * c.From.activation
			if to.self != nil && to.self.Gater == n {
				influence += to.old
			}
			influenced = append(influenced, to)
			influences = append(influences, influence)
		}
		c.Gain = n.activation
	}

	for _, c := range n.in {
		c.eligibility = selfFactor*c.eligibility + c.From.activation*c.Gain
		for j, node := range influenced {
			nodeSelf := 0.0
			if node.self != nil {
				nodeSelf = node.self.Gain * node.self.Weight
			}
			trace := n.derivative * c.eligibility * influences[j]
			if k := c.xtrace.index(node); k >= 0 {
				c.xtrace.values[k] = nodeSelf*c.xtrace.values[k] + trace
			} else {
				c.xtrace.nodes = append(c.xtrace.nodes, node)
				c.xtrace.values = append(c.xtrace.values, trace)
			}
		}
	}

	return n.activation
}

// Propagate backpropagates the error collected from downstream nodes and
// accumulates weight and bias deltas. Deltas are committed when update is
// true.
func (n *Node) Propagate(rate, momentum float64, update bool) {
	n.propagate(rate, momentum, update, 0, false, methods.MSE)
}

// PropagateTarget is Propagate for a node that has a target value, typically
// an output node. The initial error is cost.Gradient scaled by the squash
// derivative.
func (n *Node) PropagateTarget(rate, momentum float64, update bool, target float64, cost methods.Cost) {
	n.propagate(rate, momentum, update, target, true, cost)
}

func (n *Node) propagate(rate, momentum float64, update bool, target float64, hasTarget bool, cost methods.Cost) {
	if hasTarget {
		n.responsibility = cost.Gradient(target, n.activation) * n.derivative
		n.projected = n.responsibility
	} else {
		sum := 0.0
		for _, c := range n.out {
			sum += c.To.responsibility * c.Weight * c.Gain
		}
		n.projected = n.derivative * sum

		sum = 0
		for _, c := range n.gated {
			node := c.To
			influence := 0.0
			if node.self != nil && node.self.Gater == n {
				influence = node.old
			}
			influence += c.Weight * c.From.activation
			sum += node.responsibility * influence
		}
		n.gatedError = n.derivative * sum
		n.responsibility = n.projected + n.gatedError
	}

	if n.Type == Constant {
		return
	}

	for _, c := range n.in {
		gradient := n.projected * c.eligibility
		for j, node := range c.xtrace.nodes {
			gradient += node.responsibility * c.xtrace.values[j]
		}
		c.totalDeltaWeight += rate * gradient * n.mask
		if update {
			c.totalDeltaWeight += momentum * c.previousDeltaWeight
			c.Weight += c.totalDeltaWeight
			c.previousDeltaWeight = c.totalDeltaWeight
			c.totalDeltaWeight = 0
		}
	}

	n.totalDeltaBias += rate * n.responsibility
	if update {
		n.totalDeltaBias += momentum * n.previousDeltaBias
		n.Bias += n.totalDeltaBias
		n.previousDeltaBias = n.totalDeltaBias
		n.totalDeltaBias = 0
	}
}

// Mutate applies a parametric mutation (MOD_BIAS or MOD_ACTIVATION).
func (n *Node) Mutate(m methods.Mutation, rng *rand.Rand) error {
	switch m.Kind {
	case methods.ModActivationKind:
		allowed := m.Allowed
		if len(allowed) == 0 {
			allowed = methods.Activations
		}
		current := -1
		for i, a := range allowed {
			if a.Is(n.Squash) {
				current = i
				break
			}
		}
		switch {
		case current < 0:
			n.Squash = allowed[rng.Intn(len(allowed))]
		case len(allowed) > 1:
			n.Squash = allowed[(current+rng.Intn(len(allowed)-1)+1)%len(allowed)]
		}
	case methods.ModBiasKind:
		n.Bias += rng.Float64()*(m.Max-m.Min) + m.Min
	default:
		return fmt.Errorf("node %s: %w", m.Name(), ErrUnsupportedMutation)
	}
	return nil
}

// Connect returns the connection from n to target, creating it with the
// given weight when it does not exist yet. Connecting a node to itself
// fills its self-connection slot.
func (n *Node) Connect(target *Node, weight float64) *Connection {
	if target == n {
		if n.self == nil {
			n.self = newConnection(n, n, weight)
		}
		return n.self
	}
	if c := n.connectionTo(target); c != nil {
		return c
	}
	c := newConnection(n, target, weight)
	n.out = append(n.out, c)
	target.in = append(target.in, c)
	return c
}

// Disconnect removes the connection from n to target from both endpoints
// and ungates it.
func (n *Node) Disconnect(target *Node) error {
	if target == n {
		if n.self == nil {
			return fmt.Errorf("self-connection of node %d: %w", n.index, ErrConnectionNotFound)
		}
		if n.self.Gater != nil {
			_ = n.self.Gater.Ungate(n.self)
		}
		n.self = nil
		return nil
	}
	c := n.connectionTo(target)
	if c == nil {
		return fmt.Errorf("connection %d -> %d: %w", n.index, target.index, ErrConnectionNotFound)
	}
	n.out = removeConnection(n.out, c)
	target.in = removeConnection(target.in, c)
	if c.Gater != nil {
		_ = c.Gater.Ungate(c)
	}
	return nil
}

// Gate makes n the gater of c.
func (n *Node) Gate(c *Connection) error {
	if c.Gater != nil {
		return fmt.Errorf("connection %d -> %d: %w", c.From.index, c.To.index, ErrGateConflict)
	}
	n.gated = append(n.gated, c)
	c.Gater = n
	return nil
}

// Ungate releases c and resets its gain to 1.
func (n *Node) Ungate(c *Connection) error {
	if c.Gater != n {
		return fmt.Errorf("connection %d -> %d: %w", c.From.index, c.To.index, ErrNotGated)
	}
	n.gated = removeConnection(n.gated, c)
	c.Gater = nil
	c.Gain = 1
	return nil
}

// Clear resets the recurrent state, traces and pending deltas.
func (n *Node) Clear() {
	for _, c := range n.in {
		c.eligibility = 0
		c.xtrace.reset()
		c.totalDeltaWeight = 0
	}
	for _, c := range n.gated {
		c.Gain = 0
	}
	n.responsibility, n.projected, n.gatedError = 0, 0, 0
	n.old, n.state, n.activation, n.derivative = 0, 0, 0, 0
	n.totalDeltaBias = 0
	n.mask = 1
}

// IsProjectingTo reports whether n has a connection to target.
func (n *Node) IsProjectingTo(target *Node) bool {
	if target == n {
		return n.self != nil
	}
	return n.connectionTo(target) != nil
}

// IsProjectedBy reports whether source has a connection to n.
func (n *Node) IsProjectedBy(source *Node) bool {
	if source == n {
		return n.self != nil
	}
	for _, c := range n.in {
		if c.From == source {
			return true
		}
	}
	return false
}

func (n *Node) connectionTo(target *Node) *Connection {
	for _, c := range n.out {
		if c.To == target {
			return c
		}
	}
	return nil
}

func nodeIndex(nodes []*Node, n *Node) int {
	for i, node := range nodes {
		if node == n {
			return i
		}
	}
	return -1
}

func removeConnection(list []*Connection, c *Connection) []*Connection {
	for i, item := range list {
		if item == c {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
