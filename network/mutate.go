package network

import (
	"fmt"
	"log/slog"

	"github.com/baldhumanity/evonet/methods"
)

// Mutate applies one mutation operator. When the operator has no legal
// candidate the network is left untouched and an error wrapping
// ErrNoCandidate is returned.
func (n *Network) Mutate(m methods.Mutation) error {
	switch m.Kind {
	case methods.AddNodeKind:
		return n.mutateAddNode(m)
	case methods.SubNodeKind:
		return n.mutateSubNode(m)
	case methods.AddConnKind:
		return n.mutateAddConn(m, false)
	case methods.AddBackConnKind:
		return n.mutateAddConn(m, true)
	case methods.SubConnKind:
		return n.mutateSubConn(m, false)
	case methods.SubBackConnKind:
		return n.mutateSubConn(m, true)
	case methods.ModWeightKind:
		return n.mutateModWeight(m)
	case methods.ModBiasKind:
		node := n.nodes[n.Input+n.rng.Intn(len(n.nodes)-n.Input)]
		return node.Mutate(m, n.rng)
	case methods.ModActivationKind:
		return n.mutateModActivation(m)
	case methods.AddSelfConnKind:
		return n.mutateAddSelfConn(m)
	case methods.SubSelfConnKind:
		if len(n.selfConns) == 0 {
			return n.noCandidate(m)
		}
		c := n.selfConns[n.rng.Intn(len(n.selfConns))]
		return n.Disconnect(c.From, c.To)
	case methods.AddGateKind:
		return n.mutateAddGate(m)
	case methods.SubGateKind:
		if len(n.gates) == 0 {
			return n.noCandidate(m)
		}
		return n.Ungate(n.gates[n.rng.Intn(len(n.gates))])
	case methods.SwapNodesKind:
		return n.mutateSwapNodes(m)
	}
	return fmt.Errorf("mutate %s: %w", m.Name(), ErrUnsupportedMutation)
}

func (n *Network) noCandidate(m methods.Mutation) error {
	n.logger.Debug("no mutation candidate", slog.String("mutation", m.Name()))
	return fmt.Errorf("mutate %s: %w", m.Name(), ErrNoCandidate)
}

func (n *Network) mutateAddNode(m methods.Mutation) error {
	if len(n.connections) == 0 {
		return n.noCandidate(m)
	}
	c := n.connections[n.rng.Intn(len(n.connections))]
	from, to, gater := c.From, c.To, c.Gater
	if err := n.Disconnect(from, to); err != nil {
		return err
	}

	node := n.InsertHidden(to.index)
	if err := node.Mutate(methods.ModActivation, n.rng); err != nil {
		return err
	}

	in, err := n.Connect(from, node)
	if err != nil {
		return err
	}
	out, err := n.Connect(node, to)
	if err != nil {
		return err
	}
	if gater != nil {
		target := in
		if n.rng.Float64() >= 0.5 {
			target = out
		}
		return n.Gate(gater, target)
	}
	return nil
}

func (n *Network) mutateSubNode(m methods.Mutation) error {
	hidden := len(n.nodes) - n.Input - n.Output
	if hidden == 0 {
		return n.noCandidate(m)
	}
	return n.remove(n.nodes[n.Input+n.rng.Intn(hidden)], m.KeepGates)
}

// mutateAddConn adds a forward connection, or a backward one when back is
// set, between two nodes that are not connected yet.
func (n *Network) mutateAddConn(m methods.Mutation, back bool) error {
	var pairs [][2]*Node
	if back {
		for i := n.Input; i < len(n.nodes); i++ {
			for j := n.Input; j < i; j++ {
				if !n.nodes[i].IsProjectingTo(n.nodes[j]) {
					pairs = append(pairs, [2]*Node{n.nodes[i], n.nodes[j]})
				}
			}
		}
	} else {
		for i := 0; i < len(n.nodes)-n.Output; i++ {
			for j := max(i+1, n.Input); j < len(n.nodes); j++ {
				if !n.nodes[i].IsProjectingTo(n.nodes[j]) {
					pairs = append(pairs, [2]*Node{n.nodes[i], n.nodes[j]})
				}
			}
		}
	}
	if len(pairs) == 0 {
		return n.noCandidate(m)
	}
	p := pairs[n.rng.Intn(len(pairs))]
	_, err := n.Connect(p[0], p[1])
	return err
}

// mutateSubConn removes a forward (or backward) connection whose endpoints
// both keep at least one other connection.
func (n *Network) mutateSubConn(m methods.Mutation, back bool) error {
	var candidates []*Connection
	for _, c := range n.connections {
		if len(c.From.out) <= 1 || len(c.To.in) <= 1 {
			continue
		}
		if (c.From.index < c.To.index) != back {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return n.noCandidate(m)
	}
	c := candidates[n.rng.Intn(len(candidates))]
	return n.Disconnect(c.From, c.To)
}

func (n *Network) mutateModWeight(m methods.Mutation) error {
	all := len(n.connections) + len(n.selfConns)
	if all == 0 {
		return n.noCandidate(m)
	}
	i := n.rng.Intn(all)
	var c *Connection
	if i < len(n.connections) {
		c = n.connections[i]
	} else {
		c = n.selfConns[i-len(n.connections)]
	}
	c.Weight += n.rng.Float64()*(m.Max-m.Min) + m.Min
	return nil
}

func (n *Network) mutateModActivation(m methods.Mutation) error {
	upper := len(n.nodes)
	if !m.MutateOutput {
		upper -= n.Output
	}
	if upper <= n.Input {
		return n.noCandidate(m)
	}
	node := n.nodes[n.Input+n.rng.Intn(upper-n.Input)]
	return node.Mutate(m, n.rng)
}

func (n *Network) mutateAddSelfConn(m methods.Mutation) error {
	var candidates []*Node
	for _, node := range n.nodes[n.Input:] {
		if node.self == nil {
			candidates = append(candidates, node)
		}
	}
	if len(candidates) == 0 {
		return n.noCandidate(m)
	}
	node := candidates[n.rng.Intn(len(candidates))]
	_, err := n.Connect(node, node)
	return err
}

func (n *Network) mutateAddGate(m methods.Mutation) error {
	var candidates []*Connection
	for _, c := range n.connections {
		if c.Gater == nil {
			candidates = append(candidates, c)
		}
	}
	for _, c := range n.selfConns {
		if c.Gater == nil {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return n.noCandidate(m)
	}
	gater := n.nodes[n.Input+n.rng.Intn(len(n.nodes)-n.Input)]
	return n.Gate(gater, candidates[n.rng.Intn(len(candidates))])
}

func (n *Network) mutateSwapNodes(m methods.Mutation) error {
	upper := len(n.nodes)
	if !m.MutateOutput {
		upper -= n.Output
	}
	span := upper - n.Input
	if span < 2 {
		return n.noCandidate(m)
	}
	i := n.Input + n.rng.Intn(span)
	j := n.Input + n.rng.Intn(span-1)
	if j >= i {
		j++
	}
	a, b := n.nodes[i], n.nodes[j]
	a.Bias, b.Bias = b.Bias, a.Bias
	a.Squash, b.Squash = b.Squash, a.Squash
	return nil
}
