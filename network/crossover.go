package network

import (
	"fmt"
	"slices"
)

// connectionGene is a connection expressed by endpoint positions, used to
// line up homologous connections of two parents.
type connectionGene struct {
	from, to int
	weight   float64
	gater    int
}

// connectionGenes returns the genes of n keyed by pairing key, plus the keys
// in network order so iteration stays deterministic.
func connectionGenes(n *Network) (map[int]connectionGene, []int) {
	genes := make(map[int]connectionGene, len(n.connections)+len(n.selfConns))
	keys := make([]int, 0, len(n.connections)+len(n.selfConns))
	add := func(c *Connection) {
		g := connectionGene{from: c.From.index, to: c.To.index, weight: c.Weight, gater: -1}
		if c.Gater != nil {
			g.gater = c.Gater.index
		}
		key := PairingKey(g.from, g.to)
		genes[key] = g
		keys = append(keys, key)
	}
	for _, c := range n.connections {
		add(c)
	}
	for _, c := range n.selfConns {
		add(c)
	}
	return genes, keys
}

// CrossOver breeds an offspring from two networks with the same input and
// output sizes. Nodes are aligned by position, connections by endpoint
// positions. Genes found in only one parent come from the fitter parent, or
// from both when equal is set or the scores tie.
func CrossOver(a, b *Network, equal bool) (*Network, error) {
	if a.Input != b.Input || a.Output != b.Output {
		return nil, fmt.Errorf("crossover %dx%d with %dx%d: %w", a.Input, a.Output, b.Input, b.Output, ErrInputOutputMismatch)
	}
	offspring, err := newEmpty(a.Input, a.Output, WithRand(a.rng), WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	offspring.Dropout = a.Dropout
	rng := a.rng

	len1, len2 := len(a.nodes), len(b.nodes)
	var size int
	switch {
	case equal || a.Score == b.Score:
		lo, hi := min(len1, len2), max(len1, len2)
		size = lo + rng.Intn(hi-lo+1)
	case a.Score > b.Score:
		size = len1
	default:
		size = len2
	}

	at := func(n *Network, i int) *Node {
		if i < len(n.nodes) {
			return n.nodes[i]
		}
		return nil
	}

	offspring.nodes = make([]*Node, 0, size)
	for i := 0; i < size; i++ {
		var source *Node
		if i < size-a.Output {
			chosen, other := at(a, i), at(b, i)
			if rng.Float64() < 0.5 {
				chosen, other = other, chosen
			}
			if chosen == nil || chosen.Type == Output {
				chosen = other
			}
			source = chosen
		} else if rng.Float64() >= 0.5 {
			source = a.nodes[len1+i-size]
		} else {
			source = b.nodes[len2+i-size]
		}
		if source == nil {
			return nil, fmt.Errorf("crossover: no parent node for position %d", i)
		}
		offspring.nodes = append(offspring.nodes, &Node{
			Type:   source.Type,
			Bias:   source.Bias,
			Squash: source.Squash,
			mask:   1,
		})
	}
	offspring.reindex()

	genes1, keys1 := connectionGenes(a)
	genes2, keys2 := connectionGenes(b)

	var inherited []connectionGene
	matched := make(map[int]bool)
	for _, key := range keys1 {
		g1 := genes1[key]
		if g2, ok := genes2[key]; ok {
			matched[key] = true
			if rng.Float64() >= 0.5 {
				inherited = append(inherited, g1)
			} else {
				inherited = append(inherited, g2)
			}
		} else if a.Score >= b.Score || equal {
			inherited = append(inherited, g1)
		}
	}
	if b.Score >= a.Score || equal {
		for _, key := range keys2 {
			if !matched[key] {
				inherited = append(inherited, genes2[key])
			}
		}
	}

	for _, g := range inherited {
		if g.from >= size || g.to >= size {
			continue
		}
		from, to := offspring.nodes[g.from], offspring.nodes[g.to]
		if from.IsProjectingTo(to) {
			continue
		}
		c, err := offspring.ConnectWeight(from, to, g.weight)
		if err != nil {
			return nil, err
		}
		if g.gater >= 0 && g.gater < size {
			if err := offspring.Gate(offspring.nodes[g.gater], c); err != nil {
				return nil, err
			}
		}
	}
	return offspring, nil
}

// CrossOver breeds n with other. See the package-level CrossOver.
func (n *Network) CrossOver(other *Network, equal bool) (*Network, error) {
	return CrossOver(n, other, equal)
}

// Merge chains a into b: the outputs of a become hidden nodes feeding what
// used to be b's inputs. Output k of a takes over input k of b. Both
// arguments are left untouched.
func Merge(a, b *Network) (*Network, error) {
	if a.Output != b.Input {
		return nil, fmt.Errorf("merge %d outputs into %d inputs: %w", a.Output, b.Input, ErrOutputInputMismatch)
	}
	first, second := a.Clone(), b.Clone()

	for k := 0; k < second.Input; k++ {
		in := second.nodes[k]
		target := first.nodes[len(first.nodes)-first.Output+k]

		if in.self != nil {
			if err := second.Disconnect(in, in); err != nil {
				return nil, err
			}
		}
		for _, c := range slices.Clone(in.in) {
			if err := second.Disconnect(c.From, in); err != nil {
				return nil, err
			}
		}
		for _, c := range in.out {
			c.From = target
			target.out = append(target.out, c)
		}
		in.out = nil
		for _, c := range in.gated {
			c.Gater = target
			target.gated = append(target.gated, c)
		}
		in.gated = nil
	}

	merged, err := newEmpty(a.Input, b.Output, WithRand(a.rng), WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	merged.Dropout = a.Dropout
	for _, node := range first.nodes[len(first.nodes)-first.Output:] {
		node.Type = Hidden
	}
	merged.nodes = append(first.nodes, second.nodes[second.Input:]...)
	merged.connections = append(first.connections, second.connections...)
	merged.selfConns = append(first.selfConns, second.selfConns...)
	merged.gates = append(first.gates, second.gates...)
	merged.reindex()
	return merged, nil
}
