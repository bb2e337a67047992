package network

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baldhumanity/evonet/methods"
)

// NodeRecord is the serialized form of a node.
type NodeRecord struct {
	Index  int     `json:"index"`
	Type   string  `json:"type"`
	Bias   float64 `json:"bias"`
	Squash string  `json:"squash"`
	Mask   float64 `json:"mask"`
}

// ConnectionRecord is the serialized form of a connection. From == To marks
// a self-connection.
type ConnectionRecord struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Weight float64 `json:"weight"`
	Gater  *int    `json:"gater"`
}

// Record is the serialized form of a network.
type Record struct {
	Input       int                `json:"input"`
	Output      int                `json:"output"`
	Dropout     float64            `json:"dropout"`
	Nodes       []NodeRecord       `json:"nodes"`
	Connections []ConnectionRecord `json:"connections"`
}

// Record captures the structure and parameters of n. Recurrent state is not
// part of the record.
func (n *Network) Record() Record {
	r := Record{
		Input:       n.Input,
		Output:      n.Output,
		Dropout:     n.Dropout,
		Nodes:       make([]NodeRecord, 0, len(n.nodes)),
		Connections: make([]ConnectionRecord, 0, len(n.connections)+len(n.selfConns)),
	}
	for i, node := range n.nodes {
		r.Nodes = append(r.Nodes, NodeRecord{
			Index:  i,
			Type:   node.Type.String(),
			Bias:   node.Bias,
			Squash: node.Squash.Name,
			Mask:   node.mask,
		})
		if node.self != nil {
			r.Connections = append(r.Connections, connectionRecord(node.self))
		}
	}
	for _, c := range n.connections {
		r.Connections = append(r.Connections, connectionRecord(c))
	}
	return r
}

func connectionRecord(c *Connection) ConnectionRecord {
	cr := ConnectionRecord{From: c.From.index, To: c.To.index, Weight: c.Weight}
	if c.Gater != nil {
		gater := c.Gater.index
		cr.Gater = &gater
	}
	return cr
}

// FromRecord rebuilds a network. Connections and gates are restored through
// ConnectWeight and Gate.
func FromRecord(r Record, opts ...Option) (*Network, error) {
	n, err := newEmpty(r.Input, r.Output, opts...)
	if err != nil {
		return nil, err
	}
	n.Dropout = r.Dropout

	if len(r.Nodes) < r.Input+r.Output {
		return nil, fmt.Errorf("%d nodes for %d inputs and %d outputs: %w", len(r.Nodes), r.Input, r.Output, ErrInvalidRecord)
	}
	for i, nr := range r.Nodes {
		typ, err := ParseNodeType(nr.Type)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w: %w", i, ErrInvalidRecord, err)
		}
		wantInput, wantOutput := i < r.Input, i >= len(r.Nodes)-r.Output
		if (typ == Input) != wantInput || (typ == Output) != wantOutput {
			return nil, fmt.Errorf("node %d has type %s at this position: %w", i, typ, ErrInvalidRecord)
		}
		squash, err := methods.GetActivation(nr.Squash)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		mask := nr.Mask
		if mask == 0 {
			mask = 1
		}
		n.nodes = append(n.nodes, &Node{
			Type:   typ,
			Bias:   nr.Bias,
			Squash: squash,
			mask:   mask,
		})
	}
	n.reindex()

	valid := func(i int) bool { return i >= 0 && i < len(n.nodes) }
	for _, cr := range r.Connections {
		if !valid(cr.From) || !valid(cr.To) {
			return nil, fmt.Errorf("connection %d -> %d: %w", cr.From, cr.To, ErrInvalidRecord)
		}
		c, err := n.ConnectWeight(n.nodes[cr.From], n.nodes[cr.To], cr.Weight)
		if err != nil {
			return nil, err
		}
		c.Weight = cr.Weight
		if cr.Gater == nil {
			continue
		}
		if !valid(*cr.Gater) {
			return nil, fmt.Errorf("gater %d: %w", *cr.Gater, ErrInvalidRecord)
		}
		if err := n.Gate(n.nodes[*cr.Gater], c); err != nil && !errors.Is(err, ErrGateConflict) {
			return nil, err
		}
	}
	return n, nil
}

// MarshalJSON encodes the network's Record.
func (n *Network) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Record())
}

// UnmarshalJSON replaces n with the decoded network, keeping its random
// source and logger when set.
func (n *Network) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	var opts []Option
	if n.rng != nil {
		opts = append(opts, WithRand(n.rng))
	}
	if n.logger != nil {
		opts = append(opts, WithLogger(n.logger))
	}
	decoded, err := FromRecord(r, opts...)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}
