package network

import "math/rand"

// Connection is a directed, weighted edge between two nodes of the same
// network. From and To never change after creation.
type Connection struct {
	From, To *Node

	Weight float64
	Gain   float64
	Gater  *Node

	eligibility float64
	xtrace      xtrace

	previousDeltaWeight float64
	totalDeltaWeight    float64
}

// xtrace holds, per node influenced through a gate, the extended
// eligibility of this connection.
type xtrace struct {
	nodes  []*Node
	values []float64
}

func (x *xtrace) index(n *Node) int {
	for i, node := range x.nodes {
		if node == n {
			return i
		}
	}
	return -1
}

func (x *xtrace) reset() {
	x.nodes = x.nodes[:0]
	x.values = x.values[:0]
}

func newConnection(from, to *Node, weight float64) *Connection {
	return &Connection{
		From:   from,
		To:     to,
		Weight: weight,
		Gain:   1,
	}
}

// defaultWeight draws the initial weight of a connection created without an
// explicit one.
func defaultWeight(rng *rand.Rand) float64 {
	return rng.Float64()*0.2 - 0.1
}

// PairingKey maps an ordered pair of node indices to a unique integer
// (Cantor pairing). It is only a matching key and is not stable across
// structural edits.
func PairingKey(a, b int) int {
	return (a+b)*(a+b+1)/2 + b
}

// Key returns the pairing key of the connection's current endpoint indices.
func (c *Connection) Key() int {
	return PairingKey(c.From.index, c.To.index)
}

// Gated reports whether a node currently gates the connection.
func (c *Connection) Gated() bool {
	return c.Gater != nil
}

// Eligibility returns the connection's eligibility trace.
func (c *Connection) Eligibility() float64 {
	return c.eligibility
}

func (c *Connection) isSelf() bool {
	return c.From == c.To
}
