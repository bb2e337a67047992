package network_test

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evonet/architect"
	"github.com/baldhumanity/evonet/methods"
	"github.com/baldhumanity/evonet/network"
)

func seeded(seed int64) network.Option {
	return network.WithRand(rand.New(rand.NewSource(seed)))
}

func perceptron(t *testing.T, seed int64, layers ...int) *network.Network {
	t.Helper()
	n, err := architect.Perceptron(layers, seeded(seed))
	require.NoError(t, err)
	return n
}

// requireInvariants checks ordering, ownership and list consistency.
func requireInvariants(t *testing.T, n *network.Network) {
	t.Helper()
	nodes := n.Nodes()
	require.GreaterOrEqual(t, len(nodes), n.Input+n.Output)

	for i, node := range nodes {
		require.Equal(t, i, node.Index())
		switch {
		case i < n.Input:
			require.Equal(t, network.Input, node.Type, "node %d", i)
		case i >= len(nodes)-n.Output:
			require.Equal(t, network.Output, node.Type, "node %d", i)
		default:
			require.True(t, node.Type == network.Hidden || node.Type == network.Constant, "node %d", i)
		}
	}

	owned := func(node *network.Node) bool { return node != nil && n.IndexOf(node) >= 0 }

	incoming := 0
	for _, node := range nodes {
		incoming += len(node.Incoming())
		for _, c := range node.Gated() {
			require.Same(t, node, c.Gater)
			require.True(t, slices.Contains(n.Gates(), c))
		}
		if self := node.Self(); self != nil {
			require.True(t, slices.Contains(n.SelfConnections(), self))
		}
	}
	require.Equal(t, len(n.Connections()), incoming)

	for _, c := range n.Connections() {
		require.NotSame(t, c.From, c.To)
		require.True(t, owned(c.From) && owned(c.To))
		require.True(t, slices.Contains(c.From.Outgoing(), c))
		require.True(t, slices.Contains(c.To.Incoming(), c))
	}
	for _, c := range n.SelfConnections() {
		require.Same(t, c.From, c.To)
		require.Same(t, c, c.From.Self())
	}
	for _, c := range n.Gates() {
		require.True(t, owned(c.Gater))
		require.True(t, slices.Contains(c.Gater.Gated(), c))
		require.True(t, slices.Contains(n.Connections(), c) || slices.Contains(n.SelfConnections(), c))
	}
}

func TestNew(t *testing.T) {
	n, err := network.New(3, 2, seeded(1))
	require.NoError(t, err)
	requireInvariants(t, n)

	assert.Len(t, n.Nodes(), 5)
	assert.Len(t, n.Connections(), 6)
	for _, node := range n.Nodes()[:3] {
		assert.Zero(t, node.Bias)
	}
	for _, c := range n.Connections() {
		assert.GreaterOrEqual(t, c.Weight, 0.0)
		assert.Equal(t, 1.0, c.Gain)
	}

	_, err = network.New(0, 2)
	require.ErrorIs(t, err, network.ErrMissingSize)
	_, err = network.New(2, -1)
	require.ErrorIs(t, err, network.ErrMissingSize)
}

func TestActivateAndPropagateSizeChecks(t *testing.T) {
	n, err := network.New(2, 1, seeded(1))
	require.NoError(t, err)

	_, err = n.Activate([]float64{1})
	require.ErrorIs(t, err, network.ErrInputSizeMismatch)

	_, err = n.Activate([]float64{1, 0})
	require.NoError(t, err)
	err = n.Propagate(0.3, 0, true, []float64{1, 0})
	require.ErrorIs(t, err, network.ErrTargetSizeMismatch)
}

func TestNodeConnectIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := network.NewNode(network.Hidden, rng)
	b := network.NewNode(network.Hidden, rng)

	c1 := a.Connect(b, 0.5)
	c2 := a.Connect(b, 0.9)
	assert.Same(t, c1, c2)
	assert.Equal(t, 0.5, c2.Weight)
	assert.True(t, a.IsProjectingTo(b))
	assert.True(t, b.IsProjectedBy(a))
	assert.False(t, b.IsProjectingTo(a))

	self := a.Connect(a, 0.3)
	assert.Same(t, self, a.Self())
	assert.True(t, a.IsProjectingTo(a))
	assert.Len(t, a.Outgoing(), 1)

	require.NoError(t, a.Disconnect(b))
	assert.Empty(t, b.Incoming())
	require.ErrorIs(t, a.Disconnect(b), network.ErrConnectionNotFound)
}

func TestNodeGateConflictAndUngate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := network.NewNode(network.Hidden, rng)
	b := network.NewNode(network.Hidden, rng)
	g1 := network.NewNode(network.Hidden, rng)
	g2 := network.NewNode(network.Hidden, rng)

	c := a.Connect(b, 1)
	require.NoError(t, g1.Gate(c))
	require.ErrorIs(t, g2.Gate(c), network.ErrGateConflict)
	assert.Same(t, g1, c.Gater)

	c.Gain = 0.25
	require.NoError(t, g1.Ungate(c))
	assert.Nil(t, c.Gater)
	assert.Equal(t, 1.0, c.Gain)
	assert.Empty(t, g1.Gated())
}

func TestNodeActivationWithGate(t *testing.T) {
	n, err := network.New(1, 1, seeded(3))
	require.NoError(t, err)
	require.NoError(t, n.Mutate(methods.AddNode))

	in, hidden, out := n.Nodes()[0], n.Nodes()[1], n.Nodes()[2]
	hidden.Squash = methods.Logistic
	out.Squash = methods.Identity

	direct, err := n.ConnectWeight(in, out, 0.7)
	require.NoError(t, err)
	require.NoError(t, n.Gate(hidden, direct))
	requireInvariants(t, n)

	x := 0.6
	got, err := n.Activate([]float64{x})
	require.NoError(t, err)

	var inHidden, hiddenOut *network.Connection
	for _, c := range n.Connections() {
		switch {
		case c.From == in && c.To == hidden:
			inHidden = c
		case c.From == hidden && c.To == out:
			hiddenOut = c
		}
	}
	require.NotNil(t, inHidden)
	require.NotNil(t, hiddenOut)

	h := methods.Logistic.Apply(hidden.Bias + x*inHidden.Weight)
	want := out.Bias + h*hiddenOut.Weight + x*0.7*h
	assert.InDelta(t, want, got[0], 1e-12)
	assert.InDelta(t, h, direct.Gain, 1e-12)
}

func TestDisconnectAndGateErrors(t *testing.T) {
	n := perceptron(t, 1, 2, 2, 1)
	other := perceptron(t, 2, 2, 2, 1)
	nodes := n.Nodes()

	require.ErrorIs(t, n.Disconnect(nodes[0], nodes[4]), network.ErrConnectionNotFound)
	require.ErrorIs(t, n.Disconnect(nodes[0], other.Nodes()[2]), network.ErrForeignNode)

	c := n.Connections()[0]
	require.ErrorIs(t, n.Gate(other.Nodes()[2], c), network.ErrForeignNode)
	require.ErrorIs(t, n.Gate(nodes[2], other.Connections()[0]), network.ErrForeignConnection)
	require.ErrorIs(t, n.Ungate(c), network.ErrNotGated)

	require.NoError(t, n.Gate(nodes[2], c))
	err := n.Gate(nodes[3], c)
	require.ErrorIs(t, err, network.ErrGateConflict)
	assert.Same(t, nodes[2], c.Gater)
	assert.Len(t, n.Gates(), 1)

	require.NoError(t, n.Disconnect(c.From, c.To))
	assert.Empty(t, n.Gates())
	assert.Empty(t, nodes[2].Gated())
	requireInvariants(t, n)
}

func TestRemoveReconnects(t *testing.T) {
	n, err := network.New(1, 1, seeded(5))
	require.NoError(t, err)
	require.NoError(t, n.Mutate(methods.AddNode))
	require.Len(t, n.Nodes(), 3)

	in, hidden, out := n.Nodes()[0], n.Nodes()[1], n.Nodes()[2]
	require.False(t, in.IsProjectingTo(out))

	require.NoError(t, n.Remove(hidden))
	requireInvariants(t, n)

	assert.Len(t, n.Nodes(), 2)
	assert.True(t, in.IsProjectingTo(out))
	assert.Equal(t, -1, n.IndexOf(hidden))
	for _, c := range n.Connections() {
		assert.NotSame(t, hidden, c.From)
		assert.NotSame(t, hidden, c.To)
	}
}

func TestRemoveHandsOverGaters(t *testing.T) {
	n := perceptron(t, 7, 1, 2, 1)
	in, h1, h2, out := n.Nodes()[0], n.Nodes()[1], n.Nodes()[2], n.Nodes()[3]

	var inH1 *network.Connection
	for _, c := range in.Outgoing() {
		if c.To == h1 {
			inH1 = c
		}
	}
	require.NotNil(t, inH1)
	require.NoError(t, n.Gate(h2, inH1))

	require.NoError(t, n.Remove(h1))
	requireInvariants(t, n)

	require.Len(t, n.Gates(), 1)
	g := n.Gates()[0]
	assert.Same(t, h2, g.Gater)
	assert.Same(t, in, g.From)
	assert.Same(t, out, g.To)
}

func TestRemoveUngatesConnectionsGatedByNode(t *testing.T) {
	n := perceptron(t, 9, 2, 2, 1)
	gater := n.Nodes()[2]
	target := n.Nodes()[3].Outgoing()[0]
	require.NoError(t, n.Gate(gater, target))

	require.NoError(t, n.Remove(gater))
	requireInvariants(t, n)
	assert.Empty(t, n.Gates())
	assert.Nil(t, target.Gater)
	assert.Equal(t, 1.0, target.Gain)
}

func TestRemoveRejectsProtectedAndForeignNodes(t *testing.T) {
	n := perceptron(t, 1, 2, 2, 1)
	other := perceptron(t, 2, 2, 2, 1)

	require.ErrorIs(t, n.Remove(n.Nodes()[0]), network.ErrProtectedNode)
	require.ErrorIs(t, n.Remove(n.Nodes()[4]), network.ErrProtectedNode)
	require.ErrorIs(t, n.Remove(other.Nodes()[2]), network.ErrForeignNode)
}

func TestCloneIsIndependent(t *testing.T) {
	n, err := architect.Random(2, 3, 1, architect.RandomOptions{SelfConnections: 1, Gates: 2}, seeded(11))
	require.NoError(t, err)

	c := n.Clone()
	requireInvariants(t, c)
	assert.Equal(t, n.Record(), c.Record())

	for i := 0; i < 10; i++ {
		_ = c.Mutate(methods.AddNode)
	}
	assert.NotEqual(t, len(n.Nodes()), len(c.Nodes()))
	requireInvariants(t, n)
	for _, node := range c.Nodes() {
		assert.Equal(t, -1, n.IndexOf(node))
	}
}

func TestSetAndClear(t *testing.T) {
	n := perceptron(t, 1, 2, 3, 1)
	n.SetSquash(methods.Tanh)
	n.SetBias(0.5)
	for _, node := range n.Nodes() {
		assert.Equal(t, "TANH", node.Squash.Name)
		assert.Equal(t, 0.5, node.Bias)
	}

	_, err := n.Activate([]float64{1, 1})
	require.NoError(t, err)
	n.Clear()
	for _, node := range n.Nodes() {
		assert.Zero(t, node.Activation())
		assert.Zero(t, node.State())
		assert.Equal(t, 1.0, node.Mask())
	}
}

func TestGraph(t *testing.T) {
	n := perceptron(t, 1, 2, 2, 1)
	c := n.Connections()[0]
	require.NoError(t, n.Gate(n.Nodes()[3], c))
	_, err := n.Connect(n.Nodes()[2], n.Nodes()[2])
	require.NoError(t, err)

	g := n.Graph(500, 400)
	assert.Len(t, g.Nodes, len(n.Nodes())+1)
	assert.Len(t, g.Links, len(n.Connections())+len(n.SelfConnections())+2)
	assert.Equal(t, "INPUT", g.Nodes[0].Name)
	assert.Equal(t, "LOGISTIC", g.Nodes[2].Name)
	assert.Equal(t, "OUTPUT", g.Nodes[4].Name)
	assert.Equal(t, "GATE", g.Nodes[5].Name)

	require.Len(t, g.Constraints, 2)
	assert.Equal(t, []network.GraphOffset{{Node: 0, Offset: 0}, {Node: 1, Offset: 400}, {Node: 4, Offset: 0}}, g.Constraints[0].Offsets)
	assert.Equal(t, -320.0, g.Constraints[1].Offsets[2].Offset)

	var gateLinks int
	for _, l := range g.Links {
		if l.Gate {
			gateLinks++
			assert.Equal(t, 3, l.Source)
			assert.Equal(t, 5, l.Target)
		}
	}
	assert.Equal(t, 1, gateLinks)
}
