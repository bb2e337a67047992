package network

// GraphNode is a vertex of the presentation graph. Name is the squash name
// for hidden nodes, the upper-case type otherwise, and GATE for the pseudo
// nodes that stand in for gated connections.
type GraphNode struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Activation float64 `json:"activation"`
	Bias       float64 `json:"bias"`
}

// GraphLink is an edge of the presentation graph.
type GraphLink struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Weight float64 `json:"weight"`
	Gate   bool    `json:"gate,omitempty"`
}

// GraphOffset pins a node along a constraint axis.
type GraphOffset struct {
	Node   int     `json:"node"`
	Offset float64 `json:"offset"`
}

// GraphConstraint is a layout alignment constraint.
type GraphConstraint struct {
	Type    string        `json:"type"`
	Axis    string        `json:"axis"`
	Offsets []GraphOffset `json:"offsets"`
}

// Graph is a layout-agnostic description of a network for graph renderers.
type Graph struct {
	Nodes       []GraphNode       `json:"nodes"`
	Links       []GraphLink       `json:"links"`
	Constraints []GraphConstraint `json:"constraints"`
}

// Graph exports n for drawing in a width x height canvas. Inputs are spread
// along the top edge, outputs along the bottom one.
func (n *Network) Graph(width, height float64) Graph {
	g := Graph{
		Constraints: []GraphConstraint{
			{Type: "alignment", Axis: "x"},
			{Type: "alignment", Axis: "y"},
		},
	}
	x, y := &g.Constraints[0], &g.Constraints[1]

	var inputs, outputs int
	for i, node := range n.nodes {
		switch node.Type {
		case Input:
			offset := 0.0
			if n.Input > 1 {
				offset = 0.8 * width / float64(n.Input-1) * float64(inputs)
			}
			inputs++
			x.Offsets = append(x.Offsets, GraphOffset{Node: i, Offset: offset})
			y.Offsets = append(y.Offsets, GraphOffset{Node: i, Offset: 0})
		case Output:
			offset := 0.0
			if n.Output > 1 {
				offset = 0.8 * width / float64(n.Output-1) * float64(outputs)
			}
			outputs++
			x.Offsets = append(x.Offsets, GraphOffset{Node: i, Offset: offset})
			y.Offsets = append(y.Offsets, GraphOffset{Node: i, Offset: -0.8 * height})
		}

		name := node.Squash.Name
		switch node.Type {
		case Input:
			name = "INPUT"
		case Output:
			name = "OUTPUT"
		case Constant:
			name = "CONSTANT"
		}
		g.Nodes = append(g.Nodes, GraphNode{
			ID:         i,
			Name:       name,
			Activation: node.activation,
			Bias:       node.Bias,
		})
	}

	links := append(append([]*Connection(nil), n.connections...), n.selfConns...)
	for _, c := range links {
		if c.Gater == nil {
			g.Links = append(g.Links, GraphLink{Source: c.From.index, Target: c.To.index, Weight: c.Weight})
			continue
		}
		gate := len(g.Nodes)
		g.Nodes = append(g.Nodes, GraphNode{ID: gate, Name: "GATE", Activation: c.Gater.activation})
		g.Links = append(g.Links,
			GraphLink{Source: c.From.index, Target: gate, Weight: c.Weight / 2},
			GraphLink{Source: gate, Target: c.To.index, Weight: c.Weight / 2},
			GraphLink{Source: c.Gater.index, Target: gate, Weight: c.Gater.activation, Gate: true},
		)
	}
	return g
}
