package methods

import (
	"errors"
	"fmt"
)

// ErrMutationNotFound is returned when a mutation name is not registered.
var ErrMutationNotFound = errors.New("mutation not found")

// MutationKind tags one of the structural or parametric mutation operators.
type MutationKind int

const (
	AddNodeKind MutationKind = iota
	SubNodeKind
	AddConnKind
	SubConnKind
	ModWeightKind
	ModBiasKind
	ModActivationKind
	AddSelfConnKind
	SubSelfConnKind
	AddGateKind
	SubGateKind
	AddBackConnKind
	SubBackConnKind
	SwapNodesKind
)

var mutationNames = [...]string{
	AddNodeKind:       "ADD_NODE",
	SubNodeKind:       "SUB_NODE",
	AddConnKind:       "ADD_CONN",
	SubConnKind:       "SUB_CONN",
	ModWeightKind:     "MOD_WEIGHT",
	ModBiasKind:       "MOD_BIAS",
	ModActivationKind: "MOD_ACTIVATION",
	AddSelfConnKind:   "ADD_SELF_CONN",
	SubSelfConnKind:   "SUB_SELF_CONN",
	AddGateKind:       "ADD_GATE",
	SubGateKind:       "SUB_GATE",
	AddBackConnKind:   "ADD_BACK_CONN",
	SubBackConnKind:   "SUB_BACK_CONN",
	SwapNodesKind:     "SWAP_NODES",
}

func (k MutationKind) String() string {
	if int(k) < 0 || int(k) >= len(mutationNames) {
		return fmt.Sprintf("MutationKind(%d)", int(k))
	}
	return mutationNames[k]
}

// Mutation describes one operator together with its parameters. Only the
// fields relevant to Kind are read.
type Mutation struct {
	Kind MutationKind

	// Min and Max bound the uniform delta of MOD_WEIGHT and MOD_BIAS.
	Min, Max float64

	// KeepGates makes SUB_NODE hand the gaters of removed edges over to the
	// bridging edges.
	KeepGates bool

	// MutateOutput lets MOD_ACTIVATION and SWAP_NODES touch output nodes.
	MutateOutput bool

	// Allowed is the activation pool of MOD_ACTIVATION.
	Allowed []Activation
}

// Name returns the operator name, e.g. "ADD_NODE".
func (m Mutation) Name() string {
	return m.Kind.String()
}

var (
	AddNode     = Mutation{Kind: AddNodeKind}
	SubNode     = Mutation{Kind: SubNodeKind, KeepGates: true}
	AddConn     = Mutation{Kind: AddConnKind}
	SubConn     = Mutation{Kind: SubConnKind}
	ModWeight   = Mutation{Kind: ModWeightKind, Min: -1, Max: 1}
	ModBias     = Mutation{Kind: ModBiasKind, Min: -1, Max: 1}
	AddSelfConn = Mutation{Kind: AddSelfConnKind}
	SubSelfConn = Mutation{Kind: SubSelfConnKind}
	AddGate     = Mutation{Kind: AddGateKind}
	SubGate     = Mutation{Kind: SubGateKind}
	AddBackConn = Mutation{Kind: AddBackConnKind}
	SubBackConn = Mutation{Kind: SubBackConnKind}
	SwapNodes   = Mutation{Kind: SwapNodesKind, MutateOutput: true}
)

// ModActivation draws from the whole activation catalog and may touch output
// nodes.
var ModActivation = Mutation{
	Kind:         ModActivationKind,
	MutateOutput: true,
	Allowed:      Activations,
}

// All contains every operator.
var All = []Mutation{
	AddNode, SubNode, AddConn, SubConn, ModWeight, ModBias, ModActivation,
	AddGate, SubGate, AddSelfConn, SubSelfConn, AddBackConn, SubBackConn,
	SwapNodes,
}

// FeedForwardOnly contains the operators that keep a network acyclic.
var FeedForwardOnly = []Mutation{
	AddNode, SubNode, AddConn, SubConn, ModWeight, ModBias, ModActivation,
	SwapNodes,
}

// NoGates contains every operator except the gating ones.
var NoGates = []Mutation{
	AddNode, SubNode, AddConn, SubConn, ModWeight, ModBias, ModActivation,
	AddSelfConn, SubSelfConn, AddBackConn, SubBackConn, SwapNodes,
}

// GetMutation returns the default descriptor for an operator name.
func GetMutation(name string) (Mutation, error) {
	for _, m := range All {
		if m.Name() == name {
			return m, nil
		}
	}
	return Mutation{}, fmt.Errorf("%w: %s", ErrMutationNotFound, name)
}

// GetMutations resolves a list of operator names.
func GetMutations(names []string) ([]Mutation, error) {
	out := make([]Mutation, 0, len(names))
	for _, name := range names {
		m, err := GetMutation(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// GetMutationGroup resolves one of the named operator groups.
func GetMutationGroup(name string) ([]Mutation, error) {
	switch name {
	case "ALL":
		return All, nil
	case "FFW", "FEED_FORWARD":
		return FeedForwardOnly, nil
	case "NO_GATES":
		return NoGates, nil
	}
	return nil, fmt.Errorf("%w: group %s", ErrMutationNotFound, name)
}
