package methods

import (
	"errors"
	"fmt"
)

// ErrSelectionNotFound is returned when a selection name is not registered.
var ErrSelectionNotFound = errors.New("selection not found")

// SelectionKind tags a parent selection strategy.
type SelectionKind int

const (
	PowerKind SelectionKind = iota
	FitnessProportionateKind
	TournamentKind
)

func (k SelectionKind) String() string {
	switch k {
	case PowerKind:
		return "POWER"
	case FitnessProportionateKind:
		return "FITNESS_PROPORTIONATE"
	case TournamentKind:
		return "TOURNAMENT"
	}
	return fmt.Sprintf("SelectionKind(%d)", int(k))
}

// Selection describes how an evolver picks parents from a population sorted
// by descending score.
type Selection struct {
	Kind SelectionKind

	// Power skews POWER selection towards the front of the population.
	Power float64

	// Size and Probability configure TOURNAMENT: Size contestants are drawn
	// and the best wins with Probability, the runner-up with
	// Probability*(1-Probability) and so on.
	Size        int
	Probability float64
}

func (s Selection) Name() string {
	return s.Kind.String()
}

var (
	Power                = Selection{Kind: PowerKind, Power: 4}
	FitnessProportionate = Selection{Kind: FitnessProportionateKind}
	Tournament           = Selection{Kind: TournamentKind, Size: 5, Probability: 0.5}
)

// GetSelection returns the default descriptor for a selection name.
func GetSelection(name string) (Selection, error) {
	for _, s := range []Selection{Power, FitnessProportionate, Tournament} {
		if s.Name() == name {
			return s, nil
		}
	}
	return Selection{}, fmt.Errorf("%w: %s", ErrSelectionNotFound, name)
}
