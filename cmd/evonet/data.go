package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/baldhumanity/evonet/network"
)

// builtin holds the logic-gate datasets usable by name.
var builtin = map[string]network.Dataset{
	"xor": {
		{Input: []float64{0, 0}, Output: []float64{0}},
		{Input: []float64{0, 1}, Output: []float64{1}},
		{Input: []float64{1, 0}, Output: []float64{1}},
		{Input: []float64{1, 1}, Output: []float64{0}},
	},
	"and": {
		{Input: []float64{0, 0}, Output: []float64{0}},
		{Input: []float64{0, 1}, Output: []float64{0}},
		{Input: []float64{1, 0}, Output: []float64{0}},
		{Input: []float64{1, 1}, Output: []float64{1}},
	},
	"or": {
		{Input: []float64{0, 0}, Output: []float64{0}},
		{Input: []float64{0, 1}, Output: []float64{1}},
		{Input: []float64{1, 0}, Output: []float64{1}},
		{Input: []float64{1, 1}, Output: []float64{1}},
	},
	"not": {
		{Input: []float64{0}, Output: []float64{1}},
		{Input: []float64{1}, Output: []float64{0}},
	},
}

// loadDataset resolves a builtin dataset name or reads a JSON array of
// {"input": [...], "output": [...]} samples.
func loadDataset(source string) (network.Dataset, error) {
	if source == "" {
		return nil, errors.New("-data is required")
	}
	if set, ok := builtin[source]; ok {
		return set, nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}
	var set network.Dataset
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", source, err)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("dataset %s: %w", source, network.ErrEmptyDataset)
	}
	for i, sample := range set {
		if len(sample.Input) != len(set[0].Input) || len(sample.Output) != len(set[0].Output) {
			return nil, fmt.Errorf("dataset %s: sample %d has shape %dx%d, want %dx%d",
				source, i, len(sample.Input), len(sample.Output), len(set[0].Input), len(set[0].Output))
		}
	}
	return set, nil
}
