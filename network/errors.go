package network

import "errors"

// Contract violations. These always surface to the caller.
var (
	ErrMissingSize         = errors.New("network requires positive input and output sizes")
	ErrInputSizeMismatch   = errors.New("input size mismatch")
	ErrTargetSizeMismatch  = errors.New("target size mismatch")
	ErrInputOutputMismatch = errors.New("networks have different input or output sizes")
	ErrOutputInputMismatch = errors.New("output size of first network does not match input size of second")
	ErrForeignNode         = errors.New("node is not part of this network")
	ErrForeignConnection   = errors.New("connection is not part of this network")
	ErrNotGated            = errors.New("connection is not gated")
	ErrProtectedNode       = errors.New("input and output nodes cannot be removed")
	ErrBatchSize           = errors.New("batch size is larger than the dataset")
	ErrEmptyDataset        = errors.New("dataset is empty")
	ErrNoEvolver           = errors.New("evolve requires an evolver factory")
)

// Recoverable conditions. The network state is left unchanged and callers
// are free to ignore them.
var (
	ErrNoCandidate        = errors.New("no candidate for mutation")
	ErrGateConflict       = errors.New("connection is already gated")
	ErrConnectionNotFound = errors.New("connection not found")
)

// ErrUnsupportedMutation is returned when a node is asked to apply a
// network-level mutation.
var ErrUnsupportedMutation = errors.New("mutation is not supported here")

// ErrInvalidRecord is returned when a serialized network is inconsistent.
var ErrInvalidRecord = errors.New("invalid network record")
