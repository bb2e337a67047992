package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/baldhumanity/evonet/neat"
	"github.com/baldhumanity/evonet/network"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// VersionedRecord tags every stored payload with the layout it was written
// with.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

func currentVersion() VersionedRecord {
	return VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

// NetworkRecord is a named network snapshot.
type NetworkRecord struct {
	VersionedRecord
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Score     float64        `json:"score"`
	CreatedAt time.Time      `json:"created_at"`
	Network   network.Record `json:"network"`
}

// NewNetworkRecord snapshots n under a fresh ID.
func NewNetworkRecord(name string, n *network.Network) NetworkRecord {
	return NetworkRecord{
		VersionedRecord: currentVersion(),
		ID:              uuid.NewString(),
		Name:            name,
		Score:           n.Score,
		CreatedAt:       time.Now().UTC(),
		Network:         n.Record(),
	}
}

// Restore rebuilds the stored network.
func (r NetworkRecord) Restore(opts ...network.Option) (*network.Network, error) {
	n, err := network.FromRecord(r.Network, opts...)
	if err != nil {
		return nil, err
	}
	n.Score = r.Score
	return n, nil
}

// RunKind tells which operation produced a run.
type RunKind string

const (
	RunTrain  RunKind = "train"
	RunEvolve RunKind = "evolve"
)

// RunRecord summarizes one train or evolve invocation. InputID and OutputID
// refer to NetworkRecords.
type RunRecord struct {
	VersionedRecord
	ID          string                 `json:"id"`
	Kind        RunKind                `json:"kind"`
	InputID     string                 `json:"input_id"`
	OutputID    string                 `json:"output_id"`
	Error       float64                `json:"error"`
	Iterations  int                    `json:"iterations"`
	Elapsed     time.Duration          `json:"elapsed"`
	StartedAt   time.Time              `json:"started_at"`
	Generations []neat.GenerationStats `json:"generations,omitempty"`
}

// NewRunRecord starts a run record under a fresh ID.
func NewRunRecord(kind RunKind, inputID string) RunRecord {
	return RunRecord{
		VersionedRecord: currentVersion(),
		ID:              uuid.NewString(),
		Kind:            kind,
		InputID:         inputID,
		StartedAt:       time.Now().UTC(),
	}
}
