package storage

import "context"

// Store defines persistence operations for network snapshots and runs.
type Store interface {
	Init(ctx context.Context) error
	SaveNetwork(ctx context.Context, record NetworkRecord) error
	GetNetwork(ctx context.Context, id string) (NetworkRecord, bool, error)
	// ListNetworks returns every stored network, oldest first.
	ListNetworks(ctx context.Context) ([]NetworkRecord, error)
	DeleteNetwork(ctx context.Context, id string) error
	SaveRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, bool, error)
}
