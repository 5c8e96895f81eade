package types

import (
	"context"
	"errors"
)

var ErrTransferNotFound = errors.New("transfer not found")

// ErrStaleTransfer is returned by Save when the stored record has already moved
// past the status being written.
var ErrStaleTransfer = errors.New("transfer record is stale")

// TransferStore persists TransferRecords between process restarts.
type TransferStore interface {
	// Save refuses with ErrStaleTransfer any write that does not supersede the
	// stored status.
	Save(ctx context.Context, rec *TransferRecord) error
	// Load returns ErrTransferNotFound when id is unknown.
	Load(ctx context.Context, id string) (*TransferRecord, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]*TransferRecord, error)
	Close() error
}
