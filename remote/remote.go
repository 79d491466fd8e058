// Package remote abstracts the document store that is the single
// serialization point for ticket state. The conditional write is the
// only mutation path; everything else in the system resolves races by
// observing its outcome.
package remote

import (
	"context"
	"errors"

	"lottery-panel/database/model"
)

var (
	// ErrNotFound: the store has no document for the id.
	ErrNotFound = errors.New("remote: ticket not found")
	// ErrUnavailable: the call could not complete within its deadline.
	// Callers degrade to local-only operation, they never block.
	ErrUnavailable = errors.New("remote: store unavailable")
)

// WriteResult is the outcome of a conditional write. Committed false
// means the expected version no longer matched; Current then carries
// the server's copy (nil if the document does not exist).
type WriteResult struct {
	Committed bool
	Current   *model.Ticket
}

// SyncClient is the remote store contract. Fetch returns ErrNotFound
// or ErrUnavailable; ConditionalWrite errors only with ErrUnavailable,
// version conflicts are data (WriteResult), not errors. Subscribe
// delivers a live, possibly duplicated and out-of-order stream of
// ticket changes for a draw; consumers must merge by version.
type SyncClient interface {
	Fetch(ctx context.Context, id string) (*model.Ticket, error)
	ConditionalWrite(ctx context.Context, t *model.Ticket, expectedVersion int64) (*WriteResult, error)
	Subscribe(ctx context.Context, drawId string, fn func(*model.Ticket)) (func(), error)
}
