package edgecas

import (
	"context"

	"github.com/agenthands/edgecas/pkg/core"
	"github.com/agenthands/edgecas/pkg/edge"
)

type CID = core.CID
type Identifier = core.Identifier
type Object = core.Object
type RejectionError = core.RejectionError

// Store is the content-addressed object store.
type Store interface {
	// Ingest validates, canonicalizes and persists a JSON document and
	// returns its identifier. Rejections are *RejectionError.
	Ingest(ctx context.Context, body []byte) (Identifier, error)

	// Retrieve returns the response for a stored object, from the edge cache
	// when possible. Absent objects yield ErrNotFound.
	Retrieve(ctx context.Context, id string) (*edge.Response, error)

	// Walk visits every stored object. Requires a listing backend.
	Walk(ctx context.Context, fn func(Object) error) error

	// Restore writes an object under its existing identifier, e.g. from an
	// archive. Under the content-hash policy the identifier is re-derived
	// and must match.
	Restore(ctx context.Context, obj Object) error

	// Close drains background work and releases backends.
	Close() error
}
