package ports

import "context"

// Collection names used by the service.
const (
	CollectionUsers       = "users"
	CollectionPredictions = "predictions"
)

// Filters selects records whose fields equal the given values.
type Filters map[string]any

// DocumentStore is the storage gateway over a schemaless document database.
type DocumentStore interface {
	// Put upserts record under id.
	Put(ctx context.Context, collection, id string, record any) error
	// Insert creates record under id, failing with domain.ErrDuplicate on conflict
	// with the id or any unique index.
	Insert(ctx context.Context, collection, id string, record any) error
	// Get decodes the record stored under id into out, or returns domain.ErrNotFound.
	Get(ctx context.Context, collection, id string, out any) error
	// Query decodes every record matching filters into out, which must point to a slice.
	// Records are returned newest first by createdAt.
	Query(ctx context.Context, collection string, filters Filters, out any) error
	Ping(ctx context.Context) error
}
