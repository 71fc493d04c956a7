package graph

import "context"

// Store is the engine's view of the tenant-scoped graph. Every method
// is bound to the scope the implementation was opened with. The bulk
// hygiene queries (orphan/default/stale scope) inspect scope fields
// directly and so are the only operations that look at nodes without a
// usable tenant key.
type Store interface {
	// Entity reads. FetchEntities returns nodes ascending by id so
	// downstream grouping is reproducible across invocations.
	FetchEntities(ctx context.Context, t EntityType) ([]*Entity, error)
	FetchRels(ctx context.Context, elementID string) ([]Rel, error)

	// Merge mutations. CreateRel merges, so re-creating an edge that
	// already exists is a no-op.
	CreateRel(ctx context.Context, fromElementID, toElementID, relType string) error
	SetProps(ctx context.Context, elementID string, props map[string]any) error
	SetEntityID(ctx context.Context, elementID, newID string) error
	DeleteEntity(ctx context.Context, elementID string) (int64, error)

	// Hygiene categories: counts with bounded samples, and the
	// matching bulk deletes returning nodes removed.
	CountOrphanScoped(ctx context.Context) (CategoryCount, error)
	CountDefaultScoped(ctx context.Context) (CategoryCount, error)
	CountStaleScopes(ctx context.Context, threshold int64) (CategoryCount, error)
	CountPhantom(ctx context.Context) (CategoryCount, error)
	CountTenant(ctx context.Context) (CategoryCount, error)

	DeleteOrphanScoped(ctx context.Context) (int64, error)
	DeleteDefaultScoped(ctx context.Context) (int64, error)
	DeleteStaleScopes(ctx context.Context, threshold int64) (int64, error)
	DeletePhantom(ctx context.Context) (int64, error)
	DeleteTenant(ctx context.Context) (int64, error)
}
