package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/planloom/planloom-backend/internal/access"
	"github.com/planloom/planloom-backend/internal/data/graph"
)

// fakeStore is an in-memory Store recording every mutation in order.
type fakeStore struct {
	entities map[graph.EntityType][]*graph.Entity
	rels     map[string][]graph.Rel

	counts map[string]graph.CategoryCount

	failDelete map[string]bool

	ops     []string
	deleted map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities:   map[graph.EntityType][]*graph.Entity{},
		rels:       map[string][]graph.Rel{},
		counts:     map[string]graph.CategoryCount{},
		failDelete: map[string]bool{},
		deleted:    map[string]bool{},
	}
}

func (f *fakeStore) add(t graph.EntityType, e *graph.Entity) {
	f.entities[t] = append(f.entities[t], e)
}

func (f *fakeStore) FetchEntities(_ context.Context, t graph.EntityType) ([]*graph.Entity, error) {
	out := make([]*graph.Entity, 0)
	for _, e := range f.entities[t] {
		if !f.deleted[e.ElementID] {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) FetchRels(_ context.Context, elementID string) ([]graph.Rel, error) {
	return f.rels[elementID], nil
}

func (f *fakeStore) CreateRel(_ context.Context, from, to, relType string) error {
	f.ops = append(f.ops, fmt.Sprintf("rel %s->%s %s", from, to, relType))
	return nil
}

func (f *fakeStore) SetProps(_ context.Context, elementID string, props map[string]any) error {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	f.ops = append(f.ops, fmt.Sprintf("props %s %v", elementID, keys))
	return nil
}

func (f *fakeStore) SetEntityID(_ context.Context, elementID, newID string) error {
	f.ops = append(f.ops, fmt.Sprintf("setid %s %s", elementID, newID))
	for _, list := range f.entities {
		for _, e := range list {
			if e.ElementID == elementID {
				e.ID = newID
			}
		}
	}
	return nil
}

func (f *fakeStore) DeleteEntity(_ context.Context, elementID string) (int64, error) {
	if f.failDelete[elementID] {
		return 0, fmt.Errorf("boom")
	}
	f.ops = append(f.ops, fmt.Sprintf("delete %s", elementID))
	f.deleted[elementID] = true
	return 1, nil
}

func (f *fakeStore) count(key string) (graph.CategoryCount, error) {
	return f.counts[key], nil
}

func (f *fakeStore) del(key string) (int64, error) {
	f.ops = append(f.ops, "bulk-delete "+key)
	return f.counts[key].Count, nil
}

func (f *fakeStore) CountOrphanScoped(context.Context) (graph.CategoryCount, error) {
	return f.count("orphan")
}
func (f *fakeStore) CountDefaultScoped(context.Context) (graph.CategoryCount, error) {
	return f.count("default")
}
func (f *fakeStore) CountStaleScopes(context.Context, int64) (graph.CategoryCount, error) {
	return f.count("stale")
}
func (f *fakeStore) CountPhantom(context.Context) (graph.CategoryCount, error) {
	return f.count("phantom")
}
func (f *fakeStore) CountTenant(context.Context) (graph.CategoryCount, error) {
	return f.count("tenant")
}

func (f *fakeStore) DeleteOrphanScoped(context.Context) (int64, error)   { return f.del("orphan") }
func (f *fakeStore) DeleteDefaultScoped(context.Context) (int64, error)  { return f.del("default") }
func (f *fakeStore) DeleteStaleScopes(context.Context, int64) (int64, error) {
	return f.del("stale")
}
func (f *fakeStore) DeletePhantom(context.Context) (int64, error) { return f.del("phantom") }
func (f *fakeStore) DeleteTenant(context.Context) (int64, error)  { return f.del("tenant") }

// fakeChecker grants anything up to maxLevel.
type fakeChecker struct {
	maxLevel access.Level
	admin    bool
	err      error
}

func (f *fakeChecker) CheckAccess(_ context.Context, _, _ string, level access.Level) (access.Decision, error) {
	if f.err != nil {
		return access.Decision{}, f.err
	}
	if level > f.maxLevel {
		return access.Decision{Granted: false, Reason: "insufficient role"}, nil
	}
	return access.Decision{Granted: true, Role: "owner", Admin: f.admin}, nil
}

// fakeAux counts purge calls.
type fakeAux struct {
	name   string
	purged int64
	err    error
	calls  int
}

func (f *fakeAux) Name() string { return f.name }

func (f *fakeAux) PurgeTenant(context.Context, string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.purged, nil
}
