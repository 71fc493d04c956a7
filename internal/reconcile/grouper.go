package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/planloom/planloom-backend/internal/data/graph"
)

// Group is a transient set of >=2 entities of one type sharing a
// canonical identifier. Members keep the store's ascending-id fetch
// order so survivor selection is reproducible between a dry run and
// the execute pass that follows it.
type Group struct {
	EntityType  graph.EntityType
	CanonicalID string
	Members     []*graph.Entity
}

// FindDuplicates loads every entity of the given type in scope, groups
// by canonical id, and returns only the groups with more than one
// member, ordered by canonical id.
func FindDuplicates(ctx context.Context, st graph.Store, t graph.EntityType) ([]Group, error) {
	entities, err := st.FetchEntities(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("load %s entities: %w", t, err)
	}

	byCanonical := map[string][]*graph.Entity{}
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		cid := CanonicalID(e.ID, t)
		byCanonical[cid] = append(byCanonical[cid], e)
	}

	groups := make([]Group, 0)
	for cid, members := range byCanonical {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, Group{
			EntityType:  t,
			CanonicalID: cid,
			Members:     members,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].CanonicalID < groups[j].CanonicalID
	})
	return groups, nil
}

// FindNonCanonical returns singleton entities whose stored id differs
// from its canonical form. Ids that would collide with another node's
// canonical id are excluded; those are duplicates and belong to the
// merge path, not the rename path.
func FindNonCanonical(ctx context.Context, st graph.Store, t graph.EntityType) ([]*graph.Entity, error) {
	entities, err := st.FetchEntities(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("load %s entities: %w", t, err)
	}

	byCanonical := map[string]int{}
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		byCanonical[CanonicalID(e.ID, t)]++
	}

	out := make([]*graph.Entity, 0)
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		cid := CanonicalID(e.ID, t)
		if cid == e.ID || byCanonical[cid] > 1 {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
