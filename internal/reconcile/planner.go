package reconcile

import (
	"github.com/planloom/planloom-backend/internal/data/graph"
)

// RelMove is one edge to recreate on the survivor before the orphan is
// deleted. Direction is relative to the orphan.
type RelMove struct {
	RelType        string
	Direction      graph.Direction
	OtherElementID string
}

// MergePlan is the decision record for one duplicate group: who
// survives, who is absorbed, which content properties move, and which
// edges are redirected. Computed purely over fetched data; the same
// plan backs both the dry-run report and the execute pass.
type MergePlan struct {
	EntityType  graph.EntityType
	CanonicalID string
	Survivor    *graph.Entity
	Orphans     []*graph.Entity

	// PropDeltas and RelMoves are keyed by orphan element id.
	PropDeltas map[string]map[string]any
	RelMoves   map[string][]RelMove
}

// PlanMerge picks the survivor and computes the per-orphan deltas.
// rels maps element ids to the edges touching that node; the caller
// fetches them for every group member.
//
// Survivor heuristic: the first member in group order showing
// structural evidence wins. Nodes written by task-sync carry parent
// linkage (or a status without content); nodes written by document
// ingestion carry content but no linkage. This is a best-effort
// discriminator observed from production data shapes, not a proof.
func PlanMerge(g Group, rels map[string][]graph.Rel) MergePlan {
	survivor := pickSurvivor(g)

	plan := MergePlan{
		EntityType:  g.EntityType,
		CanonicalID: g.CanonicalID,
		Survivor:    survivor,
		PropDeltas:  map[string]map[string]any{},
		RelMoves:    map[string][]RelMove{},
	}

	survivorProps := survivor.ContentProps()
	survivorRels := map[string]bool{}
	for _, r := range rels[survivor.ElementID] {
		survivorRels[r.Key()] = true
	}

	for _, member := range g.Members {
		if member.ElementID == survivor.ElementID {
			continue
		}
		plan.Orphans = append(plan.Orphans, member)

		// Survivor wins all property conflicts: only keys absent on
		// the survivor are copied.
		delta := map[string]any{}
		for key, val := range member.ContentProps() {
			if _, exists := survivorProps[key]; !exists {
				delta[key] = val
			}
		}
		plan.PropDeltas[member.ElementID] = delta

		moves := make([]RelMove, 0)
		for _, r := range rels[member.ElementID] {
			// Never create a self-edge out of the orphan->survivor (or
			// survivor->orphan) link itself.
			if r.OtherElementID == survivor.ElementID {
				continue
			}
			if survivorRels[r.Key()] {
				continue
			}
			moves = append(moves, RelMove{
				RelType:        r.Type,
				Direction:      r.Direction,
				OtherElementID: r.OtherElementID,
			})
			survivorRels[r.Key()] = true
		}
		plan.RelMoves[member.ElementID] = moves
	}
	return plan
}

func pickSurvivor(g Group) *graph.Entity {
	for _, m := range g.Members {
		if m.ParentRef(g.EntityType) != "" {
			return m
		}
		if m.Status != "" && !m.HasContent() {
			return m
		}
	}
	return g.Members[0]
}
