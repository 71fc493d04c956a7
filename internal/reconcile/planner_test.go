package reconcile

import (
	"testing"

	"github.com/planloom/planloom-backend/internal/data/graph"
)

func strPtr(s string) *string { return &s }

func TestPickSurvivorPrefersParentLinkage(t *testing.T) {
	ingested := &graph.Entity{ElementID: "el-a", ID: "e001_sprint1", Content: strPtr("body")}
	synced := &graph.Entity{ElementID: "el-b", ID: "e001_s01", EpicID: "e001"}

	g := Group{
		EntityType:  graph.EntitySprint,
		CanonicalID: "e001_s01",
		Members:     []*graph.Entity{ingested, synced},
	}
	plan := PlanMerge(g, nil)
	if plan.Survivor.ElementID != "el-b" {
		t.Fatalf("survivor = %s, want el-b (parent-linked node)", plan.Survivor.ElementID)
	}
	if len(plan.Orphans) != 1 || plan.Orphans[0].ElementID != "el-a" {
		t.Fatalf("orphans = %v", plan.Orphans)
	}
}

func TestPickSurvivorStatusWithoutContent(t *testing.T) {
	withContent := &graph.Entity{ElementID: "el-a", ID: "e001", Content: strPtr("body"), Status: "active"}
	statusOnly := &graph.Entity{ElementID: "el-b", ID: "e001x", Status: "active"}

	g := Group{
		EntityType:  graph.EntityEpic,
		CanonicalID: "e001",
		Members:     []*graph.Entity{withContent, statusOnly},
	}
	plan := PlanMerge(g, nil)
	if plan.Survivor.ElementID != "el-b" {
		t.Fatalf("survivor = %s, want el-b (status without content)", plan.Survivor.ElementID)
	}
}

func TestPickSurvivorFallsBackToFirstMember(t *testing.T) {
	a := &graph.Entity{ElementID: "el-a", ID: "e002", Content: strPtr("one")}
	b := &graph.Entity{ElementID: "el-b", ID: "e002x", Content: strPtr("two")}

	g := Group{EntityType: graph.EntityEpic, CanonicalID: "e002", Members: []*graph.Entity{a, b}}
	plan := PlanMerge(g, nil)
	if plan.Survivor.ElementID != "el-a" {
		t.Fatalf("survivor = %s, want el-a (first member)", plan.Survivor.ElementID)
	}
}

func TestPlanMergeNeverOverwritesSurvivorProps(t *testing.T) {
	survivor := &graph.Entity{
		ElementID: "el-b", ID: "e001_s01", EpicID: "e001",
		Summary: strPtr("kept summary"),
	}
	orphan := &graph.Entity{
		ElementID: "el-a", ID: "e001_sprint1",
		Content: strPtr("orphan body"),
		Summary: strPtr("orphan summary"),
		Hash:    strPtr("abc123"),
	}

	g := Group{
		EntityType:  graph.EntitySprint,
		CanonicalID: "e001_s01",
		Members:     []*graph.Entity{orphan, survivor},
	}
	plan := PlanMerge(g, nil)

	delta := plan.PropDeltas["el-a"]
	if _, overwritten := delta["summary"]; overwritten {
		t.Fatalf("summary present on survivor must not be copied, delta = %v", delta)
	}
	if delta["content"] != "orphan body" {
		t.Fatalf("content missing from delta: %v", delta)
	}
	if delta["hash"] != "abc123" {
		t.Fatalf("hash missing from delta: %v", delta)
	}
}

func TestPlanMergeSkipsEdgesSurvivorAlreadyHas(t *testing.T) {
	survivor := &graph.Entity{ElementID: "el-b", ID: "e001_s01", EpicID: "e001"}
	orphan := &graph.Entity{ElementID: "el-a", ID: "e001_sprint1", Content: strPtr("x")}

	rels := map[string][]graph.Rel{
		"el-b": {
			{Type: "HAS_TASK", Direction: graph.DirOut, OtherElementID: "el-t1"},
		},
		"el-a": {
			{Type: "HAS_TASK", Direction: graph.DirOut, OtherElementID: "el-t1"}, // duplicate
			{Type: "HAS_TASK", Direction: graph.DirOut, OtherElementID: "el-t2"},
			{Type: "PART_OF", Direction: graph.DirIn, OtherElementID: "el-doc"},
			{Type: "RELATES_TO", Direction: graph.DirOut, OtherElementID: "el-b"}, // orphan->survivor edge
		},
	}

	g := Group{
		EntityType:  graph.EntitySprint,
		CanonicalID: "e001_s01",
		Members:     []*graph.Entity{orphan, survivor},
	}
	plan := PlanMerge(g, rels)

	moves := plan.RelMoves["el-a"]
	if len(moves) != 2 {
		t.Fatalf("moves = %v, want 2 (dedup against survivor, drop orphan->survivor edge)", moves)
	}
	for _, m := range moves {
		if m.OtherElementID == "el-t1" {
			t.Fatalf("edge survivor already carries must not move: %v", m)
		}
		if m.OtherElementID == "el-b" {
			t.Fatalf("edge to survivor must not become a self-edge: %v", m)
		}
	}
}

func TestPlanMergeDedupsAcrossOrphans(t *testing.T) {
	survivor := &graph.Entity{ElementID: "el-s", ID: "e003", Status: "active"}
	o1 := &graph.Entity{ElementID: "el-1", ID: "e003a", Content: strPtr("x")}
	o2 := &graph.Entity{ElementID: "el-2", ID: "e003b", Content: strPtr("y")}

	edge := graph.Rel{Type: "HAS_SPRINT", Direction: graph.DirOut, OtherElementID: "el-sp"}
	rels := map[string][]graph.Rel{
		"el-1": {edge},
		"el-2": {edge},
	}

	g := Group{
		EntityType:  graph.EntityEpic,
		CanonicalID: "e003",
		Members:     []*graph.Entity{survivor, o1, o2},
	}
	plan := PlanMerge(g, rels)

	total := len(plan.RelMoves["el-1"]) + len(plan.RelMoves["el-2"])
	if total != 1 {
		t.Fatalf("identical edge on two orphans must move once, got %d moves", total)
	}
}
