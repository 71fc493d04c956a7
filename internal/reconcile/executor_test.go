package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/planloom/planloom-backend/internal/access"
	"github.com/planloom/planloom-backend/internal/data/graph"
	"github.com/planloom/planloom-backend/internal/platform/logger"
	"github.com/planloom/planloom-backend/internal/platform/neo4jdb"
)

func testEngine(t *testing.T, st graph.Store, checker access.Checker, aux ...AuxStore) *Engine {
	t.Helper()
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	e, err := NewEngine(EngineConfig{
		Store:  st,
		Scope:  neo4jdb.Scope{GraphID: "g1"},
		Access: checker,
		Log:    log,
		Aux:    aux,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func seedDuplicateSprints(st *fakeStore) {
	body := "ingested body"
	st.add(graph.EntitySprint, &graph.Entity{
		ElementID: "el-a", ID: "e001_sprint1", Content: &body,
	})
	st.add(graph.EntitySprint, &graph.Entity{
		ElementID: "el-b", ID: "e001_s01", EpicID: "e001", Status: "active",
	})
	st.rels["el-a"] = []graph.Rel{
		{Type: "HAS_TASK", Direction: graph.DirOut, OtherElementID: "el-t"},
		{Type: "MENTIONS", Direction: graph.DirIn, OtherElementID: "el-doc"},
	}
}

func TestExecuteDedupeOperationOrder(t *testing.T) {
	st := newFakeStore()
	seedDuplicateSprints(st)
	e := testEngine(t, st, &fakeChecker{maxLevel: access.LevelOwner})

	outcome, err := e.Execute(context.Background(), ActionDedupeStructuralEntities, ExecuteOptions{
		Credential:   "tok",
		ConfirmToken: ConfirmToken,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []string{
		"rel el-b->el-t HAS_TASK",
		"rel el-doc->el-b MENTIONS",
		"props el-b [content]",
		"delete el-a",
	}
	if len(st.ops) != len(want) {
		t.Fatalf("ops = %v", st.ops)
	}
	for i, op := range want {
		if st.ops[i] != op {
			t.Fatalf("op[%d] = %q, want %q (full: %v)", i, st.ops[i], op, st.ops)
		}
	}
	if outcome.Affected != 1 {
		t.Fatalf("affected = %d, want 1", outcome.Affected)
	}
	if len(outcome.Merges) != 1 || outcome.Merges[0].SurvivorID != "e001_s01" {
		t.Fatalf("merges = %+v", outcome.Merges)
	}
}

func TestExecuteDedupeDryRunIssuesNoWrites(t *testing.T) {
	st := newFakeStore()
	seedDuplicateSprints(st)
	e := testEngine(t, st, &fakeChecker{maxLevel: access.LevelRead})

	outcome, err := e.Execute(context.Background(), ActionDedupeStructuralEntities, ExecuteOptions{
		DryRun:     true,
		Credential: "tok",
	})
	if err != nil {
		t.Fatalf("Execute dry run: %v", err)
	}
	if len(st.ops) != 0 {
		t.Fatalf("dry run issued writes: %v", st.ops)
	}
	if outcome.Affected != 1 || len(outcome.Merges) != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	// The preview names the same survivor and orphan execution would use.
	m := outcome.Merges[0]
	if m.SurvivorID != "e001_s01" || m.OrphanID != "e001_sprint1" {
		t.Fatalf("merge preview = %+v", m)
	}
	if m.RelsMoved != 2 || len(m.PropsCopied) != 1 || m.PropsCopied[0] != "content" {
		t.Fatalf("merge preview deltas = %+v", m)
	}
}

func TestExecuteRequiresConfirmationBeforeAnyWrite(t *testing.T) {
	st := newFakeStore()
	seedDuplicateSprints(st)
	e := testEngine(t, st, &fakeChecker{maxLevel: access.LevelOwner})

	_, err := e.Execute(context.Background(), ActionDeleteTenant, ExecuteOptions{
		Credential:   "tok",
		ConfirmToken: "yes",
	})
	if !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("err = %v, want ErrConfirmationRequired", err)
	}
	if len(st.ops) != 0 {
		t.Fatalf("store touched despite missing confirmation: %v", st.ops)
	}
}

func TestExecuteAdminBypassesConfirmation(t *testing.T) {
	st := newFakeStore()
	st.counts["tenant"] = graph.CategoryCount{Count: 7}
	e := testEngine(t, st, &fakeChecker{maxLevel: access.LevelOwner, admin: true})

	outcome, err := e.Execute(context.Background(), ActionDeleteTenant, ExecuteOptions{
		Credential: "tok",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Affected != 7 {
		t.Fatalf("affected = %d, want 7", outcome.Affected)
	}
}

func TestExecuteDeniesInsufficientRole(t *testing.T) {
	st := newFakeStore()
	e := testEngine(t, st, &fakeChecker{maxLevel: access.LevelRead})

	_, err := e.Execute(context.Background(), ActionCleanupOrphans, ExecuteOptions{
		Credential:   "tok",
		ConfirmToken: ConfirmToken,
	})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
	if len(st.ops) != 0 {
		t.Fatalf("store touched despite denial: %v", st.ops)
	}
}

func TestExecuteRejectsUnknownAction(t *testing.T) {
	st := newFakeStore()
	e := testEngine(t, st, &fakeChecker{maxLevel: access.LevelOwner})

	_, err := e.Execute(context.Background(), Action("drop-everything"), ExecuteOptions{Credential: "tok"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
}

func TestDedupeFailureIsolation(t *testing.T) {
	st := newFakeStore()
	c1 := "one"
	c2 := "two"
	// Two independent duplicate groups; the first group's orphan delete
	// is rigged to fail.
	st.add(graph.EntityEpic, &graph.Entity{ElementID: "el-1a", ID: "e001", Status: "open"})
	st.add(graph.EntityEpic, &graph.Entity{ElementID: "el-1b", ID: "EPIC-001", Content: &c1})
	st.add(graph.EntityEpic, &graph.Entity{ElementID: "el-2a", ID: "e002", Status: "open"})
	st.add(graph.EntityEpic, &graph.Entity{ElementID: "el-2b", ID: "EPIC-002", Content: &c2})
	st.failDelete["el-1b"] = true

	e := testEngine(t, st, &fakeChecker{maxLevel: access.LevelOwner})
	outcome, err := e.Execute(context.Background(), ActionDedupeStructuralEntities, ExecuteOptions{
		Credential:   "tok",
		ConfirmToken: ConfirmToken,
	})
	if err != nil {
		t.Fatalf("batch must survive one failed group: %v", err)
	}
	if len(outcome.Failures) != 1 || !strings.Contains(outcome.Failures[0], "e001") {
		t.Fatalf("failures = %v", outcome.Failures)
	}
	if outcome.Affected != 1 {
		t.Fatalf("affected = %d, want 1 (second group merged)", outcome.Affected)
	}
	if !st.deleted["el-2b"] {
		t.Fatalf("second group's orphan not deleted")
	}
}

func TestExecuteNormalizeRenames(t *testing.T) {
	st := newFakeStore()
	st.add(graph.EntityEpic, &graph.Entity{ElementID: "el-1", ID: "EPIC-009"})
	st.add(graph.EntityEpic, &graph.Entity{ElementID: "el-2", ID: "e003"})

	e := testEngine(t, st, &fakeChecker{maxLevel: access.LevelOwner})
	outcome, err := e.Execute(context.Background(), ActionNormalizeEntityIDs, ExecuteOptions{
		Credential:   "tok",
		ConfirmToken: ConfirmToken,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(outcome.Renames) != 1 {
		t.Fatalf("renames = %+v", outcome.Renames)
	}
	r := outcome.Renames[0]
	if r.FromID != "EPIC-009" || r.ToID != "e009" {
		t.Fatalf("rename = %+v", r)
	}
	if len(st.ops) != 1 || st.ops[0] != "setid el-1 e009" {
		t.Fatalf("ops = %v", st.ops)
	}
}

func TestDeleteTenantCascadesToAuxStores(t *testing.T) {
	st := newFakeStore()
	st.counts["tenant"] = graph.CategoryCount{Count: 12}
	redis := &fakeAux{name: "redis", purged: 3}
	broken := &fakeAux{name: "sync-state", err: errors.New("pg down")}

	e := testEngine(t, st, &fakeChecker{maxLevel: access.LevelOwner}, redis, broken)
	outcome, err := e.Execute(context.Background(), ActionDeleteTenant, ExecuteOptions{
		Credential:   "tok",
		ConfirmToken: ConfirmToken,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Affected != 12 {
		t.Fatalf("affected = %d, want 12", outcome.Affected)
	}
	if redis.calls != 1 || outcome.CascadePurged["redis"] != 3 {
		t.Fatalf("cascade = %+v", outcome.CascadePurged)
	}
	if len(outcome.Failures) != 1 || !strings.Contains(outcome.Failures[0], "sync-state") {
		t.Fatalf("failures = %v", outcome.Failures)
	}
}

func TestBulkActionsDryRunCountsOnly(t *testing.T) {
	for _, tc := range []struct {
		action Action
		key    string
	}{
		{ActionCleanupOrphans, "orphan"},
		{ActionCleanupDefaultScope, "default"},
		{ActionCleanupPhantomEntities, "phantom"},
		{ActionCleanupStaleScopes, "stale"},
	} {
		st := newFakeStore()
		st.counts[tc.key] = graph.CategoryCount{Count: 4}
		e := testEngine(t, st, &fakeChecker{maxLevel: access.LevelRead})

		outcome, err := e.Execute(context.Background(), tc.action, ExecuteOptions{
			DryRun:     true,
			Credential: "tok",
		})
		if err != nil {
			t.Fatalf("%s dry run: %v", tc.action, err)
		}
		if outcome.Affected != 4 {
			t.Fatalf("%s affected = %d, want 4", tc.action, outcome.Affected)
		}
		if len(st.ops) != 0 {
			t.Fatalf("%s dry run issued writes: %v", tc.action, st.ops)
		}
	}
}
