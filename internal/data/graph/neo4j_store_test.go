package graph

import (
	"strings"
	"testing"

	"github.com/planloom/planloom-backend/internal/platform/neo4jdb"
)

// Every mutation must carry the scope predicate alongside the
// elementId match; an element id alone must never be enough to touch a
// node.
func TestMutationQueriesAreScoped(t *testing.T) {
	for _, tc := range []struct {
		name    string
		query   string
		aliases []string
	}{
		{"set props", setPropsQuery, []string{"n"}},
		{"set entity id", setEntityIDQuery, []string{"n"}},
		{"delete entity", deleteEntityQuery, []string{"n"}},
		{"create rel", createRelQuery("DUPLICATE_OF"), []string{"a", "b"}},
	} {
		for _, alias := range tc.aliases {
			want := neo4jdb.ScopeFilter(alias)
			if !strings.Contains(tc.query, want) {
				t.Fatalf("%s: query missing scope predicate for %q:\n%s", tc.name, alias, tc.query)
			}
			if !strings.Contains(tc.query, "elementId("+alias+")") {
				t.Fatalf("%s: query missing elementId match for %q:\n%s", tc.name, alias, tc.query)
			}
		}
	}
}

func TestCreateRelQueryInlinesType(t *testing.T) {
	q := createRelQuery("MERGED_INTO")
	if !strings.Contains(q, "MERGE (a)-[:MERGED_INTO]->(b)") {
		t.Fatalf("unexpected merge clause:\n%s", q)
	}
}

func TestRelTypeValidation(t *testing.T) {
	for _, valid := range []string{"DUPLICATE_OF", "belongs_to", "Has1Child"} {
		if !relTypeRe.MatchString(valid) {
			t.Fatalf("expected %q to be a valid relationship type", valid)
		}
	}
	for _, invalid := range []string{"", "1BAD", "HAS CHILD", "X]->(m) DETACH DELETE m//"} {
		if relTypeRe.MatchString(invalid) {
			t.Fatalf("expected %q to be rejected", invalid)
		}
	}
}
