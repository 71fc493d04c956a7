package reconcile

import (
	"errors"
	"testing"
)

func TestParseAction(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Action
		ok   bool
	}{
		{"cleanup-orphans", ActionCleanupOrphans, true},
		{"  Dedupe-Structural-Entities ", ActionDedupeStructuralEntities, true},
		{"DELETE-TENANT", ActionDeleteTenant, true},
		{"normalize-entity-ids", ActionNormalizeEntityIDs, true},
		{"", "", false},
		{"drop-database", "", false},
	} {
		got, err := ParseAction(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("ParseAction(%q) = %q, %v", tc.in, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrUnknownAction) {
			t.Fatalf("ParseAction(%q) err = %v, want ErrUnknownAction", tc.in, err)
		}
	}
}
