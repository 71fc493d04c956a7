package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

// Action names the maintenance operations the engine supports. Every
// action has a dry-run twin that computes the same result without
// mutating anything.
type Action string

const (
	ActionCleanupOrphans           Action = "cleanup-orphans"
	ActionCleanupDefaultScope      Action = "cleanup-default-scope"
	ActionDedupeStructuralEntities Action = "dedupe-structural-entities"
	ActionNormalizeEntityIDs       Action = "normalize-entity-ids"
	ActionCleanupPhantomEntities   Action = "cleanup-phantom-entities"
	ActionCleanupStaleScopes       Action = "cleanup-stale-scopes"
	ActionDeleteTenant             Action = "delete-tenant"
)

var AllActions = []Action{
	ActionCleanupOrphans,
	ActionCleanupDefaultScope,
	ActionDedupeStructuralEntities,
	ActionNormalizeEntityIDs,
	ActionCleanupPhantomEntities,
	ActionCleanupStaleScopes,
	ActionDeleteTenant,
}

// ConfirmToken is the sentinel a caller must echo before a destructive
// action runs for real. It is a tripwire against accidental calls, not
// a security control; the access check is the security control.
const ConfirmToken = "yes-delete-my-data"

// DefaultStaleScopeThreshold: scope values seen on fewer nodes than
// this are treated as throwaway test data.
const DefaultStaleScopeThreshold = 3

var (
	ErrUnknownAction        = errors.New("reconcile: unknown action")
	ErrAccessDenied         = errors.New("reconcile: access denied")
	ErrConfirmationRequired = errors.New("reconcile: confirmation token required")
)

func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllActions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
}
