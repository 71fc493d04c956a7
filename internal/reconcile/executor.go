package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/planloom/planloom-backend/internal/access"
	"github.com/planloom/planloom-backend/internal/data/graph"
	"github.com/planloom/planloom-backend/internal/platform/logger"
)

// MergeNarrative records what one merge actually did (or, in a dry
// run, would do) for one orphan.
type MergeNarrative struct {
	EntityType  string   `json:"entityType"`
	CanonicalID string   `json:"canonicalId"`
	SurvivorID  string   `json:"survivorId"`
	OrphanID    string   `json:"orphanId"`
	PropsCopied []string `json:"propsCopied"`
	RelsMoved   int      `json:"relsMoved"`
}

// RenameNarrative records one identifier normalization.
type RenameNarrative struct {
	EntityType string `json:"entityType"`
	FromID     string `json:"fromId"`
	ToID       string `json:"toId"`
}

// Outcome is the result of one maintenance invocation. Partial success
// is an outcome, not an error: per-group failures land in Failures and
// the batch continues.
type Outcome struct {
	RunID    uuid.UUID `json:"runId"`
	GraphID  string    `json:"graphId"`
	Action   Action    `json:"action"`
	DryRun   bool      `json:"dryRun"`
	Affected int64     `json:"affected"`

	Merges        []MergeNarrative  `json:"merges,omitempty"`
	Renames       []RenameNarrative `json:"renames,omitempty"`
	Failures      []string          `json:"failures,omitempty"`
	CascadePurged map[string]int64  `json:"cascadePurged,omitempty"`
	StartedAt     time.Time         `json:"startedAt"`
	FinishedAt    time.Time         `json:"finishedAt"`
}

type ExecuteOptions struct {
	DryRun       bool
	Credential   string
	ConfirmToken string
}

// Execute runs one maintenance action. A dry run computes the same
// plans and counts through the same code path and reports what
// execution would do, issuing no mutating query. Real execution
// requires owner-level access and, for non-admin callers, the
// confirmation token; both are verified before any mutation.
func (e *Engine) Execute(ctx context.Context, action Action, opts ExecuteOptions) (*Outcome, error) {
	if _, err := ParseAction(string(action)); err != nil {
		return nil, err
	}

	level := access.LevelOwner
	if opts.DryRun {
		level = access.LevelRead
	}
	decision, err := e.checkAccess(ctx, opts.Credential, level)
	if err != nil {
		return nil, err
	}
	if !opts.DryRun && !decision.Admin && opts.ConfirmToken != ConfirmToken {
		return nil, fmt.Errorf("%w: action %s is destructive", ErrConfirmationRequired, action)
	}

	outcome := &Outcome{
		RunID:     uuid.New(),
		GraphID:   e.scope.GraphID,
		Action:    action,
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}
	log := e.log.With("run_id", outcome.RunID.String(), "action", string(action), "dry_run", opts.DryRun)
	log.Info("maintenance action starting")

	switch action {
	case ActionDedupeStructuralEntities:
		err = e.runDedupe(ctx, outcome, log)
	case ActionNormalizeEntityIDs:
		err = e.runNormalize(ctx, outcome, log)
	case ActionCleanupOrphans:
		err = e.runBulk(ctx, outcome, e.store.CountOrphanScoped, e.store.DeleteOrphanScoped)
	case ActionCleanupDefaultScope:
		err = e.runBulk(ctx, outcome, e.store.CountDefaultScoped, e.store.DeleteDefaultScoped)
	case ActionCleanupPhantomEntities:
		err = e.runBulk(ctx, outcome, e.store.CountPhantom, e.store.DeletePhantom)
	case ActionCleanupStaleScopes:
		err = e.runBulk(ctx, outcome,
			func(ctx context.Context) (graph.CategoryCount, error) {
				return e.store.CountStaleScopes(ctx, e.staleThreshold)
			},
			func(ctx context.Context) (int64, error) {
				return e.store.DeleteStaleScopes(ctx, e.staleThreshold)
			})
	case ActionDeleteTenant:
		err = e.runDeleteTenant(ctx, outcome, log)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	outcome.FinishedAt = time.Now().UTC()
	status := "success"
	if err != nil {
		status = "error"
	} else if len(outcome.Failures) > 0 {
		status = "partial"
	}
	mode := "execute"
	if opts.DryRun {
		mode = "dry_run"
	}
	e.metrics.ObserveCleanupRun(string(action), mode, status, outcome.Affected)
	if err != nil {
		log.Error("maintenance action failed", "error", err)
		return nil, err
	}
	log.Info("maintenance action finished",
		"affected", outcome.Affected, "failures", len(outcome.Failures))
	return outcome, nil
}

// runDedupe merges duplicate groups sequentially. Later groups are not
// guaranteed disjoint from earlier ones, so there is no fan-out here.
// A failure in one group is recorded and the batch continues.
func (e *Engine) runDedupe(ctx context.Context, outcome *Outcome, log *logger.Logger) error {
	plans, err := e.buildMergePlans(ctx)
	if err != nil {
		return err
	}

	for _, plan := range plans {
		if outcome.DryRun {
			for _, orphan := range plan.Orphans {
				outcome.Merges = append(outcome.Merges, narrativeFor(plan, orphan))
				outcome.Affected++
			}
			continue
		}
		if err := e.executeMergePlan(ctx, plan, outcome); err != nil {
			msg := fmt.Sprintf("merge %s/%s: %v", plan.EntityType, plan.CanonicalID, err)
			log.Warn("duplicate group failed, continuing batch",
				"entity_type", string(plan.EntityType), "canonical_id", plan.CanonicalID, "error", err)
			outcome.Failures = append(outcome.Failures, msg)
			e.metrics.ObserveMergeGroup(string(plan.EntityType), "error")
			continue
		}
		e.metrics.ObserveMergeGroup(string(plan.EntityType), "success")
	}
	return nil
}

// executeMergePlan applies one plan. Per orphan the order is fixed:
// outgoing edges, incoming edges, property delta, delete. A crash
// mid-group leaves the survivor enriched and the orphan present;
// re-running recomputes the deltas and skips what already moved.
func (e *Engine) executeMergePlan(ctx context.Context, plan MergePlan, outcome *Outcome) error {
	for _, orphan := range plan.Orphans {
		moves := plan.RelMoves[orphan.ElementID]
		for _, m := range moves {
			if m.Direction != graph.DirOut {
				continue
			}
			if err := e.store.CreateRel(ctx, plan.Survivor.ElementID, m.OtherElementID, m.RelType); err != nil {
				return fmt.Errorf("transfer outgoing %s: %w", m.RelType, err)
			}
		}
		for _, m := range moves {
			if m.Direction != graph.DirIn {
				continue
			}
			if err := e.store.CreateRel(ctx, m.OtherElementID, plan.Survivor.ElementID, m.RelType); err != nil {
				return fmt.Errorf("transfer incoming %s: %w", m.RelType, err)
			}
		}
		if err := e.store.SetProps(ctx, plan.Survivor.ElementID, plan.PropDeltas[orphan.ElementID]); err != nil {
			return fmt.Errorf("apply property delta: %w", err)
		}
		deleted, err := e.store.DeleteEntity(ctx, orphan.ElementID)
		if err != nil {
			return fmt.Errorf("delete orphan %s: %w", orphan.ID, err)
		}
		outcome.Affected += deleted
		outcome.Merges = append(outcome.Merges, narrativeFor(plan, orphan))
	}
	return nil
}

func narrativeFor(plan MergePlan, orphan *graph.Entity) MergeNarrative {
	props := make([]string, 0, len(plan.PropDeltas[orphan.ElementID]))
	for key := range plan.PropDeltas[orphan.ElementID] {
		props = append(props, key)
	}
	sort.Strings(props)
	return MergeNarrative{
		EntityType:  string(plan.EntityType),
		CanonicalID: plan.CanonicalID,
		SurvivorID:  plan.Survivor.ID,
		OrphanID:    orphan.ID,
		PropsCopied: props,
		RelsMoved:   len(plan.RelMoves[orphan.ElementID]),
	}
}

func (e *Engine) runNormalize(ctx context.Context, outcome *Outcome, log *logger.Logger) error {
	for _, t := range graph.AllEntityTypes {
		entities, err := FindNonCanonical(ctx, e.store, t)
		if err != nil {
			return err
		}
		for _, entity := range entities {
			canonical := CanonicalID(entity.ID, t)
			if outcome.DryRun {
				outcome.Renames = append(outcome.Renames, RenameNarrative{
					EntityType: string(t), FromID: entity.ID, ToID: canonical,
				})
				outcome.Affected++
				continue
			}
			if err := e.store.SetEntityID(ctx, entity.ElementID, canonical); err != nil {
				msg := fmt.Sprintf("normalize %s %s: %v", t, entity.ID, err)
				log.Warn("id normalization failed, continuing batch",
					"entity_type", string(t), "id", entity.ID, "error", err)
				outcome.Failures = append(outcome.Failures, msg)
				continue
			}
			outcome.Renames = append(outcome.Renames, RenameNarrative{
				EntityType: string(t), FromID: entity.ID, ToID: canonical,
			})
			outcome.Affected++
		}
	}
	return nil
}

func (e *Engine) runBulk(ctx context.Context, outcome *Outcome,
	count func(context.Context) (graph.CategoryCount, error),
	del func(context.Context) (int64, error),
) error {
	if outcome.DryRun {
		c, err := count(ctx)
		if err != nil {
			return err
		}
		outcome.Affected = c.Count
		return nil
	}
	n, err := del(ctx)
	if err != nil {
		return err
	}
	outcome.Affected = n
	return nil
}

// runDeleteTenant removes every node in scope and then cascades to the
// auxiliary stores holding tenant-scoped records. Aux failures do not
// roll back the graph delete; they are reported as partial failures.
func (e *Engine) runDeleteTenant(ctx context.Context, outcome *Outcome, log *logger.Logger) error {
	if outcome.DryRun {
		c, err := e.store.CountTenant(ctx)
		if err != nil {
			return err
		}
		outcome.Affected = c.Count
		return nil
	}
	n, err := e.store.DeleteTenant(ctx)
	if err != nil {
		return err
	}
	outcome.Affected = n

	outcome.CascadePurged = map[string]int64{}
	for _, aux := range e.aux {
		purged, err := aux.PurgeTenant(ctx, e.scope.GraphID)
		if err != nil {
			msg := fmt.Sprintf("cascade %s: %v", aux.Name(), err)
			log.Warn("aux store cascade failed", "aux", aux.Name(), "error", err)
			outcome.Failures = append(outcome.Failures, msg)
			continue
		}
		outcome.CascadePurged[aux.Name()] = purged
	}
	return nil
}
