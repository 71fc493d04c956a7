package reconcile

import (
	"context"
	"fmt"

	"github.com/planloom/planloom-backend/internal/access"
	"github.com/planloom/planloom-backend/internal/data/graph"
	"github.com/planloom/planloom-backend/internal/observability"
	"github.com/planloom/planloom-backend/internal/platform/logger"
	"github.com/planloom/planloom-backend/internal/platform/neo4jdb"
)

// AuxStore is an auxiliary store holding tenant-scoped records outside
// the graph. delete-tenant cascades into every registered AuxStore.
type AuxStore interface {
	Name() string
	PurgeTenant(ctx context.Context, graphID string) (int64, error)
}

// Engine runs integrity analysis and reconciliation for one tenant
// graph. One invocation is a single sequential unit of work; two
// concurrent runs against the same tenant are not safe and must be
// serialized by the caller.
type Engine struct {
	store   graph.Store
	scope   neo4jdb.Scope
	access  access.Checker
	log     *logger.Logger
	metrics *observability.Metrics
	aux     []AuxStore

	staleThreshold int64
}

type EngineConfig struct {
	Store  graph.Store
	Scope  neo4jdb.Scope
	Access access.Checker
	Log    *logger.Logger
	Aux    []AuxStore

	// StaleScopeThreshold defaults to DefaultStaleScopeThreshold.
	StaleScopeThreshold int64
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("reconcile: store required")
	}
	if cfg.Access == nil {
		return nil, fmt.Errorf("reconcile: access checker required")
	}
	if cfg.Log == nil {
		return nil, fmt.Errorf("reconcile: logger required")
	}
	if err := cfg.Scope.Validate(); err != nil {
		return nil, err
	}
	threshold := cfg.StaleScopeThreshold
	if threshold <= 0 {
		threshold = DefaultStaleScopeThreshold
	}
	return &Engine{
		store:          cfg.Store,
		scope:          cfg.Scope,
		access:         cfg.Access,
		log:            cfg.Log.With("engine", "Reconcile", "graph_id", cfg.Scope.GraphID),
		metrics:        observability.Current(),
		aux:            cfg.Aux,
		staleThreshold: threshold,
	}, nil
}

// buildMergePlans runs grouping and planning for every structural
// entity type. Both the report facade and the executor use this exact
// path, so the preview is the execution, minus the writes.
func (e *Engine) buildMergePlans(ctx context.Context) ([]MergePlan, error) {
	plans := make([]MergePlan, 0)
	for _, t := range graph.AllEntityTypes {
		groups, err := FindDuplicates(ctx, e.store, t)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			rels := map[string][]graph.Rel{}
			for _, m := range g.Members {
				rr, err := e.store.FetchRels(ctx, m.ElementID)
				if err != nil {
					return nil, fmt.Errorf("load relationships for %s: %w", m.ID, err)
				}
				rels[m.ElementID] = rr
			}
			plans = append(plans, PlanMerge(g, rels))
		}
	}
	return plans, nil
}

// CheckRead verifies the credential can read this tenant. Callers that
// serve precomputed results still go through this gate.
func (e *Engine) CheckRead(ctx context.Context, credential string) error {
	_, err := e.checkAccess(ctx, credential, access.LevelRead)
	return err
}

func (e *Engine) checkAccess(ctx context.Context, credential string, level access.Level) (access.Decision, error) {
	decision, err := e.access.CheckAccess(ctx, credential, e.scope.GraphID, level)
	if err != nil {
		return access.Decision{}, fmt.Errorf("access check: %w", err)
	}
	if !decision.Granted {
		reason := decision.Reason
		if reason == "" {
			reason = "access not granted"
		}
		return decision, fmt.Errorf("%w: %s", ErrAccessDenied, reason)
	}
	return decision, nil
}
