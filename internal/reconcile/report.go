package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/planloom/planloom-backend/internal/access"
	"github.com/planloom/planloom-backend/internal/data/graph"
)

// GroupPreview describes one planned merge without executing it.
type GroupPreview struct {
	EntityType  string   `json:"entityType"`
	CanonicalID string   `json:"canonicalId"`
	SurvivorID  string   `json:"survivorId"`
	OrphanIDs   []string `json:"orphanIds"`
	PropsToCopy []string `json:"propsToCopy"`
	RelsToMove  int      `json:"relsToMove"`
}

// CategoryReport covers one issue category: how many nodes the action
// would touch plus a bounded identifier sample.
type CategoryReport struct {
	Action    Action         `json:"action"`
	Count     int64          `json:"count"`
	SampleIDs []string       `json:"sampleIds"`
	Groups    []GroupPreview `json:"groups,omitempty"`
}

// Report is the full integrity analysis for one tenant. A report is
// all-or-nothing: any read failure aborts the whole thing.
type Report struct {
	RunID       uuid.UUID        `json:"runId"`
	GraphID     string           `json:"graphId"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Categories  []CategoryReport `json:"categories"`
}

// Analyze computes every issue category without mutating anything.
// The category counts are independent read-only queries, so they run
// concurrently; the merge planning shares the executor's code path.
func (e *Engine) Analyze(ctx context.Context, credential string) (*Report, error) {
	if _, err := e.checkAccess(ctx, credential, access.LevelRead); err != nil {
		return nil, err
	}

	var (
		orphans, defaults, stale, phantom, tenant graph.CategoryCount
		plans                                     []MergePlan
		renames                                   []*graph.Entity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orphans, err = e.store.CountOrphanScoped(gctx)
		return err
	})
	g.Go(func() (err error) {
		defaults, err = e.store.CountDefaultScoped(gctx)
		return err
	})
	g.Go(func() (err error) {
		stale, err = e.store.CountStaleScopes(gctx, e.staleThreshold)
		return err
	})
	g.Go(func() (err error) {
		phantom, err = e.store.CountPhantom(gctx)
		return err
	})
	g.Go(func() (err error) {
		tenant, err = e.store.CountTenant(gctx)
		return err
	})
	g.Go(func() (err error) {
		plans, err = e.buildMergePlans(gctx)
		return err
	})
	g.Go(func() error {
		for _, t := range graph.AllEntityTypes {
			found, err := FindNonCanonical(gctx, e.store, t)
			if err != nil {
				return err
			}
			renames = append(renames, found...)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       uuid.New(),
		GraphID:     e.scope.GraphID,
		GeneratedAt: time.Now().UTC(),
		Categories: []CategoryReport{
			{Action: ActionCleanupOrphans, Count: orphans.Count, SampleIDs: orphans.Samples},
			{Action: ActionCleanupDefaultScope, Count: defaults.Count, SampleIDs: defaults.Samples},
			{Action: ActionCleanupStaleScopes, Count: stale.Count, SampleIDs: stale.Samples},
			{Action: ActionCleanupPhantomEntities, Count: phantom.Count, SampleIDs: phantom.Samples},
			dedupeCategory(plans),
			renameCategory(renames),
			{Action: ActionDeleteTenant, Count: tenant.Count, SampleIDs: tenant.Samples},
		},
	}

	e.log.Info("analysis report generated",
		"run_id", report.RunID.String(),
		"duplicate_groups", len(plans),
		"non_canonical_ids", len(renames))
	return report, nil
}

func dedupeCategory(plans []MergePlan) CategoryReport {
	cat := CategoryReport{
		Action:    ActionDedupeStructuralEntities,
		SampleIDs: []string{},
		Groups:    make([]GroupPreview, 0, len(plans)),
	}
	for _, p := range plans {
		preview := GroupPreview{
			EntityType:  string(p.EntityType),
			CanonicalID: p.CanonicalID,
			SurvivorID:  p.Survivor.ID,
			OrphanIDs:   make([]string, 0, len(p.Orphans)),
			PropsToCopy: []string{},
		}
		seen := map[string]bool{}
		for _, o := range p.Orphans {
			preview.OrphanIDs = append(preview.OrphanIDs, o.ID)
			for key := range p.PropDeltas[o.ElementID] {
				if !seen[key] {
					seen[key] = true
					preview.PropsToCopy = append(preview.PropsToCopy, key)
				}
			}
			preview.RelsToMove += len(p.RelMoves[o.ElementID])
			cat.Count++
		}
		sort.Strings(preview.PropsToCopy)
		if len(cat.SampleIDs) < 5 {
			cat.SampleIDs = append(cat.SampleIDs, p.CanonicalID)
		}
		cat.Groups = append(cat.Groups, preview)
	}
	return cat
}

func renameCategory(renames []*graph.Entity) CategoryReport {
	cat := CategoryReport{
		Action:    ActionNormalizeEntityIDs,
		Count:     int64(len(renames)),
		SampleIDs: []string{},
	}
	for _, e := range renames {
		if len(cat.SampleIDs) >= 5 {
			break
		}
		cat.SampleIDs = append(cat.SampleIDs, e.ID)
	}
	return cat
}
