package syncstate

import "context"

// AuxStore adapts the repo to the tenant-purge cascade: deleting a
// tenant from the graph also drops its sync history.
type AuxStore struct {
	repo Repo
}

func NewAuxStore(repo Repo) *AuxStore {
	return &AuxStore{repo: repo}
}

func (a *AuxStore) Name() string { return "sync-state" }

func (a *AuxStore) PurgeTenant(ctx context.Context, graphID string) (int64, error) {
	if a == nil || a.repo == nil {
		return 0, nil
	}
	return a.repo.DeleteByGraph(ctx, graphID)
}
