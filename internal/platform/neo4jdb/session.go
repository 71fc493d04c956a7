package neo4jdb

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/planloom/planloom-backend/internal/platform/logger"
)

// Parameter names reserved for scope injection. Caller-supplied values
// under these keys are dropped; the session's scope always wins.
var scopeParamKeys = []string{"graph_id", "graphId", "organizationId", "projectId"}

// ScopedSession wraps a store session so every statement runs with the
// tenant scope bound. Historical writers stored the tenant key under
// two property names; ScopeFilter covers both so callers can assume a
// single canonical field.
type ScopedSession struct {
	sess  neo4j.SessionWithContext
	scope Scope
	log   *logger.Logger
}

func (s *ScopedSession) Scope() Scope { return s.scope }

func (s *ScopedSession) Close(ctx context.Context) error {
	if s == nil || s.sess == nil {
		return nil
	}
	return s.sess.Close(ctx)
}

// ScopeFilter returns the Cypher predicate constraining a node alias to
// the bound tenant, covering both legacy scope property names.
func ScopeFilter(alias string) string {
	return fmt.Sprintf("(%s.graph_id = $graph_id OR %s.graphId = $graph_id)", alias, alias)
}

func (s *ScopedSession) ScopeFilter(alias string) string {
	return ScopeFilter(alias)
}

func (s *ScopedSession) mergeParams(params map[string]any) map[string]any {
	merged := make(map[string]any, len(params)+4)
	for k, v := range params {
		if isScopeParam(k) {
			if v != s.scopeValue(k) {
				s.log.Warn("dropping caller attempt to override scope parameter", "param", k)
			}
			continue
		}
		merged[k] = v
	}
	merged["graph_id"] = s.scope.GraphID
	merged["graphId"] = s.scope.GraphID
	if s.scope.OrganizationID != "" {
		merged["organizationId"] = s.scope.OrganizationID
		merged["projectId"] = s.scope.ProjectID
	}
	return merged
}

func (s *ScopedSession) scopeValue(key string) any {
	switch key {
	case "graph_id", "graphId":
		return s.scope.GraphID
	case "organizationId":
		return s.scope.OrganizationID
	case "projectId":
		return s.scope.ProjectID
	default:
		return nil
	}
}

func isScopeParam(key string) bool {
	for _, k := range scopeParamKeys {
		if k == key {
			return true
		}
	}
	return false
}

// wrapQueryError classifies the driver failure before wrapping it: a
// store that went paused or resuming mid-session must surface as
// retryable, not as a rejected query.
func wrapQueryError(cypher string, params map[string]any, err error) error {
	switch classifyLiveness(err) {
	case StatePaused:
		err = fmt.Errorf("%w: %v", ErrStorePaused, err)
	case StateResuming:
		err = fmt.Errorf("%w: %v", ErrStoreResuming, err)
	}
	return &QueryError{Query: cypher, Params: params, Err: err}
}

// Read runs a statement in a managed read transaction and collects all
// records.
func (s *ScopedSession) Read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	merged := s.mergeParams(params)
	out, err := s.sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, merged)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, wrapQueryError(cypher, merged, err)
	}
	return out.([]*neo4j.Record), nil
}

// Write runs a statement in a managed write transaction and returns the
// result summary so callers can read mutation counters.
func (s *ScopedSession) Write(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultSummary, error) {
	merged := s.mergeParams(params)
	out, err := s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, merged)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return nil, wrapQueryError(cypher, merged, err)
	}
	return out.(neo4j.ResultSummary), nil
}
