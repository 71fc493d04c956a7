package graph

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/planloom/planloom-backend/internal/platform/logger"
	"github.com/planloom/planloom-backend/internal/platform/neo4jdb"
)

// DefaultScopeSentinel is the placeholder scope value historical
// writers stamped on nodes created before tenancy was enforced.
const DefaultScopeSentinel = "default"

// sampleLimit bounds the identifier samples returned per category.
const sampleLimit = 5

var relTypeRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// structuralLabelsPredicate matches any structural entity label.
const structuralLabelsPredicate = "(n:Epic OR n:Sprint OR n:Task)"

// neo4jStore opens a short-lived tenant-bound session per operation,
// so independent read-only calls can run concurrently and the
// connection is never held idle across unrelated work.
type neo4jStore struct {
	client *neo4jdb.Client
	scope  neo4jdb.Scope
	log    *logger.Logger
}

func NewNeo4jStore(client *neo4jdb.Client, scope neo4jdb.Scope, log *logger.Logger) Store {
	return &neo4jStore{
		client: client,
		scope:  scope,
		log:    log.With("store", "Neo4jGraph", "graph_id", scope.GraphID),
	}
}

func (s *neo4jStore) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	sess, err := s.client.Session(ctx, s.scope)
	if err != nil {
		return nil, err
	}
	defer sess.Close(ctx)
	return sess.Read(ctx, cypher, params)
}

func (s *neo4jStore) write(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultSummary, error) {
	sess, err := s.client.Session(ctx, s.scope)
	if err != nil {
		return nil, err
	}
	defer sess.Close(ctx)
	return sess.Write(ctx, cypher, params)
}

func (s *neo4jStore) FetchEntities(ctx context.Context, t EntityType) ([]*Entity, error) {
	label := t.Label()
	if label == "" {
		return nil, fmt.Errorf("graph: unknown entity type %q", t)
	}
	cypher := fmt.Sprintf(`
MATCH (n:%s)
WHERE %s
RETURN elementId(n) AS element_id,
       coalesce(n.id, '') AS id,
       coalesce(n.graph_id, n.graphId, '') AS graph_id,
       coalesce(n.title, '') AS title,
       coalesce(n.status, '') AS status,
       coalesce(n.epic_id, '') AS epic_id,
       coalesce(n.sprint_id, '') AS sprint_id,
       n.content AS content,
       n.summary AS summary,
       n.embedding AS embedding,
       n.embedding_model AS embedding_model,
       n.has_embedding AS has_embedding,
       n.filePath AS file_path,
       n.hash AS hash
ORDER BY id ASC`, label, neo4jdb.ScopeFilter("n"))

	records, err := s.read(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*Entity, 0, len(records))
	for _, rec := range records {
		out = append(out, &Entity{
			ElementID:      recStr(rec, "element_id"),
			ID:             recStr(rec, "id"),
			GraphID:        recStr(rec, "graph_id"),
			Title:          recStr(rec, "title"),
			Status:         recStr(rec, "status"),
			EpicID:         recStr(rec, "epic_id"),
			SprintID:       recStr(rec, "sprint_id"),
			Content:        recStrPtr(rec, "content"),
			Summary:        recStrPtr(rec, "summary"),
			Embedding:      recFloats(rec, "embedding"),
			EmbeddingModel: recStrPtr(rec, "embedding_model"),
			HasEmbedding:   recBoolPtr(rec, "has_embedding"),
			FilePath:       recStrPtr(rec, "file_path"),
			Hash:           recStrPtr(rec, "hash"),
		})
	}
	return out, nil
}

func (s *neo4jStore) FetchRels(ctx context.Context, elementID string) ([]Rel, error) {
	cypher := `
MATCH (n) WHERE elementId(n) = $element_id
MATCH (n)-[r]->(m)
RETURN type(r) AS rel_type, 'out' AS dir, elementId(m) AS other_id
UNION ALL
MATCH (n) WHERE elementId(n) = $element_id
MATCH (m)-[r]->(n)
RETURN type(r) AS rel_type, 'in' AS dir, elementId(m) AS other_id`
	records, err := s.read(ctx, cypher, map[string]any{"element_id": elementID})
	if err != nil {
		return nil, err
	}
	out := make([]Rel, 0, len(records))
	for _, rec := range records {
		out = append(out, Rel{
			Type:           recStr(rec, "rel_type"),
			Direction:      Direction(recStr(rec, "dir")),
			OtherElementID: recStr(rec, "other_id"),
		})
	}
	return out, nil
}

// Mutations match by elementId AND the session scope, so a stale or
// forged element id can never touch another tenant's node.
var (
	setPropsQuery = fmt.Sprintf(`
MATCH (n) WHERE elementId(n) = $element_id AND %s
SET n += $props`, neo4jdb.ScopeFilter("n"))

	setEntityIDQuery = fmt.Sprintf(`
MATCH (n) WHERE elementId(n) = $element_id AND %s
SET n.id = $new_id`, neo4jdb.ScopeFilter("n"))

	deleteEntityQuery = fmt.Sprintf(`
MATCH (n) WHERE elementId(n) = $element_id AND %s
DETACH DELETE n`, neo4jdb.ScopeFilter("n"))
)

func createRelQuery(relType string) string {
	return fmt.Sprintf(`
MATCH (a) WHERE elementId(a) = $from_id AND %s
MATCH (b) WHERE elementId(b) = $to_id AND %s
MERGE (a)-[:%s]->(b)`, neo4jdb.ScopeFilter("a"), neo4jdb.ScopeFilter("b"), relType)
}

// CreateRel merges the edge, so replays after a partial failure do not
// duplicate it. Relationship types cannot be bound as parameters, so
// the type is validated and inlined. Both endpoints must be in scope;
// an out-of-scope endpoint makes the MERGE match nothing.
func (s *neo4jStore) CreateRel(ctx context.Context, fromElementID, toElementID, relType string) error {
	if !relTypeRe.MatchString(relType) {
		return fmt.Errorf("graph: invalid relationship type %q", relType)
	}
	_, err := s.write(ctx, createRelQuery(relType), map[string]any{
		"from_id": fromElementID,
		"to_id":   toElementID,
	})
	return err
}

func (s *neo4jStore) SetProps(ctx context.Context, elementID string, props map[string]any) error {
	if len(props) == 0 {
		return nil
	}
	_, err := s.write(ctx, setPropsQuery, map[string]any{
		"element_id": elementID,
		"props":      props,
	})
	return err
}

func (s *neo4jStore) SetEntityID(ctx context.Context, elementID, newID string) error {
	_, err := s.write(ctx, setEntityIDQuery, map[string]any{
		"element_id": elementID,
		"new_id":     newID,
	})
	return err
}

func (s *neo4jStore) DeleteEntity(ctx context.Context, elementID string) (int64, error) {
	summary, err := s.write(ctx, deleteEntityQuery, map[string]any{"element_id": elementID})
	if err != nil {
		return 0, err
	}
	return int64(summary.Counters().NodesDeleted()), nil
}

const orphanPredicate = "n.graph_id IS NULL AND n.graphId IS NULL"

func (s *neo4jStore) CountOrphanScoped(ctx context.Context) (CategoryCount, error) {
	return s.countWithSample(ctx, fmt.Sprintf(`
MATCH (n) WHERE %s
WITH collect(coalesce(n.id, elementId(n))) AS ids
RETURN size(ids) AS c, ids[0..%d] AS sample`, orphanPredicate, sampleLimit), nil)
}

func (s *neo4jStore) DeleteOrphanScoped(ctx context.Context) (int64, error) {
	return s.bulkDelete(ctx, fmt.Sprintf(`MATCH (n) WHERE %s DETACH DELETE n`, orphanPredicate), nil)
}

const defaultScopePredicate = "(n.graph_id = $sentinel OR n.graphId = $sentinel)"

func (s *neo4jStore) CountDefaultScoped(ctx context.Context) (CategoryCount, error) {
	return s.countWithSample(ctx, fmt.Sprintf(`
MATCH (n) WHERE %s
WITH collect(coalesce(n.id, elementId(n))) AS ids
RETURN size(ids) AS c, ids[0..%d] AS sample`, defaultScopePredicate, sampleLimit),
		map[string]any{"sentinel": DefaultScopeSentinel})
}

func (s *neo4jStore) DeleteDefaultScoped(ctx context.Context) (int64, error) {
	return s.bulkDelete(ctx, fmt.Sprintf(`MATCH (n) WHERE %s DETACH DELETE n`, defaultScopePredicate),
		map[string]any{"sentinel": DefaultScopeSentinel})
}

// Stale scopes are throwaway test tenants: scope values seen on fewer
// than threshold nodes, excluding the caller's own scope and the
// default sentinel (those have their own actions).
const staleScopeMatch = `
MATCH (n) WHERE n.graph_id IS NOT NULL OR n.graphId IS NOT NULL
WITH coalesce(n.graph_id, n.graphId) AS gid, collect(n) AS nodes
WHERE size(nodes) < $threshold AND gid <> $graph_id AND gid <> $sentinel`

func (s *neo4jStore) CountStaleScopes(ctx context.Context, threshold int64) (CategoryCount, error) {
	cypher := staleScopeMatch + fmt.Sprintf(`
WITH collect(gid) AS gids, sum(size(nodes)) AS total
RETURN total AS c, gids[0..%d] AS sample`, sampleLimit)
	return s.countWithSample(ctx, cypher, map[string]any{
		"threshold": threshold,
		"sentinel":  DefaultScopeSentinel,
	})
}

func (s *neo4jStore) DeleteStaleScopes(ctx context.Context, threshold int64) (int64, error) {
	cypher := staleScopeMatch + `
UNWIND nodes AS stale
DETACH DELETE stale`
	return s.bulkDelete(ctx, cypher, map[string]any{
		"threshold": threshold,
		"sentinel":  DefaultScopeSentinel,
	})
}

// Phantom entities are structural nodes whose identifier property is
// missing or empty; they cannot be canonicalized or merged, only
// dropped.
var phantomPredicate = fmt.Sprintf("%s AND (n.id IS NULL OR n.id = '')", structuralLabelsPredicate)

func (s *neo4jStore) CountPhantom(ctx context.Context) (CategoryCount, error) {
	return s.countWithSample(ctx, fmt.Sprintf(`
MATCH (n) WHERE %s AND %s
WITH collect(elementId(n)) AS ids
RETURN size(ids) AS c, ids[0..%d] AS sample`, phantomPredicate, neo4jdb.ScopeFilter("n"), sampleLimit), nil)
}

func (s *neo4jStore) DeletePhantom(ctx context.Context) (int64, error) {
	return s.bulkDelete(ctx, fmt.Sprintf(`
MATCH (n) WHERE %s AND %s
DETACH DELETE n`, phantomPredicate, neo4jdb.ScopeFilter("n")), nil)
}

func (s *neo4jStore) CountTenant(ctx context.Context) (CategoryCount, error) {
	return s.countWithSample(ctx, fmt.Sprintf(`
MATCH (n) WHERE %s
WITH collect(coalesce(n.id, elementId(n))) AS ids
RETURN size(ids) AS c, ids[0..%d] AS sample`, neo4jdb.ScopeFilter("n"), sampleLimit), nil)
}

func (s *neo4jStore) DeleteTenant(ctx context.Context) (int64, error) {
	return s.bulkDelete(ctx, fmt.Sprintf(`
MATCH (n) WHERE %s
DETACH DELETE n`, neo4jdb.ScopeFilter("n")), nil)
}

func (s *neo4jStore) countWithSample(ctx context.Context, cypher string, params map[string]any) (CategoryCount, error) {
	records, err := s.read(ctx, cypher, params)
	if err != nil {
		return CategoryCount{}, err
	}
	if len(records) == 0 {
		return CategoryCount{Samples: []string{}}, nil
	}
	rec := records[0]
	return CategoryCount{
		Count:   recInt(rec, "c"),
		Samples: recStrs(rec, "sample"),
	}, nil
}

func (s *neo4jStore) bulkDelete(ctx context.Context, cypher string, params map[string]any) (int64, error) {
	summary, err := s.write(ctx, cypher, params)
	if err != nil {
		return 0, err
	}
	return int64(summary.Counters().NodesDeleted()), nil
}

func recStr(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recStrPtr(rec *neo4j.Record, key string) *string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func recBoolPtr(rec *neo4j.Record, key string) *bool {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

func recInt(rec *neo4j.Record, key string) int64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func recFloats(rec *neo4j.Record, key string) []float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		f, ok := item.(float64)
		if !ok {
			return nil
		}
		out = append(out, f)
	}
	return out
}

func recStrs(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return []string{}
	}
	raw, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
