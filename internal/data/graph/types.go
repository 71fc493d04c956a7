package graph

import "strings"

// EntityType identifies the structural node kinds subject to duplicate
// creation by the independent write paths (document ingestion,
// task-sync, manual edits).
type EntityType string

const (
	EntityEpic   EntityType = "epic"
	EntitySprint EntityType = "sprint"
	EntityTask   EntityType = "task"
)

var AllEntityTypes = []EntityType{EntityEpic, EntitySprint, EntityTask}

func (t EntityType) Label() string {
	switch t {
	case EntityEpic:
		return "Epic"
	case EntitySprint:
		return "Sprint"
	case EntityTask:
		return "Task"
	default:
		return ""
	}
}

// ParentKey names the property linking an entity to its structural
// parent. Epics have none.
func (t EntityType) ParentKey() string {
	switch t {
	case EntitySprint:
		return "epic_id"
	case EntityTask:
		return "sprint_id"
	default:
		return ""
	}
}

func ParseEntityType(raw string) (EntityType, bool) {
	switch EntityType(strings.ToLower(strings.TrimSpace(raw))) {
	case EntityEpic:
		return EntityEpic, true
	case EntitySprint:
		return EntitySprint, true
	case EntityTask:
		return EntityTask, true
	default:
		return "", false
	}
}

// ContentPropKeys is the fixed allowlist of content properties
// considered for transfer during a merge. Anything outside this list
// never moves between nodes.
var ContentPropKeys = []string{
	"content", "summary", "embedding", "embedding_model",
	"has_embedding", "filePath", "hash",
}

// Entity is a typed view over a structural node's property bag. The
// store imposes no schema; unknown properties are ignored on read and
// never written. Content properties are pointers so "absent" and
// "empty" stay distinguishable for the merge delta.
type Entity struct {
	ElementID string
	ID        string
	GraphID   string

	Title    string
	Status   string
	EpicID   string
	SprintID string

	Content        *string
	Summary        *string
	Embedding      []float64
	EmbeddingModel *string
	HasEmbedding   *bool
	FilePath       *string
	Hash           *string
}

// ParentRef returns the entity's parent-reference value for its type.
func (e *Entity) ParentRef(t EntityType) string {
	switch t.ParentKey() {
	case "epic_id":
		return e.EpicID
	case "sprint_id":
		return e.SprintID
	default:
		return ""
	}
}

func (e *Entity) HasContent() bool {
	return e.Content != nil && *e.Content != ""
}

// ContentProps returns the populated allowlist subset, keyed by the
// store property name.
func (e *Entity) ContentProps() map[string]any {
	out := map[string]any{}
	if e.Content != nil {
		out["content"] = *e.Content
	}
	if e.Summary != nil {
		out["summary"] = *e.Summary
	}
	if len(e.Embedding) > 0 {
		out["embedding"] = e.Embedding
	}
	if e.EmbeddingModel != nil {
		out["embedding_model"] = *e.EmbeddingModel
	}
	if e.HasEmbedding != nil {
		out["has_embedding"] = *e.HasEmbedding
	}
	if e.FilePath != nil {
		out["filePath"] = *e.FilePath
	}
	if e.Hash != nil {
		out["hash"] = *e.Hash
	}
	return out
}

type Direction string

const (
	DirOut Direction = "out"
	DirIn  Direction = "in"
)

// Rel is one edge touching an entity, seen from that entity's side.
type Rel struct {
	Type           string
	Direction      Direction
	OtherElementID string
}

// Key identifies an edge for duplicate detection: same type, same
// direction, same far endpoint.
func (r Rel) Key() string {
	return r.Type + "|" + string(r.Direction) + "|" + r.OtherElementID
}

// CategoryCount is a bounded summary of one issue category: how many
// nodes are affected plus a small identifier sample.
type CategoryCount struct {
	Count   int64
	Samples []string
}
