package access

import "context"

// Level is the access required for an operation against a tenant graph.
type Level int

const (
	LevelRead Level = iota + 1
	LevelWrite
	LevelOwner
)

func (l Level) String() string {
	switch l {
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	case LevelOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an access check. A failed check is a
// denied Decision, not an error; errors are reserved for the checker
// itself being unable to answer.
type Decision struct {
	Granted bool   `json:"granted"`
	Role    string `json:"role"`
	Admin   bool   `json:"admin"`
	Reason  string `json:"reason,omitempty"`
}

type Checker interface {
	CheckAccess(ctx context.Context, credential, graphID string, level Level) (Decision, error)
}
