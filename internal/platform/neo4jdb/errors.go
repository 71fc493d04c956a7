package neo4jdb

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("neo4jdb: invalid configuration")
	ErrConnectionFailed     = errors.New("neo4jdb: connection failed")
	ErrStorePaused          = errors.New("neo4jdb: store paused")
	ErrStoreResuming        = errors.New("neo4jdb: store resuming")
	ErrQueryFailed          = errors.New("neo4jdb: query failed")
)

// ConnectError reports exhausted connection attempts against a store
// that stayed unavailable.
type ConnectError struct {
	Attempts int
	Last     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("neo4jdb: connection failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ConnectError) Unwrap() error { return e.Last }

func (e *ConnectError) Is(target error) bool { return target == ErrConnectionFailed }

// QueryError carries the offending query and its bound parameters so a
// rejected statement can be diagnosed from the error alone. Scope
// parameters are included; they are injected, never caller secrets.
type QueryError struct {
	Query  string
	Params map[string]any
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("neo4jdb: query failed: %v (query: %s)", e.Err, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQueryFailed }
