package neo4jdb

import (
	"errors"
	"strings"
	"testing"

	"github.com/planloom/planloom-backend/internal/platform/logger"
)

func TestConfigValidate(t *testing.T) {
	base := Config{URI: "neo4j+s://example.databases.neo4j.io", Username: "neo4j", Password: "pw"}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty uri", func(c *Config) { c.URI = "" }},
		{"bad scheme", func(c *Config) { c.URI = "http://example.com" }},
		{"empty user", func(c *Config) { c.Username = "" }},
		{"empty password", func(c *Config) { c.Password = "" }},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("%s: expected ErrInvalidConfiguration, got %v", tc.name, err)
		}
	}
}

func TestScopeValidate(t *testing.T) {
	if err := (Scope{GraphID: "g1"}).Validate(); err != nil {
		t.Fatalf("graph-only scope should validate: %v", err)
	}
	if err := (Scope{GraphID: "g1", OrganizationID: "o1", ProjectID: "p1"}).Validate(); err != nil {
		t.Fatalf("full scope should validate: %v", err)
	}
	if err := (Scope{}).Validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("empty scope: expected ErrInvalidConfiguration, got %v", err)
	}
	if err := (Scope{GraphID: "g1", OrganizationID: "o1"}).Validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("org without project: expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestClassifyLiveness(t *testing.T) {
	cases := []struct {
		msg  string
		want string
	}{
		{"Neo.ClientError.Database.DatabaseUnavailable: database is paused", StatePaused},
		{"instance suspended by administrator", StatePaused},
		{"ServiceUnavailable: server is resuming", StateResuming},
		{"database starting up", StateResuming},
		{"syntax error", StateActive},
	}
	for _, tc := range cases {
		if got := classifyLiveness(errors.New(tc.msg)); got != tc.want {
			t.Fatalf("classifyLiveness(%q) = %q, want %q", tc.msg, got, tc.want)
		}
	}
	if got := classifyLiveness(nil); got != StateActive {
		t.Fatalf("nil error should classify active, got %q", got)
	}
}

func TestRetryableConnect(t *testing.T) {
	if !retryableConnect(errors.New("dial tcp: connection refused")) {
		t.Fatal("connection refused should be retryable")
	}
	if !retryableConnect(errors.New("database is paused")) {
		t.Fatal("paused store should be retryable")
	}
	if retryableConnect(errors.New("unauthorized: invalid credentials")) {
		t.Fatal("auth failure should not be retryable")
	}
}

func TestMergeParamsInjectsScope(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	s := &ScopedSession{
		scope: Scope{GraphID: "tenant-a", OrganizationID: "org-1", ProjectID: "proj-1"},
		log:   log,
	}

	merged := s.mergeParams(map[string]any{
		"limit":    int64(10),
		"graph_id": "tenant-b",
		"graphId":  "tenant-b",
	})
	if merged["graph_id"] != "tenant-a" || merged["graphId"] != "tenant-a" {
		t.Fatalf("scope override must be dropped, got %v", merged)
	}
	if merged["organizationId"] != "org-1" || merged["projectId"] != "proj-1" {
		t.Fatalf("org/project params missing: %v", merged)
	}
	if merged["limit"] != int64(10) {
		t.Fatalf("caller params must pass through, got %v", merged["limit"])
	}
}

func TestScopeFilterCoversLegacyNames(t *testing.T) {
	s := &ScopedSession{scope: Scope{GraphID: "g"}}
	filter := s.ScopeFilter("n")
	if !strings.Contains(filter, "n.graph_id = $graph_id") || !strings.Contains(filter, "n.graphId = $graph_id") {
		t.Fatalf("filter must cover both legacy scope property names: %s", filter)
	}
}

func TestConnectErrorIs(t *testing.T) {
	err := error(&ConnectError{Attempts: 5, Last: errors.New("paused")})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatal("ConnectError should match ErrConnectionFailed")
	}
}

func TestWrapQueryErrorClassifiesLiveness(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"Neo.TransientError.General.DatabaseUnavailable: database is paused", ErrStorePaused},
		{"instance suspended by administrator", ErrStorePaused},
		{"database is resuming, retry shortly", ErrStoreResuming},
	}
	for _, tc := range cases {
		err := wrapQueryError("RETURN 1", nil, errors.New(tc.msg))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%q: expected %v in chain, got %v", tc.msg, tc.want, err)
		}
		if !errors.Is(err, ErrQueryFailed) {
			t.Fatalf("%q: query context must be preserved, got %v", tc.msg, err)
		}
	}

	plain := wrapQueryError("RETURN 1", nil, errors.New("syntax error"))
	if errors.Is(plain, ErrStorePaused) || errors.Is(plain, ErrStoreResuming) {
		t.Fatalf("rejected query must not classify as a liveness failure: %v", plain)
	}
}

func TestQueryErrorIs(t *testing.T) {
	err := error(&QueryError{Query: "RETURN 1", Err: errors.New("rejected")})
	if !errors.Is(err, ErrQueryFailed) {
		t.Fatal("QueryError should match ErrQueryFailed")
	}
}
