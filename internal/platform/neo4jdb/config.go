package neo4jdb

import (
	"fmt"
	"strings"
	"time"

	"github.com/planloom/planloom-backend/internal/platform/envutil"
)

// Scope is the tenant boundary every query is constrained to. GraphID
// is the canonical tenant key; OrganizationID/ProjectID are the
// request-level identifiers some callers carry alongside it.
type Scope struct {
	OrganizationID string
	ProjectID      string
	GraphID        string
}

func (s Scope) Validate() error {
	if strings.TrimSpace(s.GraphID) == "" {
		return fmt.Errorf("%w: scope graph id is empty", ErrInvalidConfiguration)
	}
	if (s.OrganizationID == "") != (s.ProjectID == "") {
		return fmt.Errorf("%w: organization and project ids must be set together", ErrInvalidConfiguration)
	}
	return nil
}

type Config struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
}

func FromEnv() Config {
	return Config{
		URI:            envutil.Str("NEO4J_URI", ""),
		Username:       envutil.Str("NEO4J_USER", "neo4j"),
		Password:       envutil.Str("NEO4J_PASSWORD", ""),
		Database:       envutil.Str("NEO4J_DATABASE", ""),
		MaxRetries:     envutil.Int("NEO4J_MAX_RETRIES", 5),
		RetryBaseDelay: envutil.Duration("NEO4J_RETRY_BASE_DELAY", 2*time.Second),
		ConnectTimeout: envutil.Duration("NEO4J_CONNECT_TIMEOUT", 10*time.Second),
		MaxPoolSize:    envutil.Int("NEO4J_MAX_POOL_SIZE", 50),
	}
}

func (c Config) Validate() error {
	uri := strings.TrimSpace(c.URI)
	if uri == "" {
		return fmt.Errorf("%w: store uri is empty", ErrInvalidConfiguration)
	}
	valid := false
	for _, scheme := range []string{"neo4j://", "neo4j+s://", "neo4j+ssc://", "bolt://", "bolt+s://"} {
		if strings.HasPrefix(uri, scheme) {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: unsupported store uri scheme in %q", ErrInvalidConfiguration, uri)
	}
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: store username is empty", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(c.Password) == "" {
		return fmt.Errorf("%w: store password is empty", ErrInvalidConfiguration)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 2 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = 50
	}
	return c
}
