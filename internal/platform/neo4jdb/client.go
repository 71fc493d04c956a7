package neo4jdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/planloom/planloom-backend/internal/platform/logger"
)

// Connection liveness states. Serverless-tier stores pause after idle
// periods and take a while to resume; callers use the state to decide
// whether a retry is worth it.
const (
	StateActive       = "active"
	StatePaused       = "paused"
	StateResuming     = "resuming"
	StateDisconnected = "disconnected"
)

type HealthStatus struct {
	Connected bool   `json:"connected"`
	State     string `json:"state"`
}

type Client struct {
	driver neo4j.DriverWithContext
	cfg    Config
	log    *logger.Logger
}

// Connect opens a driver and verifies connectivity, retrying with
// exponential backoff while the store looks paused or transiently
// unavailable. Exhausting the attempt ceiling yields a *ConnectError.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPoolSize
		c.SocketConnectTimeout = cfg.ConnectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	clientLog := log.With("client", "Neo4jDB")
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		verifyCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		err := driver.VerifyConnectivity(verifyCtx)
		cancel()
		if err == nil {
			return &Client{driver: driver, cfg: cfg, log: clientLog}, nil
		}
		lastErr = err
		if !retryableConnect(err) {
			_ = driver.Close(ctx)
			return nil, &ConnectError{Attempts: attempt, Last: err}
		}
		delay := cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
		clientLog.Warn("store unavailable, backing off",
			"attempt", attempt, "max_retries", cfg.MaxRetries,
			"state", classifyLiveness(err), "delay", delay.String(), "error", err)
		select {
		case <-ctx.Done():
			_ = driver.Close(context.Background())
			return nil, &ConnectError{Attempts: attempt, Last: ctx.Err()}
		case <-time.After(delay):
		}
	}
	_ = driver.Close(ctx)
	return nil, &ConnectError{Attempts: cfg.MaxRetries, Last: lastErr}
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

// Health probes the store with a trivial read and classifies the
// answer, distinguishing an active store from a paused or resuming one.
func (c *Client) Health(ctx context.Context) HealthStatus {
	if c == nil || c.driver == nil {
		return HealthStatus{Connected: false, State: StateDisconnected}
	}
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.cfg.Database,
	})
	defer session.Close(ctx)

	_, err := session.Run(ctx, "RETURN 1", nil)
	if err == nil {
		return HealthStatus{Connected: true, State: StateActive}
	}
	state := classifyLiveness(err)
	if state == StateActive {
		state = StateDisconnected
	}
	return HealthStatus{Connected: false, State: state}
}

// Session opens a tenant-bound session. All queries issued through it
// carry the scope's parameters; callers must Close it on every path.
func (c *Client) Session(ctx context.Context, scope Scope) (*ScopedSession, error) {
	if c == nil || c.driver == nil {
		return nil, fmt.Errorf("%w: client is closed", ErrConnectionFailed)
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.cfg.Database,
	})
	return &ScopedSession{
		sess:  sess,
		scope: scope,
		log:   c.log.With("graph_id", scope.GraphID),
	}, nil
}

// Aura pauses databases on the free tier; the driver surfaces that as
// ServiceUnavailable with a message naming the paused/resuming state.
func classifyLiveness(err error) string {
	if err == nil {
		return StateActive
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "resuming") || strings.Contains(msg, "starting up"):
		return StateResuming
	case strings.Contains(msg, "paused") || strings.Contains(msg, "suspended") || strings.Contains(msg, "hibernat"):
		return StatePaused
	default:
		return StateActive
	}
}

func retryableConnect(err error) bool {
	if err == nil {
		return false
	}
	if state := classifyLiveness(err); state == StatePaused || state == StateResuming {
		return true
	}
	if neo4j.IsRetryable(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no route to host") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "serviceunavailable")
}
