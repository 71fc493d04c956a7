package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/planloom/planloom-backend/internal/platform/logger"
)

// Graph roles in ascending order of privilege.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
)

type graphClaims struct {
	Admin      bool              `json:"admin"`
	GraphRoles map[string]string `json:"graphRoles"`
	jwt.RegisteredClaims
}

// TokenChecker verifies HMAC-signed bearer tokens whose claims carry a
// per-graph role map and an administrator flag. A malformed or expired
// token yields a denied decision with a reason, never an error: the
// credential is caller input, not an infrastructure failure.
type TokenChecker struct {
	secret []byte
	log    *logger.Logger
}

func NewTokenChecker(secret string, log *logger.Logger) (*TokenChecker, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("access: token secret is empty")
	}
	return &TokenChecker{secret: []byte(secret), log: log.With("checker", "TokenChecker")}, nil
}

func (c *TokenChecker) CheckAccess(ctx context.Context, credential, graphID string, level Level) (Decision, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Decision{Granted: false, Reason: "missing credential"}, nil
	}

	claims := &graphClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		c.log.Debug("credential rejected", "graph_id", graphID, "error", err)
		return Decision{Granted: false, Reason: "invalid or expired credential"}, nil
	}

	if claims.Admin {
		return Decision{Granted: true, Role: RoleAdmin, Admin: true}, nil
	}

	role, ok := claims.GraphRoles[graphID]
	if !ok {
		return Decision{Granted: false, Reason: "no role for graph"}, nil
	}
	if roleRank(role) < levelRank(level) {
		return Decision{
			Granted: false,
			Role:    role,
			Reason:  fmt.Sprintf("role %q below required level %q", role, level),
		}, nil
	}
	return Decision{Granted: true, Role: role}, nil
}

func roleRank(role string) int {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	case RoleOwner:
		return 3
	default:
		return 0
	}
}

func levelRank(level Level) int {
	switch level {
	case LevelRead:
		return 1
	case LevelWrite:
		return 2
	case LevelOwner:
		return 3
	default:
		return 3
	}
}
