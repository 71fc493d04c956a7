package app

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/planloom/planloom-backend/internal/platform/envutil"
	"github.com/planloom/planloom-backend/internal/platform/neo4jdb"
	"github.com/planloom/planloom-backend/internal/reconcile"
)

type Config struct {
	ServiceName         string         `yaml:"service_name"`
	HTTPAddr            string         `yaml:"http_addr"`
	JWTSecretKey        string         `yaml:"jwt_secret_key"`
	CORSOrigins         []string       `yaml:"cors_origins"`
	StaleScopeThreshold int64          `yaml:"stale_scope_threshold"`
	Neo4j               neo4jdb.Config `yaml:"neo4j"`
}

// LoadConfig reads the environment and then, when CONFIG_FILE is set,
// overlays a YAML file on top. File values win over env values.
func LoadConfig() (Config, error) {
	cfg := Config{
		ServiceName:         envutil.Str("SERVICE_NAME", "planloom-maintenance"),
		HTTPAddr:            envutil.Str("HTTP_ADDR", ":8080"),
		JWTSecretKey:        envutil.Str("JWT_SECRET_KEY", "defaultsecret"),
		CORSOrigins:         splitOrigins(envutil.Str("CORS_ORIGINS", "http://localhost:3000")),
		StaleScopeThreshold: int64(envutil.Int("STALE_SCOPE_THRESHOLD", int(reconcile.DefaultStaleScopeThreshold))),
		Neo4j:               neo4jdb.FromEnv(),
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.Neo4j.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
