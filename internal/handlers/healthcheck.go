package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planloom/planloom-backend/internal/observability"
	"github.com/planloom/planloom-backend/internal/platform/neo4jdb"
)

type HealthHandler struct {
	client *neo4jdb.Client
}

func NewHealthHandler(client *neo4jdb.Client) *HealthHandler {
	return &HealthHandler{client: client}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := h.client.Health(c.Request.Context())
	code := http.StatusOK
	if !status.Connected {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": "ok",
		"graph":  status,
	})
}

func (h *HealthHandler) Metrics(c *gin.Context) {
	m := observability.Current()
	if m == nil {
		c.String(http.StatusNotFound, "metrics disabled")
		return
	}
	c.Header("Content-Type", "text/plain; version=0.0.4")
	if err := m.WritePrometheus(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
