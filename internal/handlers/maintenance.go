package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/planloom/planloom-backend/internal/access"
	"github.com/planloom/planloom-backend/internal/data/graph"
	"github.com/planloom/planloom-backend/internal/data/redisdb"
	"github.com/planloom/planloom-backend/internal/data/syncstate"
	"github.com/planloom/planloom-backend/internal/middleware"
	"github.com/planloom/planloom-backend/internal/platform/apierr"
	"github.com/planloom/planloom-backend/internal/platform/logger"
	"github.com/planloom/planloom-backend/internal/platform/neo4jdb"
	"github.com/planloom/planloom-backend/internal/reconcile"
)

type MaintenanceHandler struct {
	client         *neo4jdb.Client
	checker        access.Checker
	log            *logger.Logger
	cache          *redisdb.Cache
	syncRepo       syncstate.Repo
	aux            []reconcile.AuxStore
	staleThreshold int64
}

func NewMaintenanceHandler(
	client *neo4jdb.Client,
	checker access.Checker,
	log *logger.Logger,
	cache *redisdb.Cache,
	syncRepo syncstate.Repo,
	aux []reconcile.AuxStore,
	staleThreshold int64,
) *MaintenanceHandler {
	return &MaintenanceHandler{
		client:         client,
		checker:        checker,
		log:            log.With("handler", "MaintenanceHandler"),
		cache:          cache,
		syncRepo:       syncRepo,
		aux:            aux,
		staleThreshold: staleThreshold,
	}
}

func scopeFrom(c *gin.Context) (neo4jdb.Scope, error) {
	scope := neo4jdb.Scope{
		GraphID:        strings.TrimSpace(c.Query("tenant")),
		OrganizationID: strings.TrimSpace(c.Query("organization")),
		ProjectID:      strings.TrimSpace(c.Query("project")),
	}
	if scope.GraphID == "" {
		scope.GraphID = strings.TrimSpace(c.Query("graph_id"))
	}
	if err := scope.Validate(); err != nil {
		return neo4jdb.Scope{}, err
	}
	return scope, nil
}

func (h *MaintenanceHandler) engineFor(scope neo4jdb.Scope) (*reconcile.Engine, error) {
	store := graph.InstrumentStore(graph.NewNeo4jStore(h.client, scope, h.log))
	return reconcile.NewEngine(reconcile.EngineConfig{
		Store:               store,
		Scope:               scope,
		Access:              h.checker,
		Log:                 h.log,
		Aux:                 h.aux,
		StaleScopeThreshold: h.staleThreshold,
	})
}

// Analyze reports every integrity issue for the tenant without touching
// the graph. Reports are cached briefly; pass refresh=true to bypass.
func (h *MaintenanceHandler) Analyze(c *gin.Context) {
	scope, err := scopeFrom(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidConfiguration, err)
		return
	}
	credential := middleware.Credential(c)

	refresh, _ := strconv.ParseBool(c.Query("refresh"))
	if !refresh {
		var cached reconcile.Report
		hit, err := h.cache.GetReport(c.Request.Context(), scope.GraphID, &cached)
		if err != nil {
			h.log.Warn("report cache lookup failed", "graph_id", scope.GraphID, "error", err)
		}
		if hit {
			// Cached reports still require a live access check.
			engine, err := h.engineFor(scope)
			if err != nil {
				RespondMapped(c, err)
				return
			}
			if err := engine.CheckRead(c.Request.Context(), credential); err != nil {
				RespondMapped(c, err)
				return
			}
			RespondOK(c, &cached)
			return
		}
	}

	engine, err := h.engineFor(scope)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	report, err := engine.Analyze(c.Request.Context(), credential)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	if err := h.cache.SetReport(c.Request.Context(), scope.GraphID, report); err != nil {
		h.log.Warn("report cache store failed", "graph_id", scope.GraphID, "error", err)
	}
	RespondOK(c, report)
}

// Cleanup runs one maintenance action for the tenant. dryRun=true
// previews; real runs require the confirm token unless the caller is
// an admin.
func (h *MaintenanceHandler) Cleanup(c *gin.Context) {
	scope, err := scopeFrom(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidConfiguration, err)
		return
	}
	action, err := reconcile.ParseAction(c.Query("action"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeUnknownAction, err)
		return
	}
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dryRun", "true"))

	engine, err := h.engineFor(scope)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	outcome, err := engine.Execute(c.Request.Context(), action, reconcile.ExecuteOptions{
		DryRun:       dryRun,
		Credential:   middleware.Credential(c),
		ConfirmToken: c.Query("confirm"),
	})
	if err != nil {
		RespondMapped(c, err)
		return
	}

	if !dryRun {
		if err := h.cache.InvalidateReport(c.Request.Context(), scope.GraphID); err != nil {
			h.log.Warn("report cache invalidation failed", "graph_id", scope.GraphID, "error", err)
		}
		h.recordRun(c.Request.Context(), scope.GraphID, outcome)
	}
	RespondOK(c, outcome)
}

// History lists recent maintenance runs recorded for the tenant.
func (h *MaintenanceHandler) History(c *gin.Context) {
	scope, err := scopeFrom(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidConfiguration, err)
		return
	}
	if h.syncRepo == nil {
		RespondOK(c, []*syncstate.SyncRecord{})
		return
	}
	engine, err := h.engineFor(scope)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	if err := engine.CheckRead(c.Request.Context(), middleware.Credential(c)); err != nil {
		RespondMapped(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	records, err := h.syncRepo.LatestByGraph(c.Request.Context(), scope.GraphID, limit)
	if err != nil {
		RespondMapped(c, fmt.Errorf("load run history: %w", err))
		return
	}
	RespondOK(c, records)
}

func (h *MaintenanceHandler) recordRun(ctx context.Context, graphID string, outcome *reconcile.Outcome) {
	if h.syncRepo == nil {
		return
	}
	status := "success"
	if len(outcome.Failures) > 0 {
		status = "partial"
	}
	rec := &syncstate.SyncRecord{
		ID:       outcome.RunID,
		GraphID:  graphID,
		Action:   string(outcome.Action),
		DryRun:   outcome.DryRun,
		Affected: outcome.Affected,
		Status:   status,
	}
	if err := h.syncRepo.Record(ctx, rec); err != nil {
		h.log.Warn("run history record failed", "graph_id", graphID, "error", err)
	}
}
