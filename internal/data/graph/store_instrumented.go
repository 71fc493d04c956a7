package graph

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/planloom/planloom-backend/internal/observability"
)

type instrumentedStore struct {
	inner   Store
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// InstrumentStore decorates a Store with per-operation metrics and
// trace spans. Safe to call when metrics are disabled.
func InstrumentStore(inner Store) Store {
	if inner == nil {
		return nil
	}
	return &instrumentedStore{
		inner:   inner,
		metrics: observability.Current(),
		tracer:  otel.Tracer("planloom/graph"),
	}
}

func (s *instrumentedStore) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "graph."+operation,
		trace.WithAttributes(attribute.String("graph.operation", operation)))
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	s.metrics.ObserveStoreOperation(operation, status, time.Since(start))
	return err
}

func (s *instrumentedStore) FetchEntities(ctx context.Context, t EntityType) ([]*Entity, error) {
	var out []*Entity
	err := s.observe(ctx, "fetch_entities", func(ctx context.Context) error {
		var err error
		out, err = s.inner.FetchEntities(ctx, t)
		return err
	})
	return out, err
}

func (s *instrumentedStore) FetchRels(ctx context.Context, elementID string) ([]Rel, error) {
	var out []Rel
	err := s.observe(ctx, "fetch_rels", func(ctx context.Context) error {
		var err error
		out, err = s.inner.FetchRels(ctx, elementID)
		return err
	})
	return out, err
}

func (s *instrumentedStore) CreateRel(ctx context.Context, fromElementID, toElementID, relType string) error {
	return s.observe(ctx, "create_rel", func(ctx context.Context) error {
		return s.inner.CreateRel(ctx, fromElementID, toElementID, relType)
	})
}

func (s *instrumentedStore) SetProps(ctx context.Context, elementID string, props map[string]any) error {
	return s.observe(ctx, "set_props", func(ctx context.Context) error {
		return s.inner.SetProps(ctx, elementID, props)
	})
}

func (s *instrumentedStore) SetEntityID(ctx context.Context, elementID, newID string) error {
	return s.observe(ctx, "set_entity_id", func(ctx context.Context) error {
		return s.inner.SetEntityID(ctx, elementID, newID)
	})
}

func (s *instrumentedStore) DeleteEntity(ctx context.Context, elementID string) (int64, error) {
	var n int64
	err := s.observe(ctx, "delete_entity", func(ctx context.Context) error {
		var err error
		n, err = s.inner.DeleteEntity(ctx, elementID)
		return err
	})
	return n, err
}

func (s *instrumentedStore) count(ctx context.Context, operation string, fn func(context.Context) (CategoryCount, error)) (CategoryCount, error) {
	var out CategoryCount
	err := s.observe(ctx, operation, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (s *instrumentedStore) del(ctx context.Context, operation string, fn func(context.Context) (int64, error)) (int64, error) {
	var n int64
	err := s.observe(ctx, operation, func(ctx context.Context) error {
		var err error
		n, err = fn(ctx)
		return err
	})
	return n, err
}

func (s *instrumentedStore) CountOrphanScoped(ctx context.Context) (CategoryCount, error) {
	return s.count(ctx, "count_orphan_scoped", s.inner.CountOrphanScoped)
}

func (s *instrumentedStore) CountDefaultScoped(ctx context.Context) (CategoryCount, error) {
	return s.count(ctx, "count_default_scoped", s.inner.CountDefaultScoped)
}

func (s *instrumentedStore) CountStaleScopes(ctx context.Context, threshold int64) (CategoryCount, error) {
	return s.count(ctx, "count_stale_scopes", func(ctx context.Context) (CategoryCount, error) {
		return s.inner.CountStaleScopes(ctx, threshold)
	})
}

func (s *instrumentedStore) CountPhantom(ctx context.Context) (CategoryCount, error) {
	return s.count(ctx, "count_phantom", s.inner.CountPhantom)
}

func (s *instrumentedStore) CountTenant(ctx context.Context) (CategoryCount, error) {
	return s.count(ctx, "count_tenant", s.inner.CountTenant)
}

func (s *instrumentedStore) DeleteOrphanScoped(ctx context.Context) (int64, error) {
	return s.del(ctx, "delete_orphan_scoped", s.inner.DeleteOrphanScoped)
}

func (s *instrumentedStore) DeleteDefaultScoped(ctx context.Context) (int64, error) {
	return s.del(ctx, "delete_default_scoped", s.inner.DeleteDefaultScoped)
}

func (s *instrumentedStore) DeleteStaleScopes(ctx context.Context, threshold int64) (int64, error) {
	return s.del(ctx, "delete_stale_scopes", func(ctx context.Context) (int64, error) {
		return s.inner.DeleteStaleScopes(ctx, threshold)
	})
}

func (s *instrumentedStore) DeletePhantom(ctx context.Context) (int64, error) {
	return s.del(ctx, "delete_phantom", s.inner.DeletePhantom)
}

func (s *instrumentedStore) DeleteTenant(ctx context.Context) (int64, error) {
	return s.del(ctx, "delete_tenant", s.inner.DeleteTenant)
}
