package syncstate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/planloom/planloom-backend/internal/platform/logger"
)

// SyncRecord tracks the last reconciliation pass for a tenant: when it
// ran, what action it performed, and how many nodes it touched. Rows are
// tenant-scoped by graph_id and deleted with the tenant.
type SyncRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	GraphID   string    `gorm:"index;not null" json:"graph_id"`
	Action    string    `gorm:"not null" json:"action"`
	DryRun    bool      `json:"dry_run"`
	Affected  int64     `json:"affected"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (SyncRecord) TableName() string { return "sync_record" }

type Repo interface {
	Record(ctx context.Context, rec *SyncRecord) error
	LatestByGraph(ctx context.Context, graphID string, limit int) ([]*SyncRecord, error)
	DeleteByGraph(ctx context.Context, graphID string) (int64, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{
		db:  db,
		log: baseLog.With("repo", "SyncRecordRepo"),
	}
}

func (r *repo) Record(ctx context.Context, rec *SyncRecord) error {
	if rec == nil {
		return nil
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repo) LatestByGraph(ctx context.Context, graphID string, limit int) ([]*SyncRecord, error) {
	var out []*SyncRecord
	if graphID == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 20
	}
	err := r.db.WithContext(ctx).
		Where("graph_id = ?", graphID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) DeleteByGraph(ctx context.Context, graphID string) (int64, error) {
	if graphID == "" {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("graph_id = ?", graphID).Delete(&SyncRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
