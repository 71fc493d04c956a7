package syncstate

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/planloom/planloom-backend/internal/platform/envutil"
	"github.com/planloom/planloom-backend/internal/platform/logger"
)

// Service owns the Postgres connection backing the sync-state tables.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewService(log *logger.Logger) (*Service, error) {
	if log == nil {
		return nil, fmt.Errorf("syncstate: logger required")
	}
	serviceLog := log.With("service", "SyncStateService")

	host := envutil.Str("POSTGRES_HOST", "")
	if host == "" {
		return nil, nil
	}
	port := envutil.Str("POSTGRES_PORT", "5432")
	user := envutil.Str("POSTGRES_USER", "postgres")
	password := envutil.Str("POSTGRES_PASSWORD", "")
	name := envutil.Str("POSTGRES_NAME", "planloom")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("failed to connect to postgres", "error", err)
		return nil, fmt.Errorf("syncstate: connect: %w", err)
	}

	return &Service{db: db, log: serviceLog}, nil
}

func (s *Service) AutoMigrate() error {
	if s == nil {
		return nil
	}
	s.log.Info("migrating sync-state tables")
	return s.db.AutoMigrate(&SyncRecord{})
}

func (s *Service) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}
