package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// ActivityLogFilter narrows audit trail queries. Zero values do not filter.
type ActivityLogFilter struct {
	Action        string
	EntityType    string
	EntityID      *uint
	ActorID       *uint
	CorrelationID string
	Since         *time.Time
	Limit         int
}

// ActivityLogRepository persists audit trail events.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns the newest entries first.
func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, error) {
	query := r.db.WithContext(ctx).Model(&models.ActivityLog{})

	conditions := map[string]interface{}{}
	if filter.Action != "" {
		conditions["action"] = filter.Action
	}
	if filter.EntityType != "" {
		conditions["entity_type"] = filter.EntityType
	}
	if filter.EntityID != nil {
		conditions["entity_id"] = *filter.EntityID
	}
	if filter.ActorID != nil {
		conditions["actor_id"] = *filter.ActorID
	}
	if filter.CorrelationID != "" {
		conditions["correlation_id"] = filter.CorrelationID
	}
	if len(conditions) > 0 {
		query = query.Where(conditions)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []models.ActivityLog
	if err := query.Order("created_at DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
