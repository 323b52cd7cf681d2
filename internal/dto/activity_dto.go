package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// ActivityListRequest defines filters for retrieving activity logs.
type ActivityListRequest struct {
	Action        string `query:"action" validate:"omitempty,max=64"`
	EntityType    string `query:"entity_type" validate:"omitempty,max=64"`
	EntityID      *uint  `query:"entity_id" validate:"omitempty,gt=0"`
	ActorID       *uint  `query:"actor_id" validate:"omitempty,gt=0"`
	CorrelationID string `query:"correlation_id" validate:"omitempty,max=64"`
	Since         string `query:"since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit         int    `query:"limit" validate:"omitempty,gte=1,lte=200"`
}

// ParsedSince returns the lower time bound, or nil when none was supplied.
func (r ActivityListRequest) ParsedSince() (*time.Time, error) {
	if r.Since == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, r.Since)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ActivityResponse serializes activity log entries.
type ActivityResponse struct {
	ID            uint                   `json:"id"`
	ActorID       uint                   `json:"actor_id"`
	ActorRole     string                 `json:"actor_role"`
	Action        string                 `json:"action"`
	EntityType    string                 `json:"entity_type"`
	EntityID      *uint                  `json:"entity_id"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewActivityResponse converts a model into an activity DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	metadata := map[string]interface{}{}
	for key, value := range entry.Metadata {
		metadata[key] = value
	}
	return ActivityResponse{
		ID:            entry.ID,
		ActorID:       entry.ActorID,
		ActorRole:     entry.ActorRole,
		Action:        entry.Action,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		CorrelationID: entry.CorrelationID,
		Metadata:      metadata,
		CreatedAt:     entry.CreatedAt,
	}
}
