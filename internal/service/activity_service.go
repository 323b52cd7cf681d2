package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// ActivityActor represents the authenticated actor performing an action.
type ActivityActor struct {
	ID   uint
	Role string
}

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording activity logs.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

// ActivityService exposes methods to query and persist activity logs.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, req dto.ActivityListRequest) ([]dto.ActivityResponse, error)
}

type activityService struct {
	repo      repository.ActivityLogRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, validate *validator.Validate, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		ActorID:       entry.ActorID,
		ActorRole:     normalizeRole(entry.ActorRole),
		Action:        strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType:    strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:      entry.EntityID,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		Metadata:      sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist activity log")
		return err
	}

	return nil
}

func (s *activityService) List(ctx context.Context, req dto.ActivityListRequest) ([]dto.ActivityResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	since, err := req.ParsedSince()
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.List(ctx, repository.ActivityLogFilter{
		Action:        strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType:    strings.ToLower(strings.TrimSpace(req.EntityType)),
		EntityID:      req.EntityID,
		ActorID:       req.ActorID,
		CorrelationID: strings.TrimSpace(req.CorrelationID),
		Since:         since,
		Limit:         limit,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityResponse(entry))
	}
	return responses, nil
}

// NewScoreAuditListener records committed recalculations and certification
// transitions in the activity log.
func NewScoreAuditListener(recorder ActivityRecorder, logger zerolog.Logger) ScoreListener {
	log := logger.With().Str("component", "score_audit").Logger()

	return ScoreListenerFunc(func(ctx context.Context, change ScoreChange) {
		ctx = middleware.ContextWithCorrelation(ctx, change.CorrelationID)
		if change.FullRebuild {
			if err := recorder.Record(ctx, ActivityEntry{
				Action:     "scores.rebuilt",
				EntityType: "leaderboard",
				Metadata: map[string]interface{}{
					"students": len(change.StudentIDs),
				},
			}); err != nil {
				log.Warn().Err(err).Msg("failed to audit score rebuild")
			}
		}

		for _, transition := range change.Transitions {
			studentID := transition.StudentID
			if err := recorder.Record(ctx, ActivityEntry{
				Action:     "certification.status_changed",
				EntityType: "certification",
				EntityID:   &studentID,
				Metadata: map[string]interface{}{
					"from": transition.From,
					"to":   transition.To,
				},
			}); err != nil {
				log.Warn().Err(err).Uint("student_id", studentID).Msg("failed to audit certification change")
			}
		}
	})
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		if strings.Contains(lower, "email") {
			if email, ok := value.(string); ok {
				sanitized[key] = maskEmailAddress(email)
			} else {
				sanitized[key] = "***"
			}
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func maskEmailAddress(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return "***"
	}
	local := parts[0]
	if len(local) <= 2 {
		local = local[:1] + "***"
	} else {
		local = local[:1] + "***" + local[len(local)-1:]
	}
	return local + "@" + parts[1]
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
