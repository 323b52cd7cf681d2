package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

func TestActivityServiceRecordSanitizesMetadata(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), newTestValidator(), zerolog.Nop())
	ctx := context.Background()

	id := uint(5)
	require.NoError(t, svc.Record(ctx, ActivityEntry{
		ActorID:    1,
		Action:     " Submission.Graded ",
		EntityType: "Submission",
		EntityID:   &id,
		Metadata:   map[string]interface{}{"student_email": "Maria@Example.com", "api_token": "abc", "score": 90},
	}))

	require.Error(t, svc.Record(ctx, ActivityEntry{EntityType: "submission"}))

	items, err := svc.List(ctx, dto.ActivityListRequest{EntityType: "submission"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "submission.graded", items[0].Action)
	require.Equal(t, "system", items[0].ActorRole)
	require.Equal(t, "m***a@example.com", items[0].Metadata["student_email"])
	require.Equal(t, "***", items[0].Metadata["api_token"])
}

func TestScoreAuditListenerRecordsTransitionsAndRebuilds(t *testing.T) {
	db := setupServiceDB(t)
	activity := NewActivityService(repository.NewActivityLogRepository(db), newTestValidator(), zerolog.Nop())
	listener := NewScoreAuditListener(activity, zerolog.Nop())

	listener.OnScoreChange(context.Background(), ScoreChange{
		StudentIDs:    []uint{1, 2},
		FullRebuild:   true,
		CorrelationID: "corr-rebuild",
		Transitions:   []CertificationTransition{{StudentID: 2, From: models.CertificateStatusNotQualified, To: models.CertificateStatusQualified}},
	})

	var logs []models.ActivityLog
	require.NoError(t, db.Order("id ASC").Find(&logs).Error)
	require.Len(t, logs, 2)
	require.Equal(t, "scores.rebuilt", logs[0].Action)
	require.Equal(t, "certification.status_changed", logs[1].Action)
	require.Equal(t, uint(2), *logs[1].EntityID)
	require.Equal(t, models.CertificateStatusQualified, logs[1].Metadata["to"])
	require.Equal(t, "corr-rebuild", logs[0].CorrelationID)
	require.Equal(t, "corr-rebuild", logs[1].CorrelationID)

	items, err := activity.List(context.Background(), dto.ActivityListRequest{CorrelationID: "corr-rebuild", Since: "2000-01-01T00:00:00Z"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	_, err = activity.List(context.Background(), dto.ActivityListRequest{Since: "yesterday"})
	require.Error(t, err)
}

func TestMaskEmailAddress(t *testing.T) {
	require.Equal(t, "", maskEmailAddress("  "))
	require.Equal(t, "***", maskEmailAddress("not-an-email"))
	require.Equal(t, "***", maskEmailAddress("@example.com"))
	require.Equal(t, "j***@example.com", maskEmailAddress("jo@example.com"))
	require.Equal(t, "j***e@example.com", maskEmailAddress("Jane@Example.com"))
}
