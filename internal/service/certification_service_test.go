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

func TestCertificationServiceGetAndList(t *testing.T) {
	db := setupServiceDB(t)
	assignment := seedAssignment(t, db, "Capstone")
	qualified := seedStudent(t, db, "Qualified")
	pending := seedStudent(t, db, "Pending")
	seedSubmission(t, db, assignment.ID, qualified.ID, intPtr(92), nil)
	seedSubmission(t, db, assignment.ID, pending.ID, intPtr(61), nil)

	_, err := newTestScoringService(db, &fakeGenerator{}).FullRecalculation(context.Background(), nil)
	require.NoError(t, err)

	svc := NewCertificationService(repository.NewCertificationRepository(db), newTestValidator(), zerolog.Nop())
	ctx := context.Background()

	cert, err := svc.Get(ctx, qualified.ID)
	require.NoError(t, err)
	require.Equal(t, models.CertificateStatusQualified, cert.CertificateStatus)
	require.Equal(t, "Qualified Student", cert.Student.Name)
	require.NotEmpty(t, cert.FileURL)

	_, err = svc.Get(ctx, 12345)
	require.ErrorIs(t, err, ErrCertificationNotFound)

	all, err := svc.List(ctx, dto.CertificationQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	onlyQualified, err := svc.List(ctx, dto.CertificationQuery{Status: models.CertificateStatusQualified})
	require.NoError(t, err)
	require.Len(t, onlyQualified, 1)
	require.Equal(t, qualified.ID, onlyQualified[0].StudentID)

	notQualified, err := svc.List(ctx, dto.CertificationQuery{Status: models.CertificateStatusNotQualified})
	require.NoError(t, err)
	require.Len(t, notQualified, 1)

	_, err = svc.List(ctx, dto.CertificationQuery{Status: "Maybe"})
	require.True(t, isValidationErr(err))
}
