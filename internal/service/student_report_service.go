package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/scoring"
)

// StudentReportService produces a per-student view of grades, standing and certification.
type StudentReportService interface {
	ScoreListener
	GetReport(ctx context.Context, studentID uint) (dto.StudentReportResponse, error)
}

type studentReportService struct {
	students       repository.StudentRepository
	assignments    repository.AssignmentRepository
	submissions    repository.SubmissionRepository
	leaderboard    repository.LeaderboardRepository
	certifications repository.CertificationRepository
	threshold      float64
	cache          *redis.Client
	cacheTTL       time.Duration
	logger         zerolog.Logger
}

// StudentReportDependencies groups the repositories the report reads from.
type StudentReportDependencies struct {
	Students       repository.StudentRepository
	Assignments    repository.AssignmentRepository
	Submissions    repository.SubmissionRepository
	Leaderboard    repository.LeaderboardRepository
	Certifications repository.CertificationRepository
}

// NewStudentReportService builds the report aggregator.
func NewStudentReportService(deps StudentReportDependencies, threshold float64, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StudentReportService {
	return &studentReportService{
		students:       deps.Students,
		assignments:    deps.Assignments,
		submissions:    deps.Submissions,
		leaderboard:    deps.Leaderboard,
		certifications: deps.Certifications,
		threshold:      threshold,
		cache:          cache,
		cacheTTL:       ttl,
		logger:         logger.With().Str("component", "student_report_service").Logger(),
	}
}

func studentReportCacheKey(studentID uint) string {
	return fmt.Sprintf("report:student:%d", studentID)
}

func (s *studentReportService) GetReport(ctx context.Context, studentID uint) (dto.StudentReportResponse, error) {
	cacheKey := studentReportCacheKey(studentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.StudentReportResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", studentID).Msg("report cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read report cache")
		}
	}

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentReportResponse{}, ErrStudentNotFound
		}
		return dto.StudentReportResponse{}, err
	}

	totalAssignments, err := s.assignments.Count(ctx)
	if err != nil {
		return dto.StudentReportResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return dto.StudentReportResponse{}, err
	}

	response := dto.StudentReportResponse{
		Student:            *dto.NewStudentLite(student),
		Submissions:        buildReportSubmissions(submissions),
		PendingAssignments: countPending(totalAssignments, submissions),
		QualificationScore: s.threshold,
	}

	if entry, err := s.leaderboard.GetByStudent(ctx, studentID); err == nil {
		row := dto.NewLeaderboardEntryResponse(entry)
		response.Leaderboard = &row
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.StudentReportResponse{}, err
	}

	if cert, err := s.certifications.GetByStudent(ctx, studentID); err == nil {
		view := dto.NewCertificationResponse(cert)
		response.Certification = &view
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.StudentReportResponse{}, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store report cache")
			}
		}
	}

	return response, nil
}

// OnScoreChange drops cached reports of the affected students. A full rebuild can
// touch anyone's rank, so it clears every report.
func (s *studentReportService) OnScoreChange(ctx context.Context, change ScoreChange) {
	if s.cache == nil {
		return
	}

	if change.FullRebuild {
		iter := s.cache.Scan(ctx, 0, "report:student:*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to scan report cache")
			return
		}
		if len(keys) > 0 {
			if err := s.cache.Del(ctx, keys...).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to invalidate report cache")
			}
		}
		return
	}

	keys := make([]string, 0, len(change.StudentIDs))
	for _, id := range change.StudentIDs {
		keys = append(keys, studentReportCacheKey(id))
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate report cache")
	}
}

func buildReportSubmissions(submissions []models.Submission) []dto.StudentReportSubmission {
	items := make([]dto.StudentReportSubmission, 0, len(submissions))
	for _, submission := range submissions {
		items = append(items, dto.StudentReportSubmission{
			SubmissionID:    submission.ID,
			AssignmentID:    submission.AssignmentID,
			AssignmentTitle: submission.Assignment.Title,
			AIScore:         submission.AIScore,
			MentorScore:     submission.MentorScore,
			EffectiveScore:  scoring.EffectiveScore(submission.MentorScore, submission.AIScore),
		})
	}
	return items
}

func countPending(totalAssignments int64, submissions []models.Submission) int {
	submitted := make(map[uint]struct{}, len(submissions))
	for _, submission := range submissions {
		submitted[submission.AssignmentID] = struct{}{}
	}

	pending := int(totalAssignments) - len(submitted)
	if pending < 0 {
		return 0
	}
	return pending
}
