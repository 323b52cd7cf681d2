package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/pkg/ai"
)

var (
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrSubmissionEmpty indicates a submission with neither a file nor text content.
	ErrSubmissionEmpty = errors.New("submission requires a file or content")
	// ErrFeedbackEmpty indicates feedback that carries nothing after sanitizing.
	ErrFeedbackEmpty = errors.New("feedback content is required")
)

const gradingUnavailableFeedback = "Automated grading is unavailable; a mentor will review this submission."

// SubmissionFolders selects object store folders for uploaded artefacts.
type SubmissionFolders struct {
	Submissions string
	Feedback    string
}

// SubmissionService orchestrates submission workflows. Every score-affecting
// operation ends with a recalculation of the student's standing.
type SubmissionService interface {
	List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	Create(ctx context.Context, actor ActivityActor, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	Grade(ctx context.Context, actor ActivityActor, id uint, payload dto.SubmissionGradeRequest) (dto.SubmissionResponse, error)
	Review(ctx context.Context, actor ActivityActor, id uint, payload dto.SubmissionReviewRequest) (dto.SubmissionResponse, error)
	AddFeedback(ctx context.Context, actor ActivityActor, id uint, payload dto.SubmissionFeedbackRequest, file *multipart.FileHeader) (dto.FeedbackResponse, error)
}

type submissionService struct {
	submissions    repository.SubmissionRepository
	assignments    repository.AssignmentRepository
	students       repository.StudentRepository
	leaderboard    repository.LeaderboardRepository
	certifications repository.CertificationRepository
	scoring        ScoringService
	grader         ai.Grader
	uploader       FileUploader
	folders        SubmissionFolders
	recorder       ActivityRecorder
	validator      *validator.Validate
	sanitizer      *bluemonday.Policy
	logger         zerolog.Logger
	now            func() time.Time
}

// SubmissionDependencies groups collaborators of the submission service.
type SubmissionDependencies struct {
	Submissions    repository.SubmissionRepository
	Assignments    repository.AssignmentRepository
	Students       repository.StudentRepository
	Leaderboard    repository.LeaderboardRepository
	Certifications repository.CertificationRepository
	Scoring        ScoringService
	Grader         ai.Grader
	Uploader       FileUploader
	Folders        SubmissionFolders
	Recorder       ActivityRecorder
	Validator      *validator.Validate
}

// NewSubmissionService constructs a SubmissionService. Grader, Uploader and Recorder are optional.
func NewSubmissionService(deps SubmissionDependencies, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions:    deps.Submissions,
		assignments:    deps.Assignments,
		students:       deps.Students,
		leaderboard:    deps.Leaderboard,
		certifications: deps.Certifications,
		scoring:        deps.Scoring,
		grader:         deps.Grader,
		uploader:       deps.Uploader,
		folders:        deps.Folders,
		recorder:       deps.Recorder,
		validator:      deps.Validator,
		sanitizer:      bluemonday.UGCPolicy(),
		logger:         logger.With().Str("component", "submission_service").Logger(),
		now:            time.Now,
	}
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		AssignmentID:   filter.AssignmentID,
		StudentID:      filter.StudentID,
		AwaitingMentor: filter.Pending,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.load(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Create(ctx context.Context, actor ActivityActor, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	content := strings.TrimSpace(payload.Content)
	if file == nil && content == "" {
		return dto.SubmissionResponse{}, ErrSubmissionEmpty
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, err
	}
	if assignment.IsPastDue(s.now()) {
		return dto.SubmissionResponse{}, ErrAssignmentClosed
	}

	exists, err := s.students.Exists(ctx, payload.StudentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if !exists {
		return dto.SubmissionResponse{}, ErrStudentNotFound
	}

	submission := models.Submission{
		AssignmentID: payload.AssignmentID,
		StudentID:    payload.StudentID,
		Content:      content,
	}

	gradingInput := ai.GradingInput{
		AssignmentTitle:       assignment.Title,
		AssignmentDescription: assignment.Description,
		StudentID:             payload.StudentID,
		SubmissionText:        content,
	}

	if file != nil {
		data, detected, err := loadUpload(file)
		if err != nil {
			return dto.SubmissionResponse{}, err
		}
		if !mimeAllowed(detected, submissionMIMETypes) {
			return dto.SubmissionResponse{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, detected.String())
		}
		if s.uploader == nil {
			return dto.SubmissionResponse{}, fmt.Errorf("file storage is not configured")
		}

		url, err := s.uploader.Upload(ctx, s.folders.Submissions, file.Filename, bytes.NewReader(data))
		if err != nil {
			return dto.SubmissionResponse{}, fmt.Errorf("failed to upload file: %w", err)
		}
		submission.FileURL = url
		gradingInput.FileName = file.Filename
		if text := readableText(data, detected); text != "" {
			gradingInput.SubmissionText = strings.TrimSpace(content + "\n\n" + text)
		}
	}

	s.applyAutomatedGrade(ctx, &submission, gradingInput)

	draft := submission
	standing, err := s.commitScored(ctx, draft.StudentID, func(ctx context.Context, store repository.ScoringStore) error {
		submission = draft
		if err := store.SaveSubmission(ctx, &submission); err != nil {
			return fmt.Errorf("create submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.audit(ctx, actor, "submission.created", submission.ID, map[string]interface{}{
		"assignment_id": submission.AssignmentID,
		"student_id":    submission.StudentID,
		"ai_score":      submission.AIScore,
	})
	s.logger.Info().Uint("submission_id", submission.ID).Uint("student_id", submission.StudentID).Msg("submission created")

	return s.respondWithStanding(ctx, submission.ID, submission.StudentID, standing)
}

func (s *submissionService) Grade(ctx context.Context, actor ActivityActor, id uint, payload dto.SubmissionGradeRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.load(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	score := *payload.MentorScore
	submission.MentorScore = &score
	if payload.MentorFeedback != nil {
		submission.MentorFeedback = s.sanitize(*payload.MentorFeedback)
	}

	standing, err := s.commitScored(ctx, submission.StudentID, func(ctx context.Context, store repository.ScoringStore) error {
		return store.SaveSubmission(ctx, &submission)
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.audit(ctx, actor, "submission.graded", submission.ID, map[string]interface{}{
		"student_id":   submission.StudentID,
		"mentor_score": score,
	})
	s.logger.Info().Uint("submission_id", submission.ID).Int("mentor_score", score).Msg("submission graded")

	return s.respondWithStanding(ctx, submission.ID, submission.StudentID, standing)
}

func (s *submissionService) Review(ctx context.Context, actor ActivityActor, id uint, payload dto.SubmissionReviewRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	feedback := s.sanitize(payload.Feedback)
	if feedback == "" {
		return dto.SubmissionResponse{}, ErrFeedbackEmpty
	}

	submission, err := s.load(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	score := *payload.MentorScore
	submission.MentorScore = &score
	submission.MentorFeedback = feedback

	standing, err := s.commitScored(ctx, submission.StudentID, func(ctx context.Context, store repository.ScoringStore) error {
		if err := store.SaveSubmission(ctx, &submission); err != nil {
			return err
		}
		return store.CreateFeedback(ctx, &models.SubmissionFeedback{
			SubmissionID: submission.ID,
			MentorID:     actor.ID,
			Type:         models.FeedbackTypeText,
			Content:      feedback,
		})
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.audit(ctx, actor, "submission.reviewed", submission.ID, map[string]interface{}{
		"student_id":   submission.StudentID,
		"mentor_score": score,
	})

	return s.respondWithStanding(ctx, submission.ID, submission.StudentID, standing)
}

func (s *submissionService) AddFeedback(ctx context.Context, actor ActivityActor, id uint, payload dto.SubmissionFeedbackRequest, file *multipart.FileHeader) (dto.FeedbackResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FeedbackResponse{}, err
	}

	submission, err := s.load(ctx, id)
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	entry := models.SubmissionFeedback{
		SubmissionID: submission.ID,
		MentorID:     actor.ID,
		Type:         payload.Type,
	}

	switch payload.Type {
	case models.FeedbackTypeText:
		entry.Content = s.sanitize(payload.Content)
		if entry.Content == "" {
			return dto.FeedbackResponse{}, ErrFeedbackEmpty
		}
	default:
		url, err := s.uploadMedia(ctx, payload.Type, file)
		if err != nil {
			return dto.FeedbackResponse{}, err
		}
		entry.Content = url
	}

	if err := s.submissions.CreateFeedback(ctx, &entry); err != nil {
		return dto.FeedbackResponse{}, err
	}

	s.audit(ctx, actor, "submission.feedback_added", submission.ID, map[string]interface{}{
		"type": entry.Type,
	})

	return dto.NewFeedbackResponse(entry), nil
}

func (s *submissionService) uploadMedia(ctx context.Context, kind string, file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", fmt.Errorf("%w: %s feedback requires a file", ErrFeedbackEmpty, kind)
	}
	if s.uploader == nil {
		return "", fmt.Errorf("file storage is not configured")
	}

	data, detected, err := loadUpload(file)
	if err != nil {
		return "", err
	}
	if !isMediaOf(detected, kind) {
		return "", fmt.Errorf("%w: %s is not %s", ErrUnsupportedFileType, detected.String(), kind)
	}

	url, err := s.uploader.Upload(ctx, s.folders.Feedback, file.Filename, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to upload feedback: %w", err)
	}
	return url, nil
}

// applyAutomatedGrade stores the AI verdict. Grader failures leave the score
// empty so the mentor score or zero applies until a mentor grades it.
func (s *submissionService) applyAutomatedGrade(ctx context.Context, submission *models.Submission, input ai.GradingInput) {
	if s.grader == nil {
		return
	}

	result, err := s.grader.Grade(ctx, input)
	if err != nil {
		logger := middleware.LoggerWithCorrelation(ctx, s.logger)
		logger.Warn().Err(err).
			Uint("student_id", submission.StudentID).
			Msg("automated grading failed")
		submission.AIFeedback = gradingUnavailableFeedback
		return
	}

	score := result.Score
	submission.AIScore = &score
	submission.AIFeedback = s.sanitize(result.Feedback)
}

// commitScored applies a score change and the student's recalculation as one
// unit of work. Nothing is written when the lock or the transaction fails; a
// certificate document failure still commits and is reported as pending.
func (s *submissionService) commitScored(ctx context.Context, studentID uint, apply ScoreMutation) (*dto.SubmissionStanding, error) {
	standing := &dto.SubmissionStanding{}

	if _, err := s.scoring.ApplyAndRecalculate(ctx, studentID, apply); err != nil {
		if !errors.Is(err, ErrDocumentGeneration) {
			return nil, err
		}
		standing.CertificatePending = true
		logger := middleware.LoggerWithCorrelation(ctx, s.logger)
		logger.Warn().Err(err).
			Uint("student_id", studentID).
			Msg("grade saved but certificate issuance is pending")
	}
	return standing, nil
}

// respondWithStanding returns the submission with the committed leaderboard and
// certification state.
func (s *submissionService) respondWithStanding(ctx context.Context, submissionID, studentID uint, standing *dto.SubmissionStanding) (dto.SubmissionResponse, error) {
	submission, err := s.load(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if entry, err := s.leaderboard.GetByStudent(ctx, studentID); err == nil {
		row := dto.NewLeaderboardEntryResponse(entry)
		standing.Leaderboard = &row
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, err
	}

	if cert, err := s.certifications.GetByStudent(ctx, studentID); err == nil {
		view := dto.NewCertificationResponse(cert)
		standing.Certification = &view
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, err
	}

	response := dto.NewSubmissionResponse(submission)
	response.Standing = standing
	return response, nil
}

func (s *submissionService) load(ctx context.Context, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return submission, nil
}

func (s *submissionService) sanitize(input string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(input))
}

func (s *submissionService) audit(ctx context.Context, actor ActivityActor, action string, submissionID uint, metadata map[string]interface{}) {
	if s.recorder == nil {
		return
	}
	id := submissionID
	if err := s.recorder.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "submission",
		EntityID:   &id,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record submission activity")
	}
}
