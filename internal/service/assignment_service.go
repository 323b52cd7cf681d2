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
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrAssignmentClosed rejects submissions after the due date.
	ErrAssignmentClosed = errors.New("assignment is past due")
	ErrInvalidDueDate   = errors.New("due date must be a future RFC3339 timestamp")
)

// AssignmentService manages the assignments students submit against.
type AssignmentService interface {
	List(ctx context.Context) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, payload dto.AssignmentCreateRequest, file *multipart.FileHeader) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	validator *validator.Validate
	uploader  FileUploader
	folder    string
	policy    *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAssignmentService stores attachment briefs under folder.
func NewAssignmentService(repo repository.AssignmentRepository, validate *validator.Validate, uploader FileUploader, folder string, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		validator: validate,
		uploader:  uploader,
		folder:    folder,
		policy:    bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		now:       time.Now,
	}
}

func (s *assignmentService) List(ctx context.Context) ([]dto.AssignmentResponse, error) {
	assignments, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return dto.NewAssignmentResponses(assignments, s.now()), nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return dto.AssignmentResponse{}, ErrAssignmentNotFound
	case err != nil:
		return dto.AssignmentResponse{}, fmt.Errorf("load assignment %d: %w", id, err)
	}
	return dto.NewAssignmentResponse(assignment, s.now()), nil
}

func (s *assignmentService) Create(ctx context.Context, payload dto.AssignmentCreateRequest, file *multipart.FileHeader) (dto.AssignmentResponse, error) {
	payload.Title = strings.TrimSpace(payload.Title)
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	now := s.now()
	dueDate, err := payload.ParsedDueDate()
	if err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("%w: %v", ErrInvalidDueDate, err)
	}
	if dueDate != nil && !dueDate.After(now) {
		return dto.AssignmentResponse{}, ErrInvalidDueDate
	}

	assignment := models.Assignment{
		Title:       s.policy.Sanitize(payload.Title),
		Description: strings.TrimSpace(s.policy.Sanitize(payload.Description)),
		DueDate:     dueDate,
	}

	if file != nil {
		if s.uploader == nil {
			return dto.AssignmentResponse{}, errors.New("file storage is not configured")
		}
		data, detected, err := loadUpload(file)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		if !mimeAllowed(detected, submissionMIMETypes) {
			return dto.AssignmentResponse{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, detected.String())
		}
		if assignment.FileURL, err = s.uploader.Upload(ctx, s.folder, file.Filename, bytes.NewReader(data)); err != nil {
			return dto.AssignmentResponse{}, fmt.Errorf("upload assignment brief: %w", err)
		}
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("create assignment: %w", err)
	}

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Bool("has_brief", assignment.FileURL != "").
		Msg("assignment created")
	return dto.NewAssignmentResponse(assignment, now), nil
}
