package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// ErrCertificationNotFound indicates no certification has been evaluated for the student yet.
var ErrCertificationNotFound = errors.New("certification not found")

// CertificationService reads certification decisions.
type CertificationService interface {
	Get(ctx context.Context, studentID uint) (dto.CertificationResponse, error)
	List(ctx context.Context, query dto.CertificationQuery) ([]dto.CertificationResponse, error)
}

type certificationService struct {
	repo      repository.CertificationRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCertificationService constructs the certification reader.
func NewCertificationService(repo repository.CertificationRepository, validate *validator.Validate, logger zerolog.Logger) CertificationService {
	return &certificationService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "certification_service").Logger(),
	}
}

func (s *certificationService) Get(ctx context.Context, studentID uint) (dto.CertificationResponse, error) {
	cert, err := s.repo.GetByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CertificationResponse{}, ErrCertificationNotFound
		}
		return dto.CertificationResponse{}, err
	}
	return dto.NewCertificationResponse(cert), nil
}

func (s *certificationService) List(ctx context.Context, query dto.CertificationQuery) ([]dto.CertificationResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	certs, err := s.repo.List(ctx, query.Status)
	if err != nil {
		return nil, err
	}
	return dto.NewCertificationResponseSlice(certs), nil
}
