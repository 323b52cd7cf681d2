package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// CertificationRepository reads certification rows. Writes go through ScoringStore.
type CertificationRepository interface {
	GetByStudent(ctx context.Context, studentID uint) (models.Certification, error)
	List(ctx context.Context, status string) ([]models.Certification, error)
}

type certificationRepository struct {
	db *gorm.DB
}

// NewCertificationRepository constructs the certification read repository.
func NewCertificationRepository(db *gorm.DB) CertificationRepository {
	return &certificationRepository{db: db}
}

func (r *certificationRepository) GetByStudent(ctx context.Context, studentID uint) (models.Certification, error) {
	var cert models.Certification
	if err := r.db.WithContext(ctx).Preload("Student").Where("student_id = ?", studentID).First(&cert).Error; err != nil {
		return models.Certification{}, err
	}

	return cert, nil
}

func (r *certificationRepository) List(ctx context.Context, status string) ([]models.Certification, error) {
	query := r.db.WithContext(ctx).Preload("Student")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var certs []models.Certification
	if err := query.Order("student_id ASC").Find(&certs).Error; err != nil {
		return nil, err
	}

	return certs, nil
}
