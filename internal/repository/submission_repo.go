package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries. AwaitingMentor keeps
// submissions no mentor has scored yet, oldest first.
type SubmissionFilter struct {
	AssignmentID   *uint
	StudentID      *uint
	AwaitingMentor bool
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	CreateFeedback(ctx context.Context, feedback *models.SubmissionFeedback) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Assignment").
		Preload("Student").
		Preload("Feedback", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		})
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	order := "created_at DESC, id DESC"
	if filter.AwaitingMentor {
		query = query.Where("mentor_score IS NULL")
		order = "created_at ASC, id ASC"
	}

	var submissions []models.Submission
	if err := query.Order(order).Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) CreateFeedback(ctx context.Context, feedback *models.SubmissionFeedback) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(feedback).Error
}
