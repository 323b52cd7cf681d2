package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// ScoringStore is the storage capability set the score aggregation engine needs.
// Implementations are bound to a single unit of work.
type ScoringStore interface {
	GetStudent(ctx context.Context, id uint) (models.Student, error)
	ListSubmissionsByStudent(ctx context.Context, studentID uint) ([]models.Submission, error)
	ListSubmittingStudentIDs(ctx context.Context) ([]uint, error)

	GetOrCreateLeaderboardEntry(ctx context.Context, studentID uint) (models.LeaderboardEntry, error)
	SaveLeaderboardEntry(ctx context.Context, entry *models.LeaderboardEntry) error
	ListLeaderboardForRanking(ctx context.Context) ([]models.LeaderboardEntry, error)
	UpdateRank(ctx context.Context, entryID uint, rank int) error

	GetOrCreateCertification(ctx context.Context, studentID uint) (models.Certification, error)
	SaveCertification(ctx context.Context, cert *models.Certification) error

	// SaveSubmission inserts a new submission or updates an existing one.
	SaveSubmission(ctx context.Context, submission *models.Submission) error
	CreateFeedback(ctx context.Context, feedback *models.SubmissionFeedback) error
}

type gormScoringStore struct {
	db *gorm.DB
}

// NewScoringStore binds a ScoringStore to the given connection or transaction.
func NewScoringStore(db *gorm.DB) ScoringStore {
	return &gormScoringStore{db: db}
}

func (s *gormScoringStore) GetStudent(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (s *gormScoringStore) ListSubmissionsByStudent(ctx context.Context, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (s *gormScoringStore) ListSubmittingStudentIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Distinct("student_id").
		Order("student_id ASC").
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *gormScoringStore) GetOrCreateLeaderboardEntry(ctx context.Context, studentID uint) (models.LeaderboardEntry, error) {
	entry := models.LeaderboardEntry{}
	if err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Where(models.LeaderboardEntry{StudentID: studentID}).
		FirstOrCreate(&entry).Error; err != nil {
		return models.LeaderboardEntry{}, err
	}
	return entry, nil
}

func (s *gormScoringStore) SaveLeaderboardEntry(ctx context.Context, entry *models.LeaderboardEntry) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(entry).Error
}

func (s *gormScoringStore) ListLeaderboardForRanking(ctx context.Context) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	if err := s.db.WithContext(ctx).
		Order("total_score DESC, student_id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *gormScoringStore) UpdateRank(ctx context.Context, entryID uint, rank int) error {
	return s.db.WithContext(ctx).
		Model(&models.LeaderboardEntry{}).
		Where("id = ?", entryID).
		Update("rank", rank).Error
}

func (s *gormScoringStore) GetOrCreateCertification(ctx context.Context, studentID uint) (models.Certification, error) {
	cert := models.Certification{}
	if err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Where(models.Certification{StudentID: studentID}).
		Attrs(models.Certification{Status: models.CertificateStatusNotQualified}).
		FirstOrCreate(&cert).Error; err != nil {
		return models.Certification{}, err
	}
	return cert, nil
}

func (s *gormScoringStore) SaveCertification(ctx context.Context, cert *models.Certification) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(cert).Error
}

func (s *gormScoringStore) SaveSubmission(ctx context.Context, submission *models.Submission) error {
	query := s.db.WithContext(ctx).Omit(clause.Associations)
	if submission.ID == 0 {
		return query.Create(submission).Error
	}
	return query.Save(submission).Error
}

func (s *gormScoringStore) CreateFeedback(ctx context.Context, feedback *models.SubmissionFeedback) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(feedback).Error
}
