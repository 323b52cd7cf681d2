package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// LeaderboardRepository reads ranked leaderboard rows.
type LeaderboardRepository interface {
	List(ctx context.Context, descending bool) ([]models.LeaderboardEntry, error)
	GetByStudent(ctx context.Context, studentID uint) (models.LeaderboardEntry, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

// NewLeaderboardRepository constructs the leaderboard read repository.
func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

// List returns rows ordered by rank. Unranked rows sort last in both directions.
func (r *leaderboardRepository) List(ctx context.Context, descending bool) ([]models.LeaderboardEntry, error) {
	direction := "ASC"
	if descending {
		direction = "DESC"
	}

	order := strings.Join([]string{
		"CASE WHEN rank IS NULL THEN 1 ELSE 0 END",
		"rank " + direction,
		"student_id ASC",
	}, ", ")

	var entries []models.LeaderboardEntry
	if err := r.db.WithContext(ctx).Preload("Student").Order(order).Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *leaderboardRepository) GetByStudent(ctx context.Context, studentID uint) (models.LeaderboardEntry, error) {
	var entry models.LeaderboardEntry
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&entry).Error; err != nil {
		return models.LeaderboardEntry{}, err
	}

	return entry, nil
}
