package models

import "time"

// LeaderboardEntry holds the aggregate score of one student. Rank is relative to
// every other row and is rewritten in a separate pass after the totals change.
type LeaderboardEntry struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	StudentID        uint      `gorm:"not null;uniqueIndex" json:"student_id"`
	TotalScore       int       `gorm:"not null;default:0" json:"total_score"`
	AverageScore     float64   `gorm:"not null;default:0" json:"average_score"`
	TotalAssignments int       `gorm:"not null;default:0" json:"total_assignments"`
	Rank             *int      `json:"rank"`
	UpdatedAt        time.Time `json:"updated_at"`
	Student          Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// TableName keeps the table name singular like the reporting queries expect.
func (LeaderboardEntry) TableName() string {
	return "leaderboard"
}
