package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// Leaderboard orderings accepted by the list endpoint.
const (
	LeaderboardOrderAsc  = "asc"
	LeaderboardOrderDesc = "desc"
)

// LeaderboardQuery carries list parameters.
type LeaderboardQuery struct {
	Order string `query:"order" validate:"omitempty,oneof=asc desc"`
}

// RecalculationRequest triggers a score rebuild. A nil StudentID rebuilds everyone.
type RecalculationRequest struct {
	StudentID *uint `json:"student_id" validate:"omitempty,gt=0"`
}

// LeaderboardEntryResponse is one ranked row.
type LeaderboardEntryResponse struct {
	StudentID        uint         `json:"student_id"`
	Student          *StudentLite `json:"student,omitempty"`
	TotalScore       int          `json:"total_score"`
	AverageScore     float64      `json:"average_score"`
	TotalAssignments int          `json:"total_assignments"`
	Rank             *int         `json:"rank"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// LeaderboardResponse wraps the ordered rows.
type LeaderboardResponse struct {
	Order   string                     `json:"order"`
	Entries []LeaderboardEntryResponse `json:"entries"`
}

// RecalculationResponse summarises a completed rebuild.
type RecalculationResponse struct {
	StudentIDs         []uint `json:"student_ids"`
	FullRebuild        bool   `json:"full_rebuild"`
	CertificatePending []uint `json:"certificate_pending,omitempty"`
}

// NewLeaderboardEntryResponse converts a model into a DTO.
func NewLeaderboardEntryResponse(model models.LeaderboardEntry) LeaderboardEntryResponse {
	return LeaderboardEntryResponse{
		StudentID:        model.StudentID,
		Student:          NewStudentLite(model.Student),
		TotalScore:       model.TotalScore,
		AverageScore:     model.AverageScore,
		TotalAssignments: model.TotalAssignments,
		Rank:             model.Rank,
		UpdatedAt:        model.UpdatedAt,
	}
}

// NewLeaderboardResponse converts ordered rows into the list payload.
func NewLeaderboardResponse(order string, rows []models.LeaderboardEntry) LeaderboardResponse {
	entries := make([]LeaderboardEntryResponse, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, NewLeaderboardEntryResponse(row))
	}
	return LeaderboardResponse{Order: order, Entries: entries}
}
