package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// AssignmentCreateRequest is accepted as JSON or multipart form; the optional
// brief travels in the "file" form field.
type AssignmentCreateRequest struct {
	Title       string `form:"title" json:"title" validate:"required,min=3,max=255"`
	Description string `form:"description" json:"description" validate:"omitempty,max=10000"`
	DueDate     string `form:"due_date" json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// ParsedDueDate returns nil when no due date was sent.
func (r AssignmentCreateRequest) ParsedDueDate() (*time.Time, error) {
	if r.DueDate == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, r.DueDate)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return &utc, nil
}

// AssignmentResponse is an assignment as seen by clients. Open is false once
// the due date has passed and submissions are refused.
type AssignmentResponse struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Open        bool       `json:"open"`
	FileURL     string     `json:"file_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func NewAssignmentResponse(a models.Assignment, now time.Time) AssignmentResponse {
	return AssignmentResponse{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		DueDate:     a.DueDate,
		Open:        !a.IsPastDue(now),
		FileURL:     a.FileURL,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func NewAssignmentResponses(assignments []models.Assignment, now time.Time) []AssignmentResponse {
	out := make([]AssignmentResponse, len(assignments))
	for i, a := range assignments {
		out[i] = NewAssignmentResponse(a, now)
	}
	return out
}
