package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/scoring"
)

// SubmissionCreateRequest describes the multipart payload for submission upload.
type SubmissionCreateRequest struct {
	AssignmentID uint   `form:"assignment_id" validate:"required,gt=0"`
	StudentID    uint   `form:"student_id" validate:"required,gt=0"`
	Content      string `form:"content" validate:"omitempty,max=20000"`
}

// SubmissionGradeRequest carries a mentor override score.
type SubmissionGradeRequest struct {
	MentorScore    *int    `json:"mentor_score" validate:"required,gte=0,lte=100"`
	MentorFeedback *string `json:"mentor_feedback" validate:"omitempty,max=5000"`
}

// SubmissionReviewRequest grades a submission and attaches text feedback in one call.
type SubmissionReviewRequest struct {
	MentorScore *int   `json:"mentor_score" validate:"required,gte=0,lte=100"`
	Feedback    string `json:"feedback" validate:"required,min=3,max=5000"`
}

// SubmissionFeedbackRequest describes mentor feedback. Audio and video feedback
// arrive as a multipart file instead of Content.
type SubmissionFeedbackRequest struct {
	Type    string `form:"type" json:"type" validate:"required,oneof=text audio video"`
	Content string `form:"content" json:"content" validate:"omitempty,max=5000"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	AssignmentID *uint `query:"assignment_id" validate:"omitempty,gt=0"`
	StudentID    *uint `query:"student_id" validate:"omitempty,gt=0"`
	// Pending keeps only submissions still waiting for a mentor score.
	Pending bool `query:"pending"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID             uint                `json:"id"`
	AssignmentID   uint                `json:"assignment_id"`
	StudentID      uint                `json:"student_id"`
	Content        string              `json:"content,omitempty"`
	FileURL        string              `json:"file_url"`
	AIScore        *int                `json:"ai_score"`
	AIFeedback     string              `json:"ai_feedback"`
	MentorScore    *int                `json:"mentor_score"`
	MentorFeedback string              `json:"mentor_feedback"`
	EffectiveScore int                 `json:"effective_score"`
	Feedback       []FeedbackResponse  `json:"feedback"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Assignment     *AssignmentLite     `json:"assignment,omitempty"`
	Student        *StudentLite        `json:"student,omitempty"`
	Standing       *SubmissionStanding `json:"standing,omitempty"`
}

// SubmissionStanding is the score state after a grading event was applied.
type SubmissionStanding struct {
	Leaderboard        *LeaderboardEntryResponse `json:"leaderboard,omitempty"`
	Certification      *CertificationResponse    `json:"certification,omitempty"`
	CertificatePending bool                      `json:"certificate_pending"`
}

// FeedbackResponse serializes a mentor feedback entry.
type FeedbackResponse struct {
	ID        uint      `json:"id"`
	MentorID  uint      `json:"mentor_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID      uint       `json:"id"`
	Title   string     `json:"title"`
	DueDate *time.Time `json:"due_date"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// NewStudentLite builds the short student view.
func NewStudentLite(model models.Student) *StudentLite {
	if model.ID == 0 {
		return nil
	}
	return &StudentLite{ID: model.ID, Name: model.DisplayName(), Email: model.Email}
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:             model.ID,
		AssignmentID:   model.AssignmentID,
		StudentID:      model.StudentID,
		Content:        model.Content,
		FileURL:        model.FileURL,
		AIScore:        model.AIScore,
		AIFeedback:     model.AIFeedback,
		MentorScore:    model.MentorScore,
		MentorFeedback: model.MentorFeedback,
		EffectiveScore: scoring.EffectiveScore(model.MentorScore, model.AIScore),
		Feedback:       make([]FeedbackResponse, 0, len(model.Feedback)),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
		Student:        NewStudentLite(model.Student),
	}

	if model.Assignment.ID != 0 {
		response.Assignment = &AssignmentLite{
			ID:      model.Assignment.ID,
			Title:   model.Assignment.Title,
			DueDate: model.Assignment.DueDate,
		}
	}

	for _, entry := range model.Feedback {
		response.Feedback = append(response.Feedback, NewFeedbackResponse(entry))
	}

	return response
}

// NewFeedbackResponse converts a feedback model into a DTO.
func NewFeedbackResponse(model models.SubmissionFeedback) FeedbackResponse {
	return FeedbackResponse{
		ID:        model.ID,
		MentorID:  model.MentorID,
		Type:      model.Type,
		Content:   model.Content,
		CreatedAt: model.CreatedAt,
	}
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, submission := range items {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
