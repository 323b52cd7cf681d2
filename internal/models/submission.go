package models

import "time"

// Submission is one student's attempt at an assignment.
// AIScore is written once by automated grading, MentorScore by a human override.
type Submission struct {
	ID             uint                 `gorm:"primaryKey" json:"id"`
	AssignmentID   uint                 `gorm:"not null;index" json:"assignment_id"`
	StudentID      uint                 `gorm:"not null;index" json:"student_id"`
	Content        string               `gorm:"type:text" json:"content"`
	FileURL        string               `gorm:"size:512" json:"file_url"`
	AIScore        *int                 `json:"ai_score"`
	AIFeedback     string               `gorm:"type:text" json:"ai_feedback"`
	MentorScore    *int                 `json:"mentor_score"`
	MentorFeedback string               `gorm:"type:text" json:"mentor_feedback"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	Assignment     Assignment           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student        Student              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	Feedback       []SubmissionFeedback `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"feedback"`
}

// IsMentorGraded reports whether a mentor override is present.
func (s Submission) IsMentorGraded() bool {
	return s.MentorScore != nil
}

// Feedback kinds accepted from mentors.
const (
	FeedbackTypeText  = "text"
	FeedbackTypeAudio = "audio"
	FeedbackTypeVideo = "video"
)

// SubmissionFeedback is a mentor comment on a submission. Content holds the
// sanitized text for text feedback or the uploaded media URL otherwise.
type SubmissionFeedback struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	MentorID     uint      `gorm:"not null" json:"mentor_id"`
	Type         string    `gorm:"size:16;not null" json:"type"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}
