package ai

import "context"

// GradingInput contains the artefacts needed to grade an assignment submission.
type GradingInput struct {
	AssignmentTitle       string
	AssignmentDescription string
	StudentID             uint
	FileName              string
	SubmissionText        string
}

// GradingResult is the structured verdict returned by the AI grader.
// Score is on the 0-100 scale used across the service.
type GradingResult struct {
	Score    int                    `json:"score"`
	Feedback string                 `json:"feedback"`
	Raw      map[string]interface{} `json:"raw,omitempty"`
}

// Grader describes an AI model capable of grading assignment submissions.
type Grader interface {
	Grade(ctx context.Context, input GradingInput) (GradingResult, error)
}
