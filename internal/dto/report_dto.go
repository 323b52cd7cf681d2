package dto

// StudentReportSubmission is a compact per-submission line in a student report.
type StudentReportSubmission struct {
	SubmissionID    uint   `json:"submission_id"`
	AssignmentID    uint   `json:"assignment_id"`
	AssignmentTitle string `json:"assignment_title"`
	AIScore         *int   `json:"ai_score"`
	MentorScore     *int   `json:"mentor_score"`
	EffectiveScore  int    `json:"effective_score"`
}

// StudentReportResponse aggregates a student's grades, standing and certification.
type StudentReportResponse struct {
	Student            StudentLite               `json:"student"`
	Submissions        []StudentReportSubmission `json:"submissions"`
	PendingAssignments int                       `json:"pending_assignments"`
	Leaderboard        *LeaderboardEntryResponse `json:"leaderboard"`
	Certification      *CertificationResponse    `json:"certification"`
	QualificationScore float64                   `json:"qualification_score"`
}
