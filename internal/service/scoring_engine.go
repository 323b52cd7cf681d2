package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/scoring"
)

var (
	// ErrStudentNotFound indicates the referenced student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrDocumentGeneration indicates a qualified student's certificate could not be produced.
	// The certification status is still persisted; only the document reference is missing.
	ErrDocumentGeneration = errors.New("certificate document generation failed")
)

// CertificateGenerator produces a certificate document and returns a reference to it.
type CertificateGenerator interface {
	Generate(ctx context.Context, studentName, program string) (string, error)
}

// ScoreEngineConfig tunes certification decisions.
type ScoreEngineConfig struct {
	QualificationScore float64
	Program            string
}

// CertificationTransition records a certification status change.
type CertificationTransition struct {
	StudentID uint   `json:"student_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// CertificationOutcome is the result of evaluating one student's certification.
type CertificationOutcome struct {
	Certification models.Certification
	Transition    *CertificationTransition
	// DocumentErr wraps ErrDocumentGeneration when the document could not be produced.
	DocumentErr error
}

// StudentOutcome is the result of recomputing one student's aggregates.
type StudentOutcome struct {
	StudentID uint
	Stats     scoring.Stats
	CertificationOutcome
}

// ScoreEngine owns the leaderboard and certification transitions. Every method
// operates on the store it is handed, so callers decide the transaction boundary.
type ScoreEngine struct {
	generator CertificateGenerator
	threshold float64
	program   string
	tracer    trace.Tracer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewScoreEngine constructs the engine.
func NewScoreEngine(generator CertificateGenerator, cfg ScoreEngineConfig, logger zerolog.Logger) *ScoreEngine {
	threshold := cfg.QualificationScore
	if threshold <= 0 {
		threshold = scoring.DefaultQualificationThreshold
	}
	program := cfg.Program
	if program == "" {
		program = "General Qualification"
	}

	return &ScoreEngine{
		generator: generator,
		threshold: threshold,
		program:   program,
		tracer:    otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/scoring"),
		logger:    logger.With().Str("component", "score_engine").Logger(),
		now:       time.Now,
	}
}

// Threshold returns the qualification threshold in use.
func (e *ScoreEngine) Threshold() float64 {
	return e.threshold
}

// RecomputeStudent rebuilds a student's leaderboard aggregates from their
// submissions and re-evaluates certification. Rank is left untouched.
func (e *ScoreEngine) RecomputeStudent(ctx context.Context, store repository.ScoringStore, studentID uint) (StudentOutcome, error) {
	ctx, span := e.tracer.Start(ctx, "scoring.recompute_student", trace.WithAttributes(
		attribute.Int64("student_id", int64(studentID)),
	))
	defer span.End()

	submissions, err := store.ListSubmissionsByStudent(ctx, studentID)
	if err != nil {
		return StudentOutcome{}, fmt.Errorf("list submissions for student %d: %w", studentID, err)
	}

	graded := make([]scoring.Graded, 0, len(submissions))
	for _, submission := range submissions {
		graded = append(graded, scoring.Graded{AIScore: submission.AIScore, MentorScore: submission.MentorScore})
	}
	stats := scoring.Compute(graded)

	entry, err := store.GetOrCreateLeaderboardEntry(ctx, studentID)
	if err != nil {
		return StudentOutcome{}, fmt.Errorf("load leaderboard entry for student %d: %w", studentID, err)
	}

	if entry.TotalScore != stats.TotalScore || entry.AverageScore != stats.AverageScore || entry.TotalAssignments != stats.TotalAssignments {
		entry.TotalScore = stats.TotalScore
		entry.AverageScore = stats.AverageScore
		entry.TotalAssignments = stats.TotalAssignments
		if err := store.SaveLeaderboardEntry(ctx, &entry); err != nil {
			return StudentOutcome{}, fmt.Errorf("save leaderboard entry for student %d: %w", studentID, err)
		}
	}

	span.SetAttributes(
		attribute.Int("total_score", stats.TotalScore),
		attribute.Int("total_assignments", stats.TotalAssignments),
	)

	certOutcome, err := e.EvaluateCertification(ctx, store, studentID, stats.AverageScore)
	if err != nil {
		return StudentOutcome{}, err
	}

	return StudentOutcome{StudentID: studentID, Stats: stats, CertificationOutcome: certOutcome}, nil
}

// EvaluateCertification applies the qualification threshold to average. It is
// idempotent: a repeated call with the same average writes nothing.
func (e *ScoreEngine) EvaluateCertification(ctx context.Context, store repository.ScoringStore, studentID uint, average float64) (CertificationOutcome, error) {
	cert, err := store.GetOrCreateCertification(ctx, studentID)
	if err != nil {
		return CertificationOutcome{}, fmt.Errorf("load certification for student %d: %w", studentID, err)
	}

	before := cert
	outcome := CertificationOutcome{}

	if scoring.Qualifies(average, e.threshold) {
		cert.Status = models.CertificateStatusQualified
		if cert.IssueDate == nil {
			issued := e.now().UTC()
			cert.IssueDate = &issued
		}
		if cert.FileURL == "" {
			url, docErr := e.generateDocument(ctx, store, studentID)
			if docErr != nil {
				if errors.Is(docErr, ErrStudentNotFound) {
					return CertificationOutcome{}, docErr
				}
				outcome.DocumentErr = docErr
			} else {
				cert.FileURL = url
			}
		}
	} else {
		cert.Status = models.CertificateStatusNotQualified
		cert.IssueDate = nil
		cert.FileURL = ""
	}

	if certificationChanged(before, cert) {
		if err := store.SaveCertification(ctx, &cert); err != nil {
			return CertificationOutcome{}, fmt.Errorf("save certification for student %d: %w", studentID, err)
		}
	}

	if before.Status != cert.Status {
		outcome.Transition = &CertificationTransition{StudentID: studentID, From: before.Status, To: cert.Status}
		observability.CertificationTransitions().WithLabelValues(cert.Status).Inc()
		e.logger.Info().
			Uint("student_id", studentID).
			Str("from", before.Status).
			Str("to", cert.Status).
			Float64("average_score", average).
			Msg("certification status changed")
	}

	outcome.Certification = cert
	return outcome, nil
}

// RecomputeAllRanks assigns positional dense ranks to every leaderboard row.
func (e *ScoreEngine) RecomputeAllRanks(ctx context.Context, store repository.ScoringStore) error {
	ctx, span := e.tracer.Start(ctx, "scoring.recompute_all_ranks")
	defer span.End()

	entries, err := store.ListLeaderboardForRanking(ctx)
	if err != nil {
		return fmt.Errorf("list leaderboard: %w", err)
	}

	standings := make([]scoring.Standing, 0, len(entries))
	for _, entry := range entries {
		standings = append(standings, scoring.Standing{StudentID: entry.StudentID, TotalScore: entry.TotalScore})
	}
	scoring.AssignRanks(standings)

	byStudent := make(map[uint]models.LeaderboardEntry, len(entries))
	for _, entry := range entries {
		byStudent[entry.StudentID] = entry
	}

	updated := 0
	for _, standing := range standings {
		entry := byStudent[standing.StudentID]
		if entry.Rank != nil && *entry.Rank == standing.Rank {
			continue
		}
		if err := store.UpdateRank(ctx, entry.ID, standing.Rank); err != nil {
			return fmt.Errorf("update rank for student %d: %w", standing.StudentID, err)
		}
		updated++
	}

	span.SetAttributes(attribute.Int("rows", len(entries)), attribute.Int("rows_updated", updated))
	return nil
}

func (e *ScoreEngine) generateDocument(ctx context.Context, store repository.ScoringStore, studentID uint) (string, error) {
	student, err := store.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrStudentNotFound
		}
		return "", fmt.Errorf("%w: load student %d: %v", ErrDocumentGeneration, studentID, err)
	}

	if e.generator == nil {
		observability.CertificateFailures().Inc()
		return "", fmt.Errorf("%w: no certificate generator configured", ErrDocumentGeneration)
	}

	url, err := e.generator.Generate(ctx, student.DisplayName(), e.program)
	if err == nil && url == "" {
		err = errors.New("generator returned an empty reference")
	}
	if err != nil {
		observability.CertificateFailures().Inc()
		e.logger.Warn().Err(err).Uint("student_id", studentID).Msg("certificate generation failed")
		return "", fmt.Errorf("%w for student %d: %v", ErrDocumentGeneration, studentID, err)
	}

	return url, nil
}

func certificationChanged(before, after models.Certification) bool {
	if before.Status != after.Status || before.FileURL != after.FileURL {
		return true
	}
	if (before.IssueDate == nil) != (after.IssueDate == nil) {
		return true
	}
	return before.IssueDate != nil && !before.IssueDate.Equal(*after.IssueDate)
}
