package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// RecalculationResult summarises a committed recalculation.
type RecalculationResult struct {
	StudentIDs  []uint
	FullRebuild bool
	Outcomes    []StudentOutcome
}

// CertificatePending lists students whose certificate document is still missing.
func (r RecalculationResult) CertificatePending() []uint {
	var pending []uint
	for _, outcome := range r.Outcomes {
		if outcome.DocumentErr != nil {
			pending = append(pending, outcome.StudentID)
		}
	}
	return pending
}

// ScoringService is the single entry point for score-affecting events.
type ScoringService interface {
	// FullRecalculation recomputes one student (or, with a nil id, every student
	// with submissions) and then every rank, atomically. A document generation
	// failure is returned wrapped in ErrDocumentGeneration after the rest committed.
	FullRecalculation(ctx context.Context, studentID *uint) (RecalculationResult, error)
	// ApplyAndRecalculate runs apply and the student's recalculation in one unit
	// of work under the student's lock, so a score change never commits without
	// its leaderboard and certification effects.
	ApplyAndRecalculate(ctx context.Context, studentID uint, apply ScoreMutation) (RecalculationResult, error)
}

// ScoreMutation writes a score-affecting change. It may run more than once when
// the unit of work is retried.
type ScoreMutation func(ctx context.Context, store repository.ScoringStore) error

type scoringService struct {
	engine     *ScoreEngine
	transactor repository.Transactor
	locker     StudentLocker
	lockWait   time.Duration
	listeners  []ScoreListener
	tracer     trace.Tracer
	logger     zerolog.Logger
	now        func() time.Time
}

// NewScoringService wires the engine to a unit of work, a lock and change listeners.
func NewScoringService(engine *ScoreEngine, transactor repository.Transactor, locker StudentLocker, lockWait time.Duration, logger zerolog.Logger, listeners ...ScoreListener) ScoringService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if lockWait <= 0 {
		lockWait = 10 * time.Second
	}

	return &scoringService{
		engine:     engine,
		transactor: transactor,
		locker:     locker,
		lockWait:   lockWait,
		listeners:  listeners,
		tracer:     otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/scoring"),
		logger:     logger.With().Str("component", "scoring_service").Logger(),
		now:        time.Now,
	}
}

func (s *scoringService) FullRecalculation(ctx context.Context, studentID *uint) (RecalculationResult, error) {
	return s.recalculate(ctx, studentID, nil)
}

func (s *scoringService) ApplyAndRecalculate(ctx context.Context, studentID uint, apply ScoreMutation) (RecalculationResult, error) {
	return s.recalculate(ctx, &studentID, apply)
}

func (s *scoringService) recalculate(ctx context.Context, studentID *uint, apply ScoreMutation) (RecalculationResult, error) {
	scope := "all"
	lockKey := GlobalScoringLockKey
	if studentID != nil {
		scope = "student"
		lockKey = StudentLockKey(*studentID)
	}

	ctx, span := s.tracer.Start(ctx, "scoring.full_recalculation", trace.WithAttributes(attribute.String("scope", scope)))
	defer span.End()

	logger := middleware.LoggerWithCorrelation(ctx, s.logger)
	start := time.Now()

	unlock, err := s.locker.Lock(ctx, lockKey, s.lockWait)
	if err != nil {
		observability.RecalculationDuration().WithLabelValues(scope, "lock_timeout").Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RecalculationResult{}, err
	}
	defer unlock()

	var result RecalculationResult
	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context, store repository.ScoringStore) error {
		result = RecalculationResult{FullRebuild: studentID == nil}

		var ids []uint
		if studentID != nil {
			if _, err := store.GetStudent(ctx, *studentID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrStudentNotFound
				}
				return fmt.Errorf("load student %d: %w", *studentID, err)
			}
			if apply != nil {
				if err := apply(ctx, store); err != nil {
					return err
				}
			}
			ids = []uint{*studentID}
		} else {
			listed, err := store.ListSubmittingStudentIDs(ctx)
			if err != nil {
				return fmt.Errorf("list students with submissions: %w", err)
			}
			ids = listed
		}

		for _, id := range ids {
			outcome, err := s.engine.RecomputeStudent(ctx, store, id)
			if err != nil {
				return err
			}
			result.Outcomes = append(result.Outcomes, outcome)
		}
		result.StudentIDs = ids

		return s.engine.RecomputeAllRanks(ctx, store)
	})
	if err != nil {
		observability.RecalculationDuration().WithLabelValues(scope, "error").Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, ErrStudentNotFound) {
			logger.Error().Err(err).Str("scope", scope).Msg("score recalculation failed")
		}
		return RecalculationResult{}, err
	}

	s.notify(ctx, result)

	var docErrs []error
	for _, outcome := range result.Outcomes {
		if outcome.DocumentErr != nil {
			docErrs = append(docErrs, outcome.DocumentErr)
		}
	}

	outcomeLabel := "ok"
	if len(docErrs) > 0 {
		outcomeLabel = "certificate_pending"
	}
	observability.RecalculationDuration().WithLabelValues(scope, outcomeLabel).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("students", len(result.StudentIDs)))

	logger.Info().
		Str("scope", scope).
		Int("students", len(result.StudentIDs)).
		Int("certificate_pending", len(docErrs)).
		Dur("duration", time.Since(start)).
		Msg("scores recalculated")

	if len(docErrs) > 0 {
		return result, errors.Join(docErrs...)
	}
	return result, nil
}

func (s *scoringService) notify(ctx context.Context, result RecalculationResult) {
	if len(s.listeners) == 0 {
		return
	}

	change := ScoreChange{
		StudentIDs:    result.StudentIDs,
		FullRebuild:   result.FullRebuild,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		OccurredAt:    s.now().UTC(),
	}
	for _, outcome := range result.Outcomes {
		if outcome.Transition != nil {
			change.Transitions = append(change.Transitions, *outcome.Transition)
		}
	}

	for _, listener := range s.listeners {
		listener.OnScoreChange(ctx, change)
	}
}
