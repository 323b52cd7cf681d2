package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// LeaderboardService exposes the ranked leaderboard. It listens for score
// changes to drop its cached views.
type LeaderboardService interface {
	ScoreListener
	List(ctx context.Context, query dto.LeaderboardQuery) (dto.LeaderboardResponse, error)
	Invalidate(ctx context.Context)
}

type leaderboardService struct {
	repo      repository.LeaderboardRepository
	validator *validator.Validate
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewLeaderboardService constructs the leaderboard reader.
func NewLeaderboardService(repo repository.LeaderboardRepository, validate *validator.Validate, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) LeaderboardService {
	return &leaderboardService{
		repo:      repo,
		validator: validate,
		cache:     cache,
		cacheTTL:  ttl,
		logger:    logger.With().Str("component", "leaderboard_service").Logger(),
	}
}

func leaderboardCacheKey(order string) string {
	return fmt.Sprintf("leaderboard:%s", order)
}

func (s *leaderboardService) List(ctx context.Context, query dto.LeaderboardQuery) (dto.LeaderboardResponse, error) {
	query.Order = strings.ToLower(strings.TrimSpace(query.Order))
	if err := s.validator.Struct(query); err != nil {
		return dto.LeaderboardResponse{}, err
	}
	if query.Order == "" {
		query.Order = dto.LeaderboardOrderAsc
	}

	cacheKey := leaderboardCacheKey(query.Order)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.LeaderboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Str("order", query.Order).Msg("leaderboard cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
	}

	rows, err := s.repo.List(ctx, query.Order == dto.LeaderboardOrderDesc)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	response := dto.NewLeaderboardResponse(query.Order, rows)

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
			}
		}
	}

	return response, nil
}

func (s *leaderboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	keys := []string{leaderboardCacheKey(dto.LeaderboardOrderAsc), leaderboardCacheKey(dto.LeaderboardOrderDesc)}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
}

func (s *leaderboardService) OnScoreChange(ctx context.Context, _ ScoreChange) {
	s.Invalidate(ctx)
}

// LeaderboardHub pushes a fresh leaderboard to websocket subscribers after every score change.
type LeaderboardHub struct {
	leaderboard LeaderboardService
	logger      zerolog.Logger

	mu          sync.RWMutex
	subscribers map[chan dto.LeaderboardResponse]struct{}
}

// NewLeaderboardHub constructs the hub.
func NewLeaderboardHub(leaderboard LeaderboardService, logger zerolog.Logger) *LeaderboardHub {
	return &LeaderboardHub{
		leaderboard: leaderboard,
		logger:      logger.With().Str("component", "leaderboard_hub").Logger(),
		subscribers: make(map[chan dto.LeaderboardResponse]struct{}),
	}
}

// Subscribe registers a subscriber. The returned function must be called to unsubscribe.
func (h *LeaderboardHub) Subscribe() (<-chan dto.LeaderboardResponse, func()) {
	ch := make(chan dto.LeaderboardResponse, 4)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	observability.LeaderboardSubscribers().Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
			close(ch)
			observability.LeaderboardSubscribers().Dec()
		})
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *LeaderboardHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// OnScoreChange loads the current leaderboard and fans it out. Slow subscribers miss updates.
func (h *LeaderboardHub) OnScoreChange(ctx context.Context, _ ScoreChange) {
	if h.SubscriberCount() == 0 {
		return
	}

	snapshot, err := h.leaderboard.List(ctx, dto.LeaderboardQuery{Order: dto.LeaderboardOrderAsc})
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to load leaderboard for broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- snapshot:
		default:
			h.logger.Debug().Msg("dropping leaderboard update for slow subscriber")
		}
	}
}
