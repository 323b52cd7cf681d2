package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

const (
	leaderboardWriteTimeout = 10 * time.Second
	recalculationRateLimit  = 5
)

// leaderboardStreamMessage is the frame pushed to websocket subscribers.
type leaderboardStreamMessage struct {
	Type string                  `json:"type"`
	Data dto.LeaderboardResponse `json:"data"`
}

// LeaderboardHandler serves the ranked leaderboard, its live stream and manual rebuilds.
type LeaderboardHandler struct {
	leaderboard service.LeaderboardService
	scoring     service.ScoringService
	hub         *service.LeaderboardHub
	logger      zerolog.Logger
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(leaderboard service.LeaderboardService, scoring service.ScoringService, hub *service.LeaderboardHub, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard: leaderboard,
		scoring:     scoring,
		hub:         hub,
		logger:      logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register binds leaderboard routes.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("", h.list)

	if h.hub != nil {
		router.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				c.Locals("request_ctx", requestContext(c))
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		router.Get("/ws", websocket.New(h.stream))
	}

	router.Post("/recalculate",
		middleware.RequireRole(middleware.RoleAdmin),
		middleware.RateLimit("leaderboard-recalculate", recalculationRateLimit, time.Minute),
		h.recalculate,
	)
}

func (h *LeaderboardHandler) list(c *fiber.Ctx) error {
	var query dto.LeaderboardQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	leaderboard, err := h.leaderboard.List(requestContext(c), query)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "leaderboard retrieved", leaderboard)
}

func (h *LeaderboardHandler) recalculate(c *fiber.Ctx) error {
	var payload dto.RecalculationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	if payload.StudentID != nil && *payload.StudentID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student_id")
	}

	result, err := h.scoring.FullRecalculation(requestContext(c), payload.StudentID)
	if err != nil && !errors.Is(err, service.ErrDocumentGeneration) {
		return respondServiceError(c, h.logger, err)
	}

	response := dto.RecalculationResponse{
		StudentIDs:         result.StudentIDs,
		FullRebuild:        result.FullRebuild,
		CertificatePending: result.CertificatePending(),
	}
	if response.StudentIDs == nil {
		response.StudentIDs = []uint{}
	}

	message := "scores recalculated"
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Msg("recalculation committed with pending certificates")
		message = "scores recalculated; certificate issuance pending"
	}
	return utils.SendSuccess(c, message, response)
}

// stream sends the current leaderboard on connect and a fresh copy after every
// score change until the client disconnects.
func (h *LeaderboardHandler) stream(conn *websocket.Conn) {
	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	logger := middleware.LoggerWithCorrelation(ctx, h.logger)

	updates, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	snapshot, err := h.leaderboard.List(ctx, dto.LeaderboardQuery{Order: dto.LeaderboardOrderAsc})
	if err != nil {
		logger.Error().Err(err).Msg("failed to load leaderboard for stream")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "leaderboard unavailable"))
		_ = conn.Close()
		return
	}
	if err := h.write(conn, snapshot); err != nil {
		return
	}

	logger.Info().Msg("leaderboard stream connected")
	defer logger.Info().Msg("leaderboard stream disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := h.write(conn, update); err != nil {
				logger.Debug().Err(err).Msg("failed to push leaderboard update")
				return
			}
		}
	}
}

func (h *LeaderboardHandler) write(conn *websocket.Conn, payload dto.LeaderboardResponse) error {
	_ = conn.SetWriteDeadline(time.Now().Add(leaderboardWriteTimeout))
	return conn.WriteJSON(leaderboardStreamMessage{Type: "leaderboard", Data: payload})
}
