package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
)

// ScoreChange describes a committed recalculation.
type ScoreChange struct {
	StudentIDs    []uint                    `json:"student_ids"`
	FullRebuild   bool                      `json:"full_rebuild"`
	Transitions   []CertificationTransition `json:"transitions,omitempty"`
	CorrelationID string                    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Source        string                    `json:"source,omitempty"`
}

// ScoreListener reacts to committed score changes. Implementations must not block for long;
// they run on the recalculating request's goroutine.
type ScoreListener interface {
	OnScoreChange(ctx context.Context, change ScoreChange)
}

// ScoreListenerFunc adapts a function to ScoreListener.
type ScoreListenerFunc func(ctx context.Context, change ScoreChange)

// OnScoreChange calls f.
func (f ScoreListenerFunc) OnScoreChange(ctx context.Context, change ScoreChange) {
	f(ctx, change)
}

// ScoreEventBridge publishes local score changes to NATS and replays changes
// from other nodes to the local listeners.
type ScoreEventBridge struct {
	conn      *nats.Conn
	subject   string
	nodeID    string
	listeners []ScoreListener
	logger    zerolog.Logger
}

// NewScoreEventBridge constructs the bridge. A nil connection makes it a no-op.
func NewScoreEventBridge(conn *nats.Conn, subject string, logger zerolog.Logger, local ...ScoreListener) *ScoreEventBridge {
	if subject == "" {
		subject = "gema.scores.changed"
	}
	return &ScoreEventBridge{
		conn:      conn,
		subject:   subject,
		nodeID:    uuid.NewString(),
		listeners: local,
		logger:    logger.With().Str("component", "score_event_bridge").Logger(),
	}
}

// OnScoreChange forwards a local change to the other nodes.
func (b *ScoreEventBridge) OnScoreChange(_ context.Context, change ScoreChange) {
	if b.conn == nil {
		return
	}

	change.Source = b.nodeID
	payload, err := json.Marshal(change)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to encode score change")
		return
	}

	if err := b.conn.Publish(b.subject, payload); err != nil {
		b.logger.Warn().Err(err).Msg("failed to publish score change to nats")
	}
}

// Start subscribes to score changes published by other nodes until ctx is done.
func (b *ScoreEventBridge) Start(ctx context.Context) {
	if b.conn == nil {
		return
	}

	// Every node needs every event for its own cache and websocket clients, so no queue group.
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		b.handleEvent(ctx, msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to score change subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain score change subscription")
		}
	}()
}

func (b *ScoreEventBridge) handleEvent(ctx context.Context, payload []byte) {
	var change ScoreChange
	if err := json.Unmarshal(payload, &change); err != nil {
		b.logger.Warn().Err(err).Msg("discarding malformed score change")
		return
	}

	if change.Source == b.nodeID {
		return
	}

	eventCtx := middleware.ContextWithCorrelation(ctx, change.CorrelationID)
	for _, listener := range b.listeners {
		listener.OnScoreChange(eventCtx, change)
	}
}
