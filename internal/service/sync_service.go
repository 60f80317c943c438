package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/observability"
)

const (
	changeBufferSize   = 16
	progressBufferSize = 32
)

// ChangeNotifier is the slice of the sync layer other services depend on.
type ChangeNotifier interface {
	PublishChange(ctx context.Context, event dto.ChangeEvent)
	PublishProgress(ping dto.ProgressPing)
}

// SyncService fans change notifications and advisory progress pings out to
// trainer and learner views. Subscribers react to a change event by
// re-pulling the full aggregation result; no payload diffing is guaranteed.
type SyncService interface {
	ChangeNotifier
	Subscribe(sessionID uint) (<-chan dto.ChangeEvent, func())
	SubscribeProgress(sessionID uint) (<-chan dto.ProgressPing, func())
	Start(ctx context.Context)
}

type syncService struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	changes     *syncBroker[dto.ChangeEvent]
	progress    *syncBroker[dto.ProgressPing]
	nodeID      string
}

type syncEnvelope struct {
	Source   string            `json:"source"`
	Change   *dto.ChangeEvent  `json:"change,omitempty"`
	Progress *dto.ProgressPing `json:"progress,omitempty"`
	SentAt   time.Time         `json:"sent_at"`
}

type syncBroker[T any] struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan T]struct{}
}

// NewSyncService constructs the realtime sync layer. Redis and NATS legs are
// both optional; with neither configured events still reach in-process
// subscribers.
func NewSyncService(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) SyncService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":sync"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".sync"
	}

	return &syncService{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "sync_service").Logger(),
		changes:     newSyncBroker[dto.ChangeEvent](),
		progress:    newSyncBroker[dto.ProgressPing](),
		nodeID:      uuid.NewString(),
	}
}

func newSyncBroker[T any]() *syncBroker[T] {
	return &syncBroker[T]{
		subscribers: make(map[uint]map[chan T]struct{}),
	}
}

func (s *syncService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *syncService) PublishChange(ctx context.Context, event dto.ChangeEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	s.changes.broadcast(event.Scope, event)
	observability.SyncEvents().WithLabelValues(event.Table).Inc()

	if err := s.publish(ctx, syncEnvelope{Source: s.nodeID, Change: &event, SentAt: time.Now().UTC()}); err != nil {
		s.logger.Warn().Err(err).Uint("scope", event.Scope).Str("table", event.Table).Msg("failed to fan out change event")
	}
}

func (s *syncService) PublishProgress(ping dto.ProgressPing) {
	if ping.At.IsZero() {
		ping.At = time.Now().UTC()
	}

	s.progress.broadcast(ping.SessionID, ping)

	// Pings are advisory; a lost one costs UI freshness, never correctness.
	if err := s.publish(context.Background(), syncEnvelope{Source: s.nodeID, Progress: &ping, SentAt: time.Now().UTC()}); err != nil {
		s.logger.Debug().Err(err).Uint("session_id", ping.SessionID).Msg("failed to fan out progress ping")
	}
}

func (s *syncService) Subscribe(sessionID uint) (<-chan dto.ChangeEvent, func()) {
	channel := make(chan dto.ChangeEvent, changeBufferSize)
	s.changes.subscribe(sessionID, channel)
	observability.SSEClientsActive().Inc()

	cleanup := func() {
		s.changes.unsubscribe(sessionID, channel)
		observability.SSEClientsActive().Dec()
	}

	return channel, cleanup
}

func (s *syncService) SubscribeProgress(sessionID uint) (<-chan dto.ProgressPing, func()) {
	channel := make(chan dto.ProgressPing, progressBufferSize)
	s.progress.subscribe(sessionID, channel)
	observability.RosterClientsActive().Inc()

	cleanup := func() {
		s.progress.unsubscribe(sessionID, channel)
		observability.RosterClientsActive().Dec()
	}

	return channel, cleanup
}

func (s *syncService) publish(ctx context.Context, envelope syncEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *syncService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("sync redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *syncService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "gradebook-sync", func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats sync subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain sync nats subscription")
		}
	}()
}

func (s *syncService) handleEnvelope(payload []byte) {
	var envelope syncEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid sync envelope payload")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	if envelope.Change != nil {
		observability.SyncEvents().WithLabelValues(envelope.Change.Table).Inc()
		s.changes.broadcast(envelope.Change.Scope, *envelope.Change)
	}

	if envelope.Progress != nil {
		s.progress.broadcast(envelope.Progress.SessionID, *envelope.Progress)
	}
}

func (b *syncBroker[T]) subscribe(scope uint, ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[scope]; !exists {
		b.subscribers[scope] = make(map[chan T]struct{})
	}
	b.subscribers[scope][ch] = struct{}{}
}

func (b *syncBroker[T]) unsubscribe(scope uint, ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[scope]; ok {
		if _, exists := subscribers[ch]; exists {
			delete(subscribers, ch)
			close(ch)
		}
		if len(subscribers) == 0 {
			delete(b.subscribers, scope)
		}
	}
}

func (b *syncBroker[T]) broadcast(scope uint, event T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[scope] {
		select {
		case ch <- event:
		default:
		}
	}
}
