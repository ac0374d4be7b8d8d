package service

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lgu-assessor/faas-api/internal/models"
)

type broadcastMetrics interface {
	ObserveBroadcast(delivered, dropped int)
}

// Subscriber is one open event stream for one authenticated user. A user may
// hold several at once (multiple browser tabs); each gets its own channel.
type Subscriber struct {
	ID     string
	UserID string
	Events chan models.LifecycleEvent
}

// EventService tracks per-user SSE subscribers and fans lifecycle events out
// to all of them. Broadcast never blocks: a subscriber that cannot keep up
// loses events rather than stalling the mutation that produced them.
type EventService struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscriber

	buffer  int
	metrics broadcastMetrics
	logger  *zap.Logger
}

// NewEventService constructs the registry. buffer is each subscriber's
// channel capacity.
func NewEventService(buffer int, metrics broadcastMetrics, logger *zap.Logger) *EventService {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		subscribers: make(map[string]map[string]*Subscriber),
		buffer:      buffer,
		metrics:     metrics,
		logger:      logger,
	}
}

// Subscribe registers a new stream for the user and returns it. The caller
// must Unsubscribe when the stream closes.
func (s *EventService) Subscribe(userID string) *Subscriber {
	sub := &Subscriber{
		ID:     uuid.NewString(),
		UserID: userID,
		Events: make(chan models.LifecycleEvent, s.buffer),
	}

	s.mu.Lock()
	if s.subscribers[userID] == nil {
		s.subscribers[userID] = make(map[string]*Subscriber)
	}
	s.subscribers[userID][sub.ID] = sub
	s.mu.Unlock()

	s.logger.Debug("subscriber registered", zap.String("user_id", userID), zap.String("subscriber_id", sub.ID))
	return sub
}

// Unsubscribe removes the stream from the registry. Safe to call for a
// subscriber that was already removed.
func (s *EventService) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	if streams, ok := s.subscribers[sub.UserID]; ok {
		delete(streams, sub.ID)
		if len(streams) == 0 {
			delete(s.subscribers, sub.UserID)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("subscriber removed", zap.String("user_id", sub.UserID), zap.String("subscriber_id", sub.ID))
}

// Broadcast delivers the event to every registered subscriber. Full channels
// are skipped; delivery is best effort by design of the notification surface.
func (s *EventService) Broadcast(event models.LifecycleEvent) {
	s.mu.RLock()
	targets := make([]*Subscriber, 0, 8)
	for _, streams := range s.subscribers {
		for _, sub := range streams {
			targets = append(targets, sub)
		}
	}
	s.mu.RUnlock()

	delivered, dropped := 0, 0
	for _, sub := range targets {
		select {
		case sub.Events <- event:
			delivered++
		default:
			dropped++
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveBroadcast(delivered, dropped)
	}
	if dropped > 0 {
		s.logger.Warn("event dropped for slow subscribers",
			zap.String("action", event.Action),
			zap.Int("delivered", delivered),
			zap.Int("dropped", dropped),
		)
	}
}

// SubscriberCount reports the number of open streams, for health reporting.
func (s *EventService) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, streams := range s.subscribers {
		count += len(streams)
	}
	return count
}
