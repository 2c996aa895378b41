package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oceansense/edna-go/internal/logging"
)

// DefaultChannelBufferSize is the per-subscriber event buffer. Events
// beyond a full buffer are dropped for that subscriber.
const DefaultChannelBufferSize = 64

// Subscriber represents one connected observer.
type Subscriber struct {
	ch     chan *Event
	ctx    context.Context
	cancel context.CancelFunc
}

// Publisher is the minimal surface the pipeline needs to emit events.
type Publisher interface {
	Publish(event *Event)
}

// Service manages subscribers and fans pipeline events out to them.
type Service struct {
	subscribers   []*Subscriber
	subscribersMu sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *slog.Logger
	mirrors       []Publisher
}

// NewService creates a new notification service.
func NewService() *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		subscribers: make([]*Subscriber, 0),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logging.ForService("notification"),
	}
}

// AddMirror registers an additional publisher every event is copied to,
// such as the MQTT publisher.
func (s *Service) AddMirror(p Publisher) {
	s.mirrors = append(s.mirrors, p)
}

// Subscribe registers a new observer. The returned context is cancelled
// when the subscriber is removed or the service stops.
func (s *Service) Subscribe() (<-chan *Event, context.Context) {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	ctx, cancel := context.WithCancel(s.ctx)
	sub := &Subscriber{
		ch:     make(chan *Event, DefaultChannelBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	s.subscribers = append(s.subscribers, sub)

	s.logger.Debug("new subscriber added", "total_subscribers", len(s.subscribers))
	return sub.ch, ctx
}

// Unsubscribe removes an observer by its channel.
func (s *Service) Unsubscribe(ch <-chan *Event) {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	for i, sub := range s.subscribers {
		if sub.ch == ch {
			sub.cancel()
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			break
		}
	}
}

// Publish fans the event out to all connected subscribers and mirrors.
// Cancelled subscribers are pruned; subscribers with a full buffer miss
// the event rather than blocking the pipeline.
func (s *Service) Publish(event *Event) {
	s.subscribersMu.Lock()

	active := s.subscribers[:0]
	delivered, dropped := 0, 0
	for _, sub := range s.subscribers {
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}
		active = append(active, sub)

		select {
		case sub.ch <- event:
			delivered++
		default:
			dropped++
		}
	}
	s.subscribers = active
	s.subscribersMu.Unlock()

	s.logger.Debug("event published",
		"type", event.Type,
		"sample_id", event.SampleID,
		"delivered", delivered,
		"dropped", dropped)

	for _, m := range s.mirrors {
		m.Publish(event)
	}
}

// SubscriberCount returns the number of connected observers.
func (s *Service) SubscriberCount() int {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()
	return len(s.subscribers)
}

// Stop cancels all subscriber contexts and shuts the service down.
func (s *Service) Stop() {
	s.cancel()

	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()
	for _, sub := range s.subscribers {
		sub.cancel()
	}
	s.subscribers = nil
}
