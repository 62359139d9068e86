package services

import (
	"sync"
	"time"

	"ridelink/pkg/logger"

	"github.com/google/uuid"
)

const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventPaymentFailed    = "payment.failed"
	EventWalletCredited   = "wallet.credited"
)

// Event is a fire-and-forget notification emitted after a state change has
// been committed. Delivery is best effort and never blocks the caller.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// EventSink receives events from the notification worker. Implementations
// push to SMS, email or push channels; the default sink only logs.
type EventSink interface {
	Deliver(event *Event)
}

type NotificationService interface {
	Notify(eventType string, payload map[string]interface{})
	Close()
}

type notificationService struct {
	queue  chan *Event
	sink   EventSink
	logger *logger.Logger
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

const notificationQueueSize = 256

func NewNotificationService(sink EventSink, log *logger.Logger) NotificationService {
	s := &notificationService{
		queue:  make(chan *Event, notificationQueueSize),
		sink:   sink,
		logger: log,
		done:   make(chan struct{}),
	}
	if s.sink == nil {
		s.sink = &logSink{logger: log}
	}
	go s.run()
	return s
}

// Notify enqueues the event without blocking. When the queue is full the
// event is dropped and counted in the logs; notifications are outside the
// consistency path and must never stall a booking or payment flow.
func (s *notificationService) Notify(eventType string, payload map[string]interface{}) {
	event := &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- event:
	default:
		s.logger.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": eventType,
		}).Warn("Notification queue full, event dropped")
	}
}

func (s *notificationService) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *notificationService) run() {
	defer close(s.done)
	for event := range s.queue {
		s.sink.Deliver(event)
	}
}

type logSink struct {
	logger *logger.Logger
}

func (l *logSink) Deliver(event *Event) {
	l.logger.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"payload":    event.Payload,
	}).Info("Notification delivered")
}
