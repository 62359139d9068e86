package services

import (
	"sync"
	"testing"
	"time"

	"ridelink/pkg/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recordingSink) Deliver(event *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestNotifyDeliversAsynchronously(t *testing.T) {
	sink := &recordingSink{}
	service := NewNotificationService(sink, logger.Discard())

	service.Notify(EventBookingConfirmed, map[string]interface{}{"booking_id": "abc"})
	service.Notify(EventWalletCredited, map[string]interface{}{"amount": 500.0})
	service.Close()

	if sink.count() != 2 {
		t.Fatalf("delivered %d events, want 2", sink.count())
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.events[0].Type != EventBookingConfirmed {
		t.Errorf("first event type = %s", sink.events[0].Type)
	}
	if sink.events[0].ID == "" {
		t.Error("event missing id")
	}
}

func TestNotifyNeverBlocks(t *testing.T) {
	blocked := make(chan struct{})
	sink := &blockingSink{release: blocked}
	service := NewNotificationService(sink, logger.Discard())
	defer close(blocked)

	done := make(chan struct{})
	go func() {
		// Far more events than the queue holds; overflow is dropped, the
		// caller never waits.
		for i := 0; i < notificationQueueSize*2; i++ {
			service.Notify(EventPaymentFailed, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
}

func TestNotifyDuringCloseDoesNotPanic(t *testing.T) {
	sink := &recordingSink{}
	service := NewNotificationService(sink, logger.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				service.Notify(EventWalletCredited, nil)
			}
		}()
	}
	service.Close()
	wg.Wait()

	// Events after Close are dropped; Close is idempotent.
	service.Notify(EventWalletCredited, nil)
	service.Close()
}

type blockingSink struct {
	release chan struct{}
}

func (b *blockingSink) Deliver(event *Event) {
	<-b.release
}
