package events

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bits-grahate/hospital-management-system/internal/platform/clients"
)

type mockRepo struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockRepo) Insert(ctx context.Context, ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockRepo) ListUndispatched(ctx context.Context, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if ev.DispatchedAt == nil {
			out = append(out, ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockRepo) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			now := time.Now().UTC()
			m.events[i].DispatchedAt = &now
			return nil
		}
	}
	return errors.New("event not found")
}

type mockBillingSink struct {
	mu     sync.Mutex
	events []clients.BillingEvent
	err    error
}

func (m *mockBillingSink) PostEvent(ctx context.Context, ev clients.BillingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

type mockNotifier struct {
	mu       sync.Mutex
	payloads []interface{}
	err      error
}

func (m *mockNotifier) Notify(ctx context.Context, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.payloads = append(m.payloads, payload)
	return nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func insertEvent(t *testing.T, repo *mockRepo, eventType string) Event {
	t.Helper()
	ev := &Event{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		Type:          eventType,
		SlotStart:     time.Now().Add(24 * time.Hour),
		SlotEnd:       time.Now().Add(25 * time.Hour),
		CorrelationID: "rid-1",
	}
	if err := repo.Insert(context.Background(), ev); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return *ev
}

func TestDispatchPending_DeliversAndMarks(t *testing.T) {
	repo := &mockRepo{}
	billing := &mockBillingSink{}
	notifier := &mockNotifier{}
	d := NewDispatcher(repo, billing, notifier, time.Second, testLogger())

	ev := insertEvent(t, repo, TypeCompleted)

	n, err := d.DispatchPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 dispatched, got %d", n)
	}
	if len(billing.events) != 1 || billing.events[0].AppointmentID != ev.AppointmentID {
		t.Errorf("expected billing sink to receive the event")
	}
	if billing.events[0].EventType != TypeCompleted {
		t.Errorf("unexpected event type %s", billing.events[0].EventType)
	}
	if len(notifier.payloads) != 1 {
		t.Errorf("expected notifier to receive the event")
	}

	pending, _ := repo.ListUndispatched(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("expected no pending events after dispatch, got %d", len(pending))
	}
}

func TestDispatchPending_BookedSkipsBilling(t *testing.T) {
	repo := &mockRepo{}
	billing := &mockBillingSink{}
	notifier := &mockNotifier{}
	d := NewDispatcher(repo, billing, notifier, time.Second, testLogger())

	insertEvent(t, repo, TypeBooked)

	if _, err := d.DispatchPending(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(billing.events) != 0 {
		t.Errorf("BOOKED must not reach billing, got %d events", len(billing.events))
	}
	if len(notifier.payloads) != 1 {
		t.Errorf("BOOKED must reach the notifier")
	}
}

func TestDispatchPending_FailedDeliveryRetried(t *testing.T) {
	repo := &mockRepo{}
	billing := &mockBillingSink{err: errors.New("billing down")}
	notifier := &mockNotifier{}
	d := NewDispatcher(repo, billing, notifier, time.Second, testLogger())

	insertEvent(t, repo, TypeCancelled)

	n, err := d.DispatchPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 dispatched while billing is down, got %d", n)
	}

	pending, _ := repo.ListUndispatched(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("expected event to stay pending, got %d", len(pending))
	}

	// Sink recovers; the next poll delivers the same event.
	billing.err = nil
	n, err = d.DispatchPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected redelivery, got %d", n)
	}
	if len(billing.events) != 1 {
		t.Errorf("expected billing to receive the retried event")
	}
}

func TestDispatchPending_NilSinks(t *testing.T) {
	repo := &mockRepo{}
	d := NewDispatcher(repo, nil, nil, time.Second, testLogger())

	insertEvent(t, repo, TypeNoShow)

	n, err := d.DispatchPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected dispatch to succeed with no sinks, got %d", n)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	repo := &mockRepo{}
	d := NewDispatcher(repo, nil, nil, 5*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	insertEvent(t, repo, TypeBooked)
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}

	pending, _ := repo.ListUndispatched(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("expected background loop to dispatch the event")
	}
}
