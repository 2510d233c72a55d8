package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bits-grahate/hospital-management-system/internal/platform/clients"
	"github.com/bits-grahate/hospital-management-system/internal/platform/correlation"
	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
)

// BillingSink receives the lifecycle events billing reacts to.
type BillingSink interface {
	PostEvent(ctx context.Context, ev clients.BillingEvent) error
}

// NotificationSink receives every lifecycle event.
type NotificationSink interface {
	Notify(ctx context.Context, payload interface{}) error
}

// Dispatcher polls the outbox and delivers undispatched events. A row is
// marked dispatched only after every configured sink accepted it, so a sink
// failure leaves the row for the next poll. Sinks must tolerate duplicates.
type Dispatcher struct {
	repo      Repository
	billing   BillingSink
	notifier  NotificationSink
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

func NewDispatcher(repo Repository, billing BillingSink, notifier NotificationSink, interval time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		billing:   billing,
		notifier:  notifier,
		interval:  interval,
		batchSize: 100,
		logger:    logger,
	}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := d.DispatchPending(ctx); err != nil {
				d.logger.Warn().Err(err).Msg("outbox dispatch batch failed")
			} else if n > 0 {
				d.logger.Debug().Int("dispatched", n).Msg("outbox batch dispatched")
			}
		}
	}
}

// DispatchPending delivers one batch of undispatched events and returns how
// many were fully delivered.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	pending, err := d.repo.ListUndispatched(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, ev := range pending {
		if err := d.deliver(ctx, ev); err != nil {
			d.logger.Warn().Err(err).
				Str("event_id", ev.ID.String()).
				Str("event_type", ev.Type).
				Str("appointment_id", ev.AppointmentID.String()).
				Msg("event delivery failed, will retry")
			continue
		}
		if err := d.repo.MarkDispatched(ctx, ev.ID); err != nil {
			return dispatched, err
		}
		dispatched++
	}
	return dispatched, nil
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) error {
	ctx = correlation.WithID(ctx, ev.CorrelationID)

	if d.billing != nil && billingRelevant(ev.Type) {
		err := d.billing.PostEvent(ctx, clients.BillingEvent{
			AppointmentID: ev.AppointmentID,
			PatientID:     ev.PatientID,
			EventType:     ev.Type,
			CorrelationID: ev.CorrelationID,
		})
		if err != nil {
			// A conflict means billing already holds a bill for this
			// appointment; retrying cannot succeed, so the event counts
			// as delivered.
			if apperror.CodeOf(err) != apperror.CodeConflict {
				return err
			}
			d.logger.Warn().
				Str("event_id", ev.ID.String()).
				Str("event_type", ev.Type).
				Msg("billing rejected event as duplicate, not retrying")
		}
	}

	if d.notifier != nil {
		if err := d.notifier.Notify(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// billingRelevant reports whether billing reacts to the event type. BOOKED
// and RESCHEDULED are notification-only.
func billingRelevant(eventType string) bool {
	switch eventType {
	case TypeCancelled, TypeCompleted, TypeNoShow:
		return true
	}
	return false
}
