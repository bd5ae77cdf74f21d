package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RogueTeam/remit/events"
	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/routing"
	"github.com/RogueTeam/remit/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Re-reads after losing a compare and write race
const MaxEventRetries = 3

// Reason stored when a provider reports a failed operation
const ProviderFailureReason = "The transfer could not be completed by our payment partner."

var ErrDraftMismatch = errors.New("draft does not match the routing result")

// Provider event classes, one per rail step
type EventType string

const (
	EventPayments  EventType = "payments"
	EventTransfers EventType = "transfers"
	EventPayouts   EventType = "payouts"
)

// Step returns the rail step whose reference joins events of this type
func (e EventType) Step() (step rails.Step, ok bool) {
	switch e {
	case EventPayments:
		return rails.StepPayment, true
	case EventTransfers:
		return rails.StepTransfer, true
	case EventPayouts:
		return rails.StepPayout, true
	default:
		return "", false
	}
}

// Target maps a provider status to the internal status. ok is false when the
// event carries nothing to apply
func Target(eventType EventType, providerStatus string) (to Status, ok bool) {
	status := strings.ToLower(strings.TrimSpace(providerStatus))
	switch eventType {
	case EventPayments:
		switch status {
		case "confirmed":
			return StatusPaymentConfirmed, true
		case "failed", "canceled":
			return StatusFailed, true
		default:
			return StatusPaymentProcessing, true
		}
	case EventTransfers:
		switch status {
		case "complete":
			return StatusPayingOut, true
		case "failed":
			return StatusFailed, true
		default:
			return StatusTransferring, true
		}
	case EventPayouts:
		switch status {
		case "complete":
			return StatusCompleted, true
		case "pending":
			return StatusPayingOut, true
		case "failed":
			return StatusFailed, true
		}
	}
	return "", false
}

type (
	Event struct {
		Type EventType
		// Provider id of the operation
		ObjectId string
		// Provider side status
		Status string
	}
	Outcome struct {
		// A transaction references the object
		Found         bool
		TransactionId uuid.UUID
		// The status changed. False for duplicates and stale events
		Applied bool
		From    Status
		To      Status
	}
	// Notifier is told about every applied status change
	Notifier interface {
		StatusChanged(ctx context.Context, t Transaction, previous Status) (err error)
	}
	Config struct {
		Store     Store
		Notifier  Notifier
		Publisher events.Publisher
		Clock     utils.Clock
		Logger    logrus.FieldLogger
	}
)

// Machine is the only writer of transactions
type Machine struct {
	store     Store
	notifier  Notifier
	publisher events.Publisher
	clock     utils.Clock
	logger    logrus.FieldLogger
}

func New(config Config) (m *Machine) {
	m = &Machine{
		store:     config.Store,
		notifier:  config.Notifier,
		publisher: config.Publisher,
		clock:     config.Clock,
		logger:    config.Logger,
	}
	if m.publisher == nil {
		m.publisher = events.Nop{}
	}
	if m.clock == nil {
		m.clock = utils.SystemClock{}
	}
	if m.logger == nil {
		m.logger = logrus.StandardLogger()
	}
	return m
}

func (m *Machine) Get(ctx context.Context, id uuid.UUID) (t Transaction, err error) {
	return m.store.Get(ctx, id)
}

func (m *Machine) publish(ctx context.Context, eventType string, t *Transaction) {
	event, err := events.New(eventType, t.Id.String(), t, m.clock.Now())
	if err == nil {
		err = m.publisher.Publish(ctx, event)
	}
	if err != nil {
		m.logger.WithError(err).WithField("transaction_id", t.Id).Warn("failed to publish event")
	}
}

// sideEffects runs after a persisted change. Its failures are logged only
func (m *Machine) sideEffects(ctx context.Context, t Transaction, previous Status) {
	ctx, cancel := utils.Detach(ctx)
	defer cancel()

	if m.notifier != nil {
		err := m.notifier.StatusChanged(ctx, t, previous)
		if err != nil {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"transaction_id": t.Id,
				"status":         t.Status,
			}).Error("failed to notify status change")
		}
	}
	m.publish(ctx, events.TypeTransferStatusChanged, &t)
}

func (m *Machine) transition(ctx context.Context, t Transaction, to Status, refs rails.ProviderRef, reason string) (updated Transaction, err error) {
	updated, err = m.store.UpdateStatus(ctx, Update{
		Id:            t.Id,
		From:          t.Status,
		To:            to,
		Refs:          refs,
		FailureReason: reason,
		At:            m.clock.Now(),
	})
	if err != nil {
		return t, err
	}

	m.logger.WithFields(logrus.Fields{
		"transaction_id": t.Id,
		"from":           t.Status,
		"to":             to,
	}).Info("transaction status changed")
	m.sideEffects(ctx, updated, t.Status)
	return updated, nil
}

// Record persists the synchronous routing result as PENDING and moves it to
// PAYMENT_PROCESSING once the payment step has a provider reference
func (m *Machine) Record(ctx context.Context, draft Draft, result routing.Result) (t Transaction, err error) {
	if draft.Id == uuid.Nil {
		draft.Id = result.TransactionId
	}
	if draft.Id != result.TransactionId {
		return t, fmt.Errorf("%w: %s != %s", ErrDraftMismatch, draft.Id, result.TransactionId)
	}

	t = draft.transaction(m.clock.Now())
	t.SelectedRail = result.SelectedRail
	t.ChargeId = result.ChargeId
	t.ProviderRef = result.ProviderRef
	t.Routing = result.Metadata

	err = m.store.Create(ctx, t)
	if err != nil {
		return t, err
	}
	m.publish(ctx, events.TypeTransferCreated, &t)

	if t.ProviderRef.PaymentId == "" {
		return t, nil
	}
	t, err = m.transition(ctx, t, StatusPaymentProcessing, rails.ProviderRef{}, "")
	if err != nil {
		return t, fmt.Errorf("failed to mark payment processing: %w", err)
	}
	return t, nil
}

// RecordFailure persists a transfer that never reached a provider, or whose
// routing failed, as FAILED with a user safe reason. References of steps that
// completed before the failure stay indexed for reconciliation
func (m *Machine) RecordFailure(ctx context.Context, draft Draft, result routing.Result, cause error) (t Transaction, err error) {
	if draft.Id == uuid.Nil {
		draft.Id = result.TransactionId
	}

	t = draft.transaction(m.clock.Now())
	t.Status = StatusFailed
	t.SelectedRail = result.SelectedRail
	t.ChargeId = result.ChargeId
	t.ProviderRef = result.ProviderRef
	t.Routing = result.Metadata
	t.FailureReason = rails.UserMessage(cause)

	err = m.store.Create(ctx, t)
	if err != nil {
		return t, err
	}
	m.logger.WithError(cause).WithField("transaction_id", t.Id).Warn("transaction failed")
	m.publish(ctx, events.TypeTransferCreated, &t)
	m.sideEffects(ctx, t, StatusPending)
	return t, nil
}

// HandleEvent applies a provider event. Unknown references, duplicates and
// stale events are reported through the outcome, never as errors
func (m *Machine) HandleEvent(ctx context.Context, event Event) (outcome Outcome, err error) {
	step, ok := event.Type.Step()
	if !ok {
		return outcome, fmt.Errorf("%w: unknown event type %q", ErrInvalidStatus, event.Type)
	}

	logger := m.logger.WithFields(logrus.Fields{
		"event":     event.Type,
		"object_id": event.ObjectId,
		"status":    event.Status,
	})

	for range MaxEventRetries {
		t, err := m.store.GetByProviderRef(ctx, step, event.ObjectId)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				logger.Info("no transaction references the object")
				return Outcome{}, nil
			}
			return outcome, fmt.Errorf("failed to find transaction: %w", err)
		}

		outcome = Outcome{Found: true, TransactionId: t.Id, From: t.Status, To: t.Status}
		to, ok := Target(event.Type, event.Status)
		if !ok || !CanTransition(t.Status, to) {
			logger.WithField("current", t.Status).Debug("event ignored")
			return outcome, nil
		}

		var reason string
		if to == StatusFailed {
			reason = ProviderFailureReason
		}
		t, err = m.transition(ctx, t, to, rails.ProviderRef{}, reason)
		switch {
		case err == nil:
			outcome.Applied = true
			outcome.To = t.Status
			return outcome, nil
		case errors.Is(err, ErrStatusConflict):
			logger.WithError(err).Debug("lost status race, reloading")
		default:
			return outcome, err
		}
	}
	return outcome, fmt.Errorf("failed to apply event after %d attempts: %w", MaxEventRetries, ErrStatusConflict)
}
