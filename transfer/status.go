package transfer

import (
	"errors"
	"fmt"
)

var ErrInvalidStatus = errors.New("invalid status")

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusPaymentProcessing Status = "PAYMENT_PROCESSING"
	StatusPaymentConfirmed  Status = "PAYMENT_CONFIRMED"
	StatusTransferring      Status = "TRANSFERRING"
	StatusPayingOut         Status = "PAYING_OUT"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
)

// Position in the lifecycle. FAILED sits outside the order
func (s Status) rank() (rank int) {
	switch s {
	case StatusPending:
		return 1
	case StatusPaymentProcessing:
		return 2
	case StatusPaymentConfirmed:
		return 3
	case StatusTransferring:
		return 4
	case StatusPayingOut:
		return 5
	case StatusCompleted:
		return 6
	default:
		return 0
	}
}

func (s Status) Validate() (err error) {
	if s.rank() == 0 && s != StatusFailed {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
	return nil
}

// IsFinal reports terminal statuses. They absorb every later event
func (s Status) IsFinal() (final bool) {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from from to to changes the status
// and moves it forward. Regressions caused by out of order delivery are refused
func CanTransition(from, to Status) (allowed bool) {
	switch {
	case from == to, from.IsFinal(), to.Validate() != nil:
		return false
	case to == StatusFailed:
		return true
	default:
		return to.rank() > from.rank()
	}
}
