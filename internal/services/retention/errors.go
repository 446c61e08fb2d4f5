package retention

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrAlreadyActive  = errors.New("order already active")
	ErrStore          = errors.New("store failure")
	ErrPartialFailure = errors.New("partial failure")
	ErrInvalidID      = errors.New("invalid order id")
	ErrNotEligible    = errors.New("order retention not elapsed")
)

// Op names, also used as metric labels.
const (
	OpSoftDelete = "soft_delete"
	OpRecover    = "recover"
	OpPurge      = "purge"
	OpReconcile  = "reconcile"
)

// Error is returned by every single-item operation. Kind is one of the
// sentinels above, Err is the underlying store error when there is one.
type Error struct {
	Op      string
	OrderID string
	Kind    error
	Err     error
}

func (e *Error) Error() string {
	return e.Message()
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is safe to show to an operator. The raw store error, if any,
// goes at the end in brackets.
func (e *Error) Message() string {
	var msg string
	switch e.Kind {
	case ErrNotFound:
		msg = fmt.Sprintf("order %s was not found", e.OrderID)
		if e.Op == OpRecover || e.Op == OpPurge {
			msg = fmt.Sprintf("order %s was not found in deleted orders", e.OrderID)
		}
	case ErrAlreadyActive:
		msg = fmt.Sprintf("order %s is already active", e.OrderID)
	case ErrInvalidID:
		msg = "order id is required"
	case ErrNotEligible:
		msg = fmt.Sprintf("order %s is still within its retention window", e.OrderID)
	default:
		msg = fmt.Sprintf("could not %s order %s, please try again", opVerb(e.Op), e.OrderID)
	}
	if e.Err != nil {
		msg += " [" + e.Err.Error() + "]"
	}
	return msg
}

func opVerb(op string) string {
	switch op {
	case OpSoftDelete:
		return "delete"
	case OpRecover:
		return "recover"
	case OpPurge:
		return "permanently delete"
	case OpReconcile:
		return "reconcile"
	}
	return op
}

// KindName maps an error to the short reason used in bulk results and metrics.
func KindName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrAlreadyActive):
		return "AlreadyActive"
	case errors.Is(err, ErrInvalidID):
		return "InvalidID"
	case errors.Is(err, ErrNotEligible):
		return "NotEligible"
	}
	return "StoreError"
}

// Message returns a readable text for any error coming out of the package.
func Message(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Message()
	}
	return err.Error()
}

func newError(op, id string, kind, err error) *Error {
	return &Error{Op: op, OrderID: id, Kind: kind, Err: err}
}
