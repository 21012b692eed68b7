package goals

import (
	"errors"

	"saveup/internal/core"
)

// Sentinel errors of the transition engine. Every failure returned by Apply
// or the Store matches exactly one of them with errors.Is.
var (
	ErrNotFound          = errors.New("goal not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrGoalLocked        = errors.New("goal locked")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrValidation        = errors.New("validation failed")
)

// User-facing messages shown through the store's error field.
const (
	MsgNotFound          = "Goal not found"
	MsgDepositAmount     = "Deposit amount must be positive"
	MsgDepositTooLarge   = "Deposit would exceed the maximum balance of 1,000,000,000"
	MsgWithdrawalAmount  = "Withdrawal amount must be positive"
	MsgGoalLocked        = "Cannot withdraw from locked goal"
	MsgInsufficientFunds = "Insufficient funds"
	MsgLoadFailed        = "Failed to load saved goals"
)

// Kind is the error taxonomy exposed to front ends.
type Kind string

const (
	KindNone              Kind = ""
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInvalidAmount     Kind = "invalid_amount"
	KindGoalLocked        Kind = "goal_locked"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindLoad              Kind = "load"
	KindInternal          Kind = "internal"
)

// OpError is a failed operation on a goal. Error returns the message meant
// for the user; Unwrap exposes the sentinel and, for validation, the
// *core.ValidationError.
type OpError struct {
	Op     string
	GoalID string
	Msg    string
	Err    error
	Cause  error
}

func (e *OpError) Error() string { return e.Msg }

func (e *OpError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func opError(op, id string, sentinel error, msg string) *OpError {
	return &OpError{Op: op, GoalID: id, Msg: msg, Err: sentinel}
}

func validationError(op, id string, verr error) *OpError {
	return &OpError{Op: op, GoalID: id, Msg: verr.Error(), Err: ErrValidation, Cause: verr}
}

// KindOf maps an error to its taxonomy kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrGoalLocked):
		return KindGoalLocked
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	default:
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return KindValidation
		}
		return KindInternal
	}
}

// FieldErrors returns the failing fields of a validation error, if any.
func FieldErrors(err error) []core.FieldError {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
