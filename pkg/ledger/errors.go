package ledger

import "fmt"

// ValidationError rejects missing or malformed input before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an absent member, month, expense or due.
type NotFoundError struct {
	Kind string // "member", "due", "summary", ...
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// InsufficientFundsError is returned when a fund deduction would drive the
// global meal fund below zero. The ledger is left unchanged.
type InsufficientFundsError struct {
	AvailableCents int64
	RequestedCents int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %d, need %d", e.AvailableCents, e.RequestedCents)
}

// ConcurrentUpdateError signals a version conflict on an aggregate write.
// The caller should re-read and retry.
type ConcurrentUpdateError struct {
	Entity string
	Key    string
}

func (e *ConcurrentUpdateError) Error() string {
	return fmt.Sprintf("concurrent update on %s %s", e.Entity, e.Key)
}

// InconsistentStateError surfaces derived state that disagrees with its
// source events (e.g. meal records without a summary row). It is reported,
// never silently patched.
type InconsistentStateError struct {
	Detail string
}

func (e *InconsistentStateError) Error() string {
	return "inconsistent state: " + e.Detail
}

// AuthorizationError rejects an action the current actor may not perform,
// including a failed shortname confirmation on archive.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "not authorized: " + e.Reason
}
