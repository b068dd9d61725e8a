package staking

import (
	"errors"
	"fmt"
)

// ErrActionInProgress is returned when a mutating action is already running.
var ErrActionInProgress = errors.New("another action is in progress")

// ErrNotConnected is returned by user-scoped operations without a wallet.
var ErrNotConnected = errors.New("wallet not connected")

// ValidationRule names the rule a rejected input violated.
type ValidationRule string

const (
	RuleNonPositive         ValidationRule = "non_positive"
	RuleBelowMinimum        ValidationRule = "below_minimum"
	RuleAboveBalance        ValidationRule = "above_balance"
	RuleNonPositiveDuration ValidationRule = "non_positive_duration"
	RuleDurationTooLong     ValidationRule = "duration_too_long"
	RuleLocked              ValidationRule = "locked"
	RuleAlreadyClaimed      ValidationRule = "already_claimed"
)

// ValidationError rejects input before any network call is made.
type ValidationError struct {
	Rule    ValidationRule
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConnectionError covers wallet connection and network switch failures.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransactionError is a submitted transaction that failed or reverted.
type TransactionError struct {
	Action string
	TxHash string
	Err    error
}

func (e *TransactionError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s transaction %s failed: %v", e.Action, e.TxHash, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// StaleStateError means the targeted stake is no longer at any index of the
// freshly fetched ledger, usually because it was claimed meanwhile.
type StaleStateError struct {
	Target Stake
}

func (e *StaleStateError) Error() string {
	return "Stake not found"
}

// ReadError is a failed best-effort read. It is logged, never surfaced.
type ReadError struct {
	Method string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Method, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
