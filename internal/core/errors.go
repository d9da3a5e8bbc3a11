package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyFailed is returned by Complete when the transfer previously
	// finished unsuccessfully. A failed transfer can never be marked complete.
	ErrAlreadyFailed = errors.New("transfer already failed")

	// ErrAlreadySucceeded is returned by Fail when the transfer previously
	// finished successfully.
	ErrAlreadySucceeded = errors.New("transfer already succeeded")

	// ErrNoPendingWork is returned by BeginNextPending when the pending set
	// is empty. It is a normal outcome, not a failure.
	ErrNoPendingWork = errors.New("no pending transfers")

	// ErrConcurrentModification means a conditional update lost its race and
	// the re-read state does not resolve to a defined no-op. The caller
	// should re-read rather than retry blindly.
	ErrConcurrentModification = errors.New("transfer modified concurrently")
)

// ScheduleFailure records one schedule that could not be processed during a
// resolution pass. Failures are collected, never propagated, so sibling
// schedules still run.
type ScheduleFailure struct {
	ScheduleID string
	Err        error
}

func (f ScheduleFailure) Error() string {
	return fmt.Sprintf("schedule %s: %v", f.ScheduleID, f.Err)
}

func (f ScheduleFailure) Unwrap() error { return f.Err }
