// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist
	// (including "no running timer").
	ErrNotFound = errors.New("not found")

	// ErrInvalidInterval indicates an interval with end <= start.
	ErrInvalidInterval = errors.New("invalid interval: end must be after start")

	// ErrFutureStart indicates a start instant past the current time.
	ErrFutureStart = errors.New("start is in the future")

	// ErrFutureEnd indicates an end instant past the current time.
	ErrFutureEnd = errors.New("end is in the future")

	// ErrTaskMismatch indicates a stale client belief about which task's
	// timer is running.
	ErrTaskMismatch = errors.New("task mismatch")

	// ErrValidation indicates malformed non-temporal input.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a temporary handshake lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// OverlapError reports a conflict between a candidate interval and an
// existing interval (a stored event or the running timer). It carries enough
// identity for a user to find and resolve the conflict.
type OverlapError struct {
	TaskName  string
	EventName string // empty when the conflict is the running timer
	Start     time.Time
	End       time.Time
	Loc       *time.Location // rendering timezone; nil means UTC
}

func (e *OverlapError) Error() string {
	loc := e.Loc
	if loc == nil {
		loc = time.UTC
	}
	window := fmt.Sprintf("%s - %s",
		e.Start.In(loc).Format("2006-01-02 15:04"),
		e.End.In(loc).Format("2006-01-02 15:04"))
	if e.EventName == "" {
		return fmt.Sprintf("overlaps the running timer on %q (%s)", e.TaskName, window)
	}
	return fmt.Sprintf("overlaps %q on task %q (%s)", e.EventName, e.TaskName, window)
}

// IsOverlap reports whether err is (or wraps) an OverlapError.
func IsOverlap(err error) bool {
	var oe *OverlapError
	return errors.As(err, &oe)
}
