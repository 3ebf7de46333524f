// Package dberr classifies backing-store failures into the small set of
// infrastructure error kinds callers are allowed to branch on. Domain
// conditions (not found, insufficient funds, ...) never pass through here.
package dberr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnavailable means the store could not be reached or refused the command.
	ErrUnavailable = errors.New("database unavailable")
	// ErrTimeout means the store did not answer within the per-call deadline.
	ErrTimeout = errors.New("database timeout")
	// ErrCorrupt means the store answered with data that cannot be decoded.
	ErrCorrupt = errors.New("database returned corrupt data")
)

// Error carries the failing operation and its classified kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap classifies err as a timeout or unavailability failure. Already
// classified errors are returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

// Corrupt reports undecodable store content.
func Corrupt(op string, err error) error {
	return &Error{Op: op, Kind: ErrCorrupt, Err: err}
}

// Is reports whether err is any infrastructure failure produced by this package.
func Is(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrUnavailable
}
