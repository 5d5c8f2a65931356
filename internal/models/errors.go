package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSubjectNotFound is returned when a forecast subject does not resolve
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrRangeInvalid is returned when an explicit start date is after the end date
	ErrRangeInvalid = errors.New("invalid date range")
	// ErrUpstreamUnavailable is returned when the record store or ledger fails
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrSubjectNotFound
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// RangeError reports a start date after its end date
type RangeError struct {
	Start time.Time
	End   time.Time
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("start date %s is after end date %s",
		e.Start.Format(DateLayout), e.End.Format(DateLayout))
}

func (e *RangeError) Is(target error) bool {
	return target == ErrRangeInvalid
}

func (e *RangeError) IsTransient() bool {
	return false
}

// UpstreamError wraps a failure of the record store or ledger
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// IsTransient returns true; the caller may retry the whole request
func (e *UpstreamError) IsTransient() bool {
	return true
}

// ValidationError represents a malformed request parameter
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
