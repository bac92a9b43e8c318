// Package failure defines the closed set of error codes returned by scheduling
// operations.
package failure

import (
	"errors"
	"fmt"
)

// Code is a wire-visible failure identifier.
type Code string

const (
	APIKeyNonexistent           Code = "API_KEY_NONEXISTENT"
	TimeUtilityFunctionNotValid Code = "TIME_UTILITY_FUNCTION_NOT_VALID"
	NameEmpty                   Code = "GOAL_NAME_EMPTY"
	DurationNotValid            Code = "GOAL_DURATION_NOT_VALID"
	ScheduleNotValid            Code = "GOAL_SCHEDULE_NOT_VALID"
	StatusNotValid              Code = "GOAL_STATUS_NOT_VALID"
	WindowNotValid              Code = "SCHEDULE_WINDOW_NOT_VALID"
	TokenRequestNotValid        Code = "TOKEN_REQUEST_NOT_VALID"

	TimeUtilityFunctionNonexistent Code = "TIME_UTILITY_FUNCTION_NONEXISTENT"
	GoalNonexistent                Code = "GOAL_NONEXISTENT"
	NamedEntityNonexistent         Code = "NAMED_ENTITY_NONEXISTENT"
	GoalTemplateNonexistent        Code = "GOAL_TEMPLATE_NONEXISTENT"
	PatternNonexistent             Code = "PATTERN_NONEXISTENT"
	GoalIntentNonexistent          Code = "GOAL_INTENT_NONEXISTENT"

	Unknown Code = "UNKNOWN"
)

// Kind groups codes by how callers should react.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindAuth        Kind = "auth"
	KindReferential Kind = "referential"
	KindUnknown     Kind = "unknown"
)

var kinds = map[Code]Kind{
	APIKeyNonexistent:              KindAuth,
	TimeUtilityFunctionNotValid:    KindValidation,
	NameEmpty:                      KindValidation,
	DurationNotValid:               KindValidation,
	ScheduleNotValid:               KindValidation,
	StatusNotValid:                 KindValidation,
	WindowNotValid:                 KindValidation,
	TokenRequestNotValid:           KindValidation,
	TimeUtilityFunctionNonexistent: KindReferential,
	GoalNonexistent:                KindReferential,
	NamedEntityNonexistent:         KindReferential,
	GoalTemplateNonexistent:        KindReferential,
	PatternNonexistent:             KindReferential,
	GoalIntentNonexistent:          KindReferential,
	Unknown:                        KindUnknown,
}

// Kind returns the kind of a code.
func (c Code) Kind() Kind {
	if k, ok := kinds[c]; ok {
		return k
	}
	return KindUnknown
}

// Error carries a failure code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so errors.Is(err, failure.New(code, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New returns a failure without a cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code to err.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the failure code of err; anything outside the taxonomy is Unknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return Unknown
}

// Has reports whether err carries code.
func Has(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
