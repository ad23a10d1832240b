package model

import (
	"errors"
	"fmt"
)

// Error is the typed error raised by the orbit core.
//
// Every failure the core reports carries a Code plus enough structured
// context (record identity, transform id, relationship) for the caller to
// diagnose it without parsing the message.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Record identifies the affected record, if any.
	Record Identity

	// TransformID identifies the affected transform, if any.
	TransformID string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorises core errors.
type ErrorCode string

const (
	// ErrCodeRecordIdentity indicates an operation is missing its type or id.
	ErrCodeRecordIdentity ErrorCode = "RECORD_IDENTITY"

	// ErrCodeRecordNotFound indicates an operation targets a missing record.
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// ErrCodeDuplicateTransform indicates a transform id is already logged.
	ErrCodeDuplicateTransform ErrorCode = "DUPLICATE_TRANSFORM"

	// ErrCodeTransformNotLogged indicates a lookup on an unknown transform id.
	ErrCodeTransformNotLogged ErrorCode = "TRANSFORM_NOT_LOGGED"

	// ErrCodeSchemaConsistency indicates a reference to an undeclared model
	// or relationship.
	ErrCodeSchemaConsistency ErrorCode = "SCHEMA_CONSISTENCY"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case !e.Record.IsZero() && e.TransformID != "":
		return fmt.Sprintf("%s: %s (record=%s, transform=%s)", e.Code, e.Message, e.Record, e.TransformID)
	case !e.Record.IsZero():
		return fmt.Sprintf("%s: %s (record=%s)", e.Code, e.Message, e.Record)
	case e.TransformID != "":
		return fmt.Sprintf("%s: %s (transform=%s)", e.Code, e.Message, e.TransformID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewRecordIdentityError reports an operation built without type or id.
func NewRecordIdentityError(kind OpKind, id Identity) *Error {
	return &Error{
		Code:    ErrCodeRecordIdentity,
		Message: fmt.Sprintf("%s requires a record type and id (type=%q, id=%q)", kind, id.Type, id.ID),
		Details: map[string]string{"op": string(kind)},
	}
}

// NewRecordNotFoundError reports an operation on a missing record.
func NewRecordNotFoundError(id Identity) *Error {
	return &Error{
		Code:    ErrCodeRecordNotFound,
		Message: fmt.Sprintf("record not found: %s", id),
		Record:  id,
	}
}

// NewDuplicateTransformError reports an append of an already-logged id.
func NewDuplicateTransformError(transformID string) *Error {
	return &Error{
		Code:        ErrCodeDuplicateTransform,
		Message:     "transform is already in the log",
		TransformID: transformID,
	}
}

// NewTransformNotLoggedError reports a lookup on an unknown transform id.
func NewTransformNotLoggedError(transformID string) *Error {
	return &Error{
		Code:        ErrCodeTransformNotLogged,
		Message:     "transform is not in the log",
		TransformID: transformID,
	}
}

// NewSchemaConsistencyError reports a reference to an undeclared model or
// relationship.
func NewSchemaConsistencyError(model, relationship, message string) *Error {
	e := &Error{
		Code:    ErrCodeSchemaConsistency,
		Message: message,
		Details: map[string]string{"model": model},
	}
	if relationship != "" {
		e.Details["relationship"] = relationship
	}
	return e
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsRecordIdentity returns true if err is a RECORD_IDENTITY error.
func IsRecordIdentity(err error) bool { return hasCode(err, ErrCodeRecordIdentity) }

// IsRecordNotFound returns true if err is a RECORD_NOT_FOUND error.
func IsRecordNotFound(err error) bool { return hasCode(err, ErrCodeRecordNotFound) }

// IsDuplicateTransform returns true if err is a DUPLICATE_TRANSFORM error.
func IsDuplicateTransform(err error) bool { return hasCode(err, ErrCodeDuplicateTransform) }

// IsTransformNotLogged returns true if err is a TRANSFORM_NOT_LOGGED error.
func IsTransformNotLogged(err error) bool { return hasCode(err, ErrCodeTransformNotLogged) }

// IsSchemaConsistency returns true if err is a SCHEMA_CONSISTENCY error.
func IsSchemaConsistency(err error) bool { return hasCode(err, ErrCodeSchemaConsistency) }
