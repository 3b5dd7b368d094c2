package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures so callers can react without
// matching on message text.
type ErrorKind string

const (
	ErrSourceConnectionFailed ErrorKind = "SOURCE_CONNECTION_FAILED"
	ErrSourceQueryFailed      ErrorKind = "SOURCE_QUERY_FAILED"
	ErrSourceCompanyNotFound  ErrorKind = "SOURCE_COMPANY_NOT_FOUND"
	ErrInvalidMapping         ErrorKind = "INVALID_MAPPING"
	ErrInvalidRequest         ErrorKind = "INVALID_REQUEST"
	ErrSessionNotFound        ErrorKind = "SESSION_NOT_FOUND"
	ErrSessionInvalidState    ErrorKind = "SESSION_INVALID_STATE"
	ErrTransformFailed        ErrorKind = "TRANSFORM_FAILED" // per record, captured not thrown
	ErrImportFailed           ErrorKind = "IMPORT_FAILED"
	ErrRollbackFailed         ErrorKind = "ROLLBACK_FAILED"
)

// MigrationError is the typed error returned by the engine.
type MigrationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Is reports a match when target is a *MigrationError of the same kind,
// so errors.Is(err, models.NewError(kind, "")) works as a kind check.
func (e *MigrationError) Is(target error) bool {
	var t *MigrationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind ErrorKind, format string, args ...any) *MigrationError {
	return &MigrationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, err error, format string, args ...any) *MigrationError {
	return &MigrationError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost MigrationError in err's chain,
// or an empty kind when there is none.
func KindOf(err error) ErrorKind {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// IsKind is shorthand for KindOf(err) == kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
