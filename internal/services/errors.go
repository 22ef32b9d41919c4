package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence"
	}
	return "unknown"
}

// Error codes surfaced to callers.
const (
	CodeInvalidInput      = "invalid_input"
	CodeInvalidDate       = "invalid_date"
	CodeTemplatesNotFound = "templates_not_found"
	CodeDuplicateInstance = "duplicate_instance"
	CodeDuplicateName     = "duplicate_name"
	CodeSourceNotFound    = "source_not_found"
	CodeNotFound          = "not_found"
	CodeInstanceSubmitted = "instance_submitted"
	CodeIncomplete        = "incomplete"
	CodePersistence       = "persistence"
)

// Error is the single error type returned by the engine. Conflicts carries
// the names or ids a caller needs to resolve a conflict without re-querying.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Conflicts []string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Conflicts) > 0 {
		msg += ": " + strings.Join(e.Conflicts, ", ")
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func notFoundError(code, msg string, ids ...string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg, Conflicts: ids}
}

func conflictError(code, msg string, conflicts ...string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg, Conflicts: conflicts}
}

func persistenceError(err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodePersistence, Message: "storage failure", Err: err}
}

// asEngineError passes engine errors through and wraps anything else as a
// persistence failure.
func asEngineError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return persistenceError(err)
}

// KindOf reports the kind of err, or 0 when err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// isBusy reports a SQLite lock timeout. Other drivers never return it.
func isBusy(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked)
}
