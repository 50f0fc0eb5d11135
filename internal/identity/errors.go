// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Error codes attached to oops errors returned by this package.
const (
	CodeDuplicateEmail         = "DUPLICATE_EMAIL"
	CodeNotFound               = "NOT_FOUND"
	CodeEmailAlreadyRegistered = "EMAIL_ALREADY_REGISTERED"
	CodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	CodeInvalidCredential      = "INVALID_CREDENTIAL"
	CodeValidation             = "VALIDATION_FAILED"
	CodeNoActiveSession        = "NO_ACTIVE_SESSION"
	CodePersistence            = "PERSISTENCE_FAILED"
	CodeCorruptSnapshot        = "SNAPSHOT_CORRUPT"
)

// Sentinels for errors.Is. Store-level kinds (ErrDuplicateEmail, ErrNotFound)
// never escape the Manager; it translates them.
var (
	ErrDuplicateEmail         = errors.New("duplicate email")
	ErrNotFound               = errors.New("not found")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrAccountNotFound        = errors.New("account not found")
	ErrInvalidCredential      = errors.New("invalid credential")
	ErrValidation             = errors.New("validation failed")
	ErrNoActiveSession        = errors.New("no active session")
	ErrPersistence            = errors.New("persistence failed")
	ErrCorruptSnapshot        = errors.New("corrupt snapshot")
)

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Is lets errors.Is(err, ErrValidation) match any FieldError.
func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(field, message string) error {
	return oops.Code(CodeValidation).
		With("field", field).
		Wrap(&FieldError{Field: field, Message: message})
}

// persistenceError hides the backend failure behind ErrPersistence while
// keeping its text in the error context for logs.
func persistenceError(operation string, cause error) error {
	return oops.Code(CodePersistence).
		With("operation", operation).
		With("cause", cause.Error()).
		Wrap(ErrPersistence)
}

// UserMessage returns a short message suitable for inline form display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var fe *FieldError
	switch {
	case errors.As(err, &fe):
		return sentence(fe.Message)
	case errors.Is(err, ErrEmailAlreadyRegistered), errors.Is(err, ErrDuplicateEmail):
		return "An account with this email already exists."
	case errors.Is(err, ErrAccountNotFound):
		return "No account found with this email."
	case errors.Is(err, ErrInvalidCredential):
		return "Incorrect password."
	case errors.Is(err, ErrNoActiveSession):
		return "Please log in to continue."
	default:
		return "Something went wrong. Please try again."
	}
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToUpper(r)) + s[size:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}
