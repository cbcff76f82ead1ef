package services

import (
	"errors"
	"fmt"

	"github.com/CyberwizD/driver-status-relay/internal/models"
)

// ErrRecipientUnregistered is wrapped by NotFoundError.
var ErrRecipientUnregistered = errors.New("recipient has no registered push token")

// ValidationError reports a required field missing from client input.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + e.Field
}

func missing(field string) error {
	return &ValidationError{Field: field}
}

// NotFoundError reports a recipient key without a token in the directory.
type NotFoundError struct {
	Key models.RecipientKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, ErrRecipientUnregistered)
}

func (e *NotFoundError) Unwrap() error { return ErrRecipientUnregistered }

// DeliveryError reports that the push provider did not deliver the message.
type DeliveryError struct {
	Provider string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Provider, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// DirectoryError reports a failure of the token store backend.
type DirectoryError struct {
	Op  string
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }
