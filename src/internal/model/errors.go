package model

import (
	"errors"
	"fmt"
)

type AppError string

func (e AppError) Error() string { return string(e) }

const (
	ErrNotFound      = AppError("NOT_FOUND")
	ErrValidation    = AppError("VALIDATION_FAILED")
	ErrPrecondition  = AppError("PRECONDITION_VIOLATION")
	ErrTransport     = AppError("TRANSPORT_FAILURE")
	ErrPartialAccept = AppError("PARTIAL_ACCEPT")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Is(target error) bool { return target == ErrValidation }

type PreconditionError struct {
	Op     string
	Reason string
}

func (e PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// PartialAcceptError reports that a work item was created but linking it to
// the item document failed. The work item is not rolled back.
type PartialAcceptError struct {
	ItemID     string
	WorkItemID int
	Err        error
}

func (e PartialAcceptError) Error() string {
	return fmt.Sprintf("work item %d created but item %s was not updated: %v", e.WorkItemID, e.ItemID, e.Err)
}

func (e PartialAcceptError) Is(target error) bool { return target == ErrPartialAccept }

func (e PartialAcceptError) Unwrap() error { return e.Err }

type transportError struct {
	op  string
	err error
}

func (e transportError) Error() string { return e.op + ": " + e.err.Error() }

func (e transportError) Is(target error) bool { return target == ErrTransport }

func (e transportError) Unwrap() error { return e.err }

// Transport wraps a collaborator failure. Not-found results and errors that
// already carry the taxonomy pass through unchanged.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTransport) {
		return err
	}
	return transportError{op: op, err: err}
}

// Error Surface keys.
const ErrorKeyEventDirectory = "event_directory"

func EventErrorKey(eventID string) string { return "event_" + eventID }

func ItemsErrorKey(eventID string) string { return "items_" + eventID }

func ItemErrorKey(itemID string) string { return "item_" + itemID }

func CommentsErrorKey(itemID string) string { return "comments_" + itemID }

type ErrorMessage struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}
