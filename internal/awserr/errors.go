// Package awserr defines the typed errors the queue engine returns to callers.
// Codes and messages mirror the emulated queueing API so client code can match
// on them unchanged.
package awserr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error codes.
const (
	CodeMissingRequiredParameter = "MissingRequiredParameter"
	CodeMultipleValidationErrors = "MultipleValidationErrors"
	CodeQueueDoesNotExist        = "QueueDoesNotExist"
	CodeInvalidAttributeName     = "InvalidAttributeName"
	CodeInvalidParameterType     = "InvalidParameterType"
	CodeInvalidParameterValue    = "InvalidParameterValue"
	CodeNotImplemented           = "NotImplemented"
	CodeEmptyBatchRequest        = "EmptyBatchRequest"
	CodeBatchEntryIdsNotDistinct = "BatchEntryIdsNotDistinct"
	CodeTooManyEntriesInBatch    = "TooManyEntriesInBatchRequest"
	CodeReceiptHandleIsInvalid   = "ReceiptHandleIsInvalid"
	CodeInvalidAction            = "InvalidAction"
	CodeInternalError            = "InternalError"
)

// Error is a typed engine error.
type Error struct {
	Code    string
	Message string
	Time    time.Time
	// SenderFault is false only for failures the caller cannot fix by changing
	// the request.
	SenderFault bool
	// Errors holds the individual failures of a MultipleValidationErrors.
	Errors []*Error
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(code, message string) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		Time:        time.Now(),
		SenderFault: true,
	}
}

func MissingRequiredParameter(param string) *Error {
	return newError(CodeMissingRequiredParameter,
		fmt.Sprintf("Missing required parameter '%s' in params", param))
}

// MultipleValidationErrors aggregates errs, keeping their order.
func MultipleValidationErrors(errs []*Error) *Error {
	var b strings.Builder
	fmt.Fprintf(&b, "There were %d validation errors: \n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(&b, "* %s \n", e.Message)
	}
	e := newError(CodeMultipleValidationErrors, b.String())
	e.Errors = errs
	return e
}

func QueueDoesNotExist() *Error {
	return newError(CodeQueueDoesNotExist, "The queue referred to does not exist")
}

func InvalidAttributeName(name string) *Error {
	return newError(CodeInvalidAttributeName,
		fmt.Sprintf("The attribute referred to does not exist: %s", name))
}

func InvalidParameterType(accessor, typ string) *Error {
	return newError(CodeInvalidParameterType,
		fmt.Sprintf("Expected params.%s to be a %s", accessor, typ))
}

func InvalidParameterValue(value any, reason string) *Error {
	return newError(CodeInvalidParameterValue,
		fmt.Sprintf("Value %v is invalid. Reason: %s.", value, reason))
}

func NotImplemented(operation string) *Error {
	e := newError(CodeNotImplemented, fmt.Sprintf("%s is not implemented", operation))
	e.SenderFault = false
	return e
}

func EmptyBatchRequest() *Error {
	return newError(CodeEmptyBatchRequest, "There should be at least one entry in the request")
}

func TooManyEntriesInBatch(n, max int) *Error {
	return newError(CodeTooManyEntriesInBatch,
		fmt.Sprintf("Maximum number of entries per request are %d. You have sent %d.", max, n))
}

func BatchEntryIdsNotDistinct(id string) *Error {
	return newError(CodeBatchEntryIdsNotDistinct,
		fmt.Sprintf("Id %s repeated", id))
}

func ReceiptHandleIsInvalid(handle string) *Error {
	return newError(CodeReceiptHandleIsInvalid,
		fmt.Sprintf("The receipt handle %q is not valid for any in-flight message", handle))
}

func InvalidAction(action string) *Error {
	return newError(CodeInvalidAction,
		fmt.Sprintf("The action %s is not valid for this endpoint", action))
}

// As returns err as an *Error when it is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// CodeOf returns the code of err, or CodeInternalError for untyped errors.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternalError
}
