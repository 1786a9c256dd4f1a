package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorCode is the machine-readable code of a failed call. It decides the
// HTTP status of the response.
type ErrorCode string

// Codes the router reports when a call never reaches its API method:
// missing or unknown identity headers, an undecodable or invalid payload,
// an oversized body, or a panic.
const (
	CodeInvalidArgument   ErrorCode = "invalid_argument"
	CodeMethodNotAllowed  ErrorCode = "method_not_allowed"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	CodeInternal          ErrorCode = "internal"
)

// Codes for API methods, constructors and middleware to fail a call with.
const (
	CodeUnauthenticated  ErrorCode = "unauthenticated"
	CodePermissionDenied ErrorCode = "permission_denied"
	CodeNotFound         ErrorCode = "not_found"
	CodeConflict         ErrorCode = "conflict"
	CodeAlreadyExists    ErrorCode = "already_exists"
	CodeGone             ErrorCode = "gone"
	CodeCanceled         ErrorCode = "canceled"
	CodeNotImplemented   ErrorCode = "not_implemented"
	CodeUnavailable      ErrorCode = "unavailable"
	CodeDeadlineExceeded ErrorCode = "deadline_exceeded"
)

// statusClientClosedRequest is nginx's status for a request the client gave up on.
const statusClientClosedRequest = 499

var codeStatus = map[ErrorCode]int{
	CodeInvalidArgument:   http.StatusBadRequest,
	CodeMethodNotAllowed:  http.StatusMethodNotAllowed,
	CodeResourceExhausted: http.StatusTooManyRequests,
	CodeInternal:          http.StatusInternalServerError,
	CodeUnauthenticated:   http.StatusUnauthorized,
	CodePermissionDenied:  http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeConflict:          http.StatusConflict,
	CodeAlreadyExists:     http.StatusConflict,
	CodeGone:              http.StatusGone,
	CodeCanceled:          statusClientClosedRequest,
	CodeNotImplemented:    http.StatusNotImplemented,
	CodeUnavailable:       http.StatusServiceUnavailable,
	CodeDeadlineExceeded:  http.StatusGatewayTimeout,
}

// HTTPStatus returns the response status for the code. Unknown codes are
// reported as 500.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether the code puts the blame on the caller.
func (c ErrorCode) IsClientError() bool {
	status := c.HTTPStatus()
	return status >= 400 && status < 500
}

// Error is sent to the client in the {"error": ...} envelope of a failed
// call. Return one from an API method or middleware to pick the code and
// message the client sees; any other error is mapped by the router's
// ErrorTransformer.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError returns an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf is like NewError with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithDetail returns a copy of e with key set in its details.
func (e *Error) WithDetail(key string, value any) *Error {
	return e.WithDetails(map[string]any{key: value})
}

// WithDetails returns a copy of e with details merged into its own.
// With no details, e itself is returned.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := maps.Clone(e.Details)
	if merged == nil {
		merged = make(map[string]any, len(details))
	}
	maps.Copy(merged, details)
	return &Error{Code: e.Code, Message: e.Message, Details: merged}
}

// ErrorTransformer turns an error returned while serving a call into the
// Error sent to the client. Returning nil defers to DefaultErrorTransformer.
type ErrorTransformer func(error) *Error

// DefaultErrorTransformer keeps an *Error found in the chain and maps
// context, body size, and validation failures to their codes. Joined errors
// take the code of the first and the messages of all. Anything else is
// internal.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}

	var (
		apiErr   *Error
		tooLarge *http.MaxBytesError
		invalid  validator.ValidationErrors
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CodeDeadlineExceeded, "request timeout")
	case errors.Is(err, context.Canceled):
		return NewError(CodeCanceled, "context canceled")
	case errors.As(err, &tooLarge):
		return Errorf(CodeResourceExhausted, "request body exceeds %d bytes", tooLarge.Limit)
	case errors.As(err, &invalid):
		return validationError(invalid)
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := joined.Unwrap(); len(errs) > 0 {
			first := DefaultErrorTransformer(errs[0])
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return &Error{Code: first.Code, Message: strings.Join(msgs, "; "), Details: first.Details}
		}
	}

	return NewError(CodeInternal, err.Error())
}

func validationError(errs validator.ValidationErrors) *Error {
	details := make(map[string]any, len(errs))
	msgs := make([]string, len(errs))
	for i, fe := range errs {
		msg := describeFieldError(fe)
		details[fe.Field()] = msg
		msgs[i] = fe.Field() + ": " + msg
	}
	return &Error{Code: CodeInvalidArgument, Message: strings.Join(msgs, "; "), Details: details}
}

// fieldRuleMessages describe failed validation rules. A %s verb receives
// the rule's parameter.
var fieldRuleMessages = map[string]string{
	"required": "required",
	"min":      "must be at least %s characters",
	"max":      "must be at most %s characters",
	"len":      "must be exactly %s characters",
	"eq":       "must equal %s",
	"ne":       "must not equal %s",
	"gt":       "must be greater than %s",
	"gte":      "must be at least %s",
	"lt":       "must be less than %s",
	"lte":      "must be at most %s",
	"oneof":    "must be one of: %s",
	"email":    "must be a valid email address",
	"url":      "must be a valid URL",
	"uuid":     "must be a valid UUID",
}

func describeFieldError(fe validator.FieldError) string {
	if format, ok := fieldRuleMessages[fe.Tag()]; ok {
		if strings.Contains(format, "%s") {
			return fmt.Sprintf(format, fe.Param())
		}
		return format
	}
	if fe.Param() != "" {
		return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// writeError sends the error envelope with the status of its code.
func writeError(w http.ResponseWriter, apiErr *Error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code.HTTPStatus())
	if err := encodeErrorResponse(w, apiErr); err != nil {
		logger.Error("failed to encode error response",
			slog.String("code", string(apiErr.Code)),
			slog.String("message", apiErr.Message),
			slog.Any("error", err))
	}
}
