// Package errors defines the error taxonomy shared across the completion
// pipeline. Components classify failures by Kind rather than by Go type so
// that the HTTP layer (pkg/server) can map them to status codes in one
// place, and so that internal causes never leak to clients.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure into one of a fixed set of buckets.
type Kind string

const (
	// Unauthenticated: token missing, malformed, or expired.
	Unauthenticated Kind = "unauthenticated"
	// AccountDisabled: valid token, disabled user.
	AccountDisabled Kind = "account_disabled"
	// PermissionDenied: authenticated but lacks role/feature/org for the operation.
	PermissionDenied Kind = "permission_denied"
	// NotFound: resource missing or access denied (merged to prevent probing).
	NotFound Kind = "not_found"
	// ValidationError: request payload violates shape/range.
	ValidationError Kind = "validation_error"
	// ConfigError: principal resolves to no organization where the config is inconsistent.
	ConfigError Kind = "config_error"
	// PluginNotFound: orchestrator or tool name not registered.
	PluginNotFound Kind = "plugin_not_found"
	// ToolFailed: a tool raised or returned an explicit error.
	ToolFailed Kind = "tool_failed"
	// UpstreamUnavailable: KB server, LMS, or LLM provider unreachable or 5xx.
	UpstreamUnavailable Kind = "upstream_unavailable"
	// ProviderAuthError: LLM provider rejected credentials.
	ProviderAuthError Kind = "provider_auth_error"
	// IterationBudgetExceeded: tool-calling loop exceeded max iterations.
	IterationBudgetExceeded Kind = "iteration_budget_exceeded"
	// Internal: anything else.
	Internal Kind = "internal"
)

// Error is a classified pipeline error. Message is safe to return to an
// HTTP client; cause is the wrapped internal error and is never rendered
// to a client directly, only logged.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a classified error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error carrying an internal cause. The cause is
// available via errors.Unwrap but is not part of Message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Is reports whether err (or any error it wraps) is a classified *Error of
// the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it is a classified *Error, and Internal
// otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
