// Package errors provides the typed error surface for nostr-git-sub004.
// Every public operation returns either a success value or a *NostrGitError
// carrying a Kind, a human message, and operation context. No bare exceptions
// escape public APIs except invariant violations, which panic.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags an error into one of the categories fixed by the error handling
// design. Callers branch on Kind, not on Message.
type Kind string

const (
	InvalidInput     Kind = "InvalidInput"
	AuthRequired     Kind = "AuthRequired"
	Network          Kind = "Network"
	NotFound         Kind = "NotFound"
	PreflightBlocked Kind = "PreflightBlocked"
	PushFailed       Kind = "PushFailed"
	Unsupported      Kind = "Unsupported"
	Cancelled        Kind = "Cancelled"
	Timeout          Kind = "Timeout"
	Unknown          Kind = "Unknown"
)

// PreflightReason enumerates why a preflight gate blocked a push.
type PreflightReason string

const (
	ReasonUncommittedChanges         PreflightReason = "uncommitted_changes"
	ReasonShallowClone                PreflightReason = "shallow_clone"
	ReasonRemoteAhead                 PreflightReason = "remote_ahead"
	ReasonForcePushRequiresConfirm     PreflightReason = "force_push_requires_confirmation"
)

// NostrGitError is the only error type public APIs in this module return.
type NostrGitError struct {
	Kind    Kind
	Message string
	Code    string // optional, e.g. HTTP status or vendor error code
	Err     error

	Operation string
	Remote    string
	Ref       string

	// CORS marks a Network-kind error as browser CORS-class (substring match
	// on "CORS" or "Access-Control" in the underlying transport error).
	CORS bool
	// Reason qualifies a PreflightBlocked error.
	Reason PreflightReason
}

func (e *NostrGitError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Operation != "" {
		base = fmt.Sprintf("%s (op=%s)", base, e.Operation)
	}
	if e.Remote != "" {
		base = fmt.Sprintf("%s (remote=%s)", base, e.Remote)
	}
	if e.Err != nil {
		base = fmt.Sprintf("%s: %v", base, e.Err)
	}
	return base
}

func (e *NostrGitError) Unwrap() error {
	return e.Err
}

// New creates a NostrGitError with no wrapped cause.
func New(kind Kind, message string) *NostrGitError {
	return &NostrGitError{Kind: kind, Message: message}
}

// Wrap creates a NostrGitError that wraps an underlying cause.
func Wrap(kind Kind, message string, err error) *NostrGitError {
	return &NostrGitError{Kind: kind, Message: message, Err: err}
}

// WithOp sets the operation context and returns the same error for chaining.
func (e *NostrGitError) WithOp(op string) *NostrGitError {
	e.Operation = op
	return e
}

// WithRemote sets the remote context.
func (e *NostrGitError) WithRemote(remote string) *NostrGitError {
	e.Remote = remote
	return e
}

// WithRef sets the ref context.
func (e *NostrGitError) WithRef(ref string) *NostrGitError {
	e.Ref = ref
	return e
}

// Convenience constructors.

func ErrInvalidInput(message string) *NostrGitError {
	return New(InvalidInput, message)
}

func ErrAuthRequired(message string) *NostrGitError {
	return New(AuthRequired, message)
}

// ErrNetwork builds a Network-kind error, classifying CORS-class transport
// failures by substring match the way the sync engine does when deciding
// whether to fall through to a warning instead of a hard failure.
func ErrNetwork(message string, err error) *NostrGitError {
	e := Wrap(Network, message, err)
	e.CORS = isCORSClass(message) || (err != nil && isCORSClass(err.Error()))
	return e
}

func ErrNotFound(resource string) *NostrGitError {
	return New(NotFound, fmt.Sprintf("%s not found", resource))
}

func ErrPreflightBlocked(reason PreflightReason) *NostrGitError {
	return &NostrGitError{Kind: PreflightBlocked, Message: string(reason), Reason: reason}
}

func ErrPushFailed(remote, code, message string) *NostrGitError {
	return &NostrGitError{Kind: PushFailed, Message: message, Code: code, Remote: remote}
}

func ErrUnsupported(message string) *NostrGitError {
	return New(Unsupported, message)
}

func ErrCancelled(operation string) *NostrGitError {
	return &NostrGitError{Kind: Cancelled, Message: "operation cancelled", Operation: operation}
}

func ErrTimeout(operation string) *NostrGitError {
	return &NostrGitError{Kind: Timeout, Message: "operation timed out", Operation: operation}
}

func ErrUnknown(message string, err error) *NostrGitError {
	return Wrap(Unknown, message, err)
}

// IsNostrGitError reports whether err is (or wraps) a *NostrGitError.
func IsNostrGitError(err error) bool {
	var e *NostrGitError
	return errors.As(err, &e)
}

// AsNostrGitError attempts to unwrap err into a *NostrGitError.
func AsNostrGitError(err error) (*NostrGitError, bool) {
	var e *NostrGitError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsAuthClass reports whether err represents an authentication-class failure
// (HTTP 401/403 or message containing "Unauthorized"). URL fallback (§4.I)
// stops retrying other candidate URLs on this class of error.
func IsAuthClass(err error) bool {
	if e, ok := AsNostrGitError(err); ok {
		if e.Kind == AuthRequired {
			return true
		}
		if e.Code == "401" || e.Code == "403" {
			return true
		}
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unauthorized") || strings.Contains(msg, "401") || strings.Contains(msg, "403")
}

// IsCORSClass reports whether err is a CORS-class network failure.
func IsCORSClass(err error) bool {
	if e, ok := AsNostrGitError(err); ok && e.Kind == Network {
		return e.CORS
	}
	if err == nil {
		return false
	}
	return isCORSClass(err.Error())
}

// IsNetworkClass reports whether err should be treated as transient/network
// for continue-on-failure purposes (URL fallback, sync fall-through).
func IsNetworkClass(err error) bool {
	if e, ok := AsNostrGitError(err); ok {
		return e.Kind == Network || e.Kind == Timeout
	}
	return false
}

func isCORSClass(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "cors") || strings.Contains(lower, "access-control")
}
