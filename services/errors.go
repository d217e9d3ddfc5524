package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies a failure for the HTTP layer.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindConflict
	KindNotFound
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// Error is the single error type crossing the service boundary. Message is
// safe to show to the caller; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Credentials marks an authentication failure caused by the signin
	// credentials themselves rather than by a bearer token.
	Credentials bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrValidation)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrProvider       = &Error{Kind: KindProvider}
)

func validationError(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func authError(op, msg string, cause error) error {
	return &Error{Kind: KindAuthentication, Op: op, Message: msg, Err: cause}
}

func credentialsError(op, msg string, cause error) error {
	return &Error{Kind: KindAuthentication, Op: op, Message: msg, Credentials: true, Err: cause}
}

func conflictError(op, msg string, cause error) error {
	return &Error{Kind: KindConflict, Op: op, Message: msg, Err: cause}
}

// providerError keeps the downstream message visible but strips anything
// that looks like a credential.
func providerError(op string, cause error) error {
	msg := "provider request failed"
	if cause != nil {
		msg = RedactSecrets(cause.Error())
	}
	return &Error{Kind: KindProvider, Op: op, Message: msg, Err: cause}
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var (
	jwtPattern    = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
	keyPattern    = regexp.MustCompile(`(?i)(apikey|api_key|key|secret|password)=([^&\s]+)`)
)

// RedactSecrets removes bearer tokens, JWTs and key=value secrets.
func RedactSecrets(s string) string {
	s = bearerPattern.ReplaceAllString(s, "Bearer [REDACTED]")
	s = jwtPattern.ReplaceAllString(s, "[REDACTED]")
	s = keyPattern.ReplaceAllString(s, "$1=[REDACTED]")
	return strings.TrimSpace(s)
}
