package airfare

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so retry policies and callers can react to it
// without inspecting messages.
type Kind string

const (
	KindInvalidInput          Kind = "INVALID_INPUT"
	KindAuthRequired          Kind = "AUTH_REQUIRED"
	KindAuthExpired           Kind = "AUTH_EXPIRED"
	KindLoginTimeout          Kind = "LOGIN_TIMEOUT"
	KindSessionError          Kind = "SESSION_ERROR"
	KindNavigationFailed      Kind = "NAVIGATION_FAILED"
	KindFormInteractionFailed Kind = "FORM_INTERACTION_FAILED"
	KindTimeout               Kind = "TIMEOUT"
	KindNoResults             Kind = "NO_RESULTS"
	KindParseError            Kind = "PARSE_ERROR"
	KindCaptchaDetected       Kind = "CAPTCHA_DETECTED"
	KindAPIError              Kind = "API_ERROR"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k})
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" when
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// KindSet is a set of kinds, used for the per-source permanent error sets.
type KindSet map[Kind]struct{}

func NewKindSet(kinds ...Kind) KindSet {
	set := KindSet{}
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

func (s KindSet) Has(err error) bool {
	kind := KindOf(err)
	if kind == "" {
		return false
	}
	_, ok := s[kind]
	return ok
}

// MessageOf returns the message of the outermost *Error in err's chain, or
// err.Error() when there is none.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
