// Package classifier implements message intent classification: LLM-backed
// gateways that resolve every aspect of a MessageIntent in a single round
// trip, and a deterministic keyword fallback for when a gateway fails.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/haasonsaas/attune/pkg/models"
)

// Classifier produces a structured judgment about one message, given a short
// rolling context window.
type Classifier interface {
	Classify(ctx context.Context, message string, turns []models.ContextTurn) (*models.MessageIntent, error)
}

// The gateway raises exactly two error kinds. Both are handled at the
// dispatcher boundary and routed to the fallback; neither reaches callers of
// the dispatcher.
var (
	// ErrUnavailable marks transient failures: network, quota, timeout.
	ErrUnavailable = errors.New("classifier unavailable")

	// ErrMalformed marks endpoint responses that fail schema validation.
	ErrMalformed = errors.New("malformed classifier response")
)

// ErrorKind categorizes a gateway failure.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindMalformed   ErrorKind = "malformed"
)

// GatewayError is a structured classification failure. It matches
// ErrUnavailable or ErrMalformed under errors.Is according to its kind.
type GatewayError struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Provider)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status=%d", e.Status)
	}
	if e.Message != "" {
		msg += " " + e.Message
	} else if e.Cause != nil {
		msg += " " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches one of the sentinel kinds.
func (e *GatewayError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

func unavailable(provider string, status int, cause error) *GatewayError {
	return &GatewayError{Kind: KindUnavailable, Provider: provider, Status: status, Cause: cause}
}

func malformed(provider, message string, cause error) *GatewayError {
	return &GatewayError{Kind: KindMalformed, Provider: provider, Message: message, Cause: cause}
}
