package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration covers missing or invalid credentials, parameter
	// violations and stale or mismatched indices. Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation indicates credential fields failed schema validation.
	ErrValidation = fmt.Errorf("%w: validation failed", ErrConfiguration)

	// ErrStaleIndex indicates a retriever must be rebuilt before it is queried.
	ErrStaleIndex = fmt.Errorf("%w: index is stale", ErrConfiguration)

	// ErrSignatureMismatch indicates vectors from different embedding models met.
	ErrSignatureMismatch = fmt.Errorf("%w: embedding signature mismatch", ErrConfiguration)

	// ErrUnknownProvider indicates the provider id is not in the registry.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnknownModel indicates the model id is not offered by the provider.
	ErrUnknownModel = errors.New("unknown model")

	// ErrEmbedding wraps an upstream embedding failure.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmbeddingTimeout indicates an embedding call exceeded its deadline.
	ErrEmbeddingTimeout = errors.New("embedding timed out")

	// ErrGeneration wraps an upstream generation failure.
	ErrGeneration = errors.New("generation failed")

	// ErrGenerationTimeout indicates a generation call exceeded its deadline.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrRegistryUnavailable indicates the registry's backing store failed.
	ErrRegistryUnavailable = errors.New("registry store unavailable")

	// ErrClosed indicates the handle or session has been closed and must be
	// initialised again.
	ErrClosed = fmt.Errorf("%w: closed", ErrConfiguration)
)

// redactedMarker replaces secret values in messages.
const redactedMarker = "***REDACTED***"

// OpError carries the context needed to render an actionable message:
// the error kind, the operation and the provider/model pair involved.
// errors.Is matches both Kind and the wrapped cause.
type OpError struct {
	Kind     error
	Op       string
	Provider string
	Model    string
	Err      error
}

// NewOpError creates an OpError.
func NewOpError(kind error, op, provider, model string, err error) *OpError {
	return &OpError{Kind: kind, Op: op, Provider: provider, Model: model, Err: err}
}

// Error renders "op provider/model: kind: cause".
func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Provider != "" {
		b.WriteString(" ")
		b.WriteString(e.Provider)
		if e.Model != "" {
			b.WriteString("/")
			b.WriteString(e.Model)
		}
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// redactedError keeps the cause chain while hiding secret values in its text.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// Redact returns err with every occurrence of the given secrets replaced in
// its message. The original error stays reachable through errors.Is/As.
func Redact(err error, secrets ...string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	changed := false
	for _, s := range secrets {
		if s == "" || !strings.Contains(msg, s) {
			continue
		}
		msg = strings.ReplaceAll(msg, s, redactedMarker)
		changed = true
	}
	if !changed {
		return err
	}
	return &redactedError{msg: msg, err: err}
}
