package provider

import (
	"errors"
	"fmt"

	"shopkeeper/internal/models"
)

// ErrorKind classifies provider failures by how the orchestrator may react
// to them.
type ErrorKind string

const (
	// KindConfig means the request can never succeed as configured
	// (missing credentials, no model mapping). Fatal, never retried.
	KindConfig ErrorKind = "config"

	// KindTransport covers network failures, timeouts and non-2xx HTTP
	// responses. Eligible for fallback-chain traversal.
	KindTransport ErrorKind = "transport"

	// KindContent means the provider answered but declined or returned
	// empty content. Surfaced as-is; not retried onto another model since
	// the refusal semantics may differ.
	KindContent ErrorKind = "content"
)

// Error is the structured provider error surfaced to callers. It carries
// enough to render a user-facing message without leaking credentials or raw
// upstream bodies.
type Error struct {
	Kind     ErrorKind
	Provider models.Provider
	Phase    string // "text" | "vision" | "image" | "embedding"
	Status   int    // HTTP status when applicable, 0 otherwise
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error from %s (%s phase, status %d): %s", e.Kind, e.Provider, e.Phase, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error from %s (%s phase): %s", e.Kind, e.Provider, e.Phase, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, p models.Provider, phase, msg string, err error) *Error {
	return &Error{Kind: kind, Provider: p, Phase: phase, Message: msg, Err: err}
}

func configError(p models.Provider, phase, msg string) *Error {
	return newError(KindConfig, p, phase, msg, nil)
}

func transportError(p models.Provider, phase string, status int, msg string, err error) *Error {
	e := newError(KindTransport, p, phase, msg, err)
	e.Status = status
	return e
}

func contentError(p models.Provider, phase, msg string) *Error {
	return newError(KindContent, p, phase, msg, nil)
}

// NewConfigError creates a config error for callers outside the clients that
// need the same taxonomy, such as a missing model mapping.
func NewConfigError(p models.Provider, phase, msg string) *Error {
	return configError(p, phase, msg)
}

// IsTransport reports whether err is a provider error eligible for fallback.
func IsTransport(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindTransport
}

// IsContent reports whether err is a provider content refusal.
func IsContent(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindContent
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindConfig
}

// trimBody caps upstream error bodies so raw provider responses never reach
// callers in full.
func trimBody(body string) string {
	const max = 200
	if len(body) > max {
		return body[:max] + "..."
	}
	return body
}
