// Package providers defines the common adapter contract for generation
// backends and the closed model-id routing table.
package providers

import (
	"context"
	"fmt"
	"strings"
)

// Provider tags the known generation backends. The set is closed: adding a
// backend means adding a tag and a case in FromModelID.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderKling  Provider = "kling"
	ProviderHailuo Provider = "hailuo"
	ProviderOpenAI Provider = "openai"
)

// FromModelID maps a model identifier to its provider. Unrecognized ids
// default to Gemini/Veo, which also serves the veo-* video models.
func FromModelID(modelID string) Provider {
	switch {
	case strings.HasPrefix(modelID, "kling-"):
		return ProviderKling
	case strings.HasPrefix(modelID, "hailuo-"):
		return ProviderHailuo
	case strings.HasPrefix(modelID, "gpt-image-"):
		return ProviderOpenAI
	default:
		return ProviderGemini
	}
}

// RequestKind tells an adapter which media family the caller expects.
type RequestKind string

const (
	RequestKindImage RequestKind = "image"
	RequestKindVideo RequestKind = "video"
)

// Request is the provider-neutral generation request. Adapters normalize it
// into their own wire protocol.
type Request struct {
	Kind            RequestKind
	Model           string
	Prompt          string
	Images          []string // base64 payloads, composition order
	AspectRatio     string
	Resolution      string
	Duration        int
	LastFrameBase64 string // frame-interpolated video continuation
}

// Adapter is implemented once per generation backend. Generate blocks until
// the provider reaches a terminal state, polling where the backend is
// asynchronous, and returns the raw media bytes.
type Adapter interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// ErrorKind classifies provider failures for the dispatcher's
// user-facing normalization.
type ErrorKind string

const (
	ErrorKindConfig     ErrorKind = "config"     // missing credentials, fails before any network call
	ErrorKindPermission ErrorKind = "permission" // 403 / entity-not-found patterns
	ErrorKindTransient  ErrorKind = "transient"  // network, non-2xx, malformed body
	ErrorKindTimeout    ErrorKind = "timeout"    // async poll budget exceeded
)

// Error is the typed failure every adapter raises on a non-success terminal
// state.
type Error struct {
	Provider Provider
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigError reports missing credentials for a provider.
func NewConfigError(provider Provider, message string) *Error {
	return &Error{Provider: provider, Kind: ErrorKindConfig, Message: message}
}

// NewTransientError wraps a network or protocol failure.
func NewTransientError(provider Provider, message string, err error) *Error {
	return &Error{Provider: provider, Kind: ErrorKindTransient, Message: message, Err: err}
}

// NewTimeoutError reports an exhausted poll budget.
func NewTimeoutError(provider Provider, message string) *Error {
	return &Error{Provider: provider, Kind: ErrorKindTimeout, Message: message}
}
