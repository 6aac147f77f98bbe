package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Typed provider errors. The orchestrator classifies outcomes with errors.As:
// APIKeyError and PaymentRequiredError are user-fixable, RateLimitError is
// transient and never triggers conversation rollback, ProviderResponseError
// covers every other non-success response, and NetworkError covers transport
// failures before any response arrived. Cancellation is not an error here; it
// surfaces as context.Canceled from the read loop.

// APIKeyError means the backend rejected the credential (HTTP 401).
type APIKeyError struct {
	Provider string
}

func (e *APIKeyError) Error() string {
	return fmt.Sprintf("%s: invalid or missing API key", e.Provider)
}

// RateLimitError means the backend throttled the request (HTTP 429).
type RateLimitError struct {
	Provider string
	Message  string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: rate limit exceeded: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: rate limit exceeded", e.Provider)
}

// PaymentRequiredError means the account needs funds (HTTP 402). Carries the
// provider message when one could be extracted.
type PaymentRequiredError struct {
	Provider string
	Message  string
}

func (e *PaymentRequiredError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: payment required: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: payment required", e.Provider)
}

// ProviderResponseError covers any other non-success status or a missing
// response body.
type ProviderResponseError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: provider error (status %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: provider error (status %d)", e.Provider, e.Status)
}

// NetworkError is a transport-level failure before a response was received.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsRateLimit reports whether err classifies as a rate-limit failure.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// extractErrorMessage pulls a human-readable message out of a provider error
// body. Both backends use {"error": {"message": ...}}.
func extractErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error.Message
}

// classifyStatus maps a non-success HTTP status to a typed error, attempting
// to extract the provider message from the body first.
func classifyStatus(providerName string, status int, body []byte) error {
	msg := extractErrorMessage(body)
	switch status {
	case http.StatusUnauthorized:
		return &APIKeyError{Provider: providerName}
	case http.StatusTooManyRequests:
		return &RateLimitError{Provider: providerName, Message: msg}
	case http.StatusPaymentRequired:
		return &PaymentRequiredError{Provider: providerName, Message: msg}
	default:
		return &ProviderResponseError{Provider: providerName, Status: status, Message: msg}
	}
}
