package types

import "encoding/json"

// RequestIDHeader carries the request id on every API response.
const RequestIDHeader = "X-Request-Id"

// Envelope wraps every successful API payload.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// SuccessEnvelope is what handlers write; clients decode into Envelope of
// their own type.
type SuccessEnvelope = Envelope[any]

// RawEnvelope defers decoding of data until the caller picks a type.
type RawEnvelope = Envelope[json.RawMessage]

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
