package types

// SuccessEnvelope is the body of every 2xx JSON response.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// FieldErrors maps a JSON field path such as "address.postal_code" to what is
// wrong with it. Validation failures carry it as APIError details.
type FieldErrors map[string]string

// APIError is the public face of a pkg/errors error. Message is client-safe;
// internal causes never reach it.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
