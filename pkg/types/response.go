package types

// SuccessEnvelope wraps every 2xx body except gateway acknowledgements.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing shape of a typed error. RequestID echoes the
// X-Request-ID header so a failed checkout can be traced from a support ticket.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
