package http

// EnqueueResponse DTO for POST /api/v1/outgoing-messages
type EnqueueResponse struct {
	OutgoingMessageID string `json:"outgoing_message_id"`
	BundleID          string `json:"bundle_id"`
}

// ErrorResponse is the body of every 4xx and 5xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
