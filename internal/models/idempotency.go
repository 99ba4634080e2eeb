package models

// StoredResponse is the HTTP-shaped outcome of a completed mutating request,
// persisted under (principal, idempotency key) and replayed verbatim on
// retries.
type StoredResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
}
