package types

// ErrorResponse is the body written for every 4xx/5xx response.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// DeletedResponse acknowledges a soft delete.
type DeletedResponse struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id,omitempty"`
	UID     string `json:"uid,omitempty"`
}
