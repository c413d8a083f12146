package dto

// CreateSessionRequest is the POST /api/auth/session payload.
type CreateSessionRequest struct {
	IDToken string `json:"idToken"`
}

// StatusResponse is the generic success payload.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the wire shape for session endpoint failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
