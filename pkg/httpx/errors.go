package httpx

import "net/http"

// Error is a client-visible failure with a fixed HTTP status. Services
// return these (or sentinel errors mapped onto them by handlers) for the
// expected failure taxonomy; only genuinely unexpected conditions travel as
// plain errors and end up at the recovery boundary.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// ValidationError is bad or missing input; the message is surfaced verbatim.
func ValidationError(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

// AuthError is a missing, invalid or revoked credential.
func AuthError(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: message}
}

// CSRFError is deliberately generic: it never distinguishes a missing cookie
// from a mismatch, since that difference helps a forger.
func CSRFError() *Error {
	return &Error{Status: http.StatusForbidden, Message: "invalid csrf token"}
}

// RateLimitError tells the client to come back later, nothing more.
func RateLimitError() *Error {
	return &Error{Status: http.StatusTooManyRequests, Message: "too many requests, try again later"}
}
