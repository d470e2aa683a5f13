package auth

// Error is a login-flow failure with a stable code and a message safe to
// return to clients. Messages deliberately do not distinguish unknown,
// used, and expired tokens.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidEmail      = &Error{Code: "invalid_email", Message: "Valid email is required"}
	ErrInvalidCodeFormat = &Error{Code: "invalid_code", Message: "Please enter a valid 6-digit code"}
	ErrInvalidToken      = &Error{Code: "invalid_token", Message: "Invalid or expired token"}
	ErrTokenExpired      = &Error{Code: "token_expired", Message: "Invalid or expired token"}
	ErrUserNotFound      = &Error{Code: "user_not_found", Message: "Invalid or expired token"}
	ErrInvalidRefresh    = &Error{Code: "invalid_refresh", Message: "Invalid refresh token"}
	ErrSessionNotFound   = &Error{Code: "session_not_found", Message: "Session not found"}
	ErrSessionExpired    = &Error{Code: "session_expired", Message: "Session expired"}
	ErrEmailDelivery     = &Error{Code: "email_delivery", Message: "Failed to send login email"}
)
